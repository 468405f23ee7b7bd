package tickets

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"

	"github.com/scanix-pos/scanix/internal/platform/httpx"
	"github.com/scanix-pos/scanix/internal/shared"
)

// maxTicketBody bounds submissions, which may embed a photo.
const maxTicketBody = 10 << 20

// Handler wires HTTP endpoints for tickets.
type Handler struct {
	logger      *slog.Logger
	service     *Service
	validate    *validator.Validate
	requireAuth func(http.Handler) http.Handler
}

// NewHandler constructs ticket handler. Every ticket route requires auth.
func NewHandler(logger *slog.Logger, service *Service, validate *validator.Validate, requireAuth func(http.Handler) http.Handler) *Handler {
	if validate == nil {
		validate = validator.New()
	}
	return &Handler{logger: logger, service: service, validate: validate, requireAuth: requireAuth}
}

// MountRoutes registers ticket routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Group(func(r chi.Router) {
		if h.requireAuth != nil {
			r.Use(h.requireAuth)
		}
		r.Post("/tickets", h.confirm)
		r.Get("/tickets", h.list)
		r.Get("/tickets/{id}", h.get)
	})
}

type lineRequest struct {
	SKU       string          `json:"sku" validate:"required"`
	Quantity  int             `json:"quantity" validate:"gt=0,lte=2147483647"`
	UnitPrice decimal.Decimal `json:"unit_price"`
}

type confirmRequest struct {
	ID        string        `json:"id"`
	Vendor    string        `json:"vendor" validate:"required"`
	Warehouse string        `json:"warehouse" validate:"required"`
	Photo     string        `json:"photo"`
	Items     []lineRequest `json:"items" validate:"required,min=1,dive"`
}

type confirmResponse struct {
	OK     bool   `json:"ok"`
	Ticket Ticket `json:"ticket"`
}

func (h *Handler) confirm(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxTicketBody)
	var req confirmRequest
	if err := httpx.Bind(r, h.validate, &req); err != nil {
		httpx.RespondError(w, h.logger, err)
		return
	}
	actor, _ := shared.ActorFromContext(r.Context())
	input := ConfirmInput{
		ID:        req.ID,
		Vendor:    req.Vendor,
		Warehouse: req.Warehouse,
		Photo:     req.Photo,
		ActorID:   actor.ID,
		Items:     make([]LineInput, 0, len(req.Items)),
	}
	for _, line := range req.Items {
		input.Items = append(input.Items, LineInput{SKU: line.SKU, Quantity: line.Quantity, UnitPrice: line.UnitPrice})
	}
	ticket, err := h.service.Confirm(r.Context(), input)
	if err != nil {
		httpx.RespondError(w, h.logger, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, confirmResponse{OK: true, Ticket: ticket})
}

func (h *Handler) list(w http.ResponseWriter, r *http.Request) {
	tickets, err := h.service.List(r.Context())
	if err != nil {
		httpx.RespondError(w, h.logger, err)
		return
	}
	if tickets == nil {
		tickets = []Ticket{}
	}
	httpx.JSON(w, http.StatusOK, tickets)
}

func (h *Handler) get(w http.ResponseWriter, r *http.Request) {
	ticket, err := h.service.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		httpx.RespondError(w, h.logger, err)
		return
	}
	httpx.JSON(w, http.StatusOK, ticket)
}
