package catalog

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"

	"github.com/scanix-pos/scanix/internal/platform/httpx"
	"github.com/scanix-pos/scanix/internal/pricing"
	"github.com/scanix-pos/scanix/internal/shared"
)

// Handler wires HTTP endpoints for the catalog.
type Handler struct {
	logger        *slog.Logger
	service       *Service
	validate      *validator.Validate
	requireAuth   func(http.Handler) http.Handler
	maxScanUpload int64
}

// NewHandler constructs catalog handler. maxScanUpload caps the scan image
// size in bytes.
func NewHandler(logger *slog.Logger, service *Service, validate *validator.Validate, requireAuth func(http.Handler) http.Handler, maxScanUpload int64) *Handler {
	if validate == nil {
		validate = validator.New()
	}
	return &Handler{logger: logger, service: service, validate: validate, requireAuth: requireAuth, maxScanUpload: maxScanUpload}
}

// MountRoutes registers catalog routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/products", h.list)
	r.Get("/products/{id}", h.get)
	r.Get("/products/{id}/quote", h.quote)
	r.Post("/scan", h.scan)
	r.Group(func(r chi.Router) {
		if h.requireAuth != nil {
			r.Use(h.requireAuth)
		}
		r.Post("/products", h.create)
		r.Put("/products/{id}", h.update)
		r.Delete("/products/{id}", h.delete)
	})
}

type priceRuleRequest struct {
	From  int             `json:"from" validate:"gt=0"`
	To    int             `json:"to" validate:"gt=0"`
	Price decimal.Decimal `json:"price"`
}

type stockRequest struct {
	Warehouse string `json:"warehouse" validate:"required"`
	Quantity  int    `json:"quantity" validate:"gte=0"`
}

type productRequest struct {
	Name             string             `json:"name" validate:"required"`
	SKU              string             `json:"sku" validate:"required"`
	Category         string             `json:"category" validate:"required"`
	Description      string             `json:"description"`
	Price            decimal.Decimal    `json:"price"`
	Images           []string           `json:"images"`
	PriceRules       []priceRuleRequest `json:"price_rules" validate:"dive"`
	StockByWarehouse []stockRequest     `json:"stock_by_warehouse" validate:"dive"`
}

func (req productRequest) input(actorID string) ProductInput {
	rules := make([]pricing.PriceRule, 0, len(req.PriceRules))
	for _, rule := range req.PriceRules {
		rules = append(rules, pricing.PriceRule{FromQty: rule.From, ToQty: rule.To, Price: rule.Price})
	}
	stock := make([]InitialStock, 0, len(req.StockByWarehouse))
	for _, st := range req.StockByWarehouse {
		stock = append(stock, InitialStock{Warehouse: st.Warehouse, Quantity: st.Quantity})
	}
	return ProductInput{
		Name:         req.Name,
		SKU:          req.SKU,
		Category:     req.Category,
		Description:  req.Description,
		BasePrice:    req.Price,
		Images:       req.Images,
		PriceRules:   rules,
		InitialStock: stock,
		ActorID:      actorID,
	}
}

func (h *Handler) list(w http.ResponseWriter, r *http.Request) {
	products, err := h.service.List(r.Context())
	if err != nil {
		httpx.RespondError(w, h.logger, err)
		return
	}
	httpx.JSON(w, http.StatusOK, products)
}

func (h *Handler) get(w http.ResponseWriter, r *http.Request) {
	product, err := h.service.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		httpx.RespondError(w, h.logger, err)
		return
	}
	httpx.JSON(w, http.StatusOK, product)
}

func (h *Handler) quote(w http.ResponseWriter, r *http.Request) {
	qty, err := strconv.Atoi(r.URL.Query().Get("qty"))
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "qty must be an integer")
		return
	}
	quote, err := h.service.Quote(r.Context(), chi.URLParam(r, "id"), qty)
	if err != nil {
		httpx.RespondError(w, h.logger, err)
		return
	}
	httpx.JSON(w, http.StatusOK, quote)
}

func (h *Handler) create(w http.ResponseWriter, r *http.Request) {
	var req productRequest
	if err := httpx.Bind(r, h.validate, &req); err != nil {
		httpx.RespondError(w, h.logger, err)
		return
	}
	actor, _ := shared.ActorFromContext(r.Context())
	product, err := h.service.Create(r.Context(), req.input(actor.ID))
	if err != nil {
		httpx.RespondError(w, h.logger, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, product)
}

func (h *Handler) update(w http.ResponseWriter, r *http.Request) {
	var req productRequest
	if err := httpx.Bind(r, h.validate, &req); err != nil {
		httpx.RespondError(w, h.logger, err)
		return
	}
	actor, _ := shared.ActorFromContext(r.Context())
	product, err := h.service.Update(r.Context(), chi.URLParam(r, "id"), req.input(actor.ID))
	if err != nil {
		httpx.RespondError(w, h.logger, err)
		return
	}
	httpx.JSON(w, http.StatusOK, product)
}

func (h *Handler) delete(w http.ResponseWriter, r *http.Request) {
	actor, _ := shared.ActorFromContext(r.Context())
	if err := h.service.Delete(r.Context(), chi.URLParam(r, "id"), actor.ID); err != nil {
		httpx.RespondError(w, h.logger, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// scan accepts an optional multipart "image" part. The image is not
// inspected.
func (h *Handler) scan(w http.ResponseWriter, r *http.Request) {
	if h.maxScanUpload > 0 && r.ContentLength > h.maxScanUpload {
		httpx.Problem(w, http.StatusRequestEntityTooLarge, "Payload Too Large", "image exceeds upload limit")
		return
	}
	if h.maxScanUpload > 0 {
		r.Body = http.MaxBytesReader(w, r.Body, h.maxScanUpload)
	}
	if strings.HasPrefix(r.Header.Get("Content-Type"), "multipart/") {
		if err := r.ParseMultipartForm(h.maxScanUpload); err != nil {
			var tooLarge *http.MaxBytesError
			if errors.As(err, &tooLarge) {
				httpx.Problem(w, http.StatusRequestEntityTooLarge, "Payload Too Large", "image exceeds upload limit")
				return
			}
			httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "malformed multipart body")
			return
		}
		defer func() {
			_ = r.MultipartForm.RemoveAll()
		}()
	}
	matches, err := h.service.Scan(r.Context())
	if err != nil {
		httpx.RespondError(w, h.logger, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"products": matches})
}
