package inventory

import (
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/scanix-pos/scanix/internal/platform/httpx"
	"github.com/scanix-pos/scanix/internal/shared"
)

// Handler wires HTTP endpoints for inventory module.
type Handler struct {
	logger      *slog.Logger
	service     *Service
	validate    *validator.Validate
	requireAuth func(http.Handler) http.Handler
	// lowStockThreshold is the default for GET /stock/low.
	lowStockThreshold int
}

// NewHandler constructs inventory handler. requireAuth guards write routes.
func NewHandler(logger *slog.Logger, service *Service, validate *validator.Validate, requireAuth func(http.Handler) http.Handler, lowStockThreshold int) *Handler {
	if validate == nil {
		validate = validator.New()
	}
	return &Handler{logger: logger, service: service, validate: validate, requireAuth: requireAuth, lowStockThreshold: lowStockThreshold}
}

// MountRoutes registers inventory routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/warehouses", h.listWarehouses)
	r.Get("/warehouses/{warehouse}/stock", h.listStock)
	r.Get("/stock/movements", h.listMovements)
	r.Get("/stock/low", h.listLowStock)
	r.Group(func(r chi.Router) {
		if h.requireAuth != nil {
			r.Use(h.requireAuth)
		}
		r.Post("/stock/adjustments", h.adjust)
	})
}

type adjustmentRequest struct {
	ProductID string `json:"product_id" validate:"required"`
	Warehouse string `json:"warehouse" validate:"required"`
	Type      string `json:"type" validate:"required,oneof=IN OUT"`
	Quantity  int    `json:"quantity" validate:"gt=0"`
	Reason    string `json:"reason" validate:"required"`
	Notes     string `json:"notes"`
}

func (h *Handler) listWarehouses(w http.ResponseWriter, r *http.Request) {
	warehouses, err := h.service.ListWarehouses(r.Context())
	if err != nil {
		httpx.RespondError(w, h.logger, err)
		return
	}
	if warehouses == nil {
		warehouses = []Warehouse{}
	}
	httpx.JSON(w, http.StatusOK, warehouses)
}

func (h *Handler) listStock(w http.ResponseWriter, r *http.Request) {
	levels, err := h.service.ListStock(r.Context(), chi.URLParam(r, "warehouse"))
	if err != nil {
		httpx.RespondError(w, h.logger, err)
		return
	}
	if levels == nil {
		levels = []StockLevel{}
	}
	httpx.JSON(w, http.StatusOK, levels)
}

func (h *Handler) listMovements(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	filter := MovementFilter{ProductID: q.Get("product_id"), Warehouse: q.Get("warehouse")}
	if raw := q.Get("limit"); raw != "" {
		limit, err := strconv.Atoi(raw)
		if err != nil {
			httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "limit must be an integer")
			return
		}
		filter.Limit = limit
	}
	movements, err := h.service.Movements(r.Context(), filter)
	if err != nil {
		httpx.RespondError(w, h.logger, err)
		return
	}
	if movements == nil {
		movements = []Movement{}
	}
	httpx.JSON(w, http.StatusOK, movements)
}

func (h *Handler) listLowStock(w http.ResponseWriter, r *http.Request) {
	threshold := h.lowStockThreshold
	if raw := r.URL.Query().Get("threshold"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil {
			httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "threshold must be an integer")
			return
		}
		threshold = parsed
	}
	levels, err := h.service.LowStock(r.Context(), threshold)
	if err != nil {
		httpx.RespondError(w, h.logger, err)
		return
	}
	if levels == nil {
		levels = []StockLevel{}
	}
	httpx.JSON(w, http.StatusOK, levels)
}

func (h *Handler) adjust(w http.ResponseWriter, r *http.Request) {
	var req adjustmentRequest
	if err := httpx.Bind(r, h.validate, &req); err != nil {
		httpx.RespondError(w, h.logger, err)
		return
	}
	actor, _ := shared.ActorFromContext(r.Context())
	movement, err := h.service.Adjust(r.Context(), AdjustmentInput{
		ProductID: req.ProductID,
		Warehouse: req.Warehouse,
		Type:      MovementType(req.Type),
		Quantity:  req.Quantity,
		Reason:    req.Reason,
		Notes:     req.Notes,
		ActorID:   actor.ID,
	})
	if err != nil {
		httpx.RespondError(w, h.logger, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, movement)
}
