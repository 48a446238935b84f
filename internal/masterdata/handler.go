package masterdata

import (
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"

	"github.com/forgeline-erp/forgeline-erp/internal/platform/httpx"
)

// Handler manages master data endpoints.
type Handler struct {
	logger   *slog.Logger
	service  *Service
	validate *validator.Validate
}

// NewHandler builds Handler instance.
func NewHandler(logger *slog.Logger, service *Service) *Handler {
	return &Handler{logger: logger, service: service, validate: validator.New()}
}

// MountRoutes registers master data routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Route("/materials", func(r chi.Router) {
		r.Get("/", h.listMaterials)
		r.Get("/low-stock", h.lowStockMaterials)
		r.Post("/", h.createMaterial)
		r.Get("/{id}", h.getMaterial)
		r.Put("/{id}", h.updateMaterial)
	})
	r.Route("/vendors", func(r chi.Router) {
		r.Get("/", h.listVendors)
		r.Post("/", h.createVendor)
		r.Get("/{id}", h.getVendor)
		r.Put("/{id}", h.updateVendor)
	})
}

type materialRequest struct {
	Code     string `json:"code" validate:"required"`
	Name     string `json:"name" validate:"required"`
	Unit     string `json:"unit" validate:"required"`
	MinStock string `json:"min_stock"`
	IsActive *bool  `json:"is_active"`
	Operator string `json:"operator"`
}

type vendorRequest struct {
	Code     string `json:"code" validate:"required"`
	Name     string `json:"name" validate:"required"`
	Contact  string `json:"contact"`
	Phone    string `json:"phone"`
	Email    string `json:"email" validate:"omitempty,email"`
	Address  string `json:"address"`
	IsActive *bool  `json:"is_active"`
	Operator string `json:"operator"`
}

func (h *Handler) listMaterials(w http.ResponseWriter, r *http.Request) {
	materials, total, err := h.service.ListMaterials(r.Context(), filtersFromQuery(r))
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"materials": materials, "total": total})
}

func (h *Handler) lowStockMaterials(w http.ResponseWriter, r *http.Request) {
	materials, err := h.service.LowStockMaterials(r.Context())
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"materials": materials})
}

func (h *Handler) getMaterial(w http.ResponseWriter, r *http.Request) {
	m, err := h.service.GetMaterial(r.Context(), urlID(r))
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, m)
}

func (h *Handler) createMaterial(w http.ResponseWriter, r *http.Request) {
	m, operator, ok := h.decodeMaterial(w, r)
	if !ok {
		return
	}
	created, err := h.service.CreateMaterial(r.Context(), m, operator)
	if err != nil {
		h.logger.Error("create material", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, created)
}

func (h *Handler) updateMaterial(w http.ResponseWriter, r *http.Request) {
	m, operator, ok := h.decodeMaterial(w, r)
	if !ok {
		return
	}
	if err := h.service.UpdateMaterial(r.Context(), urlID(r), m, operator); err != nil {
		h.logger.Error("update material", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]string{"status": "updated"})
}

func (h *Handler) listVendors(w http.ResponseWriter, r *http.Request) {
	vendors, total, err := h.service.ListVendors(r.Context(), filtersFromQuery(r))
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"vendors": vendors, "total": total})
}

func (h *Handler) getVendor(w http.ResponseWriter, r *http.Request) {
	v, err := h.service.GetVendor(r.Context(), urlID(r))
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, v)
}

func (h *Handler) createVendor(w http.ResponseWriter, r *http.Request) {
	v, operator, ok := h.decodeVendor(w, r)
	if !ok {
		return
	}
	created, err := h.service.CreateVendor(r.Context(), v, operator)
	if err != nil {
		h.logger.Error("create vendor", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, created)
}

func (h *Handler) updateVendor(w http.ResponseWriter, r *http.Request) {
	v, operator, ok := h.decodeVendor(w, r)
	if !ok {
		return
	}
	if err := h.service.UpdateVendor(r.Context(), urlID(r), v, operator); err != nil {
		h.logger.Error("update vendor", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]string{"status": "updated"})
}

func (h *Handler) decodeMaterial(w http.ResponseWriter, r *http.Request) (Material, string, bool) {
	var req materialRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "invalid JSON body")
		return Material{}, "", false
	}
	if err := h.validate.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return Material{}, "", false
	}
	minStock := decimal.Zero
	if req.MinStock != "" {
		var err error
		if minStock, err = decimal.NewFromString(req.MinStock); err != nil {
			httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "min_stock must be numeric")
			return Material{}, "", false
		}
	}
	m := Material{Code: req.Code, Name: req.Name, Unit: req.Unit, MinStock: minStock, IsActive: true}
	if req.IsActive != nil {
		m.IsActive = *req.IsActive
	}
	return m, req.Operator, true
}

func (h *Handler) decodeVendor(w http.ResponseWriter, r *http.Request) (Vendor, string, bool) {
	var req vendorRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "invalid JSON body")
		return Vendor{}, "", false
	}
	if err := h.validate.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return Vendor{}, "", false
	}
	v := Vendor{Code: req.Code, Name: req.Name, Contact: req.Contact, Phone: req.Phone, Email: req.Email, Address: req.Address, IsActive: true}
	if req.IsActive != nil {
		v.IsActive = *req.IsActive
	}
	return v, req.Operator, true
}

func filtersFromQuery(r *http.Request) ListFilters {
	q := r.URL.Query()
	page, _ := strconv.Atoi(q.Get("page"))
	limit, _ := strconv.Atoi(q.Get("limit"))
	filters := ListFilters{Page: page, Limit: limit, Search: q.Get("search")}
	if raw := q.Get("is_active"); raw != "" {
		active := raw == "true" || raw == "1"
		filters.IsActive = &active
	}
	return filters
}

func urlID(r *http.Request) int64 {
	id, _ := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	return id
}
