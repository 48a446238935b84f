package inventory

import (
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"

	"github.com/forgeline-erp/forgeline-erp/internal/platform/httpx"
)

// Handler manages inventory endpoints.
type Handler struct {
	logger   *slog.Logger
	service  *Service
	validate *validator.Validate
}

// NewHandler builds Handler instance.
func NewHandler(logger *slog.Logger, service *Service) *Handler {
	return &Handler{logger: logger, service: service, validate: validator.New()}
}

// MountRoutes registers inventory routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Post("/movements", h.postMovement)
	r.Get("/ledger/{materialID}", h.listLedger)
}

type movementRequest struct {
	MaterialID int64  `json:"material_id" validate:"required,gt=0"`
	Direction  string `json:"direction" validate:"required,oneof=IN OUT"`
	Quantity   string `json:"quantity" validate:"required"`
	UnitPrice  string `json:"unit_price"`
	RefNumber  string `json:"ref_number"`
	Operator   string `json:"operator" validate:"required"`
}

type transactionResponse struct {
	ID             int64  `json:"id"`
	MaterialID     int64  `json:"material_id"`
	Direction      string `json:"direction"`
	Quantity       string `json:"quantity"`
	ResultingStock string `json:"resulting_stock"`
	UnitPrice      string `json:"unit_price"`
	LineTotal      string `json:"line_total"`
	RefNumber      string `json:"ref_number"`
	Operator       string `json:"operator"`
	PostedAt       string `json:"posted_at"`
}

func (h *Handler) postMovement(w http.ResponseWriter, r *http.Request) {
	var req movementRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "invalid JSON body")
		return
	}
	if err := h.validate.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}
	qty, err := decimal.NewFromString(req.Quantity)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "quantity must be numeric")
		return
	}
	price := decimal.Zero
	if req.UnitPrice != "" {
		if price, err = decimal.NewFromString(req.UnitPrice); err != nil {
			httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "unit_price must be numeric")
			return
		}
	}
	entry, err := h.service.PostAdjustment(r.Context(), AdjustmentInput{
		MaterialID: req.MaterialID,
		Direction:  Direction(req.Direction),
		Quantity:   qty,
		UnitPrice:  price,
		RefNumber:  req.RefNumber,
		Operator:   req.Operator,
	})
	if err != nil {
		h.logger.Error("post movement", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, toTransactionResponse(entry))
}

func (h *Handler) listLedger(w http.ResponseWriter, r *http.Request) {
	materialID, _ := strconv.ParseInt(chi.URLParam(r, "materialID"), 10, 64)
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	filter := LedgerFilter{MaterialID: materialID, Limit: limit}
	if from := r.URL.Query().Get("from"); from != "" {
		filter.From, _ = time.Parse("2006-01-02", from)
	}
	if to := r.URL.Query().Get("to"); to != "" {
		filter.To, _ = time.Parse("2006-01-02", to)
	}
	entries, err := h.service.GetLedger(r.Context(), filter)
	if err != nil {
		h.logger.Error("list ledger", slog.Any("error", err), slog.Int64("material_id", materialID))
		httpx.RespondError(w, err)
		return
	}
	out := make([]transactionResponse, 0, len(entries))
	for _, entry := range entries {
		out = append(out, toTransactionResponse(entry))
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"entries": out})
}

func toTransactionResponse(entry Transaction) transactionResponse {
	return transactionResponse{
		ID:             entry.ID,
		MaterialID:     entry.MaterialID,
		Direction:      string(entry.Direction),
		Quantity:       entry.Quantity.String(),
		ResultingStock: entry.ResultingStock.String(),
		UnitPrice:      entry.UnitPrice.String(),
		LineTotal:      entry.LineTotal.String(),
		RefNumber:      entry.RefNumber,
		Operator:       entry.Operator,
		PostedAt:       entry.PostedAt.Format(time.RFC3339),
	}
}
