package procurement

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

// Handler manages procurement endpoints.
type Handler struct {
	logger   *slog.Logger
	service  *Service
	validate *validator.Validate
}

// NewHandler builds Handler instance.
func NewHandler(logger *slog.Logger, service *Service) *Handler {
	return &Handler{logger: logger, service: service, validate: validator.New()}
}

// MountRoutes registers procurement routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Route("/purchase-requests", func(r chi.Router) {
		r.Post("/", h.createPR)
		r.Get("/{id}", h.getPR)
		r.Get("/{id}/document", h.getPRDocument)
		r.Get("/{id}/payments", h.listPayments)
		r.Post("/{id}/submit", h.submitPR)
		r.Post("/{id}/approve", h.approvePR)
	})
	r.Route("/purchase-orders", func(r chi.Router) {
		r.Post("/", h.createPO)
		r.Post("/from-request", h.createPOFromPR)
		r.Get("/", h.listPOs)
		r.Get("/{id}", h.getPO)
		r.Get("/{id}/document", h.getPODocument)
		r.Post("/{id}/approve", h.approvePO)
		r.Post("/{id}/issue", h.issuePO)
		r.Post("/{id}/cancel", h.cancelPO)
		r.Put("/{id}/terms", h.updatePOTerms)
	})
	r.Route("/goods-receipts", func(r chi.Router) {
		r.Post("/", h.createGR)
		r.Get("/", h.listGRs)
		r.Get("/{id}", h.getGR)
		r.Get("/{id}/document", h.getGRDocument)
		r.Post("/{id}/complete", h.completeGR)
	})
}

type lineRequest struct {
	MaterialID int64  `json:"material_id" validate:"required,gt=0"`
	Quantity   string `json:"qty" validate:"required"`
	UnitPrice  string `json:"unit_price"`
}

type createPRRequest struct {
	Number      string        `json:"number"`
	Type        string        `json:"type" validate:"required,oneof=STOCK_REQUISITION DIRECT_PURCHASE"`
	RequestedBy string        `json:"requested_by" validate:"required"`
	Note        string        `json:"note"`
	Lines       []lineRequest `json:"lines" validate:"required,min=1,dive"`
}

type termsRequest struct {
	TaxPercent      string `json:"tax_percent"`
	DiscountType    string `json:"discount_type" validate:"omitempty,oneof=NONE PERCENT AMOUNT"`
	DiscountPercent string `json:"discount_percent"`
	DiscountAmount  string `json:"discount_amount"`
	Shipping        string `json:"shipping"`
}

type createPORequest struct {
	Number   string        `json:"number"`
	VendorID int64         `json:"vendor_id" validate:"required,gt=0"`
	Note     string        `json:"note"`
	Terms    termsRequest  `json:"terms"`
	Lines    []lineRequest `json:"lines" validate:"required,min=1,dive"`
}

type createPOFromPRRequest struct {
	PRID     int64        `json:"pr_id" validate:"required,gt=0"`
	VendorID int64        `json:"vendor_id" validate:"required,gt=0"`
	Number   string       `json:"number"`
	Note     string       `json:"note"`
	Terms    termsRequest `json:"terms"`
}

type actorRequest struct {
	Actor string `json:"actor" validate:"required"`
}

type receiptLineRequest struct {
	MaterialID  int64  `json:"material_id" validate:"required,gt=0"`
	POItemID    int64  `json:"po_item_id"`
	QtyReceived string `json:"qty_received" validate:"required"`
	UnitPrice   string `json:"unit_price"`
}

type createGRRequest struct {
	Number     string               `json:"number"`
	POID       int64                `json:"po_id"`
	PRID       int64                `json:"pr_id"`
	VendorID   int64                `json:"vendor_id"`
	ReceivedAt string               `json:"received_at"`
	Note       string               `json:"note"`
	Lines      []receiptLineRequest `json:"lines" validate:"required,min=1,dive"`
}

type completeGRRequest struct {
	CheckedBy string `json:"checked_by" validate:"required"`
	Operator  string `json:"operator"`
}

func (h *Handler) createPR(w http.ResponseWriter, r *http.Request) {
	var req createPRRequest
	if !h.decode(w, r, &req) {
		return
	}
	lines, ok := h.parseLines(w, req.Lines)
	if !ok {
		return
	}
	pr, err := h.service.CreatePurchaseRequest(r.Context(), CreatePRInput{
		Number:      req.Number,
		Type:        PurchaseType(req.Type),
		RequestedBy: req.RequestedBy,
		Note:        req.Note,
		Lines:       lines,
	})
	if err != nil {
		h.logger.Error("create purchase request", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, toPRResponse(pr, nil))
}

func (h *Handler) getPR(w http.ResponseWriter, r *http.Request) {
	id := urlID(r)
	pr, items, err := h.service.GetPurchaseRequest(r.Context(), id)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, toPRResponse(pr, items))
}

func (h *Handler) submitPR(w http.ResponseWriter, r *http.Request) {
	var req actorRequest
	if !h.decode(w, r, &req) {
		return
	}
	if err := h.service.SubmitPurchaseRequest(r.Context(), urlID(r), req.Actor); err != nil {
		h.logger.Error("submit purchase request", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]string{"status": string(PRStatusSubmitted)})
}

func (h *Handler) approvePR(w http.ResponseWriter, r *http.Request) {
	var req actorRequest
	if !h.decode(w, r, &req) {
		return
	}
	if err := h.service.ApprovePurchaseRequest(r.Context(), urlID(r), req.Actor); err != nil {
		h.logger.Error("approve purchase request", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]string{"status": string(PRStatusApproved)})
}

func (h *Handler) listPayments(w http.ResponseWriter, r *http.Request) {
	payments, err := h.service.ListPayments(r.Context(), urlID(r))
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	out := make([]paymentResponse, 0, len(payments))
	for _, p := range payments {
		out = append(out, toPaymentResponse(p))
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"payments": out})
}

func (h *Handler) createPO(w http.ResponseWriter, r *http.Request) {
	var req createPORequest
	if !h.decode(w, r, &req) {
		return
	}
	terms, ok := h.parseTerms(w, req.Terms)
	if !ok {
		return
	}
	prLines, ok := h.parseLines(w, req.Lines)
	if !ok {
		return
	}
	lines := make([]POLineInput, 0, len(prLines))
	for _, line := range prLines {
		lines = append(lines, POLineInput(line))
	}
	po, err := h.service.CreatePurchaseOrder(r.Context(), CreatePOInput{
		Number:   req.Number,
		VendorID: req.VendorID,
		Note:     req.Note,
		Terms:    terms,
		Lines:    lines,
	})
	if err != nil {
		h.logger.Error("create purchase order", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, toPOResponse(po, nil))
}

func (h *Handler) createPOFromPR(w http.ResponseWriter, r *http.Request) {
	var req createPOFromPRRequest
	if !h.decode(w, r, &req) {
		return
	}
	terms, ok := h.parseTerms(w, req.Terms)
	if !ok {
		return
	}
	po, err := h.service.CreatePurchaseOrderFromRequest(r.Context(), CreatePOFromPRInput{
		PRID:     req.PRID,
		Number:   req.Number,
		VendorID: req.VendorID,
		Note:     req.Note,
		Terms:    terms,
	})
	if err != nil {
		h.logger.Error("create purchase order from request", slog.Any("error", err), slog.Int64("pr_id", req.PRID))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, toPOResponse(po, nil))
}

func (h *Handler) listPOs(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	page, _ := strconv.Atoi(q.Get("page"))
	pageSize, _ := strconv.Atoi(q.Get("page_size"))
	vendorID, _ := strconv.ParseInt(q.Get("vendor_id"), 10, 64)
	filter := POFilter{
		Status:   POStatus(q.Get("status")),
		VendorID: vendorID,
		Search:   q.Get("search"),
		Page:     page,
		PageSize: pageSize,
	}
	pos, total, err := h.service.ListPurchaseOrders(r.Context(), filter)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	out := make([]poResponse, 0, len(pos))
	for _, po := range pos {
		out = append(out, toPOResponse(po, nil))
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"orders": out, "total": total})
}

func (h *Handler) getPO(w http.ResponseWriter, r *http.Request) {
	po, items, err := h.service.GetPurchaseOrder(r.Context(), urlID(r))
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, toPOResponse(po, items))
}

func (h *Handler) approvePO(w http.ResponseWriter, r *http.Request) {
	var req actorRequest
	if !h.decode(w, r, &req) {
		return
	}
	if err := h.service.ApprovePurchaseOrder(r.Context(), ApproveOrderCommand{OrderID: urlID(r), ApprovedBy: req.Actor}); err != nil {
		h.logger.Error("approve purchase order", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]string{"approved_by": req.Actor})
}

func (h *Handler) issuePO(w http.ResponseWriter, r *http.Request) {
	var req actorRequest
	if !h.decode(w, r, &req) {
		return
	}
	if err := h.service.IssuePurchaseOrder(r.Context(), IssueOrderCommand{OrderID: urlID(r), IssuedBy: req.Actor}); err != nil {
		h.logger.Error("issue purchase order", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]string{"status": string(POStatusIssued)})
}

func (h *Handler) cancelPO(w http.ResponseWriter, r *http.Request) {
	var req actorRequest
	if !h.decode(w, r, &req) {
		return
	}
	if err := h.service.CancelPurchaseOrder(r.Context(), CancelOrderCommand{OrderID: urlID(r), CancelledBy: req.Actor}); err != nil {
		h.logger.Error("cancel purchase order", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]string{"status": string(POStatusCancelled)})
}

func (h *Handler) updatePOTerms(w http.ResponseWriter, r *http.Request) {
	var req termsRequest
	if !h.decode(w, r, &req) {
		return
	}
	terms, ok := h.parseTerms(w, req)
	if !ok {
		return
	}
	totals, err := h.service.UpdatePurchaseOrderTerms(r.Context(), UpdateOrderTermsCommand{
		OrderID:         urlID(r),
		TaxPercent:      terms.TaxPercent,
		DiscountType:    terms.DiscountType,
		DiscountPercent: terms.DiscountPercent,
		DiscountAmount:  terms.DiscountAmount,
		Shipping:        terms.Shipping,
	})
	if err != nil {
		h.logger.Error("update purchase order terms", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]string{
		"subtotal":         totals.Subtotal.String(),
		"discount_applied": totals.DiscountApplied.String(),
		"tax_amount":       totals.TaxAmount.String(),
		"total_amount":     totals.Total.String(),
	})
}

func (h *Handler) createGR(w http.ResponseWriter, r *http.Request) {
	var req createGRRequest
	if !h.decode(w, r, &req) {
		return
	}
	var receivedAt time.Time
	if req.ReceivedAt != "" {
		var err error
		if receivedAt, err = time.Parse(time.RFC3339, req.ReceivedAt); err != nil {
			httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "received_at must be RFC3339")
			return
		}
	}
	lines := make([]ReceiptLineInput, 0, len(req.Lines))
	for _, line := range req.Lines {
		qty, err := decimal.NewFromString(line.QtyReceived)
		if err != nil {
			httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "qty_received must be numeric")
			return
		}
		price, ok := h.parseOptionalDecimal(w, line.UnitPrice, "unit_price")
		if !ok {
			return
		}
		lines = append(lines, ReceiptLineInput{
			MaterialID:  line.MaterialID,
			POItemID:    line.POItemID,
			QtyReceived: qty,
			UnitPrice:   price,
		})
	}
	gr, err := h.service.CreateGoodsReceipt(r.Context(), CreateReceiptInput{
		Number:     req.Number,
		POID:       req.POID,
		PRID:       req.PRID,
		VendorID:   req.VendorID,
		ReceivedAt: receivedAt,
		Note:       req.Note,
		Lines:      lines,
	})
	if err != nil {
		h.logger.Error("create goods receipt", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, toGRResponse(gr, nil))
}

func (h *Handler) listGRs(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	page, _ := strconv.Atoi(q.Get("page"))
	pageSize, _ := strconv.Atoi(q.Get("page_size"))
	poID, _ := strconv.ParseInt(q.Get("po_id"), 10, 64)
	grs, total, err := h.service.ListGoodsReceipts(r.Context(), ReceiptFilter{
		Status:   GRStatus(q.Get("status")),
		POID:     poID,
		Page:     page,
		PageSize: pageSize,
	})
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	out := make([]grResponse, 0, len(grs))
	for _, gr := range grs {
		out = append(out, toGRResponse(gr, nil))
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"receipts": out, "total": total})
}

func (h *Handler) getGR(w http.ResponseWriter, r *http.Request) {
	gr, items, err := h.service.GetGoodsReceipt(r.Context(), urlID(r))
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, toGRResponse(gr, items))
}

func (h *Handler) completeGR(w http.ResponseWriter, r *http.Request) {
	var req completeGRRequest
	if !h.decode(w, r, &req) {
		return
	}
	gr, err := h.service.CompleteGoodsReceipt(r.Context(), CompleteReceiptCommand{
		ReceiptID: urlID(r),
		CheckedBy: req.CheckedBy,
		Operator:  req.Operator,
	})
	if err != nil {
		h.logger.Error("complete goods receipt", slog.Any("error", err), slog.Int64("receipt_id", urlID(r)))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, toGRResponse(gr, nil))
}

func (h *Handler) decode(w http.ResponseWriter, r *http.Request, target any) bool {
	if err := httpx.DecodeJSON(r, target); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "invalid JSON body")
		return false
	}
	if err := h.validate.Struct(target); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return false
	}
	return true
}

func (h *Handler) parseLines(w http.ResponseWriter, lines []lineRequest) ([]PRLineInput, bool) {
	out := make([]PRLineInput, 0, len(lines))
	for _, line := range lines {
		qty, err := decimal.NewFromString(line.Quantity)
		if err != nil {
			httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "qty must be numeric")
			return nil, false
		}
		price, ok := h.parseOptionalDecimal(w, line.UnitPrice, "unit_price")
		if !ok {
			return nil, false
		}
		out = append(out, PRLineInput{MaterialID: line.MaterialID, Quantity: qty, UnitPrice: price})
	}
	return out, true
}

func (h *Handler) parseTerms(w http.ResponseWriter, req termsRequest) (TotalParams, bool) {
	var (
		params TotalParams
		ok     bool
	)
	if params.TaxPercent, ok = h.parseOptionalDecimal(w, req.TaxPercent, "tax_percent"); !ok {
		return TotalParams{}, false
	}
	if params.DiscountPercent, ok = h.parseOptionalDecimal(w, req.DiscountPercent, "discount_percent"); !ok {
		return TotalParams{}, false
	}
	if params.DiscountAmount, ok = h.parseOptionalDecimal(w, req.DiscountAmount, "discount_amount"); !ok {
		return TotalParams{}, false
	}
	if params.Shipping, ok = h.parseOptionalDecimal(w, req.Shipping, "shipping"); !ok {
		return TotalParams{}, false
	}
	params.DiscountType = defaultDiscountType(DiscountType(req.DiscountType))
	return params, true
}

func (h *Handler) parseOptionalDecimal(w http.ResponseWriter, value, field string) (decimal.Decimal, bool) {
	if value == "" {
		return decimal.Zero, true
	}
	d, err := decimal.NewFromString(value)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", field+" must be numeric")
		return decimal.Decimal{}, false
	}
	return d, true
}

func urlID(r *http.Request) int64 {
	id, _ := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	return id
}

type prItemResponse struct {
	ID         int64  `json:"id"`
	MaterialID int64  `json:"material_id"`
	Quantity   string `json:"qty"`
	UnitPrice  string `json:"unit_price"`
}

type prResponse struct {
	ID          int64            `json:"id"`
	Number      string           `json:"number"`
	Type        string           `json:"type"`
	Status      string           `json:"status"`
	RequestedBy string           `json:"requested_by"`
	Note        string           `json:"note,omitempty"`
	Items       []prItemResponse `json:"items,omitempty"`
}

func toPRResponse(pr PurchaseRequest, items []PRItem) prResponse {
	resp := prResponse{
		ID:          pr.ID,
		Number:      pr.Number,
		Type:        string(pr.Type),
		Status:      string(pr.Status),
		RequestedBy: pr.RequestedBy,
		Note:        pr.Note,
	}
	for _, item := range items {
		resp.Items = append(resp.Items, prItemResponse{
			ID:         item.ID,
			MaterialID: item.MaterialID,
			Quantity:   item.Quantity.String(),
			UnitPrice:  item.UnitPrice.String(),
		})
	}
	return resp
}

type poItemResponse struct {
	ID           int64  `json:"id"`
	MaterialID   int64  `json:"material_id"`
	QtyOrdered   string `json:"qty_ordered"`
	QtyReceived  string `json:"qty_received"`
	UnitPrice    string `json:"unit_price"`
	LineSubtotal string `json:"line_subtotal"`
}

type poResponse struct {
	ID              int64            `json:"id"`
	Number          string           `json:"number"`
	VendorID        int64            `json:"vendor_id"`
	VendorName      string           `json:"vendor_name"`
	Status          string           `json:"status"`
	Subtotal        string           `json:"subtotal"`
	DiscountApplied string           `json:"discount_applied"`
	TaxAmount       string           `json:"tax_amount"`
	Shipping        string           `json:"shipping"`
	TotalAmount     string           `json:"total_amount"`
	ApprovedBy      string           `json:"approved_by,omitempty"`
	Items           []poItemResponse `json:"items,omitempty"`
}

func toPOResponse(po PurchaseOrder, items []POItem) poResponse {
	resp := poResponse{
		ID:              po.ID,
		Number:          po.Number,
		VendorID:        po.VendorID,
		VendorName:      po.VendorName,
		Status:          string(po.Status),
		Subtotal:        po.Subtotal.String(),
		DiscountApplied: po.DiscountApplied.String(),
		TaxAmount:       po.TaxAmount.String(),
		Shipping:        po.Shipping.String(),
		TotalAmount:     po.TotalAmount.String(),
		ApprovedBy:      po.ApprovedBy,
	}
	for _, item := range items {
		resp.Items = append(resp.Items, poItemResponse{
			ID:           item.ID,
			MaterialID:   item.MaterialID,
			QtyOrdered:   item.QtyOrdered.String(),
			QtyReceived:  item.QtyReceived.String(),
			UnitPrice:    item.UnitPrice.String(),
			LineSubtotal: item.LineSubtotal.String(),
		})
	}
	return resp
}

type grItemResponse struct {
	ID          int64  `json:"id"`
	MaterialID  int64  `json:"material_id"`
	POItemID    int64  `json:"po_item_id,omitempty"`
	QtyReceived string `json:"qty_received"`
	UnitPrice   string `json:"unit_price"`
	LineTotal   string `json:"line_total"`
}

type grResponse struct {
	ID         int64            `json:"id"`
	Number     string           `json:"number"`
	POID       int64            `json:"po_id,omitempty"`
	PRID       int64            `json:"pr_id,omitempty"`
	VendorName string           `json:"vendor_name"`
	Status     string           `json:"status"`
	CheckedBy  string           `json:"checked_by,omitempty"`
	Items      []grItemResponse `json:"items,omitempty"`
}

func toGRResponse(gr GoodsReceipt, items []GRItem) grResponse {
	resp := grResponse{
		ID:         gr.ID,
		Number:     gr.Number,
		POID:       gr.POID,
		PRID:       gr.PRID,
		VendorName: gr.VendorName,
		Status:     string(gr.Status),
		CheckedBy:  gr.CheckedBy,
	}
	for _, item := range items {
		resp.Items = append(resp.Items, grItemResponse{
			ID:          item.ID,
			MaterialID:  item.MaterialID,
			POItemID:    item.POItemID,
			QtyReceived: item.QtyReceived.String(),
			UnitPrice:   item.UnitPrice.String(),
			LineTotal:   item.LineTotal.String(),
		})
	}
	return resp
}

type paymentResponse struct {
	ID            int64  `json:"id"`
	Number        string `json:"number"`
	ReceiptNumber string `json:"receipt_number"`
	Amount        string `json:"amount"`
	PaidAt        string `json:"paid_at"`
}

func toPaymentResponse(p PurchasePayment) paymentResponse {
	return paymentResponse{
		ID:            p.ID,
		Number:        p.Number,
		ReceiptNumber: p.ReceiptNumber,
		Amount:        p.Amount.String(),
		PaidAt:        p.PaidAt.Format(time.RFC3339),
	}
}
