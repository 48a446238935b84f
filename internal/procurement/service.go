package procurement

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/forgeline-erp/forgeline-erp/internal/inventory"
	"github.com/forgeline-erp/forgeline-erp/internal/shared"
)

// RepositoryPort describes repository operations used by Service.
type RepositoryPort interface {
	WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error
	GetPR(ctx context.Context, id int64) (PurchaseRequest, []PRItem, error)
	GetPO(ctx context.Context, id int64) (PurchaseOrder, []POItem, error)
	GetReceipt(ctx context.Context, id int64) (GoodsReceipt, []GRItem, error)
	ListPOs(ctx context.Context, filter POFilter) ([]PurchaseOrder, int, error)
	ListReceipts(ctx context.Context, filter ReceiptFilter) ([]GoodsReceipt, int, error)
	ListPayments(ctx context.Context, prID int64) ([]PurchasePayment, error)
	GetPODocument(ctx context.Context, id int64) (PurchaseOrderDocument, error)
	GetGRDocument(ctx context.Context, id int64) (GoodsReceiptDocument, error)
	GetPRDocument(ctx context.Context, id int64) (PurchaseRequestDocument, error)
}

// MaterialPort resolves material existence against master data.
type MaterialPort interface {
	MaterialExists(ctx context.Context, id int64) (bool, error)
}

// VendorSnapshot is the name/contact copy stored on documents at creation.
type VendorSnapshot struct {
	ID      int64
	Name    string
	Contact string
}

// VendorPort resolves the vendor snapshot at document creation time.
type VendorPort interface {
	GetVendorSnapshot(ctx context.Context, id int64) (VendorSnapshot, error)
}

// AuditPort reused from shared.
type AuditPort interface {
	Record(ctx context.Context, log shared.AuditLog) error
}

// ServiceConfig groups the policy flags.
type ServiceConfig struct {
	// AllowNegativeTotals permits a discount larger than the subtotal
	// (credit-note-like negative taxable base). Off turns it into a
	// validation error.
	AllowNegativeTotals bool
	// AllowOverReceipt permits a receipt quantity above the ordered
	// quantity; under snap-to-received this inflates quantityOrdered.
	AllowOverReceipt bool
	// ReceiptRetryMax bounds whole-orchestration retries on conflict.
	ReceiptRetryMax int
}

// Service orchestrates the procurement-to-inventory flow.
type Service struct {
	repo      RepositoryPort
	materials MaterialPort
	vendors   VendorPort
	ledger    *inventory.Ledger
	notifier  NotifierPort
	audit     AuditPort
	cfg       ServiceConfig
}

// NewService constructs the procurement service.
func NewService(repo RepositoryPort, materials MaterialPort, vendors VendorPort, ledger *inventory.Ledger, notifier NotifierPort, audit AuditPort, cfg ServiceConfig) *Service {
	if cfg.ReceiptRetryMax <= 0 {
		cfg.ReceiptRetryMax = 3
	}
	if ledger == nil {
		ledger = inventory.NewLedger(true)
	}
	return &Service{repo: repo, materials: materials, vendors: vendors, ledger: ledger, notifier: notifier, audit: audit, cfg: cfg}
}

// CreatePRInput describes a purchase request creation payload.
type CreatePRInput struct {
	Number      string
	Type        PurchaseType
	RequestedBy string
	Note        string
	Lines       []PRLineInput
}

// PRLineInput describes one requested line.
type PRLineInput struct {
	MaterialID int64
	Quantity   decimal.Decimal
	UnitPrice  decimal.Decimal
}

// POLineInput describes one ordered line.
type POLineInput struct {
	MaterialID int64
	Quantity   decimal.Decimal
	UnitPrice  decimal.Decimal
}

// CreatePOInput creates an order directly against a vendor.
type CreatePOInput struct {
	Number   string
	VendorID int64
	Note     string
	Terms    TotalParams
	Lines    []POLineInput
}

// CreatePOFromPRInput escalates an approved stock-requisition request.
type CreatePOFromPRInput struct {
	PRID     int64
	Number   string
	VendorID int64
	Note     string
	Terms    TotalParams
}

// CreateReceiptInput describes a goods receipt creation payload.
type CreateReceiptInput struct {
	Number     string
	POID       int64
	PRID       int64
	VendorID   int64
	ReceivedAt time.Time
	Note       string
	Lines      []ReceiptLineInput
}

// ReceiptLineInput describes one received line.
type ReceiptLineInput struct {
	MaterialID  int64
	POItemID    int64
	QtyReceived decimal.Decimal
	UnitPrice   decimal.Decimal
}

// CreatePurchaseRequest persists the request header and lines.
func (s *Service) CreatePurchaseRequest(ctx context.Context, input CreatePRInput) (PurchaseRequest, error) {
	if input.Type != PurchaseTypeStockRequisition && input.Type != PurchaseTypeDirectPurchase {
		return PurchaseRequest{}, fmt.Errorf("unknown purchase type %q: %w", input.Type, ErrValidation)
	}
	if strings.TrimSpace(input.RequestedBy) == "" {
		return PurchaseRequest{}, fmt.Errorf("requested_by required: %w", ErrValidation)
	}
	if len(input.Lines) == 0 {
		return PurchaseRequest{}, fmt.Errorf("minimal 1 line: %w", ErrValidation)
	}
	if err := s.validateLines(ctx, linesFromPR(input.Lines)); err != nil {
		return PurchaseRequest{}, err
	}
	if input.Number == "" {
		input.Number = generateNumber("PR")
	}
	pr := PurchaseRequest{Number: input.Number, Type: input.Type, Status: PRStatusDraft, RequestedBy: input.RequestedBy, Note: input.Note}
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		prID, err := tx.CreatePR(ctx, pr)
		if err != nil {
			return err
		}
		pr.ID = prID
		for _, line := range input.Lines {
			if err := tx.InsertPRItem(ctx, PRItem{PRID: prID, MaterialID: line.MaterialID, Quantity: line.Quantity, UnitPrice: line.UnitPrice}); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return PurchaseRequest{}, err
	}
	s.recordAudit(ctx, input.RequestedBy, "PR_CREATE", "purchase_request", pr.ID, map[string]any{"number": pr.Number, "type": pr.Type})
	return pr, nil
}

// SubmitPurchaseRequest transitions PR to SUBMITTED.
func (s *Service) SubmitPurchaseRequest(ctx context.Context, prID int64, actor string) error {
	pr, _, err := s.repo.GetPR(ctx, prID)
	if err != nil {
		return err
	}
	if pr.Status != PRStatusDraft {
		return fmt.Errorf("submit requires DRAFT, got %s: %w", pr.Status, ErrInvalidState)
	}
	err = s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		return tx.UpdatePRStatus(ctx, prID, PRStatusSubmitted)
	})
	if err != nil {
		return err
	}
	s.recordAudit(ctx, actor, "PR_SUBMIT", "purchase_request", prID, map[string]any{"number": pr.Number})
	return nil
}

// ApprovePurchaseRequest transitions PR to APPROVED.
func (s *Service) ApprovePurchaseRequest(ctx context.Context, prID int64, approvedBy string) error {
	if strings.TrimSpace(approvedBy) == "" {
		return fmt.Errorf("approver name required: %w", ErrValidation)
	}
	pr, _, err := s.repo.GetPR(ctx, prID)
	if err != nil {
		return err
	}
	if pr.Status != PRStatusSubmitted {
		return fmt.Errorf("approve requires SUBMITTED, got %s: %w", pr.Status, ErrInvalidState)
	}
	err = s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		return tx.UpdatePRStatus(ctx, prID, PRStatusApproved)
	})
	if err != nil {
		return err
	}
	s.recordAudit(ctx, approvedBy, "PR_APPROVE", "purchase_request", prID, map[string]any{"number": pr.Number})
	return nil
}

// CreatePurchaseOrder creates an order directly against a vendor.
func (s *Service) CreatePurchaseOrder(ctx context.Context, input CreatePOInput) (PurchaseOrder, error) {
	if len(input.Lines) == 0 {
		return PurchaseOrder{}, fmt.Errorf("minimal 1 line: %w", ErrValidation)
	}
	if err := s.validateLines(ctx, linesFromPO(input.Lines)); err != nil {
		return PurchaseOrder{}, err
	}
	items := make([]POItem, 0, len(input.Lines))
	for _, line := range input.Lines {
		items = append(items, POItem{
			MaterialID:   line.MaterialID,
			QtyOrdered:   line.Quantity,
			UnitPrice:    line.UnitPrice,
			LineSubtotal: line.Quantity.Mul(line.UnitPrice),
		})
	}
	return s.createOrder(ctx, input.Number, input.VendorID, 0, input.Note, input.Terms, items)
}

// CreatePurchaseOrderFromRequest escalates an approved stock-requisition
// request into an order, pulling its items and prices.
func (s *Service) CreatePurchaseOrderFromRequest(ctx context.Context, input CreatePOFromPRInput) (PurchaseOrder, error) {
	pr, lines, err := s.repo.GetPR(ctx, input.PRID)
	if err != nil {
		return PurchaseOrder{}, err
	}
	if pr.Type != PurchaseTypeStockRequisition {
		return PurchaseOrder{}, fmt.Errorf("direct-purchase request is fulfilled by a receipt, not an order: %w", ErrInvalidState)
	}
	if pr.Status != PRStatusApproved {
		return PurchaseOrder{}, fmt.Errorf("escalation requires APPROVED request, got %s: %w", pr.Status, ErrInvalidState)
	}
	items := make([]POItem, 0, len(lines))
	for _, line := range lines {
		items = append(items, POItem{
			MaterialID:   line.MaterialID,
			QtyOrdered:   line.Quantity,
			UnitPrice:    line.UnitPrice,
			LineSubtotal: line.Quantity.Mul(line.UnitPrice),
		})
	}
	return s.createOrder(ctx, input.Number, input.VendorID, pr.ID, input.Note, input.Terms, items)
}

func (s *Service) createOrder(ctx context.Context, number string, vendorID, prID int64, note string, terms TotalParams, items []POItem) (PurchaseOrder, error) {
	vendor, err := s.vendors.GetVendorSnapshot(ctx, vendorID)
	if err != nil {
		return PurchaseOrder{}, err
	}
	totals := ComputeTotals(items, terms)
	if err := s.checkTotals(totals); err != nil {
		return PurchaseOrder{}, err
	}
	if number == "" {
		number = generateNumber("PO")
	}
	po := PurchaseOrder{
		Number:          number,
		VendorID:        vendor.ID,
		VendorName:      vendor.Name,
		VendorContact:   vendor.Contact,
		Status:          POStatusDraft,
		PRID:            prID,
		TaxPercent:      terms.TaxPercent,
		DiscountType:    defaultDiscountType(terms.DiscountType),
		DiscountPercent: terms.DiscountPercent,
		DiscountAmount:  terms.DiscountAmount,
		Shipping:        terms.Shipping,
		Subtotal:        totals.Subtotal,
		DiscountApplied: totals.DiscountApplied,
		TaxAmount:       totals.TaxAmount,
		TotalAmount:     totals.Total,
		Note:            note,
	}
	err = s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		poID, err := tx.CreatePO(ctx, po)
		if err != nil {
			return err
		}
		po.ID = poID
		for _, item := range items {
			item.POID = poID
			if err := tx.InsertPOItem(ctx, item); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return PurchaseOrder{}, err
	}
	s.recordAudit(ctx, "", "PO_CREATE", "purchase_order", po.ID, map[string]any{"number": po.Number, "from_pr": prID, "total": po.TotalAmount.String()})
	return po, nil
}

// ApprovePurchaseOrder stamps approval metadata on a draft order.
func (s *Service) ApprovePurchaseOrder(ctx context.Context, cmd ApproveOrderCommand) error {
	po, _, err := s.repo.GetPO(ctx, cmd.OrderID)
	if err != nil {
		return err
	}
	now := time.Now().UTC()
	if err := po.Approve(cmd.ApprovedBy, now); err != nil {
		return err
	}
	err = s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		return tx.SetPOApproval(ctx, cmd.OrderID, cmd.ApprovedBy, now)
	})
	if err != nil {
		return err
	}
	s.recordAudit(ctx, cmd.ApprovedBy, "PO_APPROVE", "purchase_order", cmd.OrderID, map[string]any{"number": po.Number})
	return nil
}

// IssuePurchaseOrder transitions an approved draft to ISSUED.
func (s *Service) IssuePurchaseOrder(ctx context.Context, cmd IssueOrderCommand) error {
	po, _, err := s.repo.GetPO(ctx, cmd.OrderID)
	if err != nil {
		return err
	}
	if err := po.Issue(); err != nil {
		return err
	}
	err = s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		return tx.UpdatePOStatus(ctx, cmd.OrderID, POStatusIssued)
	})
	if err != nil {
		return err
	}
	s.recordAudit(ctx, cmd.IssuedBy, "PO_ISSUE", "purchase_order", cmd.OrderID, map[string]any{"number": po.Number})
	return nil
}

// CancelPurchaseOrder terminates an order that has not completed.
func (s *Service) CancelPurchaseOrder(ctx context.Context, cmd CancelOrderCommand) error {
	po, _, err := s.repo.GetPO(ctx, cmd.OrderID)
	if err != nil {
		return err
	}
	if err := po.Cancel(); err != nil {
		return err
	}
	err = s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		return tx.UpdatePOStatus(ctx, cmd.OrderID, POStatusCancelled)
	})
	if err != nil {
		return err
	}
	s.recordAudit(ctx, cmd.CancelledBy, "PO_CANCEL", "purchase_order", cmd.OrderID, map[string]any{"number": po.Number})
	return nil
}

// UpdatePurchaseOrderTerms replaces the discount/tax/shipping parameters of
// a draft order and recomputes the totals from the current items.
func (s *Service) UpdatePurchaseOrderTerms(ctx context.Context, cmd UpdateOrderTermsCommand) (Totals, error) {
	po, items, err := s.repo.GetPO(ctx, cmd.OrderID)
	if err != nil {
		return Totals{}, err
	}
	if po.Status != POStatusDraft {
		return Totals{}, fmt.Errorf("terms are frozen after issue, status %s: %w", po.Status, ErrInvalidState)
	}
	params := TotalParams{
		TaxPercent:      cmd.TaxPercent,
		DiscountType:    defaultDiscountType(cmd.DiscountType),
		DiscountPercent: cmd.DiscountPercent,
		DiscountAmount:  cmd.DiscountAmount,
		Shipping:        cmd.Shipping,
	}
	totals := ComputeTotals(items, params)
	if err := s.checkTotals(totals); err != nil {
		return Totals{}, err
	}
	err = s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		return tx.UpdatePOTerms(ctx, cmd.OrderID, params, totals)
	})
	if err != nil {
		return Totals{}, err
	}
	return totals, nil
}

// CreateGoodsReceipt inserts a draft receipt and lines.
func (s *Service) CreateGoodsReceipt(ctx context.Context, input CreateReceiptInput) (GoodsReceipt, error) {
	if input.POID != 0 && input.PRID != 0 {
		return GoodsReceipt{}, fmt.Errorf("receipt may reference an order or a request, not both: %w", ErrValidation)
	}
	if len(input.Lines) == 0 {
		return GoodsReceipt{}, fmt.Errorf("minimal 1 line: %w", ErrValidation)
	}
	if err := s.validateLines(ctx, linesFromReceipt(input.Lines)); err != nil {
		return GoodsReceipt{}, err
	}

	gr := GoodsReceipt{
		Number:     input.Number,
		POID:       input.POID,
		PRID:       input.PRID,
		Status:     GRStatusDraft,
		ReceivedAt: defaultTime(input.ReceivedAt),
		Note:       input.Note,
	}
	if gr.Number == "" {
		gr.Number = generateNumber("GR")
	}

	var poItems []POItem
	switch {
	case input.POID != 0:
		po, items, err := s.repo.GetPO(ctx, input.POID)
		if err != nil {
			return GoodsReceipt{}, err
		}
		if po.Status != POStatusIssued && po.Status != POStatusPartialReceived {
			return GoodsReceipt{}, fmt.Errorf("order %s is %s, receipts need ISSUED or PARTIAL_RECEIVED: %w", po.Number, po.Status, ErrInvalidState)
		}
		gr.VendorID = po.VendorID
		gr.VendorName = po.VendorName
		gr.VendorContact = po.VendorContact
		poItems = items
	case input.PRID != 0:
		pr, _, err := s.repo.GetPR(ctx, input.PRID)
		if err != nil {
			return GoodsReceipt{}, err
		}
		if pr.Type != PurchaseTypeDirectPurchase {
			return GoodsReceipt{}, fmt.Errorf("request %s is not a direct purchase: %w", pr.Number, ErrInvalidState)
		}
		if pr.Status != PRStatusApproved {
			return GoodsReceipt{}, fmt.Errorf("request %s is %s, receipts need APPROVED: %w", pr.Number, pr.Status, ErrInvalidState)
		}
		fallthrough
	default:
		if input.VendorID != 0 {
			vendor, err := s.vendors.GetVendorSnapshot(ctx, input.VendorID)
			if err != nil {
				return GoodsReceipt{}, err
			}
			gr.VendorID = vendor.ID
			gr.VendorName = vendor.Name
			gr.VendorContact = vendor.Contact
		}
	}

	for _, line := range input.Lines {
		if line.POItemID == 0 {
			continue
		}
		if !poItemBelongs(poItems, line.POItemID) {
			return GoodsReceipt{}, fmt.Errorf("order item %d does not belong to order %d: %w", line.POItemID, input.POID, ErrValidation)
		}
	}

	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		grID, err := tx.CreateReceipt(ctx, gr)
		if err != nil {
			return err
		}
		gr.ID = grID
		for _, line := range input.Lines {
			item := GRItem{
				ReceiptID:   grID,
				MaterialID:  line.MaterialID,
				POItemID:    line.POItemID,
				QtyReceived: line.QtyReceived,
				UnitPrice:   line.UnitPrice,
				LineTotal:   line.QtyReceived.Mul(line.UnitPrice),
			}
			if err := tx.InsertReceiptItem(ctx, item); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return GoodsReceipt{}, err
	}
	s.recordAudit(ctx, "", "GR_CREATE", "goods_receipt", gr.ID, map[string]any{"number": gr.Number, "po_id": gr.POID, "pr_id": gr.PRID})
	return gr, nil
}

// CompleteGoodsReceipt executes the reconciliation protocol as one atomic
// transaction: stock and ledger per line, purchase order line and totals
// reconciliation, request closure with automatic payment, then the receipt
// itself. A conflict aborts and retries the whole protocol, never a step.
func (s *Service) CompleteGoodsReceipt(ctx context.Context, cmd CompleteReceiptCommand) (GoodsReceipt, error) {
	if strings.TrimSpace(cmd.CheckedBy) == "" {
		return GoodsReceipt{}, fmt.Errorf("checked_by required: %w", ErrValidation)
	}
	var (
		gr  GoodsReceipt
		err error
	)
	for attempt := 0; attempt < s.cfg.ReceiptRetryMax; attempt++ {
		gr, err = s.completeReceiptOnce(ctx, cmd)
		if err == nil || !errors.Is(err, shared.ErrConflict) {
			return gr, err
		}
		select {
		case <-ctx.Done():
			return GoodsReceipt{}, ctx.Err()
		case <-time.After(time.Duration(attempt+1) * 50 * time.Millisecond):
		}
	}
	return GoodsReceipt{}, err
}

// completeReceiptOnce runs the protocol a single time. Only a CANCELLED
// order blocks completion here: a draft receipt created while the order was
// still open must apply its quantities even if a concurrent receipt has
// meanwhile driven the order to COMPLETED, otherwise whichever delivery
// loses the race at the row lock would be dropped. New receipts against a
// closed order are rejected at creation instead.
func (s *Service) completeReceiptOnce(ctx context.Context, cmd CompleteReceiptCommand) (GoodsReceipt, error) {
	header, _, err := s.repo.GetReceipt(ctx, cmd.ReceiptID)
	if err != nil {
		return GoodsReceipt{}, err
	}
	if header.Status != GRStatusDraft {
		return GoodsReceipt{}, fmt.Errorf("receipt %s already completed: %w", header.Number, ErrInvalidState)
	}

	evt := ReceiptCompletedEvent{CheckedBy: cmd.CheckedBy}
	var completed GoodsReceipt
	err = s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		gr, err := tx.GetReceiptForUpdate(ctx, cmd.ReceiptID)
		if err != nil {
			return err
		}
		if gr.Status != GRStatusDraft {
			return fmt.Errorf("receipt %s already completed: %w", gr.Number, ErrInvalidState)
		}
		// The key is claimed inside the transaction, so a failed protocol
		// releases it on rollback and never strands a DRAFT receipt.
		if err := tx.InsertIdempotencyKey(ctx, fmt.Sprintf("GR:%s", gr.Number), "procurement.receipt"); err != nil {
			if errors.Is(err, shared.ErrIdempotencyConflict) {
				return fmt.Errorf("receipt %s already completed: %w", gr.Number, ErrInvalidState)
			}
			return err
		}
		items, err := tx.ListReceiptItems(ctx, gr.ID)
		if err != nil {
			return err
		}
		if len(items) == 0 {
			return fmt.Errorf("receipt %s has no lines: %w", gr.Number, ErrValidation)
		}

		// Stock and ledger, one IN row per line snapshotting the new balance.
		for _, item := range items {
			refID := uuid.NewSHA1(uuid.Nil, []byte(fmt.Sprintf("GR:%d:%d", gr.ID, item.ID)))
			if _, err := s.ledger.Post(ctx, tx, inventory.MovementInput{
				MaterialID: item.MaterialID,
				Direction:  inventory.DirectionIn,
				Quantity:   item.QtyReceived,
				UnitPrice:  item.UnitPrice,
				RefNumber:  gr.Number,
				RefID:      refID.String(),
				Operator:   cmd.Operator,
			}); err != nil {
				return err
			}
			evt.Lines = append(evt.Lines, ReceiptLineEvent{MaterialID: item.MaterialID, QtyReceived: item.QtyReceived, UnitPrice: item.UnitPrice})
		}

		// Purchase order reconciliation under snap-to-received.
		if gr.POID != 0 {
			po, err := tx.GetPOForUpdate(ctx, gr.POID)
			if err != nil {
				return err
			}
			if po.Status == POStatusCancelled {
				return fmt.Errorf("order %s is cancelled: %w", po.Number, ErrInvalidState)
			}
			for _, item := range items {
				if item.POItemID == 0 {
					continue
				}
				poItem, err := tx.GetPOItemForUpdate(ctx, item.POItemID)
				if err != nil {
					return err
				}
				if poItem.POID != gr.POID {
					return fmt.Errorf("order item %d does not belong to order %d: %w", item.POItemID, gr.POID, ErrValidation)
				}
				newReceived := poItem.QtyReceived.Add(item.QtyReceived)
				if !s.cfg.AllowOverReceipt && newReceived.GreaterThan(poItem.QtyOrdered) {
					return fmt.Errorf("received %s exceeds ordered %s on item %d: %w", newReceived, poItem.QtyOrdered, poItem.ID, ErrValidation)
				}
				poItem.QtyReceived = newReceived
				poItem.QtyOrdered = newReceived
				poItem.UnitPrice = item.UnitPrice
				poItem.LineSubtotal = poItem.QtyOrdered.Mul(poItem.UnitPrice)
				if err := tx.UpdatePOItem(ctx, poItem); err != nil {
					return err
				}
			}

			poItems, err := tx.ListPOItems(ctx, gr.POID)
			if err != nil {
				return err
			}
			totals := ComputeTotals(poItems, TotalParams{
				TaxPercent:      po.TaxPercent,
				DiscountType:    po.DiscountType,
				DiscountPercent: po.DiscountPercent,
				DiscountAmount:  po.DiscountAmount,
				Shipping:        po.Shipping,
			})
			if err := s.checkTotals(totals); err != nil {
				return err
			}
			if err := tx.UpdatePOTotals(ctx, gr.POID, totals); err != nil {
				return err
			}
			next := po.ReceiveStatus(poItems)
			if next != po.Status {
				if err := tx.UpdatePOStatus(ctx, gr.POID, next); err != nil {
					return err
				}
			}
			evt.OrderID = gr.POID
			evt.OrderStatus = next
		}

		// Direct-purchase bridge: close the request and record full payment.
		if gr.PRID != 0 {
			pr, err := tx.GetPRForUpdate(ctx, gr.PRID)
			if err != nil {
				return err
			}
			if pr.Type != PurchaseTypeDirectPurchase {
				return fmt.Errorf("request %s is not a direct purchase: %w", pr.Number, ErrInvalidState)
			}
			if pr.Status != PRStatusApproved {
				return fmt.Errorf("request %s is %s, completion needs APPROVED: %w", pr.Number, pr.Status, ErrInvalidState)
			}
			if err := tx.UpdatePRStatus(ctx, gr.PRID, PRStatusCompleted); err != nil {
				return err
			}
			amount := decimal.Zero
			for _, item := range items {
				amount = amount.Add(item.QtyReceived.Mul(item.UnitPrice))
			}
			if _, err := tx.CreatePayment(ctx, PurchasePayment{
				Number:        generateNumber("PAY"),
				PRID:          gr.PRID,
				ReceiptNumber: gr.Number,
				Amount:        amount,
				PaidAt:        time.Now().UTC(),
			}); err != nil {
				return err
			}
			evt.RequestID = gr.PRID
		}

		if err := tx.SetReceiptCompleted(ctx, gr.ID, cmd.CheckedBy); err != nil {
			return err
		}
		completed = gr
		completed.Status = GRStatusCompleted
		completed.CheckedBy = cmd.CheckedBy
		return nil
	})
	if err != nil {
		return GoodsReceipt{}, err
	}

	evt.ReceiptID = completed.ID
	evt.Number = completed.Number
	evt.CompletedAt = time.Now().UTC()
	if s.notifier != nil {
		_ = s.notifier.NotifyReceiptCompleted(ctx, evt)
	}
	s.recordAudit(ctx, cmd.Operator, "GR_COMPLETE", "goods_receipt", completed.ID, map[string]any{"number": completed.Number, "checked_by": cmd.CheckedBy})
	return completed, nil
}

// GetPurchaseRequest returns the request and its lines.
func (s *Service) GetPurchaseRequest(ctx context.Context, id int64) (PurchaseRequest, []PRItem, error) {
	return s.repo.GetPR(ctx, id)
}

// GetPurchaseOrder returns the order and its lines.
func (s *Service) GetPurchaseOrder(ctx context.Context, id int64) (PurchaseOrder, []POItem, error) {
	return s.repo.GetPO(ctx, id)
}

// GetGoodsReceipt returns the receipt and its lines.
func (s *Service) GetGoodsReceipt(ctx context.Context, id int64) (GoodsReceipt, []GRItem, error) {
	return s.repo.GetReceipt(ctx, id)
}

// ListPurchaseOrders returns a page of order headers and the match count.
func (s *Service) ListPurchaseOrders(ctx context.Context, filter POFilter) ([]PurchaseOrder, int, error) {
	return s.repo.ListPOs(ctx, filter)
}

// ListGoodsReceipts returns a page of receipt headers and the match count.
func (s *Service) ListGoodsReceipts(ctx context.Context, filter ReceiptFilter) ([]GoodsReceipt, int, error) {
	return s.repo.ListReceipts(ctx, filter)
}

// ListPayments returns the payments recorded against a request.
func (s *Service) ListPayments(ctx context.Context, prID int64) ([]PurchasePayment, error) {
	return s.repo.ListPayments(ctx, prID)
}

func (s *Service) checkTotals(totals Totals) error {
	if !s.cfg.AllowNegativeTotals && totals.DiscountApplied.GreaterThan(totals.Subtotal) {
		return fmt.Errorf("discount %s exceeds subtotal %s: %w", totals.DiscountApplied, totals.Subtotal, ErrValidation)
	}
	return nil
}

type lineRef struct {
	materialID int64
	qty        decimal.Decimal
	price      decimal.Decimal
}

func linesFromPR(lines []PRLineInput) []lineRef {
	out := make([]lineRef, 0, len(lines))
	for _, l := range lines {
		out = append(out, lineRef{materialID: l.MaterialID, qty: l.Quantity, price: l.UnitPrice})
	}
	return out
}

func linesFromPO(lines []POLineInput) []lineRef {
	out := make([]lineRef, 0, len(lines))
	for _, l := range lines {
		out = append(out, lineRef{materialID: l.MaterialID, qty: l.Quantity, price: l.UnitPrice})
	}
	return out
}

func linesFromReceipt(lines []ReceiptLineInput) []lineRef {
	out := make([]lineRef, 0, len(lines))
	for _, l := range lines {
		out = append(out, lineRef{materialID: l.MaterialID, qty: l.QtyReceived, price: l.UnitPrice})
	}
	return out
}

func (s *Service) validateLines(ctx context.Context, lines []lineRef) error {
	for _, line := range lines {
		if line.materialID == 0 {
			return fmt.Errorf("material id required: %w", ErrValidation)
		}
		if !line.qty.IsPositive() {
			return fmt.Errorf("quantity must be positive for material %d: %w", line.materialID, ErrValidation)
		}
		if line.price.IsNegative() {
			return fmt.Errorf("unit price must be >= 0 for material %d: %w", line.materialID, ErrValidation)
		}
		ok, err := s.materials.MaterialExists(ctx, line.materialID)
		if err != nil {
			return err
		}
		if !ok {
			return fmt.Errorf("material %d: %w", line.materialID, ErrNotFound)
		}
	}
	return nil
}

func poItemBelongs(items []POItem, id int64) bool {
	for _, item := range items {
		if item.ID == id {
			return true
		}
	}
	return false
}

func (s *Service) recordAudit(ctx context.Context, operator, action, entity string, entityID int64, meta map[string]any) {
	if s.audit == nil {
		return
	}
	_ = s.audit.Record(ctx, shared.AuditLog{Operator: operator, Action: action, Entity: entity, EntityID: fmt.Sprintf("%d", entityID), Meta: meta})
}

func generateNumber(prefix string) string {
	return fmt.Sprintf("%s-%d", prefix, time.Now().UnixNano())
}

func defaultTime(value time.Time) time.Time {
	if value.IsZero() {
		return time.Now().UTC()
	}
	return value
}

func defaultDiscountType(value DiscountType) DiscountType {
	if value == "" {
		return DiscountNone
	}
	return value
}
