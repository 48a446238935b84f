package procurement

import (
	"context"
	"fmt"
	"sort"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/forgeline-erp/forgeline-erp/internal/inventory"
	"github.com/forgeline-erp/forgeline-erp/internal/shared"
)

// fakeRepo keeps every table in memory and mimics transactional rollback by
// restoring a snapshot when the unit-of-work callback fails.
type fakeRepo struct {
	nextID   int64
	stocks   map[int64]decimal.Decimal
	ledger   []inventory.Transaction
	prs      map[int64]PurchaseRequest
	prItems  map[int64][]PRItem
	pos      map[int64]PurchaseOrder
	poItems  map[int64]POItem
	grs      map[int64]GoodsReceipt
	grItems  map[int64][]GRItem
	payments []PurchasePayment
	idemKeys map[string]string

	// conflicts injects this many transaction conflicts before letting
	// the unit of work run.
	conflicts int
}

func newFakeRepo() *fakeRepo {
	return &fakeRepo{
		stocks:   map[int64]decimal.Decimal{},
		prs:      map[int64]PurchaseRequest{},
		prItems:  map[int64][]PRItem{},
		pos:      map[int64]PurchaseOrder{},
		poItems:  map[int64]POItem{},
		grs:      map[int64]GoodsReceipt{},
		grItems:  map[int64][]GRItem{},
		idemKeys: map[string]string{},
	}
}

func (f *fakeRepo) id() int64 {
	f.nextID++
	return f.nextID
}

func (f *fakeRepo) snapshot() *fakeRepo {
	clone := newFakeRepo()
	clone.nextID = f.nextID
	for k, v := range f.stocks {
		clone.stocks[k] = v
	}
	clone.ledger = append([]inventory.Transaction(nil), f.ledger...)
	for k, v := range f.prs {
		clone.prs[k] = v
	}
	for k, v := range f.prItems {
		clone.prItems[k] = append([]PRItem(nil), v...)
	}
	for k, v := range f.pos {
		clone.pos[k] = v
	}
	for k, v := range f.poItems {
		clone.poItems[k] = v
	}
	for k, v := range f.grs {
		clone.grs[k] = v
	}
	for k, v := range f.grItems {
		clone.grItems[k] = append([]GRItem(nil), v...)
	}
	clone.payments = append([]PurchasePayment(nil), f.payments...)
	for k, v := range f.idemKeys {
		clone.idemKeys[k] = v
	}
	return clone
}

func (f *fakeRepo) restore(snap *fakeRepo) {
	f.nextID = snap.nextID
	f.stocks = snap.stocks
	f.ledger = snap.ledger
	f.prs = snap.prs
	f.prItems = snap.prItems
	f.pos = snap.pos
	f.poItems = snap.poItems
	f.grs = snap.grs
	f.grItems = snap.grItems
	f.payments = snap.payments
	f.idemKeys = snap.idemKeys
}

func (f *fakeRepo) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	if f.conflicts > 0 {
		f.conflicts--
		return fmt.Errorf("could not serialize access: %w", shared.ErrConflict)
	}
	snap := f.snapshot()
	if err := fn(ctx, f); err != nil {
		f.restore(snap)
		return err
	}
	return nil
}

func (f *fakeRepo) GetStockForUpdate(_ context.Context, materialID int64) (inventory.Stock, error) {
	onHand, ok := f.stocks[materialID]
	if !ok {
		return inventory.Stock{}, inventory.ErrMaterialNotFound
	}
	return inventory.Stock{OnHand: onHand}, nil
}

func (f *fakeRepo) UpdateStock(_ context.Context, materialID int64, newStock inventory.Stock) error {
	if _, ok := f.stocks[materialID]; !ok {
		return inventory.ErrMaterialNotFound
	}
	f.stocks[materialID] = newStock.OnHand
	return nil
}

func (f *fakeRepo) InsertTransaction(_ context.Context, entry inventory.Transaction) (int64, error) {
	entry.ID = f.id()
	f.ledger = append(f.ledger, entry)
	return entry.ID, nil
}

func (f *fakeRepo) CreatePR(_ context.Context, pr PurchaseRequest) (int64, error) {
	pr.ID = f.id()
	f.prs[pr.ID] = pr
	return pr.ID, nil
}

func (f *fakeRepo) InsertPRItem(_ context.Context, item PRItem) error {
	item.ID = f.id()
	f.prItems[item.PRID] = append(f.prItems[item.PRID], item)
	return nil
}

func (f *fakeRepo) UpdatePRStatus(_ context.Context, prID int64, status PRStatus) error {
	pr, ok := f.prs[prID]
	if !ok {
		return ErrNotFound
	}
	pr.Status = status
	f.prs[prID] = pr
	return nil
}

func (f *fakeRepo) GetPRForUpdate(_ context.Context, prID int64) (PurchaseRequest, error) {
	pr, ok := f.prs[prID]
	if !ok {
		return PurchaseRequest{}, ErrNotFound
	}
	return pr, nil
}

func (f *fakeRepo) CreatePO(_ context.Context, po PurchaseOrder) (int64, error) {
	po.ID = f.id()
	f.pos[po.ID] = po
	return po.ID, nil
}

func (f *fakeRepo) InsertPOItem(_ context.Context, item POItem) error {
	item.ID = f.id()
	f.poItems[item.ID] = item
	return nil
}

func (f *fakeRepo) UpdatePOStatus(_ context.Context, poID int64, status POStatus) error {
	po, ok := f.pos[poID]
	if !ok {
		return ErrNotFound
	}
	po.Status = status
	f.pos[poID] = po
	return nil
}

func (f *fakeRepo) SetPOApproval(_ context.Context, poID int64, approvedBy string, at time.Time) error {
	po, ok := f.pos[poID]
	if !ok {
		return ErrNotFound
	}
	po.ApprovedBy = approvedBy
	po.ApprovalDate = at
	f.pos[poID] = po
	return nil
}

func (f *fakeRepo) GetPOForUpdate(_ context.Context, poID int64) (PurchaseOrder, error) {
	po, ok := f.pos[poID]
	if !ok {
		return PurchaseOrder{}, ErrNotFound
	}
	return po, nil
}

func (f *fakeRepo) ListPOItems(_ context.Context, poID int64) ([]POItem, error) {
	var items []POItem
	for _, item := range f.poItems {
		if item.POID == poID {
			items = append(items, item)
		}
	}
	sort.Slice(items, func(i, j int) bool { return items[i].ID < items[j].ID })
	return items, nil
}

func (f *fakeRepo) GetPOItemForUpdate(_ context.Context, itemID int64) (POItem, error) {
	item, ok := f.poItems[itemID]
	if !ok {
		return POItem{}, ErrNotFound
	}
	return item, nil
}

func (f *fakeRepo) UpdatePOItem(_ context.Context, item POItem) error {
	if _, ok := f.poItems[item.ID]; !ok {
		return ErrNotFound
	}
	f.poItems[item.ID] = item
	return nil
}

func (f *fakeRepo) UpdatePOTerms(ctx context.Context, poID int64, params TotalParams, totals Totals) error {
	po, ok := f.pos[poID]
	if !ok {
		return ErrNotFound
	}
	po.TaxPercent = params.TaxPercent
	po.DiscountType = params.DiscountType
	po.DiscountPercent = params.DiscountPercent
	po.DiscountAmount = params.DiscountAmount
	po.Shipping = params.Shipping
	f.pos[poID] = po
	return f.UpdatePOTotals(ctx, poID, totals)
}

func (f *fakeRepo) UpdatePOTotals(_ context.Context, poID int64, totals Totals) error {
	po, ok := f.pos[poID]
	if !ok {
		return ErrNotFound
	}
	po.Subtotal = totals.Subtotal
	po.DiscountApplied = totals.DiscountApplied
	po.TaxAmount = totals.TaxAmount
	po.TotalAmount = totals.Total
	f.pos[poID] = po
	return nil
}

func (f *fakeRepo) CreateReceipt(_ context.Context, gr GoodsReceipt) (int64, error) {
	gr.ID = f.id()
	f.grs[gr.ID] = gr
	return gr.ID, nil
}

func (f *fakeRepo) InsertReceiptItem(_ context.Context, item GRItem) error {
	item.ID = f.id()
	f.grItems[item.ReceiptID] = append(f.grItems[item.ReceiptID], item)
	return nil
}

func (f *fakeRepo) GetReceiptForUpdate(_ context.Context, grID int64) (GoodsReceipt, error) {
	gr, ok := f.grs[grID]
	if !ok {
		return GoodsReceipt{}, ErrNotFound
	}
	return gr, nil
}

func (f *fakeRepo) ListReceiptItems(_ context.Context, grID int64) ([]GRItem, error) {
	return append([]GRItem(nil), f.grItems[grID]...), nil
}

func (f *fakeRepo) SetReceiptCompleted(_ context.Context, grID int64, checkedBy string) error {
	gr, ok := f.grs[grID]
	if !ok {
		return ErrNotFound
	}
	if gr.Status != GRStatusDraft {
		return ErrInvalidState
	}
	gr.Status = GRStatusCompleted
	gr.CheckedBy = checkedBy
	f.grs[grID] = gr
	return nil
}

func (f *fakeRepo) InsertIdempotencyKey(_ context.Context, key, module string) error {
	if _, ok := f.idemKeys[key]; ok {
		return shared.ErrIdempotencyConflict
	}
	f.idemKeys[key] = module
	return nil
}

func (f *fakeRepo) CreatePayment(_ context.Context, payment PurchasePayment) (int64, error) {
	payment.ID = f.id()
	f.payments = append(f.payments, payment)
	return payment.ID, nil
}

func (f *fakeRepo) GetPR(_ context.Context, id int64) (PurchaseRequest, []PRItem, error) {
	pr, ok := f.prs[id]
	if !ok {
		return PurchaseRequest{}, nil, ErrNotFound
	}
	return pr, append([]PRItem(nil), f.prItems[id]...), nil
}

func (f *fakeRepo) GetPO(ctx context.Context, id int64) (PurchaseOrder, []POItem, error) {
	po, ok := f.pos[id]
	if !ok {
		return PurchaseOrder{}, nil, ErrNotFound
	}
	items, _ := f.ListPOItems(ctx, id)
	return po, items, nil
}

func (f *fakeRepo) GetReceipt(_ context.Context, id int64) (GoodsReceipt, []GRItem, error) {
	gr, ok := f.grs[id]
	if !ok {
		return GoodsReceipt{}, nil, ErrNotFound
	}
	return gr, append([]GRItem(nil), f.grItems[id]...), nil
}

func (f *fakeRepo) ListPOs(context.Context, POFilter) ([]PurchaseOrder, int, error) {
	return nil, 0, nil
}

func (f *fakeRepo) ListReceipts(context.Context, ReceiptFilter) ([]GoodsReceipt, int, error) {
	return nil, 0, nil
}

func (f *fakeRepo) ListPayments(_ context.Context, prID int64) ([]PurchasePayment, error) {
	var out []PurchasePayment
	for _, p := range f.payments {
		if p.PRID == prID {
			out = append(out, p)
		}
	}
	return out, nil
}

func (f *fakeRepo) GetPODocument(context.Context, int64) (PurchaseOrderDocument, error) {
	return PurchaseOrderDocument{}, nil
}

func (f *fakeRepo) GetGRDocument(context.Context, int64) (GoodsReceiptDocument, error) {
	return GoodsReceiptDocument{}, nil
}

func (f *fakeRepo) GetPRDocument(context.Context, int64) (PurchaseRequestDocument, error) {
	return PurchaseRequestDocument{}, nil
}

type fakeMaterials struct {
	known map[int64]bool
}

func (f *fakeMaterials) MaterialExists(_ context.Context, id int64) (bool, error) {
	return f.known[id], nil
}

type fakeVendors struct{}

func (fakeVendors) GetVendorSnapshot(_ context.Context, id int64) (VendorSnapshot, error) {
	return VendorSnapshot{ID: id, Name: "PT Sumber Makmur", Contact: "021-555-0101"}, nil
}

type fakeNotifier struct {
	events []ReceiptCompletedEvent
}

func (f *fakeNotifier) NotifyReceiptCompleted(_ context.Context, evt ReceiptCompletedEvent) error {
	f.events = append(f.events, evt)
	return nil
}

func newTestService(repo *fakeRepo, cfg ServiceConfig) (*Service, *fakeNotifier) {
	notifier := &fakeNotifier{}
	materials := &fakeMaterials{known: map[int64]bool{}}
	for id := range repo.stocks {
		materials.known[id] = true
	}
	svc := NewService(repo, materials, fakeVendors{}, inventory.NewLedger(true), notifier, nil, cfg)
	return svc, notifier
}

func defaultConfig() ServiceConfig {
	return ServiceConfig{AllowNegativeTotals: true, AllowOverReceipt: true, ReceiptRetryMax: 3}
}

func issuedOrder(t *testing.T, svc *Service, lines []POLineInput, terms TotalParams) PurchaseOrder {
	t.Helper()
	ctx := context.Background()
	po, err := svc.CreatePurchaseOrder(ctx, CreatePOInput{VendorID: 7, Terms: terms, Lines: lines})
	require.NoError(t, err)
	require.NoError(t, svc.ApprovePurchaseOrder(ctx, ApproveOrderCommand{OrderID: po.ID, ApprovedBy: "budi"}))
	require.NoError(t, svc.IssuePurchaseOrder(ctx, IssueOrderCommand{OrderID: po.ID, IssuedBy: "budi"}))
	return po
}

func TestCompleteGoodsReceiptReconcilesEverything(t *testing.T) {
	ctx := context.Background()
	repo := newFakeRepo()
	repo.stocks[1] = decimal.Zero
	svc, notifier := newTestService(repo, defaultConfig())

	po := issuedOrder(t, svc,
		[]POLineInput{{MaterialID: 1, Quantity: d("100"), UnitPrice: d("1000")}},
		TotalParams{TaxPercent: d("11"), DiscountType: DiscountNone, Shipping: d("5000")})

	_, items, err := svc.GetPurchaseOrder(ctx, po.ID)
	require.NoError(t, err)
	require.Len(t, items, 1)

	gr, err := svc.CreateGoodsReceipt(ctx, CreateReceiptInput{
		POID: po.ID,
		Lines: []ReceiptLineInput{
			{MaterialID: 1, POItemID: items[0].ID, QtyReceived: d("80"), UnitPrice: d("1000")},
		},
	})
	require.NoError(t, err)
	require.Equal(t, GRStatusDraft, gr.Status)
	require.Equal(t, "PT Sumber Makmur", gr.VendorName)

	completed, err := svc.CompleteGoodsReceipt(ctx, CompleteReceiptCommand{ReceiptID: gr.ID, CheckedBy: "sari", Operator: "sari"})
	require.NoError(t, err)
	require.Equal(t, GRStatusCompleted, completed.Status)
	require.Equal(t, "sari", completed.CheckedBy)

	// Stock moved and one immutable ledger row was appended.
	require.True(t, repo.stocks[1].Equal(d("80")), "stock %s", repo.stocks[1])
	require.Len(t, repo.ledger, 1)
	require.Equal(t, inventory.DirectionIn, repo.ledger[0].Direction)
	require.True(t, repo.ledger[0].ResultingStock.Equal(d("80")))
	require.Equal(t, gr.Number, repo.ledger[0].RefNumber)

	// Snap-to-received: the order now records what actually arrived.
	after, afterItems, err := svc.GetPurchaseOrder(ctx, po.ID)
	require.NoError(t, err)
	require.Equal(t, POStatusCompleted, after.Status)
	require.True(t, afterItems[0].QtyOrdered.Equal(d("80")))
	require.True(t, afterItems[0].QtyReceived.Equal(d("80")))
	require.True(t, afterItems[0].LineSubtotal.Equal(d("80000")))

	// Totals recomputed from the snapped items.
	require.True(t, after.Subtotal.Equal(d("80000")), "subtotal %s", after.Subtotal)
	require.True(t, after.TaxAmount.Equal(d("8800")))
	require.True(t, after.TotalAmount.Equal(d("93800")), "total %s", after.TotalAmount)

	require.Len(t, notifier.events, 1)
	require.Equal(t, POStatusCompleted, notifier.events[0].OrderStatus)
}

func TestCompleteGoodsReceiptPartialLeavesOrderOpen(t *testing.T) {
	ctx := context.Background()
	repo := newFakeRepo()
	repo.stocks[1] = decimal.Zero
	repo.stocks[2] = d("10")
	svc, _ := newTestService(repo, defaultConfig())

	po := issuedOrder(t, svc, []POLineInput{
		{MaterialID: 1, Quantity: d("50"), UnitPrice: d("200")},
		{MaterialID: 2, Quantity: d("30"), UnitPrice: d("150")},
	}, TotalParams{})

	_, items, err := svc.GetPurchaseOrder(ctx, po.ID)
	require.NoError(t, err)

	gr, err := svc.CreateGoodsReceipt(ctx, CreateReceiptInput{
		POID:  po.ID,
		Lines: []ReceiptLineInput{{MaterialID: 1, POItemID: items[0].ID, QtyReceived: d("50"), UnitPrice: d("200")}},
	})
	require.NoError(t, err)

	_, err = svc.CompleteGoodsReceipt(ctx, CompleteReceiptCommand{ReceiptID: gr.ID, CheckedBy: "sari"})
	require.NoError(t, err)

	after, _, err := svc.GetPurchaseOrder(ctx, po.ID)
	require.NoError(t, err)
	require.Equal(t, POStatusPartialReceived, after.Status)
	require.True(t, repo.stocks[2].Equal(d("10")), "untouched line must not move stock")
}

func TestCompleteGoodsReceiptTwiceRejected(t *testing.T) {
	ctx := context.Background()
	repo := newFakeRepo()
	repo.stocks[1] = decimal.Zero
	svc, _ := newTestService(repo, defaultConfig())

	po := issuedOrder(t, svc, []POLineInput{{MaterialID: 1, Quantity: d("10"), UnitPrice: d("5")}}, TotalParams{})
	_, items, err := svc.GetPurchaseOrder(ctx, po.ID)
	require.NoError(t, err)
	gr, err := svc.CreateGoodsReceipt(ctx, CreateReceiptInput{
		POID:  po.ID,
		Lines: []ReceiptLineInput{{MaterialID: 1, POItemID: items[0].ID, QtyReceived: d("10"), UnitPrice: d("5")}},
	})
	require.NoError(t, err)

	_, err = svc.CompleteGoodsReceipt(ctx, CompleteReceiptCommand{ReceiptID: gr.ID, CheckedBy: "sari"})
	require.NoError(t, err)

	_, err = svc.CompleteGoodsReceipt(ctx, CompleteReceiptCommand{ReceiptID: gr.ID, CheckedBy: "sari"})
	require.ErrorIs(t, err, shared.ErrInvalidState)

	// No double-application.
	require.Len(t, repo.ledger, 1)
	require.True(t, repo.stocks[1].Equal(d("10")))
}

func TestCompleteGoodsReceiptRetriesOnConflict(t *testing.T) {
	ctx := context.Background()
	repo := newFakeRepo()
	repo.stocks[1] = decimal.Zero
	svc, _ := newTestService(repo, defaultConfig())

	po := issuedOrder(t, svc, []POLineInput{{MaterialID: 1, Quantity: d("10"), UnitPrice: d("5")}}, TotalParams{})
	_, items, err := svc.GetPurchaseOrder(ctx, po.ID)
	require.NoError(t, err)
	gr, err := svc.CreateGoodsReceipt(ctx, CreateReceiptInput{
		POID:  po.ID,
		Lines: []ReceiptLineInput{{MaterialID: 1, POItemID: items[0].ID, QtyReceived: d("10"), UnitPrice: d("5")}},
	})
	require.NoError(t, err)

	repo.conflicts = 2
	_, err = svc.CompleteGoodsReceipt(ctx, CompleteReceiptCommand{ReceiptID: gr.ID, CheckedBy: "sari"})
	require.NoError(t, err)
	require.Len(t, repo.ledger, 1)
}

func TestCompleteGoodsReceiptGivesUpAfterRetryBudget(t *testing.T) {
	ctx := context.Background()
	repo := newFakeRepo()
	repo.stocks[1] = decimal.Zero
	svc, _ := newTestService(repo, defaultConfig())

	po := issuedOrder(t, svc, []POLineInput{{MaterialID: 1, Quantity: d("10"), UnitPrice: d("5")}}, TotalParams{})
	_, items, err := svc.GetPurchaseOrder(ctx, po.ID)
	require.NoError(t, err)
	gr, err := svc.CreateGoodsReceipt(ctx, CreateReceiptInput{
		POID:  po.ID,
		Lines: []ReceiptLineInput{{MaterialID: 1, POItemID: items[0].ID, QtyReceived: d("10"), UnitPrice: d("5")}},
	})
	require.NoError(t, err)

	repo.conflicts = 10
	_, err = svc.CompleteGoodsReceipt(ctx, CompleteReceiptCommand{ReceiptID: gr.ID, CheckedBy: "sari"})
	require.ErrorIs(t, err, shared.ErrConflict)
	require.Empty(t, repo.ledger)
	require.True(t, repo.stocks[1].IsZero())
}

func TestCompleteGoodsReceiptCancelledOrderRollsBack(t *testing.T) {
	ctx := context.Background()
	repo := newFakeRepo()
	repo.stocks[1] = decimal.Zero
	svc, _ := newTestService(repo, defaultConfig())

	po := issuedOrder(t, svc, []POLineInput{{MaterialID: 1, Quantity: d("10"), UnitPrice: d("5")}}, TotalParams{})
	_, items, err := svc.GetPurchaseOrder(ctx, po.ID)
	require.NoError(t, err)
	gr, err := svc.CreateGoodsReceipt(ctx, CreateReceiptInput{
		POID:  po.ID,
		Lines: []ReceiptLineInput{{MaterialID: 1, POItemID: items[0].ID, QtyReceived: d("10"), UnitPrice: d("5")}},
	})
	require.NoError(t, err)

	require.NoError(t, svc.CancelPurchaseOrder(ctx, CancelOrderCommand{OrderID: po.ID, CancelledBy: "budi"}))

	_, err = svc.CompleteGoodsReceipt(ctx, CompleteReceiptCommand{ReceiptID: gr.ID, CheckedBy: "sari"})
	require.ErrorIs(t, err, shared.ErrInvalidState)

	// Nothing leaked out of the aborted unit of work, including the
	// idempotency claim: the still-DRAFT receipt stays completable.
	require.Empty(t, repo.ledger)
	require.True(t, repo.stocks[1].IsZero())
	require.Equal(t, GRStatusDraft, repo.grs[gr.ID].Status)
	require.Empty(t, repo.idemKeys)
}

func TestTwoReceiptsOnSameOrderLineSumQuantities(t *testing.T) {
	ctx := context.Background()
	repo := newFakeRepo()
	repo.stocks[1] = decimal.Zero
	svc, _ := newTestService(repo, defaultConfig())

	po := issuedOrder(t, svc, []POLineInput{{MaterialID: 1, Quantity: d("100"), UnitPrice: d("1000")}}, TotalParams{})
	_, items, err := svc.GetPurchaseOrder(ctx, po.ID)
	require.NoError(t, err)

	// Both deliveries arrive while the order is still open.
	first, err := svc.CreateGoodsReceipt(ctx, CreateReceiptInput{
		POID:  po.ID,
		Lines: []ReceiptLineInput{{MaterialID: 1, POItemID: items[0].ID, QtyReceived: d("60"), UnitPrice: d("1000")}},
	})
	require.NoError(t, err)
	second, err := svc.CreateGoodsReceipt(ctx, CreateReceiptInput{
		POID:  po.ID,
		Lines: []ReceiptLineInput{{MaterialID: 1, POItemID: items[0].ID, QtyReceived: d("40"), UnitPrice: d("1000")}},
	})
	require.NoError(t, err)

	_, err = svc.CompleteGoodsReceipt(ctx, CompleteReceiptCommand{ReceiptID: first.ID, CheckedBy: "sari"})
	require.NoError(t, err)
	_, err = svc.CompleteGoodsReceipt(ctx, CompleteReceiptCommand{ReceiptID: second.ID, CheckedBy: "sari"})
	require.NoError(t, err)

	// Received quantity accumulates across receipts; the second delivery
	// must never overwrite the first.
	_, afterItems, err := svc.GetPurchaseOrder(ctx, po.ID)
	require.NoError(t, err)
	require.True(t, afterItems[0].QtyReceived.Equal(d("100")), "received %s", afterItems[0].QtyReceived)
	require.True(t, repo.stocks[1].Equal(d("100")), "stock %s", repo.stocks[1])
	require.Len(t, repo.ledger, 2)
	require.True(t, repo.ledger[0].ResultingStock.Equal(d("60")))
	require.True(t, repo.ledger[1].ResultingStock.Equal(d("100")))
}

func TestCompleteGoodsReceiptClaimedKeyRejected(t *testing.T) {
	ctx := context.Background()
	repo := newFakeRepo()
	repo.stocks[1] = decimal.Zero
	svc, _ := newTestService(repo, defaultConfig())

	po := issuedOrder(t, svc, []POLineInput{{MaterialID: 1, Quantity: d("10"), UnitPrice: d("5")}}, TotalParams{})
	_, items, err := svc.GetPurchaseOrder(ctx, po.ID)
	require.NoError(t, err)
	gr, err := svc.CreateGoodsReceipt(ctx, CreateReceiptInput{
		POID:  po.ID,
		Lines: []ReceiptLineInput{{MaterialID: 1, POItemID: items[0].ID, QtyReceived: d("10"), UnitPrice: d("5")}},
	})
	require.NoError(t, err)

	repo.idemKeys["GR:"+gr.Number] = "procurement.receipt"

	_, err = svc.CompleteGoodsReceipt(ctx, CompleteReceiptCommand{ReceiptID: gr.ID, CheckedBy: "sari"})
	require.ErrorIs(t, err, shared.ErrInvalidState)
	require.Empty(t, repo.ledger)
	require.True(t, repo.stocks[1].IsZero())
}

func TestCompleteGoodsReceiptOverReceiptPolicy(t *testing.T) {
	ctx := context.Background()
	repo := newFakeRepo()
	repo.stocks[1] = decimal.Zero
	cfg := defaultConfig()
	cfg.AllowOverReceipt = false
	svc, _ := newTestService(repo, cfg)

	po := issuedOrder(t, svc, []POLineInput{{MaterialID: 1, Quantity: d("10"), UnitPrice: d("5")}}, TotalParams{})
	_, items, err := svc.GetPurchaseOrder(ctx, po.ID)
	require.NoError(t, err)
	gr, err := svc.CreateGoodsReceipt(ctx, CreateReceiptInput{
		POID:  po.ID,
		Lines: []ReceiptLineInput{{MaterialID: 1, POItemID: items[0].ID, QtyReceived: d("12"), UnitPrice: d("5")}},
	})
	require.NoError(t, err)

	_, err = svc.CompleteGoodsReceipt(ctx, CompleteReceiptCommand{ReceiptID: gr.ID, CheckedBy: "sari"})
	require.ErrorIs(t, err, shared.ErrValidation)
	require.True(t, repo.stocks[1].IsZero())
}

func TestIssueRequiresApproval(t *testing.T) {
	ctx := context.Background()
	repo := newFakeRepo()
	repo.stocks[1] = decimal.Zero
	svc, _ := newTestService(repo, defaultConfig())

	po, err := svc.CreatePurchaseOrder(ctx, CreatePOInput{
		VendorID: 7,
		Lines:    []POLineInput{{MaterialID: 1, Quantity: d("1"), UnitPrice: d("1")}},
	})
	require.NoError(t, err)

	err = svc.IssuePurchaseOrder(ctx, IssueOrderCommand{OrderID: po.ID, IssuedBy: "budi"})
	require.ErrorIs(t, err, shared.ErrInvalidState)
}

func TestCancelIssuedOrderThenReceiptCreationFails(t *testing.T) {
	ctx := context.Background()
	repo := newFakeRepo()
	repo.stocks[1] = decimal.Zero
	svc, _ := newTestService(repo, defaultConfig())

	po := issuedOrder(t, svc, []POLineInput{{MaterialID: 1, Quantity: d("1"), UnitPrice: d("1")}}, TotalParams{})
	require.NoError(t, svc.CancelPurchaseOrder(ctx, CancelOrderCommand{OrderID: po.ID, CancelledBy: "budi"}))

	_, err := svc.CreateGoodsReceipt(ctx, CreateReceiptInput{
		POID:  po.ID,
		Lines: []ReceiptLineInput{{MaterialID: 1, QtyReceived: d("1"), UnitPrice: d("1")}},
	})
	require.ErrorIs(t, err, shared.ErrInvalidState)

	// Terminal states stay terminal.
	err = svc.CancelPurchaseOrder(ctx, CancelOrderCommand{OrderID: po.ID, CancelledBy: "budi"})
	require.ErrorIs(t, err, shared.ErrInvalidState)
}

func TestUpdateTermsOnlyOnDraft(t *testing.T) {
	ctx := context.Background()
	repo := newFakeRepo()
	repo.stocks[1] = decimal.Zero
	svc, _ := newTestService(repo, defaultConfig())

	po, err := svc.CreatePurchaseOrder(ctx, CreatePOInput{
		VendorID: 7,
		Lines:    []POLineInput{{MaterialID: 1, Quantity: d("100"), UnitPrice: d("1000")}},
	})
	require.NoError(t, err)

	totals, err := svc.UpdatePurchaseOrderTerms(ctx, UpdateOrderTermsCommand{
		OrderID:      po.ID,
		TaxPercent:   d("11"),
		DiscountType: DiscountNone,
		Shipping:     d("5000"),
	})
	require.NoError(t, err)
	require.True(t, totals.Total.Equal(d("116000")), "total %s", totals.Total)

	require.NoError(t, svc.ApprovePurchaseOrder(ctx, ApproveOrderCommand{OrderID: po.ID, ApprovedBy: "budi"}))
	require.NoError(t, svc.IssuePurchaseOrder(ctx, IssueOrderCommand{OrderID: po.ID, IssuedBy: "budi"}))

	_, err = svc.UpdatePurchaseOrderTerms(ctx, UpdateOrderTermsCommand{OrderID: po.ID, TaxPercent: d("0")})
	require.ErrorIs(t, err, shared.ErrInvalidState)
}

func TestDirectPurchaseReceiptClosesRequestWithPayment(t *testing.T) {
	ctx := context.Background()
	repo := newFakeRepo()
	repo.stocks[1] = decimal.Zero
	svc, notifier := newTestService(repo, defaultConfig())

	pr, err := svc.CreatePurchaseRequest(ctx, CreatePRInput{
		Type:        PurchaseTypeDirectPurchase,
		RequestedBy: "sari",
		Lines:       []PRLineInput{{MaterialID: 1, Quantity: d("4"), UnitPrice: d("25000")}},
	})
	require.NoError(t, err)
	require.NoError(t, svc.SubmitPurchaseRequest(ctx, pr.ID, "sari"))
	require.NoError(t, svc.ApprovePurchaseRequest(ctx, pr.ID, "budi"))

	gr, err := svc.CreateGoodsReceipt(ctx, CreateReceiptInput{
		PRID:     pr.ID,
		VendorID: 7,
		Lines:    []ReceiptLineInput{{MaterialID: 1, QtyReceived: d("4"), UnitPrice: d("25000")}},
	})
	require.NoError(t, err)

	_, err = svc.CompleteGoodsReceipt(ctx, CompleteReceiptCommand{ReceiptID: gr.ID, CheckedBy: "sari", Operator: "sari"})
	require.NoError(t, err)

	after, _, err := svc.GetPurchaseRequest(ctx, pr.ID)
	require.NoError(t, err)
	require.Equal(t, PRStatusCompleted, after.Status)

	payments, err := svc.ListPayments(ctx, pr.ID)
	require.NoError(t, err)
	require.Len(t, payments, 1)
	require.True(t, payments[0].Amount.Equal(d("100000")), "amount %s", payments[0].Amount)
	require.Equal(t, gr.Number, payments[0].ReceiptNumber)

	require.True(t, repo.stocks[1].Equal(d("4")))
	require.Len(t, notifier.events, 1)
	require.Equal(t, pr.ID, notifier.events[0].RequestID)
}

func TestDirectPurchaseRequestCannotBecomeOrder(t *testing.T) {
	ctx := context.Background()
	repo := newFakeRepo()
	repo.stocks[1] = decimal.Zero
	svc, _ := newTestService(repo, defaultConfig())

	pr, err := svc.CreatePurchaseRequest(ctx, CreatePRInput{
		Type:        PurchaseTypeDirectPurchase,
		RequestedBy: "sari",
		Lines:       []PRLineInput{{MaterialID: 1, Quantity: d("1"), UnitPrice: d("10")}},
	})
	require.NoError(t, err)
	require.NoError(t, svc.SubmitPurchaseRequest(ctx, pr.ID, "sari"))
	require.NoError(t, svc.ApprovePurchaseRequest(ctx, pr.ID, "budi"))

	_, err = svc.CreatePurchaseOrderFromRequest(ctx, CreatePOFromPRInput{PRID: pr.ID, VendorID: 7})
	require.ErrorIs(t, err, shared.ErrInvalidState)
}

func TestCreateReceiptRejectsUnknownMaterial(t *testing.T) {
	ctx := context.Background()
	repo := newFakeRepo()
	repo.stocks[1] = decimal.Zero
	svc, _ := newTestService(repo, defaultConfig())

	po := issuedOrder(t, svc, []POLineInput{{MaterialID: 1, Quantity: d("1"), UnitPrice: d("1")}}, TotalParams{})

	_, err := svc.CreateGoodsReceipt(ctx, CreateReceiptInput{
		POID:  po.ID,
		Lines: []ReceiptLineInput{{MaterialID: 999, QtyReceived: d("1"), UnitPrice: d("1")}},
	})
	require.ErrorIs(t, err, shared.ErrNotFound)
}

func TestCreateOrderRejectsNegativeTotalsWhenDisallowed(t *testing.T) {
	ctx := context.Background()
	repo := newFakeRepo()
	repo.stocks[1] = decimal.Zero
	cfg := defaultConfig()
	cfg.AllowNegativeTotals = false
	svc, _ := newTestService(repo, cfg)

	_, err := svc.CreatePurchaseOrder(ctx, CreatePOInput{
		VendorID: 7,
		Terms:    TotalParams{DiscountType: DiscountAmount, DiscountAmount: d("500")},
		Lines:    []POLineInput{{MaterialID: 1, Quantity: d("1"), UnitPrice: d("100")}},
	})
	require.ErrorIs(t, err, shared.ErrValidation)
}
