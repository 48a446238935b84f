package procurement

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/forgeline-erp/forgeline-erp/internal/shared"
)

func TestOrderApproveIssueFlow(t *testing.T) {
	po := PurchaseOrder{Status: POStatusDraft}

	require.ErrorIs(t, po.Issue(), shared.ErrInvalidState)

	require.ErrorIs(t, po.Approve("  ", time.Now()), shared.ErrValidation)
	require.NoError(t, po.Approve("budi", time.Now()))
	require.Equal(t, POStatusDraft, po.Status, "approval must not change status")

	require.NoError(t, po.Issue())
	require.Equal(t, POStatusIssued, po.Status)

	require.ErrorIs(t, po.Issue(), shared.ErrInvalidState)
	require.ErrorIs(t, po.Approve("budi", time.Now()), shared.ErrInvalidState)
}

func TestOrderCancelRules(t *testing.T) {
	for _, status := range []POStatus{POStatusDraft, POStatusIssued, POStatusPartialReceived} {
		po := PurchaseOrder{Status: status}
		require.NoError(t, po.Cancel(), "cancel from %s", status)
		require.Equal(t, POStatusCancelled, po.Status)
	}
	for _, status := range []POStatus{POStatusCompleted, POStatusCancelled} {
		po := PurchaseOrder{Status: status}
		require.ErrorIs(t, po.Cancel(), shared.ErrInvalidState, "cancel from %s", status)
	}
}

func TestReceiveStatusDerivation(t *testing.T) {
	po := PurchaseOrder{Status: POStatusIssued}

	require.Equal(t, POStatusIssued, po.ReceiveStatus(nil))

	partial := []POItem{
		{QtyOrdered: d("10"), QtyReceived: d("10")},
		{QtyOrdered: d("5"), QtyReceived: d("0")},
	}
	require.Equal(t, POStatusPartialReceived, po.ReceiveStatus(partial))

	complete := []POItem{
		{QtyOrdered: d("10"), QtyReceived: d("10")},
		{QtyOrdered: d("5"), QtyReceived: d("5")},
	}
	require.Equal(t, POStatusCompleted, po.ReceiveStatus(complete))

	untouched := []POItem{{QtyOrdered: d("10"), QtyReceived: d("0")}}
	require.Equal(t, POStatusIssued, po.ReceiveStatus(untouched))
}
