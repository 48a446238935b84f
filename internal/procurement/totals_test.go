package procurement

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
)

func d(value string) decimal.Decimal {
	out, err := decimal.NewFromString(value)
	if err != nil {
		panic(err)
	}
	return out
}

func TestComputeTotalsTaxAndShipping(t *testing.T) {
	items := []POItem{{QtyOrdered: d("100"), UnitPrice: d("1000")}}
	totals := ComputeTotals(items, TotalParams{
		TaxPercent:   d("11"),
		DiscountType: DiscountNone,
		Shipping:     d("5000"),
	})

	require.True(t, totals.Subtotal.Equal(d("100000")), "subtotal %s", totals.Subtotal)
	require.True(t, totals.DiscountApplied.IsZero())
	require.True(t, totals.TaxAmount.Equal(d("11000")), "tax %s", totals.TaxAmount)
	require.True(t, totals.Total.Equal(d("116000")), "total %s", totals.Total)
}

func TestComputeTotalsPercentDiscount(t *testing.T) {
	items := []POItem{{QtyOrdered: d("100"), UnitPrice: d("1000")}}
	totals := ComputeTotals(items, TotalParams{
		TaxPercent:      d("11"),
		DiscountType:    DiscountPercent,
		DiscountPercent: d("10"),
	})

	require.True(t, totals.DiscountApplied.Equal(d("10000")))
	require.True(t, totals.TaxAmount.Equal(d("9900")), "tax on discounted base, got %s", totals.TaxAmount)
	require.True(t, totals.Total.Equal(d("99900")), "total %s", totals.Total)
}

func TestComputeTotalsAmountDiscount(t *testing.T) {
	items := []POItem{
		{QtyOrdered: d("2"), UnitPrice: d("250.50")},
		{QtyOrdered: d("1"), UnitPrice: d("99")},
	}
	totals := ComputeTotals(items, TotalParams{
		DiscountType:   DiscountAmount,
		DiscountAmount: d("100"),
	})

	require.True(t, totals.Subtotal.Equal(d("600")))
	require.True(t, totals.DiscountApplied.Equal(d("100")))
	require.True(t, totals.TaxAmount.IsZero())
	require.True(t, totals.Total.Equal(d("500")))
}

func TestComputeTotalsDiscountExceedsSubtotal(t *testing.T) {
	items := []POItem{{QtyOrdered: d("1"), UnitPrice: d("100")}}
	totals := ComputeTotals(items, TotalParams{
		TaxPercent:     d("10"),
		DiscountType:   DiscountAmount,
		DiscountAmount: d("150"),
	})

	// The computation never clamps; accepting a negative base is the
	// service's policy decision.
	require.True(t, totals.Total.Equal(d("-55")), "total %s", totals.Total)
}

func TestComputeTotalsDeterministic(t *testing.T) {
	items := []POItem{
		{QtyOrdered: d("3.5"), UnitPrice: d("19.99")},
		{QtyOrdered: d("7"), UnitPrice: d("1.05")},
	}
	params := TotalParams{TaxPercent: d("7.25"), DiscountType: DiscountPercent, DiscountPercent: d("2.5"), Shipping: d("12")}

	first := ComputeTotals(items, params)
	second := ComputeTotals(items, params)
	require.True(t, first.Subtotal.Equal(second.Subtotal))
	require.True(t, first.DiscountApplied.Equal(second.DiscountApplied))
	require.True(t, first.TaxAmount.Equal(second.TaxAmount))
	require.True(t, first.Total.Equal(second.Total))
}

func TestComputeTotalsEmptyItems(t *testing.T) {
	totals := ComputeTotals(nil, TotalParams{TaxPercent: d("11"), Shipping: d("5000")})
	require.True(t, totals.Subtotal.IsZero())
	require.True(t, totals.Total.Equal(d("5000")))
}
