package pricing

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func d(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func TestValueMarkup(t *testing.T) {
	v := ValueMarkup(MarkupLine{UnitCost: d("100"), Quantity: d("2"), MarginPct: d("50")})
	assert.True(t, v.UnitSell.Equal(d("150")), "unit sell %s", v.UnitSell)
	assert.True(t, v.LineCost.Equal(d("200")))
	assert.True(t, v.LineSell.Equal(d("300")))
}

func TestValueMarkupZeroQuantityCountsAsOne(t *testing.T) {
	v := ValueMarkup(MarkupLine{UnitCost: d("40"), MarginPct: d("25")})
	assert.True(t, v.UnitSell.Equal(d("50")))
	assert.True(t, v.LineSell.Equal(d("50")))
	assert.True(t, v.LineCost.Equal(d("40")))
}

func TestComputeEstimateTotalsScenario(t *testing.T) {
	values := []MarkupValue{ValueMarkup(MarkupLine{UnitCost: d("100"), Quantity: d("2"), MarginPct: d("50")})}
	totals := ComputeEstimateTotals(values, Discount{Type: DiscountPercent, Value: d("10")}, d("8"))

	assert.True(t, totals.SubtotalSell.Equal(d("300")))
	assert.True(t, totals.SubtotalCost.Equal(d("200")))
	assert.True(t, totals.TotalMargin.Equal(d("100")))
	assert.True(t, totals.DiscountAmount.Equal(d("30")))
	assert.True(t, totals.TaxAmount.Equal(d("21.6")), "tax %s", totals.TaxAmount)
	assert.True(t, totals.Total.Equal(d("291.6")), "total %s", totals.Total)
}

func TestComputeEstimateTotalsFixedDiscountClampsAtZero(t *testing.T) {
	values := []MarkupValue{ValueMarkup(MarkupLine{UnitCost: d("10"), Quantity: d("1"), MarginPct: d("0")})}
	totals := ComputeEstimateTotals(values, Discount{Type: DiscountFixed, Value: d("25")}, d("10"))

	assert.True(t, totals.DiscountAmount.Equal(d("25")))
	assert.True(t, totals.TaxAmount.IsZero())
	assert.True(t, totals.Total.IsZero())
}

func TestComputeEstimateTotalsIgnoresNonPositiveRates(t *testing.T) {
	values := []MarkupValue{ValueMarkup(MarkupLine{UnitCost: d("80"), Quantity: d("1"), MarginPct: d("25")})}
	totals := ComputeEstimateTotals(values, Discount{Type: DiscountPercent, Value: d("0")}, d("0"))

	assert.True(t, totals.DiscountAmount.IsZero())
	assert.True(t, totals.TaxAmount.IsZero())
	assert.True(t, totals.Total.Equal(d("100")))
}

func TestComputeEstimateTotalsInvariant(t *testing.T) {
	cases := []struct {
		name     string
		lines    []MarkupLine
		discount Discount
		taxRate  string
	}{
		{"empty", nil, Discount{Type: DiscountPercent, Value: d("15")}, "7"},
		{"multi line percent", []MarkupLine{
			{UnitCost: d("12.5"), Quantity: d("3"), MarginPct: d("40")},
			{UnitCost: d("99.99"), Quantity: d("1"), MarginPct: d("15")},
		}, Discount{Type: DiscountPercent, Value: d("12.5")}, "8.25"},
		{"fixed over subtotal", []MarkupLine{
			{UnitCost: d("1"), Quantity: d("1"), MarginPct: d("0")},
		}, Discount{Type: DiscountFixed, Value: d("500")}, "20"},
		{"negative quantity", []MarkupLine{
			{UnitCost: d("10"), Quantity: d("-2"), MarginPct: d("50")},
		}, Discount{Type: DiscountFixed, Value: d("0")}, "5"},
		{"fractional markup", []MarkupLine{
			{UnitCost: d("10.55"), Quantity: d("1"), MarginPct: d("12.5")},
			{UnitCost: d("3.333"), Quantity: d("0.75"), MarginPct: d("33.3333")},
		}, Discount{Type: DiscountPercent, Value: d("10")}, "8.125"},
		{"unknown discount type", []MarkupLine{
			{UnitCost: d("10"), Quantity: d("2"), MarginPct: d("50")},
		}, Discount{Type: "bogus", Value: d("5")}, "5"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			values := make([]MarkupValue, 0, len(tc.lines))
			for _, l := range tc.lines {
				values = append(values, ValueMarkup(l))
			}
			totals := ComputeEstimateTotals(values, tc.discount, d(tc.taxRate))
			afterDiscount := decimal.Max(decimal.Zero, totals.SubtotalSell.Sub(totals.DiscountAmount))
			require.True(t, totals.Total.Equal(afterDiscount.Add(totals.TaxAmount)))
			require.False(t, totals.Total.IsNegative())
			for _, c := range []decimal.Decimal{totals.SubtotalCost, totals.SubtotalSell, totals.TotalMargin,
				totals.DiscountAmount, totals.TaxAmount, totals.Total} {
				assertAtScale(t, c)
			}
		})
	}
}

func assertAtScale(t *testing.T, v decimal.Decimal) {
	t.Helper()
	assert.True(t, v.Round(Scale).Equal(v), "%s exceeds %d places", v, Scale)
}

func TestComputeEstimateTotalsSurvivesStorageRounding(t *testing.T) {
	values := []MarkupValue{ValueMarkup(MarkupLine{UnitCost: d("10.55"), Quantity: d("1"), MarginPct: d("12.5")})}
	totals := ComputeEstimateTotals(values, Discount{Type: DiscountPercent, Value: d("10")}, d("8"))

	assert.True(t, values[0].UnitSell.Equal(d("11.8688")), "unit sell %s", values[0].UnitSell)
	assert.True(t, totals.SubtotalSell.Equal(d("11.8688")))
	assert.True(t, totals.DiscountAmount.Equal(d("1.1869")), "discount %s", totals.DiscountAmount)
	assert.True(t, totals.TaxAmount.Equal(d("0.8546")), "tax %s", totals.TaxAmount)
	assert.True(t, totals.Total.Equal(d("11.5365")), "total %s", totals.Total)

	stored := func(v decimal.Decimal) decimal.Decimal { return v.Round(Scale) }
	afterDiscount := decimal.Max(decimal.Zero, stored(totals.SubtotalSell).Sub(stored(totals.DiscountAmount)))
	assert.True(t, stored(totals.Total).Equal(afterDiscount.Add(stored(totals.TaxAmount))))
}

func TestComputeInvoiceTotalsAtScale(t *testing.T) {
	totals := ComputeInvoiceTotals([]FlatLine{
		{UnitPrice: d("19.99"), Quantity: d("0.333")},
		{UnitPrice: d("4.12345")},
	}, d("7.375"), d("3.33333"), decimal.Zero)

	assert.True(t, totals.LineTotals[0].Equal(d("6.6567")), "line %s", totals.LineTotals[0])
	assert.True(t, totals.LineTotals[1].Equal(d("4.1235")), "line %s", totals.LineTotals[1])
	assert.True(t, totals.Subtotal.Equal(d("10.7802")))
	assert.True(t, totals.TaxAmount.Equal(d("0.795")), "tax %s", totals.TaxAmount)
	assert.True(t, totals.Total.Equal(totals.Subtotal.Add(totals.TaxAmount)))
	assert.True(t, totals.DepositRequired.Equal(d("3.3333")))
	for _, c := range []decimal.Decimal{totals.Subtotal, totals.TaxAmount, totals.Total, totals.BalanceRemaining} {
		assertAtScale(t, c)
	}
}

func TestComputeInvoiceTotals(t *testing.T) {
	totals := ComputeInvoiceTotals([]FlatLine{
		{UnitPrice: d("150"), Quantity: d("2")},
		{UnitPrice: d("20")},
	}, d("10"), d("1000"), d("100"))

	require.Len(t, totals.LineTotals, 2)
	assert.True(t, totals.LineTotals[0].Equal(d("300")))
	assert.True(t, totals.LineTotals[1].Equal(d("20")))
	assert.True(t, totals.Subtotal.Equal(d("320")))
	assert.True(t, totals.TaxAmount.Equal(d("32")))
	assert.True(t, totals.Total.Equal(d("352")))
	assert.True(t, totals.DepositRequired.Equal(d("352")), "deposit capped at total")
	assert.True(t, totals.BalanceRemaining.Equal(d("252")))
	assert.Nil(t, totals.Profit)
}

func TestComputeInvoiceTotalsProfit(t *testing.T) {
	cost := d("100")
	totals := ComputeInvoiceTotals([]FlatLine{
		{UnitPrice: d("150"), Quantity: d("2"), CostPrice: &cost},
	}, decimal.Zero, decimal.Zero, decimal.Zero)

	require.NotNil(t, totals.Profit)
	assert.True(t, totals.Profit.CostSubtotal.Equal(d("200")))
	assert.True(t, totals.Profit.Profit.Equal(d("100")))
	assert.True(t, totals.Profit.MarginPercent.Equal(d("33.33")), "margin %s", totals.Profit.MarginPercent)
}

func TestDiscountTypeValid(t *testing.T) {
	assert.True(t, DiscountPercent.Valid())
	assert.True(t, DiscountFixed.Valid())
	assert.False(t, DiscountType("").Valid())
}
