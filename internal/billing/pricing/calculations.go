// Package pricing values line items and aggregates document totals.
// Every function is pure; callers persist the results together with the
// items they were derived from.
package pricing

import "github.com/shopspring/decimal"

// DiscountType selects how an estimate discount is applied.
type DiscountType string

const (
	DiscountPercent DiscountType = "percent"
	DiscountFixed   DiscountType = "fixed"
)

// Valid reports whether t is a known discount type.
func (t DiscountType) Valid() bool {
	return t == DiscountPercent || t == DiscountFixed
}

// Scale is the number of decimal places every stored amount and rate keeps.
// Components are fixed at this scale before they are combined so persisted
// totals add up exactly.
const Scale = 4

var (
	hundred = decimal.NewFromInt(100)
	one     = decimal.NewFromInt(1)
)

// Amount fixes d at the storage scale.
func Amount(d decimal.Decimal) decimal.Decimal {
	return d.Round(Scale)
}

// MarkupLine is a cost-plus-margin line as found on estimates.
type MarkupLine struct {
	UnitCost  decimal.Decimal
	Quantity  decimal.Decimal
	MarginPct decimal.Decimal
}

// MarkupValue is the valuation of a MarkupLine.
type MarkupValue struct {
	UnitSell decimal.Decimal
	LineCost decimal.Decimal
	LineSell decimal.Decimal
}

// ValueMarkup computes unit sell price and line totals for an estimate line.
func ValueMarkup(l MarkupLine) MarkupValue {
	qty := quantity(l.Quantity)
	unitSell := Amount(l.UnitCost.Mul(one.Add(l.MarginPct.Div(hundred))))
	return MarkupValue{
		UnitSell: unitSell,
		LineCost: Amount(l.UnitCost.Mul(qty)),
		LineSell: Amount(unitSell.Mul(qty)),
	}
}

// ValueFlat computes the line total of a flat-priced invoice line.
func ValueFlat(unitPrice, qty decimal.Decimal) decimal.Decimal {
	return Amount(unitPrice.Mul(quantity(qty)))
}

// quantity treats an unset or zero quantity as a single unit.
func quantity(q decimal.Decimal) decimal.Decimal {
	if q.IsZero() {
		return one
	}
	return q
}

// Discount is the document-level discount configuration.
type Discount struct {
	Type  DiscountType
	Value decimal.Decimal
}

// EstimateTotals is the aggregate of an estimate.
type EstimateTotals struct {
	SubtotalCost   decimal.Decimal
	SubtotalSell   decimal.Decimal
	TotalMargin    decimal.Decimal
	DiscountAmount decimal.Decimal
	TaxAmount      decimal.Decimal
	Total          decimal.Decimal
}

// ComputeEstimateTotals aggregates valued lines, then applies discount and tax.
// The discounted base never drops below zero. Every component is at Scale and
// Total equals max(0, SubtotalSell-DiscountAmount)+TaxAmount exactly.
func ComputeEstimateTotals(values []MarkupValue, discount Discount, taxRate decimal.Decimal) EstimateTotals {
	var t EstimateTotals
	for _, v := range values {
		t.SubtotalCost = t.SubtotalCost.Add(Amount(v.LineCost))
		t.SubtotalSell = t.SubtotalSell.Add(Amount(v.LineSell))
	}
	t.TotalMargin = t.SubtotalSell.Sub(t.SubtotalCost)

	value := Amount(discount.Value)
	switch discount.Type {
	case DiscountPercent:
		if value.IsPositive() {
			t.DiscountAmount = Amount(t.SubtotalSell.Mul(value).Div(hundred))
		}
	case DiscountFixed:
		t.DiscountAmount = value
	}

	afterDiscount := decimal.Max(decimal.Zero, t.SubtotalSell.Sub(t.DiscountAmount))
	t.TaxAmount = tax(afterDiscount, taxRate)
	t.Total = afterDiscount.Add(t.TaxAmount)
	return t
}

// FlatLine is an invoice line. CostPrice is optional and only feeds
// internal profit metrics.
type FlatLine struct {
	UnitPrice decimal.Decimal
	Quantity  decimal.Decimal
	CostPrice *decimal.Decimal
}

// Profit holds internal-only profitability figures.
type Profit struct {
	CostSubtotal  decimal.Decimal
	Profit        decimal.Decimal
	MarginPercent decimal.Decimal
}

// InvoiceTotals is the aggregate of an invoice.
type InvoiceTotals struct {
	LineTotals       []decimal.Decimal
	Subtotal         decimal.Decimal
	TaxAmount        decimal.Decimal
	Total            decimal.Decimal
	DepositRequired  decimal.Decimal
	BalanceRemaining decimal.Decimal
	Profit           *Profit
}

// ComputeInvoiceTotals sums flat lines and applies tax. The requested deposit
// is capped at the total and the balance reflects amountPaid.
func ComputeInvoiceTotals(lines []FlatLine, taxRate, depositRequested, amountPaid decimal.Decimal) InvoiceTotals {
	t := InvoiceTotals{LineTotals: make([]decimal.Decimal, len(lines))}
	var costSubtotal decimal.Decimal
	hasCost := false
	for i, l := range lines {
		lineTotal := ValueFlat(l.UnitPrice, l.Quantity)
		t.LineTotals[i] = lineTotal
		t.Subtotal = t.Subtotal.Add(lineTotal)
		if l.CostPrice != nil {
			hasCost = true
			costSubtotal = costSubtotal.Add(Amount(l.CostPrice.Mul(quantity(l.Quantity))))
		}
	}
	t.TaxAmount = tax(t.Subtotal, taxRate)
	t.Total = t.Subtotal.Add(t.TaxAmount)
	t.DepositRequired = decimal.Min(decimal.Max(decimal.Zero, Amount(depositRequested)), t.Total)
	t.BalanceRemaining = t.Total.Sub(amountPaid)

	if hasCost {
		p := &Profit{CostSubtotal: costSubtotal, Profit: t.Subtotal.Sub(costSubtotal)}
		if t.Subtotal.IsPositive() {
			p.MarginPercent = p.Profit.Div(t.Subtotal).Mul(hundred).Round(2)
		}
		t.Profit = p
	}
	return t
}

func tax(base, rate decimal.Decimal) decimal.Decimal {
	rate = Amount(rate)
	if !rate.IsPositive() {
		return decimal.Zero
	}
	return Amount(base.Mul(rate).Div(hundred))
}

// Money rounds an amount for presentation.
func Money(d decimal.Decimal) decimal.Decimal {
	return d.Round(2)
}
