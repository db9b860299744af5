package estimates

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/SGK112/CRM-sub002/internal/billing/pricing"
	"github.com/SGK112/CRM-sub002/internal/notify"
)

// Status is the estimate lifecycle state.
type Status string

const (
	StatusDraft     Status = "draft"
	StatusSent      Status = "sent"
	StatusAccepted  Status = "accepted"
	StatusRejected  Status = "rejected"
	StatusExpired   Status = "expired"
	StatusConverted Status = "converted"
)

// Valid reports whether s is a known status.
func (s Status) Valid() bool {
	switch s {
	case StatusDraft, StatusSent, StatusAccepted, StatusRejected, StatusExpired, StatusConverted:
		return true
	}
	return false
}

// LineItem is a cost-plus-margin row. SellPrice and Total are derived.
type LineItem struct {
	CatalogRef  *int64          `json:"catalog_ref,omitempty"`
	SKU         string          `json:"sku,omitempty"`
	Name        string          `json:"name"`
	Description string          `json:"description,omitempty"`
	Quantity    decimal.Decimal `json:"quantity"`
	UnitCost    decimal.Decimal `json:"unit_cost"`
	MarginPct   decimal.Decimal `json:"margin_pct"`
	SellPrice   decimal.Decimal `json:"sell_price"`
	Total       decimal.Decimal `json:"total"`
	Taxable     bool            `json:"taxable"`
}

// Estimate is the estimate aggregate.
type Estimate struct {
	ID              int64                `json:"id"`
	WorkspaceID     int64                `json:"workspace_id"`
	Number          string               `json:"number"`
	ClientID        int64                `json:"client_id"`
	ProjectID       *int64               `json:"project_id,omitempty"`
	Items           []LineItem           `json:"items"`
	DiscountType    pricing.DiscountType `json:"discount_type"`
	DiscountValue   decimal.Decimal      `json:"discount_value"`
	TaxRate         decimal.Decimal      `json:"tax_rate"`
	DepositRequired decimal.Decimal      `json:"deposit_required"`
	SubtotalCost    decimal.Decimal      `json:"subtotal_cost"`
	SubtotalSell    decimal.Decimal      `json:"subtotal_sell"`
	DiscountAmount  decimal.Decimal      `json:"discount_amount"`
	TaxAmount       decimal.Decimal      `json:"tax_amount"`
	Total           decimal.Decimal      `json:"total"`
	TotalMargin     decimal.Decimal      `json:"total_margin"`
	Status          Status               `json:"status"`
	ShareToken      string               `json:"share_token"`
	SentAt          *time.Time           `json:"sent_at,omitempty"`
	Notes           string               `json:"notes"`
	CreatedBy       int64                `json:"created_by"`
	CreatedAt       time.Time            `json:"created_at"`
	UpdatedAt       time.Time            `json:"updated_at"`
}

// Recalculate values every line and refreshes the cached totals. Taxable is
// carried on the items but tax applies to the whole discounted subtotal.
func (e *Estimate) Recalculate() {
	e.DiscountValue = pricing.Amount(e.DiscountValue)
	e.TaxRate = pricing.Amount(e.TaxRate)
	e.DepositRequired = pricing.Amount(e.DepositRequired)
	values := make([]pricing.MarkupValue, len(e.Items))
	for i := range e.Items {
		item := &e.Items[i]
		v := pricing.ValueMarkup(pricing.MarkupLine{
			UnitCost:  item.UnitCost,
			Quantity:  item.Quantity,
			MarginPct: item.MarginPct,
		})
		item.SellPrice = v.UnitSell
		item.Total = v.LineSell
		values[i] = v
	}
	t := pricing.ComputeEstimateTotals(values, pricing.Discount{Type: e.DiscountType, Value: e.DiscountValue}, e.TaxRate)
	e.SubtotalCost = t.SubtotalCost
	e.SubtotalSell = t.SubtotalSell
	e.TotalMargin = t.TotalMargin
	e.DiscountAmount = t.DiscountAmount
	e.TaxAmount = t.TaxAmount
	e.Total = t.Total
}

// TransitionResult is returned by operations that change status and then
// notify the client.
type TransitionResult struct {
	Estimate     *Estimate      `json:"estimate"`
	Transitioned bool           `json:"transitioned"`
	Delivery     notify.Outcome `json:"delivery"`
}
