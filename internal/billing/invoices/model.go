package invoices

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/SGK112/CRM-sub002/internal/billing/pricing"
	"github.com/SGK112/CRM-sub002/internal/notify"
)

// Status is the invoice settlement state.
type Status string

const (
	StatusDraft   Status = "draft"
	StatusSent    Status = "sent"
	StatusPartial Status = "partial"
	StatusPaid    Status = "paid"
	StatusVoid    Status = "void"
)

func (s Status) Valid() bool {
	switch s {
	case StatusDraft, StatusSent, StatusPartial, StatusPaid, StatusVoid:
		return true
	}
	return false
}

// Closed reports whether no further edits or payments are accepted.
func (s Status) Closed() bool {
	return s == StatusPaid || s == StatusVoid
}

// LineItem is a flat-priced row. Total is derived.
type LineItem struct {
	Name        string           `json:"name"`
	Description string           `json:"description,omitempty"`
	Quantity    decimal.Decimal  `json:"quantity"`
	UnitPrice   decimal.Decimal  `json:"unit_price"`
	Total       decimal.Decimal  `json:"total"`
	Taxable     bool             `json:"taxable"`
	CostPrice   *decimal.Decimal `json:"cost_price,omitempty"`
}

// Invoice is the invoice aggregate. AmountPaid never decreases.
type Invoice struct {
	ID                 int64           `json:"id"`
	WorkspaceID        int64           `json:"workspace_id"`
	Number             string          `json:"number"`
	ClientID           int64           `json:"client_id"`
	ProjectID          *int64          `json:"project_id,omitempty"`
	EstimateID         *int64          `json:"estimate_id,omitempty"`
	Items              []LineItem      `json:"items"`
	TaxRate            decimal.Decimal `json:"tax_rate"`
	Subtotal           decimal.Decimal `json:"subtotal"`
	TaxAmount          decimal.Decimal `json:"tax_amount"`
	Total              decimal.Decimal `json:"total"`
	AmountPaid         decimal.Decimal `json:"amount_paid"`
	BalanceRemaining   decimal.Decimal `json:"balance_remaining"`
	DepositRequired    decimal.Decimal `json:"deposit_required"`
	DepositPaid        decimal.Decimal `json:"deposit_paid"`
	ShowDepositDetails bool            `json:"show_deposit_details"`
	ShowProfitMetrics  bool            `json:"show_profit_metrics"`
	Status             Status          `json:"status"`
	DueDate            *time.Time      `json:"due_date,omitempty"`
	SentAt             *time.Time      `json:"sent_at,omitempty"`
	Notes              string          `json:"notes"`
	CreatedBy          int64           `json:"created_by"`
	CreatedAt          time.Time       `json:"created_at"`
	UpdatedAt          time.Time       `json:"updated_at"`
}

// Recalculate refreshes line totals and the cached aggregate, capping the
// deposit at the total. The returned profit is nil when no line has a cost.
func (inv *Invoice) Recalculate() *pricing.Profit {
	inv.TaxRate = pricing.Amount(inv.TaxRate)
	lines := make([]pricing.FlatLine, len(inv.Items))
	for i, item := range inv.Items {
		lines[i] = pricing.FlatLine{UnitPrice: item.UnitPrice, Quantity: item.Quantity, CostPrice: item.CostPrice}
	}
	t := pricing.ComputeInvoiceTotals(lines, inv.TaxRate, inv.DepositRequired, inv.AmountPaid)
	for i := range inv.Items {
		inv.Items[i].Total = t.LineTotals[i]
	}
	inv.Subtotal = t.Subtotal
	inv.TaxAmount = t.TaxAmount
	inv.Total = t.Total
	inv.DepositRequired = t.DepositRequired
	inv.BalanceRemaining = t.BalanceRemaining
	return t.Profit
}

// ApplyPayment accumulates amount, fills the deposit first and derives the
// settlement status.
func (inv *Invoice) ApplyPayment(amount decimal.Decimal) {
	inv.AmountPaid = inv.AmountPaid.Add(amount)
	if inv.DepositRequired.IsPositive() && inv.DepositPaid.LessThan(inv.DepositRequired) {
		remaining := inv.DepositRequired.Sub(inv.DepositPaid)
		inv.DepositPaid = inv.DepositPaid.Add(decimal.Min(amount, remaining))
	}
	inv.BalanceRemaining = inv.Total.Sub(inv.AmountPaid)
	inv.settle()
}

// settle derives paid/partial from the accumulator. Zero payments leave the
// status alone.
func (inv *Invoice) settle() {
	switch {
	case inv.Status == StatusVoid:
		// terminal
	case inv.AmountPaid.GreaterThanOrEqual(inv.Total) && inv.AmountPaid.IsPositive():
		inv.Status = StatusPaid
	case inv.AmountPaid.IsPositive():
		inv.Status = StatusPartial
	}
}

// Payment is one recorded receipt against an invoice.
type Payment struct {
	ID          int64           `json:"id"`
	InvoiceID   int64           `json:"invoice_id"`
	WorkspaceID int64           `json:"workspace_id"`
	Amount      decimal.Decimal `json:"amount"`
	Note        string          `json:"note,omitempty"`
	PaidAt      time.Time       `json:"paid_at"`
	RecordedBy  int64           `json:"recorded_by"`
	CreatedAt   time.Time       `json:"created_at"`
}

// TransitionResult is returned by Send.
type TransitionResult struct {
	Invoice      *Invoice       `json:"invoice"`
	Transitioned bool           `json:"transitioned"`
	Delivery     notify.Outcome `json:"delivery"`
}

// EstimateSource is the part of an estimate an invoice is built from.
type EstimateSource struct {
	EstimateID      int64
	ClientID        int64
	ProjectID       *int64
	Items           []LineItem
	TaxRate         decimal.Decimal
	DepositRequired decimal.Decimal
	Notes           string
}
