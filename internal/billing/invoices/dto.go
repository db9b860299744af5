package invoices

import (
	"time"

	"github.com/shopspring/decimal"
)

type LineItemRequest struct {
	Name        string           `json:"name" validate:"omitempty,max=200"`
	Description string           `json:"description,omitempty" validate:"omitempty,max=2000"`
	Quantity    *decimal.Decimal `json:"quantity,omitempty"`
	UnitPrice   *decimal.Decimal `json:"unit_price,omitempty" validate:"omitempty,gte=0"`
	Taxable     bool             `json:"taxable"`
	CostPrice   *decimal.Decimal `json:"cost_price,omitempty" validate:"omitempty,gte=0"`
}

type CreateInvoiceRequest struct {
	ClientID           int64             `json:"client_id" validate:"required,gt=0"`
	ProjectID          *int64            `json:"project_id,omitempty" validate:"omitempty,gt=0"`
	Items              []LineItemRequest `json:"items" validate:"max=500,dive"`
	TaxRate            *decimal.Decimal  `json:"tax_rate,omitempty" validate:"omitempty,gte=0,lte=100"`
	DepositRequired    *decimal.Decimal  `json:"deposit_required,omitempty" validate:"omitempty,gte=0"`
	ShowDepositDetails bool              `json:"show_deposit_details"`
	ShowProfitMetrics  bool              `json:"show_profit_metrics"`
	DueDate            *string           `json:"due_date,omitempty"`
	Notes              *string           `json:"notes,omitempty" validate:"omitempty,max=5000"`
}

// UpdateInvoiceRequest replaces the item list when Items is present. An
// empty DueDate clears it.
type UpdateInvoiceRequest struct {
	Items              *[]LineItemRequest `json:"items,omitempty" validate:"omitempty,max=500,dive"`
	TaxRate            *decimal.Decimal   `json:"tax_rate,omitempty" validate:"omitempty,gte=0,lte=100"`
	DepositRequired    *decimal.Decimal   `json:"deposit_required,omitempty" validate:"omitempty,gte=0"`
	ShowDepositDetails *bool              `json:"show_deposit_details,omitempty"`
	ShowProfitMetrics  *bool              `json:"show_profit_metrics,omitempty"`
	DueDate            *string            `json:"due_date,omitempty"`
	Notes              *string            `json:"notes,omitempty" validate:"omitempty,max=5000"`
}

type RecordPaymentRequest struct {
	Amount decimal.Decimal `json:"amount" validate:"gt=0"`
	Note   string          `json:"note,omitempty" validate:"omitempty,max=500"`
	PaidAt *time.Time      `json:"paid_at,omitempty"`
}

type ListInvoicesRequest struct {
	WorkspaceID int64
	ClientID    *int64
	Status      *Status
	Page        int
	PerPage     int
}
