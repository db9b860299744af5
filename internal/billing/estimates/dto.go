package estimates

import (
	"github.com/shopspring/decimal"

	"github.com/SGK112/CRM-sub002/internal/billing/pricing"
)

// LineItemRequest is a caller-supplied line. Derived fields are not accepted.
type LineItemRequest struct {
	CatalogRef  *int64           `json:"catalog_ref,omitempty" validate:"omitempty,gt=0"`
	SKU         *string          `json:"sku,omitempty" validate:"omitempty,max=100"`
	Name        *string          `json:"name,omitempty" validate:"omitempty,max=200"`
	Description *string          `json:"description,omitempty" validate:"omitempty,max=2000"`
	Quantity    *decimal.Decimal `json:"quantity,omitempty"`
	UnitCost    *decimal.Decimal `json:"unit_cost,omitempty"`
	MarginPct   *decimal.Decimal `json:"margin_pct,omitempty"`
	Taxable     bool             `json:"taxable"`
}

type CreateEstimateRequest struct {
	ClientID        int64                 `json:"client_id" validate:"required,gt=0"`
	ProjectID       *int64                `json:"project_id,omitempty" validate:"omitempty,gt=0"`
	Items           []LineItemRequest     `json:"items" validate:"max=500,dive"`
	DiscountType    *pricing.DiscountType `json:"discount_type,omitempty" validate:"omitempty,oneof=percent fixed"`
	DiscountValue   *decimal.Decimal      `json:"discount_value,omitempty"`
	TaxRate         *decimal.Decimal      `json:"tax_rate,omitempty"`
	DepositRequired *decimal.Decimal      `json:"deposit_required,omitempty"`
	Notes           *string               `json:"notes,omitempty" validate:"omitempty,max=5000"`
}

// UpdateEstimateRequest replaces the item list when Items is present.
type UpdateEstimateRequest struct {
	Items           *[]LineItemRequest    `json:"items,omitempty" validate:"omitempty,max=500,dive"`
	DiscountType    *pricing.DiscountType `json:"discount_type,omitempty" validate:"omitempty,oneof=percent fixed"`
	DiscountValue   *decimal.Decimal      `json:"discount_value,omitempty"`
	TaxRate         *decimal.Decimal      `json:"tax_rate,omitempty"`
	DepositRequired *decimal.Decimal      `json:"deposit_required,omitempty"`
	Notes           *string               `json:"notes,omitempty" validate:"omitempty,max=5000"`
}

type SetStatusRequest struct {
	Status Status `json:"status" validate:"required"`
}

type ListEstimatesRequest struct {
	WorkspaceID int64
	ClientID    *int64
	Status      *Status
	Page        int
	PerPage     int
}
