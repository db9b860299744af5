package estimates

import (
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/SGK112/CRM-sub002/internal/billing/pricing"
	"github.com/SGK112/CRM-sub002/internal/platform/httpx"
)

var hundred = decimal.NewFromInt(100)

// validateMoneyConfig rejects malformed discount, tax and deposit settings.
// The effective discount type is needed to bound percentage discounts.
func validateMoneyConfig(discountType pricing.DiscountType, discountValue, taxRate, deposit *decimal.Decimal) error {
	if !discountType.Valid() {
		return fmt.Errorf("%w: discount_type must be percent or fixed", httpx.ErrValidation)
	}
	if discountValue != nil {
		if discountValue.IsNegative() {
			return fmt.Errorf("%w: discount_value must not be negative", httpx.ErrValidation)
		}
		if discountType == pricing.DiscountPercent && discountValue.GreaterThan(hundred) {
			return fmt.Errorf("%w: percent discount_value must not exceed 100", httpx.ErrValidation)
		}
	}
	if taxRate != nil && (taxRate.IsNegative() || taxRate.GreaterThan(hundred)) {
		return fmt.Errorf("%w: tax_rate must be between 0 and 100", httpx.ErrValidation)
	}
	if deposit != nil && deposit.IsNegative() {
		return fmt.Errorf("%w: deposit_required must not be negative", httpx.ErrValidation)
	}
	return nil
}
