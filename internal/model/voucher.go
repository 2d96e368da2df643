package model

import (
	"time"

	"github.com/shopspring/decimal"
)

type DiscountType string

const (
	DiscountPercentage DiscountType = "percentage"
	DiscountFixed      DiscountType = "fixed"
)

// Voucher is a discount code.  Code is 9 upper-case alphanumeric characters
// and unique.  A nil UsageLimit means unlimited uses; a zero MaxDiscount
// (Valid=false) means a percentage discount is not capped.
type Voucher struct {
	ID            uint64              `json:"id"`
	Code          string              `json:"code"`
	Description   *string             `json:"description,omitempty"`
	DiscountType  DiscountType        `json:"discount_type"`
	DiscountValue decimal.Decimal     `json:"discount_value"`
	MinOrderValue decimal.Decimal     `json:"min_order_value"`
	MaxDiscount   decimal.NullDecimal `json:"max_discount"`
	UsageLimit    *int                `json:"usage_limit,omitempty"`
	UsedCount     int                 `json:"used_count"`
	ValidFrom     time.Time           `json:"valid_from"`
	ValidUntil    time.Time           `json:"valid_until"`
	IsActive      bool                `json:"is_active"`
	CreatedAt     time.Time           `json:"created_at"`
	UpdatedAt     time.Time           `json:"updated_at"`
}
