package service

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/iliyamo/gym-management/internal/apperr"
	"github.com/iliyamo/gym-management/internal/model"
	"github.com/iliyamo/gym-management/internal/repository"
	"github.com/iliyamo/gym-management/internal/utils"
)

var hundred = decimal.NewFromInt(100)

// EvaluateVoucher checks v against an order value at instant now and
// returns the discount.  A fixed voucher takes off its value; a percentage
// voucher takes value% of the order, capped at MaxDiscount when set.  The
// discount never exceeds the order value.
func EvaluateVoucher(v model.Voucher, orderValue decimal.Decimal, now time.Time) (decimal.Decimal, error) {
	switch {
	case now.After(v.ValidUntil):
		return decimal.Zero, apperr.Validation("Voucher has expired")
	case !v.IsActive:
		return decimal.Zero, apperr.Validation("Voucher is not active")
	case now.Before(v.ValidFrom):
		return decimal.Zero, apperr.Validation("Voucher is not yet valid")
	case v.UsageLimit != nil && v.UsedCount >= *v.UsageLimit:
		return decimal.Zero, apperr.Validation("Voucher usage limit reached")
	case orderValue.LessThan(v.MinOrderValue):
		return decimal.Zero, apperr.Validation("Order value must be at least " + v.MinOrderValue.String())
	}

	var discount decimal.Decimal
	switch v.DiscountType {
	case model.DiscountFixed:
		discount = v.DiscountValue
	case model.DiscountPercentage:
		discount = orderValue.Mul(v.DiscountValue).Div(hundred).Round(2)
		if v.MaxDiscount.Valid && v.MaxDiscount.Decimal.IsPositive() && discount.GreaterThan(v.MaxDiscount.Decimal) {
			discount = v.MaxDiscount.Decimal
		}
	default:
		return decimal.Zero, apperr.Validation("Voucher has an unknown discount type")
	}
	if discount.GreaterThan(orderValue) {
		discount = orderValue
	}
	if discount.IsNegative() {
		discount = decimal.Zero
	}
	return discount, nil
}

// VoucherService manages vouchers and computes discounts.
type VoucherService struct {
	vouchers *repository.VoucherRepo
	now      func() time.Time
}

func NewVoucherService(vouchers *repository.VoucherRepo) *VoucherService {
	return &VoucherService{vouchers: vouchers, now: time.Now}
}

// Quote is the result of applying a voucher to an order value.
type Quote struct {
	VoucherID      uint64          `json:"voucher_id"`
	Code           string          `json:"code"`
	DiscountAmount decimal.Decimal `json:"discount_amount"`
	FinalAmount    decimal.Decimal `json:"final_amount"`
}

// Apply validates code against orderValue without consuming a use.
func (s *VoucherService) Apply(ctx context.Context, code string, orderValue decimal.Decimal) (Quote, error) {
	if orderValue.IsNegative() {
		return Quote{}, apperr.Validation("order_value must not be negative")
	}
	v, err := s.vouchers.GetByCode(ctx, code)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Quote{}, apperr.Validation("Voucher code is invalid")
		}
		return Quote{}, apperr.Internal("load voucher failed", err)
	}
	d, err := EvaluateVoucher(v, orderValue, s.now())
	if err != nil {
		return Quote{}, err
	}
	return Quote{VoucherID: v.ID, Code: v.Code, DiscountAmount: d, FinalAmount: orderValue.Sub(d)}, nil
}

// redeemTx evaluates code inside tx and consumes one use with a
// conditional update, so the usage limit holds under concurrent checkouts.
func (s *VoucherService) redeemTx(ctx context.Context, tx *sql.Tx, code string, orderValue decimal.Decimal) (model.Voucher, decimal.Decimal, error) {
	v, err := s.vouchers.GetByCodeTx(ctx, tx, code)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return v, decimal.Zero, apperr.Validation("Voucher code is invalid")
		}
		return v, decimal.Zero, apperr.Internal("load voucher failed", err)
	}
	d, err := EvaluateVoucher(v, orderValue, s.now())
	if err != nil {
		return v, decimal.Zero, err
	}
	ok, err := s.vouchers.UseTx(ctx, tx, v.ID)
	if err != nil {
		return v, decimal.Zero, apperr.Internal("use voucher failed", err)
	}
	if !ok {
		return v, decimal.Zero, apperr.Validation("Voucher usage limit reached")
	}
	return v, d, nil
}

// VoucherInput is the writable part of a voucher.  An empty Code on
// create generates one.
type VoucherInput struct {
	Code          string
	Description   *string
	DiscountType  model.DiscountType
	DiscountValue decimal.Decimal
	MinOrderValue decimal.Decimal
	MaxDiscount   decimal.NullDecimal
	UsageLimit    *int
	ValidFrom     time.Time
	ValidUntil    time.Time
	IsActive      *bool
}

func (in VoucherInput) validate() error {
	if in.DiscountType != model.DiscountFixed && in.DiscountType != model.DiscountPercentage {
		return apperr.Validation("discount_type must be percentage or fixed")
	}
	if !in.DiscountValue.IsPositive() {
		return apperr.Validation("discount_value must be positive")
	}
	if in.DiscountType == model.DiscountPercentage && in.DiscountValue.GreaterThan(hundred) {
		return apperr.Validation("percentage discount cannot exceed 100")
	}
	if in.MinOrderValue.IsNegative() {
		return apperr.Validation("min_order_value must not be negative")
	}
	if in.UsageLimit != nil && *in.UsageLimit < 0 {
		return apperr.Validation("usage_limit must not be negative")
	}
	if !in.ValidUntil.After(in.ValidFrom) {
		return apperr.Validation("valid_until must be after valid_from")
	}
	return nil
}

func (in VoucherInput) apply(v *model.Voucher) {
	v.Description = in.Description
	v.DiscountType = in.DiscountType
	v.DiscountValue = in.DiscountValue
	v.MinOrderValue = in.MinOrderValue
	v.MaxDiscount = in.MaxDiscount
	v.UsageLimit = in.UsageLimit
	v.ValidFrom = in.ValidFrom.UTC()
	v.ValidUntil = in.ValidUntil.UTC()
	if in.IsActive != nil {
		v.IsActive = *in.IsActive
	}
}

const voucherCodeAttempts = 3

func (s *VoucherService) Create(ctx context.Context, in VoucherInput) (model.Voucher, error) {
	if err := in.validate(); err != nil {
		return model.Voucher{}, err
	}
	v := model.Voucher{IsActive: true}
	in.apply(&v)

	code := strings.ToUpper(strings.TrimSpace(in.Code))
	generated := code == ""
	if !generated && !utils.IsValidVoucherCode(code) {
		return v, apperr.Validation("code must be 9 upper-case letters or digits")
	}
	for attempt := 0; ; attempt++ {
		if generated {
			code = utils.NewVoucherCode()
		}
		v.Code = code
		err := s.vouchers.Create(ctx, &v)
		if err == nil {
			break
		}
		if !errors.Is(err, repository.ErrDuplicate) {
			return v, apperr.Internal("create voucher failed", err)
		}
		if !generated || attempt+1 >= voucherCodeAttempts {
			return v, apperr.Conflict("Voucher code already exists")
		}
	}
	return s.Get(ctx, v.ID)
}

func (s *VoucherService) Update(ctx context.Context, id uint64, in VoucherInput) (model.Voucher, error) {
	if err := in.validate(); err != nil {
		return model.Voucher{}, err
	}
	v, err := s.vouchers.GetByID(ctx, id)
	if err != nil {
		return v, notFoundOr(err, "Voucher not found")
	}
	in.apply(&v)
	if code := strings.ToUpper(strings.TrimSpace(in.Code)); code != "" {
		if !utils.IsValidVoucherCode(code) {
			return v, apperr.Validation("code must be 9 upper-case letters or digits")
		}
		v.Code = code
	}
	if err := s.vouchers.Update(ctx, &v); err != nil {
		if errors.Is(err, repository.ErrDuplicate) {
			return v, apperr.Conflict("Voucher code already exists")
		}
		return v, notFoundOr(err, "Voucher not found")
	}
	return s.Get(ctx, id)
}

func (s *VoucherService) Get(ctx context.Context, id uint64) (model.Voucher, error) {
	v, err := s.vouchers.GetByID(ctx, id)
	if err != nil {
		return v, notFoundOr(err, "Voucher not found")
	}
	return v, nil
}

func (s *VoucherService) List(ctx context.Context, activeOnly bool, p repository.Page) ([]model.Voucher, int, error) {
	out, total, err := s.vouchers.List(ctx, activeOnly, p)
	if err != nil {
		return nil, 0, apperr.Internal("list vouchers failed", err)
	}
	return out, total, nil
}

// Deactivate is the delete operation for vouchers.
func (s *VoucherService) Deactivate(ctx context.Context, id uint64) error {
	if err := s.vouchers.Deactivate(ctx, id); err != nil {
		return notFoundOr(err, "Voucher not found")
	}
	return nil
}
