package service

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iliyamo/gym-management/internal/apperr"
	"github.com/iliyamo/gym-management/internal/model"
)

func dec(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func activeVoucher(mod func(*model.Voucher)) model.Voucher {
	v := model.Voucher{
		ID:            1,
		Code:          "SPRING25A",
		DiscountType:  model.DiscountPercentage,
		DiscountValue: dec("10"),
		MinOrderValue: decimal.Zero,
		ValidFrom:     testNow.AddDate(0, -1, 0),
		ValidUntil:    testNow.AddDate(0, 1, 0),
		IsActive:      true,
	}
	if mod != nil {
		mod(&v)
	}
	return v
}

func TestEvaluateVoucher(t *testing.T) {
	limit := 5
	cases := []struct {
		name     string
		voucher  model.Voucher
		order    string
		discount string
		errMsg   string
	}{
		{
			name: "percentage capped by max discount",
			voucher: activeVoucher(func(v *model.Voucher) {
				v.MaxDiscount = decimal.NewNullDecimal(dec("50000"))
			}),
			order:    "1000000",
			discount: "50000",
		},
		{
			name:     "percentage without cap",
			voucher:  activeVoucher(nil),
			order:    "1234.50",
			discount: "123.45",
		},
		{
			name: "fixed never exceeds the order",
			voucher: activeVoucher(func(v *model.Voucher) {
				v.DiscountType = model.DiscountFixed
				v.DiscountValue = dec("80000")
			}),
			order:    "30000",
			discount: "30000",
		},
		{
			name: "fixed",
			voucher: activeVoucher(func(v *model.Voucher) {
				v.DiscountType = model.DiscountFixed
				v.DiscountValue = dec("20000")
			}),
			order:    "150000",
			discount: "20000",
		},
		{
			name:    "expired",
			voucher: activeVoucher(func(v *model.Voucher) { v.ValidUntil = testNow.Add(-time.Second) }),
			order:   "100",
			errMsg:  "Voucher has expired",
		},
		{
			name:    "expired wins over inactive",
			voucher: activeVoucher(func(v *model.Voucher) { v.ValidUntil = testNow.Add(-time.Hour); v.IsActive = false }),
			order:   "100",
			errMsg:  "Voucher has expired",
		},
		{
			name:    "inactive",
			voucher: activeVoucher(func(v *model.Voucher) { v.IsActive = false }),
			order:   "100",
			errMsg:  "Voucher is not active",
		},
		{
			name:    "not yet valid",
			voucher: activeVoucher(func(v *model.Voucher) { v.ValidFrom = testNow.Add(time.Hour) }),
			order:   "100",
			errMsg:  "Voucher is not yet valid",
		},
		{
			name:    "usage limit reached",
			voucher: activeVoucher(func(v *model.Voucher) { v.UsageLimit = &limit; v.UsedCount = 5 }),
			order:   "100",
			errMsg:  "Voucher usage limit reached",
		},
		{
			name:    "below minimum order",
			voucher: activeVoucher(func(v *model.Voucher) { v.MinOrderValue = dec("200000") }),
			order:   "199999",
			errMsg:  "Order value must be at least 200000",
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			order := dec(tc.order)
			got, err := EvaluateVoucher(tc.voucher, order, testNow)
			if tc.errMsg != "" {
				requireKind(t, err, apperr.KindValidation, tc.errMsg)
				return
			}
			require.NoError(t, err)
			assert.True(t, dec(tc.discount).Equal(got), "discount %s, want %s", got, tc.discount)
			assert.False(t, order.Sub(got).IsNegative())
		})
	}
}

func TestEvaluateVoucherFinalAmount(t *testing.T) {
	v := activeVoucher(func(v *model.Voucher) { v.MaxDiscount = decimal.NewNullDecimal(dec("50000")) })
	order := dec("1000000")
	d, err := EvaluateVoucher(v, order, testNow)
	require.NoError(t, err)
	assert.Equal(t, "950000", order.Sub(d).String())
}
