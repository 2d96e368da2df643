package handler

import (
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/shopspring/decimal"

	"github.com/iliyamo/gym-management/internal/apperr"
	"github.com/iliyamo/gym-management/internal/model"
	"github.com/iliyamo/gym-management/internal/service"
)

// VoucherHandler serves /vouchers.
type VoucherHandler struct {
	Vouchers *service.VoucherService
}

func NewVoucherHandler(v *service.VoucherService) *VoucherHandler {
	return &VoucherHandler{Vouchers: v}
}

type voucherReq struct {
	Code          string           `json:"code" validate:"omitempty,len=9,alphanum"`
	Description   *string          `json:"description" validate:"omitempty,max=255"`
	DiscountType  string           `json:"discount_type" validate:"required,oneof=percentage fixed"`
	DiscountValue decimal.Decimal  `json:"discount_value"`
	MinOrderValue *decimal.Decimal `json:"min_order_value"`
	MaxDiscount   *decimal.Decimal `json:"max_discount"`
	UsageLimit    *int             `json:"usage_limit" validate:"omitempty,gte=0"`
	ValidFrom     time.Time        `json:"valid_from" validate:"required"`
	ValidUntil    time.Time        `json:"valid_until" validate:"required"`
	IsActive      *bool            `json:"is_active"`
}

func (r voucherReq) input() service.VoucherInput {
	in := service.VoucherInput{
		Code:          r.Code,
		Description:   r.Description,
		DiscountType:  model.DiscountType(r.DiscountType),
		DiscountValue: r.DiscountValue,
		MinOrderValue: optDecimal(r.MinOrderValue),
		UsageLimit:    r.UsageLimit,
		ValidFrom:     r.ValidFrom,
		ValidUntil:    r.ValidUntil,
		IsActive:      r.IsActive,
	}
	if r.MaxDiscount != nil && r.MaxDiscount.IsPositive() {
		in.MaxDiscount = decimal.NewNullDecimal(*r.MaxDiscount)
	}
	return in
}

type applyVoucherReq struct {
	Code       string          `json:"code" validate:"required,max=20"`
	OrderValue decimal.Decimal `json:"order_value"`
}

// Apply quotes the discount of a code for an order value without using it.
func (h *VoucherHandler) Apply(c echo.Context) error {
	var req applyVoucherReq
	if err := bindValid(c, &req); err != nil {
		return err
	}
	if !req.OrderValue.IsPositive() {
		return apperr.Validation("order_value must be positive")
	}
	ctx, cancel := reqCtx(c)
	defer cancel()

	q, err := h.Vouchers.Apply(ctx, req.Code, req.OrderValue)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, q)
}

func (h *VoucherHandler) List(c echo.Context) error {
	p, page := pageOf(c)
	ctx, cancel := reqCtx(c)
	defer cancel()

	out, total, err := h.Vouchers.List(ctx, c.QueryParam("active") == "true", p)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, listResponse(out, total, p, page))
}

func (h *VoucherHandler) Get(c echo.Context) error {
	id, err := paramID(c, "id")
	if err != nil {
		return err
	}
	ctx, cancel := reqCtx(c)
	defer cancel()

	v, err := h.Vouchers.Get(ctx, id)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, v)
}

func (h *VoucherHandler) Create(c echo.Context) error {
	var req voucherReq
	if err := bindValid(c, &req); err != nil {
		return err
	}
	ctx, cancel := reqCtx(c)
	defer cancel()

	v, err := h.Vouchers.Create(ctx, req.input())
	if err != nil {
		return err
	}
	return c.JSON(http.StatusCreated, v)
}

func (h *VoucherHandler) Update(c echo.Context) error {
	id, err := paramID(c, "id")
	if err != nil {
		return err
	}
	var req voucherReq
	if err := bindValid(c, &req); err != nil {
		return err
	}
	ctx, cancel := reqCtx(c)
	defer cancel()

	v, err := h.Vouchers.Update(ctx, id, req.input())
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, v)
}

func (h *VoucherHandler) Delete(c echo.Context) error {
	id, err := paramID(c, "id")
	if err != nil {
		return err
	}
	ctx, cancel := reqCtx(c)
	defer cancel()

	if err := h.Vouchers.Deactivate(ctx, id); err != nil {
		return err
	}
	return c.NoContent(http.StatusNoContent)
}
