package handler

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/shopspring/decimal"

	"github.com/iliyamo/gym-management/internal/model"
	"github.com/iliyamo/gym-management/internal/repository"
	"github.com/iliyamo/gym-management/internal/service"
)

// OrderHandler serves /orders.
type OrderHandler struct {
	Orders *service.OrderService
}

func NewOrderHandler(o *service.OrderService) *OrderHandler {
	return &OrderHandler{Orders: o}
}

type cartItemReq struct {
	ProductID uint64 `json:"product_id" validate:"required"`
	Quantity  int    `json:"quantity" validate:"required,gt=0,lte=1000"`
}

type checkoutReq struct {
	Items           []cartItemReq         `json:"items" validate:"required,min=1,max=100,dive"`
	ShippingAddress model.ShippingAddress `json:"shipping_address"`
	ShippingFee     *decimal.Decimal      `json:"shipping_fee"`
	VoucherCode     string                `json:"voucher_code" validate:"omitempty,max=20"`
	PaymentMethod   string                `json:"payment_method" validate:"omitempty,max=30"`
	Notes           *string               `json:"notes" validate:"omitempty,max=1000"`
}

type orderStatusReq struct {
	Status        *string `json:"status" validate:"omitempty,oneof=pending processing shipped delivered cancelled"`
	PaymentStatus *string `json:"payment_status" validate:"omitempty,oneof=pending paid failed refunded"`
}

// orderFilter reads status, payment_status, user_id, from and to.
func orderFilter(c echo.Context) (repository.OrderFilter, error) {
	f := repository.OrderFilter{
		Status:        model.OrderStatus(c.QueryParam("status")),
		PaymentStatus: model.PaymentStatus(c.QueryParam("payment_status")),
	}
	var err error
	if f.UserID, err = queryUint(c, "user_id"); err != nil {
		return f, err
	}
	if f.From, err = queryDate(c, "from"); err != nil {
		return f, err
	}
	if f.To, err = queryDate(c, "to"); err != nil {
		return f, err
	}
	return f, nil
}

// Checkout creates an order from the cart in the body.
func (h *OrderHandler) Checkout(c echo.Context) error {
	actor, err := actorOf(c)
	if err != nil {
		return err
	}
	var req checkoutReq
	if err := bindValid(c, &req); err != nil {
		return err
	}
	items := make([]service.CartItem, len(req.Items))
	for i, it := range req.Items {
		items[i] = service.CartItem{ProductID: it.ProductID, Quantity: it.Quantity}
	}
	ctx, cancel := reqCtx(c)
	defer cancel()

	o, err := h.Orders.Checkout(ctx, actor.UserID, service.CheckoutInput{
		Items:           items,
		ShippingAddress: req.ShippingAddress,
		ShippingFee:     optDecimal(req.ShippingFee),
		VoucherCode:     req.VoucherCode,
		PaymentMethod:   req.PaymentMethod,
		Notes:           req.Notes,
	})
	if err != nil {
		return err
	}
	return c.JSON(http.StatusCreated, o)
}

func (h *OrderHandler) List(c echo.Context) error {
	actor, err := actorOf(c)
	if err != nil {
		return err
	}
	f, err := orderFilter(c)
	if err != nil {
		return err
	}
	p, page := pageOf(c)
	f.Page = p
	ctx, cancel := reqCtx(c)
	defer cancel()

	out, total, err := h.Orders.List(ctx, actor, f)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, listResponse(out, total, p, page))
}

func (h *OrderHandler) Get(c echo.Context) error {
	actor, err := actorOf(c)
	if err != nil {
		return err
	}
	id, err := paramID(c, "id")
	if err != nil {
		return err
	}
	ctx, cancel := reqCtx(c)
	defer cancel()

	o, err := h.Orders.Get(ctx, actor, id)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, o)
}

func (h *OrderHandler) UpdateStatus(c echo.Context) error {
	id, err := paramID(c, "id")
	if err != nil {
		return err
	}
	var req orderStatusReq
	if err := bindValid(c, &req); err != nil {
		return err
	}
	var (
		status  *model.OrderStatus
		payment *model.PaymentStatus
	)
	if req.Status != nil {
		s := model.OrderStatus(*req.Status)
		status = &s
	}
	if req.PaymentStatus != nil {
		p := model.PaymentStatus(*req.PaymentStatus)
		payment = &p
	}
	ctx, cancel := reqCtx(c)
	defer cancel()

	o, err := h.Orders.UpdateStatus(ctx, id, status, payment)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, o)
}
