package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/iliyamo/gym-management/internal/apperr"
	"github.com/iliyamo/gym-management/internal/model"
	"github.com/iliyamo/gym-management/internal/queue"
	"github.com/iliyamo/gym-management/internal/repository"
	"github.com/iliyamo/gym-management/internal/utils"
)

// orderNumberAttempts bounds the retries after an order number collision.
const orderNumberAttempts = 3

// OrderService runs checkout and order administration.
type OrderService struct {
	db       *sql.DB
	orders   *repository.OrderRepo
	products *repository.ProductRepo
	vouchers *VoucherService
	invoices *InvoiceService
	events   EventPublisher
	log      *slog.Logger
	now      func() time.Time
}

func NewOrderService(db *sql.DB, orders *repository.OrderRepo, products *repository.ProductRepo, vouchers *VoucherService, invoices *InvoiceService, events EventPublisher, logger *slog.Logger) *OrderService {
	return &OrderService{
		db:       db,
		orders:   orders,
		products: products,
		vouchers: vouchers,
		invoices: invoices,
		events:   events,
		log:      logger,
		now:      time.Now,
	}
}

// CartItem is one line of a checkout request.
type CartItem struct {
	ProductID uint64
	Quantity  int
}

// CheckoutInput is the body of a checkout.
type CheckoutInput struct {
	Items           []CartItem
	ShippingAddress model.ShippingAddress
	ShippingFee     decimal.Decimal
	VoucherCode     string
	PaymentMethod   string
	Notes           *string
}

// mergeCart folds repeated products together and orders lines by product
// id, which is also the order rows are locked in.
func mergeCart(items []CartItem) ([]CartItem, error) {
	if len(items) == 0 {
		return nil, apperr.Validation("Cart is empty")
	}
	qty := map[uint64]int{}
	for _, it := range items {
		if it.ProductID == 0 || it.Quantity <= 0 {
			return nil, apperr.Validation("Each item needs a product_id and a positive quantity")
		}
		qty[it.ProductID] += it.Quantity
	}
	out := make([]CartItem, 0, len(qty))
	for id, q := range qty {
		out = append(out, CartItem{ProductID: id, Quantity: q})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ProductID < out[j].ProductID })
	return out, nil
}

// Checkout creates an order from the cart in one transaction: products are
// locked, stock is checked and taken, the voucher use is consumed and the
// order with its items is written.  The shop invoice is created after the
// commit; if that fails the order stands and the order.created consumer
// creates the invoice later.
func (s *OrderService) Checkout(ctx context.Context, userID uint64, in CheckoutInput) (model.Order, error) {
	cart, err := mergeCart(in.Items)
	if err != nil {
		return model.Order{}, err
	}
	if in.ShippingFee.IsNegative() {
		return model.Order{}, apperr.Validation("shipping_fee must not be negative")
	}
	method := strings.TrimSpace(in.PaymentMethod)
	if method == "" {
		method = "cod"
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return model.Order{}, apperr.Internal("failed to start transaction", err)
	}
	committed := false
	defer rollback(tx, &committed)

	ids := make([]uint64, len(cart))
	for i, it := range cart {
		ids[i] = it.ProductID
	}
	locked, err := s.products.LockTx(ctx, tx, ids)
	if err != nil {
		return model.Order{}, apperr.Internal("load products failed", err)
	}

	items := make([]model.OrderItem, 0, len(cart))
	subtotal := decimal.Zero
	for _, it := range cart {
		p, ok := locked[it.ProductID]
		if !ok || !p.IsActive {
			return model.Order{}, apperr.NotFound(fmt.Sprintf("Product %d not found", it.ProductID))
		}
		if p.Stock < it.Quantity {
			return model.Order{}, apperr.Validation(fmt.Sprintf("Insufficient stock for %s", p.Name))
		}
		line := p.Price.Mul(decimal.NewFromInt(int64(it.Quantity)))
		subtotal = subtotal.Add(line)
		items = append(items, model.OrderItem{
			ProductID:   p.ID,
			ProductName: p.Name,
			UnitPrice:   p.Price,
			Quantity:    it.Quantity,
			Subtotal:    line,
		})
	}
	for _, it := range cart {
		if err := s.products.DecrementStockTx(ctx, tx, it.ProductID, it.Quantity); err != nil {
			if errors.Is(err, repository.ErrConflict) {
				return model.Order{}, apperr.Validation("Insufficient stock")
			}
			return model.Order{}, apperr.Internal("update stock failed", err)
		}
	}

	o := model.Order{
		UserID:          userID,
		Subtotal:        subtotal,
		ShippingFee:     in.ShippingFee,
		DiscountAmount:  decimal.Zero,
		ShippingAddress: in.ShippingAddress,
		PaymentMethod:   method,
		PaymentStatus:   model.PaymentPending,
		Status:          model.OrderPending,
		Notes:           in.Notes,
	}
	if code := strings.TrimSpace(in.VoucherCode); code != "" {
		v, discount, err := s.vouchers.redeemTx(ctx, tx, code, subtotal)
		if err != nil {
			return model.Order{}, err
		}
		o.DiscountAmount = discount
		vid := v.ID
		o.VoucherID = &vid
	}
	o.TotalAmount = o.Subtotal.Add(o.ShippingFee).Sub(o.DiscountAmount)

	for attempt := 1; ; attempt++ {
		o.OrderNumber = utils.NewOrderNumber(s.now())
		err := s.orders.CreateTx(ctx, tx, &o)
		if err == nil {
			break
		}
		if !errors.Is(err, repository.ErrDuplicate) || attempt >= orderNumberAttempts {
			return model.Order{}, apperr.Internal("create order failed", err)
		}
	}
	for i := range items {
		items[i].OrderID = o.ID
	}
	if err := s.orders.CreateItemsBulkTx(ctx, tx, items); err != nil {
		return model.Order{}, apperr.Internal("create order items failed", err)
	}
	if err := tx.Commit(); err != nil {
		return model.Order{}, apperr.Internal("failed to commit transaction", err)
	}
	committed = true

	now := s.now().UTC()
	o.CreatedAt, o.UpdatedAt = now, now
	o.Items = items

	if _, err := s.invoices.CreateForOrder(ctx, o); err != nil {
		s.log.Error("shop invoice creation failed; left to reconciliation", "order_id", o.ID, "order_number", o.OrderNumber, "err", err)
	}
	ev := queue.OrderCreatedEvent{
		OrderID:     o.ID,
		OrderNumber: o.OrderNumber,
		UserID:      o.UserID,
		ItemCount:   len(items),
		TotalAmount: o.TotalAmount.String(),
		CreatedAt:   now.Format(time.RFC3339),
	}
	if o.VoucherID != nil {
		ev.VoucherID = *o.VoucherID
	}
	publishAsync(s.events, s.log, queue.OrderCreatedQueue, ev)
	return o, nil
}

// Get returns an order with items; members only see their own.
func (s *OrderService) Get(ctx context.Context, actor Actor, id uint64) (model.Order, error) {
	o, err := s.orders.GetByID(ctx, id)
	if err != nil {
		return o, notFoundOr(err, "Order not found")
	}
	if actor.Role != model.RoleAdmin && o.UserID != actor.UserID {
		return model.Order{}, apperr.NotFound("Order not found")
	}
	return o, nil
}

// List returns orders; members are restricted to their own.
func (s *OrderService) List(ctx context.Context, actor Actor, f repository.OrderFilter) ([]model.Order, int, error) {
	if actor.Role != model.RoleAdmin {
		f.UserID = &actor.UserID
	}
	out, total, err := s.orders.List(ctx, f)
	if err != nil {
		return nil, 0, apperr.Internal("list orders failed", err)
	}
	return out, total, nil
}

// UpdateStatus changes fulfilment and/or payment status.  When the payment
// becomes paid the shop invoice follows.
func (s *OrderService) UpdateStatus(ctx context.Context, id uint64, status *model.OrderStatus, payment *model.PaymentStatus) (model.Order, error) {
	if status == nil && payment == nil {
		return model.Order{}, apperr.Validation("status or payment_status is required")
	}
	if status != nil && !status.Valid() {
		return model.Order{}, apperr.Validation("Invalid status")
	}
	if payment != nil && !payment.Valid() {
		return model.Order{}, apperr.Validation("Invalid payment_status")
	}
	if err := s.orders.UpdateStatus(ctx, id, status, payment); err != nil {
		return model.Order{}, notFoundOr(err, "Order not found")
	}
	if payment != nil && *payment == model.PaymentPaid {
		if inv, err := s.invoices.invoices.GetByOrderID(ctx, id); err == nil && inv.Status == model.InvoiceUnpaid {
			if _, err := s.invoices.UpdateStatus(ctx, inv.ID, model.InvoicePaid); err != nil {
				s.log.Warn("mark shop invoice paid failed", "order_id", id, "invoice_id", inv.ID, "err", err)
			}
		}
	}
	o, err := s.orders.GetByID(ctx, id)
	if err != nil {
		return o, notFoundOr(err, "Order not found")
	}
	return o, nil
}
