package repository

import (
	"context"
	"database/sql"
	"time"

	"github.com/iliyamo/gym-management/internal/model"
)

// OrderRepo provides persistence for orders and their items.  Orders and
// items are written together inside the checkout transaction.
type OrderRepo struct {
	db *sql.DB
}

// NewOrderRepo returns a new OrderRepo bound to the given database.
func NewOrderRepo(db *sql.DB) *OrderRepo { return &OrderRepo{db: db} }

// OrderFilter narrows List.
type OrderFilter struct {
	UserID        *uint64
	Status        model.OrderStatus
	PaymentStatus model.PaymentStatus
	From, To      *time.Time
	Page
}

// CreateTx inserts a new order within the scope of an existing
// transaction and populates the generated ID.  A taken order number
// yields ErrDuplicate so the caller can pick another one.
func (r *OrderRepo) CreateTx(ctx context.Context, tx *sql.Tx, o *model.Order) error {
	const q = `INSERT INTO orders (user_id, order_number, subtotal, shipping_fee, discount_amount, total_amount,
		voucher_id, shipping_address, payment_method, payment_status, status, notes)
		VALUES (?,?,?,?,?,?,?,?,?,?,?,?)`
	res, err := tx.ExecContext(ctx, q, o.UserID, o.OrderNumber, o.Subtotal, o.ShippingFee, o.DiscountAmount,
		o.TotalAmount, o.VoucherID, o.ShippingAddress, o.PaymentMethod, o.PaymentStatus, o.Status, o.Notes)
	if err != nil {
		if isDuplicate(err) {
			return ErrDuplicate
		}
		return err
	}
	o.ID, err = lastID(res)
	return err
}

// CreateItemsBulkTx inserts multiple order_items rows in a single
// statement.  Every item must carry the order ID.  Passing an empty slice
// has no effect and returns nil.
func (r *OrderRepo) CreateItemsBulkTx(ctx context.Context, tx *sql.Tx, items []model.OrderItem) error {
	if len(items) == 0 {
		return nil
	}
	query := `INSERT INTO order_items (order_id, product_id, product_name, unit_price, quantity, subtotal) VALUES `
	args := make([]any, 0, len(items)*6)
	for i, it := range items {
		if i > 0 {
			query += ","
		}
		query += "(?, ?, ?, ?, ?, ?)"
		args = append(args, it.OrderID, it.ProductID, it.ProductName, it.UnitPrice, it.Quantity, it.Subtotal)
	}
	_, err := tx.ExecContext(ctx, query, args...)
	return err
}

const orderColumns = `id, user_id, order_number, subtotal, shipping_fee, discount_amount, total_amount,
	voucher_id, shipping_address, payment_method, payment_status, status, notes, created_at, updated_at`

func scanOrder(s rowScanner) (model.Order, error) {
	var (
		o         model.Order
		voucherID sql.NullInt64
		notes     sql.NullString
	)
	err := s.Scan(&o.ID, &o.UserID, &o.OrderNumber, &o.Subtotal, &o.ShippingFee, &o.DiscountAmount, &o.TotalAmount,
		&voucherID, &o.ShippingAddress, &o.PaymentMethod, &o.PaymentStatus, &o.Status, &notes, &o.CreatedAt, &o.UpdatedAt)
	o.VoucherID = uintPtr(voucherID)
	o.Notes = strPtr(notes)
	return o, err
}

// GetByID returns the order with its items.
func (r *OrderRepo) GetByID(ctx context.Context, id uint64) (model.Order, error) {
	o, err := scanOrder(r.db.QueryRowContext(ctx, "SELECT "+orderColumns+" FROM orders WHERE id=?", id))
	if err != nil {
		return o, err
	}
	o.Items, err = r.items(ctx, id)
	return o, err
}

func (r *OrderRepo) items(ctx context.Context, orderID uint64) ([]model.OrderItem, error) {
	rows, err := r.db.QueryContext(ctx,
		"SELECT id, order_id, product_id, product_name, unit_price, quantity, subtotal FROM order_items WHERE order_id=? ORDER BY id",
		orderID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := []model.OrderItem{}
	for rows.Next() {
		var it model.OrderItem
		if err := rows.Scan(&it.ID, &it.OrderID, &it.ProductID, &it.ProductName, &it.UnitPrice, &it.Quantity, &it.Subtotal); err != nil {
			return nil, err
		}
		out = append(out, it)
	}
	return out, rows.Err()
}

// List returns one page of orders without items, newest first.
func (r *OrderRepo) List(ctx context.Context, f OrderFilter) ([]model.Order, int, error) {
	cond := " WHERE 1=1"
	args := []any{}
	if f.UserID != nil {
		cond += " AND user_id=?"
		args = append(args, *f.UserID)
	}
	if f.Status != "" {
		cond += " AND status=?"
		args = append(args, f.Status)
	}
	if f.PaymentStatus != "" {
		cond += " AND payment_status=?"
		args = append(args, f.PaymentStatus)
	}
	if f.From != nil {
		cond += " AND created_at >= ?"
		args = append(args, *f.From)
	}
	if f.To != nil {
		cond += " AND created_at < ?"
		args = append(args, *f.To)
	}
	var total int
	if err := r.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM orders"+cond, args...).Scan(&total); err != nil {
		return nil, 0, err
	}
	limit, offset := f.bounds()
	rows, err := r.db.QueryContext(ctx, "SELECT "+orderColumns+" FROM orders"+cond+" ORDER BY id DESC LIMIT ? OFFSET ?",
		append(args, limit, offset)...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()
	out := []model.Order{}
	for rows.Next() {
		o, err := scanOrder(rows)
		if err != nil {
			return nil, 0, err
		}
		out = append(out, o)
	}
	return out, total, rows.Err()
}

// UpdateStatus changes the fulfilment and/or payment status.  Nil leaves a
// column unchanged.
func (r *OrderRepo) UpdateStatus(ctx context.Context, id uint64, status *model.OrderStatus, payment *model.PaymentStatus) error {
	res, err := r.db.ExecContext(ctx,
		"UPDATE orders SET status=COALESCE(?, status), payment_status=COALESCE(?, payment_status) WHERE id=?",
		status, payment, id)
	if err != nil {
		return err
	}
	return requireRow(res)
}
