package repository

import (
	"context"
	"database/sql"
	"time"

	"github.com/iliyamo/gym-management/internal/model"
)

// InvoiceRepo stores invoices.  invoice_number, order_id and
// member_package_id are each unique.
type InvoiceRepo struct{ db *sql.DB }

func NewInvoiceRepo(db *sql.DB) *InvoiceRepo { return &InvoiceRepo{db: db} }

// InvoiceFilter narrows List.
type InvoiceFilter struct {
	UserID *uint64
	Status model.InvoiceStatus
	Type   model.InvoiceType
	Page
}

// CountWithPrefix counts invoice numbers starting with prefix, i.e. the
// invoices already numbered for one day.
func (r *InvoiceRepo) CountWithPrefix(ctx context.Context, prefix string) (int, error) {
	var n int
	err := r.db.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM invoices WHERE invoice_number LIKE ?", prefix+"%").Scan(&n)
	return n, err
}

// Create inserts inv and fills its ID.  A taken number yields ErrDuplicate;
// a second invoice for the same order or member package yields
// ErrInvoiceExists.
func (r *InvoiceRepo) Create(ctx context.Context, inv *model.Invoice) error {
	res, err := r.db.ExecContext(ctx,
		`INSERT INTO invoices (invoice_number, user_id, type, order_id, member_package_id, description,
		 subtotal, discount_amount, total_amount, status, issued_at, due_date, paid_at)
		 VALUES (?,?,?,?,?,?,?,?,?,?,?,?,?)`,
		inv.InvoiceNumber, inv.UserID, inv.Type, inv.OrderID, inv.MemberPackageID, inv.Description,
		inv.Subtotal, inv.DiscountAmount, inv.TotalAmount, inv.Status, inv.IssuedAt, inv.DueDate, inv.PaidAt)
	if err != nil {
		switch {
		case duplicateKey(err, "uq_invoices_number"):
			return ErrDuplicate
		case isDuplicate(err):
			return ErrInvoiceExists
		}
		return err
	}
	inv.ID, err = lastID(res)
	return err
}

const invoiceSelect = `SELECT i.id, i.invoice_number, i.user_id, u.name, u.email, i.type, i.order_id, i.member_package_id,
	i.description, i.subtotal, i.discount_amount, i.total_amount, i.status, i.issued_at, i.due_date, i.paid_at,
	i.created_at, i.updated_at
	FROM invoices i JOIN users u ON u.id = i.user_id`

func scanInvoice(s rowScanner) (model.Invoice, error) {
	var (
		inv             model.Invoice
		orderID, mpID   sql.NullInt64
		dueDate, paidAt sql.NullTime
	)
	err := s.Scan(&inv.ID, &inv.InvoiceNumber, &inv.UserID, &inv.CustomerName, &inv.CustomerEmail, &inv.Type,
		&orderID, &mpID, &inv.Description, &inv.Subtotal, &inv.DiscountAmount, &inv.TotalAmount, &inv.Status,
		&inv.IssuedAt, &dueDate, &paidAt, &inv.CreatedAt, &inv.UpdatedAt)
	inv.OrderID = uintPtr(orderID)
	inv.MemberPackageID = uintPtr(mpID)
	inv.DueDate = timePtr(dueDate)
	inv.PaidAt = timePtr(paidAt)
	return inv, err
}

func (r *InvoiceRepo) GetByID(ctx context.Context, id uint64) (model.Invoice, error) {
	return scanInvoice(r.db.QueryRowContext(ctx, invoiceSelect+" WHERE i.id=?", id))
}

// GetByOrderID returns the invoice of an order or sql.ErrNoRows.
func (r *InvoiceRepo) GetByOrderID(ctx context.Context, orderID uint64) (model.Invoice, error) {
	return scanInvoice(r.db.QueryRowContext(ctx, invoiceSelect+" WHERE i.order_id=?", orderID))
}

// GetByMemberPackageID returns the invoice of a member package or
// sql.ErrNoRows.
func (r *InvoiceRepo) GetByMemberPackageID(ctx context.Context, mpID uint64) (model.Invoice, error) {
	return scanInvoice(r.db.QueryRowContext(ctx, invoiceSelect+" WHERE i.member_package_id=?", mpID))
}

// List returns one page of invoices, newest first.
func (r *InvoiceRepo) List(ctx context.Context, f InvoiceFilter) ([]model.Invoice, int, error) {
	cond := " WHERE 1=1"
	args := []any{}
	if f.UserID != nil {
		cond += " AND i.user_id=?"
		args = append(args, *f.UserID)
	}
	if f.Status != "" {
		cond += " AND i.status=?"
		args = append(args, f.Status)
	}
	if f.Type != "" {
		cond += " AND i.type=?"
		args = append(args, f.Type)
	}
	var total int
	if err := r.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM invoices i"+cond, args...).Scan(&total); err != nil {
		return nil, 0, err
	}
	limit, offset := f.bounds()
	rows, err := r.db.QueryContext(ctx, invoiceSelect+cond+" ORDER BY i.id DESC LIMIT ? OFFSET ?",
		append(args, limit, offset)...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()
	out := []model.Invoice{}
	for rows.Next() {
		inv, err := scanInvoice(rows)
		if err != nil {
			return nil, 0, err
		}
		out = append(out, inv)
	}
	return out, total, rows.Err()
}

// UpdateStatus sets the status; paidAt is stored when the invoice becomes
// paid and cleared otherwise.
func (r *InvoiceRepo) UpdateStatus(ctx context.Context, id uint64, status model.InvoiceStatus, paidAt *time.Time) error {
	res, err := r.db.ExecContext(ctx, "UPDATE invoices SET status=?, paid_at=? WHERE id=?", status, paidAt, id)
	if err != nil {
		return err
	}
	return requireRow(res)
}
