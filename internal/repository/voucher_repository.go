package repository

import (
	"context"
	"database/sql"
	"strings"

	"github.com/iliyamo/gym-management/internal/model"
)

// VoucherRepo stores discount codes.
type VoucherRepo struct{ db *sql.DB }

func NewVoucherRepo(db *sql.DB) *VoucherRepo { return &VoucherRepo{db: db} }

const voucherColumns = `id, code, description, discount_type, discount_value, min_order_value, max_discount,
	usage_limit, used_count, valid_from, valid_until, is_active, created_at, updated_at`

func scanVoucher(s rowScanner) (model.Voucher, error) {
	var (
		v          model.Voucher
		desc       sql.NullString
		usageLimit sql.NullInt64
	)
	err := s.Scan(&v.ID, &v.Code, &desc, &v.DiscountType, &v.DiscountValue, &v.MinOrderValue, &v.MaxDiscount,
		&usageLimit, &v.UsedCount, &v.ValidFrom, &v.ValidUntil, &v.IsActive, &v.CreatedAt, &v.UpdatedAt)
	v.Description = strPtr(desc)
	v.UsageLimit = intPtr(usageLimit)
	return v, err
}

// Create inserts v.  A taken code yields ErrDuplicate.
func (r *VoucherRepo) Create(ctx context.Context, v *model.Voucher) error {
	res, err := r.db.ExecContext(ctx,
		`INSERT INTO vouchers (code, description, discount_type, discount_value, min_order_value, max_discount,
		 usage_limit, valid_from, valid_until, is_active) VALUES (?,?,?,?,?,?,?,?,?,?)`,
		v.Code, v.Description, v.DiscountType, v.DiscountValue, v.MinOrderValue, v.MaxDiscount,
		v.UsageLimit, v.ValidFrom, v.ValidUntil, v.IsActive)
	if err != nil {
		if isDuplicate(err) {
			return ErrDuplicate
		}
		return err
	}
	v.ID, err = lastID(res)
	return err
}

// Update writes the editable columns; used_count is left alone.
func (r *VoucherRepo) Update(ctx context.Context, v *model.Voucher) error {
	res, err := r.db.ExecContext(ctx,
		`UPDATE vouchers SET code=?, description=?, discount_type=?, discount_value=?, min_order_value=?, max_discount=?,
		 usage_limit=?, valid_from=?, valid_until=?, is_active=? WHERE id=?`,
		v.Code, v.Description, v.DiscountType, v.DiscountValue, v.MinOrderValue, v.MaxDiscount,
		v.UsageLimit, v.ValidFrom, v.ValidUntil, v.IsActive, v.ID)
	if err != nil {
		if isDuplicate(err) {
			return ErrDuplicate
		}
		return err
	}
	return requireRow(res)
}

func (r *VoucherRepo) Deactivate(ctx context.Context, id uint64) error {
	res, err := r.db.ExecContext(ctx, "UPDATE vouchers SET is_active=0 WHERE id=?", id)
	if err != nil {
		return err
	}
	return requireRow(res)
}

func (r *VoucherRepo) GetByID(ctx context.Context, id uint64) (model.Voucher, error) {
	return scanVoucher(r.db.QueryRowContext(ctx, "SELECT "+voucherColumns+" FROM vouchers WHERE id=?", id))
}

// GetByCode looks a voucher up by its (upper-cased) code.
func (r *VoucherRepo) GetByCode(ctx context.Context, code string) (model.Voucher, error) {
	return r.getByCode(ctx, r.db, code)
}

// GetByCodeTx is GetByCode inside a checkout transaction.
func (r *VoucherRepo) GetByCodeTx(ctx context.Context, tx *sql.Tx, code string) (model.Voucher, error) {
	return r.getByCode(ctx, tx, code)
}

func (r *VoucherRepo) getByCode(ctx context.Context, q querier, code string) (model.Voucher, error) {
	code = strings.ToUpper(strings.TrimSpace(code))
	return scanVoucher(q.QueryRowContext(ctx, "SELECT "+voucherColumns+" FROM vouchers WHERE code=?", code))
}

// List returns vouchers newest first.
func (r *VoucherRepo) List(ctx context.Context, activeOnly bool, p Page) ([]model.Voucher, int, error) {
	cond := ""
	if activeOnly {
		cond = " WHERE is_active=1"
	}
	var total int
	if err := r.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM vouchers"+cond).Scan(&total); err != nil {
		return nil, 0, err
	}
	limit, offset := p.bounds()
	rows, err := r.db.QueryContext(ctx, "SELECT "+voucherColumns+" FROM vouchers"+cond+" ORDER BY id DESC LIMIT ? OFFSET ?", limit, offset)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()
	out := []model.Voucher{}
	for rows.Next() {
		v, err := scanVoucher(rows)
		if err != nil {
			return nil, 0, err
		}
		out = append(out, v)
	}
	return out, total, rows.Err()
}

// UseTx consumes one use of the voucher in a single conditional statement.
// It reports false when the usage limit is already reached.
func (r *VoucherRepo) UseTx(ctx context.Context, tx *sql.Tx, id uint64) (bool, error) {
	res, err := tx.ExecContext(ctx,
		"UPDATE vouchers SET used_count = used_count + 1 WHERE id=? AND (usage_limit IS NULL OR used_count < usage_limit)",
		id)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	return n > 0, err
}
