package repository

import (
	"context"
	"database/sql"
	"time"

	"github.com/iliyamo/gym-management/internal/model"
)

// PackageRepo stores membership plans.
type PackageRepo struct{ db *sql.DB }

func NewPackageRepo(db *sql.DB) *PackageRepo { return &PackageRepo{db: db} }

const packageColumns = "id, name, description, price, duration_days, features, is_active, is_published, created_at, updated_at"

func scanPackage(s rowScanner) (model.Package, error) {
	var (
		p    model.Package
		desc sql.NullString
	)
	err := s.Scan(&p.ID, &p.Name, &desc, &p.Price, &p.DurationDays, &p.Features, &p.IsActive, &p.IsPublished, &p.CreatedAt, &p.UpdatedAt)
	p.Description = strPtr(desc)
	return p, err
}

func (r *PackageRepo) Create(ctx context.Context, p *model.Package) error {
	res, err := r.db.ExecContext(ctx,
		"INSERT INTO packages (name, description, price, duration_days, features, is_active, is_published) VALUES (?,?,?,?,?,?,?)",
		p.Name, p.Description, p.Price, p.DurationDays, p.Features, p.IsActive, p.IsPublished)
	if err != nil {
		return err
	}
	p.ID, err = lastID(res)
	return err
}

func (r *PackageRepo) Update(ctx context.Context, p *model.Package) error {
	res, err := r.db.ExecContext(ctx,
		"UPDATE packages SET name=?, description=?, price=?, duration_days=?, features=?, is_active=?, is_published=? WHERE id=?",
		p.Name, p.Description, p.Price, p.DurationDays, p.Features, p.IsActive, p.IsPublished, p.ID)
	if err != nil {
		return err
	}
	return requireRow(res)
}

// Deactivate hides a package from sale; existing member packages keep it.
func (r *PackageRepo) Deactivate(ctx context.Context, id uint64) error {
	res, err := r.db.ExecContext(ctx, "UPDATE packages SET is_active=0, is_published=0 WHERE id=?", id)
	if err != nil {
		return err
	}
	return requireRow(res)
}

func (r *PackageRepo) GetByID(ctx context.Context, id uint64) (model.Package, error) {
	return scanPackage(r.db.QueryRowContext(ctx, "SELECT "+packageColumns+" FROM packages WHERE id=?", id))
}

// GetByIDTx reads a package inside a purchase transaction.
func (r *PackageRepo) GetByIDTx(ctx context.Context, tx *sql.Tx, id uint64) (model.Package, error) {
	return scanPackage(tx.QueryRowContext(ctx, "SELECT "+packageColumns+" FROM packages WHERE id=?", id))
}

// List returns all packages, or only the active published ones for the
// storefront.
func (r *PackageRepo) List(ctx context.Context, publishedOnly bool) ([]model.Package, error) {
	q := "SELECT " + packageColumns + " FROM packages"
	if publishedOnly {
		q += " WHERE is_active=1 AND is_published=1"
	}
	rows, err := r.db.QueryContext(ctx, q+" ORDER BY price, id")
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := []model.Package{}
	for rows.Next() {
		p, err := scanPackage(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

// MemberPackageRepo stores packages bought by users.
type MemberPackageRepo struct{ db *sql.DB }

func NewMemberPackageRepo(db *sql.DB) *MemberPackageRepo { return &MemberPackageRepo{db: db} }

// MemberPackageFilter narrows List.
type MemberPackageFilter struct {
	UserID *uint64
	Status model.MemberPackageStatus
	Page
}

const memberPackageSelect = `SELECT mp.id, mp.user_id, mp.package_id, p.name, u.name, mp.start_date, mp.end_date,
	mp.status, mp.price_paid, mp.discount_amount, mp.voucher_id, mp.created_at, mp.updated_at
	FROM member_packages mp
	JOIN packages p ON p.id = mp.package_id
	JOIN users u ON u.id = mp.user_id`

func scanMemberPackage(s rowScanner) (model.MemberPackage, error) {
	var (
		mp        model.MemberPackage
		voucherID sql.NullInt64
	)
	err := s.Scan(&mp.ID, &mp.UserID, &mp.PackageID, &mp.PackageName, &mp.UserName, &mp.StartDate, &mp.EndDate,
		&mp.Status, &mp.PricePaid, &mp.DiscountAmount, &voucherID, &mp.CreatedAt, &mp.UpdatedAt)
	mp.VoucherID = uintPtr(voucherID)
	return mp, err
}

// CreateTx inserts an active member package and fills its ID.
func (r *MemberPackageRepo) CreateTx(ctx context.Context, tx *sql.Tx, mp *model.MemberPackage) error {
	res, err := tx.ExecContext(ctx,
		`INSERT INTO member_packages (user_id, package_id, start_date, end_date, status, price_paid, discount_amount, voucher_id)
		 VALUES (?,?,?,?,?,?,?,?)`,
		mp.UserID, mp.PackageID, mp.StartDate.Format("2006-01-02"), mp.EndDate.Format("2006-01-02"),
		mp.Status, mp.PricePaid, mp.DiscountAmount, mp.VoucherID)
	if err != nil {
		return err
	}
	mp.ID, err = lastID(res)
	return err
}

func (r *MemberPackageRepo) GetByID(ctx context.Context, id uint64) (model.MemberPackage, error) {
	return scanMemberPackage(r.db.QueryRowContext(ctx, memberPackageSelect+" WHERE mp.id=?", id))
}

// List returns one page of member packages, newest first.
func (r *MemberPackageRepo) List(ctx context.Context, f MemberPackageFilter) ([]model.MemberPackage, int, error) {
	cond := " WHERE 1=1"
	args := []any{}
	if f.UserID != nil {
		cond += " AND mp.user_id=?"
		args = append(args, *f.UserID)
	}
	if f.Status != "" {
		cond += " AND mp.status=?"
		args = append(args, f.Status)
	}
	var total int
	if err := r.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM member_packages mp"+cond, args...).Scan(&total); err != nil {
		return nil, 0, err
	}
	limit, offset := f.bounds()
	rows, err := r.db.QueryContext(ctx, memberPackageSelect+cond+" ORDER BY mp.id DESC LIMIT ? OFFSET ?",
		append(args, limit, offset)...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()
	out := []model.MemberPackage{}
	for rows.Next() {
		mp, err := scanMemberPackage(rows)
		if err != nil {
			return nil, 0, err
		}
		out = append(out, mp)
	}
	return out, total, rows.Err()
}

// Cancel moves an active member package to cancelled.  A missing row
// yields sql.ErrNoRows and a row in any other state yields ErrConflict.
func (r *MemberPackageRepo) Cancel(ctx context.Context, id uint64) error {
	res, err := r.db.ExecContext(ctx,
		"UPDATE member_packages SET status='cancelled' WHERE id=? AND status='active'", id)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n > 0 {
		return nil
	}
	var exists int
	if err := r.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM member_packages WHERE id=?", id).Scan(&exists); err != nil {
		return err
	}
	if exists == 0 {
		return sql.ErrNoRows
	}
	return ErrConflict
}

// ExpireDue marks active packages whose end_date is before today as
// expired and returns how many rows changed.
func (r *MemberPackageRepo) ExpireDue(ctx context.Context, today time.Time) (int64, error) {
	res, err := r.db.ExecContext(ctx,
		"UPDATE member_packages SET status='expired' WHERE status='active' AND end_date < ?",
		today.Format("2006-01-02"))
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}
