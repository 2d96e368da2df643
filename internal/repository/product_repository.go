package repository

import (
	"context"
	"database/sql"
	"strings"

	"github.com/iliyamo/gym-management/internal/model"
)

// ProductRepo stores storefront products.
type ProductRepo struct{ db *sql.DB }

func NewProductRepo(db *sql.DB) *ProductRepo { return &ProductRepo{db: db} }

// ProductFilter narrows List.
type ProductFilter struct {
	Category   string
	Search     string
	ActiveOnly bool
	Page
}

const productColumns = "id, name, slug, description, category, price, stock, image_url, is_active, created_at, updated_at"

func scanProduct(s rowScanner) (model.Product, error) {
	var (
		p                   model.Product
		desc, cat, imageURL sql.NullString
	)
	err := s.Scan(&p.ID, &p.Name, &p.Slug, &desc, &cat, &p.Price, &p.Stock, &imageURL, &p.IsActive, &p.CreatedAt, &p.UpdatedAt)
	p.Description = strPtr(desc)
	p.Category = strPtr(cat)
	p.ImageURL = strPtr(imageURL)
	return p, err
}

// Create inserts p.  A taken slug yields ErrDuplicate.
func (r *ProductRepo) Create(ctx context.Context, p *model.Product) error {
	res, err := r.db.ExecContext(ctx,
		"INSERT INTO products (name, slug, description, category, price, stock, image_url, is_active) VALUES (?,?,?,?,?,?,?,?)",
		p.Name, p.Slug, p.Description, p.Category, p.Price, p.Stock, p.ImageURL, p.IsActive)
	if err != nil {
		if isDuplicate(err) {
			return ErrDuplicate
		}
		return err
	}
	p.ID, err = lastID(res)
	return err
}

// Update writes all editable columns of p.
func (r *ProductRepo) Update(ctx context.Context, p *model.Product) error {
	res, err := r.db.ExecContext(ctx,
		"UPDATE products SET name=?, slug=?, description=?, category=?, price=?, stock=?, image_url=?, is_active=? WHERE id=?",
		p.Name, p.Slug, p.Description, p.Category, p.Price, p.Stock, p.ImageURL, p.IsActive, p.ID)
	if err != nil {
		if isDuplicate(err) {
			return ErrDuplicate
		}
		return err
	}
	return requireRow(res)
}

func (r *ProductRepo) Deactivate(ctx context.Context, id uint64) error {
	res, err := r.db.ExecContext(ctx, "UPDATE products SET is_active=0 WHERE id=?", id)
	if err != nil {
		return err
	}
	return requireRow(res)
}

func (r *ProductRepo) GetByID(ctx context.Context, id uint64) (model.Product, error) {
	return scanProduct(r.db.QueryRowContext(ctx, "SELECT "+productColumns+" FROM products WHERE id=?", id))
}

func (r *ProductRepo) GetBySlug(ctx context.Context, slug string) (model.Product, error) {
	return scanProduct(r.db.QueryRowContext(ctx, "SELECT "+productColumns+" FROM products WHERE slug=?", slug))
}

// List returns one page of products and the total number of matches.
func (r *ProductRepo) List(ctx context.Context, f ProductFilter) ([]model.Product, int, error) {
	where := []string{"1=1"}
	args := []any{}
	if f.ActiveOnly {
		where = append(where, "is_active=1")
	}
	if f.Category != "" {
		where = append(where, "category=?")
		args = append(args, f.Category)
	}
	if s := strings.TrimSpace(f.Search); s != "" {
		where = append(where, "name LIKE ?")
		args = append(args, "%"+s+"%")
	}
	cond := " WHERE " + strings.Join(where, " AND ")
	var total int
	if err := r.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM products"+cond, args...).Scan(&total); err != nil {
		return nil, 0, err
	}
	limit, offset := f.bounds()
	rows, err := r.db.QueryContext(ctx, "SELECT "+productColumns+" FROM products"+cond+" ORDER BY id DESC LIMIT ? OFFSET ?",
		append(args, limit, offset)...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()
	out := []model.Product{}
	for rows.Next() {
		p, err := scanProduct(rows)
		if err != nil {
			return nil, 0, err
		}
		out = append(out, p)
	}
	return out, total, rows.Err()
}

// LockTx reads the given products FOR UPDATE, keyed by id.  Ids are
// locked in ascending order so concurrent checkouts cannot deadlock on
// each other.  Missing ids are simply absent from the map.
func (r *ProductRepo) LockTx(ctx context.Context, tx *sql.Tx, ids []uint64) (map[uint64]model.Product, error) {
	out := make(map[uint64]model.Product, len(ids))
	if len(ids) == 0 {
		return out, nil
	}
	placeholders := strings.TrimSuffix(strings.Repeat("?,", len(ids)), ",")
	args := make([]any, len(ids))
	for i, id := range ids {
		args[i] = id
	}
	rows, err := tx.QueryContext(ctx,
		"SELECT "+productColumns+" FROM products WHERE id IN ("+placeholders+") ORDER BY id FOR UPDATE", args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	for rows.Next() {
		p, err := scanProduct(rows)
		if err != nil {
			return nil, err
		}
		out[p.ID] = p
	}
	return out, rows.Err()
}

// DecrementStockTx takes qty units off a locked product.
func (r *ProductRepo) DecrementStockTx(ctx context.Context, tx *sql.Tx, id uint64, qty int) error {
	res, err := tx.ExecContext(ctx, "UPDATE products SET stock = stock - ? WHERE id=? AND stock >= ?", qty, id, qty)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrConflict
	}
	return nil
}
