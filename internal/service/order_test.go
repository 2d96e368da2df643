package service

import (
	"context"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/go-sql-driver/mysql"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iliyamo/gym-management/internal/apperr"
	"github.com/iliyamo/gym-management/internal/model"
	"github.com/iliyamo/gym-management/internal/repository"
)

var (
	lockProductsSQL  = regexp.QuoteMeta("FROM products WHERE id IN (?,?) ORDER BY id FOR UPDATE")
	decrementSQL     = regexp.QuoteMeta("UPDATE products SET stock = stock - ? WHERE id=? AND stock >= ?")
	insertOrderSQL   = regexp.QuoteMeta("INSERT INTO orders (user_id, order_number")
	insertItemsSQL   = regexp.QuoteMeta("INSERT INTO order_items (order_id, product_id, product_name, unit_price, quantity, subtotal) VALUES (?, ?, ?, ?, ?, ?),(?, ?, ?, ?, ?, ?)")
	countInvoicesSQL = regexp.QuoteMeta("SELECT COUNT(*) FROM invoices WHERE invoice_number LIKE ?")
	insertInvoiceSQL = regexp.QuoteMeta("INSERT INTO invoices (invoice_number")
)

var productCols = []string{"id", "name", "slug", "description", "category", "price", "stock", "image_url", "is_active", "created_at", "updated_at"}

func newOrderService(t *testing.T) (*OrderService, sqlmock.Sqlmock) {
	db, mock := newMock(t)
	orders := repository.NewOrderRepo(db)
	invoices := NewInvoiceService(repository.NewInvoiceRepo(db), orders, repository.NewMemberPackageRepo(db), discardLogger())
	invoices.now = func() time.Time { return testNow }
	vouchers := NewVoucherService(repository.NewVoucherRepo(db))
	vouchers.now = func() time.Time { return testNow }
	svc := NewOrderService(db, orders, repository.NewProductRepo(db), vouchers, invoices, NopPublisher{}, discardLogger())
	svc.now = func() time.Time { return testNow }
	return svc, mock
}

func twoProducts() *sqlmock.Rows {
	return sqlmock.NewRows(productCols).
		AddRow(1, "Whey 2kg", "whey-2kg", nil, "supplement", "200000.00", 10, nil, true, testNow, testNow).
		AddRow(2, "Gloves", "gloves", nil, "gear", "150000.00", 5, nil, true, testNow, testNow)
}

func checkoutInput() CheckoutInput {
	return CheckoutInput{
		Items: []CartItem{
			{ProductID: 2, Quantity: 2},
			{ProductID: 1, Quantity: 1},
			{ProductID: 2, Quantity: 1},
		},
		ShippingAddress: model.ShippingAddress{FullName: "Ana", Phone: "0900", Address: "1 Main St", City: "Hanoi"},
		ShippingFee:     decimal.NewFromInt(30000),
	}
}

func TestCheckout(t *testing.T) {
	ctx := context.Background()

	t.Run("totals, stock and item rows", func(t *testing.T) {
		svc, mock := newOrderService(t)
		mock.ExpectBegin()
		mock.ExpectQuery(lockProductsSQL).WithArgs(1, 2).WillReturnRows(twoProducts())
		mock.ExpectExec(decrementSQL).WithArgs(1, 1, 1).WillReturnResult(sqlmock.NewResult(0, 1))
		mock.ExpectExec(decrementSQL).WithArgs(3, 2, 3).WillReturnResult(sqlmock.NewResult(0, 1))
		mock.ExpectExec(insertOrderSQL).
			WithArgs(7, sqlmock.AnyArg(), "650000", "30000", "0", "680000", nil, sqlmock.AnyArg(), "cod", "pending", "pending", nil).
			WillReturnResult(sqlmock.NewResult(900, 1))
		mock.ExpectExec(insertItemsSQL).
			WithArgs(900, 1, "Whey 2kg", "200000", 1, "200000", 900, 2, "Gloves", "150000", 3, "450000").
			WillReturnResult(sqlmock.NewResult(1, 2))
		mock.ExpectCommit()
		mock.ExpectQuery(countInvoicesSQL).WithArgs("INV-20250314-%").WillReturnRows(countRow(2))
		mock.ExpectExec(insertInvoiceSQL).WillReturnResult(sqlmock.NewResult(31, 1))

		o, err := svc.Checkout(ctx, 7, checkoutInput())
		require.NoError(t, err)
		assert.Equal(t, uint64(900), o.ID)
		assert.Regexp(t, `^ORD-20250314-[A-Z0-9]{6}$`, o.OrderNumber)
		assert.Equal(t, "650000", o.Subtotal.String())
		assert.Equal(t, "680000", o.TotalAmount.String())
		require.Len(t, o.Items, 2)
		assert.Equal(t, 3, o.Items[1].Quantity)
	})

	t.Run("order number collision is retried", func(t *testing.T) {
		svc, mock := newOrderService(t)
		mock.ExpectBegin()
		mock.ExpectQuery(lockProductsSQL).WithArgs(1, 2).WillReturnRows(twoProducts())
		mock.ExpectExec(decrementSQL).WillReturnResult(sqlmock.NewResult(0, 1))
		mock.ExpectExec(decrementSQL).WillReturnResult(sqlmock.NewResult(0, 1))
		mock.ExpectExec(insertOrderSQL).
			WillReturnError(&mysql.MySQLError{Number: 1062, Message: "Duplicate entry for key 'uq_orders_number'"})
		mock.ExpectExec(insertOrderSQL).WillReturnResult(sqlmock.NewResult(901, 1))
		mock.ExpectExec(insertItemsSQL).WillReturnResult(sqlmock.NewResult(1, 2))
		mock.ExpectCommit()
		mock.ExpectQuery(countInvoicesSQL).WillReturnRows(countRow(0))
		mock.ExpectExec(insertInvoiceSQL).WillReturnResult(sqlmock.NewResult(32, 1))

		o, err := svc.Checkout(ctx, 7, checkoutInput())
		require.NoError(t, err)
		assert.Equal(t, uint64(901), o.ID)
	})

	t.Run("insufficient stock rolls back", func(t *testing.T) {
		svc, mock := newOrderService(t)
		in := checkoutInput()
		in.Items = append(in.Items, CartItem{ProductID: 2, Quantity: 10})
		mock.ExpectBegin()
		mock.ExpectQuery(lockProductsSQL).WithArgs(1, 2).WillReturnRows(twoProducts())
		mock.ExpectRollback()

		_, err := svc.Checkout(ctx, 7, in)
		requireKind(t, err, apperr.KindValidation, "Insufficient stock for Gloves")
	})

	t.Run("invoice failure keeps the order", func(t *testing.T) {
		svc, mock := newOrderService(t)
		mock.ExpectBegin()
		mock.ExpectQuery(lockProductsSQL).WithArgs(1, 2).WillReturnRows(twoProducts())
		mock.ExpectExec(decrementSQL).WillReturnResult(sqlmock.NewResult(0, 1))
		mock.ExpectExec(decrementSQL).WillReturnResult(sqlmock.NewResult(0, 1))
		mock.ExpectExec(insertOrderSQL).WillReturnResult(sqlmock.NewResult(902, 1))
		mock.ExpectExec(insertItemsSQL).WillReturnResult(sqlmock.NewResult(1, 2))
		mock.ExpectCommit()
		mock.ExpectQuery(countInvoicesSQL).WillReturnError(assert.AnError)

		o, err := svc.Checkout(ctx, 7, checkoutInput())
		require.NoError(t, err)
		assert.Equal(t, uint64(902), o.ID)
	})

	t.Run("empty cart", func(t *testing.T) {
		svc, _ := newOrderService(t)
		_, err := svc.Checkout(ctx, 7, CheckoutInput{})
		requireKind(t, err, apperr.KindValidation, "Cart is empty")
	})
}

func TestMergeCart(t *testing.T) {
	got, err := mergeCart([]CartItem{{ProductID: 5, Quantity: 1}, {ProductID: 2, Quantity: 2}, {ProductID: 5, Quantity: 4}})
	require.NoError(t, err)
	assert.Equal(t, []CartItem{{ProductID: 2, Quantity: 2}, {ProductID: 5, Quantity: 5}}, got)

	_, err = mergeCart([]CartItem{{ProductID: 1, Quantity: 0}})
	requireKind(t, err, apperr.KindValidation, "")
}
