package service

import (
	"context"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/go-sql-driver/mysql"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iliyamo/gym-management/internal/model"
	"github.com/iliyamo/gym-management/internal/repository"
)

func newInvoiceService(t *testing.T) (*InvoiceService, sqlmock.Sqlmock) {
	db, mock := newMock(t)
	svc := NewInvoiceService(repository.NewInvoiceRepo(db), repository.NewOrderRepo(db), repository.NewMemberPackageRepo(db), discardLogger())
	svc.now = func() time.Time { return testNow }
	return svc, mock
}

func shopOrder() model.Order {
	return model.Order{
		ID:             900,
		UserID:         7,
		OrderNumber:    "ORD-20250314-AB12CD",
		Subtotal:       decimal.NewFromInt(650000),
		ShippingFee:    decimal.NewFromInt(30000),
		DiscountAmount: decimal.NewFromInt(50000),
		TotalAmount:    decimal.NewFromInt(630000),
		PaymentStatus:  model.PaymentPending,
	}
}

func TestInvoiceNumbering(t *testing.T) {
	ctx := context.Background()
	numberTaken := &mysql.MySQLError{Number: 1062, Message: "Duplicate entry 'INV-20250314-0004' for key 'uq_invoices_number'"}

	t.Run("next number after today's count", func(t *testing.T) {
		svc, mock := newInvoiceService(t)
		mock.ExpectQuery(countInvoicesSQL).WithArgs("INV-20250314-%").WillReturnRows(countRow(3))
		mock.ExpectExec(insertInvoiceSQL).
			WithArgs("INV-20250314-0004", 7, "shop", 900, nil, "Shop order ORD-20250314-AB12CD",
				"680000", "50000", "630000", "unpaid", testNow, sqlmock.AnyArg(), nil).
			WillReturnResult(sqlmock.NewResult(40, 1))

		inv, err := svc.CreateForOrder(ctx, shopOrder())
		require.NoError(t, err)
		assert.Equal(t, uint64(40), inv.ID)
		assert.Equal(t, "INV-20250314-0004", inv.InvoiceNumber)
		require.NotNil(t, inv.DueDate)
		assert.Equal(t, "2025-03-21", inv.DueDate.Format("2006-01-02"))
	})

	t.Run("duplicate number moves to the next one", func(t *testing.T) {
		svc, mock := newInvoiceService(t)
		mock.ExpectQuery(countInvoicesSQL).WithArgs("INV-20250314-%").WillReturnRows(countRow(3))
		mock.ExpectExec(insertInvoiceSQL).WithArgs("INV-20250314-0004", sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg(),
			sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg(),
			sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg()).WillReturnError(numberTaken)
		mock.ExpectExec(insertInvoiceSQL).WithArgs("INV-20250314-0005", sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg(),
			sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg(),
			sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg()).WillReturnResult(sqlmock.NewResult(41, 1))

		inv, err := svc.CreateForOrder(ctx, shopOrder())
		require.NoError(t, err)
		assert.Equal(t, "INV-20250314-0005", inv.InvoiceNumber)
	})

	t.Run("gives up after bounded attempts", func(t *testing.T) {
		svc, mock := newInvoiceService(t)
		mock.ExpectQuery(countInvoicesSQL).WillReturnRows(countRow(0))
		for i := 0; i < invoiceNumberAttempts; i++ {
			mock.ExpectExec(insertInvoiceSQL).WillReturnError(numberTaken)
		}

		_, err := svc.CreateForOrder(ctx, shopOrder())
		assert.ErrorIs(t, err, repository.ErrDuplicate)
	})

	t.Run("second invoice for the same order", func(t *testing.T) {
		svc, mock := newInvoiceService(t)
		mock.ExpectQuery(countInvoicesSQL).WillReturnRows(countRow(9))
		mock.ExpectExec(insertInvoiceSQL).
			WillReturnError(&mysql.MySQLError{Number: 1062, Message: "Duplicate entry '900' for key 'uq_invoices_order'"})

		_, err := svc.CreateForOrder(ctx, shopOrder())
		assert.ErrorIs(t, err, repository.ErrInvoiceExists)
	})
}
