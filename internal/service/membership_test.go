package service

import (
	"context"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iliyamo/gym-management/internal/apperr"
	"github.com/iliyamo/gym-management/internal/model"
	"github.com/iliyamo/gym-management/internal/repository"
)

var (
	cancelPackageSQL = regexp.QuoteMeta("UPDATE member_packages SET status='cancelled' WHERE id=? AND status='active'")
	packageExistsSQL = regexp.QuoteMeta("SELECT COUNT(*) FROM member_packages WHERE id=?")
	expireDueSQL     = regexp.QuoteMeta("UPDATE member_packages SET status='expired' WHERE status='active' AND end_date < ?")
	packageByIDSQL   = regexp.QuoteMeta("FROM packages WHERE id=?")
	voucherByCodeSQL = regexp.QuoteMeta("FROM vouchers WHERE code=?")
	useVoucherSQL    = regexp.QuoteMeta("UPDATE vouchers SET used_count = used_count + 1 WHERE id=?")
	insertMemberSQL  = regexp.QuoteMeta("INSERT INTO member_packages (user_id, package_id")
)

var (
	packageCols = []string{"id", "name", "description", "price", "duration_days", "features", "is_active", "is_published", "created_at", "updated_at"}
	voucherCols = []string{"id", "code", "description", "discount_type", "discount_value", "min_order_value", "max_discount",
		"usage_limit", "used_count", "valid_from", "valid_until", "is_active", "created_at", "updated_at"}
)

func newMembershipService(t *testing.T) (*MembershipService, sqlmock.Sqlmock) {
	db, mock := newMock(t)
	invoices := NewInvoiceService(repository.NewInvoiceRepo(db), repository.NewOrderRepo(db), repository.NewMemberPackageRepo(db), discardLogger())
	invoices.now = func() time.Time { return testNow }
	vouchers := NewVoucherService(repository.NewVoucherRepo(db))
	vouchers.now = func() time.Time { return testNow }
	svc := NewMembershipService(db, repository.NewPackageRepo(db), repository.NewMemberPackageRepo(db), repository.NewUserRepo(db),
		vouchers, invoices, NopPublisher{}, discardLogger())
	svc.now = func() time.Time { return testNow }
	return svc, mock
}

func TestCancelMemberPackage(t *testing.T) {
	ctx := context.Background()
	cases := []struct {
		name     string
		affected int64
		exists   int
		kind     apperr.Kind
		msg      string
	}{
		{name: "active package", affected: 1},
		{name: "already expired", exists: 1, kind: apperr.KindValidation, msg: "Only active packages can be cancelled"},
		{name: "unknown id", exists: 0, kind: apperr.KindNotFound, msg: "Member package not found"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			svc, mock := newMembershipService(t)
			mock.ExpectExec(cancelPackageSQL).WithArgs(12).WillReturnResult(sqlmock.NewResult(0, tc.affected))
			if tc.affected == 0 {
				mock.ExpectQuery(packageExistsSQL).WithArgs(12).WillReturnRows(countRow(tc.exists))
			}
			err := svc.Cancel(ctx, 12)
			if tc.msg == "" {
				require.NoError(t, err)
				return
			}
			requireKind(t, err, tc.kind, tc.msg)
		})
	}
}

func TestExpireDue(t *testing.T) {
	svc, mock := newMembershipService(t)
	mock.ExpectExec(expireDueSQL).WithArgs("2025-03-14").WillReturnResult(sqlmock.NewResult(0, 4))

	n, err := svc.ExpireDue(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(4), n)
}

func TestPurchaseWithVoucher(t *testing.T) {
	svc, mock := newMembershipService(t)
	mock.ExpectBegin()
	mock.ExpectQuery(packageByIDSQL).WithArgs(3).WillReturnRows(sqlmock.NewRows(packageCols).
		AddRow(3, "Gold 30", nil, "500000.00", 30, []byte(`["Locker","Sauna"]`), true, true, testNow, testNow))
	mock.ExpectQuery(voucherByCodeSQL).WithArgs("GOLD10OFF").WillReturnRows(sqlmock.NewRows(voucherCols).
		AddRow(8, "GOLD10OFF", nil, "percentage", "10.00", "0.00", nil, 100, 4, testNow.AddDate(0, -1, 0), testNow.AddDate(0, 1, 0), true, testNow, testNow))
	mock.ExpectExec(useVoucherSQL).WithArgs(8).WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(insertMemberSQL).
		WithArgs(7, 3, "2025-03-14", "2025-04-13", "active", "450000", "50000", 8).
		WillReturnResult(sqlmock.NewResult(60, 1))
	mock.ExpectCommit()
	mock.ExpectQuery(countInvoicesSQL).WithArgs("INV-20250314-%").WillReturnRows(countRow(0))
	mock.ExpectExec(insertInvoiceSQL).WithArgs("INV-20250314-0001", 7, "membership", nil, 60, sqlmock.AnyArg(),
		"500000", "50000", "450000", "unpaid", testNow, sqlmock.AnyArg(), nil).
		WillReturnResult(sqlmock.NewResult(70, 1))

	mp, err := svc.Purchase(context.Background(), Actor{UserID: 7, Role: model.RoleMember},
		PurchaseInput{PackageID: 3, VoucherCode: "gold10off"})
	require.NoError(t, err)
	assert.Equal(t, uint64(60), mp.ID)
	assert.Equal(t, "2025-04-13", mp.EndDate.Format("2006-01-02"))
	assert.Equal(t, "450000", mp.PricePaid.String())
}
