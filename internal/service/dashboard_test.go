package service

import (
	"context"
	"errors"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iliyamo/gym-management/internal/apperr"
	"github.com/iliyamo/gym-management/internal/repository"
)

func TestDashboardStats(t *testing.T) {
	db, mock := newMock(t)
	svc := NewDashboardService(repository.NewDashboardRepo(db))
	svc.now = func() time.Time { return testNow }

	monthStart := time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC)
	nextMonth := time.Date(2025, 4, 1, 0, 0, 0, 0, time.UTC)
	count := func(n int) *sqlmock.Rows { return sqlmock.NewRows([]string{"n"}).AddRow(n) }

	mock.ExpectQuery(regexp.QuoteMeta("FROM users WHERE role='member'")).WillReturnRows(count(120))
	mock.ExpectQuery(regexp.QuoteMeta("FROM users WHERE role='trainer'")).WillReturnRows(count(8))
	mock.ExpectQuery(regexp.QuoteMeta("FROM member_packages WHERE status='active'")).WillReturnRows(count(95))
	mock.ExpectQuery(regexp.QuoteMeta("FROM schedules WHERE status='scheduled'")).WithArgs("2025-03-14").WillReturnRows(count(14))
	mock.ExpectQuery(regexp.QuoteMeta("FROM orders WHERE created_at")).WithArgs(monthStart, nextMonth).WillReturnRows(count(31))
	mock.ExpectQuery(regexp.QuoteMeta("FROM invoices WHERE status='unpaid'")).WillReturnRows(count(6))
	mock.ExpectQuery(regexp.QuoteMeta("FROM class_enrollments WHERE enrolled_at")).WithArgs(monthStart, nextMonth).WillReturnRows(count(210))
	mock.ExpectQuery(regexp.QuoteMeta("SUM(total_amount)")).WithArgs(monthStart, nextMonth).
		WillReturnRows(sqlmock.NewRows([]string{"s"}).AddRow("48250000.00"))

	st, err := svc.Stats(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 120, st.TotalMembers)
	assert.Equal(t, 8, st.TotalTrainers)
	assert.Equal(t, 95, st.ActiveMemberPackages)
	assert.Equal(t, 14, st.UpcomingSchedules)
	assert.Equal(t, 31, st.OrdersThisMonth)
	assert.Equal(t, 6, st.UnpaidInvoices)
	assert.Equal(t, 210, st.EnrollmentsThisMonth)
	assert.Equal(t, "48250000", st.RevenueThisMonth.String())
}

func TestDashboardStatsFailure(t *testing.T) {
	db, mock := newMock(t)
	svc := NewDashboardService(repository.NewDashboardRepo(db))
	mock.ExpectQuery(regexp.QuoteMeta("FROM users WHERE role='member'")).WillReturnError(errors.New("too many connections"))

	_, err := svc.Stats(context.Background())
	requireKind(t, err, apperr.KindInternal, "load dashboard failed")
}
