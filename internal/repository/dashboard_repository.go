package repository

import (
	"context"
	"database/sql"
	"time"

	"github.com/shopspring/decimal"
)

// DashboardStats is the admin overview.
type DashboardStats struct {
	TotalMembers         int             `json:"total_members"`
	TotalTrainers        int             `json:"total_trainers"`
	ActiveMemberPackages int             `json:"active_member_packages"`
	UpcomingSchedules    int             `json:"upcoming_schedules"`
	OrdersThisMonth      int             `json:"orders_this_month"`
	RevenueThisMonth     decimal.Decimal `json:"revenue_this_month"`
	UnpaidInvoices       int             `json:"unpaid_invoices"`
	EnrollmentsThisMonth int             `json:"enrollments_this_month"`
}

// DashboardRepo runs the aggregate queries behind the dashboard.
type DashboardRepo struct{ db *sql.DB }

func NewDashboardRepo(db *sql.DB) *DashboardRepo { return &DashboardRepo{db: db} }

// Stats computes the overview relative to now.  Month bounds are taken in
// UTC.
func (r *DashboardRepo) Stats(ctx context.Context, now time.Time) (DashboardStats, error) {
	now = now.UTC()
	monthStart := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, time.UTC)
	nextMonth := monthStart.AddDate(0, 1, 0)
	today := now.Format("2006-01-02")

	var s DashboardStats
	counts := []struct {
		dst  *int
		q    string
		args []any
	}{
		{&s.TotalMembers, "SELECT COUNT(*) FROM users WHERE role='member' AND is_active=1", nil},
		{&s.TotalTrainers, "SELECT COUNT(*) FROM users WHERE role='trainer' AND is_active=1", nil},
		{&s.ActiveMemberPackages, "SELECT COUNT(*) FROM member_packages WHERE status='active'", nil},
		{&s.UpcomingSchedules, "SELECT COUNT(*) FROM schedules WHERE status='scheduled' AND class_date >= ?", []any{today}},
		{&s.OrdersThisMonth, "SELECT COUNT(*) FROM orders WHERE created_at >= ? AND created_at < ?", []any{monthStart, nextMonth}},
		{&s.UnpaidInvoices, "SELECT COUNT(*) FROM invoices WHERE status='unpaid'", nil},
		{&s.EnrollmentsThisMonth, "SELECT COUNT(*) FROM class_enrollments WHERE enrolled_at >= ? AND enrolled_at < ?", []any{monthStart, nextMonth}},
	}
	for _, c := range counts {
		if err := r.db.QueryRowContext(ctx, c.q, c.args...).Scan(c.dst); err != nil {
			return s, err
		}
	}
	err := r.db.QueryRowContext(ctx,
		"SELECT COALESCE(SUM(total_amount), 0) FROM invoices WHERE status='paid' AND paid_at >= ? AND paid_at < ?",
		monthStart, nextMonth).Scan(&s.RevenueThisMonth)
	return s, err
}
