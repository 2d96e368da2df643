package repository

import (
	"context"
	"database/sql"

	"github.com/iliyamo/gym-management/internal/model"
)

// EnrollmentRepo manages class_enrollments and is the only writer of
// schedules.current_participants.  All write methods expect the caller to
// hold the schedule row lock taken by ScheduleRepo.LockTx.
type EnrollmentRepo struct{ db *sql.DB }

func NewEnrollmentRepo(db *sql.DB) *EnrollmentRepo { return &EnrollmentRepo{db: db} }

// ExistsTx reports whether the (schedule, user) pair is already enrolled.
func (r *EnrollmentRepo) ExistsTx(ctx context.Context, tx *sql.Tx, scheduleID, userID uint64) (bool, error) {
	var n int
	err := tx.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM class_enrollments WHERE schedule_id=? AND user_id=?",
		scheduleID, userID).Scan(&n)
	return n > 0, err
}

// CountTx counts enrollment rows of a schedule.
func (r *EnrollmentRepo) CountTx(ctx context.Context, tx *sql.Tx, scheduleID uint64) (int, error) {
	var n int
	err := tx.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM class_enrollments WHERE schedule_id=?", scheduleID).Scan(&n)
	return n, err
}

// CreateTx inserts an enrolled row and returns its id.  A duplicate pair
// yields ErrDuplicate.
func (r *EnrollmentRepo) CreateTx(ctx context.Context, tx *sql.Tx, scheduleID, userID uint64) (uint64, error) {
	res, err := tx.ExecContext(ctx,
		"INSERT INTO class_enrollments (schedule_id, user_id, status) VALUES (?,?,?)",
		scheduleID, userID, model.EnrollmentEnrolled)
	if err != nil {
		if isDuplicate(err) {
			return 0, ErrDuplicate
		}
		return 0, err
	}
	return lastID(res)
}

// DeleteTx removes the pair and reports whether a row existed.
func (r *EnrollmentRepo) DeleteTx(ctx context.Context, tx *sql.Tx, scheduleID, userID uint64) (bool, error) {
	res, err := tx.ExecContext(ctx,
		"DELETE FROM class_enrollments WHERE schedule_id=? AND user_id=?", scheduleID, userID)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	return n > 0, err
}

// SyncParticipantsTx rewrites current_participants from the row count.
func (r *EnrollmentRepo) SyncParticipantsTx(ctx context.Context, tx *sql.Tx, scheduleID uint64) error {
	_, err := tx.ExecContext(ctx,
		"UPDATE schedules SET current_participants = (SELECT COUNT(*) FROM class_enrollments WHERE schedule_id=?) WHERE id=?",
		scheduleID, scheduleID)
	return err
}

const enrollmentSelect = `SELECT e.id, e.schedule_id, e.user_id, e.status, e.enrolled_at,
	u.name, u.email, s.class_name, s.class_date, s.start_time
	FROM class_enrollments e
	JOIN users u ON u.id = e.user_id
	JOIN schedules s ON s.id = e.schedule_id`

func scanEnrollment(s rowScanner) (model.ClassEnrollment, error) {
	var (
		e         model.ClassEnrollment
		classDate sql.NullTime
	)
	err := s.Scan(&e.ID, &e.ScheduleID, &e.UserID, &e.Status, &e.EnrolledAt,
		&e.UserName, &e.UserEmail, &e.ClassName, &classDate, &e.StartTime)
	e.ClassDate = timePtr(classDate)
	return e, err
}

func (r *EnrollmentRepo) list(ctx context.Context, where string, arg any) ([]model.ClassEnrollment, error) {
	rows, err := r.db.QueryContext(ctx, enrollmentSelect+" WHERE "+where+" ORDER BY s.class_date, s.start_time, e.id", arg)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := []model.ClassEnrollment{}
	for rows.Next() {
		e, err := scanEnrollment(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

// ListBySchedule returns the roster of one class.
func (r *EnrollmentRepo) ListBySchedule(ctx context.Context, scheduleID uint64) ([]model.ClassEnrollment, error) {
	return r.list(ctx, "e.schedule_id=?", scheduleID)
}

// ListByUser returns the classes a member is enrolled in.
func (r *EnrollmentRepo) ListByUser(ctx context.Context, userID uint64) ([]model.ClassEnrollment, error) {
	return r.list(ctx, "e.user_id=?", userID)
}

// GetByID returns a single enrollment.
func (r *EnrollmentRepo) GetByID(ctx context.Context, id uint64) (model.ClassEnrollment, error) {
	return scanEnrollment(r.db.QueryRowContext(ctx, enrollmentSelect+" WHERE e.id=?", id))
}

// UpdateStatus records attendance for one enrollment.
func (r *EnrollmentRepo) UpdateStatus(ctx context.Context, id uint64, status model.EnrollmentStatus) error {
	res, err := r.db.ExecContext(ctx, "UPDATE class_enrollments SET status=? WHERE id=?", status, id)
	if err != nil {
		return err
	}
	return requireRow(res)
}
