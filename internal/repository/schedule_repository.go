package repository

import (
	"context"
	"database/sql"
	"strings"
	"time"

	"github.com/iliyamo/gym-management/internal/model"
)

// ScheduleRepo provides CRUD operations for class schedules.  The
// current_participants column is never written here; see EnrollmentRepo.
type ScheduleRepo struct {
	db *sql.DB
}

// NewScheduleRepo returns a new ScheduleRepo bound to the given database.
func NewScheduleRepo(db *sql.DB) *ScheduleRepo { return &ScheduleRepo{db: db} }

// ScheduleFilter narrows List.  Zero values are ignored.
type ScheduleFilter struct {
	From      *time.Time
	To        *time.Time
	TrainerID *uint64
	Status    model.ScheduleStatus
	Search    string
	Page
}

const scheduleSelect = `SELECT s.id, s.trainer_id, u.name, s.class_name, s.description, s.class_date,
	s.start_time, s.end_time, s.room, s.floor, s.max_participants, s.current_participants,
	s.status, s.created_at, s.updated_at
	FROM schedules s LEFT JOIN users u ON u.id = s.trainer_id`

func scanSchedule(rs rowScanner) (model.Schedule, error) {
	var (
		s                 model.Schedule
		trainerID         sql.NullInt64
		trainerName, desc sql.NullString
		room, floor       sql.NullString
	)
	err := rs.Scan(&s.ID, &trainerID, &trainerName, &s.ClassName, &desc, &s.ClassDate,
		&s.StartTime, &s.EndTime, &room, &floor, &s.MaxParticipants, &s.CurrentParticipants,
		&s.Status, &s.CreatedAt, &s.UpdatedAt)
	s.TrainerID = uintPtr(trainerID)
	s.TrainerName = strPtr(trainerName)
	s.Description = strPtr(desc)
	s.Room = strPtr(room)
	s.Floor = strPtr(floor)
	return s, err
}

// Create inserts a schedule with zero participants and fills its ID.
func (r *ScheduleRepo) Create(ctx context.Context, s *model.Schedule) error {
	res, err := r.db.ExecContext(ctx,
		`INSERT INTO schedules (trainer_id, class_name, description, class_date, start_time, end_time,
		 room, floor, max_participants, status) VALUES (?,?,?,?,?,?,?,?,?,?)`,
		s.TrainerID, s.ClassName, s.Description, s.ClassDate.Format("2006-01-02"), s.StartTime, s.EndTime,
		s.Room, s.Floor, s.MaxParticipants, s.Status)
	if err != nil {
		return err
	}
	s.ID, err = lastID(res)
	return err
}

// GetByID returns the schedule with its trainer name.
func (r *ScheduleRepo) GetByID(ctx context.Context, id uint64) (model.Schedule, error) {
	return scanSchedule(r.db.QueryRowContext(ctx, scheduleSelect+" WHERE s.id=?", id))
}

// List returns one page of schedules ordered by date and start time, and
// the total number of matches.
func (r *ScheduleRepo) List(ctx context.Context, f ScheduleFilter) ([]model.Schedule, int, error) {
	where := []string{"1=1"}
	args := []any{}
	if f.From != nil {
		where = append(where, "s.class_date >= ?")
		args = append(args, f.From.Format("2006-01-02"))
	}
	if f.To != nil {
		where = append(where, "s.class_date <= ?")
		args = append(args, f.To.Format("2006-01-02"))
	}
	if f.TrainerID != nil {
		where = append(where, "s.trainer_id = ?")
		args = append(args, *f.TrainerID)
	}
	if f.Status != "" {
		where = append(where, "s.status = ?")
		args = append(args, f.Status)
	}
	if q := strings.TrimSpace(f.Search); q != "" {
		where = append(where, "s.class_name LIKE ?")
		args = append(args, "%"+q+"%")
	}
	cond := " WHERE " + strings.Join(where, " AND ")

	var total int
	if err := r.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM schedules s"+cond, args...).Scan(&total); err != nil {
		return nil, 0, err
	}
	limit, offset := f.bounds()
	rows, err := r.db.QueryContext(ctx,
		scheduleSelect+cond+" ORDER BY s.class_date, s.start_time LIMIT ? OFFSET ?",
		append(args, limit, offset)...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()
	out := []model.Schedule{}
	for rows.Next() {
		s, err := scanSchedule(rows)
		if err != nil {
			return nil, 0, err
		}
		out = append(out, s)
	}
	return out, total, rows.Err()
}

// ScheduleLock is the part of a schedule row read under FOR UPDATE.
type ScheduleLock struct {
	ID              uint64
	TrainerID       *uint64
	MaxParticipants int
	Status          model.ScheduleStatus
}

// LockTx reads the schedule row FOR UPDATE.  Every enrollment change and
// every capacity change of the schedule takes this lock first.
func (r *ScheduleRepo) LockTx(ctx context.Context, tx *sql.Tx, id uint64) (ScheduleLock, error) {
	var (
		l         ScheduleLock
		trainerID sql.NullInt64
	)
	err := tx.QueryRowContext(ctx,
		"SELECT id, trainer_id, max_participants, status FROM schedules WHERE id=? FOR UPDATE",
		id).Scan(&l.ID, &trainerID, &l.MaxParticipants, &l.Status)
	l.TrainerID = uintPtr(trainerID)
	return l, err
}

// UpdateTx writes the editable columns of s.
func (r *ScheduleRepo) UpdateTx(ctx context.Context, tx *sql.Tx, s *model.Schedule) error {
	_, err := tx.ExecContext(ctx,
		`UPDATE schedules SET trainer_id=?, class_name=?, description=?, class_date=?, start_time=?, end_time=?,
		 room=?, floor=?, max_participants=?, status=? WHERE id=?`,
		s.TrainerID, s.ClassName, s.Description, s.ClassDate.Format("2006-01-02"), s.StartTime, s.EndTime,
		s.Room, s.Floor, s.MaxParticipants, s.Status, s.ID)
	return err
}

// SetStatus changes only the status column.
func (r *ScheduleRepo) SetStatus(ctx context.Context, id uint64, status model.ScheduleStatus) error {
	res, err := r.db.ExecContext(ctx, "UPDATE schedules SET status=? WHERE id=?", status, id)
	if err != nil {
		return err
	}
	return requireRow(res)
}
