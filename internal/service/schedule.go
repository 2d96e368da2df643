package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/iliyamo/gym-management/internal/apperr"
	"github.com/iliyamo/gym-management/internal/model"
	"github.com/iliyamo/gym-management/internal/repository"
)

// ScheduleService manages classes and the enrollments in them.
//
// Capacity is enforced under the schedule row lock: every enroll and
// unenroll takes SELECT ... FOR UPDATE on the schedule, counts the
// enrollment rows, writes, and rewrites current_participants from COUNT(*)
// before committing.  Concurrent enrollments into the same class therefore
// serialize and current_participants always equals the row count.
type ScheduleService struct {
	db          *sql.DB
	schedules   *repository.ScheduleRepo
	enrollments *repository.EnrollmentRepo
	users       *repository.UserRepo
}

func NewScheduleService(db *sql.DB, schedules *repository.ScheduleRepo, enrollments *repository.EnrollmentRepo, users *repository.UserRepo) *ScheduleService {
	return &ScheduleService{db: db, schedules: schedules, enrollments: enrollments, users: users}
}

// ScheduleInput is the writable part of a schedule.
type ScheduleInput struct {
	TrainerID       *uint64
	ClassName       string
	Description     *string
	ClassDate       time.Time
	StartTime       string
	EndTime         string
	Room            *string
	Floor           *string
	MaxParticipants int
	Status          model.ScheduleStatus
}

// Actor identifies the caller for ownership checks.
type Actor struct {
	UserID uint64
	Role   model.Role
}

// normalizeClock accepts HH:MM or HH:MM:SS and returns HH:MM:SS.
func normalizeClock(s string) (string, error) {
	s = strings.TrimSpace(s)
	for _, layout := range []string{"15:04:05", "15:04"} {
		if t, err := time.Parse(layout, s); err == nil {
			return t.Format("15:04:05"), nil
		}
	}
	return "", fmt.Errorf("invalid time %q", s)
}

func (s *ScheduleService) validate(ctx context.Context, in *ScheduleInput) error {
	if strings.TrimSpace(in.ClassName) == "" {
		return apperr.Validation("class_name is required")
	}
	if in.MaxParticipants <= 0 {
		return apperr.Validation("max_participants must be positive")
	}
	start, err := normalizeClock(in.StartTime)
	if err != nil {
		return apperr.Validation("start_time must be HH:MM")
	}
	end, err := normalizeClock(in.EndTime)
	if err != nil {
		return apperr.Validation("end_time must be HH:MM")
	}
	if end <= start {
		return apperr.Validation("end_time must be after start_time")
	}
	in.StartTime, in.EndTime = start, end
	if in.Status == "" {
		in.Status = model.ScheduleScheduled
	}
	if !in.Status.Valid() {
		return apperr.Validation("Invalid status")
	}
	if in.TrainerID != nil {
		u, err := s.users.GetByID(ctx, *in.TrainerID)
		if err != nil {
			return notFoundOr(err, "Trainer not found")
		}
		if u.Role != model.RoleTrainer || !u.IsActive {
			return apperr.Validation("trainer_id is not an active trainer")
		}
	}
	return nil
}

func (in ScheduleInput) toModel() model.Schedule {
	return model.Schedule{
		TrainerID:       in.TrainerID,
		ClassName:       strings.TrimSpace(in.ClassName),
		Description:     in.Description,
		ClassDate:       dateOnly(in.ClassDate),
		StartTime:       in.StartTime,
		EndTime:         in.EndTime,
		Room:            in.Room,
		Floor:           in.Floor,
		MaxParticipants: in.MaxParticipants,
		Status:          in.Status,
	}
}

func (s *ScheduleService) Create(ctx context.Context, in ScheduleInput) (model.Schedule, error) {
	if err := s.validate(ctx, &in); err != nil {
		return model.Schedule{}, err
	}
	sc := in.toModel()
	if err := s.schedules.Create(ctx, &sc); err != nil {
		return sc, apperr.Internal("create schedule failed", err)
	}
	return s.Get(ctx, sc.ID)
}

func (s *ScheduleService) Get(ctx context.Context, id uint64) (model.Schedule, error) {
	sc, err := s.schedules.GetByID(ctx, id)
	if err != nil {
		return sc, notFoundOr(err, "Schedule not found")
	}
	return sc, nil
}

func (s *ScheduleService) List(ctx context.Context, f repository.ScheduleFilter) ([]model.Schedule, int, error) {
	out, total, err := s.schedules.List(ctx, f)
	if err != nil {
		return nil, 0, apperr.Internal("list schedules failed", err)
	}
	return out, total, nil
}

// Update rewrites a schedule.  Capacity cannot drop below the number of
// enrolled members.
func (s *ScheduleService) Update(ctx context.Context, id uint64, in ScheduleInput) (model.Schedule, error) {
	if err := s.validate(ctx, &in); err != nil {
		return model.Schedule{}, err
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return model.Schedule{}, apperr.Internal("failed to start transaction", err)
	}
	committed := false
	defer rollback(tx, &committed)

	if _, err := s.schedules.LockTx(ctx, tx, id); err != nil {
		return model.Schedule{}, notFoundOr(err, "Schedule not found")
	}
	n, err := s.enrollments.CountTx(ctx, tx, id)
	if err != nil {
		return model.Schedule{}, apperr.Internal("count enrollments failed", err)
	}
	if in.MaxParticipants < n {
		return model.Schedule{}, apperr.Validation(fmt.Sprintf("max_participants cannot be below the %d enrolled members", n))
	}
	sc := in.toModel()
	sc.ID = id
	if err := s.schedules.UpdateTx(ctx, tx, &sc); err != nil {
		return model.Schedule{}, apperr.Internal("update schedule failed", err)
	}
	if err := tx.Commit(); err != nil {
		return model.Schedule{}, apperr.Internal("failed to commit transaction", err)
	}
	committed = true
	return s.Get(ctx, id)
}

// Cancel is the delete operation for schedules.
func (s *ScheduleService) Cancel(ctx context.Context, id uint64) error {
	if err := s.schedules.SetStatus(ctx, id, model.ScheduleCancelled); err != nil {
		return notFoundOr(err, "Schedule not found")
	}
	return nil
}

// Enrollment is the outcome of Enroll.
type Enrollment struct {
	EnrollmentID        uint64 `json:"enrollment_id"`
	ScheduleID          uint64 `json:"schedule_id"`
	UserID              uint64 `json:"user_id"`
	CurrentParticipants int    `json:"current_participants"`
	MaxParticipants     int    `json:"max_participants"`
}

// Enroll admits userID into the class if it exists, is open, has a free
// place and the user is not already in it.
func (s *ScheduleService) Enroll(ctx context.Context, scheduleID, userID uint64) (Enrollment, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return Enrollment{}, apperr.Internal("failed to start transaction", err)
	}
	committed := false
	defer rollback(tx, &committed)

	sc, err := s.schedules.LockTx(ctx, tx, scheduleID)
	if err != nil {
		return Enrollment{}, notFoundOr(err, "Schedule not found")
	}
	if sc.Status != model.ScheduleScheduled {
		return Enrollment{}, apperr.Validation("Class is not open for enrollment")
	}
	exists, err := s.enrollments.ExistsTx(ctx, tx, scheduleID, userID)
	if err != nil {
		return Enrollment{}, apperr.Internal("check enrollment failed", err)
	}
	if exists {
		return Enrollment{}, apperr.Conflict("User is already enrolled")
	}
	n, err := s.enrollments.CountTx(ctx, tx, scheduleID)
	if err != nil {
		return Enrollment{}, apperr.Internal("count enrollments failed", err)
	}
	if n >= sc.MaxParticipants {
		return Enrollment{}, apperr.Validation("Class is full")
	}
	id, err := s.enrollments.CreateTx(ctx, tx, scheduleID, userID)
	if err != nil {
		if errors.Is(err, repository.ErrDuplicate) {
			return Enrollment{}, apperr.Conflict("User is already enrolled")
		}
		return Enrollment{}, apperr.Internal("create enrollment failed", err)
	}
	if err := s.enrollments.SyncParticipantsTx(ctx, tx, scheduleID); err != nil {
		return Enrollment{}, apperr.Internal("update participants failed", err)
	}
	if err := tx.Commit(); err != nil {
		return Enrollment{}, apperr.Internal("failed to commit transaction", err)
	}
	committed = true
	return Enrollment{
		EnrollmentID:        id,
		ScheduleID:          scheduleID,
		UserID:              userID,
		CurrentParticipants: n + 1,
		MaxParticipants:     sc.MaxParticipants,
	}, nil
}

// Unenroll removes userID from the class.
func (s *ScheduleService) Unenroll(ctx context.Context, scheduleID, userID uint64) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return apperr.Internal("failed to start transaction", err)
	}
	committed := false
	defer rollback(tx, &committed)

	if _, err := s.schedules.LockTx(ctx, tx, scheduleID); err != nil {
		return notFoundOr(err, "Schedule not found")
	}
	ok, err := s.enrollments.DeleteTx(ctx, tx, scheduleID, userID)
	if err != nil {
		return apperr.Internal("delete enrollment failed", err)
	}
	if !ok {
		return apperr.NotFound("Enrollment not found")
	}
	if err := s.enrollments.SyncParticipantsTx(ctx, tx, scheduleID); err != nil {
		return apperr.Internal("update participants failed", err)
	}
	if err := tx.Commit(); err != nil {
		return apperr.Internal("failed to commit transaction", err)
	}
	committed = true
	return nil
}

// canManage reports whether actor may see or mark the roster of sc.
func canManage(actor Actor, sc model.Schedule) bool {
	if actor.Role == model.RoleAdmin {
		return true
	}
	return actor.Role == model.RoleTrainer && sc.TrainerID != nil && *sc.TrainerID == actor.UserID
}

// Roster lists the members of a class.  Trainers only see their own
// classes.
func (s *ScheduleService) Roster(ctx context.Context, actor Actor, scheduleID uint64) ([]model.ClassEnrollment, error) {
	sc, err := s.Get(ctx, scheduleID)
	if err != nil {
		return nil, err
	}
	if !canManage(actor, sc) {
		return nil, apperr.Forbidden("Not your class")
	}
	out, err := s.enrollments.ListBySchedule(ctx, scheduleID)
	if err != nil {
		return nil, apperr.Internal("list enrollments failed", err)
	}
	return out, nil
}

// MyEnrollments lists the classes of a member.
func (s *ScheduleService) MyEnrollments(ctx context.Context, userID uint64) ([]model.ClassEnrollment, error) {
	out, err := s.enrollments.ListByUser(ctx, userID)
	if err != nil {
		return nil, apperr.Internal("list enrollments failed", err)
	}
	return out, nil
}

// SetEnrollmentStatus records attendance.
func (s *ScheduleService) SetEnrollmentStatus(ctx context.Context, actor Actor, enrollmentID uint64, status model.EnrollmentStatus) (model.ClassEnrollment, error) {
	if !status.Valid() {
		return model.ClassEnrollment{}, apperr.Validation("Invalid status")
	}
	e, err := s.enrollments.GetByID(ctx, enrollmentID)
	if err != nil {
		return e, notFoundOr(err, "Enrollment not found")
	}
	sc, err := s.Get(ctx, e.ScheduleID)
	if err != nil {
		return e, err
	}
	if !canManage(actor, sc) {
		return e, apperr.Forbidden("Not your class")
	}
	if err := s.enrollments.UpdateStatus(ctx, enrollmentID, status); err != nil {
		return e, notFoundOr(err, "Enrollment not found")
	}
	e.Status = status
	return e, nil
}
