package service

import (
	"context"
	"regexp"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/go-sql-driver/mysql"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iliyamo/gym-management/internal/apperr"
	"github.com/iliyamo/gym-management/internal/model"
	"github.com/iliyamo/gym-management/internal/repository"
)

var (
	lockScheduleSQL = regexp.QuoteMeta("SELECT id, trainer_id, max_participants, status FROM schedules WHERE id=? FOR UPDATE")
	existsPairSQL   = regexp.QuoteMeta("SELECT COUNT(*) FROM class_enrollments WHERE schedule_id=? AND user_id=?")
	countRowsSQL    = regexp.QuoteMeta("SELECT COUNT(*) FROM class_enrollments WHERE schedule_id=?")
	insertEnrollSQL = regexp.QuoteMeta("INSERT INTO class_enrollments (schedule_id, user_id, status) VALUES (?,?,?)")
	syncCountSQL    = regexp.QuoteMeta("UPDATE schedules SET current_participants = (SELECT COUNT(*) FROM class_enrollments WHERE schedule_id=?) WHERE id=?")
	deleteEnrollSQL = regexp.QuoteMeta("DELETE FROM class_enrollments WHERE schedule_id=? AND user_id=?")
)

func newScheduleService(t *testing.T) (*ScheduleService, sqlmock.Sqlmock) {
	db, mock := newMock(t)
	return NewScheduleService(db,
		repository.NewScheduleRepo(db),
		repository.NewEnrollmentRepo(db),
		repository.NewUserRepo(db)), mock
}

func lockRow(maxParticipants int, status string) *sqlmock.Rows {
	return sqlmock.NewRows([]string{"id", "trainer_id", "max_participants", "status"}).
		AddRow(10, 3, maxParticipants, status)
}

func countRow(n int) *sqlmock.Rows {
	return sqlmock.NewRows([]string{"COUNT(*)"}).AddRow(n)
}

func TestEnroll(t *testing.T) {
	ctx := context.Background()

	t.Run("admits into a class with a free place", func(t *testing.T) {
		svc, mock := newScheduleService(t)
		mock.ExpectBegin()
		mock.ExpectQuery(lockScheduleSQL).WithArgs(10).WillReturnRows(lockRow(20, "scheduled"))
		mock.ExpectQuery(existsPairSQL).WithArgs(10, 7).WillReturnRows(countRow(0))
		mock.ExpectQuery(countRowsSQL).WithArgs(10).WillReturnRows(countRow(19))
		mock.ExpectExec(insertEnrollSQL).WithArgs(10, 7, "enrolled").WillReturnResult(sqlmock.NewResult(55, 1))
		mock.ExpectExec(syncCountSQL).WithArgs(10, 10).WillReturnResult(sqlmock.NewResult(0, 1))
		mock.ExpectCommit()

		e, err := svc.Enroll(ctx, 10, 7)
		require.NoError(t, err)
		assert.Equal(t, uint64(55), e.EnrollmentID)
		assert.Equal(t, 20, e.CurrentParticipants)
		assert.Equal(t, 20, e.MaxParticipants)
	})

	t.Run("full class is rejected and nothing is written", func(t *testing.T) {
		svc, mock := newScheduleService(t)
		mock.ExpectBegin()
		mock.ExpectQuery(lockScheduleSQL).WithArgs(10).WillReturnRows(lockRow(20, "scheduled"))
		mock.ExpectQuery(existsPairSQL).WithArgs(10, 7).WillReturnRows(countRow(0))
		mock.ExpectQuery(countRowsSQL).WithArgs(10).WillReturnRows(countRow(20))
		mock.ExpectRollback()

		_, err := svc.Enroll(ctx, 10, 7)
		requireKind(t, err, apperr.KindValidation, "Class is full")
	})

	t.Run("second enrollment of the same user", func(t *testing.T) {
		svc, mock := newScheduleService(t)
		mock.ExpectBegin()
		mock.ExpectQuery(lockScheduleSQL).WithArgs(10).WillReturnRows(lockRow(20, "scheduled"))
		mock.ExpectQuery(existsPairSQL).WithArgs(10, 7).WillReturnRows(countRow(1))
		mock.ExpectRollback()

		_, err := svc.Enroll(ctx, 10, 7)
		requireKind(t, err, apperr.KindConflict, "User is already enrolled")
	})

	t.Run("duplicate key from a concurrent insert", func(t *testing.T) {
		svc, mock := newScheduleService(t)
		mock.ExpectBegin()
		mock.ExpectQuery(lockScheduleSQL).WithArgs(10).WillReturnRows(lockRow(20, "scheduled"))
		mock.ExpectQuery(existsPairSQL).WithArgs(10, 7).WillReturnRows(countRow(0))
		mock.ExpectQuery(countRowsSQL).WithArgs(10).WillReturnRows(countRow(3))
		mock.ExpectExec(insertEnrollSQL).WithArgs(10, 7, "enrolled").
			WillReturnError(&mysql.MySQLError{Number: 1062, Message: "Duplicate entry for key 'uq_class_enrollments_pair'"})
		mock.ExpectRollback()

		_, err := svc.Enroll(ctx, 10, 7)
		requireKind(t, err, apperr.KindConflict, "User is already enrolled")
	})

	t.Run("unknown schedule", func(t *testing.T) {
		svc, mock := newScheduleService(t)
		mock.ExpectBegin()
		mock.ExpectQuery(lockScheduleSQL).WithArgs(99).
			WillReturnRows(sqlmock.NewRows([]string{"id", "trainer_id", "max_participants", "status"}))
		mock.ExpectRollback()

		_, err := svc.Enroll(ctx, 99, 7)
		requireKind(t, err, apperr.KindNotFound, "Schedule not found")
	})

	t.Run("cancelled class", func(t *testing.T) {
		svc, mock := newScheduleService(t)
		mock.ExpectBegin()
		mock.ExpectQuery(lockScheduleSQL).WithArgs(10).WillReturnRows(lockRow(20, "cancelled"))
		mock.ExpectRollback()

		_, err := svc.Enroll(ctx, 10, 7)
		requireKind(t, err, apperr.KindValidation, "Class is not open for enrollment")
	})
}

func TestUnenroll(t *testing.T) {
	ctx := context.Background()

	t.Run("removes the row and resyncs the count", func(t *testing.T) {
		svc, mock := newScheduleService(t)
		mock.ExpectBegin()
		mock.ExpectQuery(lockScheduleSQL).WithArgs(10).WillReturnRows(lockRow(20, "scheduled"))
		mock.ExpectExec(deleteEnrollSQL).WithArgs(10, 7).WillReturnResult(sqlmock.NewResult(0, 1))
		mock.ExpectExec(syncCountSQL).WithArgs(10, 10).WillReturnResult(sqlmock.NewResult(0, 1))
		mock.ExpectCommit()

		require.NoError(t, svc.Unenroll(ctx, 10, 7))
	})

	t.Run("not enrolled", func(t *testing.T) {
		svc, mock := newScheduleService(t)
		mock.ExpectBegin()
		mock.ExpectQuery(lockScheduleSQL).WithArgs(10).WillReturnRows(lockRow(20, "scheduled"))
		mock.ExpectExec(deleteEnrollSQL).WithArgs(10, 7).WillReturnResult(sqlmock.NewResult(0, 0))
		mock.ExpectRollback()

		err := svc.Unenroll(ctx, 10, 7)
		requireKind(t, err, apperr.KindNotFound, "Enrollment not found")
	})
}

func TestNormalizeClock(t *testing.T) {
	cases := []struct {
		in   string
		want string
		ok   bool
	}{
		{"07:30", "07:30:00", true},
		{"18:05:09", "18:05:09", true},
		{" 9:00", "09:00:00", true},
		{"7pm", "", false},
		{"25:00", "", false},
	}
	for _, tc := range cases {
		got, err := normalizeClock(tc.in)
		if !tc.ok {
			assert.Error(t, err, tc.in)
			continue
		}
		require.NoError(t, err, tc.in)
		assert.Equal(t, tc.want, got)
	}
}

func TestCanManage(t *testing.T) {
	trainer := uint64(3)
	sc := scheduleOwnedBy(&trainer)
	assert.True(t, canManage(Actor{UserID: 1, Role: "admin"}, sc))
	assert.True(t, canManage(Actor{UserID: 3, Role: "trainer"}, sc))
	assert.False(t, canManage(Actor{UserID: 4, Role: "trainer"}, sc))
	assert.False(t, canManage(Actor{UserID: 3, Role: "member"}, sc))
	assert.False(t, canManage(Actor{UserID: 3, Role: "trainer"}, scheduleOwnedBy(nil)))
}

func scheduleOwnedBy(trainerID *uint64) model.Schedule {
	return model.Schedule{ID: 10, TrainerID: trainerID, Status: model.ScheduleScheduled}
}
