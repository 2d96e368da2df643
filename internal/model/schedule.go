package model

import "time"

// ScheduleStatus is the lifecycle state of a class.
type ScheduleStatus string

const (
	ScheduleScheduled ScheduleStatus = "scheduled"
	ScheduleOngoing   ScheduleStatus = "ongoing"
	ScheduleCompleted ScheduleStatus = "completed"
	ScheduleCancelled ScheduleStatus = "cancelled"
)

func (s ScheduleStatus) Valid() bool {
	switch s {
	case ScheduleScheduled, ScheduleOngoing, ScheduleCompleted, ScheduleCancelled:
		return true
	}
	return false
}

// Schedule represents one class session.  CurrentParticipants mirrors
// COUNT(class_enrollments) for the schedule; it is only written by the
// enrollment repository under the schedule's row lock.
//
// Fields:
//  TrainerID           – trainer running the class (nil when unassigned).
//  TrainerName         – joined from users for listings.
//  ClassDate           – calendar day of the class (DATE column).
//  StartTime, EndTime  – "HH:MM:SS" wall-clock times (TIME columns).
//  MaxParticipants     – capacity of the class.
type Schedule struct {
	ID                  uint64         `json:"id"`
	TrainerID           *uint64        `json:"trainer_id,omitempty"`
	TrainerName         *string        `json:"trainer_name,omitempty"`
	ClassName           string         `json:"class_name"`
	Description         *string        `json:"description,omitempty"`
	ClassDate           time.Time      `json:"class_date"`
	StartTime           string         `json:"start_time"`
	EndTime             string         `json:"end_time"`
	Room                *string        `json:"room,omitempty"`
	Floor               *string        `json:"floor,omitempty"`
	MaxParticipants     int            `json:"max_participants"`
	CurrentParticipants int            `json:"current_participants"`
	Status              ScheduleStatus `json:"status"`
	CreatedAt           time.Time      `json:"created_at"`
	UpdatedAt           time.Time      `json:"updated_at"`
}

// EnrollmentStatus tracks a member's attendance for one class.
type EnrollmentStatus string

const (
	EnrollmentEnrolled  EnrollmentStatus = "enrolled"
	EnrollmentAttended  EnrollmentStatus = "attended"
	EnrollmentMissed    EnrollmentStatus = "missed"
	EnrollmentCancelled EnrollmentStatus = "cancelled"
)

func (s EnrollmentStatus) Valid() bool {
	switch s {
	case EnrollmentEnrolled, EnrollmentAttended, EnrollmentMissed, EnrollmentCancelled:
		return true
	}
	return false
}

// ClassEnrollment links a member to a schedule.  (schedule_id, user_id) is
// unique.  The name/email/class fields are filled by listing joins only.
type ClassEnrollment struct {
	ID         uint64           `json:"id"`
	ScheduleID uint64           `json:"schedule_id"`
	UserID     uint64           `json:"user_id"`
	Status     EnrollmentStatus `json:"status"`
	EnrolledAt time.Time        `json:"enrolled_at"`
	UserName   string           `json:"user_name,omitempty"`
	UserEmail  string           `json:"user_email,omitempty"`
	ClassName  string           `json:"class_name,omitempty"`
	ClassDate  *time.Time       `json:"class_date,omitempty"`
	StartTime  string           `json:"start_time,omitempty"`
}
