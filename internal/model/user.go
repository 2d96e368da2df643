package model

import "time"

// Role is the value stored in users.role and carried in the access token's
// role claim.  Route groups check it against an allow-list.
type Role string

const (
	RoleAdmin   Role = "admin"
	RoleTrainer Role = "trainer"
	RoleMember  Role = "member"
)

// Valid reports whether r is one of the known roles.
func (r Role) Valid() bool {
	switch r {
	case RoleAdmin, RoleTrainer, RoleMember:
		return true
	}
	return false
}

// User represents an application user record as stored in the
// `users` table.  The password hash never leaves the process.
//
// Fields:
//  ID           – primary key identifier of the user.
//  Email        – unique, lower-cased email address.
//  Name         – display name.
//  Phone        – optional contact number.
//  PasswordHash – bcrypt hashed password.
//  Role         – admin, trainer or member.
//  IsActive     – false once the user has been soft-deleted.
type User struct {
	ID           uint64    `json:"id"`
	Email        string    `json:"email"`
	Name         string    `json:"name"`
	Phone        *string   `json:"phone,omitempty"`
	PasswordHash string    `json:"-"`
	Role         Role      `json:"role"`
	IsActive     bool      `json:"is_active"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// MemberProfile holds the optional personal details of a member.  A user
// owns zero or one profile row keyed by user_id.
type MemberProfile struct {
	UserID           uint64     `json:"user_id"`
	DateOfBirth      *time.Time `json:"date_of_birth,omitempty"`
	Gender           *string    `json:"gender,omitempty"`
	Address          *string    `json:"address,omitempty"`
	EmergencyContact *string    `json:"emergency_contact,omitempty"`
	UpdatedAt        time.Time  `json:"updated_at"`
}

// TrainerProfile extends a trainer user with coaching details.
type TrainerProfile struct {
	UserID          uint64  `json:"user_id"`
	Specialization  *string `json:"specialization,omitempty"`
	Bio             *string `json:"bio,omitempty"`
	ExperienceYears int     `json:"experience_years"`
}

// Trainer is the joined view of a trainer user and its profile.
type Trainer struct {
	User
	Profile TrainerProfile `json:"profile"`
}

// RefreshToken models an entry in the `refresh_tokens` table.  Only the
// SHA‑256 hash of the token handed to the client is stored.  Superseded
// tokens are deleted on rotation; Revoked marks tokens invalidated by logout.
type RefreshToken struct {
	ID        uint64
	UserID    uint64
	TokenHash string
	ExpiresAt time.Time
	Revoked   bool
	CreatedAt time.Time
}
