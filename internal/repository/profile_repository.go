package repository

import (
	"context"
	"database/sql"

	"github.com/iliyamo/gym-management/internal/model"
)

// ProfileRepo handles member_profiles and trainer_profiles, the optional
// one-to-one extensions of users.
type ProfileRepo struct{ db *sql.DB }

func NewProfileRepo(db *sql.DB) *ProfileRepo { return &ProfileRepo{db: db} }

// GetMember returns the member profile of userID or sql.ErrNoRows.
func (r *ProfileRepo) GetMember(ctx context.Context, userID uint64) (model.MemberProfile, error) {
	var (
		p                        model.MemberProfile
		dob                      sql.NullTime
		gender, address, contact sql.NullString
	)
	err := r.db.QueryRowContext(ctx,
		"SELECT user_id, date_of_birth, gender, address, emergency_contact, updated_at FROM member_profiles WHERE user_id=?",
		userID).Scan(&p.UserID, &dob, &gender, &address, &contact, &p.UpdatedAt)
	p.DateOfBirth = timePtr(dob)
	p.Gender = strPtr(gender)
	p.Address = strPtr(address)
	p.EmergencyContact = strPtr(contact)
	return p, err
}

// UpsertMember creates or replaces the member profile.
func (r *ProfileRepo) UpsertMember(ctx context.Context, p model.MemberProfile) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO member_profiles (user_id, date_of_birth, gender, address, emergency_contact)
		 VALUES (?,?,?,?,?)
		 ON DUPLICATE KEY UPDATE date_of_birth=VALUES(date_of_birth), gender=VALUES(gender),
		   address=VALUES(address), emergency_contact=VALUES(emergency_contact)`,
		p.UserID, p.DateOfBirth, p.Gender, p.Address, p.EmergencyContact)
	return err
}

// UpsertTrainerTx creates or replaces a trainer profile.
func (r *ProfileRepo) UpsertTrainerTx(ctx context.Context, tx *sql.Tx, p model.TrainerProfile) error {
	return r.upsertTrainer(ctx, tx, p)
}

// UpsertTrainer is UpsertTrainerTx outside a transaction.
func (r *ProfileRepo) UpsertTrainer(ctx context.Context, p model.TrainerProfile) error {
	return r.upsertTrainer(ctx, r.db, p)
}

func (r *ProfileRepo) upsertTrainer(ctx context.Context, q querier, p model.TrainerProfile) error {
	_, err := q.ExecContext(ctx,
		`INSERT INTO trainer_profiles (user_id, specialization, bio, experience_years)
		 VALUES (?,?,?,?)
		 ON DUPLICATE KEY UPDATE specialization=VALUES(specialization), bio=VALUES(bio),
		   experience_years=VALUES(experience_years)`,
		p.UserID, p.Specialization, p.Bio, p.ExperienceYears)
	return err
}

const trainerSelect = `SELECT u.id, u.email, u.name, u.phone, u.password_hash, u.role, u.is_active, u.created_at, u.updated_at,
	tp.specialization, tp.bio, COALESCE(tp.experience_years, 0)
	FROM users u LEFT JOIN trainer_profiles tp ON tp.user_id = u.id
	WHERE u.role = 'trainer'`

func scanTrainer(s rowScanner) (model.Trainer, error) {
	var (
		t                   model.Trainer
		phone               sql.NullString
		specialization, bio sql.NullString
	)
	err := s.Scan(&t.ID, &t.Email, &t.Name, &phone, &t.PasswordHash, &t.Role, &t.IsActive, &t.CreatedAt, &t.UpdatedAt,
		&specialization, &bio, &t.Profile.ExperienceYears)
	t.Phone = strPtr(phone)
	t.Profile.UserID = t.ID
	t.Profile.Specialization = strPtr(specialization)
	t.Profile.Bio = strPtr(bio)
	return t, err
}

// GetTrainer returns a trainer user joined with its profile.
func (r *ProfileRepo) GetTrainer(ctx context.Context, id uint64) (model.Trainer, error) {
	return scanTrainer(r.db.QueryRowContext(ctx, trainerSelect+" AND u.id=?", id))
}

// ListTrainers returns trainers ordered by name.
func (r *ProfileRepo) ListTrainers(ctx context.Context, activeOnly bool) ([]model.Trainer, error) {
	q := trainerSelect
	if activeOnly {
		q += " AND u.is_active=1"
	}
	rows, err := r.db.QueryContext(ctx, q+" ORDER BY u.name")
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := []model.Trainer{}
	for rows.Next() {
		t, err := scanTrainer(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	return out, rows.Err()
}
