package service

import (
	"context"
	"database/sql"
	"errors"
	"strings"

	"github.com/iliyamo/gym-management/internal/apperr"
	"github.com/iliyamo/gym-management/internal/config"
	"github.com/iliyamo/gym-management/internal/model"
	"github.com/iliyamo/gym-management/internal/repository"
	"github.com/iliyamo/gym-management/internal/utils"
)

// TrainerService manages trainer accounts and their profiles.
type TrainerService struct {
	cfg      config.Config
	db       *sql.DB
	users    *repository.UserRepo
	profiles *repository.ProfileRepo
	tokens   *repository.TokenRepo
}

func NewTrainerService(cfg config.Config, db *sql.DB, users *repository.UserRepo, profiles *repository.ProfileRepo, tokens *repository.TokenRepo) *TrainerService {
	return &TrainerService{cfg: cfg, db: db, users: users, profiles: profiles, tokens: tokens}
}

// TrainerInput creates or edits a trainer.
type TrainerInput struct {
	UserInput
	Specialization  *string
	Bio             *string
	ExperienceYears *int
}

func (s *TrainerService) List(ctx context.Context, activeOnly bool) ([]model.Trainer, error) {
	ts, err := s.profiles.ListTrainers(ctx, activeOnly)
	if err != nil {
		return nil, apperr.Internal("list trainers failed", err)
	}
	return ts, nil
}

func (s *TrainerService) Get(ctx context.Context, id uint64) (model.Trainer, error) {
	t, err := s.profiles.GetTrainer(ctx, id)
	if err != nil {
		return t, notFoundOr(err, "Trainer not found")
	}
	return t, nil
}

// Create inserts the user row and the profile in one transaction.
func (s *TrainerService) Create(ctx context.Context, in TrainerInput) (model.Trainer, error) {
	if in.Password == "" {
		return model.Trainer{}, apperr.Validation("Password is required")
	}
	hash, err := utils.HashPassword(in.Password, s.cfg.BcryptCost)
	if err != nil {
		return model.Trainer{}, apperr.Internal("hash password failed", err)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return model.Trainer{}, apperr.Internal("failed to start transaction", err)
	}
	committed := false
	defer rollback(tx, &committed)

	u := model.User{
		Email:        in.Email,
		Name:         strings.TrimSpace(in.Name),
		Phone:        in.Phone,
		PasswordHash: hash,
		Role:         model.RoleTrainer,
		IsActive:     in.IsActive == nil || *in.IsActive,
	}
	if err := s.users.CreateTx(ctx, tx, &u); err != nil {
		if errors.Is(err, repository.ErrEmailExists) {
			return model.Trainer{}, apperr.Conflict("Email already exists")
		}
		return model.Trainer{}, apperr.Internal("create user failed", err)
	}
	p := model.TrainerProfile{UserID: u.ID, Specialization: in.Specialization, Bio: in.Bio}
	if in.ExperienceYears != nil {
		p.ExperienceYears = *in.ExperienceYears
	}
	if err := s.profiles.UpsertTrainerTx(ctx, tx, p); err != nil {
		return model.Trainer{}, apperr.Internal("save trainer profile failed", err)
	}
	if err := tx.Commit(); err != nil {
		return model.Trainer{}, apperr.Internal("failed to commit transaction", err)
	}
	committed = true
	return s.Get(ctx, u.ID)
}

// Update edits the trainer's account fields and profile.
func (s *TrainerService) Update(ctx context.Context, id uint64, in TrainerInput) (model.Trainer, error) {
	t, err := s.Get(ctx, id)
	if err != nil {
		return t, err
	}
	u := t.User
	if in.Email != "" {
		u.Email = in.Email
	}
	if n := strings.TrimSpace(in.Name); n != "" {
		u.Name = n
	}
	if in.Phone != nil {
		u.Phone = in.Phone
	}
	if in.IsActive != nil {
		u.IsActive = *in.IsActive
	}
	if err := s.users.Update(ctx, &u); err != nil {
		if errors.Is(err, repository.ErrEmailExists) {
			return t, apperr.Conflict("Email already exists")
		}
		return t, notFoundOr(err, "Trainer not found")
	}
	p := t.Profile
	if in.Specialization != nil {
		p.Specialization = in.Specialization
	}
	if in.Bio != nil {
		p.Bio = in.Bio
	}
	if in.ExperienceYears != nil {
		p.ExperienceYears = *in.ExperienceYears
	}
	if err := s.profiles.UpsertTrainer(ctx, p); err != nil {
		return t, apperr.Internal("save trainer profile failed", err)
	}
	if t.IsActive && !u.IsActive {
		if err := s.tokens.RevokeAllForUser(ctx, id); err != nil {
			return t, apperr.Internal("revoke tokens failed", err)
		}
	}
	return s.Get(ctx, id)
}

// Deactivate soft-deletes a trainer.  Their classes keep the trainer id.
func (s *TrainerService) Deactivate(ctx context.Context, id uint64) error {
	if _, err := s.Get(ctx, id); err != nil {
		return err
	}
	if err := s.users.Deactivate(ctx, id); err != nil {
		return notFoundOr(err, "Trainer not found")
	}
	if err := s.tokens.RevokeAllForUser(ctx, id); err != nil {
		return apperr.Internal("revoke tokens failed", err)
	}
	return nil
}
