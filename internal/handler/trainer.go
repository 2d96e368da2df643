package handler

import (
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/gym-management/internal/apperr"
	"github.com/iliyamo/gym-management/internal/middleware"
	"github.com/iliyamo/gym-management/internal/model"
	"github.com/iliyamo/gym-management/internal/repository"
	"github.com/iliyamo/gym-management/internal/service"
)

// TrainerHandler serves /trainers.
type TrainerHandler struct {
	Trainers  *service.TrainerService
	schedules *service.ScheduleService
}

func NewTrainerHandler(trainers *service.TrainerService, schedules *service.ScheduleService) *TrainerHandler {
	return &TrainerHandler{Trainers: trainers, schedules: schedules}
}

type trainerReq struct {
	Email           string  `json:"email" validate:"omitempty,email,max=190"`
	Name            string  `json:"name" validate:"omitempty,max=120"`
	Phone           *string `json:"phone" validate:"omitempty,max=30"`
	Password        string  `json:"password" validate:"omitempty,min=8,max=72"`
	IsActive        *bool   `json:"is_active"`
	Specialization  *string `json:"specialization" validate:"omitempty,max=120"`
	Bio             *string `json:"bio" validate:"omitempty,max=2000"`
	ExperienceYears *int    `json:"experience_years" validate:"omitempty,gte=0,lte=80"`
}

func (r trainerReq) input() service.TrainerInput {
	return service.TrainerInput{
		UserInput: service.UserInput{
			Email:    strings.ToLower(strings.TrimSpace(r.Email)),
			Name:     r.Name,
			Phone:    r.Phone,
			Password: r.Password,
			Role:     model.RoleTrainer,
			IsActive: r.IsActive,
		},
		Specialization:  r.Specialization,
		Bio:             r.Bio,
		ExperienceYears: r.ExperienceYears,
	}
}

// List returns active trainers; admins on /admin/trainers may pass
// all=true to include deactivated ones.
func (h *TrainerHandler) List(c echo.Context) error {
	activeOnly := true
	if role, _ := c.Get(middleware.RoleKey).(string); role == string(model.RoleAdmin) && c.QueryParam("all") == "true" {
		activeOnly = false
	}
	ctx, cancel := reqCtx(c)
	defer cancel()

	out, err := h.Trainers.List(ctx, activeOnly)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, echo.Map{"items": out})
}

func (h *TrainerHandler) Get(c echo.Context) error {
	id, err := paramID(c, "id")
	if err != nil {
		return err
	}
	ctx, cancel := reqCtx(c)
	defer cancel()

	t, err := h.Trainers.Get(ctx, id)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, t)
}

// Schedules lists the classes of one trainer.
func (h *TrainerHandler) Schedules(c echo.Context) error {
	id, err := paramID(c, "id")
	if err != nil {
		return err
	}
	f, err := scheduleFilter(c)
	if err != nil {
		return err
	}
	f.TrainerID = &id
	p, page := pageOf(c)
	f.Page = p
	ctx, cancel := reqCtx(c)
	defer cancel()

	out, total, err := h.schedules.List(ctx, f)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, listResponse(out, total, p, page))
}

func (h *TrainerHandler) Create(c echo.Context) error {
	var req trainerReq
	if err := bindValid(c, &req); err != nil {
		return err
	}
	in := req.input()
	if in.Email == "" || strings.TrimSpace(in.Name) == "" {
		return apperr.Validation("email and name are required")
	}
	ctx, cancel := reqCtx(c)
	defer cancel()

	t, err := h.Trainers.Create(ctx, in)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusCreated, t)
}

func (h *TrainerHandler) Update(c echo.Context) error {
	id, err := paramID(c, "id")
	if err != nil {
		return err
	}
	var req trainerReq
	if err := bindValid(c, &req); err != nil {
		return err
	}
	ctx, cancel := reqCtx(c)
	defer cancel()

	t, err := h.Trainers.Update(ctx, id, req.input())
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, t)
}

func (h *TrainerHandler) Delete(c echo.Context) error {
	id, err := paramID(c, "id")
	if err != nil {
		return err
	}
	ctx, cancel := reqCtx(c)
	defer cancel()

	if err := h.Trainers.Deactivate(ctx, id); err != nil {
		return err
	}
	return c.NoContent(http.StatusNoContent)
}

// scheduleFilter reads from, to, status and search from the query.
func scheduleFilter(c echo.Context) (repository.ScheduleFilter, error) {
	from, err := queryDate(c, "from")
	if err != nil {
		return repository.ScheduleFilter{}, err
	}
	to, err := queryDate(c, "to")
	if err != nil {
		return repository.ScheduleFilter{}, err
	}
	status := model.ScheduleStatus(c.QueryParam("status"))
	if status != "" && !status.Valid() {
		return repository.ScheduleFilter{}, apperr.Validation("invalid status")
	}
	return repository.ScheduleFilter{
		From:   from,
		To:     to,
		Status: status,
		Search: strings.TrimSpace(c.QueryParam("search")),
	}, nil
}
