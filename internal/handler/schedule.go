package handler

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/gym-management/internal/model"
	"github.com/iliyamo/gym-management/internal/service"
)

// ScheduleHandler serves classes, enrollment and attendance.
type ScheduleHandler struct {
	Schedules *service.ScheduleService
}

func NewScheduleHandler(schedules *service.ScheduleService) *ScheduleHandler {
	return &ScheduleHandler{Schedules: schedules}
}

type scheduleReq struct {
	TrainerID       *uint64 `json:"trainer_id"`
	ClassName       string  `json:"class_name" validate:"required,max=120"`
	Description     *string `json:"description" validate:"omitempty,max=2000"`
	ClassDate       string  `json:"class_date" validate:"required"`
	StartTime       string  `json:"start_time" validate:"required"`
	EndTime         string  `json:"end_time" validate:"required"`
	Room            *string `json:"room" validate:"omitempty,max=60"`
	Floor           *string `json:"floor" validate:"omitempty,max=30"`
	MaxParticipants int     `json:"max_participants" validate:"required,gt=0,lte=1000"`
	Status          string  `json:"status" validate:"omitempty,oneof=scheduled ongoing completed cancelled"`
}

func (r scheduleReq) input() (service.ScheduleInput, error) {
	day, err := parseDate("class_date", r.ClassDate)
	if err != nil {
		return service.ScheduleInput{}, err
	}
	return service.ScheduleInput{
		TrainerID:       r.TrainerID,
		ClassName:       r.ClassName,
		Description:     r.Description,
		ClassDate:       day,
		StartTime:       r.StartTime,
		EndTime:         r.EndTime,
		Room:            r.Room,
		Floor:           r.Floor,
		MaxParticipants: r.MaxParticipants,
		Status:          model.ScheduleStatus(r.Status),
	}, nil
}

type enrollmentStatusReq struct {
	Status string `json:"status" validate:"required,oneof=enrolled attended missed cancelled"`
}

// List is the public class listing.
func (h *ScheduleHandler) List(c echo.Context) error {
	f, err := scheduleFilter(c)
	if err != nil {
		return err
	}
	if f.TrainerID, err = queryUint(c, "trainer_id"); err != nil {
		return err
	}
	p, page := pageOf(c)
	f.Page = p
	ctx, cancel := reqCtx(c)
	defer cancel()

	out, total, err := h.Schedules.List(ctx, f)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, listResponse(out, total, p, page))
}

// Mine lists the classes of the calling trainer.
func (h *ScheduleHandler) Mine(c echo.Context) error {
	actor, err := actorOf(c)
	if err != nil {
		return err
	}
	f, err := scheduleFilter(c)
	if err != nil {
		return err
	}
	f.TrainerID = &actor.UserID
	p, page := pageOf(c)
	f.Page = p
	ctx, cancel := reqCtx(c)
	defer cancel()

	out, total, err := h.Schedules.List(ctx, f)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, listResponse(out, total, p, page))
}

func (h *ScheduleHandler) Get(c echo.Context) error {
	id, err := paramID(c, "id")
	if err != nil {
		return err
	}
	ctx, cancel := reqCtx(c)
	defer cancel()

	sc, err := h.Schedules.Get(ctx, id)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, sc)
}

func (h *ScheduleHandler) Create(c echo.Context) error {
	var req scheduleReq
	if err := bindValid(c, &req); err != nil {
		return err
	}
	in, err := req.input()
	if err != nil {
		return err
	}
	ctx, cancel := reqCtx(c)
	defer cancel()

	sc, err := h.Schedules.Create(ctx, in)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusCreated, sc)
}

func (h *ScheduleHandler) Update(c echo.Context) error {
	id, err := paramID(c, "id")
	if err != nil {
		return err
	}
	var req scheduleReq
	if err := bindValid(c, &req); err != nil {
		return err
	}
	in, err := req.input()
	if err != nil {
		return err
	}
	ctx, cancel := reqCtx(c)
	defer cancel()

	sc, err := h.Schedules.Update(ctx, id, in)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, sc)
}

// Delete cancels the class.
func (h *ScheduleHandler) Delete(c echo.Context) error {
	id, err := paramID(c, "id")
	if err != nil {
		return err
	}
	ctx, cancel := reqCtx(c)
	defer cancel()

	if err := h.Schedules.Cancel(ctx, id); err != nil {
		return err
	}
	return c.NoContent(http.StatusNoContent)
}

func (h *ScheduleHandler) Enroll(c echo.Context) error {
	actor, err := actorOf(c)
	if err != nil {
		return err
	}
	id, err := paramID(c, "id")
	if err != nil {
		return err
	}
	ctx, cancel := reqCtx(c)
	defer cancel()

	e, err := h.Schedules.Enroll(ctx, id, actor.UserID)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusCreated, e)
}

func (h *ScheduleHandler) Unenroll(c echo.Context) error {
	actor, err := actorOf(c)
	if err != nil {
		return err
	}
	id, err := paramID(c, "id")
	if err != nil {
		return err
	}
	ctx, cancel := reqCtx(c)
	defer cancel()

	if err := h.Schedules.Unenroll(ctx, id, actor.UserID); err != nil {
		return err
	}
	return c.NoContent(http.StatusNoContent)
}

// Roster lists the members of a class (admin, or the class trainer).
func (h *ScheduleHandler) Roster(c echo.Context) error {
	actor, err := actorOf(c)
	if err != nil {
		return err
	}
	id, err := paramID(c, "id")
	if err != nil {
		return err
	}
	ctx, cancel := reqCtx(c)
	defer cancel()

	out, err := h.Schedules.Roster(ctx, actor, id)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, echo.Map{"items": out})
}

func (h *ScheduleHandler) MyEnrollments(c echo.Context) error {
	actor, err := actorOf(c)
	if err != nil {
		return err
	}
	ctx, cancel := reqCtx(c)
	defer cancel()

	out, err := h.Schedules.MyEnrollments(ctx, actor.UserID)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, echo.Map{"items": out})
}

// SetEnrollmentStatus records attendance for one enrollment.
func (h *ScheduleHandler) SetEnrollmentStatus(c echo.Context) error {
	actor, err := actorOf(c)
	if err != nil {
		return err
	}
	id, err := paramID(c, "id")
	if err != nil {
		return err
	}
	var req enrollmentStatusReq
	if err := bindValid(c, &req); err != nil {
		return err
	}
	ctx, cancel := reqCtx(c)
	defer cancel()

	e, err := h.Schedules.SetEnrollmentStatus(ctx, actor, id, model.EnrollmentStatus(req.Status))
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, e)
}
