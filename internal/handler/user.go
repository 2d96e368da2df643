package handler

import (
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/gym-management/internal/model"
	"github.com/iliyamo/gym-management/internal/repository"
	"github.com/iliyamo/gym-management/internal/service"
)

// UserHandler serves the admin user endpoints and /me/profile.
type UserHandler struct {
	Users *service.UserService
}

func NewUserHandler(users *service.UserService) *UserHandler {
	return &UserHandler{Users: users}
}

type createUserReq struct {
	Email    string  `json:"email" validate:"required,email,max=190"`
	Name     string  `json:"name" validate:"required,max=120"`
	Phone    *string `json:"phone" validate:"omitempty,max=30"`
	Password string  `json:"password" validate:"required,min=8,max=72"`
	Role     string  `json:"role" validate:"required,oneof=admin trainer member"`
	IsActive *bool   `json:"is_active"`
}

type updateUserReq struct {
	Email    string  `json:"email" validate:"omitempty,email,max=190"`
	Name     string  `json:"name" validate:"omitempty,max=120"`
	Phone    *string `json:"phone" validate:"omitempty,max=30"`
	Password string  `json:"password" validate:"omitempty,min=8,max=72"`
	Role     string  `json:"role" validate:"omitempty,oneof=admin trainer member"`
	IsActive *bool   `json:"is_active"`
}

type profileReq struct {
	Phone            *string `json:"phone" validate:"omitempty,max=30"`
	DateOfBirth      *string `json:"date_of_birth"`
	Gender           *string `json:"gender" validate:"omitempty,oneof=male female other"`
	Address          *string `json:"address" validate:"omitempty,max=255"`
	EmergencyContact *string `json:"emergency_contact" validate:"omitempty,max=120"`
}

// userFilter reads role, search and active from the query.
func userFilter(c echo.Context) repository.UserFilter {
	return repository.UserFilter{
		Role:       model.Role(c.QueryParam("role")),
		Search:     strings.TrimSpace(c.QueryParam("search")),
		ActiveOnly: c.QueryParam("active") == "true",
	}
}

func (h *UserHandler) List(c echo.Context) error {
	f := userFilter(c)
	p, page := pageOf(c)
	f.Page = p
	ctx, cancel := reqCtx(c)
	defer cancel()

	out, total, err := h.Users.List(ctx, f)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, listResponse(out, total, p, page))
}

func (h *UserHandler) Get(c echo.Context) error {
	id, err := paramID(c, "id")
	if err != nil {
		return err
	}
	ctx, cancel := reqCtx(c)
	defer cancel()

	u, err := h.Users.Get(ctx, id)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, u)
}

func (h *UserHandler) Create(c echo.Context) error {
	var req createUserReq
	if err := bindValid(c, &req); err != nil {
		return err
	}
	ctx, cancel := reqCtx(c)
	defer cancel()

	u, err := h.Users.Create(ctx, service.UserInput{
		Email:    strings.ToLower(strings.TrimSpace(req.Email)),
		Name:     req.Name,
		Phone:    req.Phone,
		Password: req.Password,
		Role:     model.Role(req.Role),
		IsActive: req.IsActive,
	})
	if err != nil {
		return err
	}
	return c.JSON(http.StatusCreated, u)
}

func (h *UserHandler) Update(c echo.Context) error {
	id, err := paramID(c, "id")
	if err != nil {
		return err
	}
	var req updateUserReq
	if err := bindValid(c, &req); err != nil {
		return err
	}
	ctx, cancel := reqCtx(c)
	defer cancel()

	u, err := h.Users.Update(ctx, id, service.UserInput{
		Email:    strings.ToLower(strings.TrimSpace(req.Email)),
		Name:     req.Name,
		Phone:    req.Phone,
		Password: req.Password,
		Role:     model.Role(req.Role),
		IsActive: req.IsActive,
	})
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, u)
}

// Delete deactivates the account.
func (h *UserHandler) Delete(c echo.Context) error {
	id, err := paramID(c, "id")
	if err != nil {
		return err
	}
	ctx, cancel := reqCtx(c)
	defer cancel()

	if err := h.Users.Deactivate(ctx, id); err != nil {
		return err
	}
	return c.NoContent(http.StatusNoContent)
}

func (h *UserHandler) GetProfile(c echo.Context) error {
	actor, err := actorOf(c)
	if err != nil {
		return err
	}
	ctx, cancel := reqCtx(c)
	defer cancel()

	p, err := h.Users.Profile(ctx, actor.UserID)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, p)
}

func (h *UserHandler) UpdateProfile(c echo.Context) error {
	actor, err := actorOf(c)
	if err != nil {
		return err
	}
	var req profileReq
	if err := bindValid(c, &req); err != nil {
		return err
	}
	dob, err := parseOptDate("date_of_birth", req.DateOfBirth)
	if err != nil {
		return err
	}
	ctx, cancel := reqCtx(c)
	defer cancel()

	p, err := h.Users.UpdateProfile(ctx, model.MemberProfile{
		UserID:           actor.UserID,
		DateOfBirth:      dob,
		Gender:           req.Gender,
		Address:          req.Address,
		EmergencyContact: req.EmergencyContact,
	}, req.Phone)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, p)
}
