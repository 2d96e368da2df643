package handler

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/shopspring/decimal"

	"github.com/iliyamo/gym-management/internal/apperr"
	"github.com/iliyamo/gym-management/internal/model"
	"github.com/iliyamo/gym-management/internal/repository"
	"github.com/iliyamo/gym-management/internal/service"
)

// MembershipHandler serves /packages and /member-packages.
type MembershipHandler struct {
	Memberships *service.MembershipService
}

func NewMembershipHandler(m *service.MembershipService) *MembershipHandler {
	return &MembershipHandler{Memberships: m}
}

type packageReq struct {
	Name         string          `json:"name" validate:"required,max=120"`
	Description  *string         `json:"description" validate:"omitempty,max=2000"`
	Price        decimal.Decimal `json:"price"`
	DurationDays int             `json:"duration_days" validate:"required,gt=0,lte=3660"`
	Features     []string        `json:"features" validate:"omitempty,max=50,dive,max=200"`
	IsActive     *bool           `json:"is_active"`
	IsPublished  *bool           `json:"is_published"`
}

func (r packageReq) input() service.PackageInput {
	return service.PackageInput{
		Name:         r.Name,
		Description:  r.Description,
		Price:        r.Price,
		DurationDays: r.DurationDays,
		Features:     r.Features,
		IsActive:     r.IsActive,
		IsPublished:  r.IsPublished,
	}
}

type purchaseReq struct {
	UserID      uint64  `json:"user_id"`
	PackageID   uint64  `json:"package_id" validate:"required"`
	StartDate   *string `json:"start_date"`
	VoucherCode string  `json:"voucher_code" validate:"omitempty,max=20"`
}

// ListPackages is the public catalogue of published packages.
func (h *MembershipHandler) ListPackages(c echo.Context) error {
	ctx, cancel := reqCtx(c)
	defer cancel()

	out, err := h.Memberships.ListPackages(ctx, true)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, echo.Map{"items": out})
}

// ListAllPackages includes drafts and withdrawn packages.
func (h *MembershipHandler) ListAllPackages(c echo.Context) error {
	ctx, cancel := reqCtx(c)
	defer cancel()

	out, err := h.Memberships.ListPackages(ctx, false)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, echo.Map{"items": out})
}

func (h *MembershipHandler) GetPackage(c echo.Context) error {
	id, err := paramID(c, "id")
	if err != nil {
		return err
	}
	ctx, cancel := reqCtx(c)
	defer cancel()

	p, err := h.Memberships.GetPackage(ctx, id)
	if err != nil {
		return err
	}
	if !p.IsActive || !p.IsPublished {
		return apperr.NotFound("Package not found")
	}
	return c.JSON(http.StatusOK, p)
}

func (h *MembershipHandler) CreatePackage(c echo.Context) error {
	var req packageReq
	if err := bindValid(c, &req); err != nil {
		return err
	}
	ctx, cancel := reqCtx(c)
	defer cancel()

	p, err := h.Memberships.CreatePackage(ctx, req.input())
	if err != nil {
		return err
	}
	return c.JSON(http.StatusCreated, p)
}

func (h *MembershipHandler) UpdatePackage(c echo.Context) error {
	id, err := paramID(c, "id")
	if err != nil {
		return err
	}
	var req packageReq
	if err := bindValid(c, &req); err != nil {
		return err
	}
	ctx, cancel := reqCtx(c)
	defer cancel()

	p, err := h.Memberships.UpdatePackage(ctx, id, req.input())
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, p)
}

func (h *MembershipHandler) DeletePackage(c echo.Context) error {
	id, err := paramID(c, "id")
	if err != nil {
		return err
	}
	ctx, cancel := reqCtx(c)
	defer cancel()

	if err := h.Memberships.DeletePackage(ctx, id); err != nil {
		return err
	}
	return c.NoContent(http.StatusNoContent)
}

// Purchase buys a package for the caller, or for user_id when an admin
// calls it.
func (h *MembershipHandler) Purchase(c echo.Context) error {
	actor, err := actorOf(c)
	if err != nil {
		return err
	}
	var req purchaseReq
	if err := bindValid(c, &req); err != nil {
		return err
	}
	start, err := parseOptDate("start_date", req.StartDate)
	if err != nil {
		return err
	}
	ctx, cancel := reqCtx(c)
	defer cancel()

	mp, err := h.Memberships.Purchase(ctx, actor, service.PurchaseInput{
		UserID:      req.UserID,
		PackageID:   req.PackageID,
		StartDate:   start,
		VoucherCode: req.VoucherCode,
	})
	if err != nil {
		return err
	}
	return c.JSON(http.StatusCreated, mp)
}

func (h *MembershipHandler) ListMemberPackages(c echo.Context) error {
	actor, err := actorOf(c)
	if err != nil {
		return err
	}
	f := repository.MemberPackageFilter{Status: model.MemberPackageStatus(c.QueryParam("status"))}
	if f.UserID, err = queryUint(c, "user_id"); err != nil {
		return err
	}
	p, page := pageOf(c)
	f.Page = p
	ctx, cancel := reqCtx(c)
	defer cancel()

	out, total, err := h.Memberships.ListMemberPackages(ctx, actor, f)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, listResponse(out, total, p, page))
}

func (h *MembershipHandler) GetMemberPackage(c echo.Context) error {
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

	mp, err := h.Memberships.GetMemberPackage(ctx, actor, id)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, mp)
}

func (h *MembershipHandler) CancelMemberPackage(c echo.Context) error {
	id, err := paramID(c, "id")
	if err != nil {
		return err
	}
	ctx, cancel := reqCtx(c)
	defer cancel()

	if err := h.Memberships.Cancel(ctx, id); err != nil {
		return err
	}
	return c.JSON(http.StatusOK, echo.Map{"id": id, "status": model.MemberPackageCancelled})
}

// ExpireDue runs the expiry sweep on demand.
func (h *MembershipHandler) ExpireDue(c echo.Context) error {
	ctx, cancel := reqCtx(c)
	defer cancel()

	n, err := h.Memberships.ExpireDue(ctx)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, echo.Map{"expired": n})
}
