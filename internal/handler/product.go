package handler

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/labstack/echo/v4"
	"github.com/shopspring/decimal"

	"github.com/iliyamo/gym-management/internal/apperr"
	"github.com/iliyamo/gym-management/internal/model"
	"github.com/iliyamo/gym-management/internal/repository"
	"github.com/iliyamo/gym-management/internal/service"
)

// ProductHandler serves /products.
type ProductHandler struct {
	Products *service.ProductService
}

func NewProductHandler(p *service.ProductService) *ProductHandler {
	return &ProductHandler{Products: p}
}

type productReq struct {
	Name        string          `json:"name" validate:"required,max=160"`
	Description *string         `json:"description" validate:"omitempty,max=5000"`
	Category    *string         `json:"category" validate:"omitempty,max=60"`
	Price       decimal.Decimal `json:"price"`
	Stock       int             `json:"stock" validate:"gte=0"`
	ImageURL    *string         `json:"image_url" validate:"omitempty,url,max=500"`
	IsActive    *bool           `json:"is_active"`
}

func (r productReq) input() service.ProductInput {
	return service.ProductInput{
		Name:        r.Name,
		Description: r.Description,
		Category:    r.Category,
		Price:       r.Price,
		Stock:       r.Stock,
		ImageURL:    r.ImageURL,
		IsActive:    r.IsActive,
	}
}

func (h *ProductHandler) list(c echo.Context, activeOnly bool) error {
	f := repository.ProductFilter{
		Category:   strings.TrimSpace(c.QueryParam("category")),
		Search:     strings.TrimSpace(c.QueryParam("search")),
		ActiveOnly: activeOnly,
	}
	p, page := pageOf(c)
	f.Page = p
	ctx, cancel := reqCtx(c)
	defer cancel()

	out, total, err := h.Products.List(ctx, f)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, listResponse(out, total, p, page))
}

// List is the storefront listing of active products.
func (h *ProductHandler) List(c echo.Context) error { return h.list(c, true) }

// ListAll includes inactive products.
func (h *ProductHandler) ListAll(c echo.Context) error { return h.list(c, false) }

// Get accepts either a numeric id or a slug.
func (h *ProductHandler) Get(c echo.Context) error {
	ctx, cancel := reqCtx(c)
	defer cancel()

	var (
		p   model.Product
		err error
	)
	if id, perr := strconv.ParseUint(c.Param("id"), 10, 64); perr == nil {
		p, err = h.Products.Get(ctx, id)
	} else {
		p, err = h.Products.GetBySlug(ctx, c.Param("id"))
	}
	if err != nil {
		return err
	}
	if !p.IsActive {
		return apperr.NotFound("Product not found")
	}
	return c.JSON(http.StatusOK, p)
}

func (h *ProductHandler) Create(c echo.Context) error {
	var req productReq
	if err := bindValid(c, &req); err != nil {
		return err
	}
	ctx, cancel := reqCtx(c)
	defer cancel()

	p, err := h.Products.Create(ctx, req.input())
	if err != nil {
		return err
	}
	return c.JSON(http.StatusCreated, p)
}

func (h *ProductHandler) Update(c echo.Context) error {
	id, err := paramID(c, "id")
	if err != nil {
		return err
	}
	var req productReq
	if err := bindValid(c, &req); err != nil {
		return err
	}
	ctx, cancel := reqCtx(c)
	defer cancel()

	p, err := h.Products.Update(ctx, id, req.input())
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, p)
}

func (h *ProductHandler) Delete(c echo.Context) error {
	id, err := paramID(c, "id")
	if err != nil {
		return err
	}
	ctx, cancel := reqCtx(c)
	defer cancel()

	if err := h.Products.Deactivate(ctx, id); err != nil {
		return err
	}
	return c.NoContent(http.StatusNoContent)
}
