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

// InvoiceHandler serves /invoices.
type InvoiceHandler struct {
	Invoices *service.InvoiceService
}

func NewInvoiceHandler(i *service.InvoiceService) *InvoiceHandler {
	return &InvoiceHandler{Invoices: i}
}

type manualInvoiceReq struct {
	UserID         uint64           `json:"user_id" validate:"required"`
	Description    string           `json:"description" validate:"required,max=500"`
	Subtotal       decimal.Decimal  `json:"subtotal"`
	DiscountAmount *decimal.Decimal `json:"discount_amount"`
	DueDate        *string          `json:"due_date"`
}

type invoiceStatusReq struct {
	Status string `json:"status" validate:"required,oneof=unpaid paid cancelled"`
}

func (h *InvoiceHandler) List(c echo.Context) error {
	actor, err := actorOf(c)
	if err != nil {
		return err
	}
	f := repository.InvoiceFilter{
		Status: model.InvoiceStatus(c.QueryParam("status")),
		Type:   model.InvoiceType(c.QueryParam("type")),
	}
	if f.UserID, err = queryUint(c, "user_id"); err != nil {
		return err
	}
	p, page := pageOf(c)
	f.Page = p
	ctx, cancel := reqCtx(c)
	defer cancel()

	out, total, err := h.Invoices.List(ctx, actor, f)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, listResponse(out, total, p, page))
}

func (h *InvoiceHandler) Get(c echo.Context) error {
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

	inv, err := h.Invoices.Get(ctx, actor, id)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, inv)
}

// Create issues a manual invoice.
func (h *InvoiceHandler) Create(c echo.Context) error {
	var req manualInvoiceReq
	if err := bindValid(c, &req); err != nil {
		return err
	}
	if !req.Subtotal.IsPositive() {
		return apperr.Validation("subtotal must be positive")
	}
	due, err := parseOptDate("due_date", req.DueDate)
	if err != nil {
		return err
	}
	ctx, cancel := reqCtx(c)
	defer cancel()

	inv, err := h.Invoices.CreateManual(ctx, service.ManualInvoiceInput{
		UserID:         req.UserID,
		Description:    req.Description,
		Subtotal:       req.Subtotal,
		DiscountAmount: optDecimal(req.DiscountAmount),
		DueDate:        due,
	})
	if err != nil {
		return err
	}
	return c.JSON(http.StatusCreated, inv)
}

func (h *InvoiceHandler) UpdateStatus(c echo.Context) error {
	id, err := paramID(c, "id")
	if err != nil {
		return err
	}
	var req invoiceStatusReq
	if err := bindValid(c, &req); err != nil {
		return err
	}
	ctx, cancel := reqCtx(c)
	defer cancel()

	inv, err := h.Invoices.UpdateStatus(ctx, id, model.InvoiceStatus(req.Status))
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, inv)
}
