package handler

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/gym-management/internal/service"
)

const xlsxMIME = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

// ReportHandler serves the dashboard and the document exports.
type ReportHandler struct {
	Dashboard *service.DashboardService
	Export    *service.ExportService
}

func NewReportHandler(d *service.DashboardService, e *service.ExportService) *ReportHandler {
	return &ReportHandler{Dashboard: d, Export: e}
}

func (h *ReportHandler) Stats(c echo.Context) error {
	ctx, cancel := reqCtx(c)
	defer cancel()

	st, err := h.Dashboard.Stats(ctx)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, st)
}

func attachment(c echo.Context, name, mime string, body []byte) error {
	c.Response().Header().Set(echo.HeaderContentDisposition, fmt.Sprintf("attachment; filename=%q", name))
	return c.Blob(http.StatusOK, mime, body)
}

// UsersXLSX exports the users matching the list filters.
func (h *ReportHandler) UsersXLSX(c echo.Context) error {
	ctx, cancel := context.WithTimeout(c.Request().Context(), exportTimeout)
	defer cancel()

	body, err := h.Export.UsersXLSX(ctx, userFilter(c))
	if err != nil {
		return err
	}
	return attachment(c, "users-"+time.Now().UTC().Format("20060102")+".xlsx", xlsxMIME, body)
}

// OrdersXLSX exports the orders matching the list filters.
func (h *ReportHandler) OrdersXLSX(c echo.Context) error {
	f, err := orderFilter(c)
	if err != nil {
		return err
	}
	ctx, cancel := context.WithTimeout(c.Request().Context(), exportTimeout)
	defer cancel()

	body, err := h.Export.OrdersXLSX(ctx, f)
	if err != nil {
		return err
	}
	return attachment(c, "orders-"+time.Now().UTC().Format("20060102")+".xlsx", xlsxMIME, body)
}

// InvoicePDF renders one invoice; members may only fetch their own.
func (h *ReportHandler) InvoicePDF(c echo.Context) error {
	actor, err := actorOf(c)
	if err != nil {
		return err
	}
	id, err := paramID(c, "id")
	if err != nil {
		return err
	}
	ctx, cancel := context.WithTimeout(c.Request().Context(), exportTimeout)
	defer cancel()

	body, inv, err := h.Export.InvoicePDF(ctx, actor, id)
	if err != nil {
		return err
	}
	return attachment(c, inv.InvoiceNumber+".pdf", "application/pdf", body)
}
