package service

import (
	"bytes"
	"context"
	"fmt"
	"time"

	"github.com/go-pdf/fpdf"
	"github.com/xuri/excelize/v2"

	"github.com/iliyamo/gym-management/internal/apperr"
	"github.com/iliyamo/gym-management/internal/model"
	"github.com/iliyamo/gym-management/internal/repository"
)

// exportPageSize is the page size used while walking a full listing.
const exportPageSize = 500

// ExportService renders spreadsheets and invoice documents.
type ExportService struct {
	users    *repository.UserRepo
	orders   *repository.OrderRepo
	invoices *InvoiceService
}

func NewExportService(users *repository.UserRepo, orders *repository.OrderRepo, invoices *InvoiceService) *ExportService {
	return &ExportService{users: users, orders: orders, invoices: invoices}
}

// sheetWriter fills one worksheet row by row.
type sheetWriter struct {
	f     *excelize.File
	sheet string
	row   int
}

func newSheet(name string, header []any) (*sheetWriter, error) {
	f := excelize.NewFile()
	if err := f.SetSheetName("Sheet1", name); err != nil {
		f.Close()
		return nil, err
	}
	w := &sheetWriter{f: f, sheet: name}
	if err := w.append(header); err != nil {
		f.Close()
		return nil, err
	}
	bold, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err == nil {
		_ = f.SetRowStyle(name, 1, 1, bold)
	}
	_ = f.SetPanes(name, &excelize.Panes{Freeze: true, YSplit: 1, TopLeftCell: "A2", ActivePane: "bottomLeft"})
	return w, nil
}

func (w *sheetWriter) append(values []any) error {
	w.row++
	cell, err := excelize.CoordinatesToCellName(1, w.row)
	if err != nil {
		return err
	}
	return w.f.SetSheetRow(w.sheet, cell, &values)
}

func (w *sheetWriter) bytes(lastCol string) ([]byte, error) {
	defer w.f.Close()
	_ = w.f.SetColWidth(w.sheet, "A", lastCol, 18)
	buf, err := w.f.WriteToBuffer()
	if err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// UsersXLSX exports every user matching f.
func (s *ExportService) UsersXLSX(ctx context.Context, f repository.UserFilter) ([]byte, error) {
	w, err := newSheet("Users", []any{"ID", "Name", "Email", "Phone", "Role", "Active", "Created at"})
	if err != nil {
		return nil, apperr.Internal("create workbook failed", err)
	}
	f.Limit, f.Offset = exportPageSize, 0
	for {
		users, total, err := s.users.List(ctx, f)
		if err != nil {
			w.f.Close()
			return nil, apperr.Internal("list users failed", err)
		}
		for _, u := range users {
			phone := ""
			if u.Phone != nil {
				phone = *u.Phone
			}
			if err := w.append([]any{u.ID, u.Name, u.Email, phone, string(u.Role), u.IsActive, u.CreatedAt.Format(time.DateTime)}); err != nil {
				w.f.Close()
				return nil, apperr.Internal("write workbook failed", err)
			}
		}
		f.Offset += len(users)
		if len(users) == 0 || f.Offset >= total {
			break
		}
	}
	out, err := w.bytes("G")
	if err != nil {
		return nil, apperr.Internal("write workbook failed", err)
	}
	return out, nil
}

// OrdersXLSX exports every order matching f.
func (s *ExportService) OrdersXLSX(ctx context.Context, f repository.OrderFilter) ([]byte, error) {
	w, err := newSheet("Orders", []any{"ID", "Order number", "User ID", "Subtotal", "Shipping fee", "Discount", "Total", "Payment", "Status", "Created at"})
	if err != nil {
		return nil, apperr.Internal("create workbook failed", err)
	}
	f.Limit, f.Offset = exportPageSize, 0
	for {
		orders, total, err := s.orders.List(ctx, f)
		if err != nil {
			w.f.Close()
			return nil, apperr.Internal("list orders failed", err)
		}
		for _, o := range orders {
			row := []any{
				o.ID, o.OrderNumber, o.UserID,
				o.Subtotal.InexactFloat64(), o.ShippingFee.InexactFloat64(), o.DiscountAmount.InexactFloat64(), o.TotalAmount.InexactFloat64(),
				string(o.PaymentStatus), string(o.Status), o.CreatedAt.Format(time.DateTime),
			}
			if err := w.append(row); err != nil {
				w.f.Close()
				return nil, apperr.Internal("write workbook failed", err)
			}
		}
		f.Offset += len(orders)
		if len(orders) == 0 || f.Offset >= total {
			break
		}
	}
	out, err := w.bytes("J")
	if err != nil {
		return nil, apperr.Internal("write workbook failed", err)
	}
	return out, nil
}

// InvoicePDF renders an invoice the actor may see.  Shop invoices list the
// order lines.
func (s *ExportService) InvoicePDF(ctx context.Context, actor Actor, id uint64) ([]byte, model.Invoice, error) {
	inv, err := s.invoices.Get(ctx, actor, id)
	if err != nil {
		return nil, inv, err
	}
	var items []model.OrderItem
	if inv.OrderID != nil {
		o, err := s.orders.GetByID(ctx, *inv.OrderID)
		if err != nil {
			return nil, inv, notFoundOr(err, "Order not found")
		}
		items = o.Items
	}
	out, err := renderInvoicePDF(inv, items)
	if err != nil {
		return nil, inv, apperr.Internal("render invoice failed", err)
	}
	return out, inv, nil
}

func renderInvoicePDF(inv model.Invoice, items []model.OrderItem) ([]byte, error) {
	pdf := fpdf.New("P", "mm", "A4", "")
	tr := pdf.UnicodeTranslatorFromDescriptor("")
	pdf.SetTitle(inv.InvoiceNumber, true)
	pdf.AddPage()

	pdf.SetFont("Helvetica", "B", 18)
	pdf.CellFormat(0, 10, "INVOICE", "", 1, "L", false, 0, "")
	pdf.SetFont("Helvetica", "", 11)
	pdf.CellFormat(0, 6, "Number: "+inv.InvoiceNumber, "", 1, "L", false, 0, "")
	pdf.CellFormat(0, 6, "Issued: "+inv.IssuedAt.Format("2006-01-02"), "", 1, "L", false, 0, "")
	if inv.DueDate != nil {
		pdf.CellFormat(0, 6, "Due: "+inv.DueDate.Format("2006-01-02"), "", 1, "L", false, 0, "")
	}
	pdf.CellFormat(0, 6, "Status: "+string(inv.Status), "", 1, "L", false, 0, "")
	pdf.Ln(4)
	pdf.CellFormat(0, 6, tr("Bill to: "+inv.CustomerName+" <"+inv.CustomerEmail+">"), "", 1, "L", false, 0, "")
	pdf.MultiCell(0, 6, tr(inv.Description), "", "L", false)
	pdf.Ln(4)

	if len(items) > 0 {
		pdf.SetFont("Helvetica", "B", 10)
		widths := []float64{90, 30, 20, 40}
		for i, h := range []string{"Item", "Unit price", "Qty", "Amount"} {
			pdf.CellFormat(widths[i], 7, h, "1", 0, "C", false, 0, "")
		}
		pdf.Ln(-1)
		pdf.SetFont("Helvetica", "", 10)
		for _, it := range items {
			pdf.CellFormat(widths[0], 7, tr(it.ProductName), "1", 0, "L", false, 0, "")
			pdf.CellFormat(widths[1], 7, it.UnitPrice.StringFixed(2), "1", 0, "R", false, 0, "")
			pdf.CellFormat(widths[2], 7, fmt.Sprint(it.Quantity), "1", 0, "R", false, 0, "")
			pdf.CellFormat(widths[3], 7, it.Subtotal.StringFixed(2), "1", 0, "R", false, 0, "")
			pdf.Ln(-1)
		}
		pdf.Ln(4)
	}

	pdf.SetFont("Helvetica", "", 11)
	for _, line := range [][2]string{
		{"Subtotal", inv.Subtotal.StringFixed(2)},
		{"Discount", "-" + inv.DiscountAmount.StringFixed(2)},
	} {
		pdf.CellFormat(140, 7, line[0], "", 0, "R", false, 0, "")
		pdf.CellFormat(40, 7, line[1], "", 1, "R", false, 0, "")
	}
	pdf.SetFont("Helvetica", "B", 12)
	pdf.CellFormat(140, 8, "Total", "", 0, "R", false, 0, "")
	pdf.CellFormat(40, 8, inv.TotalAmount.StringFixed(2), "", 1, "R", false, 0, "")

	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
