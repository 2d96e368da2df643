package service

import (
	"context"
	"database/sql"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/iliyamo/gym-management/internal/apperr"
	"github.com/iliyamo/gym-management/internal/model"
	"github.com/iliyamo/gym-management/internal/repository"
	"github.com/iliyamo/gym-management/internal/utils"
)

// invoiceNumberAttempts bounds the retries after a duplicate invoice
// number.  Each retry moves to the next sequence value.
const invoiceNumberAttempts = 5

// invoiceDueDays is the payment term of generated invoices.
const invoiceDueDays = 7

// InvoiceService numbers and stores invoices.  It implements
// queue.InvoiceBackfiller.
type InvoiceService struct {
	invoices       *repository.InvoiceRepo
	orders         *repository.OrderRepo
	memberPackages *repository.MemberPackageRepo
	log            *slog.Logger
	now            func() time.Time
}

func NewInvoiceService(invoices *repository.InvoiceRepo, orders *repository.OrderRepo, memberPackages *repository.MemberPackageRepo, logger *slog.Logger) *InvoiceService {
	return &InvoiceService{invoices: invoices, orders: orders, memberPackages: memberPackages, log: logger, now: time.Now}
}

// insert allocates INV-YYYYMMDD-NNNN where NNNN is one more than the
// invoices already numbered today.  invoice_number is unique, so two
// requests that read the same count cannot both win; the loser retries
// with the following number.
func (s *InvoiceService) insert(ctx context.Context, inv *model.Invoice) error {
	now := s.now().UTC()
	inv.IssuedAt = now
	n, err := s.invoices.CountWithPrefix(ctx, utils.InvoicePrefix(now))
	if err != nil {
		return err
	}
	for attempt := 1; attempt <= invoiceNumberAttempts; attempt++ {
		inv.InvoiceNumber = utils.InvoiceNumber(now, n+attempt)
		err = s.invoices.Create(ctx, inv)
		if !errors.Is(err, repository.ErrDuplicate) {
			return err
		}
	}
	return err
}

func dueDate(now time.Time) *time.Time {
	d := dateOnly(now.UTC()).AddDate(0, 0, invoiceDueDays)
	return &d
}

// CreateForOrder issues the shop invoice of an order.
func (s *InvoiceService) CreateForOrder(ctx context.Context, o model.Order) (model.Invoice, error) {
	orderID := o.ID
	inv := model.Invoice{
		UserID:         o.UserID,
		Type:           model.InvoiceShop,
		OrderID:        &orderID,
		Description:    "Shop order " + o.OrderNumber,
		Subtotal:       o.Subtotal.Add(o.ShippingFee),
		DiscountAmount: o.DiscountAmount,
		TotalAmount:    o.TotalAmount,
		Status:         model.InvoiceUnpaid,
		DueDate:        dueDate(s.now()),
	}
	if o.PaymentStatus == model.PaymentPaid {
		inv.Status = model.InvoicePaid
		paid := s.now().UTC()
		inv.PaidAt = &paid
	}
	if err := s.insert(ctx, &inv); err != nil {
		return inv, err
	}
	return inv, nil
}

// CreateForMemberPackage issues the membership invoice of a purchase.
func (s *InvoiceService) CreateForMemberPackage(ctx context.Context, mp model.MemberPackage) (model.Invoice, error) {
	mpID := mp.ID
	name := mp.PackageName
	if name == "" {
		name = "membership package"
	}
	inv := model.Invoice{
		UserID:          mp.UserID,
		Type:            model.InvoiceMembership,
		MemberPackageID: &mpID,
		Description:     "Membership: " + name + " (" + mp.StartDate.Format("2006-01-02") + " - " + mp.EndDate.Format("2006-01-02") + ")",
		Subtotal:        mp.PricePaid.Add(mp.DiscountAmount),
		DiscountAmount:  mp.DiscountAmount,
		TotalAmount:     mp.PricePaid,
		Status:          model.InvoiceUnpaid,
		DueDate:         dueDate(s.now()),
	}
	if err := s.insert(ctx, &inv); err != nil {
		return inv, err
	}
	return inv, nil
}

// EnsureOrderInvoice creates the shop invoice of an order if it is
// missing and reports whether it did.
func (s *InvoiceService) EnsureOrderInvoice(ctx context.Context, orderID uint64) (bool, error) {
	if _, err := s.invoices.GetByOrderID(ctx, orderID); err == nil {
		return false, nil
	} else if !errors.Is(err, sql.ErrNoRows) {
		return false, err
	}
	o, err := s.orders.GetByID(ctx, orderID)
	if err != nil {
		return false, err
	}
	if _, err := s.CreateForOrder(ctx, o); err != nil {
		if errors.Is(err, repository.ErrInvoiceExists) {
			return false, nil
		}
		return false, err
	}
	return true, nil
}

// EnsureMembershipInvoice is EnsureOrderInvoice for member packages.
func (s *InvoiceService) EnsureMembershipInvoice(ctx context.Context, memberPackageID uint64) (bool, error) {
	if _, err := s.invoices.GetByMemberPackageID(ctx, memberPackageID); err == nil {
		return false, nil
	} else if !errors.Is(err, sql.ErrNoRows) {
		return false, err
	}
	mp, err := s.memberPackages.GetByID(ctx, memberPackageID)
	if err != nil {
		return false, err
	}
	if _, err := s.CreateForMemberPackage(ctx, mp); err != nil {
		if errors.Is(err, repository.ErrInvoiceExists) {
			return false, nil
		}
		return false, err
	}
	return true, nil
}

// ManualInvoiceInput is an invoice written by an admin.
type ManualInvoiceInput struct {
	UserID         uint64
	Description    string
	Subtotal       decimal.Decimal
	DiscountAmount decimal.Decimal
	DueDate        *time.Time
}

func (s *InvoiceService) CreateManual(ctx context.Context, in ManualInvoiceInput) (model.Invoice, error) {
	if strings.TrimSpace(in.Description) == "" {
		return model.Invoice{}, apperr.Validation("description is required")
	}
	if in.Subtotal.IsNegative() || in.DiscountAmount.IsNegative() || in.DiscountAmount.GreaterThan(in.Subtotal) {
		return model.Invoice{}, apperr.Validation("amounts must satisfy 0 <= discount_amount <= subtotal")
	}
	inv := model.Invoice{
		UserID:         in.UserID,
		Type:           model.InvoiceManual,
		Description:    strings.TrimSpace(in.Description),
		Subtotal:       in.Subtotal,
		DiscountAmount: in.DiscountAmount,
		TotalAmount:    in.Subtotal.Sub(in.DiscountAmount),
		Status:         model.InvoiceUnpaid,
		DueDate:        in.DueDate,
	}
	if inv.DueDate == nil {
		inv.DueDate = dueDate(s.now())
	}
	if err := s.insert(ctx, &inv); err != nil {
		return inv, apperr.Internal("create invoice failed", err)
	}
	return s.invoiceByID(ctx, inv.ID)
}

func (s *InvoiceService) invoiceByID(ctx context.Context, id uint64) (model.Invoice, error) {
	inv, err := s.invoices.GetByID(ctx, id)
	if err != nil {
		return inv, notFoundOr(err, "Invoice not found")
	}
	return inv, nil
}

// Get returns an invoice; members only see their own.
func (s *InvoiceService) Get(ctx context.Context, actor Actor, id uint64) (model.Invoice, error) {
	inv, err := s.invoiceByID(ctx, id)
	if err != nil {
		return inv, err
	}
	if actor.Role != model.RoleAdmin && inv.UserID != actor.UserID {
		return model.Invoice{}, apperr.NotFound("Invoice not found")
	}
	return inv, nil
}

// List returns invoices; members are restricted to their own.
func (s *InvoiceService) List(ctx context.Context, actor Actor, f repository.InvoiceFilter) ([]model.Invoice, int, error) {
	if actor.Role != model.RoleAdmin {
		f.UserID = &actor.UserID
	}
	out, total, err := s.invoices.List(ctx, f)
	if err != nil {
		return nil, 0, apperr.Internal("list invoices failed", err)
	}
	return out, total, nil
}

// UpdateStatus marks an invoice paid, unpaid or cancelled.  A cancelled
// invoice is final.
func (s *InvoiceService) UpdateStatus(ctx context.Context, id uint64, status model.InvoiceStatus) (model.Invoice, error) {
	if !status.Valid() {
		return model.Invoice{}, apperr.Validation("Invalid status")
	}
	inv, err := s.invoiceByID(ctx, id)
	if err != nil {
		return inv, err
	}
	if inv.Status == model.InvoiceCancelled && status != model.InvoiceCancelled {
		return inv, apperr.Validation("Cancelled invoice cannot change status")
	}
	var paidAt *time.Time
	if status == model.InvoicePaid {
		if inv.PaidAt != nil {
			paidAt = inv.PaidAt
		} else {
			t := s.now().UTC()
			paidAt = &t
		}
	}
	if err := s.invoices.UpdateStatus(ctx, id, status, paidAt); err != nil {
		return inv, notFoundOr(err, "Invoice not found")
	}
	return s.invoiceByID(ctx, id)
}
