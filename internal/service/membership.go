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
	"github.com/iliyamo/gym-management/internal/queue"
	"github.com/iliyamo/gym-management/internal/repository"
)

// MembershipService sells packages and manages the member packages bought
// from them.
type MembershipService struct {
	db             *sql.DB
	packages       *repository.PackageRepo
	memberPackages *repository.MemberPackageRepo
	users          *repository.UserRepo
	vouchers       *VoucherService
	invoices       *InvoiceService
	events         EventPublisher
	log            *slog.Logger
	now            func() time.Time
}

func NewMembershipService(db *sql.DB, packages *repository.PackageRepo, memberPackages *repository.MemberPackageRepo, users *repository.UserRepo,
	vouchers *VoucherService, invoices *InvoiceService, events EventPublisher, logger *slog.Logger) *MembershipService {
	return &MembershipService{
		db:             db,
		packages:       packages,
		memberPackages: memberPackages,
		users:          users,
		vouchers:       vouchers,
		invoices:       invoices,
		events:         events,
		log:            logger,
		now:            time.Now,
	}
}

// PackageInput is the writable part of a package.
type PackageInput struct {
	Name         string
	Description  *string
	Price        decimal.Decimal
	DurationDays int
	Features     []string
	IsActive     *bool
	IsPublished  *bool
}

func (in PackageInput) validate() error {
	if strings.TrimSpace(in.Name) == "" {
		return apperr.Validation("name is required")
	}
	if in.Price.IsNegative() {
		return apperr.Validation("price must not be negative")
	}
	if in.DurationDays <= 0 {
		return apperr.Validation("duration_days must be positive")
	}
	return nil
}

func (in PackageInput) apply(p *model.Package) {
	p.Name = strings.TrimSpace(in.Name)
	p.Description = in.Description
	p.Price = in.Price
	p.DurationDays = in.DurationDays
	p.Features = model.StringList(in.Features)
	if p.Features == nil {
		p.Features = model.StringList{}
	}
	if in.IsActive != nil {
		p.IsActive = *in.IsActive
	}
	if in.IsPublished != nil {
		p.IsPublished = *in.IsPublished
	}
}

func (s *MembershipService) CreatePackage(ctx context.Context, in PackageInput) (model.Package, error) {
	if err := in.validate(); err != nil {
		return model.Package{}, err
	}
	p := model.Package{IsActive: true}
	in.apply(&p)
	if err := s.packages.Create(ctx, &p); err != nil {
		return p, apperr.Internal("create package failed", err)
	}
	return s.GetPackage(ctx, p.ID)
}

func (s *MembershipService) UpdatePackage(ctx context.Context, id uint64, in PackageInput) (model.Package, error) {
	if err := in.validate(); err != nil {
		return model.Package{}, err
	}
	p, err := s.GetPackage(ctx, id)
	if err != nil {
		return p, err
	}
	in.apply(&p)
	if err := s.packages.Update(ctx, &p); err != nil {
		return p, notFoundOr(err, "Package not found")
	}
	return s.GetPackage(ctx, id)
}

func (s *MembershipService) GetPackage(ctx context.Context, id uint64) (model.Package, error) {
	p, err := s.packages.GetByID(ctx, id)
	if err != nil {
		return p, notFoundOr(err, "Package not found")
	}
	return p, nil
}

func (s *MembershipService) ListPackages(ctx context.Context, publishedOnly bool) ([]model.Package, error) {
	out, err := s.packages.List(ctx, publishedOnly)
	if err != nil {
		return nil, apperr.Internal("list packages failed", err)
	}
	return out, nil
}

// DeletePackage withdraws a package from sale.
func (s *MembershipService) DeletePackage(ctx context.Context, id uint64) error {
	if err := s.packages.Deactivate(ctx, id); err != nil {
		return notFoundOr(err, "Package not found")
	}
	return nil
}

// PurchaseInput buys a package.  UserID is honoured for admins only;
// members always buy for themselves.
type PurchaseInput struct {
	UserID      uint64
	PackageID   uint64
	StartDate   *time.Time
	VoucherCode string
}

// Purchase creates an active member package running from the start date
// (today by default) for the package's duration.  The membership invoice
// is created after the commit on a best-effort basis.
func (s *MembershipService) Purchase(ctx context.Context, actor Actor, in PurchaseInput) (model.MemberPackage, error) {
	userID := actor.UserID
	if actor.Role == model.RoleAdmin && in.UserID != 0 {
		userID = in.UserID
		u, err := s.users.GetByID(ctx, userID)
		if err != nil {
			return model.MemberPackage{}, notFoundOr(err, "User not found")
		}
		if !u.IsActive {
			return model.MemberPackage{}, apperr.Validation("User is not active")
		}
	}
	start := dateOnly(s.now().UTC())
	if in.StartDate != nil {
		start = dateOnly(*in.StartDate)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return model.MemberPackage{}, apperr.Internal("failed to start transaction", err)
	}
	committed := false
	defer rollback(tx, &committed)

	p, err := s.packages.GetByIDTx(ctx, tx, in.PackageID)
	if err != nil {
		return model.MemberPackage{}, notFoundOr(err, "Package not found")
	}
	if !p.IsActive || (!p.IsPublished && actor.Role != model.RoleAdmin) {
		return model.MemberPackage{}, apperr.Validation("Package is not available")
	}

	mp := model.MemberPackage{
		UserID:         userID,
		PackageID:      p.ID,
		PackageName:    p.Name,
		StartDate:      start,
		EndDate:        start.AddDate(0, 0, p.DurationDays),
		Status:         model.MemberPackageActive,
		PricePaid:      p.Price,
		DiscountAmount: decimal.Zero,
	}
	if code := strings.TrimSpace(in.VoucherCode); code != "" {
		v, discount, err := s.vouchers.redeemTx(ctx, tx, code, p.Price)
		if err != nil {
			return model.MemberPackage{}, err
		}
		vid := v.ID
		mp.VoucherID = &vid
		mp.DiscountAmount = discount
		mp.PricePaid = p.Price.Sub(discount)
	}
	if err := s.memberPackages.CreateTx(ctx, tx, &mp); err != nil {
		return model.MemberPackage{}, apperr.Internal("create member package failed", err)
	}
	if err := tx.Commit(); err != nil {
		return model.MemberPackage{}, apperr.Internal("failed to commit transaction", err)
	}
	committed = true

	now := s.now().UTC()
	mp.CreatedAt, mp.UpdatedAt = now, now
	if _, err := s.invoices.CreateForMemberPackage(ctx, mp); err != nil {
		s.log.Error("membership invoice creation failed; left to reconciliation", "member_package_id", mp.ID, "err", err)
	}
	publishAsync(s.events, s.log, queue.MemberPackagePurchasedQueue, queue.MemberPackagePurchasedEvent{
		MemberPackageID: mp.ID,
		UserID:          mp.UserID,
		PackageID:       mp.PackageID,
		PackageName:     mp.PackageName,
		PricePaid:       mp.PricePaid.String(),
		StartDate:       mp.StartDate.Format("2006-01-02"),
		EndDate:         mp.EndDate.Format("2006-01-02"),
		PurchasedAt:     now.Format(time.RFC3339),
	})
	return mp, nil
}

// GetMemberPackage returns one member package; members only see their own.
func (s *MembershipService) GetMemberPackage(ctx context.Context, actor Actor, id uint64) (model.MemberPackage, error) {
	mp, err := s.memberPackages.GetByID(ctx, id)
	if err != nil {
		return mp, notFoundOr(err, "Member package not found")
	}
	if actor.Role != model.RoleAdmin && mp.UserID != actor.UserID {
		return model.MemberPackage{}, apperr.NotFound("Member package not found")
	}
	return mp, nil
}

// ListMemberPackages lists member packages; members see their own only.
func (s *MembershipService) ListMemberPackages(ctx context.Context, actor Actor, f repository.MemberPackageFilter) ([]model.MemberPackage, int, error) {
	if actor.Role != model.RoleAdmin {
		f.UserID = &actor.UserID
	}
	out, total, err := s.memberPackages.List(ctx, f)
	if err != nil {
		return nil, 0, apperr.Internal("list member packages failed", err)
	}
	return out, total, nil
}

// Cancel moves an active member package to cancelled.  Any other state is
// final.
func (s *MembershipService) Cancel(ctx context.Context, id uint64) error {
	err := s.memberPackages.Cancel(ctx, id)
	switch {
	case err == nil:
		return nil
	case errors.Is(err, sql.ErrNoRows):
		return apperr.NotFound("Member package not found")
	case errors.Is(err, repository.ErrConflict):
		return apperr.Validation("Only active packages can be cancelled")
	}
	return apperr.Internal("cancel member package failed", err)
}

// ExpireDue marks every active member package whose end date has passed
// as expired and returns the number of packages changed.
func (s *MembershipService) ExpireDue(ctx context.Context) (int64, error) {
	n, err := s.memberPackages.ExpireDue(ctx, dateOnly(s.now().UTC()))
	if err != nil {
		return 0, apperr.Internal("expire member packages failed", err)
	}
	return n, nil
}

// RunExpiryWorker calls ExpireDue every interval until ctx is cancelled.
func (s *MembershipService) RunExpiryWorker(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	s.log.Info("member package expiry worker started", "interval", interval.String())
	for {
		select {
		case <-ctx.Done():
			s.log.Info("member package expiry worker stopped")
			return
		case <-ticker.C:
			n, err := s.ExpireDue(ctx)
			if err != nil {
				s.log.Error("member package expiry failed", "err", err)
				continue
			}
			if n > 0 {
				s.log.Info("member packages expired", "count", n)
			}
		}
	}
}
