package service

import (
	"context"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/iliyamo/gym-management/internal/apperr"
	"github.com/iliyamo/gym-management/internal/repository"
)

// DashboardService serves the admin overview.  Concurrent loads share one
// round of aggregate queries.
type DashboardService struct {
	repo  *repository.DashboardRepo
	group singleflight.Group
	now   func() time.Time
}

func NewDashboardService(repo *repository.DashboardRepo) *DashboardService {
	return &DashboardService{repo: repo, now: time.Now}
}

func (s *DashboardService) Stats(ctx context.Context) (repository.DashboardStats, error) {
	v, err, _ := s.group.Do("stats", func() (any, error) {
		return s.repo.Stats(ctx, s.now())
	})
	if err != nil {
		return repository.DashboardStats{}, apperr.Internal("load dashboard failed", err)
	}
	return v.(repository.DashboardStats), nil
}
