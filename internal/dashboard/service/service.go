package service

import (
	"context"
	"errors"
	"fmt"

	"golang.org/x/sync/errgroup"

	"tempsense/internal/aggregates"
	"tempsense/internal/dashboard/repository"
	"tempsense/internal/dashboard/types"
)

var ErrUnknownView = errors.New("unknown view")

type DashboardService struct {
	repo repository.DashboardRepository
}

func NewDashboardService(repo repository.DashboardRepository) *DashboardService {
	return &DashboardService{repo: repo}
}

// Snapshot loads every panel of the dashboard concurrently. The first failed
// query cancels the rest.
func (s *DashboardService) Snapshot(ctx context.Context) (types.Snapshot, error) {
	var snap types.Snapshot
	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() (err error) { snap.Overview, err = s.repo.Overview(ctx); return })
	g.Go(func() (err error) { snap.Bands, err = s.repo.TemperatureBands(ctx); return })
	g.Go(func() (err error) { snap.Devices, err = s.repo.DeviceSummary(ctx); return })
	g.Go(func() (err error) { snap.Hourly, err = s.repo.HourlyReadings(ctx); return })
	g.Go(func() (err error) { snap.Daily, err = s.repo.DailyRange(ctx); return })
	g.Go(func() (err error) { snap.Locations, err = s.repo.LocationSummary(ctx); return })
	g.Go(func() (err error) { snap.Top, err = s.repo.TopTemperatures(ctx); return })
	g.Go(func() (err error) { snap.Monthly, err = s.repo.MonthlyTrend(ctx); return })

	if err := g.Wait(); err != nil {
		return types.Snapshot{}, err
	}
	return snap, nil
}

// View returns the rows of the named view.
func (s *DashboardService) View(ctx context.Context, name string) (any, error) {
	if !aggregates.IsView(name) {
		return nil, fmt.Errorf("%w: %q", ErrUnknownView, name)
	}
	switch name {
	case aggregates.DeviceSummary:
		return s.repo.DeviceSummary(ctx)
	case aggregates.HourlyReadings:
		return s.repo.HourlyReadings(ctx)
	case aggregates.DailyRange:
		return s.repo.DailyRange(ctx)
	case aggregates.LocationSummary:
		return s.repo.LocationSummary(ctx)
	case aggregates.TopTemperatures:
		return s.repo.TopTemperatures(ctx)
	default:
		return s.repo.MonthlyTrend(ctx)
	}
}

func (s *DashboardService) Overview(ctx context.Context) (types.Overview, error) {
	return s.repo.Overview(ctx)
}

func (s *DashboardService) Bands(ctx context.Context) ([]types.TemperatureBand, error) {
	return s.repo.TemperatureBands(ctx)
}
