package controller

import (
	"context"
	"net/http"

	"tempsense/internal/dashboard/types"
)

// Service is the slice of service.DashboardService the handlers use.
type Service interface {
	Snapshot(ctx context.Context) (types.Snapshot, error)
	View(ctx context.Context, name string) (any, error)
	Overview(ctx context.Context) (types.Overview, error)
	Bands(ctx context.Context) ([]types.TemperatureBand, error)
}

type DashboardController interface {
	RegisterRoutes(mux *http.ServeMux)
}

type dashboardControllerImpl struct {
	service   Service
	viewNames []string
}

func NewDashboardController(service Service, viewNames []string) DashboardController {
	return &dashboardControllerImpl{service: service, viewNames: viewNames}
}

func (c *dashboardControllerImpl) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("GET /", c.handleDashboard)
	mux.HandleFunc("GET /api/v1/views", c.handleViewNames)
	mux.HandleFunc("GET /api/v1/views/{name}", c.handleView)
	mux.HandleFunc("GET /api/v1/overview", c.handleOverview)
	mux.HandleFunc("GET /api/v1/bands", c.handleBands)
}
