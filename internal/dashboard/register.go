package dashboard

import (
	"database/sql"
	"net/http"

	"tempsense/internal/aggregates"
	"tempsense/internal/dashboard/controller"
	"tempsense/internal/dashboard/repository"
	"tempsense/internal/dashboard/service"
)

func RegisterFeature(mux *http.ServeMux, db *sql.DB) {
	dashboardRepository := repository.NewRepository(db)
	dashboardService := service.NewDashboardService(dashboardRepository)
	dashboardController := controller.NewDashboardController(dashboardService, aggregates.Names())
	dashboardController.RegisterRoutes(mux)
}
