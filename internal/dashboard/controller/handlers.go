package controller

import (
	"bytes"
	"errors"
	"log/slog"
	"net/http"

	"tempsense/internal/dashboard/service"
	"tempsense/internal/dashboard/views"
	"tempsense/internal/utils"
)

func (c *dashboardControllerImpl) handleDashboard(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" {
		http.NotFound(w, r)
		return
	}
	snap, err := c.service.Snapshot(r.Context())
	if err != nil {
		slog.Error("dashboard: load snapshot failed", "error", err)
		utils.WriteError(w, http.StatusInternalServerError, "failed to load dashboard data")
		return
	}

	var buf bytes.Buffer
	if err := views.RenderDashboard(&buf, views.NewDashboardData(snap)); err != nil {
		slog.Error("dashboard template render failed", "error", err)
		utils.WriteError(w, http.StatusInternalServerError, "failed to render page")
		return
	}
	utils.WriteHTML(w, http.StatusOK, buf.Bytes())
}

func (c *dashboardControllerImpl) handleViewNames(w http.ResponseWriter, r *http.Request) {
	utils.WriteJSON(w, http.StatusOK, c.viewNames)
}

func (c *dashboardControllerImpl) handleView(w http.ResponseWriter, r *http.Request) {
	name := r.PathValue("name")
	if name == "" {
		utils.WriteError(w, http.StatusBadRequest, "missing view name")
		return
	}
	rows, err := c.service.View(r.Context(), name)
	if err != nil {
		if errors.Is(err, service.ErrUnknownView) {
			utils.WriteError(w, http.StatusNotFound, err.Error())
			return
		}
		slog.Error("view query failed", "view", name, "error", err)
		utils.WriteError(w, http.StatusInternalServerError, "failed to load view")
		return
	}
	utils.WriteJSON(w, http.StatusOK, rows)
}

func (c *dashboardControllerImpl) handleOverview(w http.ResponseWriter, r *http.Request) {
	o, err := c.service.Overview(r.Context())
	if err != nil {
		slog.Error("overview query failed", "error", err)
		utils.WriteError(w, http.StatusInternalServerError, "failed to load overview")
		return
	}
	utils.WriteJSON(w, http.StatusOK, o)
}

func (c *dashboardControllerImpl) handleBands(w http.ResponseWriter, r *http.Request) {
	bands, err := c.service.Bands(r.Context())
	if err != nil {
		slog.Error("bands query failed", "error", err)
		utils.WriteError(w, http.StatusInternalServerError, "failed to load temperature bands")
		return
	}
	utils.WriteJSON(w, http.StatusOK, bands)
}
