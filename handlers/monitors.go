package handlers

import (
	"context"
	"errors"
	"log"
	"net/http"

	"github.com/gorilla/mux"

	"house-alert-api/database"
	"house-alert-api/middleware"
	"house-alert-api/models"
	"house-alert-api/utils"
)

type MonitorStore interface {
	ListMonitors(ctx context.Context, accountID string) ([]models.Monitor, error)
	GetMonitor(ctx context.Context, id string) (*models.Monitor, error)
	CreateMonitor(ctx context.Context, m models.Monitor) (*models.Monitor, error)
	UpdateMonitor(ctx context.Context, m models.Monitor) (*models.Monitor, error)
	DeleteMonitor(ctx context.Context, accountID, id string) error
}

type MonitorHandler struct {
	monitors MonitorStore
}

func NewMonitorHandler(monitors MonitorStore) *MonitorHandler {
	return &MonitorHandler{monitors: monitors}
}

func (h *MonitorHandler) ListMonitors(w http.ResponseWriter, r *http.Request) {
	user := middleware.GetUserFromContext(r.Context())
	if user == nil {
		utils.SendErrorResponse(w, http.StatusUnauthorized, "Unauthorized")
		return
	}

	monitors, err := h.monitors.ListMonitors(r.Context(), user.AccountID)
	if err != nil {
		log.Printf("Error listing monitors for %s: %v", utils.MaskID(user.AccountID), err)
		utils.SendErrorResponse(w, http.StatusInternalServerError, "Internal server error")
		return
	}

	utils.SendSuccessResponse(w, models.APIResponse{Status: "success", Data: monitors})
}

func (h *MonitorHandler) CreateMonitor(w http.ResponseWriter, r *http.Request) {
	user := middleware.GetUserFromContext(r.Context())
	if user == nil {
		utils.SendErrorResponse(w, http.StatusUnauthorized, "Unauthorized")
		return
	}

	var update models.MonitorUpdate
	if err := decodeJSON(w, r, &update); err != nil {
		utils.SendErrorResponse(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	monitor := models.NewMonitor(user.AccountID)
	update.Apply(&monitor)
	if err := monitor.Validate(); err != nil {
		utils.SendErrorResponse(w, http.StatusBadRequest, err.Error())
		return
	}

	created, err := h.monitors.CreateMonitor(r.Context(), monitor)
	if err != nil {
		log.Printf("Error creating monitor for %s: %v", utils.MaskID(user.AccountID), err)
		utils.SendErrorResponse(w, http.StatusInternalServerError, "Internal server error")
		return
	}

	utils.SendJSON(w, http.StatusCreated, models.APIResponse{Status: "success", Data: created})
}

func (h *MonitorHandler) UpdateMonitor(w http.ResponseWriter, r *http.Request) {
	user := middleware.GetUserFromContext(r.Context())
	if user == nil {
		utils.SendErrorResponse(w, http.StatusUnauthorized, "Unauthorized")
		return
	}

	monitor, ok := h.loadOwned(w, r, user.AccountID)
	if !ok {
		return
	}

	var update models.MonitorUpdate
	if err := decodeJSON(w, r, &update); err != nil {
		utils.SendErrorResponse(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	update.Apply(monitor)
	if err := monitor.Validate(); err != nil {
		utils.SendErrorResponse(w, http.StatusBadRequest, err.Error())
		return
	}

	updated, err := h.monitors.UpdateMonitor(r.Context(), *monitor)
	if err != nil {
		if errors.Is(err, database.ErrNotFound) {
			utils.SendErrorResponse(w, http.StatusNotFound, "Monitor not found")
			return
		}
		log.Printf("Error updating monitor %s: %v", monitor.ID, err)
		utils.SendErrorResponse(w, http.StatusInternalServerError, "Internal server error")
		return
	}

	utils.SendSuccessResponse(w, models.APIResponse{Status: "success", Data: updated})
}

func (h *MonitorHandler) DeleteMonitor(w http.ResponseWriter, r *http.Request) {
	user := middleware.GetUserFromContext(r.Context())
	if user == nil {
		utils.SendErrorResponse(w, http.StatusUnauthorized, "Unauthorized")
		return
	}

	id := mux.Vars(r)["id"]
	if err := h.monitors.DeleteMonitor(r.Context(), user.AccountID, id); err != nil {
		if errors.Is(err, database.ErrNotFound) {
			utils.SendErrorResponse(w, http.StatusNotFound, "Monitor not found")
			return
		}
		log.Printf("Error deleting monitor %s: %v", id, err)
		utils.SendErrorResponse(w, http.StatusInternalServerError, "Internal server error")
		return
	}

	utils.SendSuccessResponse(w, models.APIResponse{Status: "success", Message: "Monitor deleted"})
}

// loadOwned fetches the monitor named in the path. Monitors of other
// accounts are reported as missing.
func (h *MonitorHandler) loadOwned(w http.ResponseWriter, r *http.Request, accountID string) (*models.Monitor, bool) {
	id := mux.Vars(r)["id"]
	monitor, err := h.monitors.GetMonitor(r.Context(), id)
	if err != nil {
		if errors.Is(err, database.ErrNotFound) {
			utils.SendErrorResponse(w, http.StatusNotFound, "Monitor not found")
			return nil, false
		}
		log.Printf("Error loading monitor %s: %v", id, err)
		utils.SendErrorResponse(w, http.StatusInternalServerError, "Internal server error")
		return nil, false
	}
	if monitor.AccountID != accountID {
		utils.SendErrorResponse(w, http.StatusNotFound, "Monitor not found")
		return nil, false
	}
	return monitor, true
}
