package handlers

import (
	"net/http"

	"house-alert-api/models"
	"house-alert-api/utils"
)

type PlanHandler struct{}

func NewPlanHandler() *PlanHandler {
	return &PlanHandler{}
}

func (h *PlanHandler) GetPlans(w http.ResponseWriter, r *http.Request) {
	utils.SendSuccessResponse(w, models.APIResponse{Status: "success", Data: models.Plans()})
}

func (h *PlanHandler) GetRegions(w http.ResponseWriter, r *http.Request) {
	utils.SendSuccessResponse(w, models.APIResponse{Status: "success", Data: models.Regions})
}
