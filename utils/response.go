package utils

import (
	"encoding/json"
	"log"
	"net/http"

	"house-alert-api/models"
)

func SendJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Printf("Error encoding response: %v", err)
	}
}

func SendErrorResponse(w http.ResponseWriter, status int, message string) {
	SendJSON(w, status, models.ErrorResponse{Error: message})
}

func SendSuccessResponse(w http.ResponseWriter, response models.APIResponse) {
	SendJSON(w, http.StatusOK, response)
}
