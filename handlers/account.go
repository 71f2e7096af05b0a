package handlers

import (
	"context"
	"errors"
	"log"
	"net/http"

	"house-alert-api/database"
	"house-alert-api/middleware"
	"house-alert-api/models"
	"house-alert-api/utils"
)

type AccountReader interface {
	GetAccount(ctx context.Context, id string) (*models.Account, error)
}

type AccountHandler struct {
	accounts AccountReader
}

func NewAccountHandler(accounts AccountReader) *AccountHandler {
	return &AccountHandler{accounts: accounts}
}

// GetMe returns the caller's account with tier, caps and LINE binding.
func (h *AccountHandler) GetMe(w http.ResponseWriter, r *http.Request) {
	user := middleware.GetUserFromContext(r.Context())
	if user == nil {
		utils.SendErrorResponse(w, http.StatusUnauthorized, "Unauthorized")
		return
	}

	account, err := h.accounts.GetAccount(r.Context(), user.AccountID)
	if err != nil {
		if errors.Is(err, database.ErrNotFound) {
			utils.SendErrorResponse(w, http.StatusNotFound, "Account not found")
			return
		}
		log.Printf("Error loading account %s: %v", utils.MaskID(user.AccountID), err)
		utils.SendErrorResponse(w, http.StatusInternalServerError, "Internal server error")
		return
	}

	utils.SendSuccessResponse(w, models.APIResponse{Status: "success", Data: account})
}
