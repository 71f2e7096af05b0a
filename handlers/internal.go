package handlers

import (
	"context"
	"errors"
	"log"
	"net/http"
	"strings"

	"github.com/gorilla/mux"
	"github.com/gorilla/sessions"

	"house-alert-api/database"
	"house-alert-api/middleware"
	"house-alert-api/models"
	"house-alert-api/utils"
)

type AccountProvisioner interface {
	EnsureAccount(ctx context.Context, account models.Account) (*models.Account, bool, error)
	ApplySubscription(ctx context.Context, accountID string, plan models.Plan) error
	GetAccount(ctx context.Context, id string) (*models.Account, error)
}

// InternalHandler serves endpoints called by the identity front-end and
// operators, guarded by the internal secret.
type InternalHandler struct {
	accounts AccountProvisioner
	tokens   TokenIssuer
	store    sessions.Store
}

func NewInternalHandler(accounts AccountProvisioner, tokens TokenIssuer, store sessions.Store) *InternalHandler {
	return &InternalHandler{accounts: accounts, tokens: tokens, store: store}
}

// CreateSession is called after the user signs in with the identity
// provider. The account is created on first sign-in.
func (h *InternalHandler) CreateSession(w http.ResponseWriter, r *http.Request) {
	var req models.SessionRequest
	if err := decodeJSON(w, r, &req); err != nil {
		log.Printf("Error decoding session request: %v", err)
		utils.SendErrorResponse(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	req.UID = strings.TrimSpace(req.UID)
	req.Email = strings.ToLower(strings.TrimSpace(req.Email))
	if req.UID == "" || req.Email == "" {
		utils.SendErrorResponse(w, http.StatusBadRequest, "uid and email are required")
		return
	}

	account, created, err := h.accounts.EnsureAccount(r.Context(), models.NewAccount(req.UID, req.Email, req.DisplayName))
	if err != nil {
		log.Printf("Error ensuring account %s: %v", utils.MaskID(req.UID), err)
		utils.SendErrorResponse(w, http.StatusInternalServerError, "Internal server error")
		return
	}
	if created {
		log.Printf("Created account %s for %s", utils.MaskID(account.ID), utils.MaskEmail(account.Email))
	}

	authResponse, err := h.tokens.IssueTokens(models.AuthUser{
		AccountID: account.ID,
		Email:     account.Email,
		Tier:      account.Tier,
	})
	if err != nil {
		log.Printf("Error issuing tokens for %s: %v", utils.MaskID(account.ID), err)
		utils.SendErrorResponse(w, http.StatusInternalServerError, "Internal server error")
		return
	}

	if err := middleware.SaveSessionTokens(w, r, h.store, authResponse); err != nil {
		log.Printf("Error saving session for %s: %v", utils.MaskID(account.ID), err)
	}

	utils.SendSuccessResponse(w, models.APIResponse{
		Status:  "success",
		Message: "Session created",
		Data:    authResponse,
	})
}

type subscriptionRequest struct {
	Tier string `json:"tier"`
}

// SetSubscription applies a tier to an account directly.
func (h *InternalHandler) SetSubscription(w http.ResponseWriter, r *http.Request) {
	accountID := mux.Vars(r)["id"]

	var req subscriptionRequest
	if err := decodeJSON(w, r, &req); err != nil {
		utils.SendErrorResponse(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	tier, ok := models.ParseTier(req.Tier)
	if !ok {
		utils.SendErrorResponse(w, http.StatusBadRequest, "Invalid tier")
		return
	}
	plan, _ := models.PlanFor(tier)

	if err := h.accounts.ApplySubscription(r.Context(), accountID, plan); err != nil {
		if errors.Is(err, database.ErrNotFound) {
			utils.SendErrorResponse(w, http.StatusNotFound, "Account not found")
			return
		}
		log.Printf("Error applying %s to account %s: %v", tier, utils.MaskID(accountID), err)
		utils.SendErrorResponse(w, http.StatusInternalServerError, "Internal server error")
		return
	}

	account, err := h.accounts.GetAccount(r.Context(), accountID)
	if err != nil {
		log.Printf("Error reloading account %s: %v", utils.MaskID(accountID), err)
		utils.SendErrorResponse(w, http.StatusInternalServerError, "Internal server error")
		return
	}

	log.Printf("Account %s set to %s by operator", utils.MaskID(accountID), tier)
	utils.SendSuccessResponse(w, models.APIResponse{Status: "success", Data: account})
}
