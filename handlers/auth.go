package handlers

import (
	"context"
	"errors"
	"io"
	"log"
	"net/http"

	"github.com/gorilla/sessions"

	"house-alert-api/middleware"
	"house-alert-api/models"
	"house-alert-api/utils"
)

type TokenIssuer interface {
	IssueTokens(user models.AuthUser) (*models.AuthResponse, error)
	RefreshToken(ctx context.Context, refreshToken string) (*models.AuthResponse, error)
}

type AuthHandler struct {
	tokens TokenIssuer
	store  sessions.Store
}

func NewAuthHandler(tokens TokenIssuer, store sessions.Store) *AuthHandler {
	return &AuthHandler{tokens: tokens, store: store}
}

// RefreshToken exchanges a refresh token from the body, or the session
// cookie when the body has none, for a new token pair.
func (h *AuthHandler) RefreshToken(w http.ResponseWriter, r *http.Request) {
	var req models.RefreshTokenRequest
	if err := decodeJSON(w, r, &req); err != nil && !errors.Is(err, io.EOF) {
		log.Printf("Error decoding refresh token request: %v", err)
		utils.SendErrorResponse(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	refreshToken := req.RefreshToken
	if refreshToken == "" {
		refreshToken = middleware.SessionRefreshToken(r, h.store)
	}
	if refreshToken == "" {
		utils.SendErrorResponse(w, http.StatusBadRequest, "Refresh token is required")
		return
	}

	authResponse, err := h.tokens.RefreshToken(r.Context(), refreshToken)
	if err != nil {
		log.Printf("Token refresh failed: %v", err)
		utils.SendErrorResponse(w, http.StatusUnauthorized, "Invalid or expired refresh token")
		return
	}

	if err := middleware.SaveSessionTokens(w, r, h.store, authResponse); err != nil {
		log.Printf("Error saving session after refresh: %v", err)
	}

	utils.SendSuccessResponse(w, models.APIResponse{
		Status:  "success",
		Message: "Token refreshed successfully",
		Data:    authResponse,
	})
}

func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	if err := middleware.ClearSession(w, r, h.store); err != nil {
		log.Printf("Error clearing session: %v", err)
	}
	utils.SendSuccessResponse(w, models.APIResponse{Status: "success", Message: "Logged out"})
}
