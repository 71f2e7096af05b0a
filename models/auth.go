package models

import "time"

// SessionRequest is posted by the identity front-end after a successful sign-in.
type SessionRequest struct {
	UID         string `json:"uid"`
	Email       string `json:"email"`
	DisplayName string `json:"displayName"`
}

type RefreshTokenRequest struct {
	RefreshToken string `json:"refresh_token"`
}

// AuthUser is the authenticated caller carried in the request context.
type AuthUser struct {
	AccountID string           `json:"uid"`
	Email     string           `json:"email"`
	Tier      SubscriptionTier `json:"subscription_status"`
}

type AuthResponse struct {
	Token        string    `json:"token"`
	RefreshToken string    `json:"refresh_token"`
	ExpiresAt    time.Time `json:"expires_at"`
	User         AuthUser  `json:"user"`
}
