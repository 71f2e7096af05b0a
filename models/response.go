package models

type APIResponse struct {
	Status  string      `json:"status"`
	Message string      `json:"message,omitempty"`
	Data    interface{} `json:"data,omitempty"`
}

type ErrorResponse struct {
	Error string `json:"error"`
}

type StatusResponse struct {
	Status string `json:"status"`
}

// CheckoutRequest is the body of POST /api/checkout.
type CheckoutRequest struct {
	PlanID string `json:"planId"`
	UserID string `json:"userId"`
}
