package handlers

import (
	"bytes"
	"errors"
	"log"
	"net/http"

	"house-alert-api/models"
	"house-alert-api/services/ecpay"
	"house-alert-api/utils"
)

// The auto-submit page runs an inline onload handler and posts off-site.
const checkoutCSP = "default-src 'none'; script-src 'unsafe-inline'; form-action " +
	ecpay.ProductionEndpoint + " " + ecpay.StagingEndpoint

type OrderBuilder interface {
	NewOrder(planID, userID string) (*ecpay.Order, error)
}

type CheckoutHandler struct {
	gateway OrderBuilder
}

func NewCheckoutHandler(gateway OrderBuilder) *CheckoutHandler {
	return &CheckoutHandler{gateway: gateway}
}

// CreateCheckout answers with an HTML page that forwards the signed order
// to the payment gateway.
func (h *CheckoutHandler) CreateCheckout(w http.ResponseWriter, r *http.Request) {
	var req models.CheckoutRequest
	if err := decodeJSON(w, r, &req); err != nil {
		log.Printf("Error decoding checkout request: %v", err)
		utils.SendErrorResponse(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	if req.PlanID == "" || req.UserID == "" {
		utils.SendErrorResponse(w, http.StatusBadRequest, "Missing planId or userId")
		return
	}

	order, err := h.gateway.NewOrder(req.PlanID, req.UserID)
	if err != nil {
		switch {
		case errors.Is(err, ecpay.ErrMissingFields):
			utils.SendErrorResponse(w, http.StatusBadRequest, "Missing planId or userId")
		case errors.Is(err, ecpay.ErrInvalidPlan):
			utils.SendErrorResponse(w, http.StatusBadRequest, "Invalid plan")
		default:
			log.Printf("Checkout error: %v", err)
			utils.SendErrorResponse(w, http.StatusInternalServerError, "Internal server error")
		}
		return
	}

	var page bytes.Buffer
	if err := ecpay.RenderForm(&page, order); err != nil {
		log.Printf("Checkout error rendering form for %s: %v", order.MerchantTradeNo, err)
		utils.SendErrorResponse(w, http.StatusInternalServerError, "Internal server error")
		return
	}

	log.Printf("Checkout order %s created for plan %s (NT$%d)", order.MerchantTradeNo, order.Plan.ID, order.Plan.Price)

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Header().Set("Content-Security-Policy", checkoutCSP)
	w.WriteHeader(http.StatusOK)
	if _, err := page.WriteTo(w); err != nil {
		log.Printf("Error writing checkout page for %s: %v", order.MerchantTradeNo, err)
	}
}
