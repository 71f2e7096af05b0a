package handlers

import (
	"context"
	"log"
	"net/http"

	"house-alert-api/queue"
	"house-alert-api/services/ecpay"
	"house-alert-api/worker"
)

type NotificationVerifier interface {
	Verify(params map[string]string) bool
}

type JobEnqueuer interface {
	Enqueue(ctx context.Context, jobType queue.JobType, data map[string]interface{}) (*queue.Job, error)
}

// PaymentCallbackHandler receives the gateway's server-to-server payment result.
type PaymentCallbackHandler struct {
	verifier NotificationVerifier
	jobs     JobEnqueuer
}

func NewPaymentCallbackHandler(verifier NotificationVerifier, jobs JobEnqueuer) *PaymentCallbackHandler {
	return &PaymentCallbackHandler{verifier: verifier, jobs: jobs}
}

// HandleCallback acknowledges with the gateway's plain text protocol. Only a
// failed CheckMacValue is rejected; the gateway retries anything else that
// does not answer 1|OK.
func (h *PaymentCallbackHandler) HandleCallback(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := r.ParseForm(); err != nil {
		log.Printf("ECPay callback error parsing form: %v", err)
		writePlain(w, http.StatusBadRequest, ecpay.CallbackReject)
		return
	}

	params := make(map[string]string, len(r.PostForm))
	for key, values := range r.PostForm {
		if len(values) > 0 {
			params[key] = values[0]
		}
	}

	if !h.verifier.Verify(params) {
		log.Printf("ECPay callback with invalid CheckMacValue from %s (order %s)", r.RemoteAddr, params["MerchantTradeNo"])
		writePlain(w, http.StatusOK, ecpay.CallbackReject)
		return
	}

	notification, err := ecpay.ParseNotification(params)
	if err != nil {
		log.Printf("ECPay callback with unusable payload: %v", err)
		writePlain(w, http.StatusOK, ecpay.CallbackAck)
		return
	}

	if !notification.Paid() {
		log.Printf("ECPay order %s not paid: RtnCode=%s RtnMsg=%s",
			notification.MerchantTradeNo, notification.RtnCode, notification.RtnMsg)
		writePlain(w, http.StatusOK, ecpay.CallbackAck)
		return
	}

	if _, err := h.jobs.Enqueue(r.Context(), queue.JobTypeApplySubscription, worker.SubscriptionJobData(notification)); err != nil {
		// No ack: the gateway will post the notification again.
		log.Printf("Error enqueuing payment %s: %v", notification.MerchantTradeNo, err)
		writePlain(w, http.StatusInternalServerError, "0|Retry")
		return
	}

	log.Printf("ECPay order %s paid (NT$%d), subscription job queued", notification.MerchantTradeNo, notification.TradeAmt)
	writePlain(w, http.StatusOK, ecpay.CallbackAck)
}

func writePlain(w http.ResponseWriter, status int, body string) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(status)
	if _, err := w.Write([]byte(body)); err != nil {
		log.Printf("Error writing response: %v", err)
	}
}
