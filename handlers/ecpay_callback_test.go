package handlers

import (
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"house-alert-api/config"
	"house-alert-api/queue"
	"house-alert-api/services/ecpay"
)

func signedNotification(fields map[string]string) url.Values {
	form := url.Values{}
	for k, v := range fields {
		form.Set(k, v)
	}
	form.Set(ecpay.CheckMacField, ecpay.CheckMacValue(fields, config.SandboxHashKey, config.SandboxHashIV))
	return form
}

func paidFields() map[string]string {
	return map[string]string{
		"MerchantID":      config.SandboxMerchantID,
		"MerchantTradeNo": "591_abcdefgh_pro_170",
		"TradeNo":         "2401051403123456",
		"RtnCode":         "1",
		"RtnMsg":          "交易成功",
		"TradeAmt":        "299",
		"PaymentDate":     "2024/01/05 14:03:09",
		"PaymentType":     "Credit_CreditCard",
		"SimulatePaid":    "0",
	}
}

func postCallback(h *PaymentCallbackHandler, form url.Values) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, ecpay.CallbackPath, strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	rec := httptest.NewRecorder()
	h.HandleCallback(rec, req)
	return rec
}

func TestCallbackPaidEnqueuesSubscription(t *testing.T) {
	jobs := &fakeEnqueuer{}
	rec := postCallback(NewPaymentCallbackHandler(sandboxGateway(), jobs), signedNotification(paidFields()))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, ecpay.CallbackAck, rec.Body.String())

	require.Len(t, jobs.jobs, 1)
	job := jobs.jobs[0]
	assert.Equal(t, queue.JobTypeApplySubscription, job.Type)
	assert.Equal(t, "591_abcdefgh_pro_170", job.String("merchant_trade_no"))
	amount, err := job.Int("amount")
	require.NoError(t, err)
	assert.Equal(t, 299, amount)
	assert.Equal(t, "2024-01-05T06:03:09Z", job.String("paid_at"))
}

func TestCallbackTamperedRejected(t *testing.T) {
	form := signedNotification(paidFields())
	form.Set("TradeAmt", "1")

	jobs := &fakeEnqueuer{}
	rec := postCallback(NewPaymentCallbackHandler(sandboxGateway(), jobs), form)

	assert.Equal(t, ecpay.CallbackReject, rec.Body.String())
	assert.Empty(t, jobs.jobs)
}

func TestCallbackUnpaidAcknowledgedWithoutJob(t *testing.T) {
	fields := paidFields()
	fields["RtnCode"] = "10100058"

	jobs := &fakeEnqueuer{}
	rec := postCallback(NewPaymentCallbackHandler(sandboxGateway(), jobs), signedNotification(fields))

	assert.Equal(t, ecpay.CallbackAck, rec.Body.String())
	assert.Empty(t, jobs.jobs)
}

func TestCallbackEnqueueFailureAsksForRetry(t *testing.T) {
	jobs := &fakeEnqueuer{err: assert.AnError}
	rec := postCallback(NewPaymentCallbackHandler(sandboxGateway(), jobs), signedNotification(paidFields()))

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.NotEqual(t, ecpay.CallbackAck, rec.Body.String())
}
