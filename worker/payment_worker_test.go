package worker

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"house-alert-api/models"
	"house-alert-api/queue"
	"house-alert-api/services/ecpay"
	"house-alert-api/services/email"
)

type fakeJobs struct {
	enqueued   []*queue.Job
	completed  []*queue.Job
	failed     []*queue.Job
	enqueueErr error
	recovered  int
}

func (f *fakeJobs) Enqueue(ctx context.Context, jobType queue.JobType, data map[string]interface{}) (*queue.Job, error) {
	if f.enqueueErr != nil {
		return nil, f.enqueueErr
	}
	job := queue.NewJob(jobType, data)
	f.enqueued = append(f.enqueued, job)
	return job, nil
}

func (f *fakeJobs) Dequeue(ctx context.Context, timeout time.Duration) (*queue.Job, error) {
	time.Sleep(time.Millisecond)
	return nil, nil
}

func (f *fakeJobs) CompleteJob(ctx context.Context, job *queue.Job) error {
	f.completed = append(f.completed, job)
	return nil
}

func (f *fakeJobs) FailJob(ctx context.Context, job *queue.Job, err error) error {
	f.failed = append(f.failed, job)
	return nil
}

func (f *fakeJobs) ProcessDelayedJobs(ctx context.Context) error { return nil }

func (f *fakeJobs) RecoverProcessing(ctx context.Context) (int, error) {
	f.recovered++
	return 0, nil
}

type fakeStore struct {
	accounts []models.Account
	applied  map[string]models.Payment
	findErr  error
	applyErr error
}

func newFakeStore(accounts ...models.Account) *fakeStore {
	return &fakeStore{accounts: accounts, applied: map[string]models.Payment{}}
}

func (f *fakeStore) GetAccount(ctx context.Context, id string) (*models.Account, error) {
	for _, a := range f.accounts {
		if a.ID == id {
			a := a
			return &a, nil
		}
	}
	return nil, errors.New("not found")
}

func (f *fakeStore) FindAccountsByIDPrefix(ctx context.Context, prefix string) ([]models.Account, error) {
	if f.findErr != nil {
		return nil, f.findErr
	}
	var out []models.Account
	for _, a := range f.accounts {
		if strings.HasPrefix(a.ID, prefix) {
			out = append(out, a)
		}
	}
	return out, nil
}

func (f *fakeStore) ApplyPayment(ctx context.Context, p models.Payment, plan models.Plan) (bool, error) {
	if f.applyErr != nil {
		return false, f.applyErr
	}
	if _, ok := f.applied[p.MerchantTradeNo]; ok {
		return false, nil
	}
	f.applied[p.MerchantTradeNo] = p
	return true, nil
}

type fakeMailer struct {
	receipts map[string]email.Receipt
	err      error
}

func (f *fakeMailer) SendEmail(to, subject, htmlBody, textBody string) error { return f.err }

func (f *fakeMailer) SendReceipt(to string, r email.Receipt) error {
	if f.err != nil {
		return f.err
	}
	if f.receipts == nil {
		f.receipts = map[string]email.Receipt{}
	}
	f.receipts[to] = r
	return nil
}

func subscriptionJob(tradeNo string, amount int) *queue.Job {
	return queue.NewJob(queue.JobTypeApplySubscription, SubscriptionJobData(&ecpay.Notification{
		MerchantTradeNo: tradeNo,
		TradeNo:         "2401051403123456",
		TradeAmt:        amount,
		PaymentDate:     time.Date(2024, 1, 5, 6, 3, 9, 0, time.UTC),
	}))
}

func TestStartRecoversUnfinishedJobsOnce(t *testing.T) {
	jobs := &fakeJobs{}
	w := NewWorker(jobs, newFakeStore(), nil)

	require.NoError(t, w.Start(2))
	require.NoError(t, w.Start(2))
	w.Stop()

	assert.Equal(t, 1, jobs.recovered)
}

func TestApplySubscriptionUpgradesAccount(t *testing.T) {
	jobs := &fakeJobs{}
	store := newFakeStore(models.NewAccount("abcdefghijkl", "amy@example.com", "Amy"))
	w := NewWorker(jobs, store, &fakeMailer{})

	w.handle(subscriptionJob("591_abcdefgh_pro_17", 299))

	require.Len(t, jobs.completed, 1)
	assert.Empty(t, jobs.failed)

	payment, ok := store.applied["591_abcdefgh_pro_17"]
	require.True(t, ok)
	assert.Equal(t, "abcdefghijkl", payment.AccountID)
	assert.Equal(t, models.TierPro, payment.Tier)
	assert.Equal(t, time.Date(2024, 1, 5, 6, 3, 9, 0, time.UTC), payment.PaidAt)

	require.Len(t, jobs.enqueued, 1)
	assert.Equal(t, queue.JobTypeSendReceipt, jobs.enqueued[0].Type)
	assert.Equal(t, "abcdefghijkl", jobs.enqueued[0].String("account_id"))
}

func TestApplySubscriptionIsIdempotent(t *testing.T) {
	jobs := &fakeJobs{}
	store := newFakeStore(models.NewAccount("abcdefghijkl", "amy@example.com", "Amy"))
	w := NewWorker(jobs, store, nil)

	w.handle(subscriptionJob("591_abcdefgh_pro_17", 299))
	w.handle(subscriptionJob("591_abcdefgh_pro_17", 299))

	assert.Len(t, jobs.completed, 2)
	assert.Len(t, jobs.enqueued, 1)
}

func TestApplySubscriptionPermanentFailures(t *testing.T) {
	tests := []struct {
		name     string
		tradeNo  string
		amount   int
		accounts []models.Account
	}{
		{"unknown price", "591_abcdefgh_pro_17", 123, []models.Account{{ID: "abcdefghijkl"}}},
		{"foreign trade number", "ORDER123", 299, []models.Account{{ID: "abcdefghijkl"}}},
		{"no account", "591_abcdefgh_pro_17", 299, nil},
		{"ambiguous account", "591_abcdefgh_pro_17", 299, []models.Account{{ID: "abcdefgh1"}, {ID: "abcdefgh2"}}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			jobs := &fakeJobs{}
			store := newFakeStore(tt.accounts...)
			w := NewWorker(jobs, store, nil)

			w.handle(subscriptionJob(tt.tradeNo, tt.amount))

			require.Len(t, jobs.failed, 1)
			assert.Equal(t, queue.MaxRetries, jobs.failed[0].RetryCount)
			assert.Empty(t, store.applied)
		})
	}
}

func TestApplySubscriptionTransientFailureRetries(t *testing.T) {
	jobs := &fakeJobs{}
	store := newFakeStore(models.Account{ID: "abcdefghijkl"})
	store.applyErr = errors.New("deadlock")
	w := NewWorker(jobs, store, nil)

	w.handle(subscriptionJob("591_abcdefgh_pro_17", 299))

	require.Len(t, jobs.failed, 1)
	assert.Equal(t, 0, jobs.failed[0].RetryCount)
}

func TestApplySubscriptionReceiptEnqueueFailureIsIgnored(t *testing.T) {
	jobs := &fakeJobs{enqueueErr: errors.New("redis down")}
	store := newFakeStore(models.Account{ID: "abcdefghijkl"})
	w := NewWorker(jobs, store, nil)

	w.handle(subscriptionJob("591_abcdefgh_pro_17", 299))

	assert.Len(t, jobs.completed, 1)
	assert.Len(t, store.applied, 1)
}

func TestSendReceipt(t *testing.T) {
	jobs := &fakeJobs{}
	store := newFakeStore(models.NewAccount("abcdefghijkl", "amy@example.com", "Amy"))
	mailer := &fakeMailer{}
	w := NewWorker(jobs, store, mailer)

	w.handle(queue.NewJob(queue.JobTypeSendReceipt, map[string]interface{}{
		"account_id":        "abcdefghijkl",
		"merchant_trade_no": "591_abcdefgh_pro_17",
		"tier":              "pro",
		"amount":            299,
		"paid_at":           "2024-01-05T06:03:09Z",
	}))

	require.Len(t, jobs.completed, 1)
	receipt, ok := mailer.receipts["amy@example.com"]
	require.True(t, ok)
	assert.Equal(t, "Amy", receipt.DisplayName)
	assert.Equal(t, 299, receipt.Amount)
	assert.Equal(t, 14, receipt.PaidAt.Hour())

	pro, _ := models.PlanFor(models.TierPro)
	assert.Equal(t, pro.Name, receipt.PlanName)
}

func TestSendReceiptFailureRetries(t *testing.T) {
	jobs := &fakeJobs{}
	store := newFakeStore(models.Account{ID: "abcdefghijkl", Email: "amy@example.com"})
	w := NewWorker(jobs, store, &fakeMailer{err: errors.New("smtp down")})

	w.handle(queue.NewJob(queue.JobTypeSendReceipt, map[string]interface{}{
		"account_id": "abcdefghijkl",
		"tier":       "pro",
		"amount":     299,
	}))

	require.Len(t, jobs.failed, 1)
	assert.Equal(t, 0, jobs.failed[0].RetryCount)
}

func TestUnknownJobTypeIsParked(t *testing.T) {
	jobs := &fakeJobs{}
	w := NewWorker(jobs, newFakeStore(), nil)

	w.handle(queue.NewJob("mystery", nil))

	require.Len(t, jobs.failed, 1)
	assert.Equal(t, queue.MaxRetries, jobs.failed[0].RetryCount)
}
