package worker

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"house-alert-api/models"
	"house-alert-api/queue"
	"house-alert-api/services/ecpay"
	"house-alert-api/services/email"
	"house-alert-api/utils"
)

const (
	DelayedJobSchedule = "@every 15s"

	dequeueTimeout = 5 * time.Second
	jobTimeout     = 30 * time.Second
)

type JobSource interface {
	Enqueue(ctx context.Context, jobType queue.JobType, data map[string]interface{}) (*queue.Job, error)
	Dequeue(ctx context.Context, timeout time.Duration) (*queue.Job, error)
	CompleteJob(ctx context.Context, job *queue.Job) error
	FailJob(ctx context.Context, job *queue.Job, err error) error
	ProcessDelayedJobs(ctx context.Context) error
	RecoverProcessing(ctx context.Context) (int, error)
}

type SubscriptionStore interface {
	GetAccount(ctx context.Context, id string) (*models.Account, error)
	FindAccountsByIDPrefix(ctx context.Context, prefix string) ([]models.Account, error)
	ApplyPayment(ctx context.Context, payment models.Payment, plan models.Plan) (bool, error)
}

// permanentError marks a job that retrying cannot fix.
type permanentError struct {
	err error
}

func (e *permanentError) Error() string { return e.err.Error() }
func (e *permanentError) Unwrap() error { return e.err }

func permanent(format string, args ...interface{}) error {
	return &permanentError{err: fmt.Errorf(format, args...)}
}

// Worker applies confirmed payments and sends receipts in the background.
type Worker struct {
	jobs     JobSource
	store    SubscriptionStore
	mailer   email.Sender
	cron     *cron.Cron
	shutdown chan struct{}
	wg       sync.WaitGroup
	mu       sync.Mutex
	running  bool
	now      func() time.Time
}

// NewWorker creates a worker. mailer may be nil, in which case receipts
// are skipped.
func NewWorker(jobs JobSource, store SubscriptionStore, mailer email.Sender) *Worker {
	return &Worker{
		jobs:     jobs,
		store:    store,
		mailer:   mailer,
		shutdown: make(chan struct{}),
		now:      time.Now,
	}
}

// Start requeues jobs left claimed by a previous run, then launches
// concurrency job loops and the retry scheduler.
func (w *Worker) Start(concurrency int) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.running {
		return nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	if _, err := w.jobs.RecoverProcessing(ctx); err != nil {
		log.Printf("Error recovering unfinished jobs: %v", err)
	}
	cancel()

	w.cron = cron.New(cron.WithChain(cron.Recover(cron.DefaultLogger)))
	if _, err := w.cron.AddFunc(DelayedJobSchedule, w.promoteDelayedJobs); err != nil {
		return fmt.Errorf("failed to schedule delayed job promotion: %w", err)
	}
	w.cron.Start()

	if concurrency < 1 {
		concurrency = 1
	}
	for i := 0; i < concurrency; i++ {
		w.wg.Add(1)
		go w.processJobs(i)
	}
	w.running = true

	log.Printf("Started %d worker goroutines", concurrency)
	return nil
}

// Stop signals the job loops and waits for in-flight jobs to finish.
func (w *Worker) Stop() {
	w.mu.Lock()
	if !w.running {
		w.mu.Unlock()
		return
	}
	w.running = false
	w.mu.Unlock()

	log.Println("Stopping worker...")
	close(w.shutdown)
	<-w.cron.Stop().Done()
	w.wg.Wait()
	log.Println("Worker stopped")
}

func (w *Worker) promoteDelayedJobs() {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := w.jobs.ProcessDelayedJobs(ctx); err != nil {
		log.Printf("Error promoting delayed jobs: %v", err)
	}
}

func (w *Worker) processJobs(workerID int) {
	defer w.wg.Done()
	log.Printf("Worker %d starting", workerID)

	for {
		select {
		case <-w.shutdown:
			log.Printf("Worker %d shutting down", workerID)
			return
		default:
		}

		ctx, cancel := context.WithTimeout(context.Background(), dequeueTimeout+time.Second)
		job, err := w.jobs.Dequeue(ctx, dequeueTimeout)
		cancel()

		if err != nil {
			log.Printf("Worker %d: Error dequeuing job: %v", workerID, err)
			time.Sleep(time.Second)
			continue
		}
		if job == nil {
			continue
		}

		log.Printf("Worker %d processing job %s of type %s", workerID, job.ID, job.Type)
		w.handle(job)
	}
}

// handle runs one job and settles it on the queue.
func (w *Worker) handle(job *queue.Job) {
	ctx, cancel := context.WithTimeout(context.Background(), jobTimeout)
	jobErr := w.processJob(ctx, job)
	cancel()

	settleCtx, settleCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer settleCancel()

	if jobErr == nil {
		if err := w.jobs.CompleteJob(settleCtx, job); err != nil {
			log.Printf("Error marking job %s as complete: %v", job.ID, err)
		}
		return
	}

	log.Printf("Error processing job %s: %v", job.ID, jobErr)

	var perm *permanentError
	if errors.As(jobErr, &perm) {
		job.RetryCount = queue.MaxRetries
	}
	if err := w.jobs.FailJob(settleCtx, job, jobErr); err != nil {
		log.Printf("Error marking job %s as failed: %v", job.ID, err)
	}
}

func (w *Worker) processJob(ctx context.Context, job *queue.Job) error {
	switch job.Type {
	case queue.JobTypeApplySubscription:
		return w.processApplySubscription(ctx, job)
	case queue.JobTypeSendReceipt:
		return w.processSendReceipt(ctx, job)
	default:
		return permanent("unknown job type: %s", job.Type)
	}
}

// SubscriptionJobData is the payload of an apply_subscription job.
func SubscriptionJobData(n *ecpay.Notification) map[string]interface{} {
	data := map[string]interface{}{
		"merchant_trade_no": n.MerchantTradeNo,
		"trade_no":          n.TradeNo,
		"amount":            n.TradeAmt,
	}
	if !n.PaymentDate.IsZero() {
		data["paid_at"] = n.PaymentDate.Format(time.RFC3339)
	}
	return data
}

func (w *Worker) processApplySubscription(ctx context.Context, job *queue.Job) error {
	merchantTradeNo := job.String("merchant_trade_no")
	if merchantTradeNo == "" {
		return permanent("invalid merchant_trade_no in job data")
	}

	amount, err := job.Int("amount")
	if err != nil {
		return permanent("invalid amount in job data: %v", err)
	}

	plan, ok := models.PlanByPrice(amount)
	if !ok {
		return permanent("no plan is priced at %d", amount)
	}

	fragment, ok := ecpay.AccountFragment(merchantTradeNo)
	if !ok {
		return permanent("merchant trade number %s carries no account", merchantTradeNo)
	}

	accounts, err := w.store.FindAccountsByIDPrefix(ctx, fragment)
	if err != nil {
		return fmt.Errorf("failed to look up account: %w", err)
	}
	if len(accounts) != 1 {
		return permanent("merchant trade number %s matches %d accounts", merchantTradeNo, len(accounts))
	}
	account := accounts[0]

	paidAt := w.now().UTC()
	if raw := job.String("paid_at"); raw != "" {
		if t, err := time.Parse(time.RFC3339, raw); err == nil {
			paidAt = t
		}
	}

	payment := models.Payment{
		MerchantTradeNo: merchantTradeNo,
		TradeNo:         job.String("trade_no"),
		AccountID:       account.ID,
		Tier:            plan.ID,
		Amount:          amount,
		PaidAt:          paidAt,
	}

	applied, err := w.store.ApplyPayment(ctx, payment, plan)
	if err != nil {
		return fmt.Errorf("failed to apply payment: %w", err)
	}
	if !applied {
		log.Printf("Payment %s already applied, skipping", merchantTradeNo)
		return nil
	}

	log.Printf("Account %s upgraded to %s by payment %s", utils.MaskID(account.ID), plan.ID, merchantTradeNo)

	if _, err := w.jobs.Enqueue(ctx, queue.JobTypeSendReceipt, map[string]interface{}{
		"account_id":        account.ID,
		"merchant_trade_no": merchantTradeNo,
		"tier":              string(plan.ID),
		"amount":            amount,
		"paid_at":           paidAt.Format(time.RFC3339),
	}); err != nil {
		log.Printf("Warning: failed to enqueue receipt for %s: %v", merchantTradeNo, err)
	}
	return nil
}

func (w *Worker) processSendReceipt(ctx context.Context, job *queue.Job) error {
	if w.mailer == nil {
		log.Printf("No email sender configured, skipping receipt for %s", job.String("merchant_trade_no"))
		return nil
	}

	account, err := w.store.GetAccount(ctx, job.String("account_id"))
	if err != nil {
		return fmt.Errorf("failed to load account for receipt: %w", err)
	}

	tier, ok := models.ParseTier(job.String("tier"))
	if !ok {
		return permanent("invalid tier %q in job data", job.String("tier"))
	}
	plan, _ := models.PlanFor(tier)

	amount, err := job.Int("amount")
	if err != nil {
		return permanent("invalid amount in job data: %v", err)
	}

	paidAt, err := time.Parse(time.RFC3339, job.String("paid_at"))
	if err != nil {
		paidAt = w.now()
	}

	receipt := email.Receipt{
		DisplayName:     account.DisplayName,
		PlanName:        plan.Name,
		Amount:          amount,
		MerchantTradeNo: job.String("merchant_trade_no"),
		PaidAt:          ecpay.InTaipei(paidAt),
	}

	if err := w.mailer.SendReceipt(account.Email, receipt); err != nil {
		return fmt.Errorf("failed to send receipt: %w", err)
	}

	log.Printf("Receipt for %s sent to %s", receipt.MerchantTradeNo, utils.MaskEmail(account.Email))
	return nil
}
