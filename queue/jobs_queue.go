package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"strconv"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/google/uuid"
)

type JobType string

const (
	JobTypeApplySubscription JobType = "apply_subscription"
	JobTypeSendReceipt       JobType = "send_receipt"
)

const MaxRetries = 5

type Job struct {
	ID         string                 `json:"id"`
	Type       JobType                `json:"type"`
	Data       map[string]interface{} `json:"data"`
	CreatedAt  time.Time              `json:"created_at"`
	RetryCount int                    `json:"retry_count"`

	// raw is the payload as stored in Redis, needed to remove it from
	// the processing list after Data has been mutated.
	raw string
}

func NewJob(jobType JobType, data map[string]interface{}) *Job {
	if data == nil {
		data = map[string]interface{}{}
	}
	return &Job{
		ID:        uuid.NewString(),
		Type:      jobType,
		Data:      data,
		CreatedAt: time.Now().UTC(),
	}
}

// String returns the string stored under key, or "" if absent.
func (j *Job) String(key string) string {
	switch v := j.Data[key].(type) {
	case string:
		return v
	case nil:
		return ""
	default:
		return fmt.Sprint(v)
	}
}

// Int returns the integer stored under key. JSON round trips turn
// numbers into float64, so both forms and numeric strings are accepted.
func (j *Job) Int(key string) (int, error) {
	switch v := j.Data[key].(type) {
	case int:
		return v, nil
	case float64:
		return int(v), nil
	case string:
		return strconv.Atoi(v)
	default:
		return 0, fmt.Errorf("job %s has no integer %q", j.ID, key)
	}
}

// RetryDelay is the backoff before retry number n (1-based).
func RetryDelay(n int) time.Duration {
	if n < 1 {
		n = 1
	}
	return time.Duration(15*(1<<(n-1))) * time.Second
}

type Queue struct {
	client     *redis.Client
	queueName  string
	processing string
	delayed    string
	failed     string
}

func NewQueue(client *redis.Client, queueName string) *Queue {
	return &Queue{
		client:     client,
		queueName:  queueName,
		processing: queueName + ":processing",
		delayed:    queueName + ":delayed",
		failed:     queueName + ":failed",
	}
}

// NewRedisClient parses redisURL and verifies the server answers.
func NewRedisClient(redisURL string) (*redis.Client, error) {
	opt, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("invalid Redis URL: %w", err)
	}

	client := redis.NewClient(opt)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}
	return client, nil
}

func (q *Queue) Enqueue(ctx context.Context, jobType JobType, data map[string]interface{}) (*Job, error) {
	job := NewJob(jobType, data)

	jobJSON, err := json.Marshal(job)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal job: %w", err)
	}

	if err := q.client.RPush(ctx, q.queueName, jobJSON).Err(); err != nil {
		return nil, fmt.Errorf("failed to push job to queue: %w", err)
	}

	log.Printf("Enqueued job %s of type %s", job.ID, job.Type)
	return job, nil
}

// Dequeue atomically moves the next job onto the processing list, so a
// crash between claim and completion leaves it for RecoverProcessing.
func (q *Queue) Dequeue(ctx context.Context, timeout time.Duration) (*Job, error) {
	raw, err := q.client.BLMove(ctx, q.queueName, q.processing, "LEFT", "RIGHT", timeout).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get job from queue: %w", err)
	}

	var job Job
	if err := json.Unmarshal([]byte(raw), &job); err != nil {
		// Park undecodable payloads instead of losing them.
		if remErr := q.client.LRem(ctx, q.processing, 1, raw).Err(); remErr != nil {
			log.Printf("Warning: Failed to remove malformed job from processing queue: %v", remErr)
		}
		if pushErr := q.client.RPush(ctx, q.failed, raw).Err(); pushErr != nil {
			log.Printf("Warning: Failed to park malformed job: %v", pushErr)
		}
		return nil, fmt.Errorf("failed to unmarshal job: %w", err)
	}
	if job.Data == nil {
		job.Data = map[string]interface{}{}
	}
	job.raw = raw

	return &job, nil
}

// RecoverProcessing returns every claimed but unfinished job to the head
// of the queue, keeping their order. Call it before any worker starts
// dequeuing; it assumes no other consumer is live.
func (q *Queue) RecoverProcessing(ctx context.Context) (int, error) {
	recovered := 0
	for {
		err := q.client.LMove(ctx, q.processing, q.queueName, "RIGHT", "LEFT").Err()
		if errors.Is(err, redis.Nil) {
			break
		}
		if err != nil {
			return recovered, fmt.Errorf("failed to recover processing jobs: %w", err)
		}
		recovered++
	}

	if recovered > 0 {
		log.Printf("Recovered %d unfinished jobs onto %s", recovered, q.queueName)
	}
	return recovered, nil
}

func (q *Queue) CompleteJob(ctx context.Context, job *Job) error {
	if err := q.client.LRem(ctx, q.processing, 1, job.raw).Err(); err != nil {
		return fmt.Errorf("failed to remove job from processing queue: %w", err)
	}

	log.Printf("Completed job %s of type %s", job.ID, job.Type)
	return nil
}

// FailJob schedules a retry with exponential backoff, or parks the job
// on the failed list once MaxRetries is exceeded.
func (q *Queue) FailJob(ctx context.Context, job *Job, jobErr error) error {
	if err := q.client.LRem(ctx, q.processing, 1, job.raw).Err(); err != nil {
		log.Printf("Warning: Failed to remove job %s from processing queue: %v", job.ID, err)
	}

	job.RetryCount++
	job.Data["last_error"] = jobErr.Error()

	if job.RetryCount <= MaxRetries {
		delay := RetryDelay(job.RetryCount)
		retryAt := time.Now().Add(delay)

		jobJSON, err := json.Marshal(job)
		if err != nil {
			return fmt.Errorf("failed to marshal job: %w", err)
		}

		if err := q.client.ZAdd(ctx, q.delayed, &redis.Z{
			Score:  float64(retryAt.Unix()),
			Member: jobJSON,
		}).Err(); err != nil {
			log.Printf("Warning: Failed to add job to delayed queue, adding to failed queue: %v", err)
			if err := q.client.RPush(ctx, q.failed, jobJSON).Err(); err != nil {
				return fmt.Errorf("failed to push job to failed queue: %w", err)
			}
			return nil
		}

		log.Printf("Job %s of type %s scheduled for retry %d/%d in %s",
			job.ID, job.Type, job.RetryCount, MaxRetries, delay)
		return nil
	}

	job.Data["all_retries_exhausted"] = true
	jobJSON, err := json.Marshal(job)
	if err != nil {
		return fmt.Errorf("failed to marshal job: %w", err)
	}

	if err := q.client.RPush(ctx, q.failed, jobJSON).Err(); err != nil {
		return fmt.Errorf("failed to push job to failed queue: %w", err)
	}

	log.Printf("Job %s of type %s moved to failed queue after %d retries", job.ID, job.Type, job.RetryCount)
	return nil
}

// ProcessDelayedJobs moves every due retry back onto the main queue.
func (q *Queue) ProcessDelayedJobs(ctx context.Context) error {
	jobs, err := q.client.ZRangeByScore(ctx, q.delayed, &redis.ZRangeBy{
		Min: "0",
		Max: strconv.FormatInt(time.Now().Unix(), 10),
	}).Result()
	if err != nil {
		return fmt.Errorf("failed to get delayed jobs: %w", err)
	}

	for _, jobJSON := range jobs {
		// ZRem first so two schedulers cannot both promote the same job.
		removed, err := q.client.ZRem(ctx, q.delayed, jobJSON).Result()
		if err != nil {
			log.Printf("Warning: Failed to remove job from delayed queue: %v", err)
			continue
		}
		if removed == 0 {
			continue
		}

		if err := q.client.RPush(ctx, q.queueName, jobJSON).Err(); err != nil {
			log.Printf("Warning: Failed to move delayed job to main queue: %v", err)
			continue
		}
	}

	if len(jobs) > 0 {
		log.Printf("Moved %d delayed jobs to %s", len(jobs), q.queueName)
	}
	return nil
}

func (q *Queue) Client() *redis.Client {
	return q.client
}

func (q *Queue) Close() error {
	return q.client.Close()
}
