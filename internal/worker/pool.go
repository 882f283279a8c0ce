package worker

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
)

const (
	QueueTicket = "jobs:ticket"
	QueueCierre = "jobs:cierre"

	// maxIntentos bounds withRetry before a job is parked in the DLQ.
	maxIntentos = 3
)

var backoffBase = time.Second

// pausaRedis is how long a worker waits before polling again after Redis fails.
var pausaRedis = 2 * time.Second

// Job is the generic envelope for all async tasks.
type Job struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

// Handler processes the payload of one job type. A returned error is retried.
type Handler func(ctx context.Context, payload json.RawMessage) error

// Handlers maps a job type to its handler.
type Handlers map[string]Handler

// Dispatcher enqueues async jobs into Redis lists.
// The worker pool dequeues them via BRPOP.
type Dispatcher struct {
	rdb *redis.Client
}

func NewDispatcher(rdb *redis.Client) *Dispatcher {
	return &Dispatcher{rdb: rdb}
}

// EnqueueTicket schedules the receipt PDF of a committed sale.
func (d *Dispatcher) EnqueueTicket(ctx context.Context, ventaID uuid.UUID) error {
	return d.enqueue(ctx, QueueTicket, JobTicket, TicketJobPayload{VentaID: ventaID.String()})
}

// EnqueueCierre schedules the closing report (PDF plus optional e-mail).
func (d *Dispatcher) EnqueueCierre(ctx context.Context, cierreID uuid.UUID) error {
	return d.enqueue(ctx, QueueCierre, JobCierre, CierreJobPayload{CierreID: cierreID.String()})
}

func (d *Dispatcher) enqueue(ctx context.Context, queue, jobType string, payload interface{}) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	encoded, err := json.Marshal(Job{Type: jobType, Payload: data})
	if err != nil {
		return err
	}
	return d.rdb.LPush(ctx, queue, encoded).Err()
}

// StartWorkerPool launches numWorkers goroutines consuming both queues.
// Each goroutine blocks on BRPOP, zero CPU when idle.
func StartWorkerPool(ctx context.Context, rdb *redis.Client, numWorkers int, handlers Handlers) {
	for i := 0; i < numWorkers; i++ {
		go runWorker(ctx, rdb, i, handlers)
	}
	log.Info().Msgf("worker pool started with %d workers", numWorkers)
}

func runWorker(ctx context.Context, rdb *redis.Client, id int, handlers Handlers) {
	queues := []string{QueueCierre, QueueTicket}
	for {
		select {
		case <-ctx.Done():
			log.Info().Msgf("worker %d shutting down", id)
			return
		default:
			// Blocking pop, waits up to 5s then loops to check ctx
			result, err := rdb.BRPop(ctx, 5*time.Second, queues...).Result()
			if err != nil {
				if !esperarTrasError(ctx, id, err) {
					log.Info().Msgf("worker %d shutting down", id)
					return
				}
				continue
			}
			if len(result) < 2 {
				continue
			}
			job, err := processJob(ctx, result[0], result[1], handlers)
			if err != nil && ctx.Err() == nil {
				SendToDLQ(ctx, rdb, result[0], job.Type, job.Payload, err.Error(), maxIntentos)
			}
		}
	}
}

// esperarTrasError decides what follows a failed BRPOP. redis.Nil is the
// normal empty-queue timeout and loops at once; any other error means Redis is
// unreachable, so the worker pauses before polling again. Returns false when
// ctx is done.
func esperarTrasError(ctx context.Context, id int, err error) bool {
	if errors.Is(err, redis.Nil) {
		return true
	}
	if ctx.Err() != nil {
		return false
	}
	log.Warn().Err(err).Int("worker", id).Dur("pausa", pausaRedis).Msg("worker: redis unavailable")
	select {
	case <-ctx.Done():
		return false
	case <-time.After(pausaRedis):
		return true
	}
}

// processJob decodes the envelope and runs its handler with retries. The
// decoded job is returned so the caller can park it on failure.
func processJob(ctx context.Context, queue, raw string, handlers Handlers) (Job, error) {
	var job Job
	if err := json.Unmarshal([]byte(raw), &job); err != nil {
		log.Error().Str("queue", queue).Err(err).Msg("failed to unmarshal job")
		return Job{Type: "desconocido", Payload: json.RawMessage(fmt.Sprintf("%q", raw))}, fmt.Errorf("envelope invalido: %w", err)
	}
	h, ok := handlers[job.Type]
	if !ok {
		log.Error().Str("type", job.Type).Str("queue", queue).Msg("no handler for job type")
		return job, fmt.Errorf("tipo de job sin handler: %s", job.Type)
	}

	err := withRetry(ctx, maxIntentos, func(attempt int) error {
		if err := h(ctx, job.Payload); err != nil {
			log.Warn().
				Err(err).
				Int("attempt", attempt+1).
				Str("type", job.Type).
				Msg("job attempt failed")
			return err
		}
		return nil
	})
	if err != nil {
		return job, err
	}
	log.Info().Str("type", job.Type).Str("queue", queue).Msg("job processed")
	return job, nil
}

// withRetry calls fn up to maxAttempts times with exponential backoff.
// Backoff schedule: attempt 1 = immediate, 2 = 1s, 3 = 2s.
// Returns nil if any attempt succeeds; last error otherwise.
func withRetry(ctx context.Context, maxAttempts int, fn func(attempt int) error) error {
	var lastErr error
	for i := 0; i < maxAttempts; i++ {
		if i > 0 {
			wait := time.Duration(1<<uint(i-1)) * backoffBase
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(wait):
			}
		}
		if err := fn(i); err != nil {
			lastErr = err
			continue
		}
		return nil
	}
	return lastErr
}
