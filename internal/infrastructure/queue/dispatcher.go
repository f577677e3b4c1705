package queue

import (
	"context"
	"hash/fnv"
	"strconv"

	"github.com/rs/zerolog"

	"github.com/fxdesk/trader-portal/internal/api/metrics"
	"github.com/fxdesk/trader-portal/internal/core/ports"
)

const (
	defaultWorkers = 4
	channelBuffer  = 128
)

// Dispatcher routes repair jobs to a fixed set of workers using consistent
// hashing on the user id, so repairs for the same user never interleave.
type Dispatcher struct {
	workers []chan string
	service ports.EnrollmentService
	log     zerolog.Logger
}

// NewDispatcher creates a Dispatcher with numWorkers sharded workers.
// If numWorkers <= 0, defaultWorkers is used.
func NewDispatcher(numWorkers int, service ports.EnrollmentService, log zerolog.Logger) *Dispatcher {
	if numWorkers <= 0 {
		numWorkers = defaultWorkers
	}
	d := &Dispatcher{
		workers: make([]chan string, numWorkers),
		service: service,
		log:     log,
	}
	for i := range d.workers {
		d.workers[i] = make(chan string, channelBuffer)
	}
	return d
}

// Start launches all worker goroutines. Workers stop when ctx is cancelled.
func (d *Dispatcher) Start(ctx context.Context) {
	for i, ch := range d.workers {
		go d.runWorker(ctx, i, ch)
	}
}

// Enqueue schedules an opportunistic repair for the user. Non-blocking: if
// the shard's buffer is full the job is dropped, because login and
// registration will enqueue it again.
func (d *Dispatcher) Enqueue(userID string) {
	idx := d.shardIndex(userID)
	select {
	case d.workers[idx] <- userID:
		metrics.RepairQueueDepth.WithLabelValues(strconv.Itoa(idx)).Inc()
	default:
		d.log.Warn().Str("user_id", userID).Int("worker_id", idx).Msg("repair queue full, job dropped")
	}
}

// shardIndex maps a user id deterministically to a worker index.
func (d *Dispatcher) shardIndex(userID string) int {
	h := fnv.New32a()
	_, _ = h.Write([]byte(userID))
	return int(h.Sum32()) % len(d.workers)
}

func (d *Dispatcher) runWorker(ctx context.Context, id int, ch <-chan string) {
	worker := strconv.Itoa(id)
	for {
		select {
		case <-ctx.Done():
			return
		case userID, ok := <-ch:
			if !ok {
				return
			}
			metrics.RepairQueueDepth.WithLabelValues(worker).Dec()
			if _, err := d.service.Repair(ctx, userID); err != nil {
				metrics.ReconcileRunsTotal.WithLabelValues("queue", "error").Inc()
				d.log.Error().Err(err).
					Str("user_id", userID).
					Int("worker_id", id).
					Msg("background repair failed")
				continue
			}
			metrics.ReconcileRunsTotal.WithLabelValues("queue", "ok").Inc()
		}
	}
}
