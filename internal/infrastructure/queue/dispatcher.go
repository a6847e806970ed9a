package queue

import (
	"context"
	"hash/fnv"
	"strconv"
	"sync"

	"github.com/rs/zerolog"

	"github.com/healthtracker/portal/internal/core/ports"
	"github.com/healthtracker/portal/internal/pkg/metrics"
)

const (
	defaultWorkers = 4
	channelBuffer  = 256
)

// AttemptDispatcher writes login attempts off the request path. Attempts
// for the same email always land on the same worker, so they are stored
// in the order they happened.
type AttemptDispatcher struct {
	workers []chan ports.LoginAttempt
	repo    ports.LoginAttemptRepository
	log     zerolog.Logger
	wg      sync.WaitGroup
}

// NewAttemptDispatcher creates numWorkers sharded workers; defaultWorkers if <= 0.
func NewAttemptDispatcher(numWorkers int, repo ports.LoginAttemptRepository, log zerolog.Logger) *AttemptDispatcher {
	if numWorkers <= 0 {
		numWorkers = defaultWorkers
	}
	d := &AttemptDispatcher{
		workers: make([]chan ports.LoginAttempt, numWorkers),
		repo:    repo,
		log:     log,
	}
	for i := range d.workers {
		d.workers[i] = make(chan ports.LoginAttempt, channelBuffer)
	}
	return d
}

// Start launches the workers. They drain what is queued and stop when ctx is cancelled.
func (d *AttemptDispatcher) Start(ctx context.Context) {
	for i, ch := range d.workers {
		d.wg.Add(1)
		go d.runWorker(ctx, i, ch)
	}
}

// Wait blocks until every worker has returned.
func (d *AttemptDispatcher) Wait() {
	d.wg.Wait()
}

// Record never blocks. When a worker's buffer is full the attempt is dropped.
func (d *AttemptDispatcher) Record(a ports.LoginAttempt) {
	idx := d.shardIndex(a.Email)
	select {
	case d.workers[idx] <- a:
		metrics.LoginAttemptsQueueDepth.WithLabelValues(strconv.Itoa(idx)).Set(float64(len(d.workers[idx])))
	default:
		d.log.Warn().Str("action", a.Action).Int("worker_id", idx).Msg("login attempt dropped, queue full")
	}
}

func (d *AttemptDispatcher) shardIndex(email string) int {
	h := fnv.New32a()
	_, _ = h.Write([]byte(email))
	return int(h.Sum32() % uint32(len(d.workers)))
}

func (d *AttemptDispatcher) runWorker(ctx context.Context, id int, ch <-chan ports.LoginAttempt) {
	defer d.wg.Done()
	label := strconv.Itoa(id)
	for {
		select {
		case <-ctx.Done():
			d.drain(id, ch)
			return
		case a := <-ch:
			d.store(ctx, id, a)
			metrics.LoginAttemptsQueueDepth.WithLabelValues(label).Set(float64(len(ch)))
		}
	}
}

// drain flushes what is still buffered with a fresh context.
func (d *AttemptDispatcher) drain(id int, ch <-chan ports.LoginAttempt) {
	for {
		select {
		case a := <-ch:
			d.store(context.Background(), id, a)
		default:
			return
		}
	}
}

func (d *AttemptDispatcher) store(ctx context.Context, id int, a ports.LoginAttempt) {
	if err := d.repo.Insert(ctx, a); err != nil {
		d.log.Error().Err(err).
			Str("action", a.Action).
			Int("worker_id", id).
			Msg("login attempt not stored")
	}
}
