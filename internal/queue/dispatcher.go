// Package queue serializes work per conversation. Each conversation gets a
// dedicated FIFO worker so jobs for the same chat never interleave, while
// different conversations proceed in parallel. Workers apply a sliding rate
// window, retry transient failures with exponential backoff, and keep a
// bounded record of jobs that exhausted their retries.
package queue

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/time/rate"

	"github.com/amberlynx/amberlynx/internal/schema"
)

// jobBuffer bounds each worker's pending channel. Enqueue blocks once a
// single conversation has this many jobs waiting.
const jobBuffer = 64

// baseBackoff is the first retry delay; it doubles per attempt.
const baseBackoff = time.Second

// JobFunc is the work executed for one enqueued job. attempt starts at 1
// and increments on each retry, so handlers can keep side effects (like
// appending the user turn to history) to the first attempt only.
type JobFunc func(ctx context.Context, attempt int) error

// FailureHandler is invoked after a job exhausts its retries (or fails
// with a non-retryable error). It runs on the worker goroutine.
type FailureHandler func(conversationID string, err error)

// FailedJob records a job that was given up on.
type FailedJob struct {
	ID             string
	ConversationID string
	Attempts       int
	Err            string
	FailedAt       time.Time
}

// Config tunes the dispatcher.
type Config struct {
	RetryAttempts int // total attempts per job, including the first
	JobsPerWindow int // jobs allowed per rate window per conversation
	WindowSeconds int // rate window length
	KeepFailed    int // failed-job records retained
}

type job struct {
	id      string
	convID  string
	run     JobFunc
	created time.Time
}

// Dispatcher owns the per-conversation workers.
type Dispatcher struct {
	cfg       Config
	onFailure FailureHandler

	mu      sync.Mutex
	workers map[string]chan *job
	failed  []FailedJob
	closed  bool

	closedCh chan struct{}
	wg       sync.WaitGroup
}

// NewDispatcher creates a Dispatcher. Zero or negative config fields fall
// back to sane minimums.
func NewDispatcher(cfg Config) *Dispatcher {
	if cfg.RetryAttempts < 1 {
		cfg.RetryAttempts = 1
	}
	if cfg.JobsPerWindow < 1 {
		cfg.JobsPerWindow = 1
	}
	if cfg.WindowSeconds < 1 {
		cfg.WindowSeconds = 1
	}

	return &Dispatcher{
		cfg:      cfg,
		workers:  make(map[string]chan *job),
		closedCh: make(chan struct{}),
	}
}

// OnFailure registers the handler called when a job is given up on.
// Must be called before the first Enqueue.
func (d *Dispatcher) OnFailure(h FailureHandler) {
	d.onFailure = h
}

// Enqueue adds a job to the conversation's FIFO and returns its id. Jobs
// for the same conversation run strictly in submission order.
func (d *Dispatcher) Enqueue(conversationID string, run JobFunc) (string, error) {
	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		return "", errors.New("dispatcher closed")
	}

	ch, ok := d.workers[conversationID]
	if !ok {
		ch = make(chan *job, jobBuffer)
		d.workers[conversationID] = ch
		d.wg.Add(1)
		go d.work(conversationID, ch)
	}
	d.mu.Unlock()

	j := &job{
		id:      uuid.NewString(),
		convID:  conversationID,
		run:     run,
		created: time.Now(),
	}

	select {
	case ch <- j:
		return j.id, nil
	case <-d.closedCh:
		return "", errors.New("dispatcher closed")
	}
}

// FailedJobs returns a copy of the retained failure records, oldest first.
func (d *Dispatcher) FailedJobs() []FailedJob {
	d.mu.Lock()
	defer d.mu.Unlock()

	out := make([]FailedJob, len(d.failed))
	copy(out, d.failed)

	return out
}

// Close stops accepting new jobs, lets queued and in-flight jobs finish,
// and waits for every worker to exit. Jobs sleeping in a retry backoff are
// given up on immediately.
func (d *Dispatcher) Close() {
	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		return
	}
	d.closed = true
	// Workers are signalled through closedCh rather than by closing their
	// channels, so an Enqueue racing with Close can never send on a closed
	// channel.
	close(d.closedCh)
	d.mu.Unlock()

	d.wg.Wait()
}

func (d *Dispatcher) work(conversationID string, ch chan *job) {
	defer d.wg.Done()

	window := time.Duration(d.cfg.WindowSeconds) * time.Second
	limiter := rate.NewLimiter(
		rate.Limit(float64(d.cfg.JobsPerWindow)/window.Seconds()),
		d.cfg.JobsPerWindow,
	)

	for {
		select {
		case j := <-ch:
			if err := limiter.Wait(context.Background()); err != nil {
				slog.Warn("rate wait aborted", "conversation", conversationID, "error", err)
			}
			d.process(j)
		case <-d.closedCh:
			// Drain what was queued before shutdown, then exit.
			for {
				select {
				case j := <-ch:
					d.process(j)
				default:
					return
				}
			}
		}
	}
}

// process runs a job through its retry budget.
func (d *Dispatcher) process(j *job) {
	var err error

	for attempt := 1; attempt <= d.cfg.RetryAttempts; attempt++ {
		err = j.run(context.Background(), attempt)
		if err == nil {
			return
		}
		if !retryable(err) {
			break
		}
		if attempt == d.cfg.RetryAttempts {
			break
		}

		delay := baseBackoff << (attempt - 1)
		slog.Warn("job failed, retrying",
			"job", j.id, "conversation", j.convID,
			"attempt", attempt, "delay", delay, "error", err)

		select {
		case <-time.After(delay):
		case <-d.closedCh:
			d.giveUp(j, fmt.Errorf("shutdown during retry: %w", err))
			return
		}
	}

	d.giveUp(j, err)
}

func (d *Dispatcher) giveUp(j *job, err error) {
	slog.Error("job failed permanently", "job", j.id, "conversation", j.convID, "error", err)

	d.mu.Lock()
	d.failed = append(d.failed, FailedJob{
		ID:             j.id,
		ConversationID: j.convID,
		Attempts:       d.cfg.RetryAttempts,
		Err:            err.Error(),
		FailedAt:       time.Now(),
	})
	if d.cfg.KeepFailed > 0 && len(d.failed) > d.cfg.KeepFailed {
		d.failed = d.failed[len(d.failed)-d.cfg.KeepFailed:]
	}
	d.mu.Unlock()

	if d.onFailure != nil {
		d.onFailure(j.convID, err)
	}
}

// retryable reports whether a failure is worth another attempt. Validation
// problems and rate refusals never are; collaborator hiccups always are.
func retryable(err error) bool {
	if errors.Is(err, schema.ErrValidation) || errors.Is(err, schema.ErrRateExceeded) {
		return false
	}

	return true
}
