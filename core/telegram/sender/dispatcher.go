// Package sender runs outbound Telegram calls off the update path.
//
// Jobs are sharded by chat: every job of one chat lands on the same worker, so the
// messages of a reply arrive in order. A job is a sequence of steps; a failed step is
// retried and the job resumes there, steps already delivered are never repeated.
package sender

import (
	"context"
	"crypto/rand"
	"errors"
	"io"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/m3rciful/keybot/core/logger"
)

var (
	// ErrQueueClosed is returned when enqueue is attempted after dispatcher stop.
	ErrQueueClosed = errors.New("telegram sender: queue closed")
	// ErrQueueFull indicates the shard queue is saturated and the job was not accepted.
	ErrQueueFull = errors.New("telegram sender: queue full")
)

// Options controls the behaviour of the outbound dispatcher.
type Options struct {
	// QueueSize is the capacity of each shard queue.
	QueueSize int
	// Workers is the number of shards.
	Workers      int
	MaxRetries   int
	RetryBackoff time.Duration
	// MaxDuration bounds the time spent on a single job, retries included.
	MaxDuration time.Duration
	// Retryable decides whether a failed step is attempted again.
	Retryable func(error) bool
}

// Step is one outbound call of a job.
type Step struct {
	Endpoint string
	Run      func() error
}

// Job is an ordered batch of steps addressed to one chat.
type Job struct {
	ID     ulid.ULID
	ChatID int64
	Action string
	Steps  []Step

	ctx context.Context
}

// Report is the result of running a job.
type Report struct {
	Sent     int
	Attempts int
	Err      error
}

// Dispatcher executes jobs asynchronously with retries.
type Dispatcher struct {
	opts   Options
	shards []chan Job
	// mu guards closing the shards against concurrent sends.
	mu     sync.RWMutex
	closed bool
	once   sync.Once
	wg     sync.WaitGroup
	errs   atomic.Uint64

	idMu    sync.Mutex
	entropy io.Reader
}

// NewDispatcher starts a dispatcher with sane defaults if options are zeroed.
func NewDispatcher(opts Options) *Dispatcher {
	if opts.QueueSize <= 0 {
		opts.QueueSize = 64
	}
	if opts.Workers <= 0 {
		opts.Workers = 4
	}
	if opts.MaxRetries < 0 {
		opts.MaxRetries = 0
	}
	if opts.RetryBackoff <= 0 {
		opts.RetryBackoff = 2 * time.Second
	}
	if opts.MaxDuration <= 0 {
		opts.MaxDuration = 30 * time.Second
	}
	if opts.Retryable == nil {
		opts.Retryable = Retryable
	}

	d := &Dispatcher{
		opts:    opts,
		shards:  make([]chan Job, opts.Workers),
		entropy: ulid.Monotonic(rand.Reader, 0),
	}
	d.wg.Add(opts.Workers)
	for i := range d.shards {
		d.shards[i] = make(chan Job, opts.QueueSize)
		go d.worker(d.shards[i])
	}
	return d
}

// NewJob assigns a fresh, time ordered id to a job for chatID.
func (d *Dispatcher) NewJob(chatID int64, action string, steps ...Step) Job {
	d.idMu.Lock()
	id := ulid.MustNew(ulid.Timestamp(time.Now()), d.entropy)
	d.idMu.Unlock()
	return Job{ID: id, ChatID: chatID, Action: action, Steps: steps}
}

// Enqueue schedules j on its chat's shard. It never blocks.
func (d *Dispatcher) Enqueue(ctx context.Context, j Job) error {
	if len(j.Steps) == 0 {
		return nil
	}
	for _, st := range j.Steps {
		if st.Run == nil {
			return errors.New("telegram sender: nil step")
		}
	}
	j.ctx = ctx

	d.mu.RLock()
	defer d.mu.RUnlock()
	if d.closed {
		return ErrQueueClosed
	}
	select {
	case d.shardFor(j.ChatID) <- j:
		return nil
	default:
		return ErrQueueFull
	}
}

// Run executes j on the calling goroutine with the same retry policy as queued jobs.
func (d *Dispatcher) Run(ctx context.Context, j Job) Report {
	j.ctx = ctx
	return d.handleJob(j)
}

// ErrorCount returns the number of failed jobs.
func (d *Dispatcher) ErrorCount() uint64 {
	return d.errs.Load()
}

// Close stops accepting jobs and waits for the queued ones to finish.
func (d *Dispatcher) Close() {
	d.once.Do(func() {
		d.mu.Lock()
		d.closed = true
		for _, ch := range d.shards {
			close(ch)
		}
		d.mu.Unlock()
		d.wg.Wait()
	})
}

func (d *Dispatcher) shardFor(chatID int64) chan Job {
	n := uint64(chatID) % uint64(len(d.shards))
	return d.shards[n]
}

func (d *Dispatcher) worker(jobs <-chan Job) {
	defer d.wg.Done()
	for j := range jobs {
		d.handleJob(j)
	}
}

func (d *Dispatcher) handleJob(j Job) Report {
	ctx := j.ctx
	if ctx == nil {
		ctx = context.Background()
	}
	// the update that produced the job may already be finished
	deadlineCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), d.opts.MaxDuration)
	defer cancel()

	start := time.Now()
	logger.Debug(ctx, logger.CompSender, "send.start", jobAttrs(j)...)

	var rep Report
	retries := 0
	for rep.Sent < len(j.Steps) {
		if err := deadlineCtx.Err(); err != nil {
			rep.Err = err
			break
		}
		step := j.Steps[rep.Sent]
		rep.Attempts++
		err := step.Run()
		if err == nil {
			rep.Sent++
			continue
		}
		rep.Err = err
		if !d.opts.Retryable(err) || retries >= d.opts.MaxRetries {
			break
		}
		retries++

		delay := d.opts.RetryBackoff * time.Duration(retries)
		timer := time.NewTimer(delay)
		select {
		case <-deadlineCtx.Done():
			timer.Stop()
			rep.Err = deadlineCtx.Err()
		case <-timer.C:
		}
		if deadlineCtx.Err() != nil {
			break
		}
		logger.Debug(ctx, logger.CompSender, "send.retry.backoff",
			append(jobAttrs(j),
				slog.String("endpoint", step.Endpoint),
				slog.Int("sent", rep.Sent),
				slog.Int("attempt", retries),
				slog.Duration("delay", delay),
			)...,
		)
		rep.Err = nil
	}

	elapsed := logger.RoundMS(time.Since(start))
	if rep.Sent == len(j.Steps) {
		rep.Err = nil
		level := logger.Debug
		if retries > 0 {
			level = logger.Info
		}
		level(ctx, logger.CompSender, "send.success",
			append(jobAttrs(j),
				slog.Int("attempts", rep.Attempts),
				slog.Duration("duration", elapsed),
			)...,
		)
		return rep
	}

	d.errs.Add(1)
	attrs := append(jobAttrs(j),
		slog.String("status", "fail"),
		slog.Int("sent", rep.Sent),
		slog.Int("pending", len(j.Steps)-rep.Sent),
		slog.String("endpoint", j.Steps[rep.Sent].Endpoint),
		slog.String("err", sanitizeErrorMessage(rep.Err)),
		slog.String("error_kind", classifyError(rep.Err)),
		slog.Int("attempts", rep.Attempts),
		slog.Duration("duration", elapsed),
	)
	logger.Error(ctx, logger.CompSender, "send.fail", attrs...)
	return rep
}

func jobAttrs(j Job) []slog.Attr {
	return []slog.Attr{
		slog.String("job", j.ID.String()),
		slog.String("action", j.Action),
		slog.Int("steps", len(j.Steps)),
	}
}
