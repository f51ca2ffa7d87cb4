package worker

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/cuongbtq/transcriber-be/internal/media"
	"github.com/cuongbtq/transcriber-be/internal/worker/domain"
	"github.com/cuongbtq/transcriber-be/shared/pgmq"
)

// slotWaitInterval bounds the wait when every concurrency slot is busy
const slotWaitInterval = 500 * time.Millisecond

// Config wires the worker's dependencies and tuning knobs. All fields are
// required unless noted.
type Config struct {
	Queue       Queue
	Store       DocumentStore
	Extractor   media.Extractor
	Transcriber media.Transcriber
	Logger      *slog.Logger

	QueueName            string
	MaxConcurrentJobs    int
	BatchSize            int
	VisibilityTimeout    time.Duration
	MaxRetries           int
	BasePollInterval     time.Duration
	MaxPollInterval      time.Duration
	StartupDelay         time.Duration
	ShutdownDrainTimeout time.Duration
}

// Worker owns the dispatcher loop: it polls the queue, launches pipelines
// under the concurrency limiter, and drains in-flight jobs on shutdown.
type Worker struct {
	config   *Config
	logger   *slog.Logger
	queue    Queue
	pipeline *Pipeline
	limiter  *Limiter
	backoff  *Backoff
	state    *state
	workerID string

	stopOnce     sync.Once
	stopChan     chan struct{}
	dispatcherWG sync.WaitGroup
	jobWG        sync.WaitGroup

	mu       sync.Mutex
	running  bool
	inflight map[int64]*domain.JobContext
}

func NewWorker(config *Config) *Worker {
	workerID := uuid.New().String()[:8]
	logger := config.Logger.With(slog.String("worker_id", workerID))

	return &Worker{
		config:   config,
		logger:   logger,
		queue:    config.Queue,
		pipeline: NewPipeline(config.Queue, config.Store, config.Extractor, config.Transcriber, config.MaxRetries, logger),
		limiter:  NewLimiter(config.MaxConcurrentJobs),
		backoff:  NewBackoff(config.BasePollInterval, config.MaxPollInterval),
		state:    &state{},
		workerID: workerID,
		stopChan: make(chan struct{}),
		inflight: make(map[int64]*domain.JobContext),
	}
}

// Start launches the dispatcher loop in the background. It returns
// immediately; call Stop to shut down.
func (w *Worker) Start(ctx context.Context) error {
	w.mu.Lock()
	if w.running {
		w.mu.Unlock()
		return errors.New("worker already started")
	}
	w.running = true
	w.mu.Unlock()

	w.logger.Info("Starting worker",
		slog.String("queue", w.config.QueueName),
		slog.Int("max_concurrent_jobs", w.config.MaxConcurrentJobs),
		slog.Int("batch_size", w.config.BatchSize),
		slog.Duration("visibility_timeout", w.config.VisibilityTimeout),
	)

	w.dispatcherWG.Add(1)
	go w.run(ctx)
	return nil
}

// Stop shuts the worker down: the dispatcher stops dequeuing immediately,
// then in-flight pipelines get the drain timeout to finish. Jobs still
// running after that are abandoned; their leases expire and the messages
// redeliver to the next worker.
func (w *Worker) Stop() {
	w.stopOnce.Do(func() {
		close(w.stopChan)
	})
	w.logger.Info("Stopping worker, waiting for dispatcher")
	w.dispatcherWG.Wait()

	active := w.activeJobs()
	if active > 0 {
		w.logger.Info("Draining in-flight jobs",
			slog.Int("count", active),
			slog.Duration("timeout", w.config.ShutdownDrainTimeout),
		)

		done := make(chan struct{})
		go func() {
			w.jobWG.Wait()
			close(done)
		}()

		select {
		case <-done:
			w.logger.Info("All in-flight jobs completed", slog.Int("completed", active))
		case <-time.After(w.config.ShutdownDrainTimeout):
			abandoned := w.abandonedJobIDs()
			w.logger.Warn("Drain timeout exceeded, abandoning jobs to lease expiry",
				slog.Int("completed", active-len(abandoned)),
				slog.Int("abandoned", len(abandoned)),
				slog.Any("abandoned_msg_ids", abandoned),
			)
		}
	}

	w.mu.Lock()
	w.running = false
	w.mu.Unlock()
	w.logger.Info("Worker stopped")
}

// Status returns a point-in-time snapshot for the ops endpoint
func (w *Worker) Status() Snapshot {
	stats, lastPoll := w.state.stats()

	w.mu.Lock()
	running := w.running
	active := len(w.inflight)
	w.mu.Unlock()

	return Snapshot{
		Running:                    running,
		WorkerID:                   w.workerID,
		QueueName:                  w.config.QueueName,
		ActiveJobs:                 active,
		MaxConcurrentJobs:          w.limiter.Capacity(),
		CurrentPollIntervalSeconds: w.backoff.Current().Seconds(),
		LastPollAt:                 lastPoll,
		Stats:                      stats,
	}
}

// run is the dispatcher loop. A single goroutine polls the queue and
// launches one goroutine per dequeued message.
func (w *Worker) run(ctx context.Context) {
	defer w.dispatcherWG.Done()

	if w.config.StartupDelay > 0 {
		w.logger.Info("Delaying startup", slog.Duration("delay", w.config.StartupDelay))
		if !w.sleep(ctx, w.config.StartupDelay) {
			return
		}
	}
	w.logger.Info("Dispatcher started")

	for {
		if w.stopping(ctx) {
			return
		}

		free := w.limiter.Available()
		if free == 0 {
			// Every slot busy; no point polling until one frees up
			if !w.sleep(ctx, slotWaitInterval) {
				return
			}
			continue
		}

		qty := min(free, w.config.BatchSize)
		w.state.recordPoll(time.Now())
		msgs, err := w.queue.Read(ctx, w.config.VisibilityTimeout, qty)
		if err != nil {
			// Queue errors are never fatal. Log, back off, poll again.
			w.logger.Error("Queue poll failed", slog.Any("error", err))
			if !w.sleep(ctx, w.backoff.Next()) {
				return
			}
			continue
		}

		if len(msgs) == 0 {
			if !w.sleep(ctx, w.backoff.Next()) {
				return
			}
			continue
		}

		w.backoff.Reset()
		w.logger.Debug("Dequeued jobs", slog.Int("count", len(msgs)))

		for i := range msgs {
			if !w.launch(ctx, msgs[i]) {
				return
			}
		}

		if !w.sleep(ctx, w.config.BasePollInterval) {
			return
		}
	}
}

// launch starts one pipeline goroutine for msg. It reports false when the
// worker is stopping, in which case the message stays leased and will
// redeliver after the visibility timeout.
func (w *Worker) launch(ctx context.Context, msg pgmq.Message) bool {
	// Dequeue size never exceeds free slots, so this acquire is immediate
	// in practice; select anyway so shutdown can interrupt it.
	select {
	case <-w.stopChan:
		return false
	case <-ctx.Done():
		return false
	case <-w.limiter.tokens:
	}

	jc := &domain.JobContext{
		MsgID:     msg.MsgID,
		Attempt:   msg.ReadCount,
		StartedAt: time.Now(),
	}
	w.trackJob(jc)
	w.jobWG.Add(1)

	// Pipelines are never force-cancelled mid-stage on shutdown; detach
	// the job context from the dispatcher's cancellation.
	jobCtx := context.WithoutCancel(ctx)

	go func(msg pgmq.Message) {
		defer w.jobWG.Done()
		defer w.limiter.Release()
		defer w.untrackJob(msg.MsgID)

		outcome, err := w.pipeline.Run(jobCtx, &msg, jc)
		w.state.recordOutcome(outcome, time.Now())
		if err != nil {
			w.state.recordError(JobError{
				MsgID:      msg.MsgID,
				DocumentID: jc.DocumentID,
				Stage:      jc.Stage,
				Error:      err.Error(),
				At:         time.Now(),
			})
		}
	}(msg)
	return true
}

// sleep waits for d, returning false if the worker stopped or ctx was
// cancelled first
func (w *Worker) sleep(ctx context.Context, d time.Duration) bool {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return true
	case <-w.stopChan:
		return false
	case <-ctx.Done():
		return false
	}
}

func (w *Worker) stopping(ctx context.Context) bool {
	select {
	case <-w.stopChan:
		return true
	case <-ctx.Done():
		return true
	default:
		return false
	}
}

func (w *Worker) trackJob(jc *domain.JobContext) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.inflight[jc.MsgID] = jc
}

func (w *Worker) untrackJob(msgID int64) {
	w.mu.Lock()
	defer w.mu.Unlock()
	delete(w.inflight, msgID)
}

func (w *Worker) activeJobs() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return len(w.inflight)
}

func (w *Worker) abandonedJobIDs() []int64 {
	w.mu.Lock()
	defer w.mu.Unlock()
	ids := make([]int64, 0, len(w.inflight))
	for id := range w.inflight {
		ids = append(ids, id)
	}
	return ids
}
