package worker

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cuongbtq/transcriber-be/internal/media"
	"github.com/cuongbtq/transcriber-be/shared/pgmq"
)

// blockingExtractor parks every extraction until release is closed
type blockingExtractor struct {
	started chan struct{}
	release chan struct{}
}

func newBlockingExtractor() *blockingExtractor {
	return &blockingExtractor{
		started: make(chan struct{}, 16),
		release: make(chan struct{}),
	}
}

func (e *blockingExtractor) ExtractAudio(_ context.Context, _ string) (*media.Audio, error) {
	e.started <- struct{}{}
	<-e.release
	return &media.Audio{Format: "mp3"}, nil
}

func newTestWorker(t *testing.T, queue Queue, store DocumentStore, extractor media.Extractor, transcriber media.Transcriber, drainTimeout time.Duration) *Worker {
	t.Helper()
	return NewWorker(&Config{
		Queue:                queue,
		Store:                store,
		Extractor:            extractor,
		Transcriber:          transcriber,
		Logger:               slog.New(slog.NewTextHandler(io.Discard, nil)),
		QueueName:            "transcription_jobs",
		MaxConcurrentJobs:    2,
		BatchSize:            5,
		VisibilityTimeout:    30 * time.Second,
		MaxRetries:           3,
		BasePollInterval:     5 * time.Millisecond,
		MaxPollInterval:      40 * time.Millisecond,
		ShutdownDrainTimeout: drainTimeout,
	})
}

func TestWorker_ProcessesBatch(t *testing.T) {
	queue := &fakeQueue{
		batches: [][]pgmq.Message{{
			*testMessage(1, "doc-1", 1),
			*testMessage(2, "doc-1", 1),
			*testMessage(3, "doc-1", 1),
		}},
	}
	store := &fakeStore{doc: testDocument("doc-1")}
	extractor := &fakeExtractor{audio: &media.Audio{Format: "mp3"}}
	transcriber := &fakeTranscriber{transcript: testTranscript()}

	w := newTestWorker(t, queue, store, extractor, transcriber, time.Second)
	require.NoError(t, w.Start(context.Background()))
	defer w.Stop()

	require.Eventually(t, func() bool {
		return w.Status().Stats.JobsProcessed == 3
	}, 2*time.Second, 5*time.Millisecond)

	assert.ElementsMatch(t, []int64{1, 2, 3}, queue.deletedIDs())
	assert.Empty(t, queue.archivedIDs())

	// Dequeue size never exceeds the batch size or the free slots
	for _, qty := range queue.reads() {
		assert.GreaterOrEqual(t, qty, 1)
		assert.LessOrEqual(t, qty, 5)
	}
}

func TestWorker_ConcurrencyBounded(t *testing.T) {
	queue := &fakeQueue{
		batches: [][]pgmq.Message{{
			*testMessage(1, "doc-1", 1),
			*testMessage(2, "doc-1", 1),
			*testMessage(3, "doc-1", 1),
			*testMessage(4, "doc-1", 1),
		}},
	}
	store := &fakeStore{doc: testDocument("doc-1")}
	extractor := newBlockingExtractor()
	transcriber := &fakeTranscriber{transcript: testTranscript()}

	w := newTestWorker(t, queue, store, extractor, transcriber, 2*time.Second)
	require.NoError(t, w.Start(context.Background()))

	// Only max_concurrent_jobs pipelines may be in flight at once
	require.Eventually(t, func() bool {
		return w.Status().ActiveJobs == 2
	}, 2*time.Second, 5*time.Millisecond)
	assert.Len(t, extractor.started, 2)

	close(extractor.release)
	require.Eventually(t, func() bool {
		return w.Status().Stats.JobsProcessed == 4
	}, 2*time.Second, 5*time.Millisecond)

	w.Stop()
}

func TestWorker_StopHaltsDequeue(t *testing.T) {
	queue := &fakeQueue{}
	store := &fakeStore{}
	w := newTestWorker(t, queue, store, &fakeExtractor{}, &fakeTranscriber{}, time.Second)

	require.NoError(t, w.Start(context.Background()))
	require.Eventually(t, func() bool {
		return len(queue.reads()) > 0
	}, 2*time.Second, 5*time.Millisecond)

	w.Stop()
	assert.False(t, w.Status().Running)

	polls := len(queue.reads())
	time.Sleep(100 * time.Millisecond)
	assert.Equal(t, polls, len(queue.reads()), "no polls after stop")
}

func TestWorker_DrainTimeoutAbandonsJobs(t *testing.T) {
	queue := &fakeQueue{
		batches: [][]pgmq.Message{{*testMessage(1, "doc-1", 1)}},
	}
	store := &fakeStore{doc: testDocument("doc-1")}
	extractor := newBlockingExtractor()

	w := newTestWorker(t, queue, store, extractor, &fakeTranscriber{transcript: testTranscript()}, 50*time.Millisecond)
	require.NoError(t, w.Start(context.Background()))

	select {
	case <-extractor.started:
	case <-time.After(2 * time.Second):
		t.Fatal("pipeline never started")
	}

	// The job is stuck in extraction; Stop must give up after the drain
	// timeout instead of hanging
	stopped := time.Now()
	w.Stop()
	elapsed := time.Since(stopped)
	assert.Less(t, elapsed, time.Second)
	assert.GreaterOrEqual(t, elapsed, 50*time.Millisecond)

	// The abandoned message was never acknowledged; its lease will expire
	assert.Empty(t, queue.deletedIDs())
	assert.Empty(t, queue.archivedIDs())

	close(extractor.release)
}

func TestWorker_IdleBackoffGrowsAndResets(t *testing.T) {
	queue := &fakeQueue{}
	store := &fakeStore{doc: testDocument("doc-1")}
	w := NewWorker(&Config{
		Queue:                queue,
		Store:                store,
		Extractor:            &fakeExtractor{audio: &media.Audio{Format: "mp3"}},
		Transcriber:          &fakeTranscriber{transcript: testTranscript()},
		Logger:               slog.New(slog.NewTextHandler(io.Discard, nil)),
		QueueName:            "transcription_jobs",
		MaxConcurrentJobs:    2,
		BatchSize:            5,
		VisibilityTimeout:    30 * time.Second,
		MaxRetries:           3,
		BasePollInterval:     5 * time.Millisecond,
		MaxPollInterval:      10 * time.Second,
		ShutdownDrainTimeout: time.Second,
	})

	require.NoError(t, w.Start(context.Background()))
	defer w.Stop()

	// Consecutive empty polls double the interval
	require.Eventually(t, func() bool {
		return w.Status().CurrentPollIntervalSeconds >= 0.08
	}, 2*time.Second, 5*time.Millisecond)

	// A non-empty poll resets it to the base
	queue.mu.Lock()
	queue.batches = [][]pgmq.Message{{*testMessage(1, "doc-1", 1)}}
	queue.mu.Unlock()

	require.Eventually(t, func() bool {
		s := w.Status()
		return s.Stats.JobsProcessed == 1 && s.CurrentPollIntervalSeconds < 0.08
	}, 5*time.Second, 5*time.Millisecond)
}

func TestWorker_StartTwice(t *testing.T) {
	w := newTestWorker(t, &fakeQueue{}, &fakeStore{}, &fakeExtractor{}, &fakeTranscriber{}, time.Second)
	require.NoError(t, w.Start(context.Background()))
	defer w.Stop()

	assert.Error(t, w.Start(context.Background()))
}

func TestWorker_StatusSnapshot(t *testing.T) {
	w := newTestWorker(t, &fakeQueue{}, &fakeStore{}, &fakeExtractor{}, &fakeTranscriber{}, time.Second)

	s := w.Status()
	assert.False(t, s.Running)
	assert.Equal(t, "transcription_jobs", s.QueueName)
	assert.Equal(t, 2, s.MaxConcurrentJobs)
	assert.Zero(t, s.ActiveJobs)
	assert.NotEmpty(t, s.WorkerID)

	require.NoError(t, w.Start(context.Background()))
	assert.True(t, w.Status().Running)
	w.Stop()
	assert.False(t, w.Status().Running)
}
