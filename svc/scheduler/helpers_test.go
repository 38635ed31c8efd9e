package scheduler_test

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/mailscheduler/pkg/email"
	"github.com/dmitrymomot/mailscheduler/pkg/queue"
	"github.com/dmitrymomot/mailscheduler/svc/scheduler"
)

var epoch = time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)

type testClock struct {
	mu  sync.Mutex
	now time.Time
}

func newTestClock() *testClock {
	return &testClock{now: epoch}
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *testClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

func discardLogger() *slog.Logger {
	return slog.New(slog.DiscardHandler)
}

// fakeSender counts deliveries and returns err when set.
type fakeSender struct {
	calls atomic.Int32
	mu    sync.Mutex
	err   error
	sent  []email.Message
}

func (s *fakeSender) Deliver(_ context.Context, msg email.Message) (email.Receipt, error) {
	n := s.calls.Add(1)
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return email.Receipt{}, s.err
	}
	s.sent = append(s.sent, msg)
	return email.Receipt{MessageID: fmt.Sprintf("msg-%d", n), PreviewURL: "file:///tmp/preview.html"}, nil
}

func (s *fakeSender) failWith(err error) {
	s.mu.Lock()
	s.err = err
	s.mu.Unlock()
}

// failingEnqueuer rejects every task.
type failingEnqueuer struct{}

func (failingEnqueuer) Enqueue(context.Context, any, ...queue.EnqueueOption) (string, error) {
	return "", errors.New("broker down")
}

func (failingEnqueuer) Remove(context.Context, string) error {
	return errors.New("broker down")
}

func (failingEnqueuer) Lookup(context.Context, string) (*queue.Task, error) {
	return nil, errors.New("broker down")
}

// harness wires a scheduler against in-memory storage and a shared fake clock.
type harness struct {
	clock   *testClock
	store   *scheduler.MemoryStore
	tasks   *queue.MemoryStorage
	enq     *queue.Enqueuer
	svc     *scheduler.Service
	opts    []scheduler.Option
	retries queue.RetryPolicy
}

func newHarness(t *testing.T) *harness {
	t.Helper()

	h := &harness{
		clock:   newTestClock(),
		retries: queue.DefaultRetryPolicy(),
	}
	h.opts = []scheduler.Option{
		scheduler.WithClock(h.clock.Now),
		scheduler.WithLogger(discardLogger()),
		scheduler.WithEnqueueOptions(queue.WithQueue("email-queue")),
	}
	h.store = scheduler.NewMemoryStore(h.opts...)
	h.resetQueue(t)
	return h
}

// resetQueue swaps in empty queue storage, like a broker that lost its state.
func (h *harness) resetQueue(t *testing.T) {
	t.Helper()

	h.tasks = queue.NewMemoryStorageWithClock(h.clock.Now)
	enq, err := queue.NewEnqueuer(h.tasks,
		queue.WithEnqueuerClock(h.clock.Now),
		queue.WithDefaultRetryPolicy(h.retries),
	)
	require.NoError(t, err)
	h.enq = enq
	h.svc = scheduler.NewService(h.store, h.enq, h.opts...)
}

func (h *harness) recovery() *scheduler.Recovery {
	return scheduler.NewRecovery(h.store, h.enq, h.opts...)
}

// startWorker runs a queue worker with the delivery handler until the test ends.
func (h *harness) startWorker(t *testing.T, sender email.Sender) {
	t.Helper()

	w, err := queue.NewWorker(h.tasks,
		queue.WithQueues("email-queue"),
		queue.WithPullInterval(5*time.Millisecond),
		queue.WithMaxConcurrentTasks(4),
		queue.WithWorkerLogger(discardLogger()),
		queue.WithWorkerClock(h.clock.Now),
	)
	require.NoError(t, err)
	require.NoError(t, w.RegisterHandler(scheduler.NewWorker(h.store, sender, h.opts...).Handler()))
	require.NoError(t, w.Start(context.Background()))
	t.Cleanup(func() { _ = w.Stop() })
}

func (h *harness) schedule(t *testing.T, in time.Duration) scheduler.JobRecord {
	t.Helper()

	rec, err := h.svc.Schedule(context.Background(), scheduler.NewRecord{
		Recipient:     "a@b.com",
		Subject:       "Hi",
		Body:          "Body",
		ScheduledTime: h.clock.Now().Add(in),
	})
	require.NoError(t, err)
	return rec
}

func (h *harness) waitStatus(t *testing.T, id int64, want scheduler.Status, tick func()) scheduler.JobRecord {
	t.Helper()

	require.Eventually(t, func() bool {
		if tick != nil {
			tick()
		}
		rec, err := h.svc.Status(context.Background(), id)
		return err == nil && rec.Status == want
	}, 5*time.Second, 10*time.Millisecond)

	rec, err := h.svc.Status(context.Background(), id)
	require.NoError(t, err)
	return rec
}

func uuidFromHandle(t *testing.T, handle string) uuid.UUID {
	t.Helper()

	id, err := uuid.Parse(handle)
	require.NoError(t, err)
	return id
}
