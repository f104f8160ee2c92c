package summarizer_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/luislascano01/Stratvithor/summarizer"
)

// gatedModel blocks its first invocation on gate, letting a test enqueue
// several requests before the worker drains any of them, then records the
// order requests were actually summarized in.
type gatedModel struct {
	mu      sync.Mutex
	order   []string
	gate    chan struct{}
	gated   bool
	blocked bool
}

func newGatedModel() *gatedModel {
	return &gatedModel{gate: make(chan struct{}), gated: true}
}

func (m *gatedModel) release() { close(m.gate) }

func (m *gatedModel) Summarize(_ context.Context, text string, _, _ int) (string, error) {
	m.mu.Lock()
	shouldBlock := m.gated && !m.blocked
	if shouldBlock {
		m.blocked = true
	}
	m.mu.Unlock()
	if shouldBlock {
		<-m.gate
	}
	m.mu.Lock()
	m.order = append(m.order, text)
	m.mu.Unlock()
	return text, nil
}

func (m *gatedModel) snapshot() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]string, len(m.order))
	copy(out, m.order)
	return out
}

func TestPriorityOrderingAcrossTies(t *testing.T) {
	model := newGatedModel()
	svc := summarizer.New(model, nil, summarizer.Config{})
	defer svc.Shutdown()

	low, err := svc.Submit(summarizer.Request{ID: "low", Priority: 10, Text: "low"})
	require.NoError(t, err)
	require.Eventually(t, func() bool {
		model.mu.Lock()
		defer model.mu.Unlock()
		return model.blocked
	}, time.Second, time.Millisecond)
	high, err := svc.Submit(summarizer.Request{ID: "high", Priority: 1, Text: "high"})
	require.NoError(t, err)
	mid, err := svc.Submit(summarizer.Request{ID: "mid", Priority: 5, Text: "mid"})
	require.NoError(t, err)
	midTie, err := svc.Submit(summarizer.Request{ID: "mid-tie", Priority: 5, Text: "mid-tie"})
	require.NoError(t, err)

	model.release()

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	_, err = low.GetWithContext(ctx)
	require.NoError(t, err)
	_, err = high.GetWithContext(ctx)
	require.NoError(t, err)
	_, err = mid.GetWithContext(ctx)
	require.NoError(t, err)
	_, err = midTie.GetWithContext(ctx)
	require.NoError(t, err)

	require.Equal(t, []string{"low", "high", "mid", "mid-tie"}, model.snapshot())
}

func TestDeadlineExpiredBeforeDequeue(t *testing.T) {
	model := newGatedModel()
	model.gated = false
	svc := summarizer.New(model, nil, summarizer.Config{})
	defer svc.Shutdown()

	future, err := svc.Submit(summarizer.Request{
		ID:       "stale",
		Text:     "too late",
		Deadline: time.Now().Add(-time.Minute),
	})
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	resp, err := future.GetWithContext(ctx)
	require.NoError(t, err)
	require.True(t, errors.Is(resp.Err, summarizer.ErrDeadlineExpired))
	require.Empty(t, model.snapshot())
}

func TestShutdownFailsQueuedRequests(t *testing.T) {
	model := newGatedModel()
	svc := summarizer.New(model, nil, summarizer.Config{})

	inFlight, err := svc.Submit(summarizer.Request{ID: "first", Text: "first"})
	require.NoError(t, err)
	queued, err := svc.Submit(summarizer.Request{ID: "second", Text: "second"})
	require.NoError(t, err)

	require.Eventually(t, func() bool {
		model.mu.Lock()
		defer model.mu.Unlock()
		return model.blocked
	}, time.Second, time.Millisecond)

	// Shutdown blocks until the in-flight request finishes, so it runs in
	// its own goroutine while the gate is still closed.
	shutdownDone := make(chan struct{})
	go func() {
		svc.Shutdown()
		close(shutdownDone)
	}()

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	second, err := queued.GetWithContext(ctx)
	require.NoError(t, err)
	require.True(t, errors.Is(second.Err, summarizer.ErrShutdown))

	model.release()

	first, err := inFlight.GetWithContext(ctx)
	require.NoError(t, err)
	require.Equal(t, "first", first.SummaryText)
	<-shutdownDone

	_, err = svc.Submit(summarizer.Request{ID: "third", Text: "third"})
	require.True(t, errors.Is(err, summarizer.ErrShutdown))
}

func TestIdleUnloadAfterTimeout(t *testing.T) {
	model := newGatedModel()
	model.gated = false
	svc := summarizer.New(model, nil, summarizer.Config{
		IdleUnload:  true,
		IdleTimeout: 20 * time.Millisecond,
	})
	defer svc.Shutdown()

	future, err := svc.Submit(summarizer.Request{ID: "warmup", Text: "warmup"})
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	_, err = future.GetWithContext(ctx)
	require.NoError(t, err)

	require.True(t, svc.Loaded())
	require.Eventually(t, func() bool {
		return !svc.Loaded()
	}, time.Second, 5*time.Millisecond)
}

func TestMemoryHighWaterMarkDelaysSummarization(t *testing.T) {
	model := newGatedModel()
	model.gated = false
	monitor := summarizer.ConstantMemoryMonitor(0.99)
	svc := summarizer.New(model, monitor, summarizer.Config{
		HighWaterMark:      0.5,
		MemoryPollInterval: 10 * time.Millisecond,
	})

	future, err := svc.Submit(summarizer.Request{ID: "blocked-by-memory", Text: "x"})
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()
	_, err = future.GetWithContext(ctx)
	require.ErrorIs(t, err, context.DeadlineExceeded)

	svc.Shutdown()
}

func TestMockModelIsDeterministic(t *testing.T) {
	model := summarizer.MockModel{}
	out1, err := model.Summarize(context.Background(), "hello world", 300, 30)
	require.NoError(t, err)
	out2, err := model.Summarize(context.Background(), "hello world", 300, 30)
	require.NoError(t, err)
	require.Equal(t, out1, out2)
}
