// Package summarizer implements a single-worker, priority-ordered
// summarization queue: one heavy model, many producers, responses
// correlated by request id.
package summarizer

import (
	"container/heap"
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/gammazero/workerpool"
	tiktoken "github.com/pkoukk/tiktoken-go"

	"github.com/luislascano01/Stratvithor/internal/xsync"
)

// Sentinel error kinds.
var (
	ErrDeadlineExpired = errors.New("summarizer: deadline expired")
	ErrShutdown        = errors.New("summarizer: service shut down")
)

// Model is the heavy summarization backend the Service serializes access
// to. Implementations are expected to be safe to call from a single
// goroutine at a time — the Service never calls Summarize concurrently.
type Model interface {
	Summarize(ctx context.Context, text string, maxLen, minLen int) (string, error)
}

// MemoryMonitor reports the summarization device's current memory
// utilization as a fraction of capacity in [0,1]. A nil monitor disables
// the high-water-mark wait.
type MemoryMonitor interface {
	UtilizationFraction() float64
}

// Config tunes the service's resource and idle-unload policy.
type Config struct {
	// MaxInputTokens bounds truncation of request text before the model is
	// invoked.
	MaxInputTokens int
	// HighWaterMark is the device-memory fraction above which the worker
	// waits before invoking the model.
	HighWaterMark float64
	// MemoryPollInterval is how often the worker re-checks device memory
	// while waiting under HighWaterMark.
	MemoryPollInterval time.Duration
	// IdleUnload marks the model unloaded (Loaded reports false) after the
	// queue has been empty for IdleTimeout; the next dequeued request marks
	// it loaded again. Model has no load or unload hook, so no backend
	// resources are released.
	IdleUnload  bool
	IdleTimeout time.Duration
}

func (c Config) withDefaults() Config {
	if c.MaxInputTokens <= 0 {
		c.MaxInputTokens = 1024
	}
	if c.HighWaterMark <= 0 {
		c.HighWaterMark = 0.95
	}
	if c.MemoryPollInterval <= 0 {
		c.MemoryPollInterval = 500 * time.Millisecond
	}
	if c.IdleTimeout <= 0 {
		c.IdleTimeout = 30 * time.Second
	}
	return c
}

// Service is the single-worker priority queue.
type Service struct {
	cfg     Config
	model   Model
	monitor MemoryMonitor

	mu       sync.Mutex
	queue    priorityQueue
	seq      uint64
	futures  map[string]*xsync.Future[Response]
	draining bool
	loaded   bool
	lastWork time.Time
	signal   chan struct{}

	pool *workerpool.WorkerPool
	enc  *tiktoken.Tiktoken
}

// New constructs a Service wrapping model and immediately starts its single
// dispatch worker, hosted on a one-slot gammazero/workerpool so the worker
// goroutine's lifecycle is managed the same way the rest of the ambient
// stack manages pooled goroutines.
func New(model Model, monitor MemoryMonitor, cfg Config) *Service {
	s := &Service{
		cfg:     cfg.withDefaults(),
		model:   model,
		monitor: monitor,
		futures: make(map[string]*xsync.Future[Response]),
		signal:  make(chan struct{}, 1),
		pool:    workerpool.New(1),
	}
	if enc, err := tiktoken.GetEncoding("cl100k_base"); err == nil {
		s.enc = enc
	}
	s.pool.Submit(s.run)
	return s
}

// Submit enqueues req and returns a Future resolved when the worker
// produces (or fails to produce) the matching Response. Submit returns
// ErrShutdown if the service has begun draining.
func (s *Service) Submit(req Request) (*xsync.Future[Response], error) {
	req = req.normalized()
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.draining {
		return nil, ErrShutdown
	}
	s.seq++
	future := xsync.NewFuture[Response]()
	s.futures[req.ID] = future
	heap.Push(&s.queue, queuedRequest{req: req, seq: s.seq})
	s.notify()
	return future, nil
}

// notify wakes the worker if it is blocked waiting for work; it never
// blocks itself.
func (s *Service) notify() {
	select {
	case s.signal <- struct{}{}:
	default:
	}
}

// Await blocks until the response for requestID arrives or ctx is done.
func (s *Service) Await(ctx context.Context, requestID string) (Response, error) {
	s.mu.Lock()
	future, ok := s.futures[requestID]
	s.mu.Unlock()
	if !ok {
		return Response{}, fmt.Errorf("summarizer: unknown request id %q", requestID)
	}
	return future.GetWithContext(ctx)
}

// Shutdown drains the queue, failing every still-queued request with
// ErrShutdown, and stops accepting new submissions. It blocks until the
// worker goroutine exits.
func (s *Service) Shutdown() {
	s.mu.Lock()
	s.draining = true
	for s.queue.Len() > 0 {
		qr := heap.Pop(&s.queue).(queuedRequest)
		s.resolveLocked(qr.req.ID, Response{RequestID: qr.req.ID, Err: ErrShutdown})
	}
	s.mu.Unlock()
	s.notify()
	s.pool.StopWait()
}

// run is the single worker loop: pop highest priority, check deadline,
// possibly wait on memory, summarize, publish response.
func (s *Service) run() {
	for {
		qr, ok := s.dequeue()
		if !ok {
			return
		}

		now := time.Now()
		if qr.req.expired(now) {
			s.resolve(qr.req.ID, Response{RequestID: qr.req.ID, Err: ErrDeadlineExpired})
			continue
		}

		if !s.waitForMemory() {
			s.resolve(qr.req.ID, Response{RequestID: qr.req.ID, Err: ErrShutdown})
			continue
		}

		summary, err := s.summarizeOne(qr.req)
		if err != nil {
			s.resolve(qr.req.ID, Response{RequestID: qr.req.ID, Err: err})
			continue
		}
		s.resolve(qr.req.ID, Response{RequestID: qr.req.ID, SummaryText: summary})
	}
}

// dequeue blocks until a request is available or the service is draining
// and empty. While idle it applies the idle-unload policy: if IdleUnload is
// set and the model is currently resident, it waits up to IdleTimeout for
// new work before marking the model unloaded; dequeuing the next request
// marks it loaded again.
func (s *Service) dequeue() (queuedRequest, bool) {
	for {
		s.mu.Lock()
		if s.queue.Len() > 0 {
			qr := heap.Pop(&s.queue).(queuedRequest)
			s.loaded = true
			s.lastWork = time.Now()
			s.mu.Unlock()
			return qr, true
		}
		if s.draining {
			s.mu.Unlock()
			return queuedRequest{}, false
		}
		waitForIdleUnload := s.cfg.IdleUnload && s.loaded
		s.mu.Unlock()

		if !waitForIdleUnload {
			<-s.signal
			continue
		}
		select {
		case <-s.signal:
		case <-time.After(s.cfg.IdleTimeout):
			s.mu.Lock()
			s.loaded = false
			s.mu.Unlock()
		}
	}
}

// Loaded reports whether the model is considered resident, for tests and
// diagnostics exercising the idle-unload policy.
func (s *Service) Loaded() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.loaded
}

// waitForMemory polls the device memory monitor until utilization drops
// back under the high-water mark. It returns false if the service starts
// draining while still waiting, so the caller can abandon the request
// instead of blocking Shutdown indefinitely.
func (s *Service) waitForMemory() bool {
	if s.monitor == nil {
		return true
	}
	for s.monitor.UtilizationFraction() > s.cfg.HighWaterMark {
		s.mu.Lock()
		draining := s.draining
		s.mu.Unlock()
		if draining {
			return false
		}
		time.Sleep(s.cfg.MemoryPollInterval)
	}
	return true
}

func (s *Service) summarizeOne(req Request) (string, error) {
	truncated := s.truncate(req.Text)
	summary, err := s.model.Summarize(context.Background(), truncated, req.MaxLen, req.MinLen)
	if err != nil {
		return "", err
	}
	return reflow(summary, wordsPerLine), nil
}

// truncate bounds text to MaxInputTokens using a tiktoken encoding when
// available, falling back to a rune-count approximation (one rune per
// token) otherwise.
func (s *Service) truncate(text string) string {
	if s.enc == nil {
		runes := []rune(text)
		if len(runes) <= s.cfg.MaxInputTokens {
			return text
		}
		return string(runes[:s.cfg.MaxInputTokens])
	}
	tokens := s.enc.Encode(text, nil, nil)
	if len(tokens) <= s.cfg.MaxInputTokens {
		return text
	}
	return s.enc.Decode(tokens[:s.cfg.MaxInputTokens])
}

func (s *Service) resolve(requestID string, resp Response) {
	s.mu.Lock()
	s.resolveLocked(requestID, resp)
	s.mu.Unlock()
}

func (s *Service) resolveLocked(requestID string, resp Response) {
	if future, ok := s.futures[requestID]; ok {
		future.Resolve(resp, nil)
		delete(s.futures, requestID)
	}
}

// reflow inserts a blank line every wordsPerChunk words, matching the
// original service's paragraph formatting of summarized text.
func reflow(text string, wordsPerChunk int) string {
	words := strings.Fields(text)
	if len(words) == 0 {
		return text
	}
	var lines []string
	for i := 0; i < len(words); i += wordsPerChunk {
		end := i + wordsPerChunk
		if end > len(words) {
			end = len(words)
		}
		lines = append(lines, strings.Join(words[i:end], " "))
	}
	return strings.Join(lines, "\n\n")
}
