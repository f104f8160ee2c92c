// Package resultstore holds per-node run state and fans out every
// transition to any number of subscribers without ever blocking the writer
// on a slow consumer.
package resultstore

import (
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"sync"
	"sync/atomic"
)

// Sentinel error kinds, matched with errors.Is.
var (
	ErrUnknownNode    = errors.New("resultstore: unknown node")
	ErrAlreadyTerminal = errors.New("resultstore: node already in a terminal state")
)

const subscriberBuffer = 64

// Subscription is a lazy, per-subscriber stream of updates. It only carries
// transitions emitted after Subscribe was called — callers needing the
// state as of attach time call Snapshot first.
type Subscription struct {
	store *Store
	id    uint64
	ch    chan Update
	lossy atomic.Bool
}

// Updates returns the channel of transitions for this subscriber.
func (s *Subscription) Updates() <-chan Update { return s.ch }

// Lossy reports whether this subscriber has ever missed an update because
// its buffer was full. Once true it stays true; calling Snapshot to
// reconcile does not reset it.
func (s *Subscription) Lossy() bool { return s.lossy.Load() }

// Close detaches the subscription; the store stops publishing to it.
func (s *Subscription) Close() {
	s.store.removeSubscriber(s.id)
}

// Store is the exclusive-writer, many-reader map of node id to NodeState.
type Store struct {
	mu          sync.Mutex
	states      map[int]NodeState
	subs        map[uint64]*Subscription
	nextSubID   uint64
}

// New returns an empty Store. Call Init before spawning any node task.
func New() *Store {
	return &Store{
		states: make(map[int]NodeState),
		subs:   make(map[uint64]*Subscription),
	}
}

// FromSnapshot rebuilds a Store from a previously captured Snapshot, for
// reconstructing a persisted run. The returned Store has no live writer;
// Get, Subscribe and Snapshot all work normally, but nothing will ever
// transition it further unless the caller explicitly calls one of the
// mutating methods itself.
func FromSnapshot(snap map[int]NodeState) *Store {
	s := New()
	for id, st := range snap {
		s.states[id] = st
	}
	return s
}

// Init inserts every id in pending state. It must run before any writer
// goroutine touches the store.
func (s *Store) Init(ids []int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, id := range ids {
		s.states[id] = NodeState{Status: Pending}
	}
}

// Get returns the current state of id, if known.
func (s *Store) Get(id int) (NodeState, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	st, ok := s.states[id]
	return st, ok
}

// MarkProcessing transitions id from pending to processing with a
// human-readable message. It is a no-op error if id is unknown or already
// terminal.
func (s *Store) MarkProcessing(id int, msg string) error {
	return s.transition(id, NodeState{Status: Processing, Message: msg})
}

// Store transitions id to complete with the given result.
func (s *Store) Store(id int, result Result) error {
	return s.transition(id, NodeState{Status: Complete, Result: result})
}

// MarkFailed transitions id to failed with an error string.
func (s *Store) MarkFailed(id int, errMsg string) error {
	return s.transition(id, NodeState{Status: Failed, Message: errMsg})
}

func (s *Store) transition(id int, next NodeState) error {
	s.mu.Lock()
	cur, ok := s.states[id]
	if !ok {
		s.mu.Unlock()
		return fmt.Errorf("%w: %d", ErrUnknownNode, id)
	}
	if cur.Status.Terminal() {
		s.mu.Unlock()
		return fmt.Errorf("%w: %d is %s", ErrAlreadyTerminal, id, cur.Status)
	}
	s.states[id] = next
	// publish never blocks, so fanning out under the lock is cheap, and it
	// keeps Close from closing a subscriber's channel mid-send.
	update := Update{NodeID: id, State: next}
	for _, sub := range s.subs {
		publish(sub, update)
	}
	s.mu.Unlock()
	return nil
}

// publish delivers update to sub without blocking: if the buffer is full it
// drops the oldest queued update and marks the subscription lossy. This
// keeps a slow subscriber from ever stalling the orchestrator's writer.
func publish(sub *Subscription, update Update) {
	select {
	case sub.ch <- update:
		return
	default:
	}
	select {
	case <-sub.ch:
	default:
	}
	sub.lossy.Store(true)
	select {
	case sub.ch <- update:
	default:
	}
}

// Subscribe attaches a new Subscription that will receive every transition
// emitted from this point forward.
func (s *Store) Subscribe() *Subscription {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextSubID++
	sub := &Subscription{
		store: s,
		id:    s.nextSubID,
		ch:    make(chan Update, subscriberBuffer),
	}
	s.subs[sub.id] = sub
	return sub
}

func (s *Store) removeSubscriber(id uint64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if sub, ok := s.subs[id]; ok {
		close(sub.ch)
		delete(s.subs, id)
	}
}

// Snapshot returns a consistent point-in-time copy of every node's state.
func (s *Store) Snapshot() map[int]NodeState {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make(map[int]NodeState, len(s.states))
	for id, st := range s.states {
		out[id] = st
	}
	return out
}

// ToJSON serializes the current snapshot with ids in ascending order so
// repeated calls against identical state are byte-identical.
func (s *Store) ToJSON() ([]byte, error) {
	snap := s.Snapshot()
	ids := make([]int, 0, len(snap))
	for id := range snap {
		ids = append(ids, id)
	}
	sort.Ints(ids)

	ordered := make([]Update, 0, len(ids))
	for _, id := range ids {
		ordered = append(ordered, Update{NodeID: id, State: snap[id]})
	}
	return json.Marshal(ordered)
}
