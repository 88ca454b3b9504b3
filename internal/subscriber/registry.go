// Package subscriber maintains the registry of WebSocket subscribers
// and fans out invitations to those whose boss-name filter matches.
package subscriber

import (
	"crypto/rand"
	"encoding/base64"
	"sync"

	"github.com/kestrel-raid/gbf-raidfinder/internal/codec"
	"github.com/kestrel-raid/gbf-raidfinder/internal/model"
)

// Subscriber is a connected WebSocket client with a boss-name filter.
//
// Outbound is backed by an internally growable queue rather than a
// fixed-capacity channel: the per-subscriber outbound channel is
// unbounded, so a momentary stall in the WS write (the client's
// writeLoop still flushing the previous frame) must never evict the
// subscriber the way a zero-capacity channel's non-blocking send would.
// Only a subscriber whose connection has actually gone away (Close
// called) ever stops receiving frames.
type Subscriber struct {
	ID       string
	Outbound chan []byte

	mu        sync.Mutex
	cond      *sync.Cond
	queue     [][]byte
	closeOnce sync.Once
	closeSig  chan struct{}
	bossNames map[string]struct{}
	closed    bool
}

func newSubscriber(id string) *Subscriber {
	s := &Subscriber{
		ID:        id,
		Outbound:  make(chan []byte),
		closeSig:  make(chan struct{}),
		bossNames: make(map[string]struct{}),
	}
	s.cond = sync.NewCond(&s.mu)
	go s.pump()
	return s
}

// Matches reports whether bossName is in the subscriber's filter set.
func (s *Subscriber) Matches(bossName string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.bossNames[bossName]
	return ok
}

// SetFilter replaces the subscriber's boss-name filter set.
func (s *Subscriber) SetFilter(names []string) {
	set := make(map[string]struct{}, len(names))
	for _, n := range names {
		set[n] = struct{}{}
	}
	s.mu.Lock()
	s.bossNames = set
	s.mu.Unlock()
}

// send enqueues frame for delivery without blocking. It only returns
// false once the subscriber has been closed; a slow or momentarily
// unready reader never causes a drop — the queue grows to absorb it.
func (s *Subscriber) send(frame []byte) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return false
	}
	s.queue = append(s.queue, frame)
	s.cond.Signal()
	return true
}

// pump drains the growable queue into Outbound in order. It blocks
// only on the channel send (i.e. on the reader actually keeping up),
// never on enqueue, and unwinds promptly once Close fires even if
// parked mid-send to a reader that has stopped pulling frames. Frames
// still queued when Close fires are dropped, not delivered.
func (s *Subscriber) pump() {
	for {
		s.mu.Lock()
		for len(s.queue) == 0 && !s.closed {
			s.cond.Wait()
		}
		if s.closed || len(s.queue) == 0 {
			s.mu.Unlock()
			close(s.Outbound)
			return
		}
		frame := s.queue[0]
		s.queue = s.queue[1:]
		s.mu.Unlock()

		select {
		case s.Outbound <- frame:
		case <-s.closeSig:
			close(s.Outbound)
			return
		}
	}
}

// Close marks the subscriber closed and unblocks its pump so Outbound
// is closed promptly. Safe to call more than once.
func (s *Subscriber) Close() {
	s.closeOnce.Do(func() {
		s.mu.Lock()
		s.closed = true
		s.mu.Unlock()
		close(s.closeSig)
		s.cond.Signal()
	})
}

func newSubscriberID() (string, error) {
	b := make([]byte, 16)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(b), nil
}

// Registry is the shared mapping from subscriber id to subscriber
// record. All operations serialize against each other.
type Registry struct {
	mu   sync.RWMutex
	subs map[string]*Subscriber
}

// NewRegistry returns an empty Registry.
func NewRegistry() *Registry {
	return &Registry{subs: make(map[string]*Subscriber)}
}

// Register creates and stores a new subscriber with an empty filter,
// returning it and its id.
func (r *Registry) Register() (*Subscriber, error) {
	id, err := newSubscriberID()
	if err != nil {
		return nil, err
	}
	sub := newSubscriber(id)
	r.mu.Lock()
	r.subs[id] = sub
	r.mu.Unlock()
	return sub, nil
}

// UpdateFilter replaces a subscriber's boss-name filter by id.
func (r *Registry) UpdateFilter(id string, names []string) {
	r.mu.RLock()
	sub, ok := r.subs[id]
	r.mu.RUnlock()
	if ok {
		sub.SetFilter(names)
	}
}

// Remove drops a subscriber by id and closes its outbound channel.
func (r *Registry) Remove(id string) {
	r.mu.Lock()
	sub, ok := r.subs[id]
	if ok {
		delete(r.subs, id)
	}
	r.mu.Unlock()
	if ok {
		sub.Close()
	}
}

// snapshot takes a read lock and copies out the current subscriber
// list, so Broadcast never holds the registry lock across sends.
func (r *Registry) snapshot() []*Subscriber {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]*Subscriber, 0, len(r.subs))
	for _, s := range r.subs {
		out = append(out, s)
	}
	return out
}

// Broadcast encodes inv once and pushes it to every subscriber whose
// filter matches its boss name. Subscribers whose send fails are
// removed. Call this in its own goroutine from the pipeline to keep
// fan-out non-blocking.
func (r *Registry) Broadcast(inv model.RaidInvitation) {
	frame := codec.EncodeRaidInvitation(inv)
	for _, sub := range r.snapshot() {
		if !sub.Matches(inv.BossName) {
			continue
		}
		if !sub.send(frame) {
			r.Remove(sub.ID)
		}
	}
}
