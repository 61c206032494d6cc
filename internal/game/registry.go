package game

import (
	"sort"
	"sync"
	"time"
)

// Subscriber manages the per-device response subscription on the bus.
type Subscriber interface {
	SubscribeDevice(deviceID string) error
	UnsubscribeDevice(deviceID string) error
}

type noopSubscriber struct{}

func (noopSubscriber) SubscribeDevice(string) error   { return nil }
func (noopSubscriber) UnsubscribeDevice(string) error { return nil }

// Registry maps device ids to sessions. It is the single source of truth for
// which devices exist. Terminated sessions stay in the map for scoreboard
// display until the device connects again.
//
// All methods are safe for concurrent use.
type Registry struct {
	mu       sync.RWMutex
	sessions map[string]*Session

	subscriber Subscriber
	logger     Logger
	now        func() time.Time
}

// NewRegistry creates an empty registry. A nil subscriber disables bus subscriptions.
func NewRegistry(subscriber Subscriber, logger Logger) *Registry {
	if subscriber == nil {
		subscriber = noopSubscriber{}
	}
	if logger == nil {
		logger = noopLogger{}
	}
	return &Registry{
		sessions:   make(map[string]*Session),
		subscriber: subscriber,
		logger:     logger,
		now:        time.Now,
	}
}

// Create registers a fresh session and subscribes to the device's response topic.
//
// It returns ErrDuplicateDevice if a live session already exists. A terminated
// session is replaced. A subscribe failure is logged but does not fail creation.
func (r *Registry) Create(deviceID, displayName string, healthPoints int) (*Session, error) {
	s, err := r.createLocked(deviceID, displayName, healthPoints)
	if err != nil {
		return s, err
	}
	s.mu.Unlock()
	return s, nil
}

// createLocked is Create, except the new session is returned with its lock
// held. The session becomes visible to Lookup already locked, so no operation
// can reach it before the caller has set it up. An existing live session is
// returned unlocked with ErrDuplicateDevice.
func (r *Registry) createLocked(deviceID, displayName string, healthPoints int) (*Session, error) {
	r.mu.Lock()
	if existing, ok := r.sessions[deviceID]; ok {
		existing.mu.Lock()
		live := existing.state != StateTerminated
		existing.mu.Unlock()
		if live {
			r.mu.Unlock()
			return existing, ErrDuplicateDevice
		}
	}

	s := newSession(deviceID, displayName, healthPoints, r.now())
	s.mu.Lock()
	r.sessions[deviceID] = s
	r.mu.Unlock()

	if err := r.subscriber.SubscribeDevice(deviceID); err != nil {
		r.logger.Error("subscribing device responses", "device_id", deviceID, "error", err)
	}

	return s, nil
}

// Lookup returns the session for deviceID, terminated or not.
func (r *Registry) Lookup(deviceID string) (*Session, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	s, ok := r.sessions[deviceID]
	return s, ok
}

// Remove terminates a session: its timer is cancelled, its response topic
// unsubscribed and its state set to Terminated. Counters are kept.
func (r *Registry) Remove(deviceID string) (*Session, error) {
	s, ok := r.Lookup(deviceID)
	if !ok {
		return nil, ErrUnknownDevice
	}

	s.mu.Lock()
	if s.state == StateTerminated {
		s.mu.Unlock()
		return s, ErrSessionTerminated
	}
	s.cancelTimerLocked()
	s.pendingChallenge = 0
	s.state = StateTerminated
	s.updatedAt = r.now()
	s.mu.Unlock()

	if err := r.subscriber.UnsubscribeDevice(deviceID); err != nil {
		r.logger.Warn("unsubscribing device responses", "device_id", deviceID, "error", err)
	}

	return s, nil
}

// Sessions returns every session ordered by device id.
func (r *Registry) Sessions() []*Session {
	r.mu.RLock()
	out := make([]*Session, 0, len(r.sessions))
	for _, s := range r.sessions {
		out = append(out, s)
	}
	r.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool {
		return out[i].deviceID < out[j].deviceID
	})
	return out
}

// Snapshots returns a copy of every session ordered by device id.
func (r *Registry) Snapshots() []Snapshot {
	sessions := r.Sessions()
	out := make([]Snapshot, 0, len(sessions))
	for _, s := range sessions {
		out = append(out, s.Snapshot())
	}
	return out
}

// Len returns the number of registered sessions, terminated ones included.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.sessions)
}
