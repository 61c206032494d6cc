package game

import (
	"encoding/json"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/nerrad567/guessfleet/internal/infrastructure/mqtt"
)

type published struct {
	topic   string
	payload []byte
}

// mockPublisher records every enqueued message.
type mockPublisher struct {
	mu       sync.Mutex
	messages []published
	err      error
}

func (m *mockPublisher) Enqueue(topic string, payload []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.messages = append(m.messages, published{topic: topic, payload: payload})
	return m.err
}

// withSuffix returns payloads whose topic ends in suffix, in publish order.
func (m *mockPublisher) withSuffix(suffix string) [][]byte {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out [][]byte
	for _, msg := range m.messages {
		if strings.HasSuffix(msg.topic, suffix) {
			out = append(out, msg.payload)
		}
	}
	return out
}

func (m *mockPublisher) challenges() []ChallengeMessage {
	var out []ChallengeMessage
	for _, p := range m.withSuffix("/random") {
		var c ChallengeMessage
		_ = json.Unmarshal(p, &c)
		out = append(out, c)
	}
	return out
}

// results splits the result topic into scored results and game-over messages.
func (m *mockPublisher) results() (scored []ResultMessage, over []GameOverMessage) {
	for _, p := range m.withSuffix("/result") {
		if strings.Contains(string(p), `"gameOver"`) {
			var g GameOverMessage
			_ = json.Unmarshal(p, &g)
			over = append(over, g)
			continue
		}
		var r ResultMessage
		_ = json.Unmarshal(p, &r)
		scored = append(scored, r)
	}
	return scored, over
}

func (m *mockPublisher) lastChallenge(t *testing.T) ChallengeMessage {
	t.Helper()
	c := m.challenges()
	if len(c) == 0 {
		t.Fatal("no challenge published")
	}
	return c[len(c)-1]
}

// mockSubscriber records subscription changes.
type mockSubscriber struct {
	mu           sync.Mutex
	subscribed   []string
	unsubscribed []string
	err          error

	// onSubscribe runs after the subscription is recorded.
	onSubscribe func(id string)
}

func (m *mockSubscriber) SubscribeDevice(id string) error {
	m.mu.Lock()
	m.subscribed = append(m.subscribed, id)
	hook, err := m.onSubscribe, m.err
	m.mu.Unlock()
	if hook != nil {
		hook(id)
	}
	return err
}

func (m *mockSubscriber) UnsubscribeDevice(id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.unsubscribed = append(m.unsubscribed, id)
	return nil
}

// eventRecorder collects events.
type eventRecorder struct {
	mu     sync.Mutex
	events []Event
}

func (r *eventRecorder) Notify(ev Event) {
	r.mu.Lock()
	r.events = append(r.events, ev)
	r.mu.Unlock()
}

func (r *eventRecorder) ofType(typ EventType) []Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []Event
	for _, ev := range r.events {
		if ev.Type == typ {
			out = append(out, ev)
		}
	}
	return out
}

// secret is the value every test challenge hides.
const secret = 2

func fixedPicker(int, int) int { return secret }

func fastRules() Rules {
	r := DefaultRules()
	r.SettleDelay = 20 * time.Millisecond
	r.RestartDelay = 40 * time.Millisecond
	return r
}

type harness struct {
	engine *Engine
	pub    *mockPublisher
	sub    *mockSubscriber
	events *eventRecorder
}

func newHarness(t *testing.T, rules Rules, opts ...Option) *harness {
	t.Helper()
	h := &harness{
		pub:    &mockPublisher{},
		sub:    &mockSubscriber{},
		events: &eventRecorder{},
	}
	opts = append([]Option{WithPicker(fixedPicker), WithObserver(h.events)}, opts...)
	h.engine = NewEngine(rules, mqtt.NewTopics("esp32"), h.pub, h.sub, opts...)
	t.Cleanup(h.engine.Shutdown)
	return h
}

func (h *harness) snapshot(t *testing.T, id string) Snapshot {
	t.Helper()
	s, ok := h.engine.Registry().Lookup(id)
	if !ok {
		t.Fatalf("session %q not found", id)
	}
	return s.Snapshot()
}

// guess answers the outstanding challenge with value.
func (h *harness) guess(t *testing.T, id string, value int) {
	t.Helper()
	seq := h.snapshot(t, id).Sequence
	if err := h.engine.ReceiveGuess(id, value, seq); err != nil {
		t.Fatalf("ReceiveGuess(%d, seq %d) error = %v", value, seq, err)
	}
}

func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %s", what)
}
