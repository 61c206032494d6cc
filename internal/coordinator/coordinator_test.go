package coordinator

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/nerrad567/guessfleet/internal/game"
	"github.com/nerrad567/guessfleet/internal/infrastructure/mqtt"
)

// MockMQTTClient implements MQTTClient for testing.
type MockMQTTClient struct {
	mu            sync.Mutex
	subscriptions []mockSubscription
	handlers      map[string]mqtt.MessageHandler
	unsubscribed  []string
	subscribeErr  error

	// syncGate, when set, holds the acknowledged Subscribe/Unsubscribe
	// calls until closed, the way a broker that never sends SUBACK would.
	syncGate chan struct{}
}

type mockSubscription struct {
	Topic string
	QoS   byte
}

func NewMockMQTTClient() *MockMQTTClient {
	return &MockMQTTClient{
		handlers: make(map[string]mqtt.MessageHandler),
	}
}

func (m *MockMQTTClient) Subscribe(topic string, qos byte, handler mqtt.MessageHandler) error {
	m.waitGate()
	return m.SubscribeAsync(topic, qos, handler)
}

func (m *MockMQTTClient) SubscribeAsync(topic string, qos byte, handler mqtt.MessageHandler) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.subscribeErr != nil {
		return m.subscribeErr
	}
	m.subscriptions = append(m.subscriptions, mockSubscription{Topic: topic, QoS: qos})
	m.handlers[topic] = handler
	return nil
}

func (m *MockMQTTClient) Unsubscribe(topic string) error {
	m.waitGate()
	return m.UnsubscribeAsync(topic)
}

func (m *MockMQTTClient) UnsubscribeAsync(topic string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.handlers, topic)
	m.unsubscribed = append(m.unsubscribed, topic)
	return nil
}

func (m *MockMQTTClient) waitGate() {
	m.mu.Lock()
	gate := m.syncGate
	m.mu.Unlock()
	if gate != nil {
		<-gate
	}
}

func (m *MockMQTTClient) HasHandler(topic string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.handlers[topic]
	return ok
}

func (m *MockMQTTClient) GetUnsubscribed() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.unsubscribed...)
}

// SimulateMessage simulates receiving an MQTT message on a topic.
func (m *MockMQTTClient) SimulateMessage(topic string, payload []byte) error {
	m.mu.Lock()
	handler, ok := m.handlers[topic]
	m.mu.Unlock()
	if ok {
		return handler(topic, payload)
	}
	return nil
}

// MockPublisher records enqueued messages.
type MockPublisher struct {
	mu       sync.Mutex
	messages []struct {
		Topic   string
		Payload []byte
	}
}

func (p *MockPublisher) Enqueue(topic string, payload []byte) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.messages = append(p.messages, struct {
		Topic   string
		Payload []byte
	}{topic, payload})
	return nil
}

func (p *MockPublisher) OnTopic(topic string) [][]byte {
	p.mu.Lock()
	defer p.mu.Unlock()
	var out [][]byte
	for _, m := range p.messages {
		if m.Topic == topic {
			out = append(out, m.Payload)
		}
	}
	return out
}

func testRules() game.Rules {
	r := game.DefaultRules()
	r.SettleDelay = time.Hour
	r.RestartDelay = time.Hour
	return r
}

func setupCoordinator(t *testing.T) (*Coordinator, *MockMQTTClient, *MockPublisher) {
	t.Helper()

	client := NewMockMQTTClient()
	pub := &MockPublisher{}

	c, err := New(Options{
		MQTT:      client,
		Publisher: pub,
		Rules:     testRules(),
		Topics:    mqtt.NewTopics("esp32"),
		QoS:       1,
		EngineOptions: []game.Option{
			game.WithPicker(func(int, int) int { return 2 }),
		},
	})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	if err := c.Start(context.Background()); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	t.Cleanup(c.Stop)

	return c, client, pub
}

func lastChallenge(t *testing.T, pub *MockPublisher, deviceID string) game.ChallengeMessage {
	t.Helper()
	msgs := pub.OnTopic("esp32/" + deviceID + "/random")
	if len(msgs) == 0 {
		t.Fatalf("no challenge published for %s", deviceID)
	}
	var c game.ChallengeMessage
	if err := json.Unmarshal(msgs[len(msgs)-1], &c); err != nil {
		t.Fatalf("decoding challenge: %v", err)
	}
	return c
}

func TestNew_Validation(t *testing.T) {
	if _, err := New(Options{Publisher: &MockPublisher{}}); err == nil {
		t.Error("expected error without MQTT client")
	}
	if _, err := New(Options{MQTT: NewMockMQTTClient()}); err == nil {
		t.Error("expected error without publisher")
	}
}

func TestStart_SubscribesFleetTopics(t *testing.T) {
	_, client, _ := setupCoordinator(t)

	for _, topic := range []string{"esp32/connect", "esp32/disconnect"} {
		if !client.HasHandler(topic) {
			t.Errorf("missing subscription for %s", topic)
		}
	}
}

func TestStart_SubscribeFailure(t *testing.T) {
	client := NewMockMQTTClient()
	client.subscribeErr = errors.New("broker down")

	c, err := New(Options{MQTT: client, Publisher: &MockPublisher{}, Rules: testRules()})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	if err := c.Start(context.Background()); err == nil {
		t.Fatal("expected Start() to fail")
	}
}

func TestConnect_IssuesFirstChallenge(t *testing.T) {
	c, client, pub := setupCoordinator(t)

	err := client.SimulateMessage("esp32/connect", []byte(`{"id":"dev1","name":"Kitchen","hp":5}`))
	if err != nil {
		t.Fatalf("connect error = %v", err)
	}

	if !client.HasHandler("esp32/dev1/response") {
		t.Fatal("response topic not subscribed")
	}

	ch := lastChallenge(t, pub, "dev1")
	if ch.Sequence != 1 || ch.HP != 5 || ch.Min != game.ChallengeMin || ch.Max != game.ChallengeMax {
		t.Errorf("challenge = %+v", ch)
	}

	snap, ok := c.Engine().Registry().Lookup("dev1")
	if !ok {
		t.Fatal("session not registered")
	}
	if got := snap.Snapshot().DisplayName; got != "Kitchen" {
		t.Errorf("DisplayName = %q, want Kitchen", got)
	}
}

func TestResponse_GuessScoresAndAdvances(t *testing.T) {
	_, client, pub := setupCoordinator(t)

	_ = client.SimulateMessage("esp32/connect", []byte(`{"id":"dev1","name":"A","hp":5}`))
	_ = client.SimulateMessage("esp32/dev1/response", []byte(`{"ack":1}`))
	if err := client.SimulateMessage("esp32/dev1/response", []byte(`{"guess":2,"sequence":1}`)); err != nil {
		t.Fatalf("guess error = %v", err)
	}

	results := pub.OnTopic("esp32/dev1/result")
	if len(results) != 1 {
		t.Fatalf("results = %d, want 1", len(results))
	}
	var res game.ResultMessage
	if err := json.Unmarshal(results[0], &res); err != nil {
		t.Fatalf("decoding result: %v", err)
	}
	if res.Result != game.ResultCorrect || res.HP != 5 || res.Sequence != 1 {
		t.Errorf("result = %+v", res)
	}

	if ch := lastChallenge(t, pub, "dev1"); ch.Sequence != 2 {
		t.Errorf("next challenge sequence = %d, want 2", ch.Sequence)
	}
}

func TestResponse_MalformedIsDropped(t *testing.T) {
	c, client, pub := setupCoordinator(t)

	_ = client.SimulateMessage("esp32/connect", []byte(`{"id":"dev1","name":"A","hp":5}`))

	payloads := []string{
		`not json`,
		`{}`,
		`{"guess":2}`,
		`{"ack":1,"guess":2,"sequence":1}`,
	}
	for _, p := range payloads {
		if err := client.SimulateMessage("esp32/dev1/response", []byte(p)); err != nil {
			t.Errorf("payload %q returned %v", p, err)
		}
	}

	if got := c.Stats().Malformed; got != uint64(len(payloads)) {
		t.Errorf("Malformed = %d, want %d", got, len(payloads))
	}
	if n := len(pub.OnTopic("esp32/dev1/result")); n != 0 {
		t.Errorf("malformed traffic produced %d results", n)
	}
	if n := len(pub.OnTopic("esp32/dev1/random")); n != 1 {
		t.Errorf("challenges = %d, want 1", n)
	}
}

func TestResponse_UnknownDevice(t *testing.T) {
	c, _, pub := setupCoordinator(t)

	if err := c.handleResponse("esp32/ghost/response", []byte(`{"guess":1,"sequence":1}`)); err != nil {
		t.Fatalf("handleResponse() error = %v", err)
	}
	if got := c.Stats().Unknown; got != 1 {
		t.Errorf("Unknown = %d, want 1", got)
	}
	if n := len(pub.OnTopic("esp32/ghost/result")); n != 0 {
		t.Errorf("unknown device got %d results", n)
	}
}

func TestResponse_UnexpectedTopic(t *testing.T) {
	c, _, _ := setupCoordinator(t)

	err := c.handleResponse("elsewhere/dev1/response", []byte(`{"ack":1}`))
	if !errors.Is(err, ErrUnexpectedTopic) {
		t.Errorf("error = %v, want ErrUnexpectedTopic", err)
	}
}

func TestConnect_Malformed(t *testing.T) {
	c, client, _ := setupCoordinator(t)

	for _, p := range []string{`{"name":"no id"}`, `[1,2]`} {
		_ = client.SimulateMessage("esp32/connect", []byte(p))
	}

	if got := c.Stats().Malformed; got != 2 {
		t.Errorf("Malformed = %d, want 2", got)
	}
	if n := c.Engine().Registry().Len(); n != 0 {
		t.Errorf("registry has %d sessions", n)
	}
}

func TestConnect_RestartFlag(t *testing.T) {
	c, client, pub := setupCoordinator(t)

	_ = client.SimulateMessage("esp32/connect", []byte(`{"id":"dev1","name":"A","hp":5}`))
	_ = client.SimulateMessage("esp32/dev1/response", []byte(`{"guess":3,"sequence":1}`))
	if ch := lastChallenge(t, pub, "dev1"); ch.HP != 4 {
		t.Fatalf("hp after miss = %d, want 4", ch.HP)
	}

	if err := client.SimulateMessage("esp32/connect", []byte(`{"id":"dev1","restart":true}`)); err != nil {
		t.Fatalf("restart error = %v", err)
	}

	if ch := lastChallenge(t, pub, "dev1"); ch.HP != 5 {
		t.Errorf("hp after restart = %d, want 5", ch.HP)
	}
	if got := c.Engine().Registry().Len(); got != 1 {
		t.Errorf("registry len = %d, want 1", got)
	}
}

func TestConnect_RestartUnknownDevice(t *testing.T) {
	c, client, _ := setupCoordinator(t)

	if err := client.SimulateMessage("esp32/connect", []byte(`{"id":"ghost","restart":true}`)); err != nil {
		t.Fatalf("error = %v", err)
	}
	if got := c.Stats().Unknown; got != 1 {
		t.Errorf("Unknown = %d, want 1", got)
	}
	if c.Engine().Registry().Len() != 0 {
		t.Error("restart request created a session")
	}
}

func TestDisconnect_UnsubscribesDevice(t *testing.T) {
	c, client, _ := setupCoordinator(t)

	_ = client.SimulateMessage("esp32/connect", []byte(`{"id":"dev1","name":"A","hp":5}`))
	if err := client.SimulateMessage("esp32/disconnect", []byte(`{"id":"dev1"}`)); err != nil {
		t.Fatalf("disconnect error = %v", err)
	}

	if client.HasHandler("esp32/dev1/response") {
		t.Error("response topic still subscribed after disconnect")
	}

	s, ok := c.Engine().Registry().Lookup("dev1")
	if !ok {
		t.Fatal("terminated session should remain until reconnect")
	}
	if st := s.Snapshot().State; st != game.StateTerminated {
		t.Errorf("state = %v, want terminated", st)
	}

	// Second disconnect is rejected quietly.
	_ = client.SimulateMessage("esp32/disconnect", []byte(`{"id":"dev1"}`))
	if got := c.Stats().Rejected; got != 1 {
		t.Errorf("Rejected = %d, want 1", got)
	}
}

func TestDeviceSubscriptions_DoNotWaitForBroker(t *testing.T) {
	c, client, pub := setupCoordinator(t)

	gate := make(chan struct{})
	client.mu.Lock()
	client.syncGate = gate
	client.mu.Unlock()
	t.Cleanup(func() { close(gate) })

	done := make(chan struct{})
	go func() {
		defer close(done)
		_ = client.SimulateMessage("esp32/connect", []byte(`{"id":"dev1","name":"A","hp":5}`))
		_ = client.SimulateMessage("esp32/disconnect", []byte(`{"id":"dev1"}`))
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("connect/disconnect handlers blocked on subscription acknowledgement")
	}

	if len(pub.OnTopic("esp32/dev1/random")) != 1 {
		t.Error("expected one challenge while the broker was unresponsive")
	}
	if got := client.GetUnsubscribed(); len(got) != 1 || got[0] != "esp32/dev1/response" {
		t.Errorf("unsubscribed = %v", got)
	}
	if c.Stats().Received != 2 {
		t.Errorf("Received = %d, want 2", c.Stats().Received)
	}
}

func TestStop_Idempotent(t *testing.T) {
	c, client, _ := setupCoordinator(t)

	c.Stop()
	c.Stop()

	unsub := client.GetUnsubscribed()
	joined := strings.Join(unsub, ",")
	if strings.Count(joined, "esp32/connect") != 1 || strings.Count(joined, "esp32/disconnect") != 1 {
		t.Errorf("unsubscribed = %v", unsub)
	}

	_ = client.SimulateMessage("esp32/connect", []byte(`{"id":"late","name":"A","hp":5}`))
	if c.Engine().Registry().Len() != 0 {
		t.Error("connect accepted after Stop")
	}
}

func TestDecodeResponse(t *testing.T) {
	tests := []struct {
		name    string
		payload string
		want    Response
		wantErr bool
	}{
		{name: "ack", payload: `{"ack":4}`, want: AckResponse{Sequence: 4}},
		{name: "guess", payload: `{"guess":3,"sequence":7}`, want: GuessResponse{Guess: 3, Sequence: 7}},
		{name: "guess zero sequence", payload: `{"guess":1,"sequence":0}`, want: GuessResponse{Guess: 1, Sequence: 0}},
		{name: "ack with extra fields", payload: `{"ack":2,"rssi":-60}`, want: AckResponse{Sequence: 2}},
		{name: "empty object", payload: `{}`, wantErr: true},
		{name: "guess missing sequence", payload: `{"guess":2}`, wantErr: true},
		{name: "both", payload: `{"ack":1,"guess":2,"sequence":1}`, wantErr: true},
		{name: "string guess", payload: `{"guess":"2","sequence":1}`, wantErr: true},
		{name: "not json", payload: `guess=2`, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := DecodeResponse([]byte(tt.payload))
			if tt.wantErr {
				if !errors.Is(err, ErrMalformedMessage) {
					t.Errorf("error = %v, want ErrMalformedMessage", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got != tt.want {
				t.Errorf("DecodeResponse() = %#v, want %#v", got, tt.want)
			}
		})
	}
}
