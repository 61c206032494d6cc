package api

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"

	"github.com/nerrad567/guessfleet/internal/auth"
	"github.com/nerrad567/guessfleet/internal/game"
	"github.com/nerrad567/guessfleet/internal/infrastructure/config"
	"github.com/nerrad567/guessfleet/internal/infrastructure/logging"
)

// Channel names have the form "session.<event>[:<device_id>]". <event> is an
// engine event type or "*". Without a device id the channel covers the fleet.
//
//	session.*                        every event from every device
//	session.guess_scored             one event type, every device
//	session.*:a4:cf:12:00:00:01      every event from one device
const (
	channelPrefix = "session."
	channelAny    = "*"
)

// Frame types.
const (
	FrameSubscribe   = "subscribe"
	FrameUnsubscribe = "unsubscribe"
	FramePing        = "ping"
	FramePong        = "pong"
	FrameAck         = "ack"
	FrameEvent       = "event"
	FrameSnapshot    = "snapshot"
	FrameError       = "error"
)

const (
	feedBuffer = 256

	defaultPingInterval = 30 * time.Second
	defaultPongTimeout  = 10 * time.Second
)

var knownEvents = map[game.EventType]bool{
	game.EventConnected:        true,
	game.EventChallengeIssued:  true,
	game.EventAck:              true,
	game.EventGuessScored:      true,
	game.EventSequenceMismatch: true,
	game.EventGameOver:         true,
	game.EventRestarted:        true,
	game.EventDisconnected:     true,
	game.EventGameFinished:     true,
}

// Frame is one message on the scoreboard feed, in either direction.
// Clients send subscribe, unsubscribe and ping frames; the server answers
// with ack, pong, snapshot, event and error frames.
type Frame struct {
	Type     string         `json:"type"`
	ID       string         `json:"id,omitempty"`
	Channel  string         `json:"channel,omitempty"`
	Channels []string       `json:"channels,omitempty"`
	Event    *game.Event    `json:"event,omitempty"`
	Session  *game.Snapshot `json:"session,omitempty"`
	Error    string         `json:"error,omitempty"`
	Time     time.Time      `json:"time,omitzero"`
}

// Channel is a parsed feed channel.
type Channel struct {
	Event  string
	Device string
}

// ParseChannel parses a channel name.
func ParseChannel(name string) (Channel, error) {
	rest, ok := strings.CutPrefix(name, channelPrefix)
	if !ok {
		return Channel{}, fmt.Errorf("channel %q must start with %q", name, channelPrefix)
	}
	event, device, hasDevice := strings.Cut(rest, ":")
	if event != channelAny && !knownEvents[game.EventType(event)] {
		return Channel{}, fmt.Errorf("channel %q: unknown event %q", name, event)
	}
	if hasDevice && device == "" {
		return Channel{}, fmt.Errorf("channel %q: empty device id", name)
	}
	return Channel{Event: event, Device: device}, nil
}

func (c Channel) String() string {
	if c.Device == "" {
		return channelPrefix + c.Event
	}
	return channelPrefix + c.Event + ":" + c.Device
}

func (c Channel) matches(ev game.Event) bool {
	if c.Device != "" && c.Device != ev.DeviceID {
		return false
	}
	return c.Event == channelAny || c.Event == string(ev.Type)
}

// Hub fans engine events out to scoreboard feeds. It is a game.Observer.
type Hub struct {
	cfg    config.WebSocketConfig
	logger *logging.Logger

	// sessions resolves a device id to its current snapshot. Optional.
	sessions func(deviceID string) (game.Snapshot, bool)

	mu    sync.RWMutex
	feeds map[*feed]struct{}

	dropped atomic.Uint64
}

// NewHub creates a hub with no feeds.
func NewHub(cfg config.WebSocketConfig, logger *logging.Logger) *Hub {
	return &Hub{
		cfg:    cfg,
		logger: logger,
		feeds:  make(map[*feed]struct{}),
	}
}

// Run blocks until ctx is cancelled, then closes every feed.
func (h *Hub) Run(ctx context.Context) {
	<-ctx.Done()

	h.mu.Lock()
	feeds := h.feeds
	h.feeds = make(map[*feed]struct{})
	h.mu.Unlock()

	for f := range feeds {
		f.close()
	}
}

// Notify sends ev to every feed with a matching channel. Feeds whose buffer
// is full miss the event; see Dropped.
func (h *Hub) Notify(ev game.Event) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	var data []byte
	for f := range h.feeds {
		if !f.wants(ev) {
			continue
		}
		if data == nil {
			var err error
			data, err = json.Marshal(Frame{
				Type:    FrameEvent,
				Channel: Channel{Event: string(ev.Type), Device: ev.DeviceID}.String(),
				Event:   &ev,
				Time:    ev.Time,
			})
			if err != nil {
				h.logger.Error("encoding feed event", "device_id", ev.DeviceID, "error", err)
				return
			}
		}
		f.push(data)
	}
}

// Feeds returns the number of open feeds.
func (h *Hub) Feeds() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.feeds)
}

// Dropped returns how many frames were discarded for slow feeds.
func (h *Hub) Dropped() uint64 {
	return h.dropped.Load()
}

// serve runs a feed on conn until either side closes it.
func (h *Hub) serve(conn *websocket.Conn, subject string) {
	f := &feed{
		hub:      h,
		conn:     conn,
		subject:  subject,
		out:      make(chan []byte, feedBuffer),
		done:     make(chan struct{}),
		channels: make(map[Channel]struct{}),
	}

	h.mu.Lock()
	h.feeds[f] = struct{}{}
	n := len(h.feeds)
	h.mu.Unlock()
	h.logger.Debug("scoreboard feed opened", "subject", subject, "feeds", n)

	defer func() {
		h.mu.Lock()
		delete(h.feeds, f)
		h.mu.Unlock()
		f.close()
		h.logger.Debug("scoreboard feed closed", "subject", subject)
	}()

	ping, pong := h.intervals()
	go f.writeLoop(ping, pong)
	f.readLoop(ping+pong, int64(h.cfg.MaxMessageSize))
}

func (h *Hub) intervals() (ping, pong time.Duration) {
	ping = time.Duration(h.cfg.PingInterval) * time.Second
	pong = time.Duration(h.cfg.PongTimeout) * time.Second
	if ping <= 0 {
		ping = defaultPingInterval
	}
	if pong <= 0 {
		pong = defaultPongTimeout
	}
	return ping, pong
}

// feed is one WebSocket client. Only writeLoop writes data frames to conn.
type feed struct {
	hub     *Hub
	conn    *websocket.Conn
	subject string

	out  chan []byte
	done chan struct{}
	once sync.Once

	mu       sync.RWMutex
	channels map[Channel]struct{}
}

func (f *feed) close() {
	f.once.Do(func() { close(f.done) })
}

func (f *feed) wants(ev game.Event) bool {
	f.mu.RLock()
	defer f.mu.RUnlock()
	for ch := range f.channels {
		if ch.matches(ev) {
			return true
		}
	}
	return false
}

func (f *feed) push(data []byte) {
	select {
	case <-f.done:
	case f.out <- data:
	default:
		f.hub.dropped.Add(1)
	}
}

func (f *feed) reply(fr Frame) {
	fr.Time = time.Now().UTC()
	data, err := json.Marshal(fr)
	if err != nil {
		return
	}
	f.push(data)
}

func (f *feed) readLoop(idle time.Duration, limit int64) {
	if limit > 0 {
		f.conn.SetReadLimit(limit)
	}
	extend := func() error { return f.conn.SetReadDeadline(time.Now().Add(idle)) }
	_ = extend() //nolint:errcheck // a failed deadline surfaces as a read error
	f.conn.SetPongHandler(func(string) error { return extend() })

	for {
		_, data, err := f.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				f.hub.logger.Warn("scoreboard feed read error", "subject", f.subject, "error", err)
			}
			return
		}
		_ = extend() //nolint:errcheck // see above
		f.handle(data)
	}
}

func (f *feed) writeLoop(ping, wait time.Duration) {
	ticker := time.NewTicker(ping)
	defer func() {
		ticker.Stop()
		f.conn.Close()
	}()

	for {
		select {
		case <-f.done:
			//nolint:errcheck // the peer may already be gone
			f.conn.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseGoingAway, ""), time.Now().Add(wait))
			return
		case data := <-f.out:
			//nolint:errcheck // a failed deadline surfaces as a write error
			f.conn.SetWriteDeadline(time.Now().Add(wait))
			if err := f.conn.WriteMessage(websocket.TextMessage, data); err != nil {
				return
			}
		case <-ticker.C:
			if err := f.conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(wait)); err != nil {
				return
			}
		}
	}
}

func (f *feed) handle(data []byte) {
	var in Frame
	if err := json.Unmarshal(data, &in); err != nil {
		f.reply(Frame{Type: FrameError, Error: "invalid JSON frame"})
		return
	}

	switch in.Type {
	case FrameSubscribe, FrameUnsubscribe:
		channels, err := parseChannels(in.Channels)
		if err != nil {
			f.reply(Frame{Type: FrameError, ID: in.ID, Error: err.Error()})
			return
		}

		f.mu.Lock()
		for _, ch := range channels {
			if in.Type == FrameSubscribe {
				f.channels[ch] = struct{}{}
			} else {
				delete(f.channels, ch)
			}
		}
		f.mu.Unlock()

		f.reply(Frame{Type: FrameAck, ID: in.ID, Channels: in.Channels})
		if in.Type == FrameSubscribe {
			f.sendSnapshots(channels)
		}
	case FramePing:
		f.reply(Frame{Type: FramePong, ID: in.ID})
	default:
		f.reply(Frame{Type: FrameError, ID: in.ID, Error: "unknown frame type " + in.Type})
	}
}

// sendSnapshots gives a client following a single device that device's
// current state, so it does not have to wait for the next event.
func (f *feed) sendSnapshots(channels []Channel) {
	if f.hub.sessions == nil {
		return
	}
	sent := make(map[string]bool)
	for _, ch := range channels {
		if ch.Device == "" || sent[ch.Device] {
			continue
		}
		sent[ch.Device] = true
		if snap, ok := f.hub.sessions(ch.Device); ok {
			f.reply(Frame{Type: FrameSnapshot, Channel: ch.String(), Session: &snap})
		}
	}
}

func parseChannels(names []string) ([]Channel, error) {
	if len(names) == 0 {
		return nil, fmt.Errorf("no channels given")
	}
	out := make([]Channel, 0, len(names))
	for _, name := range names {
		ch, err := ParseChannel(name)
		if err != nil {
			return nil, err
		}
		out = append(out, ch)
	}
	return out, nil
}

// handleWebSocket authenticates the caller and upgrades to a scoreboard feed.
// Browsers cannot set headers on a WebSocket handshake, so the token may
// also be passed as ?token=.
func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	token := r.URL.Query().Get("token")
	if token == "" {
		token = bearerToken(r)
	}
	claims, ok := s.verifyToken(w, token)
	if !ok {
		return
	}
	if !auth.HasPermission(claims.Role, auth.PermSessionRead) {
		writeError(w, http.StatusForbidden, "insufficient permissions")
		return
	}

	upgrader := websocket.Upgrader{
		CheckOrigin: func(r *http.Request) bool {
			origin := r.Header.Get("Origin")
			return origin == "" || s.isAllowedOrigin(origin)
		},
	}
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Warn("websocket upgrade failed", "error", err)
		return
	}

	s.hub.serve(conn, claims.Subject)
}
