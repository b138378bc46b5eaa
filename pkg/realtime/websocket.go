package realtime

import (
	"context"
	"errors"
	"fmt"
	"math"
	"math/rand"
	"net/http"
	"net/url"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
	json "github.com/json-iterator/go"
	"github.com/zfogg/sidechain/live/pkg/logger"
)

var (
	// ErrNotConnected is returned by Send while no connection is established
	ErrNotConnected = errors.New("realtime: not connected")

	// ErrClosed is returned after the channel has been closed
	ErrClosed = errors.New("realtime: channel closed")
)

const writeWait = 10 * time.Second

// Config holds WebSocket client configuration
type Config struct {
	URL                  string
	ConnectTimeoutMs     int
	HeartbeatIntervalMs  int
	ReconnectBaseDelayMs int
	ReconnectMaxDelayMs  int
	MaxReconnectAttempts int
}

// DefaultConfig returns a development configuration
func DefaultConfig() Config {
	return Config{
		URL:                  "ws://localhost:8787/api/v1/realtime",
		ConnectTimeoutMs:     15000,
		HeartbeatIntervalMs:  30000,
		ReconnectBaseDelayMs: 2000,
		ReconnectMaxDelayMs:  30000,
		MaxReconnectAttempts: -1, // unlimited
	}
}

// ProductionConfig returns a production configuration
func ProductionConfig(host string) Config {
	cfg := DefaultConfig()
	cfg.URL = "wss://" + host + "/api/v1/realtime"
	cfg.ReconnectMaxDelayMs = 60000
	return cfg
}

// ConnectionState represents the state of the WebSocket connection
type ConnectionState int

const (
	StateDisconnected ConnectionState = iota
	StateConnecting
	StateConnected
	StateReconnecting
	StateError
)

func (s ConnectionState) String() string {
	switch s {
	case StateDisconnected:
		return "disconnected"
	case StateConnecting:
		return "connecting"
	case StateConnected:
		return "connected"
	case StateReconnecting:
		return "reconnecting"
	case StateError:
		return "error"
	default:
		return "unknown"
	}
}

// ConnectionStats holds connection statistics
type ConnectionStats struct {
	MessagesReceived int64
	MessagesSent     int64
	ReconnectCount   int
	LastError        string
	ConnectedAt      time.Time
	DisconnectedAt   time.Time
}

// Websocket is a Channel over a reconnecting WebSocket connection to the relay.
// Topic subscriptions survive reconnects.
type Websocket struct {
	config Config
	token  string

	conn    *websocket.Conn
	connMu  sync.RWMutex
	writeMu sync.Mutex
	state   atomic.Value // ConnectionState

	reconnectAttempts int
	reconnectDelay    int

	subs   map[string]map[*Subscription]Handler
	subsMu sync.RWMutex

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	statsLock sync.RWMutex
	stats     ConnectionStats
}

// NewWebsocket creates a disconnected channel
func NewWebsocket(config Config, token string) *Websocket {
	ctx, cancel := context.WithCancel(context.Background())
	ws := &Websocket{
		config:         config,
		token:          token,
		subs:           make(map[string]map[*Subscription]Handler),
		ctx:            ctx,
		cancel:         cancel,
		reconnectDelay: config.ReconnectBaseDelayMs,
	}
	ws.state.Store(StateDisconnected)
	return ws
}

// Connect establishes the WebSocket connection and starts the read and heartbeat loops
func (w *Websocket) Connect(ctx context.Context) error {
	if w.ctx.Err() != nil {
		return ErrClosed
	}

	w.setState(StateConnecting)

	conn, err := w.dial(ctx)
	if err != nil {
		w.setState(StateError)
		w.recordError(err.Error())
		return fmt.Errorf("failed to connect to realtime relay: %w", err)
	}

	if !w.attach(conn) {
		return ErrClosed
	}
	w.reconnectAttempts = 0
	w.reconnectDelay = w.config.ReconnectBaseDelayMs

	w.wg.Add(2)
	go w.readLoop(conn)
	go w.heartbeatLoop()

	logger.Debug("WebSocket connected", "url", w.config.URL)
	return nil
}

// Close tears down the connection and stops reconnecting
func (w *Websocket) Close() error {
	w.cancel()

	w.connMu.Lock()
	conn := w.conn
	w.conn = nil
	w.connMu.Unlock()

	if conn != nil {
		w.writeMu.Lock()
		_ = conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, "bye"),
			time.Now().Add(time.Second))
		w.writeMu.Unlock()
		conn.Close()
	}

	w.wg.Wait()
	w.setState(StateDisconnected)
	w.recordDisconnected()

	logger.Debug("WebSocket disconnected")
	return nil
}

// IsConnected returns true if the connection is established
func (w *Websocket) IsConnected() bool {
	return w.getState() == StateConnected
}

// State returns the current connection state
func (w *Websocket) State() ConnectionState {
	return w.getState()
}

// Subscribe registers h for topic and joins the topic on the relay
func (w *Websocket) Subscribe(topic string, h Handler) (*Subscription, error) {
	if w.ctx.Err() != nil {
		return nil, ErrClosed
	}

	var sub *Subscription
	sub = NewSubscription(topic, func() { w.unsubscribe(topic, sub) })

	w.subsMu.Lock()
	first := len(w.subs[topic]) == 0
	if w.subs[topic] == nil {
		w.subs[topic] = make(map[*Subscription]Handler)
	}
	w.subs[topic][sub] = h
	w.subsMu.Unlock()

	if first && w.IsConnected() {
		if err := w.writeFrame(w.ctx, Frame{Type: FrameSubscribe, Topic: topic}); err != nil {
			// Rejoined on the next reconnect
			logger.Debug("Failed to send subscribe frame", "topic", topic, "error", err)
		}
	}

	return sub, nil
}

func (w *Websocket) unsubscribe(topic string, sub *Subscription) {
	w.subsMu.Lock()
	handlers := w.subs[topic]
	delete(handlers, sub)
	last := len(handlers) == 0
	if last {
		delete(w.subs, topic)
	}
	w.subsMu.Unlock()

	if last && w.IsConnected() {
		if err := w.writeFrame(w.ctx, Frame{Type: FrameUnsubscribe, Topic: topic}); err != nil {
			logger.Debug("Failed to send unsubscribe frame", "topic", topic, "error", err)
		}
	}
}

// Send broadcasts payload on topic
func (w *Websocket) Send(ctx context.Context, topic, event string, payload interface{}) error {
	frame, err := EncodeFrame(topic, event, payload)
	if err != nil {
		return err
	}
	return w.writeFrame(ctx, frame)
}

// GetStats returns connection statistics
func (w *Websocket) GetStats() ConnectionStats {
	w.statsLock.RLock()
	defer w.statsLock.RUnlock()
	return w.stats
}

// Private methods

func (w *Websocket) dial(ctx context.Context) (*websocket.Conn, error) {
	u, err := url.Parse(w.config.URL)
	if err != nil {
		return nil, err
	}

	if w.token != "" {
		q := u.Query()
		q.Set("token", w.token)
		u.RawQuery = q.Encode()
	}

	header := http.Header{}
	if w.token != "" {
		header.Set("Authorization", "Bearer "+w.token)
	}

	timeout := time.Duration(w.config.ConnectTimeoutMs) * time.Millisecond
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	dialCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	conn, _, err := websocket.DefaultDialer.DialContext(dialCtx, u.String(), header)
	return conn, err
}

// attach installs conn and rejoins every subscribed topic. After Close it closes
// conn instead and returns false.
func (w *Websocket) attach(conn *websocket.Conn) bool {
	w.connMu.Lock()
	if w.ctx.Err() != nil {
		w.connMu.Unlock()
		conn.Close()
		return false
	}
	w.conn = conn
	w.connMu.Unlock()

	w.setState(StateConnected)
	w.recordConnected()

	w.subsMu.RLock()
	topics := make([]string, 0, len(w.subs))
	for topic := range w.subs {
		topics = append(topics, topic)
	}
	w.subsMu.RUnlock()

	for _, topic := range topics {
		if err := w.writeFrame(w.ctx, Frame{Type: FrameSubscribe, Topic: topic}); err != nil {
			logger.Debug("Failed to rejoin topic", "topic", topic, "error", err)
		}
	}
	return true
}

func (w *Websocket) writeFrame(ctx context.Context, frame Frame) error {
	w.connMu.RLock()
	conn := w.conn
	w.connMu.RUnlock()

	if conn == nil {
		return ErrNotConnected
	}

	data, err := json.Marshal(frame)
	if err != nil {
		return err
	}

	deadline := time.Now().Add(writeWait)
	if d, ok := ctx.Deadline(); ok && d.Before(deadline) {
		deadline = d
	}

	w.writeMu.Lock()
	defer w.writeMu.Unlock()

	if err := conn.SetWriteDeadline(deadline); err != nil {
		return err
	}
	if err := conn.WriteMessage(websocket.TextMessage, data); err != nil {
		return err
	}

	w.recordMessageSent()
	return nil
}

func (w *Websocket) readLoop(conn *websocket.Conn) {
	defer w.wg.Done()

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			if w.ctx.Err() != nil {
				return
			}
			w.recordError(err.Error())
			logger.Error("WebSocket read error", "error", err)
			w.handleDisconnect(conn)
			return
		}

		w.recordMessageReceived()

		var frame Frame
		if err := json.Unmarshal(data, &frame); err != nil {
			logger.Warn("Dropping malformed frame", "error", err)
			continue
		}

		w.dispatch(frame)
	}
}

func (w *Websocket) dispatch(frame Frame) {
	switch frame.Type {
	case FrameBroadcast:
		w.subsMu.RLock()
		handlers := make([]Handler, 0, len(w.subs[frame.Topic]))
		for _, h := range w.subs[frame.Topic] {
			handlers = append(handlers, h)
		}
		w.subsMu.RUnlock()

		msg := Message{
			Topic:    frame.Topic,
			Event:    frame.Event,
			SenderID: frame.SenderID,
			Payload:  frame.Payload,
		}
		for _, h := range handlers {
			h(msg)
		}
	case FrameError:
		logger.Warn("Relay reported an error", "message", frame.Message, "topic", frame.Topic)
	case FrameSystem, FrameHeartbeat:
		logger.Debug("Relay frame", "type", frame.Type, "message", frame.Message)
	}
}

func (w *Websocket) heartbeatLoop() {
	defer w.wg.Done()

	interval := time.Duration(w.config.HeartbeatIntervalMs) * time.Millisecond
	if interval <= 0 {
		interval = 30 * time.Second
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-w.ctx.Done():
			return
		case <-ticker.C:
			if w.IsConnected() {
				if err := w.writeFrame(w.ctx, Frame{Type: FrameHeartbeat}); err != nil {
					logger.Debug("Failed to send heartbeat", "error", err)
				}
			}
		}
	}
}

func (w *Websocket) handleDisconnect(dead *websocket.Conn) {
	w.connMu.Lock()
	if w.conn == dead {
		w.conn = nil
	}
	w.connMu.Unlock()
	dead.Close()

	w.setState(StateReconnecting)
	w.recordDisconnected()

	// Attempt reconnection with exponential backoff
	for {
		if w.config.MaxReconnectAttempts >= 0 && w.reconnectAttempts >= w.config.MaxReconnectAttempts {
			w.setState(StateError)
			logger.Error("Max reconnection attempts reached")
			return
		}

		backoff := time.Duration(w.reconnectDelay) * time.Millisecond
		jitter := time.Duration(rand.Intn(1000)) * time.Millisecond
		waitTime := backoff + jitter

		logger.Debug("Reconnecting WebSocket", "attempt", w.reconnectAttempts+1, "wait_ms", waitTime.Milliseconds())

		select {
		case <-w.ctx.Done():
			return
		case <-time.After(waitTime):
		}

		conn, err := w.dial(w.ctx)
		if err != nil {
			w.reconnectAttempts++
			w.reconnectDelay = int(math.Min(
				float64(w.reconnectDelay*2),
				float64(w.config.ReconnectMaxDelayMs),
			))
			continue
		}

		if !w.attach(conn) {
			return
		}
		w.reconnectAttempts = 0
		w.reconnectDelay = w.config.ReconnectBaseDelayMs

		w.statsLock.Lock()
		w.stats.ReconnectCount++
		w.statsLock.Unlock()

		logger.Debug("WebSocket reconnected")

		w.wg.Add(1)
		go w.readLoop(conn)
		return
	}
}

func (w *Websocket) setState(state ConnectionState) {
	w.state.Store(state)
}

func (w *Websocket) getState() ConnectionState {
	return w.state.Load().(ConnectionState)
}

func (w *Websocket) recordMessageReceived() {
	w.statsLock.Lock()
	w.stats.MessagesReceived++
	w.statsLock.Unlock()
}

func (w *Websocket) recordMessageSent() {
	w.statsLock.Lock()
	w.stats.MessagesSent++
	w.statsLock.Unlock()
}

func (w *Websocket) recordError(errMsg string) {
	w.statsLock.Lock()
	w.stats.LastError = errMsg
	w.statsLock.Unlock()
}

func (w *Websocket) recordConnected() {
	w.statsLock.Lock()
	w.stats.ConnectedAt = time.Now()
	w.statsLock.Unlock()
}

func (w *Websocket) recordDisconnected() {
	w.statsLock.Lock()
	w.stats.DisconnectedAt = time.Now()
	w.statsLock.Unlock()
}
