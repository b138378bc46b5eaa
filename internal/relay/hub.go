package relay

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/coder/websocket"
	"github.com/gin-gonic/gin"
	json "github.com/json-iterator/go"
	"github.com/zfogg/sidechain/live/pkg/api"
	"github.com/zfogg/sidechain/live/pkg/realtime"
	"go.uber.org/zap"
)

const (
	// Time allowed to write a frame to the peer
	writeWait = 10 * time.Second

	// Peers must send something (a heartbeat at least) within this period
	readWait = 90 * time.Second

	// Interval between pings from the relay
	pingPeriod = 30 * time.Second

	maxFrameSize   = 64 * 1024
	sendBufferSize = 256

	// PresenceTopic carries presence events; PresenceEvent updates the sender's status
	PresenceTopic = "presence"
	PresenceEvent = "presence"
)

// RateLimitConfig bounds inbound frames per connection
type RateLimitConfig struct {
	MaxFramesPerSecond int
	BurstSize          int
}

// DefaultRateLimitConfig returns sensible defaults
func DefaultRateLimitConfig() RateLimitConfig {
	return RateLimitConfig{
		MaxFramesPerSecond: 20,
		BurstSize:          40,
	}
}

// RateLimiter implements a simple token bucket rate limiter
type RateLimiter struct {
	tokens    float64
	maxTokens float64
	refill    float64
	lastTime  time.Time
	mu        sync.Mutex
}

// NewRateLimiter creates a new rate limiter
func NewRateLimiter(maxPerSecond int, burst int) *RateLimiter {
	return &RateLimiter{
		tokens:    float64(burst),
		maxTokens: float64(burst),
		refill:    float64(maxPerSecond),
		lastTime:  time.Now(),
	}
}

// Allow checks if an action is allowed and consumes a token
func (r *RateLimiter) Allow() bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	now := time.Now()
	r.tokens += now.Sub(r.lastTime).Seconds() * r.refill
	r.lastTime = now
	if r.tokens > r.maxTokens {
		r.tokens = r.maxTokens
	}

	if r.tokens >= 1 {
		r.tokens--
		return true
	}
	return false
}

// Hub routes broadcast frames between connections subscribed to the same topic
type Hub struct {
	auth      *Authenticator
	roster    RosterStore
	metrics   *Metrics
	log       *zap.Logger
	rateLimit RateLimitConfig

	mu     sync.RWMutex
	conns  map[*peer]struct{}
	topics map[string]map[*peer]struct{}
	users  map[string]map[*peer]struct{}

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewHub creates a hub. roster receives presence changes.
func NewHub(auth *Authenticator, roster RosterStore, metrics *Metrics, log *zap.Logger) *Hub {
	ctx, cancel := context.WithCancel(context.Background())
	return &Hub{
		auth:      auth,
		roster:    roster,
		metrics:   metrics,
		log:       log,
		rateLimit: DefaultRateLimitConfig(),
		conns:     make(map[*peer]struct{}),
		topics:    make(map[string]map[*peer]struct{}),
		users:     make(map[string]map[*peer]struct{}),
		ctx:       ctx,
		cancel:    cancel,
	}
}

// SetRateLimitConfig applies to connections accepted afterwards
func (h *Hub) SetRateLimitConfig(config RateLimitConfig) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.rateLimit = config
}

// peer is one accepted websocket connection
type peer struct {
	hub     *Hub
	conn    *websocket.Conn
	id      Identity
	send    chan []byte
	limiter *RateLimiter
	topics  map[string]struct{} // guarded by hub.mu

	ctx    context.Context
	cancel context.CancelFunc
}

// ServeWS upgrades the request and serves the connection until it closes
func (h *Hub) ServeWS(c *gin.Context) {
	id, err := h.auth.Authenticate(c.Request)
	if err != nil {
		h.log.Debug("WebSocket auth failed", zap.Error(err))
		c.JSON(http.StatusUnauthorized, gin.H{
			"error":   "authentication_failed",
			"message": err.Error(),
		})
		return
	}

	conn, err := websocket.Accept(upgradeWriter(c), c.Request, &websocket.AcceptOptions{
		InsecureSkipVerify: true,
	})
	if err != nil {
		h.log.Warn("WebSocket upgrade failed", zap.Error(err))
		return
	}
	conn.SetReadLimit(maxFrameSize)

	h.mu.RLock()
	limits := h.rateLimit
	h.mu.RUnlock()

	ctx, cancel := context.WithCancel(h.ctx)
	p := &peer{
		hub:     h,
		conn:    conn,
		id:      id,
		send:    make(chan []byte, sendBufferSize),
		limiter: NewRateLimiter(limits.MaxFramesPerSecond, limits.BurstSize),
		topics:  make(map[string]struct{}),
		ctx:     ctx,
		cancel:  cancel,
	}

	h.wg.Add(1)
	defer h.wg.Done()

	first := h.register(p)
	if first {
		h.markOnline(ctx, id)
	}

	p.enqueue(realtime.Frame{Type: realtime.FrameSystem, Message: "connected", SenderID: id.UserID})

	go p.writePump()
	p.readPump()

	if last := h.unregister(p); last {
		h.markOffline(id)
	}
}

// upgradeWriter returns the writer under gin's wrapper. gin refuses to hijack once
// the header has been written, and Accept writes the 101 before hijacking.
func upgradeWriter(c *gin.Context) http.ResponseWriter {
	if u, ok := c.Writer.(interface{ Unwrap() http.ResponseWriter }); ok {
		return u.Unwrap()
	}
	return c.Writer
}

// SubscriberCount returns how many connections joined topic
func (h *Hub) SubscriberCount(topic string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.topics[topic])
}

// ConnectionCount returns the number of open connections
func (h *Hub) ConnectionCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.conns)
}

// Shutdown closes every connection and waits for their handlers to return
func (h *Hub) Shutdown(ctx context.Context) error {
	h.cancel()

	done := make(chan struct{})
	go func() {
		h.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (h *Hub) register(p *peer) bool {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.conns[p] = struct{}{}
	if h.users[p.id.UserID] == nil {
		h.users[p.id.UserID] = make(map[*peer]struct{})
	}
	h.users[p.id.UserID][p] = struct{}{}
	h.metrics.ActiveConnections.Inc()

	h.log.Info("Client connected", zap.String("user", p.id.UserID), zap.Int("active", len(h.conns)))
	return len(h.users[p.id.UserID]) == 1
}

func (h *Hub) unregister(p *peer) bool {
	h.mu.Lock()
	defer h.mu.Unlock()

	if _, ok := h.conns[p]; !ok {
		return false
	}
	delete(h.conns, p)
	for topic := range p.topics {
		h.leaveLocked(p, topic)
	}

	last := false
	if set, ok := h.users[p.id.UserID]; ok {
		delete(set, p)
		if len(set) == 0 {
			delete(h.users, p.id.UserID)
			last = true
		}
	}
	h.metrics.ActiveConnections.Dec()

	h.log.Info("Client disconnected", zap.String("user", p.id.UserID), zap.Int("active", len(h.conns)))
	return last
}

func (h *Hub) join(p *peer, topic string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.topics[topic] == nil {
		h.topics[topic] = make(map[*peer]struct{})
	}
	h.topics[topic][p] = struct{}{}
	p.topics[topic] = struct{}{}
}

func (h *Hub) leave(p *peer, topic string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.leaveLocked(p, topic)
}

func (h *Hub) leaveLocked(p *peer, topic string) {
	delete(p.topics, topic)
	if set, ok := h.topics[topic]; ok {
		delete(set, p)
		if len(set) == 0 {
			delete(h.topics, topic)
		}
	}
}

// broadcast delivers frame to every subscriber of its topic except from.
// A subscriber whose buffer is full misses the frame.
func (h *Hub) broadcast(from *peer, frame realtime.Frame) {
	data, err := json.Marshal(frame)
	if err != nil {
		h.log.Error("Error marshaling broadcast frame", zap.Error(err))
		return
	}

	h.mu.RLock()
	targets := make([]*peer, 0, len(h.topics[frame.Topic]))
	for p := range h.topics[frame.Topic] {
		if p != from {
			targets = append(targets, p)
		}
	}
	h.mu.RUnlock()

	for _, p := range targets {
		if p.enqueueRaw(data) {
			h.metrics.BroadcastsSent.Inc()
		}
	}
}

func (h *Hub) markOnline(ctx context.Context, id Identity) {
	rec := api.PresenceRecord{UserID: id.UserID, Username: id.Username, Status: "online"}
	if err := h.roster.Upsert(ctx, rec); err != nil {
		h.log.Warn("Failed to record presence", zap.String("user", id.UserID), zap.Error(err))
	}
}

func (h *Hub) markOffline(id Identity) {
	ctx, cancel := context.WithTimeout(context.Background(), writeWait)
	defer cancel()
	if err := h.roster.Remove(ctx, id.UserID); err != nil {
		h.log.Warn("Failed to clear presence", zap.String("user", id.UserID), zap.Error(err))
	}
}

func (h *Hub) updatePresence(ctx context.Context, id Identity, update api.PresenceUpdate) error {
	return h.roster.Upsert(ctx, api.PresenceRecord{
		UserID:   id.UserID,
		Username: id.Username,
		Status:   update.Status,
		Room:     update.Room,
	})
}

func (p *peer) readPump() {
	defer p.close(websocket.StatusNormalClosure, "closing")

	for {
		readCtx, cancel := context.WithTimeout(p.ctx, readWait)
		_, data, err := p.conn.Read(readCtx)
		cancel()

		if err != nil {
			status := websocket.CloseStatus(err)
			if status != websocket.StatusNormalClosure && status != websocket.StatusGoingAway && p.ctx.Err() == nil {
				p.hub.log.Debug("Read error for client", zap.String("user", p.id.UserID), zap.Error(err))
			}
			return
		}

		if !p.limiter.Allow() {
			p.hub.metrics.RateLimited.Inc()
			p.sendError("", "Too many messages, please slow down")
			continue
		}

		var frame realtime.Frame
		if err := json.Unmarshal(data, &frame); err != nil {
			p.hub.metrics.FramesReceived.WithLabelValues("invalid").Inc()
			p.sendError("", "Failed to parse frame")
			continue
		}
		p.hub.metrics.FramesReceived.WithLabelValues(string(frame.Type)).Inc()

		p.handle(frame)
	}
}

func (p *peer) handle(frame realtime.Frame) {
	h := p.hub

	switch frame.Type {
	case realtime.FrameSubscribe:
		if frame.Topic == "" {
			p.sendError("", "subscribe requires a topic")
			return
		}
		h.join(p, frame.Topic)
		p.enqueue(realtime.Frame{Type: realtime.FrameSystem, Topic: frame.Topic, Message: "subscribed"})

	case realtime.FrameUnsubscribe:
		h.leave(p, frame.Topic)

	case realtime.FrameHeartbeat:
		if err := h.roster.Touch(p.ctx, p.id.UserID); err != nil {
			h.log.Debug("Failed to refresh presence", zap.String("user", p.id.UserID), zap.Error(err))
		}
		p.enqueue(realtime.Frame{Type: realtime.FrameHeartbeat})

	case realtime.FrameBroadcast:
		if frame.Topic == "" || frame.Event == "" {
			p.sendError(frame.Topic, "broadcast requires a topic and an event")
			return
		}
		frame.SenderID = p.id.UserID

		if frame.Topic == PresenceTopic && frame.Event == PresenceEvent {
			var update api.PresenceUpdate
			if err := json.Unmarshal(frame.Payload, &update); err != nil || update.Status == "" {
				p.sendError(frame.Topic, "invalid presence payload")
				return
			}
			if err := h.updatePresence(p.ctx, p.id, update); err != nil {
				h.log.Warn("Failed to update presence", zap.String("user", p.id.UserID), zap.Error(err))
			}
		}

		h.broadcast(p, frame)

	default:
		p.sendError(frame.Topic, "unknown frame type: "+string(frame.Type))
	}
}

func (p *peer) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		p.close(websocket.StatusGoingAway, "server shutdown")
	}()

	for {
		select {
		case <-p.ctx.Done():
			return

		case data := <-p.send:
			ctx, cancel := context.WithTimeout(p.ctx, writeWait)
			err := p.conn.Write(ctx, websocket.MessageText, data)
			cancel()
			if err != nil {
				p.hub.log.Debug("Write error for client", zap.String("user", p.id.UserID), zap.Error(err))
				return
			}

		case <-ticker.C:
			ctx, cancel := context.WithTimeout(p.ctx, writeWait)
			err := p.conn.Ping(ctx)
			cancel()
			if err != nil {
				p.hub.log.Debug("Ping failed for client", zap.String("user", p.id.UserID), zap.Error(err))
				return
			}
		}
	}
}

func (p *peer) enqueue(frame realtime.Frame) {
	data, err := json.Marshal(frame)
	if err != nil {
		return
	}
	p.enqueueRaw(data)
}

func (p *peer) enqueueRaw(data []byte) bool {
	select {
	case p.send <- data:
		return true
	case <-p.ctx.Done():
		return false
	default:
		return false
	}
}

func (p *peer) sendError(topic, message string) {
	p.enqueue(realtime.Frame{Type: realtime.FrameError, Topic: topic, Message: message})
}

func (p *peer) close(code websocket.StatusCode, reason string) {
	p.cancel()
	p.conn.Close(code, reason)
}
