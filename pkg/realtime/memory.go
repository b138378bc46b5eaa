package realtime

import (
	"context"
	"sync"
)

// Memory is an in-process broker. Each Connect returns a Channel for one peer;
// broadcasts are delivered synchronously to every other peer subscribed to the topic.
type Memory struct {
	mu    sync.RWMutex
	peers map[*MemoryChannel]struct{}
}

// NewMemory creates an empty broker
func NewMemory() *Memory {
	return &Memory{peers: make(map[*MemoryChannel]struct{})}
}

// Connect attaches a peer identified by senderID
func (m *Memory) Connect(senderID string) *MemoryChannel {
	ch := &MemoryChannel{
		broker:   m,
		senderID: senderID,
		subs:     make(map[string]map[*Subscription]Handler),
	}
	m.mu.Lock()
	m.peers[ch] = struct{}{}
	m.mu.Unlock()
	return ch
}

func (m *Memory) deliver(from *MemoryChannel, msg Message) {
	m.mu.RLock()
	peers := make([]*MemoryChannel, 0, len(m.peers))
	for p := range m.peers {
		if p != from {
			peers = append(peers, p)
		}
	}
	m.mu.RUnlock()

	for _, p := range peers {
		for _, h := range p.handlers(msg.Topic) {
			h(msg)
		}
	}
}

// MemoryChannel is one peer's view of a Memory broker
type MemoryChannel struct {
	broker   *Memory
	senderID string

	mu      sync.Mutex
	subs    map[string]map[*Subscription]Handler
	sent    []Message
	sendErr error
	closed  bool
}

// Subscribe registers h for topic
func (c *MemoryChannel) Subscribe(topic string, h Handler) (*Subscription, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return nil, ErrClosed
	}

	var sub *Subscription
	sub = NewSubscription(topic, func() {
		c.mu.Lock()
		defer c.mu.Unlock()
		if handlers, ok := c.subs[topic]; ok {
			delete(handlers, sub)
			if len(handlers) == 0 {
				delete(c.subs, topic)
			}
		}
	})
	if c.subs[topic] == nil {
		c.subs[topic] = make(map[*Subscription]Handler)
	}
	c.subs[topic][sub] = h
	return sub, nil
}

// Send records the broadcast and delivers it to the other peers
func (c *MemoryChannel) Send(ctx context.Context, topic, event string, payload interface{}) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	frame, err := EncodeFrame(topic, event, payload)
	if err != nil {
		return err
	}
	msg := Message{Topic: topic, Event: event, SenderID: c.senderID, Payload: frame.Payload}

	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return ErrClosed
	}
	c.sent = append(c.sent, msg)
	sendErr := c.sendErr
	c.mu.Unlock()

	if sendErr != nil {
		return sendErr
	}

	c.broker.deliver(c, msg)
	return nil
}

// FailSends makes every later Send return err without delivering. nil restores delivery.
func (c *MemoryChannel) FailSends(err error) {
	c.mu.Lock()
	c.sendErr = err
	c.mu.Unlock()
}

// Sent returns every broadcast this peer attempted, in order
func (c *MemoryChannel) Sent() []Message {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]Message, len(c.sent))
	copy(out, c.sent)
	return out
}

// SubscriptionCount returns the number of live subscriptions on topic
func (c *MemoryChannel) SubscriptionCount(topic string) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.subs[topic])
}

// Close detaches the peer from the broker
func (c *MemoryChannel) Close() {
	c.mu.Lock()
	c.closed = true
	c.subs = make(map[string]map[*Subscription]Handler)
	c.mu.Unlock()

	c.broker.mu.Lock()
	delete(c.broker.peers, c)
	c.broker.mu.Unlock()
}

func (c *MemoryChannel) handlers(topic string) []Handler {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]Handler, 0, len(c.subs[topic]))
	for _, h := range c.subs[topic] {
		out = append(out, h)
	}
	return out
}
