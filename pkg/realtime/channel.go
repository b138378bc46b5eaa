// Package realtime is the publish/subscribe channel the typing coordinator and
// presence announcements travel over. Delivery is at-most-once and unordered.
package realtime

import (
	"context"
	"sync"

	json "github.com/json-iterator/go"
)

// FrameType identifies a wire frame
type FrameType string

const (
	FrameSubscribe   FrameType = "subscribe"
	FrameUnsubscribe FrameType = "unsubscribe"
	FrameBroadcast   FrameType = "broadcast"
	FrameHeartbeat   FrameType = "heartbeat"
	FrameSystem      FrameType = "system"
	FrameError       FrameType = "error"
)

// Frame is the JSON envelope exchanged with the relay
type Frame struct {
	Type     FrameType       `json:"type"`
	Topic    string          `json:"topic,omitempty"`
	Event    string          `json:"event,omitempty"`
	Payload  json.RawMessage `json:"payload,omitempty"`
	SenderID string          `json:"sender_id,omitempty"`
	Message  string          `json:"message,omitempty"`
}

// Message is a broadcast delivered to a subscription
type Message struct {
	Topic    string
	Event    string
	SenderID string
	Payload  json.RawMessage
}

// Decode unmarshals the payload into v
func (m Message) Decode(v interface{}) error {
	return json.Unmarshal(m.Payload, v)
}

// Handler receives broadcasts for a subscribed topic
type Handler func(msg Message)

// Channel is a topic-based broadcast channel
type Channel interface {
	// Subscribe registers h for broadcasts on topic until the subscription is disposed
	Subscribe(topic string, h Handler) (*Subscription, error)

	// Send broadcasts payload to the other subscribers of topic
	Send(ctx context.Context, topic, event string, payload interface{}) error
}

// Subscription is the disposal handle returned by Subscribe
type Subscription struct {
	topic   string
	once    sync.Once
	release func()
}

// NewSubscription builds a handle whose Unsubscribe runs release exactly once
func NewSubscription(topic string, release func()) *Subscription {
	return &Subscription{topic: topic, release: release}
}

// Topic returns the subscribed topic
func (s *Subscription) Topic() string {
	return s.topic
}

// Unsubscribe stops delivery. Safe to call more than once.
func (s *Subscription) Unsubscribe() {
	if s == nil {
		return
	}
	s.once.Do(func() {
		if s.release != nil {
			s.release()
		}
	})
}

// EncodeFrame builds a broadcast frame for payload
func EncodeFrame(topic, event string, payload interface{}) (Frame, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return Frame{}, err
	}
	return Frame{Type: FrameBroadcast, Topic: topic, Event: event, Payload: raw}, nil
}
