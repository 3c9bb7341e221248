// Package pubsub provides a small in-process topic broker the orchestrator
// publishes task events to. Real-time push to external clients is an
// external collaborator; this broker only fans out in-process.
package pubsub

import (
	"strings"
	"sync"

	"github.com/sirupsen/logrus"

	"github.com/unblockhq/unblock/internal/clock"
)

const maxLog = 200

// Message is one published event.
type Message struct {
	Topic         string         `json:"topic"`
	Payload       map[string]any `json:"payload"`
	PublishedAtMs int64          `json:"publishedAtMs"`
}

// Subscriber receives messages whose topic matches its pattern.
type Subscriber struct {
	ID           string
	TopicPattern string
	Callback     func(Message)
}

// Broker fans published messages out to matching subscribers and keeps a
// bounded log of recent messages for the audit endpoint.
type Broker struct {
	mu          sync.Mutex
	subscribers map[string]Subscriber
	messageLog  []Message
	clock       clock.Clock
	log         logrus.FieldLogger
}

// NewBroker creates an empty broker.
func NewBroker(clk clock.Clock, log logrus.FieldLogger) *Broker {
	return &Broker{
		subscribers: make(map[string]Subscriber),
		clock:       clk,
		log:         log,
	}
}

// Subscribe registers a subscriber and returns its unsubscribe function.
func (b *Broker) Subscribe(sub Subscriber) func() {
	b.mu.Lock()
	b.subscribers[sub.ID] = sub
	b.mu.Unlock()
	return func() {
		b.mu.Lock()
		delete(b.subscribers, sub.ID)
		b.mu.Unlock()
	}
}

// Publish logs the message and delivers it to every matching subscriber.
// Callbacks run synchronously; a panicking subscriber is recovered and
// logged rather than taking the publisher down.
func (b *Broker) Publish(topic string, payload map[string]any) {
	msg := Message{Topic: topic, Payload: payload, PublishedAtMs: b.clock.NowMs()}

	b.mu.Lock()
	b.messageLog = append(b.messageLog, msg)
	if len(b.messageLog) > maxLog {
		b.messageLog = b.messageLog[len(b.messageLog)-maxLog:]
	}
	subs := make([]Subscriber, 0, len(b.subscribers))
	for _, s := range b.subscribers {
		subs = append(subs, s)
	}
	b.mu.Unlock()

	for _, sub := range subs {
		if !Matches(sub.TopicPattern, topic) {
			continue
		}
		func() {
			defer func() {
				if r := recover(); r != nil {
					b.log.WithFields(logrus.Fields{
						"subscriber": sub.ID,
						"topic":      topic,
						"panic":      r,
					}).Error("pubsub subscriber panicked")
				}
			}()
			sub.Callback(msg)
		}()
	}
}

// Log returns a copy of the recent message log, oldest first.
func (b *Broker) Log() []Message {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([]Message, len(b.messageLog))
	copy(out, b.messageLog)
	return out
}

// Matches reports whether a topic pattern matches a topic. "*" matches
// everything; "tasks/*" matches any topic under the "tasks/" prefix.
func Matches(pattern, topic string) bool {
	if pattern == "*" || pattern == topic {
		return true
	}
	if strings.HasSuffix(pattern, "/*") {
		return strings.HasPrefix(topic, pattern[:len(pattern)-1])
	}
	return false
}
