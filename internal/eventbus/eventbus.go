// Package eventbus is a small synchronous publish/subscribe registry
// keyed by topic name, used to fan protocol events out to external
// collaborators (an HTTP surface, a persistence layer) without the
// engine knowing who, if anyone, is listening.
package eventbus

import "sync"

// Topic names the three fixed channels the engine publishes on.
type Topic string

const (
	TopicDevicePairRequest     Topic = "device_pair_request"
	TopicDevicePairAccepted    Topic = "device_pair_accepted"
	TopicThermostatStateRecv   Topic = "thermostatstate_received"
)

// Handler receives an event payload. It must not block: delivery is
// synchronous on the publisher's goroutine, so a slow handler stalls
// the engine loop.
type Handler func(payload any)

// Bus is a topic-keyed subscriber registry. Subscriptions are
// expected to be configured at startup and are effectively read-only
// during steady-state operation, but Subscribe remains safe to call
// at any time.
type Bus struct {
	mu          sync.RWMutex
	subscribers map[Topic][]Handler
}

// New returns an empty Bus.
func New() *Bus {
	return &Bus{subscribers: make(map[Topic][]Handler)}
}

// Subscribe registers fn to receive every future Publish on topic.
func (b *Bus) Subscribe(topic Topic, fn Handler) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.subscribers[topic] = append(b.subscribers[topic], fn)
}

// Publish delivers payload synchronously to every subscriber of
// topic, in subscription order. There are no delivery guarantees
// across process crashes and no replay for late subscribers.
func (b *Bus) Publish(topic Topic, payload any) {
	b.mu.RLock()
	handlers := append([]Handler(nil), b.subscribers[topic]...)
	b.mu.RUnlock()

	for _, h := range handlers {
		h(payload)
	}
}
