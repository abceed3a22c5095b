package events

import (
	"encoding/json"
	"sync"
	"time"
)

// EventType identifies one of the fixed event variants.
type EventType string

const (
	TypeStateChanged         EventType = "actuator_state_changed"
	TypeActuatorRegistered   EventType = "actuator_registered"
	TypeActuatorUnregistered EventType = "actuator_unregistered"
	TypeHealthDegraded       EventType = "actuator_health_degraded"
	TypeExecutionCompleted   EventType = "execution_completed"
	TypeScheduleChanged      EventType = "schedule_changed"
)

// Event is one occurrence on the bus. Payload fields are populated
// according to Type; unused fields stay zero.
type Event struct {
	Type      EventType `json:"type"`
	Timestamp time.Time `json:"timestamp"`

	// Actuator events
	ActuatorID string  `json:"actuator_id,omitempty"`
	UnitID     string  `json:"unit_id,omitempty"`
	State      string  `json:"state,omitempty"`
	Value      float64 `json:"value,omitempty"`

	// Health events
	HealthScore  float64 `json:"health_score,omitempty"`
	HealthBucket string  `json:"health_bucket,omitempty"`

	// Execution / schedule events
	ScheduleID string `json:"schedule_id,omitempty"`
	Action     string `json:"action,omitempty"`
	Success    bool   `json:"success,omitempty"`
}

// Handler receives events synchronously. Handlers must be fast and
// must not publish back onto the bus from the same goroutine.
type Handler func(Event)

// Publisher mirrors events to an external sink (MQTT). Wired
// optionally; publish failures are dropped silently since external
// mirroring is best-effort.
type Publisher interface {
	Publish(topic string, payload []byte, qos byte, retained bool) error
}

// TopicBuilder turns an event type into the external topic it mirrors to.
type TopicBuilder func(eventType string) string

// Logger defines the logging interface for the bus.
type Logger interface {
	Debug(msg string, args ...any)
	Warn(msg string, args ...any)
}

type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Warn(string, ...any)  {}

// Bus fans events out to subscribers synchronously under a read lock.
// Subscription order is delivery order.
type Bus struct {
	logger Logger

	mu       sync.RWMutex
	handlers map[EventType][]Handler
	all      []Handler

	mirror      Publisher
	mirrorTopic TopicBuilder
}

// NewBus creates an empty event bus.
func NewBus() *Bus {
	return &Bus{
		handlers: make(map[EventType][]Handler),
		logger:   noopLogger{},
	}
}

// SetLogger sets the logger for the bus.
func (b *Bus) SetLogger(logger Logger) {
	b.logger = logger
}

// SetMirror wires an external publisher; every event is additionally
// serialised to JSON and published on topics(event.Type).
func (b *Bus) SetMirror(p Publisher, topics TopicBuilder) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.mirror = p
	b.mirrorTopic = topics
}

// Subscribe registers a handler for one event type.
func (b *Bus) Subscribe(t EventType, h Handler) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.handlers[t] = append(b.handlers[t], h)
}

// SubscribeAll registers a handler for every event type.
func (b *Bus) SubscribeAll(h Handler) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.all = append(b.all, h)
}

// Publish delivers an event to subscribers and the mirror. A zero
// timestamp is filled in with now.
func (b *Bus) Publish(e Event) {
	if e.Timestamp.IsZero() {
		e.Timestamp = time.Now().UTC()
	}

	b.mu.RLock()
	typed := b.handlers[e.Type]
	all := b.all
	mirror := b.mirror
	mirrorTopic := b.mirrorTopic
	b.mu.RUnlock()

	for _, h := range typed {
		h(e)
	}
	for _, h := range all {
		h(e)
	}

	if mirror != nil && mirrorTopic != nil {
		payload, err := json.Marshal(e)
		if err != nil {
			b.logger.Warn("event marshal failed", "type", e.Type, "error", err)
			return
		}
		if err := mirror.Publish(mirrorTopic(string(e.Type)), payload, 0, false); err != nil {
			b.logger.Debug("event mirror publish failed", "type", e.Type, "error", err)
		}
	}
}
