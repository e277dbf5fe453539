package bus

import "time"

// EventBus is a thread-safe in-process pub/sub bus.
//
// Handlers subscribe by event type string. Topics give publishers isolation:
// each scene publishes into its own topic so multiple scenes can share one
// bus without cross-talk. The default topic is "" (empty string).
//
// Delivery is synchronous: Publish runs handler callbacks in the caller's
// goroutine and returns their joined errors. Handlers should be quick or
// offload heavy work. Metrics are collected only while at least one
// observer is registered.
type EventBus interface {
	// Publish delivers the event to subscribers of event.Type() in the
	// default topic.
	Publish(event Event) error
	// PublishToTopic delivers the event within one topic.
	PublishToTopic(topic string, event Event) error
	// PublishAsync delivers in a separate goroutine; the returned channel
	// receives the joined handler error (or nil), then closes.
	PublishAsync(event Event) <-chan error

	// Subscribe registers a handler for an event type in the default topic.
	Subscribe(eventType string, handler EventHandler) (Subscription, error)
	// SubscribeTopic registers a handler for an event type within a topic.
	SubscribeTopic(topic, eventType string, handler EventHandler) (Subscription, error)
	// Unsubscribe cancels a subscription. Safe to call with nil.
	Unsubscribe(Subscription) error

	// AddObserver registers a delivery observer and enables metrics.
	AddObserver(obs EventBusObserver)
	// RemoveObserver unregisters an observer.
	RemoveObserver(obs EventBusObserver)
	// GetMetrics returns a best-effort counter snapshot.
	GetMetrics() EventBusMetrics
}

// Event is an immutable message. Type routes to handlers; Data carries the
// typed payload the publisher chose.
type Event interface {
	Type() string
	Source() string
	Timestamp() time.Time
	Data() any
}

// EventHandler is invoked per delivered event. Returned errors are joined
// into the publisher's result.
type EventHandler func(event Event) error

// Subscription is the handle returned by Subscribe.
type Subscription interface {
	// ID is a unique identifier for this subscription.
	ID() string
	// EventType returns the subscribed event type.
	EventType() string
	// IsActive reports whether the subscription is still registered.
	IsActive() bool
	// Cancel de-registers the handler. Multiple calls are safe.
	Cancel() error
}

// EventBusObserver is notified about deliveries. Implementations export
// metrics or logs and should return quickly.
type EventBusObserver interface {
	OnPublish(topic, eventType string, event Event)
	OnDelivered(topic, eventType string, handlers int, err error, durationMicros int64)
}

// EventBusMetrics is a minimal counter set, updated only while observed.
type EventBusMetrics struct {
	Published         uint64
	DeliveredHandlers uint64
	Errors            uint64
	SubscribersActive uint64
	Topics            uint64
}
