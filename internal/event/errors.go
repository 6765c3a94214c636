package event

import "errors"

// Sentinel errors for the event bus.
var (
	// ErrBusNotRunning is returned when operations are attempted on a stopped bus.
	ErrBusNotRunning = errors.New("event bus is not running")

	// ErrBusAlreadyRunning is returned when Start is called on a running bus.
	ErrBusAlreadyRunning = errors.New("event bus is already running")

	// ErrQueueFull is returned when the async queue cannot accept another dispatch.
	ErrQueueFull = errors.New("event queue is full")

	// ErrInvalidEvent is returned when an event is nil or malformed.
	ErrInvalidEvent = errors.New("invalid event")

	// ErrInvalidKind is returned when a kind is empty or malformed.
	ErrInvalidKind = errors.New("invalid event kind")

	// ErrInvalidName is returned when a channel name is empty.
	ErrInvalidName = errors.New("invalid channel name")

	// ErrKindLocked is returned when subscribing to a kind that has been
	// closed to new subscriptions.
	ErrKindLocked = errors.New("event kind is locked")

	// ErrInvalidSubscription is returned when a subscription is invalid.
	ErrInvalidSubscription = errors.New("invalid subscription")

	// ErrNotSubscribed is returned when unsubscribing a subscription the
	// registry no longer holds.
	ErrNotSubscribed = errors.New("subscription not found")

	// ErrHandlerPanic is returned when a handler panics.
	ErrHandlerPanic = errors.New("handler panicked")

	// ErrNilHandler is returned when a nil handler is provided.
	ErrNilHandler = errors.New("handler cannot be nil")

	// ErrNoRunner is returned by PublishIsolated when the bus was built
	// without a resource runner.
	ErrNoRunner = errors.New("no resource runner configured")

	// ErrSubscriberClosed is returned when subscribing through a closed Subscriber.
	ErrSubscriberClosed = errors.New("subscriber is closed")

	// ErrAdapterClosed is returned when publishing through a closed adapter.
	ErrAdapterClosed = errors.New("adapter is closed")
)

// PanicError wraps a panic value as an error.
type PanicError struct {
	// SubscriptionID is the ID of the subscription whose handler panicked.
	SubscriptionID string

	// Kind is the kind the handler was subscribed to.
	Kind string

	// Value is the value passed to panic().
	Value any

	// Stack is the stack trace at the time of the panic.
	Stack string
}

// Error implements the error interface.
func (e *PanicError) Error() string {
	return "handler panic for subscription " + e.SubscriptionID + " on kind " + e.Kind
}

// Is allows errors.Is to match PanicError with ErrHandlerPanic.
func (e *PanicError) Is(target error) bool {
	return target == ErrHandlerPanic
}
