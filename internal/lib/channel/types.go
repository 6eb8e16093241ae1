package channel

import (
	"context"
	"encoding/json"
	"fmt"
	"time"
)

// TransportMode selects how a subscription receives updates. The mode is
// chosen once per session via configuration; a realtime subscription whose
// transport fails degrades to polling for its own lifetime only.
type TransportMode int

const (
	// Realtime receives pushed messages over a persistent connection.
	Realtime TransportMode = iota
	// Polling issues fixed-interval reads against an equivalent endpoint.
	Polling
)

// Status is the lifecycle state of a subscription.
type Status int32

const (
	StatusConnecting Status = iota
	StatusConnected
	StatusReconnecting
	StatusPolling
	StatusClosed
)

// String returns a display label suitable for a passive status indicator.
func (s Status) String() string {
	switch s {
	case StatusConnecting:
		return "connecting"
	case StatusConnected:
		return "connected"
	case StatusReconnecting:
		return "reconnecting"
	case StatusPolling:
		return "polling"
	case StatusClosed:
		return "closed"
	default:
		return "unknown"
	}
}

// Update is a single inbound state change for a resource, delivered in
// arrival order regardless of transport.
type Update struct {
	ResourceID string
	Topic      string
	Payload    json.RawMessage
	ReceivedAt time.Time
}

// ErrKind enumerates subscription failure categories so handlers can react
// without string matching.
type ErrKind int

const (
	// ErrTransport covers dial failures and unexpected connection loss.
	ErrTransport ErrKind = iota
	// ErrMalformedPayload covers inbound messages that fail to parse;
	// these are dropped without affecting subscription health.
	ErrMalformedPayload
	// ErrPollFailed covers failed polling reads; polling continues on the
	// next interval.
	ErrPollFailed
)

// String returns the error kind label.
func (k ErrKind) String() string {
	switch k {
	case ErrTransport:
		return "transport"
	case ErrMalformedPayload:
		return "malformed_payload"
	case ErrPollFailed:
		return "poll_failed"
	default:
		return "unknown"
	}
}

// Handler receives updates and errors for one subscription.
type Handler interface {
	HandleUpdate(u Update)
	HandleError(kind ErrKind, err error)
}

// HandlerFuncs adapts plain functions to the Handler interface. Either
// field may be nil.
type HandlerFuncs struct {
	OnUpdate func(u Update)
	OnError  func(kind ErrKind, err error)
}

// HandleUpdate implements Handler.
func (h HandlerFuncs) HandleUpdate(u Update) {
	if h.OnUpdate != nil {
		h.OnUpdate(u)
	}
}

// HandleError implements Handler.
func (h HandlerFuncs) HandleError(kind ErrKind, err error) {
	if h.OnError != nil {
		h.OnError(kind, err)
	}
}

// PollFunc reads the current state of the subscribed resource from the
// equivalent REST endpoint. It is invoked once immediately when a polling
// subscription starts and then on each interval.
type PollFunc func(ctx context.Context) (json.RawMessage, error)

// Topic helpers. These names are authoritative over the wire.

// OrderTopic is the status stream for a single order.
func OrderTopic(orderID string) string {
	return fmt.Sprintf("orders.%s", orderID)
}

// OrderLocationTopic is the live driver position stream for an order.
func OrderLocationTopic(orderID string) string {
	return fmt.Sprintf("orders.%s.location", orderID)
}

// VendorOrdersTopic is the full order stream for a vendor.
func VendorOrdersTopic(vendorID string) string {
	return fmt.Sprintf("vendors.%s.orders", vendorID)
}

// envelope is the broker's wire frame: a topic echo and the payload.
type envelope struct {
	Topic string          `json:"topic"`
	Data  json.RawMessage `json:"data"`
}

// subscribeFrame is sent after connecting to bind the socket to a topic.
type subscribeFrame struct {
	Action string `json:"action"`
	Topic  string `json:"topic"`
}
