package location

import (
	"context"
	"errors"
	"time"
)

// Sample is one reading from the device's continuous position stream.
type Sample struct {
	Lat            float64   `json:"lat"`
	Lng            float64   `json:"lng"`
	AccuracyMeters float64   `json:"accuracy,omitempty"`
	SpeedMps       float64   `json:"speed,omitempty"`
	HeadingDegrees float64   `json:"heading,omitempty"`
	CapturedAt     time.Time `json:"capturedAt"`
}

// StreamOptions bound how long position acquisition may take and how old
// a delivered fix may be.
type StreamOptions struct {
	AcquireTimeout time.Duration
	MaxStaleness   time.Duration
}

// Stream abstracts the device position feed. Watch returns a sample
// channel and an error channel; both are closed when ctx is cancelled or
// the stream ends. Errors on the error channel are classified with
// Classify.
type Stream interface {
	Watch(ctx context.Context, opts StreamOptions) (<-chan Sample, <-chan error, error)
}

// Sentinel errors for the position stream taxonomy. Stream
// implementations wrap these so Classify can recognize them.
var (
	// ErrPermissionDenied means the operator revoked or never granted
	// location access. Terminal for the reporting session.
	ErrPermissionDenied = errors.New("location permission denied")
	// ErrPositionUnavailable means no fix could be obtained. Transient.
	ErrPositionUnavailable = errors.New("position unavailable")
	// ErrPositionTimeout means acquisition exceeded its bound. Transient.
	ErrPositionTimeout = errors.New("position acquisition timed out")
)

// ErrorKind classifies position stream failures so callers can show the
// right remedy: permission denial needs a settings change, a timeout just
// needs patience.
type ErrorKind int

const (
	KindUnknown ErrorKind = iota
	KindPermissionDenied
	KindUnavailable
	KindTimeout
)

// String returns the error kind label.
func (k ErrorKind) String() string {
	switch k {
	case KindPermissionDenied:
		return "permission_denied"
	case KindUnavailable:
		return "position_unavailable"
	case KindTimeout:
		return "timeout"
	default:
		return "unknown"
	}
}

// Classify maps a stream error onto the taxonomy.
func Classify(err error) ErrorKind {
	switch {
	case errors.Is(err, ErrPermissionDenied):
		return KindPermissionDenied
	case errors.Is(err, ErrPositionUnavailable):
		return KindUnavailable
	case errors.Is(err, ErrPositionTimeout):
		return KindTimeout
	default:
		return KindUnknown
	}
}

// State is the reporter lifecycle state.
type State int

const (
	StateActive State = iota
	StatePermissionDenied
	StateStopped
)

// String returns the state label.
func (s State) String() string {
	switch s {
	case StateActive:
		return "active"
	case StatePermissionDenied:
		return "permission_denied"
	case StateStopped:
		return "stopped"
	default:
		return "unknown"
	}
}

// Status is a point-in-time snapshot of the reporter, suitable for a
// passive status indicator.
type Status struct {
	State             State
	LastErrorKind     ErrorKind
	LastError         string
	LastSample        *Sample
	LastUplinkAt      time.Time
	Accepted          int
	DiscardedAccuracy int
	DiscardedRate     int
	UplinkFailures    int
}
