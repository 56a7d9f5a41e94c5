package log

import "time"

// Event is a single capture record emitted by a connection or listener.
// CBOR encoding uses integer keys for compactness.
type Event struct {
	// Timestamp when the event occurred (nanosecond precision).
	Timestamp time.Time `cbor:"1,keyasint"`

	// ConnectionID identifies the connection or listener (UUID).
	ConnectionID string `cbor:"2,keyasint"`

	// Direction of data flow. Meaningful for data events only.
	Direction Direction `cbor:"3,keyasint"`

	// Entity that produced the event.
	Entity Entity `cbor:"4,keyasint"`

	// Category classifies the event type.
	Category Category `cbor:"5,keyasint"`

	// Role of the local endpoint.
	Role Role `cbor:"6,keyasint,omitempty"`

	// LocalAddr is the local address (IP:port), once known.
	LocalAddr string `cbor:"7,keyasint,omitempty"`

	// RemoteAddr is the peer address (IP:port or host:port).
	RemoteAddr string `cbor:"8,keyasint,omitempty"`

	// Type-specific payload (one of these will be set).
	StateChange *StateChangeEvent `cbor:"10,keyasint,omitempty"`
	Data        *DataEvent        `cbor:"11,keyasint,omitempty"`
	Lifecycle   *LifecycleEvent   `cbor:"12,keyasint,omitempty"`
	Error       *ErrorEventData   `cbor:"13,keyasint,omitempty"`
}

// Direction indicates the direction of data flow.
type Direction uint8

const (
	// DirectionIn indicates received data.
	DirectionIn Direction = 0
	// DirectionOut indicates sent data.
	DirectionOut Direction = 1
)

// String returns the direction name.
func (d Direction) String() string {
	switch d {
	case DirectionIn:
		return "IN"
	case DirectionOut:
		return "OUT"
	default:
		return "UNKNOWN"
	}
}

// Entity indicates what kind of object produced the event.
type Entity uint8

const (
	// EntityConnection is a client or accepted connection.
	EntityConnection Entity = 0
	// EntityListener is a listening socket.
	EntityListener Entity = 1
)

// String returns the entity name.
func (e Entity) String() string {
	switch e {
	case EntityConnection:
		return "CONNECTION"
	case EntityListener:
		return "LISTENER"
	default:
		return "UNKNOWN"
	}
}

// Category classifies the event type.
type Category uint8

const (
	// CategoryState indicates a state change.
	CategoryState Category = 0
	// CategoryData indicates bytes read or written.
	CategoryData Category = 1
	// CategoryLifecycle indicates start, close, cancel and accept actions.
	CategoryLifecycle Category = 2
	// CategoryError indicates an error event.
	CategoryError Category = 3
)

// String returns the category name.
func (c Category) String() string {
	switch c {
	case CategoryState:
		return "STATE"
	case CategoryData:
		return "DATA"
	case CategoryLifecycle:
		return "LIFECYCLE"
	case CategoryError:
		return "ERROR"
	default:
		return "UNKNOWN"
	}
}

// Role indicates which side initiated the connection.
type Role uint8

const (
	// RoleClient is an outbound connection.
	RoleClient Role = 0
	// RoleServer is a listener or an accepted connection.
	RoleServer Role = 1
)

// String returns the role name.
func (r Role) String() string {
	switch r {
	case RoleClient:
		return "CLIENT"
	case RoleServer:
		return "SERVER"
	default:
		return "UNKNOWN"
	}
}

// StateChangeEvent captures a state update.
type StateChangeEvent struct {
	// OldState is the previous state (may be empty).
	OldState string `cbor:"1,keyasint,omitempty"`

	// NewState is the new state.
	NewState string `cbor:"2,keyasint"`

	// Reason for the change (if available).
	Reason string `cbor:"3,keyasint,omitempty"`
}

// MaxCapturedData bounds the bytes kept in a DataEvent.
const MaxCapturedData = 256

// DataEvent captures one completed read or write.
type DataEvent struct {
	// Size is the number of bytes transferred.
	Size int `cbor:"1,keyasint"`

	// Data holds the bytes, truncated to MaxCapturedData.
	Data []byte `cbor:"2,keyasint,omitempty"`

	// Truncated indicates if Data was truncated.
	Truncated bool `cbor:"3,keyasint,omitempty"`

	// EndOfStream marks a read that observed the peer closing.
	EndOfStream bool `cbor:"4,keyasint,omitempty"`
}

// NewDataEvent builds a DataEvent for b, copying at most MaxCapturedData
// bytes.
func NewDataEvent(b []byte, endOfStream bool) *DataEvent {
	ev := &DataEvent{Size: len(b), EndOfStream: endOfStream}
	n := len(b)
	if n > MaxCapturedData {
		n = MaxCapturedData
		ev.Truncated = true
	}
	if n > 0 {
		ev.Data = append([]byte(nil), b[:n]...)
	}
	return ev
}

// LifecycleEvent captures an action taken on a connection or listener.
type LifecycleEvent struct {
	// Action taken.
	Action Action `cbor:"1,keyasint"`

	// Detail adds free-form context, such as the accepted peer address.
	Detail string `cbor:"2,keyasint,omitempty"`
}

// Action enumerates lifecycle actions.
type Action uint8

const (
	ActionStart Action = iota
	ActionCancel
	ActionForceCancel
	ActionClose
	ActionCloseTimeout
	ActionAccept
	ActionDrop
	ActionStopListening
)

// String returns the action name.
func (a Action) String() string {
	switch a {
	case ActionStart:
		return "START"
	case ActionCancel:
		return "CANCEL"
	case ActionForceCancel:
		return "FORCE_CANCEL"
	case ActionClose:
		return "CLOSE"
	case ActionCloseTimeout:
		return "CLOSE_TIMEOUT"
	case ActionAccept:
		return "ACCEPT"
	case ActionDrop:
		return "DROP"
	case ActionStopListening:
		return "STOP_LISTENING"
	default:
		return "UNKNOWN"
	}
}

// ErrorEventData captures a classified failure.
type ErrorEventData struct {
	// Kind is the error classification (transport, name resolution, tls).
	Kind string `cbor:"1,keyasint"`

	// Message is the error message.
	Message string `cbor:"2,keyasint"`

	// Code is the error code (if applicable).
	Code *int `cbor:"3,keyasint,omitempty"`

	// Context describes what operation was being performed.
	Context string `cbor:"4,keyasint,omitempty"`
}
