package live

import "encoding/json"

// Inbound event names.
const (
	EventJoinSession   = "join_session"
	EventLeaveSession  = "leave_session"
	EventWebRTCOffer   = "webrtc_offer"
	EventWebRTCAnswer  = "webrtc_answer"
	EventICECandidate  = "ice_candidate"
	EventChatMessage   = "chat_message"
	EventQualityReport = "quality_report"
)

// Outbound event names.
const (
	EventUserJoined   = "user_joined"
	EventSessionInfo  = "session_info"
	EventUserLeft     = "user_left"
	EventSessionEnded = "session_ended"
	EventError        = "error"
)

// Event is the WebSocket message envelope.
type Event struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data,omitempty"`
}

// NewEvent builds an Event, marshaling payload unless it is already raw JSON.
func NewEvent(event string, payload interface{}) Event {
	var data json.RawMessage
	switch v := payload.(type) {
	case nil:
	case json.RawMessage:
		data = v
	case []byte:
		data = v
	default:
		data, _ = json.Marshal(v)
	}
	return Event{Event: event, Data: data}
}

// ErrorEvent builds the outbound error event for a relay/registry error.
func ErrorEvent(err error) Event {
	msg := "internal error"
	switch err {
	case ErrSessionNotFound:
		msg = "Session not found"
	case ErrTargetNotFound:
		msg = "Target not found"
	case ErrAuthenticationRequired:
		msg = "Authentication required"
	case ErrInvalidSignalingData:
		msg = "Invalid signaling data"
	}
	return NewEvent(EventError, map[string]string{"message": msg})
}

// Sink delivers events to one connected participant. The transport handle of a
// participant is its Sink; implementations must not block (drop on overflow).
type Sink interface {
	Deliver(Event) bool
}
