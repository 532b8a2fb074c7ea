package live

import (
	"encoding/json"
	"sync"

	"go.uber.org/zap"
)

// Bus fans broadcast events out to other server instances. Point-to-point
// signaling stays local: a participant's transport sink only exists on the
// instance holding its connection.
type Bus interface {
	PublishSessionEvent(sessionID, event string, payload []byte) error
	SubscribeSession(sessionID string, handler func(event string, payload []byte)) (cancel func(), err error)
}

// kindField maps a signaling kind to the payload field name it carries.
var kindField = map[string]string{
	EventWebRTCOffer:  "offer",
	EventWebRTCAnswer: "answer",
	EventICECandidate: "candidate",
}

// Relay forwards signaling messages between participants of a session.
// It holds no message state: delivery is best-effort, fire-and-forget, with
// per-connection FIFO order provided by the underlying transport.
type Relay struct {
	registry *Registry
	bus      Bus
	logger   *zap.Logger

	mu   sync.Mutex
	subs map[string]func() // cancel bus subscription per session
}

// NewRelay creates a signaling relay. bus may be nil for single-instance runs.
func NewRelay(registry *Registry, bus Bus, logger *zap.Logger) *Relay {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Relay{
		registry: registry,
		bus:      bus,
		logger:   logger,
		subs:     make(map[string]func()),
	}
}

// Relay forwards {kind, from_user_id, payload} exactly once to the target
// participant's sink. Returns ErrSessionNotFound or ErrTargetNotFound; the
// sender is told, the recipient never sees a failed delivery.
func (r *Relay) Relay(kind, sessionID, fromUserID, targetUserID string, payload json.RawMessage) error {
	if _, ok := r.registry.Get(sessionID); !ok {
		return ErrSessionNotFound
	}
	sink, ok := r.registry.Resolve(sessionID, targetUserID)
	if !ok {
		return ErrTargetNotFound
	}

	field := kindField[kind]
	if field == "" {
		field = "payload"
	}
	body := map[string]json.RawMessage{
		"from_user_id": mustRaw(fromUserID),
		field:          payload,
	}
	if !sink.Deliver(NewEvent(kind, body)) {
		// Buffer full: dropped, per fire-and-forget contract.
		r.logger.Warn("relay delivery dropped",
			zap.String("kind", kind), zap.String("session_id", sessionID), zap.String("target", targetUserID))
	}
	return nil
}

// Broadcast delivers an event to every current member of the session except
// excludeUserID, enumerating members explicitly. Returns the delivered count.
func (r *Relay) Broadcast(sessionID, event string, payload interface{}, excludeUserID string) int {
	ev := NewEvent(event, payload)
	delivered := 0
	for _, sink := range r.registry.sinks(sessionID, excludeUserID) {
		if sink.Deliver(ev) {
			delivered++
		}
	}
	return delivered
}

// BroadcastAndPublish broadcasts locally and publishes to the session bus so
// members connected to other instances receive the event too.
func (r *Relay) BroadcastAndPublish(sessionID, event string, payload interface{}, excludeUserID string) int {
	n := r.Broadcast(sessionID, event, payload, excludeUserID)
	if r.bus != nil {
		data, err := json.Marshal(payload)
		if err == nil {
			if err := r.bus.PublishSessionEvent(sessionID, event, data); err != nil {
				r.logger.Warn("bus publish failed", zap.Error(err), zap.String("session_id", sessionID))
			}
		}
	}
	return n
}

// EnsureSubscribed starts the bus subscription for a session. Called when the
// first local participant joins; repeat calls are no-ops.
func (r *Relay) EnsureSubscribed(sessionID string) {
	if r.bus == nil {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.subs[sessionID]; ok {
		return
	}
	cancel, err := r.bus.SubscribeSession(sessionID, func(event string, payload []byte) {
		r.Broadcast(sessionID, event, json.RawMessage(payload), "")
	})
	if err != nil {
		r.logger.Warn("bus subscribe failed", zap.Error(err), zap.String("session_id", sessionID))
		return
	}
	r.subs[sessionID] = cancel
}

// Unsubscribe cancels the bus subscription for a session. Called when the last
// local participant leaves.
func (r *Relay) Unsubscribe(sessionID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if cancel, ok := r.subs[sessionID]; ok {
		cancel()
		delete(r.subs, sessionID)
	}
}

func mustRaw(s string) json.RawMessage {
	b, _ := json.Marshal(s)
	return b
}
