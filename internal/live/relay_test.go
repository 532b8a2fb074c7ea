package live

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/digi-kul/backend/internal/models"
)

func newTestRelay(t *testing.T) (*Registry, *Relay) {
	t.Helper()
	r := NewRegistry(time.Minute, zap.NewNop())
	return r, NewRelay(r, nil, zap.NewNop())
}

func TestRelayUnknownSession(t *testing.T) {
	_, relay := newTestRelay(t)
	err := relay.Relay(EventWebRTCOffer, "missing", "u1", "u2", json.RawMessage(`{}`))
	require.ErrorIs(t, err, ErrSessionNotFound)
}

func TestRelayUnknownTarget(t *testing.T) {
	reg, relay := newTestRelay(t)
	startSession(t, reg, "s1")
	_, err := reg.Join("s1", "u1", models.RoleStudent, "A", &captureSink{})
	require.NoError(t, err)

	err = relay.Relay(EventWebRTCOffer, "s1", "u1", "ghost", json.RawMessage(`{}`))
	require.ErrorIs(t, err, ErrTargetNotFound)
}

func TestRelayDeliversToTargetOnly(t *testing.T) {
	reg, relay := newTestRelay(t)
	startSession(t, reg, "s1")
	sender, target, other := &captureSink{}, &captureSink{}, &captureSink{}
	for id, sink := range map[string]*captureSink{"u1": sender, "u2": target, "u3": other} {
		_, err := reg.Join("s1", id, models.RoleStudent, id, sink)
		require.NoError(t, err)
	}

	offer := json.RawMessage(`{"type":"offer","sdp":"v=0"}`)
	require.NoError(t, relay.Relay(EventWebRTCOffer, "s1", "u1", "u2", offer))

	require.Len(t, target.events, 1)
	require.Empty(t, sender.events)
	require.Empty(t, other.events)

	ev := target.events[0]
	require.Equal(t, EventWebRTCOffer, ev.Event)

	var body struct {
		FromUserID string          `json:"from_user_id"`
		Offer      json.RawMessage `json:"offer"`
	}
	require.NoError(t, json.Unmarshal(ev.Data, &body))
	require.Equal(t, "u1", body.FromUserID)
	require.JSONEq(t, string(offer), string(body.Offer))
}

func TestRelayFieldPerKind(t *testing.T) {
	reg, relay := newTestRelay(t)
	startSession(t, reg, "s1")
	target := &captureSink{}
	_, err := reg.Join("s1", "u2", models.RoleStudent, "B", target)
	require.NoError(t, err)

	require.NoError(t, relay.Relay(EventWebRTCAnswer, "s1", "u1", "u2", json.RawMessage(`{"type":"answer"}`)))
	require.NoError(t, relay.Relay(EventICECandidate, "s1", "u1", "u2", json.RawMessage(`{"candidate":"c"}`)))

	require.Len(t, target.events, 2)
	var answer map[string]json.RawMessage
	require.NoError(t, json.Unmarshal(target.events[0].Data, &answer))
	require.Contains(t, answer, "answer")
	var cand map[string]json.RawMessage
	require.NoError(t, json.Unmarshal(target.events[1].Data, &cand))
	require.Contains(t, cand, "candidate")
}

func TestBroadcastExcludesUser(t *testing.T) {
	reg, relay := newTestRelay(t)
	startSession(t, reg, "s1")
	a, b, c := &captureSink{}, &captureSink{}, &captureSink{}
	for id, sink := range map[string]*captureSink{"u1": a, "u2": b, "u3": c} {
		_, err := reg.Join("s1", id, models.RoleStudent, id, sink)
		require.NoError(t, err)
	}

	n := relay.Broadcast("s1", EventUserJoined, map[string]string{"user_id": "u1"}, "u1")
	require.Equal(t, 2, n)
	require.Empty(t, a.events)
	require.Len(t, b.events, 1)
	require.Len(t, c.events, 1)
}

type recordingBus struct {
	published []struct {
		sessionID, event string
		payload          []byte
	}
	subscribed map[string]func(event string, payload []byte)
	cancelled  []string
}

func (b *recordingBus) PublishSessionEvent(sessionID, event string, payload []byte) error {
	b.published = append(b.published, struct {
		sessionID, event string
		payload          []byte
	}{sessionID, event, payload})
	return nil
}

func (b *recordingBus) SubscribeSession(sessionID string, handler func(event string, payload []byte)) (func(), error) {
	if b.subscribed == nil {
		b.subscribed = make(map[string]func(event string, payload []byte))
	}
	b.subscribed[sessionID] = handler
	return func() { b.cancelled = append(b.cancelled, sessionID) }, nil
}

func TestBroadcastAndPublishGoesToBus(t *testing.T) {
	reg := NewRegistry(time.Minute, zap.NewNop())
	bus := &recordingBus{}
	relay := NewRelay(reg, bus, zap.NewNop())
	startSession(t, reg, "s1")
	local := &captureSink{}
	_, err := reg.Join("s1", "u1", models.RoleStudent, "A", local)
	require.NoError(t, err)

	n := relay.BroadcastAndPublish("s1", EventChatMessage, map[string]string{"text": "hi"}, "")
	require.Equal(t, 1, n)
	require.Len(t, bus.published, 1)
	require.Equal(t, "s1", bus.published[0].sessionID)
	require.Equal(t, EventChatMessage, bus.published[0].event)
}

func TestBusEventsRebroadcastLocally(t *testing.T) {
	reg := NewRegistry(time.Minute, zap.NewNop())
	bus := &recordingBus{}
	relay := NewRelay(reg, bus, zap.NewNop())
	startSession(t, reg, "s1")
	local := &captureSink{}
	_, err := reg.Join("s1", "u1", models.RoleStudent, "A", local)
	require.NoError(t, err)

	relay.EnsureSubscribed("s1")
	relay.EnsureSubscribed("s1") // idempotent
	require.Len(t, bus.subscribed, 1)

	bus.subscribed["s1"](EventUserJoined, []byte(`{"user_id":"remote"}`))
	require.Len(t, local.events, 1)
	require.Equal(t, EventUserJoined, local.events[0].Event)

	relay.Unsubscribe("s1")
	require.Equal(t, []string{"s1"}, bus.cancelled)
}

// Two students exchange an offer/answer pair, then the teacher broadcasts a
// chat message and everyone leaves until the session ends.
func TestSignalingRoundTrip(t *testing.T) {
	reg, relay := newTestRelay(t)
	startSession(t, reg, "s1")
	teacher, s1, s2 := &captureSink{}, &captureSink{}, &captureSink{}
	_, err := reg.Join("s1", "t1", models.RoleTeacher, "T", teacher)
	require.NoError(t, err)
	_, err = reg.Join("s1", "a", models.RoleStudent, "A", s1)
	require.NoError(t, err)
	_, err = reg.Join("s1", "b", models.RoleStudent, "B", s2)
	require.NoError(t, err)

	require.NoError(t, relay.Relay(EventWebRTCOffer, "s1", "a", "b", json.RawMessage(`{"type":"offer","sdp":"v=0"}`)))
	require.NoError(t, relay.Relay(EventWebRTCAnswer, "s1", "b", "a", json.RawMessage(`{"type":"answer","sdp":"v=0"}`)))
	require.Len(t, s2.events, 1)
	require.Len(t, s1.events, 1)

	n := relay.Broadcast("s1", EventChatMessage, map[string]string{"text": "welcome"}, "")
	require.Equal(t, 3, n)

	for _, id := range []string{"a", "b"} {
		_, left, ended := reg.Leave("s1", id)
		require.True(t, left)
		require.False(t, ended)
	}
	_, left, ended := reg.Leave("s1", "t1")
	require.True(t, left)
	require.True(t, ended)
}
