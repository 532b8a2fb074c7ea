package live

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newTestServer(t *testing.T) (*Registry, *httptest.Server) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	registry := NewRegistry(time.Minute, zap.NewNop())
	relay := NewRelay(registry, nil, zap.NewNop())
	validate := func(token string) (Identity, error) {
		// Tokens look like "id:name:role" in tests.
		parts := strings.SplitN(token, ":", 3)
		if len(parts) != 3 {
			return Identity{}, errors.New("bad token")
		}
		return Identity{UserID: parts[0], Name: parts[1], Role: parts[2]}, nil
	}

	router := gin.New()
	router.GET("/ws", ServeWS(registry, relay, validate, zap.NewNop()))
	srv := httptest.NewServer(router)
	t.Cleanup(srv.Close)
	return registry, srv
}

func dial(t *testing.T, srv *httptest.Server, token string) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws"
	if token != "" {
		url += "?token=" + token
	}
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	return conn
}

func send(t *testing.T, conn *websocket.Conn, event string, data interface{}) {
	t.Helper()
	raw, err := json.Marshal(data)
	require.NoError(t, err)
	require.NoError(t, conn.WriteJSON(Event{Event: event, Data: raw}))
}

func readEvent(t *testing.T, conn *websocket.Conn) Event {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	var ev Event
	require.NoError(t, conn.ReadJSON(&ev))
	return ev
}

func TestUnauthenticatedJoinRejected(t *testing.T) {
	_, srv := newTestServer(t)
	conn := dial(t, srv, "")

	send(t, conn, EventJoinSession, map[string]string{"session_id": "s1"})
	ev := readEvent(t, conn)
	require.Equal(t, EventError, ev.Event)
	require.Contains(t, string(ev.Data), "Authentication required")
}

func TestInvalidTokenRejectsUpgrade(t *testing.T) {
	_, srv := newTestServer(t)
	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws?token=garbage"
	_, resp, err := websocket.DefaultDialer.Dial(url, nil)
	require.Error(t, err)
	require.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestJoinUnknownSessionGetsError(t *testing.T) {
	_, srv := newTestServer(t)
	conn := dial(t, srv, "u1:Alice:student")

	send(t, conn, EventJoinSession, map[string]string{"session_id": "missing"})
	ev := readEvent(t, conn)
	require.Equal(t, EventError, ev.Event)
	require.Contains(t, string(ev.Data), "Session not found")
}

func TestJoinAnnouncesAndReturnsSessionInfo(t *testing.T) {
	registry, srv := newTestServer(t)
	require.NoError(t, registry.Start("s1", "lec-1", "t1", "Ms. Rao", "Algebra"))

	alice := dial(t, srv, "u1:Alice:student")
	send(t, alice, EventJoinSession, map[string]string{"session_id": "s1"})

	ev := readEvent(t, alice)
	require.Equal(t, EventSessionInfo, ev.Event)
	var info struct {
		SessionID string `json:"session_id"`
		Count     int    `json:"participants_count"`
	}
	require.NoError(t, json.Unmarshal(ev.Data, &info))
	require.Equal(t, "s1", info.SessionID)
	require.Equal(t, 1, info.Count)

	bob := dial(t, srv, "u2:Bob:student")
	send(t, bob, EventJoinSession, map[string]string{"session_id": "s1"})

	// Bob gets his own session_info; Alice is told Bob joined.
	ev = readEvent(t, bob)
	require.Equal(t, EventSessionInfo, ev.Event)

	ev = readEvent(t, alice)
	require.Equal(t, EventUserJoined, ev.Event)
	var joined struct {
		UserID string `json:"user_id"`
		Name   string `json:"user_name"`
		Count  int    `json:"participants_count"`
	}
	require.NoError(t, json.Unmarshal(ev.Data, &joined))
	require.Equal(t, "u2", joined.UserID)
	require.Equal(t, "Bob", joined.Name)
	require.Equal(t, 2, joined.Count)
}

func TestOfferForwardedToTarget(t *testing.T) {
	registry, srv := newTestServer(t)
	require.NoError(t, registry.Start("s1", "lec-1", "t1", "Ms. Rao", "Algebra"))

	alice := dial(t, srv, "u1:Alice:student")
	send(t, alice, EventJoinSession, map[string]string{"session_id": "s1"})
	readEvent(t, alice) // session_info

	bob := dial(t, srv, "u2:Bob:student")
	send(t, bob, EventJoinSession, map[string]string{"session_id": "s1"})
	readEvent(t, bob)   // session_info
	readEvent(t, alice) // user_joined

	send(t, bob, EventWebRTCOffer, map[string]interface{}{
		"session_id":     "s1",
		"target_user_id": "u1",
		"offer":          map[string]string{"type": "offer", "sdp": "v=0\r\n"},
	})

	ev := readEvent(t, alice)
	require.Equal(t, EventWebRTCOffer, ev.Event)
	var body struct {
		FromUserID string `json:"from_user_id"`
		Offer      struct {
			SDP string `json:"sdp"`
		} `json:"offer"`
	}
	require.NoError(t, json.Unmarshal(ev.Data, &body))
	require.Equal(t, "u2", body.FromUserID)
	require.Equal(t, "v=0\r\n", body.Offer.SDP)
}

func TestMalformedOfferRejected(t *testing.T) {
	registry, srv := newTestServer(t)
	require.NoError(t, registry.Start("s1", "lec-1", "t1", "Ms. Rao", "Algebra"))

	alice := dial(t, srv, "u1:Alice:student")
	send(t, alice, EventJoinSession, map[string]string{"session_id": "s1"})
	readEvent(t, alice)

	// No offer payload at all.
	send(t, alice, EventWebRTCOffer, map[string]interface{}{
		"session_id":     "s1",
		"target_user_id": "u2",
	})
	ev := readEvent(t, alice)
	require.Equal(t, EventError, ev.Event)
	require.Contains(t, string(ev.Data), "Invalid signaling data")

	// Offer missing its sdp.
	send(t, alice, EventWebRTCOffer, map[string]interface{}{
		"session_id":     "s1",
		"target_user_id": "u2",
		"offer":          map[string]string{"type": "offer"},
	})
	ev = readEvent(t, alice)
	require.Equal(t, EventError, ev.Event)
	require.Contains(t, string(ev.Data), "Invalid signaling data")
}

func TestChatBroadcastIncludesSender(t *testing.T) {
	registry, srv := newTestServer(t)
	require.NoError(t, registry.Start("s1", "lec-1", "t1", "Ms. Rao", "Algebra"))

	alice := dial(t, srv, "u1:Alice:student")
	send(t, alice, EventJoinSession, map[string]string{"session_id": "s1"})
	readEvent(t, alice)

	send(t, alice, EventChatMessage, map[string]string{"session_id": "s1", "text": "hello"})
	ev := readEvent(t, alice)
	require.Equal(t, EventChatMessage, ev.Event)
	require.Contains(t, string(ev.Data), "hello")
}

func TestDisconnectLeavesSession(t *testing.T) {
	registry, srv := newTestServer(t)
	require.NoError(t, registry.Start("s1", "lec-1", "t1", "Ms. Rao", "Algebra"))

	alice := dial(t, srv, "u1:Alice:student")
	send(t, alice, EventJoinSession, map[string]string{"session_id": "s1"})
	readEvent(t, alice)

	bob := dial(t, srv, "u2:Bob:student")
	send(t, bob, EventJoinSession, map[string]string{"session_id": "s1"})
	readEvent(t, bob)
	readEvent(t, alice)

	require.NoError(t, bob.Close())

	ev := readEvent(t, alice)
	require.Equal(t, EventUserLeft, ev.Event)
	var left struct {
		UserID string `json:"user_id"`
		Count  int    `json:"participants_count"`
	}
	require.NoError(t, json.Unmarshal(ev.Data, &left))
	require.Equal(t, "u2", left.UserID)
	require.Equal(t, 1, left.Count)

	require.Eventually(t, func() bool { return registry.Count("s1") == 1 }, time.Second, 10*time.Millisecond)
}

func TestLastLeaveBroadcastsSessionEnded(t *testing.T) {
	registry, srv := newTestServer(t)
	require.NoError(t, registry.Start("s1", "lec-1", "t1", "Ms. Rao", "Algebra"))

	alice := dial(t, srv, "u1:Alice:student")
	send(t, alice, EventJoinSession, map[string]string{"session_id": "s1"})
	readEvent(t, alice)

	send(t, alice, EventLeaveSession, map[string]string{"session_id": "s1"})

	require.Eventually(t, func() bool {
		sess, ok := registry.Get("s1")
		return ok && sess.Status == StatusEnded
	}, time.Second, 10*time.Millisecond)
}
