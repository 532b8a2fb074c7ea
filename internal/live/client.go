package live

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/pion/webrtc/v3"
	"go.uber.org/zap"

	"github.com/digi-kul/backend/internal/models"
)

const (
	// PingInterval and PongWait are used for heartbeat, in seconds.
	PingInterval = 30
	PongWait     = 60
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true // allow all origins in dev; restrict in production
	},
}

// Identity is the resolved user behind a connection.
type Identity struct {
	UserID string
	Name   string
	Role   string
}

// TokenValidator resolves a JWT into an identity.
type TokenValidator func(token string) (Identity, error)

// Client is one WebSocket connection. It may hold memberships in several
// sessions; closing the connection leaves all of them exactly once.
type Client struct {
	ID       string
	identity *Identity // nil until authenticated

	registry *Registry
	relay    *Relay
	conn     *websocket.Conn
	send     chan Event
	sessions map[string]bool // sessions this connection joined
	logger   *zap.Logger
}

// Deliver implements Sink: non-blocking send, drop on full buffer.
func (c *Client) Deliver(ev Event) bool {
	select {
	case c.send <- ev:
		return true
	default:
		return false
	}
}

// ServeWS handles the WebSocket upgrade and runs the client loop.
// The token query parameter is optional: unauthenticated connections may
// observe, but events that need an identity get an error event back.
func ServeWS(registry *Registry, relay *Relay, validate TokenValidator, logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		var identity *Identity
		if token := c.Query("token"); token != "" {
			id, err := validate(token)
			if err != nil {
				c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid token"})
				return
			}
			identity = &id
		}

		conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
		if err != nil {
			logger.Warn("websocket upgrade failed", zap.Error(err))
			return
		}

		client := &Client{
			ID:       uuid.New().String(),
			identity: identity,
			registry: registry,
			relay:    relay,
			conn:     conn,
			send:     make(chan Event, 256),
			sessions: make(map[string]bool),
			logger:   logger,
		}
		go client.writePump()
		client.readPump()
	}
}

func (c *Client) readPump() {
	defer func() {
		// Implicit leave for every joined session, exactly once per disconnect.
		for sessionID := range c.sessions {
			if c.identity != nil {
				c.leaveSession(sessionID, c.identity.UserID)
			}
		}
		c.sessions = make(map[string]bool)
		_ = c.conn.Close()
	}()

	c.conn.SetReadLimit(65536)
	_ = c.conn.SetReadDeadline(time.Now().Add(PongWait * time.Second))
	c.conn.SetPongHandler(func(string) error {
		_ = c.conn.SetReadDeadline(time.Now().Add(PongWait * time.Second))
		return nil
	})

	for {
		var msg Event
		if err := c.conn.ReadJSON(&msg); err != nil {
			break
		}
		_ = c.conn.SetReadDeadline(time.Now().Add(PongWait * time.Second))
		c.handleEvent(msg)
	}
}

func (c *Client) handleEvent(msg Event) {
	switch msg.Event {
	case EventJoinSession:
		c.handleJoin(msg.Data)
	case EventLeaveSession:
		c.handleLeave(msg.Data)
	case EventWebRTCOffer, EventWebRTCAnswer, EventICECandidate:
		c.handleSignal(msg.Event, msg.Data)
	case EventChatMessage:
		c.handleChat(msg.Data)
	case EventQualityReport:
		// accepted and ignored
	default:
		// ignore
	}
}

func (c *Client) handleJoin(data json.RawMessage) {
	if c.identity == nil {
		c.Deliver(ErrorEvent(ErrAuthenticationRequired))
		return
	}
	var req struct {
		SessionID string `json:"session_id"`
	}
	if err := json.Unmarshal(data, &req); err != nil || req.SessionID == "" {
		c.Deliver(ErrorEvent(ErrInvalidSignalingData))
		return
	}

	count, err := c.registry.Join(req.SessionID, c.identity.UserID, models.Role(c.identity.Role), c.identity.Name, c)
	if err != nil {
		c.Deliver(ErrorEvent(err))
		return
	}
	c.sessions[req.SessionID] = true
	c.relay.EnsureSubscribed(req.SessionID)

	c.relay.BroadcastAndPublish(req.SessionID, EventUserJoined, gin.H{
		"user_id":            c.identity.UserID,
		"user_name":          c.identity.Name,
		"user_type":          c.identity.Role,
		"participants_count": count,
	}, c.identity.UserID)

	c.Deliver(NewEvent(EventSessionInfo, gin.H{
		"session_id":         req.SessionID,
		"participants":       c.registry.Participants(req.SessionID),
		"participants_count": count,
	}))
}

func (c *Client) handleLeave(data json.RawMessage) {
	var req struct {
		SessionID string `json:"session_id"`
		UserID    string `json:"user_id"`
	}
	if err := json.Unmarshal(data, &req); err != nil {
		return
	}
	userID := req.UserID
	if userID == "" && c.identity != nil {
		userID = c.identity.UserID
	}
	if req.SessionID == "" || userID == "" {
		return
	}
	delete(c.sessions, req.SessionID)
	c.leaveSession(req.SessionID, userID)
}

// leaveSession removes the membership, notifies remaining members and ends the
// session when the last one leaves. The registry guarantees the ended
// transition is observed by exactly one caller, so session_ended goes out once.
func (c *Client) leaveSession(sessionID, userID string) {
	count, left, ended := c.registry.Leave(sessionID, userID)
	if !left {
		return
	}
	c.relay.BroadcastAndPublish(sessionID, EventUserLeft, gin.H{
		"user_id":            userID,
		"participants_count": count,
	}, "")
	if ended {
		c.relay.BroadcastAndPublish(sessionID, EventSessionEnded, gin.H{}, "")
	}
	if count == 0 {
		c.relay.Unsubscribe(sessionID)
	}
}

func (c *Client) handleSignal(kind string, data json.RawMessage) {
	var req struct {
		SessionID    string          `json:"session_id"`
		TargetUserID string          `json:"target_user_id"`
		FromUserID   string          `json:"from_user_id"`
		Offer        json.RawMessage `json:"offer"`
		Answer       json.RawMessage `json:"answer"`
		Candidate    json.RawMessage `json:"candidate"`
	}
	if err := json.Unmarshal(data, &req); err != nil {
		c.Deliver(ErrorEvent(ErrInvalidSignalingData))
		return
	}
	var payload json.RawMessage
	switch kind {
	case EventWebRTCOffer:
		payload = req.Offer
	case EventWebRTCAnswer:
		payload = req.Answer
	case EventICECandidate:
		payload = req.Candidate
	}
	if req.SessionID == "" || req.TargetUserID == "" || len(payload) == 0 {
		c.Deliver(ErrorEvent(ErrInvalidSignalingData))
		return
	}
	if !validSignalPayload(kind, payload) {
		c.Deliver(ErrorEvent(ErrInvalidSignalingData))
		return
	}
	fromUserID := req.FromUserID
	if fromUserID == "" && c.identity != nil {
		fromUserID = c.identity.UserID
	}

	if err := c.relay.Relay(kind, req.SessionID, fromUserID, req.TargetUserID, payload); err != nil {
		c.Deliver(ErrorEvent(err))
	}
}

// validSignalPayload shape-checks SDP and ICE payloads with pion types before
// forwarding the raw payload untouched.
func validSignalPayload(kind string, payload json.RawMessage) bool {
	switch kind {
	case EventWebRTCOffer, EventWebRTCAnswer:
		var sdp webrtc.SessionDescription
		return json.Unmarshal(payload, &sdp) == nil && sdp.SDP != ""
	case EventICECandidate:
		var cand webrtc.ICECandidateInit
		return json.Unmarshal(payload, &cand) == nil && cand.Candidate != ""
	}
	return false
}

func (c *Client) handleChat(data json.RawMessage) {
	var req struct {
		SessionID string `json:"session_id"`
	}
	if err := json.Unmarshal(data, &req); err != nil || req.SessionID == "" {
		return
	}
	// Chat goes to the whole session, sender included.
	c.relay.BroadcastAndPublish(req.SessionID, EventChatMessage, data, "")
}

func (c *Client) writePump() {
	ticker := time.NewTicker(PingInterval * time.Second)
	defer func() {
		ticker.Stop()
		_ = c.conn.Close()
	}()

	for {
		select {
		case ev, ok := <-c.send:
			if !ok {
				_ = c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			_ = c.conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
			if err := c.conn.WriteJSON(ev); err != nil {
				return
			}
		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
