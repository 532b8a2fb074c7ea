package live

import (
	"github.com/gin-gonic/gin"
	"github.com/pion/webrtc/v3"
	"go.uber.org/zap"

	"github.com/digi-kul/backend/pkg/response"
)

// Handler serves the HTTP side of live sessions: ICE configuration and
// session/participant inspection. The WebSocket side lives in ServeWS.
type Handler struct {
	registry *Registry
	iceURLs  []string
	logger   *zap.Logger
}

func NewHandler(registry *Registry, iceURLs []string, logger *zap.Logger) *Handler {
	return &Handler{registry: registry, iceURLs: iceURLs, logger: logger}
}

// ICEServers returns the STUN/TURN servers clients should use when building
// their peer connections.
func (h *Handler) ICEServers(c *gin.Context) {
	servers := make([]webrtc.ICEServer, 0, len(h.iceURLs))
	for _, url := range h.iceURLs {
		servers = append(servers, webrtc.ICEServer{URLs: []string{url}})
	}
	response.OK(c, gin.H{"ice_servers": servers})
}

// SessionInfo returns the session snapshot plus its current participants.
func (h *Handler) SessionInfo(c *gin.Context) {
	sessionID := c.Param("session_id")
	sess, ok := h.registry.Get(sessionID)
	if !ok {
		response.NotFound(c, "Session not found")
		return
	}
	participants := h.registry.Participants(sessionID)
	response.OK(c, gin.H{
		"session":            sess,
		"participants":       participants,
		"participants_count": len(participants),
	})
}
