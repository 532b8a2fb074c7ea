package sessionlog

import (
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/digi-kul/backend/internal/middleware"
	"github.com/digi-kul/backend/pkg/response"
)

// Handler serves attendance and session archive endpoints.
type Handler struct {
	repo *Repository
}

// NewHandler creates a sessionlog handler.
func NewHandler(repo *Repository) *Handler {
	return &Handler{repo: repo}
}

// Attendees handles GET /api/teacher/sessions/:session_id/attendees.
func (h *Handler) Attendees(c *gin.Context) {
	sessionID := c.Param("session_id")
	if sessionID == "" {
		response.BadRequest(c, "session_id required")
		return
	}
	list, err := h.repo.Attendees(c.Request.Context(), sessionID)
	if err != nil {
		response.Internal(c, "failed to load attendees")
		return
	}
	response.OK(c, list)
}

// ArchivesByLecture handles GET /api/lectures/:id/sessions.
func (h *Handler) ArchivesByLecture(c *gin.Context) {
	lectureID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.BadRequest(c, "invalid lecture id")
		return
	}
	list, err := h.repo.ListArchivesByLecture(c.Request.Context(), lectureID)
	if err != nil {
		response.Internal(c, "failed to load session archives")
		return
	}
	response.OK(c, list)
}

// MyArchives handles GET /api/teacher/sessions.
func (h *Handler) MyArchives(c *gin.Context) {
	teacherID := c.MustGet(middleware.ContextUserID).(uuid.UUID)
	list, err := h.repo.ListArchivesByTeacher(c.Request.Context(), teacherID)
	if err != nil {
		response.Internal(c, "failed to load session archives")
		return
	}
	response.OK(c, list)
}
