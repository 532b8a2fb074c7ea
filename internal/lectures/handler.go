package lectures

import (
	"encoding/hex"
	"fmt"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/digi-kul/backend/internal/live"
	"github.com/digi-kul/backend/internal/middleware"
	"github.com/digi-kul/backend/internal/models"
	"github.com/digi-kul/backend/pkg/response"
)

// CreateRequest is the body for POST /api/teacher/lectures.
type CreateRequest struct {
	Title         string  `json:"title" binding:"required"`
	Description   string  `json:"description"`
	ScheduledTime string  `json:"scheduled_time" binding:"required"`
	DurationMin   int     `json:"duration_minutes"`
	CohortID      *string `json:"cohort_id"`
}

// Handler handles lecture HTTP endpoints.
type Handler struct {
	repo     *Repository
	registry *live.Registry
}

// NewHandler creates a lecture handler.
func NewHandler(repo *Repository, registry *live.Registry) *Handler {
	return &Handler{repo: repo, registry: registry}
}

// Create handles POST /api/teacher/lectures (teacher only).
func (h *Handler) Create(c *gin.Context) {
	var req CreateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "invalid request: "+err.Error())
		return
	}
	teacherID := c.MustGet(middleware.ContextUserID).(uuid.UUID)

	scheduled, err := time.Parse(time.RFC3339, req.ScheduledTime)
	if err != nil {
		response.BadRequest(c, "invalid scheduled_time")
		return
	}
	if req.DurationMin <= 0 {
		req.DurationMin = 60
	}
	var cohortID *uuid.UUID
	if req.CohortID != nil {
		id, err := uuid.Parse(*req.CohortID)
		if err != nil {
			response.BadRequest(c, "invalid cohort_id")
			return
		}
		cohortID = &id
	}

	l := &models.Lecture{
		TeacherID:     teacherID,
		CohortID:      cohortID,
		Title:         req.Title,
		Description:   req.Description,
		ScheduledTime: scheduled,
		DurationMin:   req.DurationMin,
	}
	if err := h.repo.Create(c.Request.Context(), l); err != nil {
		response.Internal(c, "failed to create lecture")
		return
	}
	response.Created(c, l)
}

// ListMine handles GET /api/teacher/lectures.
func (h *Handler) ListMine(c *gin.Context) {
	teacherID := c.MustGet(middleware.ContextUserID).(uuid.UUID)
	list, err := h.repo.ListByTeacher(c.Request.Context(), teacherID)
	if err != nil {
		response.Internal(c, "failed to list lectures")
		return
	}
	response.OK(c, h.decorate(list))
}

// ListAvailable handles GET /api/student/lectures. Lectures with a running
// live session are flagged so clients can offer a join button.
func (h *Handler) ListAvailable(c *gin.Context) {
	studentID := c.MustGet(middleware.ContextUserID).(uuid.UUID)
	list, err := h.repo.ListAvailable(c.Request.Context(), studentID)
	if err != nil {
		response.Internal(c, "failed to list lectures")
		return
	}
	response.OK(c, h.decorate(list))
}

// ListEnrolled handles GET /api/student/lectures/enrolled.
func (h *Handler) ListEnrolled(c *gin.Context) {
	studentID := c.MustGet(middleware.ContextUserID).(uuid.UUID)
	list, err := h.repo.ListEnrolled(c.Request.Context(), studentID)
	if err != nil {
		response.Internal(c, "failed to list enrolled lectures")
		return
	}
	response.OK(c, h.decorate(list))
}

func (h *Handler) decorate(list []models.Lecture) []models.Lecture {
	active := h.registry.ActiveLectureIDs()
	for i := range list {
		list[i].SessionActive = active[list[i].ID.String()]
	}
	return list
}

// GetByID handles GET /api/lectures/:id.
func (h *Handler) GetByID(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.BadRequest(c, "invalid lecture id")
		return
	}
	l, err := h.repo.GetByID(c.Request.Context(), id)
	if err != nil {
		response.NotFound(c, "lecture not found")
		return
	}
	_, l.SessionActive = h.registry.ActiveSessionForLecture(l.ID.String())
	response.OK(c, l)
}

// Update handles PUT /api/teacher/lectures/:id (owner only).
func (h *Handler) Update(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.BadRequest(c, "invalid lecture id")
		return
	}
	teacherID := c.MustGet(middleware.ContextUserID).(uuid.UUID)
	l, err := h.repo.GetByID(c.Request.Context(), id)
	if err != nil {
		response.NotFound(c, "lecture not found")
		return
	}
	if l.TeacherID != teacherID {
		response.Forbidden(c, "only the lecture owner can update it")
		return
	}
	var req struct {
		Title         *string `json:"title"`
		Description   *string `json:"description"`
		ScheduledTime *string `json:"scheduled_time"`
		DurationMin   *int    `json:"duration_minutes"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "invalid request")
		return
	}
	title, desc := l.Title, l.Description
	if req.Title != nil {
		title = *req.Title
	}
	if req.Description != nil {
		desc = *req.Description
	}
	var scheduled *time.Time
	if req.ScheduledTime != nil {
		t, err := time.Parse(time.RFC3339, *req.ScheduledTime)
		if err != nil {
			response.BadRequest(c, "invalid scheduled_time")
			return
		}
		scheduled = &t
	}
	if err := h.repo.Update(c.Request.Context(), id, title, desc, scheduled, req.DurationMin); err != nil {
		response.Internal(c, "failed to update lecture")
		return
	}
	updated, _ := h.repo.GetByID(c.Request.Context(), id)
	response.OK(c, updated)
}

// Delete handles DELETE /api/teacher/lectures/:id (owner only).
func (h *Handler) Delete(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.BadRequest(c, "invalid lecture id")
		return
	}
	teacherID := c.MustGet(middleware.ContextUserID).(uuid.UUID)
	l, err := h.repo.GetByID(c.Request.Context(), id)
	if err != nil {
		response.NotFound(c, "lecture not found")
		return
	}
	if l.TeacherID != teacherID {
		response.Forbidden(c, "only the lecture owner can delete it")
		return
	}
	if err := h.repo.Delete(c.Request.Context(), id); err != nil {
		response.Internal(c, "failed to delete lecture")
		return
	}
	response.NoContent(c)
}

// Enroll handles POST /api/student/lectures/:id/enroll.
func (h *Handler) Enroll(c *gin.Context) {
	lectureID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.BadRequest(c, "invalid lecture id")
		return
	}
	studentID := c.MustGet(middleware.ContextUserID).(uuid.UUID)
	if _, err := h.repo.GetByID(c.Request.Context(), lectureID); err != nil {
		response.NotFound(c, "lecture not found")
		return
	}
	if err := h.repo.Enroll(c.Request.Context(), studentID, lectureID); err != nil {
		response.Internal(c, "failed to enroll")
		return
	}
	response.Created(c, gin.H{"lecture_id": lectureID, "student_id": studentID})
}

// StartLiveSession handles POST /api/teacher/live_session/start (owner only).
// A lecture has at most one active session at a time.
func (h *Handler) StartLiveSession(c *gin.Context) {
	var req struct {
		LectureID string `json:"lecture_id" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "invalid request: "+err.Error())
		return
	}
	lectureID, err := uuid.Parse(req.LectureID)
	if err != nil {
		response.BadRequest(c, "invalid lecture_id")
		return
	}
	teacherID := c.MustGet(middleware.ContextUserID).(uuid.UUID)
	teacherName := c.GetString(middleware.ContextUserName)

	l, err := h.repo.GetByID(c.Request.Context(), lectureID)
	if err != nil {
		response.NotFound(c, "lecture not found")
		return
	}
	if l.TeacherID != teacherID {
		response.Forbidden(c, "only the lecture owner can start a session")
		return
	}
	if sessionID, ok := h.registry.ActiveSessionForLecture(lectureID.String()); ok {
		response.OK(c, gin.H{"session_id": sessionID, "already_active": true})
		return
	}

	sessionID := newSessionID(lectureID.String())
	if err := h.registry.Start(sessionID, lectureID.String(), teacherID.String(), teacherName, l.Title); err != nil {
		response.Conflict(c, "session already exists")
		return
	}
	response.Created(c, gin.H{"session_id": sessionID, "lecture_id": lectureID})
}

// GetSessionByLecture handles GET /api/lectures/:id/session.
func (h *Handler) GetSessionByLecture(c *gin.Context) {
	lectureID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.BadRequest(c, "invalid lecture id")
		return
	}
	sessionID, ok := h.registry.ActiveSessionForLecture(lectureID.String())
	if !ok {
		response.NotFound(c, "no active session for this lecture")
		return
	}
	sess, _ := h.registry.Get(sessionID)
	response.OK(c, sess)
}

// newSessionID builds a session identifier from the lecture id plus a short
// random suffix so restarted lectures get distinct session rooms.
func newSessionID(lectureID string) string {
	raw := uuid.New()
	return fmt.Sprintf("session_%s_%s", lectureID, hex.EncodeToString(raw[:4]))
}
