package polls

import (
	"context"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/digi-kul/backend/internal/lectures"
	"github.com/digi-kul/backend/internal/live"
	"github.com/digi-kul/backend/internal/middleware"
	"github.com/digi-kul/backend/internal/models"
	"github.com/digi-kul/backend/pkg/response"
)

// Store is the poll persistence surface the handler depends on.
type Store interface {
	Create(ctx context.Context, p *models.Poll) error
	GetByID(ctx context.Context, id uuid.UUID) (*models.Poll, error)
	ListByLecture(ctx context.Context, lectureID uuid.UUID) ([]models.Poll, error)
	Vote(ctx context.Context, pollID, studentID uuid.UUID, optionIndex int) error
	Results(ctx context.Context, poll *models.Poll) (*models.PollResults, error)
}

// Handler handles poll HTTP endpoints. When the poll's lecture has a running
// live session, poll creation and results are pushed to the session over the
// relay so connected clients update without polling.
type Handler struct {
	repo     Store
	lectures *lectures.Repository
	registry *live.Registry
	relay    *live.Relay
}

// NewHandler creates a polls handler.
func NewHandler(repo Store, lectureRepo *lectures.Repository, registry *live.Registry, relay *live.Relay) *Handler {
	return &Handler{repo: repo, lectures: lectureRepo, registry: registry, relay: relay}
}

// CreateRequest is the body for POST /api/teacher/polls.
type CreateRequest struct {
	LectureID string   `json:"lecture_id" binding:"required,uuid"`
	Question  string   `json:"question" binding:"required"`
	Options   []string `json:"options" binding:"required,min=2"`
}

// VoteRequest is the body for POST /api/student/polls/:id/vote.
type VoteRequest struct {
	OptionIndex *int `json:"option_index" binding:"required"`
}

// Create handles POST /api/teacher/polls.
func (h *Handler) Create(c *gin.Context) {
	var req CreateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "invalid request: "+err.Error())
		return
	}
	lectureID, _ := uuid.Parse(req.LectureID)
	userID := c.MustGet(middleware.ContextUserID).(uuid.UUID)

	lecture, err := h.lectures.GetByID(c.Request.Context(), lectureID)
	if err != nil {
		response.NotFound(c, "lecture not found")
		return
	}
	if lecture.TeacherID != userID {
		response.Forbidden(c, "only the lecture owner can create polls")
		return
	}

	p := &models.Poll{
		LectureID: lectureID,
		CreatedBy: userID,
		Question:  req.Question,
		Options:   req.Options,
	}
	if err := h.repo.Create(c.Request.Context(), p); err != nil {
		response.Internal(c, "failed to create poll")
		return
	}
	h.pushToSession(lectureID, "new_poll", p)
	response.Created(c, p)
}

// ListByLecture handles GET /api/lectures/:id/polls.
func (h *Handler) ListByLecture(c *gin.Context) {
	lectureID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.BadRequest(c, "invalid lecture id")
		return
	}
	list, err := h.repo.ListByLecture(c.Request.Context(), lectureID)
	if err != nil {
		response.Internal(c, "failed to list polls")
		return
	}
	response.OK(c, list)
}

// Vote handles POST /api/student/polls/:id/vote. Voting again overwrites.
func (h *Handler) Vote(c *gin.Context) {
	pollID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.BadRequest(c, "invalid poll id")
		return
	}
	var req VoteRequest
	if err := c.ShouldBindJSON(&req); err != nil || req.OptionIndex == nil {
		response.BadRequest(c, "option_index required")
		return
	}
	poll, err := h.repo.GetByID(c.Request.Context(), pollID)
	if err != nil {
		response.NotFound(c, "poll not found")
		return
	}
	if *req.OptionIndex < 0 || *req.OptionIndex >= len(poll.Options) {
		response.BadRequest(c, "option_index out of range")
		return
	}
	studentID := c.MustGet(middleware.ContextUserID).(uuid.UUID)
	if err := h.repo.Vote(c.Request.Context(), pollID, studentID, *req.OptionIndex); err != nil {
		response.Internal(c, "failed to record vote")
		return
	}

	if res, err := h.repo.Results(c.Request.Context(), poll); err == nil {
		h.pushToSession(poll.LectureID, "poll_results", res)
	}
	response.OK(c, gin.H{"poll_id": pollID, "option_index": *req.OptionIndex})
}

// Results handles GET /api/polls/:id/results.
func (h *Handler) Results(c *gin.Context) {
	pollID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.BadRequest(c, "invalid poll id")
		return
	}
	poll, err := h.repo.GetByID(c.Request.Context(), pollID)
	if err != nil {
		response.NotFound(c, "poll not found")
		return
	}
	res, err := h.repo.Results(c.Request.Context(), poll)
	if err != nil {
		response.Internal(c, "failed to load results")
		return
	}
	response.OK(c, res)
}

func (h *Handler) pushToSession(lectureID uuid.UUID, event string, payload interface{}) {
	sessionID, ok := h.registry.ActiveSessionForLecture(lectureID.String())
	if !ok {
		return
	}
	h.relay.BroadcastAndPublish(sessionID, event, payload, "")
}
