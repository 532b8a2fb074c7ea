package cohorts

import (
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/digi-kul/backend/internal/middleware"
	"github.com/digi-kul/backend/internal/models"
	"github.com/digi-kul/backend/pkg/response"
)

// Handler handles cohort HTTP endpoints. Creation and membership management
// are admin-only; teachers and students get read access to their own cohorts.
type Handler struct {
	repo *Repository
}

// NewHandler creates a cohorts handler.
func NewHandler(repo *Repository) *Handler {
	return &Handler{repo: repo}
}

// CreateRequest is the body for POST /api/admin/cohorts.
type CreateRequest struct {
	Name        string `json:"name" binding:"required"`
	Description string `json:"description"`
	Subject     string `json:"subject" binding:"required"`
	TeacherID   string `json:"teacher_id" binding:"required,uuid"`
}

// MemberRequest is the body for cohort membership changes.
type MemberRequest struct {
	StudentID string `json:"student_id" binding:"required,uuid"`
}

// Create handles POST /api/admin/cohorts.
func (h *Handler) Create(c *gin.Context) {
	var req CreateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "invalid request: "+err.Error())
		return
	}
	teacherID, err := uuid.Parse(req.TeacherID)
	if err != nil {
		response.BadRequest(c, "invalid teacher_id")
		return
	}
	co := &models.Cohort{
		Name:        strings.TrimSpace(req.Name),
		Description: req.Description,
		Subject:     req.Subject,
		TeacherID:   teacherID,
	}
	if err := h.repo.Create(c.Request.Context(), co); err != nil {
		response.Internal(c, "failed to create cohort")
		return
	}
	response.Created(c, co)
}

// List handles GET /api/admin/cohorts.
func (h *Handler) List(c *gin.Context) {
	list, err := h.repo.List(c.Request.Context())
	if err != nil {
		response.Internal(c, "failed to list cohorts")
		return
	}
	response.OK(c, list)
}

// ListMine handles GET /api/teacher/cohorts and GET /api/student/cohorts,
// scoped by the caller's role.
func (h *Handler) ListMine(c *gin.Context) {
	userID := c.MustGet(middleware.ContextUserID).(uuid.UUID)
	role := c.GetString(middleware.ContextUserRole)

	var (
		list []models.Cohort
		err  error
	)
	if role == string(models.RoleTeacher) {
		list, err = h.repo.ListByTeacher(c.Request.Context(), userID)
	} else {
		list, err = h.repo.ListByStudent(c.Request.Context(), userID)
	}
	if err != nil {
		response.Internal(c, "failed to list cohorts")
		return
	}
	response.OK(c, list)
}

// AddStudent handles POST /api/admin/cohorts/:id/students.
func (h *Handler) AddStudent(c *gin.Context) {
	cohortID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.BadRequest(c, "invalid cohort id")
		return
	}
	var req MemberRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "invalid request: "+err.Error())
		return
	}
	studentID, _ := uuid.Parse(req.StudentID)
	if _, err := h.repo.GetByID(c.Request.Context(), cohortID); err != nil {
		response.NotFound(c, "cohort not found")
		return
	}
	if err := h.repo.AddStudent(c.Request.Context(), cohortID, studentID); err != nil {
		response.Internal(c, "failed to add student")
		return
	}
	response.Created(c, gin.H{"cohort_id": cohortID, "student_id": studentID})
}

// RemoveStudent handles DELETE /api/admin/cohorts/:id/students/:student_id.
func (h *Handler) RemoveStudent(c *gin.Context) {
	cohortID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.BadRequest(c, "invalid cohort id")
		return
	}
	studentID, err := uuid.Parse(c.Param("student_id"))
	if err != nil {
		response.BadRequest(c, "invalid student id")
		return
	}
	if err := h.repo.RemoveStudent(c.Request.Context(), cohortID, studentID); err != nil {
		response.Internal(c, "failed to remove student")
		return
	}
	response.NoContent(c)
}

// ListMembers handles GET /api/admin/cohorts/:id/students.
func (h *Handler) ListMembers(c *gin.Context) {
	cohortID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.BadRequest(c, "invalid cohort id")
		return
	}
	members, err := h.repo.ListMembers(c.Request.Context(), cohortID)
	if err != nil {
		response.Internal(c, "failed to load members")
		return
	}
	response.OK(c, members)
}
