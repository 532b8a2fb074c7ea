package auth

import (
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/digi-kul/backend/internal/models"
	"github.com/digi-kul/backend/pkg/response"
	"github.com/digi-kul/backend/pkg/utils"
)

// RegisterRequest is the body for POST /auth/register/teacher and /auth/register/student.
type RegisterRequest struct {
	Email       string `json:"email" binding:"required,email"`
	Password    string `json:"password" binding:"required,min=6"`
	FullName    string `json:"full_name" binding:"required"`
	Institution string `json:"institution" binding:"required"`
	Subject     string `json:"subject"` // teachers only
}

// LoginRequest is the body for POST /auth/login.
type LoginRequest struct {
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required"`
}

// TokenResponse is the auth response with JWT.
type TokenResponse struct {
	Token string            `json:"token"`
	User  models.UserPublic `json:"user"`
}

// Handler handles auth HTTP endpoints.
type Handler struct {
	repo   *Repository
	jwt    *JWTService
	logger *zap.Logger
}

// NewHandler creates an auth handler.
func NewHandler(repo *Repository, jwt *JWTService, logger *zap.Logger) *Handler {
	return &Handler{repo: repo, jwt: jwt, logger: logger}
}

// Login handles POST /auth/login for all roles.
func (h *Handler) Login(c *gin.Context) {
	var req LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "invalid request: "+err.Error())
		return
	}

	user, err := h.repo.GetByEmail(c.Request.Context(), req.Email)
	if err != nil {
		response.Unauthorized(c, "invalid email or password")
		return
	}
	if !utils.CheckPassword(req.Password, user.Password) {
		response.Unauthorized(c, "invalid email or password")
		return
	}

	token, err := h.jwt.Generate(user.ID, user.Email, user.FullName, string(user.Role))
	if err != nil {
		response.Internal(c, "failed to generate token")
		return
	}
	response.OK(c, TokenResponse{Token: token, User: user.ToPublic()})
}

// RegisterTeacher handles POST /auth/register/teacher (admin only).
func (h *Handler) RegisterTeacher(c *gin.Context) {
	h.register(c, models.RoleTeacher)
}

// RegisterStudent handles POST /auth/register/student (admin only).
func (h *Handler) RegisterStudent(c *gin.Context) {
	h.register(c, models.RoleStudent)
}

func (h *Handler) register(c *gin.Context, role models.Role) {
	var req RegisterRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "invalid request: "+err.Error())
		return
	}
	if role == models.RoleTeacher && req.Subject == "" {
		response.BadRequest(c, "subject is required for teachers")
		return
	}

	if _, err := h.repo.GetByEmail(c.Request.Context(), req.Email); err == nil {
		response.BadRequest(c, "email already registered")
		return
	}

	hash, err := utils.HashPassword(req.Password)
	if err != nil {
		response.Internal(c, "failed to hash password")
		return
	}
	user, err := h.repo.Create(c.Request.Context(), req.Email, hash, req.FullName, role, req.Institution, req.Subject)
	if err != nil {
		h.logger.Error("create user", zap.Error(err), zap.String("email", req.Email))
		response.Internal(c, "failed to create user")
		return
	}
	response.Created(c, user.ToPublic())
}

// ListTeachers handles GET /api/admin/teachers.
func (h *Handler) ListTeachers(c *gin.Context) {
	list, err := h.repo.ListByRole(c.Request.Context(), models.RoleTeacher)
	if err != nil {
		response.Internal(c, "failed to list teachers")
		return
	}
	response.OK(c, list)
}

// ListStudents handles GET /api/admin/students.
func (h *Handler) ListStudents(c *gin.Context) {
	list, err := h.repo.ListByRole(c.Request.Context(), models.RoleStudent)
	if err != nil {
		response.Internal(c, "failed to list students")
		return
	}
	response.OK(c, list)
}
