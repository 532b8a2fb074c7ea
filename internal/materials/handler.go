package materials

import (
	"bytes"
	"io"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/digi-kul/backend/internal/lectures"
	"github.com/digi-kul/backend/internal/middleware"
	"github.com/digi-kul/backend/internal/models"
	"github.com/digi-kul/backend/pkg/response"
	"github.com/digi-kul/backend/pkg/storage"
)

// Handler handles material HTTP endpoints.
type Handler struct {
	repo          *Repository
	lectures      *lectures.Repository
	s3            *storage.S3
	compressor    *Compressor
	maxFileSizeMB int
	logger        *zap.Logger
}

// NewHandler creates a materials handler.
func NewHandler(repo *Repository, lectureRepo *lectures.Repository, s3 *storage.S3, compressor *Compressor, maxFileSizeMB int, logger *zap.Logger) *Handler {
	return &Handler{
		repo:          repo,
		lectures:      lectureRepo,
		s3:            s3,
		compressor:    compressor,
		maxFileSizeMB: maxFileSizeMB,
		logger:        logger,
	}
}

// Upload handles POST /api/teacher/materials (multipart form: lecture_id,
// title, description, file). The original and a compressed copy are stored
// as separate objects; listings report both sizes.
func (h *Handler) Upload(c *gin.Context) {
	teacherID := c.MustGet(middleware.ContextUserID).(uuid.UUID)

	lectureID, err := uuid.Parse(c.PostForm("lecture_id"))
	if err != nil {
		response.BadRequest(c, "invalid lecture_id")
		return
	}
	lecture, err := h.lectures.GetByID(c.Request.Context(), lectureID)
	if err != nil {
		response.NotFound(c, "lecture not found")
		return
	}
	if lecture.TeacherID != teacherID {
		response.Forbidden(c, "only the lecture owner can upload materials")
		return
	}

	fileHeader, err := c.FormFile("file")
	if err != nil {
		response.BadRequest(c, "file required")
		return
	}
	if fileHeader.Size > int64(h.maxFileSizeMB)<<20 {
		response.PayloadTooLarge(c, "file too large")
		return
	}
	f, err := fileHeader.Open()
	if err != nil {
		response.Internal(c, "failed to read file")
		return
	}
	defer f.Close()
	data, err := io.ReadAll(f)
	if err != nil {
		response.Internal(c, "failed to read file")
		return
	}

	fileType, contentType := DetectType(data)
	compressed, compressedCT := h.compressor.Compress(c.Request.Context(), fileType, contentType, data)

	title := c.PostForm("title")
	if title == "" {
		title = fileHeader.Filename
	}

	m := &models.Material{
		ID:             uuid.New(),
		LectureID:      lectureID,
		Title:          title,
		Description:    c.PostForm("description"),
		FileName:       fileHeader.Filename,
		FileType:       fileType,
		OriginalSize:   int64(len(data)),
		CompressedSize: int64(len(compressed)),
	}
	m.OriginalKey = storage.OriginalKey(lectureID.String(), m.ID.String(), m.FileName)
	m.CompressedKey = storage.CompressedKey(lectureID.String(), m.ID.String(), m.FileName)

	ctx := c.Request.Context()
	if err := h.s3.Upload(ctx, m.OriginalKey, contentType, bytes.NewReader(data)); err != nil {
		h.logger.Error("material original upload failed", zap.Error(err))
		response.Internal(c, "failed to store file")
		return
	}
	if err := h.s3.Upload(ctx, m.CompressedKey, compressedCT, bytes.NewReader(compressed)); err != nil {
		h.logger.Error("material compressed upload failed", zap.Error(err))
		response.Internal(c, "failed to store file")
		return
	}
	if err := h.repo.Create(ctx, m); err != nil {
		response.Internal(c, "failed to save material")
		return
	}

	ratio := 1.0
	if m.OriginalSize > 0 {
		ratio = float64(m.CompressedSize) / float64(m.OriginalSize)
	}
	response.Created(c, gin.H{"material": m, "compression_ratio": ratio})
}

// ListByLecture handles GET /api/lectures/:id/materials.
func (h *Handler) ListByLecture(c *gin.Context) {
	lectureID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.BadRequest(c, "invalid lecture id")
		return
	}
	list, err := h.repo.ListByLecture(c.Request.Context(), lectureID)
	if err != nil {
		response.Internal(c, "failed to list materials")
		return
	}
	response.OK(c, list)
}

// Download handles GET /api/materials/:id/download. Students must be
// enrolled in the material's lecture; teachers must own it. The response is
// a pre-signed URL for the compressed copy.
func (h *Handler) Download(c *gin.Context) {
	materialID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.BadRequest(c, "invalid material id")
		return
	}
	m, err := h.repo.GetByID(c.Request.Context(), materialID)
	if err != nil {
		response.NotFound(c, "material not found")
		return
	}

	if !h.canAccess(c, m) {
		response.Forbidden(c, "not authorized for this material")
		return
	}

	url, err := h.s3.PresignDownloadURL(c.Request.Context(), m.CompressedKey)
	if err != nil {
		h.logger.Error("presign failed", zap.String("key", m.CompressedKey), zap.Error(err))
		response.Internal(c, "failed to generate download link")
		return
	}
	response.OK(c, gin.H{
		"material_id":  m.ID,
		"download_url": url,
		"file_name":    m.FileName,
		"file_type":    m.FileType,
	})
}

func (h *Handler) canAccess(c *gin.Context, m *models.Material) bool {
	userID := c.MustGet(middleware.ContextUserID).(uuid.UUID)
	role := c.GetString(middleware.ContextUserRole)

	switch role {
	case string(models.RoleAdmin):
		return true
	case string(models.RoleTeacher):
		lecture, err := h.lectures.GetByID(c.Request.Context(), m.LectureID)
		return err == nil && lecture.TeacherID == userID
	default:
		enrolled, _ := h.lectures.IsEnrolled(c.Request.Context(), userID, m.LectureID)
		return enrolled
	}
}

// Delete handles DELETE /api/teacher/materials/:id (owner only). S3 objects
// are removed best-effort after the record.
func (h *Handler) Delete(c *gin.Context) {
	materialID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.BadRequest(c, "invalid material id")
		return
	}
	m, err := h.repo.GetByID(c.Request.Context(), materialID)
	if err != nil {
		response.NotFound(c, "material not found")
		return
	}
	teacherID := c.MustGet(middleware.ContextUserID).(uuid.UUID)
	lecture, err := h.lectures.GetByID(c.Request.Context(), m.LectureID)
	if err != nil || lecture.TeacherID != teacherID {
		response.Forbidden(c, "only the lecture owner can delete materials")
		return
	}
	if err := h.repo.Delete(c.Request.Context(), materialID); err != nil {
		response.Internal(c, "failed to delete material")
		return
	}
	ctx := c.Request.Context()
	if err := h.s3.Delete(ctx, m.OriginalKey); err != nil {
		h.logger.Warn("failed to delete original object", zap.String("key", m.OriginalKey), zap.Error(err))
	}
	if err := h.s3.Delete(ctx, m.CompressedKey); err != nil {
		h.logger.Warn("failed to delete compressed object", zap.String("key", m.CompressedKey), zap.Error(err))
	}
	response.NoContent(c)
}
