package materials

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/digi-kul/backend/internal/models"
)

// Repository handles material persistence.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository creates a materials repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// Create inserts a material record.
func (r *Repository) Create(ctx context.Context, m *models.Material) error {
	const q = `INSERT INTO materials (id, lecture_id, title, description, file_name, file_type, original_key, compressed_key, original_size, compressed_size)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		RETURNING created_at`
	return r.pool.QueryRow(ctx, q, m.ID, m.LectureID, m.Title, m.Description, m.FileName, m.FileType, m.OriginalKey, m.CompressedKey, m.OriginalSize, m.CompressedSize).
		Scan(&m.CreatedAt)
}

// GetByID returns a material by ID.
func (r *Repository) GetByID(ctx context.Context, id uuid.UUID) (*models.Material, error) {
	const q = `SELECT id, lecture_id, title, description, file_name, file_type, original_key, compressed_key, original_size, compressed_size, created_at
		FROM materials WHERE id = $1`
	var m models.Material
	err := r.pool.QueryRow(ctx, q, id).Scan(&m.ID, &m.LectureID, &m.Title, &m.Description, &m.FileName, &m.FileType, &m.OriginalKey, &m.CompressedKey, &m.OriginalSize, &m.CompressedSize, &m.CreatedAt)
	if err != nil {
		return nil, err
	}
	return &m, nil
}

// ListByLecture returns materials for a lecture, newest first.
func (r *Repository) ListByLecture(ctx context.Context, lectureID uuid.UUID) ([]models.Material, error) {
	const q = `SELECT id, lecture_id, title, description, file_name, file_type, original_key, compressed_key, original_size, compressed_size, created_at
		FROM materials WHERE lecture_id = $1 ORDER BY created_at DESC`
	rows, err := r.pool.Query(ctx, q, lectureID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var list []models.Material
	for rows.Next() {
		var m models.Material
		if err := rows.Scan(&m.ID, &m.LectureID, &m.Title, &m.Description, &m.FileName, &m.FileType, &m.OriginalKey, &m.CompressedKey, &m.OriginalSize, &m.CompressedSize, &m.CreatedAt); err != nil {
			return nil, err
		}
		list = append(list, m)
	}
	return list, rows.Err()
}

// Delete removes a material record.
func (r *Repository) Delete(ctx context.Context, id uuid.UUID) error {
	const q = `DELETE FROM materials WHERE id = $1`
	_, err := r.pool.Exec(ctx, q, id)
	return err
}
