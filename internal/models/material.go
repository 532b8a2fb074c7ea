package models

import (
	"time"

	"github.com/google/uuid"
)

// MaterialType classifies uploaded teaching material for compression.
type MaterialType string

const (
	MaterialAudio    MaterialType = "audio"
	MaterialImage    MaterialType = "image"
	MaterialDocument MaterialType = "document"
	MaterialOther    MaterialType = "other"
)

// Material represents an uploaded teaching material. The original and the
// compressed copy are stored as separate S3 objects; downloads serve the
// compressed one.
type Material struct {
	ID             uuid.UUID    `json:"id"`
	LectureID      uuid.UUID    `json:"lecture_id"`
	Title          string       `json:"title"`
	Description    string       `json:"description"`
	FileName       string       `json:"file_name"`
	FileType       MaterialType `json:"file_type"`
	OriginalKey    string       `json:"-"`
	CompressedKey  string       `json:"-"`
	OriginalSize   int64        `json:"original_size"`
	CompressedSize int64        `json:"compressed_size"`
	CreatedAt      time.Time    `json:"created_at"`
}
