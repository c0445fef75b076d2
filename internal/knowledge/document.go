// Package knowledge ingests user documents into a pgvector-backed store and
// serves semantic search over them.
package knowledge

import (
	"time"

	"github.com/google/uuid"
)

// Document processing states.
const (
	StatusProcessing = "processing"
	StatusReady      = "ready"
	StatusFailed     = "failed"
)

// File types accepted for ingestion.
var supportedFileTypes = map[string]bool{
	"text/plain":    true,
	"text/markdown": true,
	"txt":           true,
	"md":            true,
	"markdown":      true,
}

// SupportedFileType reports whether the given type can be ingested.
func SupportedFileType(fileType string) bool {
	return supportedFileTypes[fileType]
}

// Document is one ingested file.
type Document struct {
	DocID        uuid.UUID `json:"doc_id"`
	UserID       string    `json:"user_id"`
	FileName     string    `json:"file_name"`
	FileType     string    `json:"file_type"`
	NumChunks    int       `json:"num_chunks"`
	Status       string    `json:"status"`
	ErrorMessage string    `json:"error_message,omitempty"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// Chunk is one embedded slice of a document.
type Chunk struct {
	ChunkID   uuid.UUID         `json:"chunk_id"`
	DocID     uuid.UUID         `json:"doc_id"`
	UserID    string            `json:"user_id"`
	Content   string            `json:"content"`
	Metadata  map[string]string `json:"metadata,omitempty"`
	CreatedAt time.Time         `json:"created_at"`
}

// SearchResult is a chunk with its similarity score in [0, 1].
type SearchResult struct {
	Chunk
	FileName string  `json:"file_name"`
	Score    float64 `json:"score"`
}

// Stats summarizes a user's knowledge base.
type Stats struct {
	NumDocuments int64 `json:"num_documents"`
	NumChunks    int64 `json:"num_chunks"`
}
