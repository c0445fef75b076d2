package knowledge

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pgvector/pgvector-go"

	errx "github.com/JoLiu-ai/agentic-chat/internal/core/error"
	logx "github.com/JoLiu-ai/agentic-chat/pkg/logger"
)

// Default search parameters.
const (
	DefaultTopK           = 5
	DefaultScoreThreshold = 0.3
	maxTopK               = 50
	embedBatchSize        = 32
)

// Store manages document ingestion and vector search over pgvector.
// Safe for concurrent use.
type Store struct {
	pool     *pgxpool.Pool
	embedder Embedder
	splitter *Splitter
}

// NewStore wires the ingestion pipeline together.
func NewStore(pool *pgxpool.Pool, embedder Embedder, splitter *Splitter) *Store {
	return &Store{pool: pool, embedder: embedder, splitter: splitter}
}

// Ingest splits, embeds, and stores one document. The document row is
// created first in processing state so failures remain visible with their
// error message.
func (s *Store) Ingest(ctx context.Context, userID, fileName, fileType, content string) (*Document, error) {
	if !SupportedFileType(fileType) {
		return nil, errx.New(nil, http.StatusUnsupportedMediaType,
			fmt.Sprintf("unsupported file type %q", fileType))
	}

	docID := uuid.New()
	doc := &Document{}
	err := s.pool.QueryRow(ctx, `
		INSERT INTO documents (doc_id, user_id, file_name, file_type, status)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING doc_id, user_id, file_name, file_type, num_chunks, status, error_message, created_at, updated_at`,
		docID, userID, fileName, fileType, StatusProcessing).
		Scan(&doc.DocID, &doc.UserID, &doc.FileName, &doc.FileType, &doc.NumChunks,
			&doc.Status, &doc.ErrorMessage, &doc.CreatedAt, &doc.UpdatedAt)
	if err != nil {
		return nil, errx.WrapPostgres(err)
	}

	if err := s.embedAndStore(ctx, doc, content); err != nil {
		s.markFailed(ctx, docID, err)
		return nil, err
	}

	if err := s.pool.QueryRow(ctx, `
		UPDATE documents SET num_chunks = (
			SELECT COUNT(*) FROM document_chunks WHERE doc_id = $1
		), status = $2, updated_at = now()
		WHERE doc_id = $1
		RETURNING num_chunks, status, updated_at`,
		docID, StatusReady).
		Scan(&doc.NumChunks, &doc.Status, &doc.UpdatedAt); err != nil {
		return nil, errx.WrapPostgres(err)
	}

	logx.Info().
		Str("doc_id", docID.String()).
		Str("file_name", fileName).
		Int("num_chunks", doc.NumChunks).
		Msg("Document ingested")
	return doc, nil
}

func (s *Store) embedAndStore(ctx context.Context, doc *Document, content string) error {
	chunks := s.splitter.Split(content)
	if len(chunks) == 0 {
		return errx.New(nil, http.StatusBadRequest, "document has no content")
	}

	for start := 0; start < len(chunks); start += embedBatchSize {
		end := start + embedBatchSize
		if end > len(chunks) {
			end = len(chunks)
		}
		batch := chunks[start:end]

		vectors, err := s.embedder.Embed(ctx, batch)
		if err != nil {
			return errx.New(err, http.StatusBadGateway, errx.ModelErrorMessage)
		}

		for i, chunk := range batch {
			metadata, _ := json.Marshal(map[string]string{
				"file_name":   doc.FileName,
				"chunk_index": strconv.Itoa(start + i),
			})
			_, err := s.pool.Exec(ctx, `
				INSERT INTO document_chunks (chunk_id, doc_id, user_id, content, embedding, metadata)
				VALUES ($1, $2, $3, $4, $5, $6)`,
				uuid.New(), doc.DocID, doc.UserID, chunk, pgvector.NewVector(vectors[i]), metadata)
			if err != nil {
				return errx.WrapPostgres(err)
			}
		}
	}
	return nil
}

func (s *Store) markFailed(ctx context.Context, docID uuid.UUID, cause error) {
	_, err := s.pool.Exec(ctx, `
		UPDATE documents SET status = $2, error_message = $3, updated_at = now()
		WHERE doc_id = $1`,
		docID, StatusFailed, cause.Error())
	if err != nil {
		logx.Error().Err(err).Str("doc_id", docID.String()).Msg("Failed to mark document failed")
	}
}

// Search embeds the query and returns the user's most similar chunks. Cosine
// distance from pgvector is converted to a similarity score in [0, 1];
// results under threshold are dropped.
func (s *Store) Search(ctx context.Context, userID, query string, topK int, threshold float64) ([]*SearchResult, error) {
	if topK <= 0 {
		topK = DefaultTopK
	}
	if topK > maxTopK {
		topK = maxTopK
	}
	if threshold <= 0 {
		threshold = DefaultScoreThreshold
	}

	vectors, err := s.embedder.Embed(ctx, []string{query})
	if err != nil {
		return nil, errx.New(err, http.StatusBadGateway, errx.ModelErrorMessage)
	}
	queryVec := pgvector.NewVector(vectors[0])

	rows, err := s.pool.Query(ctx, `
		SELECT c.chunk_id, c.doc_id, c.user_id, c.content, c.metadata, c.created_at,
		       d.file_name,
		       1 - (c.embedding <=> $2) AS score
		FROM document_chunks c
		JOIN documents d ON d.doc_id = c.doc_id
		WHERE c.user_id = $1
		ORDER BY c.embedding <=> $2
		LIMIT $3`,
		userID, queryVec, topK)
	if err != nil {
		return nil, errx.WrapPostgres(err)
	}
	defer rows.Close()

	results := make([]*SearchResult, 0, topK)
	for rows.Next() {
		var r SearchResult
		var metadataJSON []byte
		if err := rows.Scan(&r.ChunkID, &r.DocID, &r.UserID, &r.Content, &metadataJSON,
			&r.CreatedAt, &r.FileName, &r.Score); err != nil {
			return nil, errx.WrapPostgres(err)
		}
		if r.Score < threshold {
			continue
		}
		if len(metadataJSON) > 0 {
			_ = json.Unmarshal(metadataJSON, &r.Metadata)
		}
		results = append(results, &r)
	}
	if err := rows.Err(); err != nil {
		return nil, errx.WrapPostgres(err)
	}
	return results, nil
}

// Delete removes a document and its chunks, scoped to the owning user.
func (s *Store) Delete(ctx context.Context, userID string, docID uuid.UUID) error {
	tag, err := s.pool.Exec(ctx,
		`DELETE FROM documents WHERE doc_id = $1 AND user_id = $2`, docID, userID)
	if err != nil {
		return errx.WrapPostgres(err)
	}
	if tag.RowsAffected() == 0 {
		return errx.New(nil, http.StatusNotFound, errx.NotFoundMessage)
	}
	return nil
}

// UserStats counts a user's documents and chunks.
func (s *Store) UserStats(ctx context.Context, userID string) (*Stats, error) {
	var stats Stats
	err := s.pool.QueryRow(ctx, `
		SELECT
			(SELECT COUNT(*) FROM documents WHERE user_id = $1),
			(SELECT COUNT(*) FROM document_chunks WHERE user_id = $1)`,
		userID).Scan(&stats.NumDocuments, &stats.NumChunks)
	if err != nil {
		return nil, errx.WrapPostgres(err)
	}
	return &stats, nil
}
