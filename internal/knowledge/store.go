// Package knowledge provides PostgreSQL-backed storage and retrieval for the
// tax-advisory reference corpus. Documents carry both a full-text index and a
// pgvector embedding, so the store serves the lexical and vector legs of
// hybrid retrieval independently.
package knowledge

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/pgvector/pgvector-go"

	"github.com/taxline/taxline/internal/log"
)

// Querier defines the database operations the store needs.
// Interfaces are defined by the consumer, not the provider; *pgxpool.Pool
// satisfies this, and tests substitute a mock.
type Querier interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

// Store manages knowledge documents with lexical and vector search.
// Safe for concurrent use by multiple goroutines.
type Store struct {
	db     Querier
	logger log.Logger
}

// New creates a Store. A nil logger falls back to a no-op logger.
func New(db Querier, logger log.Logger) *Store {
	if logger == nil {
		logger = log.NewNop()
	}
	return &Store{db: db, logger: logger}
}

const documentColumns = `id, title, content, chapter, chunk_index, source_name, source_url, content_hash, created_at`

func scanDocument(row pgx.Rows, doc *Document) error {
	return row.Scan(
		&doc.ID, &doc.Title, &doc.Content, &doc.Chapter, &doc.ChunkIndex,
		&doc.SourceName, &doc.SourceURL, &doc.ContentHash, &doc.CreatedAt,
	)
}

// LexicalSearch performs full-text search ranked by ts_rank_cd.
// Results are ordered by descending rank, ties broken by document id.
func (s *Store) LexicalSearch(ctx context.Context, query string, k int) ([]Match, error) {
	rows, err := s.db.Query(ctx, `
		SELECT `+documentColumns+`,
		       ts_rank_cd(lexical, websearch_to_tsquery('english', $1))::float8 AS score
		FROM knowledge_documents
		WHERE lexical @@ websearch_to_tsquery('english', $1)
		ORDER BY score DESC, id ASC
		LIMIT $2`,
		query, k,
	)
	if err != nil {
		return nil, fmt.Errorf("lexical search: %w", err)
	}
	defer rows.Close()

	matches, err := collectMatches(rows)
	if err != nil {
		return nil, fmt.Errorf("lexical search: %w", err)
	}

	s.logger.Debug("lexical search complete", "query_len", len(query), "matches", len(matches))
	return matches, nil
}

// VectorSearch performs cosine nearest-neighbor search over document
// embeddings. Matches below floor are dropped to suppress pure noise.
// Results are ordered by descending similarity, ties broken by document id.
func (s *Store) VectorSearch(ctx context.Context, embedding []float32, k int, floor float64) ([]Match, error) {
	if len(embedding) != VectorDimension {
		return nil, fmt.Errorf("vector search: embedding dimension %d, want %d", len(embedding), VectorDimension)
	}

	vec := pgvector.NewVector(embedding)
	rows, err := s.db.Query(ctx, `
		SELECT `+documentColumns+`,
		       (1 - (embedding <=> $1))::float8 AS score
		FROM knowledge_documents
		WHERE 1 - (embedding <=> $1) > $2
		ORDER BY embedding <=> $1 ASC, id ASC
		LIMIT $3`,
		vec, floor, k,
	)
	if err != nil {
		return nil, fmt.Errorf("vector search: %w", err)
	}
	defer rows.Close()

	matches, err := collectMatches(rows)
	if err != nil {
		return nil, fmt.Errorf("vector search: %w", err)
	}

	s.logger.Debug("vector search complete", "matches", len(matches), "floor", floor)
	return matches, nil
}

// Neighbors returns chunks adjacent to doc within the same chapter, up to
// window positions on each side, excluding doc itself. Ordered by chunk
// index ascending.
func (s *Store) Neighbors(ctx context.Context, doc Document, window int) ([]Document, error) {
	if window <= 0 {
		return nil, nil
	}

	rows, err := s.db.Query(ctx, `
		SELECT `+documentColumns+`
		FROM knowledge_documents
		WHERE chapter = $1
		  AND chunk_index BETWEEN $2 AND $3
		  AND id <> $4
		ORDER BY chunk_index ASC`,
		doc.Chapter, doc.ChunkIndex-window, doc.ChunkIndex+window, doc.ID,
	)
	if err != nil {
		return nil, fmt.Errorf("neighbors: %w", err)
	}
	defer rows.Close()

	var docs []Document
	for rows.Next() {
		var d Document
		if err := scanDocument(rows, &d); err != nil {
			return nil, fmt.Errorf("neighbors: %w", err)
		}
		docs = append(docs, d)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("neighbors: %w", err)
	}
	return docs, nil
}

// Add ingests a document chunk. The content hash deduplicates: a chunk whose
// content was already ingested is skipped and Add reports false.
func (s *Store) Add(ctx context.Context, doc Document, embedding []float32) (bool, error) {
	if len(embedding) != VectorDimension {
		return false, fmt.Errorf("add document: embedding dimension %d, want %d", len(embedding), VectorDimension)
	}

	hash := ContentHash(doc.Content)
	vec := pgvector.NewVector(embedding)

	tag, err := s.db.Exec(ctx, `
		INSERT INTO knowledge_documents
			(title, content, chapter, chunk_index, source_name, source_url, content_hash, embedding)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (content_hash) DO NOTHING`,
		doc.Title, doc.Content, doc.Chapter, doc.ChunkIndex,
		doc.SourceName, doc.SourceURL, hash, vec,
	)
	if err != nil {
		return false, fmt.Errorf("add document: %w", err)
	}

	inserted := tag.RowsAffected() > 0
	if !inserted {
		s.logger.Debug("duplicate document skipped", "title", doc.Title, "chunk_index", doc.ChunkIndex)
	}
	return inserted, nil
}

// Get retrieves a single document by id.
func (s *Store) Get(ctx context.Context, id int64) (Document, error) {
	var doc Document
	row := s.db.QueryRow(ctx, `
		SELECT `+documentColumns+`
		FROM knowledge_documents
		WHERE id = $1`,
		id,
	)
	err := row.Scan(
		&doc.ID, &doc.Title, &doc.Content, &doc.Chapter, &doc.ChunkIndex,
		&doc.SourceName, &doc.SourceURL, &doc.ContentHash, &doc.CreatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return Document{}, fmt.Errorf("document %d not found: %w", id, err)
	}
	if err != nil {
		return Document{}, fmt.Errorf("get document %d: %w", id, err)
	}
	return doc, nil
}

// Count returns the number of ingested documents.
func (s *Store) Count(ctx context.Context) (int64, error) {
	var count int64
	if err := s.db.QueryRow(ctx, `SELECT count(*) FROM knowledge_documents`).Scan(&count); err != nil {
		return 0, fmt.Errorf("count documents: %w", err)
	}
	return count, nil
}

// ContentHash returns the hex-encoded SHA-256 of a chunk's content, used to
// deduplicate documents at ingestion.
func ContentHash(content string) string {
	sum := sha256.Sum256([]byte(content))
	return hex.EncodeToString(sum[:])
}

func collectMatches(rows pgx.Rows) ([]Match, error) {
	var matches []Match
	for rows.Next() {
		var m Match
		if err := rows.Scan(
			&m.ID, &m.Title, &m.Content, &m.Chapter, &m.ChunkIndex,
			&m.SourceName, &m.SourceURL, &m.ContentHash, &m.CreatedAt,
			&m.Score,
		); err != nil {
			return nil, err
		}
		matches = append(matches, m)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return matches, nil
}
