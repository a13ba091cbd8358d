package knowledge

import "time"

// VectorDimension is the embedding dimension stored in the knowledge schema.
// Inserts and searches with a different dimension fail at the database level.
const VectorDimension = 384

// Document is a chunk of tax-advisory reference material.
// Documents are immutable after ingestion.
type Document struct {
	ID          int64     `json:"id"`
	Title       string    `json:"title"`
	Content     string    `json:"content"`
	Chapter     string    `json:"chapter"`
	ChunkIndex  int       `json:"chunk_index"`
	SourceName  string    `json:"source_name"`
	SourceURL   string    `json:"source_url,omitempty"`
	ContentHash string    `json:"-"`
	CreatedAt   time.Time `json:"-"`
}

// Match is a document returned by one retrieval leg with that leg's score.
// Lexical matches carry a ts_rank score, vector matches a cosine similarity.
type Match struct {
	Document
	Score float64 `json:"score"`
}
