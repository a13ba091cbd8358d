package retrieval

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"unicode/utf8"

	"github.com/taxline/taxline/internal/config"
	"github.com/taxline/taxline/internal/knowledge"
	"github.com/taxline/taxline/internal/log"
)

// NeighborStore fetches chunks adjacent to a document within its chapter.
type NeighborStore interface {
	Neighbors(ctx context.Context, doc knowledge.Document, window int) ([]knowledge.Document, error)
}

// Assembler builds the citation-tagged context block from ranked candidates.
type Assembler struct {
	neighbors NeighborStore
	cfg       config.RetrievalConfig
	logger    log.Logger
}

// NewAssembler creates a context assembler. A nil neighbor store disables
// chunk expansion regardless of configuration.
func NewAssembler(neighbors NeighborStore, cfg config.RetrievalConfig, logger log.Logger) *Assembler {
	if logger == nil {
		logger = log.NewNop()
	}
	return &Assembler{neighbors: neighbors, cfg: cfg, logger: logger}
}

// Assemble concatenates candidates into a numbered context block under the
// configured character budget. Candidates are taken in rank order; once the
// remaining budget cannot fit a meaningful chunk, the rest are dropped.
// Citation numbers in the output text match the returned sources.
//
// When chunk expansion is enabled, each entry's content is widened with its
// chapter neighbors. The entry keeps its retrieval and rerank scores, they
// are never recomputed for expanded content.
func (a *Assembler) Assemble(ctx context.Context, candidates []RankedCandidate) Context {
	var b strings.Builder
	sources := make([]Source, 0, len(candidates))

	for _, c := range candidates {
		number := len(sources) + 1
		header := formatHeader(number, c.Document)
		content := a.expand(ctx, c.Document)

		remaining := a.cfg.ContextBudget - b.Len() - len(header)
		if len(sources) > 0 {
			remaining -= 2 // separator
		}
		if remaining < a.cfg.MinChunkChars {
			a.logger.Debug("context budget exhausted",
				"included", len(sources), "dropped", len(candidates)-len(sources))
			break
		}
		if len(content) > remaining {
			cut := remaining
			for cut > 0 && !utf8.RuneStart(content[cut]) {
				cut--
			}
			content = content[:cut]
		}

		if len(sources) > 0 {
			b.WriteString("\n\n")
		}
		b.WriteString(header)
		b.WriteString(content)

		sources = append(sources, Source{
			Number:         number,
			Title:          c.Title,
			Chapter:        c.Chapter,
			SourceName:     c.SourceName,
			SourceURL:      c.SourceURL,
			LexicalScore:   c.LexicalScore,
			VectorScore:    c.VectorScore,
			RelevanceScore: c.RelevanceScore,
		})
	}

	return Context{Text: b.String(), Sources: sources}
}

// expand widens a chunk with its chapter neighbors, ordered by chunk index.
// Expansion failures fall back to the original content.
func (a *Assembler) expand(ctx context.Context, doc knowledge.Document) string {
	if a.neighbors == nil || a.cfg.ExpandBy <= 0 {
		return doc.Content
	}

	adjacent, err := a.neighbors.Neighbors(ctx, doc, a.cfg.ExpandBy)
	if err != nil {
		a.logger.Warn("neighbor expansion failed", "document_id", doc.ID, "error", err)
		return doc.Content
	}
	if len(adjacent) == 0 {
		return doc.Content
	}

	chunks := append(adjacent, doc)
	sort.Slice(chunks, func(i, j int) bool { return chunks[i].ChunkIndex < chunks[j].ChunkIndex })

	parts := make([]string, len(chunks))
	for i, chunk := range chunks {
		parts[i] = chunk.Content
	}
	return strings.Join(parts, "\n")
}

func formatHeader(number int, doc knowledge.Document) string {
	if doc.Chapter != "" {
		return fmt.Sprintf("[%d] %s (%s)\n", number, doc.Title, doc.Chapter)
	}
	return fmt.Sprintf("[%d] %s\n", number, doc.Title)
}
