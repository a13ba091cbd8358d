// Package expert provides the specialist registry and the weighted matcher
// that selects a human expert for escalated queries.
package expert

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/pgvector/pgvector-go"

	"github.com/taxline/taxline/internal/log"
)

// Querier defines the database operations the registry needs.
// *pgxpool.Pool satisfies this; tests substitute a mock.
type Querier interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
}

// Registry reads expert profiles from PostgreSQL.
// Safe for concurrent use.
type Registry struct {
	db     Querier
	logger log.Logger
}

// NewRegistry creates a Registry.
func NewRegistry(db Querier, logger log.Logger) *Registry {
	if logger == nil {
		logger = log.NewNop()
	}
	return &Registry{db: db, logger: logger}
}

// ListAvailable returns experts who can take an escalation now or soon:
// everyone not offline. The matcher scores available higher than busy, so
// busy experts are still candidates when nobody is free.
func (r *Registry) ListAvailable(ctx context.Context) ([]Profile, error) {
	rows, err := r.db.Query(ctx, `
		SELECT id, name, specialties, status, rating, resolution_rate, embedding
		FROM experts
		WHERE status <> $1
		ORDER BY id ASC`,
		string(Offline),
	)
	if err != nil {
		return nil, fmt.Errorf("listing experts: %w", err)
	}
	defer rows.Close()

	var experts []Profile
	for rows.Next() {
		var (
			p      Profile
			status string
			vec    pgvector.Vector
		)
		if err := rows.Scan(&p.ID, &p.Name, &p.Specialties, &status, &p.Rating, &p.ResolutionRate, &vec); err != nil {
			return nil, fmt.Errorf("scanning expert: %w", err)
		}
		p.Status = Availability(status)
		p.Embedding = vec.Slice()
		experts = append(experts, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("listing experts: %w", err)
	}

	r.logger.Debug("listed experts", "count", len(experts))
	return experts, nil
}
