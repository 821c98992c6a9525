package trust

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/medtrust/medtrust/internal/platform/db"
)

type queryable interface {
	Query(ctx context.Context, sql string, args ...interface{}) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...interface{}) pgx.Row
	Exec(ctx context.Context, sql string, args ...interface{}) (pgconn.CommandTag, error)
}

// ScoreRepoPG stores trust scores on the principals table rather than in a
// separate table, so a principal and its score move together.
type ScoreRepoPG struct {
	pool *pgxpool.Pool
}

func NewScoreRepoPG(pool *pgxpool.Pool) *ScoreRepoPG {
	return &ScoreRepoPG{pool: pool}
}

func (r *ScoreRepoPG) conn(ctx context.Context) queryable {
	if tx := db.TxFromContext(ctx); tx != nil {
		return tx
	}
	if c := db.ConnFromContext(ctx); c != nil {
		return c
	}
	return r.pool
}

// GetScore returns the current score, or 0 for an unknown principal. Unknown
// principals score at the floor so they can never pass a threshold check.
func (r *ScoreRepoPG) GetScore(ctx context.Context, principal string) (int, error) {
	var score int
	err := r.conn(ctx).QueryRow(ctx,
		`SELECT trust_score FROM principals WHERE name = $1`, principal,
	).Scan(&score)
	if errors.Is(err, pgx.ErrNoRows) {
		return MinScore, nil
	}
	if err != nil {
		return 0, fmt.Errorf("get trust score for %q: %w", principal, err)
	}
	return score, nil
}

// Adjust applies delta and clamps into [MinScore, MaxScore] in a single
// statement, returning the resulting score.
func (r *ScoreRepoPG) Adjust(ctx context.Context, principal string, delta int) (int, error) {
	var score int
	err := r.conn(ctx).QueryRow(ctx,
		`UPDATE principals
		    SET trust_score = GREATEST($2, LEAST($3, trust_score + $1))
		  WHERE name = $4
		  RETURNING trust_score`,
		delta, MinScore, MaxScore, principal,
	).Scan(&score)
	if errors.Is(err, pgx.ErrNoRows) {
		return 0, fmt.Errorf("adjust trust score: principal %q not found", principal)
	}
	if err != nil {
		return 0, fmt.Errorf("adjust trust score for %q: %w", principal, err)
	}
	return score, nil
}
