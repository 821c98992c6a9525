package access

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/medtrust/medtrust/internal/platform/db"
)

var ErrNoActiveGrant = errors.New("no active grant")

type queryable interface {
	Query(ctx context.Context, sql string, args ...interface{}) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...interface{}) pgx.Row
	Exec(ctx context.Context, sql string, args ...interface{}) (pgconn.CommandTag, error)
}

type TempGrantRepoPG struct {
	pool *pgxpool.Pool
}

func NewTempGrantRepoPG(pool *pgxpool.Pool) *TempGrantRepoPG {
	return &TempGrantRepoPG{pool: pool}
}

func (r *TempGrantRepoPG) conn(ctx context.Context) queryable {
	if tx := db.TxFromContext(ctx); tx != nil {
		return tx
	}
	if c := db.ConnFromContext(ctx); c != nil {
		return c
	}
	return r.pool
}

func (r *TempGrantRepoPG) Create(ctx context.Context, g *TempGrant) error {
	if g.ID == uuid.Nil {
		g.ID = uuid.New()
	}
	_, err := r.conn(ctx).Exec(ctx,
		`INSERT INTO temp_grants (id, nurse_name, patient_name, granted_at, expires_at)
		 VALUES ($1, $2, $3, $4, $5)`,
		g.ID, g.NurseName, g.PatientName, g.GrantedAt, g.ExpiresAt,
	)
	if err != nil {
		return fmt.Errorf("create temp grant: %w", err)
	}
	return nil
}

// GetActive returns the most recent unexpired grant, if any.
func (r *TempGrantRepoPG) GetActive(ctx context.Context, nurseName, patientName string, now time.Time) (*TempGrant, error) {
	var g TempGrant
	err := r.conn(ctx).QueryRow(ctx,
		`SELECT id, nurse_name, patient_name, granted_at, expires_at
		   FROM temp_grants
		  WHERE nurse_name = $1 AND patient_name = $2 AND expires_at > $3
		  ORDER BY expires_at DESC
		  LIMIT 1`,
		nurseName, patientName, now,
	).Scan(&g.ID, &g.NurseName, &g.PatientName, &g.GrantedAt, &g.ExpiresAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNoActiveGrant
	}
	if err != nil {
		return nil, fmt.Errorf("get active grant: %w", err)
	}
	return &g, nil
}
