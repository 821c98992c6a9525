package auditlog

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/medtrust/medtrust/internal/platform/auth"
	"github.com/medtrust/medtrust/internal/platform/db"
)

type queryable interface {
	Query(ctx context.Context, sql string, args ...interface{}) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...interface{}) pgx.Row
	Exec(ctx context.Context, sql string, args ...interface{}) (pgconn.CommandTag, error)
}

type EntryRepoPG struct {
	pool *pgxpool.Pool
}

func NewEntryRepoPG(pool *pgxpool.Pool) *EntryRepoPG {
	return &EntryRepoPG{pool: pool}
}

func (r *EntryRepoPG) conn(ctx context.Context) queryable {
	if tx := db.TxFromContext(ctx); tx != nil {
		return tx
	}
	if c := db.ConnFromContext(ctx); c != nil {
		return c
	}
	return r.pool
}

const entryCols = `id, ts, actor_name, actor_role, patient_name, action, justification, status`

func scanEntry(row pgx.Row) (*Entry, error) {
	var e Entry
	err := row.Scan(
		&e.ID, &e.Timestamp, &e.ActorName, &e.ActorRole,
		&e.PatientName, &e.Action, &e.Justification, &e.Status,
	)
	return &e, err
}

func (r *EntryRepoPG) Append(ctx context.Context, e *Entry) error {
	if e.ID == uuid.Nil {
		e.ID = uuid.New()
	}
	if e.Timestamp.IsZero() {
		e.Timestamp = time.Now().UTC()
	}
	_, err := r.conn(ctx).Exec(ctx,
		`INSERT INTO access_log (id, ts, actor_name, actor_role, patient_name, action, justification, status)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		e.ID, e.Timestamp, e.ActorName, e.ActorRole, e.PatientName, e.Action, e.Justification, e.Status,
	)
	if err != nil {
		return fmt.Errorf("append audit entry: %w", err)
	}
	return nil
}

func (r *EntryRepoPG) list(ctx context.Context, where string, args []interface{}, limit, offset int) ([]*Entry, int, error) {
	countQ := "SELECT COUNT(*) FROM access_log " + where
	var total int
	if err := r.conn(ctx).QueryRow(ctx, countQ, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	q := fmt.Sprintf("SELECT %s FROM access_log %s ORDER BY ts DESC LIMIT $%d OFFSET $%d",
		entryCols, where, len(args)+1, len(args)+2)
	args = append(args, limit, offset)

	rows, err := r.conn(ctx).Query(ctx, q, args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var items []*Entry
	for rows.Next() {
		e, err := scanEntry(rows)
		if err != nil {
			return nil, 0, err
		}
		items = append(items, e)
	}
	return items, total, rows.Err()
}

func (r *EntryRepoPG) List(ctx context.Context, limit, offset int) ([]*Entry, int, error) {
	return r.list(ctx, "", nil, limit, offset)
}

func (r *EntryRepoPG) ListByRole(ctx context.Context, role auth.Role, limit, offset int) ([]*Entry, int, error) {
	return r.list(ctx, "WHERE actor_role = $1", []interface{}{role}, limit, offset)
}

func (r *EntryRepoPG) ListByActor(ctx context.Context, role auth.Role, name string, limit, offset int) ([]*Entry, int, error) {
	return r.list(ctx, "WHERE actor_role = $1 AND actor_name = $2", []interface{}{role, name}, limit, offset)
}

func (r *EntryRepoPG) ListByPatient(ctx context.Context, patientName string, limit, offset int) ([]*Entry, int, error) {
	return r.list(ctx, "WHERE patient_name = $1", []interface{}{patientName}, limit, offset)
}
