package patient

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

var ErrNotFound = errors.New("patient not found")

type queryable interface {
	Query(ctx context.Context, sql string, args ...interface{}) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...interface{}) pgx.Row
	Exec(ctx context.Context, sql string, args ...interface{}) (pgconn.CommandTag, error)
}

type RepoPG struct {
	pool *pgxpool.Pool
}

func NewRepoPG(pool *pgxpool.Pool) *RepoPG {
	return &RepoPG{pool: pool}
}

func (r *RepoPG) conn(ctx context.Context) queryable {
	if tx := db.TxFromContext(ctx); tx != nil {
		return tx
	}
	if c := db.ConnFromContext(ctx); c != nil {
		return c
	}
	return r.pool
}

const patientCols = `id, name, email, age, gender, diagnosis, treatment, notes,
	assigned_doctor, last_updated_by, last_updated_at, created_at`

func scanPatient(row pgx.Row) (*Patient, error) {
	var p Patient
	err := row.Scan(
		&p.ID, &p.Name, &p.Email, &p.Age, &p.Gender, &p.Diagnosis, &p.Treatment,
		&p.Notes, &p.AssignedDoctor, &p.LastUpdatedBy, &p.LastUpdatedAt, &p.CreatedAt,
	)
	return &p, err
}

func (r *RepoPG) Create(ctx context.Context, p *Patient) error {
	if p.ID == uuid.Nil {
		p.ID = uuid.New()
	}
	now := time.Now().UTC()
	if p.CreatedAt.IsZero() {
		p.CreatedAt = now
	}
	if p.LastUpdatedAt.IsZero() {
		p.LastUpdatedAt = now
	}
	_, err := r.conn(ctx).Exec(ctx,
		`INSERT INTO patients (id, name, email, age, gender, diagnosis, treatment, notes,
		                       assigned_doctor, last_updated_by, last_updated_at, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)`,
		p.ID, p.Name, p.Email, p.Age, p.Gender, p.Diagnosis, p.Treatment, p.Notes,
		p.AssignedDoctor, p.LastUpdatedBy, p.LastUpdatedAt, p.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("create patient %q: %w", p.Name, err)
	}
	return nil
}

func (r *RepoPG) GetByName(ctx context.Context, name string) (*Patient, error) {
	row := r.conn(ctx).QueryRow(ctx,
		fmt.Sprintf(`SELECT %s FROM patients WHERE name = $1`, patientCols), name)
	p, err := scanPatient(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get patient %q: %w", name, err)
	}
	return p, nil
}

func (r *RepoPG) List(ctx context.Context, limit, offset int) ([]*Patient, int, error) {
	var total int
	if err := r.conn(ctx).QueryRow(ctx, `SELECT COUNT(*) FROM patients`).Scan(&total); err != nil {
		return nil, 0, err
	}

	rows, err := r.conn(ctx).Query(ctx,
		fmt.Sprintf(`SELECT %s FROM patients ORDER BY name LIMIT $1 OFFSET $2`, patientCols),
		limit, offset)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var items []*Patient
	for rows.Next() {
		p, err := scanPatient(rows)
		if err != nil {
			return nil, 0, err
		}
		items = append(items, p)
	}
	return items, total, rows.Err()
}

func (r *RepoPG) Update(ctx context.Context, p *Patient) error {
	tag, err := r.conn(ctx).Exec(ctx,
		`UPDATE patients
		    SET email = $2, age = $3, gender = $4, diagnosis = $5, treatment = $6,
		        notes = $7, assigned_doctor = $8, last_updated_by = $9, last_updated_at = $10
		  WHERE name = $1`,
		p.Name, p.Email, p.Age, p.Gender, p.Diagnosis, p.Treatment,
		p.Notes, p.AssignedDoctor, p.LastUpdatedBy, p.LastUpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("update patient %q: %w", p.Name, err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}
