package identity

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/medtrust/medtrust/internal/platform/auth"
	"github.com/medtrust/medtrust/internal/platform/db"
)

var (
	ErrNotFound    = errors.New("principal not found")
	ErrNoChallenge = errors.New("no pending challenge")
)

type queryable interface {
	Query(ctx context.Context, sql string, args ...interface{}) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...interface{}) pgx.Row
	Exec(ctx context.Context, sql string, args ...interface{}) (pgconn.CommandTag, error)
}

type PrincipalRepoPG struct {
	pool *pgxpool.Pool
}

func NewPrincipalRepoPG(pool *pgxpool.Pool) *PrincipalRepoPG {
	return &PrincipalRepoPG{pool: pool}
}

func (r *PrincipalRepoPG) conn(ctx context.Context) queryable {
	if tx := db.TxFromContext(ctx); tx != nil {
		return tx
	}
	if c := db.ConnFromContext(ctx); c != nil {
		return c
	}
	return r.pool
}

const principalCols = `id, name, email, role, password_hash, trust_score, created_at`

func scanPrincipal(row pgx.Row) (*Principal, error) {
	var p Principal
	err := row.Scan(&p.ID, &p.Name, &p.Email, &p.Role, &p.PasswordHash, &p.TrustScore, &p.CreatedAt)
	return &p, err
}

func (r *PrincipalRepoPG) Create(ctx context.Context, p *Principal) error {
	if p.ID == uuid.Nil {
		p.ID = uuid.New()
	}
	if p.CreatedAt.IsZero() {
		p.CreatedAt = time.Now().UTC()
	}
	_, err := r.conn(ctx).Exec(ctx,
		`INSERT INTO principals (id, name, email, role, password_hash, trust_score, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		p.ID, p.Name, p.Email, p.Role, p.PasswordHash, p.TrustScore, p.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("create principal %q: %w", p.Name, err)
	}
	return nil
}

func (r *PrincipalRepoPG) GetByName(ctx context.Context, name string) (*Principal, error) {
	row := r.conn(ctx).QueryRow(ctx,
		fmt.Sprintf(`SELECT %s FROM principals WHERE name = $1`, principalCols), name)
	p, err := scanPrincipal(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get principal %q: %w", name, err)
	}
	return p, nil
}

func (r *PrincipalRepoPG) GetByEmail(ctx context.Context, email string) (*Principal, error) {
	row := r.conn(ctx).QueryRow(ctx,
		fmt.Sprintf(`SELECT %s FROM principals WHERE email = $1`, principalCols), email)
	p, err := scanPrincipal(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get principal by email: %w", err)
	}
	return p, nil
}

func (r *PrincipalRepoPG) List(ctx context.Context, limit, offset int) ([]*Principal, int, error) {
	var total int
	if err := r.conn(ctx).QueryRow(ctx, `SELECT COUNT(*) FROM principals`).Scan(&total); err != nil {
		return nil, 0, err
	}

	rows, err := r.conn(ctx).Query(ctx,
		fmt.Sprintf(`SELECT %s FROM principals ORDER BY name LIMIT $1 OFFSET $2`, principalCols),
		limit, offset)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var items []*Principal
	for rows.Next() {
		p, err := scanPrincipal(rows)
		if err != nil {
			return nil, 0, err
		}
		items = append(items, p)
	}
	return items, total, rows.Err()
}

func (r *PrincipalRepoPG) UpdateRole(ctx context.Context, name string, role auth.Role) error {
	tag, err := r.conn(ctx).Exec(ctx,
		`UPDATE principals SET role = $2 WHERE name = $1`, name, role)
	if err != nil {
		return fmt.Errorf("update role for %q: %w", name, err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// ChallengeRepoPG persists pending OTPs so a restart does not silently drop
// codes users are about to enter.
type ChallengeRepoPG struct {
	pool *pgxpool.Pool
}

func NewChallengeRepoPG(pool *pgxpool.Pool) *ChallengeRepoPG {
	return &ChallengeRepoPG{pool: pool}
}

func (r *ChallengeRepoPG) conn(ctx context.Context) queryable {
	if tx := db.TxFromContext(ctx); tx != nil {
		return tx
	}
	if c := db.ConnFromContext(ctx); c != nil {
		return c
	}
	return r.pool
}

func (r *ChallengeRepoPG) Put(ctx context.Context, c *Challenge) error {
	_, err := r.conn(ctx).Exec(ctx,
		`INSERT INTO otp_challenges (principal_name, code, expires_at, created_at)
		 VALUES ($1, $2, $3, $4)
		 ON CONFLICT (principal_name)
		 DO UPDATE SET code = EXCLUDED.code, expires_at = EXCLUDED.expires_at, created_at = EXCLUDED.created_at`,
		c.PrincipalName, c.Code, c.ExpiresAt, c.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("store challenge for %q: %w", c.PrincipalName, err)
	}
	return nil
}

func (r *ChallengeRepoPG) Get(ctx context.Context, principalName string) (*Challenge, error) {
	var c Challenge
	err := r.conn(ctx).QueryRow(ctx,
		`SELECT principal_name, code, expires_at, created_at
		   FROM otp_challenges WHERE principal_name = $1`, principalName,
	).Scan(&c.PrincipalName, &c.Code, &c.ExpiresAt, &c.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNoChallenge
	}
	if err != nil {
		return nil, fmt.Errorf("get challenge for %q: %w", principalName, err)
	}
	return &c, nil
}

func (r *ChallengeRepoPG) Delete(ctx context.Context, principalName string) error {
	_, err := r.conn(ctx).Exec(ctx,
		`DELETE FROM otp_challenges WHERE principal_name = $1`, principalName)
	if err != nil {
		return fmt.Errorf("delete challenge for %q: %w", principalName, err)
	}
	return nil
}
