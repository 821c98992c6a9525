package trust

// Score bounds. Every write path clamps into this range at the database,
// so a partial failure can never leave an out-of-range score behind.
const (
	MinScore = 0
	MaxScore = 100
)

// Score is the current standing of one principal.
type Score struct {
	Principal string `db:"name" json:"principal"`
	Value     int    `db:"trust_score" json:"trust_score"`
}
