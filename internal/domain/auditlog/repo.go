package auditlog

import (
	"context"

	"github.com/medtrust/medtrust/internal/platform/auth"
)

// EntryRepository is the append-only audit store. There is deliberately no
// update or delete operation.
type EntryRepository interface {
	Append(ctx context.Context, e *Entry) error
	List(ctx context.Context, limit, offset int) ([]*Entry, int, error)
	ListByRole(ctx context.Context, role auth.Role, limit, offset int) ([]*Entry, int, error)
	ListByActor(ctx context.Context, role auth.Role, name string, limit, offset int) ([]*Entry, int, error)
	ListByPatient(ctx context.Context, patientName string, limit, offset int) ([]*Entry, int, error)
}
