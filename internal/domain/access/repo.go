package access

import (
	"context"
	"time"
)

// TempGrantRepository stores time-boxed access windows.
type TempGrantRepository interface {
	Create(ctx context.Context, g *TempGrant) error
	GetActive(ctx context.Context, nurseName, patientName string, now time.Time) (*TempGrant, error)
}
