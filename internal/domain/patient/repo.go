package patient

import "context"

type Repository interface {
	Create(ctx context.Context, p *Patient) error
	GetByName(ctx context.Context, name string) (*Patient, error)
	List(ctx context.Context, limit, offset int) ([]*Patient, int, error)
	Update(ctx context.Context, p *Patient) error
}
