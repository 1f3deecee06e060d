package catalog

import "context"

type TreatmentRepository interface {
	List(ctx context.Context) ([]*Treatment, error)
	ListNames(ctx context.Context) ([]TreatmentName, error)
	// Upsert inserts t or replaces the slots and price of the treatment with
	// the same name.
	Upsert(ctx context.Context, t *Treatment) error
}
