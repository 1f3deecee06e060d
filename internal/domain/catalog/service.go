package catalog

import (
	"context"
	"fmt"
)

// Transactor runs fn inside a single database transaction.
type Transactor interface {
	WithinTx(ctx context.Context, fn func(ctx context.Context) error) error
}

type Service struct {
	treatments TreatmentRepository
	tx         Transactor
}

func NewService(treatments TreatmentRepository, tx Transactor) *Service {
	return &Service{treatments: treatments, tx: tx}
}

func (s *Service) ListTreatments(ctx context.Context) ([]*Treatment, error) {
	return s.treatments.List(ctx)
}

func (s *Service) ListTreatmentNames(ctx context.Context) ([]TreatmentName, error) {
	return s.treatments.ListNames(ctx)
}

// Import upserts every treatment in one transaction, so a failing row leaves
// the catalog unchanged.
func (s *Service) Import(ctx context.Context, items []Treatment) (int, error) {
	if err := validate(items); err != nil {
		return 0, err
	}
	err := s.tx.WithinTx(ctx, func(ctx context.Context) error {
		for i := range items {
			if err := s.treatments.Upsert(ctx, &items[i]); err != nil {
				return fmt.Errorf("import %q: %w", items[i].Name, err)
			}
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	return len(items), nil
}
