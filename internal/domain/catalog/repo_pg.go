package catalog

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/doctorsportal/portal/internal/platform/db"
)

type treatmentRepoPG struct{ pool *pgxpool.Pool }

func NewTreatmentRepoPG(pool *pgxpool.Pool) TreatmentRepository {
	return &treatmentRepoPG{pool: pool}
}

func (r *treatmentRepoPG) conn(ctx context.Context) db.Querier {
	return db.Conn(ctx, r.pool)
}

func (r *treatmentRepoPG) List(ctx context.Context) ([]*Treatment, error) {
	rows, err := r.conn(ctx).Query(ctx, `
		SELECT id, name, slots, price::float8, created_at, updated_at
		FROM treatments ORDER BY name`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	items := []*Treatment{}
	for rows.Next() {
		var t Treatment
		if err := rows.Scan(&t.ID, &t.Name, &t.Slots, &t.Price, &t.CreatedAt, &t.UpdatedAt); err != nil {
			return nil, err
		}
		if t.Slots == nil {
			t.Slots = []string{}
		}
		items = append(items, &t)
	}
	return items, rows.Err()
}

func (r *treatmentRepoPG) ListNames(ctx context.Context) ([]TreatmentName, error) {
	rows, err := r.conn(ctx).Query(ctx, `SELECT id, name FROM treatments ORDER BY name`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	items := []TreatmentName{}
	for rows.Next() {
		var n TreatmentName
		if err := rows.Scan(&n.ID, &n.Name); err != nil {
			return nil, err
		}
		items = append(items, n)
	}
	return items, rows.Err()
}

func (r *treatmentRepoPG) Upsert(ctx context.Context, t *Treatment) error {
	if t.ID == uuid.Nil {
		t.ID = uuid.New()
	}
	err := r.conn(ctx).QueryRow(ctx, `
		INSERT INTO treatments (id, name, slots, price)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (name) DO UPDATE SET slots = EXCLUDED.slots, price = EXCLUDED.price, updated_at = NOW()
		RETURNING id, created_at, updated_at`,
		t.ID, t.Name, t.Slots, t.Price).Scan(&t.ID, &t.CreatedAt, &t.UpdatedAt)
	return db.Translate("treatment "+t.Name, err)
}
