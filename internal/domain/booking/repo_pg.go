package booking

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/doctorsportal/portal/internal/platform/db"
)

// =========== Booking Repository ===========

type bookingRepoPG struct{ pool *pgxpool.Pool }

func NewBookingRepoPG(pool *pgxpool.Pool) BookingRepository { return &bookingRepoPG{pool: pool} }

func (r *bookingRepoPG) conn(ctx context.Context) db.Querier {
	return db.Conn(ctx, r.pool)
}

const bookingCols = `id, treatment, booking_date, slot, patient, patient_name, phone,
	price::float8, paid, transaction_id, created_at, updated_at`

func scanBooking(row pgx.Row) (*Booking, error) {
	var b Booking
	err := row.Scan(&b.ID, &b.Treatment, &b.Date, &b.Slot, &b.Patient, &b.PatientName, &b.Phone,
		&b.Price, &b.Paid, &b.TransactionID, &b.CreatedAt, &b.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &b, nil
}

func (r *bookingRepoPG) InsertIfAbsent(ctx context.Context, b *Booking) (bool, *Booking, error) {
	if b.ID == uuid.Nil {
		b.ID = uuid.New()
	}
	inserted, err := scanBooking(r.conn(ctx).QueryRow(ctx, `
		INSERT INTO bookings (id, treatment, booking_date, slot, patient, patient_name, phone, price)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (treatment, booking_date, patient) DO NOTHING
		RETURNING `+bookingCols,
		b.ID, b.Treatment, b.Date, b.Slot, b.Patient, b.PatientName, b.Phone, b.Price))
	if err == nil {
		return true, inserted, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return false, nil, db.Translate("insert booking", err)
	}

	// The conflicting row is committed by the time DO NOTHING returns, so a
	// fresh statement sees it.
	existing, err := scanBooking(r.conn(ctx).QueryRow(ctx, `
		SELECT `+bookingCols+` FROM bookings
		WHERE treatment = $1 AND booking_date = $2 AND patient = $3`,
		b.Treatment, b.Date, b.Patient))
	if err != nil {
		return false, nil, db.Translate("existing booking", err)
	}
	return false, existing, nil
}

func (r *bookingRepoPG) GetByID(ctx context.Context, id uuid.UUID) (*Booking, error) {
	b, err := scanBooking(r.conn(ctx).QueryRow(ctx, `SELECT `+bookingCols+` FROM bookings WHERE id = $1`, id))
	if err != nil {
		return nil, db.Translate("booking "+id.String(), err)
	}
	return b, nil
}

func (r *bookingRepoPG) list(ctx context.Context, query string, args ...interface{}) ([]*Booking, error) {
	rows, err := r.conn(ctx).Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	items := []*Booking{}
	for rows.Next() {
		b, err := scanBooking(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, b)
	}
	return items, rows.Err()
}

func (r *bookingRepoPG) ListByPatient(ctx context.Context, patient string) ([]*Booking, error) {
	return r.list(ctx, `SELECT `+bookingCols+` FROM bookings WHERE patient = $1 ORDER BY created_at`, patient)
}

func (r *bookingRepoPG) ListByDate(ctx context.Context, date string) ([]*Booking, error) {
	if date == "" {
		return r.list(ctx, `SELECT `+bookingCols+` FROM bookings ORDER BY booking_date, treatment, slot`)
	}
	return r.list(ctx, `SELECT `+bookingCols+` FROM bookings WHERE booking_date = $1 ORDER BY treatment, slot`, date)
}

func (r *bookingRepoPG) MarkPaid(ctx context.Context, id uuid.UUID, transactionID string) (*Booking, error) {
	b, err := scanBooking(r.conn(ctx).QueryRow(ctx, `
		UPDATE bookings SET paid = TRUE, transaction_id = $2, updated_at = NOW()
		WHERE id = $1 AND paid = FALSE
		RETURNING `+bookingCols,
		id, transactionID))
	if err != nil {
		return nil, db.Translate("unpaid booking "+id.String(), err)
	}
	return b, nil
}

// =========== Payment Repository ===========

type paymentRepoPG struct{ pool *pgxpool.Pool }

func NewPaymentRepoPG(pool *pgxpool.Pool) PaymentRepository { return &paymentRepoPG{pool: pool} }

func (r *paymentRepoPG) conn(ctx context.Context) db.Querier {
	return db.Conn(ctx, r.pool)
}

func (r *paymentRepoPG) Create(ctx context.Context, p *PaymentRecord) error {
	p.ID = uuid.New()
	err := r.conn(ctx).QueryRow(ctx, `
		INSERT INTO payments (id, booking_id, transaction_id, amount)
		VALUES ($1, $2, $3, $4)
		RETURNING created_at`,
		p.ID, p.BookingID, p.TransactionID, p.Amount).Scan(&p.CreatedAt)
	return db.Translate("payment", err)
}

func (r *paymentRepoPG) ListByBooking(ctx context.Context, bookingID uuid.UUID) ([]*PaymentRecord, error) {
	rows, err := r.conn(ctx).Query(ctx, `
		SELECT id, booking_id, transaction_id, amount::float8, created_at
		FROM payments WHERE booking_id = $1 ORDER BY created_at`, bookingID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	items := []*PaymentRecord{}
	for rows.Next() {
		var p PaymentRecord
		if err := rows.Scan(&p.ID, &p.BookingID, &p.TransactionID, &p.Amount, &p.CreatedAt); err != nil {
			return nil, err
		}
		items = append(items, &p)
	}
	return items, rows.Err()
}
