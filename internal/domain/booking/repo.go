package booking

import (
	"context"

	"github.com/google/uuid"
)

type BookingRepository interface {
	// InsertIfAbsent stores b unless a booking with the same treatment, date
	// and patient exists. It reports whether b was inserted and, if not,
	// returns the existing record. The decision is a single atomic write.
	InsertIfAbsent(ctx context.Context, b *Booking) (bool, *Booking, error)
	GetByID(ctx context.Context, id uuid.UUID) (*Booking, error)
	ListByPatient(ctx context.Context, patient string) ([]*Booking, error)
	// ListByDate returns bookings on date, or every booking when date is "".
	ListByDate(ctx context.Context, date string) ([]*Booking, error)
	// MarkPaid sets paid and the transaction id on an unpaid booking. It
	// returns ErrNotFound when no unpaid booking has id.
	MarkPaid(ctx context.Context, id uuid.UUID, transactionID string) (*Booking, error)
}

type PaymentRepository interface {
	Create(ctx context.Context, p *PaymentRecord) error
	ListByBooking(ctx context.Context, bookingID uuid.UUID) ([]*PaymentRecord, error)
}
