package booking

import (
	"context"
	"strings"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/doctorsportal/portal/internal/domain/catalog"
	"github.com/doctorsportal/portal/internal/platform/apperr"
	"github.com/doctorsportal/portal/internal/platform/auth"
	"github.com/doctorsportal/portal/internal/platform/events"
	"github.com/doctorsportal/portal/internal/platform/payment"
	"github.com/doctorsportal/portal/internal/platform/telemetry"
)

// TreatmentLister is the read side of the catalog the coordinator needs.
type TreatmentLister interface {
	ListTreatments(ctx context.Context) ([]*catalog.Treatment, error)
}

// Authorizer grants admin-only access. *auth.Gate implements it.
type Authorizer interface {
	Authorize(ctx context.Context, id auth.Identity) error
}

type Service struct {
	bookings   BookingRepository
	payments   PaymentRepository
	treatments TreatmentLister
	gate       Authorizer
	gateway    payment.Gateway
	publisher  events.Publisher
	logger     zerolog.Logger
}

type Option func(*Service)

// WithGateway sets the payment provider. Defaults to payment.Disabled.
func WithGateway(g payment.Gateway) Option {
	return func(s *Service) { s.gateway = g }
}

// WithPublisher sets the event sink. Defaults to events.Noop.
func WithPublisher(p events.Publisher) Option {
	return func(s *Service) { s.publisher = p }
}

func WithLogger(l zerolog.Logger) Option {
	return func(s *Service) { s.logger = l }
}

func NewService(bookings BookingRepository, payments PaymentRepository, treatments TreatmentLister, gate Authorizer, opts ...Option) *Service {
	s := &Service{
		bookings:   bookings,
		payments:   payments,
		treatments: treatments,
		gate:       gate,
		gateway:    payment.Disabled{},
		publisher:  events.Noop{},
		logger:     zerolog.Nop(),
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

// CreateBooking stores b unless the patient already holds a booking for the
// same treatment on the same date. A duplicate is reported through
// CreateResult, not as an error.
func (s *Service) CreateBooking(ctx context.Context, b *Booking) (*CreateResult, error) {
	if b == nil {
		return nil, apperr.Validation("booking is required")
	}
	if err := b.normalize(); err != nil {
		return nil, err
	}
	b.ID = uuid.Nil
	b.Paid = false
	b.TransactionID = nil

	inserted, existing, err := s.bookings.InsertIfAbsent(ctx, b)
	if err != nil {
		return nil, err
	}
	if !inserted {
		bookingsTotal.WithLabelValues("duplicate").Inc()
		return &CreateResult{Accepted: false, Booking: existing}, nil
	}

	bookingsTotal.WithLabelValues("accepted").Inc()
	s.publish(ctx, events.BookingCreated, existing)
	return &CreateResult{Accepted: true, Booking: existing}, nil
}

// ComputeAvailability lists every treatment with the slots still free on date.
func (s *Service) ComputeAvailability(ctx context.Context, date string) ([]catalog.Treatment, error) {
	date = strings.TrimSpace(date)
	if date == "" {
		return nil, apperr.Validation("date is required")
	}
	treatments, err := s.treatments.ListTreatments(ctx)
	if err != nil {
		return nil, err
	}
	booked, err := s.bookings.ListByDate(ctx, date)
	if err != nil {
		return nil, err
	}
	return Available(treatments, booked), nil
}

// ListBookingsForPatient returns the caller's own bookings.
func (s *Service) ListBookingsForPatient(ctx context.Context, id auth.Identity, patient string) ([]*Booking, error) {
	if id.Email == "" {
		return nil, apperr.ErrUnauthenticated
	}
	patient = strings.ToLower(strings.TrimSpace(patient))
	if patient == "" {
		return nil, apperr.Validation("patient is required")
	}
	if patient != id.Email {
		return nil, apperr.ErrForbidden
	}
	return s.bookings.ListByPatient(ctx, patient)
}

func (s *Service) GetBooking(ctx context.Context, id auth.Identity, bookingID uuid.UUID) (*Booking, error) {
	if id.Email == "" {
		return nil, apperr.ErrUnauthenticated
	}
	b, err := s.bookings.GetByID(ctx, bookingID)
	if err != nil {
		return nil, err
	}
	if err := s.authorizeOwner(ctx, id, b); err != nil {
		return nil, err
	}
	return b, nil
}

// authorizeOwner lets the patient who made b through, then falls back to the
// admin gate.
func (s *Service) authorizeOwner(ctx context.Context, id auth.Identity, b *Booking) error {
	if b.Patient == id.Email {
		return nil
	}
	return s.gate.Authorize(ctx, id)
}

// ConfirmPayment records a payment for a booking and marks it paid. The two
// writes are not atomic: when the booking cannot be marked after the payment
// row exists, the result is a *apperr.PartialFailureError naming the orphaned
// payment.
func (s *Service) ConfirmPayment(ctx context.Context, id auth.Identity, bookingID uuid.UUID, conf PaymentConfirmation) (*Booking, error) {
	if id.Email == "" {
		return nil, apperr.ErrUnauthenticated
	}
	conf.TransactionID = strings.TrimSpace(conf.TransactionID)
	if conf.TransactionID == "" {
		return nil, apperr.Validation("transactionId is required")
	}
	if conf.Amount < 0 {
		return nil, apperr.Validation("price must not be negative")
	}

	ctx, span := telemetry.StartSpan(ctx, "booking.ConfirmPayment",
		attribute.String("booking.id", bookingID.String()))
	defer span.End()

	b, err := s.bookings.GetByID(ctx, bookingID)
	if err != nil {
		return nil, err
	}
	if err := s.authorizeOwner(ctx, id, b); err != nil {
		return nil, err
	}
	if b.Paid {
		return nil, apperr.ErrConflict
	}

	amount := conf.Amount
	if amount == 0 {
		amount = b.Price
	}
	rec := &PaymentRecord{BookingID: b.ID, TransactionID: conf.TransactionID, Amount: amount}
	if err := s.payments.Create(ctx, rec); err != nil {
		return nil, err
	}

	updated, markErr := s.bookings.MarkPaid(ctx, b.ID, conf.TransactionID)
	if markErr != nil {
		updated = s.verifyPaid(ctx, b.ID, conf.TransactionID)
	}
	if updated == nil {
		paymentsTotal.WithLabelValues("partial").Inc()
		span.SetStatus(codes.Error, "booking not marked paid")
		span.RecordError(markErr)
		s.logger.Error().Err(markErr).
			Str("booking_id", b.ID.String()).
			Str("payment_id", rec.ID.String()).
			Str("transaction_id", rec.TransactionID).
			Msg("payment recorded but booking not marked paid")
		return nil, &apperr.PartialFailureError{
			BookingID: b.ID.String(),
			PaymentID: rec.ID.String(),
			Err:       markErr,
		}
	}

	paymentsTotal.WithLabelValues("confirmed").Inc()
	s.publish(ctx, events.BookingPaid, map[string]any{
		"booking": updated,
		"payment": rec,
	})
	return updated, nil
}

// verifyPaid re-reads a booking after a failed update. It returns the booking
// only when it is paid with transactionID.
func (s *Service) verifyPaid(ctx context.Context, bookingID uuid.UUID, transactionID string) *Booking {
	b, err := s.bookings.GetByID(ctx, bookingID)
	if err != nil {
		s.logger.Warn().Err(err).Str("booking_id", bookingID.String()).Msg("re-read after failed update")
		return nil
	}
	if b.Paid && b.TransactionID != nil && *b.TransactionID == transactionID {
		return b
	}
	return nil
}

// CreatePaymentIntent prepares a provider charge. With a booking id the price
// comes from the booking and the caller must own it or be an admin.
func (s *Service) CreatePaymentIntent(ctx context.Context, id auth.Identity, req PaymentIntentRequest) (*payment.Intent, error) {
	if id.Email == "" {
		return nil, apperr.ErrUnauthenticated
	}
	price := req.Price
	intent := payment.IntentRequest{}

	if ref := strings.TrimSpace(req.BookingID); ref != "" {
		bookingID, err := uuid.Parse(ref)
		if err != nil {
			return nil, apperr.Validation("invalid booking id %q", ref)
		}
		b, err := s.bookings.GetByID(ctx, bookingID)
		if err != nil {
			return nil, err
		}
		if err := s.authorizeOwner(ctx, id, b); err != nil {
			return nil, err
		}
		if b.Paid {
			return nil, apperr.ErrConflict
		}
		price = b.Price
		intent.BookingID = b.ID.String()
	}

	amount, err := payment.AmountFromPrice(price)
	if err != nil {
		return nil, err
	}
	intent.Amount = amount
	return s.gateway.CreateIntent(ctx, intent)
}

// ExportBookings renders bookings on date, or all bookings when date is empty,
// as an XLSX workbook.
func (s *Service) ExportBookings(ctx context.Context, date string) ([]byte, error) {
	items, err := s.bookings.ListByDate(ctx, strings.TrimSpace(date))
	if err != nil {
		return nil, err
	}
	return renderWorkbook(items)
}

func (s *Service) publish(ctx context.Context, key string, payload any) {
	if err := s.publisher.Publish(ctx, key, payload); err != nil {
		s.logger.Warn().Err(err).Str("event", key).Msg("publish event")
	}
}
