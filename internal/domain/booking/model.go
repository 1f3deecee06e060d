package booking

import (
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/doctorsportal/portal/internal/platform/apperr"
)

type Booking struct {
	ID            uuid.UUID `json:"id"`
	Treatment     string    `json:"treatment"`
	Date          string    `json:"date"`
	Slot          string    `json:"slot"`
	Patient       string    `json:"patient"`
	PatientName   string    `json:"patientName"`
	Phone         string    `json:"phone"`
	Price         float64   `json:"price"`
	Paid          bool      `json:"paid"`
	TransactionID *string   `json:"transactionId,omitempty"`
	CreatedAt     time.Time `json:"createdAt"`
	UpdatedAt     time.Time `json:"updatedAt"`
}

// normalize trims every field and lower-cases the patient email, then checks
// that the conflict key and slot are present.
func (b *Booking) normalize() error {
	b.Treatment = strings.TrimSpace(b.Treatment)
	b.Date = strings.TrimSpace(b.Date)
	b.Slot = strings.TrimSpace(b.Slot)
	b.Patient = strings.ToLower(strings.TrimSpace(b.Patient))
	b.PatientName = strings.TrimSpace(b.PatientName)
	b.Phone = strings.TrimSpace(b.Phone)

	switch {
	case b.Treatment == "":
		return apperr.Validation("treatment is required")
	case b.Date == "":
		return apperr.Validation("date is required")
	case b.Slot == "":
		return apperr.Validation("slot is required")
	case b.Patient == "":
		return apperr.Validation("patient is required")
	case b.Price < 0:
		return apperr.Validation("price must not be negative")
	}
	return nil
}

// PaymentRecord is an append-only receipt of a confirmed payment.
type PaymentRecord struct {
	ID            uuid.UUID `json:"id"`
	BookingID     uuid.UUID `json:"bookingId"`
	TransactionID string    `json:"transactionId"`
	Amount        float64   `json:"amount"`
	CreatedAt     time.Time `json:"createdAt"`
}

// CreateResult is the outcome of CreateBooking. When Accepted is false,
// Booking is the record that already holds the (treatment, date, patient) key.
type CreateResult struct {
	Accepted bool     `json:"success"`
	Booking  *Booking `json:"booking"`
}

// PaymentConfirmation is the client's report of a completed charge. Amount
// defaults to the booking price when zero.
type PaymentConfirmation struct {
	TransactionID string  `json:"transactionId"`
	Amount        float64 `json:"price"`
}

// PaymentIntentRequest asks for a provider intent either for a booking (price
// taken from the booking) or for an explicit price.
type PaymentIntentRequest struct {
	BookingID string  `json:"bookingId"`
	Price     float64 `json:"price"`
}
