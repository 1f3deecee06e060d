package catalog

import (
	"time"

	"github.com/google/uuid"
)

// Treatment is a bookable service with its daily slot labels.
type Treatment struct {
	ID        uuid.UUID `json:"id" yaml:"-"`
	Name      string    `json:"name" yaml:"name"`
	Slots     []string  `json:"slots" yaml:"slots"`
	Price     float64   `json:"price" yaml:"price"`
	CreatedAt time.Time `json:"-" yaml:"-"`
	UpdatedAt time.Time `json:"-" yaml:"-"`
}

// TreatmentName is the public projection served by GET /treatment.
type TreatmentName struct {
	ID   uuid.UUID `json:"id"`
	Name string    `json:"name"`
}
