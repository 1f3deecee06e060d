// Package payment creates payment intents with the configured provider.
package payment

import (
	"context"
	"fmt"
	"math"
	"strings"

	"github.com/omise/omise-go"
	"github.com/omise/omise-go/operations"

	"github.com/doctorsportal/portal/internal/platform/apperr"
)

// IntentRequest describes a charge to prepare. Amount is in minor units.
type IntentRequest struct {
	Amount    int64
	Currency  string
	BookingID string
}

// Intent is what the client needs to complete the payment.
type Intent struct {
	ID           string `json:"id"`
	ClientSecret string `json:"clientSecret"`
	Amount       int64  `json:"amount"`
	Currency     string `json:"currency"`
}

type Gateway interface {
	CreateIntent(ctx context.Context, req IntentRequest) (*Intent, error)
}

// AmountFromPrice converts a decimal price to minor units. The price must be
// positive.
func AmountFromPrice(price float64) (int64, error) {
	if math.IsNaN(price) || math.IsInf(price, 0) || price <= 0 {
		return 0, apperr.Validation("price must be a positive number")
	}
	amount := int64(math.Round(price * 100))
	if amount <= 0 {
		return 0, apperr.Validation("price is below the smallest chargeable unit")
	}
	return amount, nil
}

// Disabled is used when no provider keys are configured.
type Disabled struct{}

func (Disabled) CreateIntent(context.Context, IntentRequest) (*Intent, error) {
	return nil, apperr.ErrPaymentsDisabled
}

// sourceCreator performs the provider call; swapped in tests.
type sourceCreator func(op *operations.CreateSource) (*omise.Source, error)

// OmiseGateway prepares an Omise payment source of a fixed type (for example
// promptpay). The source id is handed to the client as the secret it confirms.
type OmiseGateway struct {
	sourceType string
	currency   string
	create     sourceCreator
}

func NewOmiseGateway(publicKey, secretKey, sourceType, currency string) (*OmiseGateway, error) {
	if publicKey == "" || secretKey == "" {
		return nil, fmt.Errorf("omise public and secret keys are required")
	}
	client, err := omise.NewClient(publicKey, secretKey)
	if err != nil {
		return nil, fmt.Errorf("omise client: %w", err)
	}
	client.SetDebug(false)

	return &OmiseGateway{
		sourceType: sourceType,
		currency:   strings.ToLower(currency),
		create: func(op *operations.CreateSource) (*omise.Source, error) {
			src := &omise.Source{}
			if err := client.Do(src, op); err != nil {
				return nil, err
			}
			return src, nil
		},
	}, nil
}

func (g *OmiseGateway) CreateIntent(ctx context.Context, req IntentRequest) (*Intent, error) {
	if req.Amount <= 0 {
		return nil, apperr.Validation("amount must be positive")
	}
	currency := strings.ToLower(req.Currency)
	if currency == "" {
		currency = g.currency
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	src, err := g.create(&operations.CreateSource{
		Type:     g.sourceType,
		Amount:   req.Amount,
		Currency: currency,
	})
	if err != nil {
		return nil, fmt.Errorf("create %s source: %w", g.sourceType, err)
	}

	return &Intent{
		ID:           src.ID,
		ClientSecret: src.ID,
		Amount:       src.Amount,
		Currency:     src.Currency,
	}, nil
}
