// Package pay authorizes card payments against an external processor.
package pay

import (
	"context"
	"errors"
)

// Authorization is one charge request. IdempotencyKey makes a resubmitted
// request return the original outcome instead of charging twice.
type Authorization struct {
	AmountMinor    int64
	Currency       string
	OrderID        string
	IdempotencyKey string
}

// Authorized is the processor's answer for a successful authorization.
type Authorized struct {
	Reference    string
	ClientSecret string
}

type Gateway interface {
	Authorize(ctx context.Context, a Authorization) (Authorized, error)
}

var ErrCardPaymentsDisabled = errors.New("card payments are not configured")

// Disabled is used when no processor key is configured.
type Disabled struct{}

func (Disabled) Authorize(context.Context, Authorization) (Authorized, error) {
	return Authorized{}, ErrCardPaymentsDisabled
}

func validate(a Authorization) error {
	switch {
	case a.AmountMinor <= 0:
		return errors.New("amount must be positive")
	case a.Currency == "":
		return errors.New("currency is required")
	case a.OrderID == "":
		return errors.New("order id is required")
	}
	return nil
}
