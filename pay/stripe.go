package pay

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/stripe/stripe-go/v76"
	"github.com/stripe/stripe-go/v76/client"
)

// Stripe creates PaymentIntents. Network retries are disabled: a failed
// authorization is reported to the caller, never replayed.
type Stripe struct {
	api *client.API
}

func NewStripe(secretKey string, timeout time.Duration) *Stripe {
	return newStripe(secretKey, timeout, "")
}

func newStripe(secretKey string, timeout time.Duration, baseURL string) *Stripe {
	cfg := &stripe.BackendConfig{
		HTTPClient:        &http.Client{Timeout: timeout},
		MaxNetworkRetries: stripe.Int64(0),
	}
	if baseURL != "" {
		cfg.URL = stripe.String(baseURL)
	}
	api := &client.API{}
	api.Init(secretKey, &stripe.Backends{
		API:     stripe.GetBackendWithConfig(stripe.APIBackend, cfg),
		Connect: stripe.GetBackendWithConfig(stripe.ConnectBackend, cfg),
		Uploads: stripe.GetBackendWithConfig(stripe.UploadsBackend, cfg),
	})
	return &Stripe{api: api}
}

func (s *Stripe) Authorize(ctx context.Context, a Authorization) (Authorized, error) {
	if err := validate(a); err != nil {
		return Authorized{}, err
	}

	params := &stripe.PaymentIntentParams{
		Amount:   stripe.Int64(a.AmountMinor),
		Currency: stripe.String(a.Currency),
		AutomaticPaymentMethods: &stripe.PaymentIntentAutomaticPaymentMethodsParams{
			Enabled: stripe.Bool(true),
		},
	}
	params.Context = ctx
	params.AddMetadata("orderId", a.OrderID)
	if a.IdempotencyKey != "" {
		params.SetIdempotencyKey(a.IdempotencyKey)
	}

	pi, err := s.api.PaymentIntents.New(params)
	if err != nil {
		var serr *stripe.Error
		if errors.As(err, &serr) {
			return Authorized{}, fmt.Errorf("stripe %s: %s", serr.Code, serr.Msg)
		}
		return Authorized{}, err
	}
	return Authorized{Reference: pi.ID, ClientSecret: pi.ClientSecret}, nil
}
