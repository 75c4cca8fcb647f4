package payments

import (
	"context"

	"github.com/stripe/stripe-go/v79"
	"github.com/stripe/stripe-go/v79/checkout/session"
)

// Sessions creates and fetches Stripe checkout sessions.
type Sessions interface {
	Create(ctx context.Context, params *stripe.CheckoutSessionParams) (*stripe.CheckoutSession, error)
	Get(ctx context.Context, id string) (*stripe.CheckoutSession, error)
}

type stripeSessions struct{}

// NewStripeSessions sets the Stripe API key and returns the live session client.
func NewStripeSessions(secretKey string) Sessions {
	stripe.Key = secretKey
	return stripeSessions{}
}

func (stripeSessions) Create(ctx context.Context, params *stripe.CheckoutSessionParams) (*stripe.CheckoutSession, error) {
	params.Context = ctx
	return session.New(params)
}

func (stripeSessions) Get(ctx context.Context, id string) (*stripe.CheckoutSession, error) {
	params := &stripe.CheckoutSessionParams{}
	params.Context = ctx
	return session.Get(id, params)
}
