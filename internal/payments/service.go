package payments

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/stripe/stripe-go/v79"
	"github.com/stripe/stripe-go/v79/webhook"

	"persona-backend/internal/credits"
	"persona-backend/internal/shared/telemetry"
)

var (
	ErrNotConfigured    = errors.New("payments not configured")
	ErrMissingSessionID = errors.New("payment session id is required")
	ErrInvalidSignature = errors.New("webhook signature verification failed")
)

// Config holds Stripe checkout settings.
type Config struct {
	PriceID            string
	FrontendURL        string
	WebhookSecret      string
	CreditsPerPurchase int
}

// VerifyResult is the payment verification response.
type VerifyResult struct {
	Success bool   `json:"success"`
	Credits *int   `json:"credits,omitempty"`
	Message string `json:"message,omitempty"`
}

// CheckoutResult carries the hosted checkout URL.
type CheckoutResult struct {
	SessionID string `json:"sessionId"`
	URL       string `json:"url"`
}

// Service turns paid checkout sessions into credits.
type Service struct {
	Sessions Sessions
	Credits  *credits.Service
	Config   Config
}

// NewService constructs a Service.
func NewService(sessions Sessions, creditSvc *credits.Service, cfg Config) *Service {
	if cfg.CreditsPerPurchase <= 0 {
		cfg.CreditsPerPurchase = 1
	}
	return &Service{Sessions: sessions, Credits: creditSvc, Config: cfg}
}

// Checkout starts a one-off payment for a credit pack.
func (s *Service) Checkout(ctx context.Context, userID string) (CheckoutResult, error) {
	frontend := strings.TrimRight(s.Config.FrontendURL, "/")
	if s.Sessions == nil || s.Config.PriceID == "" || frontend == "" {
		return CheckoutResult{}, ErrNotConfigured
	}
	params := &stripe.CheckoutSessionParams{
		Mode: stripe.String(string(stripe.CheckoutSessionModePayment)),
		LineItems: []*stripe.CheckoutSessionLineItemParams{
			{
				Price:    stripe.String(s.Config.PriceID),
				Quantity: stripe.Int64(1),
			},
		},
		ClientReferenceID: stripe.String(userID),
		SuccessURL:        stripe.String(frontend + "/payment/success?session_id={CHECKOUT_SESSION_ID}"),
		CancelURL:         stripe.String(frontend + "/pricing"),
	}
	params.AddMetadata("user_id", userID)
	params.AddMetadata("credits", strconv.Itoa(s.Config.CreditsPerPurchase))

	sess, err := s.Sessions.Create(ctx, params)
	if err != nil {
		return CheckoutResult{}, fmt.Errorf("create checkout session: %w", err)
	}
	return CheckoutResult{SessionID: sess.ID, URL: sess.URL}, nil
}

// VerifyPayment confirms a checkout session and grants its credits once.
// Replaying a verified session reports success without granting again.
func (s *Service) VerifyPayment(ctx context.Context, userID, sessionID string) (VerifyResult, error) {
	sessionID = strings.TrimSpace(sessionID)
	if sessionID == "" {
		return VerifyResult{}, ErrMissingSessionID
	}
	if s.Sessions == nil {
		return VerifyResult{}, ErrNotConfigured
	}
	sess, err := s.Sessions.Get(ctx, sessionID)
	if err != nil {
		return VerifyResult{}, fmt.Errorf("fetch checkout session: %w", err)
	}
	if sess.PaymentStatus != stripe.CheckoutSessionPaymentStatusPaid {
		return VerifyResult{Success: false, Message: "payment has not completed"}, nil
	}
	if owner := sessionOwner(sess); owner != userID {
		telemetry.Warn("payments.verify_owner_mismatch", map[string]any{
			"user_id":    userID,
			"session_id": sessionID,
		})
		return VerifyResult{Success: false, Message: "payment does not belong to this account"}, nil
	}

	b, granted, err := s.fulfill(ctx, sess)
	if err != nil {
		return VerifyResult{}, err
	}
	remaining := b.Remaining
	msg := "credits added"
	if !granted {
		msg = "payment already applied"
	}
	return VerifyResult{Success: true, Credits: &remaining, Message: msg}, nil
}

// HandleWebhook verifies a Stripe event and fulfills completed checkouts.
func (s *Service) HandleWebhook(ctx context.Context, payload []byte, signature string) error {
	if s.Config.WebhookSecret == "" {
		return ErrNotConfigured
	}
	event, err := webhook.ConstructEventWithOptions(payload, signature, s.Config.WebhookSecret,
		webhook.ConstructEventOptions{IgnoreAPIVersionMismatch: true})
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidSignature, err)
	}

	switch event.Type {
	case "checkout.session.completed", "checkout.session.async_payment_succeeded":
		var sess stripe.CheckoutSession
		if err := json.Unmarshal(event.Data.Raw, &sess); err != nil {
			return fmt.Errorf("decode checkout session: %w", err)
		}
		if sess.PaymentStatus != stripe.CheckoutSessionPaymentStatusPaid {
			telemetry.Info("payments.webhook_unpaid", map[string]any{"session_id": sess.ID})
			return nil
		}
		if sessionOwner(&sess) == "" {
			telemetry.Warn("payments.webhook_missing_owner", map[string]any{"session_id": sess.ID})
			return nil
		}
		_, _, err := s.fulfill(ctx, &sess)
		return err
	default:
		return nil
	}
}

func (s *Service) fulfill(ctx context.Context, sess *stripe.CheckoutSession) (credits.Balance, bool, error) {
	n := s.Config.CreditsPerPurchase
	if raw := sess.Metadata["credits"]; raw != "" {
		if v, err := strconv.Atoi(raw); err == nil && v > 0 {
			n = v
		}
	}
	return s.Credits.Grant(ctx, credits.Purchase{
		SessionID:   sess.ID,
		UserID:      sessionOwner(sess),
		Credits:     n,
		AmountTotal: sess.AmountTotal,
		Currency:    string(sess.Currency),
		CreatedAt:   time.Now().UTC(),
	})
}

func sessionOwner(sess *stripe.CheckoutSession) string {
	if sess.ClientReferenceID != "" {
		return sess.ClientReferenceID
	}
	return sess.Metadata["user_id"]
}
