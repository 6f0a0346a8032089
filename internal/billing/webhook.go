// Package billing applies Stripe subscription events to user tiers.
package billing

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/stripe/stripe-go/v79"
	"github.com/stripe/stripe-go/v79/webhook"

	"github.com/jonathan/shortlist/internal/config"
	"github.com/jonathan/shortlist/internal/db"
)

const maxPayloadBytes = 65536

// Subscription statuses stored on the user profile.
const (
	StatusActive   = "active"
	StatusCanceled = "canceled"
	StatusPastDue  = "past_due"
)

// ErrInvalidSignature is returned for payloads that fail verification.
var ErrInvalidSignature = errors.New("invalid webhook signature")

// Store is the user persistence the webhook needs. *db.DB implements it.
type Store interface {
	GetUserProfile(ctx context.Context, id uuid.UUID) (*db.UserProfile, error)
	GetUserByStripeCustomer(ctx context.Context, customerID string) (*db.UserProfile, error)
	SetStripeCustomer(ctx context.Context, id uuid.UUID, customerID string) error
	UpdateUserTier(ctx context.Context, id uuid.UUID, tierID, status string, now time.Time) error
}

// WebhookHandler verifies and applies Stripe events.
type WebhookHandler struct {
	store  Store
	secret string
	now    func() time.Time
}

// NewWebhookHandler creates a handler that verifies payloads with secret.
func NewWebhookHandler(store Store, secret string) *WebhookHandler {
	return &WebhookHandler{store: store, secret: secret, now: time.Now}
}

// ServeHTTP handles POST /v1/webhooks/stripe.
func (h *WebhookHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	payload, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxPayloadBytes))
	if err != nil {
		writeStatus(w, http.StatusBadRequest, "failed to read payload")
		return
	}

	if err := h.Handle(r.Context(), payload, r.Header.Get("Stripe-Signature")); err != nil {
		if errors.Is(err, ErrInvalidSignature) {
			writeStatus(w, http.StatusBadRequest, err.Error())
			return
		}
		log.Printf("[billing] %v", err)
		writeStatus(w, http.StatusInternalServerError, "failed to process event")
		return
	}
	writeStatus(w, http.StatusOK, "")
}

func writeStatus(w http.ResponseWriter, status int, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	body := map[string]any{"received": status == http.StatusOK}
	if msg != "" {
		body["error"] = msg
	}
	_ = json.NewEncoder(w).Encode(body)
}

// Handle verifies the payload signature and applies the event. Events for
// unknown customers, unknown prices and unhandled types are acknowledged
// without changes.
func (h *WebhookHandler) Handle(ctx context.Context, payload []byte, signature string) error {
	event, err := webhook.ConstructEventWithOptions(payload, signature, h.secret,
		webhook.ConstructEventOptions{IgnoreAPIVersionMismatch: true})
	if err != nil {
		log.Printf("[billing] rejected webhook: %v", err)
		return fmt.Errorf("%w: %v", ErrInvalidSignature, err)
	}

	switch event.Type {
	case "checkout.session.completed":
		var session stripe.CheckoutSession
		if err := json.Unmarshal(event.Data.Raw, &session); err != nil {
			return fmt.Errorf("failed to decode checkout session: %w", err)
		}
		return h.checkoutCompleted(ctx, &session)

	case "customer.subscription.created", "customer.subscription.updated":
		var sub stripe.Subscription
		if err := json.Unmarshal(event.Data.Raw, &sub); err != nil {
			return fmt.Errorf("failed to decode subscription: %w", err)
		}
		return h.subscriptionChanged(ctx, &sub)

	case "customer.subscription.deleted":
		var sub stripe.Subscription
		if err := json.Unmarshal(event.Data.Raw, &sub); err != nil {
			return fmt.Errorf("failed to decode subscription: %w", err)
		}
		return h.downgrade(ctx, customerID(sub.Customer), StatusCanceled)

	case "invoice.payment_failed":
		var inv stripe.Invoice
		if err := json.Unmarshal(event.Data.Raw, &inv); err != nil {
			return fmt.Errorf("failed to decode invoice: %w", err)
		}
		return h.downgrade(ctx, customerID(inv.Customer), StatusPastDue)

	default:
		log.Printf("[billing] ignoring event type %s", event.Type)
		return nil
	}
}

func customerID(c *stripe.Customer) string {
	if c == nil {
		return ""
	}
	return c.ID
}

// checkoutCompleted links the Stripe customer to the user named in
// client_reference_id.
func (h *WebhookHandler) checkoutCompleted(ctx context.Context, s *stripe.CheckoutSession) error {
	cust := customerID(s.Customer)
	userID, err := uuid.Parse(s.ClientReferenceID)
	if err != nil || cust == "" {
		log.Printf("[billing] checkout %s has no usable user reference", s.ID)
		return nil
	}

	user, err := h.store.GetUserProfile(ctx, userID)
	if err != nil {
		return fmt.Errorf("failed to load user %s: %w", userID, err)
	}
	if user == nil {
		log.Printf("[billing] checkout %s references unknown user %s", s.ID, userID)
		return nil
	}
	if err := h.store.SetStripeCustomer(ctx, user.ID, cust); err != nil {
		return fmt.Errorf("failed to link customer: %w", err)
	}

	if priceID := s.Metadata["price_id"]; priceID != "" {
		if tierID, ok := config.TierForPrice(priceID); ok {
			return h.applyTier(ctx, user, tierID, StatusActive)
		}
	}
	return nil
}

func (h *WebhookHandler) subscriptionChanged(ctx context.Context, sub *stripe.Subscription) error {
	user, err := h.userForCustomer(ctx, customerID(sub.Customer))
	if err != nil || user == nil {
		return err
	}

	switch sub.Status {
	case stripe.SubscriptionStatusCanceled, stripe.SubscriptionStatusUnpaid, stripe.SubscriptionStatusIncompleteExpired:
		return h.applyTier(ctx, user, config.FreeTierID, string(sub.Status))
	}

	tierID := ""
	if sub.Items != nil {
		for _, item := range sub.Items.Data {
			if item.Price == nil {
				continue
			}
			if id, ok := config.TierForPrice(item.Price.ID); ok {
				tierID = id
				break
			}
		}
	}
	if tierID == "" {
		log.Printf("[billing] subscription %s has no known price; ignoring", sub.ID)
		return nil
	}
	return h.applyTier(ctx, user, tierID, string(sub.Status))
}

func (h *WebhookHandler) downgrade(ctx context.Context, cust, status string) error {
	user, err := h.userForCustomer(ctx, cust)
	if err != nil || user == nil {
		return err
	}
	return h.applyTier(ctx, user, config.FreeTierID, status)
}

func (h *WebhookHandler) userForCustomer(ctx context.Context, cust string) (*db.UserProfile, error) {
	if cust == "" {
		log.Printf("[billing] event without customer; ignoring")
		return nil, nil
	}
	user, err := h.store.GetUserByStripeCustomer(ctx, cust)
	if err != nil {
		return nil, fmt.Errorf("failed to load customer %s: %w", cust, err)
	}
	if user == nil {
		log.Printf("[billing] no user for customer %s; ignoring", cust)
	}
	return user, nil
}

func (h *WebhookHandler) applyTier(ctx context.Context, user *db.UserProfile, tierID, status string) error {
	if user.TierID == tierID && user.SubscriptionStatus == status {
		return nil
	}
	if err := h.store.UpdateUserTier(ctx, user.ID, tierID, status, h.now()); err != nil {
		return fmt.Errorf("failed to move user %s to tier %s: %w", user.ID, tierID, err)
	}
	log.Printf("[billing] user %s moved to tier %s (%s)", user.ID, tierID, status)
	return nil
}
