// Package billing tracks the user's subscription entitlement.
package billing

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

// Status is the persisted subscription state as last confirmed by the
// store verifier.
type Status struct {
	IsSubscribed  bool       `json:"is_subscribed"`
	ProductID     string     `json:"product_id,omitempty"`
	PurchaseToken string     `json:"-"`
	AutoRenewing  bool       `json:"auto_renewing"`
	ExpiresAt     *time.Time `json:"expires_at,omitempty"`
}

// Active reports whether the subscription grants access at the given time.
// A missing expiry on a subscribed status means a lifetime entitlement.
func (s Status) Active(now time.Time) bool {
	if !s.IsSubscribed {
		return false
	}
	if s.ExpiresAt == nil {
		return true
	}
	return now.Before(*s.ExpiresAt)
}

// Product is a purchasable subscription offer surfaced to the client.
type Product struct {
	ID    string `json:"id"`
	Title string `json:"title"`
}

// Verifier checks a purchase token against the store backend.
type Verifier interface {
	Verify(ctx context.Context, productID, purchaseToken string) (Status, error)
}

// Store persists the single subscription record.
type Store interface {
	SaveSubscription(s Status) error
	GetSubscription() (Status, error)
}

// Broadcaster notifies connected clients that the entitlement changed.
type Broadcaster interface {
	BroadcastSubscriptionChanged(active bool)
}

// Service answers entitlement questions and re-verifies purchases.
type Service struct {
	store    Store
	verifier Verifier
	hub      Broadcaster
	products []Product
	now      func() time.Time
}

func NewService(store Store, verifier Verifier, hub Broadcaster, products []Product) *Service {
	return &Service{
		store:    store,
		verifier: verifier,
		hub:      hub,
		products: products,
		now:      time.Now,
	}
}

// Products lists the configured subscription offers.
func (s *Service) Products() []Product {
	return s.products
}

// Status returns the persisted subscription state. A user who never
// purchased anything gets an inactive status, not an error.
func (s *Service) Status() (Status, error) {
	status, err := s.store.GetSubscription()
	if errors.Is(err, sql.ErrNoRows) {
		return Status{}, nil
	}
	if err != nil {
		return Status{}, fmt.Errorf("load subscription: %w", err)
	}
	return status, nil
}

// Register records a fresh purchase after verifying it and broadcasts the
// new entitlement.
func (s *Service) Register(ctx context.Context, productID, purchaseToken string) (Status, error) {
	if s.verifier == nil {
		return Status{}, errors.New("purchase verification is not configured")
	}

	status, err := s.verifier.Verify(ctx, productID, purchaseToken)
	if err != nil {
		return Status{}, fmt.Errorf("verify purchase: %w", err)
	}
	return s.persist(status)
}

// Refresh re-verifies the stored purchase token. A purchase that no longer
// verifies, an expired one included, downgrades the status.
func (s *Service) Refresh(ctx context.Context) (Status, error) {
	current, err := s.Status()
	if err != nil {
		return Status{}, err
	}
	if current.PurchaseToken == "" || s.verifier == nil {
		return current, nil
	}

	status, err := s.verifier.Verify(ctx, current.ProductID, current.PurchaseToken)
	if err != nil {
		return Status{}, fmt.Errorf("refresh subscription: %w", err)
	}
	return s.persist(status)
}

func (s *Service) persist(status Status) (Status, error) {
	if err := s.store.SaveSubscription(status); err != nil {
		return Status{}, fmt.Errorf("save subscription: %w", err)
	}
	if s.hub != nil {
		s.hub.BroadcastSubscriptionChanged(status.Active(s.now()))
	}
	return status, nil
}
