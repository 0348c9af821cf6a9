// Package payment адаптер платёжного шлюза Stripe для эскроу-платежей.
package payment

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/stripe/stripe-go/v82"
	"github.com/stripe/stripe-go/v82/client"
	"github.com/stripe/stripe-go/v82/webhook"

	"github.com/ignatzorin/escrow-market/internal/models"
)

// EventPaymentIntentSucceeded событие успешной оплаты.
const EventPaymentIntentSucceeded = "payment_intent.succeeded"

// MetadataDealID ключ метаданных платежа с идентификатором сделки.
const MetadataDealID = "dealId"

var (
	ErrNotConfigured        = errors.New("payment: stripe secret key is not configured")
	ErrWebhookSecretMissing = errors.New("payment: webhook secret is not configured")
	ErrSignatureMissing     = errors.New("payment: missing webhook signature")
)

// Intent созданный платёж.
type Intent struct {
	ID           string
	ClientSecret string
}

// Event проверенное событие webhook.
type Event struct {
	ID     string
	Type   string
	DealID string
}

// StripeGateway реализует создание клиентов, платежей и проверку webhook.
type StripeGateway struct {
	api           *client.API
	webhookSecret string
}

// NewStripeGateway создаёт шлюз. Пустой secretKey допустим в development:
// вызовы API тогда возвращают ErrNotConfigured.
func NewStripeGateway(secretKey, webhookSecret string) *StripeGateway {
	g := &StripeGateway{webhookSecret: webhookSecret}
	if secretKey != "" {
		g.api = client.New(secretKey, nil)
	}
	return g
}

// CreateCustomer создаёт клиента Stripe для пользователя.
func (g *StripeGateway) CreateCustomer(ctx context.Context, user *models.User) (string, error) {
	if g.api == nil {
		return "", ErrNotConfigured
	}

	params := &stripe.CustomerParams{
		Email:    stripe.String(user.Email),
		Metadata: map[string]string{"user_id": user.ID.String()},
	}
	if user.DisplayName != "" {
		params.Name = stripe.String(user.DisplayName)
	}
	params.Context = ctx

	cust, err := g.api.Customers.New(params)
	if err != nil {
		return "", fmt.Errorf("create stripe customer: %w", err)
	}
	return cust.ID, nil
}

// CreatePaymentIntent создаёт платёж на сумму в минорных единицах.
func (g *StripeGateway) CreatePaymentIntent(ctx context.Context, amountMinor int64, currency, customerID string, metadata map[string]string) (*Intent, error) {
	if g.api == nil {
		return nil, ErrNotConfigured
	}

	params := &stripe.PaymentIntentParams{
		Amount:   stripe.Int64(amountMinor),
		Currency: stripe.String(strings.ToLower(currency)),
		Customer: stripe.String(customerID),
		Metadata: metadata,
	}
	params.Context = ctx

	pi, err := g.api.PaymentIntents.New(params)
	if err != nil {
		return nil, fmt.Errorf("create payment intent: %w", err)
	}
	return &Intent{ID: pi.ID, ClientSecret: pi.ClientSecret}, nil
}

// ConstructEvent проверяет подпись над сырым телом запроса и разбирает событие.
func (g *StripeGateway) ConstructEvent(payload []byte, signature string) (*Event, error) {
	if g.webhookSecret == "" {
		return nil, ErrWebhookSecretMissing
	}
	if signature == "" {
		return nil, ErrSignatureMissing
	}

	event, err := webhook.ConstructEventWithOptions(payload, signature, g.webhookSecret,
		webhook.ConstructEventOptions{IgnoreAPIVersionMismatch: true})
	if err != nil {
		return nil, fmt.Errorf("verify webhook: %w", err)
	}

	out := &Event{ID: event.ID, Type: string(event.Type)}
	if out.Type == EventPaymentIntentSucceeded && event.Data != nil {
		var pi stripe.PaymentIntent
		if err := json.Unmarshal(event.Data.Raw, &pi); err != nil {
			return nil, fmt.Errorf("decode payment intent: %w", err)
		}
		out.DealID = pi.Metadata[MetadataDealID]
	}
	return out, nil
}
