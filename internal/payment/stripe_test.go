package payment

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stripe/stripe-go/v82/webhook"

	"github.com/ignatzorin/escrow-market/internal/models"
)

const testSecret = "whsec_test_secret"

func signedPayload(t *testing.T, body string, secret string) (*webhook.SignedPayload, []byte) {
	t.Helper()
	payload := []byte(body)
	signed := webhook.GenerateTestSignedPayload(&webhook.UnsignedPayload{
		Payload:   payload,
		Secret:    secret,
		Timestamp: time.Now(),
	})
	return signed, payload
}

func intentSucceeded(dealID string) string {
	return fmt.Sprintf(`{
		"id": "evt_1",
		"object": "event",
		"type": "payment_intent.succeeded",
		"data": {"object": {"id": "pi_1", "object": "payment_intent", "metadata": {"dealId": %q}}}
	}`, dealID)
}

func TestConstructEvent_ValidSignature(t *testing.T) {
	g := NewStripeGateway("", testSecret)
	signed, payload := signedPayload(t, intentSucceeded("deal-42"), testSecret)

	event, err := g.ConstructEvent(payload, signed.Header)
	require.NoError(t, err)
	assert.Equal(t, EventPaymentIntentSucceeded, event.Type)
	assert.Equal(t, "deal-42", event.DealID)
	assert.Equal(t, "evt_1", event.ID)
}

func TestConstructEvent_WrongSecret(t *testing.T) {
	g := NewStripeGateway("", testSecret)
	signed, payload := signedPayload(t, intentSucceeded("deal-42"), "whsec_other")

	_, err := g.ConstructEvent(payload, signed.Header)
	assert.Error(t, err)
}

func TestConstructEvent_TamperedBody(t *testing.T) {
	g := NewStripeGateway("", testSecret)
	signed, _ := signedPayload(t, intentSucceeded("deal-42"), testSecret)

	_, err := g.ConstructEvent([]byte(intentSucceeded("deal-43")), signed.Header)
	assert.Error(t, err)
}

func TestConstructEvent_MissingSignature(t *testing.T) {
	g := NewStripeGateway("", testSecret)

	_, err := g.ConstructEvent([]byte(intentSucceeded("x")), "")
	assert.ErrorIs(t, err, ErrSignatureMissing)
}

func TestConstructEvent_MissingSecret(t *testing.T) {
	g := NewStripeGateway("", "")
	signed, payload := signedPayload(t, intentSucceeded("x"), testSecret)

	_, err := g.ConstructEvent(payload, signed.Header)
	assert.ErrorIs(t, err, ErrWebhookSecretMissing)
}

func TestConstructEvent_OtherEventHasNoDeal(t *testing.T) {
	g := NewStripeGateway("", testSecret)
	body := `{"id": "evt_2", "object": "event", "type": "charge.refunded", "data": {"object": {"id": "ch_1", "object": "charge"}}}`
	signed, payload := signedPayload(t, body, testSecret)

	event, err := g.ConstructEvent(payload, signed.Header)
	require.NoError(t, err)
	assert.Equal(t, "charge.refunded", event.Type)
	assert.Empty(t, event.DealID)
}

func TestGateway_NotConfigured(t *testing.T) {
	g := NewStripeGateway("", testSecret)

	_, err := g.CreateCustomer(context.Background(), &models.User{Email: "a@b.c"})
	assert.ErrorIs(t, err, ErrNotConfigured)

	_, err = g.CreatePaymentIntent(context.Background(), 100, "USD", "cus_1", nil)
	assert.ErrorIs(t, err, ErrNotConfigured)
}
