package webhooks

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stripe/stripe-go/v84"

	pkgerrors "github.com/storelane/storelane-backend/pkg/errors"
	"github.com/storelane/storelane-backend/pkg/types"
)

const testSigningSecret = "whsec_test_secret"

type stubWebhookService struct {
	events []*stripe.Event
	err    error
}

func (s *stubWebhookService) HandleEvent(_ context.Context, event *stripe.Event) error {
	s.events = append(s.events, event)
	return s.err
}

type stubWebhookGuard struct {
	marked           []string
	deleted          []string
	alreadyProcessed bool
}

func (s *stubWebhookGuard) CheckAndMark(_ context.Context, eventID string) (bool, error) {
	s.marked = append(s.marked, eventID)
	return s.alreadyProcessed, nil
}

func (s *stubWebhookGuard) Delete(_ context.Context, eventID string) error {
	s.deleted = append(s.deleted, eventID)
	return nil
}

type stubSigningClient struct{ secret string }

func (s stubSigningClient) SigningSecret() string { return s.secret }

func eventPayload(eventID string) []byte {
	return []byte(fmt.Sprintf(`{
		"id": %q,
		"object": "event",
		"api_version": %q,
		"type": "checkout.session.completed",
		"data": {"object": {"id": "cs_test_1", "amount_total": 1999}}
	}`, eventID, stripe.APIVersion))
}

// signPayload builds a Stripe-Signature header the verifier accepts, using
// the scheme Stripe documents: HMAC-SHA256 over "<timestamp>.<payload>".
func signPayload(payload []byte, secret string) string {
	ts := time.Now().Unix()
	mac := hmac.New(sha256.New, []byte(secret))
	fmt.Fprintf(mac, "%d.%s", ts, payload)
	return fmt.Sprintf("t=%d,v1=%s", ts, hex.EncodeToString(mac.Sum(nil)))
}

func postWebhook(t *testing.T, handler http.HandlerFunc, payload []byte, signature string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/api/v1/webhooks/stripe", strings.NewReader(string(payload)))
	if signature != "" {
		req.Header.Set("Stripe-Signature", signature)
	}
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	return rec
}

func decodeErrorEnvelope(t *testing.T, rec *httptest.ResponseRecorder) types.ErrorEnvelope {
	t.Helper()
	var envelope types.ErrorEnvelope
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&envelope))
	return envelope
}

func TestStripeWebhookRejectsForgedSignature(t *testing.T) {
	svc := &stubWebhookService{}
	guard := &stubWebhookGuard{}
	handler := StripeWebhook(svc, stubSigningClient{secret: testSigningSecret}, guard, nil)

	rec := postWebhook(t, handler, eventPayload("evt_forged"), "t=1,v1=deadbeef")

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	envelope := decodeErrorEnvelope(t, rec)
	assert.Equal(t, string(pkgerrors.CodeValidation), envelope.Error.Code)
	assert.Empty(t, svc.events, "unverified event must not reach the service")
	assert.Empty(t, guard.marked, "unverified event must not touch the guard")
}

func TestStripeWebhookRejectsMissingSignature(t *testing.T) {
	svc := &stubWebhookService{}
	guard := &stubWebhookGuard{}
	handler := StripeWebhook(svc, stubSigningClient{secret: testSigningSecret}, guard, nil)

	rec := postWebhook(t, handler, eventPayload("evt_unsigned"), "")

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	envelope := decodeErrorEnvelope(t, rec)
	assert.Equal(t, string(pkgerrors.CodeValidation), envelope.Error.Code)
	assert.Empty(t, svc.events)
}

func TestStripeWebhookProcessesSignedEvent(t *testing.T) {
	svc := &stubWebhookService{}
	guard := &stubWebhookGuard{}
	handler := StripeWebhook(svc, stubSigningClient{secret: testSigningSecret}, guard, nil)

	payload := eventPayload("evt_signed")
	rec := postWebhook(t, handler, payload, signPayload(payload, testSigningSecret))

	assert.Equal(t, http.StatusOK, rec.Code)
	require.Len(t, svc.events, 1)
	assert.Equal(t, "evt_signed", svc.events[0].ID)
	assert.Equal(t, []string{"evt_signed"}, guard.marked)
	assert.Empty(t, guard.deleted)
}

func TestStripeWebhookAcksDuplicateDelivery(t *testing.T) {
	svc := &stubWebhookService{}
	guard := &stubWebhookGuard{alreadyProcessed: true}
	handler := StripeWebhook(svc, stubSigningClient{secret: testSigningSecret}, guard, nil)

	payload := eventPayload("evt_replay")
	rec := postWebhook(t, handler, payload, signPayload(payload, testSigningSecret))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Empty(t, svc.events, "replayed delivery must not be reprocessed")
}

func TestStripeWebhookReleasesGuardOnFailure(t *testing.T) {
	svc := &stubWebhookService{err: pkgerrors.New(pkgerrors.CodeDependency, "database unavailable")}
	guard := &stubWebhookGuard{}
	handler := StripeWebhook(svc, stubSigningClient{secret: testSigningSecret}, guard, nil)

	payload := eventPayload("evt_failing")
	rec := postWebhook(t, handler, payload, signPayload(payload, testSigningSecret))

	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Equal(t, []string{"evt_failing"}, guard.deleted, "failed event must release the guard for redelivery")
}
