// AngelaMos | 2026
// handler_test.go

package payment_test

import (
	"bytes"
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/carterperez-dev/billing-service/internal/config"
	"github.com/carterperez-dev/billing-service/internal/ledger"
	"github.com/carterperez-dev/billing-service/internal/payment"
)

type fakeEngine struct {
	calls  int
	userID string
	effect ledger.Effect
	err    error
}

func (f *fakeEngine) ApplyPurchase(
	ctx context.Context,
	userID string,
	effect ledger.Effect,
) (*ledger.Ledger, error) {
	f.calls++
	f.userID = userID
	f.effect = effect

	if f.err != nil {
		return nil, f.err
	}

	return &ledger.Ledger{
		UserID:            userID,
		TokenBalance:      effect.TokenBalance,
		EntitlementPoints: effect.Points,
		PlanOneMonth:      effect.Plan == ledger.PlanOneMonth,
		PlanSixMonths:     effect.Plan == ledger.PlanSixMonth,
	}, nil
}

func newCallbackRouter(t *testing.T, engine *fakeEngine) chi.Router {
	t.Helper()

	h := payment.NewHandler(
		payment.NewVerifier(testWebhookSecret),
		payment.NewResolver(config.BillingConfig{
			NormalAllotment:   1000,
			EntitledAllotment: 8000,
		}),
		engine,
		nil,
	)

	r := chi.NewRouter()
	h.RegisterWebhookRoutes(r)
	return r
}

func postCallback(
	router chi.Router,
	payload string,
	sigHeader string,
) *httptest.ResponseRecorder {
	req := httptest.NewRequest(
		http.MethodPost,
		"/payment/callback",
		bytes.NewReader([]byte(payload)),
	)
	if sigHeader != "" {
		req.Header.Set("Stripe-Signature", sigHeader)
	}
	req.Header.Set("Content-Type", "application/json")

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

func TestHandler_Callback(t *testing.T) {
	t.Parallel()

	t.Run("applies verified purchase", func(t *testing.T) {
		t.Parallel()
		engine := &fakeEngine{}
		router := newCallbackRouter(t, engine)

		header := signPayload(t, checkoutCompletedJSON, testWebhookSecret, time.Now())
		rec := postCallback(router, checkoutCompletedJSON, header)

		assert.Equal(t, http.StatusOK, rec.Code)
		assert.JSONEq(t, `{"received":true}`, rec.Body.String())

		require.Equal(t, 1, engine.calls)
		assert.Equal(t, "user-1", engine.userID)
		assert.Equal(t, ledger.Effect{
			TokenBalance: 8000,
			Points:       1,
			Plan:         ledger.PlanOneMonth,
		}, engine.effect)
	})

	t.Run("missing signature header", func(t *testing.T) {
		t.Parallel()
		engine := &fakeEngine{}
		router := newCallbackRouter(t, engine)

		rec := postCallback(router, checkoutCompletedJSON, "")

		assert.Equal(t, http.StatusBadRequest, rec.Code)
		assert.Zero(t, engine.calls)
	})

	t.Run("invalid signature never reaches engine", func(t *testing.T) {
		t.Parallel()
		engine := &fakeEngine{}
		router := newCallbackRouter(t, engine)

		header := signPayload(t, checkoutCompletedJSON, "whsec_other", time.Now())
		rec := postCallback(router, checkoutCompletedJSON, header)

		assert.Equal(t, http.StatusBadRequest, rec.Code)
		assert.Zero(t, engine.calls)
	})

	t.Run("unrecognized event acked without mutation", func(t *testing.T) {
		t.Parallel()
		engine := &fakeEngine{}
		router := newCallbackRouter(t, engine)

		payloadJSON := `{
			"id": "evt_info",
			"object": "event",
			"type": "invoice.paid",
			"data": {"object": {"id": "in_1"}}
		}`
		header := signPayload(t, payloadJSON, testWebhookSecret, time.Now())
		rec := postCallback(router, payloadJSON, header)

		assert.Equal(t, http.StatusOK, rec.Code)
		assert.JSONEq(t, `{"received":true}`, rec.Body.String())
		assert.Zero(t, engine.calls)
	})

	t.Run("unknown product acked without mutation", func(t *testing.T) {
		t.Parallel()
		engine := &fakeEngine{}
		router := newCallbackRouter(t, engine)

		payloadJSON := `{
			"id": "evt_other_product",
			"object": "event",
			"type": "checkout.session.completed",
			"data": {
				"object": {
					"id": "cs_2",
					"payment_status": "paid",
					"metadata": {"userId": "user-1", "productName": "GIFT_CARD"}
				}
			}
		}`
		header := signPayload(t, payloadJSON, testWebhookSecret, time.Now())
		rec := postCallback(router, payloadJSON, header)

		assert.Equal(t, http.StatusOK, rec.Code)
		assert.Zero(t, engine.calls)
	})

	t.Run("missing user reference acked", func(t *testing.T) {
		t.Parallel()
		engine := &fakeEngine{}
		router := newCallbackRouter(t, engine)

		payloadJSON := `{
			"id": "evt_no_user",
			"object": "event",
			"type": "checkout.session.completed",
			"data": {
				"object": {
					"id": "cs_3",
					"payment_status": "paid",
					"metadata": {"productName": "PREMIUM_ONE_MONTH"}
				}
			}
		}`
		header := signPayload(t, payloadJSON, testWebhookSecret, time.Now())
		rec := postCallback(router, payloadJSON, header)

		assert.Equal(t, http.StatusOK, rec.Code)
		assert.Zero(t, engine.calls)
	})

	t.Run("unknown user acked so provider stops retrying", func(t *testing.T) {
		t.Parallel()
		engine := &fakeEngine{err: ledger.ErrUnknownUser}
		router := newCallbackRouter(t, engine)

		header := signPayload(t, checkoutCompletedJSON, testWebhookSecret, time.Now())
		rec := postCallback(router, checkoutCompletedJSON, header)

		assert.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, 1, engine.calls)
	})

	t.Run("store failure returns 503 for redelivery", func(t *testing.T) {
		t.Parallel()
		engine := &fakeEngine{err: errors.New("connection refused")}
		router := newCallbackRouter(t, engine)

		header := signPayload(t, checkoutCompletedJSON, testWebhookSecret, time.Now())
		rec := postCallback(router, checkoutCompletedJSON, header)

		assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
		assert.Equal(t, 1, engine.calls)
	})
}
