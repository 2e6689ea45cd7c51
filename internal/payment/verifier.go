// AngelaMos | 2026
// verifier.go

package payment

import (
	"encoding/json"
	"fmt"

	"github.com/stripe/stripe-go/v82/webhook"
)

// Verifier authenticates inbound provider notifications against the shared
// webhook secret. The payload is untrusted bytes until the HMAC signature is
// recomputed and matched; no decoding happens before that. Verification is
// pure: no side effects on failure or success.
type Verifier struct {
	secret string
}

func NewVerifier(secret string) *Verifier {
	return &Verifier{secret: secret}
}

// Verify checks the Stripe-Signature header against the raw payload and
// decodes the event. Returns ErrSignatureInvalid when the signature cannot be
// recomputed to match; callers must not mutate any ledger state in that case.
func (v *Verifier) Verify(payload []byte, sigHeader string) (Event, error) {
	stripeEvent, err := webhook.ConstructEventWithOptions(
		payload,
		sigHeader,
		v.secret,
		webhook.ConstructEventOptions{IgnoreAPIVersionMismatch: true},
	)
	if err != nil {
		return Event{}, fmt.Errorf("%w: %v", ErrSignatureInvalid, err)
	}

	event := Event{
		ID:   stripeEvent.ID,
		Kind: KindOf(string(stripeEvent.Type)),
		Type: string(stripeEvent.Type),
	}

	if event.Kind == EventCheckoutCompleted {
		var sess checkoutSessionPayload
		if err := json.Unmarshal(stripeEvent.Data.Raw, &sess); err != nil {
			return Event{}, fmt.Errorf("decode checkout session: %w", err)
		}

		event.UserID = sess.Metadata["userId"]
		if event.UserID == "" {
			event.UserID = sess.ClientReferenceID
		}
		event.Product = sess.Metadata["productName"]
	}

	return event, nil
}

type checkoutSessionPayload struct {
	ID                string            `json:"id"`
	ClientReferenceID string            `json:"client_reference_id"`
	PaymentStatus     string            `json:"payment_status"`
	Metadata          map[string]string `json:"metadata"`
}
