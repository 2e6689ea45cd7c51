// AngelaMos | 2026
// event.go

package payment

import "errors"

// EventKind is the closed set of provider event types this service
// recognizes. Anything outside the set is still acknowledged, via the
// explicit default arm in the resolver, but never acted on.
type EventKind string

const (
	EventCheckoutCompleted      EventKind = "checkout.session.completed"
	EventCheckoutExpired        EventKind = "checkout.session.expired"
	EventChargeSucceeded        EventKind = "charge.succeeded"
	EventChargeUpdated          EventKind = "charge.updated"
	EventPaymentIntentCreated   EventKind = "payment_intent.created"
	EventPaymentIntentSucceeded EventKind = "payment_intent.succeeded"

	// EventUnknown marks event types outside the recognized set.
	EventUnknown EventKind = ""
)

var recognizedKinds = map[EventKind]struct{}{
	EventCheckoutCompleted:      {},
	EventCheckoutExpired:        {},
	EventChargeSucceeded:        {},
	EventChargeUpdated:          {},
	EventPaymentIntentCreated:   {},
	EventPaymentIntentSucceeded: {},
}

// KindOf maps a raw provider event type onto the closed set.
func KindOf(eventType string) EventKind {
	kind := EventKind(eventType)
	if _, ok := recognizedKinds[kind]; ok {
		return kind
	}
	return EventUnknown
}

// The two purchasable product identifiers. All other products resolve to a
// no-op.
const (
	ProductOneMonth = "PREMIUM_ONE_MONTH"
	ProductSixMonth = "PREMIUM_SIX_MONTH"
)

// Event is a verified, decoded provider notification. Ephemeral: it exists
// only for the duration of webhook processing and is never persisted.
type Event struct {
	ID      string
	Kind    EventKind
	Type    string
	UserID  string
	Product string
}

var ErrSignatureInvalid = errors.New("webhook signature invalid")
