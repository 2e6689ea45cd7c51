// AngelaMos | 2026
// resolver.go

package payment

import (
	"github.com/carterperez-dev/billing-service/internal/config"
	"github.com/carterperez-dev/billing-service/internal/ledger"
)

// Resolver is the pure mapping from a verified event to an entitlement
// effect. Exactly two product identifiers are purchasable; every other event
// kind or product resolves to a no-op, which is an expected outcome rather
// than an error, since the provider delivers many informational event types
// this service intentionally ignores.
type Resolver struct {
	entitledAllotment int
}

func NewResolver(cfg config.BillingConfig) *Resolver {
	return &Resolver{entitledAllotment: cfg.EntitledAllotment}
}

// Resolve returns the effect for a purchase event and whether the event is
// actionable at all.
func (r *Resolver) Resolve(event Event) (ledger.Effect, bool) {
	switch event.Kind {
	case EventCheckoutCompleted:
		switch event.Product {
		case ProductOneMonth:
			return ledger.Effect{
				TokenBalance: r.entitledAllotment,
				Points:       1,
				Plan:         ledger.PlanOneMonth,
			}, true
		case ProductSixMonth:
			return ledger.Effect{
				TokenBalance: r.entitledAllotment,
				Points:       6,
				Plan:         ledger.PlanSixMonth,
			}, true
		default:
			// Completed checkout for a non-entitlement product.
			return ledger.Effect{}, false
		}

	case EventCheckoutExpired,
		EventChargeSucceeded,
		EventChargeUpdated,
		EventPaymentIntentCreated,
		EventPaymentIntentSucceeded:
		// Recognized but handled entirely by the provider; acknowledge only.
		return ledger.Effect{}, false

	default:
		return ledger.Effect{}, false
	}
}
