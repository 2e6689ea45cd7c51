// AngelaMos | 2026
// checkout.go

package payment

import (
	"context"
	"fmt"

	stripe "github.com/stripe/stripe-go/v82"
	"github.com/stripe/stripe-go/v82/client"

	"github.com/carterperez-dev/billing-service/internal/config"
)

// Checkout creates provider-hosted checkout sessions. The checkout UI and
// card processing stay entirely on the provider's side; this service only
// mints the session and hands back its URL.
type Checkout struct {
	client     *client.API
	successURL string
	cancelURL  string
}

func NewCheckout(cfg config.StripeConfig) *Checkout {
	sc := &client.API{}
	sc.Init(cfg.SecretKey, nil)

	return &Checkout{
		client:     sc,
		successURL: cfg.SuccessURL,
		cancelURL:  cfg.CancelURL,
	}
}

func (c *Checkout) CreateSession(
	ctx context.Context,
	req CreatePaymentRequest,
) (*CheckoutSession, error) {
	currency := req.Currency
	if currency == "" {
		currency = "usd"
	}

	quantity := req.Quantity
	if quantity <= 0 {
		quantity = 1
	}

	productData := &stripe.CheckoutSessionLineItemPriceDataProductDataParams{
		Name: stripe.String(req.ProductName),
	}
	if req.Description != "" {
		productData.Description = stripe.String(req.Description)
	}

	params := &stripe.CheckoutSessionParams{
		Params: stripe.Params{Context: ctx},
		PaymentMethodTypes: stripe.StringSlice([]string{
			"card",
			"alipay",
			"link",
		}),
		LineItems: []*stripe.CheckoutSessionLineItemParams{
			{
				PriceData: &stripe.CheckoutSessionLineItemPriceDataParams{
					Currency:    stripe.String(currency),
					UnitAmount:  stripe.Int64(req.Price),
					ProductData: productData,
				},
				Quantity: stripe.Int64(quantity),
			},
		},
		ClientReferenceID: stripe.String(req.UserID),
		Mode:              stripe.String(string(stripe.CheckoutSessionModePayment)),
		SuccessURL:        stripe.String(c.successURL),
		CancelURL:         stripe.String(c.cancelURL),
	}

	if req.Email != "" {
		params.CustomerEmail = stripe.String(req.Email)
	}

	// The webhook path reads these back to resolve the entitlement.
	params.AddMetadata("userId", req.UserID)
	params.AddMetadata("productName", req.ProductName)

	sess, err := c.client.CheckoutSessions.New(params)
	if err != nil {
		return nil, fmt.Errorf("create checkout session: %w", err)
	}

	return &CheckoutSession{
		SessionID: sess.ID,
		URL:       sess.URL,
	}, nil
}
