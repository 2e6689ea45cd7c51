// AngelaMos | 2026
// handler.go

package payment

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/carterperez-dev/billing-service/internal/core"
	"github.com/carterperez-dev/billing-service/internal/ledger"
)

// Webhook payloads are small JSON documents; anything bigger is not a
// legitimate provider notification.
const maxWebhookBody = 64 << 10

// Engine is the slice of the ledger transition engine the webhook path needs.
type Engine interface {
	ApplyPurchase(
		ctx context.Context,
		userID string,
		effect ledger.Effect,
	) (*ledger.Ledger, error)
}

type Handler struct {
	verifier  *Verifier
	resolver  *Resolver
	engine    Engine
	checkout  *Checkout
	validator *validator.Validate
}

func NewHandler(
	verifier *Verifier,
	resolver *Resolver,
	engine Engine,
	checkout *Checkout,
) *Handler {
	return &Handler{
		verifier:  verifier,
		resolver:  resolver,
		engine:    engine,
		checkout:  checkout,
		validator: validator.New(validator.WithRequiredStructEnabled()),
	}
}

// RegisterWebhookRoutes mounts the provider callback. Trust comes from the
// payload signature, not a caller credential, so the route carries no
// authenticator and sits outside the rate limiter.
func (h *Handler) RegisterWebhookRoutes(r chi.Router) {
	r.Post("/payment/callback", h.Callback)
}

func (h *Handler) RegisterRoutes(
	r chi.Router,
	authenticator func(http.Handler) http.Handler,
) {
	r.Route("/payment", func(r chi.Router) {
		r.Use(authenticator)

		r.Post("/create-payment", h.CreatePayment)
	})
}

// Callback processes a provider notification. Signature failure is the hard
// boundary: nothing downstream of it runs, so no forged payload can reach the
// ledger.
func (h *Handler) Callback(w http.ResponseWriter, r *http.Request) {
	sigHeader := r.Header.Get("Stripe-Signature")
	if sigHeader == "" {
		core.BadRequest(w, "missing Stripe-Signature header")
		return
	}

	payload, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxWebhookBody))
	if err != nil {
		core.BadRequest(w, "unreadable payload")
		return
	}

	event, err := h.verifier.Verify(payload, sigHeader)
	if err != nil {
		slog.Warn("webhook signature verification failed", "error", err)
		core.BadRequest(w, "webhook signature verification failed")
		return
	}

	effect, actionable := h.resolver.Resolve(event)
	if !actionable {
		slog.Debug("ignoring provider event",
			"event_id", event.ID,
			"event_type", event.Type,
			"product", event.Product,
		)
		core.OK(w, AckResponse{Received: true})
		return
	}

	if event.UserID == "" {
		slog.Warn("purchase event missing user reference",
			"event_id", event.ID,
			"product", event.Product,
		)
		core.OK(w, AckResponse{Received: true})
		return
	}

	rec, err := h.engine.ApplyPurchase(r.Context(), event.UserID, effect)
	if err != nil {
		if errors.Is(err, ledger.ErrUnknownUser) {
			// Redelivery will not conjure the account; acknowledge so the
			// provider stops retrying.
			slog.Warn("purchase for unknown user",
				"event_id", event.ID,
				"user_id", event.UserID,
			)
			core.OK(w, AckResponse{Received: true})
			return
		}

		slog.Error("failed to apply purchase",
			"event_id", event.ID,
			"user_id", event.UserID,
			"error", err,
		)
		core.ServiceUnavailable(w, "ledger store unavailable")
		return
	}

	slog.Info("purchase applied",
		"event_id", event.ID,
		"user_id", rec.UserID,
		"plan", rec.ActivePlan(),
		"token_balance", rec.TokenBalance,
	)

	core.OK(w, AckResponse{Received: true})
}

func (h *Handler) CreatePayment(w http.ResponseWriter, r *http.Request) {
	var req CreatePaymentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		core.BadRequest(w, "invalid request body")
		return
	}

	if err := h.validator.Struct(req); err != nil {
		core.BadRequest(w, core.FormatValidationError(err))
		return
	}

	session, err := h.checkout.CreateSession(r.Context(), req)
	if err != nil {
		core.InternalServerError(w, err)
		return
	}

	slog.Info("checkout session created",
		"session_id", session.SessionID,
		"user_id", req.UserID,
		"product", req.ProductName,
	)

	core.OK(w, session)
}
