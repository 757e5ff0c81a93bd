package membership

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/stripe/stripe-go/v82"
	"github.com/stripe/stripe-go/v82/webhook"

	"github.com/dmitrymomot/memberkit/core"
	"github.com/dmitrymomot/memberkit/pkg/logger"
	domain "github.com/dmitrymomot/memberkit/svc/membership"
)

// StripeConfig configures the checkout webhook.
type StripeConfig struct {
	WebhookSecret string `env:"STRIPE_WEBHOOK_SECRET"`
	// PlanMetadataKey and UIDMetadataKey name the checkout session metadata
	// that carry the purchase. The uid falls back to client_reference_id.
	PlanMetadataKey string `env:"STRIPE_PLAN_METADATA_KEY" envDefault:"plan_id"`
	UIDMetadataKey  string `env:"STRIPE_UID_METADATA_KEY" envDefault:"uid"`
}

func (c StripeConfig) Enabled() bool {
	return c.WebhookSecret != ""
}

// StripeWebhook turns paid checkout sessions into purchases.
type StripeWebhook struct {
	cfg    StripeConfig
	engine *domain.Engine
	logger *slog.Logger
}

func NewStripeWebhook(cfg StripeConfig, engine *domain.Engine, log *slog.Logger) *StripeWebhook {
	if engine == nil {
		panic("membership module: engine cannot be nil")
	}
	if log == nil {
		log = slog.Default()
	}
	return &StripeWebhook{cfg: cfg, engine: engine, logger: log.With(logger.Component("stripe"))}
}

type webhookAck struct {
	Received bool   `json:"received"`
	Result   string `json:"result"`
	Expires  string `json:"expires,omitempty"`
}

// ServeHTTP answers 2xx for every event Stripe should not retry: handled,
// ignored or refused by eligibility rules. Storage failures answer 503.
func (h *StripeWebhook) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	payload, err := io.ReadAll(io.LimitReader(r.Body, core.DefaultMaxJSONSize))
	if err != nil {
		h.render(w, r, core.JSONError(core.ErrBadRequest.WithMessage("unreadable body")))
		return
	}

	event, err := webhook.ConstructEventWithOptions(payload, r.Header.Get("Stripe-Signature"), h.cfg.WebhookSecret,
		webhook.ConstructEventOptions{IgnoreAPIVersionMismatch: true})
	if err != nil {
		h.logger.WarnContext(ctx, "stripe signature verification failed", logger.Error(err))
		h.render(w, r, core.JSONError(core.ErrBadRequest.WithMessage("invalid signature")))
		return
	}

	if event.Type != stripe.EventTypeCheckoutSessionCompleted {
		h.logger.DebugContext(ctx, "stripe event ignored", slog.String("event_type", string(event.Type)))
		h.render(w, r, core.JSON("webhook_received", webhookAck{Received: true, Result: "ignored"}, nil))
		return
	}

	var session stripe.CheckoutSession
	if err := json.Unmarshal(event.Data.Raw, &session); err != nil {
		h.render(w, r, core.JSONError(core.ErrBadRequest.WithMessage("malformed checkout session")))
		return
	}
	if session.PaymentStatus != stripe.CheckoutSessionPaymentStatusPaid {
		h.render(w, r, core.JSON("webhook_received", webhookAck{Received: true, Result: "unpaid"}, nil))
		return
	}

	purchase, err := h.purchase(&session)
	if err != nil {
		h.logger.ErrorContext(ctx, "stripe checkout session cannot be matched",
			slog.String("session_id", session.ID), logger.Error(err))
		h.render(w, r, core.JSON("webhook_received", webhookAck{Received: true, Result: "unmatched"}, nil))
		return
	}

	expires, err := h.engine.RecordPurchase(ctx, purchase)
	switch {
	case err == nil:
		h.render(w, r, core.JSON("webhook_received",
			webhookAck{Received: true, Result: "recorded", Expires: formatDate(expires)}, nil))
	case errors.Is(err, domain.ErrPersistence):
		h.logger.ErrorContext(ctx, "stripe purchase not stored", slog.String("session_id", session.ID), logger.Error(err))
		h.render(w, r, core.JSONError(core.ErrServiceUnavailable))
	default:
		// paid but refused; needs a manual refund or renewal
		h.logger.ErrorContext(ctx, "stripe purchase refused",
			slog.String("session_id", session.ID), logger.UID(purchase.UID), logger.PlanID(purchase.PlanID), logger.Error(err))
		h.render(w, r, core.JSON("webhook_received", webhookAck{Received: true, Result: "refused"}, nil))
	}
}

func (h *StripeWebhook) purchase(s *stripe.CheckoutSession) (domain.Purchase, error) {
	rawUID := s.Metadata[h.cfg.UIDMetadataKey]
	if rawUID == "" {
		rawUID = s.ClientReferenceID
	}
	uid, err := strconv.ParseInt(rawUID, 10, 64)
	if err != nil || uid <= 0 {
		return domain.Purchase{}, domain.ErrInvalidUID
	}
	planID := s.Metadata[h.cfg.PlanMetadataKey]
	if planID == "" {
		return domain.Purchase{}, domain.ErrPlanNotFound
	}
	return domain.Purchase{
		UID:        uid,
		PlanID:     planID,
		Amount:     s.AmountTotal,
		Gateway:    "stripe",
		ExternalID: s.ID,
	}, nil
}

func (h *StripeWebhook) render(w http.ResponseWriter, r *http.Request, resp core.Response) {
	if err := resp.Render(w, r); err != nil {
		h.logger.ErrorContext(r.Context(), "failed to write webhook response", logger.Error(err))
	}
}
