package subscription

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	paddle "github.com/PaddleHQ/paddle-go-sdk/v4"

	"github.com/dmitrymomot/usagegate/pkg/logger"
	"github.com/dmitrymomot/usagegate/pkg/quota"
)

// ProviderPaddle is the Record.Provider value of Paddle subscriptions.
const ProviderPaddle = "paddle"

// SignatureHeader carries the Paddle webhook signature.
const SignatureHeader = "Paddle-Signature"

const maxWebhookBody = 1 << 20

// PaddleConfig configures webhook verification and the price to tier mapping.
type PaddleConfig struct {
	WebhookSecret string            `env:"PADDLE_WEBHOOK_SECRET"`
	PriceTiers    map[string]string `env:"PADDLE_PRICE_TIERS"`
}

// Verifier checks a webhook request signature.
// *paddle.WebhookVerifier satisfies it.
type Verifier interface {
	Verify(req *http.Request) (bool, error)
}

// PaddleSyncer keeps subscription records in sync with Paddle webhooks.
type PaddleSyncer struct {
	verifier   Verifier
	store      Store
	priceTiers map[string]quota.Tier
	log        *slog.Logger
}

// PaddleOption configures a PaddleSyncer.
type PaddleOption func(*PaddleSyncer)

// WithVerifier replaces the signature verifier.
func WithVerifier(v Verifier) PaddleOption {
	return func(s *PaddleSyncer) {
		if v != nil {
			s.verifier = v
		}
	}
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) PaddleOption {
	return func(s *PaddleSyncer) {
		if l != nil {
			s.log = l
		}
	}
}

// NewPaddleSyncer creates a syncer that verifies signatures with cfg.WebhookSecret.
func NewPaddleSyncer(cfg PaddleConfig, store Store, opts ...PaddleOption) (*PaddleSyncer, error) {
	if store == nil {
		return nil, errors.New("subscription: nil store")
	}

	s := &PaddleSyncer{
		store:      store,
		priceTiers: make(map[string]quota.Tier, len(cfg.PriceTiers)),
		log:        slog.Default(),
	}
	for price, tier := range cfg.PriceTiers {
		s.priceTiers[strings.TrimSpace(price)] = quota.ParseTier(tier)
	}
	for _, opt := range opts {
		opt(s)
	}

	if s.verifier == nil {
		if cfg.WebhookSecret == "" {
			return nil, ErrMissingSecret
		}
		s.verifier = paddle.NewWebhookVerifier(cfg.WebhookSecret)
	}

	return s, nil
}

type paddleEvent struct {
	EventID    string          `json:"event_id"`
	EventType  string          `json:"event_type"`
	OccurredAt time.Time       `json:"occurred_at"`
	Data       json.RawMessage `json:"data"`
}

type paddleSubscription struct {
	ID         string `json:"id"`
	Status     string `json:"status"`
	CustomData struct {
		UserID string `json:"user_id"`
	} `json:"custom_data"`
	Items []struct {
		Price struct {
			ID string `json:"id"`
		} `json:"price"`
	} `json:"items"`
	CurrentBillingPeriod *struct {
		EndsAt time.Time `json:"ends_at"`
	} `json:"current_billing_period"`
}

// HandleRequest verifies and applies a webhook request.
// It returns the saved record, or ErrEventNotApplicable for events that do
// not describe a subscription.
func (s *PaddleSyncer) HandleRequest(r *http.Request) (*Record, error) {
	body, err := io.ReadAll(io.LimitReader(r.Body, maxWebhookBody))
	if err != nil {
		return nil, errors.Join(ErrMalformedWebhook, err)
	}
	return s.Handle(r.Context(), body, r.Header.Get(SignatureHeader))
}

// Handle verifies the payload signature and applies the event.
func (s *PaddleSyncer) Handle(ctx context.Context, payload []byte, signature string) (*Record, error) {
	if err := s.verify(ctx, payload, signature); err != nil {
		return nil, err
	}

	var evt paddleEvent
	if err := json.Unmarshal(payload, &evt); err != nil {
		return nil, errors.Join(ErrMalformedWebhook, err)
	}
	if !strings.HasPrefix(evt.EventType, "subscription.") {
		return nil, fmt.Errorf("%w: %s", ErrEventNotApplicable, evt.EventType)
	}

	if evt.OccurredAt.IsZero() {
		return nil, fmt.Errorf("%w: event %s has no occurred_at", ErrMalformedWebhook, evt.EventID)
	}

	var sub paddleSubscription
	if err := json.Unmarshal(evt.Data, &sub); err != nil {
		return nil, errors.Join(ErrMalformedWebhook, err)
	}

	record, err := s.toRecord(evt, sub)
	if err != nil {
		return nil, err
	}

	if err := s.store.Save(ctx, record); err != nil {
		if errors.Is(err, ErrStaleEvent) {
			s.log.InfoContext(ctx, "stale subscription event ignored",
				logger.Component("paddle_sync"),
				logger.Event(evt.EventType),
				logger.UserID(record.UserID),
				slog.Time("occurred_at", record.LastEventAt),
			)
			return nil, fmt.Errorf("%w: %w", ErrEventNotApplicable, err)
		}
		return nil, err
	}

	s.log.InfoContext(ctx, "subscription synced",
		logger.Component("paddle_sync"),
		logger.Event(evt.EventType),
		logger.UserID(record.UserID),
		logger.Tier(record.Tier),
		slog.String("status", string(record.Status)),
	)
	return record, nil
}

func (s *PaddleSyncer) verify(ctx context.Context, payload []byte, signature string) error {
	if signature == "" {
		return ErrInvalidSignature
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, "/", bytes.NewReader(payload))
	if err != nil {
		return errors.Join(ErrInvalidSignature, err)
	}
	req.Header.Set(SignatureHeader, signature)

	ok, err := s.verifier.Verify(req)
	if err != nil {
		return errors.Join(ErrInvalidSignature, err)
	}
	if !ok {
		return ErrInvalidSignature
	}
	return nil
}

func (s *PaddleSyncer) toRecord(evt paddleEvent, sub paddleSubscription) (*Record, error) {
	userID := strings.TrimSpace(sub.CustomData.UserID)
	if userID == "" {
		return nil, fmt.Errorf("%w: subscription %s", ErrMissingUserID, sub.ID)
	}
	if len(sub.Items) == 0 {
		return nil, fmt.Errorf("%w: subscription %s has no items", ErrMalformedWebhook, sub.ID)
	}

	// The first item carrying a known price decides the tier.
	tier, found := quota.TierFree, false
	for _, item := range sub.Items {
		if t, ok := s.priceTiers[item.Price.ID]; ok {
			tier, found = t, true
			break
		}
	}
	if !found {
		return nil, fmt.Errorf("%w: subscription %s", ErrUnknownPrice, sub.ID)
	}

	status := ParseStatus(sub.Status)
	if evt.EventType == "subscription.canceled" {
		status = StatusCanceled
	}

	record := &Record{
		UserID:        userID,
		Tier:          tier,
		Status:        status,
		Provider:      ProviderPaddle,
		ProviderSubID: sub.ID,
		LastEventAt:   evt.OccurredAt.UTC(),
	}
	if sub.CurrentBillingPeriod != nil && !sub.CurrentBillingPeriod.EndsAt.IsZero() {
		end := sub.CurrentBillingPeriod.EndsAt.UTC()
		record.CurrentPeriodEnd = &end
	}
	return record, nil
}
