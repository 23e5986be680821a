package api

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/dmitrymomot/usagegate/pkg/audit"
	"github.com/dmitrymomot/usagegate/pkg/logger"
	"github.com/dmitrymomot/usagegate/pkg/quota"
	"github.com/dmitrymomot/usagegate/pkg/subscription"
)

// Gate is the usage gate consumed by the handlers. *usage.Gate satisfies it.
type Gate interface {
	CheckAndIncrement(ctx context.Context, feature quota.FeatureKind, userID string) (quota.Decision, error)
	Status(ctx context.Context, feature quota.FeatureKind, userID string) (quota.Status, error)
	AllStatus(ctx context.Context, userID string) (map[quota.FeatureKind]quota.Status, error)
	ResetUsage(ctx context.Context, feature quota.FeatureKind, userID string) error
}

// Syncer applies billing webhooks. *subscription.PaddleSyncer satisfies it.
type Syncer interface {
	HandleRequest(r *http.Request) (*subscription.Record, error)
}

type handlers struct {
	gate     Gate
	syncer   Syncer
	auditor  Auditor
	onSynced func(userID string)
	log      *slog.Logger
}

func (h *handlers) feature(r *http.Request) (quota.FeatureKind, error) {
	return quota.ParseFeatureKind(chi.URLParam(r, "feature"))
}

func (h *handlers) fail(w http.ResponseWriter, r *http.Request, err error) {
	if status := writeError(w, r, err); status >= http.StatusInternalServerError {
		h.log.ErrorContext(r.Context(), "request failed",
			slog.String("path", r.URL.Path),
			logger.Error(err),
		)
	}
}

func (h *handlers) check(w http.ResponseWriter, r *http.Request) {
	feature, err := h.feature(r)
	if err != nil {
		h.fail(w, r, err)
		return
	}

	decision, err := h.gate.CheckAndIncrement(r.Context(), feature, "")
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeData(w, decision)
}

func (h *handlers) status(w http.ResponseWriter, r *http.Request) {
	feature, err := h.feature(r)
	if err != nil {
		h.fail(w, r, err)
		return
	}

	status, err := h.gate.Status(r.Context(), feature, "")
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeData(w, status)
}

func (h *handlers) allStatus(w http.ResponseWriter, r *http.Request) {
	all, err := h.gate.AllStatus(r.Context(), "")
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeData(w, all)
}

func (h *handlers) reset(w http.ResponseWriter, r *http.Request) {
	feature, err := h.feature(r)
	if err != nil {
		h.fail(w, r, err)
		return
	}

	if err := h.gate.ResetUsage(r.Context(), feature, ""); err != nil {
		h.fail(w, r, err)
		return
	}
	writeData(w, map[string]any{"feature": feature, "reset": true})
}

func (h *handlers) paddleWebhook(w http.ResponseWriter, r *http.Request) {
	record, err := h.syncer.HandleRequest(r)
	if errors.Is(err, subscription.ErrEventNotApplicable) {
		writeData(w, map[string]any{"ignored": true})
		return
	}
	if err != nil {
		h.log.WarnContext(r.Context(), "paddle webhook rejected", logger.Error(err))
		h.fail(w, r, err)
		return
	}

	// The entitlement answer may be cached; drop it so the new tier applies at once.
	if h.onSynced != nil {
		h.onSynced(record.UserID)
	}
	if h.auditor != nil {
		if err := h.auditor.Log(r.Context(), audit.ActionSubscriptionSynced,
			audit.WithUserID(record.UserID),
			audit.WithResource(record.Provider),
			audit.WithMetadata("tier", string(record.Tier)),
			audit.WithMetadata("status", string(record.Status)),
			audit.WithMetadata("provider_sub_id", record.ProviderSubID),
		); err != nil {
			h.log.WarnContext(r.Context(), "failed to record audit event", logger.Error(err))
		}
	}

	writeData(w, map[string]any{
		"user_id": record.UserID,
		"tier":    record.Tier,
		"status":  record.Status,
	})
}
