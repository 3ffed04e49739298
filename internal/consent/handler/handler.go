// Package handler exposes the consent registry over HTTP.
package handler

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	consentModel "podbroker/internal/consent/models"
	"podbroker/internal/platform/metrics"
	"podbroker/pkg/domain"
	dErrors "podbroker/pkg/domain-errors"
	"podbroker/pkg/platform/httputil"
	"podbroker/pkg/requestcontext"
)

// Service defines the consent operations the handler depends on.
type Service interface {
	Grant(ctx context.Context, userID domain.UserID, input consentModel.ConsentRequestInput) (*consentModel.ConsentGrant, error)
	Revoke(ctx context.Context, userID domain.UserID, id domain.ConsentID) (*consentModel.ConsentGrant, error)
	History(ctx context.Context, userID domain.UserID) ([]*consentModel.ConsentGrant, error)
	Status(ctx context.Context, userID domain.UserID, thirdPartyID domain.ThirdPartyID) (consentModel.ConsentStatus, error)
}

type Handler struct {
	consent Service
	logger  *slog.Logger
	metrics *metrics.Metrics
}

func New(consent Service, logger *slog.Logger, m *metrics.Metrics) *Handler {
	return &Handler{
		consent: consent,
		logger:  logger,
		metrics: m,
	}
}

// Register attaches the consent routes. Auth and the rest of the middleware
// chain are applied by the caller; routes here assume a principal in context.
func (h *Handler) Register(r chi.Router) {
	r.Post("/grant", h.handleGrant)
	r.Post("/revoke", h.handleRevoke)
	r.Get("/history", h.handleHistory)
	r.Get("/status", h.handleStatus)
}

func (h *Handler) handleGrant(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	userID, ok := h.principal(w, r)
	if !ok {
		return
	}

	var req consentModel.GrantConsentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httputil.WriteError(w, dErrors.New(dErrors.CodeInvalidInput, "invalid request body"))
		return
	}

	input, err := consentModel.ParseConsentRequestInput(req.ThirdPartyID, req.DataTypes, req.Purpose)
	if err != nil {
		h.metrics.RecordValidationFailure()
		h.logger.WarnContext(ctx, "invalid grant request",
			"request_id", requestcontext.RequestID(ctx),
			"error", err.Error(),
		)
		httputil.WriteError(w, err)
		return
	}

	grant, err := h.consent.Grant(ctx, userID, input)
	if err != nil {
		h.logger.ErrorContext(ctx, "grant consent failed",
			"request_id", requestcontext.RequestID(ctx),
			"error", err.Error(),
		)
		httputil.WriteError(w, err)
		return
	}

	httputil.WriteJSON(w, http.StatusCreated, consentModel.Summarize(grant))
}

func (h *Handler) handleRevoke(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	userID, ok := h.principal(w, r)
	if !ok {
		return
	}

	var req consentModel.RevokeConsentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httputil.WriteError(w, dErrors.New(dErrors.CodeInvalidInput, "invalid request body"))
		return
	}

	consentID, err := domain.ParseConsentID(req.ConsentID)
	if err != nil {
		h.metrics.RecordValidationFailure()
		httputil.WriteError(w, err)
		return
	}

	grant, err := h.consent.Revoke(ctx, userID, consentID)
	if err != nil {
		h.logger.WarnContext(ctx, "revoke consent failed",
			"request_id", requestcontext.RequestID(ctx),
			"consent_id", consentID,
			"error", err.Error(),
		)
		httputil.WriteError(w, err)
		return
	}

	httputil.WriteJSON(w, http.StatusOK, consentModel.Summarize(grant))
}

func (h *Handler) handleHistory(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	userID, ok := h.principal(w, r)
	if !ok {
		return
	}

	grants, err := h.consent.History(ctx, userID)
	if err != nil {
		h.logger.ErrorContext(ctx, "list consent history failed",
			"request_id", requestcontext.RequestID(ctx),
			"error", err.Error(),
		)
		httputil.WriteError(w, err)
		return
	}

	history := make([]consentModel.GrantSummary, 0, len(grants))
	for _, g := range grants {
		history = append(history, consentModel.Summarize(g))
	}
	httputil.WriteJSON(w, http.StatusOK, map[string]any{"history": history})
}

func (h *Handler) handleStatus(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	userID, ok := h.principal(w, r)
	if !ok {
		return
	}

	thirdPartyID, err := domain.ParseThirdPartyID(r.URL.Query().Get("third_party_id"))
	if err != nil {
		h.metrics.RecordValidationFailure()
		httputil.WriteError(w, err)
		return
	}

	status, err := h.consent.Status(ctx, userID, thirdPartyID)
	if err != nil {
		h.logger.ErrorContext(ctx, "consent status failed",
			"request_id", requestcontext.RequestID(ctx),
			"error", err.Error(),
		)
		httputil.WriteError(w, err)
		return
	}

	httputil.WriteJSON(w, http.StatusOK, status)
}

// principal pulls the authenticated user out of the request context. A miss
// means the auth middleware is not wired in front of this handler.
func (h *Handler) principal(w http.ResponseWriter, r *http.Request) (domain.UserID, bool) {
	ctx := r.Context()
	userID, err := domain.ParseUserID(requestcontext.Principal(ctx))
	if err != nil {
		h.logger.ErrorContext(ctx, "principal missing from context despite auth middleware",
			"request_id", requestcontext.RequestID(ctx),
		)
		httputil.WriteError(w, dErrors.New(dErrors.CodeInternal, "authentication context error"))
		return "", false
	}
	return userID, true
}
