// Package handler exposes the data access façade over HTTP.
package handler

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	dataModel "podbroker/internal/data/models"
	"podbroker/internal/platform/metrics"
	"podbroker/pkg/domain"
	dErrors "podbroker/pkg/domain-errors"
	"podbroker/pkg/platform/httputil"
	"podbroker/pkg/requestcontext"
)

// Service defines the data operations the handler depends on.
type Service interface {
	Read(ctx context.Context, requesterID, ownerID domain.UserID, dataType domain.DataType) (dataModel.Payload, error)
	Update(ctx context.Context, ownerID domain.UserID, payload dataModel.Payload) (int, error)
	RequestAccess(ctx context.Context, requesterID domain.UserID, input dataModel.AccessRequestInput) (*dataModel.AccessRequest, error)
}

type Handler struct {
	data    Service
	logger  *slog.Logger
	metrics *metrics.Metrics
}

func New(data Service, logger *slog.Logger, m *metrics.Metrics) *Handler {
	return &Handler{
		data:    data,
		logger:  logger,
		metrics: m,
	}
}

// Register attaches the data routes. The literal routes must come before the
// /{user_id} wildcard so "update" and "request" are not read as user ids.
func (h *Handler) Register(r chi.Router) {
	r.Get("/", h.handleReadOwn)
	r.Post("/update", h.handleUpdate)
	r.Post("/request", h.handleRequestAccess)
	r.Get("/{user_id}", h.handleReadOther)
}

func (h *Handler) handleReadOwn(w http.ResponseWriter, r *http.Request) {
	requester, ok := h.principal(w, r)
	if !ok {
		return
	}
	h.read(w, r, requester, requester)
}

func (h *Handler) handleReadOther(w http.ResponseWriter, r *http.Request) {
	requester, ok := h.principal(w, r)
	if !ok {
		return
	}

	owner, err := domain.ParseUserID(chi.URLParam(r, "user_id"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	h.read(w, r, requester, owner)
}

func (h *Handler) read(w http.ResponseWriter, r *http.Request, requester, owner domain.UserID) {
	ctx := r.Context()

	var dataType domain.DataType
	if raw := r.URL.Query().Get("type"); raw != "" {
		parsed, err := domain.ParseDataType(raw)
		if err != nil {
			httputil.WriteError(w, err)
			return
		}
		dataType = parsed
	}

	payload, err := h.data.Read(ctx, requester, owner, dataType)
	if err != nil {
		h.logger.WarnContext(ctx, "data read failed",
			"request_id", requestcontext.RequestID(ctx),
			"owner", owner,
			"error", err.Error(),
		)
		httputil.WriteError(w, err)
		return
	}

	httputil.WriteJSON(w, http.StatusOK, map[string]any{
		"user_id": owner.String(),
		"data":    payload,
	})
}

func (h *Handler) handleUpdate(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	owner, ok := h.principal(w, r)
	if !ok {
		return
	}

	var req dataModel.UpdateDataRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httputil.WriteError(w, dErrors.New(dErrors.CodeInvalidInput, "invalid request body"))
		return
	}

	updated, err := h.data.Update(ctx, owner, req.Data)
	if err != nil {
		h.logger.WarnContext(ctx, "data update failed",
			"request_id", requestcontext.RequestID(ctx),
			"error", err.Error(),
		)
		httputil.WriteError(w, err)
		return
	}

	httputil.WriteJSON(w, http.StatusOK, map[string]any{"updated_fields": updated})
}

func (h *Handler) handleRequestAccess(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requester, ok := h.principal(w, r)
	if !ok {
		return
	}

	var req dataModel.RequestAccessRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httputil.WriteError(w, dErrors.New(dErrors.CodeInvalidInput, "invalid request body"))
		return
	}

	input, err := dataModel.ParseAccessRequestInput(req.UserID, req.DataTypes, req.Purpose)
	if err != nil {
		h.metrics.RecordValidationFailure()
		httputil.WriteError(w, err)
		return
	}

	request, err := h.data.RequestAccess(ctx, requester, input)
	if err != nil {
		h.logger.WarnContext(ctx, "access request failed",
			"request_id", requestcontext.RequestID(ctx),
			"error", err.Error(),
		)
		httputil.WriteError(w, err)
		return
	}

	httputil.WriteJSON(w, http.StatusCreated, dataModel.SummarizeRequest(request))
}

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
