// Package service implements the data access façade: self reads, consent-gated
// third-party reads, owner updates, and pending access requests.
package service

import (
	"context"
	"errors"
	"log/slog"

	"podbroker/internal/data/models"
	"podbroker/internal/platform/metrics"
	"podbroker/pkg/domain"
	dErrors "podbroker/pkg/domain-errors"
	"podbroker/pkg/platform/audit"
	"podbroker/pkg/platform/sentinel"
	"podbroker/pkg/requestcontext"
)

// Store is the persistence port for POD data and access requests.
type Store interface {
	GetData(ctx context.Context, ownerID domain.UserID, dataType domain.DataType) (models.FieldValue, error)
	GetAllData(ctx context.Context, ownerID domain.UserID) (models.Payload, error)
	UpdateData(ctx context.Context, ownerID domain.UserID, payload models.Payload) error
	PutDataRequest(ctx context.Context, request *models.AccessRequest) error
}

// Authorizer decides whether a requester may read a data category.
type Authorizer interface {
	Authorize(ctx context.Context, owner domain.UserID, requester domain.UserID, dataType domain.DataType) (bool, error)
}

type Service struct {
	store   Store
	authz   Authorizer
	metrics *metrics.Metrics
	audit   audit.Publisher
	logger  *slog.Logger
}

func New(store Store, authz Authorizer, m *metrics.Metrics, pub audit.Publisher, logger *slog.Logger) *Service {
	if pub == nil {
		pub = audit.NopPublisher{}
	}
	return &Service{
		store:   store,
		authz:   authz,
		metrics: m,
		audit:   pub,
		logger:  logger,
	}
}

// Read returns data belonging to ownerID. Owners read their own data without
// any gate: the whole record when dataType is empty, one field otherwise.
// Third parties must name a data type explicitly and pass authorization for
// exactly that category; a denial is audited.
func (s *Service) Read(ctx context.Context, requesterID, ownerID domain.UserID, dataType domain.DataType) (models.Payload, error) {
	if requesterID == ownerID {
		s.metrics.RecordDataRead("self")
		if dataType == "" {
			return s.readAll(ctx, ownerID)
		}
		return s.readOne(ctx, ownerID, dataType)
	}

	if dataType == "" {
		return nil, dErrors.New(dErrors.CodeValidation, "type query parameter is required for third-party reads")
	}

	allowed, err := s.authz.Authorize(ctx, ownerID, requesterID, dataType)
	if err != nil {
		return nil, err
	}
	if !allowed {
		s.auditDenied(ctx, requesterID, ownerID, dataType)
		return nil, dErrors.New(dErrors.CodeMissingConsent, "no active consent covers this data type")
	}

	s.metrics.RecordDataRead("granted")
	return s.readOne(ctx, ownerID, dataType)
}

// Update replaces the listed fields of the owner's record. Validation is
// all-or-nothing: nothing is written when any field is invalid. There is no
// third-party write path.
func (s *Service) Update(ctx context.Context, ownerID domain.UserID, payload models.Payload) (int, error) {
	if err := models.ValidatePayload(payload); err != nil {
		s.metrics.RecordValidationFailure()
		return 0, err
	}
	if err := s.store.UpdateData(ctx, ownerID, payload); err != nil {
		return 0, dErrors.Wrap(err, dErrors.CodeInternal, "persist data update")
	}
	s.logger.InfoContext(ctx, "data updated",
		"user_id", ownerID,
		"fields", len(payload),
	)
	return len(payload), nil
}

// RequestAccess records a pending ask for future access to the owner's data.
// It grants nothing; approval happens through the normal consent grant path.
// A requester asking for access to their own data is rejected as meaningless.
func (s *Service) RequestAccess(ctx context.Context, requesterID domain.UserID, input models.AccessRequestInput) (*models.AccessRequest, error) {
	if requesterID == input.OwnerID {
		return nil, dErrors.New(dErrors.CodeValidation, "cannot request access to your own data")
	}

	request := &models.AccessRequest{
		ID:          domain.NewRequestID(),
		RequesterID: requesterID,
		OwnerID:     input.OwnerID,
		DataTypes:   input.DataTypes,
		Purpose:     input.Purpose,
		Status:      models.StatusPending,
		CreatedAt:   requestcontext.Now(ctx).UTC(),
	}
	if err := s.store.PutDataRequest(ctx, request); err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "persist access request")
	}

	s.publishAudit(ctx, audit.Event{
		Category:   audit.CategoryCompliance,
		Action:     audit.ActionAccessRequestCreated,
		Timestamp:  request.CreatedAt,
		UserID:     request.OwnerID.String(),
		ThirdParty: request.RequesterID.String(),
		DataTypes:  dataTypeStrings(request.DataTypes),
		Purpose:    request.Purpose,
	})
	s.logger.InfoContext(ctx, "access request created",
		"request_id", request.ID,
		"requester_id", request.RequesterID,
		"user_id", request.OwnerID,
	)
	return request, nil
}

func (s *Service) readAll(ctx context.Context, ownerID domain.UserID) (models.Payload, error) {
	payload, err := s.store.GetAllData(ctx, ownerID)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return models.Payload{}, nil
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "load data")
	}
	return payload, nil
}

func (s *Service) readOne(ctx context.Context, ownerID domain.UserID, dataType domain.DataType) (models.Payload, error) {
	value, err := s.store.GetData(ctx, ownerID, dataType)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return models.Payload{}, nil
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "load data")
	}
	return models.Payload{dataType.String(): value}, nil
}

func (s *Service) auditDenied(ctx context.Context, requesterID, ownerID domain.UserID, dataType domain.DataType) {
	s.publishAudit(ctx, audit.Event{
		Category:   audit.CategoryCompliance,
		Action:     audit.ActionDataAccessDenied,
		Timestamp:  requestcontext.Now(ctx).UTC(),
		UserID:     ownerID.String(),
		ThirdParty: requesterID.String(),
		DataTypes:  []string{dataType.String()},
		Decision:   "deny",
		Reason:     "no active consent covers the requested data type",
	})
}

func (s *Service) publishAudit(ctx context.Context, event audit.Event) {
	event.RequestID = requestcontext.RequestID(ctx)
	event.ClientIP = requestcontext.ClientIP(ctx)
	event.Device = requestcontext.Device(ctx)
	if err := s.audit.Publish(ctx, event); err != nil {
		s.logger.WarnContext(ctx, "audit publish failed", "action", event.Action, "error", err)
	}
}

func dataTypeStrings(dataTypes []domain.DataType) []string {
	out := make([]string, len(dataTypes))
	for i, dt := range dataTypes {
		out[i] = dt.String()
	}
	return out
}
