// Package service implements the consent registry: granting, revoking, and
// querying consent grants. Persistence sits behind the Store port so memory
// and postgres backends are interchangeable.
package service

import (
	"context"
	"errors"
	"log/slog"
	"sort"

	"podbroker/internal/consent/models"
	"podbroker/internal/platform/metrics"
	"podbroker/pkg/domain"
	dErrors "podbroker/pkg/domain-errors"
	"podbroker/pkg/platform/audit"
	"podbroker/pkg/platform/sentinel"
	"podbroker/pkg/requestcontext"
)

// Store is the persistence port for consent grants. Implementations return
// sentinel.ErrNotFound for missing records; the service translates infra
// sentinels into domain errors.
type Store interface {
	PutGrant(ctx context.Context, grant *models.ConsentGrant) error
	GetGrant(ctx context.Context, id domain.ConsentID) (*models.ConsentGrant, error)
	UpdateGrant(ctx context.Context, grant *models.ConsentGrant) error
	ListGrants(ctx context.Context, userID domain.UserID) ([]*models.ConsentGrant, error)
}

// Tx runs fn atomically with respect to other calls for the same principal.
// Revocation is a read-check-write sequence and must not race with itself.
type Tx interface {
	RunInTx(ctx context.Context, fn func(ctx context.Context) error) error
}

type Service struct {
	store   Store
	tx      Tx
	metrics *metrics.Metrics
	audit   audit.Publisher
	logger  *slog.Logger
}

func New(store Store, tx Tx, m *metrics.Metrics, pub audit.Publisher, logger *slog.Logger) *Service {
	if pub == nil {
		pub = audit.NopPublisher{}
	}
	return &Service{
		store:   store,
		tx:      tx,
		metrics: m,
		audit:   pub,
		logger:  logger,
	}
}

// Grant records a new active consent grant for userID. Overlapping grants for
// the same third party are preserved as independent records; authorization
// takes the union over everything active.
func (s *Service) Grant(ctx context.Context, userID domain.UserID, input models.ConsentRequestInput) (*models.ConsentGrant, error) {
	grant := &models.ConsentGrant{
		ID:           domain.NewConsentID(),
		UserID:       userID,
		ThirdPartyID: input.ThirdPartyID,
		DataTypes:    input.DataTypes,
		Purpose:      input.Purpose,
		GrantedAt:    requestcontext.Now(ctx).UTC(),
		Status:       models.StatusActive,
	}

	if err := s.store.PutGrant(ctx, grant); err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "persist consent grant")
	}

	s.metrics.RecordConsentGranted()
	s.publishAudit(ctx, audit.ActionConsentGranted, grant, "")
	s.logger.InfoContext(ctx, "consent granted",
		"consent_id", grant.ID,
		"user_id", grant.UserID,
		"third_party_id", grant.ThirdPartyID,
	)
	return grant, nil
}

// Revoke marks the grant revoked. It fails with NotFound for an unknown id,
// Forbidden when userID does not own the grant, and Conflict when the grant
// is already revoked — in which case the stored record is left untouched and
// keeps its original revocation timestamp.
func (s *Service) Revoke(ctx context.Context, userID domain.UserID, id domain.ConsentID) (*models.ConsentGrant, error) {
	var revoked *models.ConsentGrant

	err := s.tx.RunInTx(ctx, func(ctx context.Context) error {
		grant, err := s.store.GetGrant(ctx, id)
		if err != nil {
			if errors.Is(err, sentinel.ErrNotFound) {
				return dErrors.New(dErrors.CodeNotFound, "consent grant not found")
			}
			return dErrors.Wrap(err, dErrors.CodeInternal, "load consent grant")
		}
		if grant.UserID != userID {
			return dErrors.New(dErrors.CodeForbidden, "consent grant belongs to another user")
		}
		if grant.Status == models.StatusRevoked {
			return dErrors.New(dErrors.CodeConflict, "consent grant is already revoked")
		}

		revokedAt := requestcontext.Now(ctx).UTC()
		if revokedAt.Before(grant.GrantedAt) {
			revokedAt = grant.GrantedAt
		}
		grant.Status = models.StatusRevoked
		grant.RevokedAt = &revokedAt

		if err := s.store.UpdateGrant(ctx, grant); err != nil {
			return dErrors.Wrap(err, dErrors.CodeInternal, "persist revocation")
		}
		revoked = grant
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.metrics.RecordConsentRevoked()
	s.publishAudit(ctx, audit.ActionConsentRevoked, revoked, "")
	s.logger.InfoContext(ctx, "consent revoked",
		"consent_id", revoked.ID,
		"user_id", revoked.UserID,
	)
	return revoked, nil
}

// History returns every grant the user ever made, active and revoked alike,
// ordered by granted_at ascending with id as a deterministic tie-break.
func (s *Service) History(ctx context.Context, userID domain.UserID) ([]*models.ConsentGrant, error) {
	grants, err := s.store.ListGrants(ctx, userID)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "list consent grants")
	}
	sort.Slice(grants, func(i, j int) bool {
		if grants[i].GrantedAt.Equal(grants[j].GrantedAt) {
			return grants[i].ID < grants[j].ID
		}
		return grants[i].GrantedAt.Before(grants[j].GrantedAt)
	})
	return grants, nil
}

// Status reports whether the user has any active grant toward the third party
// and lists the active grants contributing to that answer.
func (s *Service) Status(ctx context.Context, userID domain.UserID, thirdPartyID domain.ThirdPartyID) (models.ConsentStatus, error) {
	grants, err := s.store.ListGrants(ctx, userID)
	if err != nil {
		return models.ConsentStatus{}, dErrors.Wrap(err, dErrors.CodeInternal, "list consent grants")
	}

	status := models.ConsentStatus{ActiveGrants: []models.ActiveGrantSummary{}}
	for _, g := range grants {
		if !g.IsActive() || g.ThirdPartyID != thirdPartyID {
			continue
		}
		dataTypes := make([]string, len(g.DataTypes))
		for i, dt := range g.DataTypes {
			dataTypes[i] = dt.String()
		}
		status.ActiveGrants = append(status.ActiveGrants, models.ActiveGrantSummary{
			ID:        g.ID.String(),
			DataTypes: dataTypes,
			Purpose:   g.Purpose,
			GrantedAt: g.GrantedAt,
		})
	}
	sort.Slice(status.ActiveGrants, func(i, j int) bool {
		if status.ActiveGrants[i].GrantedAt.Equal(status.ActiveGrants[j].GrantedAt) {
			return status.ActiveGrants[i].ID < status.ActiveGrants[j].ID
		}
		return status.ActiveGrants[i].GrantedAt.Before(status.ActiveGrants[j].GrantedAt)
	})
	status.HasConsent = len(status.ActiveGrants) > 0
	return status, nil
}

// ActiveGrantsFor returns the active grants from userID toward thirdPartyID.
// The authorizer builds its union of permitted data types from this.
func (s *Service) ActiveGrantsFor(ctx context.Context, userID domain.UserID, thirdPartyID domain.ThirdPartyID) ([]*models.ConsentGrant, error) {
	grants, err := s.store.ListGrants(ctx, userID)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "list consent grants")
	}
	active := grants[:0:0]
	for _, g := range grants {
		if g.IsActive() && g.ThirdPartyID == thirdPartyID {
			active = append(active, g)
		}
	}
	return active, nil
}

func (s *Service) publishAudit(ctx context.Context, action audit.Action, grant *models.ConsentGrant, reason string) {
	dataTypes := make([]string, len(grant.DataTypes))
	for i, dt := range grant.DataTypes {
		dataTypes[i] = dt.String()
	}
	event := audit.Event{
		Category:   audit.CategoryCompliance,
		Action:     action,
		Timestamp:  requestcontext.Now(ctx).UTC(),
		UserID:     grant.UserID.String(),
		ThirdParty: grant.ThirdPartyID.String(),
		ConsentID:  grant.ID.String(),
		DataTypes:  dataTypes,
		Purpose:    grant.Purpose,
		Reason:     reason,
		RequestID:  requestcontext.RequestID(ctx),
		ClientIP:   requestcontext.ClientIP(ctx),
		Device:     requestcontext.Device(ctx),
	}
	if err := s.audit.Publish(ctx, event); err != nil {
		s.logger.WarnContext(ctx, "audit publish failed", "action", action, "error", err)
	}
}
