// Package authz answers one question: may this requester read this data
// category of this owner right now? Decisions are computed live from the
// consent registry on every call, so a revocation takes effect on the next
// request with no caching window.
package authz

import (
	"context"
	"log/slog"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"podbroker/internal/consent/models"
	"podbroker/internal/platform/metrics"
	"podbroker/pkg/domain"
	dErrors "podbroker/pkg/domain-errors"
)

// GrantSource supplies the active grants from an owner toward a requester.
// The consent service satisfies this directly.
type GrantSource interface {
	ActiveGrantsFor(ctx context.Context, userID domain.UserID, thirdPartyID domain.ThirdPartyID) ([]*models.ConsentGrant, error)
}

type Authorizer struct {
	grants  GrantSource
	metrics *metrics.Metrics
	tracer  trace.Tracer
	logger  *slog.Logger
}

func New(grants GrantSource, m *metrics.Metrics, logger *slog.Logger) *Authorizer {
	return &Authorizer{
		grants:  grants,
		metrics: m,
		tracer:  otel.Tracer("podbroker/authz"),
		logger:  logger,
	}
}

// Authorize reports whether requester may read dataType belonging to owner.
// Owners always pass for their own data. Third parties pass when any active
// grant from the owner toward them covers the category; the permitted set is
// the union over all active grants, so overlapping grants widen rather than
// shadow each other.
func (a *Authorizer) Authorize(ctx context.Context, owner domain.UserID, requester domain.UserID, dataType domain.DataType) (bool, error) {
	ctx, span := a.tracer.Start(ctx, "authz.Authorize", trace.WithAttributes(
		attribute.String("owner", owner.String()),
		attribute.String("requester", requester.String()),
		attribute.String("data_type", dataType.String()),
	))
	defer span.End()

	if requester == owner {
		span.SetAttributes(attribute.Bool("decision.allowed", true), attribute.String("decision.basis", "self"))
		a.metrics.RecordAuthorizeDecision(true)
		return true, nil
	}

	grants, err := a.grants.ActiveGrantsFor(ctx, owner, domain.ThirdPartyID(requester))
	if err != nil {
		return false, dErrors.Wrap(err, dErrors.CodeInternal, "load active grants")
	}

	allowed := false
	for _, g := range grants {
		if g.Covers(dataType) {
			allowed = true
			break
		}
	}

	span.SetAttributes(attribute.Bool("decision.allowed", allowed), attribute.String("decision.basis", "consent"))
	a.metrics.RecordAuthorizeDecision(allowed)
	if !allowed {
		a.logger.InfoContext(ctx, "access denied",
			"owner", owner,
			"requester", requester,
			"data_type", dataType,
		)
	}
	return allowed, nil
}

// PermittedTypes returns the union of data categories the requester may read
// from the owner. Used for reporting, never as a cached decision source.
func (a *Authorizer) PermittedTypes(ctx context.Context, owner domain.UserID, requester domain.ThirdPartyID) ([]domain.DataType, error) {
	grants, err := a.grants.ActiveGrantsFor(ctx, owner, requester)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "load active grants")
	}
	seen := make(map[domain.DataType]struct{})
	var out []domain.DataType
	for _, g := range grants {
		for _, dt := range g.DataTypes {
			if _, ok := seen[dt]; ok {
				continue
			}
			seen[dt] = struct{}{}
			out = append(out, dt)
		}
	}
	return out, nil
}
