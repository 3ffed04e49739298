package service

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"podbroker/internal/data/models"
	"podbroker/internal/data/store/memory"
	"podbroker/pkg/domain"
	dErrors "podbroker/pkg/domain-errors"
	"podbroker/pkg/platform/audit"
	"podbroker/pkg/requestcontext"
)

type stubAuthorizer struct {
	allowed map[domain.DataType]bool
	err     error
}

func (a *stubAuthorizer) Authorize(_ context.Context, _ domain.UserID, _ domain.UserID, dataType domain.DataType) (bool, error) {
	if a.err != nil {
		return false, a.err
	}
	return a.allowed[dataType], nil
}

type capturingPublisher struct {
	events []audit.Event
}

func (p *capturingPublisher) Publish(_ context.Context, event audit.Event) error {
	p.events = append(p.events, event)
	return nil
}

type fixture struct {
	svc   *Service
	store *memory.Store
	authz *stubAuthorizer
	audit *capturingPublisher
}

func newFixture() fixture {
	store := memory.New()
	authz := &stubAuthorizer{allowed: map[domain.DataType]bool{}}
	pub := &capturingPublisher{}
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return fixture{
		svc:   New(store, authz, nil, pub, logger),
		store: store,
		authz: authz,
		audit: pub,
	}
}

func seedData(t *testing.T, f fixture, owner domain.UserID) {
	t.Helper()
	payload := models.Payload{
		"email":   {Type: "string", Value: json.RawMessage(`"alice@example.com"`)},
		"address": {Type: "object", Value: json.RawMessage(`{"city":"Oslo"}`)},
	}
	require.NoError(t, f.store.UpdateData(context.Background(), owner, payload))
}

func TestService_Read_Self(t *testing.T) {
	ctx := context.Background()

	t.Run("whole record without a type filter", func(t *testing.T) {
		f := newFixture()
		seedData(t, f, "alice")

		payload, err := f.svc.Read(ctx, "alice", "alice", "")
		require.NoError(t, err)
		assert.Len(t, payload, 2)
	})

	t.Run("single field with a type filter", func(t *testing.T) {
		f := newFixture()
		seedData(t, f, "alice")

		payload, err := f.svc.Read(ctx, "alice", "alice", "email")
		require.NoError(t, err)
		require.Contains(t, payload, "email")
		assert.Equal(t, "string", payload["email"].Type)
	})

	t.Run("missing field reads empty, never errors", func(t *testing.T) {
		f := newFixture()
		payload, err := f.svc.Read(ctx, "alice", "alice", "email")
		require.NoError(t, err)
		assert.Empty(t, payload)
	})

	t.Run("self access skips the authorizer entirely", func(t *testing.T) {
		f := newFixture()
		f.authz.err = assert.AnError
		seedData(t, f, "alice")

		_, err := f.svc.Read(ctx, "alice", "alice", "email")
		assert.NoError(t, err)
	})
}

func TestService_Read_ThirdParty(t *testing.T) {
	ctx := context.Background()

	t.Run("allowed read returns the field", func(t *testing.T) {
		f := newFixture()
		seedData(t, f, "alice")
		f.authz.allowed["email"] = true

		payload, err := f.svc.Read(ctx, "acme", "alice", "email")
		require.NoError(t, err)
		require.Contains(t, payload, "email")
	})

	t.Run("denied read is forbidden and audited", func(t *testing.T) {
		f := newFixture()
		seedData(t, f, "alice")

		_, err := f.svc.Read(ctx, "acme", "alice", "email")
		require.Error(t, err)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeMissingConsent))

		require.Len(t, f.audit.events, 1)
		assert.Equal(t, audit.ActionDataAccessDenied, f.audit.events[0].Action)
		assert.Equal(t, "alice", f.audit.events[0].UserID)
		assert.Equal(t, "acme", f.audit.events[0].ThirdParty)
	})

	t.Run("third-party read requires an explicit type", func(t *testing.T) {
		f := newFixture()
		_, err := f.svc.Read(ctx, "acme", "alice", "")
		require.Error(t, err)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeValidation))
	})

	t.Run("authorizer failure propagates", func(t *testing.T) {
		f := newFixture()
		f.authz.err = assert.AnError
		_, err := f.svc.Read(ctx, "acme", "alice", "email")
		assert.Error(t, err)
	})
}

func TestService_Update(t *testing.T) {
	ctx := context.Background()

	t.Run("valid payload updates exactly the listed fields", func(t *testing.T) {
		f := newFixture()
		seedData(t, f, "alice")

		count, err := f.svc.Update(ctx, "alice", models.Payload{
			"email": {Type: "string", Value: json.RawMessage(`"new@example.com"`)},
		})
		require.NoError(t, err)
		assert.Equal(t, 1, count)

		payload, err := f.svc.Read(ctx, "alice", "alice", "")
		require.NoError(t, err)
		assert.JSONEq(t, `"new@example.com"`, string(payload["email"].Value))
		assert.Contains(t, payload, "address", "untouched fields survive")
	})

	t.Run("invalid payload writes nothing", func(t *testing.T) {
		f := newFixture()
		seedData(t, f, "alice")

		_, err := f.svc.Update(ctx, "alice", models.Payload{
			"email": {Type: "string", Value: json.RawMessage(`"new@example.com"`)},
			"age":   {Type: "integer", Value: json.RawMessage(`42`)},
		})
		require.Error(t, err)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeValidation))

		payload, err := f.svc.Read(ctx, "alice", "alice", "email")
		require.NoError(t, err)
		assert.JSONEq(t, `"alice@example.com"`, string(payload["email"].Value))
	})
}

func TestService_RequestAccess(t *testing.T) {
	createdAt := time.Date(2026, 8, 1, 10, 0, 0, 0, time.UTC)
	ctx := requestcontext.WithTime(context.Background(), createdAt)

	mustInput := func(t *testing.T, owner string) models.AccessRequestInput {
		t.Helper()
		input, err := models.ParseAccessRequestInput(owner, []string{"email"}, "marketing")
		require.NoError(t, err)
		return input
	}

	t.Run("creates a pending request", func(t *testing.T) {
		f := newFixture()
		request, err := f.svc.RequestAccess(ctx, "acme", mustInput(t, "alice"))
		require.NoError(t, err)

		assert.NotEmpty(t, request.ID)
		assert.Equal(t, models.StatusPending, request.Status)
		assert.Equal(t, createdAt, request.CreatedAt)

		require.Len(t, f.audit.events, 1)
		assert.Equal(t, audit.ActionAccessRequestCreated, f.audit.events[0].Action)
	})

	t.Run("requesting access to own data is rejected", func(t *testing.T) {
		f := newFixture()
		_, err := f.svc.RequestAccess(ctx, "alice", mustInput(t, "alice"))
		require.Error(t, err)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeValidation))
	})

	t.Run("creating a request grants nothing", func(t *testing.T) {
		f := newFixture()
		seedData(t, f, "alice")
		_, err := f.svc.RequestAccess(ctx, "acme", mustInput(t, "alice"))
		require.NoError(t, err)

		_, err = f.svc.Read(ctx, "acme", "alice", "email")
		require.Error(t, err)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeMissingConsent))
	})
}
