package memory

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"podbroker/internal/data/models"
	"podbroker/pkg/domain"
	"podbroker/pkg/platform/sentinel"
)

func TestStore_Data(t *testing.T) {
	ctx := context.Background()
	store := New()

	payload := models.Payload{
		"email": {Type: "string", Value: json.RawMessage(`"alice@example.com"`)},
		"age":   {Type: "number", Value: json.RawMessage(`30`)},
	}
	require.NoError(t, store.UpdateData(ctx, "alice", payload))

	t.Run("get single field", func(t *testing.T) {
		value, err := store.GetData(ctx, "alice", "email")
		require.NoError(t, err)
		assert.Equal(t, "string", value.Type)
	})

	t.Run("missing field is not found", func(t *testing.T) {
		_, err := store.GetData(ctx, "alice", "phone")
		assert.ErrorIs(t, err, sentinel.ErrNotFound)
	})

	t.Run("get all fields", func(t *testing.T) {
		record, err := store.GetAllData(ctx, "alice")
		require.NoError(t, err)
		assert.Len(t, record, 2)
	})

	t.Run("unknown user reads empty", func(t *testing.T) {
		record, err := store.GetAllData(ctx, "nobody")
		require.NoError(t, err)
		assert.Empty(t, record)
	})

	t.Run("update merges into existing record", func(t *testing.T) {
		require.NoError(t, store.UpdateData(ctx, "alice", models.Payload{
			"email": {Type: "string", Value: json.RawMessage(`"new@example.com"`)},
		}))
		value, err := store.GetData(ctx, "alice", "email")
		require.NoError(t, err)
		assert.JSONEq(t, `"new@example.com"`, string(value.Value))

		// Other fields survive a partial update.
		_, err = store.GetData(ctx, "alice", "age")
		assert.NoError(t, err)
	})
}

func TestStore_AccessRequests(t *testing.T) {
	ctx := context.Background()
	store := New()

	request := &models.AccessRequest{
		ID:          domain.NewRequestID(),
		RequesterID: "acme",
		OwnerID:     "alice",
		DataTypes:   []domain.DataType{"email"},
		Purpose:     "marketing",
		Status:      models.StatusPending,
		CreatedAt:   time.Date(2026, 8, 1, 10, 0, 0, 0, time.UTC),
	}
	require.NoError(t, store.PutDataRequest(ctx, request))

	t.Run("duplicate id conflicts", func(t *testing.T) {
		assert.ErrorIs(t, store.PutDataRequest(ctx, request), sentinel.ErrConflict)
	})

	t.Run("list by owner", func(t *testing.T) {
		requests, err := store.ListDataRequests(ctx, "alice")
		require.NoError(t, err)
		require.Len(t, requests, 1)
		assert.Equal(t, request.ID, requests[0].ID)

		requests, err = store.ListDataRequests(ctx, "bob")
		require.NoError(t, err)
		assert.Empty(t, requests)
	})
}
