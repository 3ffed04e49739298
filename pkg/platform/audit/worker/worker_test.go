package worker

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	audit "podbroker/pkg/platform/audit"
	"podbroker/pkg/platform/audit/store/memory"
)

func TestWorkerPersistsPublishedEvents(t *testing.T) {
	store := memory.NewInMemoryStore()
	inbox := make(chan audit.Event, 4)
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- New(store, inbox, logger).Run(ctx) }()

	pub := audit.NewChannelPublisher(inbox)
	require.NoError(t, pub.Publish(ctx, audit.Event{
		Category: audit.CategoryCompliance,
		Action:   audit.ActionConsentGranted,
		UserID:   "alice",
	}))

	// The worker drains asynchronously; poll briefly.
	deadline := time.After(2 * time.Second)
	for {
		events, err := store.ListByUser(ctx, "alice")
		require.NoError(t, err)
		if len(events) == 1 {
			assert.Equal(t, audit.ActionConsentGranted, events[0].Action)
			break
		}
		select {
		case <-deadline:
			t.Fatal("event was never persisted")
		case <-time.After(10 * time.Millisecond):
		}
	}

	cancel()
	assert.ErrorIs(t, <-done, context.Canceled)
}

func TestChannelPublisherRespectsContext(t *testing.T) {
	inbox := make(chan audit.Event) // unbuffered, nobody reading
	pub := audit.NewChannelPublisher(inbox)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := pub.Publish(ctx, audit.Event{Action: audit.ActionConsentGranted})
	assert.ErrorIs(t, err, context.Canceled)
}
