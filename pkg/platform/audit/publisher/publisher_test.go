package publisher

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	id "dynforms/pkg/domain"
	audit "dynforms/pkg/platform/audit"
	"dynforms/pkg/platform/audit/store/memory"
	"dynforms/pkg/requestcontext"
)

func TestPublisher_Emit(t *testing.T) {
	store := memory.NewInMemoryStore()
	fixed := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	pub := NewPublisher(store, WithClock(func() time.Time { return fixed }))

	userID := id.UserID(uuid.New())
	require.NoError(t, pub.Emit(context.Background(), audit.Event{
		UserID: userID,
		Action: string(audit.EventFormDeleted),
	}))

	events, err := pub.List(context.Background(), userID)
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, fixed, events[0].Timestamp)
	assert.Equal(t, audit.CategoryCompliance, events[0].Category)
}

func TestPublisher_KeepsExplicitFields(t *testing.T) {
	store := memory.NewInMemoryStore()
	pub := NewPublisher(store)

	ts := time.Date(2025, 5, 5, 0, 0, 0, 0, time.UTC)
	require.NoError(t, pub.Emit(context.Background(), audit.Event{
		Timestamp: ts,
		Category:  audit.CategorySecurity,
		Action:    string(audit.EventTemplateCreated),
	}))

	events, err := store.ListAll(context.Background())
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, ts, events[0].Timestamp)
	assert.Equal(t, audit.CategorySecurity, events[0].Category)
}

func TestPublisher_FillsRequestMetadata(t *testing.T) {
	store := memory.NewInMemoryStore()
	pub := NewPublisher(store)
	ctx := requestcontext.WithRequestID(context.Background(), "req-1")
	ctx = requestcontext.WithClientMetadata(ctx, "203.0.113.7", "curl/8.5.0")

	require.NoError(t, pub.Emit(ctx, audit.Event{Action: string(audit.EventLoginFailed)}))
	require.NoError(t, pub.Emit(ctx, audit.Event{Action: string(audit.EventLoginFailed), RequestID: "explicit"}))

	events, err := store.ListAll(ctx)
	require.NoError(t, err)
	require.Len(t, events, 2)
	assert.Equal(t, "req-1", events[0].RequestID)
	assert.Equal(t, "203.0.113.7", events[0].ClientIP)
	assert.Equal(t, audit.CategorySecurity, events[0].Category)
	assert.Equal(t, "explicit", events[1].RequestID)
}

func TestCategoryDefaultsToOperations(t *testing.T) {
	assert.Equal(t, audit.CategoryOperations, audit.AuditEvent("unknown").Category())
	assert.Equal(t, audit.CategoryOperations, audit.EventVersionPublished.Category())
	assert.Equal(t, audit.CategoryCompliance, audit.EventFileReleased.Category())
}

func TestInMemoryStore_SnapshotDiscardsLaterEvents(t *testing.T) {
	store := memory.NewInMemoryStore()
	ctx := context.Background()
	require.NoError(t, store.Append(ctx, audit.Event{Action: "kept"}))

	restore := store.Snapshot()
	require.NoError(t, store.Append(ctx, audit.Event{Action: "dropped"}))
	restore()

	events, err := store.ListAll(ctx)
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, "kept", events[0].Action)
}
