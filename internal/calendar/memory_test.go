package calendar

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemorySourceLifecycle(t *testing.T) {
	ctx := context.Background()
	src := NewMemorySource()
	start := time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)

	src.Seed("cal", BusyEvent{ID: "other", Start: start.Add(-48 * time.Hour), End: start.Add(-46 * time.Hour)})

	created, err := src.InsertEvent(ctx, "cal", EventPayload{Summary: "dinner", Start: start, End: start.Add(2 * time.Hour)})
	require.NoError(t, err)
	require.NotEmpty(t, created.ID)

	events, err := src.ListEvents(ctx, "cal", start.Add(-time.Hour), start.Add(time.Hour))
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, "dinner", events[0].Summary)

	moved, err := src.UpdateEvent(ctx, "cal", created.ID, EventPayload{Summary: "dinner", Start: start.Add(time.Hour), End: start.Add(3 * time.Hour)})
	require.NoError(t, err)
	assert.Equal(t, created.ID, moved.ID)

	require.NoError(t, src.DeleteEvent(ctx, "cal", created.ID))
	assert.True(t, errors.Is(src.DeleteEvent(ctx, "cal", created.ID), ErrNotFound))
	assert.Equal(t, 1, src.Len("cal"))
}

func TestMemorySourceRejectsCancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := NewMemorySource().ListEvents(ctx, "cal", time.Now(), time.Now().Add(time.Hour))
	assert.True(t, errors.Is(err, ErrServiceUnavailable))
}
