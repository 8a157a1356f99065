package query

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/example/booklog-timeline/internal/infrastructure/store/mocks"
	"github.com/example/booklog-timeline/internal/platform/logger"
	"github.com/example/booklog-timeline/internal/readmodel"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestQueryHandler() (*Handler, *mocks.MockTimelineStore) {
	timeline := mocks.NewMockTimelineStore()
	return NewHandler(timeline, logger.NewNop()), timeline
}

func seed(t *testing.T, timeline *mocks.MockTimelineStore, id int64, owner *int64, at time.Time) {
	t.Helper()
	_, err := timeline.Insert(context.Background(), readmodel.NewTimelineEvent{
		UserID:     owner,
		EntityType: readmodel.EntityReading,
		EntityID:   id,
		Action:     readmodel.ActionStarted,
		OccurredAt: at,
		Title:      "Dune",
	})
	require.NoError(t, err)
}

// ============================================
// Timeline Query Tests
// ============================================

func TestHandler_ListTimeline_NewestFirst(t *testing.T) {
	handler, timeline := newTestQueryHandler()
	now := time.Now().UTC()
	user := int64(42)

	seed(t, timeline, 1, &user, now.Add(-2*time.Hour))
	seed(t, timeline, 2, &user, now)
	seed(t, timeline, 3, &user, now.Add(-time.Hour))

	page, err := handler.ListTimeline(context.Background(), &user, readmodel.DefaultListRequest())
	require.NoError(t, err)
	require.Len(t, page.Items, 3)
	assert.Equal(t, int64(2), page.Items[0].EntityID)
	assert.Equal(t, int64(3), page.Items[1].EntityID)
	assert.Equal(t, int64(1), page.Items[2].EntityID)
}

func TestHandler_ListTimeline_OwnerFilter(t *testing.T) {
	handler, timeline := newTestQueryHandler()
	now := time.Now().UTC()
	alice, bob := int64(1), int64(2)

	seed(t, timeline, 1, &alice, now)
	seed(t, timeline, 2, &bob, now)

	page, err := handler.ListTimeline(context.Background(), &bob, readmodel.DefaultListRequest())
	require.NoError(t, err)
	require.Len(t, page.Items, 1)
	assert.Equal(t, int64(2), page.Items[0].EntityID)

	all, err := handler.ListTimeline(context.Background(), nil, readmodel.DefaultListRequest())
	require.NoError(t, err)
	assert.Len(t, all.Items, 2)
}

func TestHandler_ListTimeline_StoreError(t *testing.T) {
	handler, timeline := newTestQueryHandler()
	timeline.ListErr = errors.New("connection refused")

	page, err := handler.ListTimeline(context.Background(), nil, readmodel.DefaultListRequest())
	assert.Error(t, err)
	assert.Nil(t, page)
}

func TestHandler_GetEntry(t *testing.T) {
	handler, timeline := newTestQueryHandler()
	seed(t, timeline, 9, nil, time.Now())

	event, ok := handler.GetEntry(context.Background(), readmodel.EntityRef{Type: readmodel.EntityReading, ID: 9})
	require.True(t, ok)
	assert.Equal(t, "Dune", event.Title)

	_, ok = handler.GetEntry(context.Background(), readmodel.EntityRef{Type: readmodel.EntityBook, ID: 9})
	assert.False(t, ok)
}
