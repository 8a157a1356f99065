package store

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/example/booklog-timeline/internal/platform/logger"
	"github.com/example/booklog-timeline/internal/readmodel"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openTestSQLite(t *testing.T) *SQLTimelineStore {
	t.Helper()
	db, err := OpenSQLite(filepath.Join(t.TempDir(), "timeline.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	require.NoError(t, EnsureSchema(context.Background(), db, DialectSQLite))
	return NewSQLTimelineStore(db, DialectSQLite, logger.NewNop())
}

// timelineStores runs each test against every TimelineStore implementation.
func timelineStores(t *testing.T) map[string]func(t *testing.T) TimelineStore {
	return map[string]func(t *testing.T) TimelineStore{
		"memory": func(t *testing.T) TimelineStore { return NewReadStore(logger.NewNop()) },
		"sqlite": func(t *testing.T) TimelineStore { return openTestSQLite(t) },
	}
}

var baseTime = time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

func authorEvent(id int64, name string, at time.Time) readmodel.NewTimelineEvent {
	return readmodel.NewTimelineEvent{
		EntityType: readmodel.EntityAuthor,
		EntityID:   id,
		Action:     readmodel.ActionAdded,
		OccurredAt: at,
		Title:      name,
	}
}

func readingEvent(id, userID int64, action string, at time.Time) readmodel.NewTimelineEvent {
	rating := 4.5
	return readmodel.NewTimelineEvent{
		UserID:     &userID,
		EntityType: readmodel.EntityReading,
		EntityID:   id,
		Action:     action,
		OccurredAt: at,
		Title:      "Dune",
		Details:    []readmodel.Detail{{Label: "Author", Value: "Frank Herbert"}},
		Genres:     []string{},
		ReadingData: &readmodel.ReadingData{
			BookID: 7,
			Rating: &rating,
			Status: "reading",
		},
	}
}

// ============================================
// Insert / Get
// ============================================

func TestTimelineStore_InsertAndGet(t *testing.T) {
	for name, open := range timelineStores(t) {
		t.Run(name, func(t *testing.T) {
			s := open(t)
			ctx := context.Background()

			stored, err := s.Insert(ctx, readingEvent(3, 42, readmodel.ActionStarted, baseTime))
			require.NoError(t, err)
			assert.NotZero(t, stored.ID)

			got, ok, err := s.GetByEntity(ctx, readmodel.EntityRef{Type: readmodel.EntityReading, ID: 3})
			require.NoError(t, err)
			require.True(t, ok)
			assert.Equal(t, stored.ID, got.ID)
			assert.Equal(t, "Dune", got.Title)
			assert.Equal(t, readmodel.ActionStarted, got.Action)
			assert.True(t, baseTime.Equal(got.OccurredAt))
			require.NotNil(t, got.UserID)
			assert.Equal(t, int64(42), *got.UserID)
			require.NotNil(t, got.ReadingData)
			assert.Equal(t, int64(7), got.ReadingData.BookID)
			require.NotNil(t, got.ReadingData.Rating)
			assert.Equal(t, 4.5, *got.ReadingData.Rating)
			assert.Equal(t, []readmodel.Detail{{Label: "Author", Value: "Frank Herbert"}}, got.Details)
		})
	}
}

func TestTimelineStore_GetMissing(t *testing.T) {
	for name, open := range timelineStores(t) {
		t.Run(name, func(t *testing.T) {
			s := open(t)
			got, ok, err := s.GetByEntity(context.Background(), readmodel.EntityRef{Type: readmodel.EntityBook, ID: 99})
			require.NoError(t, err)
			assert.False(t, ok)
			assert.Nil(t, got)
		})
	}
}

func TestTimelineStore_InsertSameEntityKeepsOneRow(t *testing.T) {
	for name, open := range timelineStores(t) {
		t.Run(name, func(t *testing.T) {
			s := open(t)
			ctx := context.Background()

			first, err := s.Insert(ctx, readingEvent(3, 42, readmodel.ActionStarted, baseTime))
			require.NoError(t, err)
			second, err := s.Insert(ctx, readingEvent(3, 42, readmodel.ActionFinished, baseTime.Add(time.Hour)))
			require.NoError(t, err)
			assert.Equal(t, first.ID, second.ID)

			page, err := s.List(ctx, nil, readmodel.ShowAll(readmodel.SortDesc))
			require.NoError(t, err)
			require.Len(t, page.Items, 1)
			assert.Equal(t, readmodel.ActionFinished, page.Items[0].Action)
			assert.True(t, baseTime.Add(time.Hour).Equal(page.Items[0].OccurredAt))
		})
	}
}

// ============================================
// UpdateByEntity
// ============================================

func TestTimelineStore_UpdateByEntityRewritesContent(t *testing.T) {
	for name, open := range timelineStores(t) {
		t.Run(name, func(t *testing.T) {
			s := open(t)
			ctx := context.Background()
			ref := readmodel.EntityRef{Type: readmodel.EntityAuthor, ID: 1}

			stored, err := s.Insert(ctx, authorEvent(1, "Ada", baseTime))
			require.NoError(t, err)

			err = s.UpdateByEntity(ctx, ref, readmodel.SnapshotContent{Title: "Ada Lovelace"})
			require.NoError(t, err)

			got, ok, err := s.GetByEntity(ctx, ref)
			require.NoError(t, err)
			require.True(t, ok)
			assert.Equal(t, stored.ID, got.ID)
			assert.Equal(t, "Ada Lovelace", got.Title)
			assert.Equal(t, readmodel.ActionAdded, got.Action)
			assert.True(t, baseTime.Equal(got.OccurredAt))
			assert.Equal(t, []readmodel.Detail{}, got.Details)
		})
	}
}

func TestTimelineStore_UpdateByEntityOverwritesReadingState(t *testing.T) {
	for name, open := range timelineStores(t) {
		t.Run(name, func(t *testing.T) {
			s := open(t)
			ctx := context.Background()
			ref := readmodel.EntityRef{Type: readmodel.EntityReading, ID: 3}

			_, err := s.Insert(ctx, readingEvent(3, 42, readmodel.ActionStarted, baseTime))
			require.NoError(t, err)

			finished := readingEvent(3, 42, readmodel.ActionFinished, baseTime.Add(48*time.Hour))
			require.NoError(t, s.UpdateByEntity(ctx, ref, finished.Content()))

			got, _, err := s.GetByEntity(ctx, ref)
			require.NoError(t, err)
			assert.Equal(t, readmodel.ActionFinished, got.Action)
			assert.True(t, baseTime.Add(48*time.Hour).Equal(got.OccurredAt))
		})
	}
}

func TestTimelineStore_UpdateByEntityKeepsActionWrittenSinceLoad(t *testing.T) {
	for name, open := range timelineStores(t) {
		t.Run(name, func(t *testing.T) {
			s := open(t)
			ctx := context.Background()
			ref := readmodel.EntityRef{Type: readmodel.EntityBook, ID: 9}
			book := readmodel.NewTimelineEvent{
				EntityType: readmodel.EntityBook,
				EntityID:   9,
				Action:     readmodel.ActionAdded,
				OccurredAt: baseTime,
				Title:      "Notes",
			}
			_, err := s.Insert(ctx, book)
			require.NoError(t, err)

			// refreshed content computed before another writer replaced the row
			refreshed := book
			refreshed.Title = "Notes on the Engine"
			refreshed.Genres = []string{"Engineering"}
			content := refreshed.Content()
			require.Empty(t, content.Action)

			owner := int64(42)
			replaced := book
			replaced.UserID = &owner
			replaced.Action = "imported"
			replaced.OccurredAt = baseTime.Add(time.Hour)
			_, err = s.Insert(ctx, replaced)
			require.NoError(t, err)

			require.NoError(t, s.UpdateByEntity(ctx, ref, content))

			got, ok, err := s.GetByEntity(ctx, ref)
			require.NoError(t, err)
			require.True(t, ok)
			assert.Equal(t, "imported", got.Action)
			assert.True(t, baseTime.Add(time.Hour).Equal(got.OccurredAt))
			require.NotNil(t, got.UserID)
			assert.Equal(t, owner, *got.UserID)
			assert.Equal(t, "Notes on the Engine", got.Title)
			assert.Equal(t, []string{"Engineering"}, got.Genres)
			assert.Nil(t, got.ReadingData)
		})
	}
}

func TestTimelineStore_UpdateByEntityMissingIsNoop(t *testing.T) {
	for name, open := range timelineStores(t) {
		t.Run(name, func(t *testing.T) {
			s := open(t)
			ctx := context.Background()
			ref := readmodel.EntityRef{Type: readmodel.EntityGenre, ID: 5}

			err := s.UpdateByEntity(ctx, ref, readmodel.SnapshotContent{Title: "Sci-Fi"})
			require.NoError(t, err)

			_, ok, err := s.GetByEntity(ctx, ref)
			require.NoError(t, err)
			assert.False(t, ok)
		})
	}
}

// ============================================
// Delete
// ============================================

func TestTimelineStore_DeleteByEntity(t *testing.T) {
	for name, open := range timelineStores(t) {
		t.Run(name, func(t *testing.T) {
			s := open(t)
			ctx := context.Background()

			_, err := s.Insert(ctx, authorEvent(1, "Ada", baseTime))
			require.NoError(t, err)
			_, err = s.Insert(ctx, authorEvent(2, "Grace", baseTime))
			require.NoError(t, err)

			require.NoError(t, s.DeleteByEntity(ctx, readmodel.EntityRef{Type: readmodel.EntityAuthor, ID: 1}))
			// deleting again is harmless
			require.NoError(t, s.DeleteByEntity(ctx, readmodel.EntityRef{Type: readmodel.EntityAuthor, ID: 1}))

			page, err := s.List(ctx, nil, readmodel.ShowAll(readmodel.SortDesc))
			require.NoError(t, err)
			require.Len(t, page.Items, 1)
			assert.Equal(t, "Grace", page.Items[0].Title)
		})
	}
}

func TestTimelineStore_DeleteAll(t *testing.T) {
	for name, open := range timelineStores(t) {
		t.Run(name, func(t *testing.T) {
			s := open(t)
			ctx := context.Background()

			_, err := s.Insert(ctx, authorEvent(1, "Ada", baseTime))
			require.NoError(t, err)
			_, err = s.Insert(ctx, readingEvent(3, 42, readmodel.ActionStarted, baseTime))
			require.NoError(t, err)

			require.NoError(t, s.DeleteAll(ctx))

			page, err := s.List(ctx, nil, readmodel.DefaultListRequest())
			require.NoError(t, err)
			assert.Empty(t, page.Items)
			assert.Equal(t, int64(0), page.Total)
		})
	}
}

// ============================================
// List
// ============================================

func TestTimelineStore_ListOrdering(t *testing.T) {
	for name, open := range timelineStores(t) {
		t.Run(name, func(t *testing.T) {
			s := open(t)
			ctx := context.Background()

			_, err := s.Insert(ctx, authorEvent(1, "old", baseTime))
			require.NoError(t, err)
			_, err = s.Insert(ctx, authorEvent(2, "new", baseTime.Add(2*time.Hour)))
			require.NoError(t, err)
			_, err = s.Insert(ctx, authorEvent(3, "tie-a", baseTime.Add(time.Hour)))
			require.NoError(t, err)
			_, err = s.Insert(ctx, authorEvent(4, "tie-b", baseTime.Add(time.Hour)))
			require.NoError(t, err)

			desc, err := s.List(ctx, nil, readmodel.ShowAll(readmodel.SortDesc))
			require.NoError(t, err)
			assert.Equal(t, []string{"new", "tie-b", "tie-a", "old"}, titles(desc.Items))

			asc, err := s.List(ctx, nil, readmodel.ShowAll(readmodel.SortAsc))
			require.NoError(t, err)
			assert.Equal(t, []string{"old", "tie-b", "tie-a", "new"}, titles(asc.Items))
		})
	}
}

func TestTimelineStore_ListPagination(t *testing.T) {
	for name, open := range timelineStores(t) {
		t.Run(name, func(t *testing.T) {
			s := open(t)
			ctx := context.Background()

			for i := int64(1); i <= 5; i++ {
				_, err := s.Insert(ctx, authorEvent(i, string(rune('a'+i-1)), baseTime.Add(time.Duration(i)*time.Minute)))
				require.NoError(t, err)
			}

			page, err := s.List(ctx, nil, readmodel.ListRequest{Page: 2, PageSize: 2, Direction: readmodel.SortDesc})
			require.NoError(t, err)
			assert.Equal(t, []string{"c", "b"}, titles(page.Items))
			assert.Equal(t, int64(5), page.Total)
			assert.Equal(t, 2, page.Page)
			assert.True(t, page.HasNext())

			// past the end clamps to the last page
			last, err := s.List(ctx, nil, readmodel.ListRequest{Page: 9, PageSize: 2, Direction: readmodel.SortDesc})
			require.NoError(t, err)
			assert.Equal(t, 3, last.Page)
			assert.Equal(t, []string{"a"}, titles(last.Items))
			assert.False(t, last.HasNext())

			all, err := s.List(ctx, nil, readmodel.ShowAll(readmodel.SortDesc))
			require.NoError(t, err)
			assert.Len(t, all.Items, 5)
			assert.True(t, all.ShowAll)
		})
	}
}

func TestTimelineStore_ListFiltersByUser(t *testing.T) {
	for name, open := range timelineStores(t) {
		t.Run(name, func(t *testing.T) {
			s := open(t)
			ctx := context.Background()

			_, err := s.Insert(ctx, readingEvent(1, 42, readmodel.ActionStarted, baseTime))
			require.NoError(t, err)
			_, err = s.Insert(ctx, readingEvent(2, 7, readmodel.ActionStarted, baseTime))
			require.NoError(t, err)
			_, err = s.Insert(ctx, authorEvent(3, "shared", baseTime))
			require.NoError(t, err)

			user := int64(42)
			page, err := s.List(ctx, &user, readmodel.ShowAll(readmodel.SortDesc))
			require.NoError(t, err)
			require.Len(t, page.Items, 1)
			assert.Equal(t, int64(1), page.Items[0].EntityID)
			assert.Equal(t, int64(1), page.Total)
		})
	}
}

func titles(events []readmodel.TimelineEvent) []string {
	out := make([]string, 0, len(events))
	for _, e := range events {
		out = append(out, e.Title)
	}
	return out
}

func TestDialect_Rebind(t *testing.T) {
	q := "SELECT * FROM t WHERE a = ? AND b = ?"
	assert.Equal(t, "SELECT * FROM t WHERE a = $1 AND b = $2", DialectPostgres.Rebind(q))
	assert.Equal(t, q, DialectSQLite.Rebind(q))
}
