package store

import (
	"context"
	"sort"
	"sync"

	"github.com/example/booklog-timeline/internal/platform/logger"
	"github.com/example/booklog-timeline/internal/readmodel"
)

// ReadStore is an in-memory timeline store
type ReadStore struct {
	mu     sync.RWMutex
	data   map[readmodel.EntityRef]*readmodel.TimelineEvent
	nextID int64
	log    *logger.Logger
}

func NewReadStore(log *logger.Logger) *ReadStore {
	return &ReadStore{
		data: make(map[readmodel.EntityRef]*readmodel.TimelineEvent),
		log:  log.With("component", "timeline-store"),
	}
}

// Insert stores an event, replacing any existing event of the same entity
func (rs *ReadStore) Insert(ctx context.Context, event readmodel.NewTimelineEvent) (*readmodel.TimelineEvent, error) {
	rs.mu.Lock()
	defer rs.mu.Unlock()

	ref := event.Ref()
	id := rs.nextID + 1
	if existing, ok := rs.data[ref]; ok {
		id = existing.ID
	} else {
		rs.nextID = id
	}
	stored := event.Materialize(id)
	rs.data[ref] = stored
	return cloneEvent(stored), nil
}

// UpdateByEntity rewrites an entity's event in place
func (rs *ReadStore) UpdateByEntity(ctx context.Context, ref readmodel.EntityRef, content readmodel.SnapshotContent) error {
	rs.mu.Lock()
	defer rs.mu.Unlock()

	current, ok := rs.data[ref]
	if !ok {
		rs.log.Debug("no timeline event to update", "entity", ref.String())
		return nil
	}
	updated := cloneEvent(current)
	updated.Apply(content)
	rs.data[ref] = updated
	return nil
}

// GetByEntity retrieves an entity's event
func (rs *ReadStore) GetByEntity(ctx context.Context, ref readmodel.EntityRef) (*readmodel.TimelineEvent, bool, error) {
	rs.mu.RLock()
	defer rs.mu.RUnlock()

	event, ok := rs.data[ref]
	if !ok {
		return nil, false, nil
	}
	return cloneEvent(event), true, nil
}

// DeleteByEntity removes an entity's event
func (rs *ReadStore) DeleteByEntity(ctx context.Context, ref readmodel.EntityRef) error {
	rs.mu.Lock()
	defer rs.mu.Unlock()

	delete(rs.data, ref)
	return nil
}

// DeleteAll removes every event
func (rs *ReadStore) DeleteAll(ctx context.Context) error {
	rs.mu.Lock()
	defer rs.mu.Unlock()

	rs.data = make(map[readmodel.EntityRef]*readmodel.TimelineEvent)
	return nil
}

// List returns a page of events ordered by occurred_at, newest first by default
func (rs *ReadStore) List(ctx context.Context, userID *int64, req readmodel.ListRequest) (*readmodel.Page[readmodel.TimelineEvent], error) {
	rs.mu.RLock()
	items := make([]readmodel.TimelineEvent, 0, len(rs.data))
	for _, event := range rs.data {
		if userID != nil && (event.UserID == nil || *event.UserID != *userID) {
			continue
		}
		items = append(items, *cloneEvent(event))
	}
	rs.mu.RUnlock()

	asc := req.Direction == readmodel.SortAsc
	sort.Slice(items, func(i, j int) bool {
		a, b := items[i], items[j]
		if !a.OccurredAt.Equal(b.OccurredAt) {
			if asc {
				return a.OccurredAt.Before(b.OccurredAt)
			}
			return a.OccurredAt.After(b.OccurredAt)
		}
		return a.ID > b.ID
	})

	return paginate(items, req), nil
}

func paginate(items []readmodel.TimelineEvent, req readmodel.ListRequest) *readmodel.Page[readmodel.TimelineEvent] {
	total := int64(len(items))
	if req.ShowsAll() {
		return &readmodel.Page[readmodel.TimelineEvent]{
			Items:    items,
			Page:     1,
			PageSize: max(len(items), 1),
			Total:    total,
			ShowAll:  true,
		}
	}

	req = req.EnsurePageWithin(total)
	start := min(req.Offset(), len(items))
	end := min(start+req.PageSize, len(items))
	return &readmodel.Page[readmodel.TimelineEvent]{
		Items:    items[start:end],
		Page:     req.Page,
		PageSize: req.PageSize,
		Total:    total,
	}
}

func cloneEvent(e *readmodel.TimelineEvent) *readmodel.TimelineEvent {
	c := *e
	c.Details = append([]readmodel.Detail{}, e.Details...)
	c.Genres = append([]string{}, e.Genres...)
	if e.ReadingData != nil {
		rd := *e.ReadingData
		if rd.Rating != nil {
			r := *rd.Rating
			rd.Rating = &r
		}
		c.ReadingData = &rd
	}
	if e.UserID != nil {
		uid := *e.UserID
		c.UserID = &uid
	}
	return &c
}
