package store

import (
	"context"

	"github.com/example/booklog-timeline/internal/readmodel"
)

// TimelineStore persists timeline events, at most one per entity.
type TimelineStore interface {
	// Insert stores a new event and assigns its id. An existing event for the
	// same entity is overwritten in place and keeps its id.
	Insert(ctx context.Context, event readmodel.NewTimelineEvent) (*readmodel.TimelineEvent, error)

	// UpdateByEntity rewrites the refreshable fields of an entity's event.
	// A missing event is logged and ignored.
	UpdateByEntity(ctx context.Context, ref readmodel.EntityRef, content readmodel.SnapshotContent) error

	// GetByEntity returns the event of one entity.
	GetByEntity(ctx context.Context, ref readmodel.EntityRef) (*readmodel.TimelineEvent, bool, error)

	// DeleteByEntity removes an entity's event.
	DeleteByEntity(ctx context.Context, ref readmodel.EntityRef) error

	// DeleteAll removes every event.
	DeleteAll(ctx context.Context) error

	// List returns one page of events ordered by occurred_at then id,
	// optionally restricted to a single owner.
	List(ctx context.Context, userID *int64, req readmodel.ListRequest) (*readmodel.Page[readmodel.TimelineEvent], error)
}
