package query

import (
	"context"
	"fmt"

	"github.com/example/booklog-timeline/internal/infrastructure/store"
	"github.com/example/booklog-timeline/internal/platform/logger"
	"github.com/example/booklog-timeline/internal/readmodel"
)

type Handler struct {
	timeline store.TimelineStore
	log      *logger.Logger
}

func NewHandler(timeline store.TimelineStore, log *logger.Logger) *Handler {
	return &Handler{timeline: timeline, log: log.With("component", "query")}
}

// ListTimeline returns one page of the feed. A nil owner lists every user's
// events.
func (h *Handler) ListTimeline(ctx context.Context, owner *int64, req readmodel.ListRequest) (*readmodel.Page[readmodel.TimelineEvent], error) {
	page, err := h.timeline.List(ctx, owner, req)
	if err != nil {
		h.log.Error("list timeline", "error", err)
		return nil, fmt.Errorf("list timeline: %w", err)
	}
	return page, nil
}

// GetEntry returns the feed entry of one entity.
func (h *Handler) GetEntry(ctx context.Context, ref readmodel.EntityRef) (*readmodel.TimelineEvent, bool) {
	event, ok, err := h.timeline.GetByEntity(ctx, ref)
	if err != nil {
		h.log.Error("get timeline entry", "entity", ref.String(), "error", err)
		return nil, false
	}
	return event, ok
}
