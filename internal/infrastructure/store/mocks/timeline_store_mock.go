package mocks

import (
	"context"
	"sync"

	"github.com/example/booklog-timeline/internal/infrastructure/store"
	"github.com/example/booklog-timeline/internal/platform/logger"
	"github.com/example/booklog-timeline/internal/readmodel"
)

// MockTimelineStore wraps the in-memory timeline store and records every
// write for assertions. Setting one of the *Err fields makes that call fail.
type MockTimelineStore struct {
	*store.ReadStore

	mu sync.Mutex

	// For tracking calls in tests
	InsertCalls []readmodel.NewTimelineEvent
	UpdateCalls []UpdateCall
	DeleteCalls []readmodel.EntityRef
	DeleteAllN  int

	InsertErr error
	UpdateErr error
	ListErr   error
}

// UpdateCall records parameters passed to UpdateByEntity
type UpdateCall struct {
	Ref     readmodel.EntityRef
	Content readmodel.SnapshotContent
}

var _ store.TimelineStore = (*MockTimelineStore)(nil)

func NewMockTimelineStore() *MockTimelineStore {
	return &MockTimelineStore{ReadStore: store.NewReadStore(logger.NewNop())}
}

func (m *MockTimelineStore) Insert(ctx context.Context, event readmodel.NewTimelineEvent) (*readmodel.TimelineEvent, error) {
	m.mu.Lock()
	m.InsertCalls = append(m.InsertCalls, event)
	err := m.InsertErr
	m.mu.Unlock()
	if err != nil {
		return nil, err
	}
	return m.ReadStore.Insert(ctx, event)
}

func (m *MockTimelineStore) UpdateByEntity(ctx context.Context, ref readmodel.EntityRef, content readmodel.SnapshotContent) error {
	m.mu.Lock()
	m.UpdateCalls = append(m.UpdateCalls, UpdateCall{Ref: ref, Content: content})
	err := m.UpdateErr
	m.mu.Unlock()
	if err != nil {
		return err
	}
	return m.ReadStore.UpdateByEntity(ctx, ref, content)
}

func (m *MockTimelineStore) DeleteByEntity(ctx context.Context, ref readmodel.EntityRef) error {
	m.mu.Lock()
	m.DeleteCalls = append(m.DeleteCalls, ref)
	m.mu.Unlock()
	return m.ReadStore.DeleteByEntity(ctx, ref)
}

func (m *MockTimelineStore) DeleteAll(ctx context.Context) error {
	m.mu.Lock()
	m.DeleteAllN++
	m.mu.Unlock()
	return m.ReadStore.DeleteAll(ctx)
}

func (m *MockTimelineStore) List(ctx context.Context, userID *int64, req readmodel.ListRequest) (*readmodel.Page[readmodel.TimelineEvent], error) {
	m.mu.Lock()
	err := m.ListErr
	m.mu.Unlock()
	if err != nil {
		return nil, err
	}
	return m.ReadStore.List(ctx, userID, req)
}

// UpdatedRefs returns the entity refs passed to UpdateByEntity, in call order.
func (m *MockTimelineStore) UpdatedRefs() []readmodel.EntityRef {
	m.mu.Lock()
	defer m.mu.Unlock()

	refs := make([]readmodel.EntityRef, 0, len(m.UpdateCalls))
	for _, c := range m.UpdateCalls {
		refs = append(refs, c.Ref)
	}
	return refs
}

// Reset clears recorded calls without touching stored events.
func (m *MockTimelineStore) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.InsertCalls = nil
	m.UpdateCalls = nil
	m.DeleteCalls = nil
	m.DeleteAllN = 0
}
