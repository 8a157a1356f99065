package mocks

import (
	"context"
	"sync"

	"github.com/example/booklog-timeline/internal/domain/library"
	"github.com/example/booklog-timeline/internal/infrastructure/store"
)

// MockLibraryStore wraps the in-memory library store. ReadHook, when set, is
// called before every single-entity read and may fail or panic it.
type MockLibraryStore struct {
	*store.LibraryMemStore

	mu        sync.Mutex
	ReadCalls []ReadCall
	ReadHook  func(op string, id int64) error
}

// ReadCall records a single-entity read
type ReadCall struct {
	Op string
	ID int64
}

var _ store.LibraryStore = (*MockLibraryStore)(nil)

func NewMockLibraryStore() *MockLibraryStore {
	return &MockLibraryStore{LibraryMemStore: store.NewLibraryMemStore()}
}

func (m *MockLibraryStore) record(op string, id int64) error {
	m.mu.Lock()
	m.ReadCalls = append(m.ReadCalls, ReadCall{Op: op, ID: id})
	hook := m.ReadHook
	m.mu.Unlock()
	if hook != nil {
		return hook(op, id)
	}
	return nil
}

func (m *MockLibraryStore) GetAuthor(ctx context.Context, id int64) (*library.Author, error) {
	if err := m.record("author", id); err != nil {
		return nil, err
	}
	return m.LibraryMemStore.GetAuthor(ctx, id)
}

func (m *MockLibraryStore) GetGenre(ctx context.Context, id int64) (*library.Genre, error) {
	if err := m.record("genre", id); err != nil {
		return nil, err
	}
	return m.LibraryMemStore.GetGenre(ctx, id)
}

func (m *MockLibraryStore) GetBook(ctx context.Context, id int64) (*library.Book, error) {
	if err := m.record("book", id); err != nil {
		return nil, err
	}
	return m.LibraryMemStore.GetBook(ctx, id)
}

func (m *MockLibraryStore) GetBookWithAuthors(ctx context.Context, id int64) (*library.BookWithAuthors, error) {
	if err := m.record("book", id); err != nil {
		return nil, err
	}
	return m.LibraryMemStore.GetBookWithAuthors(ctx, id)
}

func (m *MockLibraryStore) GetReading(ctx context.Context, id int64) (*library.Reading, error) {
	if err := m.record("reading", id); err != nil {
		return nil, err
	}
	return m.LibraryMemStore.GetReading(ctx, id)
}

// ReadCount returns how many single-entity reads have been made.
func (m *MockLibraryStore) ReadCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.ReadCalls)
}
