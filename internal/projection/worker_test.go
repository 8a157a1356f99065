package projection

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/example/booklog-timeline/internal/domain/library"
	"github.com/example/booklog-timeline/internal/platform/logger"
	"github.com/example/booklog-timeline/internal/readmodel"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// recordingRebuilder counts calls instead of touching a store.
type recordingRebuilder struct {
	mu        sync.Mutex
	refreshes []readmodel.EntityRef
	fulls     int
	failOn    map[readmodel.EntityRef]error
	panicOn   map[readmodel.EntityRef]bool
}

func (r *recordingRebuilder) RefreshEntity(ctx context.Context, ref readmodel.EntityRef) error {
	r.mu.Lock()
	r.refreshes = append(r.refreshes, ref)
	err := r.failOn[ref]
	boom := r.panicOn[ref]
	r.mu.Unlock()
	if boom {
		panic("corrupt row")
	}
	return err
}

func (r *recordingRebuilder) FullRebuild(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.fulls++
	return nil
}

func (r *recordingRebuilder) snapshot() ([]readmodel.EntityRef, int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]readmodel.EntityRef{}, r.refreshes...), r.fulls
}

// runClosed runs a zero-debounce worker over signals already queued on a
// closed channel, so the whole queue is one batch.
func runClosed(t *testing.T, inv *ChannelInvalidator, rb Rebuilder) *Worker {
	t.Helper()
	inv.Close()
	w := NewWorker(inv.Signals(), rb, 0, logger.NewNop())
	w.Run(context.Background())
	return w
}

// ============================================
// Coalescing Tests
// ============================================

func TestWorker_CoalescesDuplicateTargets(t *testing.T) {
	inv := NewChannelInvalidator(32, logger.NewNop())
	rb := &recordingRebuilder{}

	for i := 0; i < 10; i++ {
		inv.Invalidate(readmodel.EntityBook, 5)
	}
	inv.Invalidate(readmodel.EntityAuthor, 5)

	w := runClosed(t, inv, rb)

	refs, fulls := rb.snapshot()
	assert.ElementsMatch(t, []readmodel.EntityRef{
		{Type: readmodel.EntityBook, ID: 5},
		{Type: readmodel.EntityAuthor, ID: 5},
	}, refs)
	assert.Zero(t, fulls)
	assert.Equal(t, stateStopped, w.currentState())
}

func TestWorker_FullDominates(t *testing.T) {
	inv := NewChannelInvalidator(32, logger.NewNop())
	rb := &recordingRebuilder{}

	inv.Invalidate(readmodel.EntityBook, 1)
	inv.Invalidate(readmodel.EntityReading, 2)
	inv.InvalidateFull()
	inv.Invalidate(readmodel.EntityGenre, 3)

	runClosed(t, inv, rb)

	refs, fulls := rb.snapshot()
	assert.Empty(t, refs)
	assert.Equal(t, 1, fulls)
}

func TestBatch_Add(t *testing.T) {
	b := newBatch()
	b.add(TargetSignal{Ref: readmodel.EntityRef{Type: readmodel.EntityBook, ID: 1}})
	b.add(TargetSignal{Ref: readmodel.EntityRef{Type: readmodel.EntityBook, ID: 1}})
	b.add(TargetSignal{Ref: readmodel.EntityRef{Type: readmodel.EntityGenre, ID: 1}})
	assert.Len(t, b.refs(), 2)
	assert.False(t, b.full)

	b.add(FullSignal{})
	b.add(TargetSignal{Ref: readmodel.EntityRef{Type: readmodel.EntityAuthor, ID: 9}})
	assert.True(t, b.full)
	assert.Empty(t, b.refs())
}

// ============================================
// Failure Handling Tests
// ============================================

func TestWorker_FailuresDoNotAbortBatch(t *testing.T) {
	inv := NewChannelInvalidator(32, logger.NewNop())
	bad := readmodel.EntityRef{Type: readmodel.EntityBook, ID: 1}
	crashing := readmodel.EntityRef{Type: readmodel.EntityBook, ID: 2}
	good := readmodel.EntityRef{Type: readmodel.EntityBook, ID: 3}
	rb := &recordingRebuilder{
		failOn:  map[readmodel.EntityRef]error{bad: errors.New("timeout")},
		panicOn: map[readmodel.EntityRef]bool{crashing: true},
	}

	inv.Invalidate(bad.Type, bad.ID)
	inv.Invalidate(crashing.Type, crashing.ID)
	inv.Invalidate(good.Type, good.ID)

	assert.NotPanics(t, func() { runClosed(t, inv, rb) })

	refs, _ := rb.snapshot()
	assert.ElementsMatch(t, []readmodel.EntityRef{bad, crashing, good}, refs)
}

func TestWorker_SafelyRecoversPanic(t *testing.T) {
	w := NewWorker(nil, &recordingRebuilder{}, 0, logger.NewNop())
	err := w.safely(func() error { panic("boom") })
	assert.ErrorContains(t, err, "boom")
}

// ============================================
// Debounce Tests
// ============================================

func TestWorker_DebounceWindowBatchesLateSignals(t *testing.T) {
	inv := NewChannelInvalidator(32, logger.NewNop())
	rb := &recordingRebuilder{}
	w := NewWorker(inv.Signals(), rb, 0, logger.NewNop())

	// Signals that arrive while the worker sleeps join the first batch.
	w.debounce = time.Millisecond
	w.sleep = func(time.Duration) {
		inv.Invalidate(readmodel.EntityReading, 7)
		inv.Invalidate(readmodel.EntityReading, 7)
	}

	inv.Invalidate(readmodel.EntityReading, 7)
	done := make(chan struct{})
	go func() {
		w.Run(context.Background())
		close(done)
	}()

	require.Eventually(t, func() bool {
		refs, _ := rb.snapshot()
		return len(refs) == 1
	}, time.Second, 5*time.Millisecond)

	inv.Close()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("worker did not exit after channel close")
	}

	refs, _ := rb.snapshot()
	assert.Equal(t, []readmodel.EntityRef{{Type: readmodel.EntityReading, ID: 7}}, refs)
}

func TestWorker_RunsUntilChannelClosed(t *testing.T) {
	inv := NewChannelInvalidator(32, logger.NewNop())
	rb := &recordingRebuilder{}
	w := NewWorker(inv.Signals(), rb, 0, logger.NewNop())

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	done := make(chan struct{})
	go func() {
		w.Run(ctx)
		close(done)
	}()

	// cancelled context does not stop the loop
	inv.InvalidateFull()
	require.Eventually(t, func() bool {
		_, fulls := rb.snapshot()
		return fulls == 1
	}, time.Second, 5*time.Millisecond)

	select {
	case <-done:
		t.Fatal("worker exited before channel close")
	default:
	}

	inv.Close()
	require.Eventually(t, func() bool {
		select {
		case <-done:
			return true
		default:
			return false
		}
	}, time.Second, 5*time.Millisecond)
}

// ============================================
// End-to-end
// ============================================

func TestWorker_RenameAuthorRefreshesDependentRows(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	// only Ada's first book and its reading belong to this scenario
	require.NoError(t, f.lib.DeleteBook(ctx, f.b2.Book.ID))
	require.NoError(t, f.timeline.DeleteByEntity(ctx, ref(readmodel.EntityBook, f.b2.Book.ID)))
	require.NoError(t, f.timeline.DeleteByEntity(ctx, ref(readmodel.EntityReading, f.r2.ID)))

	engineering, err := f.lib.CreateGenre(ctx, "Engineering")
	require.NoError(t, err)
	book := f.b1.Book
	book.PrimaryGenreID = &engineering.ID
	_, err = f.lib.UpdateBook(ctx, book, []library.BookAuthor{{AuthorID: f.ada.ID, Role: library.RoleAuthor}})
	require.NoError(t, err)
	f.insert(t, readmodel.BookEvent(&book, []library.Author{*f.ada}, "Engineering", "", nil))
	f.timeline.Reset()

	_, err = f.lib.UpdateAuthor(ctx, f.ada.ID, "Ada Lovelace")
	require.NoError(t, err)

	inv := NewChannelInvalidator(32, logger.NewNop())
	inv.Invalidate(readmodel.EntityAuthor, f.ada.ID)
	runClosed(t, inv, f.resolver)

	assert.Len(t, f.timeline.UpdateCalls, 3)
	assert.Equal(t, "Ada Lovelace", f.get(t, readmodel.EntityAuthor, f.ada.ID).Title)
	bookEvent := f.get(t, readmodel.EntityBook, f.b1.Book.ID)
	assert.Equal(t, "Ada Lovelace", authorDetail(bookEvent))
	assert.Equal(t, []string{"Engineering"}, bookEvent.Genres)
	assert.Contains(t, bookEvent.Details, readmodel.Detail{Label: "Genres", Value: "Engineering"})
	assert.Equal(t, "Ada Lovelace", authorDetail(f.get(t, readmodel.EntityReading, f.r1.ID)))

	// unrelated rows keep their content
	assert.Equal(t, "Grace", authorDetail(f.get(t, readmodel.EntityReading, f.r3.ID)))
	_, err = f.lib.GetReading(ctx, f.r2.ID)
	assert.ErrorIs(t, err, library.ErrReadingNotFound)
}
