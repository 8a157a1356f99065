package projection

import (
	"context"
	"testing"
	"time"

	"github.com/example/booklog-timeline/internal/platform/logger"
	"github.com/example/booklog-timeline/internal/readmodel"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func TestChannelInvalidator_FullChannelDropsWithoutBlocking(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	inv := NewChannelInvalidator(2, logger.FromZap(zap.New(core)))

	done := make(chan struct{})
	go func() {
		for i := 0; i < 100; i++ {
			inv.Invalidate(readmodel.EntityBook, int64(i))
		}
		inv.InvalidateFull()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("invalidate blocked on a full channel")
	}

	assert.Equal(t, int64(99), inv.Dropped())
	assert.Len(t, inv.Signals(), 2)
	assert.Equal(t, 99, logs.FilterMessage("timeline signal dropped").Len())
}

func TestChannelInvalidator_SignalsAfterCloseAreDropped(t *testing.T) {
	inv := NewChannelInvalidator(4, logger.NewNop())
	inv.Invalidate(readmodel.EntityAuthor, 1)
	inv.Close()
	inv.Close()

	assert.NotPanics(t, func() {
		inv.Invalidate(readmodel.EntityAuthor, 2)
		inv.InvalidateFull()
	})
	assert.Equal(t, int64(2), inv.Dropped())

	sig, ok := <-inv.Signals()
	require.True(t, ok)
	assert.Equal(t, TargetSignal{Ref: readmodel.EntityRef{Type: readmodel.EntityAuthor, ID: 1}}, sig)
	_, ok = <-inv.Signals()
	assert.False(t, ok)
}

func TestChannelInvalidator_IgnoresUnknownEntityType(t *testing.T) {
	inv := NewChannelInvalidator(4, logger.NewNop())
	inv.Invalidate(readmodel.EntityType(42), 1)
	assert.Empty(t, inv.Signals())
}

func TestChannelInvalidator_DefaultCapacity(t *testing.T) {
	inv := NewChannelInvalidator(0, logger.NewNop())
	assert.Equal(t, DefaultChannelCapacity, cap(inv.Signals()))
}

type countingInvalidator struct {
	fulls chan struct{}
}

func (c *countingInvalidator) Invalidate(readmodel.EntityType, int64) {}
func (c *countingInvalidator) InvalidateFull()                       { c.fulls <- struct{}{} }

func TestRunPeriodicRebuild(t *testing.T) {
	inv := &countingInvalidator{fulls: make(chan struct{}, 8)}
	ctx, cancel := context.WithCancel(context.Background())

	errCh := make(chan error, 1)
	go func() { errCh <- RunPeriodicRebuild(ctx, inv, 10*time.Millisecond) }()

	select {
	case <-inv.fulls:
	case <-time.After(time.Second):
		t.Fatal("no periodic full rebuild requested")
	}
	cancel()
	assert.NoError(t, <-errCh)
}

func TestRunPeriodicRebuild_DisabledByZeroInterval(t *testing.T) {
	inv := &countingInvalidator{fulls: make(chan struct{}, 1)}
	assert.NoError(t, RunPeriodicRebuild(context.Background(), inv, 0))
	assert.Empty(t, inv.fulls)
}
