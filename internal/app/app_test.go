package app

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/example/booklog-timeline/internal/command"
	"github.com/example/booklog-timeline/internal/config"
	"github.com/example/booklog-timeline/internal/platform/logger"
	"github.com/example/booklog-timeline/internal/readmodel"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sync/errgroup"
)

func testConfig(driver string) *config.Config {
	return &config.Config{
		StorageDriver:   driver,
		Transport:       config.TransportLocal,
		ChannelCapacity: 32,
	}
}

func TestOpenStores_Drivers(t *testing.T) {
	ctx := context.Background()

	mem, err := OpenStores(ctx, testConfig(config.StorageMemory), logger.NewNop())
	require.NoError(t, err)
	assert.NoError(t, mem.Close())

	cfg := testConfig(config.StorageSQLite)
	cfg.SQLitePath = filepath.Join(t.TempDir(), "booklog.db")
	lite, err := OpenStores(ctx, cfg, logger.NewNop())
	require.NoError(t, err)
	defer lite.Close()

	_, err = lite.Library.CreateAuthor(ctx, "Ada")
	assert.NoError(t, err)

	_, err = OpenStores(ctx, testConfig("mongo"), logger.NewNop())
	assert.ErrorIs(t, err, config.ErrUnknownStorage)
}

func TestRefresh_RenamePropagatesAndStopsOnCancel(t *testing.T) {
	cfg := testConfig(config.StorageSQLite)
	cfg.SQLitePath = filepath.Join(t.TempDir(), "booklog.db")
	log := logger.NewNop()

	stores, err := OpenStores(context.Background(), cfg, log)
	require.NoError(t, err)
	defer stores.Close()

	ctx, cancel := context.WithCancel(context.Background())
	g, gctx := errgroup.WithContext(ctx)
	refresh := NewRefresh(cfg, stores, log)
	refresh.Start(gctx, g)

	handler := command.NewHandler(stores.Library, stores.Timeline, refresh.Invalidator, log)
	author, err := handler.CreateAuthor(ctx, command.CreateAuthor{Name: "Ada"})
	require.NoError(t, err)
	_, err = handler.RenameAuthor(ctx, command.RenameAuthor{AuthorID: author.ID, Name: "Ada Lovelace"})
	require.NoError(t, err)

	ref := readmodel.EntityRef{Type: readmodel.EntityAuthor, ID: author.ID}
	require.Eventually(t, func() bool {
		event, ok, err := stores.Timeline.GetByEntity(context.Background(), ref)
		return err == nil && ok && event.Title == "Ada Lovelace"
	}, 2*time.Second, 10*time.Millisecond)

	cancel()
	assert.NoError(t, g.Wait())
}
