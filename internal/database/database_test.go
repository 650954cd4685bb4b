package database

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/sjperalta/fintera-brokerage/internal/config"
	"github.com/sjperalta/fintera-brokerage/internal/repository"
	"github.com/sjperalta/fintera-brokerage/pkg/logger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOpenStore_Memory(t *testing.T) {
	store, closeFn, err := OpenStore(&config.Config{DatabaseDriver: config.DriverMemory})
	require.NoError(t, err)
	assert.IsType(t, &repository.MemoryStore{}, store)
	assert.NoError(t, closeFn())
}

func TestOpenStore_SQLite(t *testing.T) {
	logger.Discard()
	cfg := &config.Config{
		Environment:    "test",
		DatabaseDriver: config.DriverSQLite,
		DatabaseURL:    filepath.Join(t.TempDir(), "brokerage.db"),
	}

	store, closeFn, err := OpenStore(cfg)
	require.NoError(t, err)
	defer closeFn()

	ctx := context.Background()
	rec := &repository.Record{Kind: repository.KindProperty, ID: "p-1", Data: []byte(`{"address":"1 Main St"}`)}
	require.NoError(t, store.Put(ctx, rec))
	assert.Equal(t, int64(1), rec.Version)

	stale := &repository.Record{Kind: repository.KindProperty, ID: "p-1", Data: []byte(`{}`)}
	assert.ErrorIs(t, store.Put(ctx, stale), repository.ErrVersionConflict)

	got, err := store.Get(ctx, repository.KindProperty, "p-1")
	require.NoError(t, err)
	assert.JSONEq(t, `{"address":"1 Main St"}`, string(got.Data))
}

func TestConnect_RejectsMemoryDriver(t *testing.T) {
	_, err := Connect(&config.Config{DatabaseDriver: config.DriverMemory})
	assert.Error(t, err)
}
