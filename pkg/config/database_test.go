package config

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/anonto42/nano-midea/socialgraph/internal/store"
)

func TestOpenStoreSQLite(t *testing.T) {
	ctx := context.Background()
	cfg := &Config{StoreBackend: BackendSQLite, SQLitePath: filepath.Join(t.TempDir(), "graph.db")}

	s, closeStore, err := OpenStore(ctx, cfg, nil, zap.NewNop())
	require.NoError(t, err)
	defer closeStore()

	require.NoError(t, s.Set(ctx, "users/u1", store.Fields{"handle": "u1"}, false))
	doc, err := s.Get(ctx, "users/u1")
	require.NoError(t, err)
	assert.Equal(t, "u1", doc.String("handle"))
}

func TestOpenStoreMemory(t *testing.T) {
	s, closeStore, err := OpenStore(context.Background(), &Config{StoreBackend: BackendMemory}, nil, zap.NewNop())
	require.NoError(t, err)
	closeStore()
	_, err = s.Get(context.Background(), "users/u1")
	assert.ErrorIs(t, err, store.ErrUnavailable)
}

func TestOpenStoreFirestoreNeedsClient(t *testing.T) {
	_, _, err := OpenStore(context.Background(), &Config{StoreBackend: BackendFirestore}, nil, zap.NewNop())
	assert.Error(t, err)
}
