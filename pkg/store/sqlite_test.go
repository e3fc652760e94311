package store

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestSQLiteStore(t *testing.T) {
	runStoreContract(t, func(t *testing.T, clock *fakeClock) Store {
		ctx := context.Background()
		s, err := NewSQLiteStore(ctx, filepath.Join(t.TempDir(), "commitments.db"))
		require.NoError(t, err)
		t.Cleanup(func() { s.Close(ctx) })
		s.now = clock.Now
		return s
	})
}

func TestSQLiteStore_reopenKeepsEntries(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "commitments.db")

	s, err := NewSQLiteStore(ctx, path)
	require.NoError(t, err)
	require.NoError(t, s.Put(ctx, "c1", []byte("secret"), defaultTestTTL))
	require.NoError(t, s.Close(ctx))

	s, err = NewSQLiteStore(ctx, path)
	require.NoError(t, err)
	defer s.Close(ctx)

	got, ok, err := s.TakeAndInvalidate(ctx, "c1")
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, []byte("secret"), got)
}
