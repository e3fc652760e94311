package store

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInMemoryStore(t *testing.T) {
	runStoreContract(t, func(t *testing.T, clock *fakeClock) Store {
		s := NewInMemoryStore()
		s.now = clock.Now
		return s
	})
}

func TestInMemoryStore_takeDropsExpiredEntry(t *testing.T) {
	ctx := context.Background()
	clock := newFakeClock()
	s := NewInMemoryStore()
	s.now = clock.Now

	require.NoError(t, s.Put(ctx, "c1", []byte("secret"), time.Second))
	clock.Advance(time.Hour)

	_, ok, err := s.TakeAndInvalidate(ctx, "c1")
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Equal(t, 0, s.Len())
}

func TestInMemoryStore_putCopiesSecret(t *testing.T) {
	ctx := context.Background()
	s := NewInMemoryStore()
	secret := []byte("secret")

	require.NoError(t, s.Put(ctx, "c1", secret, time.Hour))
	secret[0] = 'X'

	got, ok, err := s.TakeAndInvalidate(ctx, "c1")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, []byte("secret"), got)
}
