package commitment

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"io"
	"strings"
	"testing"
	"time"

	mocks "github.com/cbodonnell/fairroll/mocks/github.com/cbodonnell/fairroll/pkg/store"
	"github.com/cbodonnell/fairroll/pkg/store"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type failingReader struct{}

func (failingReader) Read(p []byte) (int, error) {
	return 0, errors.New("entropy exhausted")
}

func TestCommit(t *testing.T) {
	tests := []struct {
		name   string
		secret []byte
		want   string
	}{
		{
			name:   "all zero secret",
			secret: make([]byte, SecretSize),
			want:   "66687aadf862bd776c8fc18b8e9f8e20089714856ee233b3902a591d0d5f2925",
		},
		{
			name:   "empty secret",
			secret: []byte{},
			want:   "e3b0c44298fc1c149afbf4c8996fb92427ae41e4649b934ca495991b7852b855",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Commit(tt.secret))
		})
	}
}

func TestNewSecret(t *testing.T) {
	t.Run("reads full secret", func(t *testing.T) {
		source := bytes.Repeat([]byte{0xab}, SecretSize+8)
		secret, err := NewSecret(bytes.NewReader(source))
		require.NoError(t, err)
		assert.Equal(t, source[:SecretSize], secret)
	})

	t.Run("short source is a random source failure", func(t *testing.T) {
		_, err := NewSecret(bytes.NewReader(make([]byte, SecretSize-1)))
		require.Error(t, err)
		assert.True(t, IsRandomSource(err))
		assert.ErrorIs(t, err, io.ErrUnexpectedEOF)
	})

	t.Run("failing source is a random source failure", func(t *testing.T) {
		_, err := NewSecret(failingReader{})
		require.Error(t, err)
		assert.True(t, IsRandomSource(err))
	})
}

func TestGenerator_CreateCommitment(t *testing.T) {
	ctx := context.Background()

	t.Run("stores the secret under its hash", func(t *testing.T) {
		s := store.NewInMemoryStore()
		g := NewGenerator(NewGeneratorOptions{Store: s})

		commitment, err := g.CreateCommitment(ctx)
		require.NoError(t, err)
		assert.Len(t, commitment, 2*sha256.Size)
		assert.Equal(t, strings.ToLower(commitment), commitment)

		secret, ok, err := s.TakeAndInvalidate(ctx, commitment)
		require.NoError(t, err)
		require.True(t, ok)
		assert.Len(t, secret, SecretSize)

		sum := sha256.Sum256(secret)
		assert.Equal(t, hex.EncodeToString(sum[:]), commitment)
	})

	t.Run("fresh secret per call", func(t *testing.T) {
		g := NewGenerator(NewGeneratorOptions{Store: store.NewInMemoryStore()})

		seen := map[string]bool{}
		for i := 0; i < 100; i++ {
			commitment, err := g.CreateCommitment(ctx)
			require.NoError(t, err)
			assert.False(t, seen[commitment])
			seen[commitment] = true
		}
	})

	t.Run("uses configured ttl", func(t *testing.T) {
		mockStore := mocks.NewStore(t)
		mockStore.On("Put", ctx, mock.AnythingOfType("string"), mock.AnythingOfType("[]uint8"), 5*time.Minute).Return(nil).Once()

		g := NewGenerator(NewGeneratorOptions{Store: mockStore, TTL: 5 * time.Minute})
		_, err := g.CreateCommitment(ctx)
		require.NoError(t, err)
	})

	t.Run("defaults to one hour", func(t *testing.T) {
		g := NewGenerator(NewGeneratorOptions{Store: store.NewInMemoryStore()})
		assert.Equal(t, time.Hour, g.TTL())
	})

	t.Run("random source failure stores nothing", func(t *testing.T) {
		mockStore := mocks.NewStore(t)
		g := NewGenerator(NewGeneratorOptions{Store: mockStore, Random: failingReader{}})

		commitment, err := g.CreateCommitment(ctx)
		require.Error(t, err)
		assert.True(t, IsRandomSource(err))
		assert.Empty(t, commitment)
		mockStore.AssertNotCalled(t, "Put", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
	})

	t.Run("store failure is surfaced", func(t *testing.T) {
		mockStore := mocks.NewStore(t)
		mockStore.On("Put", ctx, mock.Anything, mock.Anything, DefaultTTL).
			Return(&store.UnavailableError{Op: "put", Err: errors.New("connection reset")}).Once()

		g := NewGenerator(NewGeneratorOptions{Store: mockStore})
		_, err := g.CreateCommitment(ctx)
		require.Error(t, err)
		assert.True(t, store.IsUnavailable(err))
		assert.False(t, IsRandomSource(err))
	})
}
