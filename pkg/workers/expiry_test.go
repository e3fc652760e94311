package workers

import (
	"context"
	"errors"
	"testing"
	"time"

	mocks "github.com/cbodonnell/fairroll/mocks/github.com/cbodonnell/fairroll/pkg/store"
	"github.com/cbodonnell/fairroll/pkg/store"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func TestExpiryWorker_purgesUntilCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())

	mockStore := mocks.NewStore(t)
	calls := make(chan struct{}, 1)
	notify := func(args mock.Arguments) {
		select {
		case calls <- struct{}{}:
		default:
		}
	}
	mockStore.On("PurgeExpired", mock.Anything).Return(3, nil).Run(notify).Times(2)
	mockStore.On("PurgeExpired", mock.Anything).Return(0, errors.New("store down")).Run(notify).Maybe()

	w := NewExpiryWorker(NewExpiryWorkerOptions{Store: mockStore, Interval: time.Millisecond})
	done := make(chan struct{})
	go func() {
		w.Start(ctx)
		close(done)
	}()

	for i := 0; i < 3; i++ {
		select {
		case <-calls:
		case <-time.After(5 * time.Second):
			t.Fatal("worker did not purge")
		}
	}
	cancel()

	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("worker did not stop")
	}
}

func TestExpiryWorker_boundsInMemoryStore(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	s := store.NewInMemoryStore()
	require.NoError(t, s.Put(ctx, "abandoned", []byte("secret"), time.Millisecond))
	require.NoError(t, s.Put(ctx, "live", []byte("secret"), time.Hour))

	go NewExpiryWorker(NewExpiryWorkerOptions{Store: s, Interval: 5 * time.Millisecond}).Start(ctx)

	assert.Eventually(t, func() bool { return s.Len() == 1 }, 5*time.Second, 5*time.Millisecond)

	_, ok, err := s.TakeAndInvalidate(ctx, "live")
	require.NoError(t, err)
	assert.True(t, ok)
}
