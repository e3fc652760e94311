package client

import (
	"context"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/cbodonnell/fairroll/pkg/commitment"
	"github.com/cbodonnell/fairroll/pkg/network"
	"github.com/cbodonnell/fairroll/pkg/round"
	"github.com/cbodonnell/fairroll/pkg/store"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWSClient_commitAndPlay(t *testing.T) {
	s := store.NewInMemoryStore()
	srv := httptest.NewServer(network.NewWSServer(network.NewWSServerOptions{
		Generator: commitment.NewGenerator(commitment.NewGeneratorOptions{Store: s}),
		Resolver:  round.NewResolver(s),
	}))
	defer srv.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	c, err := Dial(ctx, "ws://"+strings.TrimPrefix(srv.URL, "http://")+"/ws")
	require.NoError(t, err)
	defer c.Close()

	hash, err := c.Commit(ctx)
	require.NoError(t, err)

	record, err := c.Play(ctx, hash, "client")
	require.NoError(t, err)
	assert.Equal(t, hash, record.CommitmentHash)

	_, err = c.Play(ctx, hash, "client")
	require.Error(t, err)
	assert.True(t, IsNotFound(err))
}
