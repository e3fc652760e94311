package workers

import (
	"context"
	"time"

	"github.com/cbodonnell/fairroll/pkg/log"
)

// Purger is the part of store.Store the expiry worker needs.
type Purger interface {
	PurgeExpired(ctx context.Context) (int, error)
}

type ExpiryWorker struct {
	store    Purger
	interval time.Duration
}

type NewExpiryWorkerOptions struct {
	Store    Purger
	Interval time.Duration
}

// NewExpiryWorker creates a new ExpiryWorker.
// The worker periodically deletes commitments whose TTL has elapsed so
// abandoned rounds do not accumulate in the store.
func NewExpiryWorker(opts NewExpiryWorkerOptions) *ExpiryWorker {
	return &ExpiryWorker{
		store:    opts.Store,
		interval: opts.Interval,
	}
}

// Start runs the sweep loop until ctx is done.
func (w *ExpiryWorker) Start(ctx context.Context) {
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			w.purge(ctx)
		}
	}
}

func (w *ExpiryWorker) purge(ctx context.Context) {
	purged, err := w.store.PurgeExpired(ctx)
	if err != nil {
		log.Error("Failed to purge expired commitments: %v", err)
		return
	}
	if purged > 0 {
		log.Debug("Purged %d expired commitments", purged)
	}
}
