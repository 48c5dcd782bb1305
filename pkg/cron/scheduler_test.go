package cron

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/FACorreiaa/statement-ledger/internal/domain/learning"
	"github.com/FACorreiaa/statement-ledger/internal/domain/ledger"
)

type recordingRebuilder struct {
	done    chan struct{}
	vendors []ledger.Vendor
}

func (r *recordingRebuilder) Rebuild(vendors []ledger.Vendor, _ []ledger.LearnedPattern) {
	r.vendors = vendors
	close(r.done)
}

type recordingRetrier struct {
	done     chan struct{}
	resolved int
}

func (r *recordingRetrier) RetrySuspense(context.Context) (int, error) {
	close(r.done)
	return r.resolved, nil
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestScheduler_RunNow(t *testing.T) {
	logger := discardLogger()
	store := learning.NewStore([]ledger.Vendor{
		{ID: uuid.New(), CanonicalName: "Starbucks"},
	}, nil, nil, logger)

	rebuilder := &recordingRebuilder{done: make(chan struct{})}
	retrier := &recordingRetrier{done: make(chan struct{}), resolved: 2}

	s := NewScheduler(store, []MatcherRebuilder{rebuilder}, retrier, logger)
	s.RunNow()

	select {
	case <-rebuilder.done:
	case <-time.After(2 * time.Second):
		t.Fatal("matcher rebuild never ran")
	}
	select {
	case <-retrier.done:
	case <-time.After(2 * time.Second):
		t.Fatal("suspense retry never ran")
	}
	assert.Len(t, rebuilder.vendors, 1)
}

func TestScheduler_StartStop(t *testing.T) {
	logger := discardLogger()
	store := learning.NewStore(nil, nil, nil, logger)

	s := NewScheduler(store, nil, nil, logger)
	require.NoError(t, s.Start())

	ctx := s.Stop()
	select {
	case <-ctx.Done():
	case <-time.After(2 * time.Second):
		t.Fatal("scheduler did not stop")
	}
}
