package resolution

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"sync/atomic"

	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"github.com/FACorreiaa/statement-ledger/internal/domain/ledger"
)

// classifierChunkSize bounds one external request. Small enough that a lost
// response loses little work, large enough to amortize round trips.
const classifierChunkSize = 25

// ErrClassifierUnavailable means the external classifier cannot be reached
// at all, as opposed to failing on specific descriptions.
var ErrClassifierUnavailable = errors.New("external classifier unavailable")

// Suggestion is one external classification answer.
type Suggestion struct {
	Description   string
	VendorName    string
	GLAccountCode string
	Confidence    float64
}

// ExternalClassifier suggests vendors for descriptions no local stage could
// resolve. Implementations must be safe for concurrent use.
type ExternalClassifier interface {
	Classify(ctx context.Context, descriptions []string) ([]Suggestion, error)
}

// NoopClassifier satisfies the interface while always declining. Used when
// no external service is configured.
type NoopClassifier struct{}

func (NoopClassifier) Classify(_ context.Context, _ []string) ([]Suggestion, error) {
	return nil, nil
}

// BatchClassifier fans descriptions out to an external classifier in fixed
// chunks. Each chunk commits atomically: a chunk either yields all its
// suggestions or none. After the first hard failure remaining chunks are
// skipped cooperatively, so one outage does not burn the whole rate budget.
type BatchClassifier struct {
	classifier ExternalClassifier
	limiter    *rate.Limiter
	workers    int
	logger     *slog.Logger
}

// NewBatchClassifier wraps an external classifier with chunking, rate
// limiting and bounded parallelism.
func NewBatchClassifier(classifier ExternalClassifier, limiter *rate.Limiter, workers int, logger *slog.Logger) *BatchClassifier {
	if workers <= 0 {
		workers = 2
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &BatchClassifier{
		classifier: classifier,
		limiter:    limiter,
		workers:    workers,
		logger:     logger,
	}
}

// ClassifyAll classifies every description, returning suggestions keyed by
// description and the number of chunks that failed. Partial results are
// normal operation, not an error: the cascade sends unanswered descriptions
// to suspense.
func (bc *BatchClassifier) ClassifyAll(ctx context.Context, descriptions []string) (map[string]Suggestion, int, error) {
	if len(descriptions) == 0 {
		return nil, 0, nil
	}

	chunks := chunk(descriptions, classifierChunkSize)

	var mu sync.Mutex
	results := make(map[string]Suggestion, len(descriptions))
	var failures atomic.Int32
	var aborted atomic.Bool

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(bc.workers)

	for _, batch := range chunks {
		g.Go(func() error {
			if aborted.Load() {
				return nil
			}
			if bc.limiter != nil {
				if err := bc.limiter.Wait(gctx); err != nil {
					return err
				}
			}

			suggestions, err := bc.classifier.Classify(gctx, batch)
			if err != nil {
				failures.Add(1)
				if errors.Is(err, ErrClassifierUnavailable) || gctx.Err() != nil {
					aborted.Store(true)
				}
				bc.logger.Warn("classifier chunk failed",
					slog.Int("chunk_size", len(batch)),
					slog.String("error", err.Error()))
				return nil
			}

			mu.Lock()
			for _, s := range suggestions {
				if s.VendorName == "" || s.Confidence <= 0 {
					continue
				}
				results[s.Description] = s
			}
			mu.Unlock()
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return results, int(failures.Load()), err
	}
	return results, int(failures.Load()), nil
}

// ToMatch converts a suggestion into a cascade match. The vendor identity
// stays empty until the suggestion is folded into the vendor book; the
// cascade fills it when a learner is wired.
func (s Suggestion) ToMatch() *Match {
	return &Match{
		VendorName:    s.VendorName,
		GLAccountCode: s.GLAccountCode,
		Confidence:    s.Confidence,
		Strategy:      ledger.StrategyExternal,
	}
}

func chunk(items []string, size int) [][]string {
	var out [][]string
	for len(items) > size {
		out = append(out, items[:size])
		items = items[size:]
	}
	if len(items) > 0 {
		out = append(out, items)
	}
	return out
}
