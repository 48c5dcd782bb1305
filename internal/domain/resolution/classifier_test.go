package resolution

import (
	"context"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/FACorreiaa/statement-ledger/internal/domain/ledger"
)

// fakeClassifier answers from a fixed table and records the batches it saw.
type fakeClassifier struct {
	mu      sync.Mutex
	answers map[string]Suggestion
	err     error
	batches [][]string
}

func (f *fakeClassifier) Classify(_ context.Context, descriptions []string) ([]Suggestion, error) {
	f.mu.Lock()
	f.batches = append(f.batches, descriptions)
	f.mu.Unlock()

	if f.err != nil {
		return nil, f.err
	}
	var out []Suggestion
	for _, d := range descriptions {
		if s, ok := f.answers[d]; ok {
			out = append(out, s)
		}
	}
	return out, nil
}

func TestBatchClassifier_ClassifyAll(t *testing.T) {
	ctx := context.Background()

	t.Run("splits into fixed chunks", func(t *testing.T) {
		fake := &fakeClassifier{answers: map[string]Suggestion{}}
		descriptions := make([]string, 60)
		for i := range descriptions {
			d := string(rune('A'+i%26)) + " MERCHANT"
			descriptions[i] = d
			fake.answers[d] = Suggestion{Description: d, VendorName: "V", GLAccountCode: "6000", Confidence: 0.6}
		}

		bc := NewBatchClassifier(fake, nil, 1, discardLogger())
		results, failures, err := bc.ClassifyAll(ctx, descriptions)
		require.NoError(t, err)
		assert.Zero(t, failures)

		require.Len(t, fake.batches, 3)
		assert.Len(t, fake.batches[0], 25)
		assert.Len(t, fake.batches[1], 25)
		assert.Len(t, fake.batches[2], 10)
		assert.Len(t, results, 26)
	})

	t.Run("hard failure skips remaining chunks", func(t *testing.T) {
		fake := &fakeClassifier{err: ErrClassifierUnavailable}
		descriptions := make([]string, 60)
		for i := range descriptions {
			descriptions[i] = "X"
		}

		bc := NewBatchClassifier(fake, nil, 1, discardLogger())
		results, failures, err := bc.ClassifyAll(ctx, descriptions)
		require.NoError(t, err)

		assert.Empty(t, results)
		assert.Equal(t, 1, failures)
		assert.Len(t, fake.batches, 1)
	})

	t.Run("unusable suggestions filtered", func(t *testing.T) {
		fake := &fakeClassifier{answers: map[string]Suggestion{
			"A": {Description: "A", VendorName: "", Confidence: 0.9},
			"B": {Description: "B", VendorName: "Beta", Confidence: 0},
			"C": {Description: "C", VendorName: "Gamma", GLAccountCode: "6100", Confidence: 0.8},
		}}

		bc := NewBatchClassifier(fake, nil, 1, discardLogger())
		results, failures, err := bc.ClassifyAll(ctx, []string{"A", "B", "C"})
		require.NoError(t, err)
		assert.Zero(t, failures)

		require.Len(t, results, 1)
		assert.Equal(t, "Gamma", results["C"].VendorName)
	})

	t.Run("no descriptions", func(t *testing.T) {
		bc := NewBatchClassifier(&fakeClassifier{}, nil, 1, discardLogger())
		results, failures, err := bc.ClassifyAll(ctx, nil)
		require.NoError(t, err)
		assert.Nil(t, results)
		assert.Zero(t, failures)
	})
}

func TestSuggestionToMatch(t *testing.T) {
	s := Suggestion{Description: "D", VendorName: "Vendor", GLAccountCode: "6100", Confidence: 0.7}
	m := s.ToMatch()

	assert.Equal(t, "Vendor", m.VendorName)
	assert.Equal(t, "6100", m.GLAccountCode)
	assert.Equal(t, 0.7, m.Confidence)
	assert.Equal(t, uuid.Nil, m.VendorID)
	assert.Equal(t, ledger.StrategyExternal, m.Strategy)
}
