package resolution

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/blevesearch/bleve/v2"
	"github.com/blevesearch/bleve/v2/analysis/analyzer/keyword"
	"github.com/blevesearch/bleve/v2/analysis/analyzer/simple"
	"github.com/blevesearch/bleve/v2/mapping"
	"github.com/google/uuid"

	"github.com/FACorreiaa/statement-ledger/internal/domain/ledger"
)

// VendorDocument is the searchable projection of a vendor.
type VendorDocument struct {
	ID            string  `json:"id"`
	CanonicalName string  `json:"canonical_name"`
	Patterns      string  `json:"patterns"`
	GLAccountCode string  `json:"gl_account_code"`
	Weight        float64 `json:"weight"`
}

// VendorHit is one search result with its relevance score.
type VendorHit struct {
	VendorID      uuid.UUID
	CanonicalName string
	GLAccountCode string
	Score         float64
}

// VendorIndex narrows the candidate set for review tooling and for operator
// lookups. It is not a cascade stage: the cascade works from full in-memory
// matchers, the index answers "which vendors even resemble this string".
type VendorIndex struct {
	mu    sync.RWMutex
	index bleve.Index
	path  string
}

// NewVendorIndex creates a vendor search index. Empty path means in-memory.
func NewVendorIndex(path string) (*VendorIndex, error) {
	vi := &VendorIndex{path: path}

	var index bleve.Index
	var err error

	indexMapping := buildVendorMapping()
	if path == "" {
		index, err = bleve.NewMemOnly(indexMapping)
	} else if _, statErr := os.Stat(path); os.IsNotExist(statErr) {
		if mkdirErr := os.MkdirAll(filepath.Dir(path), 0o755); mkdirErr != nil {
			return nil, fmt.Errorf("create index directory: %w", mkdirErr)
		}
		index, err = bleve.New(path, indexMapping)
	} else {
		index, err = bleve.Open(path)
	}
	if err != nil {
		return nil, fmt.Errorf("open vendor index: %w", err)
	}

	vi.index = index
	return vi, nil
}

func buildVendorMapping() mapping.IndexMapping {
	textFieldMapping := bleve.NewTextFieldMapping()
	textFieldMapping.Analyzer = simple.Name

	keywordFieldMapping := bleve.NewTextFieldMapping()
	keywordFieldMapping.Analyzer = keyword.Name

	docMapping := bleve.NewDocumentMapping()
	docMapping.AddFieldMappingsAt("canonical_name", textFieldMapping)
	docMapping.AddFieldMappingsAt("patterns", textFieldMapping)
	docMapping.AddFieldMappingsAt("gl_account_code", keywordFieldMapping)
	docMapping.AddFieldMappingsAt("weight", bleve.NewNumericFieldMapping())

	indexMapping := bleve.NewIndexMapping()
	indexMapping.DefaultMapping = docMapping
	indexMapping.DefaultAnalyzer = simple.Name
	return indexMapping
}

// IndexVendors replaces the indexed documents for the given vendors.
func (vi *VendorIndex) IndexVendors(vendors []ledger.Vendor) error {
	vi.mu.Lock()
	defer vi.mu.Unlock()

	batch := vi.index.NewBatch()
	for _, v := range vendors {
		doc := VendorDocument{
			ID:            v.ID.String(),
			CanonicalName: v.CanonicalName,
			Patterns:      joinPatterns(v.Patterns),
			GLAccountCode: v.DefaultGLAccount,
			Weight:        v.Weight,
		}
		if err := batch.Index(doc.ID, doc); err != nil {
			return fmt.Errorf("index vendor %s: %w", v.ID, err)
		}
	}
	if err := vi.index.Batch(batch); err != nil {
		return fmt.Errorf("batch index vendors: %w", err)
	}
	return nil
}

// Search runs a fuzzy full-text query over vendor names and patterns.
func (vi *VendorIndex) Search(query string, limit int) ([]VendorHit, error) {
	vi.mu.RLock()
	defer vi.mu.RUnlock()

	if limit <= 0 {
		limit = 10
	}

	matchQuery := bleve.NewMatchQuery(query)
	matchQuery.SetFuzziness(1)

	req := bleve.NewSearchRequest(matchQuery)
	req.Size = limit
	req.Fields = []string{"canonical_name", "gl_account_code"}

	res, err := vi.index.Search(req)
	if err != nil {
		return nil, fmt.Errorf("vendor search: %w", err)
	}

	hits := make([]VendorHit, 0, len(res.Hits))
	for _, hit := range res.Hits {
		id, err := uuid.Parse(hit.ID)
		if err != nil {
			continue
		}
		h := VendorHit{VendorID: id, Score: hit.Score}
		if name, ok := hit.Fields["canonical_name"].(string); ok {
			h.CanonicalName = name
		}
		if code, ok := hit.Fields["gl_account_code"].(string); ok {
			h.GLAccountCode = code
		}
		hits = append(hits, h)
	}
	return hits, nil
}

// Delete removes one vendor from the index.
func (vi *VendorIndex) Delete(vendorID uuid.UUID) error {
	vi.mu.Lock()
	defer vi.mu.Unlock()
	return vi.index.Delete(vendorID.String())
}

// DocumentCount returns the number of indexed vendors.
func (vi *VendorIndex) DocumentCount() (uint64, error) {
	vi.mu.RLock()
	defer vi.mu.RUnlock()
	return vi.index.DocCount()
}

// Close closes the underlying index.
func (vi *VendorIndex) Close() error {
	vi.mu.Lock()
	defer vi.mu.Unlock()
	if vi.index != nil {
		return vi.index.Close()
	}
	return nil
}

func joinPatterns(patterns []string) string {
	out := ""
	for i, p := range patterns {
		if i > 0 {
			out += " "
		}
		out += p
	}
	return out
}
