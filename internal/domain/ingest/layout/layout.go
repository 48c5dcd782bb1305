// Package layout reconstructs transaction rows from position-tagged PDF text
// tokens. PDFs carry no table structure: tokens are clustered into visual
// rows by vertical proximity, then assigned to columns either by detected
// header anchors or by a layout-agnostic first-date/last-money fallback.
package layout

import (
	"context"
	"math"
	"regexp"
	"sort"
	"strings"

	"golang.org/x/sync/errgroup"

	"github.com/FACorreiaa/statement-ledger/internal/domain/ingest"
	"github.com/FACorreiaa/statement-ledger/internal/domain/ingest/normalizer"
)

// Token is one absolutely-positioned text fragment from a PDF text layer.
type Token struct {
	Text   string
	X      float64
	Y      float64
	Height float64
	Page   int
}

// Config tunes row clustering and section detection.
type Config struct {
	// LineSpacingMultiplier scales token height into the vertical tolerance
	// used for row clustering. Proportional to font size on purpose: source
	// PDFs vary widely in type size.
	LineSpacingMultiplier float64

	// MergeMultiline folds date-less rows into the previous row's
	// description instead of dropping them.
	MergeMultiline bool

	// SectionKeywords maps a section tag to the header phrases that open it.
	SectionKeywords map[ingest.SectionTag][]string

	// IgnorePatterns drops matching rows before column assignment.
	IgnorePatterns []string
}

// DefaultConfig returns the tuning used for common bank statements.
func DefaultConfig() Config {
	return Config{
		LineSpacingMultiplier: 0.7,
		MergeMultiline:        true,
		SectionKeywords: map[ingest.SectionTag][]string{
			ingest.SectionCredits: {"deposits", "deposits and additions", "credits", "additions"},
			ingest.SectionDebits:  {"withdrawals", "debits", "purchases", "electronic withdrawals", "card activity"},
			ingest.SectionFees:    {"fees", "service charges", "fees and charges"},
			ingest.SectionChecks:  {"checks", "checks paid", "cheques"},
		},
		IgnorePatterns: []string{
			`(?i)opening balance`,
			`(?i)closing balance`,
			`(?i)beginning balance`,
			`(?i)ending balance`,
			`(?i)balance forward`,
			`(?i)continued on next page`,
			`(?i)^page \d+( of \d+)?$`,
			`^\d{1,3}$`,
		},
	}
}

// Row is one visual line of tokens, ordered left to right.
type Row struct {
	Page   int
	Y      float64
	Tokens []Token
}

// Text joins the row's token texts left to right.
func (r Row) Text() string {
	parts := make([]string, len(r.Tokens))
	for i, t := range r.Tokens {
		parts[i] = t.Text
	}
	return strings.Join(parts, " ")
}

// Header keyword families for layout detection, each anchoring one logical
// column.
var anchorFields = map[string][]string{
	"date":        {"date", "posted", "trans date"},
	"description": {"description", "details", "payee", "merchant", "transaction", "activity"},
	"debit":       {"debit", "withdrawal", "withdrawals", "paid out"},
	"credit":      {"credit", "deposit", "deposits", "paid in"},
	"amount":      {"amount"},
	"balance":     {"balance"},
}

type anchor struct {
	field string
	x     float64
}

// Reconstructor converts PDF tokens into transaction-shaped raw rows.
type Reconstructor struct {
	cfg       Config
	ignoreRes []*regexp.Regexp
}

// New builds a reconstructor, compiling the configured ignore patterns.
func New(cfg Config) *Reconstructor {
	res := make([]*regexp.Regexp, 0, len(cfg.IgnorePatterns))
	for _, pat := range cfg.IgnorePatterns {
		if re, err := regexp.Compile(pat); err == nil {
			res = append(res, re)
		}
	}
	return &Reconstructor{cfg: cfg, ignoreRes: res}
}

// Reconstruct clusters tokens into rows page by page (pages in parallel,
// results concatenated in page order) and extracts transaction-shaped rows.
func (r *Reconstructor) Reconstruct(ctx context.Context, tokens []Token) ([]ingest.RawRow, error) {
	if len(tokens) == 0 {
		return nil, nil
	}

	pages := splitPages(tokens)
	clustered := make([][]Row, len(pages))

	g, _ := errgroup.WithContext(ctx)
	for i := range pages {
		g.Go(func() error {
			clustered[i] = r.clusterPage(pages[i])
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	var rows []Row
	for _, pageRows := range clustered {
		rows = append(rows, pageRows...)
	}

	anchors := r.detectAnchors(rows)
	candidates := r.extractRows(rows, anchors)
	return r.mergeMultiline(candidates), nil
}

// clusterPage groups one page's tokens into visual rows. Tokens are sorted
// top-to-bottom then left-to-right; a token joins the current row while its
// vertical distance stays inside a tolerance proportional to token height.
func (r *Reconstructor) clusterPage(tokens []Token) []Row {
	sorted := make([]Token, len(tokens))
	copy(sorted, tokens)
	sort.SliceStable(sorted, func(i, j int) bool {
		if sorted[i].Y != sorted[j].Y {
			return sorted[i].Y > sorted[j].Y
		}
		return sorted[i].X < sorted[j].X
	})

	var rows []Row
	for _, tok := range sorted {
		if len(rows) > 0 {
			current := &rows[len(rows)-1]
			tolerance := math.Max(tok.Height, rowHeight(*current)) * r.cfg.LineSpacingMultiplier
			if tolerance <= 0 {
				tolerance = 2
			}
			if math.Abs(current.Y-tok.Y) <= tolerance {
				current.Tokens = append(current.Tokens, tok)
				continue
			}
		}
		rows = append(rows, Row{Page: tok.Page, Y: tok.Y, Tokens: []Token{tok}})
	}

	for i := range rows {
		sort.SliceStable(rows[i].Tokens, func(a, b int) bool {
			return rows[i].Tokens[a].X < rows[i].Tokens[b].X
		})
	}
	return rows
}

func rowHeight(row Row) float64 {
	h := 0.0
	for _, t := range row.Tokens {
		if t.Height > h {
			h = t.Height
		}
	}
	return h
}

// detectAnchors scans rows for a header line carrying at least two column
// keywords at distinct x positions. Returns nil when no row qualifies, which
// selects the layout-agnostic fallback.
func (r *Reconstructor) detectAnchors(rows []Row) []anchor {
	var best []anchor
	for _, row := range rows {
		var found []anchor
		seen := map[string]bool{}
		for _, tok := range row.Tokens {
			lower := strings.ToLower(strings.TrimSpace(tok.Text))
			for field, keywords := range anchorFields {
				if seen[field] {
					continue
				}
				for _, kw := range keywords {
					if lower == kw || strings.Contains(lower, kw) {
						found = append(found, anchor{field: field, x: tok.X})
						seen[field] = true
						break
					}
				}
			}
		}
		if len(found) >= 2 && distinctX(found) && len(found) > len(best) {
			best = found
		}
	}
	return best
}

func distinctX(anchors []anchor) bool {
	for i := range anchors {
		for j := i + 1; j < len(anchors); j++ {
			if math.Abs(anchors[i].x-anchors[j].x) < 1 {
				return false
			}
		}
	}
	return true
}

// extractRows assigns tokens to columns and tags each row with the nearest
// preceding section header. Ignore-pattern rows are dropped here, before
// bucketing.
func (r *Reconstructor) extractRows(rows []Row, anchors []anchor) []ingest.RawRow {
	var out []ingest.RawRow
	section := ingest.SectionNone

	for i, row := range rows {
		text := strings.TrimSpace(row.Text())
		if text == "" || r.ignored(text) {
			continue
		}
		if tag, ok := r.sectionFor(row); ok {
			section = tag
			continue
		}
		if isHeaderRow(row) {
			continue
		}

		var raw ingest.RawRow
		if len(anchors) > 0 {
			raw = bucketByAnchor(row, anchors)
		} else {
			raw = fallbackExtract(row)
		}
		raw.Line = i + 1
		raw.Section = section
		out = append(out, raw)
	}
	return out
}

// sectionFor matches a row against the configured section headers. Section
// headers carry no money token of their own.
func (r *Reconstructor) sectionFor(row Row) (ingest.SectionTag, bool) {
	if hasMoneyToken(row) {
		return ingest.SectionNone, false
	}
	lower := strings.ToLower(row.Text())
	for tag, phrases := range r.cfg.SectionKeywords {
		for _, phrase := range phrases {
			if strings.Contains(lower, phrase) {
				return tag, true
			}
		}
	}
	return ingest.SectionNone, false
}

func (r *Reconstructor) ignored(text string) bool {
	for _, re := range r.ignoreRes {
		if re.MatchString(text) {
			return true
		}
	}
	return false
}

// isHeaderRow drops the column header line itself from data extraction.
func isHeaderRow(row Row) bool {
	if hasMoneyToken(row) || hasDateToken(row) {
		return false
	}
	matches := 0
	for _, tok := range row.Tokens {
		lower := strings.ToLower(strings.TrimSpace(tok.Text))
		for _, keywords := range anchorFields {
			for _, kw := range keywords {
				if lower == kw {
					matches++
				}
			}
		}
	}
	return matches >= 2
}

// bucketByAnchor assigns every token to the column anchor nearest in x.
// Description tokens concatenate left to right.
func bucketByAnchor(row Row, anchors []anchor) ingest.RawRow {
	var raw ingest.RawRow
	var descParts []string

	for _, tok := range row.Tokens {
		nearest := anchors[0]
		for _, a := range anchors[1:] {
			if math.Abs(tok.X-a.x) < math.Abs(tok.X-nearest.x) {
				nearest = a
			}
		}
		text := strings.TrimSpace(tok.Text)
		switch nearest.field {
		case "date":
			if raw.Date == "" {
				raw.Date = text
			} else {
				descParts = append(descParts, text)
			}
		case "debit":
			raw.Debit = text
		case "credit":
			raw.Credit = text
		case "amount":
			raw.Amount = text
		case "balance":
			raw.Balance = text
		default:
			descParts = append(descParts, text)
		}
	}
	raw.Description = strings.Join(descParts, " ")
	return raw
}

// fallbackExtract handles statements with no detectable column header: the
// first date-shaped token is the date, the last money-shaped token scanning
// right to left is the amount, everything else is description.
func fallbackExtract(row Row) ingest.RawRow {
	var raw ingest.RawRow
	dateIdx, amountIdx := -1, -1

	for i, tok := range row.Tokens {
		if normalizer.LooksLikeDate(tok.Text) {
			dateIdx = i
			raw.Date = strings.TrimSpace(tok.Text)
			break
		}
	}
	for i := len(row.Tokens) - 1; i >= 0; i-- {
		if i == dateIdx {
			continue
		}
		if normalizer.LooksLikeMoney(row.Tokens[i].Text) {
			amountIdx = i
			raw.Amount = strings.TrimSpace(row.Tokens[i].Text)
			break
		}
	}

	var descParts []string
	for i, tok := range row.Tokens {
		if i == dateIdx || i == amountIdx {
			continue
		}
		descParts = append(descParts, strings.TrimSpace(tok.Text))
	}
	raw.Description = strings.Join(descParts, " ")
	return raw
}

// mergeMultiline folds date-less rows into the previous row's description.
// Two-phase on purpose: candidates are immutable input, the merged list is a
// fresh build, so no in-place splicing during iteration.
//
// Ambiguity resolves toward merging: fabricating a spurious date-less
// transaction is worse than over-long descriptions.
func (r *Reconstructor) mergeMultiline(candidates []ingest.RawRow) []ingest.RawRow {
	if !r.cfg.MergeMultiline {
		return candidates
	}

	merged := make([]ingest.RawRow, 0, len(candidates))
	for _, row := range candidates {
		standalone := row.Date != "" && (row.Amount != "" || row.HasSplitColumns())
		if !standalone && row.Date == "" && len(merged) > 0 {
			prev := &merged[len(merged)-1]
			extra := strings.TrimSpace(strings.Join([]string{row.Description, row.Amount}, " "))
			if extra != "" {
				prev.Description = strings.TrimSpace(prev.Description + " " + extra)
			}
			continue
		}
		merged = append(merged, row)
	}
	return merged
}

func hasMoneyToken(row Row) bool {
	for _, tok := range row.Tokens {
		if normalizer.LooksLikeMoney(tok.Text) {
			return true
		}
	}
	return false
}

func hasDateToken(row Row) bool {
	for _, tok := range row.Tokens {
		if normalizer.LooksLikeDate(tok.Text) {
			return true
		}
	}
	return false
}

func splitPages(tokens []Token) [][]Token {
	byPage := map[int][]Token{}
	var order []int
	for _, t := range tokens {
		if _, ok := byPage[t.Page]; !ok {
			order = append(order, t.Page)
		}
		byPage[t.Page] = append(byPage[t.Page], t)
	}
	sort.Ints(order)

	pages := make([][]Token, 0, len(order))
	for _, p := range order {
		pages = append(pages, byPage[p])
	}
	return pages
}
