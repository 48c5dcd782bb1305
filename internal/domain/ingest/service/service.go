// Package service orchestrates statement ingestion: format detection,
// extraction, normalization, assembly, resolution and persistence.
package service

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/FACorreiaa/statement-ledger/internal/domain/ingest"
	"github.com/FACorreiaa/statement-ledger/internal/domain/ingest/assembler"
	"github.com/FACorreiaa/statement-ledger/internal/domain/ingest/layout"
	"github.com/FACorreiaa/statement-ledger/internal/domain/ingest/normalizer"
	"github.com/FACorreiaa/statement-ledger/internal/domain/ingest/parser"
	"github.com/FACorreiaa/statement-ledger/internal/domain/ingest/sniffer"
	"github.com/FACorreiaa/statement-ledger/internal/domain/ledger"
	"github.com/FACorreiaa/statement-ledger/internal/domain/resolution"
	"github.com/FACorreiaa/statement-ledger/internal/observability"
	"github.com/FACorreiaa/statement-ledger/pkg/storage"
)

var (
	ErrUnsupportedFormat = errors.New("unsupported file format")
	ErrNoTokenExtractor  = errors.New("no PDF token extractor configured")
)

// Format is the detected source file format.
type Format string

const (
	FormatDelimited Format = "delimited"
	FormatExcel     Format = "excel"
	FormatPDF       Format = "pdf"
)

// TokenExtractor produces positioned text tokens from a PDF. Pluggable: the
// binary wires a concrete extractor, tests use fixtures.
type TokenExtractor interface {
	Extract(ctx context.Context, data []byte) ([]layout.Token, error)
}

// Resolver runs the vendor resolution cascade over assembled transactions.
type Resolver interface {
	Resolve(ctx context.Context, txs []ledger.Transaction) ([]ledger.Transaction, resolution.Outcome, error)
}

// Analysis is the result of inspecting a file without importing it.
type Analysis struct {
	Format       Format
	Header       *sniffer.HeaderResult
	MappingFound bool
	Mapping      *StoredMapping
}

// ImportRequest carries one import call.
type ImportRequest struct {
	Account  ledger.BankAccount
	Filename string
	FileData []byte

	// Overrides; zero values mean "use what detection found".
	EuropeanFormat *bool
	DateFormat     string
	SkipDuplicates bool
}

// ImportResult is the outcome of one import.
type ImportResult struct {
	JobID        uuid.UUID
	Format       Format
	Transactions []ledger.Transaction
	Diagnostics  ledger.ImportDiagnostics
	Resolution   resolution.Outcome
	Insights     *Insights
}

// Service wires the ingestion stages together.
type Service struct {
	repo      Repository
	resolver  Resolver
	extractor TokenExtractor
	archive   storage.Archive
	layout    *layout.Reconstructor
	parser    *parser.Parser
	metrics   *observability.Metrics
	logger    *slog.Logger
}

// New creates the ingestion service. resolver, extractor and metrics are
// optional; a nil resolver leaves every transaction in suspense-free
// unattributed state for later batch resolution.
func New(repo Repository, resolver Resolver, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		repo:     repo,
		resolver: resolver,
		layout:   layout.New(layout.DefaultConfig()),
		parser:   parser.New(parser.Config{}),
		logger:   logger,
	}
}

// WithTokenExtractor adds PDF support.
func (s *Service) WithTokenExtractor(extractor TokenExtractor) *Service {
	s.extractor = extractor
	return s
}

// WithArchive keeps a copy of every imported source document.
func (s *Service) WithArchive(a storage.Archive) *Service {
	s.archive = a
	return s
}

// WithMetrics adds Prometheus instrumentation.
func (s *Service) WithMetrics(m *observability.Metrics) *Service {
	s.metrics = m
	return s
}

// WithLayoutConfig overrides the PDF reconstruction tuning.
func (s *Service) WithLayoutConfig(cfg layout.Config) *Service {
	s.layout = layout.New(cfg)
	return s
}

// DetectFormat sniffs the file's magic bytes.
func DetectFormat(data []byte) Format {
	switch {
	case bytes.HasPrefix(data, []byte("%PDF")):
		return FormatPDF
	case bytes.HasPrefix(data, []byte("PK\x03\x04")):
		return FormatExcel
	default:
		return FormatDelimited
	}
}

// Analyze inspects a file and reports its structure plus any stored mapping
// for the same header fingerprint. No transactions are created.
func (s *Service) Analyze(ctx context.Context, data []byte) (*Analysis, error) {
	format := DetectFormat(data)
	analysis := &Analysis{Format: format}

	delimited := data
	switch format {
	case FormatPDF:
		return analysis, nil
	case FormatExcel:
		flat, err := parser.ExcelToDelimited(bytes.NewReader(data))
		if err != nil {
			return nil, fmt.Errorf("analyze workbook: %w", err)
		}
		delimited = flat
	}

	header, err := sniffer.Detect(delimited)
	if err != nil {
		return nil, fmt.Errorf("analyze file: %w", err)
	}
	analysis.Header = header

	if s.repo != nil {
		mapping, err := s.repo.GetMappingByFingerprint(ctx, header.Fingerprint)
		if err != nil {
			return nil, fmt.Errorf("lookup mapping: %w", err)
		}
		analysis.Mapping = mapping
		analysis.MappingFound = mapping != nil
	}
	return analysis, nil
}

// Import runs the whole pipeline for one file and persists the result.
func (s *Service) Import(ctx context.Context, req ImportRequest) (*ImportResult, error) {
	start := time.Now()
	format := DetectFormat(req.FileData)

	rows, header, err := s.extractRows(ctx, format, req.FileData)
	if err != nil {
		return nil, err
	}

	opts := s.assemblyOptions(req, header, rows)
	assembled := assembler.Assemble(rows, opts)

	result := &ImportResult{
		JobID:        uuid.New(),
		Format:       format,
		Transactions: assembled.Transactions,
		Diagnostics:  assembled.Diagnostics,
	}

	if s.resolver != nil && len(result.Transactions) > 0 {
		resolved, outcome, err := s.resolver.Resolve(ctx, result.Transactions)
		if err != nil {
			return nil, fmt.Errorf("resolve vendors: %w", err)
		}
		result.Transactions = resolved
		result.Resolution = outcome
		result.Diagnostics.ClassifierFailures = outcome.ClassifierFailures
	}

	if s.repo != nil {
		if err := s.persist(ctx, req, header, result); err != nil {
			return nil, err
		}
	}

	if s.archive != nil {
		s.archiveSource(ctx, req, result)
	}

	result.Insights = computeInsights(result.JobID, req.Account, result.Transactions, result.Diagnostics)
	s.observe(format, result, time.Since(start))

	s.logger.Info("import finished",
		slog.String("job_id", result.JobID.String()),
		slog.String("format", string(format)),
		slog.Int("rows_total", result.Diagnostics.RowsTotal),
		slog.Int("transactions", len(result.Transactions)),
		slog.Int("rows_dropped", result.Diagnostics.RowsDropped))
	return result, nil
}

// extractRows produces raw rows from any supported format. Structural
// failures (no header, empty file, unreadable workbook) abort the import;
// row-level failures surface later as diagnostics.
func (s *Service) extractRows(ctx context.Context, format Format, data []byte) ([]ingest.RawRow, *sniffer.HeaderResult, error) {
	switch format {
	case FormatPDF:
		if s.extractor == nil {
			return nil, nil, ErrNoTokenExtractor
		}
		tokens, err := s.extractor.Extract(ctx, data)
		if err != nil {
			return nil, nil, fmt.Errorf("extract pdf tokens: %w", err)
		}
		rows, err := s.layout.Reconstruct(ctx, tokens)
		if err != nil {
			return nil, nil, fmt.Errorf("reconstruct layout: %w", err)
		}
		return rows, nil, nil

	case FormatExcel:
		flat, err := parser.ExcelToDelimited(bytes.NewReader(data))
		if err != nil {
			return nil, nil, fmt.Errorf("read workbook: %w", err)
		}
		return s.extractDelimited(ctx, flat)

	case FormatDelimited:
		return s.extractDelimited(ctx, data)

	default:
		return nil, nil, ErrUnsupportedFormat
	}
}

func (s *Service) extractDelimited(ctx context.Context, data []byte) ([]ingest.RawRow, *sniffer.HeaderResult, error) {
	header, err := sniffer.Detect(data)
	if err != nil {
		// No validated header. A tagged layout can still parse by column
		// name, for exports whose money headers the sniffer does not know.
		if rows, taggedErr := s.parser.ParseTagged(bytes.NewReader(data)); taggedErr == nil {
			return rows, nil, nil
		}
		return nil, nil, fmt.Errorf("detect header: %w", err)
	}

	s.applyStoredMapping(ctx, header)

	rows, err := s.parser.ParsePositional(data, *header)
	if err != nil {
		if errors.Is(err, parser.ErrNoRows) && header.HeaderRow == 0 {
			tagged := parser.New(parser.Config{Delimiter: header.Delimiter})
			if rows, taggedErr := tagged.ParseTagged(bytes.NewReader(data)); taggedErr == nil {
				return rows, header, nil
			}
		}
		return nil, nil, fmt.Errorf("parse rows: %w", err)
	}
	return rows, header, nil
}

// applyStoredMapping overrides detection with the remembered layout for the
// same header fingerprint. Operator corrections to a bank's dialect survive
// re-imports this way.
func (s *Service) applyStoredMapping(ctx context.Context, header *sniffer.HeaderResult) {
	if s.repo == nil {
		return
	}
	mapping, err := s.repo.GetMappingByFingerprint(ctx, header.Fingerprint)
	if err != nil {
		s.logger.Warn("mapping lookup failed",
			slog.String("fingerprint", header.Fingerprint),
			slog.String("error", err.Error()))
		return
	}
	if mapping == nil {
		return
	}

	if mapping.Delimiter != "" {
		header.Delimiter = rune(mapping.Delimiter[0])
	}
	header.HeaderRow = mapping.HeaderRow
	header.Columns = mapping.Columns
	header.Dialect.IsEuropeanFormat = mapping.IsEuropeanFormat
	if mapping.DateFormat != "" {
		header.Dialect.DateFormat = mapping.DateFormat
	}
	s.logger.Debug("stored mapping applied",
		slog.String("fingerprint", header.Fingerprint))
}

// assemblyOptions folds detection, stored dialect and caller overrides into
// assembler options. Liability handling: a confirmed account type is final;
// otherwise the sample-based detector guesses from the data.
func (s *Service) assemblyOptions(req ImportRequest, header *sniffer.HeaderResult, rows []ingest.RawRow) assembler.Options {
	opts := assembler.Options{
		AccountID:      req.Account.ID,
		SkipDuplicates: req.SkipDuplicates,
		DateFormat:     req.DateFormat,
	}

	if header != nil {
		opts.EuropeanFormat = header.Dialect.IsEuropeanFormat
		if opts.DateFormat == "" {
			opts.DateFormat = header.Dialect.DateFormat
		}
	}
	if req.EuropeanFormat != nil {
		opts.EuropeanFormat = *req.EuropeanFormat
	}

	if req.Account.TypeConfirmed {
		opts.IsLiability = req.Account.IsLiability()
	} else if req.Account.IsLiability() {
		opts.IsLiability = true
	} else {
		opts.IsLiability = normalizer.DetectLiability(rows, opts.EuropeanFormat)
	}
	return opts
}

func (s *Service) persist(ctx context.Context, req ImportRequest, header *sniffer.HeaderResult, result *ImportResult) error {
	if err := s.repo.SaveTransactions(ctx, result.JobID, result.Transactions); err != nil {
		return fmt.Errorf("persist transactions: %w", err)
	}
	if len(result.Resolution.Audit) > 0 {
		if err := s.repo.SaveAudit(ctx, result.Resolution.Audit); err != nil {
			return fmt.Errorf("persist audit: %w", err)
		}
	}
	if header != nil {
		mapping := &StoredMapping{
			Fingerprint:      header.Fingerprint,
			Delimiter:        string(header.Delimiter),
			HeaderRow:        header.HeaderRow,
			Columns:          header.Columns,
			IsEuropeanFormat: header.Dialect.IsEuropeanFormat,
			DateFormat:       header.Dialect.DateFormat,
		}
		if err := s.repo.SaveMapping(ctx, mapping); err != nil {
			return fmt.Errorf("persist mapping: %w", err)
		}
	}
	return nil
}

// RetrySuspense re-runs the cascade over stored suspense bookings, picking up
// whatever the matchers learned since the original import. Returns how many
// bookings resolved this pass. The cron scheduler calls this nightly.
func (s *Service) RetrySuspense(ctx context.Context) (int, error) {
	if s.repo == nil || s.resolver == nil {
		return 0, nil
	}

	pending, err := s.repo.ListSuspense(ctx)
	if err != nil {
		return 0, fmt.Errorf("list suspense: %w", err)
	}
	if len(pending) == 0 {
		return 0, nil
	}

	resolved, outcome, err := s.resolver.Resolve(ctx, pending)
	if err != nil {
		return 0, fmt.Errorf("retry suspense: %w", err)
	}

	updated := make([]ledger.Transaction, 0, outcome.Resolved)
	for i := range resolved {
		if resolved[i].Resolved() {
			updated = append(updated, resolved[i])
		}
	}
	if len(updated) == 0 {
		return 0, nil
	}

	if err := s.repo.UpdateResolutions(ctx, updated); err != nil {
		return 0, fmt.Errorf("persist retried resolutions: %w", err)
	}
	if len(outcome.Audit) > 0 {
		if err := s.repo.SaveAudit(ctx, outcome.Audit); err != nil {
			return 0, fmt.Errorf("persist audit: %w", err)
		}
	}

	if s.metrics != nil {
		for i := range updated {
			s.metrics.ResolutionsTotal.WithLabelValues(string(updated[i].SourceStrategy)).Inc()
		}
	}
	s.logger.Info("suspense retry finished",
		slog.Int("pending", len(pending)),
		slog.Int("resolved", len(updated)))
	return len(updated), nil
}

// archiveSource files the original document away. Archive failures never
// fail the import; the bookings are already persisted.
func (s *Service) archiveSource(ctx context.Context, req ImportRequest, result *ImportResult) {
	meta := storage.StatementFile{
		JobID:     result.JobID,
		AccountID: req.Account.ID,
		Name:      req.Filename,
		Format:    string(result.Format),
	}
	if _, err := s.archive.Store(ctx, meta, bytes.NewReader(req.FileData)); err != nil {
		s.logger.Warn("archive statement failed",
			slog.String("job_id", result.JobID.String()),
			slog.String("error", err.Error()))
	}
}

func (s *Service) observe(format Format, result *ImportResult, elapsed time.Duration) {
	if s.metrics == nil {
		return
	}
	s.metrics.ImportsTotal.WithLabelValues(string(format)).Inc()
	s.metrics.RowsProcessed.Add(float64(result.Diagnostics.RowsTotal))
	s.metrics.RowsDropped.Add(float64(result.Diagnostics.RowsDropped))
	s.metrics.DuplicatesSkipped.Add(float64(result.Diagnostics.DuplicatesSkipped))
	s.metrics.ClassifierFailures.Add(float64(result.Diagnostics.ClassifierFailures))
	s.metrics.SuspenseTotal.Add(float64(result.Resolution.Suspense))
	for _, tx := range result.Transactions {
		if tx.SourceStrategy != "" {
			s.metrics.ResolutionsTotal.WithLabelValues(string(tx.SourceStrategy)).Inc()
		}
	}
	s.metrics.ImportDuration.Observe(elapsed.Seconds())
}
