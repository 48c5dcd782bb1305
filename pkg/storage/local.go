package storage

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
)

// LocalArchive implements Archive on the local filesystem. Documents live
// under basePath/<account>/<job>_<name>; metadata lives in a .meta sidecar
// directory per account.
type LocalArchive struct {
	basePath string
}

// NewLocalArchive creates a filesystem archive rooted at basePath.
func NewLocalArchive(basePath string) (*LocalArchive, error) {
	if err := os.MkdirAll(basePath, 0755); err != nil {
		return nil, fmt.Errorf("create archive directory: %w", err)
	}
	return &LocalArchive{basePath: basePath}, nil
}

// Store writes the document and its metadata sidecar.
func (a *LocalArchive) Store(_ context.Context, file StatementFile, r io.Reader) (*StatementFile, error) {
	if file.JobID == uuid.Nil {
		file.JobID = uuid.New()
	}
	if file.Name == "" {
		file.Name = "statement"
	}

	accountDir := filepath.Join(a.basePath, file.AccountID.String())
	if err := os.MkdirAll(accountDir, 0755); err != nil {
		return nil, fmt.Errorf("create account directory: %w", err)
	}

	file.Path = fmt.Sprintf("%s_%s", file.JobID.String()[:8], sanitizeFilename(file.Name))
	dataPath := filepath.Join(accountDir, file.Path)

	f, err := os.Create(dataPath)
	if err != nil {
		return nil, fmt.Errorf("create archive file: %w", err)
	}
	defer f.Close()

	size, err := io.Copy(f, r)
	if err != nil {
		os.Remove(dataPath)
		return nil, fmt.Errorf("write archive file: %w", err)
	}
	file.Size = size
	file.StoredAt = time.Now().UTC()

	if err := a.saveMetadata(&file); err != nil {
		os.Remove(dataPath)
		return nil, err
	}
	return &file, nil
}

// Open returns the archived document and its metadata.
func (a *LocalArchive) Open(ctx context.Context, accountID, jobID uuid.UUID) (io.ReadCloser, *StatementFile, error) {
	info, err := a.info(accountID, jobID)
	if err != nil {
		return nil, nil, err
	}

	f, err := os.Open(filepath.Join(a.basePath, accountID.String(), info.Path))
	if err != nil {
		return nil, nil, fmt.Errorf("open archive file: %w", err)
	}
	return f, info, nil
}

// List returns the metadata of every document archived for an account.
func (a *LocalArchive) List(_ context.Context, accountID uuid.UUID) ([]StatementFile, error) {
	metaDir := filepath.Join(a.basePath, accountID.String(), ".meta")
	entries, err := os.ReadDir(metaDir)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("list archive metadata: %w", err)
	}

	files := make([]StatementFile, 0, len(entries))
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".json") {
			continue
		}
		jobID, err := uuid.Parse(strings.TrimSuffix(entry.Name(), ".json"))
		if err != nil {
			continue
		}
		info, err := a.info(accountID, jobID)
		if err != nil {
			continue
		}
		files = append(files, *info)
	}
	return files, nil
}

// Delete removes a job's document and metadata sidecar.
func (a *LocalArchive) Delete(_ context.Context, accountID, jobID uuid.UUID) error {
	info, err := a.info(accountID, jobID)
	if err != nil {
		return err
	}

	dataPath := filepath.Join(a.basePath, accountID.String(), info.Path)
	if err := os.Remove(dataPath); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("delete archive file: %w", err)
	}
	return os.Remove(a.metaPath(accountID, jobID))
}

func (a *LocalArchive) info(accountID, jobID uuid.UUID) (*StatementFile, error) {
	data, err := os.ReadFile(a.metaPath(accountID, jobID))
	if os.IsNotExist(err) {
		return nil, ErrNotArchived
	}
	if err != nil {
		return nil, fmt.Errorf("read archive metadata: %w", err)
	}

	var info StatementFile
	if err := json.Unmarshal(data, &info); err != nil {
		return nil, fmt.Errorf("parse archive metadata: %w", err)
	}
	return &info, nil
}

func (a *LocalArchive) saveMetadata(file *StatementFile) error {
	metaDir := filepath.Join(a.basePath, file.AccountID.String(), ".meta")
	if err := os.MkdirAll(metaDir, 0755); err != nil {
		return fmt.Errorf("create metadata directory: %w", err)
	}

	data, err := json.MarshalIndent(file, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal archive metadata: %w", err)
	}
	return os.WriteFile(a.metaPath(file.AccountID, file.JobID), data, 0644)
}

func (a *LocalArchive) metaPath(accountID, jobID uuid.UUID) string {
	return filepath.Join(a.basePath, accountID.String(), ".meta", jobID.String()+".json")
}

// sanitizeFilename strips path separators and shell-hostile characters.
func sanitizeFilename(name string) string {
	replacer := strings.NewReplacer(
		"/", "_",
		"\\", "_",
		"..", "_",
		":", "_",
		"*", "_",
		"?", "_",
		"\"", "_",
		"<", "_",
		">", "_",
		"|", "_",
	)
	return replacer.Replace(name)
}
