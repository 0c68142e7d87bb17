package csvjournal

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/soilwire/soilwire/internal/domain"
	"github.com/soilwire/soilwire/internal/ports"
)

// BackupSuffix is appended to a log whose header no longer matches the
// configured schema. Migration happens once, at startup.
const BackupSuffix = ".bak"

// Journal is an append-only CSV log with a fixed header row. Append opens,
// writes and closes per call so a crash between calls never leaves a
// partial row visible to readers.
type Journal struct {
	path   string
	header []string
}

// New opens or creates the log at path. A missing file is created with the
// header; an existing file whose header differs is renamed to path+".bak"
// and replaced by a fresh header-only file, preserving all prior rows in
// the backup.
func New(path string, header []string) (*Journal, error) {
	j := &Journal{path: path, header: append([]string(nil), header...)}
	if err := j.ensure(); err != nil {
		return nil, err
	}
	return j, nil
}

func (j *Journal) Path() string { return j.path }

// Append writes one reading as a CSV row. A failed write gets one recovery
// attempt: re-run the startup ensure step, which recreates the directory
// and the header-only file, then retry. A residual failure is returned to
// the caller, who must preserve the reading through the pending store's
// durable tier.
func (j *Journal) Append(r domain.Reading) error {
	if err := appendRow(j.path, r.Row()); err != nil {
		if ensureErr := j.ensure(); ensureErr != nil {
			return fmt.Errorf("journal append: %w", errors.Join(err, ensureErr))
		}
		if err := appendRow(j.path, r.Row()); err != nil {
			return fmt.Errorf("journal append after recovery: %w", err)
		}
	}
	return nil
}

// ReadAll returns every data row in file order, oldest first. Rows with a
// field count that cannot form a reading are skipped rather than failing
// the whole read.
func (j *Journal) ReadAll() ([]domain.Reading, error) {
	f, err := os.Open(j.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		return nil, err
	}
	defer f.Close()

	reader := csv.NewReader(f)
	reader.FieldsPerRecord = -1

	var (
		out   []domain.Reading
		first = true
	)
	for {
		row, err := reader.Read()
		if errors.Is(err, io.EOF) {
			return out, nil
		}
		if err != nil {
			return out, fmt.Errorf("journal read: %w", err)
		}
		if first {
			first = false
			continue
		}
		if len(row) == 0 {
			continue
		}
		out = append(out, domain.FromRow(row))
	}
}

// Reset rewrites the file as header-only. The primary log never calls
// this; it exists for the pending store's durable tier, which truncates
// after a fully drained backlog.
func (j *Journal) Reset() error {
	return writeHeaderOnly(j.path, j.header)
}

func (j *Journal) ensure() error {
	existing, err := readHeader(j.path)
	if errors.Is(err, os.ErrNotExist) {
		return writeHeaderOnly(j.path, j.header)
	}
	if err != nil {
		return err
	}
	if headersEqual(existing, j.header) {
		return nil
	}
	// Schema changed: keep the old rows under a backup name and start over.
	if err := os.Rename(j.path, j.path+BackupSuffix); err != nil {
		return fmt.Errorf("journal backup rename: %w", err)
	}
	return writeHeaderOnly(j.path, j.header)
}

func readHeader(path string) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	reader := csv.NewReader(f)
	reader.FieldsPerRecord = -1
	row, err := reader.Read()
	if errors.Is(err, io.EOF) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("journal header read: %w", err)
	}
	return row, nil
}

func writeHeaderOnly(path string, header []string) error {
	if err := os.MkdirAll(parentDir(path), 0o755); err != nil {
		return err
	}
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("journal create: %w", err)
	}
	w := csv.NewWriter(f)
	werr := w.Write(header)
	w.Flush()
	return errors.Join(werr, w.Error(), f.Close())
}

// appendRow never creates the file: a vanished log must go through the
// recovery path so the header is restored before any data row.
func appendRow(path string, row []string) error {
	f, err := os.OpenFile(path, os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return err
	}
	w := csv.NewWriter(f)
	werr := w.Write(row)
	w.Flush()
	return errors.Join(werr, w.Error(), f.Close())
}

func parentDir(path string) string {
	dir := filepath.Dir(path)
	if dir == "" {
		return "."
	}
	return dir
}

func headersEqual(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

var _ ports.Journal = (*Journal)(nil)
