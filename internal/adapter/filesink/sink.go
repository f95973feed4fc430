// Package filesink writes the region records of a run to a JSON file.
package filesink

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/couchcryptid/wildfire-hotspot-etl/internal/domain"
)

// Sink replaces the contents of a JSON file with each run's records.
type Sink struct {
	path   string
	logger *slog.Logger
}

// New creates a file sink writing to path.
func New(path string, logger *slog.Logger) *Sink {
	return &Sink{path: path, logger: logger}
}

// Path returns the output file path.
func (s *Sink) Path() string { return s.path }

// Load writes records as a pretty-printed JSON array. The file is replaced
// atomically so readers never see a partial document.
func (s *Sink) Load(_ context.Context, records []domain.RegionRecord) error {
	data, err := Marshal(records)
	if err != nil {
		return err
	}
	if err := WriteFileAtomic(s.path, data); err != nil {
		return err
	}
	s.logger.Info("wrote region records", "path", s.path, "count", len(records))
	return nil
}

// Marshal encodes records as a JSON array indented with four spaces. HTML
// escaping is off so accented municipality names stay verbatim, and a nil
// slice encodes as [].
func Marshal(records []domain.RegionRecord) ([]byte, error) {
	if records == nil {
		records = []domain.RegionRecord{}
	}
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "    ")
	if err := enc.Encode(records); err != nil {
		return nil, fmt.Errorf("encode region records: %w", err)
	}
	return buf.Bytes(), nil
}

// WriteFileAtomic writes data to a temporary file in the target directory and
// renames it over path.
func WriteFileAtomic(path string, data []byte) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create output directory %s: %w", dir, err)
	}

	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName) //nolint:errcheck // no-op after a successful rename

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("write %s: %w", tmpName, err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return fmt.Errorf("sync %s: %w", tmpName, err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close %s: %w", tmpName, err)
	}
	if err := os.Chmod(tmpName, 0o644); err != nil {
		return fmt.Errorf("chmod %s: %w", tmpName, err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		return fmt.Errorf("replace %s: %w", path, err)
	}
	return nil
}
