// Package dirsource reads the newest hotspot CSV from a local directory.
package dirsource

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/couchcryptid/wildfire-hotspot-etl/internal/adapter/csvbatch"
	"github.com/couchcryptid/wildfire-hotspot-etl/internal/domain"
)

// Source picks the most recently modified *.csv file in a directory.
type Source struct {
	dir    string
	logger *slog.Logger
}

// New creates a directory source.
func New(dir string, logger *slog.Logger) *Source {
	return &Source{dir: dir, logger: logger}
}

// FetchLatestBatch decodes the newest CSV file. A missing directory or one
// without CSV files is ErrInputUnavailable.
func (s *Source) FetchLatestBatch(ctx context.Context) (domain.Batch, error) {
	if err := ctx.Err(); err != nil {
		return domain.Batch{}, err
	}

	path, err := s.latest()
	if err != nil {
		return domain.Batch{}, err
	}
	s.logger.Info("reading hotspot batch", "path", path)

	f, err := os.Open(path)
	if err != nil {
		return domain.Batch{}, fmt.Errorf("open batch %s: %w", path, errors.Join(domain.ErrInputUnavailable, err))
	}
	defer f.Close()

	return csvbatch.Decode(f, path)
}

func (s *Source) latest() (string, error) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return "", fmt.Errorf("source directory %s: %w", s.dir, domain.ErrInputUnavailable)
		}
		return "", fmt.Errorf("list %s: %w", s.dir, err)
	}

	var (
		newest  string
		modTime time.Time
	)
	for _, e := range entries {
		if e.IsDir() || !strings.EqualFold(filepath.Ext(e.Name()), ".csv") {
			continue
		}
		info, err := e.Info()
		if err != nil {
			// Removed between ReadDir and Info.
			continue
		}
		// Ties on modification time go to the greater name so the pick is stable.
		if newest == "" || info.ModTime().After(modTime) ||
			(info.ModTime().Equal(modTime) && e.Name() > filepath.Base(newest)) {
			newest = filepath.Join(s.dir, e.Name())
			modTime = info.ModTime()
		}
	}

	if newest == "" {
		return "", fmt.Errorf("no csv files in %s: %w", s.dir, domain.ErrInputUnavailable)
	}
	return newest, nil
}
