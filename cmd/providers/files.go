package providers

import (
	"context"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/DanyaHDanny/tafordqe/cmd/quality"
)

// FileProvider reads exported datasets from the local filesystem. A path is
// either one data file or a directory of (possibly partitioned) files.
type FileProvider struct {
	logger *slog.Logger
}

func NewFileProvider(logger *slog.Logger) *FileProvider {
	return &FileProvider{logger: logger}
}

func (p *FileProvider) Fetch(ctx context.Context, loc Locator) (*quality.Table, error) {
	root := loc.Path
	info, err := os.Stat(root)
	if err != nil {
		return nil, fmt.Errorf("failed to stat %s: %w", root, err)
	}

	if !info.IsDir() {
		f, err := os.Open(root)
		if err != nil {
			return nil, err
		}
		defer f.Close()
		t, err := decodeFile(filepath.Base(root), f, loc.Format)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", root, err)
		}
		return project(t, loc.Columns)
	}

	files, err := p.discover(root, loc)
	if err != nil {
		return nil, err
	}
	open := func(_ context.Context, rel string) (io.ReadCloser, error) {
		return os.Open(filepath.Join(root, filepath.FromSlash(rel)))
	}
	return readDataset(ctx, p.logger, root, files, open, loc)
}

// discover lists matching files as sorted slash-separated relative paths.
func (p *FileProvider) discover(root string, loc Locator) ([]string, error) {
	var files []string

	if !loc.IncludeSubfolders {
		entries, err := os.ReadDir(root)
		if err != nil {
			return nil, fmt.Errorf("failed to list %s: %w", root, err)
		}
		for _, e := range entries {
			if !e.IsDir() && matches(loc, e.Name()) {
				files = append(files, e.Name())
			}
		}
		sort.Strings(files)
		return files, nil
	}

	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			if path != root && strings.HasPrefix(d.Name(), ".") {
				return filepath.SkipDir
			}
			return nil
		}
		rel, err := filepath.Rel(root, path)
		if err != nil {
			return err
		}
		rel = filepath.ToSlash(rel)
		if matches(loc, rel) {
			files = append(files, rel)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to walk %s: %w", root, err)
	}
	sort.Strings(files)
	return files, nil
}
