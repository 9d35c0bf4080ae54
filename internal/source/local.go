package source

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
)

// LocalSource reads exports from a file or a flat directory.
type LocalSource struct {
	path  string
	isDir bool
}

// NewLocalSource creates a local source. A directory is listed
// non-recursively for *.csv files; a file is a one-element batch.
func NewLocalSource(path string) (*LocalSource, error) {
	info, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: %s", ErrNotFound, path)
		}
		return nil, fmt.Errorf("stat %s: %w", path, err)
	}
	return &LocalSource{path: path, isDir: info.IsDir()}, nil
}

// List implements Source.List. Directory entries come back in name order.
func (s *LocalSource) List(ctx context.Context) ([]Input, error) {
	if !s.isDir {
		return []Input{localInput(s.path)}, nil
	}

	entries, err := os.ReadDir(s.path)
	if err != nil {
		return nil, fmt.Errorf("read directory %s: %w", s.path, err)
	}

	var inputs []Input
	for _, e := range entries {
		if e.IsDir() || !IsCSV(e.Name()) {
			continue
		}
		inputs = append(inputs, localInput(filepath.Join(s.path, e.Name())))
	}
	return inputs, nil
}

// Close is a no-op for local sources.
func (s *LocalSource) Close() error {
	return nil
}

func localInput(path string) Input {
	return Input{
		Name:     filepath.Base(path),
		Location: path,
		load: func(ctx context.Context) ([]byte, error) {
			return os.ReadFile(path)
		},
	}
}
