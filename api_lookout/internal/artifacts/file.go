package artifacts

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
)

// FileStore keeps artifacts under root/<session>/<name>.
type FileStore struct {
	root string
}

func NewFileStore(root string) (*FileStore, error) {
	if root == "" {
		return nil, fmt.Errorf("artifact root is required")
	}
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, fmt.Errorf("create artifact root: %w", err)
	}
	return &FileStore{root: root}, nil
}

func (s *FileStore) Put(_ context.Context, sessionID, name string, data []byte) error {
	rel, err := cleanName(sessionID, name)
	if err != nil {
		return err
	}
	target := filepath.Join(s.root, sessionID, filepath.FromSlash(rel))
	if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
		return fmt.Errorf("create artifact dir: %w", err)
	}
	return writeAtomic(target, data)
}

func (s *FileStore) Get(_ context.Context, sessionID, name string) ([]byte, error) {
	rel, err := cleanName(sessionID, name)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(filepath.Join(s.root, sessionID, filepath.FromSlash(rel)))
	if errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("%s/%s: %w", sessionID, rel, ErrNotFound)
	}
	return data, err
}

func (s *FileStore) List(_ context.Context, sessionID string) ([]Info, error) {
	if _, err := cleanName(sessionID, "x"); err != nil {
		return nil, err
	}
	dir := filepath.Join(s.root, sessionID)
	var out []Info
	err := filepath.WalkDir(dir, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return fs.SkipAll
			}
			return err
		}
		if d.IsDir() || filepath.Ext(p) == ".tmp" {
			return nil
		}
		info, err := d.Info()
		if err != nil {
			return err
		}
		rel, _ := filepath.Rel(dir, p)
		rel = filepath.ToSlash(rel)
		out = append(out, Info{Name: filepath.Base(p), Path: rel, Size: info.Size(), Type: typeOf(rel)})
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("list artifacts: %w", err)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Path < out[j].Path })
	return out, nil
}

func (s *FileStore) Ping(context.Context) error {
	_, err := os.Stat(s.root)
	return err
}

// writeAtomic writes to a temp file in the same directory and renames it
// over the target.
func writeAtomic(target string, data []byte) error {
	tmp, err := os.CreateTemp(filepath.Dir(target), "."+filepath.Base(target)+"-*.tmp")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmpName)
		return fmt.Errorf("write temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmpName)
		return fmt.Errorf("close temp file: %w", err)
	}
	if err := os.Rename(tmpName, target); err != nil {
		_ = os.Remove(tmpName)
		return fmt.Errorf("publish %s: %w", filepath.Base(target), err)
	}
	return nil
}
