// Package persist is a local contents manager: notebooks are stored as
// nbformat JSON files under a root directory.
package persist

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"time"

	"pkt.systems/pslog"

	"pkt.systems/cellpad/schema"
)

// ErrOutsideRoot is returned for paths that resolve outside the store root.
var ErrOutsideRoot = errors.New("path escapes contents root")

// Store persists notebooks to disk. It implements core.Contents.
type Store struct {
	dir string
	log pslog.Logger
}

// NewStore constructs a store rooted at dir.
func NewStore(dir string) (*Store, error) {
	return NewStoreWithLogger(dir, nil)
}

// NewStoreWithLogger constructs a store with logging.
func NewStoreWithLogger(dir string, logger pslog.Logger) (*Store, error) {
	if strings.TrimSpace(dir) == "" {
		return nil, errors.New("contents directory is required")
	}
	abs, err := filepath.Abs(dir)
	if err != nil {
		return nil, err
	}
	if err := os.MkdirAll(abs, 0o755); err != nil {
		return nil, err
	}
	if logger != nil {
		logger = logger.With("contents_dir", abs)
	}
	return &Store{dir: abs, log: logger}, nil
}

// Root returns the absolute store root.
func (s *Store) Root() string { return s.dir }

func (s *Store) logger(ctx context.Context) pslog.Logger {
	if s.log != nil {
		return s.log
	}
	return pslog.Ctx(ctx)
}

// Get reads the notebook at path, relative to the root.
func (s *Store) Get(ctx context.Context, path string) (schema.ContentsModel, error) {
	full, err := s.resolve(path)
	if err != nil {
		return schema.ContentsModel{}, err
	}
	log := s.logger(ctx)
	data, err := os.ReadFile(full)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			log.Debug("contents load miss", "path", path)
			return schema.ContentsModel{}, fmt.Errorf("%s: %w", path, schema.ErrNotFound)
		}
		log.Warn("contents load failed", "path", path, "err", err)
		return schema.ContentsModel{}, err
	}
	if !json.Valid(data) {
		log.Warn("contents load failed", "path", path, "err", "invalid json")
		return schema.ContentsModel{}, fmt.Errorf("%s: %w", path, schema.ErrInvalidDocument)
	}
	model := s.model(path, full)
	model.Format = "json"
	model.Content = data
	log.Debug("contents load ok", "path", path, "bytes", len(data))
	return model, nil
}

// Save writes model.Content to path atomically: the content goes to a
// temporary file in the target directory which is then renamed into place.
func (s *Store) Save(ctx context.Context, path string, model schema.ContentsModel) (schema.ContentsModel, error) {
	full, err := s.resolve(path)
	if err != nil {
		return schema.ContentsModel{}, err
	}
	log := s.logger(ctx)
	if model.Type != "" && model.Type != schema.ContentsTypeNotebook {
		return schema.ContentsModel{}, fmt.Errorf("save %s: unsupported contents type %q", path, model.Type)
	}
	if len(model.Content) == 0 {
		return schema.ContentsModel{}, fmt.Errorf("save %s: %w", path, schema.ErrInvalidDocument)
	}
	if err := ctx.Err(); err != nil {
		return schema.ContentsModel{}, err
	}
	if err := writeAtomic(full, indentJSON(model.Content)); err != nil {
		log.Warn("contents save failed", "path", path, "err", err)
		return schema.ContentsModel{}, err
	}
	log.Debug("contents save ok", "path", path, "bytes", len(model.Content))
	return s.model(path, full), nil
}

// List returns the notebooks below the root, without content, sorted by
// path.
func (s *Store) List(ctx context.Context) ([]schema.ContentsModel, error) {
	var out []schema.ContentsModel
	err := filepath.WalkDir(s.dir, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		if d.IsDir() {
			if p != s.dir && strings.HasPrefix(d.Name(), ".") {
				return filepath.SkipDir
			}
			return nil
		}
		if strings.HasPrefix(d.Name(), ".") || filepath.Ext(p) != ".ipynb" {
			return nil
		}
		rel, err := filepath.Rel(s.dir, p)
		if err != nil {
			return err
		}
		out = append(out, s.model(filepath.ToSlash(rel), p))
		return nil
	})
	if err != nil {
		return nil, err
	}
	slices.SortFunc(out, func(a, b schema.ContentsModel) int { return strings.Compare(a.Path, b.Path) })
	return out, nil
}

func (s *Store) model(path, full string) schema.ContentsModel {
	model := schema.ContentsModel{
		Name: filepath.Base(full),
		Path: filepath.ToSlash(filepath.Clean(path)),
		Type: schema.ContentsTypeNotebook,
	}
	if info, err := os.Stat(full); err == nil {
		model.LastModified = info.ModTime().UTC().Format(time.RFC3339)
	}
	return model
}

func (s *Store) resolve(path string) (string, error) {
	path = strings.TrimSpace(path)
	if path == "" {
		return "", schema.ErrNoPath
	}
	full := filepath.Join(s.dir, filepath.FromSlash(strings.TrimPrefix(path, "/")))
	rel, err := filepath.Rel(s.dir, full)
	if err != nil || rel == "." || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "", fmt.Errorf("%s: %w", path, ErrOutsideRoot)
	}
	return full, nil
}

func indentJSON(data []byte) []byte {
	var out bytes.Buffer
	if err := json.Indent(&out, data, "", " "); err != nil {
		return data
	}
	out.WriteByte('\n')
	return out.Bytes()
}

func writeAtomic(path string, data []byte) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	tmp, err := os.CreateTemp(filepath.Dir(path), ".cellpad-*.ipynb")
	if err != nil {
		return err
	}
	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmp.Name())
		return err
	}
	if err := tmp.Sync(); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmp.Name())
		return err
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmp.Name())
		return err
	}
	if err := os.Chmod(tmp.Name(), 0o644); err != nil {
		_ = os.Remove(tmp.Name())
		return err
	}
	return os.Rename(tmp.Name(), path)
}
