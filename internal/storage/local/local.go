// Package local keeps blobs on the local filesystem and serves them under a
// public base URL.
package local

import (
	"context"
	"net/url"
	"os"
	"path/filepath"
	"strings"

	"github.com/cockroachdb/errors"

	"ozzus/pm-tracker/internal/storage"
)

type Store struct {
	root    string
	baseURL string
}

func New(root, publicBaseURL string) (*Store, error) {
	if strings.TrimSpace(root) == "" {
		return nil, errors.New("local storage root is required")
	}
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, errors.Wrap(err, "resolve storage root")
	}
	if err := os.MkdirAll(abs, 0o755); err != nil {
		return nil, errors.Wrapf(err, "create storage root %s", abs)
	}

	return &Store{
		root:    abs,
		baseURL: strings.TrimSuffix(strings.TrimSpace(publicBaseURL), "/"),
	}, nil
}

func (s *Store) Root() string { return s.root }

func (s *Store) Put(_ context.Context, name, _ string, data []byte) (string, error) {
	p, err := s.path(name)
	if err != nil {
		return "", err
	}
	if err := os.MkdirAll(filepath.Dir(p), 0o755); err != nil {
		return "", errors.Wrap(err, "create blob directory")
	}

	tmp := p + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return "", errors.Wrapf(err, "write blob %s", name)
	}
	if err := os.Rename(tmp, p); err != nil {
		_ = os.Remove(tmp)
		return "", errors.Wrapf(err, "commit blob %s", name)
	}

	return s.baseURL + "/" + (&url.URL{Path: filepath.ToSlash(name)}).EscapedPath(), nil
}

func (s *Store) Get(_ context.Context, ref string) ([]byte, error) {
	name, ok := s.name(ref)
	if !ok {
		return nil, errors.Newf("reference %q is not served by this store", ref)
	}
	p, err := s.path(name)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(p)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, errors.Mark(errors.Wrapf(err, "blob %s", name), storage.ErrNotFound)
		}
		return nil, errors.Wrapf(err, "read blob %s", name)
	}
	return data, nil
}

func (s *Store) Owns(ref string) bool {
	_, ok := s.name(ref)
	return ok
}

func (s *Store) Ping(context.Context) error {
	info, err := os.Stat(s.root)
	if err != nil {
		return errors.Wrap(err, "stat storage root")
	}
	if !info.IsDir() {
		return errors.Newf("storage root %s is not a directory", s.root)
	}
	return nil
}

func (s *Store) name(ref string) (string, bool) {
	rest, ok := strings.CutPrefix(ref, s.baseURL+"/")
	if !ok || rest == "" {
		return "", false
	}
	unescaped, err := url.PathUnescape(rest)
	if err != nil {
		return "", false
	}
	return unescaped, true
}

// path maps a blob name below root and rejects names that escape it.
func (s *Store) path(name string) (string, error) {
	clean := filepath.Clean(filepath.FromSlash("/" + name))
	p := filepath.Join(s.root, clean)
	if p == s.root || !strings.HasPrefix(p, s.root+string(filepath.Separator)) {
		return "", errors.Newf("invalid blob name %q", name)
	}
	return p, nil
}
