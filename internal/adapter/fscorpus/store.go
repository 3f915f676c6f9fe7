// Package fscorpus implements the corpus port on top of a directory of text
// files. Documents are read on every call; nothing is cached.
package fscorpus

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/Strob0t/docmesh/internal/domain"
	"github.com/Strob0t/docmesh/internal/domain/corpus"
)

// Options configures a Store.
type Options struct {
	// Extensions lists the file extensions treated as documents (".md").
	// Empty means every regular file.
	Extensions []string
	// MaxHitsPerDocument caps search hits per document. Zero means
	// corpus.DefaultMaxHitsPerDocument.
	MaxHitsPerDocument int
}

// Store serves documents from a single directory.
type Store struct {
	dir     string
	exts    []string
	maxHits int
}

// New creates a Store over dir. The directory must exist.
func New(dir string, opts Options) (*Store, error) {
	abs, err := filepath.Abs(dir)
	if err != nil {
		return nil, fmt.Errorf("corpus dir %s: %w", dir, err)
	}
	info, err := os.Stat(abs)
	if err != nil {
		return nil, fmt.Errorf("corpus dir %s: %w", abs, err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("%w: corpus dir %s is not a directory", domain.ErrValidation, abs)
	}

	maxHits := opts.MaxHitsPerDocument
	if maxHits <= 0 {
		maxHits = corpus.DefaultMaxHitsPerDocument
	}
	exts := make([]string, 0, len(opts.Extensions))
	for _, e := range opts.Extensions {
		if e == "" {
			continue
		}
		if !strings.HasPrefix(e, ".") {
			e = "." + e
		}
		exts = append(exts, strings.ToLower(e))
	}
	return &Store{dir: abs, exts: exts, maxHits: maxHits}, nil
}

// Dir returns the absolute corpus directory.
func (s *Store) Dir() string { return s.dir }

// List returns document names in lexicographic order.
func (s *Store) List(ctx context.Context) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return nil, fmt.Errorf("list corpus: %w", err)
	}
	names := make([]string, 0, len(entries))
	for _, e := range entries {
		if !e.Type().IsRegular() || !s.isDocument(e.Name()) {
			continue
		}
		names = append(names, e.Name())
	}
	slices.Sort(names)
	return names, nil
}

// Read returns the named document. Unknown names and names that would leave
// the corpus directory yield domain.ErrNotFound.
func (s *Store) Read(ctx context.Context, name string) (*corpus.Document, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if err := corpus.ValidateName(name); err != nil {
		return nil, fmt.Errorf("document %q: %w", name, domain.ErrNotFound)
	}
	data, err := s.readFile(name)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) || errors.Is(err, errNotRegular) {
			return nil, fmt.Errorf("document %q: %w", name, domain.ErrNotFound)
		}
		return nil, fmt.Errorf("read document %q: %w", name, err)
	}
	return &corpus.Document{
		Name:    name,
		Path:    filepath.Join(s.dir, name),
		Content: string(data),
	}, nil
}

// Search returns the lines containing query, case-insensitively, across all
// documents in List order. Unreadable documents are skipped.
func (s *Store) Search(ctx context.Context, query string) ([]corpus.Hit, error) {
	q, ok := corpus.NormalizeQuery(query)
	if !ok {
		return nil, domain.ErrInvalidQuery
	}
	names, err := s.List(ctx)
	if err != nil {
		return nil, err
	}
	needle := strings.ToLower(q)

	var hits []corpus.Hit
	for _, name := range names {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		data, err := s.readFile(name)
		if err != nil {
			slog.Debug("corpus search: skipping unreadable document", "document", name, "error", err)
			continue
		}
		hits = append(hits, s.scan(name, data, needle)...)
	}
	return hits, nil
}

func (s *Store) scan(name string, data []byte, needle string) []corpus.Hit {
	var hits []corpus.Hit
	sc := bufio.NewScanner(bytes.NewReader(data))
	sc.Buffer(make([]byte, 0, 64*1024), len(data)+1)
	for line := 1; sc.Scan(); line++ {
		text := strings.TrimSuffix(sc.Text(), "\r")
		if !strings.Contains(strings.ToLower(text), needle) {
			continue
		}
		hits = append(hits, corpus.Hit{Document: name, Line: line, Text: text})
		if len(hits) == s.maxHits {
			break
		}
	}
	return hits
}

var errNotRegular = errors.New("not a regular file")

// readFile opens name through an os.Root so symlinks cannot escape the corpus.
func (s *Store) readFile(name string) ([]byte, error) {
	root, err := os.OpenRoot(s.dir)
	if err != nil {
		return nil, err
	}
	defer func() { _ = root.Close() }()

	info, err := root.Stat(name)
	if err != nil {
		return nil, err
	}
	if !info.Mode().IsRegular() {
		return nil, errNotRegular
	}
	return root.ReadFile(name)
}

func (s *Store) isDocument(name string) bool {
	if strings.HasPrefix(name, ".") {
		return false
	}
	if len(s.exts) == 0 {
		return true
	}
	return slices.Contains(s.exts, strings.ToLower(filepath.Ext(name)))
}
