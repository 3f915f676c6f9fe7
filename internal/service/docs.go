// Package service holds the docmesh use cases: the document query service,
// the agent task service, the reasoning loop and the orchestrator that
// routes questions to discovered agents.
package service

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/Strob0t/docmesh/internal/domain"
	"github.com/Strob0t/docmesh/internal/domain/corpus"
	corpusport "github.com/Strob0t/docmesh/internal/port/corpus"
)

// Texts returned to MCP clients for expected outcomes.
const (
	NoDocsText     = "No docs found."
	NoMatchesText  = "No matches."
	EmptyQueryText = "Query was empty."
	notFoundPrefix = "Not found: "
)

// DocumentService renders corpus access as the plain text shared by the MCP
// resources and tools. Missing documents and blank queries are answers, not
// errors; only storage faults are returned as errors.
type DocumentService struct {
	store corpusport.Store
}

// NewDocumentService creates a new DocumentService.
func NewDocumentService(store corpusport.Store) *DocumentService {
	return &DocumentService{store: store}
}

// ListText returns document names, one per line.
func (s *DocumentService) ListText(ctx context.Context) (string, error) {
	names, err := s.store.List(ctx)
	if err != nil {
		return "", fmt.Errorf("list docs: %w", err)
	}
	if len(names) == 0 {
		return NoDocsText, nil
	}
	return strings.Join(names, "\n"), nil
}

// ReadText returns the content of the named document.
func (s *DocumentService) ReadText(ctx context.Context, name string) (string, error) {
	doc, err := s.store.Read(ctx, name)
	if errors.Is(err, domain.ErrNotFound) {
		return notFoundPrefix + name, nil
	}
	if err != nil {
		return "", fmt.Errorf("read doc %q: %w", name, err)
	}
	return doc.Content, nil
}

// SearchText returns matching lines grouped per document:
//
//	== a.md ==
//	1: foo
//	3: foobar
//
// Groups are separated by a blank line.
func (s *DocumentService) SearchText(ctx context.Context, query string) (string, error) {
	hits, err := s.store.Search(ctx, query)
	if errors.Is(err, domain.ErrInvalidQuery) {
		return EmptyQueryText, nil
	}
	if err != nil {
		return "", fmt.Errorf("search docs: %w", err)
	}
	if len(hits) == 0 {
		return NoMatchesText, nil
	}
	return renderHits(hits), nil
}

func renderHits(hits []corpus.Hit) string {
	var b strings.Builder
	current := ""
	for i := range hits {
		h := &hits[i]
		if h.Document != current {
			if current != "" {
				b.WriteString("\n\n")
			}
			current = h.Document
			b.WriteString("== ")
			b.WriteString(h.Document)
			b.WriteString(" ==")
		}
		b.WriteByte('\n')
		b.WriteString(strconv.Itoa(h.Line))
		b.WriteString(": ")
		b.WriteString(h.Text)
	}
	return b.String()
}
