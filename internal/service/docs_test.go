package service

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/Strob0t/docmesh/internal/domain"
	"github.com/Strob0t/docmesh/internal/domain/corpus"
)

type fakeStore struct {
	docs    map[string]string
	names   []string
	hits    []corpus.Hit
	listErr error
	readErr error
	findErr error
	lastQ   string
}

func (f *fakeStore) List(context.Context) ([]string, error) {
	return f.names, f.listErr
}

func (f *fakeStore) Read(_ context.Context, name string) (*corpus.Document, error) {
	if f.readErr != nil {
		return nil, f.readErr
	}
	c, ok := f.docs[name]
	if !ok {
		return nil, fmt.Errorf("document %q: %w", name, domain.ErrNotFound)
	}
	return &corpus.Document{Name: name, Content: c}, nil
}

func (f *fakeStore) Search(_ context.Context, q string) ([]corpus.Hit, error) {
	f.lastQ = q
	if f.findErr != nil {
		return nil, f.findErr
	}
	return f.hits, nil
}

func TestListText(t *testing.T) {
	svc := NewDocumentService(&fakeStore{names: []string{"a.md", "b.md"}})
	got, err := svc.ListText(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if got != "a.md\nb.md" {
		t.Fatalf("unexpected list %q", got)
	}

	empty := NewDocumentService(&fakeStore{names: []string{}})
	if got, _ := empty.ListText(context.Background()); got != NoDocsText {
		t.Fatalf("expected %q, got %q", NoDocsText, got)
	}
}

func TestListTextStorageFault(t *testing.T) {
	svc := NewDocumentService(&fakeStore{listErr: errors.New("disk gone")})
	if _, err := svc.ListText(context.Background()); err == nil {
		t.Fatal("expected storage fault to surface as error")
	}
}

func TestReadText(t *testing.T) {
	svc := NewDocumentService(&fakeStore{docs: map[string]string{"a.md": "# A"}})

	got, err := svc.ReadText(context.Background(), "a.md")
	if err != nil || got != "# A" {
		t.Fatalf("ReadText = %q, %v", got, err)
	}

	got, err = svc.ReadText(context.Background(), "missing.md")
	if err != nil {
		t.Fatalf("not found must be a value, got error %v", err)
	}
	if got != "Not found: missing.md" {
		t.Fatalf("unexpected not-found text %q", got)
	}
}

func TestSearchText(t *testing.T) {
	store := &fakeStore{hits: []corpus.Hit{
		{Document: "a.md", Line: 1, Text: "foo"},
		{Document: "a.md", Line: 3, Text: "foobar"},
		{Document: "b.md", Line: 7, Text: "Foo!"},
	}}
	svc := NewDocumentService(store)

	got, err := svc.SearchText(context.Background(), "foo")
	if err != nil {
		t.Fatal(err)
	}
	want := "== a.md ==\n1: foo\n3: foobar\n\n== b.md ==\n7: Foo!"
	if got != want {
		t.Fatalf("unexpected rendering:\n%s\nwant:\n%s", got, want)
	}
	if store.lastQ != "foo" {
		t.Fatalf("query not forwarded, got %q", store.lastQ)
	}
}

func TestSearchTextOutcomes(t *testing.T) {
	none := NewDocumentService(&fakeStore{})
	if got, _ := none.SearchText(context.Background(), "zzz"); got != NoMatchesText {
		t.Fatalf("expected %q, got %q", NoMatchesText, got)
	}

	blank := NewDocumentService(&fakeStore{findErr: domain.ErrInvalidQuery})
	got, err := blank.SearchText(context.Background(), "   ")
	if err != nil || got != EmptyQueryText {
		t.Fatalf("expected %q, got %q, %v", EmptyQueryText, got, err)
	}
}
