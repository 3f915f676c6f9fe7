// Package corpus defines the read-only document model served by the
// Document Service.
package corpus

import (
	"errors"
	"path/filepath"
	"strings"
)

// DefaultMaxHitsPerDocument bounds the number of matching lines reported per document.
const DefaultMaxHitsPerDocument = 50

// Document is a single text document identified by its name within a corpus.
type Document struct {
	Name    string `json:"name"`
	Path    string `json:"path"`
	Content string `json:"content"`
}

// Hit is one matching line produced by a search.
type Hit struct {
	Document string `json:"document"`
	Line     int    `json:"line"` // 1-based
	Text     string `json:"text"`
}

// ValidateName rejects names that could address files outside the corpus
// directory. Valid names are plain file names.
func ValidateName(name string) error {
	if name == "" {
		return errors.New("name is required")
	}
	if strings.ContainsAny(name, `/\`) {
		return errors.New("name must not contain path separators")
	}
	if name[0] == '.' {
		return errors.New("name must not start with '.'")
	}
	if filepath.Clean(name) != name {
		return errors.New("name contains invalid path characters")
	}
	return nil
}

// NormalizeQuery trims a search query. ok is false when nothing remains.
func NormalizeQuery(query string) (q string, ok bool) {
	q = strings.TrimSpace(query)
	return q, q != ""
}
