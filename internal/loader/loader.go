package loader

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"

	"github.com/latticehq/lattice/internal/model"
)

// Loader turns a folder of exported HTML files into Document records in a
// deterministic order.
type Loader struct {
	// MaxTextLen truncates very large documents before extraction. Zero
	// means no limit.
	MaxTextLen int
}

func New() *Loader {
	return &Loader{}
}

// LoadDocuments walks root and parses every .html/.htm file, sorted by path.
func (l *Loader) LoadDocuments(root string) ([]model.Document, error) {
	var paths []string
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		ext := strings.ToLower(filepath.Ext(path))
		if ext == ".html" || ext == ".htm" {
			paths = append(paths, path)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("walk %s: %w", root, err)
	}
	sort.Strings(paths)

	docs := make([]model.Document, 0, len(paths))
	for _, path := range paths {
		doc, err := l.loadOne(root, path)
		if err != nil {
			return nil, err
		}
		docs = append(docs, doc)
	}
	return docs, nil
}

func (l *Loader) loadOne(root, path string) (model.Document, error) {
	f, err := os.Open(path)
	if err != nil {
		return model.Document{}, fmt.Errorf("open %s: %w", path, err)
	}
	defer f.Close()

	q, err := goquery.NewDocumentFromReader(f)
	if err != nil {
		return model.Document{}, fmt.Errorf("parse %s: %w", path, err)
	}

	q.Find("script, style, nav, header, footer, noscript, iframe").Remove()

	title := strings.TrimSpace(q.Find("title").First().Text())
	if title == "" {
		title = strings.TrimSpace(q.Find("h1").First().Text())
	}

	text := NormalizeText(q.Find("body").Text())
	if l.MaxTextLen > 0 && len(text) > l.MaxTextLen {
		text = text[:l.MaxTextLen]
	}

	rel, err := filepath.Rel(root, path)
	if err != nil {
		rel = path
	}

	return model.Document{
		SourcePath:  filepath.ToSlash(rel),
		Title:       title,
		Breadcrumb:  breadcrumb(rel, title),
		Text:        text,
		Fingerprint: Fingerprint(text),
		LoadedAt:    time.Now().UTC(),
	}, nil
}

// NormalizeText collapses all whitespace runs to single spaces and trims.
// Fingerprints are computed over this form so formatting-only changes in the
// export do not trigger reprocessing.
func NormalizeText(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

// Fingerprint is the idempotency key for a document: hex SHA-256 of the
// normalized text.
func Fingerprint(normalized string) string {
	sum := sha256.Sum256([]byte(normalized))
	return hex.EncodeToString(sum[:])
}

// breadcrumb derives the structural path of a document inside the export:
// the folder segments plus the page title.
func breadcrumb(rel, title string) []string {
	dir := filepath.Dir(rel)
	var crumbs []string
	if dir != "." {
		for _, seg := range strings.Split(filepath.ToSlash(dir), "/") {
			crumbs = append(crumbs, seg)
		}
	}
	if title != "" {
		crumbs = append(crumbs, title)
	}
	return crumbs
}
