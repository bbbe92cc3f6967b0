// Package extract pulls readable text out of PDFs, EPUBs, web pages,
// Markdown, plain text and the clipboard.
package extract

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/charmbracelet/log"
	"github.com/mitchellh/go-homedir"
)

// Document kinds, shown to the user next to the title.
const (
	KindPDF       = "PDF"
	KindEPUB      = "EPUB"
	KindURL       = "Web Article"
	KindMarkdown  = "Markdown"
	KindText      = "Text"
	KindClipboard = "Clipboard"
)

var (
	// ErrNoContent means the source was read but held no text.
	ErrNoContent = errors.New("no readable text found")

	// ErrUnsupported means the source type is not recognized.
	ErrUnsupported = errors.New("unsupported document type")

	// ErrTooLarge means the source exceeded the size limit.
	ErrTooLarge = errors.New("document too large")
)

// Document is extracted text plus how to label it.
type Document struct {
	Text  string
	Title string
	Kind  string
}

// ExtractionError reports which source failed and why.
type ExtractionError struct {
	Kind   string
	Source string
	Err    error
}

func (e *ExtractionError) Error() string {
	return fmt.Sprintf("extracting %s from %s: %v", e.Kind, e.Source, e.Err)
}

func (e *ExtractionError) Unwrap() error { return e.Err }

// Extractor turns sources into Documents.
type Extractor struct {
	client    *http.Client
	logger    *log.Logger
	pdftotext string
	pdfinfo   string
	maxBytes  int64
	userAgent string
}

// Option configures an Extractor.
type Option func(*Extractor)

// WithHTTPClient replaces the client used for URLs.
func WithHTTPClient(c *http.Client) Option {
	return func(e *Extractor) { e.client = c }
}

// WithMaxBytes limits how much of any source is read.
func WithMaxBytes(n int64) Option {
	return func(e *Extractor) {
		if n > 0 {
			e.maxBytes = n
		}
	}
}

// WithPDFToText sets the pdftotext binary.
func WithPDFToText(path string) Option {
	return func(e *Extractor) {
		if path != "" {
			e.pdftotext = path
		}
	}
}

// WithUserAgent sets the User-Agent sent when fetching URLs.
func WithUserAgent(ua string) Option {
	return func(e *Extractor) {
		if ua != "" {
			e.userAgent = ua
		}
	}
}

// New returns an Extractor with a 30 second HTTP client and a 50MB limit.
func New(logger *log.Logger, opts ...Option) *Extractor {
	e := &Extractor{
		client:    &http.Client{Timeout: 30 * time.Second},
		logger:    logger,
		pdftotext: "pdftotext",
		pdfinfo:   "pdfinfo",
		maxBytes:  50 << 20,
		userAgent: "Mozilla/5.0 (compatible; readaloud/1.0)",
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Extract reads source, which is a URL, "clipboard", or a file path.
func (e *Extractor) Extract(ctx context.Context, source string) (Document, error) {
	switch {
	case source == "clipboard":
		return e.Clipboard()
	case strings.HasPrefix(source, "http://"), strings.HasPrefix(source, "https://"):
		return e.URL(ctx, source)
	default:
		return e.File(ctx, source)
	}
}

// File extracts a local file, picking the format from its extension.
func (e *Extractor) File(ctx context.Context, path string) (Document, error) {
	path, err := homedir.Expand(path)
	if err != nil {
		return Document{}, &ExtractionError{Kind: "file", Source: path, Err: err}
	}

	info, err := os.Stat(path)
	if err != nil {
		return Document{}, &ExtractionError{Kind: "file", Source: path, Err: err}
	}
	if info.Size() > e.maxBytes {
		return Document{}, &ExtractionError{Kind: "file", Source: path, Err: ErrTooLarge}
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return Document{}, &ExtractionError{Kind: "file", Source: path, Err: err}
	}
	return e.Bytes(ctx, data, filepath.Base(path))
}

// Bytes extracts an in-memory document. name supplies the extension and the
// fallback title.
func (e *Extractor) Bytes(ctx context.Context, data []byte, name string) (Document, error) {
	switch strings.ToLower(filepath.Ext(name)) {
	case ".pdf":
		return e.PDF(ctx, data, name)
	case ".epub":
		return e.EPUB(data, name)
	case ".html", ".htm", ".xhtml":
		return e.HTML(bytes.NewReader(data), name)
	case ".md", ".markdown", ".mdown", ".mkd":
		return e.Markdown(data, name)
	case ".txt", ".text", "":
		return e.Text(data, name)
	default:
		return Document{}, &ExtractionError{Kind: "file", Source: name, Err: ErrUnsupported}
	}
}

func titleFromName(name string) string {
	base := filepath.Base(name)
	base = strings.TrimSuffix(base, filepath.Ext(base))
	return strings.TrimSpace(strings.NewReplacer("_", " ", "-", " ").Replace(base))
}

func finish(doc Document, source string) (Document, error) {
	doc.Text = strings.TrimSpace(doc.Text)
	doc.Title = strings.Join(strings.Fields(doc.Title), " ")
	if doc.Text == "" {
		return Document{}, &ExtractionError{Kind: doc.Kind, Source: source, Err: ErrNoContent}
	}
	if doc.Title == "" {
		doc.Title = titleFromName(source)
	}
	return doc, nil
}
