package extract

import (
	"bytes"
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/charmbracelet/log"
	"github.com/klauspost/compress/zip"
)

func newTestExtractor(opts ...Option) *Extractor {
	return New(log.New(io.Discard), opts...)
}

func TestHTMLArticle(t *testing.T) {
	tests := []struct {
		name      string
		page      string
		wantTitle string
		wantText  string
	}{
		{
			name: "article with classed title",
			page: `<html><head><title>Site | Story</title></head><body>
				<nav><p>Home About</p></nav>
				<h1 class="entry-title big">The Story</h1>
				<article><p>First <b>bold</b> paragraph.</p><script>var x;</script>
				<aside><p>Related links</p></aside><p>Second paragraph.</p></article>
				<footer><p>Copyright</p></footer></body></html>`,
			wantTitle: "The Story",
			wantText:  "First bold paragraph.\n\nSecond paragraph.",
		},
		{
			name: "og title and content div",
			page: `<html><head><meta property="og:title" content="OG Title"><title>Plain</title></head>
				<body><div class="sidebar"><p>Ignore me</p></div>
				<div class="post-content"><p>Body text.</p></div></body></html>`,
			wantTitle: "OG Title",
			wantText:  "Body text.",
		},
		{
			name: "main without paragraphs",
			page: `<html><head><title>Docs</title></head><body><main>
				<h2>Setup</h2><ul><li>Install it</li><li>Run it</li></ul></main></body></html>`,
			wantTitle: "Docs",
			wantText:  "Setup\n\nInstall it\n\nRun it",
		},
		{
			name:      "body fallback and h1 title",
			page:      `<html><body><h1>Heading</h1><blockquote>Loose text<br>over lines</blockquote></body></html>`,
			wantTitle: "Heading",
			wantText:  "Heading\n\nLoose text over lines",
		},
	}

	e := newTestExtractor()
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			doc, err := e.HTML(strings.NewReader(tt.page), "https://example.com/story")
			if err != nil {
				t.Fatalf("HTML failed: %v", err)
			}
			if doc.Title != tt.wantTitle {
				t.Errorf("Title = %q, want %q", doc.Title, tt.wantTitle)
			}
			if doc.Text != tt.wantText {
				t.Errorf("Text = %q, want %q", doc.Text, tt.wantText)
			}
			if doc.Kind != KindURL {
				t.Errorf("Kind = %q, want %q", doc.Kind, KindURL)
			}
		})
	}
}

func TestHTMLNoContent(t *testing.T) {
	_, err := newTestExtractor().HTML(strings.NewReader(`<html><body><nav>menu</nav></body></html>`), "page")
	if !errors.Is(err, ErrNoContent) {
		t.Fatalf("error = %v, want ErrNoContent", err)
	}
	var extractErr *ExtractionError
	if !errors.As(err, &extractErr) || extractErr.Source != "page" {
		t.Errorf("error = %#v, want *ExtractionError for page", err)
	}
}

func TestMarkdown(t *testing.T) {
	src := []byte("# Getting Started\n\nSome *emphasis* and `code` with a [link](http://x.y).\n" +
		"Wrapped line.\n\n```go\nfmt.Println(\"skip\")\n```\n\n- one\n- two\n\n> quoted\n\n![alt](img.png)\n")

	doc, err := newTestExtractor().Markdown(src, "guide.md")
	if err != nil {
		t.Fatalf("Markdown failed: %v", err)
	}
	if doc.Title != "Getting Started" {
		t.Errorf("Title = %q", doc.Title)
	}
	want := "Getting Started\n\nSome emphasis and code with a link. Wrapped line.\n\none\n\ntwo\n\nquoted"
	if doc.Text != want {
		t.Errorf("Text = %q, want %q", doc.Text, want)
	}
}

func TestMarkdownTitleFallsBackToName(t *testing.T) {
	doc, err := newTestExtractor().Markdown([]byte("## Section\n\nText."), "release_notes.md")
	if err != nil {
		t.Fatal(err)
	}
	if doc.Title != "release notes" {
		t.Errorf("Title = %q, want %q", doc.Title, "release notes")
	}
}

func buildEPUB(t *testing.T, files map[string]string) []byte {
	t.Helper()
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	for name, body := range files {
		w, err := zw.Create(name)
		if err != nil {
			t.Fatal(err)
		}
		if _, err := w.Write([]byte(body)); err != nil {
			t.Fatal(err)
		}
	}
	if err := zw.Close(); err != nil {
		t.Fatal(err)
	}
	return buf.Bytes()
}

func TestEPUB(t *testing.T) {
	data := buildEPUB(t, map[string]string{
		"mimetype": "application/epub+zip",
		"META-INF/container.xml": `<?xml version="1.0"?>
<container xmlns="urn:oasis:names:tc:opendocument:xmlns:container" version="1.0">
  <rootfiles><rootfile full-path="OEBPS/content.opf" media-type="application/oebps-package+xml"/></rootfiles>
</container>`,
		"OEBPS/content.opf": `<?xml version="1.0"?>
<package xmlns="http://www.idpf.org/2007/opf" version="3.0">
  <metadata xmlns:dc="http://purl.org/dc/elements/1.1/"><dc:title>A Small Book</dc:title></metadata>
  <manifest>
    <item id="c2" href="text/chapter%202.xhtml" media-type="application/xhtml+xml"/>
    <item id="c1" href="text/one.xhtml" media-type="application/xhtml+xml"/>
    <item id="nav" href="nav.xhtml" media-type="application/xhtml+xml"/>
  </manifest>
  <spine><itemref idref="c1"/><itemref idref="nav" linear="no"/><itemref idref="c2"/></spine>
</package>`,
		"OEBPS/text/one.xhtml":       `<html><body><h1>Chapter One</h1><p>It begins.</p></body></html>`,
		"OEBPS/text/chapter 2.xhtml": `<html><body><p>It ends.</p><style>p{}</style></body></html>`,
		"OEBPS/nav.xhtml":            `<html><body><p>Table of contents</p></body></html>`,
	})

	doc, err := newTestExtractor().EPUB(data, "book.epub")
	if err != nil {
		t.Fatalf("EPUB failed: %v", err)
	}
	if doc.Title != "A Small Book" {
		t.Errorf("Title = %q", doc.Title)
	}
	if want := "Chapter One\n\nIt begins.\n\nIt ends."; doc.Text != want {
		t.Errorf("Text = %q, want %q", doc.Text, want)
	}
}

func TestEPUBInvalid(t *testing.T) {
	e := newTestExtractor()
	if _, err := e.EPUB([]byte("not a zip"), "bad.epub"); err == nil {
		t.Error("expected error for non-zip data")
	}
	data := buildEPUB(t, map[string]string{"mimetype": "application/epub+zip"})
	if _, err := e.EPUB(data, "empty.epub"); err == nil {
		t.Error("expected error for missing container.xml")
	}
}

func TestPDFRejectsNonPDF(t *testing.T) {
	_, err := newTestExtractor().PDF(context.Background(), []byte("hello"), "fake.pdf")
	var extractErr *ExtractionError
	if !errors.As(err, &extractErr) || extractErr.Kind != KindPDF {
		t.Fatalf("error = %v, want PDF extraction error", err)
	}
}

func TestUnwrapLines(t *testing.T) {
	in := "The quick brown\nfox jumps over the ex-\ntraordinary dog.\n\n\nNext para\r\ngraph."
	want := "The quick brown fox jumps over the extraordinary dog.\n\nNext para graph."
	if got := unwrapLines(in); got != want {
		t.Errorf("unwrapLines = %q, want %q", got, want)
	}
}

func TestFileDispatch(t *testing.T) {
	dir := t.TempDir()
	write := func(name, body string) string {
		path := filepath.Join(dir, name)
		if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
			t.Fatal(err)
		}
		return path
	}

	tests := []struct {
		path     string
		wantKind string
		wantErr  error
	}{
		{write("notes.txt", "\xEF\xBB\xBFPlain words."), KindText, nil},
		{write("readme.md", "# Title\n\nBody."), KindMarkdown, nil},
		{write("page.html", "<html><body><p>Hi.</p></body></html>"), KindURL, nil},
		{write("empty.txt", "  \n"), "", ErrNoContent},
		{write("image.png", "PNG"), "", ErrUnsupported},
		{filepath.Join(dir, "missing.txt"), "", os.ErrNotExist},
	}

	e := newTestExtractor()
	for _, tt := range tests {
		t.Run(filepath.Base(tt.path), func(t *testing.T) {
			doc, err := e.Extract(context.Background(), tt.path)
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Fatalf("error = %v, want %v", err, tt.wantErr)
				}
				return
			}
			if err != nil {
				t.Fatalf("Extract failed: %v", err)
			}
			if doc.Kind != tt.wantKind {
				t.Errorf("Kind = %q, want %q", doc.Kind, tt.wantKind)
			}
			if strings.HasPrefix(doc.Text, "\uFEFF") {
				t.Error("BOM not stripped")
			}
		})
	}
}

func TestFileTooLarge(t *testing.T) {
	path := filepath.Join(t.TempDir(), "big.txt")
	if err := os.WriteFile(path, bytes.Repeat([]byte("a "), 100), 0o644); err != nil {
		t.Fatal(err)
	}
	_, err := newTestExtractor(WithMaxBytes(10)).File(context.Background(), path)
	if !errors.Is(err, ErrTooLarge) {
		t.Errorf("error = %v, want ErrTooLarge", err)
	}
}

func TestURL(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/article", func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("User-Agent") != "test-agent" {
			http.Error(w, "bad agent", http.StatusForbidden)
			return
		}
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		_, _ = io.WriteString(w, `<html><head><title>Remote</title></head><body><article><p>Fetched text.</p></article></body></html>`)
	})
	mux.HandleFunc("/notes", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/plain")
		_, _ = io.WriteString(w, "Plain remote notes.")
	})
	mux.HandleFunc("/gone", func(w http.ResponseWriter, r *http.Request) {
		http.NotFound(w, r)
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	e := newTestExtractor(WithHTTPClient(srv.Client()), WithUserAgent("test-agent"))

	doc, err := e.Extract(context.Background(), srv.URL+"/article")
	if err != nil {
		t.Fatalf("URL failed: %v", err)
	}
	if doc.Title != "Remote" || doc.Text != "Fetched text." || doc.Kind != KindURL {
		t.Errorf("unexpected document: %+v", doc)
	}

	doc, err = e.URL(context.Background(), srv.URL+"/notes")
	if err != nil {
		t.Fatalf("URL failed: %v", err)
	}
	if doc.Kind != KindText || doc.Title != "notes" {
		t.Errorf("unexpected document: %+v", doc)
	}

	if _, err := e.URL(context.Background(), srv.URL+"/gone"); err == nil {
		t.Error("expected error for 404")
	}
	if _, err := e.URL(context.Background(), "ftp://example.com/x"); err == nil {
		t.Error("expected error for unsupported scheme")
	}
}
