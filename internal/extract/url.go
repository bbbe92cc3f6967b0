package extract

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"mime"
	"net/http"
	"net/url"
	"path"
	"strings"
)

// URL downloads a page or document and extracts it according to its
// content type.
func (e *Extractor) URL(ctx context.Context, rawURL string) (Document, error) {
	fail := func(err error) (Document, error) {
		return Document{}, &ExtractionError{Kind: KindURL, Source: rawURL, Err: err}
	}

	u, err := url.Parse(rawURL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return fail(fmt.Errorf("invalid url %q", rawURL))
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return fail(err)
	}
	req.Header.Set("User-Agent", e.userAgent)
	req.Header.Set("Accept", "text/html,application/xhtml+xml,application/pdf,application/epub+zip;q=0.9,*/*;q=0.8")

	resp, err := e.client.Do(req)
	if err != nil {
		return fail(err)
	}
	defer resp.Body.Close() //nolint:errcheck

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fail(fmt.Errorf("unexpected status: %s", resp.Status))
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, e.maxBytes+1))
	if err != nil {
		return fail(err)
	}
	if int64(len(body)) > e.maxBytes {
		return fail(ErrTooLarge)
	}

	name := path.Base(u.Path)
	if name == "." || name == "/" {
		name = u.Host
	}
	mediaType, _, _ := mime.ParseMediaType(resp.Header.Get("Content-Type"))
	e.logger.Debug("fetched url", "url", rawURL, "type", mediaType, "bytes", len(body))

	switch {
	case mediaType == "application/pdf" || strings.HasSuffix(strings.ToLower(u.Path), ".pdf"):
		return e.PDF(ctx, body, name)
	case mediaType == "application/epub+zip" || strings.HasSuffix(strings.ToLower(u.Path), ".epub"):
		return e.EPUB(body, name)
	case mediaType == "text/markdown":
		return e.Markdown(body, name)
	case mediaType == "text/plain":
		return e.Text(body, name)
	default:
		return e.HTML(bytes.NewReader(body), rawURL)
	}
}
