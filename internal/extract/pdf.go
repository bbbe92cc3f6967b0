package extract

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"strings"
	"time"
)

// PDF extracts text with poppler's pdftotext. The title comes from the PDF
// metadata when pdfinfo is available.
func (e *Extractor) PDF(ctx context.Context, data []byte, name string) (Document, error) {
	fail := func(err error) (Document, error) {
		return Document{}, &ExtractionError{Kind: KindPDF, Source: name, Err: err}
	}
	if !bytes.HasPrefix(data, []byte("%PDF")) {
		return fail(errors.New("not a PDF file"))
	}

	f, err := os.CreateTemp("", "readaloud-*.pdf")
	if err != nil {
		return fail(err)
	}
	defer os.Remove(f.Name()) //nolint:errcheck
	if _, err := f.Write(data); err != nil {
		f.Close() //nolint:errcheck
		return fail(err)
	}
	if err := f.Close(); err != nil {
		return fail(err)
	}

	out, err := runTool(ctx, e.pdftotext, "-enc", "UTF-8", "-nopgbrk", f.Name(), "-")
	if err != nil {
		return fail(err)
	}

	title, err := e.pdfTitle(ctx, f.Name())
	if err != nil {
		e.logger.Debug("no pdf metadata", "file", name, "err", err)
	}
	return finish(Document{Text: unwrapLines(string(out)), Title: title, Kind: KindPDF}, name)
}

func (e *Extractor) pdfTitle(ctx context.Context, path string) (string, error) {
	out, err := runTool(ctx, e.pdfinfo, path)
	if err != nil {
		return "", err
	}
	sc := bufio.NewScanner(bytes.NewReader(out))
	for sc.Scan() {
		if v, ok := strings.CutPrefix(sc.Text(), "Title:"); ok {
			return strings.TrimSpace(v), nil
		}
	}
	return "", nil
}

// unwrapLines joins hard-wrapped lines inside paragraphs and rejoins words
// hyphenated across a line break.
func unwrapLines(text string) string {
	var paras []string
	var cur strings.Builder
	flush := func() {
		if cur.Len() > 0 {
			paras = append(paras, cur.String())
			cur.Reset()
		}
	}

	for _, line := range strings.Split(strings.ReplaceAll(text, "\r\n", "\n"), "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			flush()
			continue
		}
		switch {
		case cur.Len() == 0:
		case strings.HasSuffix(cur.String(), "-"):
			s := cur.String()
			cur.Reset()
			cur.WriteString(s[:len(s)-1])
		default:
			cur.WriteByte(' ')
		}
		cur.WriteString(line)
	}
	flush()
	return strings.Join(paras, "\n\n")
}

// runTool runs an external extractor with a one minute limit.
func runTool(ctx context.Context, name string, args ...string) ([]byte, error) {
	ctx, cancel := context.WithTimeout(ctx, time.Minute)
	defer cancel()

	cmd := exec.CommandContext(ctx, name, args...)
	cmd.Cancel = func() error { return cmd.Process.Signal(os.Interrupt) }
	cmd.WaitDelay = 100 * time.Millisecond

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		if errors.Is(err, exec.ErrNotFound) {
			return nil, fmt.Errorf("%s is not installed: %w", name, err)
		}
		return nil, fmt.Errorf("%s failed: %w, stderr: %s", name, err, strings.TrimSpace(stderr.String()))
	}
	return stdout.Bytes(), nil
}
