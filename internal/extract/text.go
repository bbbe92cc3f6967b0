package extract

import (
	"bytes"
	"errors"
	"unicode/utf8"

	"github.com/atotto/clipboard"
)

var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

// Text wraps plain UTF-8 text.
func (e *Extractor) Text(data []byte, name string) (Document, error) {
	data = bytes.TrimPrefix(data, utf8BOM)
	if !utf8.Valid(data) {
		return Document{}, &ExtractionError{Kind: KindText, Source: name, Err: errors.New("text is not valid UTF-8")}
	}
	return finish(Document{Text: string(data), Kind: KindText}, name)
}

// Clipboard reads the system clipboard.
func (e *Extractor) Clipboard() (Document, error) {
	s, err := clipboard.ReadAll()
	if err != nil {
		return Document{}, &ExtractionError{Kind: KindClipboard, Source: "clipboard", Err: err}
	}
	return finish(Document{Text: s, Title: "Clipboard", Kind: KindClipboard}, "clipboard")
}
