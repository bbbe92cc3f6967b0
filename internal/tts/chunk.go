package tts

import (
	"regexp"
	"strings"
	"unicode"

	"golang.org/x/text/unicode/norm"
)

var paragraphRun = regexp.MustCompile(`\n[ \t]*\n\s*`)

// Chunker splits a document into pieces an engine can synthesize in one call.
// Pieces end on sentence boundaries where possible.
type Chunker struct {
	maxChars      int
	abbreviations map[string]bool
	titles        map[string]bool
}

// ChunkerOption configures a Chunker.
type ChunkerOption func(*Chunker)

// WithMaxChars sets the largest chunk in characters.
func WithMaxChars(n int) ChunkerOption {
	return func(c *Chunker) {
		if n > 0 {
			c.maxChars = n
		}
	}
}

// NewChunker returns a chunker with a 1000 character default.
func NewChunker(opts ...ChunkerOption) *Chunker {
	c := &Chunker{
		maxChars:      1000,
		abbreviations: defaultAbbreviations(),
		titles:        defaultTitleAbbreviations(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Normalize applies NFC, turns blank-line paragraph breaks into sentence
// breaks and collapses whitespace.
func Normalize(text string) string {
	text = norm.NFC.String(text)
	text = strings.ReplaceAll(text, "\r\n", "\n")
	text = paragraphRun.ReplaceAllString(text, "\n\n")

	paras := strings.Split(text, "\n\n")
	out := make([]string, 0, len(paras))
	for _, p := range paras {
		p = strings.Join(strings.Fields(p), " ")
		if p == "" {
			continue
		}
		if r := []rune(p); !strings.ContainsRune(".!?:;", r[len(r)-1]) {
			p += "."
		}
		out = append(out, p)
	}
	return strings.Join(out, " ")
}

// Chunk normalizes text and packs its sentences into chunks.
func (c *Chunker) Chunk(text string) []string {
	var chunks []string
	var cur strings.Builder

	flush := func() {
		if s := strings.TrimSpace(cur.String()); s != "" {
			chunks = append(chunks, s)
		}
		cur.Reset()
	}

	for _, sentence := range c.Sentences(Normalize(text)) {
		for _, piece := range c.splitLong(sentence) {
			if cur.Len() > 0 && len([]rune(cur.String()))+1+len([]rune(piece)) > c.maxChars {
				flush()
			}
			if cur.Len() > 0 {
				cur.WriteByte(' ')
			}
			cur.WriteString(piece)
		}
	}
	flush()
	return chunks
}

// Sentences splits already normalized text into sentences.
func (c *Chunker) Sentences(text string) []string {
	var out []string
	var cur strings.Builder

	runes := []rune(text)
	for i, r := range runes {
		cur.WriteRune(r)
		if c.isBoundary(runes, i) {
			if s := strings.TrimSpace(cur.String()); s != "" {
				out = append(out, s)
			}
			cur.Reset()
		}
	}
	if s := strings.TrimSpace(cur.String()); s != "" {
		out = append(out, s)
	}
	return out
}

// splitLong breaks a sentence longer than maxChars at word boundaries.
func (c *Chunker) splitLong(sentence string) []string {
	if len([]rune(sentence)) <= c.maxChars {
		return []string{sentence}
	}

	var parts []string
	var cur []rune
	for _, word := range strings.Fields(sentence) {
		w := []rune(word)
		for len(w) > c.maxChars {
			if len(cur) > 0 {
				parts = append(parts, string(cur))
				cur = nil
			}
			parts = append(parts, string(w[:c.maxChars]))
			w = w[c.maxChars:]
		}
		if len(cur) > 0 && len(cur)+1+len(w) > c.maxChars {
			parts = append(parts, string(cur))
			cur = nil
		}
		if len(cur) > 0 {
			cur = append(cur, ' ')
		}
		cur = append(cur, w...)
	}
	if len(cur) > 0 {
		parts = append(parts, string(cur))
	}
	return parts
}

func (c *Chunker) isBoundary(runes []rune, pos int) bool {
	r := runes[pos]
	if isCloser(r) && pos > 0 && isTerminal(runes[pos-1]) {
		return pos == len(runes)-1 || unicode.IsSpace(runes[pos+1])
	}
	if !isTerminal(r) {
		return false
	}
	if pos == len(runes)-1 {
		return true
	}

	next := runes[pos+1]
	// Closing quote or bracket right after the punctuation belongs to this sentence.
	if isCloser(next) {
		return false
	}
	if !unicode.IsSpace(next) {
		return false
	}
	if r != '.' {
		return true
	}

	// Ellipsis
	if pos > 0 && runes[pos-1] == '.' {
		return false
	}

	word := strings.ToLower(previousWord(runes, pos))
	if c.titles[word] {
		return false
	}
	if c.abbreviations[word] {
		return nextIsUpper(runes, pos+1)
	}
	return true
}

func isTerminal(r rune) bool { return r == '.' || r == '!' || r == '?' }

func isCloser(r rune) bool {
	return r == '"' || r == '\'' || r == ')' || r == '”' || r == '’'
}

func previousWord(runes []rune, pos int) string {
	start := pos - 1
	for start >= 0 && !unicode.IsSpace(runes[start]) && runes[start] != '(' {
		start--
	}
	return string(runes[start+1 : pos])
}

func nextIsUpper(runes []rune, pos int) bool {
	for pos < len(runes) && unicode.IsSpace(runes[pos]) {
		pos++
	}
	return pos < len(runes) && unicode.IsUpper(runes[pos])
}

func defaultAbbreviations() map[string]bool {
	return map[string]bool{
		"etc": true, "vs": true, "e.g": true, "i.e": true, "cf": true,
		"inc": true, "ltd": true, "co": true, "corp": true, "no": true,
		"jan": true, "feb": true, "mar": true, "apr": true, "jun": true,
		"jul": true, "aug": true, "sep": true, "sept": true, "oct": true,
		"nov": true, "dec": true, "fig": true, "vol": true, "pp": true,
		"approx": true, "dept": true, "est": true,
	}
}

func defaultTitleAbbreviations() map[string]bool {
	return map[string]bool{
		"mr": true, "mrs": true, "ms": true, "dr": true, "prof": true,
		"sr": true, "jr": true, "st": true, "ph.d": true, "m.d": true,
	}
}
