package tts

import (
	"reflect"
	"strings"
	"testing"
)

func TestNormalize(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"collapse whitespace", "Hello   world.\tAgain.", "Hello world. Again."},
		{"paragraph gets period", "Title\n\nBody text here.", "Title. Body text here."},
		{"line wrap joins", "one\ntwo\nthree", "one two three."},
		{"crlf", "First\r\n\r\nSecond!", "First. Second!"},
		{"blank", "  \n\n \n", ""},
		{"nfc", "cafe\u0301.", "caf\u00e9."},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Normalize(tt.in); got != tt.want {
				t.Errorf("Normalize(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}

func TestSentences(t *testing.T) {
	c := NewChunker()
	tests := []struct {
		name string
		in   string
		want []string
	}{
		{
			"simple",
			"One. Two! Three?",
			[]string{"One.", "Two!", "Three?"},
		},
		{
			"titles",
			"Dr. Smith met Mr. Jones. They talked.",
			[]string{"Dr. Smith met Mr. Jones.", "They talked."},
		},
		{
			"abbreviation mid sentence",
			"Apples, pears, etc. are fruit. Yes.",
			[]string{"Apples, pears, etc. are fruit.", "Yes."},
		},
		{
			"abbreviation ends sentence",
			"Bring pens, paper, etc. Then sit.",
			[]string{"Bring pens, paper, etc.", "Then sit."},
		},
		{
			"ellipsis",
			"Wait... what happened. Nothing.",
			[]string{"Wait... what happened.", "Nothing."},
		},
		{
			"decimal",
			"Pi is 3.14 roughly. Sure.",
			[]string{"Pi is 3.14 roughly.", "Sure."},
		},
		{
			"quoted",
			`He said "stop." Then left.`,
			[]string{`He said "stop."`, "Then left."},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := c.Sentences(tt.in); !reflect.DeepEqual(got, tt.want) {
				t.Errorf("Sentences(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}

func TestChunkRespectsLimit(t *testing.T) {
	c := NewChunker(WithMaxChars(40))
	text := strings.Repeat("This is a short sentence. ", 10)

	chunks := c.Chunk(text)
	if len(chunks) < 2 {
		t.Fatalf("expected several chunks, got %d", len(chunks))
	}
	for i, chunk := range chunks {
		if n := len([]rune(chunk)); n > 40 {
			t.Errorf("chunk %d has %d chars: %q", i, n, chunk)
		}
		if !strings.HasSuffix(chunk, ".") {
			t.Errorf("chunk %d does not end on a sentence: %q", i, chunk)
		}
	}

	joined := strings.Join(chunks, " ")
	if joined != strings.TrimSpace(text) {
		t.Errorf("chunks lost text:\n%q\n%q", joined, strings.TrimSpace(text))
	}
}

func TestChunkSplitsLongSentence(t *testing.T) {
	c := NewChunker(WithMaxChars(10))
	chunks := c.Chunk("alpha beta gamma delta epsilon supercalifragilistic")

	for i, chunk := range chunks {
		if n := len([]rune(chunk)); n > 10 {
			t.Errorf("chunk %d has %d chars: %q", i, n, chunk)
		}
	}
	if got := strings.Join(chunks, ""); strings.ReplaceAll(got, " ", "") != "alphabetagammadeltaepsilonsupercalifragilistic." {
		t.Errorf("chunks lost text: %q", chunks)
	}
}

func TestChunkEmpty(t *testing.T) {
	if got := NewChunker().Chunk(" \n\n "); len(got) != 0 {
		t.Errorf("Chunk(blank) = %q, want none", got)
	}
}
