package main

import (
	"context"
	"io"
	"strings"
	"testing"

	"github.com/charmbracelet/log"
	"github.com/dgnsrekt/readaloud/internal/extract"
)

func TestParseSeek(t *testing.T) {
	tests := []struct {
		arg     string
		want    seekTarget
		wantErr bool
	}{
		{arg: "90", want: seekTarget{seconds: 90}},
		{arg: "1:30", want: seekTarget{seconds: 90}},
		{arg: "1:00:05", want: seekTarget{seconds: 3605}},
		{arg: "50%", want: seekTarget{percent: 50, isPct: true}},
		{arg: "+10", want: seekTarget{seconds: 10, relative: true}},
		{arg: "-15", want: seekTarget{seconds: -15, relative: true}},
		{arg: "-0:30", want: seekTarget{seconds: -30, relative: true}},
		{arg: "", wantErr: true},
		{arg: "abc", wantErr: true},
		{arg: "x%", wantErr: true},
		{arg: "1:2:3:4", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.arg, func(t *testing.T) {
			got, err := parseSeek(tt.arg)
			if tt.wantErr {
				if err == nil {
					t.Fatalf("parseSeek(%q) = %+v, want error", tt.arg, got)
				}
				return
			}
			if err != nil {
				t.Fatalf("parseSeek(%q) failed: %v", tt.arg, err)
			}
			if got != tt.want {
				t.Errorf("parseSeek(%q) = %+v, want %+v", tt.arg, got, tt.want)
			}
		})
	}
}

func TestOutputFormat(t *testing.T) {
	tests := []struct {
		output, format string
		want           string
		wantErr        bool
	}{
		{"", "", "wav", false},
		{"book.mp3", "", "mp3", false},
		{"book.WAV", "", "wav", false},
		{"book", "MP3", "mp3", false},
		{"book.ogg", "", "", true},
		{"", "flac", "", true},
	}

	for _, tt := range tests {
		got, err := outputFormat(tt.output, tt.format)
		if (err != nil) != tt.wantErr {
			t.Errorf("outputFormat(%q, %q) error = %v, wantErr %v", tt.output, tt.format, err, tt.wantErr)
			continue
		}
		if got != tt.want {
			t.Errorf("outputFormat(%q, %q) = %q, want %q", tt.output, tt.format, got, tt.want)
		}
	}
}

func TestOutputName(t *testing.T) {
	tests := map[string]string{
		"The Quick Fox": "The_Quick_Fox.wav",
		"a/b:c":         "abc.wav",
		"":              "readaloud.wav",
		"..":            "readaloud.wav",
		"  Notes ":      "Notes.wav",
	}
	for title, want := range tests {
		if got := outputName(title, "wav"); got != want {
			t.Errorf("outputName(%q) = %q, want %q", title, got, want)
		}
	}
}

func TestFilterVoices(t *testing.T) {
	entries := []voiceEntry{
		{key: "en_US-lessac-medium", line: "lessac"},
		{key: "de_DE-thorsten-low", line: "thorsten"},
		{key: "en_GB-alan-low", line: "alan"},
	}

	got := filterVoices(entries, "lessac")
	if len(got) != 1 || got[0].line != "lessac" {
		t.Errorf("filterVoices(lessac) = %+v", got)
	}

	if got := filterVoices(entries, "zzz"); len(got) != 0 {
		t.Errorf("filterVoices(zzz) = %+v, want none", got)
	}
}

func TestReadDocumentFromStdin(t *testing.T) {
	e := extract.New(log.New(io.Discard))
	doc, err := readDocument(context.Background(), e, []string{"-"}, false, strings.NewReader("Hello from a pipe."))
	if err != nil {
		t.Fatalf("readDocument failed: %v", err)
	}
	if doc.Text != "Hello from a pipe." || doc.Kind != extract.KindText {
		t.Errorf("readDocument = %+v", doc)
	}
}
