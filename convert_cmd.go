package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/charmbracelet/log"
	"github.com/dgnsrekt/readaloud/internal/extract"
	"github.com/dgnsrekt/readaloud/internal/scratch"
	"github.com/dgnsrekt/readaloud/internal/tts"
	"github.com/dgnsrekt/readaloud/internal/tts/engines"
	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"
)

var (
	convertOutput    string
	convertFormat    string
	convertSpeed     float64
	convertClipboard bool

	convertCmd = &cobra.Command{
		Use:   "convert [SOURCE|-]",
		Short: "Write a document to an audio file",
		Long: paragraph(fmt.Sprintf("\n%s a PDF, EPUB, web page, markdown or text file to WAV or MP3 "+
			"without starting the player. Use - to read text from stdin.", keyword("Convert"))),
		Example: paragraph("readaloud convert book.epub\nreadaloud convert https://example.com/post -o post.mp3\n" +
			"readaloud convert --clipboard --speed 1.5"),
		Args: cobra.MaximumNArgs(1),
		PreRunE: func(cmd *cobra.Command, _ []string) error {
			return bindFlags(cmd, map[string]string{"tts.engine": "engine"})
		},
		RunE: runConvert,
	}
)

func init() {
	convertCmd.Flags().StringVarP(&convertOutput, "output", "o", "", "output file (default: the document title)")
	convertCmd.Flags().StringVarP(&convertFormat, "format", "f", "", "wav or mp3 (default: from the output name, else wav)")
	convertCmd.Flags().Float64VarP(&convertSpeed, "speed", "s", 1, "speech speed")
	convertCmd.Flags().BoolVarP(&convertClipboard, "clipboard", "c", false, "read the system clipboard")
	convertCmd.Flags().String("engine", "", "speech engine: piper, gtts or mock")
}

func runConvert(cmd *cobra.Command, args []string) error {
	if len(args) == 0 && !convertClipboard {
		return errors.New("nothing to convert: pass a file, URL, - or --clipboard")
	}
	format, err := outputFormat(convertOutput, convertFormat)
	if err != nil {
		return err
	}

	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	ctx := cmd.Context()
	extractor := newExtractor(cfg)
	doc, err := readDocument(ctx, extractor, args, convertClipboard, os.Stdin)
	if err != nil {
		return err
	}
	log.Info("Read document", "title", doc.Title, "kind", doc.Kind, "chars", len(doc.Text))

	tmp, err := os.MkdirTemp("", "readaloud-convert-")
	if err != nil {
		return fmt.Errorf("unable to create work directory: %w", err)
	}
	defer os.RemoveAll(tmp) //nolint:errcheck

	store, err := scratch.New(tmp, log.WithPrefix("scratch"))
	if err != nil {
		return err
	}
	sp, err := newSpeech(cfg, store)
	if err != nil {
		return err
	}
	defer sp.Close() //nolint:errcheck

	speed := tts.ClampSpeed(convertSpeed, cfg.Playback.MinSpeed, cfg.Playback.MaxSpeed)
	start := time.Now()
	src, err := sp.renderer.Render(ctx, doc.Text, speed)
	if err != nil {
		return err
	}

	out := convertOutput
	if out == "" {
		out = outputName(doc.Title, format)
	}
	n, err := writeAudio(ctx, src.Path, out, format)
	if err != nil {
		return err
	}

	fmt.Printf("%s %s %s\n", keyword("Wrote"), out, faint(fmt.Sprintf("(%s, %s of audio, took %s)",
		humanize.Bytes(uint64(n)), src.Duration().Round(time.Second), //nolint:gosec
		time.Since(start).Round(time.Millisecond))))
	return nil
}

// readDocument extracts the document named by args, or the clipboard.
func readDocument(ctx context.Context, e *extract.Extractor, args []string, fromClipboard bool, stdin io.Reader) (extract.Document, error) {
	switch {
	case fromClipboard:
		return e.Clipboard()
	case args[0] == "-":
		data, err := io.ReadAll(stdin)
		if err != nil {
			return extract.Document{}, fmt.Errorf("unable to read stdin: %w", err)
		}
		return e.Text(data, "stdin")
	default:
		return e.Extract(ctx, args[0])
	}
}

// outputFormat picks the format from the flag, then the output extension.
func outputFormat(output, format string) (string, error) {
	if format == "" {
		format = strings.TrimPrefix(strings.ToLower(filepath.Ext(output)), ".")
		if format == "" {
			format = "wav"
		}
	}
	format = strings.ToLower(format)
	if format != "wav" && format != "mp3" {
		return "", fmt.Errorf("unsupported format %q: use wav or mp3", format)
	}
	return format, nil
}

// outputName turns a title into a file name in the working directory.
func outputName(title, format string) string {
	name := strings.Map(func(r rune) rune {
		switch {
		case r == '/' || r == '\\' || r == ':' || r < ' ':
			return -1
		case r == ' ':
			return '_'
		default:
			return r
		}
	}, strings.TrimSpace(title))
	if name == "" || name == "." || name == ".." {
		name = "readaloud"
	}
	return name + "." + format
}

func writeAudio(ctx context.Context, wavPath, out, format string) (int64, error) {
	f, err := os.Create(out)
	if err != nil {
		return 0, fmt.Errorf("unable to create output file: %w", err)
	}
	defer f.Close() //nolint:errcheck

	var n int64
	if format == "mp3" {
		data, err := engines.ToMP3(ctx, wavPath)
		if err != nil {
			return 0, err
		}
		written, err := f.Write(data)
		n = int64(written)
		if err != nil {
			return n, fmt.Errorf("unable to write output file: %w", err)
		}
	} else {
		in, err := os.Open(wavPath)
		if err != nil {
			return 0, fmt.Errorf("unable to read rendered audio: %w", err)
		}
		defer in.Close() //nolint:errcheck
		if n, err = io.Copy(f, in); err != nil {
			return n, fmt.Errorf("unable to write output file: %w", err)
		}
	}
	return n, f.Close()
}
