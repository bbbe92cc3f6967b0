package main

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/dgnsrekt/readaloud/internal/tts/engines"
	"github.com/dustin/go-humanize"
	"github.com/mitchellh/go-homedir"
	"github.com/sahilm/fuzzy"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var (
	voicesDir    string
	voicesEngine string

	voicesCmd = &cobra.Command{
		Use:   "voices [QUERY]",
		Short: "List installed Piper voices or gTTS languages",
		Long: paragraph(fmt.Sprintf("\n%s the voices the configured engine can use. "+
			"An optional query is matched fuzzily.", keyword("List"))),
		Example: paragraph("readaloud voices\nreadaloud voices lessac\nreadaloud voices --engine gtts port"),
		Args:    cobra.MaximumNArgs(1),
		RunE:    runVoices,
	}
)

func init() {
	voicesCmd.Flags().StringVar(&voicesDir, "dir", "", "directory holding Piper .onnx models (default: the configured model's directory)")
	voicesCmd.Flags().StringVar(&voicesEngine, "engine", "", "piper or gtts (default: tts.engine)")
}

// voiceEntry is one listed voice and the text the query matches against.
type voiceEntry struct {
	key  string
	line string
}

func runVoices(cmd *cobra.Command, args []string) error {
	engine := voicesEngine
	if engine == "" {
		engine = viper.GetString("tts.engine")
	}

	var entries []voiceEntry
	var err error
	switch strings.ToLower(engine) {
	case "piper":
		entries, err = piperVoices()
	case "gtts", "google":
		entries, err = gttsVoices(cmd)
	default:
		return fmt.Errorf("the %s engine has no voices to list", engine)
	}
	if err != nil {
		return err
	}

	if len(args) == 1 {
		entries = filterVoices(entries, args[0])
	}
	if len(entries) == 0 {
		fmt.Println(faint("No voices found."))
		return nil
	}
	for _, e := range entries {
		fmt.Println(e.line)
	}
	return nil
}

func piperVoices() ([]voiceEntry, error) {
	dir := voicesDir
	if dir == "" {
		if model := viper.GetString("tts.piper.model"); model != "" {
			dir = filepath.Dir(model)
		}
	}
	if dir == "" {
		return nil, errors.New("no voices directory: pass --dir or set tts.piper.model")
	}
	dir, err := homedir.Expand(dir)
	if err != nil {
		return nil, fmt.Errorf("unable to expand voices directory: %w", err)
	}

	voices, err := engines.ListVoices(dir)
	if err != nil {
		return nil, err
	}
	entries := make([]voiceEntry, 0, len(voices))
	for _, v := range voices {
		size := "?"
		if info, err := os.Stat(v.ModelPath); err == nil {
			size = humanize.Bytes(uint64(info.Size())) //nolint:gosec
		}
		rate := "unknown rate"
		if v.SampleRate > 0 {
			rate = humanize.Comma(int64(v.SampleRate)) + " Hz"
		}
		entries = append(entries, voiceEntry{
			key:  v.Name,
			line: fmt.Sprintf("%s %s", keyword(v.Name), faint(fmt.Sprintf("(%s, %s)", rate, size))),
		})
	}
	return entries, nil
}

func gttsVoices(cmd *cobra.Command) ([]voiceEntry, error) {
	langs, err := engines.Languages(cmd.Context())
	if err != nil {
		return nil, fmt.Errorf("unable to list gTTS languages: %w", err)
	}
	entries := make([]voiceEntry, 0, len(langs))
	for _, l := range langs {
		entries = append(entries, voiceEntry{
			key:  l.Code + " " + l.Name,
			line: fmt.Sprintf("%s %s", keyword(fmt.Sprintf("%-8s", l.Code)), l.Name),
		})
	}
	return entries, nil
}

// filterVoices keeps the entries matching query, best match first.
func filterVoices(entries []voiceEntry, query string) []voiceEntry {
	keys := make([]string, len(entries))
	for i, e := range entries {
		keys[i] = e.key
	}
	matches := fuzzy.Find(query, keys)
	out := make([]voiceEntry, 0, len(matches))
	for _, m := range matches {
		out = append(out, entries[m.Index])
	}
	return out
}
