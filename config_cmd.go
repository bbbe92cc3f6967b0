package main

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path"
	"path/filepath"

	"github.com/charmbracelet/x/editor"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

const defaultConfig = `# readaloud configuration. Durations use Go syntax: 100ms, 2m, 168h.
server:
  # address the web player listens on
  addr: "127.0.0.1:5000"
  # where rendered audio is written; stale files are removed on start
  # scratch_dir: "~/.cache/readaloud/audio"
  # "speaker" plays through the sound card, "none" only serves the player
  sink: "speaker"
  max_upload_mb: 50

playback:
  default_speed: 1.0
  min_speed: 0.5
  max_speed: 4.0
  # how often the position advances
  tick: "100ms"
  # "wrap" starts over at the end, "stop" stops
  at_end: "wrap"
  synthesis_timeout: "2m"
  retries: 1
  auto_play: false
  volume: 1.0

tts:
  # piper, gtts or mock
  engine: "gtts"
  workers: 2
  # longest piece of text sent to the engine at once
  chunk_size: 400
  # silence between chunks
  gap: "150ms"
  piper:
    binary: "piper"
    # model: "~/.local/share/piper/en_US-lessac-medium.onnx"
    # speaker: "0"
  gtts:
    language: "en"
    # tld: "co.uk"
    slow: false
    requests_per_minute: 50
  mock:
    words_per_minute: 180

cache:
  enabled: true
  # dir: "~/.cache/readaloud/pcm"
  memory_mb: 64
  disk_mb: 512
  # zstd level for the disk cache, 0 stores raw PCM
  compression: 3
  ttl: "168h"

extract:
  pdftotext: "pdftotext"
  # user_agent: "readaloud"
  max_mb: 50
`

var configCheck bool

var configCmd = &cobra.Command{
	Use:     "config",
	Hidden:  false,
	Short:   "Edit the readaloud config file",
	Long:    paragraph(fmt.Sprintf("\n%s the readaloud config file. We’ll use EDITOR to determine which editor to use. If the config file doesn't exist, it will be created.", keyword("Edit"))),
	Example: paragraph("readaloud config\nreadaloud config --config path/to/config.yml\nreadaloud config --check"),
	Args:    cobra.NoArgs,
	RunE: func(*cobra.Command, []string) error {
		if configCheck {
			return checkConfig()
		}
		if err := ensureConfigFile(); err != nil {
			return err
		}

		c, err := editor.Cmd("readaloud", configFile)
		if err != nil {
			return fmt.Errorf("unable to set config file: %w", err)
		}
		c.Stdin = os.Stdin
		c.Stdout = os.Stdout
		c.Stderr = os.Stderr
		if err := c.Run(); err != nil {
			return fmt.Errorf("unable to run command: %w", err)
		}

		fmt.Println("Wrote config file to:", configFile)
		return nil
	},
}

func init() {
	configCmd.Flags().BoolVar(&configCheck, "check", false, "validate the config and print the effective settings")
}

// checkConfig loads and validates the configuration without starting anything.
func checkConfig() error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	used := viper.ConfigFileUsed()
	if used == "" {
		used = "(defaults only)"
	}
	fmt.Println(keyword("Config OK"), faint(used))
	fmt.Printf("  player   http://%s (sink: %s)\n", cfg.Server.Addr, cfg.Server.Sink)
	fmt.Printf("  engine   %s, %d workers, %d char chunks\n", cfg.TTS.Engine, cfg.TTS.Workers, cfg.TTS.ChunkSize)
	fmt.Printf("  speed    %.2gx (%.2g-%.2g), at end: %s\n",
		cfg.Playback.DefaultSpeed, cfg.Playback.MinSpeed, cfg.Playback.MaxSpeed, cfg.Playback.AtEnd)
	fmt.Printf("  scratch  %s\n", cfg.Server.ScratchDir)
	if cfg.Cache.Enabled {
		fmt.Printf("  cache    %s, %d MB memory, %d MB disk\n", cfg.Cache.Dir, cfg.Cache.MemoryMB, cfg.Cache.DiskMB)
	} else {
		fmt.Println("  cache    disabled")
	}
	return nil
}

func ensureConfigFile() error {
	if configFile == "" {
		configFile = viper.GetViper().ConfigFileUsed()
		if err := os.MkdirAll(filepath.Dir(configFile), 0o755); err != nil { //nolint:gosec
			return fmt.Errorf("could not write configuration file: %w", err)
		}
	}

	if ext := path.Ext(configFile); ext != ".yaml" && ext != ".yml" {
		return fmt.Errorf("'%s' is not a supported configuration type: use '%s' or '%s'", ext, ".yaml", ".yml")
	}

	if _, err := os.Stat(configFile); errors.Is(err, fs.ErrNotExist) {
		// File doesn't exist yet, create all necessary directories and
		// write the default config file
		if err := os.MkdirAll(filepath.Dir(configFile), 0o700); err != nil {
			return fmt.Errorf("unable create directory: %w", err)
		}

		f, err := os.Create(configFile)
		if err != nil {
			return fmt.Errorf("unable to create config file: %w", err)
		}
		defer func() { _ = f.Close() }()

		if _, err := f.WriteString(defaultConfig); err != nil {
			return fmt.Errorf("unable to write config file: %w", err)
		}
	} else if err != nil { // some other error occurred
		return fmt.Errorf("unable to stat config file: %w", err)
	}
	return nil
}
