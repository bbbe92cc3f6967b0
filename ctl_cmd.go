package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/dgnsrekt/readaloud/internal/client"
	"github.com/dgnsrekt/readaloud/internal/playback"
	"github.com/dgnsrekt/readaloud/ui"
	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var (
	ctlAddr      string
	ctlJSON      bool
	ctlWait      bool
	ctlOutput    string
	ctlClipboard bool
	ctlTitle     string

	ctlCmd = &cobra.Command{
		Use:   "ctl",
		Short: "Control a running player",
		Long: paragraph(fmt.Sprintf("\n%s the player started with %s from the command line.",
			keyword("Control"), keyword("readaloud serve"))),
		Example: paragraph("readaloud ctl toggle\nreadaloud ctl seek 50%\nreadaloud ctl speed 1.5\n" +
			"readaloud ctl load chapter.epub --wait"),
	}
)

func init() {
	ctlCmd.PersistentFlags().StringVar(&ctlAddr, "addr", "", "player address (default: server.addr)")
	ctlCmd.PersistentFlags().BoolVar(&ctlJSON, "json", false, "print the raw JSON reply")

	simple := []struct {
		use, short string
		call       func(*client.Client, context.Context) (playback.StateResponse, error)
	}{
		{"state", "Show what is playing", (*client.Client).State},
		{"toggle", "Play or pause", (*client.Client).Toggle},
		{"play", "Start or resume playback", (*client.Client).Play},
		{"pause", "Pause playback", (*client.Client).Pause},
		{"stop", "Stop and rewind", (*client.Client).Stop},
	}
	for _, s := range simple {
		ctlCmd.AddCommand(&cobra.Command{
			Use:   s.use,
			Short: s.short,
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, _ []string) error {
				c, err := newClient()
				if err != nil {
					return err
				}
				state, err := s.call(c, cmd.Context())
				return printState(state, err)
			},
		})
	}

	seekCmd := &cobra.Command{
		Use:   "seek POSITION",
		Short: "Jump to a position",
		Long: paragraph("\nPOSITION is seconds (90), a clock (1:30), a percentage (50%) " +
			"or a relative offset (+10, -10)."),
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := newClient()
			if err != nil {
				return err
			}
			state, err := seek(cmd.Context(), c, args[0])
			return printState(state, err)
		},
	}

	speedCmd := &cobra.Command{
		Use:   "speed SPEED",
		Short: "Change the speaking speed",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			speed, err := strconv.ParseFloat(strings.TrimSuffix(args[0], "x"), 64)
			if err != nil {
				return fmt.Errorf("invalid speed %q", args[0])
			}
			c, err := newClient()
			if err != nil {
				return err
			}
			state, err := c.SetSpeed(cmd.Context(), speed, ctlWait)
			return printState(state, err)
		},
	}
	speedCmd.Flags().BoolVarP(&ctlWait, "wait", "w", false, "wait for the new audio")

	loadCmd := &cobra.Command{
		Use:   "load [FILE|URL|-]",
		Short: "Load a document into the player",
		Args:  cobra.MaximumNArgs(1),
		RunE:  runLoad,
	}
	loadCmd.Flags().BoolVarP(&ctlWait, "wait", "w", false, "wait until the audio is ready")
	loadCmd.Flags().BoolVarP(&ctlClipboard, "clipboard", "c", false, "read the system clipboard")
	loadCmd.Flags().StringVarP(&ctlTitle, "title", "t", "", "title shown in the player")

	exportCmd := &cobra.Command{
		Use:   "export",
		Short: "Save the current audio as MP3",
		Args:  cobra.NoArgs,
		RunE:  runExport,
	}
	exportCmd.Flags().StringVarP(&ctlOutput, "output", "o", "", "output file (default: the document title)")

	ctlCmd.AddCommand(seekCmd, speedCmd, loadCmd, exportCmd)
}

func newClient() (*client.Client, error) {
	addr := ctlAddr
	if addr == "" {
		addr = viper.GetString("server.addr")
	}
	return client.New(addr, nil)
}

// seekTarget is a parsed seek argument. Exactly one of the forms is set.
type seekTarget struct {
	seconds  float64
	percent  float64
	relative bool
	isPct    bool
}

func parseSeek(arg string) (seekTarget, error) {
	arg = strings.TrimSpace(arg)
	if arg == "" {
		return seekTarget{}, errors.New("empty position")
	}

	if p, ok := strings.CutSuffix(arg, "%"); ok {
		v, err := strconv.ParseFloat(p, 64)
		if err != nil {
			return seekTarget{}, fmt.Errorf("invalid percentage %q", arg)
		}
		return seekTarget{percent: v, isPct: true}, nil
	}

	relative := arg[0] == '+' || arg[0] == '-'
	v, err := parseClock(strings.TrimPrefix(arg, "+"))
	if err != nil {
		return seekTarget{}, err
	}
	return seekTarget{seconds: v, relative: relative}, nil
}

// parseClock reads seconds, MM:SS or HH:MM:SS.
func parseClock(s string) (float64, error) {
	neg := strings.HasPrefix(s, "-")
	parts := strings.Split(strings.TrimPrefix(s, "-"), ":")
	if len(parts) > 3 {
		return 0, fmt.Errorf("invalid position %q", s)
	}
	var total float64
	for _, p := range parts {
		v, err := strconv.ParseFloat(p, 64)
		if err != nil || v < 0 {
			return 0, fmt.Errorf("invalid position %q", s)
		}
		total = total*60 + v
	}
	if neg {
		total = -total
	}
	return total, nil
}

func seek(ctx context.Context, c *client.Client, arg string) (playback.StateResponse, error) {
	target, err := parseSeek(arg)
	if err != nil {
		return playback.StateResponse{}, err
	}
	if target.isPct {
		return c.SeekPercent(ctx, target.percent)
	}
	if target.relative {
		state, err := c.State(ctx)
		if err != nil {
			return state, err
		}
		target.seconds = max(state.Position+target.seconds, 0)
	}
	return c.SeekSeconds(ctx, target.seconds)
}

func runLoad(cmd *cobra.Command, args []string) error {
	if len(args) == 0 && !ctlClipboard {
		return errors.New("nothing to load: pass a file, URL, - or --clipboard")
	}
	c, err := newClient()
	if err != nil {
		return err
	}
	ctx := cmd.Context()

	var reply client.Reply
	switch {
	case ctlClipboard || args[0] == "-":
		reply, err = sendText(ctx, c, args)
	case strings.HasPrefix(args[0], "http://") || strings.HasPrefix(args[0], "https://"):
		reply, err = c.LoadURL(ctx, args[0], ctlWait)
	case isUpload(args[0]):
		reply, err = c.Upload(ctx, args[0], ctlWait)
	default:
		// Markdown, HTML and text files are extracted here and sent as text.
		reply, err = sendText(ctx, c, args)
	}
	if err != nil {
		return err
	}

	if ctlJSON {
		return printJSON(reply)
	}
	fmt.Printf("%s %s %s\n", keyword(reply.Status), reply.Title, faint(reply.Type))
	return nil
}

func sendText(ctx context.Context, c *client.Client, args []string) (client.Reply, error) {
	cfg, err := loadConfig()
	if err != nil {
		return client.Reply{}, err
	}
	doc, err := readDocument(ctx, newExtractor(cfg), args, ctlClipboard, os.Stdin)
	if err != nil {
		return client.Reply{}, err
	}
	title := ctlTitle
	if title == "" {
		title = doc.Title
	}
	return c.LoadText(ctx, doc.Text, title, ctlWait)
}

func isUpload(path string) bool {
	ext := strings.ToLower(filepath.Ext(path))
	return ext == ".pdf" || ext == ".epub"
}

func runExport(cmd *cobra.Command, _ []string) error {
	c, err := newClient()
	if err != nil {
		return err
	}
	ctx := cmd.Context()

	out := ctlOutput
	if out == "" {
		state, err := c.State(ctx)
		if err != nil {
			return err
		}
		out = outputName(state.Title, "mp3")
	}

	f, err := os.Create(out)
	if err != nil {
		return fmt.Errorf("unable to create output file: %w", err)
	}
	n, err := c.ExportMP3(ctx, f)
	if cerr := f.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		_ = os.Remove(out)
		return err
	}
	fmt.Printf("%s %s %s\n", keyword("Wrote"), out, faint(humanize.Bytes(uint64(n)))) //nolint:gosec
	return nil
}

func printState(state playback.StateResponse, err error) error {
	if err != nil && state.State == "" {
		return err
	}
	if ctlJSON {
		if perr := printJSON(state); perr != nil {
			return perr
		}
		return err
	}

	status := ui.NewStatusDisplay()
	status.Update(state)
	if state.Loaded {
		fmt.Println(state.Title, faint(state.Type))
	}
	fmt.Println(status.CompactStatus())
	return err
}

func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
