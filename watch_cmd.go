package main

import (
	"fmt"

	"github.com/caarlos0/env/v11"
	"github.com/dgnsrekt/readaloud/internal/client"
	"github.com/dgnsrekt/readaloud/ui"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Control a running player from the terminal",
	Long: paragraph(fmt.Sprintf("\n%s the player state live and control it with the keyboard.",
		keyword("Watch"))),
	Example: paragraph("readaloud watch\nreadaloud watch --addr 192.168.1.20:5000"),
	Args:    cobra.NoArgs,
	RunE: func(*cobra.Command, []string) error {
		// Read environment to get key steps and screen mode
		cfg, err := env.ParseAs[ui.Config]()
		if err != nil {
			return fmt.Errorf("error parsing config: %w", err)
		}
		cfg.Addr = watchAddr
		if cfg.Addr == "" {
			cfg.Addr = viper.GetString("server.addr")
		}

		c, err := client.New(cfg.Addr, nil)
		if err != nil {
			return err
		}
		if _, err := ui.NewProgram(cfg, c).Run(); err != nil {
			return fmt.Errorf("unable to run tui program: %w", err)
		}
		return nil
	},
}

var watchAddr string

func init() {
	watchCmd.Flags().StringVar(&watchAddr, "addr", "", "player address (default: server.addr)")
}
