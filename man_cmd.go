package main

import (
	"fmt"

	mcobra "github.com/muesli/mango-cobra"
	"github.com/muesli/roff"
	"github.com/spf13/cobra"
)

var manCmd = &cobra.Command{
	Use:                   "man",
	Short:                 "Generates manpages",
	SilenceUsage:          true,
	DisableFlagsInUseLine: true,
	Hidden:                true,
	Args:                  cobra.NoArgs,
	RunE: func(*cobra.Command, []string) error {
		page, err := mcobra.NewManPage(1, rootCmd)
		if err != nil {
			return fmt.Errorf("unable to generate manpage: %w", err)
		}

		page = page.WithSection("Files", "The configuration file is read from $READALOUD_CONFIG_HOME, "+
			"$XDG_CONFIG_HOME/readaloud or the user config directory, as readaloud.yml.")
		fmt.Println(page.Build(roff.NewDocument()))
		return nil
	},
}
