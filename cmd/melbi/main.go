// Command melbi is the Melbi expression language CLI: evaluate
// expressions, type-check and disassemble them, or start a REPL.
package main

import (
	"fmt"
	"os"

	"github.com/mattn/go-isatty"
	"github.com/spf13/cobra"

	"github.com/melbi-lang/melbi/internal/config"
)

var (
	flagConfig string
	cfg        *config.File
)

func colorize() bool {
	switch cfg.Color {
	case "always":
		return true
	case "never":
		return false
	}
	return isatty.IsTerminal(os.Stderr.Fd())
}

func main() {
	root := &cobra.Command{
		Use:     "melbi",
		Short:   "Melbi embeddable expression language",
		Version: config.Version,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			path := flagConfig
			explicit := path != ""
			if !explicit {
				path = config.DefaultFileName
			}
			var err error
			cfg, err = config.Load(path, explicit)
			return err
		},
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVar(&flagConfig, "config", "", "path to melbi.yaml")

	root.AddCommand(newRunCmd())
	root.AddCommand(newCheckCmd())
	root.AddCommand(newReplCmd())

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}
