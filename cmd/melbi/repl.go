package main

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/peterh/liner"
	"github.com/spf13/cobra"

	"github.com/melbi-lang/melbi/internal/arena"
	"github.com/melbi-lang/melbi/internal/config"
	"github.com/melbi-lang/melbi/internal/value"
	"github.com/melbi-lang/melbi/pkg/melbi"
)

func newReplCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "repl",
		Short: "Interactive expression evaluation",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			line := liner.NewLiner()
			defer line.Close()
			line.SetCtrlCAborts(true)

			histPath := filepath.Join(os.TempDir(), ".melbi_history")
			if f, err := os.Open(histPath); err == nil {
				line.ReadHistory(f)
				f.Close()
			}
			defer func() {
				if f, err := os.Create(histPath); err == nil {
					line.WriteHistory(f)
					f.Close()
				}
			}()

			fmt.Printf("melbi %s (ctrl-d to exit)\n", config.Version)

			// One engine for the whole session; each evaluation gets a
			// fresh value arena.
			engine := newEngine(arena.New())

			for {
				input, err := line.Prompt("melbi> ")
				if err == liner.ErrPromptAborted || err == io.EOF {
					return nil
				}
				if err != nil {
					return err
				}
				if input == "" {
					continue
				}
				line.AppendHistory(input)

				expr, err := engine.Compile(melbi.CompileOptions{}, input, nil)
				if err != nil {
					continue // diagnostics already rendered by the sink
				}
				result, err := expr.Run(arena.New(), nil, nil)
				if err != nil {
					fmt.Fprintln(os.Stderr, "runtime error:", err)
					continue
				}
				fmt.Printf("%s : %s\n", value.Display(result), result.Type)
			}
		},
	}
}
