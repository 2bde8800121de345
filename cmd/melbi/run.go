package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/melbi-lang/melbi/internal/arena"
	"github.com/melbi-lang/melbi/internal/diagnostics"
	"github.com/melbi-lang/melbi/internal/value"
	"github.com/melbi-lang/melbi/pkg/melbi"
)

func newEngine(a *arena.Arena) *melbi.Engine {
	sink := func(d *diagnostics.Diagnostic) {
		diagnostics.Render(os.Stderr, d, colorize())
	}
	return melbi.New(a, melbi.EngineOptions{
		MaxParseDepth: cfg.MaxParseDepth,
		DefaultExecution: melbi.ExecutionOptions{
			MaxRecursionDepth: cfg.MaxRecursionDepth,
			MaxInstructions:   cfg.MaxInstructions,
		},
	}, sink)
}

func readSource(args []string) (string, error) {
	if len(args) == 0 {
		return "", fmt.Errorf("expected an expression or a source file")
	}
	arg := args[0]
	if _, err := os.Stat(arg); err == nil {
		data, err := os.ReadFile(arg)
		if err != nil {
			return "", err
		}
		return string(data), nil
	}
	return arg, nil
}

func newRunCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "run <expr | file>",
		Short: "Evaluate an expression and print the result",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			source, err := readSource(args)
			if err != nil {
				return err
			}
			engineArena := arena.New()
			engine := newEngine(engineArena)

			expr, err := engine.Compile(melbi.CompileOptions{}, source, nil)
			if err != nil {
				return fmt.Errorf("compilation failed")
			}

			valueArena := arena.New()
			result, err := expr.Run(valueArena, nil, nil)
			if err != nil {
				return err
			}
			fmt.Printf("%s : %s\n", value.Display(result), result.Type)
			return nil
		},
	}
}
