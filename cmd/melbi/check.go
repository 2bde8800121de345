package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/melbi-lang/melbi/internal/arena"
	"github.com/melbi-lang/melbi/internal/vm"
	"github.com/melbi-lang/melbi/pkg/melbi"
)

func newCheckCmd() *cobra.Command {
	var disasm bool
	cmd := &cobra.Command{
		Use:   "check <expr | file>",
		Short: "Type-check an expression and print its type",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			source, err := readSource(args)
			if err != nil {
				return err
			}
			engine := newEngine(arena.New())
			expr, err := engine.Compile(melbi.CompileOptions{}, source, nil)
			if err != nil {
				return fmt.Errorf("check failed")
			}
			fmt.Println(expr.ReturnType())
			if disasm {
				fmt.Print(vm.Disassemble(expr.Code()))
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&disasm, "disasm", false, "print the compiled bytecode")
	return cmd
}
