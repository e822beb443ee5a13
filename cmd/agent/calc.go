package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/tbourn/go-chat-agent/internal/tools"
)

func newCalcCmd() *cobra.Command {
	return &cobra.Command{
		Use:   `calc "<expression>"`,
		Short: "Evaluate an expression with the sandboxed calculator",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			expr := strings.Join(args, " ")
			v, err := tools.Evaluate(expr)
			if err != nil {
				return fmt.Errorf("calc: %w", err)
			}
			fmt.Fprintln(cmd.OutOrStdout(), tools.FormatNumber(v))
			return nil
		},
	}
}
