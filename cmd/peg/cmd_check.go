package main

import (
	"fmt"
	"os"

	"github.com/dhamidi/peg/grammar"
	"github.com/spf13/cobra"
)

func newCheckCmd() *cobra.Command {
	var asError bool

	cmd := &cobra.Command{
		Use:   "check <grammar.json>",
		Short: "Validate a grammar and report structural problems",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			g, err := loadGrammar(args[0])
			if err != nil {
				return err
			}

			warnings := grammar.NewAnalyzer(g).Analyze()
			for _, w := range warnings {
				fmt.Fprintf(os.Stderr, "%s: %s\n", args[0], w)
			}
			if len(warnings) > 0 && asError {
				return fmt.Errorf("%d warning(s)", len(warnings))
			}
			if len(warnings) == 0 {
				fmt.Printf("%s: ok (%d atoms)\n", args[0], g.Len())
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&asError, "strict", false, "exit non-zero when the analyzer reports warnings")

	return cmd
}
