package main

import (
	"bytes"
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

func newFmtCmd() *cobra.Command {
	var write bool

	cmd := &cobra.Command{
		Use:   "fmt <grammar.json>...",
		Short: "Reformat grammar files into canonical JSON",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			for _, path := range args {
				if err := formatGrammarFile(path, write); err != nil {
					return err
				}
			}
			return nil
		},
	}

	cmd.Flags().BoolVarP(&write, "write", "w", false, "rewrite files in place instead of printing")

	return cmd
}

func formatGrammarFile(path string, write bool) error {
	g, err := loadGrammar(path)
	if err != nil {
		return err
	}

	var buf bytes.Buffer
	if err := g.Encode(&buf); err != nil {
		return fmt.Errorf("encode grammar: %w", err)
	}
	buf.WriteByte('\n')

	if !write {
		_, err := os.Stdout.Write(buf.Bytes())
		return err
	}
	if err := os.WriteFile(path, buf.Bytes(), 0644); err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}
	return nil
}
