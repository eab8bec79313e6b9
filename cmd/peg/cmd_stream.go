package main

import (
	"fmt"
	"os"

	"github.com/dhamidi/peg/parse"
	"github.com/dhamidi/peg/stream"
	"github.com/spf13/cobra"
)

func newStreamCmd() *cobra.Command {
	var chunkSize int
	var maxWindow int
	var quiet bool

	cmd := &cobra.Command{
		Use:   "stream <grammar.json> <input-file>",
		Short: "Parse a file as a stream of records without loading it whole",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			g, err := loadGrammar(args[0])
			if err != nil {
				return err
			}

			config := stream.DefaultConfig()
			if chunkSize > 0 {
				config.ChunkSize = chunkSize
			}
			if maxWindow > 0 {
				config.MaxWindow = maxWindow
			}

			p, err := stream.NewParser(g, config)
			if err != nil {
				return err
			}

			stats, err := p.ParseFromFile(args[1], func(rec stream.Record) error {
				if quiet {
					return nil
				}
				if err := parse.Emit(rec.Node, rec.Arena, rec.Input, &parse.JSONBuilder{W: os.Stdout}); err != nil {
					return err
				}
				fmt.Println()
				return nil
			})
			if err != nil {
				return fmt.Errorf("stream: %w", err)
			}
			fmt.Fprintf(os.Stderr, "%d record(s), %d byte(s), peak window %d\n", stats.Records, stats.Bytes, stats.MaxWindow)
			return nil
		},
	}

	cmd.Flags().IntVar(&chunkSize, "chunk-size", 0, "bytes per read (default 64K)")
	cmd.Flags().IntVar(&maxWindow, "max-window", 0, "largest record the window may hold (default 1M)")
	cmd.Flags().BoolVarP(&quiet, "quiet", "q", false, "count records without printing them")

	return cmd
}
