package main

import (
	"fmt"
	"os"
	"time"

	"github.com/dhamidi/peg/grammar"
	"github.com/dhamidi/peg/parse"
	"github.com/spf13/cobra"
)

func newParseCmd() *cobra.Command {
	var outputFormat string
	var timeout time.Duration
	var maxDepth int
	var trace bool
	var explain bool

	cmd := &cobra.Command{
		Use:   "parse <grammar.json> <input-file>",
		Short: "Parse an input file with a grammar and dump the result",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			g, err := loadGrammar(args[0])
			if err != nil {
				return err
			}
			data, err := os.ReadFile(args[1])
			if err != nil {
				return fmt.Errorf("read input file: %w", err)
			}
			input := string(data)

			opts := []parse.Option{parse.WithMaxDepth(maxDepth)}
			if timeout > 0 {
				opts = append(opts, parse.WithTimeout(timeout))
			}
			var tracer *parse.CollectingTracer
			if trace {
				tracer = &parse.CollectingTracer{}
				opts = append(opts, parse.WithTracer(tracer))
			}

			node, arena, err := parse.Match(g, input, opts...)
			if tracer != nil {
				tracer.Dump(os.Stderr, g)
			}
			if err != nil {
				if explain {
					if rich := parse.Explain(g, input, opts...); rich != nil {
						if r, ok := rich.(*parse.RichError); ok {
							fmt.Fprint(os.Stderr, r.Format())
							return fmt.Errorf("parse failed")
						}
					}
				}
				return fmt.Errorf("parse: %w", err)
			}

			switch outputFormat {
			case "json":
				if err := parse.Emit(node, arena, input, &parse.JSONBuilder{W: os.Stdout}); err != nil {
					return fmt.Errorf("encode json: %w", err)
				}
				fmt.Println()
			case "debug":
				if err := parse.Emit(node, arena, input, &parse.DebugBuilder{W: os.Stdout}); err != nil {
					return fmt.Errorf("encode debug: %w", err)
				}
			default:
				return fmt.Errorf("unknown format: %s", outputFormat)
			}
			return nil
		},
	}

	cmd.Flags().StringVarP(&outputFormat, "format", "f", "json", "output format (json, debug)")
	cmd.Flags().DurationVar(&timeout, "timeout", 0, "abort the parse after this duration")
	cmd.Flags().IntVar(&maxDepth, "max-depth", parse.DefaultMaxDepth, "maximum rule recursion depth")
	cmd.Flags().BoolVar(&trace, "trace", false, "dump every atom evaluation to stderr")
	cmd.Flags().BoolVar(&explain, "explain", false, "print a source-annotated report on failure")

	return cmd
}

func loadGrammar(path string) (*grammar.Grammar, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open grammar: %w", err)
	}
	defer f.Close()
	g, err := grammar.Decode(f)
	if err != nil {
		return nil, fmt.Errorf("decode grammar: %w", err)
	}
	return g, nil
}
