package cli

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/roach88/eqb/internal/operators"
)

// FuncResult is the JSON payload of func.
type FuncResult struct {
	Text string `json:"text"`
	Type string `json:"type"`
}

// NewFuncCommand creates the func command.
func NewFuncCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "func <text>",
		Short: "Print the Go type an EdgeQL function call returns",
		Long: `Look up the function named in an EdgeQL call and print the Go type
the query builder maps its result to.

Examples:
  eqb func 'count(.friends)'
  eqb func 'math::mean(.scores)' --format json`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runFunc(rootOpts, args[0], cmd)
		},
	}
	return cmd
}

func runFunc(opts *RootOptions, text string, cmd *cobra.Command) error {
	pr := newPrinter(opts, cmd)

	t, ok := operators.ReverseLookupFunction(text)
	if !ok {
		return pr.fail(ExitRejected, CodeNotFound, fmt.Sprintf("no known function in %q", text), nil)
	}

	return pr.result(FuncResult{Text: text, Type: t.String()}, func(w io.Writer) error {
		_, err := fmt.Fprintln(w, t.String())
		return err
	})
}
