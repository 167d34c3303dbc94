package cli

import (
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/roach88/eqb/querybuilder"
)

// NewPrettifyCommand creates the prettify command.
func NewPrettifyCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "prettify",
		Short: "Indent query text read from stdin",
		Long: `Read EdgeQL text on stdin and print it with shapes and parenthesized
blocks broken onto indented lines.

Examples:
  echo 'select Person { name, friends: { name } }' | eqb prettify`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runPrettify(rootOpts, cmd)
		},
	}
	return cmd
}

func runPrettify(opts *RootOptions, cmd *cobra.Command) error {
	pr := newPrinter(opts, cmd)

	in, err := io.ReadAll(cmd.InOrStdin())
	if err != nil {
		return pr.fail(ExitUsage, CodeRead, "failed to read stdin", err)
	}
	text := strings.TrimSpace(string(in))
	if text == "" {
		return pr.fail(ExitUsage, CodeBadInput, "no query text on stdin", nil)
	}

	pretty := querybuilder.Prettify(text)
	return pr.result(QueryOutput{Text: pretty, Parameters: []Parameter{}}, func(w io.Writer) error {
		_, err := fmt.Fprintln(w, pretty)
		return err
	})
}
