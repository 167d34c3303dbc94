package cli

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"

	"github.com/roach88/eqb/internal/ir"
	"github.com/roach88/eqb/internal/store"
	"github.com/roach88/eqb/querybuilder"
)

// QueryOptions holds flags shared by the query subcommands.
type QueryOptions struct {
	*RootOptions
	Database     string
	SchemaHash   string
	LatestSchema bool
	Pretty       bool
}

// QueryRecordResult is the JSON payload of query record.
type QueryRecordResult struct {
	Query    store.QueryRecord `json:"query"`
	Inserted bool              `json:"inserted"`
}

// queryDocument is the input of query record.
type queryDocument struct {
	Text       string         `json:"text"`
	Parameters map[string]any `json:"parameters"`
}

// NewQueryCommand creates the query command and its subcommands.
func NewQueryCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &QueryOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "query",
		Short: "Record and inspect built queries",
		Long: `Record built queries in the local cache by content hash.

A query document is JSON with the query text and its parameters, as
returned by Build:

  {"text": "select Person filter .age > <int64>$p_1", "parameters": {"p_1": 30}}

Examples:
  eqb query record --db ./eqb.db --latest-schema < query.json
  eqb query show <hash> --db ./eqb.db --pretty
  eqb query list --db ./eqb.db`,
	}

	cmd.PersistentFlags().StringVar(&opts.Database, "db", "", "path to SQLite database (required)")
	_ = cmd.MarkPersistentFlagRequired("db")

	recordCmd := &cobra.Command{
		Use:           "record",
		Short:         "Store a query document read from stdin",
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runQueryRecord(opts, cmd)
		},
	}
	recordCmd.Flags().StringVar(&opts.SchemaHash, "schema", "", "hash of the schema the query was built against")
	recordCmd.Flags().BoolVar(&opts.LatestSchema, "latest-schema", false, "link the query to the latest stored schema")

	showCmd := &cobra.Command{
		Use:           "show <hash>",
		Short:         "Print a stored query",
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runQueryShow(opts, args[0], cmd)
		},
	}
	showCmd.Flags().BoolVar(&opts.Pretty, "pretty", false, "indent the query text")

	listCmd := &cobra.Command{
		Use:           "list",
		Short:         "List stored queries",
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runQueryList(opts, cmd)
		},
	}
	listCmd.Flags().StringVar(&opts.SchemaHash, "schema", "", "only list queries built against this schema hash")

	cmd.AddCommand(recordCmd, showCmd, listCmd)
	return cmd
}

func runQueryRecord(opts *QueryOptions, cmd *cobra.Command) error {
	pr := newPrinter(opts.RootOptions, cmd)
	ctx := context.Background()

	doc, err := decodeQueryDocument(cmd.InOrStdin())
	if err != nil {
		return pr.fail(ExitUsage, CodeBadInput, "invalid query document", err)
	}
	q, err := ir.NewQueryRecord(doc.Text, doc.Parameters)
	if err != nil {
		return pr.fail(ExitRejected, CodeBadInput, "invalid query parameters", err)
	}

	st, err := store.Open(opts.Database)
	if err != nil {
		return pr.fail(ExitUsage, CodeStore, "failed to open database", err)
	}
	defer st.Close()

	schemaHash := opts.SchemaHash
	if opts.LatestSchema {
		_, rec, err := st.LatestSchema(ctx)
		if errors.Is(err, store.ErrNotFound) {
			return pr.fail(ExitUsage, CodeNotFound, "no schema stored", err)
		}
		if err != nil {
			return pr.fail(ExitUsage, CodeStore, "failed to load schema", err)
		}
		schemaHash = rec.Hash
	}

	rec, inserted, err := st.PutQuery(ctx, q, schemaHash)
	if err != nil {
		return pr.fail(ExitUsage, CodeStore, "failed to store query", err)
	}
	pr.logf("Stored query seq %d (inserted=%t)", rec.Seq, inserted)

	return pr.result(QueryRecordResult{Query: rec, Inserted: inserted}, func(w io.Writer) error {
		_, err := fmt.Fprintln(w, rec.Hash)
		return err
	})
}

func runQueryShow(opts *QueryOptions, hash string, cmd *cobra.Command) error {
	pr := newPrinter(opts.RootOptions, cmd)

	st, err := store.Open(opts.Database)
	if err != nil {
		return pr.fail(ExitUsage, CodeStore, "failed to open database", err)
	}
	defer st.Close()

	rec, err := st.QueryByHash(context.Background(), hash)
	if errors.Is(err, store.ErrNotFound) {
		return pr.fail(ExitRejected, CodeNotFound, fmt.Sprintf("query %s not found", hash), nil)
	}
	if err != nil {
		return pr.fail(ExitUsage, CodeStore, "failed to load query", err)
	}
	params, err := parametersOf(rec.Parameters)
	if err != nil {
		return pr.fail(ExitUsage, CodeStore, "stored parameters are unreadable", err)
	}
	q := QueryOutput{Hash: rec.Hash, Text: rec.Text, Parameters: params, SchemaHash: rec.SchemaHash}
	if opts.Pretty {
		q.Text = querybuilder.Prettify(q.Text)
	}
	return pr.query(q)
}

func runQueryList(opts *QueryOptions, cmd *cobra.Command) error {
	pr := newPrinter(opts.RootOptions, cmd)

	st, err := store.Open(opts.Database)
	if err != nil {
		return pr.fail(ExitUsage, CodeStore, "failed to open database", err)
	}
	defer st.Close()

	records, err := st.ListQueries(context.Background(), opts.SchemaHash)
	if err != nil {
		return pr.fail(ExitUsage, CodeStore, "failed to list queries", err)
	}

	return pr.result(records, func(w io.Writer) error {
		if len(records) == 0 {
			_, err := fmt.Fprintln(w, "No queries stored.")
			return err
		}
		for _, rec := range records {
			if _, err := fmt.Fprintf(w, "%d  %s  %s\n", rec.Seq, rec.Hash, rec.Text); err != nil {
				return err
			}
		}
		return nil
	})
}

// decodeQueryDocument reads a query document. Numbers keep their exact
// text: integers become int64 and anything else a decimal.
func decodeQueryDocument(r io.Reader) (queryDocument, error) {
	dec := json.NewDecoder(r)
	dec.UseNumber()
	dec.DisallowUnknownFields()

	var doc queryDocument
	if err := dec.Decode(&doc); err != nil {
		return queryDocument{}, err
	}
	if doc.Text == "" {
		return queryDocument{}, errors.New("missing text")
	}
	for name, v := range doc.Parameters {
		norm, err := normalizeNumbers(v)
		if err != nil {
			return queryDocument{}, fmt.Errorf("parameter %s: %w", name, err)
		}
		doc.Parameters[name] = norm
	}
	return doc, nil
}

func normalizeNumbers(v any) (any, error) {
	switch val := v.(type) {
	case json.Number:
		if i, err := val.Int64(); err == nil {
			return i, nil
		}
		d, err := decimal.NewFromString(val.String())
		if err != nil {
			return nil, err
		}
		return d, nil
	case []any:
		out := make([]any, len(val))
		for i, e := range val {
			n, err := normalizeNumbers(e)
			if err != nil {
				return nil, err
			}
			out[i] = n
		}
		return out, nil
	}
	return v, nil
}
