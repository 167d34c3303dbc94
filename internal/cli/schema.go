package cli

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/roach88/eqb/internal/store"
	"github.com/roach88/eqb/schema"
)

// SchemaOptions holds flags shared by the schema subcommands.
type SchemaOptions struct {
	*RootOptions
	Database string
	Hash     string
	Else     bool
}

// SchemaImportResult is the JSON payload of schema import.
type SchemaImportResult struct {
	Schema   store.SchemaRecord `json:"schema"`
	Inserted bool               `json:"inserted"`
}

// ConflictResult is the JSON payload of schema conflict.
type ConflictResult struct {
	Type   string `json:"type"`
	Clause string `json:"clause"`
}

// NewSchemaCommand creates the schema command and its subcommands.
func NewSchemaCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &SchemaOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "schema",
		Short: "Import and inspect cached schemas",
		Long: `Import introspected schemas into the local cache and inspect them.

Schema documents are YAML, or CUE when the file ends in .cue. Snapshots are
stored by content hash, so importing the same schema twice is a no-op.

Examples:
  eqb schema import ./schema.yaml --db ./eqb.db
  eqb schema show Person --db ./eqb.db
  eqb schema conflict Person --else --db ./eqb.db`,
	}

	cmd.PersistentFlags().StringVar(&opts.Database, "db", "", "path to SQLite database (required)")
	_ = cmd.MarkPersistentFlagRequired("db")

	importCmd := &cobra.Command{
		Use:           "import <file>",
		Short:         "Load a YAML or CUE schema and store it",
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSchemaImport(opts, args[0], cmd)
		},
	}

	listCmd := &cobra.Command{
		Use:           "list",
		Short:         "List stored schema snapshots",
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSchemaList(opts, cmd)
		},
	}

	showCmd := &cobra.Command{
		Use:           "show <type>",
		Short:         "Print a stored object type",
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSchemaShow(opts, args[0], cmd)
		},
	}
	showCmd.Flags().StringVar(&opts.Hash, "hash", "", "schema snapshot hash (default latest)")

	conflictCmd := &cobra.Command{
		Use:           "conflict <type>",
		Short:         "Print the unless conflict clause for inserts of a type",
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSchemaConflict(opts, args[0], cmd)
		},
	}
	conflictCmd.Flags().StringVar(&opts.Hash, "hash", "", "schema snapshot hash (default latest)")
	conflictCmd.Flags().BoolVar(&opts.Else, "else", false, "derive the clause for an insert with an else branch")

	cmd.AddCommand(importCmd, listCmd, showCmd, conflictCmd)
	return cmd
}

func runSchemaImport(opts *SchemaOptions, path string, cmd *cobra.Command) error {
	pr := newPrinter(opts.RootOptions, cmd)

	src, err := os.ReadFile(path)
	if err != nil {
		return pr.fail(ExitUsage, CodeRead, "failed to read schema", err)
	}

	var info *schema.Info
	if filepath.Ext(path) == ".cue" {
		pr.logf("Loading CUE schema %s", path)
		info, err = schema.LoadCUE(path, src)
	} else {
		pr.logf("Loading YAML schema %s", path)
		info, err = schema.LoadYAML(bytes.NewReader(src))
	}
	if err != nil {
		return pr.fail(ExitRejected, CodeSchema, "schema rejected", err)
	}

	st, err := store.Open(opts.Database)
	if err != nil {
		return pr.fail(ExitUsage, CodeStore, "failed to open database", err)
	}
	defer st.Close()

	rec, inserted, err := st.PutSchema(context.Background(), path, info)
	if err != nil {
		return pr.fail(ExitUsage, CodeStore, "failed to store schema", err)
	}

	return pr.result(SchemaImportResult{Schema: rec, Inserted: inserted}, func(w io.Writer) error {
		if inserted {
			fmt.Fprintf(w, "✓ Imported %d type(s) from %s\n", rec.Types, path)
		} else {
			fmt.Fprintf(w, "Schema already stored (seq %d)\n", rec.Seq)
		}
		_, err := fmt.Fprintf(w, "  hash: %s\n", rec.Hash)
		return err
	})
}

func runSchemaList(opts *SchemaOptions, cmd *cobra.Command) error {
	pr := newPrinter(opts.RootOptions, cmd)

	st, err := store.Open(opts.Database)
	if err != nil {
		return pr.fail(ExitUsage, CodeStore, "failed to open database", err)
	}
	defer st.Close()

	records, err := st.ListSchemas(context.Background())
	if err != nil {
		return pr.fail(ExitUsage, CodeStore, "failed to list schemas", err)
	}

	return pr.result(records, func(w io.Writer) error {
		if len(records) == 0 {
			_, err := fmt.Fprintln(w, "No schemas stored.")
			return err
		}
		for _, rec := range records {
			if _, err := fmt.Fprintf(w, "%d  %s  %d type(s)  %s\n", rec.Seq, rec.Hash, rec.Types, rec.Source); err != nil {
				return err
			}
		}
		return nil
	})
}

func runSchemaShow(opts *SchemaOptions, typeName string, cmd *cobra.Command) error {
	pr := newPrinter(opts.RootOptions, cmd)

	t, err := lookupStoredType(opts, pr, typeName)
	if err != nil {
		return err
	}

	return pr.result(t, func(w io.Writer) error {
		enc := yaml.NewEncoder(w)
		if err := enc.Encode(t); err != nil {
			return fmt.Errorf("encode type: %w", err)
		}
		return enc.Close()
	})
}

func runSchemaConflict(opts *SchemaOptions, typeName string, cmd *cobra.Command) error {
	pr := newPrinter(opts.RootOptions, cmd)

	t, err := lookupStoredType(opts, pr, typeName)
	if err != nil {
		return err
	}

	clause, err := schema.ConflictClause(t, opts.Else)
	if err != nil {
		return pr.fail(ExitRejected, codeOf(err, CodeGeneric), "no conflict clause", err)
	}

	return pr.result(ConflictResult{Type: t.Name, Clause: clause}, func(w io.Writer) error {
		_, err := fmt.Fprintln(w, clause)
		return err
	})
}

// lookupStoredType opens the cache, loads the selected snapshot and finds
// typeName in it. Errors are already reported through pr.
func lookupStoredType(opts *SchemaOptions, pr *printer, typeName string) (*schema.ObjectType, error) {
	st, err := store.Open(opts.Database)
	if err != nil {
		return nil, pr.fail(ExitUsage, CodeStore, "failed to open database", err)
	}
	defer st.Close()

	ctx := context.Background()
	var (
		info *schema.Info
		rec  store.SchemaRecord
	)
	if opts.Hash != "" {
		info, rec, err = st.SchemaByHash(ctx, opts.Hash)
	} else {
		info, rec, err = st.LatestSchema(ctx)
	}
	if errors.Is(err, store.ErrNotFound) {
		return nil, pr.fail(ExitUsage, CodeNotFound, "schema not found", err)
	}
	if err != nil {
		return nil, pr.fail(ExitUsage, CodeStore, "failed to load schema", err)
	}
	pr.logf("Using schema %s (seq %d)", rec.Hash, rec.Seq)

	t, ok := info.Lookup(typeName)
	if !ok {
		return nil, pr.fail(ExitRejected, CodeNotFound, fmt.Sprintf("type %s not found", typeName), nil)
	}
	return t, nil
}
