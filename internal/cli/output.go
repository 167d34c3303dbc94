package cli

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"slices"
	"strings"

	"github.com/spf13/cobra"

	"github.com/roach88/eqb/qerr"
)

// Process exit statuses.
const (
	ExitOK       = 0
	ExitRejected = 1 // a query, schema or lookup was rejected
	ExitUsage    = 2 // unreadable input or an unusable database
)

// Report codes. A failure carrying a qerr code reports that code instead.
const (
	CodeGeneric  = "E001"
	CodeRead     = "E002"
	CodeSchema   = "E003"
	CodeStore    = "E004"
	CodeNotFound = "E005"
	CodeBadInput = "E006"
)

// ReportedError is a command failure that has already been printed. main
// exits with its Status without printing it again.
type ReportedError struct {
	Status int
	Code   string
	Msg    string
	Err    error
}

func (e *ReportedError) Error() string {
	return e.Code + ": " + e.Msg
}

func (e *ReportedError) Unwrap() error { return e.Err }

// ExitStatus maps a command error to the process exit status.
func ExitStatus(err error) int {
	if err == nil {
		return ExitOK
	}
	var re *ReportedError
	if errors.As(err, &re) {
		return re.Status
	}
	return ExitRejected
}

// codeOf returns the qerr code of err, or fallback.
func codeOf(err error, fallback string) string {
	if code, ok := qerr.CodeOf(err); ok {
		return string(code)
	}
	return fallback
}

// response is the JSON document every command prints.
type response struct {
	Status string  `json:"status"`
	Data   any     `json:"data,omitempty"`
	Error  *report `json:"error,omitempty"`
}

type report struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// QueryOutput is a query as commands print it.
type QueryOutput struct {
	Hash       string      `json:"hash,omitempty"`
	Text       string      `json:"text"`
	Parameters []Parameter `json:"parameters"`
	SchemaHash string      `json:"schema_hash,omitempty"`
}

// Parameter is one named query argument. Value is kept as its JSON text.
type Parameter struct {
	Name  string          `json:"name"`
	Value json.RawMessage `json:"value"`
}

// parametersOf splits a JSON object of arguments into parameters sorted
// by name.
func parametersOf(doc string) ([]Parameter, error) {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal([]byte(doc), &raw); err != nil {
		return nil, fmt.Errorf("decode parameters: %w", err)
	}
	params := make([]Parameter, 0, len(raw))
	for name, v := range raw {
		params = append(params, Parameter{Name: name, Value: v})
	}
	slices.SortFunc(params, func(a, b Parameter) int { return strings.Compare(a.Name, b.Name) })
	return params, nil
}

// printer writes command results to out, as text or as a JSON response.
// Diagnostics go to diag so JSON output stays parseable.
type printer struct {
	json    bool
	verbose bool
	out     io.Writer
	diag    io.Writer
}

func newPrinter(opts *RootOptions, cmd *cobra.Command) *printer {
	return &printer{
		json:    opts.Format == "json",
		verbose: opts.Verbose,
		out:     cmd.OutOrStdout(),
		diag:    cmd.ErrOrStderr(),
	}
}

// result prints data. In text mode text writes it instead.
func (p *printer) result(data any, text func(w io.Writer) error) error {
	if p.json {
		return json.NewEncoder(p.out).Encode(response{Status: "ok", Data: data})
	}
	return text(p.out)
}

// query prints a query, then one `$name = value` line per parameter.
func (p *printer) query(q QueryOutput) error {
	return p.result(q, func(w io.Writer) error {
		var buf bytes.Buffer
		buf.WriteString(q.Text)
		buf.WriteByte('\n')
		for _, param := range q.Parameters {
			fmt.Fprintf(&buf, "$%s = %s\n", param.Name, param.Value)
		}
		_, err := w.Write(buf.Bytes())
		return err
	})
}

// fail prints a failure and returns it as a *ReportedError.
func (p *printer) fail(status int, code, msg string, err error) error {
	text := msg
	if err != nil {
		text = msg + ": " + err.Error()
	}
	if p.json {
		_ = json.NewEncoder(p.out).Encode(response{Status: "error", Error: &report{Code: code, Message: text}})
	} else {
		fmt.Fprintf(p.out, "error %s: %s\n", code, text)
	}
	return &ReportedError{Status: status, Code: code, Msg: msg, Err: err}
}

// logf writes a diagnostic line when verbose.
func (p *printer) logf(format string, args ...any) {
	if p.verbose {
		fmt.Fprintf(p.diag, format+"\n", args...)
	}
}
