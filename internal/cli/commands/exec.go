package commands

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/AlecAivazis/survey/v2"
	"github.com/fatih/color"
	"github.com/spf13/cast"
	"github.com/spf13/cobra"

	"github.com/Julianb233/sierra-fred-carey-sub003/internal/cli/ui"
	"github.com/Julianb233/sierra-fred-carey-sub003/internal/sqlbridge"
	"github.com/Julianb233/sierra-fred-carey-sub003/internal/sqlbridge/ast"
)

var (
	execParamsFlag string
	execYesFlag    bool
	execFormatFlag string
)

// confirm asks a yes/no question. Tests replace it.
var confirm = func(message string) (bool, error) {
	ok := false
	err := survey.AskOne(&survey.Confirm{Message: message, Default: false}, &ok)
	return ok, err
}

// NewExecCommand creates the exec command
func NewExecCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "exec <sql>",
		Short: "Execute one statement and print the rows as JSON",
		Long: `Execute one parameterized statement through the query builder.

$1, $2, ... refer to the entries of --params, a JSON array. Rows are printed
to stdout as JSON; dropped fragments are reported on stderr. UPDATE and
DELETE ask for confirmation unless --yes is given.`,
		Example: `  sqlbridge exec "SELECT id, email FROM users WHERE active = true ORDER BY id LIMIT 10"
  sqlbridge exec "UPDATE users SET name = \$1 WHERE id = \$2" --params '["Ann", 7]' --yes`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			params, err := parseParams(execParamsFlag)
			if err != nil {
				return err
			}

			a, err := newApp(cmd.Context(), cmd)
			if err != nil {
				return err
			}
			defer a.Close()

			return runExec(cmd.Context(), cmd.OutOrStdout(), cmd.ErrOrStderr(), a.client, args[0], params, execOptions{
				yes:    execYesFlag,
				format: execFormatFlag,
			})
		},
	}

	cmd.Flags().StringVarP(&execParamsFlag, "params", "p", "", "Statement parameters as a JSON array")
	cmd.Flags().BoolVarP(&execYesFlag, "yes", "y", false, "Skip the confirmation prompt for UPDATE and DELETE")
	cmd.Flags().StringVarP(&execFormatFlag, "format", "f", "json", "Output format: json or table")

	return cmd
}

type execOptions struct {
	yes    bool
	format string
}

func runExec(ctx context.Context, out, errOut io.Writer, client *sqlbridge.Client, sqlText string, params []interface{}, opts execOptions) error {
	if opts.format != "" && opts.format != "json" && opts.format != "table" {
		return fmt.Errorf("unknown format %q (want json or table)", opts.format)
	}

	kind := sqlbridge.Classify(sqlText)
	if (kind == ast.KindUpdate || kind == ast.KindDelete) && !opts.yes {
		ok, err := confirm(fmt.Sprintf("Run this %s?", kind))
		if err != nil {
			return err
		}
		if !ok {
			color.New(color.FgCyan).Fprintln(errOut, "ℹ Cancelled")
			return nil
		}
	}

	result, err := client.Execute(ctx, sqlText, params)
	if err != nil {
		return err
	}

	warn := color.New(color.FgYellow)
	for _, w := range result.Warnings {
		warn.Fprintf(errOut, "⚠ %s\n", w)
	}

	if opts.format == "table" {
		ui.RenderRows(out, result.Rows, color.NoColor)
		return nil
	}

	enc := json.NewEncoder(out)
	enc.SetIndent("", "  ")
	return enc.Encode(result.Rows)
}

// parseParams decodes a JSON array. Whole numbers become int64, other
// numbers float64.
func parseParams(raw string) ([]interface{}, error) {
	if strings.TrimSpace(raw) == "" {
		return nil, nil
	}

	var params []interface{}
	dec := json.NewDecoder(strings.NewReader(raw))
	dec.UseNumber()
	if err := dec.Decode(&params); err != nil {
		return nil, fmt.Errorf("--params must be a JSON array: %w", err)
	}

	for i, p := range params {
		n, ok := p.(json.Number)
		if !ok {
			continue
		}
		if v, err := cast.ToInt64E(n.String()); err == nil {
			params[i] = v
		} else if v, err := cast.ToFloat64E(n.String()); err == nil {
			params[i] = v
		} else {
			return nil, fmt.Errorf("--params[%d]: %w", i, err)
		}
	}
	return params, nil
}
