package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/JonMunkholm/sheetdiff/internal/config"
	"github.com/JonMunkholm/sheetdiff/internal/core"
	"github.com/JonMunkholm/sheetdiff/internal/logging"
	"github.com/JonMunkholm/sheetdiff/internal/pgsource"
	"github.com/JonMunkholm/sheetdiff/internal/sheet"
	"github.com/JonMunkholm/sheetdiff/internal/table"
)

// stdinArg reads a file argument from standard input.
const stdinArg = "-"

// errMissingRows is returned with --fail-on-missing when rows are missing.
var errMissingRows = errors.New("reference rows are missing from the subset")

type compareOptions struct {
	output        string
	format        string
	sheet         string
	referenceSQL  string
	subsetSQL     string
	databaseURL   string
	logLevel      string
	logFormat     string
	list          bool
	failOnMissing bool
}

// fileArgs is the number of positional file arguments the options expect.
func (o compareOptions) fileArgs() int {
	n := 2
	if o.referenceSQL != "" {
		n--
	}
	if o.subsetSQL != "" {
		n--
	}
	return n
}

func compareCommand() *cobra.Command {
	var opts compareOptions

	cmd := &cobra.Command{
		Use:   "compare [REFERENCE] [SUBSET]",
		Short: "Report reference rows missing from the subset",
		Long: `Compare loads the reference and subset tables, checks that their columns
match (names and order, ignoring case and surrounding whitespace) and reports
every reference row with no equal row in the subset. Duplicates are reported
once per occurrence, in reference order.

Either side may be a PostgreSQL query instead of a file; the remaining sides
are given as positional arguments. Use "-" to read a file from stdin.`,
		Example: `  sheetdiff compare customers.xlsx customers_subset.xlsx
  sheetdiff compare full.csv partial.csv --output missing_rows.xlsx
  sheetdiff compare --reference-sql "SELECT name, email FROM customers" export.xlsx`,
		Args: func(cmd *cobra.Command, args []string) error {
			if want := opts.fileArgs(); len(args) != want {
				return fmt.Errorf("expected %d file argument(s), got %d", want, len(args))
			}
			return nil
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			return runCompare(cmd, opts, args)
		},
	}

	flags := cmd.Flags()
	flags.StringVarP(&opts.output, "output", "o", "", `write the missing rows to this file ("-" for stdout)`)
	flags.StringVarP(&opts.format, "format", "f", "", "export format: xlsx or csv (defaults to the output extension, then COMPARE_EXPORT_FORMAT)")
	flags.StringVar(&opts.sheet, "sheet", "", "worksheet to read from workbooks (defaults to the first sheet)")
	flags.StringVar(&opts.referenceSQL, "reference-sql", "", "load the reference table from this PostgreSQL query")
	flags.StringVar(&opts.subsetSQL, "subset-sql", "", "load the subset table from this PostgreSQL query")
	flags.StringVar(&opts.databaseURL, "database-url", "", "PostgreSQL connection string for SQL sources (defaults to DATABASE_URL)")
	flags.StringVar(&opts.logLevel, "log-level", "", "log level: debug, info, warn, error (defaults to LOG_LEVEL)")
	flags.StringVar(&opts.logFormat, "log-format", "", "log format: text or json (defaults to LOG_FORMAT)")
	flags.BoolVar(&opts.list, "list", false, "print the missing rows")
	flags.BoolVar(&opts.failOnMissing, "fail-on-missing", false, "exit with status 1 when any row is missing")

	return cmd
}

func runCompare(cmd *cobra.Command, opts compareOptions, args []string) error {
	ctx := cmd.Context()

	cfg, err := config.Load()
	if err != nil {
		return err
	}
	applyOverrides(cfg, opts)
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid flags: %w", err)
	}
	logging.SetupWriter(cmd.ErrOrStderr(), cfg.Logging.Level, cfg.Logging.Format)

	format, err := resolveFormat(opts.format, opts.output, cfg.Compare.ExportFormat)
	if err != nil {
		return err
	}

	loader := sheet.Loader{Sheet: cfg.Compare.Sheet, MaxBytes: cfg.Compare.MaxFileSize}
	src := &sources{
		loader:       loader,
		stdin:        cmd.InOrStdin(),
		files:        args,
		queryTimeout: cfg.Database.QueryTimeout,
	}

	if opts.referenceSQL != "" || opts.subsetSQL != "" {
		if !cfg.Database.Enabled() {
			return errors.New("--database-url or DATABASE_URL is required for SQL sources")
		}
		pool, err := pgsource.Connect(ctx, cfg.Database)
		if err != nil {
			return err
		}
		defer pool.Close()
		src.db = pool
	}

	ref, err := src.load(ctx, "reference", opts.referenceSQL)
	if err != nil {
		return err
	}
	sub, err := src.load(ctx, "subset", opts.subsetSQL)
	if err != nil {
		return err
	}

	service := core.NewService(loader, cfg.Compare)
	report, err := service.CompareTables(ctx, ref, sub)
	if err != nil {
		var sm *core.SchemaMismatchError
		if errors.As(err, &sm) {
			printSchemaMismatch(cmd.ErrOrStderr(), sm)
		}
		return err
	}

	out := cmd.OutOrStdout()
	if opts.output == stdinArg {
		out = cmd.ErrOrStderr()
	}
	fmt.Fprintf(out, "%d of %d reference rows missing from subset (%d rows)\n",
		report.Count, report.ReferenceRows, report.SubsetRows)

	if opts.list && !report.Empty() {
		if err := printRows(out, report); err != nil {
			return err
		}
	}

	if opts.output != "" {
		if err := writeExport(cmd.OutOrStdout(), opts.output, report.Table(), format); err != nil {
			return err
		}
		if opts.output != stdinArg {
			fmt.Fprintf(out, "wrote %s\n", opts.output)
		}
	}

	if opts.failOnMissing && !report.Empty() {
		return errMissingRows
	}
	return nil
}

// applyOverrides lets flags take precedence over environment configuration.
func applyOverrides(cfg *config.Config, opts compareOptions) {
	if opts.sheet != "" {
		cfg.Compare.Sheet = opts.sheet
	}
	if opts.databaseURL != "" {
		cfg.Database.URL = opts.databaseURL
	}
	if opts.logLevel != "" {
		cfg.Logging.Level = opts.logLevel
	}
	if opts.logFormat != "" {
		cfg.Logging.Format = opts.logFormat
	}
}

// resolveFormat picks the export format from the flag, then the output file
// extension, then the configured default.
func resolveFormat(flag, output, fallback string) (sheet.Format, error) {
	if flag != "" {
		return sheet.ParseFormat(flag)
	}
	switch strings.ToLower(filepath.Ext(output)) {
	case ".csv":
		return sheet.FormatCSV, nil
	case ".xlsx":
		return sheet.FormatXLSX, nil
	}
	return sheet.ParseFormat(fallback)
}

// sources resolves each side of a comparison to a table, taking positional
// file arguments in order.
type sources struct {
	loader       sheet.Loader
	stdin        io.Reader
	files        []string
	db           pgsource.Querier
	queryTimeout time.Duration
}

func (s *sources) load(ctx context.Context, side, query string) (table.Table, error) {
	if query != "" {
		return s.loadQuery(ctx, side, query)
	}

	path := s.files[0]
	s.files = s.files[1:]
	return s.loadFile(path)
}

func (s *sources) loadQuery(ctx context.Context, side, query string) (table.Table, error) {
	if s.queryTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.queryTimeout)
		defer cancel()
	}

	t, err := pgsource.Load(ctx, s.db, query)
	if err != nil {
		return table.Table{}, &core.ReadError{Source: side + " query", Err: err}
	}
	return t, nil
}

func (s *sources) loadFile(path string) (table.Table, error) {
	if path == stdinArg {
		t, err := s.loader.Load("stdin", s.stdin)
		if err != nil {
			return table.Table{}, &core.ReadError{Source: "stdin", Err: err}
		}
		return t, nil
	}

	f, err := os.Open(path)
	if err != nil {
		return table.Table{}, &core.ReadError{Source: path, Err: err}
	}
	defer f.Close()

	t, err := s.loader.Load(path, f)
	if err != nil {
		return table.Table{}, &core.ReadError{Source: path, Err: err}
	}
	return t, nil
}

// writeExport writes t to path, or to stdout for "-".
func writeExport(stdout io.Writer, path string, t table.Table, format sheet.Format) error {
	if path == stdinArg {
		return sheet.Export(stdout, t, format)
	}

	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create output: %w", err)
	}
	if err := sheet.Export(f, t, format); err != nil {
		f.Close()
		return fmt.Errorf("export %s: %w", path, err)
	}
	return f.Close()
}

// printRows writes the missing rows as an aligned table. The first column is
// the spreadsheet row number (header on row 1).
func printRows(w io.Writer, report *core.Report) error {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)

	fmt.Fprint(tw, "ROW")
	for _, c := range report.Columns {
		fmt.Fprint(tw, "\t", c)
	}
	fmt.Fprintln(tw)

	for i, row := range report.Rows {
		fmt.Fprint(tw, strconv.Itoa(report.Indices[i]+2))
		for j := range report.Columns {
			fmt.Fprint(tw, "\t", row.Get(j).Canonical())
		}
		fmt.Fprintln(tw)
	}
	return tw.Flush()
}

func printSchemaMismatch(w io.Writer, sm *core.SchemaMismatchError) {
	diff := sm.Diff()
	fmt.Fprintf(w, "reference columns: %s\n", strings.Join(sm.ReferenceColumns, ", "))
	fmt.Fprintf(w, "subset columns:    %s\n", strings.Join(sm.SubsetColumns, ", "))
	if len(diff.OnlyInReference) > 0 {
		fmt.Fprintf(w, "only in reference: %s\n", strings.Join(diff.OnlyInReference, ", "))
	}
	if len(diff.OnlyInSubset) > 0 {
		fmt.Fprintf(w, "only in subset:    %s\n", strings.Join(diff.OnlyInSubset, ", "))
	}
	if diff.FirstMismatch >= 0 {
		fmt.Fprintf(w, "first difference at column %d\n", diff.FirstMismatch+1)
	}
}
