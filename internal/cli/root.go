// Package cli implements the sheetdiff command line.
package cli

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/JonMunkholm/sheetdiff/internal/core"
)

// NewRootCommand builds the sheetdiff command tree.
func NewRootCommand() *cobra.Command {
	root := &cobra.Command{
		Use:   "sheetdiff",
		Short: "Find rows of a reference spreadsheet missing from a subset",
		Long: `sheetdiff compares a reference table against a subset table and reports the
reference rows that do not appear in the subset. Column names and cell values
are compared ignoring case and surrounding whitespace. Inputs can be .xlsx or
.csv files, or PostgreSQL queries.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	root.AddCommand(compareCommand())
	return root
}

// Execute runs the command line and returns the process exit code.
func Execute(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	root := NewRootCommand()
	root.SetArgs(args)
	root.SetOut(stdout)
	root.SetErr(stderr)

	if err := root.ExecuteContext(ctx); err != nil {
		printError(stderr, err)
		return 1
	}
	return 0
}

// printError writes the user-facing message when one exists, followed by the
// technical error.
func printError(w io.Writer, err error) {
	if core.IsUserFacing(err) {
		fmt.Fprintln(w, "Error:", core.FormatUserError(err))
		fmt.Fprintln(w, "Detail:", err)
		return
	}
	fmt.Fprintln(w, "Error:", err)
}

// Main is the entry point used by cmd/sheetdiff.
func Main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	code := Execute(ctx, os.Args[1:], os.Stdout, os.Stderr)
	stop()
	os.Exit(code)
}
