// Package cli implements pointsctl, the operator CLI that works directly
// against the ledger database.
package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"slices"

	"github.com/spf13/cobra"

	"github.com/mmynk/helperpoints/internal/ledger"
	"github.com/mmynk/helperpoints/internal/storage/sqlstore"
	"github.com/mmynk/helperpoints/pkg/logging"
)

// RootOptions holds global flags for all commands.
type RootOptions struct {
	Driver  string
	DSN     string
	Format  string // "json" | "text"
	Verbose bool
}

// ValidFormats defines the allowed output formats.
var ValidFormats = []string{"text", "json"}

// NewRootCommand creates the root command for pointsctl.
func NewRootCommand() *cobra.Command {
	opts := &RootOptions{}

	cmd := &cobra.Command{
		Use:   "pointsctl",
		Short: "Operate a Helper Points ledger",
		Long:  "Inspect accounts, top up wallets and run settlement against a Helper Points ledger database.",
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if !slices.Contains(ValidFormats, opts.Format) {
				return fmt.Errorf("invalid format %q: must be one of %v", opts.Format, ValidFormats)
			}
			level := "warn"
			if opts.Verbose {
				level = "debug"
			}
			logging.SetupWith(logging.ParseLevel(level), logging.Text)
			return nil
		},
		SilenceUsage: true,
	}

	cmd.PersistentFlags().StringVar(&opts.Driver, "driver", "sqlite", "database driver (sqlite|postgres)")
	cmd.PersistentFlags().StringVar(&opts.DSN, "db", "./data/helperpoints.db", "SQLite path or PostgreSQL DSN")
	cmd.PersistentFlags().StringVar(&opts.Format, "format", "text", "output format (json|text)")
	cmd.PersistentFlags().BoolVarP(&opts.Verbose, "verbose", "v", false, "verbose output")

	cmd.AddCommand(NewSweepCommand(opts))
	cmd.AddCommand(NewSummaryCommand(opts))
	cmd.AddCommand(NewTopUpCommand(opts))
	cmd.AddCommand(NewProcessRepaymentCommand(opts))
	cmd.AddCommand(NewTransactionsCommand(opts))
	cmd.AddCommand(NewTokenCommand(opts))

	return cmd
}

// openLedger opens the configured database. The caller closes the store.
func (o *RootOptions) openLedger() (*ledger.Ledger, *sqlstore.Store, error) {
	store, err := sqlstore.Open(o.Driver, o.DSN)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to open database: %w", err)
	}
	return ledger.New(store), store, nil
}

// output writes v as JSON, or calls text to render it.
func (o *RootOptions) output(w io.Writer, v any, text func(io.Writer) error) error {
	if o.Format == "json" {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(v)
	}
	return text(w)
}
