package cli

import (
	"fmt"
	"io"
	"strconv"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/mmynk/helperpoints/internal/auth"
	"github.com/mmynk/helperpoints/internal/ledger"
	"github.com/mmynk/helperpoints/internal/settlement"
)

// NewSweepCommand creates the sweep command.
func NewSweepCommand(opts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "sweep",
		Short: "Settle every repayment that is past due",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			l, store, err := opts.openLedger()
			if err != nil {
				return err
			}
			defer store.Close()

			report, err := settlement.NewWorker(store, l, 0).RunOnce(cmd.Context())
			if err != nil {
				return err
			}
			return opts.output(cmd.OutOrStdout(), report, func(w io.Writer) error {
				_, err := fmt.Fprintf(w, "completed %d, failed %d, skipped %d in %s\n",
					report.Completed, report.Failed, report.Skipped, report.Duration.Round(time.Millisecond))
				return err
			})
		},
	}
}

// NewSummaryCommand creates the summary command.
func NewSummaryCommand(opts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "summary <user>",
		Short: "Show a user's balance, loyalty points and outstanding debts",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			l, store, err := opts.openLedger()
			if err != nil {
				return err
			}
			defer store.Close()

			s, err := l.Summary(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			return opts.output(cmd.OutOrStdout(), s, func(w io.Writer) error {
				tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
				fmt.Fprintf(tw, "user\t%s\n", s.UserID)
				fmt.Fprintf(tw, "balance\t%d\n", s.Balance)
				fmt.Fprintf(tw, "loyalty points\t%d\n", s.LoyaltyPoints)
				fmt.Fprintf(tw, "owes as borrower\t%d\n", s.OutstandingAsBorrower)
				fmt.Fprintf(tw, "owed as helper\t%d\n", s.OutstandingAsHelper)
				return tw.Flush()
			})
		},
	}
}

// NewTopUpCommand creates the topup command.
func NewTopUpCommand(opts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "topup <user> <amount>",
		Short: "Credit a wallet and repay its obligations, oldest first",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			amount, err := strconv.ParseInt(args[1], 10, 64)
			if err != nil {
				return fmt.Errorf("invalid amount %q: %w", args[1], err)
			}

			l, store, err := opts.openLedger()
			if err != nil {
				return err
			}
			defer store.Close()

			res, err := l.TopUp(cmd.Context(), args[0], amount)
			if err != nil {
				return err
			}
			return opts.output(cmd.OutOrStdout(), res, func(w io.Writer) error {
				_, err := fmt.Fprintf(w, "new balance %d, reimbursed %d across %d obligations\n",
					res.NewBalance, res.Reimbursed, len(res.Touched))
				return err
			})
		},
	}
}

// NewProcessRepaymentCommand creates the process-repayment command.
func NewProcessRepaymentCommand(opts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "process-repayment <id>",
		Short: "Settle one repayment now, regardless of its due date",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			l, store, err := opts.openLedger()
			if err != nil {
				return err
			}
			defer store.Close()

			r, err := settlement.NewWorker(store, l, 0).ProcessRepaymentNow(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			return opts.output(cmd.OutOrStdout(), r, func(w io.Writer) error {
				_, err := fmt.Fprintf(w, "repayment %s: %s", r.ID, r.Status)
				if err == nil && r.FailureReason != "" {
					_, err = fmt.Fprintf(w, " (%s)", r.FailureReason)
				}
				if err == nil {
					_, err = fmt.Fprintln(w)
				}
				return err
			})
		},
	}
}

// NewTransactionsCommand creates the transactions command.
func NewTransactionsCommand(opts *RootOptions) *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "transactions <user>",
		Short: "List a user's newest transaction log entries",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			l, store, err := opts.openLedger()
			if err != nil {
				return err
			}
			defer store.Close()

			txs, err := l.Transactions(cmd.Context(), args[0], limit)
			if err != nil {
				return err
			}
			return opts.output(cmd.OutOrStdout(), txs, func(w io.Writer) error {
				tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
				fmt.Fprintln(tw, "TIME\tKIND\tDELTA\tAMOUNT\tCOUNTERPARTY\tORDER\tNOTE")
				for _, t := range txs {
					fmt.Fprintf(tw, "%s\t%s\t%+d\t%d\t%s\t%s\t%s\n",
						time.Unix(t.CreatedAt, 0).UTC().Format(time.RFC3339),
						t.Kind, t.Delta, t.Amount, t.CounterpartyID, t.OrderID, t.Note)
				}
				return tw.Flush()
			})
		},
	}

	cmd.Flags().IntVarP(&limit, "limit", "n", ledger.DefaultTransactionLimit, "maximum entries to show")
	return cmd
}

// NewTokenCommand creates the token command.
func NewTokenCommand(opts *RootOptions) *cobra.Command {
	var secret, role string
	var ttl time.Duration

	cmd := &cobra.Command{
		Use:   "token <user>",
		Short: "Issue a bearer token for calling the RPC services",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if role != auth.RoleUser && role != auth.RoleOperator {
				return fmt.Errorf("invalid role %q", role)
			}
			token, err := auth.NewJWTManager(secret, ttl).Issue(args[0], role)
			if err != nil {
				return err
			}
			_, err = fmt.Fprintln(cmd.OutOrStdout(), token)
			return err
		},
	}

	cmd.Flags().StringVar(&secret, "secret", "", "JWT signing secret (required)")
	_ = cmd.MarkFlagRequired("secret")
	cmd.Flags().StringVar(&role, "role", auth.RoleUser, "token role (user|operator)")
	cmd.Flags().DurationVar(&ttl, "ttl", 24*time.Hour, "token lifetime")
	return cmd
}
