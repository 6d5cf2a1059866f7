package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"

	reportdomain "github.com/smallbiznis/bookkeeper/internal/report/domain"
	"github.com/spf13/cobra"
	"go.uber.org/fx"
)

func newReportCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "report",
		Short: "Print a financial report as JSON",
	}

	var asOf, from, to, ledgerID string

	trialBalance := &cobra.Command{
		Use:   "trial-balance",
		Short: "Trial balance as of a date",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return printReport(cmd, func(ctx context.Context, svc reportdomain.Service) (any, error) {
				return svc.TrialBalance(ctx, reportdomain.TrialBalanceRequest{AsOf: asOf})
			})
		},
	}
	trialBalance.Flags().StringVar(&asOf, "as-of", "", "report date, YYYY-MM-DD (default today)")

	profitAndLoss := &cobra.Command{
		Use:   "profit-and-loss",
		Short: "Profit and loss over a period",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return printReport(cmd, func(ctx context.Context, svc reportdomain.Service) (any, error) {
				return svc.ProfitAndLoss(ctx, reportdomain.ProfitAndLossRequest{From: from, To: to})
			})
		},
	}
	profitAndLoss.Flags().StringVar(&from, "from", "", "period start (default fiscal year start)")
	profitAndLoss.Flags().StringVar(&to, "to", "", "period end (default today)")

	balanceSheet := &cobra.Command{
		Use:   "balance-sheet",
		Short: "Balance sheet as of a date",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return printReport(cmd, func(ctx context.Context, svc reportdomain.Service) (any, error) {
				return svc.BalanceSheet(ctx, reportdomain.BalanceSheetRequest{AsOf: asOf})
			})
		},
	}
	balanceSheet.Flags().StringVar(&asOf, "as-of", "", "report date, YYYY-MM-DD (default today)")

	ledgerVouchers := &cobra.Command{
		Use:   "ledger-vouchers",
		Short: "Vouchers and running balance of one ledger",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return printReport(cmd, func(ctx context.Context, svc reportdomain.Service) (any, error) {
				return svc.LedgerVouchers(ctx, reportdomain.LedgerVouchersRequest{LedgerID: ledgerID, From: from, To: to})
			})
		},
	}
	ledgerVouchers.Flags().StringVar(&ledgerID, "ledger-id", "", "ledger id (required)")
	_ = ledgerVouchers.MarkFlagRequired("ledger-id")
	ledgerVouchers.Flags().StringVar(&from, "from", "", "period start (default fiscal year start)")
	ledgerVouchers.Flags().StringVar(&to, "to", "", "period end (default today)")

	cmd.AddCommand(trialBalance, profitAndLoss, balanceSheet, ledgerVouchers)
	return cmd
}

func printReport(cmd *cobra.Command, build func(context.Context, reportdomain.Service) (any, error)) error {
	var out any
	err := runOnce(cmd.Context(),
		infrastructure(),
		domains(),
		fx.Invoke(func(svc reportdomain.Service) error {
			result, err := build(cmd.Context(), svc)
			if err != nil {
				return err
			}
			out = result
			return nil
		}),
	)
	if err != nil {
		return err
	}
	return writeJSON(cmd.OutOrStdout(), out)
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		return fmt.Errorf("encode report: %w", err)
	}
	return nil
}
