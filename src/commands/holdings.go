package commands

import (
	"context"
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"

	"github.com/username/brokerbridge/src/config"
	"github.com/username/brokerbridge/src/utils"
)

func newHoldingsCommand() *cobra.Command {
	var userID, memberID string

	cmd := &cobra.Command{
		Use:   "holdings",
		Short: "List stored holdings for a user",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runHoldings(cmd.Context(), config.Cfg, userID, memberID, cmd.OutOrStdout())
		},
	}

	cmd.Flags().StringVar(&userID, "user", "", "user id (required)")
	_ = cmd.MarkFlagRequired("user")
	cmd.Flags().StringVar(&memberID, "member", "", "only this member id")

	return cmd
}

func runHoldings(ctx context.Context, cfg *config.AppConfig, userID, memberID string, out io.Writer) error {
	a, err := newApp(ctx, cfg)
	if err != nil {
		return err
	}
	defer a.Close()

	equity, err := a.holdings.GetEquityHoldings(ctx, userID, memberID)
	if err != nil {
		return err
	}
	funds, err := a.holdings.GetMutualFundHoldings(ctx, userID, memberID)
	if err != nil {
		return err
	}

	tw := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "EQUITY\tQTY\tINVESTED\tCURRENT\tPLATFORM\tDATE")
	invested, current := decimal.Zero, decimal.Zero
	for _, h := range equity {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%s\n", h.Symbol, h.Quantity.String(),
			utils.FormatINR(h.InvestedAmount), utils.FormatINR(h.CurrentValue), h.BrokerPlatform, utils.FormatDate(h.ImportDate))
		invested = invested.Add(h.InvestedAmount)
		current = current.Add(h.CurrentValue)
	}
	fmt.Fprintln(tw, "\t\t\t\t\t")
	fmt.Fprintln(tw, "MUTUAL FUND\tUNITS\tINVESTED\tCURRENT\tPLATFORM\tDATE")
	for _, h := range funds {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%s\n", h.SchemeName, h.Units.String(),
			utils.FormatINR(h.InvestedAmount), utils.FormatINR(h.CurrentValue), h.BrokerPlatform, utils.FormatDate(h.ImportDate))
		invested = invested.Add(h.InvestedAmount)
		current = current.Add(h.CurrentValue)
	}
	if err := tw.Flush(); err != nil {
		return err
	}

	fmt.Fprintf(out, "\n%d equity, %d mutual funds. Invested %s, current %s\n",
		len(equity), len(funds), utils.FormatINR(invested), utils.FormatINR(current))
	return nil
}
