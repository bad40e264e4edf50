package commands

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/username/brokerbridge/src/config"
	"github.com/username/brokerbridge/src/parsers"
	"github.com/username/brokerbridge/src/utils"
)

type importOptions struct {
	file   string
	userID string
	broker string
}

func newImportCommand() *cobra.Command {
	var opts importOptions

	cmd := &cobra.Command{
		Use:   "import",
		Short: "Import a saved broker holdings response (JSON)",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runImport(cmd.Context(), config.Cfg, opts, cmd.InOrStdin(), cmd.OutOrStdout())
		},
	}

	cmd.Flags().StringVar(&opts.file, "file", "", "holdings JSON file, - for stdin (required)")
	_ = cmd.MarkFlagRequired("file")
	cmd.Flags().StringVar(&opts.userID, "user", "", "user id the holdings belong to (required)")
	_ = cmd.MarkFlagRequired("user")
	cmd.Flags().StringVar(&opts.broker, "broker", "", "broker slug from the member mapping (required)")
	_ = cmd.MarkFlagRequired("broker")

	return cmd
}

func runImport(ctx context.Context, cfg *config.AppConfig, opts importOptions, stdin io.Reader, out io.Writer) error {
	var body []byte
	var err error
	if opts.file == "-" {
		body, err = io.ReadAll(stdin)
	} else {
		body, err = os.ReadFile(opts.file)
	}
	if err != nil {
		return fmt.Errorf("reading holdings: %w", err)
	}

	raw, err := parsers.DecodePayload(body)
	if err != nil {
		return err
	}

	a, err := newApp(ctx, cfg)
	if err != nil {
		return err
	}
	defer a.Close()

	slug := strings.ToLower(strings.TrimSpace(opts.broker))
	scope, err := a.members.Scope(opts.userID, slug)
	if err != nil {
		return err
	}

	result, err := a.imports.ImportHoldings(ctx, raw, scope)
	if err != nil {
		return err
	}

	fmt.Fprintf(out, "Imported %d equity and %d mutual fund holdings from %s (batch %s, %s)\n",
		result.EquityCount, result.MutualFundCount, scope.BrokerPlatform, result.BatchID, result.ImportDate)
	if result.Skipped > 0 {
		fmt.Fprintf(out, "Skipped %d unrecognized entries\n", result.Skipped)
	}
	fmt.Fprintf(out, "Invested: %s\nCurrent:  %s\n", utils.FormatINR(result.InvestedTotal), utils.FormatINR(result.CurrentTotal))
	return nil
}
