package data

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/rustyeddy/backtester/internal/cli/config"
	"github.com/rustyeddy/backtester/market"
	"github.com/rustyeddy/backtester/provider"
)

// New returns the data command group.
func New(rc *config.RootConfig) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "data",
		Short: "Candle dataset tools",
	}
	cmd.AddCommand(
		newCheckCmd(rc),
		newFetchCmd(rc),
		newImportCmd(rc),
	)
	return cmd
}

func readFile(ctx context.Context, path string) ([]market.Candle, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return provider.ReadCandles(ctx, f, time.Time{}, time.Time{})
}

func newCheckCmd(rc *config.RootConfig) *cobra.Command {
	var interval string

	cmd := &cobra.Command{
		Use:   "check FILE",
		Short: "Validate a candle CSV file and report gaps",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			iv, err := market.ParseInterval(interval)
			if err != nil {
				return err
			}
			candles, err := readFile(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			if err := market.ValidateSeries(candles); err != nil {
				return fmt.Errorf("%s: %w", args[0], err)
			}

			out := cmd.OutOrStdout()
			first, last := candles[0], candles[len(candles)-1]
			fmt.Fprintf(out, "%s: %d candles, %s to %s\n", args[0], len(candles),
				first.Time.Format("2006-01-02 15:04"), last.Time.Format("2006-01-02 15:04"))

			gaps := market.Gaps(candles, iv)
			missing := 0
			for _, g := range gaps {
				missing += g.Missing
			}
			fmt.Fprintf(out, "gaps: %d (%d missing %s bars)\n", len(gaps), missing, iv)
			rc.Logger().Debug("checked", zap.String("file", args[0]), zap.Int("gaps", len(gaps)))
			return nil
		},
	}
	cmd.Flags().StringVar(&interval, "interval", "1d", "Expected bar interval")
	return cmd
}

func newImportCmd(rc *config.RootConfig) *cobra.Command {
	var (
		instrument string
		interval   string
		dbURL      string
	)

	cmd := &cobra.Command{
		Use:   "import FILE",
		Short: "Load a candle CSV file into PostgreSQL",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if instrument == "" {
				return fmt.Errorf("--instrument is required")
			}
			iv, err := market.ParseInterval(interval)
			if err != nil {
				return err
			}
			if dbURL == "" {
				cfg, err := rc.Load()
				if err != nil {
					return err
				}
				dbURL = cfg.Data.DatabaseURL
			}
			if dbURL == "" {
				return fmt.Errorf("no database url (set --database-url, data.database_url or BACKTESTER_DATABASE_URL)")
			}

			candles, err := readFile(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			if err := market.ValidateSeries(candles); err != nil {
				return fmt.Errorf("%s: %w", args[0], err)
			}

			ctx := cmd.Context()
			pg, err := provider.NewPostgres(ctx, dbURL)
			if err != nil {
				return err
			}
			defer pg.Close()

			if err := pg.Migrate(ctx); err != nil {
				return fmt.Errorf("migrate: %w", err)
			}
			if err := pg.Store(ctx, instrument, iv, candles); err != nil {
				return fmt.Errorf("store: %w", err)
			}
			rc.Logger().Info("imported", zap.String("instrument", instrument), zap.String("interval", string(iv)), zap.Int("candles", len(candles)))
			fmt.Fprintf(cmd.OutOrStdout(), "imported %d candles for %s %s\n", len(candles), instrument, iv)
			return nil
		},
	}
	cmd.Flags().StringVar(&instrument, "instrument", "", "Instrument the file holds")
	cmd.Flags().StringVar(&interval, "interval", "1d", "Bar interval of the file")
	cmd.Flags().StringVar(&dbURL, "database-url", "", "PostgreSQL URL (defaults to the config)")
	return cmd
}
