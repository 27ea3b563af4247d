package data

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	bcfg "github.com/rustyeddy/backtester/config"
	"github.com/rustyeddy/backtester/internal/cli/config"
	"github.com/rustyeddy/backtester/market"
	"github.com/rustyeddy/backtester/provider"
)

func parseDate(flag, s string) (time.Time, error) {
	if s == "" {
		return time.Time{}, nil
	}
	for _, layout := range []string{"2006-01-02", time.RFC3339Nano} {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC(), nil
		}
	}
	return time.Time{}, fmt.Errorf("bad --%s %q (want 2006-01-02 or RFC3339)", flag, s)
}

func newFetchCmd(rc *config.RootConfig) *cobra.Command {
	var (
		env        string
		token      string
		baseURL    string
		instrument string
		interval   string
		price      string
		fromStr    string
		toStr      string
		outPath    string
	)

	cmd := &cobra.Command{
		Use:   "fetch",
		Short: "Download OANDA candles into a CSV file the csv source can read",
		Long: `Download complete OANDA candles for one instrument and write them as
time,open,high,low,close,volume rows.

Without --out the file is written to <data dir>/<instrument>_<interval>.csv,
where the csv source looks for it.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := rc.Load()
			if err != nil {
				return err
			}
			if token == "" {
				token = strings.TrimSpace(cfg.Data.OANDA.Token)
			}
			if token == "" {
				return fmt.Errorf("missing token: set --token or env %s", bcfg.EnvOANDAToken)
			}
			if instrument == "" {
				return fmt.Errorf("missing --instrument (e.g. EUR_USD)")
			}
			iv, err := market.ParseInterval(interval)
			if err != nil {
				return err
			}
			from, err := parseDate("from", fromStr)
			if err != nil {
				return err
			}
			to, err := parseDate("to", toStr)
			if err != nil {
				return err
			}
			if from.IsZero() {
				return fmt.Errorf("missing --from")
			}
			if !to.IsZero() && !from.Before(to) {
				return fmt.Errorf("--from must be before --to")
			}

			var src *provider.OANDA
			switch env {
			case "practice", "live":
				src = provider.NewOANDA(token, env == "practice")
			default:
				return fmt.Errorf("bad --env %q (practice|live)", env)
			}
			if baseURL != "" {
				src.BaseURL = baseURL
			}
			src.Price = price
			src.Log = rc.Logger().Named("oanda")

			candles, err := src.Candles(cmd.Context(), instrument, from, to, iv)
			if err != nil {
				return err
			}

			if outPath == "" {
				outPath = filepath.Join(cfg.Data.Dir, fmt.Sprintf("%s_%s.csv", instrument, iv))
			}
			if err := os.MkdirAll(filepath.Dir(outPath), 0o755); err != nil {
				return err
			}
			f, err := os.Create(outPath)
			if err != nil {
				return err
			}
			if err := provider.WriteCandles(f, candles); err != nil {
				f.Close()
				return err
			}
			if err := f.Close(); err != nil {
				return err
			}

			rc.Logger().Info("fetched", zap.String("instrument", instrument), zap.Int("candles", len(candles)), zap.String("file", outPath))
			fmt.Fprintf(cmd.OutOrStdout(), "wrote %d candles to %s\n", len(candles), outPath)
			return nil
		},
	}

	fl := cmd.Flags()
	fl.StringVar(&env, "env", "practice", "OANDA environment: practice|live")
	fl.StringVar(&token, "token", "", "OANDA API token (defaults to data.oanda.token or OANDA_TOKEN)")
	fl.StringVar(&baseURL, "base-url", "", "Override the OANDA base URL")
	fl.StringVar(&instrument, "instrument", "", "Instrument (e.g. EUR_USD)")
	fl.StringVar(&interval, "interval", "1h", "Bar interval (1m, 1h, 1d or M1, H1, D)")
	fl.StringVar(&price, "price", "M", "Price component: M (mid), B (bid), A (ask)")
	fl.StringVar(&fromStr, "from", "", "Start time, inclusive")
	fl.StringVar(&toStr, "to", "", "End time, exclusive (defaults to now)")
	fl.StringVar(&outPath, "out", "", "Output CSV path")
	return cmd
}
