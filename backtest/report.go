package backtest

import (
	"fmt"
	"io"
	"time"

	"github.com/rustyeddy/backtester/metrics"
)

// PrintResult writes a plain-text report of r.
func PrintResult(w io.Writer, r *Result) {
	s, m := r.Summary, r.Metrics

	fmt.Fprintln(w, "==================================================")
	fmt.Fprintln(w, " Backtest Result")
	fmt.Fprintln(w, "==================================================")

	if r.RunID != "" {
		fmt.Fprintf(w, "Run ID:        %s\n", r.RunID)
	}
	fmt.Fprintf(w, "Strategy:      %s\n", s.Strategy)
	fmt.Fprintf(w, "Instrument:    %s\n", r.Config.Instrument)
	fmt.Fprintf(w, "Interval:      %s\n", r.Config.Interval)

	fmt.Fprintln(w)
	fmt.Fprintln(w, "Period")
	fmt.Fprintln(w, "--------------------------------------------------")
	fmt.Fprintf(w, "Start:         %s\n", s.Start.Format(time.RFC3339))
	fmt.Fprintf(w, "End:           %s\n", s.End.Format(time.RFC3339))
	fmt.Fprintf(w, "Bars:          %d\n", s.Bars)
	fmt.Fprintf(w, "Warm-up Bars:  %d\n", s.WarmupBars)

	fmt.Fprintln(w)
	fmt.Fprintln(w, "Strategy Configuration")
	fmt.Fprintln(w, "--------------------------------------------------")
	fmt.Fprintf(w, "Position Size: %.2f%%\n", r.Config.PositionSizePct*100)
	fmt.Fprintf(w, "Fee Rate:      %.4f%%\n", r.Config.FeeRate*100)
	fmt.Fprintf(w, "Risk:          %s\n", r.Strategy.Risk)

	fmt.Fprintln(w)
	fmt.Fprintln(w, "Trade Statistics")
	fmt.Fprintln(w, "--------------------------------------------------")
	fmt.Fprintf(w, "Round Trips:   %d\n", s.RoundTrips)
	fmt.Fprintf(w, "Wins:          %d\n", s.Wins)
	fmt.Fprintf(w, "Losses:        %d\n", s.Losses)
	fmt.Fprintf(w, "Win Rate:      %.2f%%\n", s.WinRate*100)
	fmt.Fprintf(w, "Average Win:   %.2f\n", m.AverageWin)
	fmt.Fprintf(w, "Average Loss:  %.2f\n", m.AverageLoss)
	fmt.Fprintf(w, "Profit Factor: %s\n", FormatProfitFactor(m.ProfitFactor))
	fmt.Fprintf(w, "Total Fees:    %.2f\n", m.TotalFees)

	fmt.Fprintln(w)
	fmt.Fprintln(w, "Account Performance")
	fmt.Fprintln(w, "--------------------------------------------------")
	fmt.Fprintf(w, "Start Capital: %.2f\n", s.InitialCapital)
	fmt.Fprintf(w, "End Capital:   %.2f\n", s.FinalCapital)
	fmt.Fprintf(w, "Net P/L:       %.2f\n", m.TotalReturn)
	fmt.Fprintf(w, "Return:        %.2f%%\n", m.TotalReturnPercentage)
	fmt.Fprintf(w, "Buy & Hold:    %.2f%%\n", m.HoldStrategyReturnPercentage)
	fmt.Fprintf(w, "Alpha:         %.2f%%\n", m.Alpha)
	fmt.Fprintf(w, "Max Drawdown:  %.2f (%.2f%%)\n", m.MaxDrawdown, m.MaxDrawdownPercentage)
	fmt.Fprintf(w, "Sharpe (bar):  %.3f\n", m.SharpeRatio)

	fmt.Fprintln(w)
	fmt.Fprintln(w, "Advice")
	fmt.Fprintln(w, "--------------------------------------------------")
	fmt.Fprintf(w, "- %s\n", r.Advice())

	fmt.Fprintln(w)
}

// FormatProfitFactor renders the no-losses sentinel as "inf".
func FormatProfitFactor(pf float64) string {
	if pf == metrics.ProfitFactorNoLosses {
		return "inf"
	}
	return fmt.Sprintf("%.2f", pf)
}
