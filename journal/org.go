package journal

import (
	"io"
	"sort"
	"strconv"
	"strings"
	"text/template"
	"time"

	"github.com/rustyeddy/backtester/backtest"
	"github.com/rustyeddy/backtester/indicators"
	"github.com/rustyeddy/backtester/pkg/id"
)

var orgFuncs = template.FuncMap{
	"mul100":  func(x float64) float64 { return x * 100.0 },
	"pf":      backtest.FormatProfitFactor,
	"date":    func(t time.Time) string { return t.UTC().Format("2006-01-02") },
	"stamp":   func(t time.Time) string { return t.UTC().Format("2006-01-02 Mon 15:04") },
	"params":  formatParams,
	"created": createdAt,
}

// createdAt reads the creation time back out of a ULID run id.
func createdAt(runID string) time.Time {
	if t, err := id.Time(runID); err == nil {
		return t
	}
	return time.Now()
}

func formatParams(p indicators.Params) string {
	keys := make([]string, 0, len(p))
	for k := range p {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, len(keys))
	for i, k := range keys {
		parts[i] = k + "=" + strconv.FormatFloat(p[k], 'g', -1, 64)
	}
	return strings.Join(parts, " ")
}

var orgTmpl = template.Must(template.New("backtest").Funcs(orgFuncs).Parse(OrgTemplate))

// WriteOrg renders r as an Org-mode entry for a research journal.
func WriteOrg(w io.Writer, r *backtest.Result) error {
	return orgTmpl.Execute(w, r)
}

const OrgTemplate = `* BACKTEST: {{.Summary.Strategy}} {{.Config.Instrument}} {{.Config.Interval}}
:PROPERTIES:
:RUN_ID:      {{if .RunID}}{{.RunID}}{{else}}(run-id?){{end}}
:STRATEGY:    {{.Summary.Strategy}}
:INTERVAL:    {{.Config.Interval}}
:INSTRUMENT:  {{.Config.Instrument}}
:START_DATE:  {{date .Summary.Start}}
:END_DATE:    {{date .Summary.End}}
:BARS:        {{.Summary.Bars}}
:START_CAP:   {{printf "%.2f" .Summary.InitialCapital}}
:END_CAP:     {{printf "%.2f" .Summary.FinalCapital}}
:NET_PL:      {{printf "%.2f" .Metrics.TotalReturn}}
:RETURN_PCT:  {{printf "%.2f" .Metrics.TotalReturnPercentage}}
:HOLD_PCT:    {{printf "%.2f" .Metrics.HoldStrategyReturnPercentage}}
:ALPHA:       {{printf "%.2f" .Metrics.Alpha}}
:MAX_DD_PCT:  {{printf "%.2f" .Metrics.MaxDrawdownPercentage}}
:TRADES:      {{.Summary.RoundTrips}}
:WINS:        {{.Summary.Wins}}
:LOSSES:      {{.Summary.Losses}}
:WIN_RATE:    {{printf "%.2f" (mul100 .Metrics.WinRate)}}
:PROFIT_FAC:  {{pf .Metrics.ProfitFactor}}
:CREATED:     [{{stamp (created .RunID)}}]
:END:

** Strategy Parameters
| Parameter        | Value |
|------------------+-------|
| Position Size %  | {{printf "%.2f" (mul100 .Config.PositionSizePct)}} |
| Fee Rate %       | {{printf "%.4f" (mul100 .Config.FeeRate)}} |
| Risk             | {{.Strategy.Risk}} |
{{- range .Strategy.Indicators}}
| {{.Key}} | {{.Type}} {{params .Params}} |
{{- end}}

** Rules
- Entry ({{if .Strategy.Entry.Combinator}}{{.Strategy.Entry.Combinator}}{{else}}ALL_AND{{end}}):
{{- range .Strategy.Entry.Conditions}}
  - {{.}}
{{- end}}
- Exit ({{if .Strategy.Exit.Combinator}}{{.Strategy.Exit.Combinator}}{{else}}ALL_AND{{end}}):
{{- range .Strategy.Exit.Conditions}}
  - {{.}}
{{- else}}
  - (risk exits only)
{{- end}}

** Performance Summary
- Net P/L:          *{{printf "%.2f" .Metrics.TotalReturn}}*
- Return:           *{{printf "%.2f" .Metrics.TotalReturnPercentage}}%*
- Buy & Hold:       *{{printf "%.2f" .Metrics.HoldStrategyReturnPercentage}}%*
- Max Drawdown:     *{{printf "%.2f" .Metrics.MaxDrawdownPercentage}}%*
- Win Rate:         *{{printf "%.2f" (mul100 .Metrics.WinRate)}}%*
- Profit Factor:    *{{pf .Metrics.ProfitFactor}}*
- Sharpe (per bar): *{{printf "%.3f" .Metrics.SharpeRatio}}*

** Trade Distribution
| Outcome | Count |
|---------+-------|
| Wins    | {{.Summary.Wins}} |
| Losses  | {{.Summary.Losses}} |
| Total   | {{.Summary.RoundTrips}} |
{{- if .RoundTrips}}

** Trades
| Entry | Exit | Entry Price | Exit Price | P/L | P/L % | Risk % | R:R | Exit |
|-------+------+-------------+------------+-----+-------+--------+-----+------|
{{- range .RoundTrips}}
| {{date .EntryTime}} | {{date .ExitTime}} | {{printf "%.4f" .EntryPrice}} | {{printf "%.4f" .ExitPrice}} | {{printf "%.2f" .PnL}} | {{printf "%.2f" .PnLPercentage}} | {{printf "%.2f" .RiskPct}} | {{printf "%.2f" .RewardRisk}} | {{.Exit}} |
{{- end}}
{{- end}}

** Observations
- {{.Advice}}
`
