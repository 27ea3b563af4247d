package journal

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/rustyeddy/backtester/backtest"
	"github.com/rustyeddy/backtester/sim"
)

var (
	tradesHeader     = []string{"seq", "side", "time", "price", "quantity", "capital_after", "fees", "pnl", "pnl_percentage", "reason"}
	roundTripsHeader = []string{"entry_time", "exit_time", "entry_price", "exit_price", "quantity", "entry_fees", "exit_fees", "pnl", "pnl_percentage", "entry_reason", "exit_reason", "exit", "entry_bar", "exit_bar", "planned_risk", "risk_pct", "reward_risk"}
	equityHeader     = []string{"time", "equity"}
)

// f formats without losing precision so a CSV round trip is exact.
func f(x float64) string {
	return strconv.FormatFloat(x, 'g', -1, 64)
}

func writeCSV(w io.Writer, header []string, rows [][]string) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(header); err != nil {
		return err
	}
	if err := cw.WriteAll(rows); err != nil {
		return err
	}
	cw.Flush()
	return cw.Error()
}

func WriteTradesCSV(w io.Writer, trades []sim.Trade) error {
	rows := make([][]string, 0, len(trades))
	for _, t := range trades {
		rows = append(rows, []string{
			strconv.Itoa(t.Seq),
			string(t.Side),
			t.Time.UTC().Format(timeLayout),
			f(t.Price),
			f(t.Quantity),
			f(t.CapitalAfter),
			f(t.Fees),
			f(t.PnL),
			f(t.PnLPercentage),
			t.Reason,
		})
	}
	return writeCSV(w, tradesHeader, rows)
}

func WriteRoundTripsCSV(w io.Writer, trips []sim.RoundTrip) error {
	rows := make([][]string, 0, len(trips))
	for _, rt := range trips {
		rows = append(rows, []string{
			rt.EntryTime.UTC().Format(timeLayout),
			rt.ExitTime.UTC().Format(timeLayout),
			f(rt.EntryPrice),
			f(rt.ExitPrice),
			f(rt.Quantity),
			f(rt.EntryFees),
			f(rt.ExitFees),
			f(rt.PnL),
			f(rt.PnLPercentage),
			rt.EntryReason,
			rt.ExitReason,
			string(rt.Exit),
			strconv.Itoa(rt.EntryBar),
			strconv.Itoa(rt.ExitBar),
			f(rt.PlannedRisk),
			f(rt.RiskPct),
			f(rt.RewardRisk),
		})
	}
	return writeCSV(w, roundTripsHeader, rows)
}

func WriteEquityCSV(w io.Writer, history []backtest.EquityPoint) error {
	rows := make([][]string, 0, len(history))
	for _, p := range history {
		rows = append(rows, []string{p.Time.UTC().Format(timeLayout), f(p.Equity)})
	}
	return writeCSV(w, equityHeader, rows)
}

// fields walks one CSV record, remembering the first parse error.
type fields struct {
	rec  []string
	i    int
	line int
	err  error
}

func (p *fields) next() string {
	s := p.rec[p.i]
	p.i++
	return s
}

func (p *fields) fail(err error) {
	if p.err == nil {
		p.err = fmt.Errorf("journal: line %d column %d: %w", p.line, p.i, err)
	}
}

func (p *fields) float() float64 {
	v, err := strconv.ParseFloat(p.next(), 64)
	if err != nil {
		p.fail(err)
	}
	return v
}

func (p *fields) int() int {
	v, err := strconv.Atoi(p.next())
	if err != nil {
		p.fail(err)
	}
	return v
}

func (p *fields) time() time.Time {
	v, err := parseTS(p.next())
	if err != nil {
		p.fail(err)
	}
	return v
}

// readCSV reads every record after the header. The csv reader enforces
// the header's column count on each row.
func readCSV(r io.Reader, header []string, row func(*fields)) error {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = len(header)
	recs, err := cr.ReadAll()
	if err != nil {
		return fmt.Errorf("journal: %w", err)
	}
	if len(recs) == 0 {
		return fmt.Errorf("journal: missing header")
	}
	for i, h := range header {
		if recs[0][i] != h {
			return fmt.Errorf("journal: column %d is %q, want %q", i+1, recs[0][i], h)
		}
	}
	for i, rec := range recs[1:] {
		p := &fields{rec: rec, line: i + 2}
		row(p)
		if p.err != nil {
			return p.err
		}
	}
	return nil
}

func ReadTradesCSV(r io.Reader) ([]sim.Trade, error) {
	var out []sim.Trade
	err := readCSV(r, tradesHeader, func(p *fields) {
		out = append(out, sim.Trade{
			Seq:           p.int(),
			Side:          sim.Side(p.next()),
			Time:          p.time(),
			Price:         p.float(),
			Quantity:      p.float(),
			CapitalAfter:  p.float(),
			Fees:          p.float(),
			PnL:           p.float(),
			PnLPercentage: p.float(),
			Reason:        p.next(),
		})
	})
	return out, err
}

func ReadRoundTripsCSV(r io.Reader) ([]sim.RoundTrip, error) {
	var out []sim.RoundTrip
	err := readCSV(r, roundTripsHeader, func(p *fields) {
		out = append(out, sim.RoundTrip{
			EntryTime:     p.time(),
			ExitTime:      p.time(),
			EntryPrice:    p.float(),
			ExitPrice:     p.float(),
			Quantity:      p.float(),
			EntryFees:     p.float(),
			ExitFees:      p.float(),
			PnL:           p.float(),
			PnLPercentage: p.float(),
			EntryReason:   p.next(),
			ExitReason:    p.next(),
			Exit:          sim.ExitKind(p.next()),
			EntryBar:      p.int(),
			ExitBar:       p.int(),
			PlannedRisk:   p.float(),
			RiskPct:       p.float(),
			RewardRisk:    p.float(),
		})
	})
	return out, err
}

func ReadEquityCSV(r io.Reader) ([]backtest.EquityPoint, error) {
	var out []backtest.EquityPoint
	err := readCSV(r, equityHeader, func(p *fields) {
		out = append(out, backtest.EquityPoint{Time: p.time(), Equity: p.float()})
	})
	return out, err
}

func WriteJSON(w io.Writer, r *backtest.Result) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(r)
}

func ReadJSON(r io.Reader) (*backtest.Result, error) {
	var res backtest.Result
	if err := json.NewDecoder(r).Decode(&res); err != nil {
		return nil, fmt.Errorf("journal: decode result: %w", err)
	}
	return &res, nil
}

// ExportDir writes result.json, trades.csv, round_trips.csv, equity.csv and
// report.org into dir, creating it if needed. It returns the written paths.
func ExportDir(dir string, r *backtest.Result) ([]string, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, err
	}
	files := []struct {
		name  string
		write func(io.Writer) error
	}{
		{"result.json", func(w io.Writer) error { return WriteJSON(w, r) }},
		{"trades.csv", func(w io.Writer) error { return WriteTradesCSV(w, r.Trades) }},
		{"round_trips.csv", func(w io.Writer) error { return WriteRoundTripsCSV(w, r.RoundTrips) }},
		{"equity.csv", func(w io.Writer) error { return WriteEquityCSV(w, r.CapitalHistory) }},
		{"report.org", func(w io.Writer) error { return WriteOrg(w, r) }},
	}

	var paths []string
	for _, file := range files {
		path := filepath.Join(dir, file.name)
		fh, err := os.Create(path)
		if err != nil {
			return paths, err
		}
		err = file.write(fh)
		if cerr := fh.Close(); err == nil {
			err = cerr
		}
		if err != nil {
			return paths, fmt.Errorf("journal: write %s: %w", path, err)
		}
		paths = append(paths, path)
	}
	return paths, nil
}
