package cli

import (
	"bytes"
	"fmt"
	"math"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rustyeddy/backtester/journal"
	"github.com/rustyeddy/backtester/market"
	"github.com/rustyeddy/backtester/provider"
)

// execute runs the root command with args and returns what it printed.
func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cmd := NewRootCmd()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(append([]string{"--log-level", "error", "--env-file", ""}, args...))
	err := cmd.Execute()
	return out.String(), err
}

// writeCandles writes n daily candles of a slow wave to dir/TEST_1d.csv.
func writeCandles(t *testing.T, dir string, n int) string {
	t.Helper()
	t0 := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	candles := make([]market.Candle, n)
	for i := range candles {
		c := 100 + 10*math.Sin(float64(i)/6)
		candles[i] = market.Candle{
			Time:   t0.AddDate(0, 0, i),
			Open:   c,
			High:   c + 1,
			Low:    c - 1,
			Close:  c,
			Volume: 1000,
		}
	}

	path := filepath.Join(dir, "TEST_1d.csv")
	f, err := os.Create(path)
	require.NoError(t, err)
	defer f.Close()
	require.NoError(t, provider.WriteCandles(f, candles))
	return path
}

func TestVersion(t *testing.T) {
	t.Parallel()

	out, err := execute(t, "version")
	require.NoError(t, err)
	assert.Equal(t, "backtester dev\n", out)
}

func TestStrategiesList(t *testing.T) {
	t.Parallel()

	out, err := execute(t, "strategies")
	require.NoError(t, err)
	for _, id := range []string{"sma_crossover", "ema_crossover", "ema_adx", "rsi_reversal", "macd_crossover", "bollinger_reversion"} {
		assert.Contains(t, out, id+"\n")
	}
	assert.Contains(t, out, "entry: ")
}

func TestStrategiesShow(t *testing.T) {
	t.Parallel()

	out, err := execute(t, "strategies", "--show", "sma_crossover")
	require.NoError(t, err)
	assert.Contains(t, out, "indicators:")

	_, err = execute(t, "strategies", "--show", "nope")
	assert.Error(t, err)
}

func TestConfigInitAndValidate(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "backtest.yaml")
	out, err := execute(t, "config", "init", "-o", path)
	require.NoError(t, err)
	assert.Contains(t, out, path)
	assert.FileExists(t, path)

	out, err = execute(t, "config", "validate", "-f", path)
	require.NoError(t, err)
	assert.Contains(t, out, "Configuration valid")
	assert.Contains(t, out, "BTC-USD 1d")
}

func TestConfigValidateRejectsBadFile(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "bad.yaml")
	require.NoError(t, os.WriteFile(path, []byte("backtest:\n  initial_capital: -1\n"), 0o644))

	_, err := execute(t, "config", "validate", "-f", path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "validation failed")
}

func TestRunAndInspect(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	dataDir := filepath.Join(dir, "data")
	require.NoError(t, os.Mkdir(dataDir, 0o755))
	writeCandles(t, dataDir, 120)
	db := filepath.Join(dir, "runs.db")

	args := []string{
		"run", "--db", db, "--no-progress",
		"--data-dir", dataDir,
		"--instrument", "TEST", "--interval", "1d",
		"--start", "2024-01-01", "--end", "2025-01-01",
		"--strategy", "sma_crossover", "--param", "fast=5,slow=20",
	}

	out, err := execute(t, args...)
	require.NoError(t, err)
	assert.Contains(t, out, "Backtest Result")
	assert.Contains(t, out, "Instrument:    TEST")
	assert.Contains(t, out, "Bars:          120")

	out, err = execute(t, append(args, "--json", "--sl", "3")...)
	require.NoError(t, err)
	res, err := journal.ReadJSON(strings.NewReader(out))
	require.NoError(t, err)
	require.NotEmpty(t, res.RunID)
	assert.Equal(t, 3.0, res.Strategy.Risk.StopLossPct)

	out, err = execute(t, "runs", "list", "--db", db)
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(out), "\n")
	require.Len(t, lines, 3)
	assert.True(t, strings.HasPrefix(lines[1], res.RunID), "newest run first")

	out, err = execute(t, "runs", "show", res.RunID, "--db", db)
	require.NoError(t, err)
	assert.Contains(t, out, "Run ID:        "+res.RunID)

	out, err = execute(t, "runs", "show", res.RunID, "--org", "--db", db)
	require.NoError(t, err)
	assert.Contains(t, out, "* BACKTEST: sma_crossover TEST 1d")

	exportDir := filepath.Join(dir, "out")
	out, err = execute(t, "runs", "export", res.RunID, "-d", exportDir, "--db", db)
	require.NoError(t, err)
	assert.Contains(t, out, filepath.Join(exportDir, "trades.csv"))
	assert.FileExists(t, filepath.Join(exportDir, "result.json"))

	out, err = execute(t, "runs", "delete", res.RunID, "--db", db)
	require.NoError(t, err)
	assert.Equal(t, "deleted "+res.RunID+"\n", out)

	_, err = execute(t, "runs", "show", res.RunID, "--db", db)
	assert.ErrorIs(t, err, journal.ErrRunNotFound)
}

func TestRunNoSaveSkipsJournal(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	writeCandles(t, dir, 40)
	db := filepath.Join(dir, "runs.db")

	_, err := execute(t, "run", "--db", db, "--no-progress", "--no-save",
		"--data-dir", dir, "--instrument", "TEST", "--interval", "1d",
		"--start", "2024-01-01", "--end", "2025-01-01")
	require.NoError(t, err)
	assert.NoFileExists(t, db)
}

func TestRunErrors(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	writeCandles(t, dir, 40)
	base := []string{"run", "--no-progress", "--no-save", "--data-dir", dir, "--interval", "1d",
		"--start", "2024-01-01", "--end", "2025-01-01"}

	tests := []struct {
		name string
		args []string
		want string
	}{
		{"missing data", []string{"--instrument", "NOPE"}, "provider"},
		{"bad capital", []string{"--instrument", "TEST", "--capital", "-5"}, "initial_capital"},
		{"both strategies", []string{"--instrument", "TEST", "--strategy", "sma_crossover", "--strategy-file", "x.yaml"}, "mutually exclusive"},
		{"bad param", []string{"--instrument", "TEST", "--strategy", "sma_crossover", "--param", "fast=x"}, "--param fast"},
		{"unknown strategy", []string{"--instrument", "TEST", "--strategy", "nope"}, "nope"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			_, err := execute(t, append(append([]string{}, base...), tt.args...)...)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestCompare(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	writeCandles(t, dir, 150)
	db := filepath.Join(dir, "runs.db")

	out, err := execute(t, "compare", "--db", db, "--no-progress",
		"--data-dir", dir, "--instrument", "TEST", "--interval", "1d",
		"--start", "2024-01-01", "--end", "2025-01-01",
		"--strategies", "sma_crossover,ema_crossover,rsi_reversal", "--workers", "2")
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(out), "\n")
	require.Len(t, lines, 4)
	assert.True(t, strings.HasPrefix(lines[1], "sma_crossover"))
	assert.True(t, strings.HasPrefix(lines[2], "ema_crossover"))
	assert.True(t, strings.HasPrefix(lines[3], "rsi_reversal"))

	out, err = execute(t, "runs", "list", "--db", db, "--limit", "0")
	require.NoError(t, err)
	assert.Len(t, strings.Split(strings.TrimSpace(out), "\n"), 4)

	_, err = execute(t, "compare", "--no-save", "--data-dir", dir, "--instrument", "TEST", "--interval", "1d",
		"--strategies", "nope")
	assert.Error(t, err)
}

func TestDataCheck(t *testing.T) {
	t.Parallel()

	path := writeCandles(t, t.TempDir(), 30)
	out, err := execute(t, "data", "check", path, "--interval", "1d")
	require.NoError(t, err)
	assert.Contains(t, out, "30 candles, 2024-01-01 00:00 to 2024-01-30 00:00")
	assert.Contains(t, out, "gaps: 0 (0 missing 1d bars)")

	_, err = execute(t, "data", "check", path, "--interval", "7x")
	assert.Error(t, err)
}

func TestDataImportNeedsInstrument(t *testing.T) {
	t.Parallel()

	path := writeCandles(t, t.TempDir(), 5)
	_, err := execute(t, "data", "import", path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "--instrument")
}

func TestDataFetch(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer tok", r.Header.Get("Authorization"))
		assert.Equal(t, "D", r.URL.Query().Get("granularity"))
		fmt.Fprint(w, `{"instrument":"EUR_USD","granularity":"D","candles":[
			{"complete":true,"volume":5,"time":"2024-01-01T00:00:00Z","mid":{"o":"1.1","h":"1.2","l":"1.0","c":"1.15"}},
			{"complete":true,"volume":6,"time":"2024-01-02T00:00:00Z","mid":{"o":"1.15","h":"1.3","l":"1.1","c":"1.25"}},
			{"complete":false,"volume":1,"time":"2024-01-03T00:00:00Z","mid":{"o":"1.25","h":"1.25","l":"1.25","c":"1.25"}}]}`)
	}))
	defer srv.Close()

	dir := t.TempDir()
	out, err := execute(t, "data", "fetch", "--token", "tok", "--base-url", srv.URL,
		"--instrument", "EUR_USD", "--interval", "1d", "--from", "2024-01-01", "--out", filepath.Join(dir, "EUR_USD_1d.csv"))
	require.NoError(t, err)
	assert.Contains(t, out, "wrote 2 candles")

	f, err := os.Open(filepath.Join(dir, "EUR_USD_1d.csv"))
	require.NoError(t, err)
	defer f.Close()
	candles, err := provider.ReadCandles(t.Context(), f, time.Time{}, time.Time{})
	require.NoError(t, err)
	require.Len(t, candles, 2)
	assert.Equal(t, 1.25, candles[1].Close)

	_, err = execute(t, "data", "fetch", "--token", "tok", "--base-url", srv.URL, "--instrument", "EUR_USD")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "--from")
}
