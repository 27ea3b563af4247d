package provider

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"math"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/rustyeddy/backtester/market"
)

// CSV reads candle rows from files under Dir:
//
//	time,open,high,low,close[,volume]
//
// For instrument BTC-USD at interval 1h it tries Dir/BTC-USD_1h.csv, then
// Dir/BTC-USD.csv. Time is RFC3339, RFC3339Nano, "2006-01-02" or Unix
// seconds. A header row ("time,...") is allowed and blank rows are skipped.
type CSV struct {
	Dir string
}

func (p CSV) path(instrument string, iv market.Interval) (string, error) {
	candidates := []string{
		filepath.Join(p.Dir, fmt.Sprintf("%s_%s.csv", instrument, iv)),
		filepath.Join(p.Dir, instrument+".csv"),
	}
	for _, c := range candidates {
		if _, err := os.Stat(c); err == nil {
			return c, nil
		} else if !errors.Is(err, fs.ErrNotExist) {
			return "", err
		}
	}
	return "", fmt.Errorf("%w: %s (looked for %s)", ErrNoCandles, instrument, strings.Join(candidates, ", "))
}

func (p CSV) Candles(ctx context.Context, instrument string, start, end time.Time, iv market.Interval) ([]market.Candle, error) {
	if err := checkInterval(iv); err != nil {
		return nil, err
	}
	path, err := p.path(instrument, iv)
	if err != nil {
		return nil, err
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	candles, err := ReadCandles(ctx, f, start, end)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	if len(candles) == 0 {
		return nil, fmt.Errorf("%w: %s in %s", ErrNoCandles, instrument, path)
	}
	return candles, nil
}

// ReadCandles parses candle rows from r, keeping those in [start, end).
func ReadCandles(ctx context.Context, r io.Reader, start, end time.Time) ([]market.Candle, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	cr.TrimLeadingSpace = true

	var (
		out      []market.Candle
		sawFirst bool
		line     int
	)
	for {
		row, err := cr.Read()
		if err == io.EOF {
			return out, nil
		}
		if err != nil {
			return nil, err
		}
		line++
		if line%4096 == 0 {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
		}
		if len(row) == 0 || (len(row) == 1 && strings.TrimSpace(row[0]) == "") {
			continue
		}

		// Allow a single header row
		if !sawFirst {
			sawFirst = true
			if strings.EqualFold(strings.TrimSpace(row[0]), "time") {
				continue
			}
		}

		c, err := parseCandleRow(row)
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}
		if !inRange(c.Time, start, end) {
			continue
		}
		out = append(out, c)
	}
}

func parseCandleRow(row []string) (market.Candle, error) {
	if len(row) < 5 {
		return market.Candle{}, fmt.Errorf("need at least 5 columns, got %d", len(row))
	}
	t, err := parseTime(strings.TrimSpace(row[0]))
	if err != nil {
		return market.Candle{}, err
	}

	var vals [5]float64
	n := min(len(row), 6)
	for i := 1; i < n; i++ {
		s := strings.TrimSpace(row[i])
		if i == 5 && s == "" {
			continue
		}
		v, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return market.Candle{}, fmt.Errorf("bad %s %q: %w", candleColumns[i], row[i], err)
		}
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return market.Candle{}, fmt.Errorf("bad %s %q: %w", candleColumns[i], row[i], market.ErrNonFinite)
		}
		vals[i-1] = v
	}
	return market.Candle{
		Time:   t,
		Open:   vals[0],
		High:   vals[1],
		Low:    vals[2],
		Close:  vals[3],
		Volume: vals[4],
	}, nil
}

var candleColumns = []string{"time", "open", "high", "low", "close", "volume"}

func parseTime(s string) (time.Time, error) {
	for _, layout := range []string{time.RFC3339Nano, time.RFC3339, "2006-01-02 15:04:05", "2006-01-02"} {
		if t, err := time.ParseInLocation(layout, s, time.UTC); err == nil {
			return t.UTC(), nil
		}
	}
	if sec, err := strconv.ParseInt(s, 10, 64); err == nil {
		return time.Unix(sec, 0).UTC(), nil
	}
	return time.Time{}, fmt.Errorf("bad time %q", s)
}

// WriteCandles writes candles in the format ReadCandles accepts.
func WriteCandles(w io.Writer, candles []market.Candle) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(candleColumns); err != nil {
		return err
	}
	for _, c := range candles {
		err := cw.Write([]string{
			c.Time.UTC().Format(time.RFC3339),
			strconv.FormatFloat(c.Open, 'g', -1, 64),
			strconv.FormatFloat(c.High, 'g', -1, 64),
			strconv.FormatFloat(c.Low, 'g', -1, 64),
			strconv.FormatFloat(c.Close, 'g', -1, 64),
			strconv.FormatFloat(c.Volume, 'g', -1, 64),
		})
		if err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}
