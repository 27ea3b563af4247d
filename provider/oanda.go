package provider

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/rustyeddy/backtester/market"
)

const (
	OANDAPracticeURL = "https://api-fxpractice.oanda.com"
	OANDALiveURL     = "https://api-fxtrade.oanda.com"

	// oandaPageSize is the most candles the API returns per request.
	oandaPageSize = 5000
)

var granularities = map[market.Interval]string{
	market.OneMinute:      "M1",
	market.FiveMinutes:    "M5",
	market.FifteenMinutes: "M15",
	market.ThirtyMinutes:  "M30",
	market.OneHour:        "H1",
	market.TwoHours:       "H2",
	market.FourHours:      "H4",
	market.OneDay:         "D",
	market.OneWeek:        "W",
}

// OANDA fetches candles from the OANDA v20 REST API. Only complete candles
// are returned. Requests are paged from start until end is reached or the
// API runs out of data.
type OANDA struct {
	BaseURL string
	Token   string
	Price   string // M (mid, default), B (bid) or A (ask)
	HTTP    *http.Client
	Log     *zap.Logger
}

// NewOANDA returns a client for the practice or live environment.
func NewOANDA(token string, practice bool) *OANDA {
	base := OANDALiveURL
	if practice {
		base = OANDAPracticeURL
	}
	return &OANDA{
		BaseURL: base,
		Token:   token,
		HTTP:    &http.Client{Timeout: 30 * time.Second},
	}
}

type oandaOHLC struct {
	O string `json:"o"`
	H string `json:"h"`
	L string `json:"l"`
	C string `json:"c"`
}

type oandaCandle struct {
	Complete bool       `json:"complete"`
	Volume   int        `json:"volume"`
	Time     string     `json:"time"`
	Mid      *oandaOHLC `json:"mid,omitempty"`
	Bid      *oandaOHLC `json:"bid,omitempty"`
	Ask      *oandaOHLC `json:"ask,omitempty"`
}

type oandaResponse struct {
	Instrument  string        `json:"instrument"`
	Granularity string        `json:"granularity"`
	Candles     []oandaCandle `json:"candles"`
}

func (p *OANDA) price() string {
	pr := strings.ToUpper(strings.TrimSpace(p.Price))
	if pr == "" {
		return "M"
	}
	return pr
}

func (p *OANDA) Candles(ctx context.Context, instrument string, start, end time.Time, iv market.Interval) ([]market.Candle, error) {
	if p.Token == "" {
		return nil, errors.New("oanda: missing token")
	}
	if p.BaseURL == "" {
		return nil, errors.New("oanda: missing base url")
	}
	if start.IsZero() {
		return nil, errors.New("oanda: start time is required")
	}
	gran, ok := granularities[iv]
	if !ok {
		return nil, fmt.Errorf("%w: %s on oanda", ErrIntervalNotSupported, iv)
	}
	switch p.price() {
	case "M", "B", "A":
	default:
		return nil, fmt.Errorf("oanda: price %q not supported (use M, B or A)", p.Price)
	}

	log := p.Log
	if log == nil {
		log = zap.NewNop()
	}

	var out []market.Candle
	cursor := start
	for page := 1; ; page++ {
		resp, err := p.fetch(ctx, instrument, gran, cursor)
		if err != nil {
			return nil, err
		}
		candles, err := p.convert(resp.Candles)
		if err != nil {
			return nil, err
		}
		log.Debug("oanda page",
			zap.String("instrument", instrument),
			zap.Int("page", page),
			zap.Int("candles", len(candles)))

		done := len(resp.Candles) < oandaPageSize
		for _, c := range candles {
			if !end.IsZero() && !c.Time.Before(end) {
				done = true
				break
			}
			if len(out) > 0 && !c.Time.After(out[len(out)-1].Time) {
				continue
			}
			if inRange(c.Time, start, end) {
				out = append(out, c)
			}
		}
		if done || len(candles) == 0 {
			break
		}
		next := candles[len(candles)-1].Time.Add(iv.Duration())
		if !next.After(cursor) {
			break
		}
		cursor = next
	}

	if len(out) == 0 {
		return nil, fmt.Errorf("%w: %s %s from oanda", ErrNoCandles, instrument, iv)
	}
	return out, nil
}

func (p *OANDA) fetch(ctx context.Context, instrument, gran string, from time.Time) (*oandaResponse, error) {
	u, err := url.Parse(p.BaseURL)
	if err != nil {
		return nil, fmt.Errorf("oanda: base url: %w", err)
	}
	u.Path = fmt.Sprintf("/v3/instruments/%s/candles", url.PathEscape(instrument))

	q := u.Query()
	q.Set("granularity", gran)
	q.Set("price", p.price())
	q.Set("from", from.UTC().Format(time.RFC3339Nano))
	q.Set("count", strconv.Itoa(oandaPageSize))
	u.RawQuery = q.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Bearer "+p.Token)
	req.Header.Set("Accept-Datetime-Format", "RFC3339")

	client := p.HTTP
	if client == nil {
		client = http.DefaultClient
	}
	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("oanda: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		b, _ := io.ReadAll(io.LimitReader(resp.Body, 64*1024))
		return nil, fmt.Errorf("oanda: candles http %d: %s", resp.StatusCode, strings.TrimSpace(string(b)))
	}

	var cr oandaResponse
	if err := json.NewDecoder(resp.Body).Decode(&cr); err != nil {
		return nil, fmt.Errorf("oanda: decode candles: %w", err)
	}
	return &cr, nil
}

func (p *OANDA) convert(in []oandaCandle) ([]market.Candle, error) {
	out := make([]market.Candle, 0, len(in))
	for _, ac := range in {
		if !ac.Complete {
			continue
		}
		t, err := time.Parse(time.RFC3339Nano, ac.Time)
		if err != nil {
			return nil, fmt.Errorf("oanda: bad time %q: %w", ac.Time, err)
		}

		var px *oandaOHLC
		switch p.price() {
		case "B":
			px = ac.Bid
		case "A":
			px = ac.Ask
		default:
			px = ac.Mid
		}
		if px == nil {
			return nil, fmt.Errorf("oanda: candle %s has no %s prices", ac.Time, p.price())
		}

		var vals [4]float64
		for i, s := range []string{px.O, px.H, px.L, px.C} {
			d, err := decimal.NewFromString(s)
			if err != nil {
				return nil, fmt.Errorf("oanda: candle %s: bad price %q", ac.Time, s)
			}
			vals[i] = d.InexactFloat64()
		}
		out = append(out, market.Candle{
			Time:   t.UTC(),
			Open:   vals[0],
			High:   vals[1],
			Low:    vals[2],
			Close:  vals[3],
			Volume: float64(ac.Volume),
		})
	}
	return out, nil
}
