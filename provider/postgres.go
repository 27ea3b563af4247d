package provider

import (
	"context"
	"fmt"
	"time"

	pgxdecimal "github.com/jackc/pgx-shopspring-decimal"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/rustyeddy/backtester/market"
)

// CandleSchema creates the table Postgres reads from.
const CandleSchema = `
CREATE TABLE IF NOT EXISTS candles (
	instrument TEXT NOT NULL,
	interval TEXT NOT NULL,
	time TIMESTAMPTZ NOT NULL,
	open NUMERIC NOT NULL,
	high NUMERIC NOT NULL,
	low NUMERIC NOT NULL,
	close NUMERIC NOT NULL,
	volume NUMERIC NOT NULL DEFAULT 0,
	PRIMARY KEY (instrument, interval, time)
);
`

const selectCandles = `
SELECT time, open, high, low, close, volume
FROM candles
WHERE instrument = $1
  AND interval = $2
  AND ($3::timestamptz IS NULL OR time >= $3)
  AND ($4::timestamptz IS NULL OR time < $4)
ORDER BY time`

type candleParams struct {
	Instrument string
	Interval   string
	Start      *time.Time
	End        *time.Time
}

type candleRow struct {
	Time   time.Time
	Open   decimal.Decimal
	High   decimal.Decimal
	Low    decimal.Decimal
	Close  decimal.Decimal
	Volume decimal.Decimal
}

type candlesRepository interface {
	GetCandles(ctx context.Context, arg candleParams) ([]candleRow, error)
}

// Postgres serves candles stored in the candles table. NUMERIC columns are
// read as decimals and converted to float64 once.
type Postgres struct {
	candles candlesRepository
	pool    *pgxpool.Pool
}

// NewPostgres connects to dbURL and verifies connectivity.
func NewPostgres(ctx context.Context, dbURL string) (*Postgres, error) {
	config, err := pgxpool.ParseConfig(dbURL)
	if err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	config.AfterConnect = func(ctx context.Context, conn *pgx.Conn) error {
		pgxdecimal.Register(conn.TypeMap())
		return nil
	}

	pool, err := pgxpool.NewWithConfig(ctx, config)
	if err != nil {
		return nil, err
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, err
	}
	return &Postgres{candles: pgxQueries{pool}, pool: pool}, nil
}

func (p *Postgres) Close() {
	if p.pool != nil {
		p.pool.Close()
	}
}

// Migrate creates the candles table if it does not exist.
func (p *Postgres) Migrate(ctx context.Context) error {
	_, err := p.pool.Exec(ctx, CandleSchema)
	return err
}

func (p *Postgres) Candles(ctx context.Context, instrument string, start, end time.Time, iv market.Interval) ([]market.Candle, error) {
	if err := checkInterval(iv); err != nil {
		return nil, err
	}
	arg := candleParams{Instrument: instrument, Interval: string(iv)}
	if !start.IsZero() {
		arg.Start = &start
	}
	if !end.IsZero() {
		arg.End = &end
	}

	rows, err := p.candles.GetCandles(ctx, arg)
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, fmt.Errorf("%w: %s %s", ErrNoCandles, instrument, iv)
	}
	return convertCandles(rows), nil
}

// Store upserts candles for instrument at interval in one batch. The
// series is validated first; NUMERIC has no NaN or infinity.
func (p *Postgres) Store(ctx context.Context, instrument string, iv market.Interval, candles []market.Candle) error {
	if err := market.ValidateSeries(candles); err != nil {
		return fmt.Errorf("store %s %s: %w", instrument, iv, err)
	}
	batch := &pgx.Batch{}
	for _, c := range candles {
		batch.Queue(`
			INSERT INTO candles (instrument, interval, time, open, high, low, close, volume)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
			ON CONFLICT (instrument, interval, time) DO UPDATE
			SET open = EXCLUDED.open, high = EXCLUDED.high, low = EXCLUDED.low,
			    close = EXCLUDED.close, volume = EXCLUDED.volume`,
			instrument, string(iv), c.Time,
			decimal.NewFromFloat(c.Open), decimal.NewFromFloat(c.High), decimal.NewFromFloat(c.Low),
			decimal.NewFromFloat(c.Close), decimal.NewFromFloat(c.Volume),
		)
	}
	return p.pool.SendBatch(ctx, batch).Close()
}

func convertCandles(rows []candleRow) []market.Candle {
	candles := make([]market.Candle, 0, len(rows))
	for _, r := range rows {
		candles = append(candles, market.Candle{
			Time:   r.Time.UTC(),
			Open:   r.Open.InexactFloat64(),
			High:   r.High.InexactFloat64(),
			Low:    r.Low.InexactFloat64(),
			Close:  r.Close.InexactFloat64(),
			Volume: r.Volume.InexactFloat64(),
		})
	}
	return candles
}

type pgxQueries struct {
	pool *pgxpool.Pool
}

func (q pgxQueries) GetCandles(ctx context.Context, arg candleParams) ([]candleRow, error) {
	rows, err := q.pool.Query(ctx, selectCandles, arg.Instrument, arg.Interval, arg.Start, arg.End)
	if err != nil {
		return nil, err
	}
	return pgx.CollectRows(rows, func(row pgx.CollectableRow) (candleRow, error) {
		var r candleRow
		err := row.Scan(&r.Time, &r.Open, &r.High, &r.Low, &r.Close, &r.Volume)
		return r, err
	})
}
