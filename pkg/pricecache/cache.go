package pricecache

import (
	"context"
	"database/sql"
	"fmt"
	"slices"
	"strings"
	"time"

	// Register sqlite3 driver
	_ "github.com/mattn/go-sqlite3"
	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"
	"github.com/vignesh-goutham/marketsim/pkg/marketdata"
)

type DB interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	BeginTx(ctx context.Context, opts *sql.TxOptions) (*sql.Tx, error)
	Close() error
}

func OpenSQLite(dsn string) (DB, error) {
	return sql.Open("sqlite3", dsn)
}

func InitSchema(ctx context.Context, db DB) error {
	_, err := db.ExecContext(ctx, `CREATE TABLE IF NOT EXISTS requests(
		request TEXT PRIMARY KEY, fetched_at INTEGER
	);
	CREATE TABLE IF NOT EXISTS calendar(
		request TEXT, date TEXT, PRIMARY KEY(request, date)
	);
	CREATE TABLE IF NOT EXISTS closes(
		request TEXT, date TEXT, symbol TEXT, close TEXT, PRIMARY KEY(request, date, symbol)
	)`)
	return err
}

// Cache is a PriceSource that remembers every table its upstream returned.
// Tables are keyed by the upstream's namespace and the exact request, so a
// hit replays the upstream's calendar as well as its closes.
type Cache struct {
	db        DB
	upstream  marketdata.PriceSource
	namespace string
	ttl       time.Duration
	now       func() time.Time
}

type Option func(*Cache)

// WithTTL expires cached tables older than ttl. Zero keeps them forever.
func WithTTL(ttl time.Duration) Option {
	return func(c *Cache) {
		c.ttl = ttl
	}
}

// New wraps upstream. namespace identifies the upstream and its settings;
// tables cached under one namespace are never served under another.
func New(db DB, upstream marketdata.PriceSource, namespace string, opts ...Option) *Cache {
	c := &Cache{
		db:        db,
		upstream:  upstream,
		namespace: namespace,
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// GetPriceTable implements marketdata.PriceSource
func (c *Cache) GetPriceTable(ctx context.Context, symbols []string, from, to time.Time) (*marketdata.PriceTable, error) {
	key := c.namespace + "#" + requestKey(symbols, from, to)

	table, ok, err := c.load(ctx, key)
	if err != nil {
		return nil, fmt.Errorf("error reading price cache: %w", err)
	}
	if ok {
		log.Debug().Str("request", key).Int("dates", table.Len()).Msg("Price cache hit")
		return table, nil
	}

	table, err = c.upstream.GetPriceTable(ctx, symbols, from, to)
	if err != nil {
		return nil, err
	}
	if err := c.store(ctx, key, table); err != nil {
		log.Warn().Err(err).Str("request", key).Msg("Failed to write price cache")
	}
	return table, nil
}

func (c *Cache) load(ctx context.Context, key string) (*marketdata.PriceTable, bool, error) {
	rows, err := c.db.QueryContext(ctx, `SELECT fetched_at FROM requests WHERE request=?`, key)
	if err != nil {
		return nil, false, err
	}
	found := false
	var fetchedAt int64
	if rows.Next() {
		if err := rows.Scan(&fetchedAt); err != nil {
			rows.Close()
			return nil, false, err
		}
		found = true
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return nil, false, err
	}
	rows.Close()
	if !found {
		return nil, false, nil
	}
	if age := c.now().Sub(time.Unix(fetchedAt, 0)); c.ttl > 0 && age > c.ttl {
		log.Debug().Str("request", key).Dur("age", age).Msg("Price cache entry expired")
		return nil, false, nil
	}

	rows, err = c.db.QueryContext(ctx, `SELECT date FROM calendar WHERE request=? ORDER BY date ASC`, key)
	if err != nil {
		return nil, false, err
	}
	var calendar []marketdata.Row
	index := make(map[string]int)
	for rows.Next() {
		var d string
		if err := rows.Scan(&d); err != nil {
			rows.Close()
			return nil, false, err
		}
		date, err := marketdata.ParseDate(d)
		if err != nil {
			rows.Close()
			return nil, false, err
		}
		index[d] = len(calendar)
		calendar = append(calendar, marketdata.Row{Date: date, Closes: map[string]decimal.Decimal{}})
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return nil, false, err
	}
	rows.Close()

	rows, err = c.db.QueryContext(ctx, `SELECT date, symbol, close FROM closes WHERE request=?`, key)
	if err != nil {
		return nil, false, err
	}
	defer rows.Close()
	for rows.Next() {
		var d, symbol, cell string
		if err := rows.Scan(&d, &symbol, &cell); err != nil {
			return nil, false, err
		}
		i, ok := index[d]
		if !ok {
			return nil, false, fmt.Errorf("close for %s on %s outside cached calendar", symbol, d)
		}
		price, err := decimal.NewFromString(cell)
		if err != nil {
			return nil, false, err
		}
		calendar[i].Closes[symbol] = price
	}
	if err := rows.Err(); err != nil {
		return nil, false, err
	}

	table, err := marketdata.NewPriceTable(calendar)
	if err != nil {
		return nil, false, err
	}
	return table, true, nil
}

func (c *Cache) store(ctx context.Context, key string, table *marketdata.PriceTable) error {
	tx, err := c.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	// an expired entry may hold dates the new table no longer has
	for _, stmt := range []string{
		`DELETE FROM calendar WHERE request=?`,
		`DELETE FROM closes WHERE request=?`,
	} {
		if _, err := tx.ExecContext(ctx, stmt, key); err != nil {
			return err
		}
	}

	symbols := table.Symbols()
	for _, date := range table.Dates() {
		d := date.Format(marketdata.DateLayout)
		if _, err := tx.ExecContext(ctx, `INSERT OR REPLACE INTO calendar(request,date) VALUES(?,?)`, key, d); err != nil {
			return err
		}
		for _, symbol := range symbols {
			price, ok := table.Price(symbol, date)
			if !ok {
				continue
			}
			if _, err := tx.ExecContext(ctx, `INSERT OR REPLACE INTO closes(request,date,symbol,close) VALUES(?,?,?,?)`,
				key, d, symbol, price.String()); err != nil {
				return err
			}
		}
	}
	if _, err := tx.ExecContext(ctx, `INSERT OR REPLACE INTO requests(request,fetched_at) VALUES(?,?)`,
		key, c.now().Unix()); err != nil {
		return err
	}
	return tx.Commit()
}

// requestKey identifies a request independent of symbol order
func requestKey(symbols []string, from, to time.Time) string {
	sorted := slices.Clone(symbols)
	slices.Sort(sorted)
	sorted = slices.Compact(sorted)
	return fmt.Sprintf("%s|%s|%s", strings.Join(sorted, ","),
		marketdata.Day(from).Format(marketdata.DateLayout), marketdata.Day(to).Format(marketdata.DateLayout))
}
