package cache

import (
	"context"
	"database/sql"
	"encoding/json"
	"strings"
	"time"

	"comparador/pkg/logger"
	"comparador/pkg/models"

	_ "modernc.org/sqlite"
)

// Cache keeps search results in a local SQLite file.
type Cache struct {
	db  *sql.DB
	ttl time.Duration
	now func() time.Time
}

func New(dbPath string, ttl time.Duration) (*Cache, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, err
	}

	_, err = db.Exec(`
		CREATE TABLE IF NOT EXISTS search_results (
			store TEXT NOT NULL,
			query TEXT NOT NULL,
			data TEXT NOT NULL,
			fetched_at DATETIME NOT NULL,
			PRIMARY KEY (store, query)
		)
	`)
	if err != nil {
		db.Close()
		return nil, err
	}

	c := &Cache{db: db, ttl: ttl, now: time.Now}
	if err := c.Purge(context.Background()); err != nil {
		db.Close()
		return nil, err
	}
	return c, nil
}

// Purge deletes every row older than the TTL.
func (c *Cache) Purge(ctx context.Context) error {
	rows, err := c.db.QueryContext(ctx, `SELECT store, query, fetched_at FROM search_results`)
	if err != nil {
		return err
	}

	type key struct{ store, query string }
	var expired []key
	for rows.Next() {
		var k key
		var fetchedAt time.Time
		if err := rows.Scan(&k.store, &k.query, &fetchedAt); err != nil {
			rows.Close()
			return err
		}
		if c.expired(fetchedAt) {
			expired = append(expired, k)
		}
	}
	if err := rows.Close(); err != nil {
		return err
	}
	if err := rows.Err(); err != nil {
		return err
	}

	for _, k := range expired {
		if err := c.delete(ctx, k.store, k.query); err != nil {
			return err
		}
	}
	if len(expired) > 0 {
		logger.Log.Debug().Int("rows", len(expired)).Msg("cache: purged expired results")
	}
	return nil
}

func (c *Cache) expired(fetchedAt time.Time) bool {
	return c.now().Sub(fetchedAt) > c.ttl
}

func (c *Cache) delete(ctx context.Context, store, query string) error {
	_, err := c.db.ExecContext(ctx,
		`DELETE FROM search_results WHERE store = ? AND query = ?`, store, query)
	return err
}

func (c *Cache) Get(ctx context.Context, store, query string) ([]models.Product, bool) {
	var data string
	var fetchedAt time.Time

	err := c.db.QueryRowContext(ctx,
		`SELECT data, fetched_at FROM search_results WHERE store = ? AND query = ?`,
		storeKey(store), NormalizeQuery(query),
	).Scan(&data, &fetchedAt)

	if err != nil {
		return nil, false
	}

	if c.expired(fetchedAt) {
		if err := c.delete(ctx, storeKey(store), NormalizeQuery(query)); err != nil {
			logger.Log.Warn().Err(err).Str("store", store).Str("query", query).Msg("cache: failed to delete expired products")
		}
		return nil, false
	}

	var products []models.Product
	if err := json.Unmarshal([]byte(data), &products); err != nil {
		logger.Log.Warn().Err(err).Str("store", store).Str("query", query).Msg("cache: failed to unmarshal products")
		return nil, false
	}

	return products, true
}

func (c *Cache) Set(ctx context.Context, store, query string, products []models.Product) {
	data, err := json.Marshal(products)
	if err != nil {
		logger.Log.Warn().Err(err).Str("store", store).Str("query", query).Msg("cache: failed to marshal products")
		return
	}

	_, err = c.db.ExecContext(ctx,
		`INSERT INTO search_results (store, query, data, fetched_at)
		 VALUES (?, ?, ?, ?)
		 ON CONFLICT(store, query)
		 DO UPDATE SET data = excluded.data, fetched_at = excluded.fetched_at`,
		storeKey(store), NormalizeQuery(query), string(data), c.now().UTC(),
	)
	if err != nil {
		logger.Log.Warn().Err(err).Str("store", store).Str("query", query).Msg("cache: failed to store products")
	}
}

func (c *Cache) Close() error {
	return c.db.Close()
}

// NormalizeQuery folds case and collapses whitespace so equivalent searches
// share an entry.
func NormalizeQuery(query string) string {
	return strings.ToLower(strings.Join(strings.Fields(query), " "))
}

func storeKey(store string) string {
	return strings.ToLower(store)
}
