package db

import (
	"context"
	_ "embed"
	"fmt"
	"time"

	"github.com/brojonat/txfeed/service/activity"
	"github.com/brojonat/txfeed/service/metrics"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

//go:embed schema.sql
var schemaSQL string

// Store persists the merged activity set of each tracked address.
type Store struct {
	pool    *pgxpool.Pool
	metrics *metrics.Metrics
}

// NewStore creates a new Store with the given database connection pool.
// If metrics is nil, no metrics will be recorded.
func NewStore(pool *pgxpool.Pool, m *metrics.Metrics) *Store {
	return &Store{pool: pool, metrics: m}
}

// Migrate creates the activities table and its indexes if they do not exist.
func (s *Store) Migrate(ctx context.Context) error {
	if _, err := s.pool.Exec(ctx, schemaSQL); err != nil {
		return fmt.Errorf("failed to apply schema: %w", err)
	}
	return nil
}

// Ping checks that the database is reachable.
func (s *Store) Ping(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

const activityColumns = `signature, slot, status, updated_at, block_explorer_url, chain_id, network,
	raw_date, action, type, from_address, to_address, crypto_amount, crypto_currency, decimals,
	total_amount_string, mint_address, fee, order_id`

// LoadActivities returns the committed activity set for address keyed by signature.
// An address that was never reconciled yields an empty map.
func (s *Store) LoadActivities(ctx context.Context, address string) (out map[string]activity.Activity, err error) {
	start := time.Now()
	defer func() { s.metrics.RecordDBQuery("load_activities", time.Since(start).Seconds(), err) }()

	rows, err := s.pool.Query(ctx,
		`SELECT `+activityColumns+` FROM activities WHERE address = $1`, address)
	if err != nil {
		return nil, fmt.Errorf("failed to query activities: %w", err)
	}
	defer rows.Close()

	out = make(map[string]activity.Activity)
	for rows.Next() {
		a, err := scanActivity(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan activity: %w", err)
		}
		out[a.Signature] = a
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read activities: %w", err)
	}
	return out, nil
}

// SaveActivities upserts every entry of set for address in one transaction.
// Rows absent from set are left in place; the merged set only grows.
func (s *Store) SaveActivities(ctx context.Context, address string, set map[string]activity.Activity) (err error) {
	start := time.Now()
	defer func() { s.metrics.RecordDBQuery("save_activities", time.Since(start).Seconds(), err) }()

	if len(set) == 0 {
		return nil
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	batch := &pgx.Batch{}
	for _, a := range set {
		batch.Queue(upsertActivitySQL, upsertArgs(address, a)...)
	}

	results := tx.SendBatch(ctx, batch)
	for range set {
		if _, err := results.Exec(); err != nil {
			results.Close()
			return fmt.Errorf("failed to upsert activity: %w", err)
		}
	}
	if err := results.Close(); err != nil {
		return fmt.Errorf("failed to close batch: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit activities: %w", err)
	}
	return nil
}

const upsertActivitySQL = `
INSERT INTO activities (address, ` + activityColumns + `)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $19, $20)
ON CONFLICT (address, signature) DO UPDATE SET
	slot = EXCLUDED.slot,
	status = EXCLUDED.status,
	updated_at = EXCLUDED.updated_at,
	block_explorer_url = EXCLUDED.block_explorer_url,
	chain_id = EXCLUDED.chain_id,
	network = EXCLUDED.network,
	raw_date = EXCLUDED.raw_date,
	action = EXCLUDED.action,
	type = EXCLUDED.type,
	from_address = EXCLUDED.from_address,
	to_address = EXCLUDED.to_address,
	crypto_amount = EXCLUDED.crypto_amount,
	crypto_currency = EXCLUDED.crypto_currency,
	decimals = EXCLUDED.decimals,
	total_amount_string = EXCLUDED.total_amount_string,
	mint_address = EXCLUDED.mint_address,
	fee = EXCLUDED.fee,
	order_id = COALESCE(EXCLUDED.order_id, activities.order_id),
	modified_at = NOW()`

func upsertArgs(address string, a activity.Activity) []any {
	var fee *int64
	if a.Fee != nil {
		f := int64(*a.Fee)
		fee = &f
	}
	return []any{
		address,
		a.Signature,
		a.Slot,
		string(a.Status),
		a.UpdatedAt,
		a.BlockExplorerURL,
		a.ChainID,
		a.Network,
		a.RawDate,
		string(a.Action),
		a.Type,
		a.From,
		a.To,
		a.CryptoAmount,
		a.CryptoCurrency,
		int32(a.Decimal),
		a.TotalAmountString,
		a.MintAddress,
		fee,
		a.ID,
	}
}

func scanActivity(row pgx.Row) (activity.Activity, error) {
	var (
		a        activity.Activity
		status   string
		action   string
		decimals int32
		fee      *int64
	)
	err := row.Scan(
		&a.Signature,
		&a.Slot,
		&status,
		&a.UpdatedAt,
		&a.BlockExplorerURL,
		&a.ChainID,
		&a.Network,
		&a.RawDate,
		&action,
		&a.Type,
		&a.From,
		&a.To,
		&a.CryptoAmount,
		&a.CryptoCurrency,
		&decimals,
		&a.TotalAmountString,
		&a.MintAddress,
		&fee,
		&a.ID,
	)
	if err != nil {
		return activity.Activity{}, err
	}
	a.Status = activity.Status(status)
	a.Action = activity.Action(action)
	a.Decimal = uint32(decimals)
	if fee != nil {
		f := uint64(*fee)
		a.Fee = &f
	}
	return a, nil
}
