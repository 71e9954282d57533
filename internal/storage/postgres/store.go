package postgres

import (
	"context"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/Mak300079/MT-watchers/internal/model"
)

// Store provides Postgres persistence for the asset listing.
type Store struct {
	pool *pgxpool.Pool
}

func NewStore(ctx context.Context, dsn string) (*Store, error) {
	if dsn == "" {
		return nil, fmt.Errorf("pg dsn is required")
	}
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, err
	}
	return &Store{pool: pool}, nil
}

func (s *Store) Close() {
	if s.pool != nil {
		s.pool.Close()
	}
}

// Ping verifies connectivity, used as a startup sanity check.
func (s *Store) Ping(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

// UpsertAssets inserts or refreshes the full listing so last_seen_ts stays
// current for every asset still present upstream.
func (s *Store) UpsertAssets(ctx context.Context, assets []model.Asset) error {
	if len(assets) == 0 {
		return nil
	}
	batch := &pgx.Batch{}
	for _, asset := range assets {
		name := asset.Name
		if name == "" {
			name = asset.Symbol
		}
		batch.Queue(`
			INSERT INTO pendle_assets (address, name, symbol, chain_id, first_seen_ts, last_seen_ts)
			VALUES ($1, $2, $3, $4, now(), now())
			ON CONFLICT (address) DO UPDATE SET
				name = EXCLUDED.name,
				symbol = EXCLUDED.symbol,
				chain_id = EXCLUDED.chain_id,
				last_seen_ts = now()
		`,
			strings.ToLower(asset.Address),
			name,
			asset.Symbol,
			int64(asset.ChainID),
		)
	}

	br := s.pool.SendBatch(ctx, batch)
	defer br.Close()

	for range assets {
		if _, err := br.Exec(); err != nil {
			return err
		}
	}
	return nil
}
