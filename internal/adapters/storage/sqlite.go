package storage

// sqlite.go - warm-start snapshots.
//
// Tables:
//   - `wallets`: one row per wallet with the last access token and balance.
//   - `collections`: marketplace metadata (name, slug, last floor).
//   - `my_bids`: one row per (collection, wallet, price) with its expiration.
//
// MyBids snapshots are written after every pass, so an in-memory cache skips
// writes when the wallet's set did not change (the common case when the
// ladder moves but our bids stay put). Expired bids are pruned on open.

import (
	"context"
	"database/sql"
	"fmt"
	"maps"
	"sync"
	"time"

	_ "modernc.org/sqlite"

	"github.com/alejandrodnm/poolbid/internal/domain"
	"github.com/alejandrodnm/poolbid/internal/ports"
)

const schema = `
CREATE TABLE IF NOT EXISTS wallets (
    address    TEXT PRIMARY KEY,
    auth_token TEXT     NOT NULL DEFAULT '',
    balance    REAL     NOT NULL DEFAULT 0,
    updated_at DATETIME NOT NULL
);

CREATE TABLE IF NOT EXISTS collections (
    contract_address TEXT PRIMARY KEY,
    name             TEXT NOT NULL DEFAULT '',
    slug             TEXT NOT NULL DEFAULT '',
    floor            REAL,
    updated_at       DATETIME NOT NULL
);

CREATE TABLE IF NOT EXISTS my_bids (
    contract_address TEXT    NOT NULL,
    wallet           TEXT    NOT NULL,
    price            TEXT    NOT NULL,
    expires_at       INTEGER NOT NULL,
    PRIMARY KEY (contract_address, wallet, price)
);

CREATE INDEX IF NOT EXISTS idx_my_bids_exp ON my_bids(expires_at);
`

// BidRecord is one persisted bid, used by the report.
type BidRecord struct {
	ContractAddress string
	Slug            string
	Wallet          string
	Price           string
	ExpiresAt       time.Time
}

// SQLiteStorage implements ports.WalletStore and ports.BidStore on SQLite
// (pure Go, no CGo).
type SQLiteStorage struct {
	db *sql.DB

	mu    sync.Mutex
	saved map[string]domain.MyBids // contract|wallet → last written set
}

var (
	_ ports.WalletStore = (*SQLiteStorage)(nil)
	_ ports.BidStore    = (*SQLiteStorage)(nil)
)

// NewSQLiteStorage opens (or creates) the database at path, applies the
// schema and drops expired bids.
func NewSQLiteStorage(path string) (*SQLiteStorage, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("storage.NewSQLiteStorage: open %q: %w", path, err)
	}
	db.SetMaxOpenConns(1) // single writer
	db.SetMaxIdleConns(1)

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("storage.NewSQLiteStorage: apply schema: %w", err)
	}

	s := &SQLiteStorage{db: db, saved: make(map[string]domain.MyBids)}
	s.pruneExpired(context.Background(), time.Now())
	return s, nil
}

// ── Wallets ────────────────────────────────────────────────────────────────

// LoadWallets returns every cached wallet keyed by address.
func (s *SQLiteStorage) LoadWallets(ctx context.Context) (map[string]ports.SavedWallet, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT address, auth_token, balance, updated_at FROM wallets`)
	if err != nil {
		return nil, fmt.Errorf("storage.LoadWallets: query: %w", err)
	}
	defer rows.Close()

	out := make(map[string]ports.SavedWallet)
	for rows.Next() {
		var w ports.SavedWallet
		if err := rows.Scan(&w.Address, &w.AuthToken, &w.Balance, &w.UpdatedAt); err != nil {
			return nil, fmt.Errorf("storage.LoadWallets: scan row: %w", err)
		}
		out[w.Address] = w
	}
	return out, rows.Err()
}

// SaveWallet upserts the wallet's token and balance.
func (s *SQLiteStorage) SaveWallet(ctx context.Context, w ports.SavedWallet) error {
	updated := w.UpdatedAt
	if updated.IsZero() {
		updated = time.Now()
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO wallets (address, auth_token, balance, updated_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(address) DO UPDATE SET
			auth_token = excluded.auth_token,
			balance    = excluded.balance,
			updated_at = excluded.updated_at
	`, domain.NormalizeAddress(w.Address), w.AuthToken, w.Balance, updated.UTC())
	if err != nil {
		return fmt.Errorf("storage.SaveWallet %s: %w", w.Address, err)
	}
	return nil
}

// ── Collections ────────────────────────────────────────────────────────────

// SaveCollections upserts collection metadata.
func (s *SQLiteStorage) SaveCollections(ctx context.Context, collections []ports.CollectionDetails) error {
	if len(collections) == 0 {
		return nil
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("storage.SaveCollections: begin tx: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO collections (contract_address, name, slug, floor, updated_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(contract_address) DO UPDATE SET
			name       = excluded.name,
			slug       = excluded.slug,
			floor      = excluded.floor,
			updated_at = excluded.updated_at
	`)
	if err != nil {
		return fmt.Errorf("storage.SaveCollections: prepare: %w", err)
	}
	defer stmt.Close()

	now := time.Now().UTC()
	for _, c := range collections {
		if _, err := stmt.ExecContext(ctx,
			domain.NormalizeAddress(c.ContractAddress), c.Name, c.Slug, c.Floor, now,
		); err != nil {
			return fmt.Errorf("storage.SaveCollections: upsert %s: %w", c.ContractAddress, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("storage.SaveCollections: commit: %w", err)
	}
	return nil
}

// LoadCollections returns cached collection metadata keyed by contract.
func (s *SQLiteStorage) LoadCollections(ctx context.Context) (map[string]ports.CollectionDetails, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT contract_address, name, slug, floor FROM collections`)
	if err != nil {
		return nil, fmt.Errorf("storage.LoadCollections: query: %w", err)
	}
	defer rows.Close()

	out := make(map[string]ports.CollectionDetails)
	for rows.Next() {
		var c ports.CollectionDetails
		var floor sql.NullFloat64
		if err := rows.Scan(&c.ContractAddress, &c.Name, &c.Slug, &floor); err != nil {
			return nil, fmt.Errorf("storage.LoadCollections: scan row: %w", err)
		}
		if floor.Valid {
			f := floor.Float64
			c.Floor = &f
		}
		out[c.ContractAddress] = c
	}
	return out, rows.Err()
}

// ── My bids ────────────────────────────────────────────────────────────────

// SaveMyBids replaces the persisted bid set of one wallet on one collection.
func (s *SQLiteStorage) SaveMyBids(ctx context.Context, contract, wallet string, bids domain.MyBids) error {
	contract = domain.NormalizeAddress(contract)
	wallet = domain.NormalizeAddress(wallet)
	key := contract + "|" + wallet

	s.mu.Lock()
	defer s.mu.Unlock()
	if prev, ok := s.saved[key]; ok && maps.Equal(prev, bids) {
		return nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("storage.SaveMyBids: begin tx: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx,
		`DELETE FROM my_bids WHERE contract_address = ? AND wallet = ?`, contract, wallet,
	); err != nil {
		return fmt.Errorf("storage.SaveMyBids: clear %s: %w", key, err)
	}
	for price, exp := range bids {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO my_bids (contract_address, wallet, price, expires_at) VALUES (?, ?, ?, ?)`,
			contract, wallet, price, exp,
		); err != nil {
			return fmt.Errorf("storage.SaveMyBids: insert %s@%s: %w", key, price, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("storage.SaveMyBids: commit: %w", err)
	}

	s.saved[key] = maps.Clone(bids)
	return nil
}

// LoadMyBids returns the persisted bids of every wallet on contract.
func (s *SQLiteStorage) LoadMyBids(ctx context.Context, contract string) (map[string]domain.MyBids, error) {
	contract = domain.NormalizeAddress(contract)
	rows, err := s.db.QueryContext(ctx,
		`SELECT wallet, price, expires_at FROM my_bids WHERE contract_address = ?`, contract,
	)
	if err != nil {
		return nil, fmt.Errorf("storage.LoadMyBids %s: query: %w", contract, err)
	}
	defer rows.Close()

	out := make(map[string]domain.MyBids)
	for rows.Next() {
		var wallet, price string
		var exp int64
		if err := rows.Scan(&wallet, &price, &exp); err != nil {
			return nil, fmt.Errorf("storage.LoadMyBids %s: scan row: %w", contract, err)
		}
		if out[wallet] == nil {
			out[wallet] = make(domain.MyBids)
		}
		out[wallet][price] = exp
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	s.mu.Lock()
	for wallet, bids := range out {
		s.saved[contract+"|"+wallet] = maps.Clone(bids)
	}
	s.mu.Unlock()
	return out, nil
}

// ListBids returns every persisted bid joined with its collection slug,
// ordered by collection, wallet and price.
func (s *SQLiteStorage) ListBids(ctx context.Context) ([]BidRecord, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT b.contract_address, COALESCE(c.slug, ''), b.wallet, b.price, b.expires_at
		FROM my_bids b
		LEFT JOIN collections c ON c.contract_address = b.contract_address
		ORDER BY b.contract_address, b.wallet, CAST(b.price AS REAL) DESC
	`)
	if err != nil {
		return nil, fmt.Errorf("storage.ListBids: query: %w", err)
	}
	defer rows.Close()

	var out []BidRecord
	for rows.Next() {
		var r BidRecord
		var exp int64
		if err := rows.Scan(&r.ContractAddress, &r.Slug, &r.Wallet, &r.Price, &exp); err != nil {
			return nil, fmt.Errorf("storage.ListBids: scan row: %w", err)
		}
		r.ExpiresAt = time.UnixMilli(exp)
		out = append(out, r)
	}
	return out, rows.Err()
}

// Close closes the database.
func (s *SQLiteStorage) Close() error {
	return s.db.Close()
}

func (s *SQLiteStorage) pruneExpired(ctx context.Context, now time.Time) {
	s.db.ExecContext(ctx, `DELETE FROM my_bids WHERE expires_at <= ?`, now.UnixMilli())
}
