package postgres

import (
	"context"
	"fmt"

	"github.com/ethereum/go-ethereum/common"

	"github.com/alanyoungcy/yieldvault/internal/domain"
)

// MarketStore implements domain.MarketStore backed by the markets table.
// Addresses are stored as raw 20-byte values.
type MarketStore struct {
	client *Client
}

// NewMarketStore creates a MarketStore using the given client.
func NewMarketStore(client *Client) *MarketStore {
	return &MarketStore{client: client}
}

// Insert writes a new market record. Markets are immutable, so a conflicting
// insert fails with domain.ErrMarketRegistered and never updates the row.
func (s *MarketStore) Insert(ctx context.Context, m domain.MarketInfo) error {
	const query = `
		INSERT INTO markets (id, underlying, sy, pt, yt, lp, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (id) DO NOTHING`

	tag, err := s.client.Pool().Exec(ctx, query,
		m.ID.Bytes(),
		m.Tokens[domain.KindUnderlying].Bytes(),
		m.Tokens[domain.KindSY].Bytes(),
		m.Tokens[domain.KindPT].Bytes(),
		m.Tokens[domain.KindYT].Bytes(),
		m.Tokens[domain.KindLP].Bytes(),
		m.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("postgres: insert market %s: %w", m.ID.Hex(), err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("postgres: market %s: %w", m.ID.Hex(), domain.ErrMarketRegistered)
	}
	return nil
}

// GetByID returns the market record, or domain.ErrNotFound.
func (s *MarketStore) GetByID(ctx context.Context, id common.Address) (domain.MarketInfo, error) {
	const query = `
		SELECT id, underlying, sy, pt, yt, lp, created_at
		FROM markets
		WHERE id = $1`

	rows, err := s.client.Pool().Query(ctx, query, id.Bytes())
	if err != nil {
		return domain.MarketInfo{}, fmt.Errorf("postgres: get market %s: %w", id.Hex(), err)
	}
	defer rows.Close()

	if !rows.Next() {
		if err := rows.Err(); err != nil {
			return domain.MarketInfo{}, fmt.Errorf("postgres: get market %s: %w", id.Hex(), err)
		}
		return domain.MarketInfo{}, domain.ErrNotFound
	}
	return scanMarket(rows)
}

// List returns all markets ordered by registration time.
func (s *MarketStore) List(ctx context.Context) ([]domain.MarketInfo, error) {
	const query = `
		SELECT id, underlying, sy, pt, yt, lp, created_at
		FROM markets
		ORDER BY created_at ASC`

	rows, err := s.client.Pool().Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("postgres: list markets: %w", err)
	}
	defer rows.Close()

	var out []domain.MarketInfo
	for rows.Next() {
		m, err := scanMarket(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("postgres: list markets: %w", err)
	}
	return out, nil
}

// rowScanner is satisfied by both pgx.Row and pgx.Rows.
type rowScanner interface {
	Scan(dest ...any) error
}

func scanMarket(row rowScanner) (domain.MarketInfo, error) {
	var m domain.MarketInfo
	var id, underlying, sy, pt, yt, lp []byte
	if err := row.Scan(&id, &underlying, &sy, &pt, &yt, &lp, &m.CreatedAt); err != nil {
		return domain.MarketInfo{}, fmt.Errorf("postgres: scan market: %w", err)
	}
	m.ID = common.BytesToAddress(id)
	m.Tokens[domain.KindUnderlying] = common.BytesToAddress(underlying)
	m.Tokens[domain.KindSY] = common.BytesToAddress(sy)
	m.Tokens[domain.KindPT] = common.BytesToAddress(pt)
	m.Tokens[domain.KindYT] = common.BytesToAddress(yt)
	m.Tokens[domain.KindLP] = common.BytesToAddress(lp)
	return m, nil
}
