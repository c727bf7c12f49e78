package postgres

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/jackc/pgx/v5"

	"github.com/alanyoungcy/yieldvault/internal/domain"
)

// LedgerStore implements domain.PositionStore and domain.EventStore. Position
// amounts are stored as decimal strings so arbitrary-precision values survive
// the round trip.
type LedgerStore struct {
	client *Client
}

// NewLedgerStore creates a LedgerStore using the given client.
func NewLedgerStore(client *Client) *LedgerStore {
	return &LedgerStore{client: client}
}

// Get returns the stored position, or the empty position when absent.
func (s *LedgerStore) Get(ctx context.Context, user, market common.Address) (domain.Position, error) {
	const query = `
		SELECT kind, amount, updated_at
		FROM positions
		WHERE user_addr = $1 AND market_id = $2`

	var (
		kind      int16
		amount    string
		updatedAt time.Time
	)
	err := s.client.Pool().QueryRow(ctx, query, user.Bytes(), market.Bytes()).
		Scan(&kind, &amount, &updatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.NewPosition(user, market), nil
	}
	if err != nil {
		return domain.Position{}, fmt.Errorf("postgres: get position: %w", err)
	}

	amt, err := parseAmount(amount)
	if err != nil {
		return domain.Position{}, fmt.Errorf("postgres: position amount: %w", err)
	}

	return domain.Position{
		User:      user,
		MarketID:  market,
		Kind:      domain.TokenKind(kind),
		Amount:    amt,
		UpdatedAt: updatedAt,
	}, nil
}

// Apply commits a position transition together with its event in a single
// transaction. An empty position deletes the row.
func (s *LedgerStore) Apply(ctx context.Context, p domain.Position, evt domain.LedgerEvent) error {
	tx, err := s.client.Pool().Begin(ctx)
	if err != nil {
		return fmt.Errorf("postgres: begin apply: %w", err)
	}
	defer tx.Rollback(ctx)

	if p.Empty() {
		const del = `DELETE FROM positions WHERE user_addr = $1 AND market_id = $2`
		if _, err := tx.Exec(ctx, del, p.User.Bytes(), p.MarketID.Bytes()); err != nil {
			return fmt.Errorf("postgres: clear position: %w", err)
		}
	} else {
		const upsert = `
			INSERT INTO positions (user_addr, market_id, kind, amount, updated_at)
			VALUES ($1, $2, $3, $4, $5)
			ON CONFLICT (user_addr, market_id) DO UPDATE
			SET kind = EXCLUDED.kind, amount = EXCLUDED.amount, updated_at = EXCLUDED.updated_at`
		_, err := tx.Exec(ctx, upsert,
			p.User.Bytes(), p.MarketID.Bytes(),
			int16(p.Kind), p.Amount.String(), p.UpdatedAt,
		)
		if err != nil {
			return fmt.Errorf("postgres: upsert position: %w", err)
		}
	}

	const insertEvt = `
		INSERT INTO ledger_events (id, kind, user_addr, market_id, src_kind, dst_kind, amount_in, amount_out, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`
	_, err = tx.Exec(ctx, insertEvt,
		evt.ID, string(evt.Kind),
		evt.User.Bytes(), evt.MarketID.Bytes(),
		int16(evt.SrcKind), int16(evt.DstKind),
		evt.AmountIn.String(), evt.AmountOut.String(),
		evt.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("postgres: insert event: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("postgres: commit apply: %w", err)
	}
	return nil
}

// ListRecent returns up to limit events, newest first.
func (s *LedgerStore) ListRecent(ctx context.Context, limit int) ([]domain.LedgerEvent, error) {
	const query = `
		SELECT id, kind, user_addr, market_id, src_kind, dst_kind, amount_in, amount_out, created_at
		FROM ledger_events
		ORDER BY created_at DESC
		LIMIT $1`

	if limit <= 0 {
		limit = 100
	}
	rows, err := s.client.Pool().Query(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("postgres: list recent events: %w", err)
	}
	defer rows.Close()

	return scanEvents(rows)
}

// ListBefore returns events created strictly before the cutoff, oldest first.
func (s *LedgerStore) ListBefore(ctx context.Context, before time.Time) ([]domain.LedgerEvent, error) {
	const query = `
		SELECT id, kind, user_addr, market_id, src_kind, dst_kind, amount_in, amount_out, created_at
		FROM ledger_events
		WHERE created_at < $1
		ORDER BY created_at ASC`

	rows, err := s.client.Pool().Query(ctx, query, before)
	if err != nil {
		return nil, fmt.Errorf("postgres: list events before cutoff: %w", err)
	}
	defer rows.Close()

	return scanEvents(rows)
}

// DeleteBefore removes archived events older than the cutoff and returns the
// number deleted.
func (s *LedgerStore) DeleteBefore(ctx context.Context, before time.Time) (int64, error) {
	const query = `DELETE FROM ledger_events WHERE created_at < $1`

	tag, err := s.client.Pool().Exec(ctx, query, before)
	if err != nil {
		return 0, fmt.Errorf("postgres: delete events before cutoff: %w", err)
	}
	return tag.RowsAffected(), nil
}

func scanEvents(rows pgx.Rows) ([]domain.LedgerEvent, error) {
	var out []domain.LedgerEvent
	for rows.Next() {
		var evt domain.LedgerEvent
		var user, market []byte
		var kind, amountIn, amountOut string
		var srcKind, dstKind int16
		err := rows.Scan(&evt.ID, &kind, &user, &market, &srcKind, &dstKind, &amountIn, &amountOut, &evt.CreatedAt)
		if err != nil {
			return nil, fmt.Errorf("postgres: scan event: %w", err)
		}

		evt.Kind = domain.EventKind(kind)
		evt.User = common.BytesToAddress(user)
		evt.MarketID = common.BytesToAddress(market)
		evt.SrcKind = domain.TokenKind(srcKind)
		evt.DstKind = domain.TokenKind(dstKind)
		if evt.AmountIn, err = parseAmount(amountIn); err != nil {
			return nil, fmt.Errorf("postgres: event amount_in: %w", err)
		}
		if evt.AmountOut, err = parseAmount(amountOut); err != nil {
			return nil, fmt.Errorf("postgres: event amount_out: %w", err)
		}
		out = append(out, evt)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("postgres: scan events: %w", err)
	}
	return out, nil
}

func parseAmount(s string) (*big.Int, error) {
	v, ok := new(big.Int).SetString(s, 10)
	if !ok {
		return nil, fmt.Errorf("malformed decimal %q", s)
	}
	return v, nil
}
