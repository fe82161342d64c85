/*
wallet.go - Balances and the append-only wallet ledger

PURPOSE:
  Every balance change writes a ledger row in the same statement scope.
  Debits check the available balance first and surface a typed
  InsufficientFundsError so the engine can abort the enclosing
  transaction cleanly.
*/
package sqlite

import (
	"context"
	"database/sql"
	"time"

	"github.com/google/uuid"

	"github.com/clubhub/activity-engine/wallet"
)

func (s *Store) Balance(ctx context.Context, owner wallet.Owner) (int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.balance(ctx, s.db, owner)
}

func (s *Store) balance(ctx context.Context, q dbtx, owner wallet.Owner) (int64, error) {
	var balance int64
	err := q.QueryRowContext(ctx,
		"SELECT balance FROM wallets WHERE owner = ?", owner.String(),
	).Scan(&balance)
	if err == sql.ErrNoRows {
		// A wallet that never received funds has a zero balance.
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	return balance, nil
}

func (s *Store) Credit(ctx context.Context, owner wallet.Owner, amount int64, e wallet.Entry) (wallet.Transaction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.credit(ctx, s.db, owner, amount, e)
}

func (s *Store) credit(ctx context.Context, q dbtx, owner wallet.Owner, amount int64, e wallet.Entry) (wallet.Transaction, error) {
	if amount <= 0 {
		return wallet.Transaction{}, wallet.ErrInvalidAmount
	}

	query := `
		INSERT INTO wallets (owner, balance) VALUES (?, ?)
		ON CONFLICT(owner) DO UPDATE SET balance = wallets.balance + excluded.balance
	`
	if _, err := q.ExecContext(ctx, query, owner.String(), amount); err != nil {
		return wallet.Transaction{}, err
	}
	return s.appendLedger(ctx, q, owner, amount, e)
}

func (s *Store) Debit(ctx context.Context, owner wallet.Owner, amount int64, e wallet.Entry) (wallet.Transaction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.debit(ctx, s.db, owner, amount, e)
}

func (s *Store) debit(ctx context.Context, q dbtx, owner wallet.Owner, amount int64, e wallet.Entry) (wallet.Transaction, error) {
	if amount <= 0 {
		return wallet.Transaction{}, wallet.ErrInvalidAmount
	}

	available, err := s.balance(ctx, q, owner)
	if err != nil {
		return wallet.Transaction{}, err
	}
	if available < amount {
		return wallet.Transaction{}, &wallet.InsufficientFundsError{
			Owner:     owner,
			Available: available,
			Requested: amount,
		}
	}

	if _, err := q.ExecContext(ctx,
		"UPDATE wallets SET balance = balance - ? WHERE owner = ?",
		amount, owner.String(),
	); err != nil {
		return wallet.Transaction{}, err
	}
	return s.appendLedger(ctx, q, owner, -amount, e)
}

// AppendEntry writes a ledger row without moving the balance. Used for
// informational entries such as the member-facing bonus line.
func (s *Store) AppendEntry(ctx context.Context, owner wallet.Owner, amount int64, e wallet.Entry) (wallet.Transaction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.appendLedger(ctx, s.db, owner, amount, e)
}

func (s *Store) appendLedger(ctx context.Context, q dbtx, owner wallet.Owner, amount int64, e wallet.Entry) (wallet.Transaction, error) {
	tx := wallet.Transaction{
		ID:          uuid.NewString(),
		Owner:       owner,
		Amount:      amount,
		Type:        e.Type,
		Description: e.Description,
		Reference:   e.Reference,
		CreatedAt:   time.Now().UTC(),
	}

	query := `
		INSERT INTO wallet_transactions (id, owner, amount, tx_type, description, reference, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`
	_, err := q.ExecContext(ctx, query,
		tx.ID, owner.String(), tx.Amount, tx.Type,
		nullString(tx.Description), nullString(tx.Reference),
		tx.CreatedAt.Format(time.RFC3339Nano),
	)
	if err != nil {
		return wallet.Transaction{}, err
	}
	return tx, nil
}

func (s *Store) Transactions(ctx context.Context, owner wallet.Owner) ([]wallet.Transaction, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.transactions(ctx, s.db, owner)
}

func (s *Store) transactions(ctx context.Context, q dbtx, owner wallet.Owner) ([]wallet.Transaction, error) {
	query := `
		SELECT id, amount, tx_type, description, reference, created_at
		FROM wallet_transactions
		WHERE owner = ?
		ORDER BY rowid ASC
	`
	rows, err := q.QueryContext(ctx, query, owner.String())
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var txs []wallet.Transaction
	for rows.Next() {
		var (
			tx          wallet.Transaction
			description sql.NullString
			reference   sql.NullString
			createdAt   string
		)
		if err := rows.Scan(&tx.ID, &tx.Amount, &tx.Type, &description, &reference, &createdAt); err != nil {
			return nil, err
		}
		tx.Owner = owner
		tx.Description = description.String
		tx.Reference = reference.String
		tx.CreatedAt = parseTime(createdAt)
		txs = append(txs, tx)
	}
	return txs, rows.Err()
}
