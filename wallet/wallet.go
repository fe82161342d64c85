/*
Package wallet defines point balance holders and their append-only ledger.

PURPOSE:
  Clubs and users each hold a point balance. Every balance mutation is
  paired, in the same storage transaction, with an immutable ledger entry;
  past entries are never updated or deleted. The reward engine only debits,
  credits, and appends - corrections happen upstream as new adjustments.

CRITICAL INVARIANTS:
  1. PAIRED: No balance change without a ledger entry, ever.
  2. APPEND-ONLY: Entries are immutable once written.
  3. GUARDED: A debit checks the balance inside the same transaction that
     applies it, so two concurrent distributions cannot overdraw.

POINTS ARE INTEGERS:
  Balances and entry amounts are int64 points. Fractional share math is
  done in decimal upstream and floored before it reaches a wallet.

SEE ALSO:
  - store/memory, store/sqlite: Store implementations
  - engine/distribute.go: The one writer that moves points between wallets
*/
package wallet

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// =============================================================================
// OWNERS AND WALLETS
// =============================================================================

type OwnerKind string

const (
	OwnerUser OwnerKind = "user"
	OwnerClub OwnerKind = "club"
)

// Owner identifies a balance holder.
type Owner struct {
	Kind OwnerKind
	ID   string
}

func UserOwner(id string) Owner { return Owner{Kind: OwnerUser, ID: id} }
func ClubOwner(id string) Owner { return Owner{Kind: OwnerClub, ID: id} }

func (o Owner) String() string { return string(o.Kind) + ":" + o.ID }

// Wallet is the current balance of one owner. Balances start at zero;
// wallets materialize on first use.
type Wallet struct {
	Owner   Owner
	Balance int64
}

// =============================================================================
// LEDGER ENTRIES
// =============================================================================

type TransactionType string

const (
	// TxRewardCredit is the pool credit applied when a month is approved.
	TxRewardCredit TransactionType = "reward_credit"

	// TxDistributionDebit / TxDistributionCredit are the two legs of one
	// member share transfer.
	TxDistributionDebit  TransactionType = "distribution_debit"
	TxDistributionCredit TransactionType = "distribution_credit"

	// TxBonus is the informational recipient-side entry accompanying a
	// distribution credit. It never changes a balance.
	TxBonus TransactionType = "bonus"

	// TxAdjustment is a manual admin correction.
	TxAdjustment TransactionType = "adjustment"
)

// Entry is the caller-supplied portion of a ledger entry.
type Entry struct {
	Type        TransactionType
	Description string
	Reference   string // e.g. "club-7:2025-03" ties entries to a distribution
}

// Transaction is one immutable ledger row. Amount carries the sign of the
// balance change; log-only entries (TxBonus) record the amount without
// having changed the balance.
type Transaction struct {
	ID          string
	Owner       Owner
	Amount      int64
	Type        TransactionType
	Description string
	Reference   string
	CreatedAt   time.Time
}

// =============================================================================
// STORE CONTRACT
// =============================================================================

// Store persists wallets and their ledgers. Implementations must apply
// each Credit/Debit and its entry atomically.
type Store interface {
	// Balance returns the owner's current balance, zero for a wallet that
	// has never been touched.
	Balance(ctx context.Context, owner Owner) (int64, error)

	// Credit adds amount (> 0) and appends the paired entry.
	Credit(ctx context.Context, owner Owner, amount int64, e Entry) (Transaction, error)

	// Debit removes amount (> 0), failing with InsufficientFundsError when
	// the balance cannot cover it. The check and the write share one
	// transaction.
	Debit(ctx context.Context, owner Owner, amount int64, e Entry) (Transaction, error)

	// AppendEntry records a log-only entry that does not move points.
	AppendEntry(ctx context.Context, owner Owner, amount int64, e Entry) (Transaction, error)

	// Transactions returns the owner's ledger, oldest first.
	Transactions(ctx context.Context, owner Owner) ([]Transaction, error)
}

// =============================================================================
// ERRORS
// =============================================================================

var (
	// ErrInsufficientFunds is returned when a debit exceeds the balance.
	ErrInsufficientFunds = errors.New("insufficient funds")

	// ErrInvalidAmount is returned for zero or negative credit/debit amounts.
	ErrInvalidAmount = errors.New("amount must be positive")
)

// InsufficientFundsError details a balance shortage.
type InsufficientFundsError struct {
	Owner     Owner
	Available int64
	Requested int64
}

func (e *InsufficientFundsError) Error() string {
	return fmt.Sprintf("insufficient funds for %s: available %d, requested %d",
		e.Owner, e.Available, e.Requested)
}

func (e *InsufficientFundsError) Unwrap() error { return ErrInsufficientFunds }
