package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/mesh-intelligence/labledger/pkg/types"
)

// Compile-time interface check: Wallet must implement Escrow.
var _ types.Escrow = (*Wallet)(nil)

// Wallet is an escrow over per-account balances stored in the backend's
// database. Hold moves value from available to held; Refund moves it back.
// Every movement is journaled in the transfers table.
type Wallet struct {
	backend *Backend
	now     func() time.Time
}

// Wallet returns the escrow view of the backend.
func (b *Backend) Wallet() *Wallet {
	return &Wallet{backend: b, now: time.Now}
}

// Deposit credits amount to the account's available balance.
func (w *Wallet) Deposit(ctx context.Context, account types.Account, amount types.Amount) error {
	return w.move(ctx, account, amount, types.TransferDeposit, func(b *types.Balance) error {
		b.Available += amount
		return nil
	})
}

// Withdraw debits amount from the account's available balance.
func (w *Wallet) Withdraw(ctx context.Context, account types.Account, amount types.Amount) error {
	return w.move(ctx, account, amount, types.TransferWithdraw, func(b *types.Balance) error {
		if b.Available < amount {
			return types.ErrInsufficientFunds
		}
		b.Available -= amount
		return nil
	})
}

// Hold moves amount from available into escrow.
func (w *Wallet) Hold(ctx context.Context, account types.Account, amount types.Amount) error {
	return w.move(ctx, account, amount, types.TransferHold, func(b *types.Balance) error {
		if b.Available < amount {
			return types.ErrInsufficientFunds
		}
		b.Available -= amount
		b.Held += amount
		return nil
	})
}

// Refund moves amount from escrow back to available.
func (w *Wallet) Refund(ctx context.Context, account types.Account, amount types.Amount) error {
	return w.move(ctx, account, amount, types.TransferRefund, func(b *types.Balance) error {
		if b.Held < amount {
			return types.ErrInsufficientEscrow
		}
		b.Held -= amount
		b.Available += amount
		return nil
	})
}

// Balance returns the account's balance; unknown accounts have zero balance.
func (w *Wallet) Balance(ctx context.Context, account types.Account) (types.Balance, error) {
	db, err := w.backend.conn()
	if err != nil {
		return types.Balance{}, err
	}
	return readBalance(ctx, db, account)
}

// Transfers returns the account's journal, oldest first.
func (w *Wallet) Transfers(ctx context.Context, account types.Account) ([]types.Transfer, error) {
	db, err := w.backend.conn()
	if err != nil {
		return nil, err
	}

	rows, err := db.QueryContext(ctx,
		"SELECT transfer_id, kind, amount, created_at FROM transfers WHERE account = ? ORDER BY rowid",
		string(account))
	if err != nil {
		return nil, fmt.Errorf("querying transfers: %w", err)
	}
	defer rows.Close()

	var out []types.Transfer
	for rows.Next() {
		var (
			id, kind string
			amount   int64
			at       int64
		)
		if err := rows.Scan(&id, &kind, &amount, &at); err != nil {
			return nil, fmt.Errorf("scanning transfer: %w", err)
		}
		out = append(out, types.Transfer{
			TransferID: id,
			Account:    account,
			Kind:       kind,
			Amount:     types.Amount(amount),
			At:         fromUnix(at),
		})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating transfers: %w", err)
	}
	return out, nil
}

// move applies fn to the account's balance and journals the transfer in
// one transaction.
func (w *Wallet) move(ctx context.Context, account types.Account, amount types.Amount, kind string, fn func(*types.Balance) error) error {
	if !account.Valid() {
		return types.ErrInvalidAccount
	}
	if amount <= 0 {
		return fmt.Errorf("%w: %s must be positive", types.ErrInvalidAmount, amount)
	}

	db, err := w.backend.conn()
	if err != nil {
		return err
	}

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	bal, err := readBalance(ctx, tx, account)
	if err != nil {
		return err
	}
	if err := fn(&bal); err != nil {
		return fmt.Errorf("%s %s for %s: %w", kind, amount, account, err)
	}

	if _, err := tx.ExecContext(ctx,
		`INSERT INTO balances (account, available, held) VALUES (?, ?, ?)
ON CONFLICT(account) DO UPDATE SET available = excluded.available, held = excluded.held`,
		string(account), int64(bal.Available), int64(bal.Held),
	); err != nil {
		return fmt.Errorf("updating balance: %w", err)
	}

	id, err := uuid.NewV7()
	if err != nil {
		return fmt.Errorf("generating UUID v7: %w", err)
	}
	if _, err := tx.ExecContext(ctx,
		"INSERT INTO transfers (transfer_id, account, kind, amount, created_at) VALUES (?, ?, ?, ?, ?)",
		id.String(), string(account), kind, int64(amount), w.now().Unix(),
	); err != nil {
		return fmt.Errorf("journaling transfer: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing transfer: %w", err)
	}
	return nil
}

// queryer is satisfied by *sql.DB and *sql.Tx.
type queryer interface {
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func readBalance(ctx context.Context, q queryer, account types.Account) (types.Balance, error) {
	bal := types.Balance{Account: account}
	var available, held int64
	err := q.QueryRowContext(ctx,
		"SELECT available, held FROM balances WHERE account = ?", string(account),
	).Scan(&available, &held)
	if errors.Is(err, sql.ErrNoRows) {
		return bal, nil
	}
	if err != nil {
		return types.Balance{}, fmt.Errorf("reading balance for %s: %w", account, err)
	}
	bal.Available = types.Amount(available)
	bal.Held = types.Amount(held)
	return bal, nil
}
