package gateway

import (
	"context"
	"database/sql"
	"errors"

	"github.com/roach88/dbgateway/internal/apperr"
	"github.com/roach88/dbgateway/internal/store"
)

// Ledger entry kinds.
const (
	ledgerCredit        = "credit"
	ledgerEscrowLock    = "escrow_lock"
	ledgerEscrowRelease = "escrow_release"
	ledgerEscrowSplit   = "escrow_split"
)

// initialBalanceReference is the ledger reference of an opening credit.
const initialBalanceReference = "initial_balance"

// CreateAccountRequest opens an account for an existing agent.
type CreateAccountRequest struct {
	AccountID      string       `json:"account_id"`
	InitialBalance *int64       `json:"initial_balance,omitempty"`
	Event          *store.Event `json:"event"`
}

// CreateAccountResponse identifies the new account.
type CreateAccountResponse struct {
	AccountID string `json:"account_id"`
	Balance   int64  `json:"balance"`
	WriteResult
}

// CreateAccount inserts an account. A positive initial balance is recorded
// as a credit ledger entry with reference "initial_balance".
func (g *Gateway) CreateAccount(ctx context.Context, req CreateAccountRequest) (CreateAccountResponse, error) {
	var f fields
	f.str("account_id", req.AccountID)
	f.event(req.Event)
	if err := f.check(); err != nil {
		return CreateAccountResponse{}, err
	}

	balance := deref(req.InitialBalance)
	wr, err := g.write(ctx, "create_account", *req.Event, func(ctx context.Context, tx *store.Tx, now string) (bool, error) {
		if _, err := tx.Exec(ctx,
			"INSERT INTO accounts (id, balance, created_at) VALUES (?, ?, ?)",
			req.AccountID, balance, now); err != nil {
			return false, err
		}
		if balance > 0 {
			if _, err := insertLedger(ctx, tx, req.AccountID, ledgerCredit, balance, balance, initialBalanceReference, now); err != nil {
				return false, err
			}
		}
		return false, nil
	})
	if err != nil {
		return CreateAccountResponse{}, err
	}
	return CreateAccountResponse{AccountID: req.AccountID, Balance: balance, WriteResult: wr}, nil
}

// CreditRequest adds funds to an account under a caller reference.
type CreditRequest struct {
	AccountID string       `json:"account_id"`
	Amount    *int64       `json:"amount"`
	Reference string       `json:"reference"`
	Event     *store.Event `json:"event"`
}

// CreditResponse identifies the ledger entry of the credit.
type CreditResponse struct {
	TxID         int64 `json:"tx_id"`
	BalanceAfter int64 `json:"balance_after"`
	WriteResult
}

// Credit increments a balance and records a credit ledger entry. The
// (account, reference) pair is idempotent: a repeat with the same amount
// returns the original entry, a different amount fails with
// REFERENCE_CONFLICT.
func (g *Gateway) Credit(ctx context.Context, req CreditRequest) (CreditResponse, error) {
	var f fields
	f.str("account_id", req.AccountID)
	f.num("amount", req.Amount)
	f.str("reference", req.Reference)
	f.event(req.Event)
	if err := f.check(); err != nil {
		return CreditResponse{}, err
	}
	amount := *req.Amount

	var resp CreditResponse
	wr, err := g.write(ctx, "credit", *req.Event, func(ctx context.Context, tx *store.Tx, now string) (bool, error) {
		var storedAmount int64
		found, err := lookup(ctx, tx,
			"SELECT id, amount, balance_after FROM ledger_entries WHERE account_id = ? AND reference = ? AND kind = 'credit'",
			[]any{req.AccountID, req.Reference},
			&resp.TxID, &storedAmount, &resp.BalanceAfter)
		if err != nil {
			return false, err
		}
		replay, err := resolve(found, storedAmount, amount,
			apperr.CodeReferenceConflict, "reference already used with a different amount")
		if err != nil || replay {
			return replay, err
		}

		balance, err := adjustBalance(ctx, tx, req.AccountID, amount)
		if err != nil {
			return false, err
		}
		id, err := insertLedger(ctx, tx, req.AccountID, ledgerCredit, amount, balance, req.Reference, now)
		if err != nil {
			return false, err
		}
		resp.TxID, resp.BalanceAfter = id, balance
		return false, nil
	})
	if err != nil {
		return CreditResponse{}, err
	}
	resp.WriteResult = wr
	return resp, nil
}

// adjustBalance adds delta to an account and returns the new balance.
func adjustBalance(ctx context.Context, tx *store.Tx, accountID string, delta int64) (int64, error) {
	var balance int64
	err := tx.QueryRow(ctx,
		"UPDATE accounts SET balance = balance + ? WHERE id = ? RETURNING balance",
		delta, accountID).Scan(&balance)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, accountNotFound(accountID)
	}
	return balance, err
}

// debit subtracts amount only if the balance covers it. Nothing is written
// when it fails.
func debit(ctx context.Context, tx *store.Tx, accountID string, amount int64) (int64, error) {
	var balance int64
	err := tx.QueryRow(ctx,
		"UPDATE accounts SET balance = balance - ? WHERE id = ? AND balance >= ? RETURNING balance",
		amount, accountID, amount).Scan(&balance)
	if errors.Is(err, sql.ErrNoRows) {
		exists, lerr := tx.Exists(ctx, "SELECT 1 FROM accounts WHERE id = ?", accountID)
		if lerr != nil {
			return 0, lerr
		}
		if !exists {
			return 0, accountNotFound(accountID)
		}
		return 0, apperr.InsufficientFunds(accountID)
	}
	return balance, err
}

func insertLedger(ctx context.Context, tx *store.Tx, accountID, kind string, amount, balanceAfter int64, reference, now string) (int64, error) {
	res, err := tx.Exec(ctx, `
		INSERT INTO ledger_entries (account_id, kind, amount, balance_after, reference, created_at)
		VALUES (?, ?, ?, ?, ?, ?)
	`, accountID, kind, amount, balanceAfter, reference, now)
	if err != nil {
		return 0, err
	}
	return res.LastInsertId()
}

func accountNotFound(id string) error {
	return apperr.NotFound(apperr.CodeAccountNotFound, "account not found").WithDetail("account_id", id)
}
