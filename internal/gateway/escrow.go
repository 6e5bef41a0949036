package gateway

import (
	"context"

	"github.com/roach88/dbgateway/internal/apperr"
	"github.com/roach88/dbgateway/internal/store"
)

// Escrow statuses.
const (
	escrowLocked   = "locked"
	escrowReleased = "released"
	escrowSplit    = "split"
)

// LockEscrowRequest moves funds from a payer into escrow for a task.
type LockEscrowRequest struct {
	EscrowID string       `json:"escrow_id"`
	PayerID  string       `json:"payer_id"`
	Amount   *int64       `json:"amount"`
	TaskID   string       `json:"task_id"`
	Event    *store.Event `json:"event"`
}

// EscrowResponse describes an escrow after a write.
type EscrowResponse struct {
	EscrowID string `json:"escrow_id"`
	Status   string `json:"status"`
	Amount   int64  `json:"amount"`
	WriteResult
}

type escrowRow struct {
	id, payerID, taskID string
	amount              int64
}

// LockEscrow debits the payer and creates a locked escrow. At most one
// escrow per (payer, task) may be locked at a time: an identical repeat
// replays, anything else fails with ESCROW_ALREADY_LOCKED.
func (g *Gateway) LockEscrow(ctx context.Context, req LockEscrowRequest) (EscrowResponse, error) {
	var f fields
	f.str("escrow_id", req.EscrowID)
	f.str("payer_id", req.PayerID)
	f.num("amount", req.Amount)
	f.str("task_id", req.TaskID)
	f.event(req.Event)
	if err := f.check(); err != nil {
		return EscrowResponse{}, err
	}
	requested := escrowRow{req.EscrowID, req.PayerID, req.TaskID, *req.Amount}

	resp := EscrowResponse{EscrowID: req.EscrowID, Status: escrowLocked, Amount: requested.amount}
	wr, err := g.write(ctx, "lock_escrow", *req.Event, func(ctx context.Context, tx *store.Tx, now string) (bool, error) {
		var stored escrowRow
		found, err := lookup(ctx, tx,
			"SELECT id, payer_id, task_id, amount FROM escrows WHERE payer_id = ? AND task_id = ? AND status = 'locked'",
			[]any{req.PayerID, req.TaskID},
			&stored.id, &stored.payerID, &stored.taskID, &stored.amount)
		if err != nil {
			return false, err
		}
		replay, err := resolve(found, stored, requested,
			apperr.CodeEscrowAlreadyLocked, "an escrow is already locked for this payer and task")
		if err != nil || replay {
			return replay, err
		}

		// The debit comes first: on failure nothing has been written.
		balance, err := debit(ctx, tx, req.PayerID, requested.amount)
		if err != nil {
			return false, err
		}
		if _, err := tx.Exec(ctx, `
			INSERT INTO escrows (id, payer_id, amount, task_id, status, created_at)
			VALUES (?, ?, ?, ?, 'locked', ?)
		`, req.EscrowID, req.PayerID, requested.amount, req.TaskID, now); err != nil {
			return false, err
		}
		_, err = insertLedger(ctx, tx, req.PayerID, ledgerEscrowLock, requested.amount, balance, req.EscrowID, now)
		return false, err
	})
	if err != nil {
		return EscrowResponse{}, err
	}
	resp.WriteResult = wr
	return resp, nil
}

// ReleaseEscrowRequest pays the full escrow amount to one recipient.
type ReleaseEscrowRequest struct {
	EscrowID    string       `json:"escrow_id"`
	RecipientID string       `json:"recipient_id"`
	Event       *store.Event `json:"event"`
}

// ReleaseEscrow credits the recipient with the locked amount and marks the
// escrow released. Only a locked escrow can be released.
func (g *Gateway) ReleaseEscrow(ctx context.Context, req ReleaseEscrowRequest) (EscrowResponse, error) {
	var f fields
	f.str("escrow_id", req.EscrowID)
	f.str("recipient_id", req.RecipientID)
	f.event(req.Event)
	if err := f.check(); err != nil {
		return EscrowResponse{}, err
	}

	resp := EscrowResponse{EscrowID: req.EscrowID, Status: escrowReleased}
	wr, err := g.write(ctx, "release_escrow", *req.Event, func(ctx context.Context, tx *store.Tx, now string) (bool, error) {
		amount, err := lockedEscrowAmount(ctx, tx, req.EscrowID)
		if err != nil {
			return false, err
		}
		resp.Amount = amount

		if err := payout(ctx, tx, req.RecipientID, amount, ledgerEscrowRelease, req.EscrowID, now); err != nil {
			return false, err
		}
		return false, resolveEscrow(ctx, tx, req.EscrowID, escrowReleased, now)
	})
	if err != nil {
		return EscrowResponse{}, err
	}
	resp.WriteResult = wr
	return resp, nil
}

// SplitEscrowRequest divides an escrow between worker and poster.
// The caller computes the shares; they must sum to the locked amount.
type SplitEscrowRequest struct {
	EscrowID    string       `json:"escrow_id"`
	WorkerID    string       `json:"worker_id"`
	WorkerShare *int64       `json:"worker_share"`
	PosterID    string       `json:"poster_id"`
	PosterShare *int64       `json:"poster_share"`
	Event       *store.Event `json:"event"`
}

// SplitEscrowResponse describes a split escrow.
type SplitEscrowResponse struct {
	EscrowResponse
	WorkerShare int64 `json:"worker_share"`
	PosterShare int64 `json:"poster_share"`
}

// SplitEscrow credits each nonzero share and marks the escrow split. A zero
// share writes no credit and no ledger entry.
func (g *Gateway) SplitEscrow(ctx context.Context, req SplitEscrowRequest) (SplitEscrowResponse, error) {
	var f fields
	f.str("escrow_id", req.EscrowID)
	f.str("worker_id", req.WorkerID)
	f.num("worker_share", req.WorkerShare)
	f.str("poster_id", req.PosterID)
	f.num("poster_share", req.PosterShare)
	f.event(req.Event)
	if err := f.check(); err != nil {
		return SplitEscrowResponse{}, err
	}
	workerShare, posterShare := *req.WorkerShare, *req.PosterShare

	resp := SplitEscrowResponse{
		EscrowResponse: EscrowResponse{EscrowID: req.EscrowID, Status: escrowSplit},
		WorkerShare:    workerShare,
		PosterShare:    posterShare,
	}
	wr, err := g.write(ctx, "split_escrow", *req.Event, func(ctx context.Context, tx *store.Tx, now string) (bool, error) {
		amount, err := lockedEscrowAmount(ctx, tx, req.EscrowID)
		if err != nil {
			return false, err
		}
		if workerShare+posterShare != amount {
			return false, apperr.Conflict(apperr.CodeShareSumMismatch, "shares must sum to the escrow amount").
				WithDetail("amount", amount).
				WithDetail("share_sum", workerShare+posterShare)
		}
		resp.Amount = amount

		if err := payout(ctx, tx, req.WorkerID, workerShare, ledgerEscrowSplit, req.EscrowID, now); err != nil {
			return false, err
		}
		if err := payout(ctx, tx, req.PosterID, posterShare, ledgerEscrowSplit, req.EscrowID, now); err != nil {
			return false, err
		}
		return false, resolveEscrow(ctx, tx, req.EscrowID, escrowSplit, now)
	})
	if err != nil {
		return SplitEscrowResponse{}, err
	}
	resp.WriteResult = wr
	return resp, nil
}

// lockedEscrowAmount returns the amount of a locked escrow.
func lockedEscrowAmount(ctx context.Context, tx *store.Tx, escrowID string) (int64, error) {
	var amount int64
	var status string
	found, err := lookup(ctx, tx,
		"SELECT amount, status FROM escrows WHERE id = ?",
		[]any{escrowID}, &amount, &status)
	if err != nil {
		return 0, err
	}
	if !found {
		return 0, apperr.NotFound(apperr.CodeEscrowNotFound, "escrow not found").WithDetail("escrow_id", escrowID)
	}
	if status != escrowLocked {
		return 0, apperr.Conflict(apperr.CodeEscrowAlreadyResolved, "escrow already resolved").
			WithDetail("status", status)
	}
	return amount, nil
}

// payout credits amount to an account with a ledger entry. Zero is a no-op.
func payout(ctx context.Context, tx *store.Tx, accountID string, amount int64, kind, escrowID, now string) error {
	if amount == 0 {
		return nil
	}
	balance, err := adjustBalance(ctx, tx, accountID, amount)
	if err != nil {
		return err
	}
	_, err = insertLedger(ctx, tx, accountID, kind, amount, balance, escrowID, now)
	return err
}

func resolveEscrow(ctx context.Context, tx *store.Tx, escrowID, status, now string) error {
	_, err := tx.Exec(ctx,
		"UPDATE escrows SET status = ?, resolved_at = ? WHERE id = ? AND status = 'locked'",
		status, now, escrowID)
	return err
}
