package gateway

import (
	"context"

	"github.com/roach88/dbgateway/internal/apperr"
	"github.com/roach88/dbgateway/internal/store"
)

// FileClaimRequest opens a dispute on a task.
type FileClaimRequest struct {
	ClaimID      string       `json:"claim_id"`
	TaskID       string       `json:"task_id"`
	ClaimantID   string       `json:"claimant_id"`
	RespondentID string       `json:"respondent_id"`
	Reason       string       `json:"reason"`
	Event        *store.Event `json:"event"`
}

// ClaimResponse identifies a claim.
type ClaimResponse struct {
	ClaimID string `json:"claim_id"`
	Status  string `json:"status"`
	WriteResult
}

// FileClaim inserts a claim in status "filed".
func (g *Gateway) FileClaim(ctx context.Context, req FileClaimRequest) (ClaimResponse, error) {
	var f fields
	f.str("claim_id", req.ClaimID)
	f.str("task_id", req.TaskID)
	f.str("claimant_id", req.ClaimantID)
	f.str("respondent_id", req.RespondentID)
	f.str("reason", req.Reason)
	f.event(req.Event)
	if err := f.check(); err != nil {
		return ClaimResponse{}, err
	}

	wr, err := g.write(ctx, "file_claim", *req.Event, func(ctx context.Context, tx *store.Tx, now string) (bool, error) {
		_, err := tx.Exec(ctx, `
			INSERT INTO claims (id, task_id, claimant_id, respondent_id, reason, status, filed_at)
			VALUES (?, ?, ?, ?, ?, 'filed', ?)
		`, req.ClaimID, req.TaskID, req.ClaimantID, req.RespondentID, req.Reason, now)
		return false, err
	})
	if err != nil {
		return ClaimResponse{}, err
	}
	return ClaimResponse{ClaimID: req.ClaimID, Status: "filed", WriteResult: wr}, nil
}

// SubmitRebuttalRequest answers a claim. ClaimStatus, when set, is written
// to the claim in the same unit.
type SubmitRebuttalRequest struct {
	RebuttalID  string       `json:"rebuttal_id"`
	ClaimID     string       `json:"claim_id"`
	AgentID     string       `json:"agent_id"`
	Content     string       `json:"content"`
	ClaimStatus string       `json:"claim_status,omitempty"`
	Event       *store.Event `json:"event"`
}

// RebuttalResponse identifies a rebuttal.
type RebuttalResponse struct {
	RebuttalID string `json:"rebuttal_id"`
	WriteResult
}

// SubmitRebuttal inserts a rebuttal on an existing claim.
func (g *Gateway) SubmitRebuttal(ctx context.Context, req SubmitRebuttalRequest) (RebuttalResponse, error) {
	var f fields
	f.str("rebuttal_id", req.RebuttalID)
	f.str("claim_id", req.ClaimID)
	f.str("agent_id", req.AgentID)
	f.str("content", req.Content)
	f.event(req.Event)
	if err := f.check(); err != nil {
		return RebuttalResponse{}, err
	}

	wr, err := g.write(ctx, "submit_rebuttal", *req.Event, func(ctx context.Context, tx *store.Tx, now string) (bool, error) {
		if err := touchClaim(ctx, tx, req.ClaimID, req.ClaimStatus); err != nil {
			return false, err
		}
		_, err := tx.Exec(ctx,
			"INSERT INTO rebuttals (id, claim_id, agent_id, content, submitted_at) VALUES (?, ?, ?, ?, ?)",
			req.RebuttalID, req.ClaimID, req.AgentID, req.Content, now)
		return false, err
	})
	if err != nil {
		return RebuttalResponse{}, err
	}
	return RebuttalResponse{RebuttalID: req.RebuttalID, WriteResult: wr}, nil
}

// RecordRulingRequest records a court decision. JudgeVotes is an opaque
// JSON string stored as given ("[]" when empty).
type RecordRulingRequest struct {
	RulingID    string       `json:"ruling_id"`
	ClaimID     string       `json:"claim_id"`
	TaskID      string       `json:"task_id"`
	WorkerPct   *int64       `json:"worker_pct"`
	Summary     string       `json:"summary"`
	JudgeVotes  string       `json:"judge_votes,omitempty"`
	ClaimStatus string       `json:"claim_status,omitempty"`
	Event       *store.Event `json:"event"`
}

// RulingResponse identifies a ruling.
type RulingResponse struct {
	RulingID string `json:"ruling_id"`
	WriteResult
}

// RecordRuling inserts a ruling on an existing claim.
func (g *Gateway) RecordRuling(ctx context.Context, req RecordRulingRequest) (RulingResponse, error) {
	var f fields
	f.str("ruling_id", req.RulingID)
	f.str("claim_id", req.ClaimID)
	f.str("task_id", req.TaskID)
	f.num("worker_pct", req.WorkerPct)
	f.str("summary", req.Summary)
	f.event(req.Event)
	if err := f.check(); err != nil {
		return RulingResponse{}, err
	}
	votes := req.JudgeVotes
	if votes == "" {
		votes = "[]"
	}

	wr, err := g.write(ctx, "record_ruling", *req.Event, func(ctx context.Context, tx *store.Tx, now string) (bool, error) {
		if err := touchClaim(ctx, tx, req.ClaimID, req.ClaimStatus); err != nil {
			return false, err
		}
		_, err := tx.Exec(ctx, `
			INSERT INTO rulings (id, claim_id, task_id, worker_pct, summary, judge_votes, ruled_at)
			VALUES (?, ?, ?, ?, ?, ?, ?)
		`, req.RulingID, req.ClaimID, req.TaskID, *req.WorkerPct, req.Summary, votes, now)
		return false, err
	})
	if err != nil {
		return RulingResponse{}, err
	}
	return RulingResponse{RulingID: req.RulingID, WriteResult: wr}, nil
}

// touchClaim verifies the claim exists and, if status is set, writes it.
func touchClaim(ctx context.Context, tx *store.Tx, claimID, status string) error {
	var n int64
	var err error
	if status != "" {
		n, err = tx.ExecAffected(ctx, "UPDATE claims SET status = ? WHERE id = ?", status, claimID)
	} else {
		var ok bool
		ok, err = tx.Exists(ctx, "SELECT 1 FROM claims WHERE id = ?", claimID)
		if ok {
			n = 1
		}
	}
	if err != nil {
		return err
	}
	if n == 0 {
		return apperr.NotFound(apperr.CodeClaimNotFound, "claim not found").WithDetail("claim_id", claimID)
	}
	return nil
}
