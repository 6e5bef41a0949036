package gateway

import (
	"context"

	"github.com/roach88/dbgateway/internal/apperr"
	"github.com/roach88/dbgateway/internal/store"
)

// SubmitFeedbackRequest records one party's rating of the other.
//
// RevealReverse is set by the caller when it has already seen the
// counterpart (to -> from) row: the new row is inserted visible and the
// counterpart is flipped visible in the same unit.
type SubmitFeedbackRequest struct {
	FeedbackID    string       `json:"feedback_id"`
	TaskID        string       `json:"task_id"`
	FromAgentID   string       `json:"from_agent_id"`
	ToAgentID     string       `json:"to_agent_id"`
	Category      string       `json:"category"`
	Rating        *int64       `json:"rating"`
	Comment       string       `json:"comment,omitempty"`
	RevealReverse bool         `json:"reveal_reverse,omitempty"`
	Event         *store.Event `json:"event"`
}

// FeedbackResponse identifies a feedback row and its visibility.
type FeedbackResponse struct {
	FeedbackID string `json:"feedback_id"`
	Visible    bool   `json:"visible"`
	WriteResult
}

type feedbackRow struct {
	id, taskID, from, to, category, comment string
	rating                                  int64
}

// SubmitFeedback inserts sealed feedback, or revealed feedback plus the
// reveal of its counterpart. One row per (task, from, to): an identical
// repeat replays, a different one fails with FEEDBACK_EXISTS.
func (g *Gateway) SubmitFeedback(ctx context.Context, req SubmitFeedbackRequest) (FeedbackResponse, error) {
	var f fields
	f.str("feedback_id", req.FeedbackID)
	f.str("task_id", req.TaskID)
	f.str("from_agent_id", req.FromAgentID)
	f.str("to_agent_id", req.ToAgentID)
	f.str("category", req.Category)
	f.num("rating", req.Rating)
	f.event(req.Event)
	if err := f.check(); err != nil {
		return FeedbackResponse{}, err
	}
	requested := feedbackRow{
		id:       req.FeedbackID,
		taskID:   req.TaskID,
		from:     req.FromAgentID,
		to:       req.ToAgentID,
		category: req.Category,
		comment:  req.Comment,
		rating:   *req.Rating,
	}

	resp := FeedbackResponse{FeedbackID: req.FeedbackID, Visible: req.RevealReverse}
	wr, err := g.write(ctx, "submit_feedback", *req.Event, func(ctx context.Context, tx *store.Tx, now string) (bool, error) {
		var stored feedbackRow
		var visible bool
		found, err := lookup(ctx, tx, `
			SELECT id, task_id, from_agent_id, to_agent_id, category, comment, rating, visible
			FROM feedback WHERE task_id = ? AND from_agent_id = ? AND to_agent_id = ?
		`, []any{req.TaskID, req.FromAgentID, req.ToAgentID},
			&stored.id, &stored.taskID, &stored.from, &stored.to,
			&stored.category, &stored.comment, &stored.rating, &visible)
		if err != nil {
			return false, err
		}
		replay, err := resolve(found, stored, requested,
			apperr.CodeFeedbackExists, "feedback already submitted for this task and counterpart")
		if err != nil || replay {
			resp.Visible = visible
			return replay, err
		}

		if req.RevealReverse {
			n, err := tx.ExecAffected(ctx, `
				UPDATE feedback SET visible = 1
				WHERE task_id = ? AND from_agent_id = ? AND to_agent_id = ?
			`, req.TaskID, req.ToAgentID, req.FromAgentID)
			if err != nil {
				return false, err
			}
			if n == 0 {
				return false, apperr.NotFound(apperr.CodeFeedbackNotFound, "counterpart feedback not found")
			}
		}

		_, err = tx.Exec(ctx, `
			INSERT INTO feedback (id, task_id, from_agent_id, to_agent_id, category, rating, comment, submitted_at, visible)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		`, req.FeedbackID, req.TaskID, req.FromAgentID, req.ToAgentID,
			req.Category, requested.rating, req.Comment, now, req.RevealReverse)
		return false, err
	})
	if err != nil {
		return FeedbackResponse{}, err
	}
	resp.WriteResult = wr
	return resp, nil
}
