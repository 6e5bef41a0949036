package gateway

import (
	"context"

	"github.com/roach88/dbgateway/internal/apperr"
	"github.com/roach88/dbgateway/internal/store"
)

// CreateTaskRequest posts a task.
type CreateTaskRequest struct {
	TaskID                   string       `json:"task_id"`
	PosterID                 string       `json:"poster_id"`
	Title                    string       `json:"title"`
	Spec                     string       `json:"spec"`
	Reward                   *int64       `json:"reward"`
	EscrowID                 string       `json:"escrow_id,omitempty"`
	BiddingDeadlineSeconds   *int64       `json:"bidding_deadline_seconds,omitempty"`
	ExecutionDeadlineSeconds *int64       `json:"execution_deadline_seconds,omitempty"`
	ReviewDeadlineSeconds    *int64       `json:"review_deadline_seconds,omitempty"`
	Event                    *store.Event `json:"event"`
}

// TaskResponse identifies a task after a write.
type TaskResponse struct {
	TaskID string `json:"task_id"`
	Status string `json:"status,omitempty"`
	WriteResult
}

// CreateTask inserts a task in status "open".
func (g *Gateway) CreateTask(ctx context.Context, req CreateTaskRequest) (TaskResponse, error) {
	var f fields
	f.str("task_id", req.TaskID)
	f.str("poster_id", req.PosterID)
	f.str("title", req.Title)
	f.str("spec", req.Spec)
	f.num("reward", req.Reward)
	f.event(req.Event)
	if err := f.check(); err != nil {
		return TaskResponse{}, err
	}

	wr, err := g.write(ctx, "create_task", *req.Event, func(ctx context.Context, tx *store.Tx, now string) (bool, error) {
		_, err := tx.Exec(ctx, `
			INSERT INTO tasks (
				id, poster_id, title, spec, reward, status, escrow_id,
				bidding_deadline_seconds, execution_deadline_seconds, review_deadline_seconds,
				created_at
			) VALUES (?, ?, ?, ?, ?, 'open', ?, ?, ?, ?, ?)
		`,
			req.TaskID, req.PosterID, req.Title, req.Spec, *req.Reward, nullString(req.EscrowID),
			req.BiddingDeadlineSeconds, req.ExecutionDeadlineSeconds, req.ReviewDeadlineSeconds,
			now)
		return false, err
	})
	if err != nil {
		return TaskResponse{}, err
	}
	return TaskResponse{TaskID: req.TaskID, Status: "open", WriteResult: wr}, nil
}

// SubmitBidRequest places a bid on a task.
type SubmitBidRequest struct {
	BidID    string       `json:"bid_id"`
	TaskID   string       `json:"task_id"`
	BidderID string       `json:"bidder_id"`
	Proposal string       `json:"proposal"`
	Event    *store.Event `json:"event"`
}

// BidResponse identifies a bid.
type BidResponse struct {
	BidID string `json:"bid_id"`
	WriteResult
}

type bidRow struct {
	id, taskID, bidderID, proposal string
}

// SubmitBid inserts a bid. One bid per (task, bidder): an identical repeat
// replays, a different one fails with BID_EXISTS.
func (g *Gateway) SubmitBid(ctx context.Context, req SubmitBidRequest) (BidResponse, error) {
	var f fields
	f.str("bid_id", req.BidID)
	f.str("task_id", req.TaskID)
	f.str("bidder_id", req.BidderID)
	f.str("proposal", req.Proposal)
	f.event(req.Event)
	if err := f.check(); err != nil {
		return BidResponse{}, err
	}

	wr, err := g.write(ctx, "submit_bid", *req.Event, func(ctx context.Context, tx *store.Tx, now string) (bool, error) {
		var stored bidRow
		found, err := lookup(ctx, tx,
			"SELECT id, task_id, bidder_id, proposal FROM bids WHERE task_id = ? AND bidder_id = ?",
			[]any{req.TaskID, req.BidderID},
			&stored.id, &stored.taskID, &stored.bidderID, &stored.proposal)
		if err != nil {
			return false, err
		}
		replay, err := resolve(found, stored, bidRow{req.BidID, req.TaskID, req.BidderID, req.Proposal},
			apperr.CodeBidExists, "bidder already bid on this task")
		if err != nil || replay {
			return replay, err
		}

		_, err = tx.Exec(ctx,
			"INSERT INTO bids (id, task_id, bidder_id, proposal, submitted_at) VALUES (?, ?, ?, ?, ?)",
			req.BidID, req.TaskID, req.BidderID, req.Proposal, now)
		return false, err
	})
	if err != nil {
		return BidResponse{}, err
	}
	return BidResponse{BidID: req.BidID, WriteResult: wr}, nil
}

// PatchTaskRequest updates task lifecycle columns.
// Updates maps column names to JSON primitive values.
type PatchTaskRequest struct {
	Updates map[string]any `json:"updates"`
	Event   *store.Event   `json:"event"`
}

// PatchTaskResponse lists the columns written.
type PatchTaskResponse struct {
	TaskID  string   `json:"task_id"`
	Updated []string `json:"updated"`
	WriteResult
}

// PatchTask applies a partial update restricted to the tasks allow-list.
// The gateway does not check transition legality. The whole patch is
// rejected if any column is off the list.
func (g *Gateway) PatchTask(ctx context.Context, taskID string, req PatchTaskRequest) (PatchTaskResponse, error) {
	var f fields
	f.str("task_id", taskID)
	f.event(req.Event)
	if err := f.check(); err != nil {
		return PatchTaskResponse{}, err
	}

	stmt, err := store.CompilePatch("tasks", "id", taskID, req.Updates)
	if err != nil {
		return PatchTaskResponse{}, err
	}
	for i, col := range stmt.Columns {
		v, err := primitive("updates."+col, stmt.Args[i])
		if err != nil {
			return PatchTaskResponse{}, err
		}
		stmt.Args[i] = v
	}

	wr, err := g.write(ctx, "patch_task", *req.Event, func(ctx context.Context, tx *store.Tx, _ string) (bool, error) {
		n, err := tx.ApplyPatch(ctx, stmt)
		if err != nil {
			return false, err
		}
		if n == 0 {
			return false, apperr.NotFound(apperr.CodeTaskNotFound, "task not found").WithDetail("task_id", taskID)
		}
		return false, nil
	})
	if err != nil {
		return PatchTaskResponse{}, err
	}
	return PatchTaskResponse{TaskID: taskID, Updated: stmt.Columns, WriteResult: wr}, nil
}

// RecordAssetRequest records metadata of an uploaded file.
// The content itself lives outside the database.
type RecordAssetRequest struct {
	AssetID     string       `json:"asset_id"`
	TaskID      string       `json:"task_id"`
	UploaderID  string       `json:"uploader_id"`
	Filename    string       `json:"filename"`
	ContentSize *int64       `json:"content_size"`
	ContentHash string       `json:"content_hash,omitempty"`
	StoragePath string       `json:"storage_path"`
	Event       *store.Event `json:"event"`
}

// AssetResponse identifies an asset.
type AssetResponse struct {
	AssetID string `json:"asset_id"`
	WriteResult
}

// RecordAsset inserts an asset row.
func (g *Gateway) RecordAsset(ctx context.Context, req RecordAssetRequest) (AssetResponse, error) {
	var f fields
	f.str("asset_id", req.AssetID)
	f.str("task_id", req.TaskID)
	f.str("uploader_id", req.UploaderID)
	f.str("filename", req.Filename)
	f.num("content_size", req.ContentSize)
	f.str("storage_path", req.StoragePath)
	f.event(req.Event)
	if err := f.check(); err != nil {
		return AssetResponse{}, err
	}

	wr, err := g.write(ctx, "record_asset", *req.Event, func(ctx context.Context, tx *store.Tx, now string) (bool, error) {
		_, err := tx.Exec(ctx, `
			INSERT INTO assets (id, task_id, uploader_id, filename, content_size, content_hash, storage_path, uploaded_at)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		`, req.AssetID, req.TaskID, req.UploaderID, req.Filename, *req.ContentSize, req.ContentHash, req.StoragePath, now)
		return false, err
	})
	if err != nil {
		return AssetResponse{}, err
	}
	return AssetResponse{AssetID: req.AssetID, WriteResult: wr}, nil
}

func nullString(v string) any {
	if v == "" {
		return nil
	}
	return v
}
