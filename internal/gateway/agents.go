package gateway

import (
	"context"

	"github.com/roach88/dbgateway/internal/apperr"
	"github.com/roach88/dbgateway/internal/store"
)

// RegisterAgentRequest registers an agent identity.
type RegisterAgentRequest struct {
	AgentID   string       `json:"agent_id"`
	Name      string       `json:"name"`
	PublicKey string       `json:"public_key"`
	Event     *store.Event `json:"event"`
}

// RegisterAgentResponse identifies the registered agent.
type RegisterAgentResponse struct {
	AgentID      string `json:"agent_id"`
	RegisteredAt string `json:"registered_at"`
	WriteResult
}

type agentRow struct {
	id, name, publicKey string
}

// RegisterAgent inserts an agent. A repeat with the same id, name and
// public key replays; the same public key under different values fails
// with PUBLIC_KEY_EXISTS.
func (g *Gateway) RegisterAgent(ctx context.Context, req RegisterAgentRequest) (RegisterAgentResponse, error) {
	var f fields
	f.str("agent_id", req.AgentID)
	f.str("name", req.Name)
	f.str("public_key", req.PublicKey)
	f.event(req.Event)
	if err := f.check(); err != nil {
		return RegisterAgentResponse{}, err
	}

	resp := RegisterAgentResponse{AgentID: req.AgentID}
	wr, err := g.write(ctx, "register_agent", *req.Event, func(ctx context.Context, tx *store.Tx, now string) (bool, error) {
		var stored agentRow
		var registeredAt string
		found, err := lookup(ctx, tx,
			"SELECT id, name, public_key, registered_at FROM agents WHERE public_key = ?",
			[]any{req.PublicKey},
			&stored.id, &stored.name, &stored.publicKey, &registeredAt)
		if err != nil {
			return false, err
		}
		replay, err := resolve(found, stored, agentRow{req.AgentID, req.Name, req.PublicKey},
			apperr.CodePublicKeyExists, "public key already registered")
		if err != nil || replay {
			resp.RegisteredAt = registeredAt
			return replay, err
		}

		if _, err := tx.Exec(ctx,
			"INSERT INTO agents (id, name, public_key, registered_at) VALUES (?, ?, ?, ?)",
			req.AgentID, req.Name, req.PublicKey, now); err != nil {
			return false, err
		}
		resp.RegisteredAt = now
		return false, nil
	})
	if err != nil {
		return RegisterAgentResponse{}, err
	}
	resp.WriteResult = wr
	return resp, nil
}
