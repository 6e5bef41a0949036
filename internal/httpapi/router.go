// Package httpapi exposes the gateway over HTTP.
//
// Every write is a POST with a JSON body and answers with either the
// operation's response or the error envelope
//
//	{"error": "CODE", "message": "...", "details": {...}}
//
// Creations answer 201, replays of a creation answer 200. The only read
// route is GET /health.
package httpapi

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/roach88/dbgateway/internal/gateway"
)

// replayable is implemented by responses that embed gateway.WriteResult.
type replayable interface {
	WasReplayed() bool
}

// NewRouter builds the route table over gw.
func NewRouter(gw *gateway.Gateway, log *slog.Logger) http.Handler {
	if log == nil {
		log = slog.Default()
	}
	h := &handlers{gw: gw, log: log}

	r := chi.NewRouter()
	r.Use(withRequestID)
	r.Use(accessLog(log))
	r.Use(middleware.Recoverer)

	r.Get("/health", h.health)

	r.Route("/identity", func(api chi.Router) {
		api.Post("/agents", created(h, gw.RegisterAgent))
	})

	r.Route("/bank", func(api chi.Router) {
		api.Post("/accounts", created(h, gw.CreateAccount))
		api.Post("/credit", ok(h, gw.Credit))
		api.Post("/escrow/lock", created(h, gw.LockEscrow))
		api.Post("/escrow/release", ok(h, gw.ReleaseEscrow))
		api.Post("/escrow/split", ok(h, gw.SplitEscrow))
	})

	r.Route("/board", func(api chi.Router) {
		api.Post("/tasks", created(h, gw.CreateTask))
		api.Post("/bids", created(h, gw.SubmitBid))
		api.Post("/tasks/{task_id}/status", h.patchTask)
		api.Post("/assets", created(h, gw.RecordAsset))
	})

	r.Route("/reputation", func(api chi.Router) {
		api.Post("/feedback", created(h, gw.SubmitFeedback))
	})

	r.Route("/court", func(api chi.Router) {
		api.Post("/claims", created(h, gw.FileClaim))
		api.Post("/rebuttals", created(h, gw.SubmitRebuttal))
		api.Post("/rulings", created(h, gw.RecordRuling))
	})

	return r
}

type handlers struct {
	gw  *gateway.Gateway
	log *slog.Logger
}

// created serves an operation that answers 201, or 200 on replay.
func created[Req any, Resp replayable](h *handlers, op func(context.Context, Req) (Resp, error)) http.HandlerFunc {
	return serve(h, http.StatusCreated, op)
}

// ok serves an operation that answers 200.
func ok[Req any, Resp replayable](h *handlers, op func(context.Context, Req) (Resp, error)) http.HandlerFunc {
	return serve(h, http.StatusOK, op)
}

func serve[Req any, Resp replayable](h *handlers, status int, op func(context.Context, Req) (Resp, error)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req Req
		if err := readJSON(w, r, &req); err != nil {
			writeError(w, r, h.log, err)
			return
		}
		resp, err := op(r.Context(), req)
		if err != nil {
			writeError(w, r, h.log, err)
			return
		}
		code := status
		if resp.WasReplayed() {
			code = http.StatusOK
		}
		writeJSON(w, code, resp)
	}
}

func (h *handlers) patchTask(w http.ResponseWriter, r *http.Request) {
	var req gateway.PatchTaskRequest
	if err := readJSON(w, r, &req); err != nil {
		writeError(w, r, h.log, err)
		return
	}
	resp, err := h.gw.PatchTask(r.Context(), chi.URLParam(r, "task_id"), req)
	if err != nil {
		writeError(w, r, h.log, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (h *handlers) health(w http.ResponseWriter, r *http.Request) {
	report, err := h.gw.Health(r.Context())
	if err != nil {
		writeError(w, r, h.log, err)
		return
	}
	writeJSON(w, http.StatusOK, report)
}
