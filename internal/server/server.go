// Package server exposes the session controller over HTTP. Runs stream
// their updates as Server-Sent Events.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"iter"
	"net"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/dusk-indust/deepask/internal/completion"
	"github.com/dusk-indust/deepask/internal/orchestrator"
	"github.com/dusk-indust/deepask/internal/session"
)

// Defaults are the values used when a request omits a parameter.
type Defaults struct {
	Level    orchestrator.Level
	Sampling completion.Sampling
}

// Server serves conversations over HTTP.
type Server struct {
	controller *session.Controller
	store      *Store
	defaults   Defaults
	log        *zap.Logger
	http       *http.Server
}

// New creates a Server.
func New(controller *session.Controller, store *Store, defaults Defaults, log *zap.Logger) *Server {
	if log == nil {
		log = zap.NewNop()
	}
	return &Server{
		controller: controller,
		store:      store,
		defaults:   defaults,
		log:        log,
	}
}

// Handler returns the routed HTTP handler.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /healthz", s.handleHealth)
	mux.HandleFunc("POST /v1/conversations", s.handleCreate)
	mux.HandleFunc("GET /v1/conversations/{id}", s.handleGet)
	mux.HandleFunc("DELETE /v1/conversations/{id}", s.handleClear)
	mux.HandleFunc("POST /v1/conversations/{id}/messages", s.handleMessage)
	mux.HandleFunc("POST /v1/conversations/{id}/regenerate", s.handleRegenerate)

	return mux
}

// Start listens on addr and serves in a background goroutine. It returns
// the bound address.
func (s *Server) Start(ctx context.Context, addr string) (string, error) {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return "", fmt.Errorf("server: listen %s: %w", addr, err)
	}
	s.http = &http.Server{
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
		BaseContext:       func(net.Listener) context.Context { return ctx },
	}
	go func() {
		if err := s.http.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.log.Error("http server stopped", zap.Error(err))
		}
	}()
	s.log.Info("http server listening", zap.String("addr", ln.Addr().String()))
	return ln.Addr().String(), nil
}

// Stop gracefully shuts down the HTTP server.
func (s *Server) Stop(ctx context.Context) error {
	if s.http == nil {
		return nil
	}
	return s.http.Shutdown(ctx)
}

// runParams are the optional per-run parameters of a request body.
type runParams struct {
	Level       *string  `json:"level,omitempty"`
	Temperature *float64 `json:"temperature,omitempty"`
	TopP        *float64 `json:"topP,omitempty"`
	TopK        *int     `json:"topK,omitempty"`
}

type messageRequest struct {
	Message string `json:"message"`
	runParams
}

// resolve fills omitted values from the defaults. An unrecognized level is
// passed on as LevelUnknown so the controller reports it in the stream.
func (p runParams) resolve(d Defaults) (orchestrator.Level, completion.Sampling, error) {
	level := d.Level
	if p.Level != nil {
		level, _ = orchestrator.ParseLevel(*p.Level)
	}
	sampling := d.Sampling
	if p.Temperature != nil {
		sampling.Temperature = *p.Temperature
	}
	if p.TopP != nil {
		sampling.TopP = *p.TopP
	}
	if p.TopK != nil {
		sampling.TopK = *p.TopK
	}

	if err := sampling.Validate(); err != nil {
		return level, sampling, err
	}
	return level, sampling, nil
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":        "ok",
		"conversations": s.store.Count(),
	})
}

func (s *Server) handleCreate(w http.ResponseWriter, r *http.Request) {
	c := s.store.Create()
	s.log.Info("conversation created", zap.String("id", c.ID))
	writeJSON(w, http.StatusCreated, c)
}

func (s *Server) handleGet(w http.ResponseWriter, r *http.Request) {
	c, err := s.store.Get(r.PathValue("id"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, c)
}

func (s *Server) handleClear(w http.ResponseWriter, r *http.Request) {
	if err := s.store.Clear(r.PathValue("id")); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleMessage(w http.ResponseWriter, r *http.Request) {
	var req messageRequest
	if err := decodeBody(r, &req); err != nil {
		writeJSONError(w, http.StatusBadRequest, err.Error())
		return
	}
	if strings.TrimSpace(req.Message) == "" {
		writeJSONError(w, http.StatusBadRequest, "message is required")
		return
	}
	level, sampling, err := req.resolve(s.defaults)
	if err != nil {
		writeJSONError(w, http.StatusBadRequest, err.Error())
		return
	}

	s.stream(w, r, func(history completion.History) iter.Seq[session.Update] {
		return s.controller.Submit(r.Context(), req.Message, history, level, sampling)
	})
}

func (s *Server) handleRegenerate(w http.ResponseWriter, r *http.Request) {
	var req runParams
	if err := decodeBody(r, &req); err != nil {
		writeJSONError(w, http.StatusBadRequest, err.Error())
		return
	}
	level, sampling, err := req.resolve(s.defaults)
	if err != nil {
		writeJSONError(w, http.StatusBadRequest, err.Error())
		return
	}

	s.stream(w, r, func(history completion.History) iter.Seq[session.Update] {
		return s.controller.Regenerate(r.Context(), history, level, sampling)
	})
}

// stream runs one controller sequence against the conversation named in the
// path and writes every update as an SSE frame. The history of the last
// update becomes the conversation's history.
func (s *Server) stream(w http.ResponseWriter, r *http.Request, run func(completion.History) iter.Seq[session.Update]) {
	id := r.PathValue("id")
	history, err := s.store.Acquire(id)
	if err != nil {
		writeError(w, err)
		return
	}

	var final completion.History
	defer func() { s.store.Release(id, final) }()

	log := s.log.With(zap.String("conversation", id))
	sw := NewSSEWriter(w)
	sw.Init()
	for u := range run(history) {
		final = u.History
		if err := sw.WriteEvent(u); err != nil {
			log.Warn("client went away", zap.Error(err))
			return
		}
	}
	if err := sw.WriteDone(); err != nil {
		log.Warn("client went away", zap.Error(err))
	}
}

func decodeBody(r *http.Request, v any) error {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil && !errors.Is(err, io.EOF) {
		return fmt.Errorf("invalid request body: %w", err)
	}
	return nil
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeJSONError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

func writeError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, ErrNotFound):
		writeJSONError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, ErrBusy):
		writeJSONError(w, http.StatusConflict, err.Error())
	default:
		writeJSONError(w, http.StatusInternalServerError, err.Error())
	}
}
