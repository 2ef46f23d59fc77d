// Package handler is the HTTP surface the kiosk front-end drives. It creates
// one verification session per terminal and relays patient actions to it.
package handler

//go:generate mockgen -source=handler.go -destination=mocks/mocks.go -package=mocks

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"sync"

	"github.com/go-chi/chi/v5"

	"patientflow/internal/platform/middleware"
	"patientflow/internal/platform/ratelimit"
	"patientflow/internal/verification/flow"
	"patientflow/internal/verification/models"
	id "patientflow/pkg/domain"
	dErrors "patientflow/pkg/domain-errors"
	"patientflow/pkg/platform/httputil"
	"patientflow/pkg/requestcontext"
)

// Flow is one verification session. *flow.Machine satisfies it.
type Flow interface {
	SessionID() id.SessionID
	Start(ctx context.Context) error
	Choose(ctx context.Context, step models.Step) error
	Back(ctx context.Context) error
	Retry(ctx context.Context) error
	SubmitNationalID(ctx context.Context, raw string) error
	Close(ctx context.Context)
	Snapshot() flow.Snapshot
}

// Factory builds a session for a kiosk terminal.
type Factory func(ctx context.Context, kioskID string) (Flow, error)

type session struct {
	kioskID string
	flow    Flow
}

// Handler routes session requests. Each terminal has at most one active
// session; starting another closes the previous one first.
type Handler struct {
	factory Factory
	logger  *slog.Logger
	idLimit *ratelimit.SlidingWindow

	mu       sync.Mutex
	sessions map[id.SessionID]*session
	active   map[string]id.SessionID
	starts   map[string]*sync.Mutex
}

type Option func(*Handler)

// WithIDInputLimiter throttles national ID submissions per kiosk.
func WithIDInputLimiter(l *ratelimit.SlidingWindow) Option {
	return func(h *Handler) { h.idLimit = l }
}

func New(factory Factory, logger *slog.Logger, opts ...Option) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	h := &Handler{
		factory:  factory,
		logger:   logger,
		sessions: make(map[id.SessionID]*session),
		active:   make(map[string]id.SessionID),
		starts:   make(map[string]*sync.Mutex),
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// Register mounts the session routes on r.
func (h *Handler) Register(r chi.Router) {
	r.Route("/verification/sessions", func(r chi.Router) {
		r.Post("/", h.handleStart)
		r.Route("/{sessionID}", func(r chi.Router) {
			r.Get("/", h.handleGet)
			r.Delete("/", h.handleClose)
			r.With(ratelimit.Middleware(h.idLimit, kioskKey, h.logger)).Post("/id-input", h.handleIDInput)
			r.Post("/choose", h.handleChoose)
			r.Post("/back", h.handleBack)
			r.Post("/retry", h.handleRetry)
		})
	})
}

func kioskKey(r *http.Request) string {
	return requestcontext.KioskID(r.Context())
}

type idInputRequest struct {
	NationalID string `json:"national_id"`
}

type chooseRequest struct {
	Step string `json:"step"`
}

func (h *Handler) handleStart(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	kioskID := requestcontext.KioskID(ctx)

	// one start per terminal at a time, or two sessions could both end up
	// owning the terminal
	lock := h.kioskLock(kioskID)
	lock.Lock()
	defer lock.Unlock()

	if prev := h.detachActive(kioskID); prev != nil {
		h.logger.InfoContext(ctx, "closing previous session for kiosk",
			"kiosk_id", kioskID,
			"session_id", prev.SessionID().String(),
		)
		prev.Close(ctx)
	}

	f, err := h.factory(ctx, kioskID)
	if err != nil {
		h.logger.ErrorContext(ctx, "failed to build verification session",
			"request_id", middleware.GetRequestID(ctx),
			"kiosk_id", kioskID,
			"error", err,
		)
		httputil.WriteError(w, dErrors.Wrap(err, dErrors.CodeInternal, "failed to create session"))
		return
	}

	h.mu.Lock()
	h.sessions[f.SessionID()] = &session{kioskID: kioskID, flow: f}
	h.active[kioskID] = f.SessionID()
	h.mu.Unlock()

	if err := f.Start(ctx); err != nil {
		h.remove(f.SessionID())
		f.Close(ctx)
		h.logger.ErrorContext(ctx, "failed to start verification session",
			"request_id", middleware.GetRequestID(ctx),
			"kiosk_id", kioskID,
			"error", err,
		)
		httputil.WriteError(w, err)
		return
	}

	httputil.WriteJSON(w, http.StatusCreated, f.Snapshot())
}

func (h *Handler) handleGet(w http.ResponseWriter, r *http.Request) {
	f, ok := h.lookup(w, r)
	if !ok {
		return
	}
	httputil.WriteJSON(w, http.StatusOK, f.Snapshot())
}

func (h *Handler) handleClose(w http.ResponseWriter, r *http.Request) {
	f, ok := h.lookup(w, r)
	if !ok {
		return
	}
	h.remove(f.SessionID())
	f.Close(r.Context())
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) handleIDInput(w http.ResponseWriter, r *http.Request) {
	f, ok := h.lookup(w, r)
	if !ok {
		return
	}
	var req idInputRequest
	if err := httputil.DecodeJSON(r, &req); err != nil {
		httputil.WriteError(w, err)
		return
	}
	h.respond(w, r, f, f.SubmitNationalID(r.Context(), req.NationalID))
}

func (h *Handler) handleChoose(w http.ResponseWriter, r *http.Request) {
	f, ok := h.lookup(w, r)
	if !ok {
		return
	}
	var req chooseRequest
	if err := httputil.DecodeJSON(r, &req); err != nil {
		httputil.WriteError(w, err)
		return
	}
	step, err := models.ParseStep(req.Step)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	h.respond(w, r, f, f.Choose(r.Context(), step))
}

func (h *Handler) handleBack(w http.ResponseWriter, r *http.Request) {
	f, ok := h.lookup(w, r)
	if !ok {
		return
	}
	h.respond(w, r, f, f.Back(r.Context()))
}

func (h *Handler) handleRetry(w http.ResponseWriter, r *http.Request) {
	f, ok := h.lookup(w, r)
	if !ok {
		return
	}
	h.respond(w, r, f, f.Retry(r.Context()))
}

// respond writes the snapshot after an action, or the action's error.
func (h *Handler) respond(w http.ResponseWriter, r *http.Request, f Flow, err error) {
	if err != nil {
		ctx := r.Context()
		code := dErrors.CodeOf(err)
		if code == dErrors.CodeInternal && !errors.Is(err, context.Canceled) {
			h.logger.ErrorContext(ctx, "session action failed",
				"request_id", middleware.GetRequestID(ctx),
				"session_id", f.SessionID().String(),
				"error", err,
			)
		}
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, f.Snapshot())
}

func (h *Handler) lookup(w http.ResponseWriter, r *http.Request) (Flow, bool) {
	sid, err := id.ParseSessionID(chi.URLParam(r, "sessionID"))
	if err != nil {
		httputil.WriteError(w, err)
		return nil, false
	}
	h.mu.Lock()
	s, ok := h.sessions[sid]
	h.mu.Unlock()
	if !ok {
		httputil.WriteError(w, dErrors.New(dErrors.CodeNotFound, "session not found"))
		return nil, false
	}
	if s.kioskID != requestcontext.KioskID(r.Context()) {
		httputil.WriteError(w, dErrors.New(dErrors.CodeNotFound, "session not found"))
		return nil, false
	}
	return s.flow, true
}

func (h *Handler) kioskLock(kioskID string) *sync.Mutex {
	h.mu.Lock()
	defer h.mu.Unlock()
	l, ok := h.starts[kioskID]
	if !ok {
		l = &sync.Mutex{}
		h.starts[kioskID] = l
	}
	return l
}

func (h *Handler) detachActive(kioskID string) Flow {
	h.mu.Lock()
	defer h.mu.Unlock()
	sid, ok := h.active[kioskID]
	if !ok {
		return nil
	}
	delete(h.active, kioskID)
	s := h.sessions[sid]
	delete(h.sessions, sid)
	if s == nil {
		return nil
	}
	return s.flow
}

func (h *Handler) remove(sid id.SessionID) {
	h.mu.Lock()
	defer h.mu.Unlock()
	s, ok := h.sessions[sid]
	if !ok {
		return
	}
	delete(h.sessions, sid)
	if h.active[s.kioskID] == sid {
		delete(h.active, s.kioskID)
	}
}

// Shutdown closes every open session, releasing the camera.
func (h *Handler) Shutdown(ctx context.Context) {
	h.mu.Lock()
	open := make([]Flow, 0, len(h.sessions))
	for sid, s := range h.sessions {
		open = append(open, s.flow)
		delete(h.sessions, sid)
	}
	clear(h.active)
	h.mu.Unlock()

	for _, f := range open {
		f.Close(ctx)
	}
}
