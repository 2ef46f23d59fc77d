// Package mockbackend stands in for the hospital collaborators during local
// development: the recognition service, the patient directory and the queue
// token service. Patients come from the same seed format the kiosk cache
// reads; scan responses are replayed from a script in order.
package mockbackend

import (
	"encoding/json"
	"fmt"
	"image"
	_ "image/jpeg"
	_ "image/png"
	"io"
	"log/slog"
	"net/http"
	"os"
	"strings"
	"sync"

	"github.com/go-chi/chi/v5"

	"patientflow/internal/platform/middleware"
	"patientflow/internal/verification/directory"
	id "patientflow/pkg/domain"
	dErrors "patientflow/pkg/domain-errors"
	"patientflow/pkg/platform/httputil"
	"patientflow/pkg/platform/middleware/metadata"
	"patientflow/pkg/platform/middleware/requesttime"
	"patientflow/pkg/requestcontext"
)

const maxUploadBytes = 8 << 20

// emptyScan is replayed when no script is loaded: nothing detected.
var emptyScan = json.RawMessage(`{"faces":[],"ocr":null}`)

// Server serves the collaborator endpoints.
type Server struct {
	patients *directory.Cache
	tokens   *TokenIssuer
	logger   *slog.Logger

	mu    sync.Mutex
	scans []json.RawMessage
	next  int
}

type Option func(*Server)

func WithLogger(logger *slog.Logger) Option {
	return func(s *Server) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithScanScript replaces the replayed scan responses.
func WithScanScript(scans []json.RawMessage) Option {
	return func(s *Server) { s.scans = scans }
}

func New(patients *directory.Cache, tokens *TokenIssuer, opts ...Option) (*Server, error) {
	if patients == nil {
		return nil, fmt.Errorf("patient cache is required")
	}
	if tokens == nil {
		return nil, fmt.Errorf("token issuer is required")
	}
	s := &Server{
		patients: patients,
		tokens:   tokens,
		logger:   slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// LoadScanScript reads a JSON array of recognition responses.
func LoadScanScript(path string) ([]json.RawMessage, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open scan script: %w", err)
	}
	defer f.Close()
	var scans []json.RawMessage
	if err := json.NewDecoder(f).Decode(&scans); err != nil {
		return nil, fmt.Errorf("decode scan script: %w", err)
	}
	return scans, nil
}

// Router returns the collaborator API.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recovery(s.logger))
	r.Use(middleware.RequestID)
	r.Use(metadata.ClientMetadata)
	r.Use(requesttime.Middleware)
	r.Use(middleware.Logger(s.logger))

	r.Post("/recognition/scan", s.handleScan)
	r.Get("/patients/by-national-id/{nationalID}", s.handleByNationalID)
	r.Get("/patients/{patientID}", s.handleGetPatient)
	r.Post("/queue/token", s.handleToken)
	return r
}

func (s *Server) handleScan(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxUploadBytes)
	file, _, err := r.FormFile("image")
	if err != nil {
		httputil.WriteError(w, dErrors.Wrap(err, dErrors.CodeBadRequest, "image part is required"))
		return
	}
	defer file.Close()

	cfg, format, err := image.DecodeConfig(file)
	if err != nil {
		httputil.WriteError(w, dErrors.Wrap(err, dErrors.CodeBadRequest, "image is not decodable"))
		return
	}

	scan := s.nextScan()
	s.logger.DebugContext(r.Context(), "scan replayed",
		"format", format,
		"width", cfg.Width,
		"height", cfg.Height,
	)
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(scan)
}

func (s *Server) nextScan() json.RawMessage {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.scans) == 0 {
		return emptyScan
	}
	scan := s.scans[s.next%len(s.scans)]
	s.next++
	return scan
}

func (s *Server) handleByNationalID(w http.ResponseWriter, r *http.Request) {
	nid, err := id.ParseNationalID(chi.URLParam(r, "nationalID"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	p, ok := s.patients.FindByNationalID(nid)
	if !ok {
		httputil.WriteError(w, dErrors.New(dErrors.CodeNotFound, "patient not found"))
		return
	}
	httputil.WriteJSON(w, http.StatusOK, directory.RecordFromIdentity(p))
}

func (s *Server) handleGetPatient(w http.ResponseWriter, r *http.Request) {
	pid := id.PatientID(strings.TrimSpace(chi.URLParam(r, "patientID")))
	p, ok := s.patients.Get(pid)
	if !ok {
		httputil.WriteError(w, dErrors.New(dErrors.CodeNotFound, "patient not found"))
		return
	}
	httputil.WriteJSON(w, http.StatusOK, directory.RecordFromIdentity(p))
}

type tokenRequest struct {
	PatientID string `json:"patientId"`
}

type tokenResponse struct {
	Token string `json:"token"`
}

func (s *Server) handleToken(w http.ResponseWriter, r *http.Request) {
	var req tokenRequest
	if err := httputil.DecodeJSON(r, &req); err != nil {
		httputil.WriteError(w, err)
		return
	}
	pid := id.PatientID(strings.TrimSpace(req.PatientID))
	if _, ok := s.patients.Get(pid); !ok {
		httputil.WriteError(w, dErrors.New(dErrors.CodeNotFound, "patient not found"))
		return
	}
	token, err := s.tokens.Issue(pid, requestcontext.Now(r.Context()))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	s.logger.InfoContext(r.Context(), "queue token issued", "patient_id", pid.String())
	httputil.WriteJSON(w, http.StatusOK, tokenResponse{Token: token})
}
