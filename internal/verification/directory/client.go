// Package directory talks to the hospital patient directory and queue
// service, and keeps a local cache of patients for the OCR match path.
package directory

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"patientflow/internal/verification/models"
	id "patientflow/pkg/domain"
	dErrors "patientflow/pkg/domain-errors"
	"patientflow/pkg/platform/sentinel"
)

const DefaultTimeout = 10 * time.Second

var tracer = otel.Tracer("patientflow/verification/directory")

// Client is the HTTP client for the patient directory and queue endpoints.
type Client struct {
	baseURL    string
	httpClient *http.Client
	logger     *slog.Logger
	now        func() time.Time
}

type Option func(*Client)

func WithHTTPClient(c *http.Client) Option {
	return func(cl *Client) {
		if c != nil {
			cl.httpClient = c
		}
	}
}

func WithLogger(logger *slog.Logger) Option {
	return func(cl *Client) {
		if logger != nil {
			cl.logger = logger
		}
	}
}

func WithClock(now func() time.Time) Option {
	return func(cl *Client) {
		if now != nil {
			cl.now = now
		}
	}
}

func NewClient(baseURL string, opts ...Option) *Client {
	c := &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: DefaultTimeout},
		logger:     slog.New(slog.NewTextHandler(io.Discard, nil)),
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// FindByNationalID looks a patient up by national ID. An unknown ID returns
// a CodeNotFound error.
func (c *Client) FindByNationalID(ctx context.Context, nid id.NationalID) (*models.PatientIdentity, error) {
	ctx, span := tracer.Start(ctx, "directory.FindByNationalID")
	defer span.End()

	var rec PatientRecord
	err := c.do(ctx, http.MethodGet, "/patients/by-national-id/"+url.PathEscape(nid.String()), nil, &rec)
	if err != nil {
		return nil, recordFailure(span, err, "patient lookup failed")
	}
	identity, err := c.identity(rec)
	if err != nil {
		return nil, recordFailure(span, err, "patient lookup failed")
	}
	span.SetAttributes(attribute.String("patient.id", identity.ID.String()))
	return identity, nil
}

// Get hydrates a patient by directory ID.
func (c *Client) Get(ctx context.Context, pid id.PatientID) (*models.PatientIdentity, error) {
	ctx, span := tracer.Start(ctx, "directory.Get")
	defer span.End()
	span.SetAttributes(attribute.String("patient.id", pid.String()))

	var rec PatientRecord
	if err := c.do(ctx, http.MethodGet, "/patients/"+url.PathEscape(pid.String()), nil, &rec); err != nil {
		return nil, recordFailure(span, err, "patient fetch failed")
	}
	identity, err := c.identity(rec)
	if err != nil {
		return nil, recordFailure(span, err, "patient fetch failed")
	}
	return identity, nil
}

// identity converts a directory record. A record without a patient ID is
// not a patient, so it is reported as a bad collaborator response.
func (c *Client) identity(rec PatientRecord) (*models.PatientIdentity, error) {
	if strings.TrimSpace(rec.ID) == "" {
		return nil, dErrors.New(dErrors.CodeNetwork, "directory returned a record without a patient id")
	}
	identity := rec.ToIdentity(c.now())
	return &identity, nil
}

type tokenRequest struct {
	PatientID string `json:"patientId"`
}

type tokenResponse struct {
	Token string `json:"token"`
}

// RequestToken asks the queue service for a session token for pid.
func (c *Client) RequestToken(ctx context.Context, pid id.PatientID) (models.SessionToken, error) {
	ctx, span := tracer.Start(ctx, "directory.RequestToken")
	defer span.End()
	span.SetAttributes(attribute.String("patient.id", pid.String()))

	var resp tokenResponse
	if err := c.do(ctx, http.MethodPost, "/queue/token", tokenRequest{PatientID: pid.String()}, &resp); err != nil {
		return "", recordFailure(span, err, "token request failed")
	}
	if strings.TrimSpace(resp.Token) == "" {
		err := dErrors.New(dErrors.CodeNetwork, "queue service returned an empty token")
		return "", recordFailure(span, err, "token request failed")
	}

	if exp, ok := TokenExpiry(resp.Token); ok {
		c.logger.DebugContext(ctx, "queue token issued", "patient_id", pid.String(), "expires_at", exp)
	}
	return models.SessionToken(resp.Token), nil
}

// TokenExpiry reads the exp claim of a JWT-shaped token without verifying
// it. Tokens stay opaque to the flow; this is for logging only.
func TokenExpiry(token string) (time.Time, bool) {
	claims := jwt.RegisteredClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(token, &claims); err != nil {
		return time.Time{}, false
	}
	if claims.ExpiresAt == nil {
		return time.Time{}, false
	}
	return claims.ExpiresAt.Time, true
}

func recordFailure(span trace.Span, err error, msg string) error {
	span.RecordError(err)
	span.SetStatus(codes.Error, msg)
	return err
}

func (c *Client) do(ctx context.Context, method, path string, in, out any) error {
	var body io.Reader
	if in != nil {
		payload, err := json.Marshal(in)
		if err != nil {
			return dErrors.Wrap(err, dErrors.CodeInternal, "failed to encode request")
		}
		body = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return dErrors.Wrap(err, dErrors.CodeNetwork, "failed to build request")
	}
	req.Header.Set("Accept", "application/json")
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return dErrors.Wrap(err, dErrors.CodeNetwork, "directory unreachable")
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return dErrors.Wrap(sentinel.ErrNotFound, dErrors.CodeNotFound, "patient not found")
	case resp.StatusCode < 200 || resp.StatusCode >= 300:
		return dErrors.Wrap(fmt.Errorf("%s %s returned %s", method, path, resp.Status),
			dErrors.CodeNetwork, "directory error")
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		if errors.Is(err, io.EOF) {
			return dErrors.Wrap(err, dErrors.CodeNetwork, "empty directory response")
		}
		return dErrors.Wrap(err, dErrors.CodeNetwork, "invalid directory response")
	}
	return nil
}
