// Package recognition calls the remote face/OCR scan service and normalizes
// its loosely shaped payloads into models.ScanResult.
package recognition

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"patientflow/internal/verification/capture"
	vmetrics "patientflow/internal/verification/metrics"
	"patientflow/internal/verification/models"
	dErrors "patientflow/pkg/domain-errors"
)

const scanPath = "/recognition/scan"

var tracer = otel.Tracer("patientflow/verification/recognition")

// Client submits frames to the recognition service. It performs exactly one
// request per Submit; retrying is the scheduler's job.
type Client struct {
	baseURL    string
	httpClient *http.Client
	logger     *slog.Logger
	metrics    *vmetrics.Metrics
}

type Option func(*Client)

// WithHTTPClient overrides the transport. The default client has no timeout;
// cancellation comes from the caller's context.
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

func WithMetrics(m *vmetrics.Metrics) Option {
	return func(cl *Client) { cl.metrics = m }
}

func New(baseURL string, opts ...Option) *Client {
	c := &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{},
		logger:     slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Submit uploads blob and returns the normalized result. Transport failures,
// non-2xx responses and undecodable bodies are all network errors.
func (c *Client) Submit(ctx context.Context, blob *capture.ImageBlob) (*models.ScanResult, error) {
	if blob == nil || len(blob.Data) == 0 {
		return nil, dErrors.New(dErrors.CodeBadRequest, "empty frame")
	}

	ctx, span := tracer.Start(ctx, "recognition.Submit")
	defer span.End()
	span.SetAttributes(
		attribute.Int("frame.width", blob.Width),
		attribute.Int("frame.height", blob.Height),
		attribute.Int("frame.bytes", len(blob.Data)),
	)

	start := time.Now()
	result, err := c.submit(ctx, blob)
	c.metrics.ObserveRecognitionLatency(time.Since(start))
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "scan failed")
		return nil, err
	}

	span.SetAttributes(
		attribute.Int("faces.found", result.Counters.FacesFound),
		attribute.Int("faces.recognized", result.Counters.FacesRecognized),
		attribute.Int("id_cards.found", result.Counters.IDCardsFound),
	)
	c.logger.DebugContext(ctx, "scan result",
		"faces_found", result.Counters.FacesFound,
		"faces_recognized", result.Counters.FacesRecognized,
		"id_cards_found", result.Counters.IDCardsFound,
	)
	return result, nil
}

func (c *Client) submit(ctx context.Context, blob *capture.ImageBlob) (*models.ScanResult, error) {
	body, contentType, err := multipartBody(blob)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to build upload")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+scanPath, body)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeNetwork, "failed to build scan request")
	}
	req.Header.Set("Content-Type", contentType)
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeNetwork, "recognition service unreachable")
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, dErrors.Wrap(
			fmt.Errorf("status %d: %s", resp.StatusCode, strings.TrimSpace(string(snippet))),
			dErrors.CodeNetwork, "recognition service error",
		)
	}

	var payload wireResult
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeNetwork, "invalid recognition response")
	}
	return payload.normalize(), nil
}

func multipartBody(blob *capture.ImageBlob) (io.Reader, string, error) {
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)

	contentType := blob.ContentType
	if contentType == "" {
		contentType = capture.ContentType
	}
	h := make(textproto.MIMEHeader)
	h.Set("Content-Disposition", `form-data; name="image"; filename="frame.jpg"`)
	h.Set("Content-Type", contentType)
	part, err := w.CreatePart(h)
	if err != nil {
		return nil, "", err
	}
	if _, err := part.Write(blob.Data); err != nil {
		return nil, "", err
	}
	if err := w.Close(); err != nil {
		return nil, "", err
	}
	return &buf, w.FormDataContentType(), nil
}
