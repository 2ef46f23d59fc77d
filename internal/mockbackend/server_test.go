package mockbackend

import (
	"bytes"
	"context"
	"encoding/json"
	"image"
	"image/jpeg"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"patientflow/internal/verification/capture"
	"patientflow/internal/verification/directory"
	"patientflow/internal/verification/recognition"
	id "patientflow/pkg/domain"
	dErrors "patientflow/pkg/domain-errors"
	"patientflow/pkg/testutil"
)

// =============================================================================
// Mock Collaborator Backend Test Suite
// =============================================================================
// Justification: the kiosk is developed against this server, so the real
// directory and recognition clients are run against it end to end.

const seed = `[
  {"id": "P000001", "first_name": "Somchai", "last_name": "Jaidee",
   "national_id": "1234567890123", "birth_date": "1980-11-20"}
]`

type MockBackendSuite struct {
	suite.Suite
	server *httptest.Server
	tokens *TokenIssuer
	now    time.Time
}

func TestMockBackendSuite(t *testing.T) {
	suite.Run(t, new(MockBackendSuite))
}

func (s *MockBackendSuite) SetupTest() {
	s.now = time.Now()
	cache := directory.NewCache()
	n, err := cache.LoadSeed(strings.NewReader(seed), s.now)
	s.Require().NoError(err)
	s.Require().Equal(1, n)

	s.tokens = NewTokenIssuer("test-signing-key", "mock-queue", "A3", 15*time.Minute)
	scans := []json.RawMessage{
		json.RawMessage(`{"faces":[{"label":"Somchai Jaidee","confidence":91,"patient_id":"P000001","bbox":{"x":10,"y":12,"w":40,"h":48}}]}`),
		json.RawMessage(`{"faces":[],"ocr":{"raw_text":"ID 1234567890123","id_card_numbers":["1-2345-67890-12-3"],"card_detected":true}}`),
	}
	srv, err := New(cache, s.tokens, WithScanScript(scans))
	s.Require().NoError(err)
	s.server = httptest.NewServer(srv.Router())
}

func (s *MockBackendSuite) TearDownTest() {
	s.server.Close()
}

func jpegBlob(t *testing.T) *capture.ImageBlob {
	t.Helper()
	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, image.NewRGBA(image.Rect(0, 0, 32, 24)), nil); err != nil {
		t.Fatal(err)
	}
	return &capture.ImageBlob{Data: buf.Bytes(), ContentType: capture.ContentType, Width: 32, Height: 24}
}

// =============================================================================
// Recognition
// =============================================================================

func (s *MockBackendSuite) TestScanReplaysScript() {
	client := recognition.New(s.server.URL)
	blob := jpegBlob(s.T())

	first, err := client.Submit(context.Background(), blob)
	s.Require().NoError(err)
	s.Require().Len(first.Faces, 1)
	s.Equal(id.PatientID("P000001"), first.Faces[0].IdentityRef)
	s.InDelta(0.91, first.Faces[0].Confidence, 1e-9)

	second, err := client.Submit(context.Background(), blob)
	s.Require().NoError(err)
	s.Require().NotNil(second.OCR)
	s.Equal([]id.NationalID{"1234567890123"}, second.OCR.IDCardNumbers)

	third, err := client.Submit(context.Background(), blob)
	s.Require().NoError(err)
	s.Len(third.Faces, 1, "script wraps around")
}

func (s *MockBackendSuite) TestScanRejectsUndecodableImage() {
	client := recognition.New(s.server.URL)
	_, err := client.Submit(context.Background(), &capture.ImageBlob{Data: []byte("not an image")})
	s.True(dErrors.HasCode(err, dErrors.CodeNetwork))
}

// =============================================================================
// Directory and Queue
// =============================================================================

func (s *MockBackendSuite) TestDirectoryLookups() {
	client := directory.NewClient(s.server.URL)

	s.Run("by national id", func() {
		p, err := client.FindByNationalID(context.Background(), "1234567890123")
		s.Require().NoError(err)
		s.Equal(id.PatientID("P000001"), p.ID)
		s.Equal("Somchai Jaidee", p.DisplayName)
	})

	s.Run("by patient id", func() {
		p, err := client.Get(context.Background(), "P000001")
		s.Require().NoError(err)
		s.Equal(id.NationalID("1234567890123"), p.NationalID)
	})

	s.Run("unknown national id is not found", func() {
		p, err := client.FindByNationalID(context.Background(), "9999999999999")
		s.Nil(p)
		s.True(dErrors.HasCode(err, dErrors.CodeNotFound))
	})

	s.Run("malformed national id is a bad request", func() {
		rr := testutil.DoRequest(s.server.Config.Handler,
			testutil.NewRequest(s.T(), http.MethodGet, "/patients/by-national-id/123"))
		testutil.AssertStatusAndError(s.T(), rr, http.StatusBadRequest, "validation_error")
	})
}

func (s *MockBackendSuite) TestQueueToken() {
	client := directory.NewClient(s.server.URL)

	s.Run("known patient gets a signed token", func() {
		token, err := client.RequestToken(context.Background(), "P000001")
		s.Require().NoError(err)

		claims, err := s.tokens.Validate(string(token), time.Now())
		s.Require().NoError(err)
		s.Equal("P000001", claims.PatientID)
		s.Equal("A3", claims.Counter)

		exp, ok := directory.TokenExpiry(string(token))
		s.True(ok)
		s.WithinDuration(time.Now().Add(15*time.Minute), exp, time.Minute)
	})

	s.Run("unknown patient is not found", func() {
		_, err := client.RequestToken(context.Background(), "P404")
		s.True(dErrors.HasCode(err, dErrors.CodeNotFound))
	})
}

func TestTokenIssuer(t *testing.T) {
	issuer := NewTokenIssuer("k", "mock-queue", "", time.Minute)
	issued := time.Date(2026, 10, 15, 9, 0, 0, 0, time.UTC)

	token, err := issuer.Issue("P000001", issued)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := issuer.Validate(token, issued.Add(30*time.Second)); err != nil {
		t.Fatalf("fresh token rejected: %v", err)
	}
	_, err = issuer.Validate(token, issued.Add(2*time.Minute))
	if !dErrors.HasCode(err, dErrors.CodeBadRequest) {
		t.Fatalf("expired token: got %v", err)
	}
	if _, err := issuer.Issue("", issued); err == nil {
		t.Fatal("empty patient id accepted")
	}
}
