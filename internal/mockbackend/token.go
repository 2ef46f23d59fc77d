package mockbackend

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	id "patientflow/pkg/domain"
	dErrors "patientflow/pkg/domain-errors"
)

// QueueClaims is the payload of a queue token.
type QueueClaims struct {
	PatientID string `json:"patient_id"`
	Counter   string `json:"counter,omitempty"`
	jwt.RegisteredClaims
}

// TokenIssuer signs queue tokens with HS256.
type TokenIssuer struct {
	signingKey []byte
	issuer     string
	counter    string
	ttl        time.Duration
}

func NewTokenIssuer(signingKey, issuer, counter string, ttl time.Duration) *TokenIssuer {
	return &TokenIssuer{
		signingKey: []byte(signingKey),
		issuer:     issuer,
		counter:    counter,
		ttl:        ttl,
	}
}

// Issue signs a token for pid valid from now for the issuer's TTL.
func (s *TokenIssuer) Issue(pid id.PatientID, now time.Time) (string, error) {
	if pid.IsNil() {
		return "", dErrors.New(dErrors.CodeBadRequest, "patientId is required")
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, QueueClaims{
		PatientID: pid.String(),
		Counter:   s.counter,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   pid.String(),
			Issuer:    s.issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(s.ttl)),
			ID:        uuid.NewString(),
		},
	})
	signed, err := token.SignedString(s.signingKey)
	if err != nil {
		return "", fmt.Errorf("sign queue token: %w", err)
	}
	return signed, nil
}

// Validate parses and verifies a token issued by s.
func (s *TokenIssuer) Validate(token string, now time.Time) (*QueueClaims, error) {
	parsed, err := jwt.ParseWithClaims(token, &QueueClaims{}, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, jwt.ErrTokenUnverifiable
		}
		return s.signingKey, nil
	}, jwt.WithTimeFunc(func() time.Time { return now }), jwt.WithIssuer(s.issuer))
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, dErrors.New(dErrors.CodeBadRequest, "queue token has expired")
		}
		return nil, dErrors.New(dErrors.CodeBadRequest, "invalid queue token")
	}
	claims, ok := parsed.Claims.(*QueueClaims)
	if !ok || !parsed.Valid {
		return nil, dErrors.New(dErrors.CodeBadRequest, "invalid queue token claims")
	}
	return claims, nil
}
