package testutil

import (
	"net/http"

	"patientflow/internal/platform/middleware"
)

// WithKioskHeader sets the terminal header the KioskID middleware reads.
func WithKioskHeader(req *http.Request, kioskID string) *http.Request {
	req.Header.Set(middleware.HeaderKioskID, kioskID)
	return req
}
