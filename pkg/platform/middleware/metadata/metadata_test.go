package metadata

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"

	"patientflow/pkg/requestcontext"
)

func TestClientIPFromRequest(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.RemoteAddr = "192.168.1.20:51234"
	assert.Equal(t, "192.168.1.20", ClientIPFromRequest(req))

	req.Header.Set("X-Real-IP", " 10.1.1.1 ")
	assert.Equal(t, "10.1.1.1", ClientIPFromRequest(req))

	req.Header.Set("X-Forwarded-For", "10.9.9.9, 172.16.0.1")
	assert.Equal(t, "10.9.9.9", ClientIPFromRequest(req))
}

func TestClientMetadata(t *testing.T) {
	var ip, ua string
	h := ClientMetadata(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ip = requestcontext.ClientIP(r.Context())
		ua = requestcontext.UserAgent(r.Context())
	}))
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.RemoteAddr = "10.0.0.5:1000"
	req.Header.Set("User-Agent", "kiosk-shell/2.1")
	h.ServeHTTP(httptest.NewRecorder(), req)

	assert.Equal(t, "10.0.0.5", ip)
	assert.Equal(t, "kiosk-shell/2.1", ua)
}
