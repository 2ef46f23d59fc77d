// Package requestcontext carries request-scoped values from the HTTP
// middleware to the flow and its collaborators without importing net/http.
package requestcontext

import (
	"context"
	"time"
)

type key int

const (
	kioskIDKey key = iota
	clientIPKey
	userAgentKey
	requestIDKey
	requestTimeKey
)

// DefaultKioskID is used when a request does not name its terminal.
const DefaultKioskID = "default"

func stringValue(ctx context.Context, k key) string {
	v, _ := ctx.Value(k).(string)
	return v
}

// KioskID is the terminal the request came from, or DefaultKioskID.
func KioskID(ctx context.Context) string {
	if v := stringValue(ctx, kioskIDKey); v != "" {
		return v
	}
	return DefaultKioskID
}

func WithKioskID(ctx context.Context, kioskID string) context.Context {
	return context.WithValue(ctx, kioskIDKey, kioskID)
}

func ClientIP(ctx context.Context) string  { return stringValue(ctx, clientIPKey) }
func UserAgent(ctx context.Context) string { return stringValue(ctx, userAgentKey) }

func WithClientMetadata(ctx context.Context, clientIP, userAgent string) context.Context {
	ctx = context.WithValue(ctx, clientIPKey, clientIP)
	return context.WithValue(ctx, userAgentKey, userAgent)
}

func RequestID(ctx context.Context) string { return stringValue(ctx, requestIDKey) }

func WithRequestID(ctx context.Context, requestID string) context.Context {
	return context.WithValue(ctx, requestIDKey, requestID)
}

// Now is the time the request arrived. Outside a request (scheduler
// cycles, tests) it is the wall clock.
func Now(ctx context.Context) time.Time {
	if t, ok := ctx.Value(requestTimeKey).(time.Time); ok {
		return t
	}
	return time.Now()
}

func WithTime(ctx context.Context, t time.Time) context.Context {
	return context.WithValue(ctx, requestTimeKey, t)
}
