package trace

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"net/http"
	"sync/atomic"
	"time"
)

// ContextKey type for context keys
type ContextKey string

// RequestIDKey is the context key for request ID
const RequestIDKey ContextKey = "request_id"

// Header carried on outbound API requests.
const Header = "X-Request-ID"

var counter int64

// GenerateRequestID returns a unique ID for tagging one outbound request.
// Falls back to a timestamp-based ID if the random source fails.
func GenerateRequestID() string {
	b := make([]byte, 8)
	if _, err := rand.Read(b); err != nil {
		return fmt.Sprintf("req-%d-%d", time.Now().UnixNano(), atomic.AddInt64(&counter, 1))
	}
	return hex.EncodeToString(b)
}

// WithRequestID returns a context carrying the given request ID.
func WithRequestID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, RequestIDKey, id)
}

// RequestID extracts the request ID from the context, or "" if absent.
func RequestID(ctx context.Context) string {
	if id, ok := ctx.Value(RequestIDKey).(string); ok {
		return id
	}
	return ""
}

// Tag stamps the request with the context's request ID, generating one if
// the context has none. It returns the ID actually used.
func Tag(req *http.Request) string {
	id := RequestID(req.Context())
	if id == "" {
		id = GenerateRequestID()
	}
	req.Header.Set(Header, id)
	return id
}
