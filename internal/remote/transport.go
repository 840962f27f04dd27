package remote

import (
	"net/http"
	"time"

	"go.uber.org/zap"
)

// loggingTransport logs request metadata. Never bodies or headers: they carry the token.
type loggingTransport struct {
	next http.RoundTripper // nil: http.DefaultTransport, resolved per request
	log  *zap.Logger
}

func (t *loggingTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	next := t.next
	if next == nil {
		next = http.DefaultTransport
	}
	start := time.Now()
	resp, err := next.RoundTrip(req)

	fields := []zap.Field{
		zap.String("method", req.Method),
		zap.String("path", req.URL.Path),
		zap.Duration("dur", time.Since(start)),
	}
	if err != nil {
		t.log.Warn("remote request failed", append(fields, zap.Error(err))...)
		return nil, err
	}
	t.log.Debug("remote", append(fields, zap.Int("status", resp.StatusCode))...)
	return resp, nil
}
