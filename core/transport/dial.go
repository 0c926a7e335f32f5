package transport

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/gorilla/websocket"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const DefaultDialTimeout = 10 * time.Second

type Dialer interface {
	Dial(ctx context.Context, endpoint string) (Conn, error)
}

// WebsocketDialer dials with gorilla/websocket. A zero value uses the
// default dialer and timeout.
type WebsocketDialer struct {
	Dialer  *websocket.Dialer
	Header  http.Header
	Timeout time.Duration
}

func (d WebsocketDialer) Dial(ctx context.Context, endpoint string) (Conn, error) {
	ctx, span := tracer.Start(ctx, "dial agent", trace.WithAttributes(attribute.String("endpoint", endpoint)))
	defer span.End()

	dialer := d.Dialer
	if dialer == nil {
		dialer = websocket.DefaultDialer
	}
	timeout := d.Timeout
	if timeout <= 0 {
		timeout = DefaultDialTimeout
	}

	if _, hasDeadline := ctx.Deadline(); !hasDeadline {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	conn, resp, err := dialer.DialContext(ctx, endpoint, d.Header)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "dial failed")
		if resp != nil {
			return nil, fmt.Errorf("websocket dial failed (status %d): %w", resp.StatusCode, err)
		}
		return nil, fmt.Errorf("websocket dial failed: %w", err)
	}
	return conn, nil
}

// Endpoint builds the session URL /ws/<userID>/<sessionID> under server.
// http and https servers are mapped to ws and wss.
func Endpoint(server, userID, sessionID string) (string, error) {
	u, err := url.Parse(server)
	if err != nil {
		return "", fmt.Errorf("invalid server url: %w", err)
	}
	switch u.Scheme {
	case "http":
		u.Scheme = "ws"
	case "https":
		u.Scheme = "wss"
	case "ws", "wss":
	default:
		return "", fmt.Errorf("unsupported server scheme %q", u.Scheme)
	}
	if u.Host == "" {
		return "", fmt.Errorf("server url %q has no host", server)
	}
	if userID == "" || sessionID == "" {
		return "", fmt.Errorf("user id and session id are required")
	}

	if strings.Contains(userID, "/") || strings.Contains(sessionID, "/") {
		return "", fmt.Errorf("user id and session id must not contain '/'")
	}
	return u.JoinPath("ws", userID, sessionID).String(), nil
}
