// Package delegate talks to the delegate execution environment: an
// opaque remote capability provider reachable through a single logical
// execute call per request.
package delegate

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"
)

// Client is the pluggable delegate link. Production uses WSClient;
// tests inject a Fake that can simulate latency and failures
// deterministically.
type Client interface {
	// Execute performs one call. A non-nil error is a transport-level
	// failure; a delegate-reported failure comes back as a result with
	// Success=false.
	Execute(ctx context.Context, req ExecuteRequest) (*ExecuteResult, error)
	// Probe checks connectivity without executing anything.
	Probe(ctx context.Context) error
}

// WSClient executes delegate calls over a WebSocket dialed per call:
// write one request envelope, read one result envelope, close.
type WSClient struct {
	url         string
	authToken   string
	dialTimeout time.Duration
	logger      *slog.Logger
}

// NewWSClient creates a WebSocket delegate client.
func NewWSClient(url, authToken string, dialTimeout time.Duration, logger *slog.Logger) *WSClient {
	if dialTimeout <= 0 {
		dialTimeout = 10 * time.Second
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &WSClient{
		url:         url,
		authToken:   authToken,
		dialTimeout: dialTimeout,
		logger:      logger,
	}
}

func (c *WSClient) dial(ctx context.Context) (*websocket.Conn, error) {
	dialCtx, cancel := context.WithTimeout(ctx, c.dialTimeout)
	defer cancel()

	opts := &websocket.DialOptions{}
	if c.authToken != "" {
		opts.HTTPHeader = http.Header{"Authorization": {"Bearer " + c.authToken}}
	}
	conn, _, err := websocket.Dial(dialCtx, c.url, opts)
	if err != nil {
		return nil, fmt.Errorf("dial delegate %s: %w", c.url, err)
	}
	return conn, nil
}

// Execute dials the delegate, sends the request envelope and waits for
// the result envelope. The caller's ctx carries the request timeout.
func (c *WSClient) Execute(ctx context.Context, req ExecuteRequest) (*ExecuteResult, error) {
	conn, err := c.dial(ctx)
	if err != nil {
		return nil, err
	}
	defer conn.Close(websocket.StatusNormalClosure, "done")

	if err := wsjson.Write(ctx, conn, req); err != nil {
		return nil, fmt.Errorf("send request %s: %w", req.ID, err)
	}

	var raw json.RawMessage
	if err := wsjson.Read(ctx, conn, &raw); err != nil {
		return nil, fmt.Errorf("read result for %s: %w", req.ID, err)
	}

	result, err := DecodeResult(raw)
	if err != nil {
		return nil, fmt.Errorf("request %s: %w", req.ID, err)
	}
	c.logger.Debug("delegate call finished",
		"request_id", req.ID,
		"module", req.Module,
		"success", result.Success,
		"elapsed_ms", result.ElapsedMs,
	)
	return result, nil
}

// Probe dials the delegate and pings it. Used by initialization and the
// scheduled health check.
func (c *WSClient) Probe(ctx context.Context) error {
	conn, err := c.dial(ctx)
	if err != nil {
		return err
	}
	defer conn.Close(websocket.StatusNormalClosure, "probe done")

	// Ping only completes once a reader observes the pong control frame,
	// so keep the connection reading for the duration of the probe.
	conn.CloseRead(ctx)

	pingCtx, cancel := context.WithTimeout(ctx, c.dialTimeout)
	defer cancel()
	if err := conn.Ping(pingCtx); err != nil {
		return fmt.Errorf("ping delegate: %w", err)
	}
	return nil
}
