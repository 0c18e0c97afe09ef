package delegate_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"

	"github.com/anvil/offbridge/internal/delegate"
)

// newDelegateServer runs an in-process websocket endpoint and returns
// its ws:// URL. The handler owns the accepted connection.
func newDelegateServer(t *testing.T, check func(r *http.Request), handler func(ctx context.Context, conn *websocket.Conn)) string {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if check != nil {
			check(r)
		}
		conn, err := websocket.Accept(w, r, nil)
		if err != nil {
			return
		}
		defer conn.CloseNow()
		handler(r.Context(), conn)
	}))
	t.Cleanup(srv.Close)
	return "ws" + strings.TrimPrefix(srv.URL, "http")
}

func TestWSClientExecute(t *testing.T) {
	var gotAuth atomic.Value
	url := newDelegateServer(t,
		func(r *http.Request) { gotAuth.Store(r.Header.Get("Authorization")) },
		func(ctx context.Context, conn *websocket.Conn) {
			var req delegate.ExecuteRequest
			if err := wsjson.Read(ctx, conn, &req); err != nil {
				return
			}
			_ = wsjson.Write(ctx, conn, delegate.ExecuteResult{
				Success:   true,
				Result:    map[string]any{"echo": req.Operation},
				ElapsedMs: 7,
			})
		})

	client := delegate.NewWSClient(url, "test-token", 5*time.Second, nil)
	res, err := client.Execute(context.Background(), delegate.ExecuteRequest{
		ID:        "r-1",
		Module:    "statistics",
		Operation: "describe",
		TimeoutMs: 60000,
		Priority:  "normal",
	})
	if err != nil {
		t.Fatalf("execute: %v", err)
	}
	if !res.Success || res.ElapsedMs != 7 {
		t.Errorf("result = %+v", res)
	}
	out, ok := res.Result.(map[string]any)
	if !ok || out["echo"] != "describe" {
		t.Errorf("payload = %+v", res.Result)
	}
	if auth, _ := gotAuth.Load().(string); auth != "Bearer test-token" {
		t.Errorf("authorization header = %q", auth)
	}
}

func TestWSClientExecuteRejectsMalformedResult(t *testing.T) {
	url := newDelegateServer(t, nil, func(ctx context.Context, conn *websocket.Conn) {
		var raw json.RawMessage
		if err := wsjson.Read(ctx, conn, &raw); err != nil {
			return
		}
		// No success field: the envelope must be refused.
		_ = wsjson.Write(ctx, conn, map[string]any{"elapsed_ms": 3})
	})

	client := delegate.NewWSClient(url, "", 5*time.Second, nil)
	if _, err := client.Execute(context.Background(), delegate.ExecuteRequest{ID: "r-2", Module: "compute", Operation: "run"}); err == nil {
		t.Fatal("malformed result envelope accepted")
	}
}

func TestWSClientExecuteDialFailure(t *testing.T) {
	client := delegate.NewWSClient("ws://127.0.0.1:1/execute", "", 200*time.Millisecond, nil)
	if _, err := client.Execute(context.Background(), delegate.ExecuteRequest{ID: "r-3"}); err == nil {
		t.Fatal("expected dial error")
	}
}

func TestWSClientProbe(t *testing.T) {
	url := newDelegateServer(t, nil, func(ctx context.Context, conn *websocket.Conn) {
		// CloseRead keeps processing control frames so the ping is answered.
		readCtx := conn.CloseRead(ctx)
		<-readCtx.Done()
	})

	client := delegate.NewWSClient(url, "", 5*time.Second, nil)
	if err := client.Probe(context.Background()); err != nil {
		t.Fatalf("probe: %v", err)
	}
}

func TestWSClientProbeFailure(t *testing.T) {
	client := delegate.NewWSClient("ws://127.0.0.1:1/execute", "", 200*time.Millisecond, nil)
	if err := client.Probe(context.Background()); err == nil {
		t.Fatal("expected probe error against closed port")
	}
}
