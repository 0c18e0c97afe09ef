package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/mattn/go-isatty"

	"github.com/anvil/offbridge/internal/config"
)

// runStatusCommand queries a running daemon's /healthz endpoint and
// prints the result. Returns a process exit code.
func runStatusCommand(ctx context.Context, args []string) int {
	fs := flag.NewFlagSet("status", flag.ExitOnError)
	addr := fs.String("addr", "", "gateway address (default: from config)")
	asJSON := fs.Bool("json", false, "print raw JSON")
	_ = fs.Parse(args)

	if *addr == "" {
		cfg, err := config.Load()
		if err != nil {
			fmt.Fprintf(os.Stderr, "load config: %v\n", err)
			return 1
		}
		*addr = cfg.BindAddr
	}

	reqCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	url := fmt.Sprintf("http://%s/healthz", *addr)
	req, err := http.NewRequestWithContext(reqCtx, http.MethodGet, url, nil)
	if err != nil {
		fmt.Fprintf(os.Stderr, "build request: %v\n", err)
		return 1
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		fmt.Fprintf(os.Stderr, "offbridge daemon not reachable at %s: %v\n", *addr, err)
		return 1
	}
	defer resp.Body.Close()

	var health struct {
		Status     string `json:"status"`
		Active     int    `json:"active"`
		QueueDepth int    `json:"queue_depth"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&health); err != nil {
		fmt.Fprintf(os.Stderr, "decode response: %v\n", err)
		return 1
	}

	if *asJSON || !isatty.IsTerminal(os.Stdout.Fd()) {
		out, _ := json.MarshalIndent(health, "", "  ")
		fmt.Println(string(out))
	} else {
		fmt.Printf("bridge:      %s\n", health.Status)
		fmt.Printf("active:      %d\n", health.Active)
		fmt.Printf("queue depth: %d\n", health.QueueDepth)
	}

	if health.Status == "error" || health.Status == "circuit_open" {
		return 1
	}
	return 0
}
