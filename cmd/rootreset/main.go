// File: cmd/rootreset/main.go
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/opsweld/rootreset/cmd"
	"github.com/opsweld/rootreset/internal/observability"
)

// osExit allows mocking os.Exit in tests.
var osExit = os.Exit

func main() {
	// Interrupts cancel the run context; the orchestrator tears the browser
	// down on its way out.
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	code := cmd.Execute(ctx)
	observability.Sync()
	stop()
	osExit(code)
}
