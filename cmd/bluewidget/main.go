// bluewidget - Bluetooth quick-settings widget and daemon
//
// This is the main entry point. The same binary runs the terminal widget,
// the headless daemon (HTTP API and MQTT bridge), and one-shot commands
// for scripts:
//   - bluewidget tui
//   - bluewidget serve
//   - bluewidget devices | power on|off | connect|disconnect|pair <id>
//   - bluewidget settings path|show|launch
package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
)

// Version information - set at build time via ldflags
// Example: go build -ldflags "-X main.version=1.0.0 -X main.commit=abc123"
var (
	version = "dev"     // Semantic version (e.g., "1.0.0")
	commit  = "unknown" // Git commit hash
	date    = "unknown" // Build date
)

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := run(ctx, os.Args[1:], os.Stdout); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// run executes the command line, separated from main for testability.
//
// Parameters:
//   - ctx: Context for cancellation and shutdown signals
//   - args: Command line arguments without the program name
//   - out: Destination for command output
//
// Returns:
//   - error: nil on success, or the error that should exit non-zero
func run(ctx context.Context, args []string, out io.Writer) error {
	root := newRootCmd(out)
	root.SetArgs(args)
	return root.ExecuteContext(ctx)
}
