// ./main.go
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/fdmtools/printdoctor-cli/cmd"
)

// main is the entry point for the printdoctor CLI. Commands receive a
// signal-aware context so an interrupt cancels in-flight polling.
func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cmd.ExecuteContext(ctx)
}
