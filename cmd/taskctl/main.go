// Command taskctl inspects and maintains the taskcore dead-letter archive
// directly through the configured backend.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/phrazzld/taskcore/internal/cli"
)

func main() {
	// A missing .env file is normal outside development.
	_ = godotenv.Load()

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := cli.NewRoot().ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "taskctl:", err)
		cancel()
		os.Exit(1)
	}
}
