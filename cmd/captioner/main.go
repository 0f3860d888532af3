package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"captioner/internal/services"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cmd := newRootCommand()
	if err := cmd.ExecuteContext(ctx); err != nil {
		if !errors.Is(err, context.Canceled) {
			msg := services.UserMessage(err)
			fmt.Fprintln(os.Stderr, msg)
			if detail := err.Error(); detail != msg && !strings.Contains(msg, detail) {
				fmt.Fprintf(os.Stderr, "  detail: %s\n", detail)
			}
		}
		stop()
		os.Exit(1)
	}
}
