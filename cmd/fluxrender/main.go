package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"fluxrender/internal/render"
	"fluxrender/internal/services"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cmd := newRootCommand()
	err := cmd.ExecuteContext(ctx)
	if err == nil {
		return
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, render.ErrRenderCancelled) {
		stop()
		os.Exit(130)
	}
	fmt.Fprintln(os.Stderr, err)
	stop()
	os.Exit(services.ExitCode(err))
}
