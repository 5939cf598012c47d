package main

import (
	"context"
	"os/signal"
	"syscall"

	"github.com/JustJay7/pje-capture/cmd/capture/commands"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	commands.ExecuteContext(ctx)
}
