package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/unkn0wn-root/guardcache/internal/cli"
)

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	code := cli.Execute(ctx, cli.New(os.Stdout, os.Stderr), os.Args[1:])
	cancel()
	os.Exit(code)
}
