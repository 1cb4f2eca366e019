// Package main is the terminal client for the operator console.
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/louisbranch/groupbuy-console/internal/cmd/consolectl"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	code := consolectl.Execute(ctx, os.Args[1:], consolectl.Options{})
	stop()
	os.Exit(code)
}
