// Package main starts the mock admin backend used for local development.
package main

import (
	"context"
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"

	mockapicmd "github.com/louisbranch/groupbuy-console/internal/cmd/mockapi"
	"github.com/louisbranch/groupbuy-console/internal/platform/config"
)

func main() {
	cfg, err := mockapicmd.ParseConfig(flag.CommandLine, os.Args[1:])
	if err != nil {
		config.Exitf("parse flags: %v", err)
	}
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := mockapicmd.Run(ctx, cfg); err != nil {
		log.Fatalf("failed to serve: %v", err)
	}
}
