package main

import (
	"context"
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"

	passkeycmd "github.com/louisbranch/frbpasskey/internal/cmd/passkey"
	"github.com/louisbranch/frbpasskey/internal/platform/otel"
)

func main() {
	cfg, err := passkeycmd.ParseConfig(flag.CommandLine, os.Args[1:], func(key string) (string, bool) {
		value, ok := os.LookupEnv(key)
		return value, ok
	})
	if err != nil {
		log.Fatalf("parse flags: %v", err)
	}
	log.SetPrefix("[PASSKEY] ")
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	shutdown, err := otel.Setup(ctx, "frbpasskey-cli")
	if err != nil {
		log.Fatalf("otel setup: %v", err)
	}
	defer func() {
		if err := shutdown(context.Background()); err != nil {
			log.Printf("otel shutdown: %v", err)
		}
	}()

	if err := passkeycmd.Run(ctx, cfg); err != nil {
		log.Fatalf("ceremony failed: %v", err)
	}
}
