// Command hangtheman runs a multiplayer hangman server over TCP.
//
// Usage:
//
//	hangtheman [port] [players]
//
// Further settings are read from HANGTHEMAN_* environment variables.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/maxi0604/hangtheman/config"
	"github.com/maxi0604/hangtheman/logger"
	"github.com/maxi0604/hangtheman/server"
)

func main() {
	cfg, err := config.Load(os.Args[1:])
	if err != nil {
		fmt.Fprintf(os.Stderr, "hangtheman: %v\n", err)
		os.Exit(2)
	}

	log, err := server.NewLogger(cfg)
	if err != nil {
		fmt.Fprintf(os.Stderr, "hangtheman: create logger: %v\n", err)
		os.Exit(2)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err = server.Run(ctx, cfg, log)
	stop()

	if err != nil && !server.IsShutdown(err) {
		log.Error("game stopped", logger.Field{Key: "error", Value: err.Error()})
		_ = log.Close()
		os.Exit(1)
	}

	log.Info("shutdown complete")
	_ = log.Close()
}
