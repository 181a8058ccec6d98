// Command hangtheman-client connects a terminal to a hangtheman server:
// server lines are printed to stdout and every stdin line is sent as a
// guess.
package main

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/maxi0604/hangtheman/client"
	"github.com/maxi0604/hangtheman/logger"
)

func main() {
	addr := flag.String("addr", "localhost:1337", "server address (host:port)")
	level := flag.String("log-level", "warn", "log level")
	flag.Parse()

	log := logger.NewConsoleLogger("hangtheman-client", logger.ParseLevel(*level))
	defer log.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	c := client.New(client.DefaultConfig(*addr))
	c.OnLine(func(e client.LineEvent) {
		fmt.Println(e.Line)
	})
	c.OnConnectionState(func(e client.ConnectionStateEvent) {
		log.Debug("connection state changed",
			logger.Field{Key: "state", Value: e.State.String()},
			logger.Field{Key: "addr", Value: e.Address},
		)
	})
	c.OnError(func(e client.ErrorEvent) {
		log.Error("connection error", logger.Field{Key: "error", Value: e.Error.Error()})
	})

	if err := c.Connect(ctx); err != nil {
		log.Error("connect failed", logger.Field{Key: "error", Value: err.Error()})
		os.Exit(1)
	}
	defer c.Close()

	go func() {
		scanner := bufio.NewScanner(os.Stdin)
		for scanner.Scan() {
			if err := c.SendLine(scanner.Text()); err != nil {
				stop()
				return
			}
		}
		stop()
	}()

	select {
	case <-ctx.Done():
	case <-c.Done():
		log.Info("server closed the connection")
	}
}
