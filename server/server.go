// Package server wires configuration, word sources, the TCP listener and the
// round driver into a runnable game server.
package server

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"os"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/maxi0604/hangtheman/cacher"
	"github.com/maxi0604/hangtheman/config"
	"github.com/maxi0604/hangtheman/logger"
	"github.com/maxi0604/hangtheman/match"
	"github.com/maxi0604/hangtheman/tcpserver"
	"github.com/maxi0604/hangtheman/words"
)

const (
	wordsCacheKey    = "words"
	redisKeyPrefix   = "hangtheman:"
	redisPingTimeout = 2 * time.Second
)

// NewLogger builds the process logger from cfg. With a log directory the
// output also goes to daily-rotated files.
func NewLogger(cfg config.Config) (logger.Logger, error) {
	level := logger.ParseLevel(cfg.LogLevel)

	switch {
	case cfg.LogDir != "":
		return logger.NewZerologFileLogger(cfg.Name, cfg.LogDir, level)
	case cfg.LogFormat == "json":
		return logger.NewZerologLogger(os.Stdout, cfg.Name, level), nil
	default:
		return logger.NewConsoleLogger(cfg.Name, level), nil
	}
}

// NewWordSource picks the word source configured in cfg. File and URL
// sources are cached for cfg.WordsTTL, in Redis when an address is set and
// reachable, in memory otherwise.
//
// Parameters:
//   - ctx: Bounds the Redis connectivity check
//   - cfg: Server configuration
//   - l: Logger
//
// Returns:
//   - The source
//   - A cleanup function that releases the cache connection; never nil
func NewWordSource(ctx context.Context, cfg config.Config, l logger.Logger) (words.Source, func()) {
	var inner words.Source
	switch {
	case cfg.WordsFile != "":
		inner = words.FileSource{Path: cfg.WordsFile}
		l.Info("using word file", logger.Field{Key: "path", Value: cfg.WordsFile})
	case cfg.WordsURL != "":
		inner = words.NewHTTPSource(cfg.WordsURL)
		l.Info("using word service", logger.Field{Key: "url", Value: cfg.WordsURL})
	default:
		return words.StaticSource(words.Default), func() {}
	}

	cache, cleanup := newWordCache(ctx, cfg, l)

	return &words.CachedSource{
		Source: inner,
		Cache:  cache,
		Key:    wordsCacheKey,
		TTL:    cfg.WordsTTL,
	}, cleanup
}

func newWordCache(ctx context.Context, cfg config.Config, l logger.Logger) (cacher.Cacher[[]string], func()) {
	memory := func() (cacher.Cacher[[]string], func()) {
		return cacher.NewMemoryCacher[[]string](cfg.WordsTTL, 2*cfg.WordsTTL), func() {}
	}

	if cfg.RedisAddr == "" {
		return memory()
	}

	client := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
	pingCtx, cancel := context.WithTimeout(ctx, redisPingTimeout)
	defer cancel()

	if err := client.Ping(pingCtx).Err(); err != nil {
		l.Warn("redis unreachable, caching words in memory",
			logger.Field{Key: "addr", Value: cfg.RedisAddr},
			logger.Field{Key: "error", Value: err.Error()},
		)
		_ = client.Close()
		return memory()
	}

	l.Info("caching words in redis", logger.Field{Key: "addr", Value: cfg.RedisAddr})

	return cacher.NewRedisCacher[[]string](client, redisKeyPrefix), func() { _ = client.Close() }
}

// Run listens on the configured address, waits for all players and then
// plays rounds until a connection fails or ctx is cancelled.
//
// Returns:
//   - ctx.Err() after cancellation, otherwise the error that ended the game
func Run(ctx context.Context, cfg config.Config, l logger.Logger) error {
	source, cleanup := NewWordSource(ctx, cfg, l)
	defer cleanup()

	srv := tcpserver.New(cfg.Name, cfg.Addr(), l)
	if err := srv.Listen(); err != nil {
		return err
	}
	defer srv.Stop()

	return Serve(ctx, srv, source, cfg, l)
}

// Serve runs the game on an already listening server.
func Serve(ctx context.Context, srv *tcpserver.TCPServer, source words.Source, cfg config.Config, l logger.Logger) error {
	l.Info("waiting for players", logger.Field{Key: "players", Value: cfg.Players})

	sessions, err := srv.AcceptPlayers(ctx, cfg.Players)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		return fmt.Errorf("accept players: %w", err)
	}

	// Blocked reads only return once their connection is closed.
	stopOnCancel := context.AfterFunc(ctx, srv.Stop)
	defer stopOnCancel()

	players := make([]match.Player, len(sessions))
	for i, s := range sessions {
		if cfg.TurnTimeout > 0 {
			s.SetReadTimeout(cfg.TurnTimeout)
		}
		players[i] = s
	}

	table := match.NewTable(players, source, rand.New(rand.NewSource(time.Now().UnixNano())), match.Config{
		MaxFails:   cfg.MaxFails,
		TimeoutErr: tcpserver.IsTimeout,
	}, l)

	err = table.Run(ctx)
	if ctxErr := ctx.Err(); ctxErr != nil {
		return ctxErr
	}

	return err
}

// IsShutdown reports whether err only signals a requested shutdown.
func IsShutdown(err error) bool {
	return errors.Is(err, context.Canceled) || errors.Is(err, tcpserver.ErrServerClosed)
}
