// Package tcpserver accepts the fixed set of player connections a game is
// played over and wraps each in a line-oriented session.
package tcpserver

import (
	"context"
	"errors"
	"fmt"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"github.com/maxi0604/hangtheman/logger"
	"github.com/maxi0604/hangtheman/protocol"
)

// ErrServerClosed is returned by AcceptPlayers once the server was stopped.
var ErrServerClosed = errors.New("tcpserver: server closed")

const (
	minAcceptBackoff = 5 * time.Millisecond
	maxAcceptBackoff = time.Second
)

// TCPServer listens on Addr and hands out accepted connections as player
// sessions. The server is used by a single goroutine during acceptance; Stop
// may be called from any goroutine.
type TCPServer struct {
	Logger   logger.Logger
	Name     string
	Addr     string
	Listener net.Listener
	Running  atomic.Bool

	mu       sync.Mutex
	sessions []*PlayerSession
}

// New creates a server for addr. Call Listen before AcceptPlayers.
//
// Parameters:
//   - name: Server identity shown in the welcome banner and logs
//   - addr: The "host:port" to bind
//   - l: Logger for lifecycle and accept errors
//
// Returns:
//   - A new *TCPServer
func New(name, addr string, l logger.Logger) *TCPServer {
	return &TCPServer{
		Logger: l,
		Name:   name,
		Addr:   addr,
	}
}

// Listen binds Addr.
//
// Returns:
//   - An error if the server is already running or binding fails
func (s *TCPServer) Listen() error {
	if s.Running.Load() {
		return fmt.Errorf("server %s already running", s.Name)
	}

	ln, err := net.Listen("tcp", s.Addr)
	if err != nil {
		s.Logger.Error("server failed to start", logger.Field{Key: "error", Value: err})
		return fmt.Errorf("server %s failed to start: %w", s.Name, err)
	}

	s.Listener = ln
	s.Running.Store(true)
	s.Logger.Info(fmt.Sprintf("%s server listening", s.Name), logger.Field{Key: "addr", Value: ln.Addr().String()})

	return nil
}

// AcceptPlayers blocks until exactly n connections were accepted, one after
// another. Each player gets ids 1..n in accept order and a welcome banner
// with the running count. Failed accepts are logged and retried without
// counting.
//
// Parameters:
//   - ctx: Cancelling ctx stops the server and aborts acceptance
//   - n: Number of players to wait for
//
// Returns:
//   - The sessions in accept order
//   - ErrServerClosed if the server was stopped first, or ctx.Err()
func (s *TCPServer) AcceptPlayers(ctx context.Context, n int) ([]*PlayerSession, error) {
	if !s.Running.Load() {
		return nil, ErrServerClosed
	}

	stop := context.AfterFunc(ctx, s.Stop)
	defer stop()

	players := make([]*PlayerSession, 0, n)
	fail := func(err error) ([]*PlayerSession, error) {
		for _, p := range players {
			_ = p.Close()
		}
		return nil, err
	}

	backoff := minAcceptBackoff
	for len(players) < n {
		conn, err := s.Listener.Accept()
		if err != nil {
			if ctx.Err() != nil {
				return fail(ctx.Err())
			}
			if !s.Running.Load() || errors.Is(err, net.ErrClosed) {
				return fail(ErrServerClosed)
			}

			s.Logger.Error(fmt.Sprintf("%s server accept error", s.Name), logger.Field{Key: "error", Value: err})
			time.Sleep(backoff)
			backoff = min(backoff*2, maxAcceptBackoff)
			continue
		}
		backoff = minAcceptBackoff

		player := NewPlayerSession(uint32(len(players)+1), conn)
		if err := s.welcome(player, len(players)+1, n); err != nil {
			s.Logger.Warn("dropping connection", logger.Field{Key: "remote", Value: player.RemoteAddr()}, logger.Field{Key: "error", Value: err})
			_ = player.Close()
			continue
		}

		players = append(players, player)
		if !s.addSession(player) {
			if ctx.Err() != nil {
				return fail(ctx.Err())
			}
			return fail(ErrServerClosed)
		}
		s.Logger.Info("player connected",
			logger.Field{Key: "player", Value: player.ID()},
			logger.Field{Key: "remote", Value: player.RemoteAddr()},
			logger.Field{Key: "connected", Value: len(players)},
			logger.Field{Key: "total", Value: n},
		)
	}

	return players, nil
}

func (s *TCPServer) welcome(player *PlayerSession, connected, total int) error {
	for _, line := range protocol.Welcome(s.Name, connected, total) {
		if err := player.SendLine(line); err != nil {
			return err
		}
	}

	return nil
}

// addSession registers p for Stop. It reports false once the server was
// stopped, in which case p is not registered.
func (s *TCPServer) addSession(p *PlayerSession) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.Running.Load() {
		return false
	}
	s.sessions = append(s.sessions, p)

	return true
}

// Stop closes the listener and every accepted session. Safe to call when the
// server is not running and from multiple goroutines.
func (s *TCPServer) Stop() {
	if !s.Running.CompareAndSwap(true, false) {
		return
	}

	if s.Listener != nil {
		_ = s.Listener.Close()
	}

	s.mu.Lock()
	sessions := s.sessions
	s.sessions = nil
	s.mu.Unlock()

	for _, p := range sessions {
		_ = p.Close()
	}

	s.Logger.Info(fmt.Sprintf("%s server stopped", s.Name))
}
