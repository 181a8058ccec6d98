// Package client provides an event-driven, line-oriented TCP client for the
// game server. Received lines, connection state changes and errors are
// delivered to registered handlers.
package client

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"strings"
	"sync"
	"time"

	"github.com/maxi0604/hangtheman/protocol"
)

var (
	ErrClosed           = errors.New("client is closed")
	ErrNotConnected     = errors.New("not connected")
	ErrAlreadyConnected = errors.New("already connected or connecting")
)

// ConnectionState represents the current state of the connection.
type ConnectionState int

const (
	Disconnected ConnectionState = iota // Not connected
	Connecting                          // Dial in progress
	Connected                           // Connected and reading lines
	Closed                              // Client has been closed and cannot be reused
)

// String returns a human-readable name for the connection state.
func (cs ConnectionState) String() string {
	switch cs {
	case Disconnected:
		return "Disconnected"
	case Connecting:
		return "Connecting"
	case Connected:
		return "Connected"
	case Closed:
		return "Closed"
	default:
		return "Unknown"
	}
}

// ConnectionStateEvent is emitted when the connection state changes.
type ConnectionStateEvent struct {
	State     ConnectionState
	Address   string
	Timestamp time.Time
	Error     error // Non-nil if the change was caused by an error
}

// LineEvent is emitted for every line received from the server.
type LineEvent struct {
	Line      string // Without the line terminator
	Timestamp time.Time
}

// ErrorEvent is emitted when a read, write or dial error occurs.
type ErrorEvent struct {
	Error     error
	Timestamp time.Time
}

type (
	ConnectionStateHandler func(event ConnectionStateEvent)
	LineHandler            func(event LineEvent)
	ErrorHandler           func(event ErrorEvent)
)

// Config holds configuration for the client.
type Config struct {
	// Address is the "host:port" of the server.
	Address string
	// WriteTimeout bounds a single SendLine; 0 means no timeout.
	WriteTimeout time.Duration
	// ConnectionTimeout bounds the dial.
	ConnectionTimeout time.Duration
}

// DefaultConfig returns a Config with default timeouts for address.
//
// Parameters:
//   - address: The "host:port" to connect to
//
// Returns:
//   - A Config with WriteTimeout 10s and ConnectionTimeout 10s
func DefaultConfig(address string) Config {
	return Config{
		Address:           address,
		WriteTimeout:      10 * time.Second,
		ConnectionTimeout: 10 * time.Second,
	}
}

// LineClient connects to the game server and reports every received line to
// the OnLine handler, in order. Handlers are called from the client's read
// goroutine or from the goroutine calling Connect or Close, so they must not
// block for long. It is safe for concurrent use.
type LineClient struct {
	config Config
	conn   net.Conn
	state  ConnectionState

	onConnectionState ConnectionStateHandler
	onLine            LineHandler
	onError           ErrorHandler

	mu       sync.RWMutex
	writeMu  sync.Mutex
	wg       sync.WaitGroup
	closed   bool
	dialed   bool
	done     chan struct{}
	doneOnce sync.Once
}

// New creates a client in Disconnected state.
//
// Parameters:
//   - config: Connection settings (e.g. from DefaultConfig)
//
// Returns:
//   - A new *LineClient; call Close when done
func New(config Config) *LineClient {
	return &LineClient{
		config: config,
		state:  Disconnected,
		done:   make(chan struct{}),
	}
}

// OnConnectionState registers the handler for state changes, replacing any
// previous one. Pass nil to clear it.
func (c *LineClient) OnConnectionState(handler ConnectionStateHandler) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.onConnectionState = handler
}

// OnLine registers the handler for received lines, replacing any previous
// one. Pass nil to clear it.
func (c *LineClient) OnLine(handler LineHandler) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.onLine = handler
}

// OnError registers the handler for errors, replacing any previous one.
// Pass nil to clear it.
func (c *LineClient) OnError(handler ErrorHandler) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.onError = handler
}

// Connect dials the server and starts reading lines. A client connects at
// most once; the server only admits players before the first round.
//
// Parameters:
//   - ctx: Cancels the dial
//
// Returns:
//   - nil on success; ErrClosed, ErrAlreadyConnected or the dial error
func (c *LineClient) Connect(ctx context.Context) error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return ErrClosed
	}
	if c.dialed {
		c.mu.Unlock()
		return ErrAlreadyConnected
	}
	c.dialed = true
	c.state = Connecting
	c.mu.Unlock()
	c.emitConnectionState(Connecting, nil)

	dialer := net.Dialer{Timeout: c.config.ConnectionTimeout}
	conn, err := dialer.DialContext(ctx, "tcp", c.config.Address)
	if err != nil {
		c.setState(Disconnected, err)
		c.emitError(err)
		c.finish()
		return fmt.Errorf("dial %s: %w", c.config.Address, err)
	}

	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		_ = conn.Close()
		return ErrClosed
	}
	c.conn = conn
	c.mu.Unlock()

	c.setState(Connected, nil)

	c.wg.Add(1)
	go c.readLoop(conn)

	return nil
}

// SendLine writes line followed by a newline.
//
// Parameters:
//   - line: The guess or text to send; must not contain a newline
//
// Returns:
//   - nil on success; ErrNotConnected or the write error
func (c *LineClient) SendLine(line string) error {
	c.mu.RLock()
	conn := c.conn
	state := c.state
	c.mu.RUnlock()

	if state != Connected || conn == nil {
		return ErrNotConnected
	}

	c.writeMu.Lock()
	defer c.writeMu.Unlock()

	if c.config.WriteTimeout > 0 {
		if err := conn.SetWriteDeadline(time.Now().Add(c.config.WriteTimeout)); err != nil {
			return err
		}

		defer func() {
			_ = conn.SetWriteDeadline(time.Time{})
		}()
	}

	if _, err := io.WriteString(conn, line+protocol.Newline); err != nil {
		c.emitError(err)
		return err
	}

	return nil
}

// State returns the current connection state.
func (c *LineClient) State() ConnectionState {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.state
}

// Done is closed once the connection ends, whether the server hung up, a
// read failed, the dial failed, or Close was called.
func (c *LineClient) Done() <-chan struct{} {
	return c.done
}

// Close closes the connection and waits for the read goroutine to exit.
// Idempotent.
func (c *LineClient) Close() error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil
	}
	c.closed = true

	var err error
	if c.conn != nil {
		err = c.conn.Close()
	}
	c.mu.Unlock()

	c.wg.Wait()
	c.finish()
	c.setState(Closed, nil)

	return err
}

func (c *LineClient) readLoop(conn net.Conn) {
	defer c.wg.Done()
	defer c.finish()

	reader := bufio.NewReader(conn)
	for {
		line, err := reader.ReadString('\n')
		if line != "" && (err == nil || errors.Is(err, io.EOF)) {
			c.emitLine(strings.TrimRight(line, "\r\n"))
		}

		if err == nil {
			continue
		}

		if c.isClosed() {
			return
		}

		var cause error
		if !errors.Is(err, io.EOF) {
			cause = err
			c.emitError(err)
		}

		c.mu.Lock()
		c.conn = nil
		c.mu.Unlock()
		_ = conn.Close()
		c.setState(Disconnected, cause)

		return
	}
}

func (c *LineClient) finish() {
	c.doneOnce.Do(func() { close(c.done) })
}

func (c *LineClient) setState(state ConnectionState, err error) {
	c.mu.Lock()
	c.state = state
	c.mu.Unlock()

	c.emitConnectionState(state, err)
}

func (c *LineClient) emitConnectionState(state ConnectionState, err error) {
	c.mu.RLock()
	handler := c.onConnectionState
	c.mu.RUnlock()

	if handler != nil {
		handler(ConnectionStateEvent{
			State:     state,
			Address:   c.config.Address,
			Timestamp: time.Now(),
			Error:     err,
		})
	}
}

func (c *LineClient) emitLine(line string) {
	c.mu.RLock()
	handler := c.onLine
	c.mu.RUnlock()

	if handler != nil {
		handler(LineEvent{Line: line, Timestamp: time.Now()})
	}
}

func (c *LineClient) emitError(err error) {
	c.mu.RLock()
	handler := c.onError
	c.mu.RUnlock()

	if handler != nil {
		handler(ErrorEvent{Error: err, Timestamp: time.Now()})
	}
}

func (c *LineClient) isClosed() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.closed
}
