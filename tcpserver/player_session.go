package tcpserver

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"net"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/maxi0604/hangtheman/protocol"
)

// PlayerSession is one accepted player connection, exposed as a line reader
// and a line writer over the same socket. Reads and writes may happen from
// different goroutines, but each direction must only be used by one
// goroutine at a time.
type PlayerSession struct {
	id     uint32
	conn   net.Conn
	reader *bufio.Reader
	writer *bufio.Writer

	readTimeout time.Duration
	partial     strings.Builder
	closeOnce   sync.Once
	closeErr    error
}

// NewPlayerSession wraps conn for line-oriented I/O.
//
// Parameters:
//   - id: The player's position in the turn order, starting at 1
//   - conn: The accepted connection
//
// Returns:
//   - A new *PlayerSession
func NewPlayerSession(id uint32, conn net.Conn) *PlayerSession {
	return &PlayerSession{
		id:     id,
		conn:   conn,
		reader: bufio.NewReader(conn),
		writer: bufio.NewWriter(conn),
	}
}

// ID returns the player's id.
func (p *PlayerSession) ID() uint32 {
	return p.id
}

// RemoteAddr returns the peer address for logging.
func (p *PlayerSession) RemoteAddr() string {
	return p.conn.RemoteAddr().String()
}

// SetReadTimeout bounds every following ReadLine. Zero means no limit.
func (p *PlayerSession) SetReadTimeout(d time.Duration) {
	p.readTimeout = d
}

// ReadLine blocks until the player sends a full line and returns it without
// the line terminator. A final unterminated line before EOF is returned as
// is; EOF with nothing buffered returns io.EOF. When the read timeout passes
// the error matches os.ErrDeadlineExceeded and any text received so far is
// kept as the start of the next line.
func (p *PlayerSession) ReadLine() (string, error) {
	var deadline time.Time
	if p.readTimeout > 0 {
		deadline = time.Now().Add(p.readTimeout)
	}
	if err := p.conn.SetReadDeadline(deadline); err != nil {
		return "", fmt.Errorf("player %d: set read deadline: %w", p.id, err)
	}

	chunk, err := p.reader.ReadString('\n')
	p.partial.WriteString(chunk)
	if err != nil {
		if IsTimeout(err) {
			return "", fmt.Errorf("player %d: read: %w", p.id, err)
		}

		line := p.partial.String()
		p.partial.Reset()
		if errors.Is(err, io.EOF) && line != "" {
			return strings.TrimRight(line, "\r"), nil
		}

		return "", fmt.Errorf("player %d: read: %w", p.id, err)
	}

	line := p.partial.String()
	p.partial.Reset()

	return strings.TrimRight(line, "\r\n"), nil
}

// SendLine writes line followed by a newline and flushes it.
func (p *PlayerSession) SendLine(line string) error {
	if _, err := p.writer.WriteString(line + protocol.Newline); err != nil {
		return fmt.Errorf("player %d: write: %w", p.id, err)
	}

	if err := p.writer.Flush(); err != nil {
		return fmt.Errorf("player %d: flush: %w", p.id, err)
	}

	return nil
}

// Close closes the connection. It is safe to call multiple times.
func (p *PlayerSession) Close() error {
	p.closeOnce.Do(func() {
		p.closeErr = p.conn.Close()
	})

	return p.closeErr
}

// IsTimeout reports whether err comes from an expired read timeout.
func IsTimeout(err error) bool {
	return errors.Is(err, os.ErrDeadlineExceeded)
}
