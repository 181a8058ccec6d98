package client

import (
	"bufio"
	"context"
	"math/rand"
	"net"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/maxi0604/hangtheman/logger"
	"github.com/maxi0604/hangtheman/match"
	"github.com/maxi0604/hangtheman/protocol"
	"github.com/maxi0604/hangtheman/tcpserver"
	"github.com/maxi0604/hangtheman/words"
)

const waitTimeout = 5 * time.Second

// recorder collects everything a client reports.
type recorder struct {
	lines chan string

	mu     sync.Mutex
	states []ConnectionState
	errs   []error
}

func newRecorder(c *LineClient) *recorder {
	r := &recorder{lines: make(chan string, 128)}
	c.OnLine(func(e LineEvent) { r.lines <- e.Line })
	c.OnConnectionState(func(e ConnectionStateEvent) {
		r.mu.Lock()
		defer r.mu.Unlock()
		r.states = append(r.states, e.State)
	})
	c.OnError(func(e ErrorEvent) {
		r.mu.Lock()
		defer r.mu.Unlock()
		r.errs = append(r.errs, e.Error)
	})

	return r
}

func (r *recorder) stateLog() []ConnectionState {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]ConnectionState(nil), r.states...)
}

// expect reads the next line and compares it to want.
func (r *recorder) expect(t *testing.T, want string) {
	t.Helper()

	select {
	case got := <-r.lines:
		assert.Equal(t, want, got)
	case <-time.After(waitTimeout):
		t.Fatalf("timed out waiting for %q", want)
	}
}

func TestConnectionState_String(t *testing.T) {
	assert.Equal(t, "Disconnected", Disconnected.String())
	assert.Equal(t, "Connecting", Connecting.String())
	assert.Equal(t, "Connected", Connected.String())
	assert.Equal(t, "Closed", Closed.String())
	assert.Equal(t, "Unknown", ConnectionState(42).String())
}

func TestLineClient_Lifecycle(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer ln.Close()

	serverSide := make(chan net.Conn, 1)
	go func() {
		conn, err := ln.Accept()
		if err == nil {
			serverSide <- conn
		}
	}()

	c := New(DefaultConfig(ln.Addr().String()))
	rec := newRecorder(c)

	t.Run("send before connect", func(t *testing.T) {
		assert.ErrorIs(t, c.SendLine("a"), ErrNotConnected)
	})

	require.NoError(t, c.Connect(context.Background()))
	assert.Equal(t, Connected, c.State())
	assert.ErrorIs(t, c.Connect(context.Background()), ErrAlreadyConnected)

	var conn net.Conn
	select {
	case conn = <-serverSide:
	case <-time.After(waitTimeout):
		t.Fatal("server did not accept")
	}
	defer conn.Close()

	t.Run("lines are split and trimmed", func(t *testing.T) {
		_, err := conn.Write([]byte("Eine neue Runde beginnt!\r\nRate einen Buchstaben oder ein Wort.\n"))
		require.NoError(t, err)

		rec.expect(t, "Eine neue Runde beginnt!")
		rec.expect(t, protocol.Prompt)
	})

	t.Run("SendLine appends a newline", func(t *testing.T) {
		require.NoError(t, c.SendLine("Keith"))

		line, err := bufio.NewReader(conn).ReadString('\n')
		require.NoError(t, err)
		assert.Equal(t, "Keith\n", line)
	})

	t.Run("server hang up ends the connection", func(t *testing.T) {
		require.NoError(t, conn.Close())

		select {
		case <-c.Done():
		case <-time.After(waitTimeout):
			t.Fatal("Done was not closed")
		}
		assert.Equal(t, Disconnected, c.State())
		assert.ErrorIs(t, c.SendLine("a"), ErrNotConnected)
	})

	require.NoError(t, c.Close())
	require.NoError(t, c.Close())
	assert.Equal(t, []ConnectionState{Connecting, Connected, Disconnected, Closed}, rec.stateLog())
	assert.ErrorIs(t, c.Connect(context.Background()), ErrClosed)
}

func TestLineClient_DialFailure(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	addr := ln.Addr().String()
	require.NoError(t, ln.Close())

	c := New(DefaultConfig(addr))
	rec := newRecorder(c)
	defer c.Close()

	assert.Error(t, c.Connect(context.Background()))
	assert.Equal(t, Disconnected, c.State())

	select {
	case <-c.Done():
	default:
		t.Fatal("Done should be closed after a failed dial")
	}

	rec.mu.Lock()
	defer rec.mu.Unlock()
	assert.Len(t, rec.errs, 1)
}

// TestLineClient_PlaysAgainstServer runs a real server with two players over
// loopback and plays a round to the end.
func TestLineClient_PlaysAgainstServer(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	srv := tcpserver.New("hangtheman", "127.0.0.1:0", logger.NewNopLogger())
	require.NoError(t, srv.Listen())
	defer srv.Stop()
	addr := srv.Listener.Addr().String()

	runErr := make(chan error, 1)
	go func() {
		sessions, err := srv.AcceptPlayers(ctx, 2)
		if err != nil {
			runErr <- err
			return
		}

		players := make([]match.Player, len(sessions))
		for i, s := range sessions {
			players[i] = s
		}
		table := match.NewTable(players, words.StaticSource{"Go"}, rand.New(rand.NewSource(7)),
			match.Config{MaxFails: 3}, logger.NewNopLogger())
		runErr <- table.Run(ctx)
	}()

	alice := New(DefaultConfig(addr))
	aliceLines := newRecorder(alice)
	defer alice.Close()
	require.NoError(t, alice.Connect(ctx))
	aliceLines.expect(t, "Willkommen bei hangtheman!")
	aliceLines.expect(t, "1/2 Spieler verbunden.")
	aliceLines.expect(t, "Warte auf weitere Spieler...")

	bob := New(DefaultConfig(addr))
	bobLines := newRecorder(bob)
	defer bob.Close()
	require.NoError(t, bob.Connect(ctx))
	bobLines.expect(t, "Willkommen bei hangtheman!")
	bobLines.expect(t, "2/2 Spieler verbunden.")

	aliceLines.expect(t, protocol.RoundStart)
	bobLines.expect(t, protocol.RoundStart)

	aliceLines.expect(t, "Aktueller Stand: __. Versuche: 0/3. Bereits geraten:")
	aliceLines.expect(t, protocol.Prompt)
	require.NoError(t, alice.SendLine("x"))

	for _, r := range []*recorder{aliceLines, bobLines} {
		r.expect(t, "Aktueller Stand: __. Versuche: 1/3. Bereits geraten: x")
	}

	bobLines.expect(t, "Aktueller Stand: __. Versuche: 1/3. Bereits geraten: x")
	bobLines.expect(t, protocol.Prompt)
	require.NoError(t, bob.SendLine("go"))

	for _, r := range []*recorder{aliceLines, bobLines} {
		r.expect(t, "Gewonnen. Das Wort war Go.")
		r.expect(t, protocol.RoundStart)
	}

	aliceLines.expect(t, "Aktueller Stand: __. Versuche: 0/3. Bereits geraten:")
	aliceLines.expect(t, protocol.Prompt)

	require.NoError(t, alice.Close())
	select {
	case err := <-runErr:
		assert.Error(t, err)
	case <-time.After(waitTimeout):
		t.Fatal("table did not stop after a player left")
	}
}
