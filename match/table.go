// Package match runs hangman rounds over a fixed, ordered set of players.
// Play is strictly sequential: one player at a time is asked for a guess and
// every state change is broadcast to all players.
package match

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/maxi0604/hangtheman/game"
	"github.com/maxi0604/hangtheman/logger"
	"github.com/maxi0604/hangtheman/perfmonitor"
	"github.com/maxi0604/hangtheman/protocol"
	"github.com/maxi0604/hangtheman/words"
)

// ErrNoPlayers is returned when a round is started without players.
var ErrNoPlayers = errors.New("match: no players at the table")

// Player is one seat at the table.
type Player interface {
	// ID identifies the player in logs.
	ID() uint32

	// ReadLine blocks until the player sends a line.
	ReadLine() (string, error)

	// SendLine writes a single line to the player.
	SendLine(line string) error
}

// Config holds the rules of a table.
type Config struct {
	// MaxFails is the number of failed guesses that loses a round.
	MaxFails int
	// TimeoutErr reports whether a read error is an expired turn timeout.
	// Timed out turns count as an empty guess. Nil treats every read error
	// as fatal.
	TimeoutErr func(err error) bool
}

// Table drives rounds over the same players until an I/O error occurs or
// the context is cancelled. It is not safe for concurrent use.
type Table struct {
	players []Player
	source  words.Source
	rng     *rand.Rand
	cfg     Config
	logger  logger.Logger
	rounds  int
	timer   *perfmonitor.PerformanceMonitor
}

// NewTable creates a table.
//
// Parameters:
//   - players: The players in turn order; must not be empty
//   - source: Supplies the word list for every new round
//   - rng: Random source for word selection
//   - cfg: Rules of the table
//   - l: Logger
//
// Returns:
//   - A new *Table
func NewTable(players []Player, source words.Source, rng *rand.Rand, cfg Config, l logger.Logger) *Table {
	if cfg.MaxFails <= 0 {
		cfg.MaxFails = game.DefaultMaxFails
	}

	return &Table{
		players: players,
		source:  source,
		rng:     rng,
		cfg:     cfg,
		logger:  l,
		timer:   perfmonitor.NewPerformanceMonitor(),
	}
}

// Run plays rounds forever. It returns when the word source fails, a player
// connection fails, or ctx is cancelled.
func (t *Table) Run(ctx context.Context) error {
	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		session, err := t.NewSession(ctx)
		if err != nil {
			return err
		}

		if _, err := t.PlayRound(ctx, session); err != nil {
			return err
		}
	}
}

// NewSession picks a fresh secret word and starts a session for it.
func (t *Table) NewSession(ctx context.Context) (*game.Session, error) {
	list, err := t.source.Words(ctx)
	if err != nil {
		return nil, fmt.Errorf("load words: %w", err)
	}

	session, err := game.Generate(list, t.rng, t.cfg.MaxFails)
	if err != nil {
		return nil, fmt.Errorf("new session: %w", err)
	}

	return session, nil
}

// PlayRound plays session to its end: players take turns in order until a
// guess wins or loses the round, then everyone is told the word.
//
// Parameters:
//   - ctx: Checked between turns; a blocked read is not interrupted
//   - session: A fresh session for this round
//
// Returns:
//   - Won or Lost
//   - An error if any read or write fails, or ctx is cancelled
func (t *Table) PlayRound(ctx context.Context, session *game.Session) (game.Result, error) {
	if len(t.players) == 0 {
		return game.Continue, ErrNoPlayers
	}

	t.rounds++
	log := t.logger.With(
		logger.Field{Key: "round", Value: t.rounds},
		logger.Field{Key: "round_id", Value: uuid.NewString()},
	)
	log.Info("round started", logger.Field{Key: "players", Value: len(t.players)})
	log.Debug("secret word chosen", logger.Field{Key: "word", Value: session.Word()})

	t.timer.Reset()
	t.timer.Start()

	if err := t.broadcast(protocol.RoundStart); err != nil {
		return game.Continue, err
	}

	result, err := t.playTurns(ctx, session, log)
	if err != nil {
		return result, err
	}

	message := protocol.LossMessage(session.Word())
	if result == game.Won {
		message = protocol.WinMessage(session.Word())
	}
	if err := t.broadcast(message); err != nil {
		return result, err
	}

	t.timer.Stop()
	log.Info("round finished",
		logger.Field{Key: "result", Value: result.String()},
		logger.Field{Key: "word", Value: session.Word()},
		logger.Field{Key: "fails", Value: session.Fails()},
		logger.Field{Key: "duration_ms", Value: t.timer.ElapsedMilliseconds()},
	)

	return result, nil
}

func (t *Table) playTurns(ctx context.Context, session *game.Session, log logger.Logger) (game.Result, error) {
	for {
		for _, p := range t.players {
			if err := ctx.Err(); err != nil {
				return game.Continue, err
			}

			result, err := t.turn(p, session, log)
			if err != nil {
				return result, err
			}

			if result.Terminal() {
				return result, nil
			}

			if err := t.broadcast(statusLine(session)); err != nil {
				return result, err
			}
		}
	}
}

// turn asks p for one guess and applies it.
func (t *Table) turn(p Player, session *game.Session, log logger.Logger) (game.Result, error) {
	if err := p.SendLine(statusLine(session)); err != nil {
		return game.Continue, err
	}
	if err := p.SendLine(protocol.Prompt); err != nil {
		return game.Continue, err
	}

	start := time.Now()
	line, err := p.ReadLine()
	if err != nil {
		if t.cfg.TimeoutErr == nil || !t.cfg.TimeoutErr(err) {
			return game.Continue, err
		}

		log.Warn("turn timed out", logger.Field{Key: "player", Value: p.ID()})
		line = ""
	}

	guess := strings.TrimSpace(line)
	result := session.Guess(guess)
	log.Info("player guessed",
		logger.Field{Key: "player", Value: p.ID()},
		logger.Field{Key: "guess", Value: guess},
		logger.Field{Key: "result", Value: result.String()},
		logger.Field{Key: "fails", Value: session.Fails()},
		logger.Field{Key: "think_ms", Value: time.Since(start).Milliseconds()},
	)

	return result, nil
}

// broadcast sends line to every player in seat order.
func (t *Table) broadcast(line string) error {
	for _, p := range t.players {
		if err := p.SendLine(line); err != nil {
			return err
		}
	}

	return nil
}

func statusLine(s *game.Session) string {
	return protocol.StatusLine(s.Masked(), s.Fails(), s.MaxFails(), s.GuessedDisplay())
}
