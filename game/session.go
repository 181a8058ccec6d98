// Package game holds the state of a single hangman round: the secret word,
// the letters guessed so far and the number of failed attempts.
package game

import (
	"errors"
	"math/rand"
	"slices"
	"strings"
	"unicode"
	"unicode/utf8"
)

// Placeholder is shown in place of every letter that has not been guessed yet.
const Placeholder = '_'

// DefaultMaxFails is the number of failed guesses after which a round is lost.
const DefaultMaxFails = 10

// ErrEmptyWordList is returned by Generate when there is no word to choose from.
var ErrEmptyWordList = errors.New("no words in list")

// Result classifies the outcome of a single guess.
type Result int

const (
	Continue Result = iota // Round goes on
	Won                    // Whole word was guessed
	Lost                   // Fail limit reached
)

// String returns a human-readable name for the result.
func (r Result) String() string {
	switch r {
	case Continue:
		return "continue"
	case Won:
		return "won"
	case Lost:
		return "lost"
	default:
		return "unknown"
	}
}

// Terminal reports whether the result ends the round.
func (r Result) Terminal() bool {
	return r != Continue
}

// Session is the state of one round. It is not safe for concurrent use; the
// turn loop is its only writer.
type Session struct {
	word     string
	guessed  map[rune]struct{}
	fails    int
	maxFails int
}

// New creates a session for the given secret word with no guesses and zero
// fails.
//
// Parameters:
//   - word: The secret word; must not be empty
//   - maxFails: Number of failed guesses that loses the round
//
// Returns:
//   - A new *Session
func New(word string, maxFails int) *Session {
	return &Session{
		word:     word,
		guessed:  make(map[rune]struct{}),
		maxFails: maxFails,
	}
}

// Generate picks a word uniformly at random from words using rng and creates
// a fresh session for it.
//
// Parameters:
//   - words: The candidate words
//   - rng: Random source used for the pick
//   - maxFails: Number of failed guesses that loses the round
//
// Returns:
//   - The new session, or ErrEmptyWordList if words is empty
func Generate(words []string, rng *rand.Rand, maxFails int) (*Session, error) {
	if len(words) == 0 {
		return nil, ErrEmptyWordList
	}

	return New(words[rng.Intn(len(words))], maxFails), nil
}

// Guess applies raw player input. Input that is exactly one character is a
// letter guess, anything else (including the empty string) is a whole-word
// guess. Callers are expected to trim the input first.
func (s *Session) Guess(input string) Result {
	if utf8.RuneCountInString(input) == 1 {
		c, _ := utf8.DecodeRuneInString(input)
		return s.GuessLetter(c)
	}

	return s.GuessWord(input)
}

// GuessLetter records c (case-insensitively) and reports Continue when the
// word contains it. A miss costs one attempt. Guessing a letter a second time
// changes nothing.
func (s *Session) GuessLetter(c rune) Result {
	c = unicode.ToLower(c)
	if _, ok := s.guessed[c]; ok {
		return Continue
	}
	s.guessed[c] = struct{}{}

	for _, r := range s.word {
		if unicode.ToLower(r) == c {
			return Continue
		}
	}

	s.fails++
	return s.checkLoss()
}

// GuessWord compares guess to the secret word ignoring case. A correct guess
// wins immediately regardless of the fail count.
func (s *Session) GuessWord(guess string) Result {
	if strings.EqualFold(guess, s.word) {
		return Won
	}

	s.fails++
	return s.checkLoss()
}

func (s *Session) checkLoss() Result {
	if s.fails >= s.maxFails {
		return Lost
	}

	return Continue
}

// Masked returns the secret word with every unguessed letter or digit
// replaced by Placeholder. Other symbols are always shown.
func (s *Session) Masked() string {
	var b strings.Builder
	b.Grow(len(s.word))
	for _, r := range s.word {
		if s.revealed(r) {
			b.WriteRune(r)
		} else {
			b.WriteRune(Placeholder)
		}
	}

	return b.String()
}

func (s *Session) revealed(r rune) bool {
	if !unicode.IsLetter(r) && !unicode.IsDigit(r) {
		return true
	}

	_, ok := s.guessed[unicode.ToLower(r)]
	return ok
}

// GuessedDisplay returns the guessed letters sorted and joined by single
// spaces, e.g. "a e t".
func (s *Session) GuessedDisplay() string {
	letters := make([]string, 0, len(s.guessed))
	for c := range s.guessed {
		letters = append(letters, string(c))
	}
	slices.Sort(letters)

	return strings.Join(letters, " ")
}

// Word returns the secret word.
func (s *Session) Word() string {
	return s.word
}

// Fails returns the number of failed guesses so far.
func (s *Session) Fails() int {
	return s.fails
}

// MaxFails returns the fail limit of the round.
func (s *Session) MaxFails() int {
	return s.maxFails
}
