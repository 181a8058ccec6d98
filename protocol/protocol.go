// Package protocol renders the text lines exchanged with players. Every line
// is UTF-8 and terminated by a single '\n' on the wire.
package protocol

import "fmt"

const (
	// Prompt asks the acting player for a guess.
	Prompt = "Rate einen Buchstaben oder ein Wort."

	// RoundStart is broadcast to everyone before the first turn of a round.
	RoundStart = "Eine neue Runde beginnt!"

	// Newline terminates every line on the wire.
	Newline = "\n"
)

// StatusLine renders the current state of a round.
//
// Parameters:
//   - masked: The masked progress of the secret word
//   - fails: Failed guesses so far
//   - maxFails: Fail limit of the round
//   - guessed: Sorted, space-joined guessed letters (may be empty)
//
// Returns:
//   - e.g. "Aktueller Stand: C__. Versuche: 1/10. Bereits geraten: c z"
func StatusLine(masked string, fails, maxFails int, guessed string) string {
	if guessed != "" {
		guessed = " " + guessed
	}

	return fmt.Sprintf("Aktueller Stand: %s. Versuche: %d/%d. Bereits geraten:%s", masked, fails, maxFails, guessed)
}

// WinMessage reveals the word after a correct whole-word guess.
func WinMessage(word string) string {
	return fmt.Sprintf("Gewonnen. Das Wort war %s.", word)
}

// LossMessage reveals the word after the fail limit was reached.
func LossMessage(word string) string {
	return fmt.Sprintf("Verloren. Skill Issue. Das Wort war %s.", word)
}

// Welcome returns the banner sent to a freshly accepted player.
//
// Parameters:
//   - serverName: Server identity shown in the first line
//   - connected: Players connected so far, including the new one
//   - total: Players needed before the first round starts
//
// Returns:
//   - The banner lines, without line terminators
func Welcome(serverName string, connected, total int) []string {
	lines := []string{
		fmt.Sprintf("Willkommen bei %s!", serverName),
		fmt.Sprintf("%d/%d Spieler verbunden.", connected, total),
	}
	if connected < total {
		lines = append(lines, "Warte auf weitere Spieler...")
	}

	return lines
}
