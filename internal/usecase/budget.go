package usecase

import (
	"writeway/internal/domain"
)

const (
	// turnBudget is the exchange count from which the coach is told to wrap up.
	turnBudget           = 4
	defaultHistoryWindow = 10
	titleMaxRunes        = 20
)

// turnCount is the number of completed user+assistant exchanges.
func turnCount(storedMessages int) int {
	return storedMessages / 2
}

// coachDirective returns the coach system prompt for a conversation that has
// reached the given turn count.
func coachDirective(turns int) string {
	if turns >= turnBudget {
		return coachPrompt + wrapUpSuffix(turns)
	}
	return coachPrompt
}

// recentWindow returns a copy of the last n messages, oldest first.
// Older messages are dropped, never summarized.
func recentWindow(msgs []domain.ChatMessage, n int) []domain.ChatMessage {
	if n > 0 && len(msgs) > n {
		msgs = msgs[len(msgs)-n:]
	}
	out := make([]domain.ChatMessage, len(msgs))
	copy(out, msgs)
	return out
}

// deriveTitle truncates the first user message to titleMaxRunes characters,
// marking the cut with "...".
func deriveTitle(firstMessage string) string {
	runes := []rune(firstMessage)
	if len(runes) <= titleMaxRunes {
		return firstMessage
	}
	return string(runes[:titleMaxRunes]) + "..."
}
