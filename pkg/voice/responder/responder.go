// Package responder defines the reply-generation interface of the
// conversation loop: given the user's utterance and recent history,
// produce the assistant's next spoken line.
package responder

import "context"

// Role identifies who spoke a turn.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Turn is one prior exchange entry passed as context to the responder.
type Turn struct {
	Role    Role
	Content string
}

// MaxHistoryTurns caps how many user/assistant pairs are sent with a
// request. Older turns are dropped before the request leaves the process.
const MaxHistoryTurns = 12

// Request carries everything a provider needs to generate a reply.
type Request struct {
	// Message is the user's latest utterance, already final and deduplicated.
	Message string

	// History holds prior turns, oldest first. Implementations may assume
	// it has already passed through CapHistory.
	History []Turn

	// Locale is a BCP 47 tag ("en-US", "fr-FR") hinting the reply language.
	Locale string
}

// Provider generates conversational replies.
type Provider interface {
	// Reply returns the assistant's next line. A reply is always plain
	// text intended for speech synthesis, never markup.
	Reply(ctx context.Context, req Request) (string, error)
}

// CapHistory returns the most recent MaxHistoryTurns*2 entries of history,
// preserving order. The slice is shared, not copied.
func CapHistory(history []Turn) []Turn {
	max := MaxHistoryTurns * 2
	if len(history) <= max {
		return history
	}
	return history[len(history)-max:]
}
