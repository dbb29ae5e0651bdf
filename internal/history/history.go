// Package history persists conversation transcripts so that a conversation
// can resume where it left off after a process restart.
package history

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/voxloop/voxloop/pkg/voice/responder"
)

// Role identifies the author of a stored message.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Message is one stored conversation entry.
type Message struct {
	// ID is a UUID assigned when the message is created.
	ID string

	Role      Role
	Content   string
	Timestamp time.Time
}

// NewMessage creates a Message stamped with the current time.
func NewMessage(role Role, content string) Message {
	return Message{
		ID:        uuid.NewString(),
		Role:      role,
		Content:   content,
		Timestamp: time.Now(),
	}
}

// Store persists conversation messages. Implementations must be safe for
// concurrent use.
type Store interface {
	// Load returns the messages of conversationID whose timestamp is not
	// before since, ordered oldest first. A conversation with no recent
	// messages yields an empty slice and nil error.
	Load(ctx context.Context, conversationID string, since time.Time) ([]Message, error)

	// Append adds msgs to conversationID in order.
	Append(ctx context.Context, conversationID string, msgs ...Message) error

	// Clear removes every message of conversationID.
	Clear(ctx context.Context, conversationID string) error
}

// Log is the per-conversation view over a [Store]: it applies the freshness
// window, seeds a greeting into empty conversations, and trims to the turn
// cap. Every mutation is written through to the store immediately.
//
// Log is not safe for concurrent use; the conversation controller owns it.
type Log struct {
	store     Store
	id        string
	maxTurns  int
	freshness time.Duration
	messages  []Message
}

// LogConfig configures [Open].
type LogConfig struct {
	// MaxTurns caps retained user/assistant turns. Default: 12.
	MaxTurns int

	// Freshness is how long stored messages stay resumable. Default: 24h.
	Freshness time.Duration

	// Greeting, when non-empty, is seeded as the first assistant message of
	// a conversation that has no fresh history.
	Greeting string
}

// Open loads the fresh portion of conversationID from store. When nothing
// fresh exists the prior history is cleared and the greeting (if configured)
// is seeded and persisted.
func Open(ctx context.Context, store Store, conversationID string, cfg LogConfig) (*Log, error) {
	if cfg.MaxTurns <= 0 {
		cfg.MaxTurns = 12
	}
	if cfg.Freshness <= 0 {
		cfg.Freshness = 24 * time.Hour
	}

	l := &Log{
		store:     store,
		id:        conversationID,
		maxTurns:  cfg.MaxTurns,
		freshness: cfg.Freshness,
	}

	msgs, err := store.Load(ctx, conversationID, time.Now().Add(-cfg.Freshness))
	if err != nil {
		return nil, err
	}

	if len(msgs) == 0 {
		// Stale or brand new. Drop whatever is stored and start over.
		if err := store.Clear(ctx, conversationID); err != nil {
			return nil, err
		}
		if cfg.Greeting != "" {
			greeting := NewMessage(RoleAssistant, cfg.Greeting)
			if err := store.Append(ctx, conversationID, greeting); err != nil {
				return nil, err
			}
			msgs = []Message{greeting}
		}
	}

	l.messages = msgs
	l.trim()
	return l, nil
}

// AddUserTurn appends a user message and persists it.
func (l *Log) AddUserTurn(ctx context.Context, text string) error {
	return l.add(ctx, NewMessage(RoleUser, text))
}

// AddAssistantTurn appends an assistant message and persists it.
func (l *Log) AddAssistantTurn(ctx context.Context, text string) error {
	return l.add(ctx, NewMessage(RoleAssistant, text))
}

func (l *Log) add(ctx context.Context, msg Message) error {
	if err := l.store.Append(ctx, l.id, msg); err != nil {
		return err
	}
	l.messages = append(l.messages, msg)
	l.trim()
	return nil
}

// Messages returns a copy of the in-memory view, oldest first.
func (l *Log) Messages() []Message {
	out := make([]Message, len(l.messages))
	copy(out, l.messages)
	return out
}

// Turns converts the log into responder history turns, oldest first.
func (l *Log) Turns() []responder.Turn {
	turns := make([]responder.Turn, 0, len(l.messages))
	for _, m := range l.messages {
		role := responder.RoleUser
		if m.Role == RoleAssistant {
			role = responder.RoleAssistant
		}
		turns = append(turns, responder.Turn{Role: role, Content: m.Content})
	}
	return turns
}

// Reset clears the conversation in the store and in memory.
func (l *Log) Reset(ctx context.Context) error {
	if err := l.store.Clear(ctx, l.id); err != nil {
		return err
	}
	l.messages = nil
	return nil
}

// trim drops the oldest messages beyond the turn cap. Only the in-memory view
// is trimmed; stored rows age out via the freshness window.
func (l *Log) trim() {
	max := l.maxTurns * 2
	if len(l.messages) > max {
		l.messages = l.messages[len(l.messages)-max:]
	}
}
