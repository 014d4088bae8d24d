package domain

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Role identifies the author of a transcript message.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Valid reports whether r is one of the known roles.
func (r Role) Valid() bool {
	return r == RoleUser || r == RoleAssistant
}

// Message is a single transcript entry. Values are never mutated after
// construction.
type Message struct {
	ID        string    `json:"id"`
	Role      Role      `json:"role"`
	Text      string    `json:"text"`
	Timestamp time.Time `json:"timestamp"`
}

// NewMessage builds a Message stamped with a fresh id and the current UTC time.
func NewMessage(role Role, text string) (Message, error) {
	if !role.Valid() {
		return Message{}, fmt.Errorf("domain: unknown message role %q", role)
	}
	return Message{
		ID:        uuid.NewString(),
		Role:      role,
		Text:      text,
		Timestamp: time.Now().UTC(),
	}, nil
}
