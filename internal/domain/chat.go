package domain

import "context"

// ChatConfig is the provider-agnostic configuration used to open a remote chat.
type ChatConfig struct {
	Model             string
	SystemInstruction string
	Temperature       float64
}

// RemoteChat is a conversation held by a remote generative-language backend.
// Turn history accumulates inside the chat once it has been opened.
type RemoteChat interface {
	SendMessage(ctx context.Context, text string) (string, error)
}
