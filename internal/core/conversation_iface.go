package core

import (
	"context"

	"github.com/dkeye/voicestate/internal/domain"
)

type PublishOptions struct {
	AudioOnly bool `json:"audioOnly,omitempty"`
	VideoOnly bool `json:"videoOnly,omitempty"`
}

type SubscribeOptions struct {
	AudioOnly bool `json:"audioOnly,omitempty"`
	VideoOnly bool `json:"videoOnly,omitempty"`
}

type ConversationOptions struct {
	// Moderated conversations hold newcomers in a waiting room.
	Moderated bool `json:"moderated,omitempty"`
}

// Call is the per-published-stream handle of a conversation.
type Call interface {
	ReplacePublishedStream(ctx context.Context, next Stream) (Stream, error)
}

// Conversation is the core-facing API of a named remote multi-party session.
// It is owned by the SDK; components only invoke it and (un)register listeners.
type Conversation interface {
	Emitter

	Name() domain.ConversationName
	IsJoined() bool
	Join(ctx context.Context) error
	Leave(ctx context.Context) error

	Publish(ctx context.Context, s Stream, opts *PublishOptions) (Stream, error)
	Unpublish(s Stream)
	Call(s Stream) (Call, bool)
	IsPublishedStream(s Stream) bool

	SubscribeToStream(id domain.StreamID, opts *SubscribeOptions) error
	UnsubscribeToStream(id domain.StreamID)
	AvailableStreams() []StreamInfo

	Contacts() []domain.Contact
	SendMessage(ctx context.Context, content string) error

	AllowEntry(id domain.ContactID)
	DenyEntry(id domain.ContactID, reason string)
}
