package core

//go:generate mockgen -source=session_iface.go -destination=../mocks/mock_session.go -package=mocks

import (
	"context"

	"github.com/dkeye/voicestate/internal/domain"
)

// Session is a registered user agent.
// It emits EventContactListUpdate for the groups it subscribed to.
type Session interface {
	Emitter

	Self() domain.Contact
	SubscribeToGroup(name domain.GroupName) error
	UnsubscribeToGroup(name domain.GroupName) error
	GetOrCreateConversation(name domain.ConversationName, opts *ConversationOptions) (Conversation, error)
	Disconnect(ctx context.Context) error
}

// RegisterInfo is the resolved form of user credentials.
type RegisterInfo struct {
	APIKey   string
	Username string
	Password string
	Token    string
}

type UserAgent interface {
	Register(ctx context.Context, info RegisterInfo) (Session, error)
	MediaDevices() MediaDevices
	CreateStream(ctx context.Context, c StreamConstraints) (Stream, error)
}
