package core

import "errors"

var (
	ErrNoConversation     = errors.New("no conversation")
	ErrNoSession          = errors.New("no session")
	ErrNoStream           = errors.New("no stream")
	ErrUnknownCredentials = errors.New("unknown credentials")
	ErrUnknownProcessor   = errors.New("unknown processor")
	ErrNotPublished       = errors.New("stream is not published")
	ErrStreamNotTracked   = errors.New("stream is not tracked")
	ErrNotJoined          = errors.New("conversation not joined")
)
