package domain

type (
	ConversationName string
	GroupName        string
	StreamID         string
)
