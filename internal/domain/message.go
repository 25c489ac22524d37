package domain

import "time"

// Message is a chat line received in or sent to a conversation.
type Message struct {
	Sender  Contact   `json:"sender"`
	Content string    `json:"content"`
	At      time.Time `json:"at"`
}

// NewMessage avoids raw literals in adapters and keeps construction obvious.
func NewMessage(sender Contact, content string, at time.Time) Message {
	return Message{Sender: sender, Content: content, At: at}
}
