package domain

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestNewContact(t *testing.T) {
	tests := []struct {
		name     string
		username string
		wantErr  error
	}{
		{name: "ok", username: "alice"},
		{name: "empty", username: "", wantErr: ErrUsernameEmpty},
		{name: "max length", username: strings.Repeat("a", MaxUsernameLen)},
		{name: "too long", username: strings.Repeat("a", MaxUsernameLen+1), wantErr: ErrUsernameTooLong},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, err := NewContact(tt.username)
			if tt.wantErr != nil {
				require.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			require.Equal(t, tt.username, c.Username)
			require.LessOrEqual(t, len(c.ID), MaxContactIDLen)
		})
	}
}

func TestContact_SetUsernameKeepsOldOnError(t *testing.T) {
	req := require.New(t)
	c, err := NewContact("alice")
	req.NoError(err)

	req.ErrorIs(c.SetUsername(""), ErrUsernameEmpty)
	req.Equal("alice", c.Username)
	req.NoError(c.SetUsername("alicia"))
	req.Equal("alicia", c.Username)
}

func TestContact_CloneCopiesData(t *testing.T) {
	c := Contact{ID: "1", Username: "alice", Data: map[string]string{"status": "busy"}}

	cp := c.Clone()
	cp.Data["status"] = "away"

	require.Equal(t, "busy", c.Data["status"])
}

func TestNewMessage(t *testing.T) {
	at := time.Date(2026, 5, 1, 9, 0, 0, 0, time.UTC)
	sender := Contact{ID: "1", Username: "alice"}

	require.Equal(t, Message{Sender: sender, Content: "hi", At: at}, NewMessage(sender, "hi", at))
}
