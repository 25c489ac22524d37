// Package domain contains entity without logic, just meta-data
package domain

import (
	"errors"
	"maps"

	"github.com/google/uuid"
)

const (
	MaxContactIDLen = 36
	MaxUsernameLen  = 36
)

var (
	ErrUsernameTooLong = errors.New("username too long")
	ErrUsernameEmpty   = errors.New("username empty")
)

type ContactID string

// Contact is a remote or local participant as seen by the SDK.
// Data is free-form user data; a userDataChanged event replaces it wholesale.
type Contact struct {
	ID       ContactID         `json:"id"`
	Username string            `json:"username"`
	Data     map[string]string `json:"data,omitempty"`
}

// NewContact is a tiny helper to avoid ad-hoc struct literals in adapters.
func NewContact(username string) (Contact, error) {
	if err := checkUsername(username); err != nil {
		return Contact{}, err
	}
	return Contact{ID: ContactID(uuid.NewString()), Username: username}, nil
}

func (c *Contact) SetUsername(username string) error {
	if err := checkUsername(username); err != nil {
		return err
	}
	c.Username = username
	return nil
}

// Clone copies Data so the returned contact can be handed to observers.
func (c Contact) Clone() Contact {
	c.Data = maps.Clone(c.Data)
	return c
}

func checkUsername(username string) error {
	if len(username) == 0 {
		return ErrUsernameEmpty
	}
	if len(username) > MaxUsernameLen {
		return ErrUsernameTooLong
	}
	return nil
}
