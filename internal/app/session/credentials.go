// Package session registers the local user agent and owns the resulting session.
package session

import (
	"fmt"

	"github.com/go-playground/validator/v10"

	"github.com/dkeye/voicestate/internal/core"
)

var validate = validator.New()

// Credentials is one of APIKey, LoginPassword or Token.
type Credentials interface {
	registerInfo() core.RegisterInfo
}

type APIKey struct {
	Key      string `validate:"required"`
	Username string `validate:"omitempty,max=36"`
}

type LoginPassword struct {
	Username string `validate:"required,max=36"`
	Password string `validate:"required"`
}

type Token struct {
	Token string `validate:"required"`
}

func (c APIKey) registerInfo() core.RegisterInfo {
	return core.RegisterInfo{APIKey: c.Key, Username: c.Username}
}

func (c LoginPassword) registerInfo() core.RegisterInfo {
	return core.RegisterInfo{Username: c.Username, Password: c.Password}
}

func (c Token) registerInfo() core.RegisterInfo { return core.RegisterInfo{Token: c.Token} }

// Resolve validates creds and turns them into the SDK registration form.
// Anything that is not a known, valid variant is rejected with
// core.ErrUnknownCredentials.
func Resolve(creds Credentials) (core.RegisterInfo, error) {
	switch creds.(type) {
	case APIKey, LoginPassword, Token:
	default:
		return core.RegisterInfo{}, fmt.Errorf("credentials %T: %w", creds, core.ErrUnknownCredentials)
	}
	if err := validate.Struct(creds); err != nil {
		return core.RegisterInfo{}, fmt.Errorf("%w: %v", core.ErrUnknownCredentials, err)
	}
	return creds.registerInfo(), nil
}

// Parse builds credentials from their wire form. kind is "apiKey",
// "loginPassword" or "token".
func Parse(kind, secret, username string) (Credentials, error) {
	switch kind {
	case "apiKey":
		return APIKey{Key: secret, Username: username}, nil
	case "loginPassword":
		return LoginPassword{Username: username, Password: secret}, nil
	case "token":
		return Token{Token: secret}, nil
	default:
		return nil, fmt.Errorf("credentials kind %q: %w", kind, core.ErrUnknownCredentials)
	}
}
