package orch

import (
	"context"
	"errors"
	"fmt"

	"github.com/dkeye/voicestate/internal/core"
	"github.com/dkeye/voicestate/internal/domain"
)

// ejector is implemented by backends that let members remove each other.
type ejector interface {
	Eject(id domain.ContactID, reason string) error
}

// SetConversation selects the conversation the components follow. A joined
// previous conversation is left first. An empty name only detaches.
func (c *Conference) SetConversation(ctx context.Context, name domain.ConversationName, opts core.ConversationOptions) {
	c.mu.Lock()
	prev := c.conv
	same := name == c.convName && opts == c.convOpts && prev != nil
	c.convName, c.convOpts = name, opts
	c.ejection = nil
	c.mu.Unlock()
	if same {
		return
	}

	if prev != nil && prev.IsJoined() {
		if err := prev.Leave(ctx); err != nil {
			c.log.Warn().Err(err).Str("conversation", string(prev.Name())).Msg("leave previous conversation")
		}
	}
	c.openConversation(c.Connector.Session().Get())
}

// openConversation attaches every conversation component to the selected
// conversation of sess, or detaches them when there is none.
func (c *Conference) openConversation(sess core.Session) {
	c.swapMu.Lock()
	defer c.swapMu.Unlock()

	c.mu.Lock()
	name, opts := c.convName, c.convOpts
	c.mu.Unlock()

	var conv core.Conversation
	if sess != nil && name != "" {
		var err error
		conv, err = sess.GetOrCreateConversation(name, &opts)
		if err != nil {
			c.report(fmt.Errorf("open conversation %s: %w", name, err))
			conv = nil
		}
	}

	c.mu.Lock()
	if c.conv == conv {
		c.mu.Unlock()
		return
	}
	c.conv = conv
	c.mu.Unlock()

	c.Streams.SetConversation(conv)
	c.Members.SetConversation(conv)
	c.Messages.SetConversation(conv)
	c.Waiting.SetConversation(conv)
	if conv != nil {
		c.log.Info().Str("conversation", string(name)).Bool("moderated", opts.Moderated).Msg("conversation selected")
	}
	c.bump()
}

func (c *Conference) conversation() core.Conversation {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.conv
}

func (c *Conference) Join(ctx context.Context) error {
	c.mu.Lock()
	c.ejection = nil
	c.mu.Unlock()
	return c.Members.Join(ctx)
}

func (c *Conference) Leave(ctx context.Context) error { return c.Members.Leave(ctx) }

func (c *Conference) SendMessage(ctx context.Context, content string) error {
	return c.Messages.Send(ctx, content)
}

func (c *Conference) Allow(id domain.ContactID) error { return c.Waiting.Allow(id) }

func (c *Conference) Deny(id domain.ContactID, reason string) error {
	return c.Waiting.Deny(id, reason)
}

// Eject removes another participant when the backend supports it.
func (c *Conference) Eject(id domain.ContactID, reason string) error {
	conv := c.conversation()
	if conv == nil {
		return core.ErrNoConversation
	}
	e, ok := conv.(ejector)
	if !ok {
		return fmt.Errorf("eject: %w", errors.ErrUnsupported)
	}
	return e.Eject(id, reason)
}
