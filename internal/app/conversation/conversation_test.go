package conversation

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/dkeye/voicestate/internal/core"
	"github.com/dkeye/voicestate/internal/domain"
)

var errRejected = errors.New("rejected")

// fakeConv implements the parts of core.Conversation these components touch.
type fakeConv struct {
	core.Conversation
	ev core.Listeners

	name     domain.ConversationName
	joined   bool
	contacts []domain.Contact
	sent     []string
	sendErr  error
}

func newConv(name string, contacts ...domain.Contact) *fakeConv {
	return &fakeConv{name: domain.ConversationName(name), contacts: contacts}
}

func (c *fakeConv) On(n core.EventName, fn core.Handler) core.ListenerID { return c.ev.On(n, fn) }
func (c *fakeConv) Off(id core.ListenerID)                               { c.ev.Off(id) }
func (c *fakeConv) Name() domain.ConversationName                        { return c.name }
func (c *fakeConv) IsJoined() bool                                       { return c.joined }
func (c *fakeConv) Contacts() []domain.Contact                           { return c.contacts }

func (c *fakeConv) Join(context.Context) error {
	c.joined = true
	c.ev.Emit(core.EventJoined, nil)
	return nil
}

func (c *fakeConv) Leave(context.Context) error {
	c.joined = false
	c.ev.Emit(core.EventLeft, nil)
	return nil
}

func (c *fakeConv) SendMessage(_ context.Context, content string) error {
	if c.sendErr != nil {
		return c.sendErr
	}
	c.sent = append(c.sent, content)
	return nil
}

func contact(id, name string) domain.Contact {
	return domain.Contact{ID: domain.ContactID(id), Username: name}
}

func TestMembership_SeedsAndMirrorsContacts(t *testing.T) {
	req := require.New(t)
	alice, bob := contact("a", "alice"), contact("b", "bob")
	conv := newConv("room", alice)
	m := NewMembership(zerolog.Nop())

	// Given a conversation that already holds alice
	m.SetConversation(conv)
	req.Equal([]domain.Contact{alice}, m.Contacts().Get())
	req.False(m.Joined().Get())

	// When bob joins, alice joins again, then alice leaves
	conv.ev.Emit(core.EventContactJoined, bob)
	conv.ev.Emit(core.EventContactJoined, alice)
	conv.ev.Emit(core.EventContactLeft, alice)

	// Then only bob is left
	req.Equal([]domain.Contact{bob}, m.Contacts().Get())
}

func TestMembership_JoinLeave(t *testing.T) {
	req := require.New(t)
	conv := newConv("room")
	m := NewMembership(zerolog.Nop())
	m.SetConversation(conv)

	req.NoError(m.Join(context.Background()))
	req.True(m.Joined().Get())
	conv.ev.Emit(core.EventContactJoined, contact("b", "bob"))
	req.Len(m.Contacts().Get(), 1)

	req.NoError(m.Leave(context.Background()))
	req.False(m.Joined().Get())
	req.Empty(m.Contacts().Get())
}

func TestMembership_NoConversation(t *testing.T) {
	req := require.New(t)
	m := NewMembership(zerolog.Nop())

	req.ErrorIs(m.Join(context.Background()), core.ErrNoConversation)
	req.ErrorIs(m.Leave(context.Background()), core.ErrNoConversation)
}

func TestMembership_SwapUnbindsPrevious(t *testing.T) {
	req := require.New(t)
	first, second := newConv("one"), newConv("two")
	m := NewMembership(zerolog.Nop())

	m.SetConversation(first)
	m.SetConversation(second)

	req.Zero(first.ev.Count(core.EventContactJoined))
	first.ev.Emit(core.EventContactJoined, contact("x", "x"))
	req.Empty(m.Contacts().Get())

	m.Close()
	req.Zero(second.ev.Count(core.EventJoined))
}

func TestMessages_MirrorsAndEchoes(t *testing.T) {
	req := require.New(t)
	self, bob := contact("me", "me"), contact("b", "bob")
	at := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	conv := newConv("room")
	m := NewMessages(zerolog.Nop(), self)
	m.now = func() time.Time { return at }
	m.SetConversation(conv)

	conv.ev.Emit(core.EventMessage, domain.NewMessage(bob, "hi", at))
	req.NoError(m.Send(context.Background(), "hello"))

	got := m.List().Get()
	req.Len(got, 2)
	req.Equal("hi", got[0].Content)
	req.Equal(self, got[1].Sender)
	req.Equal("hello", got[1].Content)
	req.Equal([]string{"hello"}, conv.sent)
}

func TestMessages_FailedSendIsNotEchoed(t *testing.T) {
	req := require.New(t)
	conv := newConv("room")
	conv.sendErr = errRejected
	m := NewMessages(zerolog.Nop(), contact("me", "me"))
	m.SetConversation(conv)

	err := m.Send(context.Background(), "hello")

	req.ErrorIs(err, errRejected)
	req.Empty(m.List().Get())
}

func TestMessages_NoConversation(t *testing.T) {
	m := NewMessages(zerolog.Nop(), contact("me", "me"))
	require.ErrorIs(t, m.Send(context.Background(), "x"), core.ErrNoConversation)
}

func TestMessages_SwapClearsHistory(t *testing.T) {
	req := require.New(t)
	first, second := newConv("one"), newConv("two")
	m := NewMessages(zerolog.Nop(), contact("me", "me"))

	m.SetConversation(first)
	first.ev.Emit(core.EventMessage, domain.NewMessage(contact("b", "bob"), "hi", time.Now()))
	req.Len(m.List().Get(), 1)

	m.SetConversation(second)
	first.ev.Emit(core.EventMessage, domain.NewMessage(contact("b", "bob"), "late", time.Now()))
	req.Empty(m.List().Get())
}

func TestMessages_ConcurrentDeliveriesAllKept(t *testing.T) {
	req := require.New(t)
	bob := contact("b", "bob")
	conv := newConv("room")
	m := NewMessages(zerolog.Nop(), contact("me", "me"))
	m.SetConversation(conv)

	var wg sync.WaitGroup
	for i := range 32 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			conv.ev.Emit(core.EventMessage, domain.NewMessage(bob, fmt.Sprint(i), time.Now()))
		}()
	}
	wg.Wait()

	req.Len(m.List().Get(), 32)
}

func TestMembership_ConcurrentJoinsAllKept(t *testing.T) {
	req := require.New(t)
	conv := newConv("room")
	m := NewMembership(zerolog.Nop())
	m.SetConversation(conv)

	var wg sync.WaitGroup
	for i := range 32 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			id := fmt.Sprintf("c%d", i)
			conv.ev.Emit(core.EventContactJoined, contact(id, id))
		}()
	}
	wg.Wait()

	req.Len(m.Contacts().Get(), 32)
}
