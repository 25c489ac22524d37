package orch

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/dkeye/voicestate/internal/adapters/loopback"
	"github.com/dkeye/voicestate/internal/app/processor"
	"github.com/dkeye/voicestate/internal/app/session"
	"github.com/dkeye/voicestate/internal/core"
	"github.com/dkeye/voicestate/internal/domain"
)

type fixture struct {
	t   *testing.T
	hub *loopback.Hub
}

func newFixture(t *testing.T) *fixture {
	return &fixture{t: t, hub: loopback.NewHub(zerolog.Nop(), loopback.Options{})}
}

func (f *fixture) user(name string) *Conference {
	f.t.Helper()
	c := New(zerolog.Nop(), f.hub.NewUserAgent())
	f.t.Cleanup(func() { c.Close(context.Background()) })
	require.NoError(f.t, c.Connect(context.Background(), session.LoginPassword{Username: name, Password: "pw"}))
	return c
}

// eventually settles every pending delivery and operation until cond holds.
func (f *fixture) eventually(cond func() bool, confs ...*Conference) {
	f.t.Helper()
	require.Eventually(f.t, func() bool {
		f.hub.Wait()
		for _, c := range confs {
			c.Wait()
		}
		f.hub.Wait()
		return cond()
	}, 2*time.Second, 5*time.Millisecond)
}

func (f *fixture) joined(name domain.ConversationName, confs ...*Conference) {
	f.t.Helper()
	for _, c := range confs {
		c.SetConversation(context.Background(), name, core.ConversationOptions{})
		require.NoError(f.t, c.Join(context.Background()))
	}
	f.eventually(func() bool {
		for _, c := range confs {
			if !c.Snapshot().Joined || len(c.Snapshot().Contacts) != len(confs)-1 {
				return false
			}
		}
		return true
	}, confs...)
}

func TestConference_ConnectAndDisconnect(t *testing.T) {
	req := require.New(t)
	f := newFixture(t)
	alice := f.user("alice")

	snap := alice.Snapshot()
	req.NotNil(snap.Self)
	req.Equal("alice", snap.Self.Username)
	req.Len(snap.Devices.VideoInput, 1)

	req.NoError(alice.Disconnect(context.Background()))
	req.Nil(alice.Snapshot().Self)
	req.ErrorIs(alice.Disconnect(context.Background()), core.ErrNoSession)
}

func TestConference_InvalidCredentials(t *testing.T) {
	f := newFixture(t)
	c := New(zerolog.Nop(), f.hub.NewUserAgent())
	defer c.Close(context.Background())

	err := c.Connect(context.Background(), session.LoginPassword{Username: "alice"})

	require.ErrorIs(t, err, core.ErrUnknownCredentials)
	require.Zero(t, f.hub.Sessions())
}

func TestConference_GroupsPresence(t *testing.T) {
	req := require.New(t)
	f := newFixture(t)
	alice, bob := f.user("alice"), f.user("bob")

	alice.SetGroups([]domain.GroupName{"team"})
	bob.SetGroups([]domain.GroupName{"team", "ops"})

	f.eventually(func() bool { return len(alice.Snapshot().Groups["team"]) == 1 }, alice, bob)
	req.Equal("bob", alice.Snapshot().Groups["team"][0].Username)
	req.Equal("alice", bob.Snapshot().Groups["team"][0].Username)
	req.Empty(bob.Snapshot().Groups["ops"])

	bob.SetGroups(nil)
	f.eventually(func() bool { return len(alice.Snapshot().Groups["team"]) == 0 }, alice, bob)
}

func TestConference_RequiresConversation(t *testing.T) {
	req := require.New(t)
	f := newFixture(t)
	alice := f.user("alice")
	ctx := context.Background()

	req.ErrorIs(alice.Join(ctx), core.ErrNoConversation)
	req.ErrorIs(alice.SendMessage(ctx, "hi"), core.ErrNoConversation)
	req.ErrorIs(alice.Allow("x"), core.ErrNoConversation)
	req.ErrorIs(alice.Eject("x", "r"), core.ErrNoConversation)
}

func TestConference_PublishAndSubscribe(t *testing.T) {
	req := require.New(t)
	f := newFixture(t)
	ctx := context.Background()
	alice, bob := f.user("alice"), f.user("bob")
	f.joined("room", alice, bob)

	// Given alice captures media and publishes it
	req.NoError(alice.StartMedia(ctx, core.StreamConstraints{Audio: true, Video: true}))
	alice.SetPublishing(true)

	// Then bob receives it
	f.eventually(func() bool { return len(bob.Snapshot().Subscribed) == 1 }, alice, bob)
	aliceID := alice.Snapshot().Self.ID
	got := bob.Snapshot().Subscribed[0]
	req.True(got.Remote)
	req.Equal(aliceID, got.ContactID)
	req.Equal(alice.Snapshot().Published[0].ID, got.ID)

	// When alice blurs her video, the published stream is replaced
	req.NoError(alice.SetVideoProcessor(processor.VideoMode{Processor: core.VideoProcessorBlur}))
	f.eventually(func() bool {
		pub := alice.Snapshot().Published
		sub := bob.Snapshot().Subscribed
		return len(pub) == 1 && pub[0].VideoProcessor == core.VideoProcessorBlur &&
			len(sub) == 1 && sub[0].VideoProcessor == core.VideoProcessorBlur
	}, alice, bob)
	req.Equal("blur", alice.Snapshot().Video.Applied)

	// When alice stops publishing, bob loses the stream
	alice.SetPublishing(false)
	f.eventually(func() bool {
		return len(alice.Snapshot().Published) == 0 && len(bob.Snapshot().Subscribed) == 0
	}, alice, bob)
}

func TestConference_ScreenShare(t *testing.T) {
	req := require.New(t)
	f := newFixture(t)
	ctx := context.Background()
	alice, bob := f.user("alice"), f.user("bob")
	f.joined("room", alice, bob)
	req.NoError(alice.StartMedia(ctx, core.StreamConstraints{Audio: true}))
	alice.SetPublishing(true)

	req.NoError(alice.StartScreenShare(ctx))
	f.eventually(func() bool { return len(bob.Snapshot().Subscribed) == 2 }, alice, bob)
	req.True(alice.Snapshot().ScreenShare)

	alice.StopScreenShare()
	f.eventually(func() bool { return len(bob.Snapshot().Subscribed) == 1 }, alice, bob)
	req.Len(alice.Snapshot().Published, 1)
}

func TestConference_RejectsUnknownProcessors(t *testing.T) {
	req := require.New(t)
	f := newFixture(t)
	alice := f.user("alice")
	req.NoError(alice.StartMedia(context.Background(), core.StreamConstraints{Audio: true, Video: true}))

	req.ErrorIs(alice.SetAudioProcessor("echo"), core.ErrUnknownProcessor)
	req.ErrorIs(alice.SetVideoProcessor(processor.VideoMode{Processor: core.VideoProcessorBackgroundImage}), core.ErrUnknownProcessor)
	req.Equal("none", alice.Snapshot().Video.Requested)

	req.NoError(alice.SetAudioProcessor(core.AudioProcessorNoiseReduction))
	f.eventually(func() bool { return alice.Snapshot().Audio.Applied == "noiseReduction" }, alice)
	req.Equal("noiseReduction", alice.Snapshot().Audio.Requested)
	req.Equal(core.AudioProcessorNone, alice.Snapshot().Camera.AudioProcessor)
}

func TestConference_Messages(t *testing.T) {
	req := require.New(t)
	f := newFixture(t)
	alice, bob := f.user("alice"), f.user("bob")
	f.joined("room", alice, bob)

	req.NoError(alice.SendMessage(context.Background(), "hello"))

	f.eventually(func() bool { return len(bob.Snapshot().Messages) == 1 }, alice, bob)
	req.Equal("alice", bob.Snapshot().Messages[0].Sender.Username)
	req.Len(alice.Snapshot().Messages, 1)
	req.Equal("hello", alice.Snapshot().Messages[0].Content)
}

func TestConference_WaitingRoom(t *testing.T) {
	req := require.New(t)
	f := newFixture(t)
	ctx := context.Background()
	alice, bob := f.user("alice"), f.user("bob")
	opts := core.ConversationOptions{Moderated: true}
	alice.SetConversation(ctx, "mod", opts)
	req.NoError(alice.Join(ctx))
	bob.SetConversation(ctx, "mod", opts)

	joined := make(chan error, 1)
	go func() { joined <- bob.Join(ctx) }()
	f.eventually(func() bool { return len(alice.Snapshot().Waiting) == 1 }, alice, bob)
	bobID := bob.Snapshot().Self.ID

	req.NoError(alice.Allow(bobID))

	req.NoError(<-joined)
	f.eventually(func() bool {
		return bob.Snapshot().Joined && len(alice.Snapshot().Waiting) == 0 && len(alice.Snapshot().Contacts) == 1
	}, alice, bob)
	req.True(alice.Snapshot().Moderated)
}

func TestConference_Eject(t *testing.T) {
	req := require.New(t)
	f := newFixture(t)
	alice, bob := f.user("alice"), f.user("bob")
	f.joined("room", alice, bob)

	req.NoError(alice.Eject(bob.Snapshot().Self.ID, "spam"))

	f.eventually(func() bool { return !bob.Snapshot().Joined && bob.Snapshot().Ejection != nil }, alice, bob)
	req.Equal("spam", bob.Snapshot().Ejection.Reason)
	req.True(bob.Snapshot().Ejection.Self)
	req.Nil(alice.Snapshot().Ejection)
	f.eventually(func() bool { return len(alice.Snapshot().Contacts) == 0 }, alice, bob)
}

func TestConference_SwitchConversationLeavesPrevious(t *testing.T) {
	req := require.New(t)
	f := newFixture(t)
	ctx := context.Background()
	alice, bob := f.user("alice"), f.user("bob")
	f.joined("room", alice, bob)

	bob.SetConversation(ctx, "other", core.ConversationOptions{})

	f.eventually(func() bool { return len(alice.Snapshot().Contacts) == 0 }, alice, bob)
	req.False(bob.Snapshot().Joined)
	req.Equal(domain.ConversationName("other"), bob.Snapshot().Conversation)
}

func TestConference_ChangesAdvance(t *testing.T) {
	f := newFixture(t)
	alice := f.user("alice")
	before := alice.Changes().Get()

	alice.SetPublishing(true)

	require.Greater(t, alice.Changes().Get(), before)
}

type stubUA struct {
	core.UserAgent
	devs *loopback.Devices
}

func (s stubUA) MediaDevices() core.MediaDevices { return s.devs }

func (s stubUA) CreateStream(context.Context, core.StreamConstraints) (core.Stream, error) {
	return nil, errors.New("camera busy")
}

func TestConference_StartMediaFailure(t *testing.T) {
	f := newFixture(t)
	c := New(zerolog.Nop(), stubUA{devs: f.hub.NewUserAgent().Devices()})
	defer c.Close(context.Background())

	err := c.StartMedia(context.Background(), core.StreamConstraints{Video: true})

	require.ErrorContains(t, err, "camera busy")
	require.Nil(t, c.Snapshot().Camera)
}
