package streams

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/dkeye/voicestate/internal/core"
	"github.com/dkeye/voicestate/internal/domain"
)

var errBoom = errors.New("boom")

type fakeStream struct {
	id     domain.StreamID
	remote bool
}

func newStream(id string) *fakeStream { return &fakeStream{id: domain.StreamID(id)} }
func newRemoteStream(id string) *fakeStream {
	return &fakeStream{id: domain.StreamID(id), remote: true}
}

func (s *fakeStream) ID() domain.StreamID         { return s.id }
func (s *fakeStream) IsRemote() bool              { return s.remote }
func (s *fakeStream) ContactID() domain.ContactID { return "" }
func (s *fakeStream) ApplyAudioProcessor(context.Context, core.AudioProcessor) (core.Stream, error) {
	return nil, core.ErrUnknownProcessor
}
func (s *fakeStream) ApplyVideoProcessor(context.Context, core.VideoProcessor, *core.VideoProcessorOptions) (core.Stream, error) {
	return nil, core.ErrUnknownProcessor
}
func (s *fakeStream) AudioProcessor() core.AudioProcessor { return core.AudioProcessorNone }
func (s *fakeStream) VideoProcessor() core.VideoProcessor { return core.VideoProcessorNone }
func (s *fakeStream) Release()                            {}

// fakeConversation records every SDK call as "op:args".
type fakeConversation struct {
	core.Listeners

	mu         sync.Mutex
	name       domain.ConversationName
	joined     bool
	published  map[domain.StreamID]bool
	calls      []string
	publishErr map[domain.StreamID]error
	replaceErr map[domain.StreamID]error
	gates      map[domain.StreamID]chan struct{}
	available  []core.StreamInfo
}

func newFakeConversation(name string) *fakeConversation {
	return &fakeConversation{
		name:       domain.ConversationName(name),
		published:  make(map[domain.StreamID]bool),
		publishErr: make(map[domain.StreamID]error),
		replaceErr: make(map[domain.StreamID]error),
		gates:      make(map[domain.StreamID]chan struct{}),
	}
}

func (c *fakeConversation) record(format string, args ...any) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.calls = append(c.calls, fmt.Sprintf(format, args...))
}

// Calls returns and forgets the recorded calls.
func (c *fakeConversation) Calls() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := c.calls
	c.calls = nil
	return out
}

// gate makes Publish and ReplacePublishedStream of id block until the returned func is called.
func (c *fakeConversation) gate(id string) func() {
	ch := make(chan struct{})
	c.mu.Lock()
	c.gates[domain.StreamID(id)] = ch
	c.mu.Unlock()
	return func() { close(ch) }
}

func (c *fakeConversation) wait(id domain.StreamID) {
	c.mu.Lock()
	ch := c.gates[id]
	c.mu.Unlock()
	if ch != nil {
		<-ch
	}
}

func (c *fakeConversation) join() {
	c.mu.Lock()
	c.joined = true
	c.mu.Unlock()
	c.Emit(core.EventJoined, nil)
}

func (c *fakeConversation) leave() {
	c.mu.Lock()
	c.joined = false
	c.mu.Unlock()
	c.Emit(core.EventLeft, nil)
}

func (c *fakeConversation) Name() domain.ConversationName { return c.name }

func (c *fakeConversation) IsJoined() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.joined
}

func (c *fakeConversation) Join(context.Context) error  { c.join(); return nil }
func (c *fakeConversation) Leave(context.Context) error { c.leave(); return nil }

func (c *fakeConversation) Publish(_ context.Context, s core.Stream, _ *core.PublishOptions) (core.Stream, error) {
	c.record("publish:%s", s.ID())
	c.wait(s.ID())
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.publishErr[s.ID()]; err != nil {
		return nil, err
	}
	c.published[s.ID()] = true
	return s, nil
}

func (c *fakeConversation) Unpublish(s core.Stream) {
	c.record("unpublish:%s", s.ID())
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.published, s.ID())
}

type fakeCall struct {
	conv *fakeConversation
	old  core.Stream
}

func (f fakeCall) ReplacePublishedStream(_ context.Context, next core.Stream) (core.Stream, error) {
	c := f.conv
	c.record("replace:%s->%s", f.old.ID(), next.ID())
	c.wait(next.ID())
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.replaceErr[next.ID()]; err != nil {
		return nil, err
	}
	delete(c.published, f.old.ID())
	c.published[next.ID()] = true
	return next, nil
}

func (c *fakeConversation) Call(s core.Stream) (core.Call, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.published[s.ID()] {
		return nil, false
	}
	return fakeCall{conv: c, old: s}, true
}

func (c *fakeConversation) IsPublishedStream(s core.Stream) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.published[s.ID()]
}

func (c *fakeConversation) SubscribeToStream(id domain.StreamID, _ *core.SubscribeOptions) error {
	c.record("subscribe:%s", id)
	return nil
}

func (c *fakeConversation) UnsubscribeToStream(id domain.StreamID) {
	c.record("unsubscribe:%s", id)
}

func (c *fakeConversation) AvailableStreams() []core.StreamInfo {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]core.StreamInfo(nil), c.available...)
}

func (c *fakeConversation) Contacts() []domain.Contact                { return nil }
func (c *fakeConversation) SendMessage(context.Context, string) error { return nil }
func (c *fakeConversation) AllowEntry(domain.ContactID)               {}
func (c *fakeConversation) DenyEntry(domain.ContactID, string)        {}

type recordingMetrics struct {
	mu  sync.Mutex
	ops map[string]int
}

func (m *recordingMetrics) ObserveOperation(op string, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.ops == nil {
		m.ops = make(map[string]int)
	}
	if err != nil {
		op += "_error"
	}
	m.ops[op]++
}

func ids(list []core.Stream) []string {
	out := make([]string, 0, len(list))
	for _, s := range list {
		if s == nil {
			out = append(out, "")
			continue
		}
		out = append(out, string(s.ID()))
	}
	return out
}

func slots(streams ...core.Stream) []*Slot {
	out := make([]*Slot, len(streams))
	for i, s := range streams {
		if s != nil {
			out[i] = &Slot{Stream: s}
		}
	}
	return out
}
