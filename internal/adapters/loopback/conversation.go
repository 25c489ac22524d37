package loopback

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"sync"

	"github.com/dkeye/voicestate/internal/core"
	"github.com/dkeye/voicestate/internal/domain"
)

var (
	ErrOwnStream      = errors.New("cannot subscribe to own stream")
	ErrUnknownContact = errors.New("contact not in conversation")
)

type publication struct {
	stream *Stream
	owner  *Conversation
	opts   core.PublishOptions
}

func (p *publication) info(t core.ListEventType) core.StreamInfo {
	return core.StreamInfo{StreamID: p.stream.id, IsRemote: true, ListEventType: t, ContactID: p.owner.sess.id}
}

type waiter struct {
	conv *Conversation
	done chan error
}

// room is the state shared by every participant of a conversation.
type room struct {
	hub       *Hub
	name      domain.ConversationName
	moderated bool
	relays    *RelayManager

	mu      sync.Mutex
	members []*Conversation
	waiting map[domain.ContactID]*waiter
	pubs    []*publication
}

func newRoom(h *Hub, name domain.ConversationName, moderated bool) *room {
	return &room{
		hub:       h,
		name:      name,
		moderated: moderated,
		relays:    NewRelayManager(h.log),
		waiting:   make(map[domain.ContactID]*waiter),
	}
}

func (r *room) info() RoomInfo {
	r.mu.Lock()
	defer r.mu.Unlock()
	return RoomInfo{
		Name:      r.name,
		Members:   len(r.members),
		Waiting:   len(r.waiting),
		Streams:   len(r.pubs),
		Moderated: r.moderated,
	}
}

// notes collects deliveries while room.mu is held; they are posted after unlock.
type notes []func()

func (n *notes) add(to *Conversation, name core.EventName, payload any) {
	*n = append(*n, to.room.hub.emit(&to.ev, name, payload))
}

func (r *room) enterLocked(c *Conversation, n *notes) {
	c.joined = true
	c.subs = make(map[domain.StreamID]*OutTrack)
	self := c.sess.Self()
	n.add(c, core.EventJoined, nil)
	for _, m := range r.members {
		n.add(c, core.EventContactJoined, m.sess.Self())
		n.add(m, core.EventContactJoined, self)
	}
	for _, p := range r.pubs {
		n.add(c, core.EventStreamListChanged, p.info(core.ListAdded))
	}
	r.members = append(r.members, c)
}

func (r *room) leaveLocked(c *Conversation, n *notes) {
	c.joined = false
	r.members = slices.DeleteFunc(slices.Clone(r.members), func(m *Conversation) bool { return m == c })
	for _, p := range slices.Clone(r.pubs) {
		if p.owner == c {
			r.unpublishLocked(p, n)
		}
	}
	for id := range c.subs {
		r.relays.Unsubscribe(id, c.sess.id)
	}
	c.subs = nil
	self := c.sess.Self()
	for _, m := range r.members {
		n.add(m, core.EventContactLeft, self)
	}
	n.add(c, core.EventLeft, nil)
}

func (r *room) unpublishLocked(p *publication, n *notes) {
	r.pubs = slices.DeleteFunc(slices.Clone(r.pubs), func(x *publication) bool { return x == p })
	r.relays.StopRelay(p.stream.id)
	info := p.info(core.ListRemoved)
	for _, m := range r.members {
		if m != p.owner {
			n.add(m, core.EventStreamListChanged, info)
		}
	}
}

func (r *room) pubOf(c *Conversation, s *Stream) *publication {
	for _, p := range r.pubs {
		if p.owner == c && p.stream == s {
			return p
		}
	}
	return nil
}

func (r *room) pubByID(id domain.StreamID) *publication {
	for _, p := range r.pubs {
		if p.stream.id == id {
			return p
		}
	}
	return nil
}

// dropWaiter removes c from the waiting room and hands cause to its pending
// Join, if any. It reports false when c was already admitted or denied.
func (r *room) dropWaiter(c *Conversation, cause error) bool {
	r.mu.Lock()
	w, ok := r.waiting[c.sess.id]
	if !ok || w.conv != c {
		r.mu.Unlock()
		return false
	}
	delete(r.waiting, c.sess.id)
	if cause != nil {
		w.done <- cause
	}
	var n notes
	self := c.sess.Self()
	for _, m := range r.members {
		n.add(m, core.EventContactLeftWaitingRoom, self)
	}
	r.mu.Unlock()
	r.hub.post(n...)
	return true
}

// Conversation is one session's handle on a room.
type Conversation struct {
	ev   core.Listeners
	room *room
	sess *Session

	// guarded by room.mu
	joined bool
	subs   map[domain.StreamID]*OutTrack
}

func (c *Conversation) On(name core.EventName, fn core.Handler) core.ListenerID {
	return c.ev.On(name, fn)
}

func (c *Conversation) Off(id core.ListenerID)        { c.ev.Off(id) }
func (c *Conversation) Name() domain.ConversationName { return c.room.name }

func (c *Conversation) IsJoined() bool {
	c.room.mu.Lock()
	defer c.room.mu.Unlock()
	return c.joined
}

// Join enters the room. In a moderated room that already has members it
// blocks in the waiting room until a member allows or denies entry.
func (c *Conversation) Join(ctx context.Context) error {
	if c.sess.isClosed() {
		return ErrDisconnected
	}
	r := c.room
	r.mu.Lock()
	if c.joined {
		r.mu.Unlock()
		return nil
	}
	if _, ok := r.waiting[c.sess.id]; ok {
		r.mu.Unlock()
		return ErrAlreadyWaits
	}

	var n notes
	if !r.moderated || len(r.members) == 0 {
		r.enterLocked(c, &n)
		r.mu.Unlock()
		r.hub.post(n...)
		r.hub.log.Info().Str("conversation", string(r.name)).Str("contact", string(c.sess.id)).Msg("joined")
		return nil
	}

	w := &waiter{conv: c, done: make(chan error, 1)}
	r.waiting[c.sess.id] = w
	self := c.sess.Self()
	for _, m := range r.members {
		n.add(m, core.EventContactJoinedWaitingRoom, self)
	}
	r.mu.Unlock()
	r.hub.post(n...)
	r.hub.log.Info().Str("conversation", string(r.name)).Str("contact", string(c.sess.id)).Msg("waiting for admission")

	select {
	case err := <-w.done:
		return err
	case <-ctx.Done():
		if r.dropWaiter(c, nil) {
			return ctx.Err()
		}
		return <-w.done
	}
}

// Leave exits the room, or the waiting room when entry is still pending.
func (c *Conversation) Leave(context.Context) error {
	r := c.room
	r.mu.Lock()
	if !c.joined {
		r.mu.Unlock()
		r.dropWaiter(c, context.Canceled)
		return nil
	}
	var n notes
	r.leaveLocked(c, &n)
	r.mu.Unlock()
	r.hub.post(n...)
	r.hub.log.Info().Str("conversation", string(r.name)).Str("contact", string(c.sess.id)).Msg("left")
	return nil
}

func (c *Conversation) Publish(ctx context.Context, s core.Stream, opts *core.PublishOptions) (core.Stream, error) {
	ls, err := localStream(s)
	if err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	r := c.room
	r.mu.Lock()
	if !c.joined {
		r.mu.Unlock()
		return nil, core.ErrNotJoined
	}
	if r.pubOf(c, ls) != nil {
		r.mu.Unlock()
		return ls, nil
	}
	p := &publication{stream: ls, owner: c}
	if opts != nil {
		p.opts = *opts
	}
	r.pubs = append(r.pubs, p)
	r.relays.StartRelay(ls, c.sess.id, p.opts)
	var n notes
	for _, m := range r.members {
		if m != c {
			n.add(m, core.EventStreamListChanged, p.info(core.ListAdded))
		}
	}
	r.mu.Unlock()
	r.hub.post(n...)
	return ls, nil
}

func (c *Conversation) Unpublish(s core.Stream) {
	ls, ok := s.(*Stream)
	if !ok {
		return
	}
	r := c.room
	r.mu.Lock()
	p := r.pubOf(c, ls)
	if p == nil {
		r.mu.Unlock()
		return
	}
	var n notes
	r.unpublishLocked(p, &n)
	r.mu.Unlock()
	r.hub.post(n...)
}

func (c *Conversation) Call(s core.Stream) (core.Call, bool) {
	ls, ok := s.(*Stream)
	if !ok {
		return nil, false
	}
	c.room.mu.Lock()
	defer c.room.mu.Unlock()
	if c.room.pubOf(c, ls) == nil {
		return nil, false
	}
	return &call{conv: c, stream: ls}, true
}

func (c *Conversation) IsPublishedStream(s core.Stream) bool {
	ls, ok := s.(*Stream)
	if !ok {
		return false
	}
	c.room.mu.Lock()
	defer c.room.mu.Unlock()
	return c.room.pubOf(c, ls) != nil
}

func (c *Conversation) SubscribeToStream(id domain.StreamID, opts *core.SubscribeOptions) error {
	r := c.room
	r.mu.Lock()
	if !c.joined {
		r.mu.Unlock()
		return core.ErrNotJoined
	}
	p := r.pubByID(id)
	if p == nil {
		r.mu.Unlock()
		return fmt.Errorf("stream %s: %w", id, core.ErrNoStream)
	}
	if p.owner == c {
		r.mu.Unlock()
		return fmt.Errorf("stream %s: %w", id, ErrOwnStream)
	}
	var n notes
	if prev, ok := c.subs[id]; ok {
		if prev.GetState() == TrackStateOk {
			r.mu.Unlock()
			return nil
		}
		n.add(c, core.EventStreamRemoved, core.Stream(prev.Stream))
	}
	ot, err := r.relays.Subscribe(id, c.sess.id, opts)
	if err != nil {
		r.mu.Unlock()
		return fmt.Errorf("stream %s: %w", id, err)
	}
	c.subs[id] = ot
	n.add(c, core.EventStreamAdded, core.Stream(ot.Stream))
	r.mu.Unlock()
	r.hub.post(n...)
	return nil
}

func (c *Conversation) UnsubscribeToStream(id domain.StreamID) {
	r := c.room
	r.mu.Lock()
	ot, ok := c.subs[id]
	if !ok {
		r.mu.Unlock()
		return
	}
	delete(c.subs, id)
	r.relays.Unsubscribe(id, c.sess.id)
	var n notes
	n.add(c, core.EventStreamRemoved, core.Stream(ot.Stream))
	r.mu.Unlock()
	r.hub.post(n...)
}

// AvailableStreams is empty until the conversation is joined.
func (c *Conversation) AvailableStreams() []core.StreamInfo {
	c.room.mu.Lock()
	defer c.room.mu.Unlock()
	if !c.joined {
		return nil
	}
	out := make([]core.StreamInfo, 0, len(c.room.pubs))
	for _, p := range c.room.pubs {
		info := p.info("")
		info.IsRemote = p.owner != c
		out = append(out, info)
	}
	return out
}

// Contacts returns the other members in join order.
func (c *Conversation) Contacts() []domain.Contact {
	c.room.mu.Lock()
	defer c.room.mu.Unlock()
	if !c.joined {
		return nil
	}
	out := make([]domain.Contact, 0, len(c.room.members))
	for _, m := range c.room.members {
		if m != c {
			out = append(out, m.sess.Self())
		}
	}
	return out
}

func (c *Conversation) SendMessage(ctx context.Context, content string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	r := c.room
	r.mu.Lock()
	if !c.joined {
		r.mu.Unlock()
		return core.ErrNotJoined
	}
	msg := domain.NewMessage(c.sess.Self(), content, r.hub.now())
	var n notes
	for _, m := range r.members {
		if m != c {
			n.add(m, core.EventMessage, msg)
		}
	}
	r.mu.Unlock()
	r.hub.post(n...)
	return nil
}

func (c *Conversation) AllowEntry(id domain.ContactID) {
	r := c.room
	r.mu.Lock()
	w, ok := r.waiting[id]
	if !c.joined || !ok {
		r.mu.Unlock()
		r.hub.log.Warn().Str("conversation", string(r.name)).Str("contact", string(id)).Msg("allow entry: nobody waiting")
		return
	}
	delete(r.waiting, id)
	var n notes
	guest := w.conv.sess.Self()
	for _, m := range r.members {
		n.add(m, core.EventContactLeftWaitingRoom, guest)
	}
	r.enterLocked(w.conv, &n)
	w.done <- nil
	r.mu.Unlock()
	r.hub.post(n...)
}

func (c *Conversation) DenyEntry(id domain.ContactID, reason string) {
	r := c.room
	r.mu.Lock()
	w, ok := r.waiting[id]
	if !c.joined || !ok {
		r.mu.Unlock()
		r.hub.log.Warn().Str("conversation", string(r.name)).Str("contact", string(id)).Msg("deny entry: nobody waiting")
		return
	}
	delete(r.waiting, id)
	var n notes
	guest := w.conv.sess.Self()
	for _, m := range r.members {
		n.add(m, core.EventContactLeftWaitingRoom, guest)
	}
	n.add(w.conv, core.EventParticipantEjected, core.Ejection{Contact: guest, Self: true, Reason: reason})
	w.done <- fmt.Errorf("%w: %s", ErrEntryDenied, reason)
	r.mu.Unlock()
	r.hub.post(n...)
}

// Eject removes another member. Every member, the ejected one included,
// receives participantEjected before the ejected one is made to leave.
func (c *Conversation) Eject(id domain.ContactID, reason string) error {
	r := c.room
	r.mu.Lock()
	if !c.joined {
		r.mu.Unlock()
		return core.ErrNotJoined
	}
	idx := slices.IndexFunc(r.members, func(m *Conversation) bool { return m.sess.id == id })
	if idx < 0 || r.members[idx] == c {
		r.mu.Unlock()
		return fmt.Errorf("eject %s: %w", id, ErrUnknownContact)
	}
	target := r.members[idx]
	contact := target.sess.Self()
	var n notes
	for _, m := range r.members {
		n.add(m, core.EventParticipantEjected, core.Ejection{Contact: contact, Self: m == target, Reason: reason})
	}
	r.leaveLocked(target, &n)
	r.mu.Unlock()
	r.hub.post(n...)
	r.hub.log.Info().Str("conversation", string(r.name)).Str("contact", string(id)).Str("reason", reason).Msg("ejected")
	return nil
}

type call struct {
	conv   *Conversation
	stream *Stream
}

// ReplacePublishedStream swaps the stream behind this call. Other members see
// the old stream removed and the new one added.
func (k *call) ReplacePublishedStream(ctx context.Context, next core.Stream) (core.Stream, error) {
	nls, err := localStream(next)
	if err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	c := k.conv
	r := c.room
	r.mu.Lock()
	p := r.pubOf(c, k.stream)
	if p == nil {
		r.mu.Unlock()
		return nil, core.ErrNotPublished
	}
	if nls == p.stream {
		r.mu.Unlock()
		return nls, nil
	}
	if r.pubOf(c, nls) != nil {
		r.mu.Unlock()
		return nil, fmt.Errorf("replace with %s: already published", nls.id)
	}
	removed := p.info(core.ListRemoved)
	r.relays.StopRelay(p.stream.id)
	p.stream = nls
	k.stream = nls
	r.relays.StartRelay(nls, c.sess.id, p.opts)
	added := p.info(core.ListAdded)
	var n notes
	for _, m := range r.members {
		if m != c {
			n.add(m, core.EventStreamListChanged, removed)
			n.add(m, core.EventStreamListChanged, added)
		}
	}
	r.mu.Unlock()
	r.hub.post(n...)
	return nls, nil
}

func localStream(s core.Stream) (*Stream, error) {
	ls, ok := s.(*Stream)
	if !ok || ls == nil {
		return nil, ErrForeignStream
	}
	if ls.remote {
		return nil, ErrRemoteStream
	}
	if ls.released.Load() {
		return nil, fmt.Errorf("stream %s: %w", ls.id, ErrReleased)
	}
	return ls, nil
}
