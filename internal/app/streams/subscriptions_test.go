package streams

import (
	"fmt"
	"sync"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/dkeye/voicestate/internal/core"
)

func TestSubscriptions_BackfillOnAttach(t *testing.T) {
	req := require.New(t)
	conv := newFakeConversation("room")
	conv.available = []core.StreamInfo{
		{StreamID: "r1", IsRemote: true},
		{StreamID: "l1", IsRemote: false},
		{StreamID: "r2", IsRemote: true},
	}
	m := NewManager(zerolog.Nop())
	t.Cleanup(m.Close)

	m.SetConversation(conv)

	req.Equal([]string{"subscribe:r1", "subscribe:r2"}, conv.Calls())
}

func TestSubscriptions_StreamListChangedDrivesCalls(t *testing.T) {
	req := require.New(t)
	m, conv := joinedManager(t)

	conv.Emit(core.EventStreamListChanged, core.StreamInfo{StreamID: "r1", IsRemote: true, ListEventType: core.ListAdded})
	conv.Emit(core.EventStreamListChanged, core.StreamInfo{StreamID: "l1", IsRemote: false, ListEventType: core.ListAdded})
	conv.Emit(core.EventStreamListChanged, core.StreamInfo{StreamID: "r1", IsRemote: true, ListEventType: core.ListRemoved})

	req.Equal([]string{"subscribe:r1", "unsubscribe:r1"}, conv.Calls())
	// streamListChanged never touches the subscribed list itself
	req.Empty(m.Subscribed().Get())
}

func TestSubscriptions_AddedAndRemovedMirrorList(t *testing.T) {
	req := require.New(t)
	m, conv := joinedManager(t)
	r1, r2 := newRemoteStream("r1"), newRemoteStream("r2")

	conv.Emit(core.EventStreamAdded, core.Stream(r1))
	first := m.Subscribed().Get()
	conv.Emit(core.EventStreamAdded, core.Stream(r2))
	req.Equal([]string{"r1", "r2"}, ids(m.Subscribed().Get()))
	req.Equal([]string{"r1"}, ids(first))

	conv.Emit(core.EventStreamRemoved, core.Stream(r1))
	req.Equal([]string{"r2"}, ids(m.Subscribed().Get()))
}

func TestSubscriptions_RemovingUntrackedStreamLeavesListUnchanged(t *testing.T) {
	req := require.New(t)
	m, conv := joinedManager(t)
	r1 := newRemoteStream("r1")
	conv.Emit(core.EventStreamAdded, core.Stream(r1))
	before := m.Subscribed().Version()

	// Same id, different reference
	conv.Emit(core.EventStreamRemoved, core.Stream(newRemoteStream("r1")))

	req.Equal([]string{"r1"}, ids(m.Subscribed().Get()))
	req.Equal(before, m.Subscribed().Version())
}

func TestManager_DetachUnsubscribesAndUnbinds(t *testing.T) {
	req := require.New(t)
	m, conv := joinedManager(t)
	a := newStream("A")
	m.SetDesired(slots(a))
	m.Wait()
	conv.Emit(core.EventStreamAdded, core.Stream(newRemoteStream("r1")))
	conv.Calls()

	m.SetConversation(nil)

	req.ElementsMatch([]string{"unpublish:A", "unsubscribe:r1"}, conv.Calls())
	req.Empty(m.Published().Get())
	req.Empty(m.Subscribed().Get())
	for _, name := range []core.EventName{core.EventJoined, core.EventLeft, core.EventStreamAdded, core.EventStreamRemoved, core.EventStreamListChanged} {
		req.Zero(conv.Count(name), name)
	}
}

func TestManager_SwapIgnoresPreviousConversation(t *testing.T) {
	req := require.New(t)
	m, first := joinedManager(t)
	second := newFakeConversation("other")
	second.joined = true
	a := newStream("A")

	m.SetDesired(slots(a))
	m.Wait()
	first.Calls()

	m.SetConversation(second)
	m.Wait()

	req.Equal([]string{"unpublish:A"}, first.Calls())
	req.Equal([]string{"publish:A"}, second.Calls())

	first.Emit(core.EventStreamAdded, core.Stream(newRemoteStream("stale")))
	req.Empty(m.Subscribed().Get())
	req.Equal([]string{"A"}, ids(m.Published().Get()))
}

func TestSubscriptions_ConcurrentAddsAllPublished(t *testing.T) {
	req := require.New(t)
	m, conv := joinedManager(t)

	var wg sync.WaitGroup
	for i := range 32 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			conv.Emit(core.EventStreamAdded, core.Stream(newRemoteStream(fmt.Sprintf("r%d", i))))
		}()
	}
	wg.Wait()

	req.Len(m.Subscribed().Get(), 32)
}

func TestSubscriptions_ResetAfterAddsPublishesEmpty(t *testing.T) {
	req := require.New(t)
	m, conv := joinedManager(t)

	var wg sync.WaitGroup
	for i := range 16 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			conv.Emit(core.EventStreamAdded, core.Stream(newRemoteStream(fmt.Sprintf("r%d", i))))
		}()
	}
	wg.Wait()
	conv.leave()

	req.Empty(m.Subscribed().Get())
}
