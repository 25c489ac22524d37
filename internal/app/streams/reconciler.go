package streams

import (
	"context"
	"fmt"
	"slices"
	"sync"

	"github.com/rs/zerolog"
	"github.com/sourcegraph/conc"

	"github.com/dkeye/voicestate/internal/app/state"
	"github.com/dkeye/voicestate/internal/core"
)

// Reconciler converges a conversation's published streams to a desired
// positional list. Position i of the desired list maps to position i of
// the cache, whatever stream sits there.
//
// At most one publish or replace is in flight per position. A completion
// that lands after the position's intent changed triggers another pass.
// Completions issued before a leave or detach are dropped.
//
// Swapping two published positions replaces each with a stream published
// at the other one; backends that reject that keep the old order.
type Reconciler struct {
	log zerolog.Logger
	cfg settings
	wg  conc.WaitGroup

	mu      sync.Mutex
	conv    core.Conversation
	epoch   uint64
	desired []*Slot
	cache   []core.Stream
	// busy maps a position to the stream an in-flight operation targets.
	busy   map[int]core.Stream
	manual []core.Stream

	emitMu    sync.Mutex
	published *state.Value[[]core.Stream]
}

func NewReconciler(log zerolog.Logger, opts ...Option) *Reconciler {
	return &Reconciler{
		log:       log.With().Str("module", "streams.reconciler").Logger(),
		cfg:       newSettings(opts),
		busy:      make(map[int]core.Stream),
		published: state.NewValue[[]core.Stream](nil),
	}
}

// Published is the observable list of streams this reconciler has published.
// Observers are called synchronously and must not call back into the Reconciler.
func (r *Reconciler) Published() *state.Value[[]core.Stream] { return r.published }

// Cache returns a copy of the positional cache; nil entries are empty positions.
func (r *Reconciler) Cache() []core.Stream {
	r.mu.Lock()
	defer r.mu.Unlock()
	return slices.Clone(r.cache)
}

// SetDesired snapshots slots and runs a pass when the conversation is joined.
// Every call runs a pass, so positions whose previous attempt failed are retried.
// A stream occupies at most one position: later repeats are treated as empty.
func (r *Reconciler) SetDesired(slots []*Slot) {
	r.mu.Lock()
	r.desired = uniqueSlots(slots)
	r.mu.Unlock()
	r.Reconcile()
}

func uniqueSlots(slots []*Slot) []*Slot {
	out := slices.Clone(slots)
	for i, s := range out {
		if s.stream() == nil {
			continue
		}
		if slices.ContainsFunc(out[:i], func(prev *Slot) bool { return sameStream(prev.stream(), s.stream()) }) {
			out[i] = nil
		}
	}
	return out
}

// Reconcile runs one pass against the current desired list.
func (r *Reconciler) Reconcile() {
	r.mu.Lock()
	conv := r.conv
	if conv == nil || !conv.IsJoined() {
		r.mu.Unlock()
		return
	}
	actions := r.planLocked(conv)
	r.mu.Unlock()

	r.emit()
	for _, act := range actions {
		act()
	}
}

// planLocked computes the pass, updates the cache for synchronous outcomes
// and returns the SDK calls to issue once the lock is released.
func (r *Reconciler) planLocked(conv core.Conversation) []func() {
	n := max(len(r.cache), len(r.desired))
	for i := range r.busy {
		n = max(n, i+1)
	}

	next := make([]core.Stream, n)
	var actions []func()
	epoch := r.epoch
	for i := 0; i < n; i++ {
		cur := at(r.cache, i)
		want := r.desiredAt(i)

		if _, inFlight := r.busy[i]; inFlight {
			next[i] = cur
			continue
		}

		switch {
		case cur != nil && want != nil && !sameStream(cur, want):
			next[i] = cur
			r.busy[i] = want
			actions = append(actions, r.replaceAction(conv, epoch, i, cur, want))
		case cur != nil && want != nil:
			next[i] = cur
		case cur != nil:
			actions = append(actions, r.unpublishAction(conv, cur))
		case want != nil:
			r.busy[i] = want
			actions = append(actions, r.publishAction(conv, epoch, i, want, r.desired[i].Options))
		}
	}
	r.cache = trimNil(next)
	return actions
}

func (r *Reconciler) replaceAction(conv core.Conversation, epoch uint64, i int, old, next core.Stream) func() {
	return func() {
		r.wg.Go(func() {
			err := r.replace(conv, old, next)
			r.complete(epoch, i, next, err)
		})
	}
}

func (r *Reconciler) replace(conv core.Conversation, old, next core.Stream) error {
	call, ok := conv.Call(old)
	if !ok {
		err := fmt.Errorf("replace %s: %w", old.ID(), core.ErrNotPublished)
		r.cfg.metrics.ObserveOperation(OpReplace, err)
		return err
	}
	_, err := call.ReplacePublishedStream(context.Background(), next)
	r.cfg.metrics.ObserveOperation(OpReplace, err)
	if err != nil {
		return fmt.Errorf("replace %s with %s: %w", old.ID(), next.ID(), err)
	}
	r.log.Debug().Str("old", string(old.ID())).Str("new", string(next.ID())).Msg("replaced published stream")
	return nil
}

func (r *Reconciler) publishAction(conv core.Conversation, epoch uint64, i int, s core.Stream, opts *core.PublishOptions) func() {
	return func() {
		r.wg.Go(func() {
			err := r.publish(conv, s, opts)
			r.complete(epoch, i, s, err)
		})
	}
}

func (r *Reconciler) publish(conv core.Conversation, s core.Stream, opts *core.PublishOptions) error {
	// Leave/rejoin clears the cache while the SDK may still report the stream published.
	if conv.IsPublishedStream(s) {
		r.log.Debug().Str("stream", string(s.ID())).Msg("already published")
		return nil
	}
	_, err := conv.Publish(context.Background(), s, opts)
	r.cfg.metrics.ObserveOperation(OpPublish, err)
	if err != nil {
		return fmt.Errorf("publish %s: %w", s.ID(), err)
	}
	r.log.Debug().Str("stream", string(s.ID())).Msg("published stream")
	return nil
}

func (r *Reconciler) unpublishAction(conv core.Conversation, s core.Stream) func() {
	return func() {
		conv.Unpublish(s)
		r.cfg.metrics.ObserveOperation(OpUnpublish, nil)
		r.log.Debug().Str("stream", string(s.ID())).Msg("unpublished stream")
	}
}

// complete records the outcome of the operation that targeted position i.
func (r *Reconciler) complete(epoch uint64, i int, target core.Stream, err error) {
	r.mu.Lock()
	if epoch != r.epoch {
		r.mu.Unlock()
		r.log.Debug().Str("stream", string(target.ID())).Msg("dropping completion from a previous conversation state")
		return
	}
	delete(r.busy, i)
	if err == nil {
		r.cache = splice(r.cache, i, target)
	}
	rerun := !sameStream(r.desiredAt(i), target)
	r.mu.Unlock()

	if err != nil {
		r.report(err)
	} else {
		r.emit()
	}
	if rerun {
		r.Reconcile()
	}
}

// Publish publishes s outside the desired list.
func (r *Reconciler) Publish(ctx context.Context, s core.Stream, opts *core.PublishOptions) (core.Stream, error) {
	if s == nil {
		return nil, core.ErrNoStream
	}
	conv := r.conversation()
	if conv == nil {
		return nil, core.ErrNoConversation
	}
	res, err := conv.Publish(ctx, s, opts)
	r.cfg.metrics.ObserveOperation(OpPublish, err)
	if err != nil {
		return nil, fmt.Errorf("publish %s: %w", s.ID(), err)
	}

	r.mu.Lock()
	if r.conv != conv {
		r.mu.Unlock()
		return res, nil
	}
	if !slices.ContainsFunc(r.manual, func(m core.Stream) bool { return sameStream(m, s) }) {
		r.manual = append(slices.Clip(r.manual), s)
	}
	r.mu.Unlock()

	r.emit()
	return res, nil
}

// Unpublish withdraws s whether it came from the desired list or from Publish.
// A desired-list stream is published again by the next pass.
func (r *Reconciler) Unpublish(s core.Stream) error {
	if s == nil {
		return core.ErrNoStream
	}
	conv := r.conversation()
	if conv == nil {
		return core.ErrNoConversation
	}
	conv.Unpublish(s)
	r.cfg.metrics.ObserveOperation(OpUnpublish, nil)

	r.mu.Lock()
	r.manual = slices.DeleteFunc(slices.Clone(r.manual), func(m core.Stream) bool { return sameStream(m, s) })
	for i, c := range r.cache {
		if sameStream(c, s) {
			r.cache = splice(r.cache, i, nil)
		}
	}
	r.mu.Unlock()

	r.emit()
	return nil
}

// ReplacePublishedStream swaps old for next on the call publishing old.
func (r *Reconciler) ReplacePublishedStream(ctx context.Context, old, next core.Stream) (core.Stream, error) {
	if old == nil || next == nil {
		return nil, core.ErrNoStream
	}
	conv := r.conversation()
	if conv == nil {
		return nil, core.ErrNoConversation
	}
	call, ok := conv.Call(old)
	if !ok {
		return nil, fmt.Errorf("replace %s: %w", old.ID(), core.ErrNotPublished)
	}
	res, err := call.ReplacePublishedStream(ctx, next)
	r.cfg.metrics.ObserveOperation(OpReplace, err)
	if err != nil {
		return nil, fmt.Errorf("replace %s with %s: %w", old.ID(), next.ID(), err)
	}

	r.mu.Lock()
	if r.conv == conv {
		r.manual = slices.Clone(r.manual)
		for i, m := range r.manual {
			if sameStream(m, old) {
				r.manual[i] = next
			}
		}
		for i, c := range r.cache {
			if sameStream(c, old) {
				r.cache = splice(r.cache, i, next)
			}
		}
	}
	r.mu.Unlock()

	r.emit()
	return res, nil
}

// attach binds conv and runs a pass if it is already joined.
func (r *Reconciler) attach(conv core.Conversation) {
	r.mu.Lock()
	r.conv = conv
	r.epoch++
	r.mu.Unlock()
	r.Reconcile()
}

// reset unpublishes everything this reconciler published on conv and
// clears the cache, so the next pass starts from a blank slate.
// detach additionally forgets conv.
func (r *Reconciler) reset(conv core.Conversation, detach bool) {
	r.mu.Lock()
	if r.conv != conv {
		r.mu.Unlock()
		return
	}
	toUnpublish := compact(r.cache)
	for _, m := range r.manual {
		if !slices.ContainsFunc(toUnpublish, func(s core.Stream) bool { return sameStream(s, m) }) {
			toUnpublish = append(toUnpublish, m)
		}
	}
	r.cache = nil
	r.manual = nil
	r.busy = make(map[int]core.Stream)
	r.epoch++
	if detach {
		r.conv = nil
	}
	r.mu.Unlock()

	if conv != nil {
		for _, s := range toUnpublish {
			conv.Unpublish(s)
			r.cfg.metrics.ObserveOperation(OpUnpublish, nil)
		}
	}
	r.emit()
	r.log.Debug().Int("unpublished", len(toUnpublish)).Bool("detach", detach).Msg("reset")
}

// Wait blocks until every in-flight publish and replace has completed.
func (r *Reconciler) Wait() { r.wg.Wait() }

func (r *Reconciler) conversation() core.Conversation {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.conv
}

func (r *Reconciler) desiredAt(i int) core.Stream {
	if i >= len(r.desired) {
		return nil
	}
	return r.desired[i].stream()
}

// snapshotLocked is the output list: cache order first, then manual publications.
func (r *Reconciler) snapshotLocked() []core.Stream {
	out := compact(r.cache)
	for _, m := range r.manual {
		if !slices.ContainsFunc(out, func(s core.Stream) bool { return sameStream(s, m) }) {
			out = append(out, m)
		}
	}
	if len(out) == 0 {
		return nil
	}
	return out
}

// emit publishes the current output list unless it holds the same streams
// as the last snapshot. emitMu keeps snapshots in state order.
func (r *Reconciler) emit() {
	r.emitMu.Lock()
	defer r.emitMu.Unlock()
	r.mu.Lock()
	out := r.snapshotLocked()
	r.mu.Unlock()
	if slices.EqualFunc(r.published.Get(), out, sameStream) {
		return
	}
	r.published.Set(out)
}

func (r *Reconciler) report(err error) {
	if r.cfg.onError != nil {
		r.cfg.onError(err)
		return
	}
	r.log.Warn().Err(err).Msg("stream operation failed")
}

func at(list []core.Stream, i int) core.Stream {
	if i >= len(list) {
		return nil
	}
	return list[i]
}

// splice returns a copy of list with position i set to s, growing it as needed.
func splice(list []core.Stream, i int, s core.Stream) []core.Stream {
	out := make([]core.Stream, max(len(list), i+1))
	copy(out, list)
	out[i] = s
	return trimNil(out)
}

func trimNil(list []core.Stream) []core.Stream {
	end := len(list)
	for end > 0 && list[end-1] == nil {
		end--
	}
	if end == 0 {
		return nil
	}
	return list[:end]
}

func compact(list []core.Stream) []core.Stream {
	out := make([]core.Stream, 0, len(list))
	for _, s := range list {
		if s != nil {
			out = append(out, s)
		}
	}
	return out
}
