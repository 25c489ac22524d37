// Package processor applies audio and video processors to a caller-owned
// stream and manages the lifetime of the derived stream.
package processor

import (
	"context"
	"fmt"
	"sync"

	"github.com/rs/zerolog"
	"github.com/sourcegraph/conc"

	"github.com/dkeye/voicestate/internal/app/state"
	"github.com/dkeye/voicestate/internal/core"
)

type Phase int

const (
	Idle Phase = iota
	Applying
	Applied
)

func (p Phase) String() string {
	switch p {
	case Applying:
		return "applying"
	case Applied:
		return "applied"
	default:
		return "idle"
	}
}

// Snapshot is what observers of a Toggle see.
type Snapshot[M comparable] struct {
	Output      core.Stream
	Phase       Phase
	AppliedMode M
	Err         error
}

func (s Snapshot[M]) Applying() bool { return s.Phase == Applying }

// Transform derives a new stream from in.
type Transform[M comparable] func(ctx context.Context, in core.Stream, mode M) (core.Stream, error)

// Toggle turns a (stream, mode) input into an output stream.
// The derived stream is owned by the Toggle and released once superseded;
// the input stream is never released.
type Toggle[M comparable] struct {
	log       zerolog.Logger
	onError   func(error)
	none      M
	transform Transform[M]
	appliedOf func(core.Stream) M
	wg        conc.WaitGroup

	mu      sync.Mutex
	input   core.Stream
	mode    M
	gen     uint64
	derived core.Stream
	snap    Snapshot[M]
	seq     uint64

	emitMu  sync.Mutex
	emitted uint64
	state   *state.Value[Snapshot[M]]
}

func newToggle[M comparable](log zerolog.Logger, onError func(error), none M, transform Transform[M], appliedOf func(core.Stream) M) *Toggle[M] {
	return &Toggle[M]{
		log:       log,
		onError:   onError,
		none:      none,
		mode:      none,
		transform: transform,
		appliedOf: appliedOf,
		snap:      Snapshot[M]{AppliedMode: none},
		state:     state.NewValue(Snapshot[M]{AppliedMode: none}),
	}
}

func (t *Toggle[M]) State() *state.Value[Snapshot[M]] { return t.state }

// Output is the stream callers should use right now.
func (t *Toggle[M]) Output() core.Stream { return t.state.Get().Output }

func (t *Toggle[M]) Applying() bool { return t.state.Get().Applying() }
func (t *Toggle[M]) AppliedMode() M { return t.state.Get().AppliedMode }
func (t *Toggle[M]) Err() error     { return t.state.Get().Err }

// set restarts the state machine from Idle whenever input or mode changes.
func (t *Toggle[M]) set(input core.Stream, mode M) {
	t.mu.Lock()
	if input == t.input && mode == t.mode {
		t.mu.Unlock()
		return
	}
	t.gen++
	gen := t.gen
	superseded := t.derived
	t.derived = nil
	t.input, t.mode = input, mode

	start := false
	switch {
	case input == nil:
		t.snap = Snapshot[M]{AppliedMode: t.none}
	case mode == t.none:
		t.snap = Snapshot[M]{Output: input, AppliedMode: t.appliedOf(input)}
	default:
		t.snap = Snapshot[M]{Output: input, Phase: Applying, AppliedMode: t.appliedOf(input)}
		start = true
	}
	t.seq++
	t.mu.Unlock()

	if superseded != nil && superseded != input {
		superseded.Release()
		t.log.Debug().Str("stream", string(superseded.ID())).Msg("released superseded stream")
	}
	t.emit()

	if start {
		t.wg.Go(func() {
			out, err := t.transform(context.Background(), input, mode)
			t.complete(gen, input, mode, out, err)
		})
	}
}

func (t *Toggle[M]) complete(gen uint64, input core.Stream, mode M, out core.Stream, err error) {
	t.mu.Lock()
	if gen != t.gen {
		current := t.input
		t.mu.Unlock()
		if err == nil && out != nil && out != current && out != input {
			out.Release()
		}
		t.log.Debug().Msg("dropped superseded processor result")
		return
	}
	if err != nil {
		t.snap = Snapshot[M]{Output: input, AppliedMode: t.appliedOf(input), Err: err}
	} else {
		t.derived = out
		t.snap = Snapshot[M]{Output: out, Phase: Applied, AppliedMode: mode}
	}
	t.seq++
	t.mu.Unlock()

	t.emit()
	if err != nil {
		err = fmt.Errorf("apply processor %v to %s: %w", mode, input.ID(), err)
		if t.onError != nil {
			t.onError(err)
			return
		}
		t.log.Warn().Err(err).Msg("processor failed")
		return
	}
	t.log.Debug().Str("input", string(input.ID())).Str("output", string(out.ID())).Msg("processor applied")
}

// emit publishes the latest snapshot once. A caller holding an older one
// finds it already published, or superseded, and returns.
func (t *Toggle[M]) emit() {
	t.emitMu.Lock()
	defer t.emitMu.Unlock()
	t.mu.Lock()
	snap, seq := t.snap, t.seq
	t.mu.Unlock()
	if seq == t.emitted {
		return
	}
	t.emitted = seq
	t.state.Set(snap)
}

// Wait blocks until in-flight transforms have completed.
func (t *Toggle[M]) Wait() { t.wg.Wait() }

// Close releases the derived stream, if any, once in-flight transforms are done.
func (t *Toggle[M]) Close() {
	t.set(nil, t.none)
	t.wg.Wait()
}
