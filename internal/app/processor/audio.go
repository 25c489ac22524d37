package processor

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/dkeye/voicestate/internal/core"
)

type Audio struct {
	*Toggle[core.AudioProcessor]
}

func NewAudio(log zerolog.Logger, onError func(error)) *Audio {
	return &Audio{newToggle(
		log.With().Str("module", "processor.audio").Logger(),
		onError,
		core.AudioProcessorNone,
		func(ctx context.Context, in core.Stream, p core.AudioProcessor) (core.Stream, error) {
			return in.ApplyAudioProcessor(ctx, p)
		},
		func(s core.Stream) core.AudioProcessor { return s.AudioProcessor() },
	)}
}

// Set applies p to input. Unknown processors are rejected before any SDK call.
func (a *Audio) Set(input core.Stream, p core.AudioProcessor) error {
	switch p {
	case core.AudioProcessorNone, core.AudioProcessorNoiseReduction:
	case "":
		p = core.AudioProcessorNone
	default:
		return fmt.Errorf("audio processor %q: %w", p, core.ErrUnknownProcessor)
	}
	a.set(input, p)
	return nil
}
