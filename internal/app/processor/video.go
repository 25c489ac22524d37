package processor

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/dkeye/voicestate/internal/core"
)

// VideoMode is the requested video processor and its options.
type VideoMode struct {
	Processor          core.VideoProcessor
	BackgroundImageURL string
}

var videoNone = VideoMode{Processor: core.VideoProcessorNone}

type Video struct {
	*Toggle[VideoMode]
}

func NewVideo(log zerolog.Logger, onError func(error)) *Video {
	return &Video{newToggle(
		log.With().Str("module", "processor.video").Logger(),
		onError,
		videoNone,
		func(ctx context.Context, in core.Stream, m VideoMode) (core.Stream, error) {
			var opts *core.VideoProcessorOptions
			if m.BackgroundImageURL != "" {
				opts = &core.VideoProcessorOptions{BackgroundImageURL: m.BackgroundImageURL}
			}
			return in.ApplyVideoProcessor(ctx, m.Processor, opts)
		},
		func(s core.Stream) VideoMode { return VideoMode{Processor: s.VideoProcessor()} },
	)}
}

// Set applies m to input. Unknown processors, and a background image without
// an URL, are rejected before any SDK call.
func (v *Video) Set(input core.Stream, m VideoMode) error {
	switch m.Processor {
	case "", core.VideoProcessorNone:
		m = videoNone
	case core.VideoProcessorBlur:
		m.BackgroundImageURL = ""
	case core.VideoProcessorBackgroundImage:
		if m.BackgroundImageURL == "" {
			return fmt.Errorf("background image without url: %w", core.ErrUnknownProcessor)
		}
	default:
		return fmt.Errorf("video processor %q: %w", m.Processor, core.ErrUnknownProcessor)
	}
	v.set(input, m)
	return nil
}

// Blur is the on/off background blur toggle.
type Blur struct {
	video *Video
}

func NewBlur(log zerolog.Logger, onError func(error)) *Blur {
	return &Blur{video: NewVideo(log, onError)}
}

func (b *Blur) Set(input core.Stream, enabled bool) {
	m := videoNone
	if enabled {
		m = VideoMode{Processor: core.VideoProcessorBlur}
	}
	b.video.set(input, m)
}

func (b *Blur) Output() core.Stream { return b.video.Output() }

func (b *Blur) Blurred() bool {
	return b.video.State().Get().AppliedMode.Processor == core.VideoProcessorBlur
}

func (b *Blur) Applying() bool { return b.video.State().Get().Applying() }

func (b *Blur) Wait()  { b.video.Wait() }
func (b *Blur) Close() { b.video.Close() }
