package loopback

import (
	"context"
	"fmt"
	"slices"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/pion/webrtc/v4"

	"github.com/dkeye/voicestate/internal/core"
	"github.com/dkeye/voicestate/internal/domain"
)

var (
	opusCodec = webrtc.RTPCodecCapability{MimeType: webrtc.MimeTypeOpus, ClockRate: 48000, Channels: 2}
	vp8Codec  = webrtc.RTPCodecCapability{MimeType: webrtc.MimeTypeVP8, ClockRate: 90000}
)

// Stream is a media stream backed by local static RTP tracks.
// Remote streams are per-subscriber copies of a published stream and share its ID.
type Stream struct {
	id      domain.StreamID
	contact domain.ContactID
	remote  bool
	audio   core.AudioProcessor
	video   core.VideoProcessor
	tracks  []*webrtc.TrackLocalStaticRTP
	delay   time.Duration

	released atomic.Bool
}

func newStream(id domain.StreamID, contact domain.ContactID, withAudio, withVideo bool, delay time.Duration) (*Stream, error) {
	if !withAudio && !withVideo {
		return nil, ErrNoTracks
	}
	s := &Stream{
		id:      id,
		contact: contact,
		audio:   core.AudioProcessorNone,
		video:   core.VideoProcessorNone,
		delay:   delay,
	}
	if withAudio {
		t, err := webrtc.NewTrackLocalStaticRTP(opusCodec, "audio-"+uuid.NewString(), string(id))
		if err != nil {
			return nil, fmt.Errorf("audio track: %w", err)
		}
		s.tracks = append(s.tracks, t)
	}
	if withVideo {
		t, err := webrtc.NewTrackLocalStaticRTP(vp8Codec, "video-"+uuid.NewString(), string(id))
		if err != nil {
			return nil, fmt.Errorf("video track: %w", err)
		}
		s.tracks = append(s.tracks, t)
	}
	return s, nil
}

// remoteCopy is what a subscriber of s receives when owner published it.
func (s *Stream) remoteCopy(owner domain.ContactID, pub core.PublishOptions, sub *core.SubscribeOptions) (*Stream, error) {
	withAudio, withVideo := s.HasAudio(), s.HasVideo()
	if pub.AudioOnly || (sub != nil && sub.AudioOnly) {
		withVideo = false
	}
	if pub.VideoOnly || (sub != nil && sub.VideoOnly) {
		withAudio = false
	}
	out, err := newStream(s.id, owner, withAudio, withVideo, 0)
	if err != nil {
		return nil, err
	}
	out.remote = true
	out.audio, out.video = s.audio, s.video
	return out, nil
}

func (s *Stream) ID() domain.StreamID                 { return s.id }
func (s *Stream) IsRemote() bool                      { return s.remote }
func (s *Stream) AudioProcessor() core.AudioProcessor { return s.audio }
func (s *Stream) VideoProcessor() core.VideoProcessor { return s.video }
func (s *Stream) Released() bool                      { return s.released.Load() }

func (s *Stream) ContactID() domain.ContactID {
	if !s.remote {
		return ""
	}
	return s.contact
}

// Tracks returns the RTP tracks carrying this stream's media.
func (s *Stream) Tracks() []*webrtc.TrackLocalStaticRTP { return slices.Clone(s.tracks) }

func (s *Stream) HasAudio() bool { return s.hasKind(webrtc.RTPCodecTypeAudio) }
func (s *Stream) HasVideo() bool { return s.hasKind(webrtc.RTPCodecTypeVideo) }

func (s *Stream) hasKind(kind webrtc.RTPCodecType) bool {
	return slices.ContainsFunc(s.tracks, func(t *webrtc.TrackLocalStaticRTP) bool { return t.Kind() == kind })
}

func (s *Stream) Release() { s.released.Store(true) }

func (s *Stream) ApplyAudioProcessor(ctx context.Context, p core.AudioProcessor) (core.Stream, error) {
	switch p {
	case core.AudioProcessorNone, core.AudioProcessorNoiseReduction:
	default:
		return nil, fmt.Errorf("audio processor %q: %w", p, core.ErrUnknownProcessor)
	}
	if !s.HasAudio() {
		return nil, fmt.Errorf("stream %s: %w", s.id, ErrNoTracks)
	}
	return s.derive(ctx, func(out *Stream) { out.audio = p })
}

func (s *Stream) ApplyVideoProcessor(ctx context.Context, p core.VideoProcessor, opts *core.VideoProcessorOptions) (core.Stream, error) {
	switch p {
	case core.VideoProcessorNone, core.VideoProcessorBlur:
	case core.VideoProcessorBackgroundImage:
		if opts == nil || opts.BackgroundImageURL == "" {
			return nil, fmt.Errorf("background image without url: %w", core.ErrUnknownProcessor)
		}
	default:
		return nil, fmt.Errorf("video processor %q: %w", p, core.ErrUnknownProcessor)
	}
	if !s.HasVideo() {
		return nil, fmt.Errorf("stream %s: %w", s.id, ErrNoTracks)
	}
	return s.derive(ctx, func(out *Stream) { out.video = p })
}

// derive builds a new local stream with the same kinds as s after the
// configured processing delay.
func (s *Stream) derive(ctx context.Context, apply func(*Stream)) (core.Stream, error) {
	if s.remote {
		return nil, ErrRemoteStream
	}
	if s.delay > 0 {
		select {
		case <-time.After(s.delay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if s.released.Load() {
		return nil, fmt.Errorf("stream %s: %w", s.id, ErrReleased)
	}
	out, err := newStream(domain.StreamID(uuid.NewString()), s.contact, s.HasAudio(), s.HasVideo(), s.delay)
	if err != nil {
		return nil, err
	}
	out.audio, out.video = s.audio, s.video
	apply(out)
	return out, nil
}
