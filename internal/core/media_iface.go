package core

import (
	"context"

	"github.com/dkeye/voicestate/internal/domain"
)

type AudioProcessor string

const (
	AudioProcessorNone           AudioProcessor = "none"
	AudioProcessorNoiseReduction AudioProcessor = "noiseReduction"
)

type VideoProcessor string

const (
	VideoProcessorNone            VideoProcessor = "none"
	VideoProcessorBlur            VideoProcessor = "blur"
	VideoProcessorBackgroundImage VideoProcessor = "backgroundImage"
)

// VideoProcessorOptions is only meaningful for VideoProcessorBackgroundImage.
type VideoProcessorOptions struct {
	BackgroundImageURL string `json:"backgroundImageUrl,omitempty"`
}

// Stream is a local or remote media stream handle.
type Stream interface {
	ID() domain.StreamID
	IsRemote() bool
	// ContactID is the owner of a remote stream, empty for local streams.
	ContactID() domain.ContactID
	// ApplyAudioProcessor resolves to a derived stream. The receiver is left untouched.
	ApplyAudioProcessor(ctx context.Context, p AudioProcessor) (Stream, error)
	ApplyVideoProcessor(ctx context.Context, p VideoProcessor, opts *VideoProcessorOptions) (Stream, error)
	// AudioProcessor reports the processor this stream was derived with.
	AudioProcessor() AudioProcessor
	VideoProcessor() VideoProcessor
	// Release stops all underlying media resources.
	Release()
}

type DeviceKind string

const (
	DeviceAudioInput  DeviceKind = "audioinput"
	DeviceAudioOutput DeviceKind = "audiooutput"
	DeviceVideoInput  DeviceKind = "videoinput"
)

type MediaDevice struct {
	ID    string     `json:"id"`
	Label string     `json:"label"`
	Kind  DeviceKind `json:"kind"`
}

// DeviceList groups devices by kind.
type DeviceList struct {
	AudioInput  []MediaDevice `json:"audioinput"`
	AudioOutput []MediaDevice `json:"audiooutput"`
	VideoInput  []MediaDevice `json:"videoinput"`
}

// MediaDevices emits EventMediaDeviceChanged whenever the inventory changes.
type MediaDevices interface {
	Emitter
	List() DeviceList
}

type StreamConstraints struct {
	Audio         bool   `json:"audio"`
	Video         bool   `json:"video"`
	AudioDeviceID string `json:"audioDeviceId,omitempty"`
	VideoDeviceID string `json:"videoDeviceId,omitempty"`
}

// NewDeviceList groups a flat device list by kind. Unknown kinds are dropped.
func NewDeviceList(devs []MediaDevice) DeviceList {
	var out DeviceList
	for _, d := range devs {
		switch d.Kind {
		case DeviceAudioInput:
			out.AudioInput = append(out.AudioInput, d)
		case DeviceAudioOutput:
			out.AudioOutput = append(out.AudioOutput, d)
		case DeviceVideoInput:
			out.VideoInput = append(out.VideoInput, d)
		}
	}
	return out
}

// All flattens the list back, audio inputs first.
func (l DeviceList) All() []MediaDevice {
	out := make([]MediaDevice, 0, len(l.AudioInput)+len(l.AudioOutput)+len(l.VideoInput))
	out = append(out, l.AudioInput...)
	out = append(out, l.AudioOutput...)
	return append(out, l.VideoInput...)
}
