package orch

import (
	"context"
	"fmt"

	"github.com/dkeye/voicestate/internal/app/processor"
	"github.com/dkeye/voicestate/internal/app/streams"
	"github.com/dkeye/voicestate/internal/core"
)

// StartMedia captures a new camera stream and feeds it through the audio and
// video processors. The previous camera stream is released.
func (c *Conference) StartMedia(ctx context.Context, constraints core.StreamConstraints) error {
	s, err := c.ua.CreateStream(ctx, constraints)
	if err != nil {
		return fmt.Errorf("start media: %w", err)
	}
	c.mu.Lock()
	prev, mode := c.camera, c.audioMode
	c.camera = s
	c.mu.Unlock()

	if err := c.Audio.Set(s, mode); err != nil {
		return err
	}
	release(prev)
	c.log.Info().Str("stream", string(s.ID())).Msg("media started")
	return nil
}

// StopMedia drops the camera stream from the pipeline and releases it.
func (c *Conference) StopMedia() {
	c.mu.Lock()
	prev, mode := c.camera, c.audioMode
	c.camera = nil
	c.mu.Unlock()
	if prev == nil {
		return
	}
	_ = c.Audio.Set(nil, mode)
	release(prev)
	c.log.Info().Msg("media stopped")
}

func (c *Conference) SetAudioProcessor(p core.AudioProcessor) error {
	c.mu.Lock()
	camera := c.camera
	c.mu.Unlock()
	if err := c.Audio.Set(camera, p); err != nil {
		return err
	}
	c.mu.Lock()
	c.audioMode = p
	c.mu.Unlock()
	return nil
}

func (c *Conference) SetVideoProcessor(m processor.VideoMode) error {
	c.mu.Lock()
	prev := c.videoMode
	c.videoMode = m
	c.mu.Unlock()
	if err := c.Video.Set(c.Audio.Output(), m); err != nil {
		c.mu.Lock()
		c.videoMode = prev
		c.mu.Unlock()
		return err
	}
	return nil
}

// chainVideo feeds the current audio output into the video processor.
func (c *Conference) chainVideo() {
	c.mu.Lock()
	mode := c.videoMode
	c.mu.Unlock()
	if err := c.Video.Set(c.Audio.Output(), mode); err != nil {
		c.report(err)
	}
}

// SetPublishing toggles whether the processed camera stream is published.
func (c *Conference) SetPublishing(on bool) {
	c.mu.Lock()
	c.publishing = on
	c.mu.Unlock()
	c.updateDesired()
	c.bump()
}

// StartScreenShare captures a video-only stream published next to the camera.
func (c *Conference) StartScreenShare(ctx context.Context) error {
	s, err := c.ua.CreateStream(ctx, core.StreamConstraints{Video: true})
	if err != nil {
		return fmt.Errorf("screen share: %w", err)
	}
	c.mu.Lock()
	prev := c.screen
	c.screen = s
	c.mu.Unlock()
	c.updateDesired()
	release(prev)
	c.bump()
	return nil
}

func (c *Conference) StopScreenShare() {
	c.mu.Lock()
	prev := c.screen
	c.screen = nil
	c.mu.Unlock()
	if prev == nil {
		return
	}
	c.updateDesired()
	release(prev)
	c.bump()
}

// updateDesired publishes the processed camera output at position 0 and the
// screen share at position 1.
func (c *Conference) updateDesired() {
	c.desiredMu.Lock()
	defer c.desiredMu.Unlock()

	c.mu.Lock()
	publishing, screen, closed := c.publishing, c.screen, c.closed
	c.mu.Unlock()
	if closed {
		return
	}

	slots := make([]*streams.Slot, 2)
	if out := c.Video.Output(); publishing && out != nil {
		slots[0] = &streams.Slot{Stream: out, Options: c.cfg.publishOptions}
	}
	if screen != nil {
		slots[1] = &streams.Slot{Stream: screen}
	}
	c.Streams.SetDesired(slots)
}
