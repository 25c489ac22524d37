package orch

import (
	"github.com/dkeye/voicestate/internal/app/presence"
	"github.com/dkeye/voicestate/internal/core"
	"github.com/dkeye/voicestate/internal/domain"
)

// StreamView is the serializable face of a core.Stream.
type StreamView struct {
	ID             domain.StreamID     `json:"id"`
	Remote         bool                `json:"remote"`
	ContactID      domain.ContactID    `json:"contactId,omitempty"`
	AudioProcessor core.AudioProcessor `json:"audioProcessor"`
	VideoProcessor core.VideoProcessor `json:"videoProcessor"`
}

func viewOf(list []core.Stream) []StreamView {
	out := make([]StreamView, 0, len(list))
	for _, s := range list {
		out = append(out, StreamView{
			ID:             s.ID(),
			Remote:         s.IsRemote(),
			ContactID:      s.ContactID(),
			AudioProcessor: s.AudioProcessor(),
			VideoProcessor: s.VideoProcessor(),
		})
	}
	return out
}

type ProcessorView struct {
	Requested string `json:"requested"`
	Applied   string `json:"applied"`
	Applying  bool   `json:"applying"`
	Error     string `json:"error,omitempty"`
}

// Snapshot is the aggregate state of a Conference.
type Snapshot struct {
	Version      uint64                   `json:"version"`
	Self         *domain.Contact          `json:"self,omitempty"`
	Groups       presence.ContactsByGroup `json:"groups"`
	Conversation domain.ConversationName  `json:"conversation,omitempty"`
	Moderated    bool                     `json:"moderated"`
	Joined       bool                     `json:"joined"`
	Contacts     []domain.Contact         `json:"contacts"`
	Messages     []domain.Message         `json:"messages"`
	Waiting      []domain.Contact         `json:"waiting"`
	Ejection     *core.Ejection           `json:"ejection,omitempty"`
	Devices      core.DeviceList          `json:"devices"`
	Camera       *StreamView              `json:"camera,omitempty"`
	Audio        ProcessorView            `json:"audio"`
	Video        ProcessorView            `json:"video"`
	Publishing   bool                     `json:"publishing"`
	ScreenShare  bool                     `json:"screenShare"`
	Published    []StreamView             `json:"published"`
	Subscribed   []StreamView             `json:"subscribed"`
	LastError    string                   `json:"lastError,omitempty"`
}

func (c *Conference) Snapshot() Snapshot {
	c.mu.Lock()
	snap := Snapshot{
		Version:      c.seq.Load(),
		Conversation: c.convName,
		Moderated:    c.convOpts.Moderated,
		Publishing:   c.publishing,
		ScreenShare:  c.screen != nil,
		Ejection:     c.ejection,
	}
	camera, audioMode, videoMode := c.camera, c.audioMode, c.videoMode
	if c.lastErr != nil {
		snap.LastError = c.lastErr.Error()
	}
	c.mu.Unlock()

	if sess := c.Connector.Session().Get(); sess != nil {
		self := sess.Self()
		snap.Self = &self
	}
	if camera != nil {
		v := viewOf([]core.Stream{camera})[0]
		snap.Camera = &v
	}

	a := c.Audio.State().Get()
	snap.Audio = ProcessorView{
		Requested: string(audioMode),
		Applied:   string(a.AppliedMode),
		Applying:  a.Applying(),
	}
	if a.Err != nil {
		snap.Audio.Error = a.Err.Error()
	}
	v := c.Video.State().Get()
	snap.Video = ProcessorView{
		Requested: string(videoMode.Processor),
		Applied:   string(v.AppliedMode.Processor),
		Applying:  v.Applying(),
	}
	if v.Err != nil {
		snap.Video.Error = v.Err.Error()
	}

	snap.Groups = c.Presence.ContactsByGroup().Get()
	snap.Joined = c.Members.Joined().Get()
	snap.Contacts = c.Members.Contacts().Get()
	snap.Messages = c.Messages.List().Get()
	snap.Waiting = c.Waiting.Candidates().Get()
	snap.Devices = c.Devices.Devices().Get()
	snap.Published = viewOf(c.Streams.Published().Get())
	snap.Subscribed = viewOf(c.Streams.Subscribed().Get())
	return snap
}
