package loopback

import (
	"context"
	"fmt"
	"slices"
	"sync"

	"github.com/google/uuid"

	"github.com/dkeye/voicestate/internal/core"
	"github.com/dkeye/voicestate/internal/domain"
)

const guestName = "guest"

// DefaultDevices is the inventory a user agent starts with when none is given.
func DefaultDevices() []core.MediaDevice {
	return []core.MediaDevice{
		{ID: "default-mic", Label: "Default microphone", Kind: core.DeviceAudioInput},
		{ID: "default-speaker", Label: "Default speaker", Kind: core.DeviceAudioOutput},
		{ID: "default-camera", Label: "Default camera", Kind: core.DeviceVideoInput},
	}
}

type UserAgent struct {
	hub     *Hub
	devices *Devices
}

func (h *Hub) NewUserAgent(devs ...core.MediaDevice) *UserAgent {
	if len(devs) == 0 {
		devs = DefaultDevices()
	}
	return &UserAgent{hub: h, devices: &Devices{hub: h, list: slices.Clone(devs)}}
}

func (ua *UserAgent) Register(ctx context.Context, info core.RegisterInfo) (core.Session, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if err := ua.hub.authorize(info); err != nil {
		return nil, fmt.Errorf("register: %w", err)
	}
	name := info.Username
	if name == "" {
		name = guestName
	}
	contact, err := domain.NewContact(name)
	if err != nil {
		return nil, fmt.Errorf("register: %w", err)
	}
	s := &Session{
		hub:   ua.hub,
		id:    contact.ID,
		self:  contact,
		convs: make(map[domain.ConversationName]*Conversation),
	}
	ua.hub.registry.Bind(s)
	return s, nil
}

func (ua *UserAgent) MediaDevices() core.MediaDevices { return ua.devices }

// Devices exposes the concrete inventory so callers can plug and unplug devices.
func (ua *UserAgent) Devices() *Devices { return ua.devices }

func (ua *UserAgent) CreateStream(ctx context.Context, c core.StreamConstraints) (core.Stream, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if c.Audio {
		if err := ua.devices.require(core.DeviceAudioInput, c.AudioDeviceID); err != nil {
			return nil, err
		}
	}
	if c.Video {
		if err := ua.devices.require(core.DeviceVideoInput, c.VideoDeviceID); err != nil {
			return nil, err
		}
	}
	s, err := newStream(domain.StreamID(uuid.NewString()), "", c.Audio, c.Video, ua.hub.opts.ProcessorDelay)
	if err != nil {
		return nil, fmt.Errorf("create stream: %w", err)
	}
	return s, nil
}

// Devices is a mutable media device inventory.
type Devices struct {
	core.Listeners
	hub *Hub

	mu   sync.RWMutex
	list []core.MediaDevice
}

func (d *Devices) List() core.DeviceList {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return core.NewDeviceList(d.list)
}

// Plug adds dev, replacing a device with the same ID.
func (d *Devices) Plug(dev core.MediaDevice) {
	d.mu.Lock()
	if i := slices.IndexFunc(d.list, func(x core.MediaDevice) bool { return x.ID == dev.ID }); i >= 0 {
		d.list[i] = dev
	} else {
		d.list = append(d.list, dev)
	}
	list := core.NewDeviceList(d.list)
	d.mu.Unlock()
	d.hub.post(d.hub.emit(&d.Listeners, core.EventMediaDeviceChanged, list))
}

func (d *Devices) Unplug(id string) bool {
	d.mu.Lock()
	n := len(d.list)
	d.list = slices.DeleteFunc(d.list, func(x core.MediaDevice) bool { return x.ID == id })
	removed := len(d.list) != n
	list := core.NewDeviceList(d.list)
	d.mu.Unlock()
	if removed {
		d.hub.post(d.hub.emit(&d.Listeners, core.EventMediaDeviceChanged, list))
	}
	return removed
}

// require checks a device of kind exists, or the one called id when set.
func (d *Devices) require(kind core.DeviceKind, id string) error {
	d.mu.RLock()
	defer d.mu.RUnlock()
	if slices.ContainsFunc(d.list, func(x core.MediaDevice) bool {
		return x.Kind == kind && (id == "" || x.ID == id)
	}) {
		return nil
	}
	if id == "" {
		return fmt.Errorf("no %s: %w", kind, ErrUnknownDevice)
	}
	return fmt.Errorf("%s %q: %w", kind, id, ErrUnknownDevice)
}

var (
	_ core.UserAgent    = (*UserAgent)(nil)
	_ core.MediaDevices = (*Devices)(nil)
	_ core.Session      = (*Session)(nil)
	_ core.Conversation = (*Conversation)(nil)
	_ core.Call         = (*call)(nil)
	_ core.Stream       = (*Stream)(nil)
)
