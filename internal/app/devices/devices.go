// Package devices mirrors the media device inventory.
package devices

import (
	"slices"
	"sync"

	"github.com/rs/zerolog"

	"github.com/dkeye/voicestate/internal/app/state"
	"github.com/dkeye/voicestate/internal/core"
)

type Inventory struct {
	log zerolog.Logger

	mu      sync.Mutex
	src     core.MediaDevices
	binding *core.Binding
	current core.DeviceList
	// changed is set once src reported a change; the seed read no longer applies.
	changed bool

	emitMu sync.Mutex
	list   *state.Value[core.DeviceList]
}

func NewInventory(log zerolog.Logger) *Inventory {
	return &Inventory{
		log:  log.With().Str("module", "devices").Logger(),
		list: state.NewValue(core.DeviceList{}),
	}
}

func (i *Inventory) Devices() *state.Value[core.DeviceList] { return i.list }

// SetSource binds to src and seeds the list from what it reports now.
func (i *Inventory) SetSource(src core.MediaDevices) {
	i.mu.Lock()
	if i.src == src {
		i.mu.Unlock()
		return
	}
	i.binding.Release()
	i.binding = nil
	i.src = src
	i.current = core.DeviceList{}
	i.changed = false
	i.mu.Unlock()

	if src == nil {
		i.emit()
		return
	}
	b := core.Bind(src, map[core.EventName]core.Handler{
		core.EventMediaDeviceChanged: func(e core.Event) {
			list, ok := e.Payload.(core.DeviceList)
			if !ok {
				list = src.List()
			}
			i.update(src, list, true)
		},
	})
	i.mu.Lock()
	if i.src != src {
		i.mu.Unlock()
		b.Release()
		return
	}
	i.binding = b
	i.mu.Unlock()
	i.update(src, src.List(), false)
}

func (i *Inventory) update(src core.MediaDevices, list core.DeviceList, changed bool) {
	i.mu.Lock()
	if i.src != src || (!changed && i.changed) {
		i.mu.Unlock()
		return
	}
	i.changed = i.changed || changed
	i.current = core.DeviceList{
		AudioInput:  slices.Clone(list.AudioInput),
		AudioOutput: slices.Clone(list.AudioOutput),
		VideoInput:  slices.Clone(list.VideoInput),
	}
	i.mu.Unlock()
	i.emit()
}

// emit publishes the current inventory. emitMu keeps snapshots in state order.
func (i *Inventory) emit() {
	i.emitMu.Lock()
	defer i.emitMu.Unlock()
	i.mu.Lock()
	out := i.current
	i.mu.Unlock()

	i.list.Set(out)
	i.log.Debug().
		Int("audioinput", len(out.AudioInput)).
		Int("audiooutput", len(out.AudioOutput)).
		Int("videoinput", len(out.VideoInput)).
		Msg("device list updated")
}

func (i *Inventory) Close() { i.SetSource(nil) }
