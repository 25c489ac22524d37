package devices

import (
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/dkeye/voicestate/internal/core"
)

type fakeDevices struct {
	core.Listeners
	list core.DeviceList
}

func (f *fakeDevices) List() core.DeviceList { return f.list }

var (
	mic     = core.MediaDevice{ID: "mic", Label: "Mic", Kind: core.DeviceAudioInput}
	speaker = core.MediaDevice{ID: "spk", Label: "Speaker", Kind: core.DeviceAudioOutput}
	cam     = core.MediaDevice{ID: "cam", Label: "Cam", Kind: core.DeviceVideoInput}
)

func TestNewDeviceList(t *testing.T) {
	got := core.NewDeviceList([]core.MediaDevice{cam, mic, {ID: "x", Kind: "midi"}, speaker})

	require.Equal(t, core.DeviceList{
		AudioInput:  []core.MediaDevice{mic},
		AudioOutput: []core.MediaDevice{speaker},
		VideoInput:  []core.MediaDevice{cam},
	}, got)
	require.Equal(t, []core.MediaDevice{mic, speaker, cam}, got.All())
}

func TestInventory_SeedsAndRefreshes(t *testing.T) {
	req := require.New(t)
	src := &fakeDevices{list: core.NewDeviceList([]core.MediaDevice{mic})}
	inv := NewInventory(zerolog.Nop())

	inv.SetSource(src)
	req.Equal([]core.MediaDevice{mic}, inv.Devices().Get().AudioInput)

	src.Emit(core.EventMediaDeviceChanged, core.NewDeviceList([]core.MediaDevice{mic, cam}))
	req.Equal([]core.MediaDevice{cam}, inv.Devices().Get().VideoInput)

	inv.Close()
	req.Zero(src.Count(core.EventMediaDeviceChanged))
	req.Equal(core.DeviceList{}, inv.Devices().Get())
}

func TestInventory_EventWithoutPayloadRereadsSource(t *testing.T) {
	req := require.New(t)
	src := &fakeDevices{}
	inv := NewInventory(zerolog.Nop())
	inv.SetSource(src)

	src.list = core.NewDeviceList([]core.MediaDevice{speaker})
	src.Emit(core.EventMediaDeviceChanged, nil)

	req.Equal([]core.MediaDevice{speaker}, inv.Devices().Get().AudioOutput)
}

// racingDevices reports a change while its initial list is being read.
type racingDevices struct {
	fakeDevices
	once bool
	next core.DeviceList
}

func (r *racingDevices) List() core.DeviceList {
	stale := r.list
	if !r.once {
		r.once = true
		r.list = r.next
		r.Emit(core.EventMediaDeviceChanged, r.next)
	}
	return stale
}

func TestInventory_ChangeDuringSeedWins(t *testing.T) {
	req := require.New(t)
	src := &racingDevices{
		fakeDevices: fakeDevices{list: core.NewDeviceList([]core.MediaDevice{mic})},
		next:        core.NewDeviceList([]core.MediaDevice{mic, cam}),
	}
	inv := NewInventory(zerolog.Nop())

	inv.SetSource(src)

	req.Equal([]core.MediaDevice{cam}, inv.Devices().Get().VideoInput)
}
