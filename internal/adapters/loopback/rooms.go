package loopback

import (
	"slices"
	"strings"
	"sync"

	"github.com/dkeye/voicestate/internal/core"
	"github.com/dkeye/voicestate/internal/domain"
)

type RoomInfo struct {
	Name      domain.ConversationName `json:"name"`
	Members   int                     `json:"members"`
	Waiting   int                     `json:"waiting"`
	Streams   int                     `json:"streams"`
	Moderated bool                    `json:"moderated"`
}

// Rooms holds the shared state of every conversation on a hub.
type Rooms struct {
	mu    sync.RWMutex
	rooms map[domain.ConversationName]*room
}

func NewRooms() *Rooms {
	return &Rooms{rooms: make(map[domain.ConversationName]*room)}
}

// GetOrCreate returns the room called name. Options only apply on creation.
func (f *Rooms) GetOrCreate(h *Hub, name domain.ConversationName, opts *core.ConversationOptions) *room {
	f.mu.RLock()
	r, ok := f.rooms[name]
	f.mu.RUnlock()
	if ok {
		return r
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if r, ok = f.rooms[name]; ok {
		return r
	}
	r = newRoom(h, name, opts != nil && opts.Moderated)
	f.rooms[name] = r
	return r
}

func (f *Rooms) List() []RoomInfo {
	f.mu.RLock()
	defer f.mu.RUnlock()
	out := make([]RoomInfo, 0, len(f.rooms))
	for _, r := range f.rooms {
		out = append(out, r.info())
	}
	slices.SortFunc(out, func(a, b RoomInfo) int { return strings.Compare(string(a.Name), string(b.Name)) })
	return out
}
