package core

import "github.com/dkeye/voicestate/internal/domain"

type EventName string

const (
	EventJoined                   EventName = "joined"
	EventLeft                     EventName = "left"
	EventStreamAdded              EventName = "streamAdded"
	EventStreamRemoved            EventName = "streamRemoved"
	EventStreamListChanged        EventName = "streamListChanged"
	EventContactJoined            EventName = "contactJoined"
	EventContactLeft              EventName = "contactLeft"
	EventMessage                  EventName = "message"
	EventContactJoinedWaitingRoom EventName = "contactJoinedWaitingRoom"
	EventContactLeftWaitingRoom   EventName = "contactLeftWaitingRoom"
	EventParticipantEjected       EventName = "participantEjected"
	EventContactListUpdate        EventName = "contactListUpdate"
	EventMediaDeviceChanged       EventName = "mediaDeviceChanged"
)

// Event is what an Emitter hands to its handlers.
// Payload type depends on Name:
//
//	joined, left                        nil
//	streamAdded, streamRemoved          Stream
//	streamListChanged                   StreamInfo
//	contactJoined, contactLeft          domain.Contact
//	contactJoinedWaitingRoom,
//	contactLeftWaitingRoom              domain.Contact
//	message                             domain.Message
//	participantEjected                  Ejection
//	contactListUpdate                   ContactListUpdate
//	mediaDeviceChanged                  DeviceList
type Event struct {
	Name    EventName
	Payload any
}

type ListEventType string

const (
	ListAdded   ListEventType = "added"
	ListRemoved ListEventType = "removed"
)

// StreamInfo describes an entry of a conversation's available stream list.
type StreamInfo struct {
	StreamID      domain.StreamID  `json:"streamId"`
	IsRemote      bool             `json:"isRemote"`
	ListEventType ListEventType    `json:"listEventType,omitempty"`
	ContactID     domain.ContactID `json:"contactId,omitempty"`
}

// ContactListUpdate carries per-group membership deltas and contacts
// whose user data changed since the previous update.
type ContactListUpdate struct {
	JoinedGroup     map[domain.GroupName][]domain.Contact
	LeftGroup       map[domain.GroupName][]domain.Contact
	UserDataChanged []domain.Contact
}

// Ejection is emitted when a moderator removes a participant.
type Ejection struct {
	Contact domain.Contact
	Self    bool
	Reason  string
}
