package docsync

import (
	"github.com/astromechza/pixelpusher/pkg/state"
)

// Event is something the service observed: a command finishing, a remote change, or peer presence.
//
//sumtype:decl
type Event interface {
	isEvent()
}

type DocumentCreated struct {
	ID         string
	Content    state.Content
	IsWritable bool
}

type DocumentOpened struct {
	ID         string
	Content    state.Content
	IsWritable bool
}

// DocumentUpdated reports content that changed because of a remote peer.
type DocumentUpdated struct {
	ID         string
	Content    state.Content
	IsWritable bool
}

type DocumentForked struct {
	ID         string
	SourceID   string
	Content    state.Content
	IsWritable bool
}

// PeerListening reports that this service is connected to the peers of document Key as peer ID.
type PeerListening struct {
	Key      string
	ID       string
	Writable bool
}

type PeerJoined struct {
	Key  string
	ID   string
	Info state.PeerInfo
}

type PeerLeft struct {
	Key string
	ID  string
}

func (DocumentCreated) isEvent() {}
func (DocumentOpened) isEvent()  {}
func (DocumentUpdated) isEvent() {}
func (DocumentForked) isEvent()  {}
func (PeerListening) isEvent()   {}
func (PeerJoined) isEvent()      {}
func (PeerLeft) isEvent()        {}
