// Package orchestrator connects the store to the document sync service. State changes become service commands and
// service events become actions; the reducer stays the only place state changes.
package orchestrator

import (
	"context"
	"log/slog"
	"slices"
	"sync"

	"github.com/astromechza/pixelpusher/pkg/docsync"
	"github.com/astromechza/pixelpusher/pkg/reducer"
	"github.com/astromechza/pixelpusher/pkg/state"
)

// Service is the part of docsync.Service the orchestrator drives.
type Service interface {
	CreateDocument()
	UpdateDocument(id string, base, next state.Content)
	CloneDocument(sourceID string)
	OpenDocument(id string)
	Events() <-chan docsync.Event
}

type Dispatcher interface {
	Dispatch(a reducer.Action)
}

type Orchestrator struct {
	service    Service
	dispatcher Dispatcher

	lock sync.Mutex
	// lastKnown is the content hash of each project as last published to, or received from, the service.
	lastKnown map[string]state.ContentHash
	// remote holds, per project, hashes of content delivered by service events that the store has not applied yet.
	remote map[string][]state.ContentHash
}

// maxPendingRemote bounds remote per project; events for projects that are not current are never consumed.
const maxPendingRemote = 32

func New(service Service, dispatcher Dispatcher) *Orchestrator {
	return &Orchestrator{
		service:    service,
		dispatcher: dispatcher,
		lastKnown:  make(map[string]state.ContentHash),
		remote:     make(map[string][]state.ContentHash),
	}
}

// Watch is a store subscriber that issues service commands for the fields that changed between prev and next.
func (o *Orchestrator) Watch(prev, next state.State) {
	if next.CreatedProjectCount > prev.CreatedProjectCount {
		slog.Debug("requesting new document")
		o.service.CreateDocument()
	}
	if next.ClonedProjectID != "" && next.ClonedProjectID != prev.ClonedProjectID {
		slog.Debug("requesting clone", "doc", next.ClonedProjectID)
		o.service.CloneDocument(next.ClonedProjectID)
	}
	if next.OpeningProjectID != "" && next.OpeningProjectID != prev.OpeningProjectID {
		slog.Debug("requesting open", "doc", next.OpeningProjectID)
		o.service.OpenDocument(next.OpeningProjectID)
	}
	o.publish(prev, next)
}

// publish sends the local edit between prev and next of the current project. Transitions that only apply content
// the service delivered are not edits and are skipped.
func (o *Orchestrator) publish(prev, next state.State) {
	p, ok := next.CurrentProject()
	if !ok || !p.IsWritable || p.IsOpening {
		return
	}
	h := p.Doc.Hash()
	if !o.isLocalEdit(p.ID, h) {
		return
	}
	var base state.Content
	if before, ok := prev.Projects[p.ID]; ok && !before.IsOpening {
		base = before.Doc
	}
	slog.Debug("publishing document", "doc", p.ID)
	o.service.UpdateDocument(p.ID, base, p.Doc)
}

// isLocalEdit reports whether content hash h of project id is neither already known to the service nor content that
// a pending service event delivered, and records it as known.
func (o *Orchestrator) isLocalEdit(id string, h state.ContentHash) bool {
	o.lock.Lock()
	defer o.lock.Unlock()
	if pending := o.remote[id]; len(pending) > 0 {
		if i := slices.Index(pending, h); i >= 0 {
			o.remote[id] = pending[i+1:]
			o.lastKnown[id] = h
			return false
		}
	}
	if known, ok := o.lastKnown[id]; ok && known == h {
		return false
	}
	o.lastKnown[id] = h
	return true
}

// received records content the service delivered for id.
func (o *Orchestrator) received(id string, content state.Content) {
	h := content.Hash()
	o.lock.Lock()
	defer o.lock.Unlock()
	pending := append(o.remote[id], h)
	if len(pending) > maxPendingRemote {
		pending = pending[len(pending)-maxPendingRemote:]
	}
	o.remote[id] = pending
}

// Run dispatches an action for every service event until ctx is done or the event channel closes.
func (o *Orchestrator) Run(ctx context.Context) error {
	events := o.service.Events()
	for {
		select {
		case <-ctx.Done():
			return nil
		case ev, ok := <-events:
			if !ok {
				return nil
			}
			if a := o.translate(ev); a != nil {
				o.dispatcher.Dispatch(a)
			}
		}
	}
}

func (o *Orchestrator) translate(ev docsync.Event) reducer.Action {
	switch e := ev.(type) {
	case docsync.DocumentCreated:
		o.received(e.ID, e.Content)
		return reducer.DocumentCreated{ID: e.ID, Doc: e.Content, IsWritable: e.IsWritable}
	case docsync.DocumentOpened:
		o.received(e.ID, e.Content)
		return reducer.DocumentOpened{ID: e.ID, Doc: e.Content, IsWritable: e.IsWritable}
	case docsync.DocumentUpdated:
		o.received(e.ID, e.Content)
		return reducer.DocumentUpdated{ID: e.ID, Doc: e.Content, IsWritable: e.IsWritable}
	case docsync.DocumentForked:
		o.received(e.ID, e.Content)
		return reducer.DocumentForked{ID: e.ID, SourceID: e.SourceID, Doc: e.Content, IsWritable: e.IsWritable}
	case docsync.PeerListening:
		return reducer.SelfConnected{Key: e.Key, ID: e.ID, Writable: e.Writable}
	case docsync.PeerJoined:
		return reducer.PeerConnected{Key: e.Key, ID: e.ID, Info: e.Info}
	case docsync.PeerLeft:
		return reducer.PeerDisconnected{Key: e.Key, ID: e.ID}
	default:
		slog.Warn("ignoring unknown service event", "event", ev)
		return nil
	}
}
