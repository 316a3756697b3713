package docsync

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/automerge/automerge-go"
	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"
)

// Relay holds one automerge document per id and syncs it with every connected peer. It also forwards presence so
// each peer learns who else is editing the same document.
type Relay struct {
	archive  *Archive
	interval time.Duration

	lock  sync.Mutex
	rooms map[string]*room
}

type room struct {
	lock    sync.Mutex
	doc     *automerge.Doc
	members map[*Session]Presence
}

func NewRelay(archive *Archive, interval time.Duration) *Relay {
	if interval <= 0 {
		interval = defaultSyncInterval
	}
	return &Relay{archive: archive, interval: interval, rooms: make(map[string]*room)}
}

// Load restores every archived document.
func (r *Relay) Load(ctx context.Context) error {
	if r.archive == nil {
		return nil
	}
	docs, err := r.archive.All(ctx)
	if err != nil {
		return err
	}
	r.lock.Lock()
	defer r.lock.Unlock()
	for id, doc := range docs {
		r.rooms[id] = &room{doc: doc, members: make(map[*Session]Presence)}
	}
	slog.Info("loaded archived documents", "count", len(docs))
	return nil
}

func (r *Relay) Handler() http.Handler {
	m := mux.NewRouter()
	m.Methods(http.MethodGet).Path("/docs/{doc}/latest").HandlerFunc(r.getLatest)
	m.Methods(http.MethodGet).Path("/docs/{doc}/sync").HandlerFunc(r.syncDoc)
	m.Methods(http.MethodDelete).Path("/docs/{doc}").HandlerFunc(r.deleteDoc)
	return m
}

func (r *Relay) room(id string, create bool) *room {
	r.lock.Lock()
	defer r.lock.Unlock()
	rm, ok := r.rooms[id]
	if !ok && create {
		rm = &room{doc: automerge.New(), members: make(map[*Session]Presence)}
		r.rooms[id] = rm
	}
	return rm
}

// Each calls fn for every document with its room locked.
func (r *Relay) Each(fn func(id string, doc *automerge.Doc)) {
	r.lock.Lock()
	rooms := make(map[string]*room, len(r.rooms))
	for id, rm := range r.rooms {
		rooms[id] = rm
	}
	r.lock.Unlock()
	for id, rm := range rooms {
		rm.lock.Lock()
		fn(id, rm.doc)
		rm.lock.Unlock()
	}
}

// Backup archives every document whose save changed since the last backup.
func (r *Relay) Backup(ctx context.Context) {
	if r.archive == nil {
		return
	}
	r.Each(func(id string, doc *automerge.Doc) {
		if changed, err := r.archive.Put(ctx, id, doc); err != nil {
			slog.Error("failed to backup doc in database", "doc", id, "err", err)
		} else if changed {
			slog.Info("backed up", "doc", id, "heads", doc.Heads())
		}
	})
}

// Delete drops a document from memory and the archive and disconnects its peers. It returns ErrNotFound when the
// relay does not hold the document.
func (r *Relay) Delete(ctx context.Context, id string) error {
	r.lock.Lock()
	rm, ok := r.rooms[id]
	delete(r.rooms, id)
	r.lock.Unlock()
	if !ok {
		return ErrNotFound
	}
	if r.archive != nil {
		if err := r.archive.Delete(ctx, id); err != nil {
			return err
		}
	}
	rm.lock.Lock()
	members := make([]*Session, 0, len(rm.members))
	for s := range rm.members {
		members = append(members, s)
	}
	rm.lock.Unlock()
	for _, s := range members {
		_ = s.Close()
	}
	slog.Info("deleted", "doc", id, "disconnected", len(members))
	return nil
}

func (r *Relay) deleteDoc(writer http.ResponseWriter, request *http.Request) {
	if err := r.Delete(request.Context(), mux.Vars(request)["doc"]); errors.Is(err, ErrNotFound) {
		writer.WriteHeader(http.StatusNotFound)
		return
	} else if err != nil {
		slog.Error("failed to delete", "err", err)
		writer.WriteHeader(http.StatusInternalServerError)
		return
	}
	writer.WriteHeader(http.StatusNoContent)
}

func (r *Relay) getLatest(writer http.ResponseWriter, request *http.Request) {
	rm := r.room(mux.Vars(request)["doc"], false)
	if rm == nil {
		writer.WriteHeader(http.StatusNotFound)
		return
	}
	rm.lock.Lock()
	raw := rm.doc.Save()
	rm.lock.Unlock()
	writer.Header().Add("Content-Type", "application/octet-stream")
	if _, err := writer.Write(raw); err != nil {
		slog.Error("failed to write out", "err", err)
	}
}

func (r *Relay) syncDoc(writer http.ResponseWriter, request *http.Request) {
	id := mux.Vars(request)["doc"]
	upgrader := websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
	}
	conn, err := upgrader.Upgrade(writer, request, nil)
	if err != nil {
		slog.Error("failed to upgrade", "err", err)
		return
	}
	defer conn.Close()

	rm := r.room(id, true)
	session := NewSession(conn, rm.doc, &rm.lock, r.interval)
	session.OnPresence = func(p Presence) {
		if p.Type == PresenceHello {
			r.join(rm, session, p)
		}
	}
	defer r.leave(rm, session)

	if err := session.Run(request.Context()); err != nil {
		slog.Debug("sync session ended", "doc", id, "err", err)
	}
}

// join introduces a new member to the others and the others to it.
func (r *Relay) join(rm *room, session *Session, hello Presence) {
	rm.lock.Lock()
	others := make(map[*Session]Presence, len(rm.members))
	for s, p := range rm.members {
		others[s] = p
	}
	rm.members[session] = hello
	rm.lock.Unlock()

	joined := Presence{Type: PresenceJoined, Peer: hello.Peer, Info: hello.Info}
	for other, p := range others {
		if err := other.WritePresence(joined); err != nil {
			slog.Debug("failed to announce peer", "err", err)
		}
		if err := session.WritePresence(Presence{Type: PresenceJoined, Peer: p.Peer, Info: p.Info}); err != nil {
			slog.Debug("failed to introduce peer", "err", err)
		}
	}
}

func (r *Relay) leave(rm *room, session *Session) {
	rm.lock.Lock()
	hello, ok := rm.members[session]
	delete(rm.members, session)
	others := make([]*Session, 0, len(rm.members))
	for s := range rm.members {
		others = append(others, s)
	}
	rm.lock.Unlock()
	if !ok {
		return
	}
	for _, other := range others {
		if err := other.WritePresence(Presence{Type: PresenceLeft, Peer: hello.Peer}); err != nil {
			slog.Debug("failed to announce departure", "err", err)
		}
	}
}
