// Package docsync is the collaborative document service: it keeps each project as an automerge document, archives
// documents in sqlite, and replicates them with other peers through a relay over websockets. Commands return
// immediately; their outcomes, remote changes and peer presence are reported on Events.
package docsync

import (
	"context"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"sync"
	"time"

	"github.com/automerge/automerge-go"
	"github.com/google/uuid"

	"github.com/astromechza/pixelpusher/pkg/mutation"
	"github.com/astromechza/pixelpusher/pkg/state"
)

type Options struct {
	// PeerID identifies this service to other peers. A random id is used when empty.
	PeerID string
	Info   state.PeerInfo
	// Archive is optional; without it documents only live in memory and on the relay.
	Archive *Archive
	// Relay is the base http url of a relay. Without it the service is offline.
	Relay        *url.URL
	SyncInterval time.Duration
	ReadOnly     bool
}

type Service struct {
	opts   Options
	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	// queue holds commands until the worker runs them. It is unbounded so that issuing a command never blocks.
	queueLock sync.Mutex
	queue     []*command
	wake      chan struct{}
	events    chan Event

	lock sync.Mutex
	docs map[string]*document
}

type document struct {
	id   string
	lock sync.Mutex
	doc  *automerge.Doc

	// peering is true while a relay session loop runs for the document.
	peering bool
}

// command is a unit of work for the worker. Updates carry their document id and content so that consecutive
// updates of one document can be folded into a single write.
type command struct {
	run func(ctx context.Context)

	update     bool
	id         string
	base, next state.Content
}

const (
	eventQueueSize      = 256
	defaultSyncInterval = time.Second
)

func Open(ctx context.Context, opts Options) (*Service, error) {
	if opts.PeerID == "" {
		id := uuid.New()
		opts.PeerID = hex.EncodeToString(id[:])
	}
	if opts.SyncInterval <= 0 {
		opts.SyncInterval = defaultSyncInterval
	}
	if opts.Relay != nil && opts.Relay.Scheme != "http" && opts.Relay.Scheme != "https" {
		return nil, fmt.Errorf("relay url must be http or https, got %q", opts.Relay.Scheme)
	}
	s := &Service{
		opts:   opts,
		wake:   make(chan struct{}, 1),
		events: make(chan Event, eventQueueSize),
		docs:   make(map[string]*document),
	}
	s.ctx, s.cancel = context.WithCancel(ctx)

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.work()
	}()
	return s, nil
}

// PeerID is the id other peers see for this service.
func (s *Service) PeerID() string {
	return s.opts.PeerID
}

// Events is closed by Close once every goroutine of the service has stopped.
func (s *Service) Events() <-chan Event {
	return s.events
}

func (s *Service) Close() error {
	s.cancel()
	s.wg.Wait()
	close(s.events)
	return nil
}

// work runs commands one at a time so that updates to a document are applied in the order they were issued.
func (s *Service) work() {
	for s.ctx.Err() == nil {
		if cmd := s.dequeue(); cmd != nil {
			cmd.run(s.ctx)
			continue
		}
		select {
		case <-s.wake:
		case <-s.ctx.Done():
		}
	}
}

func (s *Service) dequeue() *command {
	s.queueLock.Lock()
	defer s.queueLock.Unlock()
	if len(s.queue) == 0 {
		return nil
	}
	cmd := s.queue[0]
	s.queue[0] = nil
	s.queue = s.queue[1:]
	return cmd
}

func (s *Service) enqueue(cmd *command) {
	s.queueLock.Lock()
	s.queue = append(s.queue, cmd)
	s.queueLock.Unlock()
	s.signal()
}

// enqueueUpdate folds an update into the last queued command when that is an update of the same document
// continuing from the same content; the folded write goes straight from the older base to the newer content.
func (s *Service) enqueueUpdate(id string, base, next state.Content) {
	s.queueLock.Lock()
	if n := len(s.queue); n > 0 {
		last := s.queue[n-1]
		if last.update && last.id == id && last.next.Hash() == base.Hash() {
			last.next = next
			s.queueLock.Unlock()
			s.signal()
			return
		}
	}
	cmd := &command{update: true, id: id, base: base, next: next}
	cmd.run = func(ctx context.Context) {
		s.update(ctx, cmd.id, cmd.base, cmd.next)
	}
	s.queue = append(s.queue, cmd)
	s.queueLock.Unlock()
	s.signal()
}

func (s *Service) signal() {
	select {
	case s.wake <- struct{}{}:
	default:
	}
}

func (s *Service) emit(ev Event) {
	select {
	case s.events <- ev:
	case <-s.ctx.Done():
	}
}

func (s *Service) goRun(fn func(ctx context.Context)) {
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		fn(s.ctx)
	}()
}

func (s *Service) writable() bool {
	return !s.opts.ReadOnly
}

func (s *Service) lookup(id string) *document {
	s.lock.Lock()
	defer s.lock.Unlock()
	return s.docs[id]
}

func (s *Service) register(id string, doc *automerge.Doc) *document {
	s.lock.Lock()
	defer s.lock.Unlock()
	if d, ok := s.docs[id]; ok {
		return d
	}
	d := &document{id: id, doc: doc}
	s.docs[id] = d
	return d
}

func (s *Service) archive(ctx context.Context, d *document) {
	if s.opts.Archive == nil {
		return
	}
	d.lock.Lock()
	defer d.lock.Unlock()
	if _, err := s.opts.Archive.Put(ctx, d.id, d.doc); err != nil {
		slog.Error("failed to archive document", "doc", d.id, "err", err)
	}
}

func (d *document) content() (state.Content, error) {
	d.lock.Lock()
	defer d.lock.Unlock()
	return ReadContent(d.doc)
}

// CreateDocument starts a new project document and reports it with DocumentCreated.
func (s *Service) CreateDocument() {
	s.enqueue(&command{run: func(ctx context.Context) {
		doc := automerge.New()
		content := mutation.NewContent()
		if _, err := WriteContent(doc, content); err != nil {
			slog.Error("failed to seed document", "err", err)
			return
		}
		if _, err := doc.Commit("create", automerge.CommitOptions{AllowEmpty: true}); err != nil {
			slog.Error("failed to commit document", "err", err)
			return
		}
		d := s.register(uuid.NewString(), doc)
		s.archive(ctx, d)
		slog.Info("created document", "doc", d.id, "heads", doc.Heads())
		s.emit(DocumentCreated{ID: d.id, Content: content, IsWritable: s.writable()})
		s.startPeering(d)
	}})
}

// UpdateDocument writes a local edit into the document: the values that differ between base, the content the edit
// started from, and next. When the merged document then differs from next, because peers changed it in the meantime,
// the merged content is reported with DocumentUpdated.
func (s *Service) UpdateDocument(id string, base, next state.Content) {
	s.enqueueUpdate(id, base.Clone(), next.Clone())
}

func (s *Service) update(ctx context.Context, id string, base, next state.Content) {
	if !s.writable() {
		slog.Warn("ignoring update in read-only mode", "doc", id)
		return
	}
	d := s.lookup(id)
	if d == nil {
		slog.Warn("ignoring update for unknown document", "doc", id)
		return
	}
	changed, merged, err := s.write(d, base, next)
	if err != nil {
		slog.Error("failed to update document", "doc", id, "err", err)
		return
	}
	if changed {
		s.archive(ctx, d)
	}
	if merged.Hash() != next.Hash() {
		slog.Debug("document diverged from local edit", "doc", id)
		s.emit(DocumentUpdated{ID: id, Content: merged, IsWritable: s.writable()})
	}
}

func (s *Service) write(d *document, base, next state.Content) (bool, state.Content, error) {
	d.lock.Lock()
	defer d.lock.Unlock()
	changed, err := WriteChanges(d.doc, base, next)
	if err != nil {
		return false, state.Content{}, err
	}
	if changed {
		if _, err := d.doc.Commit("update", automerge.CommitOptions{AllowEmpty: true}); err != nil {
			return false, state.Content{}, fmt.Errorf("failed to commit: %w", err)
		}
	}
	merged, err := ReadContent(d.doc)
	if err != nil {
		return changed, state.Content{}, fmt.Errorf("failed to read merged document: %w", err)
	}
	return changed, merged, nil
}

// CloneDocument forks a document into a new one and reports it with DocumentForked.
func (s *Service) CloneDocument(sourceID string) {
	s.enqueue(&command{run: func(ctx context.Context) {
		source, err := s.load(ctx, sourceID)
		if err != nil {
			slog.Error("failed to load clone source", "doc", sourceID, "err", err)
			return
		}
		source.lock.Lock()
		fork, err := source.doc.Fork()
		source.lock.Unlock()
		if err != nil {
			slog.Error("failed to fork document", "doc", sourceID, "err", err)
			return
		}
		d := s.register(uuid.NewString(), fork)
		content, err := d.content()
		if err != nil {
			slog.Error("failed to read forked document", "doc", d.id, "err", err)
			return
		}
		s.archive(ctx, d)
		slog.Info("forked document", "doc", d.id, "source", sourceID)
		s.emit(DocumentForked{ID: d.id, SourceID: sourceID, Content: content, IsWritable: s.writable()})
		s.startPeering(d)
	}})
}

// OpenDocument loads a document by id and reports it with DocumentOpened. A document that is not known locally or
// on the relay starts empty and fills in as peers sync it.
func (s *Service) OpenDocument(id string) {
	s.enqueue(&command{run: func(ctx context.Context) {
		d, err := s.load(ctx, id)
		if err != nil {
			slog.Error("failed to open document", "doc", id, "err", err)
			return
		}
		content, err := d.content()
		if err != nil {
			slog.Error("failed to read document", "doc", id, "err", err)
			return
		}
		s.emit(DocumentOpened{ID: id, Content: content, IsWritable: s.writable()})
		s.startPeering(d)
	}})
}

// load finds a document in memory, then in the archive, then on the relay.
func (s *Service) load(ctx context.Context, id string) (*document, error) {
	if d := s.lookup(id); d != nil {
		return d, nil
	}
	if s.opts.Archive != nil {
		doc, err := s.opts.Archive.Get(ctx, id)
		if err == nil {
			return s.register(id, doc), nil
		} else if !errors.Is(err, ErrNotFound) {
			return nil, err
		}
	}
	if s.opts.Relay != nil {
		doc, err := fetchLatest(ctx, s.opts.Relay, id)
		if err == nil {
			d := s.register(id, doc)
			s.archive(ctx, d)
			return d, nil
		} else if !errors.Is(err, ErrNotFound) {
			slog.Warn("failed to fetch document from relay", "doc", id, "err", err)
		}
	}
	return s.register(id, automerge.New()), nil
}
