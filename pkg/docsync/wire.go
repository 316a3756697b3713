package docsync

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"slices"
	"sync"
	"time"

	"github.com/automerge/automerge-go"
	"github.com/gorilla/websocket"

	"github.com/astromechza/pixelpusher/pkg/state"
)

// Presence frames travel as websocket text messages next to the binary automerge sync messages.
type Presence struct {
	Type string         `json:"type"`
	Peer string         `json:"peer"`
	Info state.PeerInfo `json:"info"`
}

const (
	PresenceHello  = "hello"
	PresenceJoined = "joined"
	PresenceLeft   = "left"
)

// Session runs the automerge sync protocol for one document over one websocket connection. The document may be
// shared with other sessions, so every access goes through docLock.
type Session struct {
	conn      *websocket.Conn
	docLock   sync.Locker
	doc       *automerge.Doc
	syncState *automerge.SyncState
	interval  time.Duration

	writeLock sync.Mutex

	// OnPresence is called from the read loop for every presence frame.
	OnPresence func(Presence)
	// OnChange is called from the read loop, without docLock held, after a sync message moved the document heads.
	OnChange func()
}

func NewSession(conn *websocket.Conn, doc *automerge.Doc, docLock sync.Locker, interval time.Duration) *Session {
	return &Session{
		conn:      conn,
		docLock:   docLock,
		doc:       doc,
		syncState: automerge.NewSyncState(doc),
		interval:  interval,
	}
}

func (s *Session) WritePresence(p Presence) error {
	raw, err := json.Marshal(p)
	if err != nil {
		return fmt.Errorf("failed to encode presence: %w", err)
	}
	s.writeLock.Lock()
	defer s.writeLock.Unlock()
	if err := s.conn.WriteMessage(websocket.TextMessage, raw); err != nil {
		return fmt.Errorf("failed to write presence: %w", err)
	}
	return nil
}

// Close drops the connection, which ends Run.
func (s *Session) Close() error {
	return s.conn.Close()
}

func (s *Session) readAndReceiveMessage() error {
	mt, p, err := s.conn.ReadMessage()
	if err != nil {
		return fmt.Errorf("failed to read message: %w", err)
	}
	switch mt {
	case websocket.BinaryMessage:
		moved, err := s.receive(p)
		if err != nil {
			return err
		}
		if moved && s.OnChange != nil {
			s.OnChange()
		}
	case websocket.TextMessage:
		var presence Presence
		if err := json.Unmarshal(p, &presence); err != nil {
			slog.Warn("ignoring malformed presence frame", "err", err)
			return nil
		}
		if s.OnPresence != nil {
			s.OnPresence(presence)
		}
	default:
	}
	return nil
}

func (s *Session) receive(p []byte) (bool, error) {
	s.docLock.Lock()
	defer s.docLock.Unlock()
	before := s.doc.Heads()
	if _, err := s.syncState.ReceiveMessage(p); err != nil {
		return false, fmt.Errorf("failed to receive message: %w", err)
	}
	return !slices.Equal(before, s.doc.Heads()), nil
}

func (s *Session) generateAndWriteMessage() (bool, error) {
	s.docLock.Lock()
	msg, valid := s.syncState.GenerateMessage()
	s.docLock.Unlock()
	if msg == nil {
		return false, nil
	}
	s.writeLock.Lock()
	defer s.writeLock.Unlock()
	if err := s.conn.WriteMessage(websocket.BinaryMessage, msg.Bytes()); err != nil {
		return false, fmt.Errorf("failed to write message: %w", err)
	}
	return valid, nil
}

func (s *Session) flush() error {
	for {
		if ok, err := s.generateAndWriteMessage(); err != nil {
			return err
		} else if !ok {
			return nil
		}
	}
}

// Run exchanges sync messages until the connection fails or ctx is cancelled. It always closes the connection.
func (s *Session) Run(ctx context.Context) error {
	wg := new(sync.WaitGroup)
	var readErr error

	wg.Add(1)
	go func() {
		defer wg.Done()
		defer s.conn.Close()
		for {
			if err := s.readAndReceiveMessage(); err != nil {
				readErr = err
				return
			}
		}
	}()

	wg.Add(1)
	go func() {
		defer wg.Done()
		defer s.conn.Close()

		if err := s.flush(); err != nil {
			slog.Debug("sync write failed", "err", err)
			return
		}

		t := time.NewTicker(s.interval)
		defer t.Stop()
		for {
			select {
			case <-t.C:
				if err := s.flush(); err != nil {
					slog.Debug("sync write failed", "err", err)
					return
				}
			case <-ctx.Done():
				return
			}
		}
	}()

	wg.Wait()
	if ctx.Err() != nil {
		return nil
	}
	return readErr
}
