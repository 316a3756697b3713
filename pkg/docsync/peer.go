package docsync

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/automerge/automerge-go"
	"github.com/gorilla/websocket"
)

// startPeering keeps d synchronised with the relay until the service closes.
func (s *Service) startPeering(d *document) {
	if s.opts.Relay == nil {
		return
	}
	s.lock.Lock()
	if d.peering {
		s.lock.Unlock()
		return
	}
	d.peering = true
	s.lock.Unlock()

	s.goRun(func(ctx context.Context) {
		s.connectAndSyncContinuously(ctx, d)
	})
}

func (s *Service) connectAndSyncContinuously(ctx context.Context, d *document) {
	for {
		if err := s.connectAndSync(ctx, d); err != nil {
			slog.Error("failed to sync", "doc", d.id, "err", err)
		} else {
			slog.Debug("finished sync", "doc", d.id)
		}
		t := time.NewTimer(s.opts.SyncInterval)
		select {
		case <-t.C:
		case <-ctx.Done():
			t.Stop()
			slog.Info("stopping scheduled sync", "doc", d.id)
			return
		}
	}
}

func (s *Service) connectAndSync(ctx context.Context, d *document) error {
	u := s.opts.Relay.JoinPath("docs", d.id, "sync")
	if u.Scheme == "https" {
		u.Scheme = "wss"
	} else {
		u.Scheme = "ws"
	}
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, u.String(), nil)
	if err != nil {
		return fmt.Errorf("failed to dial: %w", err)
	}
	defer conn.Close()

	session := NewSession(conn, d.doc, &d.lock, s.opts.SyncInterval)

	var peersLock sync.Mutex
	peers := make(map[string]bool)
	session.OnPresence = func(p Presence) {
		if p.Peer == "" || p.Peer == s.opts.PeerID {
			return
		}
		peersLock.Lock()
		defer peersLock.Unlock()
		switch p.Type {
		case PresenceJoined:
			peers[p.Peer] = true
			s.emit(PeerJoined{Key: d.id, ID: p.Peer, Info: p.Info})
		case PresenceLeft:
			if peers[p.Peer] {
				delete(peers, p.Peer)
				s.emit(PeerLeft{Key: d.id, ID: p.Peer})
			}
		}
	}
	session.OnChange = func() {
		content, err := d.content()
		if err != nil {
			slog.Error("failed to read synced document", "doc", d.id, "err", err)
			return
		}
		s.archive(ctx, d)
		s.emit(DocumentUpdated{ID: d.id, Content: content, IsWritable: s.writable()})
	}

	if err := session.WritePresence(Presence{Type: PresenceHello, Peer: s.opts.PeerID, Info: s.opts.Info}); err != nil {
		return err
	}
	s.emit(PeerListening{Key: d.id, ID: s.opts.PeerID, Writable: s.writable()})

	err = session.Run(ctx)

	peersLock.Lock()
	for peer := range peers {
		s.emit(PeerLeft{Key: d.id, ID: peer})
	}
	peersLock.Unlock()
	return err
}

// fetchLatest downloads the relay's current save of a document.
func fetchLatest(ctx context.Context, relay *url.URL, id string) (*automerge.Doc, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, relay.JoinPath("docs", id, "latest").String(), nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build request: %w", err)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to get: %w", err)
	}
	defer resp.Body.Close()
	switch resp.StatusCode {
	case http.StatusOK:
	case http.StatusNotFound:
		return nil, ErrNotFound
	default:
		return nil, fmt.Errorf("unexpected status code: %d", resp.StatusCode)
	}
	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read body from get: %w", err)
	}
	doc, err := automerge.Load(raw)
	if err != nil {
		return nil, fmt.Errorf("failed to load doc: %w", err)
	}
	return doc, nil
}
