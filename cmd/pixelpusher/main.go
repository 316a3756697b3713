package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"github.com/spf13/pflag"

	"github.com/astromechza/pixelpusher/pkg/config"
	"github.com/astromechza/pixelpusher/pkg/docsync"
	"github.com/astromechza/pixelpusher/pkg/mutation"
	"github.com/astromechza/pixelpusher/pkg/orchestrator"
	"github.com/astromechza/pixelpusher/pkg/reducer"
	"github.com/astromechza/pixelpusher/pkg/state"
	"github.com/astromechza/pixelpusher/pkg/store"
)

const maxActionLine = 16 << 20

func main() {
	if err := mainInner(); err != nil {
		slog.Error(err.Error())
		os.Exit(1)
	}
}

func mainInner() error {
	cfg, err := config.LoadClient(os.Args[1:])
	if errors.Is(err, pflag.ErrHelp) {
		return nil
	} else if err != nil {
		return err
	}
	level, _ := cfg.Log.SlogLevel()
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})))

	relay, err := cfg.Client.RelayURL()
	if err != nil {
		return err
	}
	if err := os.MkdirAll(cfg.Client.DataDir, 0o755); err != nil {
		return fmt.Errorf("failed to create data dir: %w", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	slog.Info("Opening archive", "path", cfg.Client.ArchivePath())
	archive, err := docsync.OpenArchive(ctx, cfg.Client.ArchivePath())
	if err != nil {
		return err
	}
	defer archive.Close()

	svc, err := docsync.Open(ctx, docsync.Options{
		PeerID:       cfg.Client.ID,
		Info:         state.PeerInfo{Name: cfg.Client.Name},
		Archive:      archive,
		Relay:        relay,
		SyncInterval: cfg.Sync.Interval,
		ReadOnly:     cfg.Client.ReadOnly,
	})
	if err != nil {
		return err
	}

	engine := reducer.NewEngine(mutation.Default{})
	st := store.New(engine.Reduce, state.New())
	orch := orchestrator.New(svc, st)
	st.Subscribe(orch.Watch)
	st.Subscribe(logChanges)

	wg := new(sync.WaitGroup)
	wg.Add(1)
	go func() {
		defer wg.Done()
		_ = st.Run(ctx)
	}()
	wg.Add(1)
	go func() {
		defer wg.Done()
		_ = orch.Run(ctx)
	}()

	st.Dispatch(reducer.SelfNameChanged{Name: cfg.Client.Name})
	st.Dispatch(reducer.ServiceReady{ArchiverKey: svc.PeerID()})
	slog.Info("ready", "peer", svc.PeerID(), "relay", cfg.Client.Relay, "read-only", cfg.Client.ReadOnly)

	go readActions(os.Stdin, st)

	exit := make(chan os.Signal, 1)
	signal.Notify(exit, syscall.SIGINT, syscall.SIGTERM)
	sig := <-exit
	slog.Info("Signal caught", "sig", sig)
	cancel()
	_ = svc.Close()
	wg.Wait()
	return nil
}

// readActions dispatches one json action per input line. Malformed lines are logged and skipped.
func readActions(r io.Reader, st *store.Store) {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), maxActionLine)
	for scanner.Scan() {
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}
		action, err := reducer.DecodeAction(line)
		if err != nil {
			slog.Warn("ignoring action", "err", err)
			continue
		}
		if u, ok := action.(reducer.Unknown); ok {
			slog.Warn("ignoring unknown action", "type", u.Type)
			continue
		}
		st.Dispatch(action)
	}
	if err := scanner.Err(); err != nil {
		slog.Error("failed to read actions", "err", err)
	}
	slog.Info("input closed, waiting for signal")
}

func logChanges(prev, next state.State) {
	if prev.CurrentProjectID != next.CurrentProjectID {
		slog.Info("project selected", "project", next.CurrentProjectID)
	}
	if len(prev.Projects) != len(next.Projects) {
		slog.Info("projects", "count", len(next.Projects))
	}
	if len(prev.Peers) != len(next.Peers) {
		slog.Info("peers", "count", len(next.Peers))
	}
	for _, n := range next.Notifications {
		if len(prev.Notifications) == 0 || prev.Notifications[0] != n {
			slog.Info("notification", "message", n.Message)
		}
	}
	if p, ok := next.CurrentProject(); ok {
		slog.Debug("current project",
			"title", p.Doc.Title, "frame", next.ActiveFrameIndex, "frames", len(p.Doc.Frames),
			"swatch", next.CurrentSwatchIndex, "hash", p.Doc.Hash().String())
	}
}
