package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"sync"
	"syscall"
	"time"

	"github.com/automerge/automerge-go"
	"github.com/felixge/httpsnoop"
	"github.com/spf13/pflag"

	"github.com/astromechza/pixelpusher/pkg/config"
	"github.com/astromechza/pixelpusher/pkg/docsync"
	"github.com/astromechza/pixelpusher/pkg/viz"
)

func main() {
	if err := mainInner(); err != nil {
		slog.Error(err.Error())
		os.Exit(1)
	}
}

func mainInner() error {
	cfg, err := config.LoadRelay(os.Args[1:])
	if errors.Is(err, pflag.ErrHelp) {
		return nil
	} else if err != nil {
		return err
	}
	level, _ := cfg.Log.SlogLevel()
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	slog.Info("Opening database", "path", cfg.Relay.Database)
	archive, err := docsync.OpenArchive(ctx, cfg.Relay.Database)
	if err != nil {
		return err
	}
	defer archive.Close()

	relay := docsync.NewRelay(archive, cfg.Relay.SyncInterval)
	if err := relay.Load(ctx); err != nil {
		return err
	}

	wg := new(sync.WaitGroup)

	wg.Add(1)
	go func() {
		defer wg.Done()
		t := time.NewTicker(cfg.Relay.BackupInterval)
		defer t.Stop()
		for {
			select {
			case <-t.C:
				relay.Backup(ctx)
			case <-ctx.Done():
				return
			}
		}
	}()

	httpServer := &http.Server{Addr: cfg.Relay.Addr, Handler: logRequests(relay.Handler())}

	wg.Add(1)
	go func() {
		defer wg.Done()
		slog.Info("listening", "addr", cfg.Relay.Addr)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("server listen failed", "err", err)
		}
	}()

	exit := make(chan os.Signal, 1) // buffered so the notifier is never blocked
	signal.Notify(exit, syscall.SIGINT, syscall.SIGTERM)
	sig := <-exit
	slog.Info("Signal caught", "sig", sig)
	cancel()
	_ = httpServer.Close()

	wg.Wait()

	// final backup with a fresh context since ctx is already cancelled
	relay.Backup(context.Background())

	if cfg.Relay.RenderOnExit {
		relay.Each(dump)
	}
	return nil
}

func logRequests(handler http.Handler) http.Handler {
	return http.HandlerFunc(func(writer http.ResponseWriter, request *http.Request) {
		m := httpsnoop.CaptureMetrics(handler, writer, request)
		slog.Info("handled", "method", request.Method, "url", request.URL, "duration", m.Duration, "status", m.Code)
	})
}

// dump writes the document save and its rendered history into the temp dir.
func dump(id string, doc *automerge.Doc) {
	tf := filepath.Join(os.TempDir(), id+".automerge")
	if err := os.WriteFile(tf, doc.Save(), 0o644); err != nil {
		slog.Error("failed to dump", "doc", id, "err", err)
	} else {
		slog.Info("dumped", "doc", id, "path", tf)
	}
	if svgPath, err := viz.RenderToTemp(doc); err != nil {
		slog.Error("failed to render", "doc", id, "err", err)
	} else {
		slog.Info("rendered", "doc", id, "path", "file://"+svgPath)
	}
}
