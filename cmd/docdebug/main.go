package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"

	"github.com/automerge/automerge-go"
	"github.com/goccy/go-graphviz"
	"github.com/spf13/pflag"

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
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{})))

	fs := pflag.NewFlagSet("docdebug", pflag.ContinueOnError)
	archivePath := fs.String("archive", "", "read the document from this sqlite archive instead of a saved file")
	format := fs.String("format", "dot", "graphviz output format for the change graph (dot, svg, png)")
	if err := fs.Parse(os.Args[1:]); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return nil
		}
		return err
	}
	if fs.NArg() != 1 {
		return fmt.Errorf("expected one position argument: the file to read, or the document id with --archive")
	}

	doc, err := load(*archivePath, fs.Arg(0))
	if err != nil {
		return err
	}

	content, err := docsync.ReadContent(doc)
	if err != nil {
		return fmt.Errorf("failed to read content: %w", err)
	}
	slog.Info("loaded doc", "title", content.Title, "width", content.Width, "height", content.Height,
		"frames", len(content.Frames), "palette", len(content.Palette), "hash", content.Hash().String())
	slog.Info("loaded heads", "heads", doc.Heads())

	steps, err := viz.History(doc)
	if err != nil {
		return err
	}
	slog.Info("changes:")
	for i, step := range steps {
		slog.Info("change", "i", fmt.Sprintf("%4d", i), "hash", step.Hash, "actor", step.Actor, "seq", step.Seq,
			"msg", step.Message, "dep", step.Dependencies, "content", step.Summary)
	}

	return viz.Render(doc, graphviz.Format(*format), os.Stdout)
}

func load(archivePath, arg string) (*automerge.Doc, error) {
	if archivePath != "" {
		archive, err := docsync.OpenArchive(context.Background(), archivePath)
		if err != nil {
			return nil, err
		}
		defer archive.Close()
		return archive.Get(context.Background(), arg)
	}
	buff, err := os.ReadFile(arg)
	if err != nil {
		return nil, fmt.Errorf("failed to read input file: %w", err)
	}
	doc, err := automerge.Load(buff)
	if err != nil {
		return nil, fmt.Errorf("failed to load doc: %w", err)
	}
	return doc, nil
}
