// Package viz draws the change history of a project document with graphviz.
package viz

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"strconv"

	"github.com/automerge/automerge-go"
	"github.com/goccy/go-graphviz"
	"github.com/goccy/go-graphviz/cgraph"

	"github.com/astromechza/pixelpusher/pkg/docsync"
)

// Step is one change in a document's history, with a summary of the project as of that change.
type Step struct {
	Hash         string
	Actor        string
	Seq          uint64
	Message      string
	Dependencies []string
	Summary      string
}

func (s Step) Label() string {
	return fmt.Sprintf("%s %s@%d %s\n%s", s.Hash[:8], s.Actor, s.Seq, s.Message, s.Summary)
}

// History checks out every change of doc in order and summarises the project content at that point.
func History(doc *automerge.Doc) ([]Step, error) {
	changes, err := doc.Changes()
	if err != nil {
		return nil, fmt.Errorf("failed to generate changes: %w", err)
	}
	steps := make([]Step, 0, len(changes))
	for _, change := range changes {
		docAt, err := doc.Fork(change.Hash())
		if err != nil {
			return nil, fmt.Errorf("failed to checkout %s: %w", change.Hash(), err)
		}
		summary := "unreadable"
		if content, err := docsync.ReadContent(docAt); err == nil {
			summary = fmt.Sprintf("%q %dx%d frames=%d colors=%d",
				content.Title, content.Width, content.Height, len(content.Frames), len(content.Palette))
		}
		deps := make([]string, 0, len(change.Dependencies()))
		for _, hash := range change.Dependencies() {
			deps = append(deps, hash.String())
		}
		steps = append(steps, Step{
			Hash:         change.Hash().String(),
			Actor:        change.ActorID(),
			Seq:          change.ActorSeq(),
			Message:      change.Message(),
			Dependencies: deps,
			Summary:      summary,
		})
	}
	return steps, nil
}

// Render writes the history graph of doc to w in the given format.
func Render(doc *automerge.Doc, format graphviz.Format, w io.Writer) error {
	steps, err := History(doc)
	if err != nil {
		return err
	}

	g := graphviz.New()
	defer g.Close()
	graph, err := g.Graph()
	if err != nil {
		return fmt.Errorf("failed to setup graph: %w", err)
	}
	defer graph.Close()

	nodeMap := make(map[string]*cgraph.Node, len(steps))
	edgeCounter := 0
	for _, step := range steps {
		n, err := graph.CreateNode(step.Hash)
		if err != nil {
			return fmt.Errorf("failed to create node: %w", err)
		}
		n.SetLabel(step.Label())
		nodeMap[step.Hash] = n

		for _, dep := range step.Dependencies {
			parent, ok := nodeMap[dep]
			if !ok {
				continue
			}
			edgeCounter++
			if _, err := graph.CreateEdge(strconv.Itoa(edgeCounter), parent, n); err != nil {
				return fmt.Errorf("failed to create edge: %w", err)
			}
		}
	}

	if err := g.Render(graph, format, w); err != nil {
		return fmt.Errorf("failed to render: %w", err)
	}
	return nil
}

func RenderToSvg(doc *automerge.Doc, outputPath string) error {
	var buff bytes.Buffer
	if err := Render(doc, graphviz.SVG, &buff); err != nil {
		return err
	}
	if err := os.WriteFile(outputPath, buff.Bytes(), 0o644); err != nil {
		return fmt.Errorf("failed to write %s: %w", outputPath, err)
	}
	return nil
}

// RenderToTemp renders an svg into a new temporary file and returns its path.
func RenderToTemp(doc *automerge.Doc) (string, error) {
	f, err := os.CreateTemp("", "pixelpusher-*.svg")
	if err != nil {
		return "", fmt.Errorf("failed to create temp file: %w", err)
	}
	_ = f.Close()
	if err := RenderToSvg(doc, f.Name()); err != nil {
		return "", err
	}
	return f.Name(), nil
}
