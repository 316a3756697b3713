package docsync

import (
	"fmt"
	"slices"

	"github.com/automerge/automerge-go"

	"github.com/astromechza/pixelpusher/pkg/state"
)

// Document layout:
//
//	title: str, width: int, height: int, cellSize: int
//	palette: [str]
//	frames: [{pixels: [int], interval: int}]
//
// Transparent cells are stored as -1.

// ReadContent decodes the project content held in doc. Missing keys read as zero values.
func ReadContent(doc *automerge.Doc) (state.Content, error) {
	var c state.Content
	var err error
	if c.Title, err = readString(doc.Path("title")); err != nil {
		return c, fmt.Errorf("failed to read title: %w", err)
	}
	if c.Width, err = readInt(doc.Path("width")); err != nil {
		return c, fmt.Errorf("failed to read width: %w", err)
	}
	if c.Height, err = readInt(doc.Path("height")); err != nil {
		return c, fmt.Errorf("failed to read height: %w", err)
	}
	if c.CellSize, err = readInt(doc.Path("cellSize")); err != nil {
		return c, fmt.Errorf("failed to read cell size: %w", err)
	}

	palette, ok, err := readList(doc.Path("palette"))
	if err != nil {
		return c, fmt.Errorf("failed to read palette: %w", err)
	} else if ok {
		c.Palette = make([]string, 0, palette.Len())
		for i := 0; i < palette.Len(); i++ {
			v, err := palette.Get(i)
			if err != nil {
				return c, fmt.Errorf("failed to read swatch %d: %w", i, err)
			}
			color, err := valueString(v)
			if err != nil {
				return c, fmt.Errorf("failed to read swatch %d: %w", i, err)
			}
			c.Palette = append(c.Palette, color)
		}
	}

	frames, ok, err := readList(doc.Path("frames"))
	if err != nil {
		return c, fmt.Errorf("failed to read frames: %w", err)
	} else if ok {
		c.Frames = make([]state.Frame, 0, frames.Len())
		for i := 0; i < frames.Len(); i++ {
			frame, err := readFrame(doc, i)
			if err != nil {
				return c, fmt.Errorf("failed to read frame %d: %w", i, err)
			}
			c.Frames = append(c.Frames, frame)
		}
	}
	return c, nil
}

func readFrame(doc *automerge.Doc, index int) (state.Frame, error) {
	var f state.Frame
	var err error
	if f.Interval, err = readInt(doc.Path("frames", index, "interval")); err != nil {
		return f, err
	}
	pixels, ok, err := readList(doc.Path("frames", index, "pixels"))
	if err != nil || !ok {
		return f, err
	}
	f.Pixels = make([]int, 0, pixels.Len())
	for j := 0; j < pixels.Len(); j++ {
		v, err := pixels.Get(j)
		if err != nil {
			return f, err
		}
		p, err := valueInt(v)
		if err != nil {
			return f, fmt.Errorf("pixel %d: %w", j, err)
		}
		f.Pixels = append(f.Pixels, p)
	}
	return f, nil
}

func readString(p *automerge.Path) (string, error) {
	v, err := p.Get()
	if err != nil {
		return "", err
	}
	return valueString(v)
}

func readInt(p *automerge.Path) (int, error) {
	v, err := p.Get()
	if err != nil {
		return 0, err
	}
	return valueInt(v)
}

func readList(p *automerge.Path) (*automerge.List, bool, error) {
	v, err := p.Get()
	if err != nil {
		return nil, false, err
	}
	if v.Kind() != automerge.KindList {
		return nil, false, nil
	}
	return v.List(), true, nil
}

func valueString(v *automerge.Value) (string, error) {
	switch v.Kind() {
	case automerge.KindStr:
		return v.Str(), nil
	case automerge.KindVoid, automerge.KindNull:
		return "", nil
	}
	return "", fmt.Errorf("expected a string, got %v", v.Kind())
}

func valueInt(v *automerge.Value) (int, error) {
	switch v.Kind() {
	case automerge.KindInt64:
		return int(v.Int64()), nil
	case automerge.KindUint64:
		return int(v.Uint64()), nil
	case automerge.KindFloat64:
		return int(v.Float64()), nil
	case automerge.KindNull:
		return state.Transparent, nil
	case automerge.KindVoid:
		return 0, nil
	}
	return 0, fmt.Errorf("expected a number, got %v", v.Kind())
}

// WriteContent makes doc hold c, touching only the keys, swatches and cells that differ so that concurrent edits to
// other cells merge cleanly. It reports whether anything was written; the caller commits.
func WriteContent(doc *automerge.Doc, c state.Content) (bool, error) {
	current, err := ReadContent(doc)
	if err != nil {
		return false, err
	}
	return WriteChanges(doc, current, c)
}

// WriteChanges writes the edits that turn base into next. Only values that differ between base and next are
// written, so anything the document gained from other peers since base was read is kept. Edits to swatches, frames
// or cells that no longer exist in doc are dropped. The caller commits.
func WriteChanges(doc *automerge.Doc, base, next state.Content) (bool, error) {
	live, err := ReadContent(doc)
	if err != nil {
		return false, err
	}
	w := &contentWriter{doc: doc}
	setIfChanged(w, base.Title, next.Title, "title")
	setIfChanged(w, base.Width, next.Width, "width")
	setIfChanged(w, base.Height, next.Height, "height")
	setIfChanged(w, base.CellSize, next.CellSize, "cellSize")
	w.palette(live.Palette, base.Palette, next.Palette)
	w.frames(live.Frames, base.Frames, next.Frames)
	return w.changed, w.err
}

type contentWriter struct {
	doc     *automerge.Doc
	changed bool
	err     error
}

func (w *contentWriter) set(value any, path ...any) {
	if w.err != nil {
		return
	}
	if err := w.doc.Path(path...).Set(value); err != nil {
		w.err = fmt.Errorf("failed to set %v: %w", path, err)
		return
	}
	w.changed = true
}

func setIfChanged[T comparable](w *contentWriter, old, next T, path ...any) {
	if old != next {
		w.set(next, path...)
	}
}

func (w *contentWriter) isList(path ...any) bool {
	_, ok, err := readList(w.doc.Path(path...))
	return err == nil && ok
}

func (w *contentWriter) appendTo(value any, path ...any) {
	if w.err != nil {
		return
	}
	if err := w.doc.Path(path...).List().Append(value); err != nil {
		w.err = fmt.Errorf("failed to append to %v: %w", path, err)
		return
	}
	w.changed = true
}

// truncate deletes list items from index from-1 down to index length.
func (w *contentWriter) truncate(from, length int, path ...any) {
	for i := from - 1; i >= length && w.err == nil; i-- {
		if err := w.doc.Path(path...).List().Delete(i); err != nil {
			w.err = fmt.Errorf("failed to delete %v[%d]: %w", path, i, err)
			return
		}
		w.changed = true
	}
}

func (w *contentWriter) palette(live, base, next []string) {
	if !w.isList("palette") {
		if !slices.Equal(base, next) {
			w.set(stringsToAny(next), "palette")
		}
		return
	}
	for i := 0; i < len(next); i++ {
		switch {
		case i >= len(base):
			w.appendTo(next[i], "palette")
		case i < len(live):
			setIfChanged(w, base[i], next[i], "palette", i)
		}
	}
	if len(next) < len(base) {
		w.truncate(min(len(base), len(live)), len(next), "palette")
	}
}

func (w *contentWriter) frames(live, base, next []state.Frame) {
	if !w.isList("frames") {
		if !slices.EqualFunc(base, next, framesEqual) {
			w.set(framesToAny(next), "frames")
		}
		return
	}
	for i := 0; i < len(next); i++ {
		if i >= len(base) {
			w.appendTo(frameToAny(next[i]), "frames")
			continue
		}
		if i >= len(live) {
			continue
		}
		setIfChanged(w, base[i].Interval, next[i].Interval, "frames", i, "interval")
		old, pixels := base[i].Pixels, next[i].Pixels
		if slices.Equal(old, pixels) {
			continue
		}
		if len(old) != len(pixels) || !w.isList("frames", i, "pixels") {
			w.set(intsToAny(pixels), "frames", i, "pixels")
			continue
		}
		for j, p := range pixels {
			if old[j] != p && j < len(live[i].Pixels) {
				w.set(int64(p), "frames", i, "pixels", j)
			}
		}
	}
	if len(next) < len(base) {
		w.truncate(min(len(base), len(live)), len(next), "frames")
	}
}

func framesEqual(a, b state.Frame) bool {
	return a.Interval == b.Interval && slices.Equal(a.Pixels, b.Pixels)
}

func stringsToAny(values []string) []any {
	out := make([]any, len(values))
	for i, v := range values {
		out[i] = v
	}
	return out
}

func intsToAny(values []int) []any {
	out := make([]any, len(values))
	for i, v := range values {
		out[i] = int64(v)
	}
	return out
}

func frameToAny(f state.Frame) map[string]any {
	return map[string]any{
		"pixels":   intsToAny(f.Pixels),
		"interval": int64(f.Interval),
	}
}

func framesToAny(frames []state.Frame) []any {
	out := make([]any, len(frames))
	for i, f := range frames {
		out[i] = frameToAny(f)
	}
	return out
}
