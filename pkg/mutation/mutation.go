// Package mutation holds the pure transformations applied to a project's drawing document. Every function returns a
// new Content and leaves its input untouched; out of range indexes return the input unchanged.
package mutation

import (
	"github.com/astromechza/pixelpusher/pkg/state"
)

const (
	DefaultSize     = 16
	DefaultCellSize = 20
	DefaultInterval = 100
	DefaultTitle    = "Untitled"
)

// Dimension names a grid axis for Resize.
type Dimension string

const (
	Columns Dimension = "columns"
	Rows    Dimension = "rows"
)

// Behavior says whether Resize grows or shrinks the axis.
type Behavior string

const (
	Add    Behavior = "add"
	Remove Behavior = "remove"
)

// Default is the stock mutation capability. It satisfies reducer.Mutator.
type Default struct{}

// NewContent returns the document a freshly created project starts with: one empty frame and the default palette.
func NewContent() state.Content {
	return state.Content{
		Title:    DefaultTitle,
		Width:    DefaultSize,
		Height:   DefaultSize,
		CellSize: DefaultCellSize,
		Palette:  state.DefaultPalette(),
		Frames:   []state.Frame{emptyFrame(DefaultSize*DefaultSize, DefaultInterval)},
	}
}

func emptyFrame(cells, interval int) state.Frame {
	pixels := make([]int, cells)
	for i := range pixels {
		pixels[i] = state.Transparent
	}
	return state.Frame{Pixels: pixels, Interval: interval}
}

func validFrame(c state.Content, frameIndex int) bool {
	return frameIndex >= 0 && frameIndex < len(c.Frames)
}

func (Default) SetCell(c state.Content, frameIndex, pixelIndex, value int) state.Content {
	if !validFrame(c, frameIndex) || pixelIndex < 0 || pixelIndex >= len(c.Frames[frameIndex].Pixels) {
		return c
	}
	if c.Frames[frameIndex].Pixels[pixelIndex] == value {
		return c
	}
	out := c.Clone()
	out.Frames[frameIndex].Pixels[pixelIndex] = value
	return out
}

// Bucket flood fills the 4-connected region of cells holding swatchID that contains pixelIndex with fill.
func (Default) Bucket(c state.Content, frameIndex, pixelIndex, swatchID, fill int) state.Content {
	if !validFrame(c, frameIndex) || c.Width <= 0 {
		return c
	}
	pixels := c.Frames[frameIndex].Pixels
	if pixelIndex < 0 || pixelIndex >= len(pixels) || pixels[pixelIndex] != swatchID || swatchID == fill {
		return c
	}
	out := c.Clone()
	target := out.Frames[frameIndex].Pixels
	stack := []int{pixelIndex}
	for len(stack) > 0 {
		i := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		if target[i] != swatchID {
			continue
		}
		target[i] = fill
		col := i % c.Width
		if col > 0 {
			stack = append(stack, i-1)
		}
		if col < c.Width-1 && i+1 < len(target) {
			stack = append(stack, i+1)
		}
		if i-c.Width >= 0 {
			stack = append(stack, i-c.Width)
		}
		if i+c.Width < len(target) {
			stack = append(stack, i+c.Width)
		}
	}
	return out
}

// AddFrame appends an empty frame sized to the grid.
func (Default) AddFrame(c state.Content) state.Content {
	out := c.Clone()
	out.Frames = append(out.Frames, emptyFrame(c.Width*c.Height, DefaultInterval))
	return out
}

// DeleteFrame removes a frame. The last remaining frame is never deleted.
func (Default) DeleteFrame(c state.Content, frameIndex int) state.Content {
	if !validFrame(c, frameIndex) || len(c.Frames) <= 1 {
		return c
	}
	out := c.Clone()
	out.Frames = append(out.Frames[:frameIndex], out.Frames[frameIndex+1:]...)
	return out
}

// CloneFrame inserts a copy of the frame directly after it.
func (Default) CloneFrame(c state.Content, frameIndex int) state.Content {
	if !validFrame(c, frameIndex) {
		return c
	}
	out := c.Clone()
	frames := make([]state.Frame, 0, len(out.Frames)+1)
	frames = append(frames, out.Frames[:frameIndex+1]...)
	frames = append(frames, out.Frames[frameIndex].Clone())
	frames = append(frames, out.Frames[frameIndex+1:]...)
	out.Frames = frames
	return out
}

func (Default) ResetFrame(c state.Content, frameIndex int) state.Content {
	if !validFrame(c, frameIndex) {
		return c
	}
	out := c.Clone()
	out.Frames[frameIndex] = emptyFrame(len(c.Frames[frameIndex].Pixels), c.Frames[frameIndex].Interval)
	return out
}

func (Default) SetFrameInterval(c state.Content, frameIndex, interval int) state.Content {
	if !validFrame(c, frameIndex) || interval < 0 {
		return c
	}
	out := c.Clone()
	out.Frames[frameIndex].Interval = interval
	return out
}

func (Default) SetSwatchColor(c state.Content, swatchIndex int, color string) state.Content {
	if swatchIndex < 0 || swatchIndex >= len(c.Palette) {
		return c
	}
	out := c.Clone()
	out.Palette[swatchIndex] = color
	return out
}

func (Default) AddColor(c state.Content, color string) state.Content {
	out := c.Clone()
	out.Palette = append(out.Palette, color)
	return out
}

func (Default) SetCellSize(c state.Content, cellSize int) state.Content {
	if cellSize <= 0 {
		return c
	}
	c.CellSize = cellSize
	return c
}

func (Default) SetTitle(c state.Content, title string) state.Content {
	c.Title = title
	return c
}

// Resize adds or removes one column or row at the trailing edge of every frame.
func (Default) Resize(c state.Content, dimension Dimension, behavior Behavior) state.Content {
	width, height := c.Width, c.Height
	switch {
	case dimension == Columns && behavior == Add:
		width++
	case dimension == Columns && behavior == Remove:
		width--
	case dimension == Rows && behavior == Add:
		height++
	case dimension == Rows && behavior == Remove:
		height--
	default:
		return c
	}
	if width < 1 || height < 1 {
		return c
	}
	out := c.Clone()
	for i, f := range out.Frames {
		out.Frames[i].Pixels = regrid(f.Pixels, c.Width, width, height)
	}
	out.Width, out.Height = width, height
	return out
}

// regrid copies pixels laid out with oldWidth columns into a width×height grid, cropping or padding with
// Transparent cells.
func regrid(pixels []int, oldWidth, width, height int) []int {
	out := make([]int, width*height)
	for i := range out {
		row, col := i/width, i%width
		src := row*oldWidth + col
		if col < oldWidth && src < len(pixels) {
			out[i] = pixels[src]
		} else {
			out[i] = state.Transparent
		}
	}
	return out
}

// AddFrameFromPixels appends a frame built from an imported width×height image of palette indexes, fitted to the
// grid. Indexes outside the palette become Transparent.
func (Default) AddFrameFromPixels(c state.Content, pixels []int, width, height int) state.Content {
	if width <= 0 || height <= 0 {
		return c
	}
	fitted := regrid(pixels, width, c.Width, c.Height)
	for i, p := range fitted {
		row := i / c.Width
		if row >= height || p < 0 || p >= len(c.Palette) {
			fitted[i] = state.Transparent
		}
	}
	out := c.Clone()
	out.Frames = append(out.Frames, state.Frame{Pixels: fitted, Interval: DefaultInterval})
	return out
}
