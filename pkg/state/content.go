package state

import (
	"fmt"
	"slices"

	"github.com/fxamacker/cbor/v2"
	"github.com/zeebo/blake3"
)

// Transparent is the pixel value of a cell with no palette color.
const Transparent = -1

// Content is the replicated drawing document of a project.
type Content struct {
	Title    string   `json:"title" cbor:"title"`
	Width    int      `json:"width" cbor:"width"`
	Height   int      `json:"height" cbor:"height"`
	CellSize int      `json:"cellSize" cbor:"cellSize"`
	Palette  []string `json:"palette" cbor:"palette"`
	Frames   []Frame  `json:"frames" cbor:"frames"`
}

// Frame holds one palette index (or Transparent) per cell, row major, plus its display interval in milliseconds.
type Frame struct {
	Pixels   []int `json:"pixels" cbor:"pixels"`
	Interval int   `json:"interval" cbor:"interval"`
}

// ContentHash identifies a Content value; equal contents always hash equal.
type ContentHash [32]byte

func (h ContentHash) String() string {
	return fmt.Sprintf("%x", h[:8])
}

var hashEncMode cbor.EncMode

func init() {
	var err error
	if hashEncMode, err = cbor.CoreDetEncOptions().EncMode(); err != nil {
		panic("state: cbor encoder initialization failed: " + err.Error())
	}
}

// Hash digests the deterministic CBOR encoding of c.
func (c Content) Hash() ContentHash {
	raw, err := hashEncMode.Marshal(c.normalized())
	if err != nil {
		// Content only holds strings, ints and slices of those.
		panic("state: failed to encode content: " + err.Error())
	}
	return blake3.Sum256(raw)
}

// normalized maps nil slices to empty ones so that hashing does not distinguish them.
func (c Content) normalized() Content {
	if c.Palette == nil {
		c.Palette = []string{}
	}
	if c.Frames == nil {
		c.Frames = []Frame{}
	}
	frames := make([]Frame, len(c.Frames))
	for i, f := range c.Frames {
		if f.Pixels == nil {
			f.Pixels = []int{}
		}
		frames[i] = f
	}
	c.Frames = frames
	return c
}

// Clone deep-copies c so the copy can be changed without touching shared slices.
func (c Content) Clone() Content {
	c.Palette = slices.Clone(c.Palette)
	frames := make([]Frame, len(c.Frames))
	for i, f := range c.Frames {
		frames[i] = f.Clone()
	}
	if c.Frames == nil {
		frames = nil
	}
	c.Frames = frames
	return c
}

func (f Frame) Clone() Frame {
	f.Pixels = slices.Clone(f.Pixels)
	return f
}

// PixelAt returns the value of a cell, or Transparent when the frame or cell does not exist.
func (c Content) PixelAt(frameIndex, pixelIndex int) int {
	if frameIndex < 0 || frameIndex >= len(c.Frames) {
		return Transparent
	}
	pixels := c.Frames[frameIndex].Pixels
	if pixelIndex < 0 || pixelIndex >= len(pixels) {
		return Transparent
	}
	return pixels[pixelIndex]
}
