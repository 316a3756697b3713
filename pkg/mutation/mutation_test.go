package mutation

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/astromechza/pixelpusher/pkg/state"
)

func small(width, height int) state.Content {
	c := NewContent()
	c.Width, c.Height = width, height
	c.Frames = []state.Frame{emptyFrame(width*height, DefaultInterval)}
	return c
}

func TestNewContent(t *testing.T) {
	c := NewContent()
	require.Len(t, c.Frames, 1)
	require.Len(t, c.Frames[0].Pixels, DefaultSize*DefaultSize)
	require.Len(t, c.Palette, 30)
	for _, p := range c.Frames[0].Pixels {
		require.Equal(t, state.Transparent, p)
	}
}

func TestBucketFillsConnectedRegionOnly(t *testing.T) {
	m := Default{}
	// 4x3 grid with a wall of 1s in column 1:
	// . 1 . .
	// . 1 . .
	// . 1 . .
	c := small(4, 3)
	for row := 0; row < 3; row++ {
		c = m.SetCell(c, 0, row*4+1, 1)
	}

	out := m.Bucket(c, 0, 2, state.Transparent, 5)
	want := []int{
		-1, 1, 5, 5,
		-1, 1, 5, 5,
		-1, 1, 5, 5,
	}
	require.Equal(t, want, out.Frames[0].Pixels)
	require.Equal(t, state.Transparent, c.Frames[0].Pixels[2], "input must not change")
}

func TestBucketIgnoresMismatchedSeed(t *testing.T) {
	m := Default{}
	c := small(2, 2)
	require.Equal(t, c, m.Bucket(c, 0, 0, 3, 4))
	require.Equal(t, c, m.Bucket(c, 1, 0, state.Transparent, 4))
}

func TestFrameOperations(t *testing.T) {
	m := Default{}
	c := m.SetCell(small(2, 2), 0, 0, 1)

	c = m.AddFrame(c)
	require.Len(t, c.Frames, 2)
	require.Equal(t, []int{-1, -1, -1, -1}, c.Frames[1].Pixels)

	c = m.CloneFrame(c, 0)
	require.Len(t, c.Frames, 3)
	require.Equal(t, c.Frames[0], c.Frames[1])

	c = m.SetCell(c, 1, 3, 2)
	require.NotEqual(t, c.Frames[0], c.Frames[1], "cloned frame must not share pixels")

	c = m.DeleteFrame(c, 0)
	require.Len(t, c.Frames, 2)
	require.Equal(t, []int{1, -1, -1, 2}, c.Frames[0].Pixels)

	c = m.SetFrameInterval(c, 1, 40)
	require.Equal(t, 40, c.Frames[1].Interval)

	c = m.ResetFrame(c, 0)
	require.Equal(t, []int{-1, -1, -1, -1}, c.Frames[0].Pixels)

	one := m.DeleteFrame(m.DeleteFrame(c, 0), 0)
	require.Len(t, one.Frames, 1)
}

func TestResize(t *testing.T) {
	m := Default{}
	c := small(2, 2)
	c.Frames[0].Pixels = []int{0, 1, 2, 3}

	wider := m.Resize(c, Columns, Add)
	require.Equal(t, 3, wider.Width)
	require.Equal(t, []int{0, 1, -1, 2, 3, -1}, wider.Frames[0].Pixels)

	shorter := m.Resize(c, Rows, Remove)
	require.Equal(t, 1, shorter.Height)
	require.Equal(t, []int{0, 1}, shorter.Frames[0].Pixels)

	narrow := m.Resize(m.Resize(c, Columns, Remove), Columns, Remove)
	require.Equal(t, 1, narrow.Width, "grid never shrinks below one column")

	require.Equal(t, c, m.Resize(c, Dimension("depth"), Add))
}

func TestPaletteEdits(t *testing.T) {
	m := Default{}
	c := NewContent()
	size := len(c.Palette)

	c = m.AddColor(c, "#010203")
	require.Len(t, c.Palette, size+1)
	require.Equal(t, "#010203", c.Palette[size])

	c = m.SetSwatchColor(c, 0, "#ffffff")
	require.Equal(t, "#ffffff", c.Palette[0])
	require.Equal(t, c, m.SetSwatchColor(c, 99, "#000000"))
	require.Equal(t, "#000000", state.DefaultPalette()[0], "default palette must not be shared")
}

func TestAddFrameFromPixels(t *testing.T) {
	m := Default{}
	c := small(3, 2)
	c.Palette = []string{"#000000", "#ffffff"}

	out := m.AddFrameFromPixels(c, []int{1, 0, 9, 1}, 2, 2)
	require.Len(t, out.Frames, 2)
	require.Equal(t, []int{1, 0, -1, -1, 1, -1}, out.Frames[1].Pixels)
}

func TestScalarEdits(t *testing.T) {
	m := Default{}
	c := NewContent()
	require.Equal(t, 8, m.SetCellSize(c, 8).CellSize)
	require.Equal(t, c, m.SetCellSize(c, 0))
	require.Equal(t, "sprite", m.SetTitle(c, "sprite").Title)
}
