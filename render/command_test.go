package render

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestCommandApplyRoundTrip(t *testing.T) {
	stream := []RenderCommand{
		DrawText(1, 2, "hi", 3, AttrBold),
		DrawHLine(0, 0, '-', 10, 1),
		DrawVLine(0, 0, '|', 5, 1),
		DrawRect(0, 0, 3, 3, 2, true),
		Clear(),
		ClearRegion(1, 1, 2, 2),
		Refresh(),
		RefreshRegion(0, 0, 1, 1),
		InitColorPairCmd(5, RGB{255, 0, 0}, RGB{0, 0, 0}),
		SetCursorVisibilityCmd(false),
		MoveCursorCmd(4, 4),
	}

	rec := &recordingRenderer{}
	for _, c := range stream {
		c.Apply(rec)
	}
	assert.Equal(t, "hi", rec.lastText)
	assert.Equal(t, uint8(2), rec.lastRectPair)
	assert.True(t, rec.cleared)
	assert.Equal(t, 4, rec.cursorRow)
	assert.False(t, rec.cursorVisible)
}

// recordingRenderer is a minimal Renderer stub, local to this test file,
// used to assert that Apply dispatches to the right method with the
// right arguments.
type recordingRenderer struct {
	lastText      string
	lastRectPair  uint8
	cleared       bool
	cursorRow     int
	cursorVisible bool
}

func (r *recordingRenderer) Init() error    { return nil }
func (r *recordingRenderer) Shutdown() error { return nil }
func (r *recordingRenderer) DrawText(row, col int, text string, pair uint8, attrs Attrs) {
	r.lastText = text
}
func (r *recordingRenderer) DrawHLine(row, col int, ch rune, length int, pair uint8) {}
func (r *recordingRenderer) DrawVLine(row, col int, ch rune, length int, pair uint8) {}
func (r *recordingRenderer) DrawRect(row, col, height, width int, pair uint8, filled bool) {
	r.lastRectPair = pair
}
func (r *recordingRenderer) Clear()                                 { r.cleared = true }
func (r *recordingRenderer) ClearRegion(row, col, height, width int) {}
func (r *recordingRenderer) Refresh()                                {}
func (r *recordingRenderer) RefreshRegion(row, col, height, width int) {}
func (r *recordingRenderer) InitColorPair(pair uint8, fg, bg RGB)    {}
func (r *recordingRenderer) SetCursorVisibility(visible bool)       { r.cursorVisible = visible }
func (r *recordingRenderer) MoveCursor(row, col int)                { r.cursorRow = row }
func (r *recordingRenderer) GetSize() (int, int)                    { return 24, 80 }
func (r *recordingRenderer) PollEvent(d time.Duration) (InputEvent, bool) {
	return InputEvent{}, false
}
