// Package rendertest is an in-memory Renderer that captures and replays
// command streams. Replay drives any Renderer from a recorded stream, so
// the same stream can be rendered to two Renderers and their resulting
// state compared; this package's own tests do so with two Recorders.
package rendertest

import (
	"strings"
	"time"

	"github.com/duofs/duofs/render"
)

// Recorder is a Renderer backed by an in-memory grid plus the full list
// of commands it was asked to draw, so a test can inspect either the
// resulting visual state or the exact call sequence.
type Recorder struct {
	rows, cols int
	grid       [][]render.RenderCell
	pairs      map[uint8][2]render.RGB
	cursorRow  int
	cursorCol  int
	cursorVis  bool
	initDone   bool

	Commands []render.RenderCommand

	// Events is consumed in order by PollEvent; tests populate it
	// before driving the surface under test. A PollEvent call against
	// an empty Events queue returns ok=false immediately (recorders
	// never actually block).
	Events []render.InputEvent
}

// New builds a Recorder with the given initial size.
func New(rows, cols int) *Recorder {
	r := &Recorder{rows: rows, cols: cols, pairs: map[uint8][2]render.RGB{}}
	r.resetGrid()
	return r
}

func (r *Recorder) resetGrid() {
	r.grid = make([][]render.RenderCell, r.rows)
	for i := range r.grid {
		r.grid[i] = make([]render.RenderCell, r.cols)
	}
}

// Init implements render.Renderer.
func (r *Recorder) Init() error {
	r.initDone = true
	return nil
}

// Shutdown implements render.Renderer.
func (r *Recorder) Shutdown() error {
	r.initDone = false
	return nil
}

func (r *Recorder) inBounds(row, col int) bool {
	return row >= 0 && row < r.rows && col >= 0 && col < r.cols
}

// DrawText implements render.Renderer, clipping any portion of text that
// falls outside the grid rather than failing.
func (r *Recorder) DrawText(row, col int, text string, pair uint8, attrs render.Attrs) {
	r.Commands = append(r.Commands, render.DrawText(row, col, text, pair, attrs))
	if row < 0 || row >= r.rows {
		return
	}
	c := col
	for _, ru := range text {
		if c >= r.cols {
			break
		}
		if c >= 0 {
			r.grid[row][c] = render.RenderCell{Char: string(ru), ColorPair: pair, Attrs: attrs}
		}
		c++
	}
}

// DrawHLine implements render.Renderer.
func (r *Recorder) DrawHLine(row, col int, ch rune, length int, pair uint8) {
	r.Commands = append(r.Commands, render.DrawHLine(row, col, ch, length, pair))
	if row < 0 || row >= r.rows {
		return
	}
	for i := 0; i < length; i++ {
		c := col + i
		if c < 0 || c >= r.cols {
			continue
		}
		r.grid[row][c] = render.RenderCell{Char: string(ch), ColorPair: pair}
	}
}

// DrawVLine implements render.Renderer.
func (r *Recorder) DrawVLine(row, col int, ch rune, length int, pair uint8) {
	r.Commands = append(r.Commands, render.DrawVLine(row, col, ch, length, pair))
	if col < 0 || col >= r.cols {
		return
	}
	for i := 0; i < length; i++ {
		rr := row + i
		if rr < 0 || rr >= r.rows {
			continue
		}
		r.grid[rr][col] = render.RenderCell{Char: string(ch), ColorPair: pair}
	}
}

// DrawRect implements render.Renderer.
func (r *Recorder) DrawRect(row, col, height, width int, pair uint8, filled bool) {
	r.Commands = append(r.Commands, render.DrawRect(row, col, height, width, pair, filled))
	for dr := 0; dr < height; dr++ {
		rr := row + dr
		if rr < 0 || rr >= r.rows {
			continue
		}
		for dc := 0; dc < width; dc++ {
			cc := col + dc
			if cc < 0 || cc >= r.cols {
				continue
			}
			onBorder := dr == 0 || dr == height-1 || dc == 0 || dc == width-1
			if filled || onBorder {
				r.grid[rr][cc] = render.RenderCell{Char: "#", ColorPair: pair}
			}
		}
	}
}

// Clear implements render.Renderer.
func (r *Recorder) Clear() {
	r.Commands = append(r.Commands, render.Clear())
	r.resetGrid()
}

// ClearRegion implements render.Renderer.
func (r *Recorder) ClearRegion(row, col, height, width int) {
	r.Commands = append(r.Commands, render.ClearRegion(row, col, height, width))
	for dr := 0; dr < height; dr++ {
		rr := row + dr
		if rr < 0 || rr >= r.rows {
			continue
		}
		for dc := 0; dc < width; dc++ {
			cc := col + dc
			if cc < 0 || cc >= r.cols {
				continue
			}
			r.grid[rr][cc] = render.RenderCell{}
		}
	}
}

// Refresh implements render.Renderer; a Recorder has no device to flush
// to, so this only appends to the command log.
func (r *Recorder) Refresh() {
	r.Commands = append(r.Commands, render.Refresh())
}

// RefreshRegion implements render.Renderer.
func (r *Recorder) RefreshRegion(row, col, height, width int) {
	r.Commands = append(r.Commands, render.RefreshRegion(row, col, height, width))
}

// InitColorPair implements render.Renderer.
func (r *Recorder) InitColorPair(pair uint8, fg, bg render.RGB) {
	r.Commands = append(r.Commands, render.InitColorPairCmd(pair, fg, bg))
	r.pairs[pair] = [2]render.RGB{fg, bg}
}

// SetCursorVisibility implements render.Renderer.
func (r *Recorder) SetCursorVisibility(visible bool) {
	r.Commands = append(r.Commands, render.SetCursorVisibilityCmd(visible))
	r.cursorVis = visible
}

// MoveCursor implements render.Renderer.
func (r *Recorder) MoveCursor(row, col int) {
	r.Commands = append(r.Commands, render.MoveCursorCmd(row, col))
	if r.inBounds(row, col) {
		r.cursorRow, r.cursorCol = row, col
	}
}

// GetSize implements render.Renderer.
func (r *Recorder) GetSize() (rows, cols int) { return r.rows, r.cols }

// Resize changes the grid dimensions, discarding prior contents, and is
// used by tests to synthesize a Resize InputEvent scenario.
func (r *Recorder) Resize(rows, cols int) {
	r.rows, r.cols = rows, cols
	r.resetGrid()
}

// PollEvent implements render.Renderer by draining the Events queue in
// order; Recorder never actually blocks regardless of timeout.
func (r *Recorder) PollEvent(timeout time.Duration) (render.InputEvent, bool) {
	if len(r.Events) == 0 {
		return render.InputEvent{}, false
	}
	ev := r.Events[0]
	r.Events = r.Events[1:]
	return ev, true
}

// Cell returns the grid contents at (row, col), or the zero RenderCell
// if out of bounds.
func (r *Recorder) Cell(row, col int) render.RenderCell {
	if !r.inBounds(row, col) {
		return render.RenderCell{}
	}
	return r.grid[row][col]
}

// RowText concatenates the Char of every cell in row, for readable test
// assertions.
func (r *Recorder) RowText(row int) string {
	if row < 0 || row >= r.rows {
		return ""
	}
	var b strings.Builder
	for _, c := range r.grid[row] {
		if c.Char == "" {
			b.WriteByte(' ')
		} else {
			b.WriteString(c.Char)
		}
	}
	return b.String()
}

// CursorPosition returns the last position passed to MoveCursor that
// was in bounds.
func (r *Recorder) CursorPosition() (row, col int) { return r.cursorRow, r.cursorCol }

// CursorVisible reports the last value passed to SetCursorVisibility.
func (r *Recorder) CursorVisible() bool { return r.cursorVis }

// Replay applies every command in stream to dst in order, letting a test
// drive two different Renderer implementations from the same recorded
// stream and compare their resulting state.
func Replay(stream []render.RenderCommand, dst render.Renderer) {
	for _, c := range stream {
		c.Apply(dst)
	}
}
