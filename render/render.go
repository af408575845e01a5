// Package render is the abstract cell-surface contract every rendering
// backend implements, grounded on rclone's use of gdamore/tcell/v2 and
// mattn/go-runewidth (see go.mod). The core ships no concrete curses or
// bitmap backend beyond render/cellrender, the one reference backend used
// to exercise this contract in tests; real terminal/windowed frontends are
// out of scope per spec.md §1.
//
// Every draw primitive on Renderer silently clips against the surface:
// out-of-bounds coordinates are no-ops, never panics or errors, matching
// the bounds policy in spec.md §4.5.
package render

import "time"

// Attrs is a bitmask of cell attributes.
type Attrs uint16

// The attribute bits a RenderCell may carry.
const (
	AttrBold Attrs = 1 << iota
	AttrUnderline
	AttrReverse
	AttrDim
	AttrBlink
	AttrItalic
)

// Has reports whether a is set in the mask.
func (a Attrs) Has(bit Attrs) bool { return a&bit != 0 }

// RGB is a single 8-bit-per-channel color component triple.
type RGB struct {
	R, G, B uint8
}

// ColorPair is an indexed (foreground, background) RGB tuple. Pair 0
// stands for the terminal/surface default; the backends in this module
// do not guard it, so InitColorPair(0, ...) redefines it like any other
// pair.
type ColorPair struct {
	Foreground RGB
	Background RGB
}

// DefaultColorPair is color pair 0: the surface's own default colors.
const DefaultColorPair uint8 = 0

// RenderCell is one addressable surface position.
type RenderCell struct {
	Char      string // a single grapheme cluster; empty means "untouched"
	ColorPair uint8
	Attrs     Attrs
}

// KeyCode enumerates the named keys the contract recognizes. Character
// keys carry KeyCharacter plus a populated Char field on the event.
type KeyCode int

// Named keys, matching spec.md §4.5's enumeration.
const (
	KeyCharacter KeyCode = iota
	KeyUp
	KeyDown
	KeyLeft
	KeyRight
	KeyEnter
	KeyEscape
	KeyTab
	KeyBackTab
	KeyBackspace
	KeyDelete
	KeyHome
	KeyEnd
	KeyPgUp
	KeyPgDn
	KeyF1
	KeyF2
	KeyF3
	KeyF4
	KeyF5
	KeyF6
	KeyF7
	KeyF8
	KeyF9
	KeyF10
	KeyF11
	KeyF12
	KeyUnknown
)

// ModifierKey is a bitmask of active modifier keys.
type ModifierKey uint8

// The modifier bits.
const (
	ModShift ModifierKey = 1 << iota
	ModControl
	ModAlt
	ModMeta
)

// MouseButton identifies which button a mouse event concerns.
type MouseButton int

// The mouse buttons the contract distinguishes.
const (
	MouseButtonNone MouseButton = iota
	MouseButtonLeft
	MouseButtonRight
	MouseButtonMiddle
)

// MouseEventKind discriminates the shape of a Mouse InputEvent.
type MouseEventKind int

// The mouse event kinds.
const (
	MouseDown MouseEventKind = iota
	MouseUp
	MouseMove
	MouseDoubleClick
	MouseScroll
)

// InputEventKind discriminates which field of InputEvent is populated.
type InputEventKind int

// The three InputEvent shapes.
const (
	EventKey InputEventKind = iota
	EventMouse
	EventResize
)

// InputEvent is the sum type polled from a Renderer. Exactly one of Key,
// Mouse, Resize is meaningful, selected by Kind.
type InputEvent struct {
	Kind InputEventKind

	// Key fields, valid when Kind == EventKey.
	KeyCode   KeyCode
	Modifiers ModifierKey
	Char      string // populated when KeyCode == KeyCharacter

	// Mouse fields, valid when Kind == EventMouse.
	MouseRow, MouseCol int
	MouseKind          MouseEventKind
	MouseButton        MouseButton
	ScrollDelta        int // nonzero only for MouseScroll; positive = up

	// Resize fields, valid when Kind == EventResize.
	Rows, Cols int

	// When the event arrived, for replay/log correlation. Zero value
	// means "not timestamped" (rendertest.Recorder returns the events a
	// test queued as given, so they carry whatever the test set).
	At time.Time
}

// Renderer is the abstract text/bitmap surface every backend implements.
// Coordinates are zero-based (row, col). A Renderer handle is Init'd and
// Shutdown exactly once per process, per spec.md §4.5.2.
type Renderer interface {
	// Init prepares the surface for drawing. Calling Init twice, or
	// calling any other method before Init, is a programming error.
	Init() error
	// Shutdown releases the surface. Safe to call once; a second call
	// is a no-op.
	Shutdown() error

	DrawText(row, col int, text string, pair uint8, attrs Attrs)
	DrawHLine(row, col int, ch rune, length int, pair uint8)
	DrawVLine(row, col int, ch rune, length int, pair uint8)
	DrawRect(row, col, height, width int, pair uint8, filled bool)

	Clear()
	ClearRegion(row, col, height, width int)

	Refresh()
	RefreshRegion(row, col, height, width int)

	InitColorPair(pair uint8, fg, bg RGB)
	SetCursorVisibility(visible bool)
	MoveCursor(row, col int)

	GetSize() (rows, cols int)

	// PollEvent blocks up to timeout for the next InputEvent. A zero
	// ok return means the timeout elapsed with no event. This is the
	// only blocking call in the contract, per spec.md §5.
	PollEvent(timeout time.Duration) (ev InputEvent, ok bool)
}
