package render

// CommandType tags one RenderCommand variant. Values are stable strings
// so the serialized form (§4.5.1) stays readable and backward compatible.
type CommandType string

// The command types, one per Renderer draw primitive plus the
// surface-level lifecycle and color-setup calls.
const (
	CmdDrawText         CommandType = "draw_text"
	CmdDrawHLine        CommandType = "draw_hline"
	CmdDrawVLine        CommandType = "draw_vline"
	CmdDrawRect         CommandType = "draw_rect"
	CmdClear            CommandType = "clear"
	CmdClearRegion      CommandType = "clear_region"
	CmdRefresh          CommandType = "refresh"
	CmdRefreshRegion    CommandType = "refresh_region"
	CmdInitColorPair    CommandType = "init_color_pair"
	CmdSetCursorVisible CommandType = "set_cursor_visibility"
	CmdMoveCursor       CommandType = "move_cursor"
)

// RenderCommand is a tagged record capturing one call to a Renderer draw
// primitive, serializable to an implementation-agnostic text format (see
// codec.go) for recording/replay, cross-backend equivalence testing, and
// offline debugging, per spec.md §4.5.1. Only the fields relevant to
// Type are populated; the rest carry their zero value.
type RenderCommand struct {
	Type CommandType `json:"command_type" yaml:"command_type"`

	Row    int `json:"row" yaml:"row"`
	Col    int `json:"col" yaml:"col"`
	Height int `json:"height" yaml:"height"`
	Width  int `json:"width" yaml:"width"`
	Length int `json:"length" yaml:"length"`

	Text string `json:"text" yaml:"text"`
	Char string `json:"char" yaml:"char"` // one rune, encoded as a string

	ColorPair uint8 `json:"color_pair" yaml:"color_pair"`
	Attrs     Attrs `json:"attrs,omitempty" yaml:"attrs,omitempty"`
	Filled    bool  `json:"filled" yaml:"filled"`

	Foreground *RGB `json:"fg,omitempty" yaml:"fg,omitempty"`
	Background *RGB `json:"bg,omitempty" yaml:"bg,omitempty"`

	Visible bool `json:"visible" yaml:"visible"`
}

// DrawText builds the command for a DrawText call.
func DrawText(row, col int, text string, pair uint8, attrs Attrs) RenderCommand {
	return RenderCommand{Type: CmdDrawText, Row: row, Col: col, Text: text, ColorPair: pair, Attrs: attrs}
}

// DrawHLine builds the command for a DrawHLine call.
func DrawHLine(row, col int, ch rune, length int, pair uint8) RenderCommand {
	return RenderCommand{Type: CmdDrawHLine, Row: row, Col: col, Char: string(ch), Length: length, ColorPair: pair}
}

// DrawVLine builds the command for a DrawVLine call.
func DrawVLine(row, col int, ch rune, length int, pair uint8) RenderCommand {
	return RenderCommand{Type: CmdDrawVLine, Row: row, Col: col, Char: string(ch), Length: length, ColorPair: pair}
}

// DrawRect builds the command for a DrawRect call.
func DrawRect(row, col, height, width int, pair uint8, filled bool) RenderCommand {
	return RenderCommand{Type: CmdDrawRect, Row: row, Col: col, Height: height, Width: width, ColorPair: pair, Filled: filled}
}

// Clear builds the command for a Clear call.
func Clear() RenderCommand { return RenderCommand{Type: CmdClear} }

// ClearRegion builds the command for a ClearRegion call.
func ClearRegion(row, col, height, width int) RenderCommand {
	return RenderCommand{Type: CmdClearRegion, Row: row, Col: col, Height: height, Width: width}
}

// Refresh builds the command for a Refresh call.
func Refresh() RenderCommand { return RenderCommand{Type: CmdRefresh} }

// RefreshRegion builds the command for a RefreshRegion call.
func RefreshRegion(row, col, height, width int) RenderCommand {
	return RenderCommand{Type: CmdRefreshRegion, Row: row, Col: col, Height: height, Width: width}
}

// InitColorPairCmd builds the command for an InitColorPair call.
func InitColorPairCmd(pair uint8, fg, bg RGB) RenderCommand {
	return RenderCommand{Type: CmdInitColorPair, ColorPair: pair, Foreground: &fg, Background: &bg}
}

// SetCursorVisibilityCmd builds the command for a SetCursorVisibility call.
func SetCursorVisibilityCmd(visible bool) RenderCommand {
	return RenderCommand{Type: CmdSetCursorVisible, Visible: visible}
}

// MoveCursorCmd builds the command for a MoveCursor call.
func MoveCursorCmd(row, col int) RenderCommand {
	return RenderCommand{Type: CmdMoveCursor, Row: row, Col: col}
}

// Apply replays c onto r, dispatching on c.Type. Unknown types are
// ignored by Apply itself (the codec is where unknown types are
// rejected, per spec.md §4.5.1); Apply assumes c already validated.
func (c RenderCommand) Apply(r Renderer) {
	switch c.Type {
	case CmdDrawText:
		r.DrawText(c.Row, c.Col, c.Text, c.ColorPair, c.Attrs)
	case CmdDrawHLine:
		r.DrawHLine(c.Row, c.Col, firstRune(c.Char), c.Length, c.ColorPair)
	case CmdDrawVLine:
		r.DrawVLine(c.Row, c.Col, firstRune(c.Char), c.Length, c.ColorPair)
	case CmdDrawRect:
		r.DrawRect(c.Row, c.Col, c.Height, c.Width, c.ColorPair, c.Filled)
	case CmdClear:
		r.Clear()
	case CmdClearRegion:
		r.ClearRegion(c.Row, c.Col, c.Height, c.Width)
	case CmdRefresh:
		r.Refresh()
	case CmdRefreshRegion:
		r.RefreshRegion(c.Row, c.Col, c.Height, c.Width)
	case CmdInitColorPair:
		if c.Foreground != nil && c.Background != nil {
			r.InitColorPair(c.ColorPair, *c.Foreground, *c.Background)
		}
	case CmdSetCursorVisible:
		r.SetCursorVisibility(c.Visible)
	case CmdMoveCursor:
		r.MoveCursor(c.Row, c.Col)
	}
}

func firstRune(s string) rune {
	for _, r := range s {
		return r
	}
	return ' '
}
