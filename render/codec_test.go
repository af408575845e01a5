package render

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestJSONLinesRoundTrip(t *testing.T) {
	stream := []RenderCommand{
		DrawText(0, 0, "hello", 1, AttrBold|AttrUnderline),
		DrawRect(2, 2, 4, 4, 3, false),
		InitColorPairCmd(7, RGB{10, 20, 30}, RGB{0, 0, 0}),
	}

	var buf bytes.Buffer
	require.NoError(t, EncodeJSONLines(&buf, stream))

	got, err := DecodeJSONLines(&buf)
	require.NoError(t, err)
	assert.Equal(t, stream, got)
}

func TestDecodeJSONLineRejectsUnknownCommandType(t *testing.T) {
	_, err := DecodeJSONLine([]byte(`{"command_type":"draw_hologram","row":1}`))
	require.Error(t, err)
	var ce *CodecError
	require.ErrorAs(t, err, &ce)
	assert.Equal(t, "draw_hologram", ce.Type)
}

func TestDecodeJSONLineRejectsMissingRequiredField(t *testing.T) {
	_, err := DecodeJSONLine([]byte(`{"command_type":"draw_text","row":1,"col":2}`))
	require.Error(t, err)
	var ce *CodecError
	require.ErrorAs(t, err, &ce)
	assert.Equal(t, "text", ce.Field)
}

func TestDecodeJSONLineRejectsTypeMismatch(t *testing.T) {
	_, err := DecodeJSONLine([]byte(`{"command_type":"draw_text","row":"not a number","col":2,"text":"x","color_pair":1}`))
	require.Error(t, err)
	var ce *CodecError
	require.ErrorAs(t, err, &ce)
	assert.Equal(t, "row", ce.Field)
}

func TestDecodeJSONLineMissingCommandType(t *testing.T) {
	_, err := DecodeJSONLine([]byte(`{"row":1}`))
	require.Error(t, err)
	var ce *CodecError
	require.ErrorAs(t, err, &ce)
	assert.Equal(t, "command_type", ce.Field)
}

func TestYAMLRoundTrip(t *testing.T) {
	stream := []RenderCommand{
		DrawText(0, 0, "hi", 1, 0),
		Clear(),
		MoveCursorCmd(3, 4),
	}
	data, err := EncodeYAML(stream)
	require.NoError(t, err)

	got, err := DecodeYAML(data)
	require.NoError(t, err)
	assert.Equal(t, stream, got)
}

func TestDecodeYAMLRejectsUnknownCommandType(t *testing.T) {
	_, err := DecodeYAML([]byte("- command_type: bogus\n  row: 1\n"))
	require.Error(t, err)
}
