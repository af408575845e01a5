package render

import (
	"bufio"
	"bytes"
	"encoding/json"
	"fmt"
	"io"

	"gopkg.in/yaml.v2"
)

// CodecError is returned by the command-stream parsers for a malformed
// record: an unknown command_type, a missing required field, or a field
// whose value doesn't match its expected shape. Per spec.md §4.5.1,
// these three failure modes are always surfaced as typed errors rather
// than silently defaulted.
type CodecError struct {
	Reason string
	Field  string
	Type   string
}

func (e *CodecError) Error() string {
	if e.Field != "" {
		return fmt.Sprintf("render: command %q: %s: %s", e.Type, e.Reason, e.Field)
	}
	return fmt.Sprintf("render: command %q: %s", e.Type, e.Reason)
}

// fieldSpec names the JSON/YAML key and the kind of value a validated
// command requires.
type fieldKind int

const (
	fieldString fieldKind = iota
	fieldNumber
	fieldBool
	fieldObject
)

type fieldSpec struct {
	name string
	kind fieldKind
}

// requiredFields lists, per command type, the fields that must be
// present and correctly shaped. Fields outside this list (row/col on a
// bare "clear", for instance) are optional and simply ignored if absent.
var requiredFields = map[CommandType][]fieldSpec{
	CmdDrawText:         {{"row", fieldNumber}, {"col", fieldNumber}, {"text", fieldString}, {"color_pair", fieldNumber}},
	CmdDrawHLine:        {{"row", fieldNumber}, {"col", fieldNumber}, {"char", fieldString}, {"length", fieldNumber}, {"color_pair", fieldNumber}},
	CmdDrawVLine:        {{"row", fieldNumber}, {"col", fieldNumber}, {"char", fieldString}, {"length", fieldNumber}, {"color_pair", fieldNumber}},
	CmdDrawRect:         {{"row", fieldNumber}, {"col", fieldNumber}, {"height", fieldNumber}, {"width", fieldNumber}, {"color_pair", fieldNumber}, {"filled", fieldBool}},
	CmdClear:            nil,
	CmdClearRegion:      {{"row", fieldNumber}, {"col", fieldNumber}, {"height", fieldNumber}, {"width", fieldNumber}},
	CmdRefresh:          nil,
	CmdRefreshRegion:    {{"row", fieldNumber}, {"col", fieldNumber}, {"height", fieldNumber}, {"width", fieldNumber}},
	CmdInitColorPair:    {{"color_pair", fieldNumber}, {"fg", fieldObject}, {"bg", fieldObject}},
	CmdSetCursorVisible: {{"visible", fieldBool}},
	CmdMoveCursor:       {{"row", fieldNumber}, {"col", fieldNumber}},
}

func validate(raw map[string]interface{}) (CommandType, error) {
	rawType, ok := raw["command_type"]
	if !ok {
		return "", &CodecError{Reason: "missing required field", Field: "command_type"}
	}
	typeStr, ok := rawType.(string)
	if !ok {
		return "", &CodecError{Reason: "field has wrong type, want string", Field: "command_type"}
	}
	ct := CommandType(typeStr)
	spec, known := requiredFields[ct]
	if !known {
		return "", &CodecError{Reason: "unknown command_type", Type: typeStr}
	}
	for _, f := range spec {
		v, present := raw[f.name]
		if !present {
			return "", &CodecError{Reason: "missing required field", Field: f.name, Type: typeStr}
		}
		if !kindMatches(v, f.kind) {
			return "", &CodecError{Reason: "field has wrong type", Field: f.name, Type: typeStr}
		}
	}
	return ct, nil
}

func kindMatches(v interface{}, kind fieldKind) bool {
	switch kind {
	case fieldString:
		_, ok := v.(string)
		return ok
	case fieldNumber:
		switch v.(type) {
		case float64, int, int64, json.Number:
			return true
		default:
			return false
		}
	case fieldBool:
		_, ok := v.(bool)
		return ok
	case fieldObject:
		_, ok := v.(map[string]interface{})
		return ok
	default:
		return false
	}
}

// EncodeJSONLine renders one command as a single JSON-lines record (the
// default wire format per spec.md §6.4).
func EncodeJSONLine(c RenderCommand) ([]byte, error) {
	b, err := json.Marshal(c)
	if err != nil {
		return nil, err
	}
	return append(b, '\n'), nil
}

// DecodeJSONLine parses one JSON-lines record, validating it per the
// rules in validate above before decoding into a RenderCommand.
func DecodeJSONLine(line []byte) (RenderCommand, error) {
	var raw map[string]interface{}
	if err := json.Unmarshal(line, &raw); err != nil {
		return RenderCommand{}, &CodecError{Reason: "malformed JSON: " + err.Error()}
	}
	if _, err := validate(raw); err != nil {
		return RenderCommand{}, err
	}
	var c RenderCommand
	if err := json.Unmarshal(line, &c); err != nil {
		return RenderCommand{}, &CodecError{Reason: "malformed JSON: " + err.Error()}
	}
	return c, nil
}

// EncodeJSONLines writes every command in stream to w, one JSON record
// per line, for recording a replayable session.
func EncodeJSONLines(w io.Writer, stream []RenderCommand) error {
	for _, c := range stream {
		b, err := EncodeJSONLine(c)
		if err != nil {
			return err
		}
		if _, err := w.Write(b); err != nil {
			return err
		}
	}
	return nil
}

// DecodeJSONLines parses a recorded session back into a command stream,
// one record per non-empty line.
func DecodeJSONLines(r io.Reader) ([]RenderCommand, error) {
	var out []RenderCommand
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		line := bytes.TrimSpace(scanner.Bytes())
		if len(line) == 0 {
			continue
		}
		c, err := DecodeJSONLine(line)
		if err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

// EncodeYAML renders the whole stream as a human-debuggable YAML
// document, the "offline debugging" pretty format called out in
// spec.md §4.5.1.
func EncodeYAML(stream []RenderCommand) ([]byte, error) {
	return yaml.Marshal(stream)
}

// DecodeYAML parses a YAML-encoded command stream, applying the same
// validation rules as the JSON-lines path.
func DecodeYAML(data []byte) ([]RenderCommand, error) {
	var raws []map[string]interface{}
	if err := yaml.Unmarshal(data, &raws); err != nil {
		return nil, &CodecError{Reason: "malformed YAML: " + err.Error()}
	}
	out := make([]RenderCommand, 0, len(raws))
	for _, raw := range raws {
		normalized := normalizeYAMLMap(raw)
		if _, err := validate(normalized); err != nil {
			return nil, err
		}
		reencoded, err := yaml.Marshal(raw)
		if err != nil {
			return nil, &CodecError{Reason: "malformed YAML: " + err.Error()}
		}
		var c RenderCommand
		if err := yaml.Unmarshal(reencoded, &c); err != nil {
			return nil, &CodecError{Reason: "malformed YAML: " + err.Error()}
		}
		out = append(out, c)
	}
	return out, nil
}

// normalizeYAMLMap converts the map[interface{}]interface{} shape
// gopkg.in/yaml.v2 produces into map[string]interface{} so validate can
// share logic with the JSON path.
func normalizeYAMLMap(raw map[string]interface{}) map[string]interface{} {
	out := make(map[string]interface{}, len(raw))
	for k, v := range raw {
		out[k] = normalizeYAMLValue(v)
	}
	return out
}

func normalizeYAMLValue(v interface{}) interface{} {
	switch t := v.(type) {
	case map[interface{}]interface{}:
		out := make(map[string]interface{}, len(t))
		for k, vv := range t {
			out[fmt.Sprint(k)] = normalizeYAMLValue(vv)
		}
		return out
	case int:
		return float64(t)
	default:
		return v
	}
}
