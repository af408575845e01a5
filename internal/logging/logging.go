// Package logging is the structured logger behind every component:
// core-generated log lines vs. passed-through external output, grounded
// on rclone's fs/log. github.com/sirupsen/logrus is the backend, with a
// custom Formatter rendering the rclone-style
// "<time> <level> : <object>: <msg>" line.
package logging

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"strconv"

	"github.com/sirupsen/logrus"
)

// Level mirrors rclone's fs.LogLevel: a small syslog-flavoured enum with
// String/Set/UnmarshalJSON so it can live in a config struct or flag.
type Level int

// Levels in increasing verbosity, matching rclone's fs/log enum order.
const (
	LevelEmergency Level = iota
	LevelAlert
	LevelCritical
	LevelError
	LevelWarning
	LevelNotice
	LevelInfo
	LevelDebug
)

var levelNames = [...]string{
	LevelEmergency: "EMERGENCY",
	LevelAlert:     "ALERT",
	LevelCritical:  "CRITICAL",
	LevelError:     "ERROR",
	LevelWarning:   "WARNING",
	LevelNotice:    "NOTICE",
	LevelInfo:      "INFO",
	LevelDebug:     "DEBUG",
}

// String implements fmt.Stringer.
func (l Level) String() string {
	if l < 0 || int(l) >= len(levelNames) {
		return fmt.Sprintf("Unknown(%d)", int(l))
	}
	return levelNames[l]
}

// Set implements flag.Value so Level can be used directly as a
// configstruct field or command-line flag.
func (l *Level) Set(s string) error {
	for i, name := range levelNames {
		if name == s {
			*l = Level(i)
			return nil
		}
	}
	return fmt.Errorf("logging: unknown level %q", s)
}

// Type implements pflag.Value.
func (l Level) Type() string { return "Level" }

// MarshalJSON renders the level as its name.
func (l Level) MarshalJSON() ([]byte, error) {
	return json.Marshal(l.String())
}

// UnmarshalJSON accepts either the level's name or its numeric value,
// matching rclone's LogLevel encoding so config files can use either.
func (l *Level) UnmarshalJSON(data []byte) error {
	var name string
	if err := json.Unmarshal(data, &name); err == nil {
		return l.Set(name)
	}
	n, err := strconv.Atoi(string(data))
	if err != nil || n < 0 || n >= len(levelNames) {
		return fmt.Errorf("logging: invalid level %s", data)
	}
	*l = Level(n)
	return nil
}

func (l Level) toLogrus() logrus.Level {
	switch l {
	case LevelEmergency, LevelAlert, LevelCritical:
		return logrus.FatalLevel
	case LevelError:
		return logrus.ErrorLevel
	case LevelWarning:
		return logrus.WarnLevel
	case LevelNotice, LevelInfo:
		return logrus.InfoLevel
	default:
		return logrus.DebugLevel
	}
}

// coreFormatter renders the rclone-style "<time> <LEVEL> : <object>: <msg>"
// line for lines the core itself generated, as opposed to passed-through
// external output which bypasses the formatter entirely.
type coreFormatter struct{}

func (coreFormatter) Format(e *logrus.Entry) ([]byte, error) {
	var buf bytes.Buffer
	object := "-"
	if v, ok := e.Data["object"]; ok {
		object = fmt.Sprint(v)
	}
	fmt.Fprintf(&buf, "%s %-7s: %s: %s\n", e.Time.Format("2006/01/02 15:04:05"), levelFromLogrus(e.Level), object, e.Message)
	return buf.Bytes(), nil
}

func levelFromLogrus(l logrus.Level) string {
	switch l {
	case logrus.FatalLevel, logrus.PanicLevel:
		return "ERROR"
	case logrus.ErrorLevel:
		return "ERROR"
	case logrus.WarnLevel:
		return "NOTICE"
	case logrus.InfoLevel:
		return "INFO"
	default:
		return "DEBUG"
	}
}

// Logger wraps a *logrus.Logger, attributing every generated line to the
// object that produced it (a Path's String(), a Task's ID, ...).
type Logger struct {
	backend *logrus.Logger
}

// New builds a Logger writing core-generated lines to out at the given
// level.
func New(out io.Writer, level Level) *Logger {
	l := logrus.New()
	l.SetOutput(out)
	l.SetFormatter(coreFormatter{})
	l.SetLevel(level.toLogrus())
	return &Logger{backend: l}
}

// SetLevel changes the minimum level logged.
func (lg *Logger) SetLevel(level Level) {
	lg.backend.SetLevel(level.toLogrus())
}

// WithObject returns a logger view whose lines are tagged with object's
// string representation, mirroring rclone's fs.LogPrintf(fs.Fs, ...).
func (lg *Logger) WithObject(object fmt.Stringer) *ObjectLogger {
	return &ObjectLogger{entry: lg.backend.WithField("object", object.String())}
}

// ObjectLogger is a Logger scoped to one originating object.
type ObjectLogger struct {
	entry *logrus.Entry
}

// Debugf logs at DEBUG.
func (o *ObjectLogger) Debugf(format string, args ...interface{}) { o.entry.Debugf(format, args...) }

// Infof logs at INFO.
func (o *ObjectLogger) Infof(format string, args ...interface{}) { o.entry.Infof(format, args...) }

// Noticef logs at NOTICE (mapped to logrus Warn, the closest built-in level).
func (o *ObjectLogger) Noticef(format string, args ...interface{}) { o.entry.Warnf(format, args...) }

// Errorf logs at ERROR.
func (o *ObjectLogger) Errorf(format string, args ...interface{}) { o.entry.Errorf(format, args...) }

// PassThrough writes external captured output (subprocess stdout/stderr
// from an archive tool or an SSH external-auth helper) to out verbatim,
// with no level prefix or timestamp, keeping it visually distinct from
// core-generated lines as rclone's accounting logging does.
func PassThrough(out io.Writer, line string) error {
	_, err := fmt.Fprintln(out, line)
	return err
}
