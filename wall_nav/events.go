package wall_nav

import (
	"fmt"
	"io"
	"log"
	"os"
	"strconv"
	"strings"
	"sync"
	"time"

	"gopkg.in/natefinch/lumberjack.v2"
)

// Level orders event severity.
type Level int

const (
	LevelDebug Level = iota
	LevelInfo
	LevelError
)

func (l Level) String() string {
	switch l {
	case LevelDebug:
		return "debug"
	case LevelInfo:
		return "info"
	case LevelError:
		return "error"
	default:
		return "level(" + strconv.Itoa(int(l)) + ")"
	}
}

// Field is one key=value pair attached to an event.
type Field struct {
	Key   string
	Value any
}

// F builds a Field.
func F(key string, value any) Field {
	return Field{Key: key, Value: value}
}

// Event is a single structured record of a decision or transition.
type Event struct {
	Time   time.Time
	Level  Level
	Kind   string
	Fields []Field
}

// Get returns the value of the named field.
func (e Event) Get(key string) (any, bool) {
	for _, f := range e.Fields {
		if f.Key == key {
			return f.Value, true
		}
	}
	return nil, false
}

// EventLog writes one key=value line per event. A nil *EventLog discards everything.
type EventLog struct {
	mu      sync.Mutex
	logger  *log.Logger
	verbose bool
	closer  io.Closer
	hooks   []func(Event)
}

// NewEventLog builds an event log from config, tee'ing to a rotating file when log.file is set.
func NewEventLog(cfg LogConfig) *EventLog {
	var out io.Writer = os.Stdout
	var closer io.Closer
	if cfg.File != "" {
		rotator := &lumberjack.Logger{
			Filename:   cfg.File,
			MaxSize:    cfg.MaxSizeMB,
			MaxBackups: cfg.MaxBackups,
			MaxAge:     cfg.MaxAgeDays,
		}
		out = io.MultiWriter(os.Stdout, rotator)
		closer = rotator
	}
	l := NewEventLogWriter(out, cfg.Enabled)
	l.closer = closer
	return l
}

// NewEventLogWriter writes events to w. Debug events are kept only when verbose is set.
func NewEventLogWriter(w io.Writer, verbose bool) *EventLog {
	return &EventLog{logger: log.New(w, "", log.LstdFlags|log.Lmicroseconds), verbose: verbose}
}

// OnEvent registers a hook called synchronously for every emitted event.
func (l *EventLog) OnEvent(fn func(Event)) {
	if l == nil || fn == nil {
		return
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	l.hooks = append(l.hooks, fn)
}

// Debug records high-rate detail such as per-tick commands.
func (l *EventLog) Debug(kind string, fields ...Field) { l.emit(LevelDebug, kind, fields) }

// Info records a normal transition or decision.
func (l *EventLog) Info(kind string, fields ...Field) { l.emit(LevelInfo, kind, fields) }

// Error records a failure outcome.
func (l *EventLog) Error(kind string, fields ...Field) { l.emit(LevelError, kind, fields) }

// Close releases the rotating log file, if any.
func (l *EventLog) Close() error {
	if l == nil || l.closer == nil {
		return nil
	}
	return l.closer.Close()
}

func (l *EventLog) emit(level Level, kind string, fields []Field) {
	if l == nil {
		return
	}
	ev := Event{Time: time.Now(), Level: level, Kind: kind, Fields: fields}

	l.mu.Lock()
	hooks := l.hooks
	if level > LevelDebug || l.verbose {
		l.logger.Print(formatEvent(ev))
	}
	l.mu.Unlock()

	for _, fn := range hooks {
		fn(ev)
	}
}

// formatEvent renders "level=info event=kind k=v ...".
func formatEvent(ev Event) string {
	var b strings.Builder
	b.WriteString("level=")
	b.WriteString(ev.Level.String())
	b.WriteString(" event=")
	b.WriteString(ev.Kind)
	for _, f := range ev.Fields {
		b.WriteByte(' ')
		b.WriteString(f.Key)
		b.WriteByte('=')
		b.WriteString(formatValue(f.Value))
	}
	return b.String()
}

func formatValue(v any) string {
	switch val := v.(type) {
	case float64:
		return strconv.FormatFloat(val, 'f', 3, 64)
	case string:
		if val == "" || strings.ContainsAny(val, " =\"") {
			return strconv.Quote(val)
		}
		return val
	case error:
		return strconv.Quote(val.Error())
	case time.Duration:
		return val.String()
	case bool:
		return strconv.FormatBool(val)
	case int:
		return strconv.Itoa(val)
	case interface{ String() string }:
		return formatValue(val.String())
	default:
		return formatValue(fmt.Sprint(val))
	}
}
