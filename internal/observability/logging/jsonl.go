package logging

import (
	"context"
	"encoding/json"
	"io"
	"sync"
	"time"

	"github.com/ethosgate/ethosgate/internal/observability"
	"github.com/ethosgate/ethosgate/internal/version"
)

const SchemaVersion = "1.0"

// EventPrefix namespaces events for downstream collectors
const EventPrefix = "ethosgate."

type jsonlLogger struct {
	writer   io.Writer
	closer   io.Closer
	minLevel int
	mu       sync.Mutex
}

type logEntry struct {
	Timestamp        string         `json:"ts"`
	Level            string         `json:"level"`
	Event            string         `json:"event,omitempty"`
	Component        string         `json:"component"`
	OpID             string         `json:"op_id"`
	SchemaVersion    string         `json:"schema_version"`
	EthosgateVersion string         `json:"ethosgate_version,omitempty"`
	GoVersion        string         `json:"go_version,omitempty"`
	Message          string         `json:"msg,omitempty"`
	Fields           map[string]any `json:"fields,omitempty"`
}

func (j *jsonlLogger) log(level, component, msg string, fields ...any) {
	if levelPriority(level) < j.minLevel {
		return
	}

	j.writeEntry(logEntry{
		Timestamp:        time.Now().Format(time.RFC3339Nano),
		Level:            level,
		Component:        component,
		SchemaVersion:    SchemaVersion,
		EthosgateVersion: version.BuildVersion(),
		GoVersion:        version.GoVersion(),
		Message:          msg,
		Fields:           pairsToMap(fields),
	})
}

func (j *jsonlLogger) Event(ctx context.Context, event string, fields map[string]any) {
	if levelPriority(LevelInfo) < j.minLevel {
		return
	}
	j.writeEntry(logEntry{
		Timestamp:        time.Now().Format(time.RFC3339Nano),
		Level:            LevelInfo,
		Event:            EventPrefix + event,
		Component:        "pipeline",
		OpID:             observability.OpID(ctx),
		SchemaVersion:    SchemaVersion,
		EthosgateVersion: version.BuildVersion(),
		GoVersion:        version.GoVersion(),
		Fields:           fields,
	})
}

func (j *jsonlLogger) writeEntry(entry logEntry) {
	data, err := json.Marshal(entry)
	if err != nil {
		return // silently skip malformed entries
	}
	data = append(data, '\n')

	j.mu.Lock()
	defer j.mu.Unlock()
	_, _ = j.writer.Write(data) // best effort
}

func (j *jsonlLogger) Debug(component, msg string, fields ...any) {
	j.log(LevelDebug, component, msg, fields...)
}

func (j *jsonlLogger) Info(component, msg string, fields ...any) {
	j.log(LevelInfo, component, msg, fields...)
}

func (j *jsonlLogger) Warn(component, msg string, fields ...any) {
	j.log(LevelWarn, component, msg, fields...)
}

func (j *jsonlLogger) Error(component, msg string, fields ...any) {
	j.log(LevelError, component, msg, fields...)
}

func (j *jsonlLogger) Close() error {
	if j.closer != nil {
		return j.closer.Close()
	}
	return nil
}

// pairsToMap turns key/value varargs into a map; odd trailing values are dropped
func pairsToMap(fields []any) map[string]any {
	if len(fields) < 2 {
		return nil
	}
	m := make(map[string]any, len(fields)/2)
	for i := 0; i+1 < len(fields); i += 2 {
		if key, ok := fields[i].(string); ok {
			m[key] = fields[i+1]
		}
	}
	return m
}
