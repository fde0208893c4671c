// Package journal writes a chain run's step history as newline-delimited
// JSON, so a partially completed run can be inspected afterwards.
package journal

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/microsoft/azchain/internal/stepchain"
)

type EventType string

const (
	EventRunStart     EventType = "run_start"
	EventStepStart    EventType = "step_start"
	EventStepComplete EventType = "step_complete"
	EventStepFailed   EventType = "step_failed"
	EventRunComplete  EventType = "run_complete"
	EventRunFailed    EventType = "run_failed"
)

// Event is one line of a journal.
type Event struct {
	Timestamp time.Time      `json:"timestamp"`
	Type      EventType      `json:"type"`
	RunID     string         `json:"run_id"`
	Data      map[string]any `json:"data,omitempty"`
}

// Logger receives journal events.
type Logger interface {
	Log(event Event) error
	Close() error
}

// JSONLogger appends events to a file, one JSON object per line.
type JSONLogger struct {
	mu   sync.Mutex
	file *os.File
	enc  *json.Encoder
	path string
}

// NewJSONLogger opens path for appending, creating parent directories.
func NewJSONLogger(path string) (*JSONLogger, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("creating journal directory: %w", err)
	}

	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, fmt.Errorf("opening journal: %w", err)
	}

	return &JSONLogger{
		file: f,
		enc:  json.NewEncoder(f),
		path: path,
	}, nil
}

func (l *JSONLogger) Log(event Event) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.enc.Encode(event)
}

func (l *JSONLogger) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.file.Close()
}

func (l *JSONLogger) Path() string {
	return l.path
}

// NopLogger discards all events.
type NopLogger struct{}

func (NopLogger) Log(Event) error { return nil }

func (NopLogger) Close() error { return nil }

// RunStart returns the event opening a run.
func RunStart(runID, planName string, steps int) Event {
	return Event{
		Timestamp: time.Now().UTC(),
		Type:      EventRunStart,
		RunID:     runID,
		Data: map[string]any{
			"plan":  planName,
			"steps": steps,
		},
	}
}

// StepEvents turns step reports into journal events ordered by time.
// failedIndex names the step that failed, or -1. A failed step gets a
// step_failed event carrying runErr instead of a completion.
func StepEvents(runID string, reports []stepchain.StepReport, failedIndex int, runErr error) []Event {
	var events []Event
	for _, r := range reports {
		events = append(events, Event{
			Timestamp: r.StartedAt.UTC(),
			Type:      EventStepStart,
			RunID:     runID,
			Data:      map[string]any{"step": r.Name, "index": r.Index},
		})

		switch {
		case r.Completed():
			events = append(events, Event{
				Timestamp: r.CompletedAt.UTC(),
				Type:      EventStepComplete,
				RunID:     runID,
				Data: map[string]any{
					"step":        r.Name,
					"index":       r.Index,
					"duration_ms": r.Duration().Milliseconds(),
				},
			})
		case r.Index == failedIndex:
			data := map[string]any{"step": r.Name, "index": r.Index}
			if runErr != nil {
				data["error"] = runErr.Error()
			}
			events = append(events, Event{
				Timestamp: time.Now().UTC(),
				Type:      EventStepFailed,
				RunID:     runID,
				Data:      data,
			})
		}
	}

	sort.SliceStable(events, func(i, j int) bool {
		return events[i].Timestamp.Before(events[j].Timestamp)
	})
	return events
}

// RunEnd returns the event closing a run.
func RunEnd(runID string, completed, total int, runErr error) Event {
	e := Event{
		Timestamp: time.Now().UTC(),
		Type:      EventRunComplete,
		RunID:     runID,
		Data: map[string]any{
			"completed_steps": completed,
			"total_steps":     total,
		},
	}
	if runErr != nil {
		e.Type = EventRunFailed
		e.Data["error"] = runErr.Error()
	}
	return e
}

// DefaultPath returns a timestamped journal path for runID inside dir.
func DefaultPath(dir, runID string) string {
	ts := time.Now().UTC().Format("20060102T150405Z")
	return filepath.Join(dir, fmt.Sprintf("%s-%s.jsonl", ts, runID))
}
