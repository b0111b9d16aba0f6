// Package notify provides types.Sink implementations: a structured-log sink,
// an append-only JSONL event file and a fan-out over several sinks.
package notify

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/mesh-intelligence/labledger/internal/jsonl"
	"github.com/mesh-intelligence/labledger/pkg/types"
)

// Record is one line of an event file.
type Record struct {
	EventID  string           `json:"event_id"`
	Kind     string           `json:"kind"`
	Resource types.ResourceID `json:"resource"`
	At       time.Time        `json:"at"`
	Payload  json.RawMessage  `json:"payload"`
}

// LogSink writes every event to a slog.Logger at Info level.
type LogSink struct {
	logger *slog.Logger
}

// NewLogSink returns a sink logging to logger, or slog.Default when nil.
func NewLogSink(logger *slog.Logger) *LogSink {
	if logger == nil {
		logger = slog.Default()
	}
	return &LogSink{logger: logger}
}

// Notify implements types.Sink.
func (s *LogSink) Notify(ctx context.Context, e types.Event) {
	attrs := []any{"kind", e.Kind(), "resource", e.Resource()}
	switch ev := e.(type) {
	case types.ResourceCreated:
		attrs = append(attrs, "name", ev.Name, "category", ev.Category)
	case types.ResourceReserved:
		attrs = append(attrs, "reserver", ev.Reserver, "staked", ev.Staked, "end", ev.End)
	case types.ResourceReleased:
		attrs = append(attrs, "reserver", ev.Reserver, "staked", ev.Staked)
	case types.ReservationExpired:
		attrs = append(attrs, "former_holder", ev.FormerHolder)
	}
	s.logger.InfoContext(ctx, "ledger event", attrs...)
}

// FileSink appends every event as a Record to a JSONL file. Write failures
// are logged; the ledger has already committed by the time a sink runs.
type FileSink struct {
	mu     sync.Mutex
	path   string
	logger *slog.Logger
	now    func() time.Time
}

// NewFileSink returns a sink appending to path.
func NewFileSink(path string, logger *slog.Logger) *FileSink {
	if logger == nil {
		logger = slog.Default()
	}
	return &FileSink{path: path, logger: logger, now: time.Now}
}

// Path returns the event file location.
func (s *FileSink) Path() string {
	return s.path
}

// Notify implements types.Sink.
func (s *FileSink) Notify(ctx context.Context, e types.Event) {
	s.mu.Lock()
	defer s.mu.Unlock()

	line, err := encode(e, s.now())
	if err == nil {
		err = jsonl.Append(s.path, line)
	}
	if err != nil {
		s.logger.ErrorContext(ctx, "writing event", "path", s.path, "kind", e.Kind(), "error", err)
	}
}

func encode(e types.Event, at time.Time) (json.RawMessage, error) {
	payload, err := json.Marshal(e)
	if err != nil {
		return nil, fmt.Errorf("marshaling %s payload: %w", e.Kind(), err)
	}
	id, err := uuid.NewV7()
	if err != nil {
		return nil, fmt.Errorf("generating UUID v7: %w", err)
	}
	return json.Marshal(Record{
		EventID:  id.String(),
		Kind:     e.Kind(),
		Resource: e.Resource(),
		At:       at.UTC(),
		Payload:  payload,
	})
}

// ReadFile returns the records of an event file in append order. A missing
// file yields no records.
func ReadFile(path string) ([]Record, error) {
	records, err := jsonl.Unmarshal[Record](path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	return records, err
}

// Multi delivers each event to every sink in order.
type Multi []types.Sink

// Notify implements types.Sink.
func (m Multi) Notify(ctx context.Context, e types.Event) {
	for _, s := range m {
		s.Notify(ctx, e)
	}
}
