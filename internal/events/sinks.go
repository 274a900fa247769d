package events

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
)

// SinkSpec configures one sink.
type SinkSpec struct {
	Type      string            `yaml:"type"`
	Path      string            `yaml:"path"`
	URL       string            `yaml:"url"`
	Headers   map[string]string `yaml:"headers"`
	TimeoutMs int               `yaml:"timeout_ms"`
}

// BuildSinks creates sinks from specs. Already-built sinks are closed when a
// later spec fails.
func BuildSinks(specs []SinkSpec) ([]Sink, error) {
	var sinks []Sink
	for i, spec := range specs {
		s, err := buildSink(spec)
		if err != nil {
			var errs []error
			for _, built := range sinks {
				errs = append(errs, built.Close(context.Background()))
			}
			return nil, errors.Join(append([]error{fmt.Errorf("events sink %d: %w", i, err)}, errs...)...)
		}
		sinks = append(sinks, s)
	}
	return sinks, nil
}

func buildSink(spec SinkSpec) (Sink, error) {
	switch strings.ToLower(strings.TrimSpace(spec.Type)) {
	case "stdout":
		return NewStdoutSink(nil), nil
	case "file_jsonl":
		return NewFileSink(spec.Path)
	case "webhook":
		return NewWebhookSink(spec.URL, spec.Headers, time.Duration(spec.TimeoutMs)*time.Millisecond)
	default:
		return nil, fmt.Errorf("unknown sink type %q", spec.Type)
	}
}
