package config

import (
	"errors"
	"fmt"
	"net/url"
	"strings"

	"github.com/bantay-ai/bantay/internal/classifier"
	"github.com/bantay-ai/bantay/internal/events"
	"github.com/bantay-ai/bantay/internal/triage"
)

// Validate checks the loaded config for required fields and safe values.
func Validate(cfg *Config) error {
	if cfg == nil {
		return errors.New("config is nil")
	}

	if strings.TrimSpace(cfg.Server.Addr) == "" {
		return errors.New("server.addr must be set")
	}
	if cfg.Server.MaxRequestBodyBytes < 0 {
		return errors.New("server.max_request_body_bytes must not be negative")
	}
	if cfg.Server.MaxBatchReports < 1 {
		return errors.New("server.max_batch_reports must be at least 1")
	}

	if err := validateModelConfig(cfg.Model); err != nil {
		return err
	}

	switch cfg.Logging.TextPreview {
	case events.PreviewNone, events.PreviewRedacted, events.PreviewFull:
	default:
		return fmt.Errorf("logging.text_preview must be none, redacted or full, got %q", cfg.Logging.TextPreview)
	}

	if err := validateFallbackConfig(cfg.Fallback); err != nil {
		return err
	}

	for i, k := range cfg.Auth.APIKeys {
		if strings.TrimSpace(k) == "" {
			return fmt.Errorf("auth.api_keys[%d] is empty", i)
		}
	}

	if err := validateTriagePolicy(cfg.Triage); err != nil {
		return err
	}

	if err := validateEventsConfig(cfg.Events); err != nil {
		return err
	}

	if err := validateTelemetryConfig(cfg.Telemetry); err != nil {
		return err
	}

	return nil
}

func validateModelConfig(m ModelConfig) error {
	if strings.TrimSpace(m.Path) == "" {
		return errors.New("model.path must be set")
	}
	if m.MaxSessions < 1 {
		return errors.New("model.max_sessions must be at least 1")
	}
	if m.IntraThreads < 1 || m.InterThreads < 1 {
		return errors.New("model.intra_threads and model.inter_threads must be at least 1")
	}
	return nil
}

func validateFallbackConfig(f FallbackConfig) error {
	if !f.Enabled {
		return nil
	}
	if classifier.CategoryIndex(f.Category) < 0 {
		return fmt.Errorf("fallback.category %q is not a known category", f.Category)
	}
	if f.Confidence < 0 || f.Confidence > 1 {
		return fmt.Errorf("fallback.confidence must be within [0,1], got %v", f.Confidence)
	}
	return nil
}

func validateTriagePolicy(p triage.Policy) error {
	for _, c := range append(append([]string(nil), p.HighRisk...), p.MediumRisk...) {
		if classifier.CategoryIndex(c) < 0 {
			return fmt.Errorf("triage category %q is not a known category", c)
		}
	}
	if p.HighConfidence <= 0 || p.HighConfidence > 1 {
		return fmt.Errorf("triage.high_confidence must be within (0,1], got %v", p.HighConfidence)
	}
	if p.MediumConfidence <= 0 || p.MediumConfidence > p.HighConfidence {
		return fmt.Errorf("triage.medium_confidence must be within (0,high_confidence], got %v", p.MediumConfidence)
	}
	if p.PriorityLimit < 1 {
		return errors.New("triage.priority_limit must be at least 1")
	}
	return nil
}

func validateEventsConfig(e EventsConfig) error {
	if e.QueueSize < 1 || e.Workers < 1 {
		return errors.New("events.queue_size and events.workers must be at least 1")
	}
	for i, s := range e.Sinks {
		switch strings.ToLower(strings.TrimSpace(s.Type)) {
		case "stdout":
		case "file_jsonl":
			if strings.TrimSpace(s.Path) == "" {
				return fmt.Errorf("events sink %d (file_jsonl) missing path", i)
			}
		case "webhook":
			if strings.TrimSpace(s.URL) == "" {
				return fmt.Errorf("events sink %d (webhook) missing url", i)
			}
			u, err := url.Parse(s.URL)
			if err != nil || u.Scheme == "" || u.Host == "" {
				return fmt.Errorf("events sink %d (webhook) has invalid url", i)
			}
			if u.Scheme != "http" && u.Scheme != "https" {
				return fmt.Errorf("events sink %d (webhook) url must be http or https", i)
			}
		default:
			return fmt.Errorf("events sink %d has unknown type %q", i, s.Type)
		}
	}
	return nil
}

func validateTelemetryConfig(t TelemetryConfig) error {
	if !t.Enabled {
		return nil
	}
	if strings.TrimSpace(t.Endpoint) == "" {
		return errors.New("telemetry enabled but endpoint is empty")
	}
	switch strings.ToLower(strings.TrimSpace(t.Protocol)) {
	case "grpc", "http":
	default:
		return fmt.Errorf("telemetry.protocol must be grpc or http, got %q", t.Protocol)
	}
	return nil
}
