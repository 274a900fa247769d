// Package modelmetrics reads the optional metrics sidecar published next to
// the model artifact. A missing or malformed sidecar never fails the caller:
// Load returns defaults and says which ones it used.
package modelmetrics

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/bantay-ai/bantay/internal/redact"
)

// Source records where Metrics came from.
type Source string

const (
	SourceFile              Source = "file"
	SourceDefaultsMissing   Source = "defaults_missing"
	SourceDefaultsMalformed Source = "defaults_malformed"
)

// HealthyAccuracy is the accuracy at or above which a ready model is healthy.
const HealthyAccuracy = 0.8

// Metrics is the sidecar content. ModelAccuracy is nil when unknown.
type Metrics struct {
	ModelAccuracy      *float64       `json:"model_accuracy"`
	LastUpdated        string         `json:"last_updated"`
	PerformanceMetrics map[string]any `json:"performance_metrics"`
	Source             Source         `json:"source"`
}

// Defaults returns the values used when no usable sidecar exists.
func Defaults() Metrics {
	return Metrics{
		LastUpdated:        "unknown",
		PerformanceMetrics: map[string]any{},
		Source:             SourceDefaultsMissing,
	}
}

// Load reads the sidecar at path. The returned error only explains why
// defaults were used; the Metrics value is always usable.
func Load(path string) (Metrics, error) {
	path = strings.TrimSpace(path)
	if path == "" {
		return Defaults(), errors.New("metrics path is empty")
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return Defaults(), fmt.Errorf("read metrics sidecar: %w", err)
	}

	var raw struct {
		ModelAccuracy      *float64       `json:"model_accuracy"`
		LastUpdated        *string        `json:"last_updated"`
		PerformanceMetrics map[string]any `json:"performance_metrics"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		m := Defaults()
		m.Source = SourceDefaultsMalformed
		return m, fmt.Errorf("decode metrics sidecar: %w", err)
	}

	m := Defaults()
	m.Source = SourceFile
	if raw.ModelAccuracy != nil && *raw.ModelAccuracy >= 0 && *raw.ModelAccuracy <= 1 {
		acc := *raw.ModelAccuracy
		m.ModelAccuracy = &acc
	}
	if raw.LastUpdated != nil && strings.TrimSpace(*raw.LastUpdated) != "" {
		m.LastUpdated = strings.TrimSpace(*raw.LastUpdated)
	}
	if raw.PerformanceMetrics != nil {
		m.PerformanceMetrics = raw.PerformanceMetrics
	}
	return m, nil
}

// LoadOrDefault is Load with the fallback reason logged.
func LoadOrDefault(path string) Metrics {
	m, err := Load(path)
	if err != nil {
		redact.Logf("modelmetrics: using defaults (%s): %v", m.Source, err)
	}
	return m
}

// Health is the dashboard health label.
type Health string

const (
	HealthHealthy Health = "healthy"
	HealthWarning Health = "warning"
	HealthError   Health = "error"
)

// HealthStatus grades the model for dashboards: a model that cannot serve is
// an error, a serving model with known accuracy at or above HealthyAccuracy
// is healthy, anything else is a warning.
func HealthStatus(m Metrics, ready bool) Health {
	if !ready {
		return HealthError
	}
	if m.ModelAccuracy != nil && *m.ModelAccuracy >= HealthyAccuracy {
		return HealthHealthy
	}
	return HealthWarning
}
