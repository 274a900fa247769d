package classifier

import "time"

// ModelInfo describes the loaded artifact.
type ModelInfo struct {
	ModelPath string     `json:"model_path"`
	Backend   string     `json:"backend"`
	Input     TensorInfo `json:"input"`
	Output    TensorInfo `json:"output"`
	LoadedAt  time.Time  `json:"loaded_at"`
}

// Status is the introspection snapshot used by health endpoints. The
// tflite_available key is kept for existing dashboards and reports whether
// the inference runtime initialized.
type Status struct {
	Backend          string     `json:"backend"`
	RuntimeAvailable bool       `json:"tflite_available"`
	ModelLoaded      bool       `json:"model_loaded"`
	ModelReady       bool       `json:"model_ready"`
	CategoriesCount  int        `json:"categories_count"`
	Categories       []string   `json:"categories"`
	ModelInfo        *ModelInfo `json:"model_info,omitempty"`
	LastError        string     `json:"last_error,omitempty"`
}

// Status reports the engine state without side effects. It is safe to call
// at any time, including before Load.
func (e *Engine) Status() Status {
	e.mu.RLock()
	defer e.mu.RUnlock()

	st := Status{
		RuntimeAvailable: e.attempted && e.backendErr == nil,
		ModelLoaded:      e.model != nil,
		CategoriesCount:  len(e.labels),
		Categories:       append([]string(nil), e.labels...),
	}
	if e.backend != nil {
		st.Backend = e.backend.Name()
	}
	st.ModelReady = st.RuntimeAvailable && st.ModelLoaded
	if st.ModelLoaded {
		st.ModelInfo = e.infoLocked()
	}
	switch {
	case e.backendErr != nil:
		st.LastError = e.backendErr.Error()
	case e.loadErr != nil:
		st.LastError = e.loadErr.Error()
	}
	return st
}

// Info returns the loaded model's description, or false when not loaded.
func (e *Engine) Info() (*ModelInfo, bool) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	if e.model == nil {
		return nil, false
	}
	return e.infoLocked(), true
}

func (e *Engine) infoLocked() *ModelInfo {
	info := &ModelInfo{
		ModelPath: e.modelPath,
		Input:     e.model.Input(),
		Output:    e.model.Output(),
		LoadedAt:  e.loadedAt,
	}
	if e.backend != nil {
		info.Backend = e.backend.Name()
	}
	return info
}
