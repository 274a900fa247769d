package classifier

import (
	"os"
	"path/filepath"
	"strconv"
	"strings"
)

const (
	defaultIntraThreads = 1
	defaultInterThreads = 1
	defaultMaxSessions  = 1
)

// RuntimeSettings tunes the ONNX runtime backend.
type RuntimeSettings struct {
	// LibraryPath points at the onnxruntime shared library. Empty means probe.
	LibraryPath  string
	SearchDirs   []string
	IntraThreads int
	InterThreads int
	// MaxSessions is the number of pre-allocated sessions; it bounds the
	// number of concurrent forward passes.
	MaxSessions int
}

// withDefaults fills unset fields and applies BANTAY_MAX_SESSIONS,
// BANTAY_INTRA_THREADS and BANTAY_INTER_THREADS overrides.
func (rt RuntimeSettings) withDefaults() RuntimeSettings {
	if v, ok := envInt("BANTAY_MAX_SESSIONS"); ok {
		rt.MaxSessions = v
	}
	if v, ok := envInt("BANTAY_INTRA_THREADS"); ok {
		rt.IntraThreads = v
	}
	if v, ok := envInt("BANTAY_INTER_THREADS"); ok {
		rt.InterThreads = v
	}
	if rt.MaxSessions <= 0 {
		rt.MaxSessions = defaultMaxSessions
	}
	if rt.IntraThreads <= 0 {
		rt.IntraThreads = defaultIntraThreads
	}
	if rt.InterThreads <= 0 {
		rt.InterThreads = defaultInterThreads
	}
	return rt
}

func envInt(key string) (int, bool) {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return 0, false
	}
	v, err := strconv.Atoi(raw)
	if err != nil || v <= 0 {
		return 0, false
	}
	return v, true
}

// resolveSharedLibraryPath finds the onnxruntime shared library. The
// ONNXRUNTIME_SHARED_LIBRARY_PATH environment variable wins, then the
// configured path, then the search dirs and the usual system locations.
func resolveSharedLibraryPath(rt RuntimeSettings) string {
	if env := strings.TrimSpace(os.Getenv("ONNXRUNTIME_SHARED_LIBRARY_PATH")); env != "" {
		return env
	}
	if p := strings.TrimSpace(rt.LibraryPath); p != "" {
		return p
	}

	names := []string{
		"libonnxruntime.dylib",
		"onnxruntime.dylib",
		"libonnxruntime.so",
		"onnxruntime.so",
		"onnxruntime.dll",
	}
	var dirs []string
	for _, dir := range rt.SearchDirs {
		if dir == "" {
			continue
		}
		dirs = append(dirs, dir, filepath.Join(dir, "lib"))
	}
	dirs = append(dirs, ".", "/opt/homebrew/lib", "/usr/local/lib", "/usr/lib")

	for _, dir := range dirs {
		for _, name := range names {
			candidate := filepath.Join(dir, name)
			if _, err := os.Stat(candidate); err == nil {
				return candidate
			}
		}
	}
	return ""
}
