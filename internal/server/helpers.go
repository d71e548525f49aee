package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"path/filepath"
	"strings"

	"github.com/cwbudde/soilfit/internal/data"
	"github.com/cwbudde/soilfit/internal/fit"
)

var errPathBasedJobsDisabled = errors.New("dataPath is disabled on this server")

// loadCurve reads a data file below dataDir. The path is cleaned as if it
// were absolute so it cannot climb out of dataDir.
func loadCurve(dataDir, path string) (fit.Curve, error) {
	if dataDir == "" {
		return fit.Curve{}, errPathBasedJobsDisabled
	}
	clean := filepath.Clean("/" + filepath.ToSlash(path))
	full := filepath.Join(dataDir, filepath.FromSlash(strings.TrimPrefix(clean, "/")))
	c, err := data.Load(full)
	if err != nil {
		return fit.Curve{}, fmt.Errorf("load %s: %w", path, err)
	}
	return c, nil
}

// writeJSON encodes v with the given status code
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("Failed to encode response", "error", err)
	}
}
