// Package artifacts writes the per-run output directory: the interactive
// map, the boundary GeoJSON, the machine-readable report, and the optional
// quicklook PNG.
//
// A run directory is all-or-nothing: if any file fails to write, the whole
// directory is removed so readers never see a partial run.
package artifacts

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/klauspost/compress/zstd"

	"fieldline/internal/types"
)

// File names written into each run directory. The viewer serves these names
// verbatim.
const (
	MapFile                  = "map.html"
	BoundariesFile           = "boundaries.geojson"
	CompressedBoundariesFile = "boundaries.geojson.zst"
	ReportFile               = "report.json"
	QuicklookFile            = "quicklook.png"
)

// RunArtifacts bundles the content of one run's output files. MapHTML,
// Boundaries, and Report are required; Quicklook is optional.
type RunArtifacts struct {
	MapHTML    []byte
	Boundaries []byte // GeoJSON FeatureCollection
	Report     []byte // report.json content
	Quicklook  []byte // PNG, may be nil
}

// Written describes a successfully written run directory.
type Written struct {
	Dir   string
	Files []string
}

// Writer persists run artifacts under a base directory, one subdirectory per
// run ID.
type Writer struct {
	dir      string
	compress bool
	logger   *slog.Logger
	encoder  *zstd.Encoder
}

// NewWriter creates a Writer rooted at dir. When compress is true, boundary
// GeoJSON is stored zstd-compressed as boundaries.geojson.zst.
func NewWriter(dir string, compress bool, logger *slog.Logger) (*Writer, error) {
	if dir == "" {
		return nil, fmt.Errorf("artifacts: base directory is required")
	}
	if logger == nil {
		logger = slog.Default()
	}

	w := &Writer{dir: dir, compress: compress, logger: logger}
	if compress {
		encoder, err := zstd.NewWriter(nil)
		if err != nil {
			return nil, fmt.Errorf("artifacts: creating zstd encoder: %w", err)
		}
		w.encoder = encoder
	}
	return w, nil
}

// Write persists the artifacts of one run. On any failure the run directory
// is removed before returning, so a run directory that exists is always
// complete.
func (w *Writer) Write(runID string, a RunArtifacts) (*Written, error) {
	if err := validateRunID(runID); err != nil {
		return nil, err
	}
	if len(a.MapHTML) == 0 || len(a.Boundaries) == 0 || len(a.Report) == 0 {
		return nil, types.NewAppError(types.ErrCodeArtifactWrite,
			"map, boundaries, and report content are all required", nil)
	}

	runDir := filepath.Join(w.dir, runID)
	if err := os.MkdirAll(runDir, 0o755); err != nil {
		return nil, types.NewAppErrorWithDetails(types.ErrCodeArtifactWrite,
			"creating run directory", err, map[string]any{"dir": runDir})
	}

	boundariesName := BoundariesFile
	boundariesData := a.Boundaries
	if w.compress {
		boundariesName = CompressedBoundariesFile
		boundariesData = w.encoder.EncodeAll(a.Boundaries, nil)
	}

	files := []struct {
		name string
		data []byte
	}{
		{MapFile, a.MapHTML},
		{boundariesName, boundariesData},
		{ReportFile, a.Report},
	}
	if len(a.Quicklook) > 0 {
		files = append(files, struct {
			name string
			data []byte
		}{QuicklookFile, a.Quicklook})
	}

	names := make([]string, 0, len(files))
	for _, f := range files {
		path := filepath.Join(runDir, f.name)
		if err := os.WriteFile(path, f.data, 0o644); err != nil {
			// No partial runs: remove everything written so far.
			if rmErr := os.RemoveAll(runDir); rmErr != nil {
				w.logger.Warn("failed to clean up partial run directory",
					"dir", runDir,
					"error", rmErr,
				)
			}
			return nil, types.NewAppErrorWithDetails(types.ErrCodeArtifactWrite,
				fmt.Sprintf("writing %s", f.name), err, map[string]any{"dir": runDir})
		}
		names = append(names, f.name)
	}

	w.logger.Info("run artifacts written",
		"run_id", runID,
		"dir", runDir,
		"files", names,
	)

	return &Written{Dir: runDir, Files: names}, nil
}

// Decompress reverses the boundary compression. Used by consumers that want
// the plain GeoJSON back from a boundaries.geojson.zst artifact.
func Decompress(data []byte) ([]byte, error) {
	decoder, err := zstd.NewReader(nil)
	if err != nil {
		return nil, fmt.Errorf("artifacts: creating zstd decoder: %w", err)
	}
	defer decoder.Close()

	out, err := decoder.DecodeAll(data, nil)
	if err != nil {
		return nil, fmt.Errorf("artifacts: zstd decompression failed: %w", err)
	}
	return out, nil
}

// validateRunID rejects run IDs that would escape the base directory when
// joined into a path.
func validateRunID(runID string) error {
	if runID == "" || runID == "." || runID == ".." ||
		strings.ContainsAny(runID, `/\`) {
		return types.NewAppError(types.ErrCodeValidationParameter,
			fmt.Sprintf("invalid run ID %q", runID), nil)
	}
	return nil
}
