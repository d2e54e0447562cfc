package viewer

import (
	"errors"
	"io/fs"
	"net/http"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"fieldline/internal/artifacts"
	"fieldline/internal/types"
)

// healthResponse is the body of GET /healthz.
type healthResponse struct {
	Status  string `json:"status"`
	RunsDir string `json:"runs_dir"`
	Runs    int    `json:"runs"`
}

// runEntry describes one run directory in the index.
type runEntry struct {
	RunID      string    `json:"run_id"`
	ModifiedAt time.Time `json:"modified_at"`
	Artifacts  []string  `json:"artifacts"`
}

// runListResponse is the body of GET /runs.
type runListResponse struct {
	Runs  []runEntry `json:"runs"`
	Count int        `json:"count"`
}

// artifactEntry describes one file inside a run directory.
type artifactEntry struct {
	Name      string `json:"name"`
	SizeBytes int64  `json:"size_bytes"`
}

// runDetailResponse is the body of GET /runs/{runID}.
type runDetailResponse struct {
	RunID     string          `json:"run_id"`
	Artifacts []artifactEntry `json:"artifacts"`
	Count     int             `json:"count"`
}

// handleHealthz reports whether the runs directory is servable. A missing
// directory is healthy; it appears when the first run is written.
func (s *Server) handleHealthz(w http.ResponseWriter, r *http.Request) {
	resp := healthResponse{Status: "healthy", RunsDir: s.runsDir}

	entries, err := os.ReadDir(s.runsDir)
	switch {
	case errors.Is(err, fs.ErrNotExist):
		// Healthy with zero runs.
	case err != nil:
		resp.Status = "unhealthy"
		JSON(w, r, http.StatusServiceUnavailable, resp)
		return
	default:
		for _, e := range entries {
			if e.IsDir() {
				resp.Runs++
			}
		}
	}

	JSON(w, r, http.StatusOK, resp)
}

// handleListRuns returns the index of run directories, newest first.
func (s *Server) handleListRuns(w http.ResponseWriter, r *http.Request) {
	entries, err := os.ReadDir(s.runsDir)
	if err != nil && !errors.Is(err, fs.ErrNotExist) {
		Error(w, r, types.NewAppError(types.ErrCodeInternalUnexpected,
			"reading runs directory", err))
		return
	}

	runs := make([]runEntry, 0, len(entries))
	for _, e := range entries {
		if !e.IsDir() {
			continue
		}

		entry := runEntry{RunID: e.Name(), Artifacts: []string{}}
		if info, err := e.Info(); err == nil {
			entry.ModifiedAt = info.ModTime().UTC()
		}
		if files, err := os.ReadDir(filepath.Join(s.runsDir, e.Name())); err == nil {
			for _, f := range files {
				if !f.IsDir() {
					entry.Artifacts = append(entry.Artifacts, f.Name())
				}
			}
		}
		runs = append(runs, entry)
	}

	sort.Slice(runs, func(i, j int) bool {
		if !runs[i].ModifiedAt.Equal(runs[j].ModifiedAt) {
			return runs[i].ModifiedAt.After(runs[j].ModifiedAt)
		}
		return runs[i].RunID < runs[j].RunID
	})

	JSON(w, r, http.StatusOK, runListResponse{Runs: runs, Count: len(runs)})
}

// handleRunDetail lists the artifact files of a single run.
func (s *Server) handleRunDetail(w http.ResponseWriter, r *http.Request) {
	runID := chi.URLParam(r, "runID")
	if !safeSegment(runID) {
		Error(w, r, types.NewAppError(types.ErrCodeValidationParameter,
			"invalid run ID", nil))
		return
	}

	runDir := filepath.Join(s.runsDir, runID)
	files, err := os.ReadDir(runDir)
	if errors.Is(err, fs.ErrNotExist) {
		Error(w, r, types.NewAppErrorWithDetails(types.ErrCodeNotFoundRun,
			"run not found", nil, map[string]any{"run_id": runID}))
		return
	}
	if err != nil {
		Error(w, r, types.NewAppError(types.ErrCodeInternalUnexpected,
			"reading run directory", err))
		return
	}

	list := make([]artifactEntry, 0, len(files))
	for _, f := range files {
		if f.IsDir() {
			continue
		}
		entry := artifactEntry{Name: f.Name()}
		if info, err := f.Info(); err == nil {
			entry.SizeBytes = info.Size()
		}
		list = append(list, entry)
	}

	JSON(w, r, http.StatusOK, runDetailResponse{
		RunID:     runID,
		Artifacts: list,
		Count:     len(list),
	})
}

// handleArtifact serves one artifact file with its proper content type.
// Requesting the plain boundary GeoJSON from a run stored compressed
// decompresses it on the fly.
func (s *Server) handleArtifact(w http.ResponseWriter, r *http.Request) {
	runID := chi.URLParam(r, "runID")
	name := chi.URLParam(r, "artifact")
	if !safeSegment(runID) || !safeSegment(name) {
		Error(w, r, types.NewAppError(types.ErrCodeValidationParameter,
			"invalid run ID or artifact name", nil))
		return
	}

	runDir := filepath.Join(s.runsDir, runID)
	if _, err := os.Stat(runDir); errors.Is(err, fs.ErrNotExist) {
		Error(w, r, types.NewAppErrorWithDetails(types.ErrCodeNotFoundRun,
			"run not found", nil, map[string]any{"run_id": runID}))
		return
	}

	data, err := os.ReadFile(filepath.Join(runDir, name))
	if errors.Is(err, fs.ErrNotExist) && name == artifacts.BoundariesFile {
		data, err = s.decompressedBoundaries(runDir)
	}
	if errors.Is(err, fs.ErrNotExist) {
		Error(w, r, types.NewAppErrorWithDetails(types.ErrCodeNotFoundArtifact,
			"artifact not found", nil,
			map[string]any{"run_id": runID, "artifact": name}))
		return
	}
	if err != nil {
		Error(w, r, types.NewAppError(types.ErrCodeInternalUnexpected,
			"reading artifact", err))
		return
	}

	w.Header().Set("Content-Type", contentTypeFor(name))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(data)
}

// decompressedBoundaries serves runs that stored boundaries compressed:
// it reads boundaries.geojson.zst and returns the plain GeoJSON.
func (s *Server) decompressedBoundaries(runDir string) ([]byte, error) {
	compressed, err := os.ReadFile(filepath.Join(runDir, artifacts.CompressedBoundariesFile))
	if err != nil {
		return nil, err
	}
	return artifacts.Decompress(compressed)
}

// contentTypeFor maps artifact file names to their content types.
func contentTypeFor(name string) string {
	switch name {
	case artifacts.MapFile:
		return "text/html; charset=utf-8"
	case artifacts.BoundariesFile:
		return "application/geo+json"
	case artifacts.CompressedBoundariesFile:
		return "application/zstd"
	case artifacts.ReportFile:
		return "application/json"
	case artifacts.QuicklookFile:
		return "image/png"
	default:
		return "application/octet-stream"
	}
}

// safeSegment rejects path segments that could escape the runs directory.
func safeSegment(name string) bool {
	return name != "" && name != "." && name != ".." &&
		!strings.ContainsAny(name, `/\`) && !strings.Contains(name, "%")
}
