package daemon

import (
	"context"

	"github.com/jbovet/docwell/internal/lifecycle"
	"github.com/jbovet/docwell/internal/logging"
	"github.com/jbovet/docwell/internal/query"
)

// Handler adapts a Lifecycle State Machine and a log viewer to the
// RequestHandler interface Server dispatches against. It holds no
// state of its own: every method is a thin translation into the
// Machine's public surface.
type Handler struct {
	machine *lifecycle.Machine
	viewer  *logging.Viewer
	logPath string
}

// NewHandler wires a Handler to machine. logPath is the file Tail
// reads for diagnostics.getLogs; it is typically logging.DefaultLogPath().
func NewHandler(machine *lifecycle.Machine, logPath string) *Handler {
	return &Handler{
		machine: machine,
		viewer:  logging.NewViewer(logging.ViewerConfig{}, nil),
		logPath: logPath,
	}
}

func (h *Handler) Allow(method string) bool {
	return h.machine.Allow(method)
}

func (h *Handler) Search(ctx context.Context, params SearchParams) ([]SearchResult, error) {
	engine := h.machine.QueryEngine()
	if params.K > 0 {
		engine.K = params.K
	}

	hits, err := engine.Query(ctx, params.Query)
	if err != nil {
		return nil, err
	}

	results := make([]SearchResult, 0, len(hits))
	for _, hit := range hits {
		results = append(results, toSearchResult(hit))
	}
	return results, nil
}

func toSearchResult(hit query.Hit) SearchResult {
	previews := make([]SearchPreview, 0, len(hit.Previews))
	for _, p := range hit.Previews {
		previews = append(previews, SearchPreview{
			Text:   p.Text,
			Page:   p.Page,
			Offset: p.Offset,
			Score:  p.Score,
		})
	}
	return SearchResult{
		Path:     hit.Path,
		FileName: hit.FileName,
		Score:    hit.Score,
		Previews: previews,
	}
}

func (h *Handler) IndexProgress(ctx context.Context) IndexProgressResult {
	return IndexProgressResult{QueueDepth: h.machine.QueueDepth()}
}

func (h *Handler) IndexPause(ctx context.Context, params IndexPathParams) error {
	h.machine.PauseIndexing()
	return nil
}

func (h *Handler) IndexResume(ctx context.Context, params IndexPathParams) error {
	h.machine.ResumeIndexing()
	return nil
}

func (h *Handler) IndexCancel(ctx context.Context, params IndexPathParams) error {
	h.machine.CancelIndexing(params.Path)
	return nil
}

func (h *Handler) DBStats(ctx context.Context) (DBStatsResult, error) {
	stats, err := h.machine.Stats()
	if err != nil {
		return DBStatsResult{}, err
	}
	return DBStatsResult{
		IndexedFiles: stats.IndexedFiles,
		TotalChunks:  stats.TotalChunks,
		ModelDim:     stats.ModelDim,
	}, nil
}

func (h *Handler) DBClear(ctx context.Context) error {
	return h.machine.ClearDatabase(ctx)
}

func (h *Handler) ModelCheck(ctx context.Context) (ModelCheckResult, error) {
	if h.machine.ModelReady() {
		return ModelCheckResult{Ready: true}, nil
	}
	return ModelCheckResult{Ready: false, Message: "embedder child not ready"}, nil
}

func (h *Handler) DiagnosticsGetLogs(ctx context.Context, params DiagnosticsLogsParams) (DiagnosticsLogsResult, error) {
	n := params.Lines
	if n <= 0 {
		n = 100
	}
	entries, err := h.viewer.Tail(h.logPath, n)
	if err != nil {
		return DiagnosticsLogsResult{}, err
	}
	lines := make([]string, 0, len(entries))
	for _, e := range entries {
		lines = append(lines, e.Raw)
	}
	return DiagnosticsLogsResult{Lines: lines}, nil
}
