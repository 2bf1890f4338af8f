package resolver

import (
	"log/slog"
	"sync"

	"github.com/google/uuid"

	"github.com/veranemoloko/download-resolver/internal/domain"
)

// Registry owns the running resolution instances, keyed by download ID.
// Instances are removed when their terminal callback fires; cancelling a
// download mid-resolution goes through here.
type Registry struct {
	mu     sync.Mutex
	active map[uuid.UUID]*Resolution
	logger *slog.Logger
}

// NewRegistry creates an empty resolution registry.
func NewRegistry(logger *slog.Logger) *Registry {
	if logger == nil {
		logger = slog.Default()
	}
	return &Registry{
		active: make(map[uuid.UUID]*Resolution),
		logger: logger,
	}
}

// Start begins target resolution for the download. The completion callback
// is invoked exactly once, from the resolution's own goroutine, after which
// the instance is forgotten.
func (g *Registry) Start(d *domain.Download, initialVirtualPath string, conflictAction domain.ConflictAction, deps Deps, cb CompletionCallback) *Resolution {
	r := newResolution(d, initialVirtualPath, conflictAction, deps, cb, g)

	g.mu.Lock()
	if prev, ok := g.active[d.ID]; ok {
		// A download resolves its target once per attempt; a leftover
		// instance means the previous attempt never terminated.
		g.logger.Warn("replacing active resolution", "download_id", d.ID)
		prev.Cancel()
	}
	g.active[d.ID] = r
	g.mu.Unlock()

	g.logger.Info("target resolution started",
		"download_id", d.ID,
		"url", d.Request.URL,
		"initial_virtual_path", initialVirtualPath,
	)

	go r.run()
	return r
}

// Cancel short-circuits the resolution for the download, if one is active.
// Returns false when no resolution is running.
func (g *Registry) Cancel(id uuid.UUID) bool {
	g.mu.Lock()
	r, ok := g.active[id]
	g.mu.Unlock()
	if !ok {
		return false
	}
	r.Cancel()
	return true
}

// ActiveCount returns the number of in-flight resolutions.
func (g *Registry) ActiveCount() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.active)
}

func (g *Registry) remove(id uuid.UUID) {
	g.mu.Lock()
	delete(g.active, id)
	g.mu.Unlock()
}
