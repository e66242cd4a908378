// Package history keeps a local revision history for saved files. Each save
// is committed to a hidden history directory next to the project's object
// files; old revisions are pruned under a RetentionPolicy, and any retained
// revision can be listed, compared with the live file, or restored.
package history

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"localhist/internal/backend"
	"localhist/internal/config"
	lherrors "localhist/internal/errors"

	"go.uber.org/zap"
)

var (
	// ErrNoHistory is returned when a file has no history directory yet.
	ErrNoHistory = errors.New("no local history")
	// ErrCheckoutFailed is returned when a revision cannot be materialized.
	ErrCheckoutFailed = errors.New("revision could not be checked out")
)

// Projects locates the object directory of the project owning a file.
type Projects interface {
	ObjectDir(file string) (string, bool)
}

// Viewer shows two files side by side. The second file is removed as soon
// as Compare returns.
type Viewer interface {
	Compare(live, revision string) error
}

// Reloader refreshes the host's in-memory copy of a file from disk.
type Reloader interface {
	Reload(file string) error
}

// Host bundles the collaborators provided by the embedding editor.
type Host struct {
	Projects   Projects
	Viewer     Viewer
	Reloader   Reloader
	SearchPath string
}

type Options struct {
	DirName string
	Policy  RetentionPolicy
	Host    Host
	Now     func() time.Time
}

// History coordinates snapshots, pruning, checkout, revert and diff for all
// files handled by one process. Operations are serialized.
type History struct {
	backend  backend.Backend
	projects Projects
	viewer   Viewer
	reloader Reloader
	dirName  string
	policy   RetentionPolicy
	now      func() time.Time
	logger   *zap.Logger
	mu       sync.Mutex
}

func New(b backend.Backend, opts Options, logger *zap.Logger) *History {
	if opts.DirName == "" {
		opts.DirName = config.Default().HistoryDir
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &History{
		backend:  b,
		projects: opts.Host.Projects,
		viewer:   opts.Host.Viewer,
		reloader: opts.Host.Reloader,
		dirName:  opts.DirName,
		policy:   opts.Policy,
		now:      opts.Now,
		logger:   logger,
	}
}

// Activate probes for the configured backend and builds a History. When RCS
// is not on the search path it returns a BACKEND_UNAVAILABLE error, and the
// caller must not register anything.
func Activate(cfg *config.Config, host Host, logger *zap.Logger) (*History, error) {
	var b backend.Backend
	switch cfg.Backend {
	case config.BackendEmbedded:
		e, err := backend.NewEmbedded(backend.EmbeddedOptions{}, logger)
		if err != nil {
			return nil, err
		}
		b = e
	default:
		if !backend.Available(host.SearchPath) {
			return nil, lherrors.BackendUnavailable(cfg.Backend)
		}
		b = backend.NewRCS(nil, logger)
	}

	if host.Projects == nil {
		host.Projects = NewConfigProjects(cfg.Projects)
	}
	return New(b, Options{
		DirName: cfg.HistoryDir,
		Policy:  RetentionPolicy{MaxDays: cfg.MaxDays, MaxRevisions: cfg.MaxRevisions},
		Host:    host,
	}, logger), nil
}

// Close releases backend resources.
func (h *History) Close() {
	if c, ok := h.backend.(interface{ Close() }); ok {
		c.Close()
	}
}

// ConfigProjects resolves projects from configuration. The deepest root
// containing a file wins.
type ConfigProjects struct {
	projects []config.Project
}

func NewConfigProjects(projects []config.Project) *ConfigProjects {
	return &ConfigProjects{projects: projects}
}

func (p *ConfigProjects) ObjectDir(file string) (string, bool) {
	best := -1
	bestLen := -1
	for i, proj := range p.projects {
		if len(proj.ObjectDirs) == 0 || proj.Root == "" {
			continue
		}
		root := filepath.Clean(proj.Root)
		if !within(root, file) {
			continue
		}
		if len(root) > bestLen {
			best, bestLen = i, len(root)
		}
	}
	if best < 0 {
		return "", false
	}

	proj := p.projects[best]
	dir := proj.ObjectDirs[0]
	if !filepath.IsAbs(dir) {
		dir = filepath.Join(proj.Root, dir)
	}
	return filepath.Clean(dir), true
}

func within(root, file string) bool {
	rel, err := filepath.Rel(root, file)
	if err != nil {
		return false
	}
	return rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator))
}

// removeIfExists deletes path, treating a missing file as success.
func removeIfExists(path string) error {
	if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return err
	}
	return nil
}
