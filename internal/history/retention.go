package history

import (
	"context"
	"path/filepath"
	"time"

	"localhist/internal/backend"
	"localhist/internal/logging"

	"go.uber.org/zap"
)

// maxAgeDays caps MaxDays so the cutoff stays a representable date. Any
// larger window already predates every record.
const maxAgeDays = 1 << 20

// RetentionPolicy bounds the history of a file. A revision survives pruning
// when it is among the newest MaxRevisions or younger than MaxDays.
type RetentionPolicy struct {
	MaxDays      int
	MaxRevisions int
}

// KeepFrom returns the oldest revision id to keep; everything below it may
// be discarded. Zero means keep everything. revs must be newest first.
//
// The newest MaxRevisions are always kept, as is the one just before them
// unless it is older than MaxDays. Stale revisions further back go. Dates
// are compared as fixed-width strings, which orders them correctly for the
// record date layout.
func KeepFrom(revs []Revision, policy RetentionPolicy, now time.Time) int {
	if len(revs) == 0 {
		return 0
	}
	cutoff := backend.Stamp(now.UTC().AddDate(0, 0, -min(policy.MaxDays, maxAgeDays)))
	newest := revs[0].ID

	version := max(0, newest-policy.MaxRevisions)
	for _, r := range revs {
		if r.Stamp < cutoff {
			version = max(version, r.ID+1)
			break
		}
	}

	protected := newest - max(1, policy.MaxRevisions) + 1
	return max(0, min(version, protected))
}

// Prune applies the retention policy to the history of file.
func (h *History) Prune(ctx context.Context, file string) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	loc, err := h.Resolve(file, false)
	if err != nil {
		return err
	}
	return h.prune(ctx, loc, filepath.Base(file))
}

func (h *History) prune(ctx context.Context, loc Location, base string) error {
	revs, err := Catalog(loc.Record)
	if err != nil {
		return err
	}

	version := KeepFrom(revs, h.policy, h.now())
	if version < 1 || revs[len(revs)-1].ID >= version {
		return nil
	}

	logging.For(ctx, h.logger).Info("truncating history",
		zap.String("record", loc.Record),
		zap.Int("keep_from", version))
	return h.backend.TruncateBefore(ctx, loc.Dir, base, version)
}
