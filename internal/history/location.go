package history

import (
	"os"
	"path/filepath"

	"localhist/internal/backend"

	"go.uber.org/zap"
)

// Location names the history directory of a file and its record inside it.
type Location struct {
	Dir    string
	Record string
}

// Working is the path used for snapshots and checkouts of file.
func (l Location) Working(file string) string {
	return filepath.Join(l.Dir, filepath.Base(file))
}

// Resolve maps file to its history location. The directory sits below the
// owning project's object directory, or beside the file when no project
// claims it. With allowCreate the directory is created if missing; without
// it a missing directory yields ErrNoHistory and nothing is touched.
func (h *History) Resolve(file string, allowCreate bool) (Location, error) {
	abs, err := filepath.Abs(file)
	if err != nil {
		return Location{}, err
	}

	base := filepath.Dir(abs)
	if h.projects != nil {
		if dir, ok := h.projects.ObjectDir(abs); ok {
			base = dir
		}
	}
	dir := filepath.Join(base, h.dirName)

	if allowCreate {
		if _, err := os.Stat(dir); err != nil {
			if err := os.MkdirAll(dir, 0755); err != nil {
				h.logger.Debug("creating history directory", zap.String("dir", dir), zap.Error(err))
			} else {
				h.logger.Info("created history directory", zap.String("dir", dir))
			}
		}
	}

	info, err := os.Stat(dir)
	if err != nil || !info.IsDir() {
		return Location{}, ErrNoHistory
	}

	return Location{
		Dir:    dir,
		Record: filepath.Join(dir, filepath.Base(abs)+backend.RecordSuffix),
	}, nil
}

// HasHistory reports whether file has a history record. It is the guard
// for the revision commands and never fails.
func (h *History) HasHistory(file string) bool {
	loc, err := h.Resolve(file, false)
	if err != nil {
		if err != ErrNoHistory {
			h.logger.Warn("checking local history", zap.String("file", file), zap.Error(err))
		}
		return false
	}
	info, err := os.Stat(loc.Record)
	return err == nil && info.Mode().IsRegular()
}
