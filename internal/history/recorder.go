package history

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	lherrors "localhist/internal/errors"
	"localhist/internal/logging"

	"go.uber.org/zap"
)

// Save records the current content of file as a new revision and prunes
// the history afterwards. It is called after the host has written file to
// disk and never fails: problems are logged and the save goes on.
func (h *History) Save(ctx context.Context, file string) {
	h.mu.Lock()
	defer h.mu.Unlock()

	logger := logging.For(ctx, h.logger).With(zap.String("file", file))

	loc, err := h.Resolve(file, true)
	if err != nil {
		logger.Warn("snapshot skipped", zap.Error(lherrors.Snapshot("resolve", file, err)))
		return
	}
	base := filepath.Base(file)

	if err := copyFile(file, loc.Working(file)); err != nil {
		logger.Warn("snapshot skipped", zap.Error(lherrors.Snapshot("copy", file, err)))
		return
	}

	if _, err := os.Stat(loc.Record); errors.Is(err, os.ErrNotExist) {
		if err := h.backend.Init(ctx, loc.Dir, base); err != nil {
			logger.Debug("history record not initialized", zap.Error(err))
		}
	}

	if err := h.backend.Commit(ctx, loc.Dir, base); err != nil {
		logger.Warn("snapshot failed", zap.Error(lherrors.Snapshot("commit", file, err)))
		return
	}
	logger.Debug("snapshot committed", zap.String("record", loc.Record))

	if err := h.prune(ctx, loc, base); err != nil {
		logger.Warn("pruning history", zap.Error(err))
	}
}

// copyFile copies content, permission bits and timestamps of src to dst,
// replacing dst even when it is read-only.
func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	info, err := in.Stat()
	if err != nil {
		return err
	}
	if !info.Mode().IsRegular() {
		return fmt.Errorf("%s is not a regular file", src)
	}

	if err := removeIfExists(dst); err != nil {
		return err
	}
	out, err := os.OpenFile(dst, os.O_WRONLY|os.O_CREATE|os.O_EXCL, info.Mode().Perm())
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		os.Remove(dst)
		return err
	}
	if err := out.Close(); err != nil {
		os.Remove(dst)
		return err
	}

	if err := os.Chmod(dst, info.Mode().Perm()); err != nil {
		return err
	}
	return os.Chtimes(dst, info.ModTime(), info.ModTime())
}
