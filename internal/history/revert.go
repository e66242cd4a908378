package history

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"

	lherrors "localhist/internal/errors"
	"localhist/internal/logging"

	"go.uber.org/zap"
)

// Revert replaces file with revision token. There is no confirmation; the
// previous content stays recoverable when it was saved before. Nothing is
// written to file unless the revision was checked out and prepared.
func (h *History) Revert(ctx context.Context, file, token string) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.revert(ctx, file, token)
}

func (h *History) revert(ctx context.Context, file, token string) error {
	logger := logging.For(ctx, h.logger)
	logger.Info("revert", zap.String("file", file), zap.String("revision", token))

	artifact, err := h.checkout(ctx, file, token)
	if err != nil {
		return err
	}

	info, err := os.Stat(file)
	if err != nil {
		os.Remove(artifact)
		return lherrors.RevertIO("stat", file, err)
	}
	if err := os.Chmod(artifact, info.Mode().Perm()); err != nil {
		os.Remove(artifact)
		return lherrors.RevertIO("chmod", artifact, err)
	}
	if err := moveFile(artifact, file, info.Mode().Perm()); err != nil {
		os.Remove(artifact)
		return lherrors.RevertIO("move", file, err)
	}

	if h.reloader != nil {
		if err := h.reloader.Reload(file); err != nil {
			logger.Warn("reloading reverted file", zap.String("file", file), zap.Error(err))
		}
	}
	return nil
}

// Diff hands file and revision token to the viewer, then removes the
// checked-out copy. The live file is only read.
func (h *History) Diff(ctx context.Context, file, token string) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.diff(ctx, file, token)
}

func (h *History) diff(ctx context.Context, file, token string) error {
	if h.viewer == nil {
		return fmt.Errorf("no comparison viewer configured")
	}

	artifact, err := h.checkout(ctx, file, token)
	if err != nil {
		return err
	}
	defer func() {
		if err := os.Remove(artifact); err != nil {
			logging.For(ctx, h.logger).Debug("removing checked-out revision",
				zap.String("path", artifact), zap.Error(err))
		}
	}()

	return h.viewer.Compare(file, artifact)
}

// moveFile renames src over dst. When rename is impossible, typically
// across devices, src is copied next to dst and renamed into place so dst
// is never left half written.
func moveFile(src, dst string, perm os.FileMode) error {
	if err := os.Rename(src, dst); err == nil {
		return nil
	}

	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	tmp, err := os.CreateTemp(filepath.Dir(dst), "."+filepath.Base(dst)+".revert-*")
	if err != nil {
		return err
	}
	defer os.Remove(tmp.Name())

	if _, err := io.Copy(tmp, in); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	if err := os.Chmod(tmp.Name(), perm); err != nil {
		return err
	}
	if err := os.Rename(tmp.Name(), dst); err != nil {
		return err
	}
	return os.Remove(src)
}
