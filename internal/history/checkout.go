package history

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	lherrors "localhist/internal/errors"
)

// Checkout materializes revision token of file inside its history directory
// and returns the path of the copy. The live file is not touched; the
// caller owns the returned file and must remove it.
func (h *History) Checkout(ctx context.Context, file, token string) (string, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.checkout(ctx, file, token)
}

func (h *History) checkout(ctx context.Context, file, token string) (string, error) {
	loc, err := h.Resolve(file, false)
	if err != nil {
		return "", lherrors.Checkout(file, token, fmt.Errorf("%w: %w", ErrCheckoutFailed, err))
	}

	artifact := loc.Working(file)
	if err := removeIfExists(artifact); err != nil {
		return "", lherrors.Checkout(file, token, fmt.Errorf("%w: removing stale copy: %w", ErrCheckoutFailed, err))
	}

	if err := h.backend.Checkout(ctx, loc.Dir, filepath.Base(file), token); err != nil {
		return "", lherrors.Checkout(file, token, fmt.Errorf("%w: %w", ErrCheckoutFailed, err))
	}
	if _, err := os.Stat(artifact); err != nil {
		return "", lherrors.Checkout(file, token, fmt.Errorf("%w: %w", ErrCheckoutFailed, err))
	}
	return artifact, nil
}
