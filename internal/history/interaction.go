package history

import (
	"context"
	"fmt"

	"localhist/internal/logging"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Interaction is one user request against the revisions of a file: the
// catalog is read once and reused to build the menu and to act on the
// chosen entry.
type Interaction struct {
	ID   string
	File string

	h    *History
	revs []Revision
}

// Begin starts an interaction on file. It fails with ErrNoHistory when the
// file has never been saved.
func (h *History) Begin(ctx context.Context, file string) (*Interaction, error) {
	revs, err := h.Revisions(file)
	if err != nil {
		return nil, err
	}

	in := &Interaction{ID: uuid.NewString(), File: file, h: h, revs: revs}
	logging.For(logging.WithInteraction(ctx, in.ID), h.logger).Debug("interaction started",
		zap.String("file", file),
		zap.Int("revisions", len(revs)))
	return in, nil
}

func (in *Interaction) Revisions() []Revision {
	return in.revs
}

// Labels are the menu entries, in catalog order.
func (in *Interaction) Labels() []string {
	labels := make([]string, len(in.revs))
	for i, r := range in.revs {
		labels[i] = r.Label()
	}
	return labels
}

// Tokens are the backend revision names matching Labels.
func (in *Interaction) Tokens() []string {
	tokens := make([]string, len(in.revs))
	for i, r := range in.revs {
		tokens[i] = r.Token()
	}
	return tokens
}

func (in *Interaction) Revert(ctx context.Context, index int) error {
	token, err := in.token(index)
	if err != nil {
		return err
	}
	in.h.mu.Lock()
	defer in.h.mu.Unlock()
	return in.h.revert(logging.WithInteraction(ctx, in.ID), in.File, token)
}

func (in *Interaction) Diff(ctx context.Context, index int) error {
	token, err := in.token(index)
	if err != nil {
		return err
	}
	in.h.mu.Lock()
	defer in.h.mu.Unlock()
	return in.h.diff(logging.WithInteraction(ctx, in.ID), in.File, token)
}

func (in *Interaction) token(index int) (string, error) {
	if index < 0 || index >= len(in.revs) {
		return "", fmt.Errorf("revision index %d out of range [0,%d)", index, len(in.revs))
	}
	return in.revs[index].Token(), nil
}
