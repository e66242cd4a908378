package backend

import (
	"context"
	"os/exec"
	"strings"

	"go.uber.org/zap"
)

// RCS drives the rcs, ci and co programs.
type RCS struct {
	exec   CommandExecutor
	logger *zap.Logger
}

func NewRCS(executor CommandExecutor, logger *zap.Logger) *RCS {
	if executor == nil {
		executor = NewExecExecutor()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &RCS{exec: executor, logger: logger}
}

// Init creates an empty record with non-strict locking, so later check-ins
// need no lock. rcs exits non-zero when the record already exists.
func (r *RCS) Init(ctx context.Context, dir, base string) error {
	return r.run(ctx, dir, "", "rcs", "-q", "-i", "-U", "-t-", base)
}

// Commit checks in dir/base with an empty log message.
func (r *RCS) Commit(ctx context.Context, dir, base string) error {
	return r.run(ctx, dir, ".\n", "ci", "-q", base)
}

func (r *RCS) TruncateBefore(ctx context.Context, dir, base string, keepFrom int) error {
	if keepFrom <= 1 {
		return nil
	}
	r.logger.Debug("outdating revisions",
		zap.String("record", base+RecordSuffix),
		zap.Int("keep_from", keepFrom))
	return r.run(ctx, dir, "", "rcs", "-q", "-o:"+Token(keepFrom-1), base)
}

func (r *RCS) Checkout(ctx context.Context, dir, base, token string) error {
	if _, err := ParseToken(token); err != nil {
		return err
	}
	return r.run(ctx, dir, "", "co", "-q", "-r"+token, base)
}

func (r *RCS) run(ctx context.Context, dir, stdin, name string, args ...string) error {
	cmd := exec.CommandContext(ctx, name, args...)
	cmd.Dir = dir
	if stdin != "" {
		cmd.Stdin = strings.NewReader(stdin)
	}

	r.logger.Debug("running backend command",
		zap.String("dir", dir),
		zap.String("command", name+" "+strings.Join(args, " ")))

	out, err := r.exec.Run(cmd)
	if err != nil {
		return err
	}
	if out != "" {
		r.logger.Debug("backend output", zap.String("command", name), zap.String("stdout", out))
	}
	return nil
}
