package backend

import (
	"bytes"
	"context"
	"errors"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestParseToken(t *testing.T) {
	tests := []struct {
		token   string
		want    int
		wantErr bool
	}{
		{token: "", want: 0},
		{token: "1.1", want: 1},
		{token: "1.42", want: 42},
		{token: "2.1", wantErr: true},
		{token: "1.", wantErr: true},
		{token: "1.0", wantErr: true},
		{token: "1.x", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.token, func(t *testing.T) {
			got, err := ParseToken(tt.token)
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrUnknownRevision)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
			if tt.want > 0 {
				assert.Equal(t, tt.token, Token(got))
			}
		})
	}
}

func TestAvailable(t *testing.T) {
	empty := t.TempDir()
	both := t.TempDir()
	onlyCi := t.TempDir()

	touch := func(dir, name string) {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte("#!/bin/sh\n"), 0755))
	}
	touch(both, "ci")
	touch(both, "co.exe")
	touch(onlyCi, "ci")

	join := func(dirs ...string) string {
		return strings.Join(dirs, string(os.PathListSeparator))
	}

	assert.False(t, Available(""))
	assert.False(t, Available(join(empty)))
	assert.False(t, Available(join(empty, onlyCi)))
	assert.True(t, Available(join(empty, both)))
	assert.True(t, Available(join(onlyCi, "", both)))
}

func TestAvailable_RequiresExecutable(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("no executable bit on windows")
	}
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "ci"), []byte("#!/bin/sh\n"), 0644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "co"), []byte("#!/bin/sh\n"), 0755))
	assert.False(t, Available(dir))

	require.NoError(t, os.Chmod(filepath.Join(dir, "ci"), 0755))
	assert.True(t, Available(dir))
}

func TestAvailable_IgnoresDirectories(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.Mkdir(filepath.Join(dir, "ci"), 0755))
	require.NoError(t, os.Mkdir(filepath.Join(dir, "co"), 0755))
	assert.False(t, Available(dir))
}

// recordingExecutor captures commands instead of running them.
type recordingExecutor struct {
	cmds   []*exec.Cmd
	stdins []string
}

func (r *recordingExecutor) Run(cmd *exec.Cmd) (string, error) {
	r.cmds = append(r.cmds, cmd)
	stdin := ""
	if cmd.Stdin != nil {
		var buf bytes.Buffer
		_, _ = buf.ReadFrom(cmd.Stdin)
		stdin = buf.String()
	}
	r.stdins = append(r.stdins, stdin)
	return "", nil
}

func (r *recordingExecutor) args() [][]string {
	out := make([][]string, len(r.cmds))
	for i, c := range r.cmds {
		out[i] = c.Args
	}
	return out
}

func TestRCS_Commands(t *testing.T) {
	ctx := context.Background()
	rec := &recordingExecutor{}
	r := NewRCS(rec, zap.NewNop())

	require.NoError(t, r.Init(ctx, "/h", "main.go"))
	require.NoError(t, r.Commit(ctx, "/h", "main.go"))
	require.NoError(t, r.TruncateBefore(ctx, "/h", "main.go", 1))
	require.NoError(t, r.TruncateBefore(ctx, "/h", "main.go", 5))
	require.NoError(t, r.Checkout(ctx, "/h", "main.go", "1.3"))

	assert.Equal(t, [][]string{
		{"rcs", "-q", "-i", "-U", "-t-", "main.go"},
		{"ci", "-q", "main.go"},
		{"rcs", "-q", "-o:1.4", "main.go"},
		{"co", "-q", "-r1.3", "main.go"},
	}, rec.args())
	assert.Equal(t, ".\n", rec.stdins[1])
	for _, c := range rec.cmds {
		assert.Equal(t, "/h", c.Dir)
	}
}

func TestRCS_CheckoutRejectsBadToken(t *testing.T) {
	rec := &recordingExecutor{}
	r := NewRCS(rec, zap.NewNop())

	err := r.Checkout(context.Background(), "/h", "a.txt", "-x")
	assert.ErrorIs(t, err, ErrUnknownRevision)
	assert.Empty(t, rec.cmds)
}

func TestCommandError(t *testing.T) {
	err := &CommandError{
		Name:   "co",
		Args:   []string{"-r1.9", "a.txt"},
		Stderr: "co: a.txt,v: revision 1.9 absent\n",
		Err:    errors.New("exit status 1"),
	}
	assert.ErrorIs(t, err, ErrBackendFailed)
	assert.Equal(t, "co -r1.9 a.txt: exit status 1: co: a.txt,v: revision 1.9 absent", err.Error())
}

func TestWriteRecord(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, writeRecord(&buf, []RevisionMeta{
		{ID: 2, Date: "2026.10.15.09.00.00", Author: "ann"},
		{ID: 1, Date: "2026.10.14.09.00.00", Author: "ann"},
	}))

	text := buf.String()
	assert.True(t, strings.HasPrefix(text, "head\t1.2;\n"))
	assert.Contains(t, text, "\n1.2\ndate\t2026.10.15.09.00.00;\tauthor ann;\tstate Exp;\nbranches;\nnext\t1.1;\n")
	assert.Contains(t, text, "\n1.1\ndate\t2026.10.14.09.00.00;\tauthor ann;\tstate Exp;\nbranches;\nnext\t;\n")
	assert.Less(t, strings.Index(text, "date"), strings.Index(text, "\nlog\n"))
}

func TestCodec(t *testing.T) {
	c, err := newCodec(CompressionOptions{MinSize: 16, Level: 2})
	require.NoError(t, err)
	defer c.close()

	small := []byte("tiny")
	large := bytes.Repeat([]byte("package main\n"), 100)

	enc := c.encode(small)
	assert.Equal(t, blobRaw, enc[0])
	got, err := c.decode(enc)
	require.NoError(t, err)
	assert.Equal(t, small, got)

	enc = c.encode(large)
	assert.Equal(t, blobZstd, enc[0])
	assert.Less(t, len(enc), len(large))
	got, err = c.decode(enc)
	require.NoError(t, err)
	assert.Equal(t, large, got)

	_, err = c.decode([]byte{9, 1, 2})
	assert.Error(t, err)
}

func newTestEmbedded(t *testing.T, now *time.Time) *Embedded {
	t.Helper()
	e, err := NewEmbedded(EmbeddedOptions{
		Author: "tester",
		Now:    func() time.Time { return *now },
	}, zap.NewNop())
	require.NoError(t, err)
	t.Cleanup(e.Close)
	return e
}

func commitContent(t *testing.T, e *Embedded, dir, base, content string) {
	t.Helper()
	require.NoError(t, os.WriteFile(filepath.Join(dir, base), []byte(content), 0644))
	require.NoError(t, e.Commit(context.Background(), dir, base))
}

func TestEmbedded_InitTwice(t *testing.T) {
	now := time.Date(2026, 10, 15, 12, 0, 0, 0, time.UTC)
	e := newTestEmbedded(t, &now)
	dir := t.TempDir()

	require.NoError(t, e.Init(context.Background(), dir, "a.txt"))
	assert.FileExists(t, filepath.Join(dir, "a.txt,v"))
	assert.ErrorIs(t, e.Init(context.Background(), dir, "a.txt"), ErrRecordExists)
}

func TestEmbedded_FailedCommitLeavesRecord(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2026, 10, 15, 12, 0, 0, 0, time.UTC)
	e := newTestEmbedded(t, &now)
	dir := t.TempDir()

	commitContent(t, e, dir, "a.txt", "one\n")
	before, err := os.ReadFile(filepath.Join(dir, "a.txt,v"))
	require.NoError(t, err)

	// A store that cannot be opened must not leave a record naming a
	// revision it never stored.
	require.NoError(t, os.RemoveAll(filepath.Join(dir, StoreDir)))
	require.NoError(t, os.WriteFile(filepath.Join(dir, StoreDir), []byte("not a database"), 0644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "a.txt"), []byte("two\n"), 0644))

	assert.Error(t, e.Commit(ctx, dir, "a.txt"))
	assert.Error(t, e.TruncateBefore(ctx, dir, "a.txt", 2))

	after, err := os.ReadFile(filepath.Join(dir, "a.txt,v"))
	require.NoError(t, err)
	assert.Equal(t, string(before), string(after))
	assert.FileExists(t, filepath.Join(dir, "a.txt"))
}

func TestEmbedded_CommitAndCheckout(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2026, 10, 15, 12, 0, 0, 0, time.UTC)
	e := newTestEmbedded(t, &now)
	dir := t.TempDir()

	require.NoError(t, e.Init(ctx, dir, "a.txt"))
	commitContent(t, e, dir, "a.txt", "one\n")
	now = now.Add(time.Minute)
	commitContent(t, e, dir, "a.txt", strings.Repeat("two\n", 400))
	now = now.Add(time.Minute)
	commitContent(t, e, dir, "a.txt", "three\n")

	assert.NoFileExists(t, filepath.Join(dir, "a.txt"))

	record, err := os.ReadFile(filepath.Join(dir, "a.txt,v"))
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(string(record), "head\t1.3;"))
	assert.Contains(t, string(record), "date\t2026.10.15.12.02.00;")

	for token, want := range map[string]string{
		"1.1": "one\n",
		"1.2": strings.Repeat("two\n", 400),
		"1.3": "three\n",
		"":    "three\n",
	} {
		require.NoError(t, e.Checkout(ctx, dir, "a.txt", token))
		got, err := os.ReadFile(filepath.Join(dir, "a.txt"))
		require.NoError(t, err)
		assert.Equal(t, want, string(got), "token %q", token)
	}

	err = e.Checkout(ctx, dir, "a.txt", "1.9")
	assert.ErrorIs(t, err, ErrUnknownRevision)
	err = e.Checkout(ctx, dir, "b.txt", "")
	assert.ErrorIs(t, err, ErrUnknownRevision)
}

func TestEmbedded_TruncateBefore(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2026, 10, 15, 12, 0, 0, 0, time.UTC)
	e := newTestEmbedded(t, &now)
	dir := t.TempDir()

	for _, c := range []string{"v1", "v2", "v3", "v4"} {
		commitContent(t, e, dir, "a.txt", c)
		now = now.Add(time.Second)
	}

	require.NoError(t, e.TruncateBefore(ctx, dir, "a.txt", 3))

	assert.ErrorIs(t, e.Checkout(ctx, dir, "a.txt", "1.2"), ErrUnknownRevision)
	require.NoError(t, e.Checkout(ctx, dir, "a.txt", "1.3"))
	got, err := os.ReadFile(filepath.Join(dir, "a.txt"))
	require.NoError(t, err)
	assert.Equal(t, "v3", string(got))

	record, err := os.ReadFile(filepath.Join(dir, "a.txt,v"))
	require.NoError(t, err)
	assert.NotContains(t, string(record), "\n1.2\n")
	assert.NotContains(t, string(record), "\n1.1\n")

	// Ids keep counting after truncation.
	commitContent(t, e, dir, "a.txt", "v5")
	require.NoError(t, e.Checkout(ctx, dir, "a.txt", "1.5"))

	// A second truncation to the same point changes nothing.
	require.NoError(t, e.TruncateBefore(ctx, dir, "a.txt", 3))
	require.NoError(t, e.Checkout(ctx, dir, "a.txt", "1.3"))
}

func TestEmbedded_SharedBlobsSurviveTruncation(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2026, 10, 15, 12, 0, 0, 0, time.UTC)
	e := newTestEmbedded(t, &now)
	dir := t.TempDir()

	commitContent(t, e, dir, "a.txt", "same")
	commitContent(t, e, dir, "a.txt", "newer")
	commitContent(t, e, dir, "b.txt", "same")

	require.NoError(t, e.TruncateBefore(ctx, dir, "a.txt", 2))

	// Fresh backend so the cache cannot mask a deleted blob.
	fresh := newTestEmbedded(t, &now)
	require.NoError(t, fresh.Checkout(ctx, dir, "b.txt", "1.1"))
	got, err := os.ReadFile(filepath.Join(dir, "b.txt"))
	require.NoError(t, err)
	assert.Equal(t, "same", string(got))
}
