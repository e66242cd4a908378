// Package backend stores and reconstructs file revisions for the local
// history. Every operation runs inside a history directory and addresses a
// file by its basename; the revision record lives beside it as "<base>,v".
package backend

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
)

var (
	ErrRecordExists    = errors.New("history record already exists")
	ErrBackendFailed   = errors.New("backend command failed")
	ErrUnknownRevision = errors.New("unknown revision")
)

// RecordSuffix is appended to a basename to name its history record.
const RecordSuffix = ",v"

// Backend is the versioning engine behind the local history.
type Backend interface {
	// Init creates the record for base. Any error means the record could
	// not be created, usually because it already exists.
	Init(ctx context.Context, dir, base string) error

	// Commit records the content of dir/base as a new revision.
	Commit(ctx context.Context, dir, base string) error

	// TruncateBefore discards every revision whose id is below keepFrom.
	TruncateBefore(ctx context.Context, dir, base string, keepFrom int) error

	// Checkout writes the revision named by token to dir/base. An empty
	// token selects the newest revision.
	Checkout(ctx context.Context, dir, base, token string) error
}

// Token formats a revision id the way the record names it.
func Token(id int) string {
	return "1." + strconv.Itoa(id)
}

// ParseToken returns the id of a "1.N" token. The empty token yields 0.
func ParseToken(token string) (int, error) {
	if token == "" {
		return 0, nil
	}
	rest, ok := strings.CutPrefix(token, "1.")
	if !ok {
		return 0, fmt.Errorf("%w: %q", ErrUnknownRevision, token)
	}
	id, err := strconv.Atoi(rest)
	if err != nil || id < 1 {
		return 0, fmt.Errorf("%w: %q", ErrUnknownRevision, token)
	}
	return id, nil
}
