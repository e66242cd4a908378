package backend

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"
)

// StampLayout is the fixed-width date format used in history records.
const StampLayout = "2006.01.02.15.04.05"

// RevisionMeta is what the embedded backend remembers about one revision.
type RevisionMeta struct {
	ID     int    `json:"id"`
	Date   string `json:"date"`
	Author string `json:"author"`
	Hash   string `json:"hash"`
}

// Stamp formats t as a record date.
func Stamp(t time.Time) string {
	return t.UTC().Format(StampLayout)
}

// writeRecord renders revs, newest first, as the admin and delta-header
// sections of an RCS file. Revision text is not embedded.
func writeRecord(w io.Writer, revs []RevisionMeta) error {
	bw := bufio.NewWriter(w)

	head := ""
	if len(revs) > 0 {
		head = Token(revs[0].ID)
	}
	fmt.Fprintf(bw, "head\t%s;\naccess;\nsymbols;\nlocks;\ncomment\t@# @;\n\n", head)

	for i, rev := range revs {
		next := ""
		if i+1 < len(revs) {
			next = Token(revs[i+1].ID)
		}
		fmt.Fprintf(bw, "\n%s\ndate\t%s;\tauthor %s;\tstate Exp;\nbranches;\nnext\t%s;\n",
			Token(rev.ID), rev.Date, rev.Author, next)
	}

	fmt.Fprint(bw, "\n\ndesc\n@@\n")
	for _, rev := range revs {
		fmt.Fprintf(bw, "\n\n%s\nlog\n@@\ntext\n@@\n", Token(rev.ID))
	}
	return bw.Flush()
}

// saveRecord replaces path with the rendering of revs.
func saveRecord(path string, revs []RevisionMeta) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), ".record-*")
	if err != nil {
		return fmt.Errorf("creating temp record: %w", err)
	}
	defer os.Remove(tmp.Name())

	if err := writeRecord(tmp, revs); err != nil {
		tmp.Close()
		return fmt.Errorf("writing record: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("closing record: %w", err)
	}
	if err := os.Chmod(tmp.Name(), 0444); err != nil {
		return fmt.Errorf("chmod record: %w", err)
	}
	return os.Rename(tmp.Name(), path)
}
