package history

import (
	"bufio"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"localhist/internal/backend"
	lherrors "localhist/internal/errors"
)

// LabelLayout is how revisions are shown to users.
const LabelLayout = "2006/01/02 15:04:05"

// Revision is one retained snapshot.
type Revision struct {
	ID    int
	Stamp string // fixed-width record date, e.g. 2026.10.15.09.30.00
}

// Token names the revision for the backend.
func (r Revision) Token() string {
	return backend.Token(r.ID)
}

// Time parses the record date, which is always UTC.
func (r Revision) Time() (time.Time, error) {
	t, err := time.ParseInLocation(backend.StampLayout, r.Stamp, time.UTC)
	if err != nil {
		return time.Time{}, lherrors.Parse("revision date", r.Stamp, err)
	}
	return t, nil
}

// Label renders the revision date for menus. Unparseable stamps are shown
// as they are.
func (r Revision) Label() string {
	t, err := r.Time()
	if err != nil {
		return r.Stamp
	}
	return t.Format(LabelLayout)
}

// ParseRecord extracts revisions from the admin section of a history
// record, newest first. A "date" line is paired with the "1.N" line just
// before it; parsing stops at the first "log" line. Lines that don't fit
// are skipped.
func ParseRecord(r io.Reader) []Revision {
	var (
		revs     []Revision
		previous string
	)

	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		line := scanner.Text()
		if strings.HasPrefix(line, "log") {
			break
		}
		if strings.HasPrefix(line, "date\t") {
			if rev, ok := parseRevision(previous, line); ok {
				revs = append(revs, rev)
			}
		}
		previous = line
	}
	return revs
}

func parseRevision(marker, dateLine string) (Revision, bool) {
	rest, ok := strings.CutPrefix(strings.TrimSpace(marker), "1.")
	if !ok {
		return Revision{}, false
	}
	id, err := strconv.Atoi(rest)
	if err != nil || id < 1 {
		return Revision{}, false
	}

	fields := strings.Fields(dateLine)
	if len(fields) < 2 {
		return Revision{}, false
	}
	stamp := strings.TrimSuffix(fields[1], ";")
	if stamp == "" {
		return Revision{}, false
	}
	return Revision{ID: id, Stamp: stamp}, true
}

// Catalog lists the revisions in the record at path.
func Catalog(path string) ([]Revision, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, lherrors.NotFound("open record", path, err)
	}
	defer f.Close()
	return ParseRecord(f), nil
}

// Revisions lists the retained revisions of file, newest first.
func (h *History) Revisions(file string) ([]Revision, error) {
	h.mu.Lock()
	defer h.mu.Unlock()

	loc, err := h.Resolve(file, false)
	if err != nil {
		return nil, err
	}
	return Catalog(loc.Record)
}
