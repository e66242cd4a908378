package history

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	lherrors "localhist/internal/errors"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Written by rcs 5.10 after three check-ins.
const rcsRecord = `head	1.3;
access;
symbols;
locks; strict;
comment	@# @;


1.3
date	2026.10.15.09.12.44;	author ann;	state Exp;
branches;
next	1.2;

1.2
date	2026.10.14.17.03.10;	author ann;	state Exp;
branches;
next	1.1;

1.1
date	2026.10.13.08.00.00;	author ann;	state Exp;
branches;
next	;


desc
@@


1.3
log
@*** empty log message ***
@
text
@package main

1.9
date	1999.01.01.00.00.00;	author nobody;
@


1.2
log
@*** empty log message ***
@
text
@d3 1
@
`

func TestParseRecord(t *testing.T) {
	revs := ParseRecord(strings.NewReader(rcsRecord))

	assert.Equal(t, []Revision{
		{ID: 3, Stamp: "2026.10.15.09.12.44"},
		{ID: 2, Stamp: "2026.10.14.17.03.10"},
		{ID: 1, Stamp: "2026.10.13.08.00.00"},
	}, revs)
}

func TestParseRecord_Degenerate(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  []int
	}{
		{name: "empty", input: "", want: nil},
		{name: "no revisions", input: "head\t;\naccess;\nsymbols;\nlocks;\n\n\ndesc\n@@\n", want: nil},
		{
			name:  "date before any marker",
			input: "date\t2026.01.01.00.00.00;\n1.2\ndate\t2026.01.02.00.00.00;\n",
			want:  []int{2},
		},
		{
			name:  "bad marker",
			input: "1.x\ndate\t2026.01.01.00.00.00;\n2.1\ndate\t2026.01.01.00.00.00;\n1.1\ndate\t2026.01.01.00.00.00;\n",
			want:  []int{1},
		},
		{
			name:  "date without value",
			input: "1.4\ndate\t\n1.3\ndate\t2026.01.01.00.00.00;\n",
			want:  []int{3},
		},
		{
			name:  "stops at log",
			input: "1.2\ndate\t2026.01.02.00.00.00;\nlog\n1.1\ndate\t2026.01.01.00.00.00;\n",
			want:  []int{2},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var got []int
			for _, r := range ParseRecord(strings.NewReader(tt.input)) {
				got = append(got, r.ID)
			}
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestCatalog(t *testing.T) {
	path := filepath.Join(t.TempDir(), "main.go,v")
	require.NoError(t, os.WriteFile(path, []byte(rcsRecord), 0444))

	revs, err := Catalog(path)
	require.NoError(t, err)
	assert.Len(t, revs, 3)

	_, err = Catalog(path + ".missing")
	assert.True(t, lherrors.Is(err, lherrors.ErrorTypeNotFound))
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestRevision_TimeRejectsGarbledStamp(t *testing.T) {
	_, err := Revision{ID: 1, Stamp: "2026.13.45"}.Time()
	assert.True(t, lherrors.Is(err, lherrors.ErrorTypeParse))
	assert.Equal(t, "2026.13.45", Revision{ID: 1, Stamp: "2026.13.45"}.Label())
}

func TestRevision_Formatting(t *testing.T) {
	r := Revision{ID: 12, Stamp: "2026.10.15.09.12.44"}

	assert.Equal(t, "1.12", r.Token())
	assert.Equal(t, "2026/10/15 09:12:44", r.Label())
	got, err := r.Time()
	require.NoError(t, err)
	assert.Equal(t, time.Date(2026, 10, 15, 9, 12, 44, 0, time.UTC), got)

	odd := Revision{ID: 1, Stamp: "99.01.01.00.00.00"}
	assert.Equal(t, "99.01.01.00.00.00", odd.Label())
}
