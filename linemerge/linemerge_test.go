package linemerge

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestMergeNoConflict(t *testing.T) {
	base := "a\nb\nc\n"
	a := "a\nb\nc\nd\n"
	b := "x\na\nb\nc\n"
	merged, conflicted, _ := Merge(base, a, b, Options{})
	require.False(t, conflicted)
	require.Equal(t, "x\na\nb\nc\nd\n", merged)
}

func TestMergeConflict(t *testing.T) {
	base := "line1\nline2\n"
	a := "line1\nchanged-by-a\n"
	b := "line1\nchanged-by-b\n"
	merged, conflicted, hunks := Merge(base, a, b, Options{LabelA: "left", LabelB: "right"})
	require.True(t, conflicted)
	require.Len(t, hunks, 1)
	require.Contains(t, merged, Sep1+" left")
	require.Contains(t, merged, Sep2)
	require.Contains(t, merged, Sep3+" right")
}

func TestParseRoundTrip(t *testing.T) {
	base := "line1\nline2\n"
	a := "line1\nchanged-by-a\n"
	b := "line1\nchanged-by-b\n"
	merged, conflicted, hunks := Merge(base, a, b, Options{})
	require.True(t, conflicted)

	plain, parsedHunks, err := Parse(merged)
	require.NoError(t, err)
	require.Equal(t, []string{"line1\n"}, plain)
	require.Len(t, parsedHunks, len(hunks))
	require.Equal(t, hunks[0].A, parsedHunks[0].A)
	require.Equal(t, hunks[0].B, parsedHunks[0].B)
}

func TestParseRejectsTruncated(t *testing.T) {
	_, _, err := Parse(Sep1 + "\nfoo\n")
	require.Error(t, err)
}
