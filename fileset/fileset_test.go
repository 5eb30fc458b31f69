package fileset_test

import (
	"testing"

	"github.com/martinvonz/jjrepo/fileset"
	"github.com/stretchr/testify/require"
)

func compile(t *testing.T, src string, cwd string) fileset.Matcher {
	t.Helper()
	m, err := fileset.ParseAndCompile(src, fileset.NewConverter(cwd))
	require.NoError(t, err)
	return m
}

func TestAllMatchesEverything(t *testing.T) {
	m := compile(t, "all()", "")
	require.Equal(t, fileset.Matched, m.Match(fileset.NewRepoPath("a/b/c.go")))
	require.Equal(t, fileset.Matched, m.Match(fileset.NewRepoPath("")))
}

func TestNoneMatchesNothing(t *testing.T) {
	m := compile(t, "none()", "")
	require.Equal(t, fileset.NoMatch, m.Match(fileset.NewRepoPath("a/b/c.go")))
}

func TestBarePrefixSelector(t *testing.T) {
	m := compile(t, "src/pkg", "")
	require.Equal(t, fileset.Matched, m.Match(fileset.NewRepoPath("src/pkg")))
	require.Equal(t, fileset.Matched, m.Match(fileset.NewRepoPath("src/pkg/a.go")))
	require.Equal(t, fileset.Candidate, m.Match(fileset.NewRepoPath("src")))
	require.Equal(t, fileset.NoMatch, m.Match(fileset.NewRepoPath("other/pkg")))
}

func TestGlobFunctionMatchesExtension(t *testing.T) {
	m := compile(t, `glob("*.go")`, "")
	require.Equal(t, fileset.Matched, m.Match(fileset.NewRepoPath("main.go")))
	require.Equal(t, fileset.NoMatch, m.Match(fileset.NewRepoPath("main.rs")))
	// "*" does not cross a directory boundary.
	require.Equal(t, fileset.NoMatch, m.Match(fileset.NewRepoPath("sub/main.go")))
}

func TestGlobDoubleStarCrossesDirectories(t *testing.T) {
	m := compile(t, `glob("**/*.go")`, "")
	require.Equal(t, fileset.Matched, m.Match(fileset.NewRepoPath("main.go")))
	require.Equal(t, fileset.Matched, m.Match(fileset.NewRepoPath("a/b/c.go")))
	require.Equal(t, fileset.Candidate, m.Match(fileset.NewRepoPath("a/b")))
}

func TestUnionOfTwoPrefixes(t *testing.T) {
	m := compile(t, `file("a", "b")`, "")
	require.Equal(t, fileset.Matched, m.Match(fileset.NewRepoPath("a/x")))
	require.Equal(t, fileset.Matched, m.Match(fileset.NewRepoPath("b/y")))
	require.Equal(t, fileset.NoMatch, m.Match(fileset.NewRepoPath("c/z")))
}

func TestIntersectionRequiresBoth(t *testing.T) {
	m := compile(t, `"a" & glob("**/*.go")`, "")
	require.Equal(t, fileset.Matched, m.Match(fileset.NewRepoPath("a/x.go")))
	require.Equal(t, fileset.NoMatch, m.Match(fileset.NewRepoPath("b/x.go")))
}

func TestDifferenceExcludesMatches(t *testing.T) {
	m := compile(t, `"a" ~ file("a/skip")`, "")
	require.Equal(t, fileset.Matched, m.Match(fileset.NewRepoPath("a/keep")))
	require.Equal(t, fileset.NoMatch, m.Match(fileset.NewRepoPath("a/skip")))
	require.Equal(t, fileset.NoMatch, m.Match(fileset.NewRepoPath("a/skip/nested")))
}

func TestNegationIsComplement(t *testing.T) {
	m := compile(t, `~file("a")`, "")
	require.Equal(t, fileset.NoMatch, m.Match(fileset.NewRepoPath("a/x")))
	require.Equal(t, fileset.Matched, m.Match(fileset.NewRepoPath("b/x")))
}

func TestConverterJoinsCwd(t *testing.T) {
	conv := fileset.NewConverter("sub/dir")
	rp, err := conv.ToRepoPath("file.go")
	require.NoError(t, err)
	require.Equal(t, fileset.RepoPath("sub/dir/file.go"), rp)
}

func TestConverterRejectsEscapingPath(t *testing.T) {
	conv := fileset.NewConverter("sub")
	_, err := conv.ToRepoPath("../../etc/passwd")
	require.Error(t, err)
}

func TestParseErrorOnUnmatchedParen(t *testing.T) {
	_, err := fileset.Parse("file(a")
	require.Error(t, err)
	var parseErr *fileset.ParseError
	require.ErrorAs(t, err, &parseErr)
}

func TestCompileErrorOnUnknownFunction(t *testing.T) {
	_, err := fileset.ParseAndCompile("bogus(a)", fileset.NewConverter(""))
	require.Error(t, err)
	var compileErr *fileset.CompileError
	require.ErrorAs(t, err, &compileErr)
}
