package fileset

import (
	"fmt"
	"path"
	"path/filepath"
	"strings"
)

// RepoPath is a repo-internal canonical path: slash-separated, relative
// to the repository root, with no leading "/" and no "." or ".."
// components (spec §4.8).  The empty RepoPath ("") names the repo root
// itself.
type RepoPath string

// NewRepoPath cleans an already slash-separated, root-relative path into
// canonical form.
func NewRepoPath(p string) RepoPath {
	p = strings.TrimPrefix(p, "/")
	if p == "" {
		return ""
	}
	c := path.Clean(p)
	if c == "." {
		return ""
	}
	return RepoPath(c)
}

func (p RepoPath) String() string { return string(p) }

// Components splits p into its '/'-separated parts; the root path has
// zero components.
func (p RepoPath) Components() []string {
	if p == "" {
		return nil
	}
	return strings.Split(string(p), "/")
}

// Converter is spec §4.8's "path converter": it maps between paths as a
// user types or sees them (workspace-relative, OS separators, relative
// to the directory the command was invoked from) and RepoPath (repo-root
// relative, always slash-separated).
type Converter struct {
	// root is the invocation cwd's own RepoPath, e.g. "" when invoked
	// from the repository root, "sub/dir" from a subdirectory.
	root RepoPath
}

// NewConverter builds a Converter for a workspace invoked from
// cwdRelativeToRoot (already root-relative and slash-separated).
func NewConverter(cwdRelativeToRoot string) Converter {
	return Converter{root: NewRepoPath(cwdRelativeToRoot)}
}

// ToRepoPath converts a display path (as typed by the user, or read off
// disk relative to the invocation directory) into a RepoPath. It rejects
// paths that climb above the repository root.
func (c Converter) ToRepoPath(display string) (RepoPath, error) {
	slash := filepath.ToSlash(display)
	joined := slash
	if !path.IsAbs(slash) {
		joined = path.Join(string(c.root), slash)
	} else {
		joined = strings.TrimPrefix(slash, "/")
	}
	cleaned := path.Clean(joined)
	if cleaned == ".." || strings.HasPrefix(cleaned, "../") {
		return "", fmt.Errorf("fileset: path %q escapes the repository root", display)
	}
	return NewRepoPath(cleaned), nil
}

// ToDisplayPath converts a RepoPath back into a path relative to the
// invocation directory, in the host's path separator.
func (c Converter) ToDisplayPath(p RepoPath) string {
	rel, err := filepath.Rel(filepath.FromSlash(string(c.root)), filepath.FromSlash(string(p)))
	if err != nil {
		return filepath.FromSlash(string(p))
	}
	return rel
}
