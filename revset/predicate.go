package revset

import (
	"context"
	"path"
	"regexp"
	"strings"

	"github.com/martinvonz/jjrepo/fileset"
	"github.com/martinvonz/jjrepo/object"
	"github.com/martinvonz/jjrepo/store"
)

// Predicate tests one commit, given the object store it was read from
// (needed for file-path predicates, which must walk the commit's tree).
// Filter lowers a parsed filter call to one of these.
type Predicate struct {
	Name string
	Test func(ctx context.Context, backend store.Backend, c *object.Commit) (bool, error)
}

func descriptionContains(pattern string) Predicate {
	return Predicate{Name: "description", Test: func(_ context.Context, _ store.Backend, c *object.Commit) (bool, error) {
		return strings.Contains(c.Description, pattern), nil
	}}
}

func descriptionMatches(re *regexp.Regexp) Predicate {
	return Predicate{Name: "description", Test: func(_ context.Context, _ store.Backend, c *object.Commit) (bool, error) {
		return re.MatchString(c.Description), nil
	}}
}

func authorContains(pattern string) Predicate {
	return Predicate{Name: "author", Test: func(_ context.Context, _ store.Backend, c *object.Commit) (bool, error) {
		return strings.Contains(c.Author.Name, pattern) || strings.Contains(c.Author.Email, pattern), nil
	}}
}

func committerContains(pattern string) Predicate {
	return Predicate{Name: "committer", Test: func(_ context.Context, _ store.Backend, c *object.Commit) (bool, error) {
		return strings.Contains(c.Committer.Name, pattern) || strings.Contains(c.Committer.Email, pattern), nil
	}}
}

func hasConflict() Predicate {
	return Predicate{Name: "conflict", Test: func(_ context.Context, _ store.Backend, c *object.Commit) (bool, error) {
		return c.RootIsConflict, nil
	}}
}

func isSigned() Predicate {
	return Predicate{Name: "signed", Test: func(_ context.Context, _ store.Backend, c *object.Commit) (bool, error) {
		return len(c.SecureSig) > 0, nil
	}}
}

// fileMatches is filter(file(...)): true if any path in the commit's
// tree is Matched by matcher (spec §4.7's file-path predicates, backed
// by the fileset engine from spec §4.8). A subtree is only descended
// into when matcher reports Matched or Candidate for its path, so a
// matcher anchored under one directory skips the rest of the tree
// entirely rather than walking it.
func fileMatches(matcher fileset.Matcher) Predicate {
	return Predicate{Name: "file", Test: func(ctx context.Context, backend store.Backend, c *object.Commit) (bool, error) {
		if c.RootIsConflict {
			return false, nil
		}
		tr, err := backend.ReadTree(ctx, c.RootTree)
		if err != nil {
			return false, err
		}
		return treeHasMatch(ctx, backend, tr, "", matcher)
	}}
}

func treeHasMatch(ctx context.Context, backend store.Backend, tr *object.Tree, prefix string, matcher fileset.Matcher) (bool, error) {
	for _, e := range tr.Entries {
		p := path.Join(prefix, e.Name)
		r := matcher.Match(fileset.NewRepoPath(p))
		if r == fileset.NoMatch {
			continue
		}
		if e.Kind == object.TreeEntryKind {
			sub, err := backend.ReadTree(ctx, e.Id)
			if err != nil {
				return false, err
			}
			ok, err := treeHasMatch(ctx, backend, sub, p, matcher)
			if err != nil || ok {
				return ok, err
			}
			continue
		}
		if r == fileset.Matched {
			return true, nil
		}
	}
	return false, nil
}
