package revset

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/martinvonz/jjrepo/fileset"
	"github.com/martinvonz/jjrepo/index"
	"github.com/martinvonz/jjrepo/objecthash"
	"github.com/martinvonz/jjrepo/view"
)

// Resolver carries the state symbol resolution needs (spec §4.7 step 2):
// the current view (for bookmarks/tags/remotes/wc-commits), the index
// (for id and change-id prefix lookup), the default workspace a bare
// "@" refers to, and any registered revset aliases.
type Resolver struct {
	View      *view.View
	Index     *index.Index
	RootId    objecthash.Hash
	Workspace view.WorkspaceId
	Aliases   map[string]string

	resolving map[string]bool
}

// NewResolver builds a Resolver for the given view and index, scoped to
// workspace (the one "@" names), rooted at rootId (the synthetic root
// commit, what root() resolves to).
func NewResolver(v *view.View, idx *index.Index, rootId objecthash.Hash, workspace view.WorkspaceId) *Resolver {
	return &Resolver{View: v, Index: idx, RootId: rootId, Workspace: workspace, Aliases: map[string]string{}}
}

// Resolve implements spec §4.7 steps 2+4 together for built-in nodes:
// symbols resolve against the view/index and functions lower directly to
// their BackendExpr, since none of the built-ins need a separate
// optimizer-visible intermediate form beyond what Optimize (optimize.go)
// already rewrites post-hoc.
func (r *Resolver) Resolve(e Expr) (BackendExpr, error) {
	switch n := e.(type) {
	case Symbol:
		return r.resolveSymbol(n.Name)
	case At:
		id, ok := r.View.WcCommitIds[r.Workspace]
		if !ok {
			return nil, NoSuchRevision("@")
		}
		return Commits{Ids: []objecthash.Hash{id}}, nil
	case WorkspaceAt:
		id, ok := r.View.WcCommitIds[view.WorkspaceId(n.Workspace)]
		if !ok {
			return nil, NoSuchRevision(n.Workspace + "@")
		}
		return Commits{Ids: []objecthash.Hash{id}}, nil
	case RemoteSymbol:
		refs, ok := r.View.RemoteViews[n.Remote]
		if !ok {
			return nil, NoSuchRevision(n.Name + "@" + n.Remote)
		}
		target, ok := refs[n.Name]
		if !ok {
			return nil, NoSuchRevision(n.Name + "@" + n.Remote)
		}
		return Commits{Ids: target.Target.Adds()}, nil
	case StringArg:
		return r.resolveSymbol(n.Value)
	case FuncCall:
		return r.resolveFunc(n)
	case RangeExpr:
		from, err := r.resolveMaybe(n.From, emptySet())
		if err != nil {
			return nil, err
		}
		to, err := r.resolveMaybe(n.To, All{})
		if err != nil {
			return nil, err
		}
		return Range{From: from, To: to}, nil
	case DagRangeExpr:
		from, err := r.resolveMaybe(n.From, All{})
		if err != nil {
			return nil, err
		}
		to, err := r.resolveMaybe(n.To, All{})
		if err != nil {
			return nil, err
		}
		return DagRange{From: from, To: to}, nil
	case IntersectExpr:
		a, err := r.Resolve(n.A)
		if err != nil {
			return nil, err
		}
		b, err := r.Resolve(n.B)
		if err != nil {
			return nil, err
		}
		return Intersection{A: a, B: b}, nil
	case UnionExpr:
		a, err := r.Resolve(n.A)
		if err != nil {
			return nil, err
		}
		b, err := r.Resolve(n.B)
		if err != nil {
			return nil, err
		}
		return Union{A: a, B: b}, nil
	case DiffExpr:
		a, err := r.Resolve(n.A)
		if err != nil {
			return nil, err
		}
		b, err := r.Resolve(n.B)
		if err != nil {
			return nil, err
		}
		return Difference{A: a, B: b}, nil
	case Negation:
		x, err := r.Resolve(n.X)
		if err != nil {
			return nil, err
		}
		return Difference{A: All{}, B: x}, nil
	case Extension:
		return n.Resolve(r)
	default:
		return nil, fmt.Errorf("revset: unresolvable expression node %T", e)
	}
}

func (r *Resolver) resolveMaybe(e Expr, dflt BackendExpr) (BackendExpr, error) {
	if e == nil {
		return dflt, nil
	}
	return r.Resolve(e)
}

func (r *Resolver) resolveSymbol(name string) (BackendExpr, error) {
	if bm, ok := r.View.LocalBookmarks[name]; ok && !bm.IsAbsent() {
		return Commits{Ids: bm.Adds()}, nil
	}
	if tag, ok := r.View.Tags[name]; ok && !tag.IsAbsent() {
		return Commits{Ids: tag.Adds()}, nil
	}
	if body, ok := r.Aliases[name]; ok {
		return r.resolveAlias(name, body)
	}
	if objecthash.Valid(name) {
		id, err := objecthash.Parse(name)
		if err == nil {
			return Commits{Ids: []objecthash.Hash{id}}, nil
		}
	}
	if res, id := r.Index.ResolvePrefix(name); res == index.SingleMatch {
		return Commits{Ids: []objecthash.Hash{id}}, nil
	} else if res == index.AmbiguousMatch {
		return nil, AmbiguousIdPrefix(name)
	}
	if res, ids := r.Index.ResolveChangeIdPrefix(name); res == index.SingleMatch {
		return Commits{Ids: ids}, nil
	} else if res == index.AmbiguousMatch {
		return nil, AmbiguousIdPrefix(name)
	}
	return nil, NoSuchRevision(name)
}

func (r *Resolver) resolveAlias(name, body string) (BackendExpr, error) {
	if r.resolving == nil {
		r.resolving = map[string]bool{}
	}
	if r.resolving[name] {
		return nil, &ResolutionError{Symbol: name, Msg: "alias expands to itself"}
	}
	r.resolving[name] = true
	defer delete(r.resolving, name)

	expr, err := Parse(body)
	if err != nil {
		return nil, &ResolutionError{Symbol: name, Msg: "alias body: " + err.Error()}
	}
	return r.Resolve(expr)
}

func (r *Resolver) resolveFunc(n FuncCall) (BackendExpr, error) {
	switch n.Name {
	case "all":
		return All{}, nil
	case "none":
		return Difference{A: All{}, B: All{}}, nil
	case "root":
		return Commits{Ids: []objecthash.Hash{r.RootId}}, nil
	case "ancestors":
		if len(n.Args) < 1 || len(n.Args) > 2 {
			return nil, fmt.Errorf("ancestors() takes 1 or 2 arguments")
		}
		x, err := r.Resolve(n.Args[0])
		if err != nil {
			return nil, err
		}
		a := Ancestors{X: x}
		if len(n.Args) == 2 {
			depth, err := intArg(n.Args[1])
			if err != nil {
				return nil, err
			}
			a.Depth = &depth
		}
		return a, nil
	case "descendants":
		if len(n.Args) != 1 {
			return nil, fmt.Errorf("descendants() takes exactly 1 argument")
		}
		x, err := r.Resolve(n.Args[0])
		if err != nil {
			return nil, err
		}
		return Descendants{X: x}, nil
	case "heads":
		if len(n.Args) != 1 {
			return nil, fmt.Errorf("heads() takes exactly 1 argument")
		}
		x, err := r.Resolve(n.Args[0])
		if err != nil {
			return nil, err
		}
		return Heads{X: x}, nil
	case "roots":
		if len(n.Args) != 1 {
			return nil, fmt.Errorf("roots() takes exactly 1 argument")
		}
		x, err := r.Resolve(n.Args[0])
		if err != nil {
			return nil, err
		}
		return Roots{X: x}, nil
	case "description":
		return r.resolveFilterArg(n, descriptionContains, descriptionMatches)
	case "author":
		return r.resolveFilterArg(n, authorContains, nil)
	case "committer":
		return r.resolveFilterArg(n, committerContains, nil)
	case "conflicts":
		return Filter{X: All{}, Predicate: hasConflict()}, nil
	case "signed":
		return Filter{X: All{}, Predicate: isSigned()}, nil
	case "file":
		if len(n.Args) == 0 {
			return nil, fmt.Errorf("file() requires at least one path argument")
		}
		matcher, err := r.fileMatcher(n.Args)
		if err != nil {
			return nil, err
		}
		return Filter{X: All{}, Predicate: fileMatches(matcher)}, nil
	default:
		return nil, fmt.Errorf("unknown function %q", n.Name)
	}
}

func (r *Resolver) resolveFilterArg(n FuncCall, substr func(string) Predicate, reGen func(*regexp.Regexp) Predicate) (BackendExpr, error) {
	if len(n.Args) != 1 {
		return nil, fmt.Errorf("%s() takes exactly 1 argument", n.Name)
	}
	pattern, err := patternArg(n.Args[0])
	if err != nil {
		return nil, err
	}
	if strings.HasPrefix(pattern, "regex:") && reGen != nil {
		re, err := regexp.Compile(strings.TrimPrefix(pattern, "regex:"))
		if err != nil {
			return nil, fmt.Errorf("%s(): %w", n.Name, err)
		}
		return Filter{X: All{}, Predicate: reGen(re)}, nil
	}
	return Filter{X: All{}, Predicate: substr(pattern)}, nil
}

func patternArg(e Expr) (string, error) {
	switch n := e.(type) {
	case StringArg:
		return n.Value, nil
	case Symbol:
		return n.Name, nil
	default:
		return "", fmt.Errorf("expected a string pattern, got %T", e)
	}
}

func intArg(e Expr) (int, error) {
	s, err := patternArg(e)
	if err != nil {
		return 0, err
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		return 0, fmt.Errorf("expected an integer, got %q", s)
	}
	return n, nil
}

// fileMatcher compiles file()'s arguments into a fileset.Matcher, one
// per argument unioned together, rooted at the repository root since
// revsets have no notion of an invocation-directory cwd the way fileset
// expressions typed at a workspace do.
func (r *Resolver) fileMatcher(args []Expr) (fileset.Matcher, error) {
	conv := fileset.NewConverter("")
	ms := make([]fileset.Matcher, 0, len(args))
	for _, a := range args {
		pattern, err := patternArg(a)
		if err != nil {
			return nil, err
		}
		m, err := fileset.ParseAndCompile(pattern, conv)
		if err != nil {
			return nil, fmt.Errorf("file(): %w", err)
		}
		ms = append(ms, m)
	}
	return fileset.Union(ms...), nil
}
