package workingcopy

import (
	"bufio"
	"os"
	"strings"

	"github.com/martinvonz/jjrepo/fileset"
)

// ignoreRule is one compiled .gitignore line, anchored at the directory
// that defined it (spec §4.9's snapshot walk is "constrained by ... a
// .gitignore stack").
type ignoreRule struct {
	matcher fileset.Matcher
	negate  bool
}

// ignoreStack accumulates ignoreRules level by level as the snapshot
// walk descends, the same per-directory accumulation a real .gitignore
// implementation uses: a path is ignored iff the *last* rule across
// every level that mentions it is a positive (non-negated) match,
// matching git's own "last match wins" semantics.
type ignoreStack struct {
	levels [][]ignoreRule
}

func newIgnoreStack() *ignoreStack { return &ignoreStack{} }

// push reads dir's own ".gitignore" (if present) and compiles it into a
// new level anchored at dirPath (root-relative, "" for the repo root).
func (s *ignoreStack) push(dir string, dirPath fileset.RepoPath) error {
	f, err := os.Open(dir + "/.gitignore")
	if err != nil {
		s.levels = append(s.levels, nil)
		return nil
	}
	defer f.Close()
	var rules []ignoreRule
	sc := bufio.NewScanner(f)
	for sc.Scan() {
		line := sc.Text()
		trimmed := strings.TrimRight(line, " \t")
		if trimmed == "" || strings.HasPrefix(trimmed, "#") {
			continue
		}
		negate := false
		if strings.HasPrefix(trimmed, "!") {
			negate = true
			trimmed = trimmed[1:]
		}
		trimmed = strings.TrimSuffix(trimmed, "/")
		anchored := trimmed
		if strings.Contains(trimmed, "/") {
			if dirPath != "" {
				anchored = string(dirPath) + "/" + trimmed
			}
		} else {
			prefix := "**/"
			if dirPath != "" {
				prefix = string(dirPath) + "/**/"
			}
			anchored = prefix + trimmed
		}
		rules = append(rules, ignoreRule{matcher: fileset.Glob(anchored), negate: negate})
	}
	s.levels = append(s.levels, rules)
	return sc.Err()
}

// pop removes the level most recently pushed, used as the walk returns
// out of a directory.
func (s *ignoreStack) pop() {
	if len(s.levels) > 0 {
		s.levels = s.levels[:len(s.levels)-1]
	}
}

// ignored reports whether p is excluded by the accumulated stack.
func (s *ignoreStack) ignored(p fileset.RepoPath) bool {
	ignored := false
	for _, level := range s.levels {
		for _, rule := range level {
			if rule.matcher.Match(p) == fileset.Matched {
				ignored = !rule.negate
			}
		}
	}
	return ignored
}
