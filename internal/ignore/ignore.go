// Package ignore reads gitignore-style exclusion files for the knowledge
// base source tree.
//
// Supported syntax is the common subset: blank lines and # comments are
// skipped, a trailing slash matches directories only, a pattern without a
// slash matches a name at any depth, and ** spans directories. Negation
// (!pattern) is not supported and such lines are ignored.
package ignore

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"path"
	"path/filepath"
	"strings"
)

// FileName is the devforge-specific ignore file.
const FileName = ".devforgeignore"

// DefaultFiles are the ignore files read from a source root, in order.
var DefaultFiles = []string{FileName, ".gitignore"}

type pattern struct {
	segs     []string
	dirOnly  bool
	anchored bool
}

// Rules is a parsed set of exclusion patterns. A nil *Rules matches nothing.
type Rules struct {
	patterns []pattern
}

// Load reads the named ignore files from root. Missing files are skipped.
func Load(root string, names ...string) (*Rules, error) {
	r := &Rules{}
	for _, name := range names {
		f, err := os.Open(filepath.Join(root, name))
		if err != nil {
			if os.IsNotExist(err) {
				continue
			}
			return nil, err
		}
		lines, err := Parse(f)
		f.Close()
		if err != nil {
			return nil, fmt.Errorf("parsing %s: %w", name, err)
		}
		r.Add(lines...)
	}
	return r, nil
}

// Parse returns the patterns in r with comments, blanks and negations removed.
func Parse(r io.Reader) ([]string, error) {
	var out []string
	seen := make(map[string]bool)
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		line := parseLine(scanner.Text())
		if line == "" || seen[line] {
			continue
		}
		seen[line] = true
		out = append(out, line)
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

func parseLine(line string) string {
	line = strings.TrimRight(line, " \t")
	if line == "" || strings.HasPrefix(line, "#") || strings.HasPrefix(line, "!") {
		return ""
	}
	return line
}

// Add appends patterns in gitignore syntax.
func (r *Rules) Add(lines ...string) {
	for _, line := range lines {
		if line = parseLine(line); line == "" {
			continue
		}
		p := pattern{}
		if strings.HasSuffix(line, "/") {
			p.dirOnly = true
			line = strings.TrimRight(line, "/")
		}
		p.anchored = strings.Contains(line, "/")
		line = strings.TrimPrefix(line, "/")
		if line == "" {
			continue
		}
		p.segs = strings.Split(line, "/")
		r.patterns = append(r.patterns, p)
	}
}

// Len returns the number of patterns.
func (r *Rules) Len() int {
	if r == nil {
		return 0
	}
	return len(r.patterns)
}

// Match reports whether rel, a slash- or OS-separated path relative to the
// root, is excluded. A path is also excluded when one of its parent
// directories is.
func (r *Rules) Match(rel string, isDir bool) bool {
	if r.Len() == 0 {
		return false
	}
	rel = path.Clean(filepath.ToSlash(rel))
	if rel == "." || rel == "" {
		return false
	}
	segs := strings.Split(rel, "/")
	for i := 1; i <= len(segs); i++ {
		dir := i < len(segs) || isDir
		for _, p := range r.patterns {
			if p.dirOnly && !dir {
				continue
			}
			if p.matches(segs[:i]) {
				return true
			}
		}
	}
	return false
}

func (p pattern) matches(segs []string) bool {
	if !p.anchored {
		ok, _ := path.Match(p.segs[0], segs[len(segs)-1])
		return ok
	}
	return matchSegments(p.segs, segs)
}

func matchSegments(pat, segs []string) bool {
	for len(pat) > 0 {
		if pat[0] == "**" {
			rest := pat[1:]
			for i := 0; i <= len(segs); i++ {
				if matchSegments(rest, segs[i:]) {
					return true
				}
			}
			return false
		}
		if len(segs) == 0 {
			return false
		}
		if ok, _ := path.Match(pat[0], segs[0]); !ok {
			return false
		}
		pat, segs = pat[1:], segs[1:]
	}
	return len(segs) == 0
}
