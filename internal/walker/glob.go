package walker

import (
	"path/filepath"
	"regexp"
	"strings"
	"sync"
)

// globToRegex compiles a gitignore-style glob (`**`, `*`, `?`, character
// classes) to an anchored regexp, following the teacher's
// gitignore.patternToRegex byte-by-byte translation.
func globToRegex(pattern string) *regexp.Regexp {
	var b strings.Builder
	i := 0
	for i < len(pattern) {
		c := pattern[i]
		switch c {
		case '*':
			if i+1 < len(pattern) && pattern[i+1] == '*' {
				if i+2 < len(pattern) && pattern[i+2] == '/' {
					b.WriteString("(?:.*/)?")
					i += 3
					continue
				}
				b.WriteString(".*")
				i += 2
				continue
			}
			b.WriteString("[^/]*")
			i++
		case '?':
			b.WriteString("[^/]")
			i++
		case '[':
			j := i + 1
			for j < len(pattern) && pattern[j] != ']' {
				j++
			}
			if j < len(pattern) {
				b.WriteString(pattern[i : j+1])
				i = j + 1
			} else {
				b.WriteString(regexp.QuoteMeta(string(c)))
				i++
			}
		case '.', '+', '^', '$', '(', ')', '{', '}', '|', '\\':
			b.WriteString(regexp.QuoteMeta(string(c)))
			i++
		default:
			b.WriteRune(rune(c))
			i++
		}
	}
	return regexp.MustCompile("^" + b.String() + "$")
}

var globCache sync.Map // string -> *regexp.Regexp

func compiledGlob(pattern string) *regexp.Regexp {
	if re, ok := globCache.Load(pattern); ok {
		return re.(*regexp.Regexp)
	}
	re := globToRegex(pattern)
	globCache.Store(pattern, re)
	return re
}

// MatchGlob reports whether relPath (slash-separated) matches pattern.
// It checks the full path, the path's basename, and every path segment so
// a bare pattern like "*.pem" matches regardless of directory depth, the
// same permissiveness the teacher's matchFilePattern gives secret globs.
func MatchGlob(relPath, pattern string) bool {
	relPath = filepath.ToSlash(relPath)
	re := compiledGlob(pattern)
	if re.MatchString(relPath) {
		return true
	}
	base := relPath
	if idx := strings.LastIndex(relPath, "/"); idx >= 0 {
		base = relPath[idx+1:]
	}
	if re.MatchString(base) {
		return true
	}
	for _, part := range strings.Split(relPath, "/") {
		if re.MatchString(part) {
			return true
		}
	}
	return false
}

// MatchAny reports whether relPath matches any of patterns.
func MatchAny(relPath string, patterns []string) bool {
	for _, p := range patterns {
		if MatchGlob(relPath, p) {
			return true
		}
	}
	return false
}
