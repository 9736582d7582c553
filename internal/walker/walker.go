package walker

import (
	"io/fs"
	"os"
	"path/filepath"
	"sort"

	"github.com/codegraph-dev/codegraph/internal/core"
)

// secretDenylist is the hard-coded set of patterns that are never indexed,
// independent of any project configuration (§4.3: "always active regardless
// of user config"). Grounded on the teacher's scanner.sensitiveFilePatterns,
// trimmed to the set the specification names explicitly plus the handful
// the teacher additionally hard-codes for the same class of file.
var secretDenylist = []string{
	"**/.env",
	"**/.env.*",
	"**/*.pem",
	"**/*.key",
	"**/*.p12",
	"**/.npmrc",
	"**/.aws/credentials",
	"**/.netrc",
	"**/.pypirc",
	"**/id_rsa",
	"**/id_ed25519",
}

// defaultExcludeDirs mirrors the teacher's build/cache/vcs directory
// denylist (§4.3: "build/cache/lockfile directories").
var defaultExcludeDirs = []string{
	"**/node_modules/**",
	"**/.git/**",
	"**/vendor/**",
	"**/__pycache__/**",
	"**/dist/**",
	"**/build/**",
	"**/target/**",
}

// defaultExcludeFiles mirrors the teacher's lockfile denylist.
var defaultExcludeFiles = []string{
	"**/package-lock.json",
	"**/yarn.lock",
	"**/pnpm-lock.yaml",
	"**/go.sum",
	"**/Cargo.lock",
}

// DefaultMaxFileSize bounds indexable file size, following the teacher's
// scanner.DefaultMaxFileSize.
const DefaultMaxFileSize = 10 * 1024 * 1024

// Options configures a walk. A nil/zero Options walks everything under
// RootDir except the hard-coded denylists.
type Options struct {
	RootDir         string
	IncludeGlobs    []string // empty = include everything not excluded
	ExcludeGlobs    []string // additional to the hard-coded lists
	MaxFileSize     int64    // 0 = DefaultMaxFileSize
	FollowSymlinks  bool
}

// Entry is a single discovered, indexable file.
type Entry struct {
	Path     string // slash-separated, relative to RootDir
	AbsPath  string
	Size     int64
	Language string
	IsCode   bool
}

// Walk recursively enumerates RootDir, applying include/exclude globs, the
// permanent secret denylist, and file-size bounds, then returns entries
// sorted deterministically by (path, size) (§4.3).
func Walk(opts Options) ([]Entry, error) {
	root := opts.RootDir
	if root == "" {
		root = "."
	}
	absRoot, err := filepath.Abs(root)
	if err != nil {
		return nil, core.Wrap(core.KindValidation, "resolve walk root", err)
	}
	info, err := os.Stat(absRoot)
	if err != nil {
		return nil, core.Wrap(core.KindNotFound, "stat walk root", err)
	}
	if !info.IsDir() {
		return nil, core.New(core.KindValidation, "walk root is not a directory")
	}

	maxSize := opts.MaxFileSize
	if maxSize <= 0 {
		maxSize = DefaultMaxFileSize
	}

	var entries []Entry
	walkErr := filepath.WalkDir(absRoot, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return nil
		}
		relPath, relErr := filepath.Rel(absRoot, path)
		if relErr != nil || relPath == "." {
			return nil
		}
		relPath = filepath.ToSlash(relPath)

		if d.IsDir() {
			if MatchAny(relPath, defaultExcludeDirs) || MatchAny(relPath, opts.ExcludeGlobs) {
				return filepath.SkipDir
			}
			return nil
		}

		if d.Type()&fs.ModeSymlink != 0 && !opts.FollowSymlinks {
			return nil
		}
		if MatchAny(relPath, secretDenylist) {
			return nil
		}
		if MatchAny(relPath, defaultExcludeFiles) || MatchAny(relPath, opts.ExcludeGlobs) {
			return nil
		}
		if len(opts.IncludeGlobs) > 0 && !MatchAny(relPath, opts.IncludeGlobs) {
			return nil
		}

		fi, infoErr := d.Info()
		if infoErr != nil {
			return nil
		}
		if fi.Size() > maxSize {
			return nil
		}
		if looksBinary(path) {
			return nil
		}

		lang := DetectLanguage(relPath)
		entries = append(entries, Entry{
			Path:     relPath,
			AbsPath:  path,
			Size:     fi.Size(),
			Language: lang,
			IsCode:   IsCodeLanguage(lang),
		})
		return nil
	})
	if walkErr != nil {
		return nil, core.Wrap(core.KindInternal, "walk project tree", walkErr)
	}

	sort.Slice(entries, func(i, j int) bool {
		if entries[i].Path != entries[j].Path {
			return entries[i].Path < entries[j].Path
		}
		return entries[i].Size < entries[j].Size
	})
	return entries, nil
}

// looksBinary sniffs the first 512 bytes for a NUL byte, the teacher's
// heuristic in scanner.isBinaryFile.
func looksBinary(path string) bool {
	f, err := os.Open(path)
	if err != nil {
		return false
	}
	defer func() { _ = f.Close() }()

	buf := make([]byte, 512)
	n, err := f.Read(buf)
	if err != nil && n == 0 {
		return false
	}
	for _, b := range buf[:n] {
		if b == 0 {
			return true
		}
	}
	return false
}
