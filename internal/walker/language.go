// Package walker implements the File Walker & Language Detector (C3):
// deterministic, filtered file discovery over a project tree, grounded on
// the teacher's internal/scanner.Scanner and internal/gitignore.Matcher.
package walker

import "strings"

// languageByExtension maps file extensions (and a handful of exact
// filenames) to a language tag, following the teacher's scanner.languageMap
// but trimmed to the languages the extractor (C4) actually parses plus the
// common config/doc languages the chunker still needs to classify.
var languageByExtension = map[string]string{
	".go": "go",

	".js":  "javascript",
	".jsx": "javascript",
	".mjs": "javascript",
	".cjs": "javascript",
	".ts":  "typescript",
	".tsx": "typescript",

	".py":  "python",
	".pyw": "python",
	".pyi": "python",

	".rs": "rust",

	".java": "java",
	".kt":   "kotlin",
	".kts":  "kotlin",

	".c":   "c",
	".h":   "c",
	".cpp": "cpp",
	".hpp": "cpp",
	".cc":  "cpp",
	".cxx": "cpp",

	".cs": "csharp",

	".rb":   "ruby",
	".rake": "ruby",

	".php": "php",

	".json": "json",
	".yaml": "yaml",
	".yml":  "yaml",
	".toml": "toml",
	".xml":  "xml",

	".md":       "markdown",
	".mdx":      "markdown",
	".markdown": "markdown",
	".rst":      "rst",
	".txt":      "text",

	".sh":   "shell",
	".bash": "shell",
	".zsh":  "shell",

	"Dockerfile":  "dockerfile",
	"Makefile":    "makefile",
	"GNUmakefile": "makefile",
}

// codeLanguages is the set of languages the AST extractor can parse.
// Everything else is indexed as prose/config (docs-linker and chunker
// territory) rather than handed to the tree-sitter pipeline.
var codeLanguages = map[string]bool{
	"go":         true,
	"javascript": true,
	"typescript": true,
	"python":     true,
	"rust":       true,
	"java":       true,
	"kotlin":     true,
	"c":          true,
	"cpp":        true,
	"csharp":     true,
	"ruby":       true,
	"php":        true,
}

// DetectLanguage identifies the language of a path by exact filename first,
// then extension. Returns "" when nothing matches.
func DetectLanguage(path string) string {
	base := baseName(path)
	if lang, ok := languageByExtension[base]; ok {
		return lang
	}
	if lang, ok := languageByExtension[extension(path)]; ok {
		return lang
	}
	return ""
}

// IsCodeLanguage reports whether lang has AST-extractor support (§4.3/§4.4
// boundary: code files go through C4, everything else goes straight to
// the chunker as prose).
func IsCodeLanguage(lang string) bool {
	return codeLanguages[lang]
}

func baseName(path string) string {
	if i := strings.LastIndexAny(path, "/\\"); i >= 0 {
		return path[i+1:]
	}
	return path
}

func extension(path string) string {
	base := baseName(path)
	if i := strings.LastIndex(base, "."); i > 0 {
		return base[i:]
	}
	return ""
}
