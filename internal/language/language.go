// Package language maps file extensions and stored language hints to the
// canonical language tags used for storage, display and re-submission.
package language

import (
	"path"
	"strings"
)

// Canonical tags
const (
	JavaScript = "javascript"
	TypeScript = "typescript"
	Python     = "python"
	CLike      = "clike"
	Go         = "go"
	Rust       = "rust"
	Ruby       = "ruby"
	PHP        = "php"
	Swift      = "swift"
	Kotlin     = "kotlin"
	Markup     = "markup"
	CSS        = "css"
	JSON       = "json"
	YAML       = "yaml"
	Markdown   = "markdown"
	Bash       = "bash"
	SQL        = "sql"
	Docker     = "docker"
	Makefile   = "makefile"
	GraphQL    = "graphql"
	Plaintext  = "plaintext"
)

var extToTag = map[string]string{
	".js": JavaScript, ".jsx": JavaScript, ".mjs": JavaScript, ".cjs": JavaScript,
	".ts": TypeScript, ".tsx": TypeScript,
	".py":  Python,
	".cpp": CLike, ".c": CLike, ".h": CLike, ".hpp": CLike, ".ino": CLike, ".cs": CLike, ".java": CLike,
	".go":    Go,
	".rs":    Rust,
	".rb":    Ruby,
	".php":   PHP,
	".swift": Swift,
	".kt":    Kotlin, ".kts": Kotlin,
	".html": Markup, ".htm": Markup, ".xml": Markup, ".svg": Markup, ".vue": Markup, ".svelte": Markup,
	".css": CSS, ".scss": CSS, ".sass": CSS, ".less": CSS,
	".json": JSON,
	".yaml": YAML, ".yml": YAML, ".toml": YAML, ".ini": YAML,
	".md": Markdown, ".mdx": Markdown, ".txt": Markdown,
	".sh": Bash, ".bash": Bash, ".zsh": Bash,
	".sql":        SQL,
	".dockerfile": Docker,
	".graphql":    GraphQL, ".gql": GraphQL,
}

// aliases normalizes language hints written by models or older history
// entries to canonical tags.
var aliases = map[string]string{
	"js": JavaScript, "jsx": JavaScript, "node": JavaScript,
	"ts": TypeScript, "tsx": TypeScript,
	"py": Python, "python3": Python,
	"c": CLike, "cpp": CLike, "c++": CLike, "h": CLike, "csharp": CLike, "c#": CLike, "cs": CLike,
	"java": CLike, "arduino": CLike, "ino": CLike,
	"golang": Go,
	"rs":     Rust,
	"rb":     Ruby,
	"kt":     Kotlin,
	"html":   Markup, "xml": Markup, "svg": Markup, "vue": Markup, "svelte": Markup,
	"scss": CSS, "sass": CSS, "less": CSS,
	"yml": YAML, "toml": YAML, "ini": YAML,
	"md": Markdown, "mdx": Markdown, "text": Plaintext, "txt": Markdown,
	"sh": Bash, "shell": Bash, "zsh": Bash,
	"dockerfile": Docker,
	"make":       Makefile,
	"gql":        GraphQL,
	"unstyled":   Plaintext, "plain": Plaintext, "none": Plaintext,
}

// Classify maps an extension ("ts", ".TS") to a canonical tag. It is total:
// unknown extensions map to Plaintext.
func Classify(ext string) string {
	ext = strings.ToLower(strings.TrimSpace(ext))
	if ext == "" {
		return Plaintext
	}
	if !strings.HasPrefix(ext, ".") {
		ext = "." + ext
	}
	if tag, ok := extToTag[ext]; ok {
		return tag
	}
	return Plaintext
}

// ForPath classifies a file by its name, falling back to its extension.
func ForPath(p string) string {
	base := path.Base(strings.ReplaceAll(p, "\\", "/"))
	switch {
	case strings.HasSuffix(base, "Dockerfile"):
		return Docker
	case strings.HasSuffix(base, "Makefile"):
		return Makefile
	case strings.HasSuffix(base, "Jenkinsfile"):
		return Plaintext
	}
	return Classify(Ext(p))
}

// Ext returns the lower-cased extension including the dot, taken after the
// final "." anywhere in the path. Paths without a dot yield ".".
func Ext(p string) string {
	idx := strings.LastIndex(p, ".")
	if idx < 0 {
		return "."
	}
	return "." + strings.ToLower(p[idx+1:])
}

// Resolve picks the tag used to render a file. A stored tag takes
// precedence; otherwise the path decides.
func Resolve(stored, p string) string {
	stored = strings.ToLower(strings.TrimSpace(stored))
	if stored == "" {
		return ForPath(p)
	}
	if tag, ok := aliases[stored]; ok {
		return tag
	}
	return stored
}

// Known reports whether the tag is one of the canonical tags.
func Known(tag string) bool {
	switch tag {
	case Plaintext, Makefile:
		return true
	}
	for _, t := range extToTag {
		if t == tag {
			return true
		}
	}
	return false
}
