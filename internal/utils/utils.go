package utils

import (
	"path"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/google/uuid"
)

var projectNameInvalid = regexp.MustCompile(`[^a-z0-9_\-]`)

// ProjectName derives the directory name of a project from its description:
// spaces become underscores, everything is lowercased and characters that are
// unsafe in a path are dropped. An empty result falls back to a random id.
func ProjectName(description string) string {
	name := strings.ToLower(strings.ReplaceAll(strings.TrimSpace(description), " ", "_"))
	name = projectNameInvalid.ReplaceAllString(name, "")
	name = strings.Trim(name, "_-")
	if len(name) > 80 {
		name = strings.TrimRight(name[:80], "_-")
	}
	if name == "" {
		return "project_" + uuid.NewString()[:8]
	}
	return name
}

// SanitizeFilePath turns a model-supplied file name into a clean relative slash path.
// "." and ".." components and leading slashes are removed; the empty string means
// nothing usable was left.
func SanitizeFilePath(p string) string {
	p = strings.ReplaceAll(filepath.ToSlash(p), "\\", "/")

	parts := strings.Split(p, "/")
	kept := parts[:0]
	for _, part := range parts {
		part = strings.TrimSpace(part)
		if part == "" || part == "." || part == ".." {
			continue
		}
		kept = append(kept, part)
	}
	return path.Join(kept...)
}

// DetermineFileType provides a display type for a file based on its name.
func DetermineFileType(filename string) string {
	lowerFilename := strings.ToLower(filename)
	switch filepath.Ext(lowerFilename) {
	case ".html":
		return "HTML"
	case ".css":
		return "CSS"
	case ".js":
		return "JavaScript"
	case ".ts":
		return "TypeScript"
	case ".json":
		return "JSON"
	case ".md":
		return "Markdown"
	case ".txt":
		return "Text"
	case ".yaml", ".yml":
		return "YAML"
	case ".toml":
		return "TOML"
	case ".sh", ".bash":
		return "Shell"
	case ".ps1":
		return "PowerShell"
	case ".py":
		return "Python"
	case ".go":
		return "Go"
	case ".rb":
		return "Ruby"
	case ".java":
		return "Java"
	case ".rs":
		return "Rust"
	case ".sql":
		return "SQL"
	case ".tf":
		return "Terraform"
	default:
		base := filepath.Base(lowerFilename)
		if strings.Contains(base, "dockerfile") {
			return "Dockerfile"
		}
		if base == "makefile" {
			return "Makefile"
		}
		return "Unknown"
	}
}
