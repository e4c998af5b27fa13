package content

import (
	"path/filepath"
	"strings"
)

// Resolve joins relative onto root and returns the cleaned absolute path. The
// result is either root itself or a descendant of it; anything else is a
// PathTraversal. Only the empty string resolves to root: whitespace is part of
// the name.
func Resolve(root, relative string) (string, error) {
	if strings.ContainsRune(relative, 0) {
		return "", newError(KindPathTraversal, "resolve", relative, "path contains NUL byte")
	}

	base := filepath.Clean(root)
	if relative == "" {
		return base, nil
	}

	target := filepath.Join(base, filepath.FromSlash(relative))
	if !within(base, target) {
		return "", newError(KindPathTraversal, "resolve", relative, "path escapes root")
	}
	return target, nil
}

// within reports whether target equals root or sits under it on a segment
// boundary, so /posts/foobar is not inside /posts/foo.
func within(root, target string) bool {
	if target == root {
		return true
	}
	prefix := root
	if !strings.HasSuffix(prefix, string(filepath.Separator)) {
		prefix += string(filepath.Separator)
	}
	return strings.HasPrefix(target, prefix)
}

// AssertSimpleName rejects names that could smuggle a path: separators of
// either flavour, any ".." sequence, NUL bytes, and the empty or "." name.
func AssertSimpleName(name string) error {
	switch {
	case strings.TrimSpace(name) == "":
		return newError(KindInvalidName, "name", name, "name is required")
	case name == ".":
		return newError(KindInvalidName, "name", name, "name must not be \".\"")
	case strings.ContainsAny(name, `/\`):
		return newError(KindInvalidName, "name", name, "name must not contain path separators")
	case strings.Contains(name, ".."):
		return newError(KindInvalidName, "name", name, "name must not contain \"..\"")
	case strings.ContainsRune(name, 0):
		return newError(KindInvalidName, "name", name, "name contains NUL byte")
	}
	return nil
}

// SanitizeFileName keeps only the base name of a caller-supplied upload file
// name. Browsers on some platforms send full client paths.
func SanitizeFileName(name string) (string, error) {
	if strings.ContainsRune(name, 0) {
		return "", newError(KindInvalidName, "sanitize", name, "file name contains NUL byte")
	}
	normalized := strings.ReplaceAll(strings.TrimSpace(name), `\`, "/")
	if idx := strings.LastIndex(normalized, "/"); idx >= 0 {
		normalized = normalized[idx+1:]
	}
	normalized = strings.TrimSpace(normalized)
	if normalized == "" || normalized == "." || normalized == ".." {
		return "", newError(KindInvalidName, "sanitize", name, "file name is empty after sanitizing")
	}
	return normalized, nil
}

// relativeTo renders abs as a slash-separated path relative to root; root
// itself renders as "".
func relativeTo(root, abs string) string {
	rel, err := filepath.Rel(root, abs)
	if err != nil || rel == "." {
		return ""
	}
	return filepath.ToSlash(rel)
}
