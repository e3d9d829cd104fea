package docs

import (
	"path"
	"strings"
)

func segments(p string) []string {
	var out []string
	for _, s := range strings.Split(p, "/") {
		if s != "" {
			out = append(out, s)
		}
	}
	return out
}

// ToRelativePath expresses target relative to cwd, e.g. "./src" or
// "../sibling/dir". Both arguments are absolute slash paths.
func ToRelativePath(target, cwd string) string {
	t, f := segments(target), segments(cwd)
	common := 0
	for common < len(t) && common < len(f) && t[common] == f[common] {
		common++
	}
	ups := len(f) - common
	downs := strings.Join(t[common:], "/")
	if ups > 0 {
		up := strings.TrimSuffix(strings.Repeat("../", ups), "/")
		if downs == "" {
			return up
		}
		return up + "/" + downs
	}
	if downs != "" {
		return "./" + downs
	}
	return "."
}

// ToAbsolutePath resolves rel against cwd. Absolute inputs are returned as
// is.
func ToAbsolutePath(rel, cwd string) string {
	if strings.HasPrefix(rel, "/") {
		return rel
	}
	return path.Join("/", cwd, rel)
}

// DisplayPath shows abs relative to cwd when relative is set. Non-absolute
// inputs are returned unchanged.
func DisplayPath(abs, cwd string, relative bool) string {
	if !relative || !strings.HasPrefix(abs, "/") || cwd == "" {
		return abs
	}
	return ToRelativePath(abs, cwd)
}
