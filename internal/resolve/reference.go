package resolve

import (
	"bytes"
	"path"
	"regexp"
	"strings"
)

var referencePath = regexp.MustCompile(`^///\s*<reference\s+path\s*=\s*["']([^"']+)["']\s*/?>`)

// References returns the path references declared by content's triple-slash
// directives, in file order. Only the header is scanned: blank lines and
// comments up to the first line of code. Lines of any length are read.
// `types=` references name packages, not files, and are ignored.
func References(content []byte) []string {
	var refs []string
	inBlock := false

	for raw := range bytes.Lines(content) {
		line := strings.TrimSpace(string(raw))
		line = strings.TrimPrefix(line, "\ufeff")

		if inBlock {
			if i := strings.Index(line, "*/"); i >= 0 {
				inBlock = false
				line = strings.TrimSpace(line[i+2:])
			} else {
				continue
			}
		}

		switch {
		case line == "":
			continue
		case strings.HasPrefix(line, "///"):
			if m := referencePath.FindStringSubmatch(line); m != nil {
				refs = append(refs, m[1])
			}
		case strings.HasPrefix(line, "//"):
			continue
		case strings.HasPrefix(line, "/*"):
			if !strings.Contains(line[2:], "*/") {
				inBlock = true
			}
		default:
			return refs
		}
	}
	return refs
}

// resolveReference joins ref onto the directory of from. It reports false
// when the result would leave the repository root.
func resolveReference(from, ref string) (string, bool) {
	if ref == "" || strings.HasPrefix(ref, "/") {
		return "", false
	}
	p := path.Join(path.Dir(from), ref)
	if p == "." || p == ".." || strings.HasPrefix(p, "../") {
		return "", false
	}
	return p, true
}
