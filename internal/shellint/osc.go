package shellint

import (
	"net/url"
	"regexp"
	"strconv"
	"strings"
)

// OSC codes handled by the decoder.
const (
	OscCwd              = 7
	OscShellIntegration = 133
)

// mark is one decoded OSC 133 payload.
type mark struct {
	code     byte // 'A', 'B', 'C' or 'D'
	exitCode int
}

// parseMark decodes "A", "B", "C" or "D[;code]". Additional ";key=value"
// parameters are ignored. An unparsable exit code reads as 0.
func parseMark(payload string) (mark, bool) {
	if payload == "" {
		return mark{}, false
	}
	head, rest, _ := strings.Cut(payload, ";")
	if len(head) != 1 {
		return mark{}, false
	}
	switch c := head[0]; c {
	case 'A', 'B', 'C':
		return mark{code: c}, true
	case 'D':
		codeStr, _, _ := strings.Cut(rest, ";")
		n, err := strconv.Atoi(strings.TrimSpace(codeStr))
		if err != nil {
			n = 0
		}
		return mark{code: c, exitCode: n}, true
	}
	return mark{}, false
}

var fileURLHost = regexp.MustCompile(`^file://[^/]*`)

// parseCwd extracts the path from an OSC 7 "file://<host><path>" payload.
// Percent-encoded paths are decoded when the encoding is valid.
func parseCwd(payload string) string {
	path := fileURLHost.ReplaceAllString(payload, "")
	if strings.Contains(path, "%") {
		if dec, err := url.PathUnescape(path); err == nil {
			path = dec
		}
	}
	return path
}
