package host

import (
	"errors"
	"fmt"
	"os/exec"
	"strings"
	"unicode"
)

// ErrInvalidBinaryName is returned by SanitizeBinaryName.
var ErrInvalidBinaryName = errors.New("invalid binary name")

// SanitizeBinaryName trims name and validates it as a bare executable name:
// letters, digits, '-', '_' and '.', at most 255 bytes, not starting with
// '.' or '-'.
func SanitizeBinaryName(name string) (string, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return "", fmt.Errorf("%w: cannot be empty", ErrInvalidBinaryName)
	}
	if len(name) > 255 {
		return "", fmt.Errorf("%w: too long", ErrInvalidBinaryName)
	}
	for _, r := range name {
		if unicode.IsLetter(r) || unicode.IsDigit(r) || r == '-' || r == '_' || r == '.' {
			continue
		}
		return "", fmt.Errorf("%w: contains invalid character %q", ErrInvalidBinaryName, r)
	}
	if name[0] == '.' || name[0] == '-' {
		return "", fmt.Errorf("%w: cannot start with '.' or '-'", ErrInvalidBinaryName)
	}
	return name, nil
}

// BinaryExists reports whether name resolves to an executable on PATH.
func BinaryExists(name string) (bool, error) {
	clean, err := SanitizeBinaryName(name)
	if err != nil {
		return false, err
	}
	_, err = exec.LookPath(clean)
	return err == nil, nil
}
