package session

import (
	"errors"
	"fmt"
	"strings"
)

// maxNameLen bounds session names, which become directory names.
const maxNameLen = 64

// ErrInvalidName is wrapped by every ValidateName failure.
var ErrInvalidName = errors.New("invalid session name")

// ValidateName checks that name is usable as a session directory and on
// the command line: lowercase letters, digits, '-' and '_', not starting
// with '-'.
func ValidateName(name string) error {
	switch {
	case name == "":
		return fmt.Errorf("%w: empty", ErrInvalidName)
	case len(name) > maxNameLen:
		return fmt.Errorf("%w %q: longer than %d characters", ErrInvalidName, name, maxNameLen)
	case strings.HasPrefix(name, "-"):
		return fmt.Errorf("%w %q: must not start with '-'", ErrInvalidName, name)
	}
	for i, r := range name {
		if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') || r == '-' || r == '_' {
			continue
		}
		return fmt.Errorf("%w %q: character %q at %d (use a-z, 0-9, '-' or '_')", ErrInvalidName, name, r, i)
	}
	return nil
}
