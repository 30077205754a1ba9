package interfaces

import (
	"fmt"
	"strings"
)

// DefaultNameSuffix is the domain every registered name must end with.
const DefaultNameSuffix = ".ccns"

// ValidateName checks that name is non-empty and ends with suffix.
// An empty suffix means DefaultNameSuffix. The suffix alone is not a name.
func ValidateName(name, suffix string) error {
	if suffix == "" {
		suffix = DefaultNameSuffix
	}
	if name == "" {
		return fmt.Errorf("%w: empty name", ErrInvalidName)
	}
	if len(name) <= len(suffix) || !strings.HasSuffix(name, suffix) {
		return fmt.Errorf("%w: %q must end with %s", ErrInvalidName, name, suffix)
	}
	return nil
}
