package driver

import (
	"errors"
	"fmt"
	"strings"
)

// ErrNotReady matches every *NotReadyError with errors.Is.
var ErrNotReady = errors.New("robot driver not ready")

// NotReadyError is returned by state accessors before the required state has
// been received.
type NotReadyError struct {
	Role    string
	Op      string
	Missing []string
}

func (e *NotReadyError) Error() string {
	msg := fmt.Sprintf("%s %s: not ready", e.Role, e.Op)
	if len(e.Missing) > 0 {
		msg += " (missing " + strings.Join(e.Missing, ", ") + ")"
	}
	return msg
}

// Is reports whether target is ErrNotReady.
func (e *NotReadyError) Is(target error) bool {
	return target == ErrNotReady
}
