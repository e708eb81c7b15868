package history

import (
	"errors"
	"fmt"
	"strings"
)

// Kind selects one of the owner-keyed history collections.
type Kind string

const (
	KindDevice Kind = "device"
	KindSensor Kind = "sensor"
)

// ErrUnknownKind is returned when a kind is neither device nor sensor.
var ErrUnknownKind = errors.New("unknown history kind")

// ParseKind returns the Kind named by s, ignoring case and surrounding space.
func ParseKind(s string) (Kind, error) {
	switch Kind(strings.ToLower(strings.TrimSpace(s))) {
	case KindDevice:
		return KindDevice, nil
	case KindSensor:
		return KindSensor, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnknownKind, s)
	}
}

// Valid reports whether k is a known kind.
func (k Kind) Valid() bool {
	return k == KindDevice || k == KindSensor
}

func (k Kind) String() string { return string(k) }
