// Package topology derives a neighbour relation from an ordered list of
// device IDs.
//
// Build is a pure function: it never looks at registry state and returns the
// same Adjacency for the same ordered input and Kind.
package topology

import (
	"fmt"
	"strings"
)

// Kind selects the rule used to connect devices.
type Kind uint8

// Supported topology kinds.
const (
	// Line connects each device to the ones registered immediately before and after it.
	Line Kind = iota + 1

	// Ring is a Line whose first and last devices are also connected.
	Ring

	// FullyConnected connects every device to every other device.
	FullyConnected
)

var kindNames = map[Kind]string{
	Line:           "line",
	Ring:           "ring",
	FullyConnected: "fully_connected",
}

// String returns the configuration name of the kind.
func (k Kind) String() string {
	if name, ok := kindNames[k]; ok {
		return name
	}
	return fmt.Sprintf("unknown(%d)", uint8(k))
}

// Valid reports whether k is a supported kind.
func (k Kind) Valid() bool {
	_, ok := kindNames[k]
	return ok
}

// ParseKind converts a configuration name to a Kind.
// Dashes and the short form "full" are accepted.
func ParseKind(s string) (Kind, error) {
	name := strings.ReplaceAll(strings.ToLower(strings.TrimSpace(s)), "-", "_")
	switch name {
	case "line":
		return Line, nil
	case "ring":
		return Ring, nil
	case "fully_connected", "fullyconnected", "full":
		return FullyConnected, nil
	default:
		return 0, fmt.Errorf("topology: unknown kind %q", s)
	}
}

// MarshalText implements encoding.TextMarshaler.
func (k Kind) MarshalText() ([]byte, error) {
	if !k.Valid() {
		return nil, fmt.Errorf("topology: unknown kind %d", uint8(k))
	}
	return []byte(k.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler, so a Kind can be read
// directly from YAML or JSON configuration.
func (k *Kind) UnmarshalText(text []byte) error {
	parsed, err := ParseKind(string(text))
	if err != nil {
		return err
	}
	*k = parsed
	return nil
}

// Build computes the neighbour relation for ids in the given order.
//
// Rules, with n = len(ids) and i the position of a device:
//   - Line: i-1 and i+1 where they exist.
//   - Ring: (i-1) mod n and (i+1) mod n. For n = 2 both rules name the same
//     device, so each device has one neighbour.
//   - FullyConnected: every other device.
//
// For n <= 1, or an unknown kind, the relation is empty. Duplicate IDs in the
// input are the caller's bug; the registry never passes them.
func Build(ids []int, kind Kind) Adjacency {
	n := len(ids)
	adj := make(Adjacency, n)
	if n <= 1 {
		return adj
	}

	switch kind {
	case Line:
		for i := 0; i < n-1; i++ {
			adj.link(ids[i], ids[i+1])
		}
	case Ring:
		for i := 0; i < n; i++ {
			adj.link(ids[i], ids[(i+1)%n])
		}
	case FullyConnected:
		for i := 0; i < n; i++ {
			for j := i + 1; j < n; j++ {
				adj.link(ids[i], ids[j])
			}
		}
	}
	return adj
}
