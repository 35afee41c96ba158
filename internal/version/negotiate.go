// Package version implements the protocol version negotiator (spec §4.4).
package version

import "fmt"

// ErrUnsupported is returned when no supported version satisfies the
// client's request.
type ErrUnsupported struct {
	Requested string
	Supported []string
}

func (e *ErrUnsupported) Error() string {
	return fmt.Sprintf("version: %q is not supported (supported: %v)", e.Requested, e.Supported)
}

// Negotiate picks a protocol version given the server's supported list
// (newest first, never reordered) and the client's requested version.
//
// If the requested version is in the list, it is returned verbatim.
// Otherwise the newest server-supported version strictly lower than the
// client's request is returned. If neither applies, negotiation fails.
func Negotiate(supported []string, requested string) (string, error) {
	for _, v := range supported {
		if v == requested {
			return v, nil
		}
	}
	for _, v := range supported {
		if less(v, requested) {
			return v, nil
		}
	}
	return "", &ErrUnsupported{Requested: requested, Supported: supported}
}

// less reports whether a is strictly lower than b under the date-like
// "YYYY-MM-DD" or dotted "MAJOR.MINOR.PATCH" version schemes MCP uses.
// Falls back to a lexicographic comparison for any other shape, which is
// still correct for the canonical zero-padded date scheme.
func less(a, b string) bool {
	pa, oka := splitVersion(a)
	pb, okb := splitVersion(b)
	if !oka || !okb {
		return a < b
	}
	for i := 0; i < len(pa) && i < len(pb); i++ {
		if pa[i] != pb[i] {
			return pa[i] < pb[i]
		}
	}
	return len(pa) < len(pb)
}

func splitVersion(v string) ([]int, bool) {
	sep := byte('.')
	if containsDash(v) {
		sep = '-'
	}
	var parts []int
	cur := 0
	any := false
	for i := 0; i < len(v); i++ {
		c := v[i]
		switch {
		case c >= '0' && c <= '9':
			cur = cur*10 + int(c-'0')
			any = true
		case c == sep:
			parts = append(parts, cur)
			cur = 0
			any = false
		default:
			return nil, false
		}
	}
	if !any && len(parts) == 0 {
		return nil, false
	}
	parts = append(parts, cur)
	return parts, true
}

func containsDash(v string) bool {
	for i := 0; i < len(v); i++ {
		if v[i] == '-' {
			return true
		}
	}
	return false
}
