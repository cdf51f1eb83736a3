// Package hotspot groups spans by operation and ranks the slowest and most error-prone ones.
package hotspot

import (
	"strings"
	"unicode/utf8"
)

const (
	// proxyMarker precedes the generated class token of a runtime subclass proxy.
	proxyMarker = "$$EnhancerBySpringCGLIB$$"
	// interceptMarker starts a synthetic interceptor method segment.
	interceptMarker = "CGLIB$"
)

// Normalize strips proxy decorations from an operation name so that proxied and
// direct calls to the same method share one key. Names without markers are
// returned unchanged and Normalize(Normalize(x)) == Normalize(x).
func Normalize(op string) string {
	if i := strings.Index(op, proxyMarker); i >= 0 {
		op = op[:i]
	}
	// drop the interceptor segment together with the character before it
	if i := strings.Index(op, interceptMarker); i > 0 {
		_, size := utf8.DecodeLastRuneInString(op[:i])
		op = op[:i-size]
	}
	return op
}
