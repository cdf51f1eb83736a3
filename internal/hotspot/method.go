package hotspot

import (
	"regexp"
	"strings"
)

var (
	codeLocation = regexp.MustCompile(`^[A-Za-z0-9_$]+(\.[A-Za-z0-9_$]+)*$`)
	httpVerbs    = []string{"GET ", "POST ", "PUT ", "DELETE "}
)

// MethodInfo is the code location an operation name points at.
type MethodInfo struct {
	Package   string
	Class     string
	FullClass string
	Method    string
}

// Valid reports whether a class could be identified.
func (m MethodInfo) Valid() bool {
	return m.Class != ""
}

// ParseMethod splits "pkg.Class.method" style names. HTTP route names are
// reported with class "HTTP" and the route as method.
func ParseMethod(op string) MethodInfo {
	for _, verb := range httpVerbs {
		if strings.HasPrefix(op, verb) {
			return MethodInfo{Class: "HTTP", Method: op}
		}
	}

	if !codeLocation.MatchString(op) {
		return MethodInfo{}
	}

	parts := strings.Split(op, ".")
	var info MethodInfo
	if len(parts) == 1 {
		info.Class = parts[0]
	} else {
		info.Method = parts[len(parts)-1]
		info.Class = parts[len(parts)-2]
		info.Package = strings.Join(parts[:len(parts)-2], ".")
	}

	info.FullClass = info.Class
	if info.Package != "" {
		info.FullClass = info.Package + "." + info.Class
	}

	// Outer$Inner -> Inner
	if i := strings.LastIndex(info.Class, "$"); i >= 0 && i < len(info.Class)-1 {
		info.Class = info.Class[i+1:]
	}

	return info
}

// describeOperation builds the display name of a hotspot. When the rebuilt
// name differs from the key the key is appended in parentheses.
func describeOperation(op string, info MethodInfo) string {
	if !info.Valid() {
		return op
	}

	built := info.FullClass
	if built == "" {
		built = info.Class
	}
	if info.Method != "" {
		built += "." + info.Method
	}

	if built != op && !strings.Contains(op, "CGLIB") {
		return built + " (" + op + ")"
	}
	return built
}
