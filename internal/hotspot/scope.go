package hotspot

import (
	"sort"
	"strings"
	"unicode"

	"tracelens/internal/models"
)

// InScope reports whether an operation belongs to the scope. The operation is
// normalized first. A class matches when it appears in the name bounded by
// separators, so "Order" does not match "OrderService". A package matches as a
// name prefix; without sub-packages the segment after the package must be a
// class (it contains an upper-case letter).
func InScope(op string, scope models.Scope) bool {
	op = Normalize(op)
	switch {
	case scope.ClassName != "":
		return matchesClass(op, scope.ClassName)
	case scope.PackageName != "":
		return matchesPackage(op, scope.PackageName, scope.IncludeSubPackages)
	}
	return true
}

// FilterByScope returns the spans whose operation is in scope. A zero scope
// returns spans unchanged.
func FilterByScope(spans []models.Span, scope models.Scope) []models.Span {
	if scope.IsZero() {
		return spans
	}
	filtered := make([]models.Span, 0, len(spans))
	for _, s := range spans {
		if InScope(s.Operation, scope) {
			filtered = append(filtered, s)
		}
	}
	return filtered
}

func matchesClass(op, class string) bool {
	for from := 0; from <= len(op)-len(class); {
		i := strings.Index(op[from:], class)
		if i < 0 {
			return false
		}
		i += from
		end := i + len(class)
		before := i == 0 || op[i-1] == '.' || op[i-1] == '$'
		after := end == len(op) || op[end] == '.' || op[end] == '$' || op[end] == '#'
		if before && after {
			return true
		}
		from = i + 1
	}
	return false
}

func matchesPackage(op, pkg string, includeSub bool) bool {
	prefix := pkg
	if !strings.HasSuffix(prefix, ".") {
		prefix += "."
	}

	if includeSub {
		return strings.HasPrefix(op, prefix) || strings.Contains(op, "."+prefix)
	}
	if !strings.HasPrefix(op, prefix) {
		return false
	}

	rest := op[len(prefix):]
	dot := strings.IndexByte(rest, '.')
	if dot <= 0 {
		return true
	}
	return strings.IndexFunc(rest[:dot], unicode.IsUpper) >= 0
}

// ClassNames lists the distinct fully qualified classes of the spans, sorted.
// HTTP routes and names that are not code locations are skipped.
func ClassNames(spans []models.Span) []string {
	return distinct(spans, func(info MethodInfo) string { return info.FullClass })
}

// PackageNames lists the distinct packages of the spans, sorted.
func PackageNames(spans []models.Span) []string {
	return distinct(spans, func(info MethodInfo) string { return info.Package })
}

func distinct(spans []models.Span, key func(MethodInfo) string) []string {
	seen := make(map[string]struct{})
	names := make([]string, 0)
	for _, s := range spans {
		name := key(ParseMethod(Normalize(s.Operation)))
		if name == "" {
			continue
		}
		if _, ok := seen[name]; ok {
			continue
		}
		seen[name] = struct{}{}
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
