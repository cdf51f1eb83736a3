package tempo

import (
	"fmt"
	"regexp"
	"strings"

	"tracelens/internal/models"
)

// selectedAttributes are requested with every span query so that status can be derived.
const selectedAttributes = "select(status, span.http.status_code, span.success)"

// BuildSpanQuery constructs a TraceQL query for the spans described by q.
func BuildSpanQuery(q models.SpanQuery) string {
	var conds []string
	if q.Service != "" {
		conds = append(conds, fmt.Sprintf("resource.service.name = %q", q.Service))
	}
	if q.OperationPrefix != "" {
		conds = append(conds, fmt.Sprintf("name =~ %q", regexp.QuoteMeta(q.OperationPrefix)+".*"))
	}
	if ms := q.MinDuration.Milliseconds(); ms > 0 {
		conds = append(conds, fmt.Sprintf("duration > %dms", ms))
	}
	if q.ErrorsOnly {
		conds = append(conds, "status = error")
	}

	filter := "{ }"
	if len(conds) > 0 {
		filter = "{ " + strings.Join(conds, " && ") + " }"
	}
	return filter + " | " + selectedAttributes
}

