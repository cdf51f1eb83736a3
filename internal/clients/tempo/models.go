package tempo

// SearchResponse is the body of /api/search for a TraceQL span query.
type SearchResponse struct {
	Traces []TraceMatch `json:"traces"`
}

// TraceMatch is one trace with the spans that matched the query.
type TraceMatch struct {
	TraceID           string    `json:"traceID"`
	RootServiceName   string    `json:"rootServiceName"`
	RootTraceName     string    `json:"rootTraceName"`
	StartTimeUnixNano string    `json:"startTimeUnixNano"`
	DurationMs        int64     `json:"durationMs"`
	SpanSet           *SpanSet  `json:"spanSet,omitempty"`
	SpanSets          []SpanSet `json:"spanSets,omitempty"`
}

// AllSpanSets returns spanSets, falling back to the single legacy spanSet field.
func (t TraceMatch) AllSpanSets() []SpanSet {
	if len(t.SpanSets) > 0 {
		return t.SpanSets
	}
	if t.SpanSet != nil {
		return []SpanSet{*t.SpanSet}
	}
	return nil
}

// SpanSet groups the matched spans of a trace.
type SpanSet struct {
	Spans   []MatchedSpan `json:"spans"`
	Matched int           `json:"matched"`
}

// MatchedSpan is a span as returned by TraceQL search.
type MatchedSpan struct {
	SpanID            string      `json:"spanID"`
	Name              string      `json:"name"`
	StartTimeUnixNano string      `json:"startTimeUnixNano"`
	DurationNanos     string      `json:"durationNanos"`
	Attributes        []Attribute `json:"attributes"`
}

// Attribute is an OTLP key/value pair.
type Attribute struct {
	Key   string         `json:"key"`
	Value AttributeValue `json:"value"`
}

// AttributeValue holds the typed value of an attribute. Integers arrive as strings.
type AttributeValue struct {
	StringValue *string  `json:"stringValue,omitempty"`
	IntValue    *string  `json:"intValue,omitempty"`
	BoolValue   *bool    `json:"boolValue,omitempty"`
	DoubleValue *float64 `json:"doubleValue,omitempty"`
}

// String renders the value regardless of its type.
func (v AttributeValue) String() string {
	switch {
	case v.StringValue != nil:
		return *v.StringValue
	case v.IntValue != nil:
		return *v.IntValue
	case v.BoolValue != nil:
		if *v.BoolValue {
			return "true"
		}
		return "false"
	case v.DoubleValue != nil:
		return formatFloat(*v.DoubleValue)
	}
	return ""
}
