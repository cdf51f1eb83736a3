package models

import "time"

// ErrorMethodInfo aggregates the failed spans of one normalized operation.
type ErrorMethodInfo struct {
	MethodName     string         `json:"method_name"`
	ErrorCount     int            `json:"error_count"`
	ErrorTypes     map[string]int `json:"error_types"`
	SampleMessages []string       `json:"sample_messages"`
	AvgDurationMs  float64        `json:"avg_duration_ms"`
	LastErrorTime  time.Time      `json:"last_error_time"`
}

// ErrorClassStatistics aggregates the failed spans of one class.
type ErrorClassStatistics struct {
	ClassName               string         `json:"class_name"`
	PackageName             string         `json:"package_name,omitempty"`
	TotalErrors             int            `json:"total_errors"`
	UniqueMethodsWithErrors int            `json:"unique_methods_with_errors"`
	ErrorTypes              map[string]int `json:"error_types"`
	AvgDurationMs           float64        `json:"avg_duration_ms"`
}

// Scope narrows analysis to a class or a package. Class wins when both are set.
type Scope struct {
	ClassName          string `json:"class_name,omitempty"`
	PackageName        string `json:"package_name,omitempty"`
	IncludeSubPackages bool   `json:"include_sub_packages,omitempty"`
}

// IsZero reports whether the scope selects everything.
func (s Scope) IsZero() bool {
	return s.ClassName == "" && s.PackageName == ""
}
