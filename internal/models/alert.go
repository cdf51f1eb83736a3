package models

import "time"

// Alert is raised when a monitored target breaches its SLA outside the cooldown window.
type Alert struct {
	ID         string              `json:"id"`
	Target     string              `json:"target"`
	Service    string              `json:"service"`
	Violations []Violation         `json:"violations"`
	Hotspots   []Hotspot           `json:"hotspots"`
	Statistics Statistics          `json:"statistics"`
	Insights   map[string][]string `json:"insights,omitempty"`
	TimeRange  string              `json:"time_range"`
	CreatedAt  time.Time           `json:"created_at"`
}

// Severity returns the most severe tier among the alert's violations.
func (a *Alert) Severity() Severity {
	var top Severity
	for _, v := range a.Violations {
		if v.Severity.Weight() > top.Weight() {
			top = v.Severity
		}
	}
	return top
}

// CountBySeverity returns how many violations carry the given severity.
func (a *Alert) CountBySeverity(s Severity) int {
	n := 0
	for _, v := range a.Violations {
		if v.Severity == s {
			n++
		}
	}
	return n
}

// InsightsFor returns the advice recorded for a hotspot operation, nil if none.
func (a *Alert) InsightsFor(operation string) []string {
	if a.Insights == nil {
		return nil
	}
	return a.Insights[operation]
}
