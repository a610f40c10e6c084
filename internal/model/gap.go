package model

import "strings"

// Severity grades a compliance gap.
type Severity string

const (
	SeverityCritical Severity = "CRITICAL"
	SeverityHigh     Severity = "HIGH"
	SeverityMedium   Severity = "MEDIUM"
	SeverityLow      Severity = "LOW"
)

// Valid reports whether s is a known severity.
func (s Severity) Valid() bool {
	switch s {
	case SeverityCritical, SeverityHigh, SeverityMedium, SeverityLow:
		return true
	}
	return false
}

// ParseSeverity normalizes and validates a severity.
func ParseSeverity(v string) (Severity, error) {
	s := Severity(strings.ToUpper(strings.TrimSpace(v)))
	if !s.Valid() {
		return "", unknownValue("severity", v)
	}
	return s, nil
}

// Priority is the remediation priority label attached to a gap upstream.
type Priority string

const (
	PriorityImmediate Priority = "IMMEDIATE"
	PriorityShortTerm Priority = "SHORT_TERM"
	PriorityLongTerm  Priority = "LONG_TERM"
)

// Valid reports whether p is a known priority.
func (p Priority) Valid() bool {
	switch p {
	case PriorityImmediate, PriorityShortTerm, PriorityLongTerm:
		return true
	}
	return false
}

// Effort is the estimated remediation effort of a gap.
type Effort string

const (
	EffortSmall  Effort = "SMALL"
	EffortMedium Effort = "MEDIUM"
	EffortLarge  Effort = "LARGE"
)

// Valid reports whether e is a known effort.
func (e Effort) Valid() bool {
	switch e {
	case EffortSmall, EffortMedium, EffortLarge:
		return true
	}
	return false
}

// ParseEffort normalizes and validates an effort. An empty value means the
// effort was not estimated.
func ParseEffort(v string) (Effort, error) {
	e := Effort(strings.ToUpper(strings.TrimSpace(v)))
	if e == "" || e.Valid() {
		return e, nil
	}
	return "", unknownValue("effort", v)
}

// CostRange is a bucketed money range used both for gap remediation cost
// estimates and for vendor pricing and organization budgets. Buckets are
// contiguous: each bucket's maximum is the next bucket's minimum.
type CostRange string

const (
	CostUnder10K   CostRange = "UNDER_10K"
	Cost10KTo50K   CostRange = "RANGE_10K_50K"
	Cost50KTo100K  CostRange = "RANGE_50K_100K"
	Cost100KTo250K CostRange = "RANGE_100K_250K"
	CostOver250K   CostRange = "OVER_250K"
)

// Unbounded marks the open upper end of the top cost bucket.
const Unbounded int64 = -1

// CostRanges lists the buckets in ascending order.
var CostRanges = []CostRange{CostUnder10K, Cost10KTo50K, Cost50KTo100K, Cost100KTo250K, CostOver250K}

// Valid reports whether c is a known bucket.
func (c CostRange) Valid() bool {
	return c.Index() >= 0
}

// Index returns the bucket's position in CostRanges, or -1.
func (c CostRange) Index() int {
	switch c {
	case CostUnder10K:
		return 0
	case Cost10KTo50K:
		return 1
	case Cost50KTo100K:
		return 2
	case Cost100KTo250K:
		return 3
	case CostOver250K:
		return 4
	}
	return -1
}

// Bounds returns the bucket's inclusive minimum and maximum in euros. The
// open-ended top bucket reports a maximum of Unbounded.
func (c CostRange) Bounds() (lo, hi int64) {
	switch c {
	case CostUnder10K:
		return 0, 10_000
	case Cost10KTo50K:
		return 10_000, 50_000
	case Cost50KTo100K:
		return 50_000, 100_000
	case Cost100KTo250K:
		return 100_000, 250_000
	case CostOver250K:
		return 250_000, Unbounded
	}
	return 0, 0
}

// ParseCostRange normalizes and validates a bucket. An empty value means the
// range was not declared.
func ParseCostRange(v string) (CostRange, error) {
	c := CostRange(strings.ToUpper(strings.TrimSpace(v)))
	if c == "" || c.Valid() {
		return c, nil
	}
	return "", unknownValue("cost range", v)
}

// Gap is an identified compliance deficiency produced by the upstream
// gap-extraction step. PriorityScore runs from 1 (least urgent) to 10.
type Gap struct {
	ID              string    `json:"id" yaml:"id"`
	AssessmentID    string    `json:"assessment_id" yaml:"assessment_id"`
	Title           string    `json:"title,omitempty" yaml:"title,omitempty"`
	Category        string    `json:"category" yaml:"category"`
	Severity        Severity  `json:"severity" yaml:"severity"`
	Priority        Priority  `json:"priority,omitempty" yaml:"priority,omitempty"`
	PriorityScore   int       `json:"priority_score" yaml:"priority_score"`
	EstimatedEffort Effort    `json:"estimated_effort,omitempty" yaml:"estimated_effort,omitempty"`
	EstimatedCost   CostRange `json:"estimated_cost,omitempty" yaml:"estimated_cost,omitempty"`
	Documentation   bool      `json:"documentation,omitempty" yaml:"documentation,omitempty"`
}

// Categories returns the distinct, case-folded categories of gaps in first-seen order.
func Categories(gaps []Gap) []string {
	seen := make(map[string]bool, len(gaps))
	var out []string
	for _, g := range gaps {
		c := NormalizeKey(g.Category)
		if c == "" || seen[c] {
			continue
		}
		seen[c] = true
		out = append(out, c)
	}
	return out
}

// NormalizeKey folds categories, jurisdictions and feature names for
// case-insensitive comparison.
func NormalizeKey(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}
