package model

import "strings"

// RiskLevel grades a risk exposure.
type RiskLevel string

const (
	RiskCritical RiskLevel = "CRITICAL"
	RiskHigh     RiskLevel = "HIGH"
	RiskMedium   RiskLevel = "MEDIUM"
	RiskLow      RiskLevel = "LOW"
)

// Valid reports whether l is a known level.
func (l RiskLevel) Valid() bool {
	switch l {
	case RiskCritical, RiskHigh, RiskMedium, RiskLow:
		return true
	}
	return false
}

// ParseRiskLevel normalizes and validates a risk level.
func ParseRiskLevel(v string) (RiskLevel, error) {
	l := RiskLevel(strings.ToUpper(strings.TrimSpace(v)))
	if !l.Valid() {
		return "", unknownValue("risk level", v)
	}
	return l, nil
}

// Risk is an identified exposure. ControlEffectiveness is a 0-100
// percentage and nil when it has not been assessed.
type Risk struct {
	ID                   string    `json:"id" yaml:"id"`
	AssessmentID         string    `json:"assessment_id" yaml:"assessment_id"`
	Title                string    `json:"title,omitempty" yaml:"title,omitempty"`
	Category             string    `json:"category,omitempty" yaml:"category,omitempty"`
	RiskLevel            RiskLevel `json:"risk_level" yaml:"risk_level"`
	ControlEffectiveness *float64  `json:"control_effectiveness,omitempty" yaml:"control_effectiveness,omitempty"`
}
