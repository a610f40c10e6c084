// Package model defines the assessment, evidence, gap, risk and vendor types
// consumed by the scoring, strategy and matching packages.
package model

import "github.com/rotisserie/eris"

// ErrUnknownValue is returned when an enum field carries a value the engine
// does not recognize. Scoring fails for the affected computation instead of
// silently substituting a default.
var ErrUnknownValue = eris.New("unknown value")

func unknownValue(kind, v string) error {
	return eris.Wrapf(ErrUnknownValue, "model: %s %q", kind, v)
}
