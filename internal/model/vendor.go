package model

import "strings"

// CompanySize is an ordered company-size segment.
type CompanySize string

const (
	SizeStartup    CompanySize = "STARTUP"
	SizeSMB        CompanySize = "SMB"
	SizeMidmarket  CompanySize = "MIDMARKET"
	SizeEnterprise CompanySize = "ENTERPRISE"
)

// Rank orders sizes STARTUP < SMB < MIDMARKET < ENTERPRISE. Unknown sizes
// return -1.
func (s CompanySize) Rank() int {
	switch s {
	case SizeStartup:
		return 0
	case SizeSMB:
		return 1
	case SizeMidmarket:
		return 2
	case SizeEnterprise:
		return 3
	}
	return -1
}

// Valid reports whether s is a known size.
func (s CompanySize) Valid() bool { return s.Rank() >= 0 }

// ParseCompanySize normalizes and validates a size. Empty means unstated.
func ParseCompanySize(v string) (CompanySize, error) {
	s := CompanySize(strings.ToUpper(strings.TrimSpace(v)))
	if s == "" || s.Valid() {
		return s, nil
	}
	return "", unknownValue("company size", v)
}

// Deployment is a vendor delivery model or an organization's preference.
type Deployment string

const (
	DeploymentCloud     Deployment = "CLOUD"
	DeploymentOnPremise Deployment = "ON_PREMISE"
	DeploymentHybrid    Deployment = "HYBRID"
)

// Valid reports whether d is a known deployment model.
func (d Deployment) Valid() bool {
	switch d {
	case DeploymentCloud, DeploymentOnPremise, DeploymentHybrid:
		return true
	}
	return false
}

// ParseDeployment normalizes and validates a deployment model. Empty means
// unstated.
func ParseDeployment(v string) (Deployment, error) {
	d := Deployment(strings.ToUpper(strings.TrimSpace(v)))
	if d == "" || d.Valid() {
		return d, nil
	}
	return "", unknownValue("deployment", v)
}

// ImplementationSpeed is how quickly an organization needs a vendor live.
type ImplementationSpeed string

const (
	SpeedImmediate ImplementationSpeed = "IMMEDIATE"
	SpeedStandard  ImplementationSpeed = "STANDARD"
	SpeedFlexible  ImplementationSpeed = "FLEXIBLE"
)

// Valid reports whether s is a known speed.
func (s ImplementationSpeed) Valid() bool {
	switch s {
	case SpeedImmediate, SpeedStandard, SpeedFlexible:
		return true
	}
	return false
}

// ParseImplementationSpeed normalizes and validates a speed. Empty means
// unstated.
func ParseImplementationSpeed(v string) (ImplementationSpeed, error) {
	s := ImplementationSpeed(strings.ToUpper(strings.TrimSpace(v)))
	if s == "" || s.Valid() {
		return s, nil
	}
	return "", unknownValue("implementation speed", v)
}

// GlobalCoverage in a vendor's geographic coverage matches every jurisdiction.
const GlobalCoverage = "GLOBAL"

// Vendor is a third-party provider that can remediate gaps.
type Vendor struct {
	ID                  string        `json:"id" yaml:"id"`
	Name                string        `json:"name" yaml:"name"`
	Categories          []string      `json:"categories" yaml:"categories"`
	TargetSegments      []CompanySize `json:"target_segments,omitempty" yaml:"target_segments,omitempty"`
	GeographicCoverage  []string      `json:"geographic_coverage,omitempty" yaml:"geographic_coverage,omitempty"`
	PricingRange        CostRange     `json:"pricing_range,omitempty" yaml:"pricing_range,omitempty"`
	Features            []string      `json:"features,omitempty" yaml:"features,omitempty"`
	DeploymentModels    []Deployment  `json:"deployment_models,omitempty" yaml:"deployment_models,omitempty"`
	ImplementationWeeks int           `json:"implementation_weeks,omitempty" yaml:"implementation_weeks,omitempty"`
}

// CategorySet returns the vendor's categories folded for comparison.
func (v *Vendor) CategorySet() map[string]bool {
	set := make(map[string]bool, len(v.Categories))
	for _, c := range v.Categories {
		if k := NormalizeKey(c); k != "" {
			set[k] = true
		}
	}
	return set
}

// Normalize upper-cases and validates the vendor's enum fields in place.
func (v *Vendor) Normalize() error {
	for i, seg := range v.TargetSegments {
		size, err := ParseCompanySize(string(seg))
		if err != nil {
			return err
		}
		if size == "" {
			return unknownValue("company size", string(seg))
		}
		v.TargetSegments[i] = size
	}
	for i, dm := range v.DeploymentModels {
		d, err := ParseDeployment(string(dm))
		if err != nil {
			return err
		}
		if d == "" {
			return unknownValue("deployment", string(dm))
		}
		v.DeploymentModels[i] = d
	}
	pricing, err := ParseCostRange(string(v.PricingRange))
	if err != nil {
		return err
	}
	v.PricingRange = pricing
	return nil
}
