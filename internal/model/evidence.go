package model

import "strings"

// EvidenceTier classifies how trustworthy a piece of uploaded evidence is.
type EvidenceTier string

const (
	Tier0 EvidenceTier = "TIER_0" // self-declared
	Tier1 EvidenceTier = "TIER_1" // policy document
	Tier2 EvidenceTier = "TIER_2" // system-generated
)

// Valid reports whether t is a known tier.
func (t EvidenceTier) Valid() bool {
	switch t {
	case Tier0, Tier1, Tier2:
		return true
	}
	return false
}

// Level returns 0, 1 or 2 for the known tiers and -1 otherwise.
func (t EvidenceTier) Level() int {
	switch t {
	case Tier0:
		return 0
	case Tier1:
		return 1
	case Tier2:
		return 2
	}
	return -1
}

// ParseEvidenceTier normalizes s and validates it.
func ParseEvidenceTier(s string) (EvidenceTier, error) {
	t := EvidenceTier(strings.ToUpper(strings.TrimSpace(s)))
	if !t.Valid() {
		return "", unknownValue("evidence tier", s)
	}
	return t, nil
}

// Document is an uploaded piece of evidence. The tier is assigned by an
// external classifier at upload time.
type Document struct {
	ID             string       `json:"id" yaml:"id"`
	OrganizationID string       `json:"organization_id,omitempty" yaml:"organization_id,omitempty"`
	Name           string       `json:"name,omitempty" yaml:"name,omitempty"`
	EvidenceTier   EvidenceTier `json:"evidence_tier" yaml:"evidence_tier"`
}

// Answer is a scored response to one template question.
type Answer struct {
	QuestionID        string   `json:"question_id" yaml:"question_id"`
	RawQualityScore   float64  `json:"raw_quality_score" yaml:"raw_quality_score"` // 0.0-5.0
	LinkedDocumentIDs []string `json:"linked_document_ids,omitempty" yaml:"linked_document_ids,omitempty"`
}
