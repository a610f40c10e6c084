// Package store persists assessments, gaps, risks, vendors and score results.
package store

import (
	"context"
	"encoding/json"
	"time"

	"github.com/rotisserie/eris"

	"github.com/sells-group/posture/internal/model"
)

// ErrNotFound is returned when a requested record does not exist.
var ErrNotFound = eris.New("not found")

func notFound(entity, id string) error {
	return eris.Wrapf(ErrNotFound, "%s %s", entity, id)
}

// AssessmentFilter specifies criteria for listing assessments.
type AssessmentFilter struct {
	Status model.AssessmentStatus `json:"status,omitempty"`
	Limit  int                    `json:"limit,omitempty"`
	Offset int                    `json:"offset,omitempty"`
}

const defaultListLimit = 100

func (f AssessmentFilter) limit() int {
	if f.Limit <= 0 {
		return defaultListLimit
	}
	return f.Limit
}

// ScoreKind distinguishes persisted score results.
type ScoreKind string

const (
	ScoreKindWeighted ScoreKind = "weighted"
	ScoreKindLegacy   ScoreKind = "legacy"
)

// ScoreRecord is a persisted scoring run. Payload holds the full result.
type ScoreRecord struct {
	ID           string          `json:"id"`
	AssessmentID string          `json:"assessment_id"`
	Kind         ScoreKind       `json:"kind"`
	Score        float64         `json:"score"`
	Band         string          `json:"band"`
	ConfigHash   string          `json:"config_hash"`
	Payload      json.RawMessage `json:"payload"`
	CreatedAt    time.Time       `json:"created_at"`
}

// Store defines the persistence interface for the scoring engine.
type Store interface {
	// Assessments
	SaveAssessment(ctx context.Context, a *model.Assessment) error
	GetAssessment(ctx context.Context, id string) (*model.Assessment, error)
	ListAssessments(ctx context.Context, filter AssessmentFilter) ([]model.Assessment, error)

	// Gaps
	ListGaps(ctx context.Context, assessmentID string) ([]model.Gap, error)
	UpsertGap(ctx context.Context, g model.Gap) error
	DeleteGap(ctx context.Context, assessmentID, gapID string) error
	ImportGaps(ctx context.Context, assessmentID string, gaps []model.Gap) (int64, error)

	// Risks
	ListRisks(ctx context.Context, assessmentID string) ([]model.Risk, error)
	ImportRisks(ctx context.Context, assessmentID string, risks []model.Risk) (int64, error)

	// Vendors
	ListVendors(ctx context.Context) ([]model.Vendor, error)
	UpsertVendor(ctx context.Context, v model.Vendor) error
	ImportVendors(ctx context.Context, vendors []model.Vendor) (int64, error)

	// Score results
	SaveScoreResult(ctx context.Context, rec *ScoreRecord) error
	LatestScoreResult(ctx context.Context, assessmentID string, kind ScoreKind) (*ScoreRecord, error)

	// Lifecycle
	Migrate(ctx context.Context) error
	Ping(ctx context.Context) error
	Close() error
}

// assessmentDoc is the JSON body stored for an assessment. Status and
// timestamps live in their own columns.
type assessmentDoc struct {
	Organization model.Organization         `json:"organization"`
	Template     model.Template             `json:"template"`
	Answers      []model.Answer             `json:"answers,omitempty"`
	Documents    []model.Document           `json:"documents,omitempty"`
	Priorities   model.AssessmentPriorities `json:"priorities"`
}

func marshalAssessment(a *model.Assessment) ([]byte, error) {
	data, err := json.Marshal(assessmentDoc{
		Organization: a.Organization,
		Template:     a.Template,
		Answers:      a.Answers,
		Documents:    a.Documents,
		Priorities:   a.Priorities,
	})
	if err != nil {
		return nil, eris.Wrapf(err, "store: marshal assessment %s", a.ID)
	}
	return data, nil
}

func unmarshalAssessment(a *model.Assessment, data []byte) error {
	var doc assessmentDoc
	if err := json.Unmarshal(data, &doc); err != nil {
		return eris.Wrapf(err, "store: unmarshal assessment %s", a.ID)
	}
	a.Organization = doc.Organization
	a.Template = doc.Template
	a.Answers = doc.Answers
	a.Documents = doc.Documents
	a.Priorities = doc.Priorities
	return nil
}

// vendorDoc holds the list-valued vendor fields stored as JSON.
type vendorDoc struct {
	Categories         []string            `json:"categories"`
	TargetSegments     []model.CompanySize `json:"target_segments,omitempty"`
	GeographicCoverage []string            `json:"geographic_coverage,omitempty"`
	Features           []string            `json:"features,omitempty"`
	DeploymentModels   []model.Deployment  `json:"deployment_models,omitempty"`
}

func marshalVendor(v model.Vendor) ([]byte, error) {
	data, err := json.Marshal(vendorDoc{
		Categories:         v.Categories,
		TargetSegments:     v.TargetSegments,
		GeographicCoverage: v.GeographicCoverage,
		Features:           v.Features,
		DeploymentModels:   v.DeploymentModels,
	})
	if err != nil {
		return nil, eris.Wrapf(err, "store: marshal vendor %s", v.ID)
	}
	return data, nil
}

func unmarshalVendor(v *model.Vendor, data []byte) error {
	var doc vendorDoc
	if err := json.Unmarshal(data, &doc); err != nil {
		return eris.Wrapf(err, "store: unmarshal vendor %s", v.ID)
	}
	v.Categories = doc.Categories
	v.TargetSegments = doc.TargetSegments
	v.GeographicCoverage = doc.GeographicCoverage
	v.Features = doc.Features
	v.DeploymentModels = doc.DeploymentModels
	return nil
}

func validateGap(g model.Gap) error {
	if g.ID == "" || g.AssessmentID == "" {
		return eris.New("store: gap id and assessment id are required")
	}
	return nil
}

func validateVendor(v model.Vendor) error {
	if v.ID == "" {
		return eris.New("store: vendor id is required")
	}
	return nil
}
