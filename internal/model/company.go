package model

import (
	"time"

	"github.com/rotisserie/eris"
)

// AssessmentStatus represents the lifecycle state of an assessment.
type AssessmentStatus string

const (
	AssessmentDraft      AssessmentStatus = "DRAFT"
	AssessmentInProgress AssessmentStatus = "IN_PROGRESS"
	AssessmentCompleted  AssessmentStatus = "COMPLETED"
)

// Organization is the assessed company.
type Organization struct {
	ID   string      `json:"id" yaml:"id"`
	Name string      `json:"name" yaml:"name"`
	Size CompanySize `json:"size,omitempty" yaml:"size,omitempty"`
}

// AssessmentPriorities holds an organization's stated preferences, used to
// weight vendor matches. TopPriorities is ranked: index 0 is the #1 priority.
type AssessmentPriorities struct {
	Jurisdictions        []string            `json:"jurisdictions,omitempty" yaml:"jurisdictions,omitempty"`
	TopPriorities        []string            `json:"top_priorities,omitempty" yaml:"top_priorities,omitempty"`
	BudgetRange          CostRange           `json:"budget_range,omitempty" yaml:"budget_range,omitempty"`
	DeploymentPreference Deployment          `json:"deployment_preference,omitempty" yaml:"deployment_preference,omitempty"`
	ImplementationSpeed  ImplementationSpeed `json:"implementation_speed,omitempty" yaml:"implementation_speed,omitempty"`
	MustHaveFeatures     []string            `json:"must_have_features,omitempty" yaml:"must_have_features,omitempty"`
}

// Normalize upper-cases and validates the enum fields in place.
func (p *AssessmentPriorities) Normalize() error {
	budget, err := ParseCostRange(string(p.BudgetRange))
	if err != nil {
		return err
	}
	deploy, err := ParseDeployment(string(p.DeploymentPreference))
	if err != nil {
		return err
	}
	speed, err := ParseImplementationSpeed(string(p.ImplementationSpeed))
	if err != nil {
		return err
	}
	p.BudgetRange, p.DeploymentPreference, p.ImplementationSpeed = budget, deploy, speed
	return nil
}

// Assessment is one organization's run through a template, with the
// answers and evidence fetched for scoring.
type Assessment struct {
	ID           string               `json:"id" yaml:"id"`
	Status       AssessmentStatus     `json:"status" yaml:"status"`
	Organization Organization         `json:"organization" yaml:"organization"`
	Template     Template             `json:"template" yaml:"template"`
	Answers      []Answer             `json:"answers,omitempty" yaml:"answers,omitempty"`
	Documents    []Document           `json:"documents,omitempty" yaml:"documents,omitempty"`
	Priorities   AssessmentPriorities `json:"priorities" yaml:"priorities"`
	CreatedAt    time.Time            `json:"created_at,omitempty" yaml:"created_at,omitempty"`
	UpdatedAt    time.Time            `json:"updated_at,omitempty" yaml:"updated_at,omitempty"`
}

// Finalized reports whether the assessment's answers are frozen.
func (a *Assessment) Finalized() bool {
	return a.Status == AssessmentCompleted
}

// SetAnswer records or replaces the answer for a question. Answers are
// immutable once the assessment is completed.
func (a *Assessment) SetAnswer(ans Answer) error {
	if a.Finalized() {
		return eris.Errorf("model: assessment %s is completed; answer %s is immutable", a.ID, ans.QuestionID)
	}
	if _, _, ok := a.Template.FindQuestion(ans.QuestionID); !ok {
		return eris.Errorf("model: question %s is not part of template %s", ans.QuestionID, a.Template.ID)
	}
	for i := range a.Answers {
		if a.Answers[i].QuestionID == ans.QuestionID {
			a.Answers[i] = ans
			return nil
		}
	}
	a.Answers = append(a.Answers, ans)
	return nil
}

// DocumentIndex maps document IDs to documents.
func (a *Assessment) DocumentIndex() map[string]Document {
	idx := make(map[string]Document, len(a.Documents))
	for _, d := range a.Documents {
		idx[d.ID] = d
	}
	return idx
}
