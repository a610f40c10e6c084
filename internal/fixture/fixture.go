// Package fixture loads YAML assessment bundles: one assessment with its
// gaps and risks plus the vendor catalog to match against.
package fixture

import (
	"context"
	"os"
	"strings"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	"gopkg.in/yaml.v3"

	"github.com/sells-group/posture/internal/model"
	"github.com/sells-group/posture/internal/store"
)

// Bundle is the on-disk fixture layout.
type Bundle struct {
	Assessment model.Assessment `yaml:"assessment"`
	Gaps       []model.Gap      `yaml:"gaps"`
	Risks      []model.Risk     `yaml:"risks"`
	Vendors    []model.Vendor   `yaml:"vendors"`
}

// Load reads and normalizes a bundle from a YAML file.
func Load(path string) (*Bundle, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, eris.Wrapf(err, "fixture: read %s", path)
	}
	b, err := Parse(data)
	if err != nil {
		return nil, eris.Wrapf(err, "fixture: %s", path)
	}
	return b, nil
}

// Parse decodes a bundle and normalizes its enum values. Gaps and risks
// inherit the assessment ID; gaps without an ID get a generated one.
func Parse(data []byte) (*Bundle, error) {
	var b Bundle
	if err := yaml.Unmarshal(data, &b); err != nil {
		return nil, eris.Wrap(err, "fixture: parse yaml")
	}
	if b.Assessment.ID == "" {
		b.Assessment.ID = uuid.New().String()
	}
	if err := normalizeAssessment(&b.Assessment); err != nil {
		return nil, err
	}
	for i := range b.Gaps {
		if err := normalizeGap(&b.Gaps[i], b.Assessment.ID); err != nil {
			return nil, err
		}
	}
	for i := range b.Risks {
		r := &b.Risks[i]
		if r.ID == "" {
			return nil, eris.Errorf("fixture: risk %d has no id", i)
		}
		r.AssessmentID = b.Assessment.ID
		lvl, err := model.ParseRiskLevel(string(r.RiskLevel))
		if err != nil {
			return nil, eris.Wrapf(err, "fixture: risk %s", r.ID)
		}
		r.RiskLevel = lvl
	}
	for i := range b.Vendors {
		if err := normalizeVendor(&b.Vendors[i]); err != nil {
			return nil, err
		}
	}
	return &b, nil
}

func normalizeAssessment(a *model.Assessment) error {
	switch st := model.AssessmentStatus(strings.ToUpper(strings.TrimSpace(string(a.Status)))); st {
	case "":
		a.Status = model.AssessmentDraft
	case model.AssessmentDraft, model.AssessmentInProgress, model.AssessmentCompleted:
		a.Status = st
	default:
		return eris.Wrapf(model.ErrUnknownValue, "fixture: assessment status %q", string(a.Status))
	}
	size, err := model.ParseCompanySize(string(a.Organization.Size))
	if err != nil {
		return eris.Wrap(err, "fixture: organization size")
	}
	a.Organization.Size = size
	for i := range a.Documents {
		d := &a.Documents[i]
		tier, err := model.ParseEvidenceTier(string(d.EvidenceTier))
		if err != nil {
			return eris.Wrapf(err, "fixture: document %s", d.ID)
		}
		d.EvidenceTier = tier
		if d.OrganizationID == "" {
			d.OrganizationID = a.Organization.ID
		}
	}
	if err := a.Priorities.Normalize(); err != nil {
		return eris.Wrap(err, "fixture: priorities")
	}
	return nil
}

func normalizeGap(g *model.Gap, assessmentID string) error {
	if g.ID == "" {
		g.ID = uuid.New().String()
	}
	g.AssessmentID = assessmentID

	sev, err := model.ParseSeverity(string(g.Severity))
	if err != nil {
		return eris.Wrapf(err, "fixture: gap %s", g.ID)
	}
	effort, err := model.ParseEffort(string(g.EstimatedEffort))
	if err != nil {
		return eris.Wrapf(err, "fixture: gap %s", g.ID)
	}
	cost, err := model.ParseCostRange(string(g.EstimatedCost))
	if err != nil {
		return eris.Wrapf(err, "fixture: gap %s", g.ID)
	}
	g.Severity, g.EstimatedEffort, g.EstimatedCost = sev, effort, cost
	return nil
}

func normalizeVendor(v *model.Vendor) error {
	if v.ID == "" {
		return eris.Errorf("fixture: vendor %q has no id", v.Name)
	}
	if err := v.Normalize(); err != nil {
		return eris.Wrapf(err, "fixture: vendor %s", v.ID)
	}
	return nil
}

// Counts reports how many records Apply wrote.
type Counts struct {
	Gaps    int64 `json:"gaps"`
	Risks   int64 `json:"risks"`
	Vendors int64 `json:"vendors"`
}

// Apply writes the bundle to st. Gaps and risks replace whatever the
// assessment held before; vendors are upserted.
func (b *Bundle) Apply(ctx context.Context, st store.Store) (Counts, error) {
	var c Counts
	if err := st.SaveAssessment(ctx, &b.Assessment); err != nil {
		return c, eris.Wrap(err, "fixture: save assessment")
	}
	id := b.Assessment.ID

	var err error
	if c.Gaps, err = st.ImportGaps(ctx, id, b.Gaps); err != nil {
		return c, eris.Wrap(err, "fixture: import gaps")
	}
	if c.Risks, err = st.ImportRisks(ctx, id, b.Risks); err != nil {
		return c, eris.Wrap(err, "fixture: import risks")
	}
	if len(b.Vendors) > 0 {
		if c.Vendors, err = st.ImportVendors(ctx, b.Vendors); err != nil {
			return c, eris.Wrap(err, "fixture: import vendors")
		}
	}
	return c, nil
}
