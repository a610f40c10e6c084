package fixture

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/posture/internal/model"
	"github.com/sells-group/posture/internal/store"
)

func TestLoad(t *testing.T) {
	b, err := Load(filepath.Join("testdata", "acme.yaml"))
	require.NoError(t, err)

	a := b.Assessment
	assert.Equal(t, "asm-acme", a.ID)
	assert.Equal(t, model.AssessmentInProgress, a.Status)
	assert.Equal(t, model.SizeSMB, a.Organization.Size)
	assert.Equal(t, model.Cost10KTo50K, a.Priorities.BudgetRange)
	require.Len(t, a.Template.Sections, 2)
	assert.Equal(t, 4, a.Template.QuestionCount())
	require.Len(t, a.Documents, 2)
	assert.Equal(t, model.Tier1, a.Documents[0].EvidenceTier)
	assert.Equal(t, "org-acme", a.Documents[0].OrganizationID)

	require.Len(t, b.Gaps, 3)
	assert.Equal(t, model.SeverityCritical, b.Gaps[0].Severity)
	assert.Equal(t, model.EffortSmall, b.Gaps[0].EstimatedEffort)
	assert.Equal(t, model.CostUnder10K, b.Gaps[0].EstimatedCost)
	assert.Equal(t, "asm-acme", b.Gaps[2].AssessmentID)
	assert.Empty(t, b.Gaps[2].EstimatedCost)
	assert.True(t, b.Gaps[2].Documentation)

	require.Len(t, b.Risks, 2)
	assert.Equal(t, model.RiskHigh, b.Risks[0].RiskLevel)
	require.NotNil(t, b.Risks[0].ControlEffectiveness)
	assert.InDelta(t, 40, *b.Risks[0].ControlEffectiveness, 0.001)
	assert.Nil(t, b.Risks[1].ControlEffectiveness)

	require.Len(t, b.Vendors, 2)
	assert.Equal(t, []model.CompanySize{model.SizeSMB, model.SizeMidmarket}, b.Vendors[0].TargetSegments)
	assert.Equal(t, model.Cost50KTo100K, b.Vendors[1].PricingRange)
}

func TestLoad_FileNotFound(t *testing.T) {
	_, err := Load("/nonexistent/bundle.yaml")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "fixture: read")
}

func TestParse_Defaults(t *testing.T) {
	b, err := Parse([]byte(`
assessment:
  organization: { name: Solo }
gaps:
  - { severity: low, priority_score: 1 }
`))
	require.NoError(t, err)
	assert.NotEmpty(t, b.Assessment.ID)
	assert.Equal(t, model.AssessmentDraft, b.Assessment.Status)
	require.Len(t, b.Gaps, 1)
	assert.NotEmpty(t, b.Gaps[0].ID)
	assert.Equal(t, b.Assessment.ID, b.Gaps[0].AssessmentID)
}

func TestParse_NormalizesMatchingEnums(t *testing.T) {
	b, err := Parse([]byte(`
assessment:
  id: a1
  priorities: { deployment_preference: hybrid, implementation_speed: flexible }
vendors:
  - { id: v1, target_segments: [midmarket], deployment_models: [cloud, on_premise] }
`))
	require.NoError(t, err)
	assert.Equal(t, model.DeploymentHybrid, b.Assessment.Priorities.DeploymentPreference)
	assert.Equal(t, model.SpeedFlexible, b.Assessment.Priorities.ImplementationSpeed)
	require.Len(t, b.Vendors, 1)
	assert.Equal(t, []model.CompanySize{model.SizeMidmarket}, b.Vendors[0].TargetSegments)
	assert.Equal(t, []model.Deployment{model.DeploymentCloud, model.DeploymentOnPremise}, b.Vendors[0].DeploymentModels)
}

func TestParse_Errors(t *testing.T) {
	tests := []struct {
		name    string
		yaml    string
		wantErr string
	}{
		{"bad yaml", "assessment: [", "parse yaml"},
		{"unknown status", "assessment: { status: archived }", "assessment status"},
		{"unknown tier", "assessment: { documents: [{ id: d1, evidence_tier: TIER_9 }] }", "document d1"},
		{"missing tier", "assessment: { documents: [{ id: d1 }] }", "document d1"},
		{"unknown severity", "gaps: [{ id: g1, severity: severe, priority_score: 3 }]", "gap g1"},
		{"unknown effort", "gaps: [{ id: g1, severity: low, estimated_effort: huge }]", "gap g1"},
		{"risk without id", "risks: [{ risk_level: low }]", "risk 0 has no id"},
		{"unknown risk level", "risks: [{ id: r1, risk_level: extreme }]", "risk r1"},
		{"vendor without id", "vendors: [{ name: Ghost }]", `vendor "Ghost" has no id`},
		{"unknown vendor segment", "vendors: [{ id: v1, target_segments: [huge] }]", "vendor v1"},
		{"unknown budget", "assessment: { priorities: { budget_range: lots } }", "cost range"},
		{"unknown deployment preference", "assessment: { priorities: { deployment_preference: satellite } }", "deployment"},
		{"unknown speed", "assessment: { priorities: { implementation_speed: asap } }", "implementation speed"},
		{"unknown vendor deployment", "vendors: [{ id: v1, deployment_models: [edge] }]", "vendor v1"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse([]byte(tt.yaml))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestParse_UnknownEnumIsSentinel(t *testing.T) {
	_, err := Parse([]byte("gaps: [{ id: g1, severity: severe }]"))
	require.Error(t, err)
	assert.True(t, errors.Is(err, model.ErrUnknownValue))
}

func TestApply(t *testing.T) {
	st, err := store.NewSQLite(filepath.Join(t.TempDir(), "fixture.db"))
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() }) //nolint:errcheck
	ctx := context.Background()
	require.NoError(t, st.Migrate(ctx))

	b, err := Load(filepath.Join("testdata", "acme.yaml"))
	require.NoError(t, err)

	c, err := b.Apply(ctx, st)
	require.NoError(t, err)
	assert.Equal(t, Counts{Gaps: 3, Risks: 2, Vendors: 2}, c)

	got, err := st.GetAssessment(ctx, "asm-acme")
	require.NoError(t, err)
	assert.Equal(t, "Acme Payments", got.Organization.Name)

	gaps, err := st.ListGaps(ctx, "asm-acme")
	require.NoError(t, err)
	assert.Len(t, gaps, 3)

	// Re-applying replaces rather than duplicates.
	_, err = b.Apply(ctx, st)
	require.NoError(t, err)
	gaps, err = st.ListGaps(ctx, "asm-acme")
	require.NoError(t, err)
	assert.Len(t, gaps, 3)
}

func TestLoad_WritesRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bundle.yaml")
	require.NoError(t, os.WriteFile(path, []byte("assessment: { id: a1 }\n"), 0644))

	b, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "a1", b.Assessment.ID)
	assert.Empty(t, b.Gaps)
}
