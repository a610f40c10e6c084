package model

// Template is a questionnaire made of weighted sections.
type Template struct {
	ID       string    `json:"id" yaml:"id"`
	Name     string    `json:"name,omitempty" yaml:"name,omitempty"`
	Sections []Section `json:"sections" yaml:"sections"`
}

// Section groups questions. Weight is the section's fraction of the template
// total; RegulatoryPriority is informational and never used in arithmetic.
type Section struct {
	ID                 string     `json:"id" yaml:"id"`
	Name               string     `json:"name,omitempty" yaml:"name,omitempty"`
	Weight             float64    `json:"weight" yaml:"weight"`
	RegulatoryPriority string     `json:"regulatory_priority,omitempty" yaml:"regulatory_priority,omitempty"`
	Questions          []Question `json:"questions" yaml:"questions"`
}

// Question is a single template question. Weight is its fraction of the
// owning section's total.
type Question struct {
	ID     string  `json:"id" yaml:"id"`
	Text   string  `json:"text,omitempty" yaml:"text,omitempty"`
	Weight float64 `json:"weight" yaml:"weight"`
}

// QuestionCount returns the number of questions across all sections.
func (t *Template) QuestionCount() int {
	var n int
	for _, s := range t.Sections {
		n += len(s.Questions)
	}
	return n
}

// FindQuestion returns the section and question with the given ID.
func (t *Template) FindQuestion(id string) (*Section, *Question, bool) {
	for i := range t.Sections {
		s := &t.Sections[i]
		for j := range s.Questions {
			if s.Questions[j].ID == id {
				return s, &s.Questions[j], true
			}
		}
	}
	return nil, nil, false
}
