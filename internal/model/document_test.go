package model

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleDocument() Document {
	return Document{
		PersonalInfo: PersonalInfo{Name: "John Doe", Email: "john.doe@example.com", Location: "New York, NY"},
		Summary:      []string{"Engineer"},
		Experience: []Experience{{
			Company: "Tech Corp", Position: "Engineer", StartDate: "2021-01", EndDate: PresentSentinel,
			Highlights: []string{"Shipped things"},
		}},
		Education:    []Education{{Institution: "State University", GPA: "8.0/10.0"}},
		Technologies: []Technology{{Label: "Languages", Details: "Go, Python"}},
		Theme:        ThemeModernDesign,
	}
}

func TestDocument_GetSet(t *testing.T) {
	doc := sampleDocument()

	t.Run("round trip a section", func(t *testing.T) {
		v, err := doc.Get(SectionSummary)
		require.NoError(t, err)
		summary := v.([]string)
		summary = append(summary, "Mentor")
		require.NoError(t, doc.Set(SectionSummary, summary))
		assert.Equal(t, []string{"Engineer", "Mentor"}, doc.Summary)
	})

	t.Run("get returns a copy", func(t *testing.T) {
		v, err := doc.Get(SectionExperience)
		require.NoError(t, err)
		v.([]Experience)[0].Highlights[0] = "changed"
		assert.Equal(t, "Shipped things", doc.Experience[0].Highlights[0])
	})

	t.Run("empty strings are allowed", func(t *testing.T) {
		require.NoError(t, doc.Set(SectionPersonalInfo, PersonalInfo{}))
		assert.Empty(t, doc.PersonalInfo.Name)
	})

	t.Run("wrong type is rejected", func(t *testing.T) {
		err := doc.Set(SectionSummary, "not a list")
		require.Error(t, err)
		assert.Contains(t, err.Error(), "unexpected value type")
	})

	t.Run("unknown section", func(t *testing.T) {
		_, err := doc.Get(Section("hobbies"))
		assert.Error(t, err)
		assert.Error(t, doc.Set(Section("hobbies"), nil))
	})
}

func TestDecodeSection(t *testing.T) {
	v, err := DecodeSection(SectionExperience, []byte(`[{"company":"Acme","position":"Dev","end_date":"present","highlights":["a"]}]`))
	require.NoError(t, err)
	exp := v.([]Experience)
	require.Len(t, exp, 1)
	assert.True(t, exp[0].IsCurrent())

	v, err = DecodeSection(SectionAchievements, []byte(`[{"name":"Award","date":"2021-09"}]`))
	require.NoError(t, err)
	assert.Equal(t, "Award", v.([]Achievement)[0].Name)

	_, err = DecodeSection(SectionSummary, []byte(`{"not":"a list"}`))
	assert.Error(t, err)
}

func TestExperience_Current(t *testing.T) {
	e := Experience{EndDate: "2020-12"}
	assert.True(t, e.EndDateEditable())

	e.SetCurrent(true)
	assert.Equal(t, PresentSentinel, e.EndDate)
	assert.False(t, e.EndDateEditable())

	e.SetCurrent(false)
	assert.Empty(t, e.EndDate)
	assert.True(t, e.EndDateEditable())
}

func TestDocument_IsComplete(t *testing.T) {
	t.Run("complete sample", func(t *testing.T) {
		doc := sampleDocument()
		for _, s := range Sections {
			assert.True(t, doc.IsComplete(s), s)
		}
	})

	t.Run("empty name blocks personal info", func(t *testing.T) {
		doc := sampleDocument()
		doc.PersonalInfo.Name = ""
		assert.False(t, doc.IsComplete(SectionPersonalInfo))
	})

	t.Run("implausible email blocks personal info", func(t *testing.T) {
		doc := sampleDocument()
		doc.PersonalInfo.Email = "john@"
		assert.False(t, doc.IsComplete(SectionPersonalInfo))
	})

	t.Run("experience needs company and position", func(t *testing.T) {
		doc := sampleDocument()
		doc.Experience = []Experience{{Company: "Acme"}, {Position: "Dev"}}
		assert.False(t, doc.IsComplete(SectionExperience))
	})

	t.Run("optional sections are always complete", func(t *testing.T) {
		var doc Document
		for _, s := range []Section{SectionSocialNetworks, SectionProjects, SectionCertifications, SectionAchievements} {
			assert.True(t, IsOptional(s))
			assert.True(t, doc.IsComplete(s), s)
		}
		assert.False(t, doc.IsComplete(SectionSummary))
		assert.False(t, doc.IsComplete(SectionTechnologies))
		assert.False(t, doc.IsComplete(SectionEducation))
	})
}

func TestPlausibleEmail(t *testing.T) {
	tests := []struct {
		in   string
		want bool
	}{
		{"john.doe@example.com", true},
		{"a@b.co.uk", true},
		{"", false},
		{"john", false},
		{"john@localhost", false},
		{"John <john@example.com>", false},
		{"john@com", false},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.want, PlausibleEmail(tt.in))
		})
	}
}

func TestThemes(t *testing.T) {
	assert.Len(t, Themes(), 5)

	th, err := ParseTheme("modernDesign")
	require.NoError(t, err)
	assert.Equal(t, "modernDesign.yaml", th.Filename())

	_, err = ParseTheme("classic")
	assert.Error(t, err)

	assert.Equal(t, DefaultTheme, Theme("").OrDefault())
	assert.Equal(t, "Engineering Classic", Theme("bogus").Info().Label)
}

func TestValidateTree(t *testing.T) {
	t.Run("valid", func(t *testing.T) {
		tree := map[string]interface{}{
			"cv": map[string]interface{}{
				"name": "John",
				"sections": map[string]interface{}{
					"summary":   []interface{}{"one"},
					"education": []interface{}{map[string]interface{}{"institution": "U", "start_date": 2015}},
				},
			},
			"design": map[string]interface{}{"theme": "sb2novDesign"},
		}
		assert.NoError(t, ValidateTree(tree))
	})

	t.Run("missing cv", func(t *testing.T) {
		err := ValidateTree(map[string]interface{}{"design": map[string]interface{}{}})
		require.Error(t, err)
		assert.Contains(t, err.Error(), "cv")
	})

	t.Run("section that is not a list", func(t *testing.T) {
		tree := map[string]interface{}{
			"cv": map[string]interface{}{
				"sections": map[string]interface{}{"summary": "just text"},
			},
		}
		assert.Error(t, ValidateTree(tree))
	})

	t.Run("nested name", func(t *testing.T) {
		tree := map[string]interface{}{
			"cv": map[string]interface{}{"name": map[string]interface{}{"first": "John"}},
		}
		assert.Error(t, ValidateTree(tree))
	})
}
