package model

// Go models for the resume document edited in the form editor and
// serialized to RenderCV YAML for rendering.

import (
	"encoding/json"
	"fmt"
)

// PresentSentinel is the end date of a position the person still holds.
const PresentSentinel = "present"

type PersonalInfo struct {
	Name     string `json:"name"`
	Location string `json:"location"`
	Email    string `json:"email"`
	Phone    string `json:"phone,omitempty"`
	Website  string `json:"website"`
}

type SocialNetwork struct {
	Network  string `json:"network"`
	Username string `json:"username"`
}

type Experience struct {
	Company    string   `json:"company"`
	Position   string   `json:"position"`
	Location   string   `json:"location"`
	StartDate  string   `json:"start_date"`
	EndDate    string   `json:"end_date"`
	Highlights []string `json:"highlights"`
}

// IsCurrent reports whether the "currently working here" box is checked.
func (e Experience) IsCurrent() bool { return e.EndDate == PresentSentinel }

// SetCurrent checks or clears "currently working here". Unchecking leaves an
// empty end date for the user to fill in.
func (e *Experience) SetCurrent(current bool) {
	if current {
		e.EndDate = PresentSentinel
		return
	}
	if e.EndDate == PresentSentinel {
		e.EndDate = ""
	}
}

// EndDateEditable is false while the position is marked current.
func (e Experience) EndDateEditable() bool { return !e.IsCurrent() }

type Project struct {
	Name       string   `json:"name"`
	Summary    string   `json:"summary"`
	Highlights []string `json:"highlights"`
}

// Education keeps the GPA apart from the highlights. On the wire the GPA is
// written as a "CGPA: ..." highlight, so Highlights never carries it.
type Education struct {
	Institution string   `json:"institution"`
	Area        string   `json:"area"`
	Degree      string   `json:"degree"`
	StartDate   string   `json:"start_date"`
	EndDate     string   `json:"end_date"`
	GPA         string   `json:"gpa,omitempty"`
	Highlights  []string `json:"highlights"`
}

// Technology is a skill category and its comma separated skills.
type Technology struct {
	Label   string `json:"label"`
	Details string `json:"details"`
}

type Certification struct {
	Name string `json:"name"`
	Date string `json:"date"`
}

type Achievement struct {
	Name       string   `json:"name"`
	Date       string   `json:"date"`
	Highlights []string `json:"highlights"`
}

// Document is the structured resume owned by one editing session.
type Document struct {
	PersonalInfo   PersonalInfo    `json:"personalInfo"`
	SocialNetworks []SocialNetwork `json:"socialNetworks"`
	Summary        []string        `json:"summary"`
	Experience     []Experience    `json:"experience"`
	Projects       []Project       `json:"projects"`
	Education      []Education     `json:"education"`
	Technologies   []Technology    `json:"technologies"`
	Certifications []Certification `json:"certifications"`
	Achievements   []Achievement   `json:"achievements"`
	Theme          Theme           `json:"theme"`
}

// Section names one editable group of the document.
type Section string

const (
	SectionPersonalInfo   Section = "personalInfo"
	SectionSocialNetworks Section = "socialNetworks"
	SectionSummary        Section = "summary"
	SectionExperience     Section = "experience"
	SectionProjects       Section = "projects"
	SectionEducation      Section = "education"
	SectionTechnologies   Section = "technologies"
	SectionCertifications Section = "certifications"
	SectionAchievements   Section = "achievements"
)

// Sections lists every section in form order.
var Sections = []Section{
	SectionPersonalInfo,
	SectionSocialNetworks,
	SectionSummary,
	SectionExperience,
	SectionProjects,
	SectionEducation,
	SectionTechnologies,
	SectionCertifications,
	SectionAchievements,
}

// ParseSection validates a section name.
func ParseSection(s string) (Section, error) {
	for _, sec := range Sections {
		if string(sec) == s {
			return sec, nil
		}
	}
	return "", fmt.Errorf("unknown section %q", s)
}

// Get returns a copy of the section's value.
func (d *Document) Get(section Section) (any, error) {
	switch section {
	case SectionPersonalInfo:
		return d.PersonalInfo, nil
	case SectionSocialNetworks:
		return append([]SocialNetwork(nil), d.SocialNetworks...), nil
	case SectionSummary:
		return append([]string(nil), d.Summary...), nil
	case SectionExperience:
		return cloneExperience(d.Experience), nil
	case SectionProjects:
		return cloneProjects(d.Projects), nil
	case SectionEducation:
		return cloneEducation(d.Education), nil
	case SectionTechnologies:
		return append([]Technology(nil), d.Technologies...), nil
	case SectionCertifications:
		return append([]Certification(nil), d.Certifications...), nil
	case SectionAchievements:
		return cloneAchievements(d.Achievements), nil
	}
	return nil, fmt.Errorf("unknown section %q", section)
}

// Set replaces a section. Only the Go type is checked: empty strings are
// fine while the user is still typing.
func (d *Document) Set(section Section, value any) error {
	ok := false
	switch section {
	case SectionPersonalInfo:
		var v PersonalInfo
		if v, ok = value.(PersonalInfo); ok {
			d.PersonalInfo = v
		}
	case SectionSocialNetworks:
		var v []SocialNetwork
		if v, ok = value.([]SocialNetwork); ok {
			d.SocialNetworks = v
		}
	case SectionSummary:
		var v []string
		if v, ok = value.([]string); ok {
			d.Summary = v
		}
	case SectionExperience:
		var v []Experience
		if v, ok = value.([]Experience); ok {
			d.Experience = v
		}
	case SectionProjects:
		var v []Project
		if v, ok = value.([]Project); ok {
			d.Projects = v
		}
	case SectionEducation:
		var v []Education
		if v, ok = value.([]Education); ok {
			d.Education = v
		}
	case SectionTechnologies:
		var v []Technology
		if v, ok = value.([]Technology); ok {
			d.Technologies = v
		}
	case SectionCertifications:
		var v []Certification
		if v, ok = value.([]Certification); ok {
			d.Certifications = v
		}
	case SectionAchievements:
		var v []Achievement
		if v, ok = value.([]Achievement); ok {
			d.Achievements = v
		}
	default:
		return fmt.Errorf("unknown section %q", section)
	}
	if !ok {
		return fmt.Errorf("section %s: unexpected value type %T", section, value)
	}
	return nil
}

// DecodeSection decodes the JSON form payload of one section into the Go
// type Set expects.
func DecodeSection(section Section, raw []byte) (any, error) {
	var target any
	switch section {
	case SectionPersonalInfo:
		target = &PersonalInfo{}
	case SectionSocialNetworks:
		target = &[]SocialNetwork{}
	case SectionSummary:
		target = &[]string{}
	case SectionExperience:
		target = &[]Experience{}
	case SectionProjects:
		target = &[]Project{}
	case SectionEducation:
		target = &[]Education{}
	case SectionTechnologies:
		target = &[]Technology{}
	case SectionCertifications:
		target = &[]Certification{}
	case SectionAchievements:
		target = &[]Achievement{}
	default:
		return nil, fmt.Errorf("unknown section %q", section)
	}
	if err := json.Unmarshal(raw, target); err != nil {
		return nil, fmt.Errorf("decode %s: %w", section, err)
	}
	switch v := target.(type) {
	case *PersonalInfo:
		return *v, nil
	case *[]SocialNetwork:
		return *v, nil
	case *[]string:
		return *v, nil
	case *[]Experience:
		return *v, nil
	case *[]Project:
		return *v, nil
	case *[]Education:
		return *v, nil
	case *[]Technology:
		return *v, nil
	case *[]Certification:
		return *v, nil
	default:
		return *(v.(*[]Achievement)), nil
	}
}

// Clone returns a deep copy.
func (d Document) Clone() Document {
	out := d
	out.SocialNetworks = append([]SocialNetwork(nil), d.SocialNetworks...)
	out.Summary = append([]string(nil), d.Summary...)
	out.Experience = cloneExperience(d.Experience)
	out.Projects = cloneProjects(d.Projects)
	out.Education = cloneEducation(d.Education)
	out.Technologies = append([]Technology(nil), d.Technologies...)
	out.Certifications = append([]Certification(nil), d.Certifications...)
	out.Achievements = cloneAchievements(d.Achievements)
	return out
}

func cloneExperience(in []Experience) []Experience {
	if in == nil {
		return nil
	}
	out := make([]Experience, len(in))
	for i, e := range in {
		e.Highlights = append([]string(nil), e.Highlights...)
		out[i] = e
	}
	return out
}

func cloneProjects(in []Project) []Project {
	if in == nil {
		return nil
	}
	out := make([]Project, len(in))
	for i, p := range in {
		p.Highlights = append([]string(nil), p.Highlights...)
		out[i] = p
	}
	return out
}

func cloneEducation(in []Education) []Education {
	if in == nil {
		return nil
	}
	out := make([]Education, len(in))
	for i, e := range in {
		e.Highlights = append([]string(nil), e.Highlights...)
		out[i] = e
	}
	return out
}

func cloneAchievements(in []Achievement) []Achievement {
	if in == nil {
		return nil
	}
	out := make([]Achievement, len(in))
	for i, a := range in {
		a.Highlights = append([]string(nil), a.Highlights...)
		out[i] = a
	}
	return out
}
