// Package codec converts between the structured resume document and the
// RenderCV YAML text edited in the raw editor and fed to the renderer.
package codec

import (
	"bytes"
	"fmt"
	"strings"

	"alpha-resume/internal/domain"
	"alpha-resume/internal/model"

	"gopkg.in/yaml.v3"
)

// Header is the first line of every serialized document.
const Header = "# RenderCV Resume Configuration\n"

type fileOut struct {
	CV     cvOut      `yaml:"cv"`
	Design *designOut `yaml:"design,omitempty"`
}

type cvOut struct {
	Name           string       `yaml:"name,omitempty"`
	Location       string       `yaml:"location,omitempty"`
	Email          string       `yaml:"email,omitempty"`
	Phone          string       `yaml:"phone,omitempty"`
	Website        string       `yaml:"website,omitempty"`
	SocialNetworks []socialItem `yaml:"social_networks,omitempty"`
	Sections       sectionsOut  `yaml:"sections,omitempty"`
}

type designOut struct {
	Theme string `yaml:"theme"`
}

type sectionsOut struct {
	Summary        []string          `yaml:"summary,omitempty"`
	Experience     []experienceItem  `yaml:"experience,omitempty"`
	Projects       []projectItem     `yaml:"projects,omitempty"`
	Education      []educationItem   `yaml:"education,omitempty"`
	Technologies   []technologyItem  `yaml:"technologies,omitempty"`
	Certifications []certItem        `yaml:"certifications,omitempty"`
	Achievements   []achievementItem `yaml:"achievements,omitempty"`
}

type socialItem struct {
	Network  string `yaml:"network"`
	Username string `yaml:"username"`
}

type experienceItem struct {
	Company    string   `yaml:"company"`
	Position   string   `yaml:"position"`
	Location   string   `yaml:"location,omitempty"`
	StartDate  string   `yaml:"start_date,omitempty"`
	EndDate    string   `yaml:"end_date,omitempty"`
	Highlights []string `yaml:"highlights,omitempty"`
}

type projectItem struct {
	Name       string   `yaml:"name"`
	Summary    string   `yaml:"summary,omitempty"`
	Highlights []string `yaml:"highlights,omitempty"`
}

type educationItem struct {
	Institution string   `yaml:"institution"`
	Area        string   `yaml:"area,omitempty"`
	Degree      string   `yaml:"degree,omitempty"`
	StartDate   string   `yaml:"start_date,omitempty"`
	EndDate     string   `yaml:"end_date,omitempty"`
	Highlights  []string `yaml:"highlights,omitempty"`
}

type technologyItem struct {
	Label   string `yaml:"label"`
	Details string `yaml:"details"`
}

type certItem struct {
	Name string `yaml:"name"`
	Date string `yaml:"date,omitempty"`
}

type achievementItem struct {
	Name       string   `yaml:"name"`
	Date       string   `yaml:"date,omitempty"`
	Highlights []string `yaml:"highlights,omitempty"`
}

// Serialize writes doc as RenderCV YAML. Output is deterministic and keeps
// entry order. Entries the form leaves blank are dropped (see Normalize), the
// GPA becomes a leading "CGPA: ..." education highlight, and the theme is
// written under design.theme.
func Serialize(doc model.Document) (string, error) {
	n := Normalize(doc)
	out := fileOut{
		CV: cvOut{
			Name:     n.PersonalInfo.Name,
			Location: n.PersonalInfo.Location,
			Email:    n.PersonalInfo.Email,
			Phone:    n.PersonalInfo.Phone,
			Website:  n.PersonalInfo.Website,
		},
	}
	for _, sn := range n.SocialNetworks {
		out.CV.SocialNetworks = append(out.CV.SocialNetworks, socialItem{Network: sn.Network, Username: sn.Username})
	}

	s := &out.CV.Sections
	s.Summary = n.Summary
	for _, e := range n.Experience {
		s.Experience = append(s.Experience, experienceItem(e))
	}
	for _, p := range n.Projects {
		s.Projects = append(s.Projects, projectItem(p))
	}
	for _, e := range n.Education {
		item := educationItem{
			Institution: e.Institution,
			Area:        e.Area,
			Degree:      e.Degree,
			StartDate:   e.StartDate,
			EndDate:     e.EndDate,
		}
		if e.GPA != "" {
			item.Highlights = append(item.Highlights, "CGPA: "+e.GPA)
		}
		item.Highlights = append(item.Highlights, e.Highlights...)
		s.Education = append(s.Education, item)
	}
	for _, t := range n.Technologies {
		s.Technologies = append(s.Technologies, technologyItem(t))
	}
	for _, c := range n.Certifications {
		s.Certifications = append(s.Certifications, certItem(c))
	}
	for _, a := range n.Achievements {
		s.Achievements = append(s.Achievements, achievementItem(a))
	}
	if n.Theme != "" {
		out.Design = &designOut{Theme: string(n.Theme)}
	}

	var buf bytes.Buffer
	buf.WriteString(Header)
	enc := yaml.NewEncoder(&buf)
	enc.SetIndent(2)
	if err := enc.Encode(out); err != nil {
		return "", fmt.Errorf("encode document: %w", err)
	}
	if err := enc.Close(); err != nil {
		return "", fmt.Errorf("encode document: %w", err)
	}
	return buf.String(), nil
}

// MustSerialize is Serialize for documents built in code.
func MustSerialize(doc model.Document) string {
	s, err := Serialize(doc)
	if err != nil {
		panic(err)
	}
	return s
}

// Normalize applies the serialization exclusion rules: blank social
// networks, summary bullets, highlights and unnamed entries are dropped, and
// GPA markers are stripped from editable education highlights.
// Deserialize(Serialize(d)) equals Normalize(d).
func Normalize(doc model.Document) model.Document {
	in := doc.Clone()
	out := model.Document{
		PersonalInfo: in.PersonalInfo,
		Theme:        in.Theme,
	}
	for _, sn := range in.SocialNetworks {
		if blank(sn.Network) || blank(sn.Username) {
			continue
		}
		out.SocialNetworks = append(out.SocialNetworks, sn)
	}
	out.Summary = nonBlank(in.Summary)
	for _, e := range in.Experience {
		if blank(e.Company) && blank(e.Position) {
			continue
		}
		e.Highlights = nonBlank(e.Highlights)
		out.Experience = append(out.Experience, e)
	}
	for _, p := range in.Projects {
		if blank(p.Name) {
			continue
		}
		p.Highlights = nonBlank(p.Highlights)
		out.Projects = append(out.Projects, p)
	}
	for _, e := range in.Education {
		if blank(e.Institution) {
			continue
		}
		e.GPA = strings.TrimSpace(e.GPA)
		var hs []string
		for _, h := range nonBlank(e.Highlights) {
			if isGPAHighlight(h) {
				continue
			}
			hs = append(hs, h)
		}
		e.Highlights = hs
		out.Education = append(out.Education, e)
	}
	for _, t := range in.Technologies {
		if blank(t.Label) {
			continue
		}
		out.Technologies = append(out.Technologies, t)
	}
	for _, c := range in.Certifications {
		if blank(c.Name) {
			continue
		}
		out.Certifications = append(out.Certifications, c)
	}
	for _, a := range in.Achievements {
		if blank(a.Name) {
			continue
		}
		a.Highlights = nonBlank(a.Highlights)
		out.Achievements = append(out.Achievements, a)
	}
	return out
}

type fileIn struct {
	CV struct {
		Name           string               `yaml:"name"`
		Location       string               `yaml:"location"`
		Email          string               `yaml:"email"`
		Phone          string               `yaml:"phone"`
		Website        string               `yaml:"website"`
		SocialNetworks []socialItem         `yaml:"social_networks"`
		LinkedIn       string               `yaml:"linkedin"`
		GitHub         string               `yaml:"github"`
		Sections       map[string]yaml.Node `yaml:"sections"`
	} `yaml:"cv"`
	Design struct {
		Theme string `yaml:"theme"`
	} `yaml:"design"`
}

var sectionAliases = map[model.Section][]string{
	model.SectionSummary:        {"summary", "Summary"},
	model.SectionExperience:     {"experience", "Experience", "work_experience", "Work Experience"},
	model.SectionProjects:       {"projects", "Projects"},
	model.SectionEducation:      {"education", "Education"},
	model.SectionTechnologies:   {"technologies", "Technologies", "skills", "Skills", "Skills & Abilities", "skills_abilities"},
	model.SectionCertifications: {"certifications", "Certifications"},
	model.SectionAchievements:   {"achievements", "Achievements", "achievment", "Achievment"},
}

// Parsed is a deserialized document plus what the text said about the
// theme. RawTheme is the design.theme value as written, even when it is not
// a catalogued theme.
type Parsed struct {
	Document model.Document
	RawTheme string
	counts   sectionCounts
}

type sectionCounts struct {
	summary, experience, projects, technologies int
	maxExperienceHighlights, maxProjectHighlights int
}

// Deserialize parses RenderCV YAML into a document. Any structural problem
// returns an error wrapping domain.ErrParse; callers keep their last good
// document in that case.
func Deserialize(text string) (*Parsed, error) {
	var tree map[string]interface{}
	if err := yaml.Unmarshal([]byte(text), &tree); err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrParse, err)
	}
	if tree == nil {
		return nil, fmt.Errorf("%w: empty document", domain.ErrParse)
	}
	if err := model.ValidateTree(tree); err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrParse, err)
	}

	var in fileIn
	if err := yaml.Unmarshal([]byte(text), &in); err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrParse, err)
	}

	p := &Parsed{RawTheme: strings.TrimSpace(in.Design.Theme)}
	doc := &p.Document
	doc.PersonalInfo = model.PersonalInfo{
		Name:     in.CV.Name,
		Location: in.CV.Location,
		Email:    in.CV.Email,
		Phone:    in.CV.Phone,
		Website:  in.CV.Website,
	}
	for _, sn := range in.CV.SocialNetworks {
		doc.SocialNetworks = append(doc.SocialNetworks, model.SocialNetwork(sn))
	}
	if len(in.CV.SocialNetworks) == 0 {
		if in.CV.LinkedIn != "" {
			doc.SocialNetworks = append(doc.SocialNetworks, model.SocialNetwork{Network: "LinkedIn", Username: in.CV.LinkedIn})
		}
		if in.CV.GitHub != "" {
			doc.SocialNetworks = append(doc.SocialNetworks, model.SocialNetwork{Network: "GitHub", Username: in.CV.GitHub})
		}
	}
	if th, err := model.ParseTheme(p.RawTheme); err == nil {
		doc.Theme = th
	}

	sections := in.CV.Sections
	if err := decodeSection(sections, model.SectionSummary, &doc.Summary); err != nil {
		return nil, err
	}

	var exp []experienceItem
	if err := decodeSection(sections, model.SectionExperience, &exp); err != nil {
		return nil, err
	}
	for _, e := range exp {
		doc.Experience = append(doc.Experience, model.Experience(e))
		p.counts.maxExperienceHighlights = max(p.counts.maxExperienceHighlights, len(e.Highlights))
	}

	var projects []projectItem
	if err := decodeSection(sections, model.SectionProjects, &projects); err != nil {
		return nil, err
	}
	for _, pr := range projects {
		doc.Projects = append(doc.Projects, model.Project(pr))
		p.counts.maxProjectHighlights = max(p.counts.maxProjectHighlights, len(pr.Highlights))
	}

	var edu []educationItem
	if err := decodeSection(sections, model.SectionEducation, &edu); err != nil {
		return nil, err
	}
	for _, e := range edu {
		entry := model.Education{
			Institution: e.Institution,
			Area:        e.Area,
			Degree:      e.Degree,
			StartDate:   e.StartDate,
			EndDate:     e.EndDate,
		}
		for _, h := range e.Highlights {
			if isGPAHighlight(h) {
				if entry.GPA == "" {
					entry.GPA = stripGPA(h)
				}
				continue
			}
			entry.Highlights = append(entry.Highlights, h)
		}
		doc.Education = append(doc.Education, entry)
	}

	var tech []technologyItem
	if err := decodeSection(sections, model.SectionTechnologies, &tech); err != nil {
		return nil, err
	}
	for _, t := range tech {
		doc.Technologies = append(doc.Technologies, model.Technology(t))
	}

	var certs []certItem
	if err := decodeSection(sections, model.SectionCertifications, &certs); err != nil {
		return nil, err
	}
	for _, c := range certs {
		doc.Certifications = append(doc.Certifications, model.Certification(c))
	}

	var ach []achievementItem
	if err := decodeSection(sections, model.SectionAchievements, &ach); err != nil {
		return nil, err
	}
	for _, a := range ach {
		doc.Achievements = append(doc.Achievements, model.Achievement(a))
	}

	p.counts.summary = len(doc.Summary)
	p.counts.experience = len(doc.Experience)
	p.counts.projects = len(doc.Projects)
	p.counts.technologies = len(doc.Technologies)
	return p, nil
}

func decodeSection(sections map[string]yaml.Node, section model.Section, out interface{}) error {
	for _, name := range sectionAliases[section] {
		node, ok := sections[name]
		if !ok {
			continue
		}
		if err := node.Decode(out); err != nil {
			return fmt.Errorf("%w: section %s: %v", domain.ErrParse, name, err)
		}
		return nil
	}
	return nil
}

func isGPAHighlight(h string) bool {
	return strings.Contains(h, "CGPA:") || strings.Contains(h, "GPA:")
}

func stripGPA(h string) string {
	h = strings.ReplaceAll(h, "'", "")
	if i := strings.Index(h, "CGPA:"); i >= 0 {
		h = h[i+len("CGPA:"):]
	} else if i := strings.Index(h, "GPA:"); i >= 0 {
		h = h[i+len("GPA:"):]
	}
	return strings.TrimSpace(h)
}

func blank(s string) bool { return strings.TrimSpace(s) == "" }

func nonBlank(in []string) []string {
	var out []string
	for _, s := range in {
		if !blank(s) {
			out = append(out, s)
		}
	}
	return out
}
