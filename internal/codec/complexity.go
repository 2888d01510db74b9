package codec

import (
	"fmt"
	"strings"
)

// Thresholds above which raw text is treated as hand-tuned and too large for
// the form editor to round-trip without loss.
const (
	MaxSummaryItems             = 5
	MaxExperienceEntries        = 3
	MaxProjectEntries           = 3
	MaxTechnologyEntries        = 6
	MaxExperienceHighlights     = 5
	MaxProjectHighlightsPerItem = 3
)

// Complexity is the outcome of ClassifyComplexity. Reasons lists every
// threshold the text exceeded.
type Complexity struct {
	IsComplex bool     `json:"isComplex"`
	Reasons   []string `json:"reasons,omitempty"`
}

// ClassifyComplexity reports whether raw text holds more content than the
// form editor should rewrite. Text that does not parse is complex so that it
// is never overwritten by a form round-trip. Blank text is simple.
func ClassifyComplexity(text string) Complexity {
	if Blank(text) {
		return Complexity{}
	}
	p, err := Deserialize(text)
	if err != nil {
		return Complexity{IsComplex: true, Reasons: []string{"unparseable: " + err.Error()}}
	}
	return p.Complexity()
}

// Blank reports text with nothing but whitespace. It is the serialized form
// of a document nobody has started filling in.
func Blank(text string) bool { return strings.TrimSpace(text) == "" }

// Complexity classifies the text this document was parsed from.
func (p *Parsed) Complexity() Complexity {
	var reasons []string
	c := p.counts
	if c.summary > MaxSummaryItems {
		reasons = append(reasons, fmt.Sprintf("summary has %d items (max %d)", c.summary, MaxSummaryItems))
	}
	if c.experience > MaxExperienceEntries {
		reasons = append(reasons, fmt.Sprintf("experience has %d entries (max %d)", c.experience, MaxExperienceEntries))
	}
	if c.projects > MaxProjectEntries {
		reasons = append(reasons, fmt.Sprintf("projects has %d entries (max %d)", c.projects, MaxProjectEntries))
	}
	if c.technologies > MaxTechnologyEntries {
		reasons = append(reasons, fmt.Sprintf("technologies has %d entries (max %d)", c.technologies, MaxTechnologyEntries))
	}
	if c.maxExperienceHighlights > MaxExperienceHighlights {
		reasons = append(reasons, fmt.Sprintf("an experience entry has %d highlights (max %d)", c.maxExperienceHighlights, MaxExperienceHighlights))
	}
	if c.maxProjectHighlights > MaxProjectHighlightsPerItem {
		reasons = append(reasons, fmt.Sprintf("a project has %d highlights (max %d)", c.maxProjectHighlights, MaxProjectHighlightsPerItem))
	}
	return Complexity{IsComplex: len(reasons) > 0, Reasons: reasons}
}
