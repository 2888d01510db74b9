package usecase

import (
	"errors"
	"fmt"
	"strings"
	"sync"

	"alpha-resume/internal/model"
)

// Step is one page of the form editor.
type Step struct {
	Title    string        `json:"title"`
	Section  model.Section `json:"section"`
	Optional bool          `json:"optional"`
}

// Steps lists the form editor's pages in order.
var Steps = func() []Step {
	titles := map[model.Section]string{
		model.SectionPersonalInfo:   "Personal Information",
		model.SectionSocialNetworks: "Social Networks",
		model.SectionSummary:        "Professional Summary",
		model.SectionExperience:     "Work Experience",
		model.SectionProjects:       "Projects",
		model.SectionEducation:      "Education",
		model.SectionTechnologies:   "Technologies",
		model.SectionCertifications: "Certifications",
		model.SectionAchievements:   "Achievements",
	}
	steps := make([]Step, 0, len(model.Sections))
	for _, sec := range model.Sections {
		steps = append(steps, Step{Title: titles[sec], Section: sec, Optional: model.IsOptional(sec)})
	}
	return steps
}()

var (
	ErrStepIncomplete = errors.New("step is incomplete")
	ErrStepOutOfRange = errors.New("step out of range")
	ErrFinalized      = errors.New("form already finalized")
)

// StepValidationResult holds validation state for a step.
type StepValidationResult struct {
	Valid   bool     `json:"valid"`
	Missing []string `json:"missing,omitempty"`
}

// ValidateStep checks the section behind step i and names what is missing.
func ValidateStep(doc *model.Document, i int) StepValidationResult {
	if i < 0 || i >= len(Steps) {
		return StepValidationResult{Missing: []string{"step"}}
	}
	sec := Steps[i].Section
	if doc.IsComplete(sec) {
		return StepValidationResult{Valid: true}
	}

	var missing []string
	switch sec {
	case model.SectionPersonalInfo:
		if strings.TrimSpace(doc.PersonalInfo.Name) == "" {
			missing = append(missing, "personalInfo.name")
		}
		if !model.PlausibleEmail(doc.PersonalInfo.Email) {
			missing = append(missing, "personalInfo.email")
		}
	case model.SectionSummary:
		missing = append(missing, "summary")
	case model.SectionExperience:
		missing = append(missing, "experience.company", "experience.position")
	case model.SectionEducation:
		missing = append(missing, "education.institution")
	case model.SectionTechnologies:
		missing = append(missing, "technologies.label", "technologies.details")
	default:
		missing = append(missing, string(sec))
	}
	return StepValidationResult{Missing: missing}
}

// StepperState is the stepper as shown above the form.
type StepperState struct {
	Current    int                  `json:"current"`
	Title      string               `json:"title"`
	Completed  []bool               `json:"completed"`
	Finalized  bool                 `json:"finalized"`
	Validation StepValidationResult `json:"validation"`
}

// Stepper walks the form editor's steps. Moving forward is gated on the
// current step's section being complete.
type Stepper struct {
	mu        sync.Mutex
	current   int
	completed []bool
	finalized bool
}

func NewStepper() *Stepper {
	return &Stepper{completed: make([]bool, len(Steps))}
}

// Next advances one step if the current one is complete.
func (s *Stepper) Next(doc *model.Document) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.finalized {
		return ErrFinalized
	}
	if s.current == len(Steps)-1 {
		return fmt.Errorf("%w: already on the last step", ErrStepOutOfRange)
	}
	if v := ValidateStep(doc, s.current); !v.Valid {
		return fmt.Errorf("%w: %s missing %s", ErrStepIncomplete, Steps[s.current].Title, strings.Join(v.Missing, ", "))
	}
	s.completed[s.current] = true
	s.current++
	return nil
}

func (s *Stepper) Prev() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.current == 0 {
		return fmt.Errorf("%w: already on the first step", ErrStepOutOfRange)
	}
	s.current--
	return nil
}

// GoTo jumps to step i. Going back is always allowed; going forward stops
// at the first incomplete required step.
func (s *Stepper) GoTo(doc *model.Document, i int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if i < 0 || i >= len(Steps) {
		return fmt.Errorf("%w: %d", ErrStepOutOfRange, i)
	}
	if s.finalized {
		return ErrFinalized
	}
	for j := s.current; j < i; j++ {
		if v := ValidateStep(doc, j); !v.Valid {
			return fmt.Errorf("%w: %s missing %s", ErrStepIncomplete, Steps[j].Title, strings.Join(v.Missing, ", "))
		}
		s.completed[j] = true
	}
	s.current = i
	return nil
}

// Finalize completes the form once every required step is complete.
func (s *Stepper) Finalize(doc *model.Document) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.finalized {
		return ErrFinalized
	}
	for i := range Steps {
		if v := ValidateStep(doc, i); !v.Valid {
			return fmt.Errorf("%w: %s missing %s", ErrStepIncomplete, Steps[i].Title, strings.Join(v.Missing, ", "))
		}
	}
	for i := range s.completed {
		s.completed[i] = true
	}
	s.current = len(Steps) - 1
	s.finalized = true
	return nil
}

func (s *Stepper) State(doc *model.Document) StepperState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return StepperState{
		Current:    s.current,
		Title:      Steps[s.current].Title,
		Completed:  append([]bool(nil), s.completed...),
		Finalized:  s.finalized,
		Validation: ValidateStep(doc, s.current),
	}
}
