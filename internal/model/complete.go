package model

import (
	"net/mail"
	"strings"

	"golang.org/x/net/publicsuffix"
)

// IsComplete gates the form stepper. Optional sections are always complete.
func (d *Document) IsComplete(section Section) bool {
	switch section {
	case SectionPersonalInfo:
		return strings.TrimSpace(d.PersonalInfo.Name) != "" && PlausibleEmail(d.PersonalInfo.Email)
	case SectionSummary:
		for _, s := range d.Summary {
			if strings.TrimSpace(s) != "" {
				return true
			}
		}
		return false
	case SectionExperience:
		for _, e := range d.Experience {
			if strings.TrimSpace(e.Company) != "" && strings.TrimSpace(e.Position) != "" {
				return true
			}
		}
		return false
	case SectionEducation:
		for _, e := range d.Education {
			if strings.TrimSpace(e.Institution) != "" {
				return true
			}
		}
		return false
	case SectionTechnologies:
		for _, t := range d.Technologies {
			if strings.TrimSpace(t.Label) != "" && strings.TrimSpace(t.Details) != "" {
				return true
			}
		}
		return false
	}
	return true
}

// IsOptional reports sections the stepper never blocks on.
func IsOptional(section Section) bool {
	switch section {
	case SectionSocialNetworks, SectionProjects, SectionCertifications, SectionAchievements:
		return true
	}
	return false
}

// PlausibleEmail accepts a bare address whose domain has a registrable
// public suffix, e.g. john@example.com but not john@localhost.
func PlausibleEmail(s string) bool {
	s = strings.TrimSpace(s)
	if s == "" {
		return false
	}
	addr, err := mail.ParseAddress(s)
	if err != nil || addr.Address != s {
		return false
	}
	at := strings.LastIndexByte(s, '@')
	domain := strings.ToLower(s[at+1:])
	if !strings.Contains(domain, ".") {
		return false
	}
	_, err = publicsuffix.EffectiveTLDPlusOne(domain)
	return err == nil
}
