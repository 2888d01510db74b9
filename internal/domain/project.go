package domain

import (
	"time"

	"github.com/google/uuid"
)

// Project is a stored resume: the serialized document, the theme it was last
// rendered with and the last known compatibility score.
type Project struct {
	ID            uuid.UUID `json:"id"`
	UserID        string    `json:"user_id,omitempty"`
	JobRole       string    `json:"job_role,omitempty"`
	TargetCompany string    `json:"target_company,omitempty"`
	YAMLContent   string    `json:"yaml_content"`
	Theme         string    `json:"theme,omitempty"`
	ATSScore      *float64  `json:"ats_score,omitempty"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
}

// ProjectDocument is what an editing session loads from and saves to
// project storage. ATSScore is ignored on save.
type ProjectDocument struct {
	YAMLContent string   `json:"yaml_content"`
	Theme       string   `json:"theme,omitempty"`
	ATSScore    *float64 `json:"ats_score,omitempty"`
}
