package domain

// AnalysisRequest is an uploaded resume plus a job description, sent to the
// analysis service to generate a tailored document for a new session.
type AnalysisRequest struct {
	ResumeFile     []byte
	ResumeFilename string
	// Exactly one of JobDescriptionFile and JobDescriptionText is used; the
	// file wins when both are set.
	JobDescriptionFile     []byte
	JobDescriptionFilename string
	JobDescriptionText     string

	Location      string
	Email         string
	Phone         string
	LinkedIn      string
	GitHub        string
	JobRole       string
	TargetCompany string
}

// AnalysisResult seeds an editing session.
type AnalysisResult struct {
	ProjectID          string   `json:"project_id,omitempty"`
	YAMLContent        string   `json:"yamlContent"`
	ATSScore           *float64 `json:"ats_score,omitempty"`
	OriginalATSScore   *float64 `json:"original_ats_score,omitempty"`
	JobDescriptionPath string   `json:"jobDescriptionPath,omitempty"`
	OriginalResumePath string   `json:"originalResumePath,omitempty"`
}
