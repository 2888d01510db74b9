// Package backend talks to the FastAPI analysis service: project storage,
// compatibility scoring, resume analysis and remote rendering.
package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"net/url"
	"strings"
	"time"

	"alpha-resume/internal/domain"
)

// APIError is a non-2xx answer from the service. Detail is FastAPI's
// "detail" field when present.
type APIError struct {
	Status int
	Detail string
}

func (e *APIError) Error() string {
	if e.Detail == "" {
		return fmt.Sprintf("backend returned %d", e.Status)
	}
	return fmt.Sprintf("backend returned %d: %s", e.Status, e.Detail)
}

// Unwrap maps auth and lookup failures onto the domain taxonomy.
func (e *APIError) Unwrap() error {
	switch e.Status {
	case http.StatusUnauthorized, http.StatusForbidden:
		return domain.ErrUnauthorized
	case http.StatusNotFound:
		return domain.ErrNotFound
	case http.StatusBadGateway, http.StatusServiceUnavailable, http.StatusGatewayTimeout:
		return domain.ErrServiceUnavailable
	}
	return nil
}

type Client struct {
	BaseURL string
	HTTP    *http.Client
	// Retries is the number of attempts for requests that fail before a
	// response arrives.
	Retries int
	// Backoff is the first retry delay; it doubles on every attempt.
	Backoff time.Duration
	Logger  *slog.Logger
}

func NewClient(baseURL string, retries int, logger *slog.Logger) *Client {
	if baseURL == "" {
		baseURL = "http://localhost:8000"
	}
	if retries <= 0 {
		retries = 3
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Client{
		BaseURL: strings.TrimRight(baseURL, "/"),
		HTTP:    &http.Client{Timeout: 60 * time.Second},
		Retries: retries,
		Backoff: time.Second,
		Logger:  logger,
	}
}

type request struct {
	method      string
	path        string
	body        []byte
	contentType string
	token       string
	accept      string
}

// doWithRetry performs the request, retrying with exponential backoff while
// the service cannot be reached. Any HTTP response ends the retries.
func (c *Client) doWithRetry(ctx context.Context, r request) (*http.Response, error) {
	attempts := max(c.Retries, 1)
	var lastErr error
	for i := 0; i < attempts; i++ {
		req, err := http.NewRequestWithContext(ctx, r.method, c.BaseURL+r.path, bytes.NewReader(r.body))
		if err != nil {
			return nil, err
		}
		if r.contentType != "" {
			req.Header.Set("Content-Type", r.contentType)
		}
		if r.token != "" {
			req.Header.Set("Authorization", "Bearer "+r.token)
		}
		if r.accept != "" {
			req.Header.Set("Accept", r.accept)
		}

		resp, err := c.HTTP.Do(req)
		if err == nil {
			return resp, nil
		}
		lastErr = err
		c.Logger.Debug("backend request failed", "method", r.method, "path", r.path, "attempt", i+1, "error", err)
		if i < attempts-1 {
			backoff := c.Backoff * time.Duration(1<<i)
			select {
			case <-time.After(backoff):
			case <-ctx.Done():
				return nil, ctx.Err()
			}
		}
	}
	return nil, fmt.Errorf("%w: %s %s: %v", domain.ErrServiceUnavailable, r.method, r.path, lastErr)
}

// call runs the request and decodes a JSON answer into out (when non-nil).
func (c *Client) call(ctx context.Context, r request, out interface{}) error {
	resp, err := c.doWithRetry(ctx, r)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read %s: %w", r.path, err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return apiError(resp.StatusCode, body)
	}
	if out == nil {
		return nil
	}
	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("decode %s: %w", r.path, err)
	}
	return nil
}

func apiError(status int, body []byte) *APIError {
	var payload struct {
		Detail json.RawMessage `json:"detail"`
		Error  string          `json:"error"`
	}
	e := &APIError{Status: status}
	if json.Unmarshal(body, &payload) == nil {
		var s string
		switch {
		case len(payload.Detail) > 0 && json.Unmarshal(payload.Detail, &s) == nil:
			e.Detail = s
		case len(payload.Detail) > 0:
			e.Detail = string(payload.Detail)
		default:
			e.Detail = payload.Error
		}
	}
	return e
}

func jsonRequest(method, path, token string, v interface{}) (request, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return request{}, err
	}
	return request{method: method, path: path, body: b, contentType: "application/json", token: token}, nil
}

// Health reports the service's status string ("healthy" when up).
func (c *Client) Health(ctx context.Context) (string, error) {
	var out struct {
		Status string `json:"status"`
	}
	if err := c.call(ctx, request{method: http.MethodGet, path: "/health"}, &out); err != nil {
		return "", err
	}
	return out.Status, nil
}

// LoadProject fetches a stored project's document and last score.
func (c *Client) LoadProject(ctx context.Context, projectID, token string) (*domain.ProjectDocument, error) {
	var out domain.ProjectDocument
	path := "/project/" + url.PathEscape(projectID) + "/yaml"
	if err := c.call(ctx, request{method: http.MethodGet, path: path, token: token}, &out); err != nil {
		return nil, fmt.Errorf("load project: %w", err)
	}
	return &out, nil
}

// SaveProject stores the document text and theme of an existing project.
func (c *Client) SaveProject(ctx context.Context, projectID string, doc domain.ProjectDocument, token string) error {
	body := map[string]string{"yaml_content": doc.YAMLContent}
	if doc.Theme != "" {
		body["theme"] = doc.Theme
	}
	r, err := jsonRequest(http.MethodPut, "/project/"+url.PathEscape(projectID)+"/yaml", token, body)
	if err != nil {
		return err
	}
	if err := c.call(ctx, r, nil); err != nil {
		return fmt.Errorf("save project: %w", err)
	}
	return nil
}

// CreateProject stores a new project and returns its id.
func (c *Client) CreateProject(ctx context.Context, p domain.Project, token string) (string, error) {
	r, err := jsonRequest(http.MethodPost, "/create-project", token, map[string]string{
		"job_role":       p.JobRole,
		"target_company": p.TargetCompany,
		"yaml_content":   p.YAMLContent,
		"theme":          p.Theme,
	})
	if err != nil {
		return "", err
	}
	var out struct {
		ProjectID string `json:"project_id"`
	}
	if err := c.call(ctx, r, &out); err != nil {
		return "", fmt.Errorf("create project: %w", err)
	}
	if out.ProjectID == "" {
		return "", errors.New("create project: response has no project_id")
	}
	return out.ProjectID, nil
}

// ScoreWithStoredJD scores a rendered PDF against a job description the
// service stored during analysis.
func (c *Client) ScoreWithStoredJD(ctx context.Context, pdf []byte, jobDescriptionPath string) (float64, error) {
	var body bytes.Buffer
	w := multipart.NewWriter(&body)
	fw, err := w.CreateFormFile("resumeFile", "resume.pdf")
	if err != nil {
		return 0, err
	}
	if _, err := fw.Write(pdf); err != nil {
		return 0, err
	}
	if err := w.WriteField("jobDescriptionPath", jobDescriptionPath); err != nil {
		return 0, err
	}
	if err := w.Close(); err != nil {
		return 0, err
	}

	var out struct {
		Success  *bool    `json:"success"`
		ATSScore *float64 `json:"ats_score"`
		Error    string   `json:"error"`
	}
	r := request{method: http.MethodPost, path: "/get-ats-score-with-stored-jd", body: body.Bytes(), contentType: w.FormDataContentType()}
	if err := c.call(ctx, r, &out); err != nil {
		return 0, fmt.Errorf("score: %w", err)
	}
	if out.Success != nil && !*out.Success {
		return 0, fmt.Errorf("score: %s", out.Error)
	}
	if out.ATSScore == nil {
		return 0, errors.New("score: response has no ats_score")
	}
	return *out.ATSScore, nil
}

// ScoreProject scores a project's current text against its stored job
// description. The service also records the text and score.
func (c *Client) ScoreProject(ctx context.Context, projectID, yamlContent, token string) (float64, error) {
	form := url.Values{"yaml_content": {yamlContent}}
	r := request{
		method:      http.MethodPost,
		path:        "/project/" + url.PathEscape(projectID) + "/calculate-ats",
		body:        []byte(form.Encode()),
		contentType: "application/x-www-form-urlencoded",
		token:       token,
	}
	var out struct {
		ATSScore *float64 `json:"ats_score"`
	}
	if err := c.call(ctx, r, &out); err != nil {
		return 0, fmt.Errorf("score project: %w", err)
	}
	if out.ATSScore == nil {
		return 0, errors.New("score project: response has no ats_score")
	}
	return *out.ATSScore, nil
}

// RenderPDF asks the service to render the document with a theme.
func (c *Client) RenderPDF(ctx context.Context, yamlContent, theme string) ([]byte, error) {
	r, err := jsonRequest(http.MethodPost, "/render-resume", "", map[string]string{
		"yamlContent": yamlContent,
		"theme":       theme,
	})
	if err != nil {
		return nil, err
	}
	r.accept = "application/pdf"

	resp, err := c.doWithRetry(ctx, r)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read render: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w: %v", domain.ErrRendererFailed, apiError(resp.StatusCode, body))
	}
	if !bytes.HasPrefix(body, []byte("%PDF")) {
		return nil, fmt.Errorf("%w: remote renderer returned %s", domain.ErrNoOutput, resp.Header.Get("Content-Type"))
	}
	return body, nil
}

// Analyze uploads a resume and job description and returns the tailored
// document the service generated.
func (c *Client) Analyze(ctx context.Context, req domain.AnalysisRequest) (*domain.AnalysisResult, error) {
	var body bytes.Buffer
	w := multipart.NewWriter(&body)
	for _, f := range []struct{ name, value string }{
		{"location", req.Location},
		{"email", req.Email},
		{"phone", req.Phone},
		{"linkedin", req.LinkedIn},
		{"github", req.GitHub},
		{"jobRole", req.JobRole},
		{"targetCompany", req.TargetCompany},
	} {
		if err := w.WriteField(f.name, f.value); err != nil {
			return nil, err
		}
	}
	if err := writeFile(w, "resumeFile", req.ResumeFilename, "resume.pdf", req.ResumeFile); err != nil {
		return nil, err
	}
	switch {
	case len(req.JobDescriptionFile) > 0:
		if err := writeFile(w, "jobDescriptionFile", req.JobDescriptionFilename, "job_description.txt", req.JobDescriptionFile); err != nil {
			return nil, err
		}
	case req.JobDescriptionText != "":
		if err := w.WriteField("jobDescriptionText", req.JobDescriptionText); err != nil {
			return nil, err
		}
	default:
		return nil, errors.New("analyze: a job description file or text is required")
	}
	if err := w.Close(); err != nil {
		return nil, err
	}

	var out struct {
		domain.AnalysisResult
		Success *bool  `json:"success"`
		Error   string `json:"error"`
	}
	r := request{method: http.MethodPost, path: "/revamp-existing", body: body.Bytes(), contentType: w.FormDataContentType()}
	if err := c.call(ctx, r, &out); err != nil {
		return nil, fmt.Errorf("analyze: %w", err)
	}
	if out.Success != nil && !*out.Success {
		return nil, fmt.Errorf("analyze: %s", out.Error)
	}
	if strings.TrimSpace(out.YAMLContent) == "" {
		return nil, errors.New("analyze: response has no yamlContent")
	}
	res := out.AnalysisResult
	return &res, nil
}

func writeFile(w *multipart.Writer, field, name, fallback string, data []byte) error {
	if name == "" {
		name = fallback
	}
	fw, err := w.CreateFormFile(field, name)
	if err != nil {
		return err
	}
	_, err = fw.Write(data)
	return err
}
