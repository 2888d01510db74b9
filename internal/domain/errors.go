package domain

import (
	"errors"
)

var (
	// ErrRendererFailed means the renderer tool ran (or tried to) and failed.
	ErrRendererFailed = errors.New("renderer failed")
	// ErrNoOutput means the renderer exited cleanly but produced no artifact.
	ErrNoOutput = errors.New("renderer produced no output")
	// ErrServiceUnavailable means the analysis service could not be reached.
	ErrServiceUnavailable = errors.New("service unavailable")
	// ErrParse means raw text could not be turned into a document.
	ErrParse = errors.New("document parse error")

	ErrNotFound     = errors.New("not found")
	ErrUnauthorized = errors.New("unauthorized")
)

// UserMessage turns an error from the render or scoring path into text that
// tells the user what to check.
func UserMessage(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrServiceUnavailable):
		return "Cannot reach the resume service. Make sure the analysis backend is running (default http://localhost:8000) and try again."
	case errors.Is(err, ErrNoOutput):
		return "The renderer ran but produced no PDF. Check that the design files are accessible and the resume YAML is valid."
	case errors.Is(err, ErrRendererFailed):
		return "Render error: " + err.Error() + ". Check that RenderCV is installed (pip install rendercv) and that the design files are accessible."
	case errors.Is(err, ErrUnauthorized):
		return "Your session has expired. Sign in again."
	case errors.Is(err, ErrNotFound):
		return "The requested resource was not found."
	default:
		return err.Error()
	}
}
