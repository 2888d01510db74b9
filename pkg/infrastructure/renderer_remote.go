package infrastructure

import (
	"context"

	"alpha-resume/internal/model"
	"alpha-resume/pkg/backend"
)

// RemoteRenderer delegates rendering to the analysis service.
type RemoteRenderer struct {
	Client *backend.Client
}

func NewRemoteRenderer(c *backend.Client) *RemoteRenderer { return &RemoteRenderer{Client: c} }

func (r *RemoteRenderer) Render(ctx context.Context, yamlContent string, theme model.Theme) ([]byte, error) {
	return r.Client.RenderPDF(ctx, yamlContent, string(theme.OrDefault()))
}
