package infrastructure

import (
	"bytes"
	"context"
	"embed"
	"fmt"
	"html/template"
	"os"
	"path/filepath"
	"time"

	"alpha-resume/internal/codec"
	"alpha-resume/internal/domain"
	"alpha-resume/internal/model"

	"github.com/chromedp/cdproto/page"
	"github.com/chromedp/chromedp"
)

//go:embed templates/resume.html.tmpl
var templateFS embed.FS

// themeStyle values are trusted CSS fragments.
type themeStyle struct {
	Font        template.CSS
	Accent      template.CSS
	HeaderAlign template.CSS
	TitleCase   template.CSS
}

var themeStyles = map[model.Theme]themeStyle{
	model.ThemeEngineeringClassic: {"'Source Sans Pro', Helvetica, Arial, sans-serif", "#004f90", "left", "none"},
	model.ThemeClassicDesign:      {"Georgia, 'Times New Roman', serif", "#00305e", "center", "uppercase"},
	model.ThemeEngineeringDesign:  {"Helvetica, Arial, sans-serif", "#1f1f1f", "left", "uppercase"},
	model.ThemeModernDesign:       {"'Inter', 'Segoe UI', Arial, sans-serif", "#0b7285", "left", "none"},
	model.ThemeSB2NovDesign:       {"'Latin Modern Roman', 'Times New Roman', serif", "#000000", "center", "uppercase"},
}

var resumeTemplate = template.Must(template.New("resume.html.tmpl").Funcs(template.FuncMap{
	"dates": func(start, end string) string {
		switch {
		case start == "" && end == "":
			return ""
		case end == model.PresentSentinel:
			return start + " - Present"
		case end == "":
			return start
		}
		return start + " - " + end
	},
}).ParseFS(templateFS, "templates/resume.html.tmpl"))

// RenderHTML lays the document out as a standalone HTML page styled for the
// theme.
func RenderHTML(doc model.Document, theme model.Theme) (string, error) {
	style, ok := themeStyles[theme.OrDefault()]
	if !ok {
		style = themeStyles[model.DefaultTheme]
	}
	var buf bytes.Buffer
	if err := resumeTemplate.Execute(&buf, map[string]interface{}{"Doc": doc, "Style": style}); err != nil {
		return "", err
	}
	return buf.String(), nil
}

// ChromedpRenderer prints the document through headless Chrome. It needs no
// RenderCV install, only a Chrome binary.
type ChromedpRenderer struct {
	ChromePath string
	WorkDir    string
}

func NewChromedpRenderer(chromePath, workDir string) *ChromedpRenderer {
	return &ChromedpRenderer{ChromePath: chromePath, WorkDir: workDir}
}

func (r *ChromedpRenderer) Render(ctx context.Context, yamlContent string, theme model.Theme) ([]byte, error) {
	parsed, err := codec.Deserialize(yamlContent)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrRendererFailed, err)
	}
	html, err := RenderHTML(parsed.Document, theme)
	if err != nil {
		return nil, fmt.Errorf("%w: template: %v", domain.ErrRendererFailed, err)
	}
	pdf, err := r.RenderHTMLToPDF(ctx, html)
	if err != nil {
		return nil, fmt.Errorf("%w: chrome: %v", domain.ErrRendererFailed, err)
	}
	return pdf, nil
}

func (r *ChromedpRenderer) RenderHTMLToPDF(ctx context.Context, html string) ([]byte, error) {
	opts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("headless", true),
		chromedp.Flag("no-sandbox", true),
		chromedp.Flag("disable-gpu", true),
		chromedp.Flag("disable-dev-shm-usage", true),
	)
	if r.ChromePath != "" {
		opts = append(opts, chromedp.ExecPath(r.ChromePath))
	}

	allocCtx, cancel := chromedp.NewExecAllocator(ctx, opts...)
	defer cancel()

	cctx, cancelCtx := chromedp.NewContext(allocCtx)
	defer cancelCtx()

	ctx2, cancel2 := context.WithTimeout(cctx, 60*time.Second)
	defer cancel2()

	tmpDir, err := os.MkdirTemp(r.WorkDir, "resume-")
	if err != nil {
		return nil, err
	}
	defer os.RemoveAll(tmpDir)

	htmlPath := filepath.Join(tmpDir, "index.html")
	if err := os.WriteFile(htmlPath, []byte(html), 0o644); err != nil {
		return nil, err
	}

	var pdfBuf []byte
	err = chromedp.Run(ctx2,
		chromedp.Navigate("file://"+filepath.ToSlash(htmlPath)),
		chromedp.WaitReady("body", chromedp.ByQuery),
		chromedp.ActionFunc(func(ctx context.Context) error {
			var err error
			// A4: 210mm x 297mm -> inches: 8.27 x 11.69
			pdfBuf, _, err = page.PrintToPDF().WithPrintBackground(true).
				WithPaperWidth(8.27).
				WithPaperHeight(11.69).
				WithPreferCSSPageSize(true).
				Do(ctx)
			return err
		}),
	)
	if err != nil {
		return nil, err
	}
	if !bytes.HasPrefix(pdfBuf, []byte("%PDF")) {
		return nil, fmt.Errorf("%w: chrome returned %d bytes that are not a PDF", domain.ErrNoOutput, len(pdfBuf))
	}
	return pdfBuf, nil
}
