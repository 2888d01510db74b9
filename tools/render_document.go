// Renders a resume YAML file to PDF once:
//
//	go run tools/render_document.go resume.yaml --theme modernDesign -o resume.pdf
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"time"

	"alpha-resume/internal/codec"
	"alpha-resume/internal/model"
	"alpha-resume/internal/usecase"
	"alpha-resume/pkg/backend"
	"alpha-resume/pkg/infrastructure"

	"github.com/spf13/cobra"
)

func main() {
	if err := rootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func rootCmd() *cobra.Command {
	var (
		out        string
		themeName  string
		renderer   string
		designs    string
		backendURL string
		timeout    time.Duration
	)

	cmd := &cobra.Command{
		Use:   "render-document <resume.yaml>",
		Short: "Render a resume YAML file to PDF",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			b, err := os.ReadFile(args[0])
			if err != nil {
				return err
			}
			theme, err := model.ParseTheme(themeName)
			if err != nil {
				return err
			}

			var r usecase.Renderer
			switch renderer {
			case "rendercv":
				r = infrastructure.NewRenderCVRenderer("rendercv", designs, os.TempDir(), slog.Default())
			case "chromedp":
				r = infrastructure.NewChromedpRenderer(os.Getenv("CHROME_PATH"), os.TempDir())
			case "remote":
				r = infrastructure.NewRemoteRenderer(backend.NewClient(backendURL, 3, nil))
			default:
				return fmt.Errorf("unknown renderer %q", renderer)
			}

			ctx, cancel := context.WithTimeout(cmd.Context(), timeout)
			defer cancel()
			pdf, err := r.Render(ctx, string(b), theme)
			if err != nil {
				return err
			}
			if err := os.WriteFile(out, pdf, 0o644); err != nil {
				return err
			}
			fmt.Printf("wrote %s (%d bytes)\n", out, len(pdf))
			return nil
		},
	}

	cmd.Flags().StringVarP(&out, "out", "o", "resume.pdf", "Output PDF")
	cmd.Flags().StringVar(&themeName, "theme", string(model.DefaultTheme), "Theme id")
	cmd.Flags().StringVar(&renderer, "renderer", "rendercv", "rendercv, chromedp or remote")
	cmd.Flags().StringVar(&designs, "designs", "config/designs", "Design files directory (rendercv)")
	cmd.Flags().StringVar(&backendURL, "backend-url", "http://localhost:8000", "Analysis service (remote)")
	cmd.Flags().DurationVar(&timeout, "timeout", time.Minute, "Render timeout")

	cmd.AddCommand(checkCmd())
	return cmd
}

// checkCmd reports whether a file parses and whether the form editor can
// rewrite it without losing content.
func checkCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "check <resume.yaml>",
		Short: "Parse a resume YAML file and report its complexity",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			b, err := os.ReadFile(args[0])
			if err != nil {
				return err
			}
			parsed, err := codec.Deserialize(string(b))
			if err != nil {
				return err
			}
			c := parsed.Complexity()
			fmt.Printf("name: %s\ncomplex: %t\n", parsed.Document.PersonalInfo.Name, c.IsComplex)
			for _, r := range c.Reasons {
				fmt.Printf("  - %s\n", r)
			}
			return nil
		},
	}
}
