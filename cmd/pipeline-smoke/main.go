package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"os"
	"time"

	"alpha-resume/internal/model"
	"alpha-resume/internal/usecase"
	"alpha-resume/pkg/backend"
	"alpha-resume/pkg/infrastructure"
)

// Drives a session end to end against a mock analysis service: load,
// form edit, theme switch, render, score.

const sampleYAML = `cv:
  name: Test User
  email: t@example.com
  sections:
    summary:
      - Backend engineer
    experience:
      - company: Acme
        position: Engineer
        start_date: 2021-01
        end_date: present
        highlights:
          - Cut p99 latency in half
design:
  theme: engineeringClassic
`

func startMockBackend() (*http.Server, string, error) {
	mux := http.NewServeMux()
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, map[string]string{"status": "healthy"})
	})
	mux.HandleFunc("/render-resume", func(w http.ResponseWriter, r *http.Request) {
		var req map[string]string
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req["yamlContent"] == "" {
			w.WriteHeader(http.StatusBadRequest)
			writeJSON(w, map[string]string{"detail": "yamlContent is required"})
			return
		}
		w.Header().Set("Content-Type", "application/pdf")
		w.Write(infrastructure.PlaceholderPDF("Mock render", "theme "+req["theme"]))
	})
	mux.HandleFunc("/get-ats-score-with-stored-jd", func(w http.ResponseWriter, r *http.Request) {
		if err := r.ParseMultipartForm(10 << 20); err != nil {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		f, _, err := r.FormFile("resumeFile")
		if err != nil {
			writeJSON(w, map[string]any{"success": false, "error": "resumeFile missing"})
			return
		}
		defer f.Close()
		b, _ := io.ReadAll(f)
		writeJSON(w, map[string]any{"success": true, "ats_score": float64(len(b) % 100)})
	})

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		return nil, "", err
	}
	srv := &http.Server{Handler: mux}
	go func() {
		if err := srv.Serve(ln); err != nil && err != http.ErrServerClosed {
			slog.Error("mock backend failed", "error", err)
		}
	}()
	return srv, "http://" + ln.Addr().String(), nil
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(v)
}

func main() {
	debug := flag.Bool("debug", false, "log at debug level")
	flag.Parse()
	level := slog.LevelInfo
	if *debug {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))

	srv, url, err := startMockBackend()
	if err != nil {
		fmt.Fprintf(os.Stderr, "mock backend: %v\n", err)
		os.Exit(2)
	}
	defer srv.Shutdown(context.Background())

	client := backend.NewClient(url, 1, logger)
	sessions := usecase.NewSessionManager(infrastructure.NewRemoteRenderer(client), nil, client, client, usecase.ManagerConfig{
		Sync:     usecase.SyncConfig{EditIdle: 200 * time.Millisecond},
		Pipeline: usecase.PipelineConfig{Debounce: 200 * time.Millisecond, AutoRender: true},
		Logger:   logger,
	})
	defer sessions.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Second)
	defer cancel()

	s, err := sessions.Create(ctx, usecase.SessionOptions{YAMLContent: sampleYAML, JobDescriptionPath: "smoke/job_description.txt"})
	if err != nil {
		fmt.Printf("create session failed: %v\n", err)
		os.Exit(1)
	}
	if err := s.Sync.SwitchEditor(usecase.EditorForm); err != nil {
		fmt.Printf("switch editor failed: %v\n", err)
		os.Exit(1)
	}
	if _, err := s.Sync.UpdateSection(model.SectionSummary, []string{"Backend engineer", "Go and Postgres"}); err != nil {
		fmt.Printf("form edit failed: %v\n", err)
		os.Exit(1)
	}
	s.SetTheme(model.ThemeModernDesign)

	time.Sleep(500 * time.Millisecond)
	s.Pipeline.Wait()

	out, _ := json.MarshalIndent(s.State(), "", "  ")
	fmt.Println(string(out))
	if st := s.Pipeline.Snapshot(); st.Status != usecase.RenderSucceeded {
		fmt.Printf("render did not succeed: %s %s\n", st.Status, st.ErrorMessage)
		os.Exit(1)
	}
	fmt.Println("pipeline smoke test passed")
}
