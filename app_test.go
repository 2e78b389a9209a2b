package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"mcq-paper/internal/importer"
	"mcq-paper/internal/issues"
	"mcq-paper/internal/logger"
	"mcq-paper/internal/types"
)

// newTestApp creates a started App whose config lives in a temp dir.
func newTestApp(t *testing.T) *App {
	t.Helper()
	app, err := NewAppWithConfig(filepath.Join(t.TempDir(), "config.yaml"))
	if err != nil {
		t.Fatalf("NewAppWithConfig() returned error: %v", err)
	}
	app.startup(context.Background())
	return app
}

func TestNewApp(t *testing.T) {
	app := NewApp()
	if app == nil {
		t.Fatal("NewApp() returned nil")
	}
	if app.GetStatus().Phase != types.PhaseIdle {
		t.Errorf("Expected idle phase, got %s", app.GetStatus().Phase)
	}
}

func TestApp_Startup(t *testing.T) {
	app := newTestApp(t)

	if app.config == nil {
		t.Error("ConfigManager should be initialized after startup")
	}
	if app.adapter == nil {
		t.Error("render adapter should be initialized after startup")
	}
	if app.finisher == nil {
		t.Error("PDF finisher should be initialized after startup")
	}
	if app.issues == nil {
		t.Error("issue collector should be initialized after startup")
	}
}

func TestApp_BuildWithoutQuiz(t *testing.T) {
	app := newTestApp(t)

	_, err := app.BuildPaper(BuildOptions{OutputDir: t.TempDir()})
	var appErr *types.AppError
	if !errors.As(err, &appErr) || appErr.Code != types.ErrInvalidInput {
		t.Fatalf("Expected ErrInvalidInput, got %v", err)
	}
	if app.GetStatus().Phase != types.PhaseError {
		t.Errorf("Expected error phase, got %s", app.GetStatus().Phase)
	}
}

func TestApp_BuildSample(t *testing.T) {
	app := newTestApp(t)
	outDir := t.TempDir()

	var (
		mu     sync.Mutex
		phases []types.ProcessPhase
	)
	app.SetStatusCallback(func(s *types.Status) {
		mu.Lock()
		defer mu.Unlock()
		phases = append(phases, s.Phase)
	})

	if _, err := app.LoadSampleQuiz(); err != nil {
		t.Fatalf("LoadSampleQuiz() returned error: %v", err)
	}

	result, err := app.BuildPaper(BuildOptions{
		OutputDir:      outDir,
		Name:           "neet",
		NumberingStyle: "(a)",
		AnswerKeyMode:  "KEY_AND_EXPLANATION",
	})
	if err != nil {
		t.Fatalf("BuildPaper() returned error: %v", err)
	}

	if result.Questions != 3 {
		t.Errorf("Expected 3 questions, got %d", result.Questions)
	}
	if result.Unresolved != 0 {
		t.Errorf("Expected every sample answer to resolve, got %d unresolved", result.Unresolved)
	}
	if result.Failures != 0 {
		t.Errorf("Expected no formula failures, got %d", result.Failures)
	}
	if result.HTMLPath != filepath.Join(outDir, "neet.html") {
		t.Errorf("Unexpected HTML path %s", result.HTMLPath)
	}

	data, err := os.ReadFile(result.HTMLPath)
	if err != nil {
		t.Fatalf("Failed to read paper: %v", err)
	}
	html := string(data)
	for _, want := range []string{
		"HUMAN REPRODUCTION DPP-2",
		`<span class="option-label">(b)</span>`,
		"Answer Key &amp; Explanations",
		`<div class="page-break"></div>`,
		`\begin{array}{cc}`,
		"katex.min.js",
	} {
		if !strings.Contains(html, want) {
			t.Errorf("Paper HTML missing %q", want)
		}
	}

	if app.IsProcessing() {
		t.Error("Build should be finished")
	}
	mu.Lock()
	defer mu.Unlock()
	if len(phases) == 0 || phases[len(phases)-1] != types.PhaseComplete {
		t.Errorf("Expected last phase to be complete, got %v", phases)
	}
}

func TestApp_BuildRecordsIssues(t *testing.T) {
	app := newTestApp(t)
	outDir := t.TempDir()

	quiz := `{"quiz": {"title": "Issues", "sections": [{"questions": [
		{"_id": "q1", "question_text": "Broken $\\frac{1}{2$", "option_a": "a", "option_b": "b", "correct_answer": "Z"}
	]}]}}`
	path := filepath.Join(outDir, "quiz.json")
	if err := os.WriteFile(path, []byte(quiz), 0644); err != nil {
		t.Fatalf("Failed to write quiz: %v", err)
	}
	if _, err := app.ImportQuiz(path); err != nil {
		t.Fatalf("ImportQuiz() returned error: %v", err)
	}

	result, err := app.BuildPaper(BuildOptions{OutputDir: outDir, AnswerKeyMode: "KEY_ONLY"})
	if err != nil {
		t.Fatalf("BuildPaper() returned error: %v", err)
	}
	if result.Failures != 1 {
		t.Errorf("Expected 1 formula failure, got %d", result.Failures)
	}
	if result.Unresolved != 1 {
		t.Errorf("Expected 1 unresolved answer, got %d", result.Unresolved)
	}
	if result.IssuesPath == "" {
		t.Fatal("Expected issues to be saved")
	}

	saved, err := issues.LoadJSON(result.IssuesPath)
	if err != nil {
		t.Fatalf("Failed to load issues: %v", err)
	}
	if len(saved.ListByKind(issues.KindMalformedMath)) != 1 {
		t.Error("Expected malformed math issue")
	}
	if len(saved.ListByKind(issues.KindUnresolvedAnswer)) != 1 {
		t.Error("Expected unresolved answer issue")
	}
}

func TestApp_ImportFailures(t *testing.T) {
	app := newTestApp(t)
	dir := t.TempDir()

	_, err := app.ImportQuiz(filepath.Join(dir, "missing.json"))
	var appErr *types.AppError
	if !errors.As(err, &appErr) || appErr.Code != types.ErrFileNotFound {
		t.Errorf("Expected ErrFileNotFound, got %v", err)
	}

	bad := filepath.Join(dir, "bad.json")
	if err := os.WriteFile(bad, []byte(`{"data": []}`), 0644); err != nil {
		t.Fatalf("Failed to write quiz: %v", err)
	}
	result, err := app.ImportQuiz(bad)
	if !errors.As(err, &appErr) || appErr.Code != types.ErrImport {
		t.Errorf("Expected ErrImport, got %v", err)
	}
	if result == nil || result.Message != importer.MsgQuizNotFound {
		t.Errorf("Expected import message to be returned, got %+v", result)
	}
	if app.GetStatus().Error == "" {
		t.Error("Expected status error to be set")
	}
}

func TestApp_InvalidOverrides(t *testing.T) {
	app := newTestApp(t)
	if _, err := app.LoadSampleQuiz(); err != nil {
		t.Fatalf("LoadSampleQuiz() returned error: %v", err)
	}

	tests := []struct {
		name string
		opts BuildOptions
	}{
		{"bad answer key mode", BuildOptions{AnswerKeyMode: "SOMETIMES"}},
		{"bad numbering style", BuildOptions{NumberingStyle: "#"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tt.opts.OutputDir = t.TempDir()
			_, err := app.BuildPaper(tt.opts)
			var appErr *types.AppError
			if !errors.As(err, &appErr) || appErr.Code != types.ErrConfig {
				t.Errorf("Expected ErrConfig, got %v", err)
			}
		})
	}
}

func TestApp_FinishRequiresPaper(t *testing.T) {
	app := newTestApp(t)

	if _, err := app.FinishPDF("in.pdf", "out.pdf"); err == nil {
		t.Error("Expected error when no paper was built")
	}
	if _, _, err := app.SplitAnswerKey("in.pdf"); err == nil {
		t.Error("Expected error when no paper was built")
	}
}

func TestApp_CancelProcessIdle(t *testing.T) {
	app := newTestApp(t)
	if err := app.CancelProcess(); err != nil {
		t.Errorf("CancelProcess() returned error: %v", err)
	}
}

func writeQuiz(t *testing.T, dir, name, questionText string) string {
	t.Helper()
	quiz := fmt.Sprintf(`{"quiz": {"title": "Rebuild", "sections": [{"questions": [
		{"_id": "q1", "question_text": %q, "option_a": "a", "option_b": "b", "correct_answer": "A"}
	]}]}}`, questionText)
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte(quiz), 0644); err != nil {
		t.Fatalf("Failed to write quiz: %v", err)
	}
	return path
}

func TestApp_RebuildAfterFix(t *testing.T) {
	app := newTestApp(t)
	outDir := t.TempDir()

	broken := writeQuiz(t, outDir, "broken.json", `Half $\frac{1}{$`)
	if _, err := app.ImportQuiz(broken); err != nil {
		t.Fatalf("ImportQuiz() returned error: %v", err)
	}
	first, err := app.BuildPaper(BuildOptions{OutputDir: outDir, Name: "first"})
	if err != nil {
		t.Fatalf("BuildPaper() returned error: %v", err)
	}
	if first.Failures != 1 || first.IssuesPath == "" {
		t.Fatalf("Expected one recorded failure, got %+v", first)
	}

	// same quiz again: counts restart
	again, err := app.BuildPaper(BuildOptions{OutputDir: outDir, Name: "again"})
	if err != nil {
		t.Fatalf("BuildPaper() returned error: %v", err)
	}
	records := app.GetIssues()
	if len(records) != 1 || records[0].Count != 1 {
		t.Errorf("Expected one issue counted once, got %d records", len(records))
	}
	if again.IssuesPath == "" {
		t.Error("Expected issues to be saved for the broken quiz")
	}

	fixed := writeQuiz(t, outDir, "fixed.json", `Half $\frac{1}{2}$`)
	if _, err := app.ImportQuiz(fixed); err != nil {
		t.Fatalf("ImportQuiz() returned error: %v", err)
	}
	second, err := app.BuildPaper(BuildOptions{OutputDir: outDir, Name: "second"})
	if err != nil {
		t.Fatalf("BuildPaper() returned error: %v", err)
	}
	if second.Failures != 0 {
		t.Errorf("Expected no failures, got %d", second.Failures)
	}
	if second.IssuesPath != "" {
		t.Errorf("Expected no issues file, got %s", second.IssuesPath)
	}
	if _, err := os.Stat(filepath.Join(outDir, "second-issues.json")); !os.IsNotExist(err) {
		t.Errorf("Expected second-issues.json to be absent, stat returned %v", err)
	}
	if len(app.GetIssues()) != 0 {
		t.Errorf("Expected no issues, got %d", len(app.GetIssues()))
	}
}

func TestApp_BuildKeepsImportWarnings(t *testing.T) {
	app := newTestApp(t)
	outDir := t.TempDir()

	quiz := `{"quiz": {"title": "Warn", "sections": [{"questions": [
		null,
		{"_id": "q1", "question_text": "Cell?", "option_a": "a", "option_b": "b", "correct_answer": "A"}
	]}]}}`
	path := filepath.Join(outDir, "quiz.json")
	if err := os.WriteFile(path, []byte(quiz), 0644); err != nil {
		t.Fatalf("Failed to write quiz: %v", err)
	}
	if _, err := app.ImportQuiz(path); err != nil {
		t.Fatalf("ImportQuiz() returned error: %v", err)
	}

	for i := 0; i < 2; i++ {
		if _, err := app.BuildPaper(BuildOptions{OutputDir: outDir}); err != nil {
			t.Fatalf("BuildPaper() returned error: %v", err)
		}
		if n := len(app.GetIssues()); n != 1 {
			t.Errorf("Build %d: expected the import warning to be kept, got %d issues", i+1, n)
		}
	}
}

func TestApp_DecorationsHaveOneOwner(t *testing.T) {
	tests := []struct {
		name     string
		stampPDF bool
	}{
		{"printed by the page", false},
		{"stamped onto the PDF", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			app := newTestApp(t)
			if _, err := app.LoadSampleQuiz(); err != nil {
				t.Fatalf("LoadSampleQuiz() returned error: %v", err)
			}
			result, err := app.BuildPaper(BuildOptions{
				OutputDir: t.TempDir(),
				Watermark: "CONFIDENTIAL",
				StampPDF:  tt.stampPDF,
			})
			if err != nil {
				t.Fatalf("BuildPaper() returned error: %v", err)
			}
			data, err := os.ReadFile(result.HTMLPath)
			if err != nil {
				t.Fatalf("Failed to read paper: %v", err)
			}

			inHTML := strings.Contains(string(data), `<div class="watermark">CONFIDENTIAL</div>`)
			opts := app.finishOptions()
			stamped := opts.Watermark.Active()

			if inHTML == stamped {
				t.Errorf("Watermark in HTML=%v, stamped=%v; expected exactly one", inHTML, stamped)
			}
			if stamped != tt.stampPDF {
				t.Errorf("Expected stamped=%v, got %v", tt.stampPDF, stamped)
			}
			if !tt.stampPDF && len(opts.Footer) != 0 {
				t.Errorf("Footer printed by the page should not be stamped, got %v", opts.Footer)
			}
		})
	}
}

func TestInitLogging_BeforeStartup(t *testing.T) {
	dir := t.TempDir()
	logPath := filepath.Join(dir, "logs", "paper.log")
	configPath := filepath.Join(dir, "config.yaml")
	if err := os.WriteFile(configPath, []byte("log_file_path: "+logPath+"\n"), 0644); err != nil {
		t.Fatalf("Failed to write config: %v", err)
	}

	app, err := NewAppWithConfig(configPath)
	if err != nil {
		t.Fatalf("NewAppWithConfig() returned error: %v", err)
	}
	if err := initLogging(app, false); err != nil {
		t.Fatalf("initLogging() returned error: %v", err)
	}
	app.startup(context.Background())
	logger.Close()

	data, err := os.ReadFile(logPath)
	if err != nil {
		t.Fatalf("Failed to read log: %v", err)
	}
	if !strings.Contains(string(data), "application starting up") {
		t.Errorf("Expected startup to be logged, log was:\n%s", data)
	}
}
