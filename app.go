package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"mcq-paper/internal/answerkey"
	"mcq-paper/internal/config"
	"mcq-paper/internal/importer"
	"mcq-paper/internal/issues"
	"mcq-paper/internal/logger"
	"mcq-paper/internal/paper"
	"mcq-paper/internal/pdf"
	"mcq-paper/internal/render"
	"mcq-paper/internal/types"
)

// StatusCallback is a function type for status update callbacks.
// It is called whenever the processing status changes.
type StatusCallback func(status *types.Status)

// BuildOptions override the configured document settings for one build.
// Empty fields keep the configured value.
type BuildOptions struct {
	OutputDir      string
	Name           string // base file name, defaults to "paper"
	NumberingStyle string
	AnswerKeyMode  string
	Watermark      string // non-empty enables a watermark with this text
	// StampPDF leaves the watermark and footer out of the HTML so that
	// FinishPDF stamps them onto the printed PDF instead.
	StampPDF bool
}

// App ties configuration, import, assembly, rendering and PDF finishing
// together and tracks the status of the current build.
type App struct {
	ctx      context.Context
	config   *config.ConfigManager
	issues   *issues.Collector
	adapter  *render.Adapter
	finisher *pdf.Finisher

	// Status tracking
	status         *types.Status
	statusMu       sync.RWMutex
	statusCallback StatusCallback

	// Cancellation support
	cancelFunc context.CancelFunc

	quiz    *importer.Result
	lastDoc *paper.Document
	// lastStamp is set when the last HTML was written without decorations
	lastStamp bool
}

// NewApp creates a new App. startup must be called before use.
func NewApp() *App {
	return &App{
		status: &types.Status{Phase: types.PhaseIdle},
	}
}

// NewAppWithConfig creates a new App with a custom config path.
// This is useful for testing or when a specific configuration location is needed.
func NewAppWithConfig(configPath string) (*App, error) {
	app := NewApp()

	configMgr, err := config.NewConfigManager(configPath)
	if err != nil {
		return nil, err
	}
	app.config = configMgr
	return app, nil
}

// startup loads configuration and creates the renderer adapter.
func (a *App) startup(ctx context.Context) {
	a.ctx = ctx
	logger.Info("application starting up")

	if a.config == nil {
		configMgr, err := config.NewConfigManager("")
		if err != nil {
			logger.Error("failed to create config manager", err)
			return
		}
		a.config = configMgr
	}

	if err := a.config.Load(); err != nil {
		// Continue with defaults if config load fails
		logger.Warn("failed to load config, using defaults", logger.Err(err))
	}

	a.issues = issues.NewCollector()
	a.adapter = render.NewAdapter(render.NewLatexRenderer(), render.AdapterConfig{
		ErrorColor:   a.config.GetErrorColor(),
		ReadyTimeout: a.config.GetRendererReadyTimeout(),
		PollInterval: a.config.GetRendererPollInterval(),
		Reporter:     a.issues,
	})
	a.finisher = pdf.NewFinisher()

	logger.Info("application startup complete",
		logger.String("outputDir", a.config.GetOutputDirectory()))
}

// shutdown is called when the app is closing.
func (a *App) shutdown(ctx context.Context) {
	logger.Info("application shutting down",
		logger.Int("issues", a.issues.Len()))
	a.CancelProcess()
}

// GetConfig returns the configuration manager.
func (a *App) GetConfig() *config.ConfigManager {
	return a.config
}

// GetIssues returns the issues recorded so far.
func (a *App) GetIssues() []*issues.Record {
	return a.issues.List()
}

// SetStatusCallback sets the callback function for status updates.
func (a *App) SetStatusCallback(callback StatusCallback) {
	a.statusMu.Lock()
	defer a.statusMu.Unlock()
	a.statusCallback = callback
}

// GetStatus returns a copy of the current processing status.
// This method is thread-safe.
func (a *App) GetStatus() *types.Status {
	a.statusMu.RLock()
	defer a.statusMu.RUnlock()

	s := *a.status
	return &s
}

// IsProcessing returns true if a build is currently in progress.
// This method is thread-safe.
func (a *App) IsProcessing() bool {
	a.statusMu.RLock()
	defer a.statusMu.RUnlock()

	switch a.status.Phase {
	case types.PhaseIdle, types.PhaseComplete, types.PhaseError:
		return false
	default:
		return true
	}
}

// updateStatus updates the current status and notifies the callback.
func (a *App) updateStatus(phase types.ProcessPhase, progress int, message string) {
	a.setStatus(types.Status{Phase: phase, Progress: progress, Message: message})
}

// updateStatusError updates the status with an error.
func (a *App) updateStatusError(err error) {
	a.statusMu.RLock()
	s := *a.status
	a.statusMu.RUnlock()

	s.Phase = types.PhaseError
	s.Error = err.Error()
	a.setStatus(s)
}

func (a *App) setStatus(s types.Status) {
	a.statusMu.Lock()
	*a.status = s
	callback := a.statusCallback
	a.statusMu.Unlock()

	// Call callback outside of lock to prevent deadlocks
	if callback != nil {
		callback(&s)
	}
}

// CancelProcess cancels a build waiting for the math renderer.
func (a *App) CancelProcess() error {
	a.statusMu.Lock()
	cancel := a.cancelFunc
	a.cancelFunc = nil
	a.statusMu.Unlock()

	if cancel == nil {
		return nil
	}
	logger.Info("cancelling build")
	cancel()
	return nil
}

// ImportQuiz reads a backend quiz export. A payload that cannot be mapped
// is returned as an ErrImport error carrying the import message.
func (a *App) ImportQuiz(path string) (*importer.Result, error) {
	a.updateStatus(types.PhaseImporting, 0, "importing "+filepath.Base(path))
	a.issues.Clear()

	result, err := importer.ParseQuizFile(path)
	if err != nil {
		a.updateStatusError(err)
		return nil, err
	}
	return a.useQuiz(result)
}

// LoadSampleQuiz imports the bundled sample quiz.
func (a *App) LoadSampleQuiz() (*importer.Result, error) {
	a.issues.Clear()
	return a.useQuiz(importer.ParseQuizJSON([]byte(importer.SampleJSON())))
}

func (a *App) useQuiz(result *importer.Result) (*importer.Result, error) {
	result.Report(a.issues)
	if !result.Success {
		err := types.NewAppError(types.ErrImport, result.Message, nil)
		a.updateStatusError(err)
		return result, err
	}
	a.quiz = result
	a.updateStatus(types.PhaseIdle, 0, result.Message)
	return result, nil
}

// documentConfig merges configured style, imported paper metadata and
// per-build overrides.
func (a *App) documentConfig(opts BuildOptions) (types.DocumentConfig, error) {
	cfg, err := a.config.DocumentDefaults()
	if err != nil {
		return cfg, err
	}
	cfg = a.quiz.Apply(cfg)

	if opts.NumberingStyle != "" {
		cfg.OptionNumberingStyle = opts.NumberingStyle
	}
	if opts.AnswerKeyMode != "" {
		mode, err := types.ParseAnswerKeyMode(opts.AnswerKeyMode)
		if err != nil {
			return cfg, types.NewAppError(types.ErrConfig, "invalid answer key mode", err)
		}
		cfg.AnswerKeyDisplayMode = mode
	}
	if strings.TrimSpace(opts.Watermark) != "" {
		cfg.Watermark = types.Watermark{Enabled: true, Text: opts.Watermark}
	}
	return cfg, nil
}

// BuildPaper assembles and renders the imported quiz and writes the print
// HTML. Formula failures and unresolved answers do not fail the build;
// they are counted in the result and saved next to the HTML.
func (a *App) BuildPaper(opts BuildOptions) (*types.BuildResult, error) {
	if a.quiz == nil {
		err := types.NewAppError(types.ErrInvalidInput, "no quiz imported", nil)
		a.updateStatusError(err)
		return nil, err
	}

	ctx, cancel := context.WithCancel(a.baseContext())
	a.statusMu.Lock()
	a.cancelFunc = cancel
	a.statusMu.Unlock()
	defer func() {
		a.statusMu.Lock()
		a.cancelFunc = nil
		a.statusMu.Unlock()
		cancel()
	}()

	// issues of earlier builds; import warnings belong to the current quiz
	a.issues.ClearExcept(issues.KindImport)

	a.updateStatus(types.PhaseAssembling, 10, "assembling paper")
	cfg, err := a.documentConfig(opts)
	if err != nil {
		a.updateStatusError(err)
		return nil, err
	}

	a.updateStatus(types.PhaseRendering, 30, "rendering formulas")
	doc, fills, err := paper.Build(ctx, cfg, a.quiz.Sections, a.adapter, a.issues)
	if err != nil {
		a.updateStatusError(err)
		return nil, err
	}
	a.lastDoc = doc

	a.updateStatus(types.PhaseWriting, 80, "writing paper")
	outDir := opts.OutputDir
	if outDir == "" {
		outDir = a.config.GetOutputDirectory()
	}
	name := opts.Name
	if name == "" {
		name = "paper"
	}
	if err := os.MkdirAll(outDir, 0755); err != nil {
		appErr := types.NewAppErrorWithDetails(types.ErrInternal, "failed to create output directory", outDir, err)
		a.updateStatusError(appErr)
		return nil, appErr
	}

	result := &types.BuildResult{
		HTMLPath:   filepath.Join(outDir, name+".html"),
		Questions:  len(doc.Questions()),
		Failures:   fills.Failures(),
		Unresolved: len(doc.AnswerKey.Unresolved()),
		Degraded:   a.adapter.Degraded(),
	}
	a.lastStamp = opts.StampPDF
	if err := a.writeHTML(result.HTMLPath, doc, fills); err != nil {
		a.updateStatusError(err)
		return nil, err
	}

	if a.issues.HasIssues() {
		result.IssuesPath = filepath.Join(outDir, name+"-issues.json")
		if err := a.issues.SaveJSON(result.IssuesPath); err != nil {
			logger.Warn("failed to save issues", logger.Err(err))
			result.IssuesPath = ""
		}
	}

	a.updateStatus(types.PhaseComplete, 100, fmt.Sprintf("paper written with %d questions", result.Questions))
	logger.Info("paper built",
		logger.String("html", result.HTMLPath),
		logger.Int("questions", result.Questions),
		logger.Int("failures", result.Failures),
		logger.Int("unresolved", result.Unresolved))
	return result, nil
}

func (a *App) writeHTML(path string, doc *paper.Document, fills paper.Fills) error {
	f, err := os.Create(path)
	if err != nil {
		return types.NewAppErrorWithDetails(types.ErrInternal, "failed to create paper file", path, err)
	}
	defer f.Close()

	opts := paper.HTMLOptions{
		ClientTypeset:   a.config.GetConfig().ClientTypeset,
		OmitDecorations: a.lastStamp,
	}
	if err := paper.WriteHTML(f, doc, fills, opts); err != nil {
		return err
	}
	return f.Close()
}

func (a *App) baseContext() context.Context {
	if a.ctx != nil {
		return a.ctx
	}
	return context.Background()
}

// finishOptions stamps the decorations only when the HTML left them out,
// so every page carries each of them once.
func (a *App) finishOptions() pdf.FinishOptions {
	opts := pdf.FinishOptions{PageNumbers: a.config.GetConfig().PageNumbers}
	if a.lastStamp {
		opts.Watermark = a.lastDoc.Decorations.Watermark
		opts.Footer = a.lastDoc.Decorations.Footer
	}
	return opts
}

// FinishPDF finishes a PDF printed from the last built paper. The
// watermark and footer are stamped when the paper was built with
// StampPDF; page numbers are added when configured.
func (a *App) FinishPDF(inPath, outPath string) (*pdf.PDFInfo, error) {
	if a.lastDoc == nil {
		return nil, types.NewAppError(types.ErrInvalidInput, "no paper built", nil)
	}
	a.updateStatus(types.PhaseFinishing, 90, "finishing PDF")

	info, err := a.finisher.Finish(inPath, outPath, a.finishOptions())
	if err != nil {
		appErr := types.NewAppError(types.ErrPDF, "failed to finish PDF", err)
		a.updateStatusError(appErr)
		return nil, appErr
	}
	a.updateStatus(types.PhaseComplete, 100, fmt.Sprintf("PDF finished with %d pages", info.PageCount))
	return info, nil
}

// SplitAnswerKey writes the question pages and the answer key pages of a
// printed paper to separate files next to inPath.
func (a *App) SplitAnswerKey(inPath string) (questionsPath, keyPath string, err error) {
	if a.lastDoc == nil || a.lastDoc.AnswerKey == nil {
		return "", "", types.NewAppError(types.ErrInvalidInput, "last paper has no answer key", nil)
	}

	base := strings.TrimSuffix(inPath, filepath.Ext(inPath))
	questionsPath = base + "-questions.pdf"
	keyPath = base + "-key.pdf"

	title := a.lastDoc.AnswerKey.Title
	if title == "" {
		title = answerkey.TitleKeyOnly
	}
	if _, err := a.finisher.SplitAnswerKey(inPath, title, questionsPath, keyPath); err != nil {
		return "", "", types.NewAppError(types.ErrPDF, "failed to split answer key", err)
	}
	return questionsPath, keyPath, nil
}
