package app

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"sort"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/go-git/go-billy/v5"
	"github.com/go-git/go-billy/v5/osfs"
	"github.com/sirupsen/logrus"

	"dupsweep/internal/config"
	"dupsweep/internal/domain"
	"dupsweep/internal/services"
	"dupsweep/internal/state"
	"dupsweep/internal/ui"
)

const (
	exitOK      = 0
	exitFailure = 1
	exitUsage   = 2
)

// Report is what -json prints.
type Report struct {
	Scan   services.ScanResult    `json:"scan"`
	Action *services.ActionResult `json:"action,omitempty"`
}

// Run executes one dupsweep invocation and returns the process exit code.
func Run(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	base := config.DefaultConfig()
	loaded, loadErr := config.LoadConfig()
	if loadErr == nil {
		base = loaded
	}
	cfg, invocation, err := config.ParseFlags(base, args, stderr)
	if errors.Is(err, flag.ErrHelp) {
		return exitOK
	}
	if err != nil {
		fmt.Fprintln(stderr, "dupsweep:", err)
		return exitUsage
	}

	logger, closeLog, err := newLogger(cfg, invocation.TUI, stderr)
	if err != nil {
		fmt.Fprintln(stderr, "dupsweep:", err)
		return exitUsage
	}
	defer closeLog()
	log := logrus.NewEntry(logger)
	if loadErr != nil {
		log.WithError(loadErr).Warn("config warning: using defaults")
	}

	bounds, err := services.ParseBounds(cfg.MinSize, cfg.MaxSize)
	if err != nil {
		fmt.Fprintln(stderr, "dupsweep:", err)
		return exitUsage
	}
	if len(invocation.Paths) == 0 {
		if !invocation.TUI {
			fmt.Fprintln(stderr, "dupsweep: no paths given")
			return exitUsage
		}
		invocation.Paths = []string{"."}
	}

	runner := &runner{
		fs:         osfs.New("/"),
		log:        log,
		cfg:        cfg,
		invocation: invocation,
		bounds:     bounds,
		stdout:     stdout,
		stderr:     stderr,
	}
	if invocation.TUI {
		return runner.runTUI(ctx)
	}
	return runner.runCLI(ctx)
}

type runner struct {
	fs         billy.Filesystem
	log        *logrus.Entry
	cfg        config.Config
	invocation config.Invocation
	bounds     services.SizeBounds
	stdout     io.Writer
	stderr     io.Writer
}

func (r *runner) expand(ctx context.Context, roots []string) ([]string, error) {
	return services.ExpandPaths(ctx, r.fs, r.log, roots, services.ExpandOptions{
		Recursive:  r.cfg.Recursive,
		ShowHidden: r.cfg.ShowHidden,
	})
}

func (r *runner) runTUI(ctx context.Context) int {
	appState := state.NewState(r.cfg, r.invocation.Paths)
	model := ui.NewModel(appState, services.NewFSScanner(r.fs, r.log), services.NewFSActions(r.fs, r.log), ui.Options{
		Config: r.cfg,
		Bounds: r.bounds,
		Expand: r.expand,
	})

	program := tea.NewProgram(model, tea.WithAltScreen(), tea.WithContext(ctx))
	finalModel, err := program.Run()
	if err != nil && !errors.Is(err, tea.ErrProgramKilled) {
		fmt.Fprintln(r.stderr, "dupsweep:", err)
		return exitFailure
	}
	if provider, ok := finalModel.(ui.ConfigProvider); ok {
		if err := config.SaveConfig(provider.ConfigSnapshot()); err != nil {
			r.log.WithError(err).Warn("config save failed")
		}
	}
	return exitOK
}

func (r *runner) runCLI(ctx context.Context) int {
	files, err := r.expand(ctx, r.invocation.Paths)
	if err != nil {
		fmt.Fprintln(r.stderr, "dupsweep:", err)
		return exitFailure
	}

	scanner := services.NewFSScanner(r.fs, r.log)
	scan, err := scanner.Scan(ctx, services.ScanRequest{
		Paths:       files,
		Bounds:      r.bounds,
		Workers:     r.cfg.Workers,
		ChunkSize:   r.cfg.ChunkSize,
		FileTimeout: r.cfg.FileTimeout,
	})
	if err != nil && !errors.Is(err, context.Canceled) {
		fmt.Fprintln(r.stderr, "dupsweep:", err)
		return exitFailure
	}
	cancelled := err != nil

	report := Report{Scan: scan}
	code := exitOK
	if len(scan.Failures) > 0 || cancelled {
		code = exitFailure
	}

	if !cancelled && len(scan.Duplicates) > 0 {
		action, err := r.runAction(ctx, scan.Duplicates)
		if err != nil && action == nil {
			r.printScan(scan)
			fmt.Fprintln(r.stderr, "dupsweep:", err)
			return exitFailure
		}
		report.Action = action
		if err != nil || (action != nil && action.FailureCount > 0) {
			code = exitFailure
		}
	}

	if r.invocation.JSON {
		encoder := json.NewEncoder(r.stdout)
		encoder.SetIndent("", "  ")
		if err := encoder.Encode(report); err != nil {
			fmt.Fprintln(r.stderr, "dupsweep:", err)
			return exitFailure
		}
		return code
	}
	r.printScan(scan)
	if report.Action != nil {
		r.printAction(*report.Action)
	}
	if cancelled {
		fmt.Fprintln(r.stderr, "dupsweep: scan cancelled, results are partial")
	}
	return code
}

// runAction returns a nil result when no action was asked for or the batch was refused.
func (r *runner) runAction(ctx context.Context, duplicates []domain.DuplicateRecord) (*services.ActionResult, error) {
	request := services.ActionRequest{
		Duplicates:  duplicates,
		SafeMode:    r.cfg.SafeMode,
		Workers:     r.cfg.Workers,
		FileTimeout: r.cfg.FileTimeout,
	}
	switch {
	case r.invocation.MoveTo != "":
		request.Type = services.ActionMove
		request.Destination = r.invocation.MoveTo
	case r.invocation.Delete:
		if !r.invocation.Yes {
			return nil, errors.New("refusing to delete without -yes")
		}
		request.Type = services.ActionDelete
		request.ConfirmToken = services.ConfirmDelete
	default:
		return nil, nil
	}

	result, err := services.NewFSActions(r.fs, r.log).Execute(ctx, request)
	if err != nil && services.Code(err) != "" {
		return nil, err
	}
	return &result, err
}

func (r *runner) printScan(scan services.ScanResult) {
	for _, failure := range scan.Failures {
		fmt.Fprintf(r.stderr, "skipped %s: %s\n", failure.Path, failure.Detail)
	}
	if len(scan.Duplicates) == 0 {
		fmt.Fprintf(r.stdout, "No duplicates found (%d files checked)\n", scan.Scanned)
		return
	}
	groups := domain.GroupByOriginal(scan.Duplicates)
	originals := make([]string, 0, len(groups))
	for original := range groups {
		originals = append(originals, original)
	}
	sort.Strings(originals)
	for _, original := range originals {
		records := groups[original]
		sort.Slice(records, func(i, j int) bool { return records[i].DuplicatePath < records[j].DuplicatePath })
		for _, record := range records {
			fmt.Fprintf(r.stdout, "%s is a duplicate of %s (%.2f MB)\n", record.DuplicatePath, original, float64(record.SizeBytes)/(1024*1024))
		}
	}
	fmt.Fprintf(r.stdout, "%d duplicates, %s reclaimable\n", len(scan.Duplicates), services.FormatSize(domain.ReclaimableBytes(scan.Duplicates)))
}

func (r *runner) printAction(result services.ActionResult) {
	for _, outcome := range result.Outcomes {
		switch {
		case !outcome.Succeeded:
			fmt.Fprintf(r.stderr, "failed: %s\n", outcome.ErrorDetail)
		case result.Type == services.ActionMove:
			fmt.Fprintf(r.stdout, "moved: %s -> %s\n", outcome.Path, outcome.Target)
		default:
			fmt.Fprintf(r.stdout, "deleted: %s\n", outcome.Path)
		}
	}
	fmt.Fprintln(r.stdout, result.Message)
}

// newLogger sends logs to the log file when one is configured, otherwise to stderr.
// The terminal UI owns the screen, so without a log file its logs are dropped.
func newLogger(cfg config.Config, tui bool, stderr io.Writer) (*logrus.Logger, func(), error) {
	logger := logrus.New()
	logger.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})

	level := logrus.InfoLevel
	if cfg.LogLevel != "" {
		parsed, err := logrus.ParseLevel(cfg.LogLevel)
		if err != nil {
			return nil, nil, fmt.Errorf("invalid log level %q: %w", cfg.LogLevel, err)
		}
		level = parsed
	}
	logger.SetLevel(level)

	switch {
	case cfg.LogFile != "":
		file, err := os.OpenFile(cfg.LogFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o600)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to open log file: %w", err)
		}
		logger.SetOutput(file)
		return logger, func() { _ = file.Close() }, nil
	case tui:
		logger.SetOutput(io.Discard)
	default:
		logger.SetOutput(stderr)
	}
	return logger, func() {}, nil
}
