package ui

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"

	"dupsweep/internal/config"
	"dupsweep/internal/domain"
	"dupsweep/internal/services"
	"dupsweep/internal/state"
)

// PathExpander turns the roots given on the command line into the file list to scan.
type PathExpander func(ctx context.Context, roots []string) ([]string, error)

type Options struct {
	Config config.Config
	Bounds services.SizeBounds
	Expand PathExpander
}

type Model struct {
	state                 *state.State
	scanner               services.Scanner
	actions               services.Actions
	progress              services.ProgressProvider
	previewer             services.ActionPreviewer
	actionProgress        services.ActionProgressProvider
	settings              config.Config
	bounds                services.SizeBounds
	expand                PathExpander
	keys                  KeyMap
	showHelp              bool
	status                string
	scanning              bool
	cancel                context.CancelFunc
	scanDone              chan struct{}
	actionDone            chan struct{}
	width                 int
	height                int
	viewTop               int
	progressCount         int
	progressTotal         int
	scanFailures          []services.FileFailure
	confirming            bool
	pendingAction         services.ActionType
	pendingPreview        services.ActionPreview
	pendingRecords        []domain.DuplicateRecord
	pendingDestination    string
	capturingDestination  bool
	destinationInput      string
	completionSuggestions []string
	actionRunning         bool
	actionProgressCount   int
	lastFailures          []domain.ActionOutcome
}

type ConfigProvider interface {
	ConfigSnapshot() config.Config
}

func NewModel(appState *state.State, scanner services.Scanner, actions services.Actions, opts Options) Model {
	return Model{
		state:          appState,
		scanner:        scanner,
		actions:        actions,
		progress:       progressProvider(scanner),
		previewer:      actionPreviewer(actions),
		actionProgress: actionProgressProvider(actions),
		settings:       opts.Config,
		bounds:         opts.Bounds,
		expand:         opts.Expand,
		keys:           DefaultKeyMap(),
		status:         "Ready",
		width:          100,
		height:         30,
	}
}

func (model Model) ConfigSnapshot() config.Config {
	snapshot := model.settings
	snapshot.SafeMode = model.state.Prefs.SafeMode
	snapshot.SortMode = model.state.Prefs.SortMode
	snapshot.Theme = model.state.Prefs.Theme
	snapshot.LastDestination = model.state.LastDestination
	return snapshot
}

func (model Model) Init() tea.Cmd {
	return func() tea.Msg { return startScanMsg{} }
}

func (model Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch typed := msg.(type) {
	case tea.KeyMsg:
		return model.handleKey(typed)
	case tea.WindowSizeMsg:
		model.width = typed.Width
		model.height = typed.Height
		model.ensureCursorVisible()
		return model, nil
	case startScanMsg:
		return model.beginScan()
	case scanResultMsg:
		return model.applyScanResult(typed)
	case scanProgressMsg:
		if !model.scanning {
			return model, nil
		}
		if typed.progress.ErrMessage != "" {
			model.status = fmt.Sprintf("Scan warning: %s", typed.progress.ErrMessage)
			return model, model.progressCmd()
		}
		if typed.progress.Completed {
			return model, model.progressCmd()
		}
		model.progressCount = typed.progress.Scanned
		model.progressTotal = typed.progress.Total
		model.status = fmt.Sprintf("Scanning... %d/%d files, %d duplicates", typed.progress.Scanned, typed.progress.Total, typed.progress.Duplicates)
		return model, model.progressCmd()
	case actionPreviewMsg:
		if typed.err != nil {
			model.status = fmt.Sprintf("Preview error: %v", typed.err)
			model.confirming = false
			model.pendingRecords = nil
			return model, nil
		}
		model.pendingPreview = typed.preview
		model.confirming = true
		model.status = previewPrompt(typed.preview)
		return model, nil
	case actionResultMsg:
		return model.applyActionResult(typed)
	case actionProgressMsg:
		if !model.actionRunning || typed.progress.Completed {
			return model, nil
		}
		if typed.progress.ErrMessage != "" {
			model.status = fmt.Sprintf("Action warning: %s", typed.progress.ErrMessage)
			return model, model.actionProgressCmd()
		}
		model.actionProgressCount = typed.progress.Processed
		model.status = fmt.Sprintf("%s %d/%d files", strings.ToUpper(string(typed.progress.Type)), typed.progress.Processed, typed.progress.Total)
		return model, model.actionProgressCmd()
	default:
		return model, nil
	}
}

func (model Model) applyScanResult(msg scanResultMsg) (tea.Model, tea.Cmd) {
	model.scanning = false
	model.cancel = nil
	if msg.err != nil && !errors.Is(msg.err, context.Canceled) {
		model.status = fmt.Sprintf("Scan error: %v", msg.err)
		return model, nil
	}

	model.state.SetDuplicates(msg.result.Duplicates)
	model.state.Failed = len(msg.result.Failures)
	model.state.Skipped = msg.result.Skipped
	model.scanFailures = msg.result.Failures
	model.lastFailures = nil
	model.ensureCursorVisible()

	count := len(model.state.Duplicates)
	switch {
	case msg.err != nil:
		model.status = fmt.Sprintf("Scan cancelled - %d duplicates so far", count)
	case count == 0:
		model.status = fmt.Sprintf("No duplicates found (%d files checked)", msg.result.Scanned)
	default:
		model.status = fmt.Sprintf("Found %d duplicates, %s reclaimable (%s)",
			count, services.FormatSize(domain.ReclaimableBytes(model.state.Duplicates)), msg.result.Duration.Round(time.Millisecond))
	}
	return model, nil
}

func (model Model) applyActionResult(msg actionResultMsg) (tea.Model, tea.Cmd) {
	model.actionRunning = false
	model.actionProgressCount = 0
	model.pendingRecords = nil
	if msg.err != nil && len(msg.result.Outcomes) == 0 {
		model.status = fmt.Sprintf("Action error: %v", msg.err)
		return model, nil
	}
	model.state.RemoveHandled(msg.result.Outcomes)
	model.lastFailures = domain.FailedOutcomes(msg.result.Outcomes)
	model.ensureCursorVisible()
	if msg.err != nil {
		model.status = fmt.Sprintf("%s (%d ok, %d failed): %v", msg.result.Message, msg.result.SuccessCount, msg.result.FailureCount, msg.err)
		return model, nil
	}
	model.status = msg.result.Message
	return model, nil
}

func (model Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if model.capturingDestination {
		return model.handleDestinationInput(msg)
	}
	switch {
	case key.Matches(msg, model.keys.Quit):
		model = model.cancelScan("")
		return model, tea.Quit
	case key.Matches(msg, model.keys.Help):
		model.showHelp = !model.showHelp
		return model, nil
	case model.confirming && key.Matches(msg, model.keys.Confirm):
		return model.confirmAction()
	case model.confirming && key.Matches(msg, model.keys.Cancel):
		model.confirming = false
		model.pendingRecords = nil
		model.status = "Action cancelled"
		return model, nil
	case model.confirming:
		return model, nil
	case model.scanning && key.Matches(msg, model.keys.Cancel):
		model = model.cancelScan("Cancelling scan...")
		return model, nil
	case key.Matches(msg, model.keys.Up):
		model.state.MoveCursor(-1)
		model.ensureCursorVisible()
		return model, nil
	case key.Matches(msg, model.keys.Down):
		model.state.MoveCursor(1)
		model.ensureCursorVisible()
		return model, nil
	case key.Matches(msg, model.keys.Select):
		if record := model.state.CurrentRecord(); record != nil {
			model.state.ToggleSelection(record.DuplicatePath)
		}
		return model, nil
	case key.Matches(msg, model.keys.SelectAll):
		model.state.SelectAll()
		return model, nil
	case key.Matches(msg, model.keys.Clear):
		model.state.ClearSelection()
		return model, nil
	case key.Matches(msg, model.keys.Delete):
		return model.requestPreview(services.ActionDelete, "")
	case key.Matches(msg, model.keys.Move):
		return model.beginMove()
	case key.Matches(msg, model.keys.Scan):
		return model.beginScan()
	case key.Matches(msg, model.keys.Sort):
		mode := model.state.ToggleSortMode()
		model.status = fmt.Sprintf("Sorted by %s", mode)
		model.ensureCursorVisible()
		return model, nil
	default:
		return model, nil
	}
}

func (model Model) busy() bool {
	return model.scanning || model.actionRunning
}

func (model Model) beginMove() (tea.Model, tea.Cmd) {
	if model.busy() {
		model.status = "Busy - wait for the current operation"
		return model, nil
	}
	if len(model.state.SelectedRecords()) == 0 {
		model.status = "Nothing to move"
		return model, nil
	}
	model.capturingDestination = true
	model.destinationInput = model.state.LastDestination
	model.updateCompletionSuggestions()
	model.status = fmt.Sprintf("Destination: %s", model.destinationInput)
	return model, nil
}

func (model Model) requestPreview(actionType services.ActionType, destination string) (tea.Model, tea.Cmd) {
	if model.busy() {
		model.status = "Busy - wait for the current operation"
		return model, nil
	}
	records := model.state.SelectedRecords()
	if len(records) == 0 {
		model.status = fmt.Sprintf("Nothing to %s", actionType)
		return model, nil
	}
	request := services.ActionRequest{
		Type:        actionType,
		Duplicates:  records,
		Destination: destination,
		SafeMode:    model.state.Prefs.SafeMode,
	}
	model.pendingAction = actionType
	model.pendingRecords = records
	model.pendingDestination = destination
	previewer := model.previewer
	return model, func() tea.Msg {
		if previewer == nil {
			return actionPreviewMsg{preview: basicPreview(request)}
		}
		preview, err := previewer.Preview(context.Background(), request)
		return actionPreviewMsg{preview: preview, err: err}
	}
}

func (model Model) confirmAction() (tea.Model, tea.Cmd) {
	model.confirming = false
	model.actionRunning = true
	model.actionProgressCount = 0
	model.status = fmt.Sprintf("%s in progress", strings.ToUpper(string(model.pendingAction)))
	request := services.ActionRequest{
		Type:        model.pendingAction,
		Duplicates:  model.pendingRecords,
		Destination: model.pendingDestination,
		SafeMode:    model.state.Prefs.SafeMode,
		Workers:     model.settings.Workers,
		FileTimeout: model.settings.FileTimeout,
	}
	if request.Type == services.ActionDelete {
		request.ConfirmToken = services.ConfirmDelete
	}
	model.actionDone = make(chan struct{})
	return model, tea.Batch(model.actionExecuteCmd(request, model.actionDone), model.actionProgressCmd())
}

func (model Model) actionExecuteCmd(request services.ActionRequest, done chan struct{}) tea.Cmd {
	actions := model.actions
	return func() tea.Msg {
		defer close(done)
		result, err := actions.Execute(context.Background(), request)
		return actionResultMsg{result: result, err: err}
	}
}

func (model Model) actionProgressCmd() tea.Cmd {
	if model.actionProgress == nil || model.actionDone == nil {
		return nil
	}
	provider := model.actionProgress
	done := model.actionDone
	return func() tea.Msg {
		return actionProgressMsg{progress: nextFrom(done, provider.ActionProgress, services.ActionProgress{Completed: true})}
	}
}

func (model Model) handleDestinationInput(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.Type {
	case tea.KeyCtrlC:
		model = model.cancelScan("")
		return model, tea.Quit
	case tea.KeyEsc:
		model.capturingDestination = false
		model.completionSuggestions = nil
		model.status = "Destination entry cancelled"
		return model, nil
	case tea.KeyEnter:
		destination := strings.TrimSpace(model.destinationInput)
		if destination == "" {
			model.status = "Destination required"
			return model, nil
		}
		model.capturingDestination = false
		model.completionSuggestions = nil
		model.state.LastDestination = destination
		return model.requestPreview(services.ActionMove, destination)
	case tea.KeyTab:
		model.destinationInput, model.completionSuggestions = completePath(model.destinationInput)
	case tea.KeyBackspace, tea.KeyDelete:
		if len(model.destinationInput) > 0 {
			runes := []rune(model.destinationInput)
			model.destinationInput = string(runes[:len(runes)-1])
		}
		model.updateCompletionSuggestions()
	case tea.KeySpace:
		model.destinationInput += " "
		model.updateCompletionSuggestions()
	case tea.KeyRunes:
		model.destinationInput += string(msg.Runes)
		model.updateCompletionSuggestions()
	}
	model.status = fmt.Sprintf("Destination: %s", model.destinationInput)
	return model, nil
}

func (model Model) beginScan() (tea.Model, tea.Cmd) {
	if model.actionRunning {
		model.status = "Busy - wait for the current operation"
		return model, nil
	}
	model = model.cancelScan("")
	ctx, cancel := context.WithCancel(context.Background())
	model.cancel = cancel
	model.scanDone = make(chan struct{})
	model.scanning = true
	model.progressCount = 0
	model.progressTotal = 0
	model.status = fmt.Sprintf("Scanning %s", strings.Join(model.state.Paths, ", "))
	return model, tea.Batch(model.scanCmd(ctx, model.scanDone), model.progressCmd())
}

func (model Model) scanCmd(ctx context.Context, done chan struct{}) tea.Cmd {
	scanner := model.scanner
	expand := model.expand
	roots := append([]string(nil), model.state.Paths...)
	request := services.ScanRequest{
		Bounds:      model.bounds,
		Workers:     model.settings.Workers,
		ChunkSize:   model.settings.ChunkSize,
		FileTimeout: model.settings.FileTimeout,
	}
	return func() tea.Msg {
		defer close(done)
		paths := roots
		if expand != nil {
			expanded, err := expand(ctx, roots)
			if err != nil {
				return scanResultMsg{err: err}
			}
			paths = expanded
		}
		request.Paths = paths
		result, err := scanner.Scan(ctx, request)
		return scanResultMsg{result: result, err: err}
	}
}

func (model Model) progressCmd() tea.Cmd {
	if model.progress == nil || model.scanDone == nil {
		return nil
	}
	provider := model.progress
	done := model.scanDone
	return func() tea.Msg {
		return scanProgressMsg{progress: nextFrom(done, provider.Progress, services.ScanProgress{Completed: true})}
	}
}

// nextFrom waits for the next update on the current channel. It yields final once the
// channel is closed, or once stop is closed while the batch never published a channel.
func nextFrom[T any](stop <-chan struct{}, current func() <-chan T, final T) T {
	for {
		channel := current()
		if channel == nil {
			select {
			case <-stop:
				return final
			case <-time.After(50 * time.Millisecond):
			}
			continue
		}
		update, ok := <-channel
		if !ok {
			select {
			case <-stop:
			case <-time.After(50 * time.Millisecond):
			}
			return final
		}
		return update
	}
}

func (model Model) cancelScan(message string) Model {
	if model.cancel != nil {
		model.cancel()
		model.cancel = nil
	}
	if message != "" {
		model.status = message
	}
	return model
}

func progressProvider(scanner services.Scanner) services.ProgressProvider {
	provider, _ := scanner.(services.ProgressProvider)
	return provider
}

func actionPreviewer(actions services.Actions) services.ActionPreviewer {
	previewer, _ := actions.(services.ActionPreviewer)
	return previewer
}

func actionProgressProvider(actions services.Actions) services.ActionProgressProvider {
	provider, _ := actions.(services.ActionProgressProvider)
	return provider
}

func basicPreview(request services.ActionRequest) services.ActionPreview {
	preview := services.ActionPreview{
		Type:        request.Type,
		Destination: request.Destination,
		TotalFiles:  len(request.Duplicates),
		TotalBytes:  domain.ReclaimableBytes(request.Duplicates),
	}
	preview.Samples = domain.DuplicatePaths(request.Duplicates)
	if len(preview.Samples) > 5 {
		preview.Samples = preview.Samples[:5]
	}
	return preview
}

func previewPrompt(preview services.ActionPreview) string {
	summary := fmt.Sprintf("%s %d files, %s", strings.ToUpper(string(preview.Type)), preview.TotalFiles, services.FormatSize(preview.TotalBytes))
	if preview.Destination != "" {
		summary += " to " + preview.Destination
	}
	if len(preview.Warnings) > 0 {
		summary += fmt.Sprintf(" (%d warnings)", len(preview.Warnings))
	}
	return summary + " - confirm (y/n)"
}

func (model *Model) ensureCursorVisible() {
	total := len(model.state.Duplicates)
	if total == 0 {
		model.viewTop = 0
		return
	}
	listHeight := model.listHeight()
	if listHeight <= 0 {
		return
	}
	if model.state.Cursor < model.viewTop {
		model.viewTop = model.state.Cursor
	}
	if model.state.Cursor >= model.viewTop+listHeight {
		model.viewTop = model.state.Cursor - listHeight + 1
	}
	maxTop := maxInt(total-listHeight, 0)
	if model.viewTop > maxTop {
		model.viewTop = maxTop
	}
}

func (model *Model) listHeight() int {
	return model.height - 6
}

func (model *Model) updateCompletionSuggestions() {
	_, suggestions := completePath(model.destinationInput)
	model.completionSuggestions = suggestions
}

func completePath(input string) (string, []string) {
	trimmed := strings.TrimSpace(input)
	if trimmed == "" {
		return trimmed, nil
	}
	dir := filepath.Dir(trimmed)
	base := filepath.Base(trimmed)
	if strings.HasSuffix(trimmed, string(filepath.Separator)) {
		dir = trimmed
		base = ""
	}
	if dir == "." {
		dir = ""
	}
	readDir := dir
	if readDir == "" {
		readDir = "."
	}
	entries, err := os.ReadDir(readDir)
	if err != nil {
		return input, nil
	}
	matches := []string{}
	for _, entry := range entries {
		if entry.IsDir() && strings.HasPrefix(entry.Name(), base) {
			matches = append(matches, entry.Name())
		}
	}
	if len(matches) == 0 {
		return input, nil
	}
	completed := commonPrefix(matches)
	if dir != "" {
		completed = filepath.Join(dir, completed)
	}
	if len(matches) == 1 {
		completed += string(filepath.Separator)
	}
	paths := make([]string, 0, len(matches))
	for _, match := range matches {
		paths = append(paths, filepath.Join(dir, match))
	}
	return completed, paths
}

func commonPrefix(values []string) string {
	if len(values) == 0 {
		return ""
	}
	prefix := values[0]
	for _, value := range values[1:] {
		for !strings.HasPrefix(value, prefix) && prefix != "" {
			prefix = prefix[:len(prefix)-1]
		}
		if prefix == "" {
			return ""
		}
	}
	return prefix
}
