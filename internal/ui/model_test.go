package ui

import (
	"context"
	"errors"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"dupsweep/internal/config"
	"dupsweep/internal/domain"
	"dupsweep/internal/services"
	"dupsweep/internal/state"
)

func testRecords() []domain.DuplicateRecord {
	return []domain.DuplicateRecord{
		{DuplicatePath: "/data/big-copy", OriginalPath: "/data/big", SizeBytes: 3 << 20, Digest: "aa"},
		{DuplicatePath: "/data/small-copy", OriginalPath: "/data/small", SizeBytes: 10, Digest: "bb"},
	}
}

func newTestModel(records ...domain.DuplicateRecord) (Model, *services.MockScanner, *services.MockActions) {
	cfg := config.DefaultConfig()
	appState := state.NewState(cfg, []string{"/data"})
	scanner := services.NewMockScanner(records...)
	actions := services.NewMockActions()
	return NewModel(appState, scanner, actions, Options{Config: cfg}), scanner, actions
}

// drive feeds msg to the model and keeps feeding every message its commands produce.
func drive(t *testing.T, model Model, msg tea.Msg) Model {
	t.Helper()
	next, cmd := model.Update(msg)
	model = next.(Model)
	for _, produced := range runCmd(cmd) {
		model = drive(t, model, produced)
	}
	return model
}

func runCmd(cmd tea.Cmd) []tea.Msg {
	if cmd == nil {
		return nil
	}
	msg := cmd()
	if batch, ok := msg.(tea.BatchMsg); ok {
		var msgs []tea.Msg
		for _, inner := range batch {
			msgs = append(msgs, runCmd(inner)...)
		}
		return msgs
	}
	if msg == nil {
		return nil
	}
	return []tea.Msg{msg}
}

func keyRunes(value string) tea.KeyMsg {
	return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(value)}
}

func scanned(t *testing.T, model Model) Model {
	t.Helper()
	return drive(t, model, model.Init()())
}

func TestInitScansAndListsDuplicates(t *testing.T) {
	model, scanner, _ := newTestModel(testRecords()...)

	model = scanned(t, model)
	assert.False(t, model.scanning)
	assert.Equal(t, 1, scanner.Calls)
	assert.Equal(t, []string{"/data"}, scanner.Request.Paths)
	require.Len(t, model.state.Duplicates, 2)
	assert.Equal(t, "/data/big-copy", model.state.Duplicates[0].DuplicatePath)
	assert.Contains(t, model.status, "Found 2 duplicates")
}

func TestScanWithoutDuplicates(t *testing.T) {
	model, _, _ := newTestModel()

	model = scanned(t, model)
	assert.Contains(t, model.status, "No duplicates found")
	assert.Contains(t, model.View(), "No duplicates found")
}

func TestScanErrorIsReported(t *testing.T) {
	model, scanner, _ := newTestModel(testRecords()...)
	scanner.Err = errors.New("disk on fire")

	model = scanned(t, model)
	assert.Contains(t, model.status, "Scan error: disk on fire")
}

func TestScanUsesExpander(t *testing.T) {
	cfg := config.DefaultConfig()
	scanner := services.NewMockScanner()
	expand := func(ctx context.Context, roots []string) ([]string, error) {
		return []string{roots[0] + "/one", roots[0] + "/two"}, nil
	}
	model := NewModel(state.NewState(cfg, []string{"/root"}), scanner, services.NewMockActions(), Options{
		Config: cfg,
		Bounds: services.Between(1, 100),
		Expand: expand,
	})

	scanned(t, model)
	assert.Equal(t, []string{"/root/one", "/root/two"}, scanner.Request.Paths)
	assert.Equal(t, services.Between(1, 100), scanner.Request.Bounds)
	assert.Equal(t, cfg.ChunkSize, scanner.Request.ChunkSize)
}

func TestDeleteSelectedAfterConfirmation(t *testing.T) {
	model, _, actions := newTestModel(testRecords()...)
	model = scanned(t, model)

	model = drive(t, model, tea.KeyMsg{Type: tea.KeyDown})
	model = drive(t, model, tea.KeyMsg{Type: tea.KeySpace, Runes: []rune{' '}})
	model = drive(t, model, keyRunes("d"))
	require.True(t, model.confirming)
	assert.Contains(t, model.status, "DELETE 1 files")
	assert.Empty(t, actions.Requests)

	model = drive(t, model, keyRunes("y"))
	require.Len(t, actions.Requests, 1)
	request := actions.Requests[0]
	assert.Equal(t, services.ActionDelete, request.Type)
	assert.Equal(t, services.ConfirmDelete, request.ConfirmToken)
	assert.True(t, request.SafeMode)
	assert.Equal(t, []string{"/data/small-copy"}, domain.DuplicatePaths(request.Duplicates))

	assert.False(t, model.actionRunning)
	assert.Equal(t, []string{"/data/big-copy"}, domain.DuplicatePaths(model.state.Duplicates))
	assert.Contains(t, model.status, "1 succeeded")
}

func TestDeleteCancelledAtPrompt(t *testing.T) {
	model, _, actions := newTestModel(testRecords()...)
	model = scanned(t, model)

	model = drive(t, model, keyRunes("d"))
	model = drive(t, model, keyRunes("n"))
	assert.False(t, model.confirming)
	assert.Empty(t, actions.Requests)
	assert.Len(t, model.state.Duplicates, 2)
	assert.Equal(t, "Action cancelled", model.status)
}

func TestMoveAllToTypedDestination(t *testing.T) {
	model, _, actions := newTestModel(testRecords()...)
	model = scanned(t, model)

	model = drive(t, model, keyRunes("a"))
	model = drive(t, model, keyRunes("m"))
	require.True(t, model.capturingDestination)
	model = drive(t, model, keyRunes("/tmp/dupes"))
	model = drive(t, model, tea.KeyMsg{Type: tea.KeyEnter})
	require.True(t, model.confirming)
	model = drive(t, model, keyRunes("y"))

	require.Len(t, actions.Requests, 1)
	request := actions.Requests[0]
	assert.Equal(t, services.ActionMove, request.Type)
	assert.Equal(t, "/tmp/dupes", request.Destination)
	assert.Len(t, request.Duplicates, 2)
	assert.Empty(t, model.state.Duplicates)
	assert.Equal(t, "/tmp/dupes", model.ConfigSnapshot().LastDestination)
}

func TestMoveDestinationEntryCanBeCancelled(t *testing.T) {
	model, _, actions := newTestModel(testRecords()...)
	model.state.LastDestination = "/prev"
	model = scanned(t, model)

	model = drive(t, model, keyRunes("m"))
	assert.Equal(t, "/prev", model.destinationInput)
	model = drive(t, model, keyRunes("q"))
	assert.Equal(t, "/prevq", model.destinationInput)
	model = drive(t, model, tea.KeyMsg{Type: tea.KeyBackspace})
	model = drive(t, model, tea.KeyMsg{Type: tea.KeyEsc})
	assert.False(t, model.capturingDestination)
	assert.Empty(t, actions.Requests)
}

func TestFailedOutcomesStayListed(t *testing.T) {
	model, _, actions := newTestModel(testRecords()...)
	actions.Fail["/data/big-copy"] = errors.New("permission denied")
	model = scanned(t, model)

	model = drive(t, model, keyRunes("a"))
	model = drive(t, model, keyRunes("d"))
	model = drive(t, model, keyRunes("y"))

	assert.Equal(t, []string{"/data/big-copy"}, domain.DuplicatePaths(model.state.Duplicates))
	require.Len(t, model.lastFailures, 1)
	assert.Equal(t, "permission denied", model.lastFailures[0].ErrorDetail)
	assert.True(t, model.state.IsSelected("/data/big-copy"))
}

func TestSortAndHelp(t *testing.T) {
	model, _, _ := newTestModel(testRecords()...)
	model = scanned(t, model)

	model = drive(t, model, keyRunes("o"))
	assert.Equal(t, domain.SortByPath, model.state.Prefs.SortMode)
	assert.Equal(t, domain.SortByPath, model.ConfigSnapshot().SortMode)

	model = drive(t, model, keyRunes("?"))
	assert.Contains(t, model.View(), "dupsweep help")
	model = drive(t, model, keyRunes("?"))
	assert.Contains(t, model.View(), "/data/big-copy")
}

func TestQuit(t *testing.T) {
	model, _, _ := newTestModel()
	_, cmd := model.Update(keyRunes("q"))
	require.NotNil(t, cmd)
	assert.Equal(t, tea.Quit(), cmd())
}

func TestViewShowsSizesInMegabytes(t *testing.T) {
	model, _, _ := newTestModel(testRecords()...)
	model = scanned(t, model)
	model = drive(t, model, tea.WindowSizeMsg{Width: 140, Height: 30})

	view := model.View()
	assert.Contains(t, view, "3.00 MB")
	assert.Contains(t, view, "/data/big")
}

// Services that refuse a batch before publishing a progress channel.
type unpublishedScanner struct{ *services.MockScanner }

func (unpublishedScanner) Progress() <-chan services.ScanProgress { return nil }

type unpublishedActions struct{ *services.MockActions }

func (unpublishedActions) ActionProgress() <-chan services.ActionProgress { return nil }

func runWithin(t *testing.T, timeout time.Duration, cmd tea.Cmd) []tea.Msg {
	t.Helper()
	produced := make(chan []tea.Msg, 1)
	go func() { produced <- runCmd(cmd) }()
	select {
	case msgs := <-produced:
		return msgs
	case <-time.After(timeout):
		t.Fatalf("command still running after %s", timeout)
		return nil
	}
}

func TestProgressPollersReturnWhenBatchFailsEarly(t *testing.T) {
	cfg := config.DefaultConfig()
	appState := state.NewState(cfg, []string{"/data"})
	model := NewModel(appState, unpublishedScanner{services.NewMockScanner()}, unpublishedActions{services.NewMockActions()}, Options{
		Config: cfg,
		Expand: func(context.Context, []string) ([]string, error) {
			return nil, errors.New("root unreadable")
		},
	})

	next, cmd := model.beginScan()
	model = next.(Model)
	msgs := runWithin(t, 2*time.Second, cmd)
	require.Len(t, msgs, 2)
	for _, msg := range msgs {
		model = drive(t, model, msg)
	}
	assert.False(t, model.scanning)
	assert.Contains(t, model.status, "root unreadable")

	model.pendingAction = services.ActionMove
	model.pendingRecords = testRecords()
	model.pendingDestination = ""
	next, cmd = model.confirmAction()
	model = next.(Model)
	msgs = runWithin(t, 2*time.Second, cmd)
	require.Len(t, msgs, 2)
	for _, msg := range msgs {
		model = drive(t, model, msg)
	}
	assert.False(t, model.actionRunning)
	assert.Contains(t, model.status, "Action error")
}

func TestBasicPreviewSamplesSortedPaths(t *testing.T) {
	records := make([]domain.DuplicateRecord, 0, 7)
	for _, name := range []string{"g", "c", "a", "f", "b", "e", "d"} {
		records = append(records, domain.DuplicateRecord{DuplicatePath: "/p/" + name, OriginalPath: "/o", SizeBytes: 2})
	}

	preview := basicPreview(services.ActionRequest{Type: services.ActionDelete, Duplicates: records})

	assert.Equal(t, 7, preview.TotalFiles)
	assert.Equal(t, int64(14), preview.TotalBytes)
	assert.Equal(t, []string{"/p/a", "/p/b", "/p/c", "/p/d", "/p/e"}, preview.Samples)
}
