package state

import (
	"sort"

	"dupsweep/internal/config"
	"dupsweep/internal/domain"
)

type Preferences struct {
	SafeMode bool
	SortMode domain.SortMode
	Theme    string
}

// State is the review session over one scan's duplicates. It owns its own copy of the
// records; the scanner never sees it.
type State struct {
	Paths           []string
	Duplicates      []domain.DuplicateRecord
	Cursor          int
	Selected        map[string]bool
	Prefs           Preferences
	LastDestination string
	Failed          int
	Skipped         int
}

func NewState(cfg config.Config, paths []string) *State {
	return &State{
		Paths:    append([]string(nil), paths...),
		Selected: make(map[string]bool),
		Prefs: Preferences{
			SafeMode: cfg.SafeMode,
			SortMode: cfg.SortMode,
			Theme:    cfg.Theme,
		},
		LastDestination: cfg.LastDestination,
	}
}

// SetDuplicates replaces the listing, dropping selections for paths no longer present.
func (appState *State) SetDuplicates(records []domain.DuplicateRecord) {
	appState.Duplicates = append([]domain.DuplicateRecord(nil), records...)
	appState.sortDuplicates()

	present := make(map[string]bool, len(appState.Duplicates))
	for _, record := range appState.Duplicates {
		present[record.DuplicatePath] = true
	}
	for path := range appState.Selected {
		if !present[path] {
			delete(appState.Selected, path)
		}
	}
	appState.clampCursor()
}

// RemoveHandled drops every record whose action succeeded and returns how many went.
func (appState *State) RemoveHandled(outcomes []domain.ActionOutcome) int {
	handled := make(map[string]bool, len(outcomes))
	for _, outcome := range outcomes {
		if outcome.Succeeded {
			handled[outcome.Path] = true
		}
	}
	if len(handled) == 0 {
		return 0
	}
	kept := appState.Duplicates[:0]
	for _, record := range appState.Duplicates {
		if handled[record.DuplicatePath] {
			delete(appState.Selected, record.DuplicatePath)
			continue
		}
		kept = append(kept, record)
	}
	removed := len(appState.Duplicates) - len(kept)
	appState.Duplicates = kept
	appState.clampCursor()
	return removed
}

func (appState *State) CurrentRecord() *domain.DuplicateRecord {
	if appState.Cursor < 0 || appState.Cursor >= len(appState.Duplicates) {
		return nil
	}
	return &appState.Duplicates[appState.Cursor]
}

func (appState *State) MoveCursor(delta int) {
	appState.Cursor += delta
	appState.clampCursor()
}

func (appState *State) ToggleSelection(path string) {
	if path == "" {
		return
	}
	appState.Selected[path] = !appState.Selected[path]
	if !appState.Selected[path] {
		delete(appState.Selected, path)
	}
}

func (appState *State) SelectAll() {
	for _, record := range appState.Duplicates {
		appState.Selected[record.DuplicatePath] = true
	}
}

func (appState *State) ClearSelection() {
	appState.Selected = make(map[string]bool)
}

func (appState *State) IsSelected(path string) bool {
	return appState.Selected[path]
}

// SelectedRecords returns the selected duplicates in listing order, or the record under
// the cursor when nothing is selected.
func (appState *State) SelectedRecords() []domain.DuplicateRecord {
	records := make([]domain.DuplicateRecord, 0, len(appState.Selected))
	for _, record := range appState.Duplicates {
		if appState.Selected[record.DuplicatePath] {
			records = append(records, record)
		}
	}
	if len(records) == 0 {
		if current := appState.CurrentRecord(); current != nil {
			records = append(records, *current)
		}
	}
	return records
}

func (appState *State) SelectionSummary() (int, int64) {
	records := appState.SelectedRecords()
	return len(records), domain.ReclaimableBytes(records)
}

func (appState *State) ToggleSortMode() domain.SortMode {
	modes := config.SortModes()
	next := modes[0]
	for i, mode := range modes {
		if mode == appState.Prefs.SortMode {
			next = modes[(i+1)%len(modes)]
			break
		}
	}
	appState.Prefs.SortMode = next
	appState.sortDuplicates()
	return next
}

func (appState *State) sortDuplicates() {
	records := appState.Duplicates
	var less func(i, j int) bool
	switch appState.Prefs.SortMode {
	case domain.SortByPath:
		less = func(i, j int) bool { return records[i].DuplicatePath < records[j].DuplicatePath }
	case domain.SortByOriginal:
		less = func(i, j int) bool {
			if records[i].OriginalPath != records[j].OriginalPath {
				return records[i].OriginalPath < records[j].OriginalPath
			}
			return records[i].DuplicatePath < records[j].DuplicatePath
		}
	default:
		less = func(i, j int) bool {
			if records[i].SizeBytes != records[j].SizeBytes {
				return records[i].SizeBytes > records[j].SizeBytes
			}
			return records[i].DuplicatePath < records[j].DuplicatePath
		}
	}
	sort.SliceStable(records, less)
}

func (appState *State) clampCursor() {
	if appState.Cursor >= len(appState.Duplicates) {
		appState.Cursor = len(appState.Duplicates) - 1
	}
	if appState.Cursor < 0 {
		appState.Cursor = 0
	}
}
