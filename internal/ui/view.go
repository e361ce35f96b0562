package ui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/lipgloss"

	"dupsweep/internal/domain"
	"dupsweep/internal/services"
)

type uiStyles struct {
	headerStyle   lipgloss.Style
	mutedStyle    lipgloss.Style
	statusStyle   lipgloss.Style
	warnStyle     lipgloss.Style
	cursorStyle   lipgloss.Style
	selectedStyle lipgloss.Style
	panelBorder   lipgloss.Style
}

func stylesFor(model Model) uiStyles {
	if strings.ToLower(model.state.Prefs.Theme) == "light" {
		return uiStyles{
			headerStyle:   lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("235")),
			mutedStyle:    lipgloss.NewStyle().Foreground(lipgloss.Color("242")),
			statusStyle:   lipgloss.NewStyle().Foreground(lipgloss.Color("25")).Bold(true),
			warnStyle:     lipgloss.NewStyle().Foreground(lipgloss.Color("124")).Bold(true),
			cursorStyle:   lipgloss.NewStyle().Foreground(lipgloss.Color("90")).Bold(true),
			selectedStyle: lipgloss.NewStyle().Foreground(lipgloss.Color("28")).Bold(true),
			panelBorder:   lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).Padding(0, 1),
		}
	}
	return uiStyles{
		headerStyle:   lipgloss.NewStyle().Bold(true),
		mutedStyle:    lipgloss.NewStyle().Foreground(lipgloss.Color("241")),
		statusStyle:   lipgloss.NewStyle().Foreground(lipgloss.Color("69")).Bold(true),
		warnStyle:     lipgloss.NewStyle().Foreground(lipgloss.Color("204")).Bold(true),
		cursorStyle:   lipgloss.NewStyle().Foreground(lipgloss.Color("205")).Bold(true),
		selectedStyle: lipgloss.NewStyle().Foreground(lipgloss.Color("42")).Bold(true),
		panelBorder:   lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).Padding(0, 1),
	}
}

func (model Model) View() string {
	styles := stylesFor(model)
	if model.showHelp {
		return renderHelpView(model, styles)
	}
	return strings.Join([]string{renderBody(model, styles), renderFooter(model, styles)}, "\n")
}

func renderBody(model Model, styles uiStyles) string {
	bodyHeight := maxInt(model.listHeight(), 3)
	leftWidth, rightWidth, showRight := splitPanels(model.width)
	left := renderListPanel(model, styles, bodyHeight, leftWidth)
	if !showRight {
		return left
	}
	sep := lipgloss.NewStyle().Foreground(lipgloss.Color("238")).Render("│")
	right := renderDetailPanel(model, styles, rightWidth, bodyHeight)
	return lipgloss.JoinHorizontal(lipgloss.Top, left, sep, right)
}

func renderFooter(model Model, styles uiStyles) string {
	statusLine := trimStatus(model.status, model.width)
	if model.scanning {
		statusLine = fmt.Sprintf("%s  %s", statusLine, progressBar(model.progressCount, model.progressTotal, 18))
	}
	if model.actionRunning {
		statusLine = fmt.Sprintf("%s  %s", statusLine, progressBar(model.actionProgressCount, len(model.pendingRecords), 18))
	}
	statusStyle := styles.mutedStyle
	lower := strings.ToLower(model.status)
	failed := strings.Contains(lower, "failed") && !strings.Contains(lower, " 0 failed")
	if failed || strings.Contains(lower, "error") || strings.Contains(lower, "warning") {
		statusStyle = styles.warnStyle
	}
	statusLine = statusStyle.Render(statusLine)

	selectedCount, selectedSize := model.state.SelectionSummary()
	left := fmt.Sprintf("Selected: %d (%s)  Sort: %s  Safe: %s",
		selectedCount, formatMB(selectedSize), strings.ToUpper(string(model.state.Prefs.SortMode)), onOff(model.state.Prefs.SafeMode))
	keys := "↑/↓ move  space select  a all  x clear  d delete  m move  o sort  s rescan  ? help  q quit"
	if model.scanning {
		keys = "esc cancel scan  q quit"
	}
	if model.confirming {
		keys = "y confirm  n cancel"
	}
	if model.capturingDestination {
		keys = "type destination  tab complete  enter confirm  esc cancel"
	}
	footerLine := padLine(left, keys, model.width)
	return strings.Join([]string{statusLine, styles.mutedStyle.Render(footerLine)}, "\n")
}

func renderListPanel(model Model, styles uiStyles, height, width int) string {
	if width < 20 {
		width = 20
	}
	contentWidth := maxInt(width-2, 10)
	status := "IDLE"
	if model.scanning {
		status = "SCANNING"
	} else if model.actionRunning {
		status = strings.ToUpper(string(model.pendingAction))
	}
	summary := fmt.Sprintf("%d duplicates  %s", len(model.state.Duplicates), formatMB(domain.ReclaimableBytes(model.state.Duplicates)))
	headerLine := padLine(styles.headerStyle.Render("dupsweep")+"  "+summary, styles.statusStyle.Render(status), contentWidth)
	listHeight := maxInt(height-1, 1)

	records := model.state.Duplicates
	if len(records) == 0 {
		message := "No duplicates found"
		if model.scanning {
			message = "Scanning..."
		}
		lines := []string{headerLine, message}
		for i := 0; i < maxInt(listHeight-1, 0); i++ {
			lines = append(lines, "")
		}
		return styles.panelBorder.Width(contentWidth).Render(strings.Join(lines, "\n"))
	}

	start := clamp(model.viewTop, 0, maxInt(len(records)-1, 0))
	end := minInt(start+listHeight, len(records))
	lines := make([]string, 0, height)
	lines = append(lines, headerLine)
	for index := start; index < end; index++ {
		record := records[index]
		marker := "[ ]"
		if model.state.IsSelected(record.DuplicatePath) {
			marker = styles.selectedStyle.Render("[x]")
		}
		line := fmt.Sprintf("%10s %s %s", formatMB(record.SizeBytes), marker, record.DuplicatePath)
		if index == model.state.Cursor {
			line = styles.cursorStyle.Render(line)
		}
		lines = append(lines, line)
	}
	for len(lines) < height {
		lines = append(lines, "")
	}
	return styles.panelBorder.Width(contentWidth).Render(strings.Join(lines, "\n"))
}

func renderDetailPanel(model Model, styles uiStyles, width, height int) string {
	contentWidth := maxInt(width-2, 10)
	var lines []string
	switch {
	case model.confirming:
		lines = previewLines(model, styles)
	case model.capturingDestination:
		lines = destinationLines(model, styles)
	case len(model.lastFailures) > 0:
		lines = failureLines(model, styles)
	default:
		record := model.state.CurrentRecord()
		if record == nil {
			lines = scanSummaryLines(model, styles)
			break
		}
		lines = []string{
			styles.headerStyle.Render("Duplicate"),
			record.DuplicatePath,
			"",
			styles.headerStyle.Render("Original"),
			record.OriginalPath,
			"",
			styles.headerStyle.Render("Size"),
			fmt.Sprintf("%s (%d bytes)", formatMB(record.SizeBytes), record.SizeBytes),
			"",
			styles.headerStyle.Render("SHA-256"),
			string(record.Digest),
		}
		lines = append(lines, "", styles.mutedStyle.Render(fmt.Sprintf("%d unreadable, %d outside size range", model.state.Failed, model.state.Skipped)))
	}
	content := lipgloss.NewStyle().Width(contentWidth).Height(height).Render(strings.Join(lines, "\n"))
	return styles.panelBorder.Width(contentWidth).Render(content)
}

func scanSummaryLines(model Model, styles uiStyles) []string {
	lines := []string{
		styles.headerStyle.Render("Scan"),
		strings.Join(model.state.Paths, "\n"),
		"",
		fmt.Sprintf("Size range: %s", model.bounds),
	}
	if len(model.scanFailures) > 0 {
		lines = append(lines, "", styles.headerStyle.Render("Unreadable"))
		for i, failure := range model.scanFailures {
			if i == 8 {
				lines = append(lines, "...")
				break
			}
			lines = append(lines, fmt.Sprintf("%s: %s", failure.Path, failure.Detail))
		}
	}
	return lines
}

func destinationLines(model Model, styles uiStyles) []string {
	lines := []string{
		styles.headerStyle.Render("Move to"),
		model.destinationInput,
	}
	if len(model.completionSuggestions) > 0 {
		lines = append(lines, "", styles.headerStyle.Render("Suggestions"))
		limit := minInt(8, len(model.completionSuggestions))
		lines = append(lines, model.completionSuggestions[:limit]...)
		if len(model.completionSuggestions) > limit {
			lines = append(lines, "...")
		}
	}
	return lines
}

func previewLines(model Model, styles uiStyles) []string {
	preview := model.pendingPreview
	lines := []string{
		styles.headerStyle.Render("Action Preview"),
		fmt.Sprintf("Type : %s", strings.ToUpper(string(preview.Type))),
		fmt.Sprintf("Files: %d", preview.TotalFiles),
		fmt.Sprintf("Size : %s", formatMB(preview.TotalBytes)),
	}
	if preview.Destination != "" {
		lines = append(lines, fmt.Sprintf("Dest : %s", preview.Destination))
	}
	if preview.Type == services.ActionDelete {
		lines = append(lines, "", styles.warnStyle.Render("Deleted files cannot be recovered."))
	}
	if len(preview.Samples) > 0 {
		lines = append(lines, "", styles.headerStyle.Render("Samples"))
		lines = append(lines, preview.Samples...)
	}
	if len(preview.Warnings) > 0 {
		lines = append(lines, "", styles.headerStyle.Render("Warnings"))
		lines = append(lines, preview.Warnings...)
	}
	return lines
}

func failureLines(model Model, styles uiStyles) []string {
	lines := []string{styles.warnStyle.Render(fmt.Sprintf("%d failed", len(model.lastFailures)))}
	for _, outcome := range model.lastFailures {
		lines = append(lines, outcome.Path, styles.mutedStyle.Render("  "+outcome.ErrorDetail))
	}
	return lines
}

func renderHelpView(model Model, styles uiStyles) string {
	bindings := []key.Binding{
		model.keys.Up,
		model.keys.Down,
		model.keys.Select,
		model.keys.SelectAll,
		model.keys.Clear,
		model.keys.Delete,
		model.keys.Move,
		model.keys.Scan,
		model.keys.Sort,
		model.keys.Confirm,
		model.keys.Cancel,
		model.keys.Help,
		model.keys.Quit,
	}

	lines := []string{styles.headerStyle.Render("dupsweep help"), ""}
	lines = append(lines, "Each row is a file whose content matches an earlier file (its original).")
	lines = append(lines, "Actions apply to the selected rows, or to the row under the cursor.")
	lines = append(lines, "", styles.headerStyle.Render("Safety"))
	lines = append(lines, "every action asks y/n first", "safe mode keeps a copy whose original has gone")
	lines = append(lines, "", styles.headerStyle.Render("Keys"))
	for _, binding := range bindings {
		lines = append(lines, fmt.Sprintf("%-18s %s", binding.Help().Key, binding.Help().Desc))
	}
	lines = append(lines, "", "Press ? to close help")
	width := model.width
	if width <= 0 {
		width = 80
	}
	return styles.panelBorder.Width(maxInt(width-2, 10)).Render(strings.Join(lines, "\n"))
}

func padLine(left, right string, width int) string {
	if width <= 0 {
		return left
	}
	space := width - lipgloss.Width(left) - lipgloss.Width(right)
	if space < 1 {
		return left + " " + right
	}
	return left + strings.Repeat(" ", space) + right
}

func splitPanels(width int) (int, int, bool) {
	if width < 80 {
		return width, 0, false
	}
	left := maxInt(int(float64(width)*0.6), 40)
	right := width - left - 1
	if right < 30 {
		return width, 0, false
	}
	return left, right, true
}

// formatMB renders sizes the way the listing shows them, always in megabytes.
func formatMB(size int64) string {
	return fmt.Sprintf("%.2f MB", float64(size)/(1<<20))
}

func onOff(value bool) string {
	if value {
		return "on"
	}
	return "off"
}

func progressBar(done, total, width int) string {
	if width <= 0 {
		return ""
	}
	pos := done % (width + 1)
	if total > 0 {
		pos = minInt(done*width/total, width)
	}
	return fmt.Sprintf("[%s%s]", strings.Repeat("█", pos), strings.Repeat("░", width-pos))
}

func trimStatus(message string, width int) string {
	if width <= 0 {
		return message
	}
	max := width - 4
	if max <= 0 || len(message) <= max {
		return message
	}
	return message[:max] + "..."
}

func clamp(value, min, max int) int {
	if value < min {
		return min
	}
	if value > max {
		return max
	}
	return value
}

func maxInt(a, b int) int {
	if a > b {
		return a
	}
	return b
}

func minInt(a, b int) int {
	if a < b {
		return a
	}
	return b
}
