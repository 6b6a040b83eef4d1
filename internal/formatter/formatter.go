// Package formatter renders listings and summaries for the CLI. Pure
// presentation over the engine's symbolic states: the glyph and label
// mapping lives here, never in the engine.
package formatter

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"sort"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/panqplex/panqplex/internal/models"
	"github.com/panqplex/panqplex/internal/tasks"
)

// StatusDisplay is the presentation mapping for one lifecycle state.
type StatusDisplay struct {
	Glyph       string
	Label       string
	Description string
}

var statusDisplays = map[models.Status]StatusDisplay{
	models.StatusUndefined:    {"?", "Undefined", "Not yet processed"},
	models.StatusAcknowledged: {"·", "Acknowledged", "Discovered with default metadata"},
	models.StatusProvisioned:  {"✎", "Provisioned", "Metadata edited, not marked ready"},
	models.StatusQueuedNew:    {"★", "Queued (New)", "Ready for first upload"},
	models.StatusUploading:    {"↑", "Uploading", "Transfer in flight or interrupted"},
	models.StatusFinished:     {"✓", "Finished", "Uploaded and in sync"},
	models.StatusQueuedEdit:   {"↻", "Queued (Edit)", "Local changes pending re-sync"},
	models.StatusHindered:     {"!", "Hindered", "Needs operator intervention"},
}

// Display returns the presentation mapping for a status.
func Display(status models.Status) StatusDisplay {
	if d, ok := statusDisplays[status]; ok {
		return d
	}
	return StatusDisplay{"?", string(status), "Unknown status"}
}

var (
	headerStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#7D56F4"))
	okStyle     = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#04B575"))
	errStyle    = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#FF0000"))
	subtleStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#626262"))
)

// FileTable renders tracked files as an aligned text table.
func FileTable(files []*models.MediaFile) string {
	var b strings.Builder

	b.WriteString(headerStyle.Render(fmt.Sprintf("%-2s %-36s %-14s %-10s %-8s %s", "", "FILE", "STATUS", "SIZE", "OWNER", "TITLE")))
	b.WriteString("\n")

	for _, file := range files {
		d := Display(file.Status)
		line := fmt.Sprintf("%-2s %-36s %-14s %-10s %-8s %s",
			d.Glyph,
			truncate(file.Path, 36),
			d.Label,
			sizeMB(file.SizeBytes),
			truncate(file.OwnerAccount(""), 8),
			truncate(file.Metadata["title"], 30),
		)
		if file.Status == models.StatusHindered {
			line += subtleStyle.Render("  " + truncate(file.LastError, 40))
		}
		if file.Status == models.StatusUploading && file.TransferState != nil {
			confirmed, total := file.TransferState.Progress()
			percent := 0.0
			if total > 0 {
				percent = float64(confirmed) / float64(total) * 100
			}
			line += subtleStyle.Render(fmt.Sprintf("  %.0f%% (attempt %d)", percent, file.TransferState.AttemptCount))
		}
		b.WriteString(line)
		b.WriteString("\n")
	}

	return b.String()
}

// SummaryText renders a summary as status buckets plus pending/hindered
// callouts.
func SummaryText(summary *tasks.Summary) string {
	var b strings.Builder

	b.WriteString(headerStyle.Render("Sync status"))
	b.WriteString("\n")
	b.WriteString(fmt.Sprintf("Tracked files: %d\n", summary.Total))

	statuses := make([]models.Status, 0, len(summary.ByStatus))
	for status := range summary.ByStatus {
		statuses = append(statuses, status)
	}
	sort.Slice(statuses, func(i, j int) bool { return statuses[i] < statuses[j] })

	for _, status := range statuses {
		d := Display(status)
		b.WriteString(fmt.Sprintf("  %s %-14s %d\n", d.Glyph, d.Label, summary.ByStatus[status]))
	}

	if summary.PendingAdmission > 0 {
		b.WriteString(fmt.Sprintf("Pending admission: %d\n", summary.PendingAdmission))
	}

	for _, h := range summary.Hindered {
		b.WriteString(errStyle.Render(fmt.Sprintf("! %s", h.Path)))
		b.WriteString(subtleStyle.Render(fmt.Sprintf("  %s", h.Cause)))
		b.WriteString("\n")
	}

	return b.String()
}

// SyncResultText renders the outcome of one sync pass.
func SyncResultText(result *tasks.SyncResult, dryRun bool) string {
	var b strings.Builder

	if dryRun {
		b.WriteString(fmt.Sprintf("Would upload %d file(s)\n", result.WouldUpload))
	} else {
		if result.Uploaded > 0 {
			b.WriteString(okStyle.Render(fmt.Sprintf("Uploaded %d file(s)", result.Uploaded)))
			if result.Resumed > 0 {
				b.WriteString(fmt.Sprintf(" (%d resumed)", result.Resumed))
			}
			b.WriteString("\n")
		}
		if result.Refused > 0 {
			b.WriteString(fmt.Sprintf("Pending admission: %d file(s) refused by quota\n", result.Refused))
		}
		if result.Failed > 0 {
			b.WriteString(errStyle.Render(fmt.Sprintf("Failed: %d file(s) hindered", result.Failed)))
			b.WriteString("\n")
		}
	}

	b.WriteString(SummaryText(&result.Summary))
	return b.String()
}

// AccountTable renders accounts with their quota consumption as CSV-ish
// aligned text.
func AccountTable(accounts []*models.Account) string {
	var b strings.Builder

	b.WriteString(headerStyle.Render(fmt.Sprintf("%-12s %-20s %-8s %s", "ACCOUNT", "NAME", "QUOTA", "WINDOW START")))
	b.WriteString("\n")

	for _, account := range accounts {
		quota := fmt.Sprintf("%d/%d", account.UploadsConsumed, account.MaxDailyUploads)
		if account.Suspended() {
			quota = "suspended"
		}
		window := "-"
		if !account.QuotaWindowStart.IsZero() {
			window = account.QuotaWindowStart.In(account.Location()).Format("2006-01-02 15:04")
		}
		b.WriteString(fmt.Sprintf("%-12s %-20s %-8s %s\n", account.ID, truncate(account.DisplayName, 20), quota, window))
	}

	return b.String()
}

// ExportToCSV renders files as CSV for scripting.
func ExportToCSV(files []*models.MediaFile) ([]byte, error) {
	var buf bytes.Buffer
	writer := csv.NewWriter(&buf)

	headers := []string{"ID", "Path", "Status", "SizeBytes", "Owner", "RemoteID", "Title"}
	if err := writer.Write(headers); err != nil {
		return nil, fmt.Errorf("failed to write CSV headers: %w", err)
	}

	for _, file := range files {
		record := []string{
			file.ID,
			file.Path,
			string(file.Status),
			fmt.Sprintf("%d", file.SizeBytes),
			file.OwnerAccount(""),
			file.RemoteID,
			file.Metadata["title"],
		}
		if err := writer.Write(record); err != nil {
			return nil, fmt.Errorf("failed to write CSV record: %w", err)
		}
	}

	writer.Flush()
	if err := writer.Error(); err != nil {
		return nil, fmt.Errorf("CSV writer error: %w", err)
	}

	return buf.Bytes(), nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	if n <= 3 {
		return s[:n]
	}
	return s[:n-3] + "..."
}

func sizeMB(bytes int64) string {
	return fmt.Sprintf("%.1fMB", float64(bytes)/1024/1024)
}
