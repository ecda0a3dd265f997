// Package output provides terminal output utilities for ghstore: tables for
// installed apps and update history, progress bars for downloads, and
// spinners for indeterminate work. Progress indicators are thread-safe.
package output

import (
	"fmt"
	"os"
	"sort"
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/mattn/go-isatty"

	"github.com/blackwell-systems/ghstore/internal/store"
)

// ANSI color codes for status display
const (
	colorReset  = "\033[0m"
	colorGreen  = "\033[32m"
	colorYellow = "\033[33m"
	colorRed    = "\033[31m"
	colorGray   = "\033[90m"
)

// IsColorEnabled returns true if ANSI color codes should be emitted.
// It checks that os.Stdout is a TTY and that the NO_COLOR env var is not set.
func IsColorEnabled() bool {
	if os.Getenv("NO_COLOR") != "" {
		return false
	}
	return isatty.IsTerminal(os.Stdout.Fd())
}

// colorize wraps text in the given ANSI color code if color is enabled,
// otherwise returns the plain text.
func colorize(color, text string) string {
	if IsColorEnabled() {
		return color + text + colorReset
	}
	return text
}

// RenderAppTable renders the installed apps with their update status.
func RenderAppTable(apps []*store.InstalledApp) string {
	if len(apps) == 0 {
		return "No apps installed.\n"
	}

	sorted := make([]*store.InstalledApp, len(apps))
	copy(sorted, apps)
	sort.Slice(sorted, func(i, j int) bool {
		return sorted[i].PackageID < sorted[j].PackageID
	})

	var sb strings.Builder

	sb.WriteString(fmt.Sprintf("%-20s %-14s %-22s %-8s %-15s %s\n",
		"App", "Installed", "Repository", "Size", "Last Checked", "Status"))
	sb.WriteString(strings.Repeat("─", 92))
	sb.WriteString("\n")

	for _, app := range sorted {
		repo := app.RepoOwner + "/" + app.RepoName
		if repo == "/" {
			repo = "—"
		}
		size := "—"
		if app.LatestAssetSize > 0 {
			size = humanize.IBytes(uint64(app.LatestAssetSize))
		}
		checked := "never"
		if !app.LastCheckedAt.IsZero() {
			checked = humanize.Time(app.LastCheckedAt)
		}

		sb.WriteString(fmt.Sprintf("%-20s %-14s %-22s %-8s %-15s %s\n",
			truncate(app.PackageID, 20),
			truncate(app.InstalledVersion, 14),
			truncate(repo, 22),
			size,
			checked,
			statusLabel(app)))
	}

	return sb.String()
}

// statusLabel summarizes one app's state in a colored word.
func statusLabel(app *store.InstalledApp) string {
	switch {
	case app.PendingInstall:
		return colorize(colorYellow, "installing")
	case app.UpdateAvailable:
		return colorize(colorYellow, "update "+app.LatestVersion)
	case app.InstallSource == store.SourceExternal:
		return colorize(colorGray, "external")
	case !app.UpdateCheckEnabled:
		return colorize(colorGray, "checks off")
	default:
		return colorize(colorGreen, "up to date")
	}
}

// RenderHistoryTable renders update history rows, newest first.
func RenderHistoryTable(rows []*store.UpdateHistory) string {
	if len(rows) == 0 {
		return "No update history.\n"
	}

	var sb strings.Builder

	sb.WriteString(fmt.Sprintf("%-20s %-14s %-14s %-15s %s\n",
		"App", "From", "To", "When", "Result"))
	sb.WriteString(strings.Repeat("─", 80))
	sb.WriteString("\n")

	for _, h := range rows {
		from := h.FromVersion
		if from == "" {
			from = "—"
		}
		result := colorize(colorGreen, "ok")
		if !h.Success {
			result = colorize(colorRed, "failed: "+truncate(h.ErrorText, 30))
		}

		sb.WriteString(fmt.Sprintf("%-20s %-14s %-14s %-15s %s\n",
			truncate(h.PackageID, 20),
			truncate(from, 14),
			truncate(h.ToVersion, 14),
			humanize.Time(h.UpdatedAt),
			result))
	}

	return sb.String()
}

// RenderStatusSummary renders a one-line overview for the status command.
// Format: "12 apps tracked · 3 updates available · daemon running"
func RenderStatusSummary(tracked, updates int, daemonRunning bool) string {
	var sb strings.Builder

	sb.WriteString(fmt.Sprintf("%d apps tracked", tracked))
	sb.WriteString(" · ")

	if updates > 0 {
		sb.WriteString(colorize(colorYellow, fmt.Sprintf("%d updates available", updates)))
	} else {
		sb.WriteString("no updates available")
	}
	sb.WriteString(" · ")

	if daemonRunning {
		sb.WriteString(colorize(colorGreen, "daemon running"))
	} else {
		sb.WriteString(colorize(colorGray, "daemon stopped"))
	}

	return sb.String()
}

// truncate truncates a string to maxLen, adding "..." if truncated.
func truncate(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	if maxLen <= 3 {
		return s[:maxLen]
	}
	return s[:maxLen-3] + "..."
}
