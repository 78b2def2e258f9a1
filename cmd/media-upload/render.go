package main

import (
	"fmt"
	"path/filepath"
	"sort"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"media-upload-go/internal/compressor"
	"media-upload-go/internal/inspect"
	"media-upload-go/internal/statistics"
)

var (
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.AdaptiveColor{Light: "63", Dark: "205"})

	mutedStyle = lipgloss.NewStyle().
			Foreground(lipgloss.AdaptiveColor{Light: "240", Dark: "250"})

	errorStyle = lipgloss.NewStyle().
			Foreground(lipgloss.AdaptiveColor{Light: "160", Dark: "9"}).
			Bold(true)

	successStyle = lipgloss.NewStyle().
			Foreground(lipgloss.AdaptiveColor{Light: "34", Dark: "10"}).
			Bold(true)

	boxStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.AdaptiveColor{Light: "63", Dark: "63"}).
			Padding(0, 1)
)

// renderResults renders one line per file followed by a summary box.
func renderResults(results []compressor.CompressionResult) string {
	var b strings.Builder
	for _, r := range results {
		name := filepath.Base(r.InputPath)
		if r.Failed {
			fmt.Fprintf(&b, "%s %s %s\n", errorStyle.Render("✗"), name, mutedStyle.Render(fmt.Sprint(r.Error)))
			continue
		}
		out := ""
		if r.PathChanged() {
			out = " -> " + filepath.Base(r.OutputPath)
		}
		dims := ""
		if r.Resized {
			dims = fmt.Sprintf(" %dx%d", r.Width, r.Height)
		}
		fmt.Fprintf(&b, "%s %s%s %s\n",
			successStyle.Render("✓"),
			name+out,
			mutedStyle.Render(dims),
			mutedStyle.Render(fmt.Sprintf("%s, %s -> %s (%.2f%%)",
				r.Action,
				statistics.FormatBytes(r.OriginalSize),
				statistics.FormatBytes(r.CompressedSize),
				r.SavedPercent)))
	}
	b.WriteString(renderSummary(compressor.Summarize(results)))
	return b.String()
}

func renderSummary(s compressor.Summary) string {
	lines := []string{
		titleStyle.Render("Summary"),
		fmt.Sprintf("Files:  %d (%d failed)", s.Files, s.Failed),
		fmt.Sprintf("Before: %s", statistics.FormatBytes(s.OriginalSize)),
		fmt.Sprintf("After:  %s", statistics.FormatBytes(s.CompressedSize)),
		fmt.Sprintf("Saved:  %s (%.2f%%)", statistics.FormatBytes(s.Saved), s.SavedPercent),
	}
	return boxStyle.Render(strings.Join(lines, "\n")) + "\n"
}

func renderReport(r *inspect.Report) string {
	lines := []string{
		titleStyle.Render(r.Info.Path),
		fmt.Sprintf("Format:   %s", r.Info.Format),
		fmt.Sprintf("Size:     %dx%d, %s", r.Info.Width, r.Info.Height, statistics.FormatBytes(r.Info.Size)),
	}
	if r.Info.Orientation > 1 {
		lines = append(lines, fmt.Sprintf("Rotation: EXIF orientation %d", r.Info.Orientation))
	}
	if !r.CapturedAt.IsZero() {
		lines = append(lines, fmt.Sprintf("Captured: %s %s", r.CapturedAt.Format("2006-01-02 15:04:05"), mutedStyle.Render("("+r.DateSource+")")))
	}

	p := r.Plan
	action := "keep dimensions"
	if p.Resize {
		action = fmt.Sprintf("resize to %dx%d", p.Width, p.Height)
	}
	lines = append(lines,
		"",
		titleStyle.Render("As "+string(p.Category)),
		fmt.Sprintf("Output:   %s -> %s", p.OutputFormat, filepath.Base(p.OutputPath)),
		fmt.Sprintf("Resize:   %s", action),
	)

	if len(r.Metadata) > 0 {
		keys := make([]string, 0, len(r.Metadata))
		for k := range r.Metadata {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		lines = append(lines, "", titleStyle.Render(fmt.Sprintf("Metadata (%d tags)", len(keys))))
		for _, k := range keys {
			lines = append(lines, fmt.Sprintf("%s: %v", mutedStyle.Render(k), r.Metadata[k]))
		}
	}
	return boxStyle.Render(strings.Join(lines, "\n")) + "\n"
}
