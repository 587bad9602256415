package tui

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
)

// render draws the full dashboard from the current snapshot.
func (m Model) render() string {
	var b strings.Builder

	b.WriteString(m.renderHeader())
	b.WriteString("\n")

	if m.snap == nil {
		b.WriteString(boxStyle.Render(dimStyle.Render("waiting for first snapshot...")))
		b.WriteString("\n")
		b.WriteString(m.renderFooter())
		return b.String()
	}

	b.WriteString(m.renderListeners())
	b.WriteString("\n")
	b.WriteString(m.renderTraffic())
	b.WriteString("\n")
	b.WriteString(m.renderStream())
	b.WriteString("\n")
	b.WriteString(m.renderPipeline())
	b.WriteString("\n")
	b.WriteString(m.renderFooter())

	return b.String()
}

// renderHeader draws the title bar with uptime and ingest status.
func (m Model) renderHeader() string {
	title := titleStyle.Render("HLS Listener Stats")
	uptime := dimStyle.Render(fmt.Sprintf("up %s", formatDuration(time.Since(m.startTime))))

	status := dimStyle.Render("● starting")
	if m.snap != nil {
		status = ingestLabel(m.snap.IngestUp)
	}

	return lipgloss.JoinHorizontal(lipgloss.Left,
		title, "  ", status, "  ", uptime,
	)
}

// renderListeners draws the listener counts section.
func (m Model) renderListeners() string {
	s := m.snap
	var lines []string

	lines = append(lines, sectionHeaderStyle.Render("Listeners"))

	active := fmt.Sprintf("%d", s.ActiveShort)
	if s.DeltaShort != nil {
		active = fmt.Sprintf("%d  %s", s.ActiveShort, deltaLabel(*s.DeltaShort))
	}
	lines = append(lines, renderKeyValue("Active (short)", active))
	lines = append(lines, renderKeyValue("Active (long)", fmt.Sprintf("%d", s.ActiveLong)))
	lines = append(lines, renderKeyValue("New / Returning",
		fmt.Sprintf("%s / %s", formatNumber(s.NewCount), formatNumber(s.ReturningCount))))
	lines = append(lines, renderKeyValue("Tracked sessions", fmt.Sprintf("%d", s.ActiveSessions)))

	if s.Session.Samples > 0 {
		lines = append(lines, renderKeyValue("Session p50 / p75",
			fmt.Sprintf("%s / %s", formatSeconds(s.Session.P50Seconds), formatSeconds(s.Session.P75Seconds))))
	}

	if len(s.TopCategories) > 0 {
		var cats []string
		for _, c := range s.TopCategories {
			cats = append(cats, fmt.Sprintf("%s %d", c.Label, c.Count))
		}
		lines = append(lines, renderKeyValue("Top clients", strings.Join(cats, "  ")))
	}

	return strings.Join(lines, "\n")
}

// renderTraffic draws the request rate section.
func (m Model) renderTraffic() string {
	s := m.snap
	var lines []string

	lines = append(lines, sectionHeaderStyle.Render("Traffic"))
	lines = append(lines, renderKeyValue("Requests", formatRate(s.RequestsPerSec)))
	lines = append(lines, renderKeyValue("Segments / Playlists",
		fmt.Sprintf("%s / %s", formatRate(s.SegmentsPerSec), formatRate(s.PlaylistsPerSec))))

	errStyle := errorRateStyle(s.ErrorRate)
	lines = append(lines, lipgloss.JoinHorizontal(lipgloss.Left,
		labelStyle.Render("Error rate:"),
		errStyle.Render(formatPercent(s.ErrorRate)),
		dimStyle.Render(fmt.Sprintf("  (4xx %d, 5xx %d)", s.Errors4xx, s.Errors5xx)),
	))

	if s.SegmentSuccessRate != nil {
		lines = append(lines, renderKeyValue("Segment success", formatPercent(*s.SegmentSuccessRate)))
	}

	return strings.Join(lines, "\n")
}

// renderStream draws the latency estimate and playlist state.
func (m Model) renderStream() string {
	s := m.snap
	var lines []string

	lines = append(lines, sectionHeaderStyle.Render("Stream"))

	if s.Latency.Confidence == "estimated" {
		lines = append(lines, renderKeyValue("Latency (est)", formatSeconds(s.Latency.Seconds)))
	} else {
		lines = append(lines, lipgloss.JoinHorizontal(lipgloss.Left,
			labelStyle.Render("Latency (est):"),
			statusWarning.Render("unavailable"),
		))
	}

	if s.PlaylistAgeSeconds != nil {
		lines = append(lines, renderKeyValue("Playlist age", formatSeconds(*s.PlaylistAgeSeconds)))
	}

	if s.Origin != nil {
		origin := fmt.Sprintf("%d conns, %s", s.Origin.ActiveConnections, formatRate(s.Origin.RequestsPerSec))
		if !s.Origin.Healthy {
			origin = statusWarning.Render("unreachable")
		}
		lines = append(lines, renderKeyValue("Origin", origin))
	}

	return strings.Join(lines, "\n")
}

// renderPipeline draws tailer and parser health counters.
func (m Model) renderPipeline() string {
	s := m.snap
	var lines []string

	lines = append(lines, sectionHeaderStyle.Render("Pipeline"))
	lines = append(lines, renderKeyValue("Lines read", formatNumber(s.Tailer.Lines)))
	lines = append(lines, renderKeyValue("Rotations", fmt.Sprintf("%d", s.Tailer.Rotations)))

	faults := fmt.Sprintf("%s parse, %s skipped, %d tailer",
		formatNumber(s.ParseErrorCount), formatNumber(s.SkippedLineCount), s.Tailer.Errors)
	if s.ParseErrorCount > 0 || s.Tailer.Errors > 0 {
		lines = append(lines, lipgloss.JoinHorizontal(lipgloss.Left,
			labelStyle.Render("Faults:"),
			statusWarning.Render(faults),
		))
	} else {
		lines = append(lines, renderKeyValue("Faults", faults))
	}

	return strings.Join(lines, "\n")
}

// renderFooter draws the key hints line.
func (m Model) renderFooter() string {
	hints := fmt.Sprintf("%s  •  api %s%s  •  q quit",
		m.lastUpdate.Format("15:04:05"), m.listenAddr, "/api/stats")
	return footerStyle.Render(hints)
}
