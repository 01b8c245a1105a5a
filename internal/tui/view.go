package tui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/samber/lo"

	"github.com/ckaznable/encore/mpdprotocol"
)

var (
	titleStyle    = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("255"))
	stateStyle    = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("42"))
	pausedStyle   = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("214"))
	stoppedStyle  = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("245"))
	flagOnStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("39"))
	flagOffStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("239"))
	currentStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("42"))
	selectedStyle = lipgloss.NewStyle().Bold(true).Background(lipgloss.Color("238")) // Keeps the row's foreground
	dimStyle      = lipgloss.NewStyle().Foreground(lipgloss.Color("241"))
	errorStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("196"))
)

// Two header lines, the separator and the footer.
const chromeLines = 4

func (m Model) viewportHeight() int {
	return max(m.height-chromeLines, 1)
}

func (m Model) View() string {
	if !m.hasSnap {
		return dimStyle.Render("Connecting...") + "\n"
	}

	var b strings.Builder
	b.WriteString(m.renderNowPlaying())
	b.WriteString("\n")
	b.WriteString(m.renderProgress())
	b.WriteString("\n")
	b.WriteString(dimStyle.Render(strings.Repeat("─", max(m.width, 1))))
	b.WriteString("\n")
	b.WriteString(m.renderQueue())
	b.WriteString(m.renderFooter())
	return b.String()
}

func (m Model) renderNowPlaying() string {
	var state string
	switch m.snap.Status.State {
	case mpdprotocol.StatePlay:
		state = stateStyle.Render("▶ playing")
	case mpdprotocol.StatePause:
		state = pausedStyle.Render("⏸ paused")
	default:
		state = stoppedStyle.Render("■ stopped")
	}

	track, ok := m.snap.CurrentTrack()
	if !ok {
		return state
	}
	return state + "  " + titleStyle.Render(trackLabel(track))
}

func (m Model) renderProgress() string {
	status := m.snap.Status
	progress := "--:-- / --:--"
	if track, ok := m.snap.CurrentTrack(); ok {
		progress = mpdprotocol.FormatDuration(int(m.elapsed.Seconds())) + " / " + mpdprotocol.FormatDuration(track.Time)
	}

	flags := []string{
		renderFlag("repeat", status.Repeat),
		renderFlag("random", status.Random),
		renderFlag("single:"+status.Single.String(), status.Single != mpdprotocol.SingleOff),
		renderFlag("consume", status.Consume),
	}
	return progress + "  " + strings.Join(flags, " ") + "  " +
		dimStyle.Render(fmt.Sprintf("%d tracks", status.QueueLen))
}

func renderFlag(name string, on bool) string {
	return lo.Ternary(on, flagOnStyle, flagOffStyle).Render("[" + name + "]")
}

func trackLabel(t mpdprotocol.Track) string {
	if artist := t.DisplayArtist(); artist != "" {
		return artist + " - " + t.DisplayTitle()
	}
	return t.DisplayTitle()
}

func (m Model) renderQueue() string {
	height := m.viewportHeight()
	if len(m.snap.Queue) == 0 {
		return dimStyle.Render("Queue is empty") + "\n" + strings.Repeat("\n", height-1)
	}

	start := m.viewportOffset
	end := min(start+height, len(m.snap.Queue))
	rows := lo.Map(m.snap.Queue[start:end], func(t mpdprotocol.Track, i int) string {
		return m.renderRow(start+i, t)
	})

	var b strings.Builder
	for _, row := range rows {
		b.WriteString(row)
		b.WriteString("\n")
	}
	// Keep the footer on the last line.
	b.WriteString(strings.Repeat("\n", height-len(rows)))
	return b.String()
}

func (m Model) renderRow(pos int, t mpdprotocol.Track) string {
	current := m.snap.Status.Song != nil && m.snap.Status.Song.Pos == pos
	marker := lo.Ternary(current, "▶", " ")
	duration := lo.Ternary(t.Time > 0, mpdprotocol.FormatDuration(t.Time), "")

	left := fmt.Sprintf("%s %3d  %s", marker, pos+1, trackLabel(t))
	width := max(m.width-lipgloss.Width(duration)-1, 1)
	left = lipgloss.NewStyle().MaxWidth(width).Render(left)
	gap := max(m.width-lipgloss.Width(left)-lipgloss.Width(duration), 1)
	row := left + strings.Repeat(" ", gap) + duration

	if current {
		row = currentStyle.Render(row)
	}
	if pos == m.cursor {
		row = selectedStyle.Render(row)
	}
	return row
}

func (m Model) renderFooter() string {
	if m.statusMsg != "" {
		return errorStyle.MaxWidth(m.width).Render(m.statusMsg)
	}
	return dimStyle.MaxWidth(m.width).Render("enter play · space pause · n/b next/prev · s stop · ←/→ seek · r/z/y/c modes · d delete · +/- volume · q quit")
}
