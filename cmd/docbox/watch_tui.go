package main

import (
	"context"
	"fmt"

	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/dustin/go-humanize"

	teaprogress "github.com/charmbracelet/bubbles/progress"

	"github.com/docboxhq/docbox/internal/progress"
	"github.com/docboxhq/docbox/internal/syncsdk"
)

var (
	titleStyle  = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("86"))
	labelStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("241"))
	valueStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("252"))
	errorStyle  = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("196"))
	okStyle     = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("42"))
	statusStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("63"))
)

type snapshotMsg *progress.Snapshot

type connStateMsg syncsdk.ConnState

type streamErrMsg *syncsdk.StreamError

type watchModel struct {
	sourceID string
	spinner  spinner.Model
	bar      teaprogress.Model
	snap     *progress.Snapshot
	state    syncsdk.ConnState
	lastErr  string
	done     bool
}

func newWatchModel(sourceID string) watchModel {
	sp := spinner.New()
	sp.Spinner = spinner.Dot
	sp.Style = lipgloss.NewStyle().Foreground(lipgloss.Color("86"))

	return watchModel{
		sourceID: sourceID,
		spinner:  sp,
		bar:      teaprogress.New(teaprogress.WithDefaultGradient()),
		state:    syncsdk.ConnStateDisconnected,
	}
}

func (m watchModel) Init() tea.Cmd {
	return m.spinner.Tick
}

func (m watchModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "esc", "ctrl+c":
			return m, tea.Quit
		}

	case snapshotMsg:
		m.snap = msg
		if m.snap.Phase.Terminal() {
			m.done = true
			return m, tea.Quit
		}

	case connStateMsg:
		m.state = syncsdk.ConnState(msg)

	case streamErrMsg:
		m.lastErr = (*syncsdk.StreamError)(msg).Message

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd
	}

	return m, nil
}

func (m watchModel) View() string {
	s := titleStyle.Render("DocBox sync · "+m.sourceID) + "\n\n"

	if m.snap == nil {
		s += m.spinner.View() + " waiting for the first snapshot"
		s += "  " + statusStyle.Render(string(m.state)) + "\n"
		return s
	}

	snap := m.snap

	phase := m.spinner.View() + " " + string(snap.Phase)
	if snap.Phase == progress.PhaseCompleted {
		phase = okStyle.Render("✔ " + string(snap.Phase))
	} else if snap.Phase == progress.PhaseFailed {
		phase = errorStyle.Render("✘ " + string(snap.Phase))
	}
	s += phase
	if snap.PhaseDescription != "" {
		s += "  " + labelStyle.Render(snap.PhaseDescription)
	}
	s += "\n\n"

	if snap.FilesFound > 0 {
		s += m.bar.ViewAs(snap.FilesProgressPercent/100) + "\n\n"
	}

	row := func(label, value string) string {
		return labelStyle.Render(fmt.Sprintf("%-14s", label)) + valueStyle.Render(value) + "\n"
	}
	s += row("directories", fmt.Sprintf("%d / %d", snap.DirectoriesProcessed, snap.DirectoriesFound))
	s += row("files", fmt.Sprintf("%d / %d", snap.FilesProcessed, snap.FilesFound))
	s += row("data", humanize.IBytes(uint64(snap.BytesProcessed)))
	if snap.ProcessingRateFilesPerSec > 0 {
		s += row("rate", fmt.Sprintf("%.1f files/s", snap.ProcessingRateFilesPerSec))
	}
	if snap.EstimatedSecondsRemaining != nil {
		s += row("remaining", fmt.Sprintf("%ds", *snap.EstimatedSecondsRemaining))
	}
	if snap.CurrentFile != nil {
		s += row("current", *snap.CurrentFile)
	}

	s += "\n" + statusStyle.Render("connection: "+string(m.state))
	if m.lastErr != "" {
		s += "\n" + errorStyle.Render("error: "+m.lastErr)
	}
	if !m.done {
		s += "\n" + labelStyle.Render("press q to quit")
	}
	return s + "\n"
}

func runWatchTUI(ctx context.Context, client *syncsdk.ProgressClient, sourceID string) error {
	p := tea.NewProgram(newWatchModel(sourceID), tea.WithContext(ctx))

	client.OnSnapshot(func(snap *progress.Snapshot) { p.Send(snapshotMsg(snap)) })
	client.OnConnectionState(func(s syncsdk.ConnState) { p.Send(connStateMsg(s)) })
	client.OnError(func(err *syncsdk.StreamError) { p.Send(streamErrMsg(err)) })

	if err := client.Connect(ctx); err != nil {
		return err
	}

	final, err := p.Run()
	if err != nil {
		return err
	}

	if m, ok := final.(watchModel); ok && m.snap != nil && m.snap.Phase == progress.PhaseFailed {
		return fmt.Errorf("sync failed: %s", m.snap.PhaseDescription)
	}
	return nil
}
