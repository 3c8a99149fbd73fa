// Package tui provides the terminal playback view for recorded
// propagations.
package tui

import (
	"fmt"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"gonum.org/v1/gonum/spatial/r3"

	"github.com/san-kum/trackprop/internal/propagator"
	"github.com/san-kum/trackprop/internal/viz"
)

const (
	canvasWidth  = 70
	canvasHeight = 18
)

type tickMsg time.Time

// Model replays a recorded trajectory step by step.
type Model struct {
	records []propagator.StepRecord
	layerX  []float64
	title   string

	frame   int
	playing bool
	fps     int

	minX, maxX float64
	minY, maxY float64
}

// NewModel builds the playback model for a run. layerX marks the
// detection layers in the top view.
func NewModel(title string, records []propagator.StepRecord, layerX []float64, fps int) Model {
	m := Model{
		records: records,
		layerX:  layerX,
		title:   title,
		playing: true,
		fps:     fps,
	}
	if m.fps <= 0 {
		m.fps = 30
	}
	m.minX, m.maxX = -1, 1
	m.minY, m.maxY = -1, 1
	for _, r := range records {
		m.minX = min(m.minX, r.Pos.X)
		m.maxX = max(m.maxX, r.Pos.X)
		m.minY = min(m.minY, r.Pos.Y)
		m.maxY = max(m.maxY, r.Pos.Y)
	}
	for _, x := range layerX {
		m.minX = min(m.minX, x)
		m.maxX = max(m.maxX, x)
	}
	return m
}

func (m Model) tick() tea.Cmd {
	return tea.Tick(time.Second/time.Duration(m.fps), func(t time.Time) tea.Msg {
		return tickMsg(t)
	})
}

func (m Model) Init() tea.Cmd {
	return m.tick()
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c":
			return m, tea.Quit
		case " ":
			m.playing = !m.playing
		case "r":
			m.frame = 0
			m.playing = true
		case "left", "h":
			m.playing = false
			if m.frame > 0 {
				m.frame--
			}
		case "right", "l":
			m.playing = false
			if m.frame < len(m.records)-1 {
				m.frame++
			}
		}
		return m, nil

	case tickMsg:
		if m.playing && m.frame < len(m.records)-1 {
			m.frame++
		}
		return m, m.tick()
	}
	return m, nil
}

func (m Model) View() string {
	if len(m.records) == 0 {
		return "no steps recorded\n" + viz.KeyHint.Render("q: quit") + "\n"
	}

	proj := viz.NewProjection(canvasWidth, canvasHeight, m.minX, m.maxX, m.minY, m.maxY)
	for _, x := range m.layerX {
		proj.VerticalMarker(x)
	}
	traj := make([]r3.Vec, 0, m.frame+1)
	for _, r := range m.records[:m.frame+1] {
		traj = append(traj, r.Pos)
	}
	proj.Trajectory(traj)

	rec := m.records[m.frame]
	status := viz.StatusStopped.Render("paused")
	if m.playing {
		status = viz.StatusRunning.Render("playing")
	}

	header := viz.Title.Render(m.title) + "  " + status
	metrics := lipgloss.JoinHorizontal(lipgloss.Top,
		viz.Metric("step", fmt.Sprintf("%d/%d", m.frame+1, len(m.records))), "   ",
		viz.Metric("path", fmt.Sprintf("%.1f mm", rec.Path)), "   ",
		viz.Metric("p", fmt.Sprintf("%.4f GeV", rec.P)), "   ",
		viz.Metric("volume", rec.Volume),
	)
	progress := viz.ProgressBar(float64(m.frame+1)/float64(len(m.records)), canvasWidth)
	hints := viz.KeyHint.Render("space: play/pause  h/l: step  r: restart  q: quit")

	return header + "\n" +
		viz.Panel.Render(proj.String()) + "\n" +
		metrics + "\n" +
		progress + "\n" +
		hints + "\n"
}
