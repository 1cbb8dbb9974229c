// Package tui renders run progress. Interactive terminals get a
// BubbleTea dashboard with a progress bar; CI and non-TTY runs fall back
// to plain log lines.
package tui

import (
	"fmt"
	"os"
	"strings"

	"github.com/charmbracelet/bubbles/progress"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/mattn/go-isatty"

	"github.com/tonykolomeytsev/figx/internal/events"
	"github.com/tonykolomeytsev/figx/internal/log"
)

// Renderer consumes hub envelopes for the lifetime of a run.
type Renderer interface {
	// Start begins consuming; it returns immediately.
	Start()
	// Stop drains and tears the renderer down.
	Stop()
}

// Interactive reports whether the dashboard renderer should be used.
func Interactive() bool {
	if os.Getenv("CI") != "" {
		return false
	}
	return isatty.IsTerminal(os.Stderr.Fd())
}

// New picks the renderer for the current environment. total is the
// number of planned pipelines.
func New(hub *events.Hub, total int) Renderer {
	if Interactive() {
		return newDashboard(hub, total)
	}
	return newPlain(hub)
}

// region: plain renderer

type plainRenderer struct {
	hub    *events.Hub
	done   chan struct{}
	cancel func()
}

func newPlain(hub *events.Hub) *plainRenderer {
	return &plainRenderer{hub: hub, done: make(chan struct{})}
}

func (r *plainRenderer) Start() {
	ch, cancel := r.hub.Subscribe()
	r.cancel = cancel
	logger := log.WithComponent("run")
	go func() {
		defer close(r.done)
		for env := range ch {
			switch ev := env.Ev.(type) {
			case events.RemoteFetchStarted:
				logger.Info("fetching remote", "remote", ev.Remote)
			case events.RemoteFetchFinished:
				if ev.Err != nil {
					logger.Error("remote indexing failed", "remote", ev.Remote, "error", ev.Err)
				} else {
					logger.Info("remote indexed", "remote", ev.Remote, "nodes", ev.Nodes)
				}
			case events.PipelineFinished:
				if ev.Err != nil {
					logger.Error("pipeline failed", "label", ev.Label, "variant", ev.Variant, "error", ev.Err)
				} else {
					logger.Info("imported", "label", ev.Label, "variant", ev.Variant, "output", ev.Output)
				}
			case events.StepFinished:
				logger.Debug("step finished", "label", ev.Label, "kind", ev.Kind, "bytes", ev.Bytes, "duration", ev.Duration)
			}
		}
	}()
}

func (r *plainRenderer) Stop() {
	if r.cancel != nil {
		r.cancel()
	}
	<-r.done
}

// endregion: plain renderer

// region: dashboard renderer

type theme struct {
	Done   lipgloss.Style
	Failed lipgloss.Style
	Dim    lipgloss.Style
	Title  lipgloss.Style
}

func newTheme() theme {
	return theme{
		Done:   lipgloss.NewStyle().Foreground(lipgloss.Color("#00D787")),
		Failed: lipgloss.NewStyle().Foreground(lipgloss.Color("#FF5F5F")),
		Dim:    lipgloss.NewStyle().Foreground(lipgloss.Color("#888888")),
		Title:  lipgloss.NewStyle().Bold(true),
	}
}

type dashboard struct {
	hub     *events.Hub
	total   int
	program *tea.Program
	done    chan struct{}
}

func newDashboard(hub *events.Hub, total int) *dashboard {
	return &dashboard{hub: hub, total: total, done: make(chan struct{})}
}

func (d *dashboard) Start() {
	ch, cancel := d.hub.Subscribe()
	model := newRunModel(d.total, ch)
	d.program = tea.NewProgram(model, tea.WithOutput(os.Stderr))
	go func() {
		defer close(d.done)
		defer cancel()
		_, _ = d.program.Run()
	}()
}

func (d *dashboard) Stop() {
	if d.program != nil {
		d.program.Send(runDoneMsg{})
	}
	<-d.done
}

type runModel struct {
	total    int
	finished int
	failed   int
	active   map[string]string // pipeline id -> current step kind
	bar      progress.Model
	theme    theme
	ch       <-chan events.Envelope
	quitting bool
}

type envMsg events.Envelope
type runDoneMsg struct{}

func newRunModel(total int, ch <-chan events.Envelope) *runModel {
	return &runModel{
		total:  total,
		active: make(map[string]string),
		bar:    progress.New(progress.WithDefaultGradient()),
		theme:  newTheme(),
		ch:     ch,
	}
}

func (m *runModel) Init() tea.Cmd {
	return m.nextEvent()
}

func (m *runModel) nextEvent() tea.Cmd {
	return func() tea.Msg {
		env, ok := <-m.ch
		if !ok {
			return runDoneMsg{}
		}
		return envMsg(env)
	}
}

func (m *runModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		if msg.String() == "ctrl+c" {
			m.quitting = true
			return m, tea.Quit
		}
	case runDoneMsg:
		m.quitting = true
		return m, tea.Quit
	case envMsg:
		m.apply(events.Envelope(msg))
		return m, m.nextEvent()
	case tea.WindowSizeMsg:
		m.bar.Width = msg.Width - 10
	}
	return m, nil
}

func (m *runModel) apply(env events.Envelope) {
	switch ev := env.Ev.(type) {
	case events.StepStarted:
		m.active[pipelineKey(ev.Label, ev.Variant)] = ev.Kind
	case events.PipelineFinished:
		delete(m.active, pipelineKey(ev.Label, ev.Variant))
		m.finished++
		if ev.Err != nil {
			m.failed++
		}
	}
}

func pipelineKey(label, variant string) string {
	if variant == "" {
		return label
	}
	return label + " (" + variant + ")"
}

func (m *runModel) View() string {
	if m.quitting {
		return ""
	}
	var b strings.Builder
	ratio := 0.0
	if m.total > 0 {
		ratio = float64(m.finished) / float64(m.total)
	}
	b.WriteString(m.theme.Title.Render("figx import"))
	b.WriteString("\n")
	b.WriteString(m.bar.ViewAs(ratio))
	status := fmt.Sprintf(" %d/%d", m.finished, m.total)
	if m.failed > 0 {
		status += m.theme.Failed.Render(fmt.Sprintf(" (%d failed)", m.failed))
	}
	b.WriteString(status)
	b.WriteString("\n")

	shown := 0
	for id, kind := range m.active {
		if shown >= 8 {
			b.WriteString(m.theme.Dim.Render(fmt.Sprintf("  ... %d more\n", len(m.active)-shown)))
			break
		}
		b.WriteString(m.theme.Dim.Render(fmt.Sprintf("  %s  %s\n", id, kind)))
		shown++
	}
	return b.String()
}

// endregion: dashboard renderer
