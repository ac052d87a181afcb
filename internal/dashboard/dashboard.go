package dashboard

import (
	"fmt"
	"io"
	"strings"
	"sync"
	"time"

	"github.com/charmbracelet/bubbles/progress"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/Takch02/blabus-session2-item1/internal/metrics"
)

const refreshInterval = 500 * time.Millisecond

// RunInfo holds the run parameters shown in the header.
type RunInfo struct {
	Target   string
	VUs      int
	Duration time.Duration
}

// VUCounter reports how many virtual users are currently running.
type VUCounter interface {
	ActiveVUs() int
}

var (
	titleStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#7D56F4")).Bold(true)
	subtle     = lipgloss.NewStyle().Foreground(lipgloss.Color("#767676"))
	okStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("#04B575")).Bold(true)
	warnStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("#FFAF00"))
	errStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("#FF5F87"))
	box        = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("#3C3C3C")).
			Padding(0, 1)
)

// snapshotMsg carries a fresh view of the run into the model.
type snapshotMsg struct {
	stats   metrics.Stats
	vus     int
	elapsed time.Duration
}

type stopMsg struct{}

// Model is the bubbletea model of the live view.
type Model struct {
	info     RunInfo
	stats    metrics.Stats
	vus      int
	elapsed  time.Duration
	progress progress.Model
	width    int
	onQuit   func()
	quitting bool
}

// NewModel returns a model for the given run. onQuit runs once when the
// user presses q or ctrl+c.
func NewModel(info RunInfo, onQuit func()) Model {
	return Model{
		info:     info,
		progress: progress.New(progress.WithDefaultGradient()),
		onQuit:   onQuit,
	}
}

func (m Model) Init() tea.Cmd {
	return nil
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case snapshotMsg:
		m.stats = msg.stats
		m.vus = msg.vus
		m.elapsed = msg.elapsed
		return m, m.progress.SetPercent(m.fraction())

	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c":
			// The run winds down and Stop ends the program.
			if !m.quitting && m.onQuit != nil {
				m.onQuit()
			}
			m.quitting = true
		}
		return m, nil

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.progress.Width = max(msg.Width-4, 10)
		return m, nil

	case progress.FrameMsg:
		prog, cmd := m.progress.Update(msg)
		m.progress = prog.(progress.Model)
		return m, cmd

	case stopMsg:
		return m, tea.Quit
	}
	return m, nil
}

func (m Model) View() string {
	var b strings.Builder

	b.WriteString(titleStyle.Render("auctionload"))
	b.WriteString(subtle.Render("  " + m.info.Target))
	b.WriteString("\n\n")

	elapsed := fmt.Sprintf("ELAPSED: %s / %s", m.elapsed.Round(time.Second), m.info.Duration)
	vus := fmt.Sprintf("VUS: %d / %d", m.vus, m.info.VUs)
	reqs := fmt.Sprintf("REQS: %d\nFAIL: %d", m.stats.Total, m.stats.Failures)
	checks := checkStyle(m.stats).Render(fmt.Sprintf("CHECKS: %.2f%%", m.stats.CheckPassRate()*100))
	p95 := fmt.Sprintf("P95: %.2f ms\nITER: %d", m.stats.P95LatencyMs, m.stats.Iterations)

	b.WriteString(lipgloss.JoinHorizontal(lipgloss.Top,
		box.Render(elapsed+"\n"+vus),
		box.Render(reqs),
		box.Render(checks+"\n"+fmt.Sprintf("RPS: %.1f", m.stats.RequestsPerSec)),
		box.Render(p95),
	))
	b.WriteString("\n\n")
	b.WriteString(m.progress.View())
	b.WriteString("\n")

	if m.quitting {
		b.WriteString(warnStyle.Render("stopping, waiting for in-flight iterations..."))
	} else {
		b.WriteString(subtle.Render("press q to stop"))
	}
	b.WriteString("\n")
	return b.String()
}

func (m Model) fraction() float64 {
	if m.info.Duration <= 0 {
		return 0
	}
	pct := float64(m.elapsed) / float64(m.info.Duration)
	if pct > 1 {
		pct = 1
	}
	return pct
}

func checkStyle(stats metrics.Stats) lipgloss.Style {
	rate := stats.CheckPassRate()
	switch {
	case len(stats.Checks) == 0:
		return subtle
	case rate >= 0.99:
		return okStyle
	case rate >= 0.95:
		return warnStyle
	default:
		return errStyle
	}
}

// Dashboard renders a live terminal UI for load test metrics.
type Dashboard struct {
	collector *metrics.Collector
	vus       VUCounter
	program   *tea.Program
	start     time.Time
	done      chan struct{}
	finished  sync.WaitGroup
	stopOnce  sync.Once
	runErr    error
}

// New creates a Dashboard. shutdown is called when the user asks to stop.
// output may be nil for the process stdout.
func New(collector *metrics.Collector, vus VUCounter, info RunInfo, shutdown func(), output io.Writer) *Dashboard {
	opts := []tea.ProgramOption{tea.WithAltScreen(), tea.WithoutSignalHandler()}
	if output != nil {
		opts = append(opts, tea.WithOutput(output))
	}
	return &Dashboard{
		collector: collector,
		vus:       vus,
		program:   tea.NewProgram(NewModel(info, shutdown), opts...),
		start:     time.Now(),
		done:      make(chan struct{}),
	}
}

// Start runs the UI and its refresh loop in the background.
func (d *Dashboard) Start() {
	d.finished.Add(2)
	go func() {
		defer d.finished.Done()
		_, d.runErr = d.program.Run()
	}()
	go func() {
		defer d.finished.Done()
		d.refresh()
	}()
}

// Stop closes the UI and restores the terminal. It returns the UI's error,
// if any.
func (d *Dashboard) Stop() error {
	d.stopOnce.Do(func() {
		close(d.done)
		d.program.Send(stopMsg{})
	})
	d.finished.Wait()
	return d.runErr
}

func (d *Dashboard) refresh() {
	ticker := time.NewTicker(refreshInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			d.program.Send(d.snapshot())
		case <-d.done:
			return
		}
	}
}

func (d *Dashboard) snapshot() snapshotMsg {
	elapsed := time.Since(d.start)
	msg := snapshotMsg{stats: d.collector.Stats(elapsed), elapsed: elapsed}
	if d.vus != nil {
		msg.vus = d.vus.ActiveVUs()
	}
	return msg
}
