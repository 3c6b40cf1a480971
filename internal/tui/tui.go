// Package tui provides a Bubble Tea terminal user interface for tile-mosaic.
package tui

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/progress"
	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/rs/zerolog"

	"github.com/handiism/tile-mosaic/internal/config"
	"github.com/handiism/tile-mosaic/internal/download"
	"github.com/handiism/tile-mosaic/internal/model"
)

// Styles for the TUI
var (
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#4ECDC4")).
			MarginBottom(1)

	subtitleStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#4ECDC4"))

	successStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#95E1A3"))

	errorStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#FF6B6B"))

	warningStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#FFE66D"))

	infoStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#A8DADC"))

	dimStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#6C757D"))

	boxStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("#4ECDC4")).
			Padding(1, 2)

	jobStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#F8B500"))
)

// errCancelled is shown when the user aborts a running job.
var errCancelled = errors.New("cancelled by user")

// maxLogs is the number of progress messages kept on screen.
const maxLogs = 10

// State represents the current UI state.
type State int

const (
	StateInput State = iota
	StateRunning
	StateComplete
	StateError
)

// LogEntry represents a log message in the UI.
type LogEntry struct {
	Message string
	Level   download.ProgressLevel
}

// Model is the Bubble Tea model for the TUI.
type Model struct {
	state     State
	textInput textinput.Model
	spinner   spinner.Model
	progress  progress.Model
	settings  *config.Settings
	log       zerolog.Logger
	logs      []LogEntry
	job       *model.Job
	result    *download.Result
	err       error

	// Job context
	ctx    context.Context
	cancel context.CancelFunc

	// Manager of the running job
	manager *download.Manager
	events  chan download.ProgressEvent

	// Progress
	doneTiles   int64
	failedTiles int64
	totalTiles  int64

	// Options
	verbose bool

	// quitting is set when ctrl+c arrives while a job is running.
	quitting bool

	width  int
	height int
}

// NewModel creates a new TUI model. settings must carry a tile URL template.
func NewModel(settings *config.Settings, log zerolog.Logger) Model {
	if settings == nil {
		settings = config.DefaultSettings()
	}

	ti := textinput.New()
	ti.Placeholder = "minLon,minLat,maxLon,maxLat  e.g. 81.32,17.72,81.37,17.76"
	ti.Focus()
	ti.CharLimit = 200
	ti.Width = 60

	sp := spinner.New()
	sp.Spinner = spinner.Dot
	sp.Style = lipgloss.NewStyle().Foreground(lipgloss.Color("#4ECDC4"))

	prog := progress.New(progress.WithDefaultGradient())
	prog.Width = 50

	ctx, cancel := context.WithCancel(context.Background())

	return Model{
		state:     StateInput,
		textInput: ti,
		spinner:   sp,
		progress:  prog,
		settings:  settings,
		log:       log,
		logs:      make([]LogEntry, 0),
		ctx:       ctx,
		cancel:    cancel,
	}
}

// Init initializes the model.
func (m Model) Init() tea.Cmd {
	return tea.Batch(textinput.Blink, m.spinner.Tick)
}

// Message types
type (
	// ProgressMsg is sent when job progress updates.
	ProgressMsg struct {
		Event download.ProgressEvent
	}

	// JobDoneMsg is sent when the job completes.
	JobDoneMsg struct {
		Result *download.Result
		Err    error
	}

	// TickMsg is for periodic progress updates.
	TickMsg struct{}
)

// Update handles messages and updates the model.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmds []tea.Cmd

	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.progress.Width = msg.Width - 20
		if m.progress.Width > 80 {
			m.progress.Width = 80
		}
		if m.progress.Width < 20 {
			m.progress.Width = 20
		}
		return m, nil

	case tea.KeyMsg:
		switch msg.String() {
		case "ctrl+c":
			m.cancel()
			if m.state == StateRunning {
				// Quit once the job has finalized its mosaic.
				m.quitting = true
				return m, nil
			}
			return m, tea.Quit

		case "esc":
			if m.state == StateInput {
				return m, tea.Quit
			}
			if m.state == StateRunning {
				m.cancel()
			}

		case "enter":
			if m.state == StateInput && m.textInput.Value() != "" {
				job, err := m.buildJob(m.textInput.Value())
				if err != nil {
					m.err = err
					m.state = StateError
					return m, nil
				}
				m.job = job
				m.events = make(chan download.ProgressEvent, 64)
				m.manager = download.NewManager(m.settings, m.log, m.forward(m.events))
				m.state = StateRunning
				return m, tea.Batch(m.runJob(), m.waitForEvent(), m.tickProgress(), m.spinner.Tick)
			}

		case "v":
			if m.state == StateInput {
				m.verbose = !m.verbose
				return m, nil
			}

		case "q":
			if m.state == StateComplete || m.state == StateError {
				return m, tea.Quit
			}

		case "r":
			if m.state == StateComplete || m.state == StateError {
				m.reset()
				return m, textinput.Blink
			}
		}

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		cmds = append(cmds, cmd)

	case ProgressMsg:
		if m.state == StateRunning {
			cmds = append(cmds, m.waitForEvent())
		}
		// Filter verbose messages if not in verbose mode
		if msg.Event.Level == download.LevelVerbose && !m.verbose {
			break
		}
		m.logs = append(m.logs, LogEntry{
			Message: msg.Event.Message,
			Level:   msg.Event.Level,
		})
		if len(m.logs) > maxLogs {
			m.logs = m.logs[len(m.logs)-maxLogs:]
		}

	case JobDoneMsg:
		m.result = msg.Result
		if m.manager != nil {
			m.doneTiles, m.failedTiles, m.totalTiles = m.manager.GetProgress()
		}
		switch {
		case m.ctx.Err() != nil:
			m.state = StateError
			m.err = errCancelled
		case msg.Err != nil:
			m.state = StateError
			m.err = msg.Err
		default:
			m.state = StateComplete
		}
		if m.quitting {
			return m, tea.Quit
		}

	case TickMsg:
		// Update progress from manager
		if m.manager != nil && m.state == StateRunning {
			m.doneTiles, m.failedTiles, m.totalTiles = m.manager.GetProgress()
			cmds = append(cmds, m.progress.SetPercent(m.percent()), m.tickProgress())
		}

	case progress.FrameMsg:
		progressModel, cmd := m.progress.Update(msg)
		m.progress = progressModel.(progress.Model)
		cmds = append(cmds, cmd)
	}

	// Update text input
	if m.state == StateInput {
		var cmd tea.Cmd
		m.textInput, cmd = m.textInput.Update(msg)
		cmds = append(cmds, cmd)
	}

	return m, tea.Batch(cmds...)
}

// buildJob resolves the typed bounding box into a job using the settings.
func (m Model) buildJob(input string) (*model.Job, error) {
	bound, err := model.ParseBound(input)
	if err != nil {
		return nil, err
	}
	return model.NewJob(m.settings.TileURLTemplate, bound, m.settings.Zoom,
		m.settings.MaxConcurrentTiles, m.settings.ToPathConfig())
}

// reset prepares the model for another job.
func (m *Model) reset() {
	m.state = StateInput
	m.logs = nil
	m.job = nil
	m.result = nil
	m.err = nil
	m.manager = nil
	m.events = nil
	m.quitting = false
	m.doneTiles, m.failedTiles, m.totalTiles = 0, 0, 0
	m.ctx, m.cancel = context.WithCancel(context.Background())
	m.progress.SetPercent(0)
	m.textInput.SetValue("")
	m.textInput.Focus()
}

func (m Model) percent() float64 {
	if m.totalTiles == 0 {
		return 0
	}
	return float64(m.doneTiles) / float64(m.totalTiles)
}

// forward returns a progress callback feeding events. Events are dropped
// while the channel is full; tile counts come from GetProgress.
func (m Model) forward(events chan<- download.ProgressEvent) func(download.ProgressEvent) {
	return func(e download.ProgressEvent) {
		select {
		case events <- e:
		default:
		}
	}
}

// waitForEvent delivers the next progress event.
func (m Model) waitForEvent() tea.Cmd {
	events := m.events
	return func() tea.Msg {
		e, ok := <-events
		if !ok {
			return nil
		}
		return ProgressMsg{Event: e}
	}
}

// runJob runs the job in the background.
func (m Model) runJob() tea.Cmd {
	ctx, manager, job, events := m.ctx, m.manager, m.job, m.events
	return func() tea.Msg {
		res, err := manager.Run(ctx, job)
		close(events)
		return JobDoneMsg{Result: res, Err: err}
	}
}

// tickProgress returns a command to tick progress updates.
func (m Model) tickProgress() tea.Cmd {
	return tea.Tick(200*time.Millisecond, func(_ time.Time) tea.Msg {
		return TickMsg{}
	})
}

// View renders the UI.
func (m Model) View() string {
	var b strings.Builder

	// Header
	b.WriteString(titleStyle.Render("Tile Mosaic"))
	b.WriteString("\n")
	b.WriteString(dimStyle.Render("Merge map tiles into a GeoTIFF"))
	b.WriteString("\n\n")

	switch m.state {
	case StateInput:
		b.WriteString(m.viewInput())
	case StateRunning:
		b.WriteString(m.viewRunning())
	case StateComplete:
		b.WriteString(m.viewComplete())
	case StateError:
		b.WriteString(m.viewError())
	}

	// Footer
	b.WriteString("\n")
	b.WriteString(dimStyle.Render(m.getHelpText()))

	return b.String()
}

func (m Model) viewInput() string {
	var b strings.Builder

	b.WriteString(subtitleStyle.Render("Enter bounding box:"))
	b.WriteString("\n\n")
	b.WriteString(m.textInput.View())
	b.WriteString("\n\n")

	verboseCheck := "[ ]"
	if m.verbose {
		verboseCheck = "[x]"
	}

	b.WriteString(infoStyle.Render("Options:"))
	b.WriteString("\n")
	b.WriteString(fmt.Sprintf("  %s Show every tile (v)\n", verboseCheck))
	b.WriteString("\n")
	b.WriteString(dimStyle.Render(fmt.Sprintf("Source: %s", m.settings.TileURLTemplate)))
	b.WriteString("\n")
	b.WriteString(dimStyle.Render(fmt.Sprintf("Zoom: %d | Workers: %d | Output: %s",
		m.settings.Zoom, m.settings.MaxConcurrentTiles, m.settings.OutputDir)))
	b.WriteString("\n")

	return b.String()
}

func (m Model) viewRunning() string {
	var b strings.Builder

	if m.job != nil {
		r := m.job.Range
		b.WriteString(jobStyle.Render(fmt.Sprintf("%s %s", m.spinner.View(), m.job.OutputPath)))
		b.WriteString("\n")
		b.WriteString(dimStyle.Render(fmt.Sprintf("  x %d-%d, y %d-%d, z %d, %dx%d px",
			r.MinCol, r.MaxCol, r.MinRow, r.MaxRow, r.Zoom, r.Width(), r.Height())))
		b.WriteString("\n\n")
	}

	b.WriteString(m.progress.ViewAs(m.percent()))
	b.WriteString("\n")

	b.WriteString(infoStyle.Render(fmt.Sprintf(
		"Tiles: %d/%d | Failed: %d",
		m.doneTiles,
		m.totalTiles,
		m.failedTiles,
	)))
	b.WriteString("\n\n")

	b.WriteString(m.renderLogs())

	return b.String()
}

func (m Model) viewComplete() string {
	var b strings.Builder

	if m.result == nil {
		return successStyle.Render("Done")
	}
	box := boxStyle.Render(fmt.Sprintf(
		"Mosaic Complete\n\n"+
			"File: %s\n"+
			"Size: %dx%d px\n"+
			"Tiles: %d/%d (%d failed)\n"+
			"Elapsed: %s",
		m.result.Path,
		m.result.Width, m.result.Height,
		m.result.Succeeded, m.result.Total, len(m.result.Failed),
		m.result.Elapsed.Round(time.Millisecond),
	))
	b.WriteString(box)

	return b.String()
}

func (m Model) viewError() string {
	var b strings.Builder

	b.WriteString(errorStyle.Render("Error occurred:"))
	b.WriteString("\n\n")
	if m.err != nil {
		b.WriteString(fmt.Sprintf("  %s", m.err.Error()))
	}
	if m.result != nil {
		b.WriteString("\n\n")
		b.WriteString(dimStyle.Render(fmt.Sprintf("Partial mosaic written to %s", m.result.Path)))
	}

	return b.String()
}

func (m Model) renderLogs() string {
	var b strings.Builder

	for _, log := range m.logs {
		var style lipgloss.Style
		prefix := "•"
		switch log.Level {
		case download.LevelError:
			style = errorStyle
			prefix = "✗"
		case download.LevelWarning:
			style = warningStyle
			prefix = "!"
		case download.LevelSuccess:
			style = successStyle
			prefix = "✓"
		case download.LevelInfo:
			style = infoStyle
			prefix = "›"
		default:
			style = dimStyle
		}
		b.WriteString(style.Render(prefix + " " + log.Message))
		b.WriteString("\n")
	}

	return b.String()
}

func (m Model) getHelpText() string {
	switch m.state {
	case StateInput:
		return "enter: start • v: verbose • esc: quit"
	case StateRunning:
		if m.quitting || m.ctx.Err() != nil {
			return "cancelling, finishing the mosaic..."
		}
		return "esc: cancel"
	case StateComplete, StateError:
		return "r: new mosaic • q: quit"
	}
	return ""
}

// Run starts the TUI application.
func Run(settings *config.Settings, log zerolog.Logger) error {
	p := tea.NewProgram(NewModel(settings, log), tea.WithAltScreen())
	_, err := p.Run()
	return err
}
