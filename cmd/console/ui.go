package main

import (
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/atotto/clipboard"
	"github.com/charmbracelet/bubbles/textarea"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/muesli/reflow/wordwrap"

	"github.com/jwebster45206/stage-forge/internal/pipeline"
	"github.com/jwebster45206/stage-forge/pkg/layout"
)

const (
	PlaceHolderText = "Describe a level, or /help for commands..."
)

type entryKind int

const (
	entryUser entryKind = iota
	entryInfo
	entryResult
	entryError
)

type logEntry struct {
	kind entryKind
	text string
}

// ConsoleUI is the BubbleTea model that runs the UI.
// https://github.com/charmbracelet/bubbletea
type ConsoleUI struct {
	config       *ConsoleConfig
	client       *http.Client
	logViewport  viewport.Model
	metaViewport viewport.Model
	textarea     textarea.Model
	ready        bool
	width        int
	height       int

	entries []logEntry
	run     *pipeline.Run // most recent run, finished or not
	loading bool

	// Quit confirmation state
	showQuitModal bool

	// Progress bar state
	progressTick int
}

type runStartedMsg struct {
	runID string
	err   error
}

type runPolledMsg struct {
	run *pipeline.Run
	err error
}

type pollTickMsg struct {
	runID string
}

type filesMsg struct {
	files []ScriptFile
	err   error
}

type modulesMsg struct {
	modules []ModuleInfo
	err     error
}

type progressTickMsg struct{}

var (
	logPanelStyle = lipgloss.NewStyle().
			PaddingTop(2).
			PaddingBottom(1).
			PaddingLeft(3).
			PaddingRight(0)

	metaPanelStyle = lipgloss.NewStyle().
			PaddingTop(2).
			PaddingBottom(0).
			PaddingLeft(0).
			PaddingRight(2)

	titleStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("205")). // pink
			Bold(true)

	resultStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("86")) // green

	userStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("39")) // teal

	errorStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("196")) // red

	loadingStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("214")) // yellow

	promptStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("240")) // dark grey

	modalStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("62")).
			Padding(1, 2).
			Background(lipgloss.Color("235")).
			Foreground(lipgloss.Color("255"))

	modalTitleStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("205")).
			Bold(true).
			Align(lipgloss.Center)
)

var separatorStyle = lipgloss.NewStyle().
	Foreground(lipgloss.Color("240")) // dark grey

// gridStyles colors layout symbols in the grid preview.
var gridStyles = map[byte]lipgloss.Style{
	layout.SymbolWall:        lipgloss.NewStyle().Foreground(lipgloss.Color("240")),
	layout.SymbolDoor:        lipgloss.NewStyle().Foreground(lipgloss.Color("214")),
	layout.SymbolChest:       lipgloss.NewStyle().Foreground(lipgloss.Color("220")),
	layout.SymbolEnemy:       lipgloss.NewStyle().Foreground(lipgloss.Color("196")),
	layout.SymbolNPC:         lipgloss.NewStyle().Foreground(lipgloss.Color("86")),
	layout.SymbolPlayerStart: lipgloss.NewStyle().Foreground(lipgloss.Color("39")).Bold(true),
}

func NewConsoleUI(cfg *ConsoleConfig, client *http.Client) ConsoleUI {
	ta := textarea.New()
	ta.Placeholder = PlaceHolderText
	ta.Focus()
	ta.Prompt = promptStyle.Render(":: ")
	ta.CharLimit = 2000
	ta.SetWidth(50)
	ta.SetHeight(3)
	ta.ShowLineNumbers = false

	logVp := viewport.New(50, 20)
	logVp.MouseWheelEnabled = true

	metaVp := viewport.New(20, 20)

	return ConsoleUI{
		config:       cfg,
		client:       client,
		textarea:     ta,
		logViewport:  logVp,
		metaViewport: metaVp,
	}
}

// renderGrid draws a layout grid with one color per symbol.
func renderGrid(l *layout.Layout) string {
	if l == nil {
		return ""
	}
	var b strings.Builder
	for _, row := range l.GridASCII {
		for i := 0; i < len(row); i++ {
			cell := string(row[i])
			if style, ok := gridStyles[row[i]]; ok {
				cell = style.Render(cell)
			}
			b.WriteString(cell)
		}
		b.WriteByte('\n')
	}
	return b.String()
}

// formatRun summarizes a finished run for the log panel.
func formatRun(run *pipeline.Run, width int) string {
	var b strings.Builder
	switch run.Status {
	case pipeline.StatusCompleted:
		b.WriteString(resultStyle.Render("Stage ready") + "\n")
	case pipeline.StatusFailed:
		b.WriteString(errorStyle.Render("Generation failed: ") + wordwrap.String(run.Error, width) + "\n")
	default:
		b.WriteString(loadingStyle.Render(string(run.Status)) + "\n")
	}

	if run.LayoutAttempts > 0 {
		fmt.Fprintf(&b, "Layout attempts: %d\n", run.LayoutAttempts)
	}
	if run.Validation != nil && !run.Validation.Valid && len(run.Validation.Errors) > 0 {
		b.WriteString(wordwrap.String("Last check: "+run.Validation.Errors[0].Error(), width) + "\n")
	}
	if grid := renderGrid(run.Layout); grid != "" {
		b.WriteString("\n" + grid)
	}
	for _, w := range run.Warnings {
		b.WriteString(loadingStyle.Render("warning: ") + wordwrap.String(w, width) + "\n")
	}
	if len(run.SavedFiles) > 0 {
		b.WriteString("\nSaved:\n")
		for _, name := range []string{pipeline.StageScript, pipeline.CastScript, pipeline.MainScript} {
			if path, ok := run.SavedFiles[name]; ok {
				fmt.Fprintf(&b, "• %s\n", path)
			}
		}
	}
	return b.String()
}

func writeMetadata(run *pipeline.Run) string {
	var content strings.Builder
	content.WriteString(titleStyle.Render("RUN") + "\n\n")

	if run == nil {
		content.WriteString("No run yet\n\n")
	} else {
		content.WriteString("Run ID:\n")
		content.WriteString(run.ID.String()[:8] + "...\n\n")

		content.WriteString("Status:\n")
		content.WriteString(string(run.Status) + "\n\n")

		if run.Constraints != nil {
			c := run.Constraints
			content.WriteString("Grid:\n")
			fmt.Fprintf(&content, "%dx%d\n\n", c.Grid.Width, c.Grid.Height)
			content.WriteString("Counts:\n")
			for _, kind := range layout.CountedKinds {
				fmt.Fprintf(&content, "• %s: %d\n", kind, c.Counts.Of(kind))
			}
			content.WriteString("\n")
		}
	}

	content.WriteString("Commands:\n")
	content.WriteString("• Ctrl+C: Quit\n")
	content.WriteString("• Enter: Generate\n")
	content.WriteString("• /help: Help\n")
	content.WriteString("• /show stage\n")
	content.WriteString("• /copy stage\n")
	content.WriteString("• /files\n")

	return content.String()
}

// scriptFor maps a short name ("stage", "cast", "main") to a run's script.
func scriptFor(run *pipeline.Run, name string) (file, script string, ok bool) {
	if run == nil {
		return "", "", false
	}
	switch strings.ToLower(name) {
	case "stage", "", strings.ToLower(pipeline.StageScript):
		return pipeline.StageScript, run.StageLua, run.StageLua != ""
	case "cast", strings.ToLower(pipeline.CastScript):
		return pipeline.CastScript, run.CastLua, run.CastLua != ""
	case "main", pipeline.MainScript:
		return pipeline.MainScript, run.MainLua, run.MainLua != ""
	}
	return "", "", false
}

func (m *ConsoleUI) addEntry(kind entryKind, text string) {
	m.entries = append(m.entries, logEntry{kind: kind, text: text})
}

// writeLogContent rebuilds the log panel for the current viewport width
func (m *ConsoleUI) writeLogContent() {
	width := m.logViewport.Width - 6 // Account for left(3) + right(3) padding
	if width < 10 {
		width = 10
	}

	var content strings.Builder
	content.WriteString(titleStyle.Render("STAGE FORGE") + "\n\n")
	content.WriteString("Describe the level you want and press Enter.\n\n")
	content.WriteString(separatorStyle.Render(strings.Repeat("─", width)) + "\n\n")

	for _, e := range m.entries {
		switch e.kind {
		case entryUser:
			content.WriteString(userStyle.Render("You: ") + wordwrap.String(e.text, width-5) + "\n\n")
		case entryError:
			content.WriteString(errorStyle.Render("Error: "+wordwrap.String(e.text, width-7)) + "\n\n")
		case entryResult:
			content.WriteString(e.text + "\n")
		default:
			content.WriteString(wordwrap.String(e.text, width) + "\n\n")
		}
	}

	if m.loading {
		content.WriteString(m.renderProgressBar())
	}

	m.logViewport.SetContent(content.String())
	m.logViewport.GotoBottom()
}

func (m ConsoleUI) Init() tea.Cmd {
	return textarea.Blink
}

func (m ConsoleUI) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	if m.showQuitModal {
		return m.updateQuitModal(msg)
	}

	var (
		tiCmd tea.Cmd
		vpCmd tea.Cmd
		mvCmd tea.Cmd
	)

	switch msg := msg.(type) {
	case tea.MouseMsg:
		m.logViewport, vpCmd = m.logViewport.Update(msg)
		m.metaViewport, mvCmd = m.metaViewport.Update(msg)
		return m, tea.Batch(vpCmd, mvCmd)

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height

		logWidth := int(float64(m.width)*0.75) - 4
		metaWidth := m.width - logWidth - 6

		m.logViewport.Width = logWidth - 2
		m.logViewport.Height = m.height - 7
		m.metaViewport.Width = metaWidth - 2
		m.metaViewport.Height = m.height - 4
		m.textarea.SetWidth(logWidth - 4)

		m.ready = true
		m.writeLogContent()
		m.metaViewport.SetContent(writeMetadata(m.run))

	case tea.KeyMsg:
		switch msg.Type {
		case tea.KeyCtrlC, tea.KeyEsc:
			m.showQuitModal = true
			return m, nil
		case tea.KeyEnter:
			input := strings.TrimSpace(m.textarea.Value())
			if input == "" {
				return m, nil
			}
			if strings.HasPrefix(input, "/") {
				return m.handleCommand(input)
			}
			if m.loading {
				return m, nil
			}

			m.textarea.Reset()
			m.loading = true
			m.progressTick = 0
			m.addEntry(entryUser, input)
			m.writeLogContent()

			return m, tea.Batch(m.startRun(input), progressTick())
		}

	case runStartedMsg:
		if msg.err != nil {
			m.loading = false
			m.addEntry(entryError, msg.err.Error())
			m.writeLogContent()
			return m, nil
		}
		m.addEntry(entryInfo, loadingStyle.Render("Queued run "+msg.runID))
		m.writeLogContent()
		return m, m.pollRun(msg.runID)

	case pollTickMsg:
		return m, m.fetchRun(msg.runID)

	case runPolledMsg:
		if msg.err != nil {
			m.loading = false
			m.addEntry(entryError, msg.err.Error())
			m.writeLogContent()
			return m, nil
		}
		m.run = msg.run
		m.metaViewport.SetContent(writeMetadata(m.run))
		if !msg.run.Done() {
			return m, m.pollRun(msg.run.ID.String())
		}
		m.loading = false
		m.addEntry(entryResult, formatRun(msg.run, m.logViewport.Width-6))
		m.writeLogContent()
		return m, nil

	case filesMsg:
		if msg.err != nil {
			m.addEntry(entryError, msg.err.Error())
		} else {
			m.addEntry(entryResult, formatFiles(msg.files))
		}
		m.writeLogContent()
		return m, nil

	case modulesMsg:
		if msg.err != nil {
			m.addEntry(entryError, msg.err.Error())
		} else {
			m.addEntry(entryResult, formatModules(msg.modules))
		}
		m.writeLogContent()
		return m, nil

	case progressTickMsg:
		if m.loading {
			m.progressTick++
			m.writeLogContent()
			return m, progressTick()
		}
	}

	m.textarea, tiCmd = m.textarea.Update(msg)
	m.logViewport, vpCmd = m.logViewport.Update(msg)
	m.metaViewport, mvCmd = m.metaViewport.Update(msg)

	return m, tea.Batch(tiCmd, vpCmd, mvCmd)
}

func formatFiles(files []ScriptFile) string {
	var b strings.Builder
	b.WriteString(titleStyle.Render("Files:") + "\n")
	if len(files) == 0 {
		b.WriteString("No scripts generated yet.\n")
	}
	for _, f := range files {
		fmt.Fprintf(&b, "• %s (%d bytes) %s\n", f.Name, f.Size, promptStyle.Render(f.Path))
	}
	return b.String()
}

func formatModules(modules []ModuleInfo) string {
	var b strings.Builder
	b.WriteString(titleStyle.Render("Modules:") + "\n")
	if len(modules) == 0 {
		b.WriteString("No modules configured.\n")
	}
	for _, mod := range modules {
		model := mod.Model
		if model == "" {
			model = "default model"
		}
		fmt.Fprintf(&b, "• %s: %s, temp %.2f", mod.Name, model, mod.Temperature)
		if mod.JSONMode {
			b.WriteString(", json")
		}
		b.WriteString("\n")
	}
	return b.String()
}

func (m ConsoleUI) handleCommand(input string) (tea.Model, tea.Cmd) {
	fields := strings.Fields(strings.ToLower(input))
	arg := ""
	if len(fields) > 1 {
		arg = fields[1]
	}
	m.textarea.Reset()

	switch fields[0] {
	case "/help":
		helpText := `
Commands:
• /help - Show this help
• /show [stage|cast|main] - Print a script from the last run
• /copy [stage|cast|main] - Copy a script to the clipboard
• /files - List saved scripts
• /modules - List pipeline modules
• /clear - Clear the log
• Ctrl+C - Quit

Anything else is sent as a level request. Runs are queued and
polled until the worker finishes.
`
		m.addEntry(entryResult, titleStyle.Render("Help:")+helpText)

	case "/show":
		file, script, ok := scriptFor(m.run, arg)
		if !ok {
			m.addEntry(entryError, "nothing to show for "+input)
			break
		}
		m.addEntry(entryResult, titleStyle.Render(file+":")+"\n"+script)

	case "/copy":
		file, script, ok := scriptFor(m.run, arg)
		if !ok {
			m.addEntry(entryError, "nothing to copy for "+input)
			break
		}
		if err := clipboard.WriteAll(script); err != nil {
			m.addEntry(entryError, fmt.Sprintf("clipboard unavailable: %v", err))
			break
		}
		m.addEntry(entryInfo, fmt.Sprintf("Copied %s (%d bytes)", file, len(script)))

	case "/files":
		return m, m.loadFiles()

	case "/modules":
		return m, m.loadModules()

	case "/clear":
		m.entries = nil

	default:
		m.addEntry(entryError, "unknown command "+fields[0])
	}

	m.writeLogContent()
	return m, nil
}

func (m ConsoleUI) startRun(input string) tea.Cmd {
	return func() tea.Msg {
		id, err := startGeneration(m.client, m.config.APIBaseURL, input)
		return runStartedMsg{runID: id, err: err}
	}
}

func (m ConsoleUI) pollRun(runID string) tea.Cmd {
	return tea.Tick(m.config.PollInterval, func(time.Time) tea.Msg {
		return pollTickMsg{runID: runID}
	})
}

func (m ConsoleUI) fetchRun(runID string) tea.Cmd {
	return func() tea.Msg {
		run, err := getRun(m.client, m.config.APIBaseURL, runID)
		return runPolledMsg{run: run, err: err}
	}
}

func (m ConsoleUI) loadFiles() tea.Cmd {
	return func() tea.Msg {
		files, err := listFiles(m.client, m.config.APIBaseURL)
		return filesMsg{files: files, err: err}
	}
}

func (m ConsoleUI) loadModules() tea.Cmd {
	return func() tea.Msg {
		modules, err := listModules(m.client, m.config.APIBaseURL)
		return modulesMsg{modules: modules, err: err}
	}
}

func (m ConsoleUI) updateQuitModal(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height

	case tea.KeyMsg:
		switch msg.Type {
		case tea.KeyCtrlC, tea.KeyEsc, tea.KeyEnter:
			return m, tea.Quit
		default:
			switch msg.String() {
			case "y", "Y":
				return m, tea.Quit
			case "n", "N":
				m.showQuitModal = false
				m.textarea.Focus()
				return m, textarea.Blink
			}
		}
	}

	return m, nil
}

func (m ConsoleUI) renderQuitModal() string {
	if m.width == 0 || m.height == 0 {
		return "Loading..."
	}

	var content strings.Builder
	content.WriteString(modalTitleStyle.Render("Quit?"))
	content.WriteString("\n\n")
	if m.loading {
		content.WriteString("A run is still in progress. It keeps going on the server.")
	} else {
		content.WriteString("Are you sure you want to quit?")
	}
	content.WriteString("\n\n")
	content.WriteString(promptStyle.Render("Press Y to quit, N to continue, or Ctrl+C to force quit"))

	modal := modalStyle.Width(50).Render(content.String())
	return lipgloss.Place(m.width, m.height, lipgloss.Center, lipgloss.Center, modal, lipgloss.WithWhitespaceChars(" "))
}

func (m ConsoleUI) View() string {
	if m.showQuitModal {
		return m.renderQuitModal()
	}

	if !m.ready {
		return "\n  Initializing..."
	}

	logWidth := int(float64(m.width)*0.75) - 4
	metaWidth := m.width - logWidth - 6

	logPanel := logPanelStyle.Width(logWidth).Height(m.height - 3).Render(
		lipgloss.JoinVertical(lipgloss.Left,
			m.logViewport.View(),
			"",
			separatorStyle.Render(strings.Repeat("─", max(logWidth-4, 0))),
			m.textarea.View(),
		),
	)

	metaPanel := metaPanelStyle.Width(metaWidth).Height(m.height - 2).Render(
		m.metaViewport.View(),
	)

	return lipgloss.JoinHorizontal(lipgloss.Top, logPanel, metaPanel)
}

// renderProgressBar creates an animated progress bar for loading states
func (m ConsoleUI) renderProgressBar() string {
	usable := m.logViewport.Width - 6
	if usable <= 0 {
		usable = 30 // fallback before sizing
	}
	if usable > 80 {
		usable = 80
	} else if usable < 10 {
		usable = 10
	}

	const totalFrames = 40
	frame := m.progressTick % totalFrames
	filled := (frame * usable) / totalFrames

	var bar strings.Builder
	for i := 0; i < usable; i++ {
		if i < filled {
			bar.WriteString("█")
		} else if i == filled && frame%4 < 2 {
			bar.WriteString("▓") // Blinking effect at the progress point
		} else {
			bar.WriteString("░")
		}
	}
	return separatorStyle.Render(bar.String())
}

// progressTick creates a command that sends a progress tick message
func progressTick() tea.Cmd {
	return tea.Tick(time.Millisecond*200, func(time.Time) tea.Msg {
		return progressTickMsg{}
	})
}
