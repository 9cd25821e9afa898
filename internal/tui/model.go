package tui

import (
	"context"
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"docqa/internal/domain"
)

// AskPort is the TUI-facing subset of the question-answering pipeline.
type AskPort interface {
	Query(ctx context.Context, question string, topK int) ([]domain.SearchResult, error)
	List() []domain.DocumentSummary
}

// Model is the Bubble Tea model for the interactive ask console.
type Model struct {
	store     AskPort
	generator domain.Generator
	topK      int

	input    textinput.Model
	viewport viewport.Model
	answer   string
	results  []domain.SearchResult
	status   string
	ready    bool
}

// New creates a new console model instance.
func New(store AskPort, generator domain.Generator, topK int) Model {
	ti := textinput.New()
	ti.Prompt = "> "
	ti.Placeholder = "Ask a question and press Enter"
	ti.Focus()
	ti.CharLimit = 0
	vp := viewport.New(0, 0)
	m := Model{store: store, generator: generator, topK: topK, input: ti, viewport: vp}
	m.status = fmt.Sprintf("%d documents indexed. Type to ask.", len(store.List()))
	return m
}

// Init initializes the model (text input cursor blink).
func (m Model) Init() tea.Cmd { return textinput.Blink }

type answerMsg struct {
	answer  string
	results []domain.SearchResult
}

type errMsg struct{ err error }

func (m Model) ask(question string) tea.Cmd {
	return func() tea.Msg {
		ctx := context.Background()
		results, err := m.store.Query(ctx, question, m.topK)
		if err != nil {
			return errMsg{err}
		}
		if len(results) == 0 {
			return answerMsg{answer: "No relevant documents found."}
		}
		chunks := make([]string, len(results))
		for i, r := range results {
			chunks[i] = r.Chunk.Text
		}
		ans, err := m.generator.Generate(ctx, question, chunks)
		if err != nil {
			return errMsg{err}
		}
		return answerMsg{answer: ans, results: results}
	}
}

// Update handles key and window events and updates the view state.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.ready = true
		_, rh := resultBoxStyle.GetFrameSize()
		_, qh := queryBoxStyle.GetFrameSize()
		reserved := 2 + qh + 1 // header, status, query box, spacer
		vh := msg.Height - reserved
		if vh < 3 {
			vh = 3
		}
		m.viewport.Width = max(20, msg.Width)
		m.viewport.Height = max(3, vh-rh)
		m.viewport.SetContent(m.renderAnswer())
		return m, nil
	case answerMsg:
		m.answer = msg.answer
		m.results = msg.results
		m.status = fmt.Sprintf("%d sources", len(msg.results))
		m.viewport.SetContent(m.renderAnswer())
		return m, nil
	case errMsg:
		m.status = "Error: " + msg.err.Error()
		m.viewport.SetContent(m.renderAnswer())
		return m, nil
	case tea.KeyMsg:
		if msg.Type == tea.KeyCtrlC || msg.Type == tea.KeyCtrlD {
			return m, tea.Quit
		}
		switch msg.String() {
		case "enter":
			q := strings.TrimSpace(m.input.Value())
			if q != "" {
				m.status = "Thinking..."
				return m, m.ask(q)
			}
		case "up", "down":
			var cmd tea.Cmd
			m.viewport, cmd = m.viewport.Update(msg)
			return m, cmd
		}
	}
	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

// View renders the console layout.
func (m Model) View() string {
	if !m.ready {
		return "Loading..."
	}
	header := lipgloss.NewStyle().Bold(true).Render("docqa")
	input := queryBoxStyle.Render(m.input.View())
	status := lipgloss.NewStyle().Foreground(lipgloss.Color("10")).Render(m.status)
	body := resultBoxStyle.Render(m.viewport.View())
	return header + "\n" + body + "\n" + input + "\n" + status
}

func (m Model) renderAnswer() string {
	if m.answer == "" {
		return "No answer yet."
	}
	var b strings.Builder
	b.WriteString(m.answer)
	if len(m.results) > 0 {
		b.WriteString("\n\n")
		b.WriteString(sourceHeaderStyle.Render("Sources"))
		for _, r := range m.results {
			b.WriteString(fmt.Sprintf("\n%s  score=%.3f", sourceKeyStyle.Render(r.Chunk.Key()), r.Score))
		}
	}
	return b.String()
}

var (
	resultBoxStyle    = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).Padding(0, 1)
	queryBoxStyle     = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).Padding(0, 1)
	sourceHeaderStyle = lipgloss.NewStyle().Bold(true)
	sourceKeyStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("11"))
)

func max(a, b int) int {
	if a > b {
		return a
	}
	return b
}
