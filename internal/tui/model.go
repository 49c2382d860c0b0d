package tui

import (
	"context"
	"fmt"
	"regexp"
	"strings"

	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"docubrain/internal/domain"
	"docubrain/internal/history"
	"docubrain/internal/service"
)

// RAGPort is the TUI-facing subset of the RAG service.
type RAGPort interface {
	Ingest(ctx context.Context, path string) (service.IngestReport, error)
	Remove(ctx context.Context, name string) (service.RemoveReport, error)
	Ask(ctx context.Context, req service.AskRequest) (service.Answer, error)
	Files() ([]string, error)
	History(n int) []history.Message
	ClearHistory() error
	Stats() (service.Stats, error)
}

// Model is the Bubble Tea model for the TUI application.
type Model struct {
	ctx      context.Context
	service  RAGPort
	input    textinput.Model
	viewport viewport.Model
	mode     domain.Mode
	selected []string // nil means every file
	answer   *service.Answer
	info     string
	status   string
	cursor   int
	ready    bool
}

// New creates a new TUI model instance. intro is shown until the first answer.
func New(ctx context.Context, svc RAGPort, intro string) Model {
	ti := textinput.New()
	ti.Prompt = "> "
	ti.Placeholder = "Ask a question or type /help"
	ti.Focus()
	ti.CharLimit = 0
	vp := viewport.New(0, 0)
	if intro == "" {
		intro = helpText
	}
	return Model{
		ctx:      ctx,
		service:  svc,
		input:    ti,
		viewport: vp,
		mode:     domain.ModeAnswer,
		info:     intro,
		status:   "Ready. Type /help for commands.",
	}
}

// Init initializes the model (text input cursor blink).
func (m Model) Init() tea.Cmd { return textinput.Blink }

// Update handles key and window events and updates the view state.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.ready = true
		// account for frames around result and query boxes
		_, rh := resultBoxStyle.GetFrameSize()
		_, qh := queryBoxStyle.GetFrameSize()
		totalHeaderLines := 2                                    // header + scope line
		totalFooterLines := 1                                    // status
		reserved := totalHeaderLines + totalFooterLines + qh + 1 // 1 spacer
		vh := msg.Height - reserved
		if vh < 3 {
			vh = 3
		}
		m.viewport.Width = max(20, msg.Width)
		m.viewport.Height = max(3, vh-rh)
		m.refresh()
		return m, nil
	case tea.KeyMsg:
		// Global quits
		if msg.Type == tea.KeyCtrlC || msg.Type == tea.KeyCtrlD {
			return m, tea.Quit
		}
		switch msg.String() {
		case "enter":
			line := strings.TrimSpace(m.input.Value())
			if line == "" {
				break
			}
			m.input.SetValue("")
			if strings.HasPrefix(line, "/") {
				if quit := m.runCommand(line); quit {
					return m, tea.Quit
				}
			} else {
				m.ask(line)
			}
			m.refresh()
			return m, nil
		case "down":
			if m.answer != nil && len(m.answer.Sources) > 0 {
				m.cursor = (m.cursor + 1) % len(m.answer.Sources)
				m.info = ""
				m.refresh()
				return m, nil
			}
		case "up":
			if m.answer != nil && len(m.answer.Sources) > 0 {
				m.cursor = (m.cursor - 1 + len(m.answer.Sources)) % len(m.answer.Sources)
				m.info = ""
				m.refresh()
				return m, nil
			}
		case "pgdown", "pgup":
			var cmd tea.Cmd
			m.viewport, cmd = m.viewport.Update(msg)
			return m, cmd
		}
	}
	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

func (m *Model) ask(question string) {
	ans, err := m.service.Ask(m.ctx, service.AskRequest{Question: question, Mode: m.mode, SelectedFiles: m.selected})
	if err != nil {
		m.status = "Error: " + err.Error()
		return
	}
	m.answer = &ans
	m.cursor = 0
	m.info = ""
	switch {
	case ans.Warning != "":
		m.status = "Answered, but history was not saved: " + ans.Warning
	case !ans.Generated:
		m.status = "The language model could not be reached."
	default:
		m.status = fmt.Sprintf("Answered from %d sources. Use ↑/↓ to browse them.", len(ans.Sources))
	}
}

func (m *Model) refresh() {
	if m.info != "" || m.answer == nil {
		m.viewport.SetContent(m.info)
	} else {
		m.viewport.SetContent(m.renderAnswer())
	}
	m.viewport.GotoTop()
}

// View renders the TUI layout and current result.
func (m Model) View() string {
	if !m.ready {
		return "Loading..."
	}
	header := lipgloss.NewStyle().Bold(true).Render("DocuBrain")
	scope := lipgloss.NewStyle().Foreground(lipgloss.Color("8")).Render(m.scopeLine())
	input := queryBoxStyle.Render(m.input.View())
	status := lipgloss.NewStyle().Foreground(lipgloss.Color("10")).Render(m.status)
	results := resultBoxStyle.Render(m.viewport.View())
	return header + "\n" + scope + "\n" + results + "\n" + input + "\n" + status
}

func (m Model) scopeLine() string {
	files := "all files"
	if m.selected != nil {
		files = fmt.Sprintf("%d selected file(s)", len(m.selected))
	}
	return fmt.Sprintf("mode: %s | searching %s", m.mode, files)
}

func (m Model) renderAnswer() string {
	a := m.answer
	var b strings.Builder
	b.WriteString(answerTitleStyle.Render("Q: " + a.Question))
	b.WriteString("\n\n")
	b.WriteString(a.Text)
	if len(a.Sources) > 0 {
		r := a.Sources[m.cursor]
		b.WriteString("\n\n")
		b.WriteString(sourceTitleStyle.Render(fmt.Sprintf("Source %d/%d  %s  chunk=%d  score=%.3f",
			m.cursor+1, len(a.Sources), r.Metadata.FileName, r.Metadata.ChunkID, r.Score)))
		b.WriteString("\n")
		b.WriteString(highlightBestSentence(r.Text, a.Question))
	}
	return b.String()
}

var (
	resultBoxStyle   = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).Padding(0, 1)
	queryBoxStyle    = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).Padding(0, 1)
	highlightStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("11")).Bold(true)
	answerTitleStyle = lipgloss.NewStyle().Bold(true)
	sourceTitleStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("12"))
	unicodeWordRe    = regexp.MustCompile(`\p{L}+(?:['’]\p{L}+)*`)
	sentenceRe       = regexp.MustCompile(`[^.!?؟]+[.!?؟]*`)
)

func highlightBestSentence(text, query string) string {
	if strings.TrimSpace(text) == "" {
		return text
	}
	var sentences []string
	for _, s := range sentenceRe.FindAllString(text, -1) {
		if s = strings.TrimSpace(s); s != "" {
			sentences = append(sentences, s)
		}
	}
	if len(sentences) == 0 {
		return strings.TrimSpace(text)
	}
	qTokens := toTokenSet(query)
	if len(qTokens) == 0 {
		return strings.Join(sentences, " ")
	}
	bestIdx := 0
	bestScore := -1
	for i, s := range sentences {
		score := tokenOverlapScore(qTokens, s)
		if score > bestScore {
			bestScore = score
			bestIdx = i
		}
	}
	if bestScore > 0 {
		sentences[bestIdx] = highlightStyle.Render(sentences[bestIdx])
	}
	return strings.Join(sentences, " ")
}

func toTokenSet(s string) map[string]struct{} {
	tokens := unicodeWordRe.FindAllString(strings.ToLower(s), -1)
	m := make(map[string]struct{}, len(tokens))
	for _, t := range tokens {
		m[t] = struct{}{}
	}
	return m
}

func tokenOverlapScore(queryTokens map[string]struct{}, sentence string) int {
	score := 0
	tokens := unicodeWordRe.FindAllString(strings.ToLower(sentence), -1)
	seen := make(map[string]struct{}, len(tokens))
	for _, t := range tokens {
		if _, ok := seen[t]; ok {
			continue
		}
		seen[t] = struct{}{}
		if _, ok := queryTokens[t]; ok {
			score++
		}
	}
	return score
}
