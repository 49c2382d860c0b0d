package tui

import (
	"fmt"
	"strconv"
	"strings"

	"docubrain/internal/domain"
)

const helpText = `Commands:
  /add <path.pdf> [more.pdf ...]   add documents
  /rm <stored name>                remove a document and its chunks
  /files                           list stored documents
  /select <name> [name ...]        search only these documents
  /select all                      search every document
  /mode answer|mcq|quiz            how questions are put to the model
  /history [n]                     show the last n exchanges (default 10)
  /clear                           clear the chat history
  /stats                           show counts and sizes
  /help                            show this help
  /quit                            exit

Anything else is asked as a question. ↑/↓ browse the sources of the last answer.`

// runCommand executes a slash command and reports whether the program should exit.
func (m *Model) runCommand(line string) bool {
	fields := strings.Fields(line)
	cmd, args := fields[0], fields[1:]
	switch cmd {
	case "/quit", "/exit":
		return true
	case "/help":
		m.info = helpText
		m.status = "Help"
	case "/add":
		m.add(args)
	case "/rm":
		m.remove(args)
	case "/files":
		m.listFiles()
	case "/select":
		m.selectFiles(args)
	case "/mode":
		m.setMode(args)
	case "/history":
		m.showHistory(args)
	case "/clear":
		if err := m.service.ClearHistory(); err != nil {
			m.status = "Error: " + err.Error()
			return false
		}
		m.status = "Chat history cleared."
	case "/stats":
		m.showStats()
	default:
		m.status = fmt.Sprintf("Unknown command %s. Type /help.", cmd)
	}
	return false
}

func (m *Model) add(paths []string) {
	if len(paths) == 0 {
		m.status = "Usage: /add <path.pdf> [more.pdf ...]"
		return
	}
	var b strings.Builder
	added := 0
	for _, p := range paths {
		report, err := m.service.Ingest(m.ctx, p)
		if err != nil {
			fmt.Fprintf(&b, "✗ %s: %v\n\n", p, err)
			continue
		}
		added++
		fmt.Fprintf(&b, "✓ %s stored as %s (%d chunks)\n", p, report.StoredName, report.Chunks)
		if report.Warning != "" {
			fmt.Fprintf(&b, "  warning: %s\n", report.Warning)
		}
		if report.Summary != "" {
			fmt.Fprintf(&b, "  summary: %s\n", report.Summary)
		}
		b.WriteString("\n")
		if m.selected != nil {
			m.selected = append(m.selected, report.StoredName)
		}
	}
	m.info = strings.TrimRight(b.String(), "\n")
	m.status = fmt.Sprintf("Added %d of %d document(s).", added, len(paths))
}

func (m *Model) remove(names []string) {
	if len(names) != 1 {
		m.status = "Usage: /rm <stored name>"
		return
	}
	name := names[0]
	report, err := m.service.Remove(m.ctx, name)
	if err != nil {
		m.status = "Error: " + err.Error()
		return
	}
	if m.selected != nil {
		kept := m.selected[:0]
		for _, s := range m.selected {
			if s != name {
				kept = append(kept, s)
			}
		}
		m.selected = kept
	}
	m.status = fmt.Sprintf("Removed %s (%d chunks).", name, report.Chunks)
	if report.Warning != "" {
		m.status += " Warning: " + report.Warning
	}
}

func (m *Model) listFiles() {
	names, err := m.service.Files()
	if err != nil {
		m.status = "Error: " + err.Error()
		return
	}
	if len(names) == 0 {
		m.info = "No documents yet. Use /add <path.pdf>."
		m.status = "0 documents"
		return
	}
	selected := make(map[string]bool, len(m.selected))
	for _, s := range m.selected {
		selected[s] = true
	}
	var b strings.Builder
	for _, n := range names {
		mark := " "
		if m.selected == nil || selected[n] {
			mark = "*"
		}
		fmt.Fprintf(&b, "%s %s\n", mark, n)
	}
	m.info = strings.TrimRight(b.String(), "\n")
	m.status = fmt.Sprintf("%d document(s); * marks those searched", len(names))
}

func (m *Model) selectFiles(args []string) {
	if len(args) == 0 || (len(args) == 1 && args[0] == "all") {
		m.selected = nil
		m.status = "Searching all documents."
		return
	}
	names, err := m.service.Files()
	if err != nil {
		m.status = "Error: " + err.Error()
		return
	}
	known := make(map[string]bool, len(names))
	for _, n := range names {
		known[n] = true
	}
	var picked, unknown []string
	for _, a := range args {
		if known[a] {
			picked = append(picked, a)
		} else {
			unknown = append(unknown, a)
		}
	}
	if len(unknown) > 0 {
		m.status = "Unknown document(s): " + strings.Join(unknown, ", ")
		return
	}
	m.selected = picked
	m.status = fmt.Sprintf("Searching %d document(s).", len(picked))
}

func (m *Model) setMode(args []string) {
	if len(args) != 1 {
		m.status = "Usage: /mode answer|mcq|quiz"
		return
	}
	mode, ok := domain.ParseMode(args[0])
	if !ok {
		m.status = fmt.Sprintf("Unknown mode %q. Use answer, mcq or quiz.", args[0])
		return
	}
	m.mode = mode
	m.status = "Mode set to " + string(mode)
}

func (m *Model) showHistory(args []string) {
	n := 10
	if len(args) > 0 {
		v, err := strconv.Atoi(args[0])
		if err != nil || v <= 0 {
			m.status = "Usage: /history [n]"
			return
		}
		n = v
	}
	msgs := m.service.History(n)
	if len(msgs) == 0 {
		m.info = "No conversations yet."
		m.status = "History"
		return
	}
	var b strings.Builder
	for _, msg := range msgs {
		fmt.Fprintf(&b, "#%d  %s\nQ: %s\nA: %s\n", msg.ID, msg.Timestamp.Format("2006/01/02 - 15:04"), msg.Question, msg.Answer)
		if len(msg.Sources) > 0 {
			files := make([]string, 0, len(msg.Sources))
			seen := map[string]bool{}
			for _, s := range msg.Sources {
				if !seen[s.Metadata.FileName] {
					seen[s.Metadata.FileName] = true
					files = append(files, s.Metadata.FileName)
				}
			}
			fmt.Fprintf(&b, "sources: %s\n", strings.Join(files, ", "))
		}
		b.WriteString("\n")
	}
	m.info = strings.TrimRight(b.String(), "\n")
	m.status = fmt.Sprintf("Last %d exchange(s)", len(msgs))
}

func (m *Model) showStats() {
	st, err := m.service.Stats()
	if err != nil {
		m.status = "Error: " + err.Error()
		return
	}
	m.info = fmt.Sprintf("Documents:     %d\nChunks:        %d\nTotal size:    %.1f MB\nConversations: %d",
		st.Files, st.Chunks, st.TotalSizeMB, st.Conversations)
	m.status = "Statistics"
}
