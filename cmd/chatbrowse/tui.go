package main

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/thatjuancodes/chathistory"
)

type mode int

const (
	modeList mode = iota
	modeSearch
	modeDetail
)

type model struct {
	threads   []chathistory.Thread
	filtered  []chathistory.Thread
	currentID string

	cursor int
	offset int
	width  int
	height int
	mode   mode

	searchInput textinput.Model

	detailThread chathistory.Thread
	detailLines  []string
	detailOffset int

	quitting bool
}

func newModel(threads []chathistory.Thread, currentID string) model {
	// newest activity first
	sort.SliceStable(threads, func(i, j int) bool {
		return threads[i].UpdatedAt > threads[j].UpdatedAt
	})

	si := textinput.New()
	si.Placeholder = "search..."
	si.CharLimit = 100

	m := model{
		threads:     threads,
		currentID:   currentID,
		searchInput: si,
		width:       120,
		height:      30,
	}
	m.applyFilter()
	return m
}

func (m *model) applyFilter() {
	m.filtered = nil
	search := strings.ToLower(m.searchInput.Value())

	for _, t := range m.threads {
		if search != "" {
			haystack := strings.ToLower(t.Title + " " + t.ID + " " + threadText(t))
			if !strings.Contains(haystack, search) {
				continue
			}
		}
		m.filtered = append(m.filtered, t)
	}

	if m.cursor >= len(m.filtered) {
		m.cursor = max(0, len(m.filtered)-1)
	}
	m.clampOffset()
}

// threadText flattens a thread's message bodies for searching.
func threadText(t chathistory.Thread) string {
	var b strings.Builder
	for _, msg := range t.Messages {
		b.WriteString(msg.Content)
		b.WriteString(" ")
	}
	return b.String()
}

func (m model) Init() tea.Cmd {
	return nil
}

func (m model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.clampOffset()
		return m, nil

	case tea.KeyMsg:
		switch m.mode {
		case modeList:
			return m.updateList(msg)
		case modeSearch:
			return m.updateSearch(msg)
		case modeDetail:
			return m.updateDetail(msg)
		}
	}
	return m, nil
}

func (m model) updateList(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "q", "ctrl+c":
		m.quitting = true
		return m, tea.Quit

	case "up", "k":
		if m.cursor > 0 {
			m.cursor--
			m.clampOffset()
		}

	case "down", "j":
		if m.cursor < len(m.filtered)-1 {
			m.cursor++
			m.clampOffset()
		}

	case "home", "g":
		m.cursor = 0
		m.clampOffset()

	case "end", "G":
		m.cursor = max(0, len(m.filtered)-1)
		m.clampOffset()

	case "enter":
		if len(m.filtered) > 0 {
			m.detailThread = m.filtered[m.cursor]
			m.detailLines = renderMessages(m.detailThread, m.width)
			m.detailOffset = 0
			m.mode = modeDetail
		}

	case "/":
		m.searchInput.Focus()
		m.mode = modeSearch
	}

	return m, nil
}

func (m model) updateSearch(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "enter", "esc":
		m.searchInput.Blur()
		m.mode = modeList
		return m, nil
	}

	var cmd tea.Cmd
	m.searchInput, cmd = m.searchInput.Update(msg)
	m.applyFilter()
	return m, cmd
}

func (m model) updateDetail(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	visible := m.visibleRows()

	switch msg.String() {
	case "q", "ctrl+c":
		m.quitting = true
		return m, tea.Quit

	case "esc":
		m.mode = modeList

	case "up", "k":
		if m.detailOffset > 0 {
			m.detailOffset--
		}

	case "down", "j":
		if m.detailOffset < len(m.detailLines)-visible {
			m.detailOffset++
		}

	case "pgup", "u":
		m.detailOffset = max(0, m.detailOffset-visible)

	case "pgdown", "d":
		m.detailOffset = min(max(0, len(m.detailLines)-visible), m.detailOffset+visible)

	case "home", "g":
		m.detailOffset = 0

	case "end", "G":
		m.detailOffset = max(0, len(m.detailLines)-visible)
	}

	return m, nil
}

func (m model) View() string {
	if m.quitting {
		return ""
	}
	if m.mode == modeDetail {
		return m.viewDetail()
	}
	return m.viewList()
}

func (m model) viewList() string {
	var b strings.Builder

	title := titleStyle.Render("Chat History")
	info := dimStyle.Render(fmt.Sprintf("  %d threads", len(m.filtered)))
	b.WriteString(title + info + "\n")

	header := headerStyle.Render(pad("Updated", 12) + " " + pad("Msgs", 5) + " " + "Title")
	b.WriteString(header + "\n")

	visible := m.visibleRows()
	end := min(m.offset+visible, len(m.filtered))

	for i := m.offset; i < end; i++ {
		t := m.filtered[i]
		marker := " "
		if t.ID == m.currentID {
			marker = "*"
		}
		row := pad(formatMillis(t.UpdatedAt), 12) + " " +
			pad(fmt.Sprintf("%d", len(t.Messages)), 5) + " " +
			marker + t.Title

		if i == m.cursor {
			b.WriteString(selectedStyle.Render(row) + "\n")
		} else {
			b.WriteString(normalStyle.Render(row) + "\n")
		}
	}
	for i := end - m.offset; i < visible; i++ {
		b.WriteString("\n")
	}

	if m.mode == modeSearch {
		b.WriteString(statusBarStyle.Render("Search: ") + m.searchInput.View())
	} else {
		b.WriteString(helpStyle.Render("  j/k: move  enter: open  /: search  q: quit"))
	}

	return b.String()
}

func (m model) viewDetail() string {
	var b strings.Builder

	b.WriteString(titleStyle.Render(m.detailThread.Title) +
		dimStyle.Render("  "+formatMillis(m.detailThread.UpdatedAt)) + "\n")

	visible := m.visibleRows()
	end := min(m.detailOffset+visible, len(m.detailLines))
	for i := m.detailOffset; i < end; i++ {
		b.WriteString(m.detailLines[i] + "\n")
	}
	for i := end - m.detailOffset; i < visible; i++ {
		b.WriteString("\n")
	}

	b.WriteString(helpStyle.Render("  j/k: scroll  esc: back  q: quit"))
	return b.String()
}

// renderMessages flattens a thread into display lines, wrapping content
// to the terminal width.
func renderMessages(t chathistory.Thread, width int) []string {
	var lines []string
	wrap := max(20, width-4)

	for _, msg := range t.Messages {
		switch msg.Role {
		case chathistory.RoleUser:
			lines = append(lines, userRoleStyle.Render(" user "))
		default:
			lines = append(lines, assistantRoleStyle.Render(" assistant "))
		}

		for _, line := range wrapText(msg.Content, wrap) {
			lines = append(lines, "  "+line)
		}
		if n := len(msg.Images); n > 0 {
			lines = append(lines, attachmentStyle.Render(fmt.Sprintf("  [%d image attachment(s)]", n)))
		}
		lines = append(lines, "")
	}
	return lines
}

// wrapText breaks s into lines at most width runes long, on word
// boundaries where possible.
func wrapText(s string, width int) []string {
	var lines []string
	for _, raw := range strings.Split(s, "\n") {
		if raw == "" {
			lines = append(lines, "")
			continue
		}
		line := ""
		for _, word := range strings.Fields(raw) {
			switch {
			case line == "":
				line = word
			case len(line)+1+len(word) <= width:
				line += " " + word
			default:
				lines = append(lines, line)
				line = word
			}
		}
		if line != "" {
			lines = append(lines, line)
		}
	}
	return lines
}

func (m model) visibleRows() int {
	// title + header + status bar
	return max(1, m.height-3)
}

func (m *model) clampOffset() {
	visible := m.visibleRows()
	if m.cursor < m.offset {
		m.offset = m.cursor
	}
	if m.cursor >= m.offset+visible {
		m.offset = m.cursor - visible + 1
	}
	if m.offset < 0 {
		m.offset = 0
	}
}

func formatMillis(ms int64) string {
	return time.UnixMilli(ms).Format("01-02 15:04")
}

func pad(s string, width int) string {
	if len(s) >= width {
		return s[:width]
	}
	return s + strings.Repeat(" ", width-len(s))
}
