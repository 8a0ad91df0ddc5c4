package replay

import (
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/fsnotify/fsnotify"
	"github.com/muesli/reflow/wordwrap"
)

var (
	pagerTitleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("15")).
			Background(lipgloss.Color("62")).
			Padding(0, 1)

	pagerInfoStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("8"))

	liveStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("10"))
)

// Pager is an interactive terminal pager for replays.
type Pager struct {
	title string
}

// NewPager creates a pager with the given title.
func NewPager(title string) *Pager {
	return &Pager{title: title}
}

// Run shows content until the user quits.
func (p *Pager) Run(content string) error {
	prog := tea.NewProgram(
		newPagerModel(p.title, content),
		tea.WithAltScreen(),
		tea.WithMouseCellMotion(),
	)
	_, err := prog.Run()
	return err
}

// RunLive shows renderFunc's output and re-renders whenever a transcript in
// dir is created or rewritten.
func (p *Pager) RunLive(dir string, renderFunc func() (string, error)) error {
	content, err := renderFunc()
	if err != nil {
		return err
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create watcher: %w", err)
	}
	defer watcher.Close()
	if err := watcher.Add(dir); err != nil {
		return fmt.Errorf("failed to watch %s: %w", dir, err)
	}

	m := newPagerModel(p.title, content)
	m.live = true
	m.renderFunc = renderFunc
	m.watcher = watcher

	prog := tea.NewProgram(m, tea.WithAltScreen(), tea.WithMouseCellMotion())
	_, err = prog.Run()
	return err
}

// transcriptChangedMsg is sent when a watched transcript changes.
type transcriptChangedMsg struct{}

// pagerModel is the Bubble Tea model behind Pager.
type pagerModel struct {
	viewport viewport.Model
	title    string
	content  string
	wrapped  string // content wrapped to the viewport, as displayed
	ready    bool

	live       bool
	renderFunc func() (string, error)
	watcher    *fsnotify.Watcher
	lastUpdate time.Time

	searching   bool
	searchInput textinput.Model
	query       string
	matches     []int // wrapped line numbers containing query
	matchIndex  int
}

func newPagerModel(title, content string) *pagerModel {
	return &pagerModel{title: title, content: content}
}

func (m *pagerModel) Init() tea.Cmd {
	if m.live && m.watcher != nil {
		return m.waitForChange()
	}
	return nil
}

// waitForChange blocks until a transcript file is written.
func (m *pagerModel) waitForChange() tea.Cmd {
	return func() tea.Msg {
		for {
			select {
			case event, ok := <-m.watcher.Events:
				if !ok {
					return nil
				}
				if filepath.Ext(event.Name) != ".jsonl" {
					continue
				}
				if event.Op&(fsnotify.Write|fsnotify.Create) != 0 {
					// Let the writer finish the file.
					time.Sleep(100 * time.Millisecond)
					return transcriptChangedMsg{}
				}
			case _, ok := <-m.watcher.Errors:
				if !ok {
					return nil
				}
			}
		}
	}
}

func (m *pagerModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	if m.searching {
		return m.updateSearch(msg)
	}

	var cmds []tea.Cmd
	switch msg := msg.(type) {
	case transcriptChangedMsg:
		m.reload()
		cmds = append(cmds, m.waitForChange())

	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c":
			return m, tea.Quit
		case "esc":
			if m.query == "" {
				return m, tea.Quit
			}
			m.clearSearch()
		case "g":
			m.viewport.GotoTop()
		case "G", "f":
			m.viewport.GotoBottom()
		case "/":
			m.searching = true
			m.searchInput = textinput.New()
			m.searchInput.Placeholder = "Search..."
			m.searchInput.CharLimit = 100
			m.searchInput.Width = 40
			m.searchInput.SetValue(m.query)
			m.searchInput.Focus()
			return m, textinput.Blink
		case "n":
			if len(m.matches) > 0 {
				m.jumpTo((m.matchIndex + 1) % len(m.matches))
			}
		case "N":
			if len(m.matches) > 0 {
				m.jumpTo((m.matchIndex - 1 + len(m.matches)) % len(m.matches))
			}
		}

	case tea.WindowSizeMsg:
		height := msg.Height - 2 // header and footer
		if !m.ready {
			m.viewport = viewport.New(msg.Width, height)
			m.viewport.YPosition = 1
			m.ready = true
		} else {
			m.viewport.Width = msg.Width
			m.viewport.Height = height
		}
		m.setContent(m.content)
	}

	var cmd tea.Cmd
	m.viewport, cmd = m.viewport.Update(msg)
	cmds = append(cmds, cmd)
	return m, tea.Batch(cmds...)
}

func (m *pagerModel) updateSearch(msg tea.Msg) (tea.Model, tea.Cmd) {
	if key, ok := msg.(tea.KeyMsg); ok {
		switch key.String() {
		case "enter":
			m.searching = false
			m.query = m.searchInput.Value()
			m.search()
			if len(m.matches) > 0 {
				m.jumpTo(0)
			}
			return m, nil
		case "esc", "ctrl+c":
			m.searching = false
			m.clearSearch()
			return m, nil
		}
	}
	var cmd tea.Cmd
	m.searchInput, cmd = m.searchInput.Update(msg)
	return m, cmd
}

// reload re-renders the live content, keeping the scroll position.
func (m *pagerModel) reload() {
	if m.renderFunc == nil {
		return
	}
	content, err := m.renderFunc()
	if err != nil {
		return
	}
	offset := m.viewport.YOffset
	m.setContent(content)
	m.viewport.SetYOffset(offset)
	m.lastUpdate = time.Now()
}

func (m *pagerModel) setContent(content string) {
	m.content = content
	m.wrapped = wrapContent(content, m.viewport.Width)
	m.viewport.SetContent(m.wrapped)
	if m.query != "" {
		m.search()
	}
}

func (m *pagerModel) search() {
	m.matches = nil
	m.matchIndex = 0
	if m.query == "" {
		return
	}
	query := strings.ToLower(m.query)
	for i, line := range strings.Split(m.wrapped, "\n") {
		if strings.Contains(strings.ToLower(line), query) {
			m.matches = append(m.matches, i)
		}
	}
}

func (m *pagerModel) clearSearch() {
	m.query = ""
	m.matches = nil
	m.matchIndex = 0
}

// jumpTo centers match i on screen.
func (m *pagerModel) jumpTo(i int) {
	m.matchIndex = i
	m.viewport.SetYOffset(m.matches[i] - m.viewport.Height/2)
}

func (m *pagerModel) View() string {
	if !m.ready {
		return "\n  Loading..."
	}

	title := pagerTitleStyle.Render(m.title)
	header := title + pagerInfoStyle.Render(strings.Repeat("─", max(0, m.viewport.Width-lipgloss.Width(title))))

	var footer string
	if m.searching {
		footer = warnStyle.Render("/") + m.searchInput.View()
	} else {
		help := m.help()
		info := fmt.Sprintf(" %3.f%% ", m.viewport.ScrollPercent()*100)
		fill := strings.Repeat("─", max(0, m.viewport.Width-lipgloss.Width(help)-lipgloss.Width(info)))
		footer = help + pagerInfoStyle.Render(fill+info)
	}

	return header + "\n" + m.viewport.View() + "\n" + footer
}

func (m *pagerModel) help() string {
	switch {
	case m.query != "" && len(m.matches) == 0:
		return fmt.Sprintf(" %s │ /: search ", errorStyle.Render("Pattern not found"))
	case len(m.matches) > 0:
		return fmt.Sprintf(" %s │ n/N: next/prev │ esc: clear ",
			warnStyle.Render(fmt.Sprintf("[%d/%d]", m.matchIndex+1, len(m.matches))))
	case m.live:
		updated := ""
		if !m.lastUpdate.IsZero() {
			updated = dimStyle.Render(" " + m.lastUpdate.Format("15:04:05"))
		}
		return fmt.Sprintf(" %s%s │ q: quit │ /: search │ f: follow ", liveStyle.Render("● LIVE"), updated)
	default:
		return pagerInfoStyle.Render(" q: quit │ /: search │ g/G: top/bottom ")
	}
}

// wrapContent wraps lines to width. Timeline rows keep their continuation
// lines aligned with the content column.
func wrapContent(content string, width int) string {
	if width <= 0 {
		return content
	}

	var out []string
	for _, line := range strings.Split(content, "\n") {
		if lipgloss.Width(line) <= width {
			out = append(out, line)
			continue
		}

		lastPipe := strings.LastIndex(line, "│")
		if lastPipe <= 0 {
			out = append(out, strings.Split(wordwrap.String(line, width), "\n")...)
			continue
		}

		start := lastPipe + len("│")
		for start < len(line) && line[start] == ' ' {
			start++
		}
		prefixWidth := lipgloss.Width(line[:start])
		contentWidth := max(20, width-prefixWidth)

		wrapped := strings.Split(wordwrap.String(line[start:], contentWidth), "\n")
		out = append(out, line[:start]+wrapped[0])
		indent := strings.Repeat(" ", prefixWidth)
		for _, w := range wrapped[1:] {
			out = append(out, indent+w)
		}
	}
	return strings.Join(out, "\n")
}
