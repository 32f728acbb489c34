// lvdash is a terminal front end for a live view server: it loads the
// page, keeps a websocket session running and renders the text content
// of every live view container as the server pushes diffs. Keystrokes
// are forwarded as window-keydown events so server-side key bindings
// work from the terminal.
package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"net/http"
	"os"
	"sort"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/livefir/liveclient"
)

var (
	titleStyle  = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("212"))
	statusStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("241"))
	errorStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("196"))
	viewStyle   = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).Padding(0, 1)
)

func main() {
	pageURL := flag.String("page", "", "HTTP URL of the page to load")
	socketURL := flag.String("url", "", "websocket URL of the live view endpoint")
	configPath := flag.String("config", "", "optional YAML config file")
	flag.Parse()

	cfg := liveclient.DefaultConfig(*socketURL)
	if *configPath != "" {
		loaded, err := liveclient.LoadConfig(*configPath)
		if err != nil {
			fmt.Fprintf(os.Stderr, "lvdash: %v\n", err)
			os.Exit(1)
		}
		cfg = loaded
	}
	if *socketURL != "" {
		cfg.URL = *socketURL
	}
	if *pageURL == "" || cfg.URL == "" {
		fmt.Fprintln(os.Stderr, "usage: lvdash -page http://host/ -url ws://host/live [-config lvdash.yaml]")
		os.Exit(1)
	}

	doc, err := fetchDocument(*pageURL)
	if err != nil {
		fmt.Fprintf(os.Stderr, "lvdash: %v\n", err)
		os.Exit(1)
	}

	if err := run(doc, cfg); err != nil {
		fmt.Fprintf(os.Stderr, "lvdash: %v\n", err)
		os.Exit(1)
	}
}

func fetchDocument(url string) (*liveclient.Document, error) {
	resp, err := http.Get(url)
	if err != nil {
		return nil, fmt.Errorf("fetch page: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("fetch page: unexpected status %s", resp.Status)
	}
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("fetch page: %w", err)
	}
	return liveclient.ParseDocumentString(string(body))
}

type patchMsg struct{ viewID string }

type sessionErrMsg struct{ err error }

type model struct {
	sess    *liveclient.Session
	doc     *liveclient.Document
	views   []string
	bodies  map[string]string
	status  string
	lastErr string
	width   int
}

func run(doc *liveclient.Document, cfg liveclient.Config) error {
	m := &model{doc: doc, bodies: make(map[string]string)}
	for id := range doc.Containers() {
		m.views = append(m.views, id)
	}
	sort.Strings(m.views)

	p := tea.NewProgram(m, tea.WithAltScreen())

	m.sess = liveclient.NewSession(doc, cfg,
		liveclient.WithPatchObserver(func(viewID string) {
			p.Send(patchMsg{viewID: viewID})
		}),
		liveclient.WithErrorObserver(func(err error) {
			p.Send(sessionErrMsg{err: err})
		}),
	)
	defer m.sess.Close()

	if err := m.sess.Connect(context.Background()); err != nil {
		return err
	}
	m.status = "connected to " + cfg.URL

	_, err := p.Run()
	return err
}

func (m *model) Init() tea.Cmd {
	return nil
}

func (m *model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
	case patchMsg:
		m.refresh(msg.viewID)
	case sessionErrMsg:
		m.lastErr = msg.err.Error()
	case tea.KeyMsg:
		switch msg.String() {
		case "ctrl+c", "q":
			return m, tea.Quit
		default:
			m.forwardKey(msg)
		}
	}
	return m, nil
}

func (m *model) refresh(viewID string) {
	done := make(chan struct{})
	m.sess.Post(func() {
		defer close(done)
		if c := m.doc.Container(viewID); c != nil {
			m.bodies[viewID] = strings.TrimSpace(liveclient.Text(c))
		}
	})
	select {
	case <-done:
	case <-m.sess.Done():
	}
}

// forwardKey turns a terminal keypress into a window-keydown event on
// the session loop.
func (m *model) forwardKey(msg tea.KeyMsg) {
	key := msg.String()
	if msg.Type == tea.KeyEnter {
		key = "Enter"
	}
	m.sess.Post(func() {
		m.sess.Events().FireWindow("keydown", &liveclient.Event{
			Key:  key,
			Code: key,
			Alt:  msg.Alt,
		})
	})
}

func (m *model) View() string {
	var b strings.Builder
	b.WriteString(titleStyle.Render("lvdash"))
	b.WriteString("\n")
	if m.lastErr != "" {
		b.WriteString(errorStyle.Render("error: "+m.lastErr) + "\n")
	}
	b.WriteString(statusStyle.Render(m.status) + "\n\n")
	for _, id := range m.views {
		body := m.bodies[id]
		if body == "" {
			body = "(waiting for initial render)"
		}
		b.WriteString(titleStyle.Render(id) + "\n")
		b.WriteString(viewStyle.Render(body) + "\n")
	}
	b.WriteString(statusStyle.Render("press q to quit"))
	return b.String()
}
