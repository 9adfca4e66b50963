// Command board is a terminal live view of the kitchen, a driver's
// deliveries, a customer's orders or an event's reservations.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/table"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"catering/internal/realtime"
)

var (
	docStyle = lipgloss.NewStyle().Margin(1, 2)

	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#FAFAFA")).
			Background(lipgloss.Color("#7D56F4")).
			Padding(0, 1)

	infoStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#FFFFFF")).
			Background(lipgloss.Color("#0a84ff")).
			Padding(0, 1)

	successStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#FFFFFF")).
			Background(lipgloss.Color("#30d158")).
			Padding(0, 1)

	errorStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#FFFFFF")).
			Background(lipgloss.Color("#ff453a")).
			Padding(0, 1)

	helpStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("241"))
)

const reconnectDelay = 2 * time.Second

type (
	// changedMsg is sent whenever the followed view changed
	changedMsg struct{}
	// linkMsg reports the connection state of the live view
	linkMsg struct{ err error }
	// actionMsg is the outcome of a key action
	actionMsg struct {
		what string
		err  error
	}
)

// Model is the board state
type Model struct {
	board   board
	client  *APIClient
	view    *realtime.View
	table   table.Model
	spinner spinner.Model
	status  string
	err     string
	linkErr error
}

func newModel(b board, client *APIClient, view *realtime.View) Model {
	s := spinner.New()
	s.Spinner = spinner.Dot
	s.Style = lipgloss.NewStyle().Foreground(lipgloss.Color("205"))

	t := table.New(
		table.WithColumns(b.columns()),
		table.WithFocused(true),
		table.WithHeight(15),
	)

	return Model{board: b, client: client, view: view, table: t, spinner: s}
}

// Init starts the spinner
func (m Model) Init() tea.Cmd {
	return m.spinner.Tick
}

// Update handles key presses and live view changes
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "ctrl+c", "q":
			return m, tea.Quit
		}
		if cmd := m.action(msg.String()); cmd != nil {
			m.status, m.err = "working...", ""
			return m, cmd
		}

	case tea.WindowSizeMsg:
		h := msg.Height - 8
		if h < 3 {
			h = 3
		}
		m.table.SetHeight(h)

	case changedMsg:
		m.linkErr = nil
		m.refresh()
		return m, nil

	case linkMsg:
		m.linkErr = msg.err
		return m, nil

	case actionMsg:
		if msg.err != nil {
			m.status, m.err = "", msg.err.Error()
		} else {
			m.status, m.err = msg.what, ""
		}
		return m, nil

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd
	}

	var cmd tea.Cmd
	m.table, cmd = m.table.Update(msg)
	return m, cmd
}

func (m *Model) refresh() {
	if m.board.kind == "event" {
		rs, err := m.view.Reservations()
		if err != nil {
			m.err = err.Error()
			return
		}
		m.table.SetRows(reservationRows(rs))
		return
	}
	orders, err := m.view.Orders()
	if err != nil {
		m.err = err.Error()
		return
	}
	m.table.SetRows(orderRows(orders, time.Now()))
}

// action maps a key to an API call on the selected row
func (m Model) action(key string) tea.Cmd {
	id, ok := selectedID(m.table.SelectedRow())
	if !ok {
		return nil
	}
	c := m.client

	var (
		what string
		call func() error
	)
	switch m.board.kind {
	case "kitchen":
		statuses := map[string]string{"p": "preparing", "d": "delivering", "c": "completed", "x": "cancelled"}
		if status, ok := statuses[key]; ok {
			what = fmt.Sprintf("order %d %s", id, status)
			call = func() error { return c.Transition(id, status) }
		}
		switch key {
		case "b":
			what = fmt.Sprintf("order %d sent back", id)
			call = func() error { return c.SendBack(id) }
		case "a":
			what = fmt.Sprintf("order %d archived", id)
			call = func() error { return c.Archive(id) }
		}
	case "driver":
		switch key {
		case "e":
			what = fmt.Sprintf("order %d en route", id)
			call = func() error { return c.DriverStatus(id, "en_route") }
		case "d":
			what = fmt.Sprintf("order %d delivered", id)
			call = func() error { return c.DriverStatus(id, "delivered") }
		}
	case "event":
		if key == "x" {
			what = fmt.Sprintf("reservation %d cancelled", id)
			call = func() error { return c.CancelReservation(id) }
		}
	}
	if call == nil {
		return nil
	}
	return func() tea.Msg {
		return actionMsg{what: what, err: call()}
	}
}

func (m Model) help() string {
	switch m.board.kind {
	case "kitchen":
		return "p preparing • d delivering • c completed • x cancel • b send back • a archive • q quit"
	case "driver":
		return "e en route • d delivered • q quit"
	case "event":
		return "x cancel reservation • q quit"
	}
	return "q quit"
}

// View renders the board
func (m Model) View() string {
	header := titleStyle.Render(m.board.title()) + " "
	switch {
	case m.linkErr != nil:
		header += errorStyle.Render("reconnecting: " + m.linkErr.Error())
	case !m.view.Synced():
		header += m.spinner.View() + " syncing"
	default:
		header += successStyle.Render("live")
	}

	footer := ""
	if m.err != "" {
		footer = errorStyle.Render(m.err) + "\n"
	} else if m.status != "" {
		footer = infoStyle.Render(m.status) + "\n"
	}
	footer += helpStyle.Render(m.help())

	return docStyle.Render(header + "\n\n" + m.table.View() + "\n\n" + footer)
}

// follow keeps the view connected, reconnecting after every drop
func follow(ctx context.Context, p *tea.Program, client *APIClient, b board, view *realtime.View) {
	url := client.LiveURL(b.path())
	for {
		err := realtime.Follow(ctx, url, client.Header(), view, func() { p.Send(changedMsg{}) })
		if ctx.Err() != nil {
			return
		}
		p.Send(linkMsg{err: err})
		select {
		case <-ctx.Done():
			return
		case <-time.After(reconnectDelay):
		}
	}
}

func main() {
	var (
		apiURL = flag.String("api", envOr("CATERING_API_URL", "http://localhost:8080"), "API base URL")
		token  = flag.String("token", os.Getenv("CATERING_TOKEN"), "Bearer token")
		which  = flag.String("board", "kitchen", "kitchen, driver:<id>, customer:<id> or event:<token>")
	)
	flag.Parse()

	b, err := parseBoard(*which)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(2)
	}

	client := NewAPIClient(*apiURL, *token)
	view := realtime.NewView()
	p := tea.NewProgram(newModel(b, client, view), tea.WithAltScreen())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go follow(ctx, p, client, b, view)

	if _, err := p.Run(); err != nil {
		fmt.Fprintf(os.Stderr, "Error running board: %v\n", err)
		os.Exit(1)
	}
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
