// Package present is the holder's terminal presentation: a bubbletea
// program that unlocks a session and shows the rotating QR code.
package present

import (
	"context"
	"fmt"
	"strings"
	"time"

	"gatepass/internal/clock"
	"gatepass/internal/domain"
	"gatepass/internal/holder"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

// Renderer turns an envelope into printable QR text.
type Renderer func(env domain.TicketEnvelope) (string, error)

var (
	titleStyle  = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("12"))
	faintStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("8"))
	errorStyle  = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("9"))
	okStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("10"))
	codeStyle   = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).Padding(0, 1)
	hiddenStyle = lipgloss.NewStyle().Italic(true).Foreground(lipgloss.Color("8")).Padding(1, 2)
)

type unlockedMsg struct{ err error }

type viewMsg struct{ view holder.View }

type sessionEndedMsg struct{ err error }

// channelSurface hands scheduler renders to the bubbletea loop. Only the
// newest view matters, so a pending one is replaced.
type channelSurface struct {
	views chan holder.View
}

func newChannelSurface() *channelSurface {
	return &channelSurface{views: make(chan holder.View, 1)}
}

func (s *channelSurface) Render(v holder.View) {
	for {
		select {
		case s.views <- v:
			return
		default:
		}
		select {
		case <-s.views:
		default:
		}
	}
}

// Hide delivers a final locked view, which also ends the listener.
func (s *channelSurface) Hide() {
	s.Render(holder.View{State: holder.StateLocked})
}

type Model struct {
	ctx      context.Context
	session  *holder.Session
	clock    clock.Clock
	rotation time.Duration
	render   Renderer
	surface  *channelSurface

	cancel  context.CancelFunc
	view    holder.View
	status  string
	err     error
	running bool
}

func NewModel(ctx context.Context, session *holder.Session, c clock.Clock, rotation time.Duration, render Renderer) Model {
	return Model{
		ctx:      ctx,
		session:  session,
		clock:    c,
		rotation: rotation,
		render:   render,
		surface:  newChannelSurface(),
		view:     session.View(),
	}
}

func (m Model) Init() tea.Cmd {
	return nil
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		return m.handleKey(msg)

	case unlockedMsg:
		m.view = m.session.View()
		if msg.err != nil {
			m.err = msg.err
			m.status = ""
			return m, nil
		}
		m.err = nil
		m.status = ""
		ctx, cancel := context.WithCancel(m.ctx)
		m.cancel = cancel
		m.running = true
		scheduler := &holder.Scheduler{
			Session:          m.session,
			Clock:            m.clock,
			RotationInterval: m.rotation,
			Surface:          m.surface,
		}
		return m, tea.Batch(runScheduler(ctx, scheduler), listenForView(m.surface.views))

	case viewMsg:
		m.view = msg.view
		if msg.view.State != holder.StateDisplaying {
			return m, nil
		}
		return m, listenForView(m.surface.views)

	case sessionEndedMsg:
		m.running = false
		if m.cancel != nil {
			m.cancel()
			m.cancel = nil
		}
		m.err = msg.err
		m.view = m.session.View()
		m.status = "session ended"
		return m, nil
	}
	return m, nil
}

func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "ctrl+c", "q", "esc":
		if m.cancel != nil {
			m.cancel()
		}
		m.session.Close()
		return m, tea.Quit

	case "enter", "u":
		if m.session.State() != holder.StateLocked {
			return m, nil
		}
		m.status = "confirm in your wallet..."
		m.view.State = holder.StateConfirming
		session, ctx := m.session, m.ctx
		return m, func() tea.Msg {
			return unlockedMsg{err: session.Unlock(ctx)}
		}

	case " ", "h":
		if err := m.session.Toggle(); err == nil {
			m.view = m.session.View()
		}
	}
	return m, nil
}

func runScheduler(ctx context.Context, scheduler *holder.Scheduler) tea.Cmd {
	return func() tea.Msg {
		return sessionEndedMsg{err: scheduler.Run(ctx)}
	}
}

func listenForView(views <-chan holder.View) tea.Cmd {
	return func() tea.Msg {
		return viewMsg{view: <-views}
	}
}

func (m Model) View() string {
	var b strings.Builder
	b.WriteString(titleStyle.Render(fmt.Sprintf("Ticket #%s", m.session.TicketID.String())))
	b.WriteString("\n\n")

	switch m.view.State {
	case holder.StateLocked:
		b.WriteString("Locked. Press enter to confirm your wallet and show your code.\n")
	case holder.StateConfirming:
		b.WriteString("Confirming...\n")
	case holder.StateDisplaying:
		b.WriteString(m.renderCode())
		b.WriteString("\n")
		b.WriteString(okStyle.Render(fmt.Sprintf("session ends in %s", m.view.Remaining.Round(time.Second))))
		b.WriteString("\n")
	}

	if m.status != "" {
		b.WriteString(faintStyle.Render(m.status))
		b.WriteString("\n")
	}
	if m.err != nil {
		b.WriteString(errorStyle.Render(m.err.Error()))
		b.WriteString("\n")
	} else if m.view.Err != nil {
		b.WriteString(errorStyle.Render("could not refresh code: " + m.view.Err.Error()))
		b.WriteString("\n")
	}
	b.WriteString(faintStyle.Render("enter unlock · space hide/show · q close"))
	b.WriteString("\n")
	return b.String()
}

func (m Model) renderCode() string {
	if !m.view.Visible {
		return hiddenStyle.Render("code hidden")
	}
	if m.view.Envelope == nil {
		return hiddenStyle.Render("waiting for a fresh code")
	}
	text, err := m.render(*m.view.Envelope)
	if err != nil {
		return errorStyle.Render(err.Error())
	}
	return codeStyle.Render(strings.TrimRight(text, "\n")) + "\n" +
		faintStyle.Render(fmt.Sprintf("valid until %s", time.Unix(m.view.Envelope.Payload.Expiry, 0).Format(time.Kitchen)))
}

// Run blocks until the holder quits.
func Run(ctx context.Context, model Model) error {
	_, err := tea.NewProgram(model, tea.WithAltScreen(), tea.WithContext(ctx)).Run()
	return err
}
