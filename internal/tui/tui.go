// Package tui is the interactive shift clock: a bubbletea program over a
// live shift machine.
package tui

import (
	"errors"
	"fmt"
	"math/rand"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/progress"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/Tiliavir/shift-clock/internal/model"
	"github.com/Tiliavir/shift-clock/internal/shift"
)

// Controller is the part of *shift.Machine the UI drives.
type Controller interface {
	Toggle() error
	Cancel() error
	AddLeave(kind model.Kind, date time.Time, confirmed bool) error
	ResetUnread() error
	View() shift.View
}

var quotes = []string{
	"Precision in every move.",
	"Calm is a superpower.",
	"Be the solution.",
	"Make it look easy.",
	"Quality over speed.",
	"Safety first, speed second.",
	"Focus on the details.",
	"Stay professional.",
}

const noticeTTL = 3 * time.Second

type viewMsg shift.View

type noticeMsg string

type clearNoticeMsg struct{ id int }

// ViewMsg wraps a machine update for Program.Send.
func ViewMsg(v shift.View) tea.Msg { return viewMsg(v) }

// NoticeMsg wraps a transient notice for Program.Send.
func NoticeMsg(text string) tea.Msg { return noticeMsg(text) }

var (
	clockStyle   = lipgloss.NewStyle().Bold(true).Padding(1, 2)
	onStyle      = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#22c55e"))
	offStyle     = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#94a3b8"))
	pendingStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#f59e0b"))
	badgeStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("#ffffff")).Background(lipgloss.Color("#ef4444")).Padding(0, 1)
	mutedStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("#64748b"))
	quoteStyle   = mutedStyle.Italic(true)
	noticeStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("#0ea5e9"))
)

// Model is the bubbletea model.
type Model struct {
	ctl  Controller
	now  func() time.Time
	rng  *rand.Rand
	view shift.View

	regular  progress.Model
	overtime progress.Model
	grace    progress.Model

	quote    string
	notice   string
	noticeID int
	// confirmLeave is set while a paid-off day waits for y/n.
	confirmLeave bool
}

// New builds the model. now supplies today's date for leave days.
func New(ctl Controller, now func() time.Time, seed int64) Model {
	m := Model{
		ctl:      ctl,
		now:      now,
		rng:      rand.New(rand.NewSource(seed)),
		view:     ctl.View(),
		regular:  progress.New(progress.WithSolidFill("#3b82f6"), progress.WithoutPercentage()),
		overtime: progress.New(progress.WithSolidFill("#ef4444"), progress.WithoutPercentage()),
		grace:    progress.New(progress.WithSolidFill("#f59e0b"), progress.WithoutPercentage()),
	}
	if m.view.Status == model.StatusIn {
		m.quote = m.pickQuote()
	}
	return m
}

func (m Model) Init() tea.Cmd { return nil }

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		w := min(max(msg.Width-8, 10), 60)
		m.regular.Width, m.overtime.Width, m.grace.Width = w, w, w
		return m, nil

	case viewMsg:
		m.setView(shift.View(msg))
		return m, nil

	case noticeMsg:
		return m.showNotice(string(msg))

	case clearNoticeMsg:
		if msg.id == m.noticeID {
			m.notice = ""
		}
		return m, nil

	case tea.KeyMsg:
		return m.handleKey(msg)
	}
	return m, nil
}

func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if m.confirmLeave {
		switch msg.String() {
		case "y", "Y":
			m.confirmLeave = false
			return m.act(func() error { return m.ctl.AddLeave(model.KindPaidOff, m.now(), true) })
		case "ctrl+c":
			return m, tea.Quit
		default:
			m.confirmLeave = false
			return m.showNotice("Paid Off not added")
		}
	}

	switch msg.String() {
	case "q", "ctrl+c":
		return m, tea.Quit
	case " ", "enter":
		return m.act(m.ctl.Toggle)
	case "c":
		return m.act(m.ctl.Cancel)
	case "r":
		return m.act(m.ctl.ResetUnread)
	case "p":
		err := m.ctl.AddLeave(model.KindPaidOff, m.now(), false)
		var ce *shift.ConfirmationError
		if errors.As(err, &ce) {
			m.confirmLeave = true
			return m.showNotice(strings.Join(ce.Reasons, "; ") + ". Add Paid Off anyway? (y/n)")
		}
		return m.after(err)
	}
	return m, nil
}

func (m Model) act(f func() error) (tea.Model, tea.Cmd) {
	return m.after(f())
}

func (m Model) after(err error) (tea.Model, tea.Cmd) {
	m.setView(m.ctl.View())
	if err != nil {
		return m.showNotice(describe(err))
	}
	return m, nil
}

func (m *Model) setView(v shift.View) {
	if v.Status == model.StatusIn && m.view.Status != model.StatusIn {
		m.quote = m.pickQuote()
	}
	if v.Status == model.StatusOut {
		m.quote = ""
	}
	m.view = v
}

func (m Model) showNotice(text string) (tea.Model, tea.Cmd) {
	m.noticeID++
	m.notice = text
	id := m.noticeID
	return m, tea.Tick(noticeTTL, func(time.Time) tea.Msg { return clearNoticeMsg{id: id} })
}

func (m Model) pickQuote() string {
	return quotes[m.rng.Intn(len(quotes))]
}

func describe(err error) string {
	var ve *model.ValidationError
	switch {
	case errors.As(err, &ve) && ve.Field == "user":
		return "Please enter your name first: clk user NAME"
	case errors.Is(err, shift.ErrInvalidTransition):
		return "Nothing to do right now"
	}
	return "Error: " + err.Error()
}

// Badge renders the unread counter, capped at "9+".
func Badge(n int) string {
	switch {
	case n <= 0:
		return ""
	case n > 9:
		return "9+"
	}
	return fmt.Sprint(n)
}

func (m Model) View() string {
	v := m.view
	var b strings.Builder

	var label string
	switch v.Status {
	case model.StatusIn:
		label = onStyle.Render("ON SHIFT")
	case model.StatusPendingOut:
		label = pendingStyle.Render(fmt.Sprintf("CLOCKING OUT in %ds", v.GraceRemaining))
	default:
		label = offStyle.Render("OFF DUTY")
	}
	user := v.UserName
	if user == "" {
		user = "(no name set)"
	}
	b.WriteString(label + "  " + mutedStyle.Render(user))
	if badge := Badge(v.Unread); badge != "" {
		b.WriteString("  " + badgeStyle.Render(badge))
	}
	b.WriteString("\n")

	b.WriteString(clockStyle.Render(v.Timer.Clock) + "\n")
	b.WriteString(m.regular.ViewAs(v.Timer.Regular) + "  day\n")
	b.WriteString(m.overtime.ViewAs(v.Timer.Overtime) + "  overtime\n")
	if v.Status == model.StatusPendingOut {
		b.WriteString(m.grace.ViewAs(v.Grace) + "  press c to cancel\n")
	}

	if m.quote != "" {
		b.WriteString("\n" + quoteStyle.Render("“"+m.quote+"”") + "\n")
	}
	if v.LastMessage != "" {
		b.WriteString("\n" + mutedStyle.Render("Last: ") + v.LastMessage + "\n")
	}
	if m.notice != "" {
		b.WriteString("\n" + noticeStyle.Render(m.notice) + "\n")
	}

	action := "clock in"
	switch v.Status {
	case model.StatusIn:
		action = "clock out"
	case model.StatusPendingOut:
		action = "cancel"
	}
	b.WriteString("\n" + mutedStyle.Render(fmt.Sprintf("space: %s • c: cancel • p: paid off today • r: mark read • q: quit", action)) + "\n")
	return b.String()
}
