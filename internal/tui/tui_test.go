package tui_test

import (
	"io"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Tiliavir/shift-clock/internal/clock"
	"github.com/Tiliavir/shift-clock/internal/model"
	"github.com/Tiliavir/shift-clock/internal/shift"
	"github.com/Tiliavir/shift-clock/internal/storage"
	"github.com/Tiliavir/shift-clock/internal/tui"
)

var start = time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)

func newMachine(t *testing.T, user string) (*shift.Machine, *clock.Fake) {
	t.Helper()
	return newHookedMachine(t, user, shift.Options{})
}

func newHookedMachine(t *testing.T, user string, opts shift.Options) (*shift.Machine, *clock.Fake) {
	t.Helper()
	store := storage.Open(t.TempDir())
	require.NoError(t, store.WriteUser(user))
	clk := clock.NewFake(start)
	opts.Store, opts.Clock = store, clk
	m, err := shift.New(opts)
	require.NoError(t, err)
	t.Cleanup(m.Close)
	return m, clk
}

func key(s string) tea.KeyMsg {
	switch s {
	case " ":
		return tea.KeyMsg{Type: tea.KeySpace, Runes: []rune{' '}}
	case "enter":
		return tea.KeyMsg{Type: tea.KeyEnter}
	}
	return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(s)}
}

func update(t *testing.T, m tea.Model, msg tea.Msg) tea.Model {
	t.Helper()
	next, _ := m.Update(msg)
	return next
}

func TestToggleFlow(t *testing.T) {
	mach, clk := newMachine(t, "Dana")
	var m tea.Model = tui.New(mach, clk.Now, 1)
	assert.Contains(t, m.View(), "OFF DUTY")

	m = update(t, m, key(" "))
	assert.Equal(t, model.StatusIn, mach.View().Status)
	assert.Contains(t, m.View(), "ON SHIFT")
	assert.Contains(t, m.View(), "9:00am Dana - clock in")

	clk.Advance(time.Hour)
	m = update(t, m, tui.ViewMsg(mach.View()))
	assert.Contains(t, m.View(), "01:00:00")

	m = update(t, m, key("enter"))
	assert.Contains(t, m.View(), "CLOCKING OUT in 10s")

	m = update(t, m, key("c"))
	assert.Equal(t, model.StatusIn, mach.View().Status)
	assert.Contains(t, m.View(), "ON SHIFT")
}

func TestPaidOffNeedsConfirmationWhileOnShift(t *testing.T) {
	mach, clk := newMachine(t, "Dana")
	var m tea.Model = tui.New(mach, clk.Now, 1)
	m = update(t, m, key(" "))

	m = update(t, m, key("p"))
	assert.Contains(t, m.View(), "(y/n)")
	assert.Len(t, mach.Records(), 1)

	m = update(t, m, key("y"))
	assert.Len(t, mach.Records(), 2)
	assert.Equal(t, model.KindPaidOff, mach.Records()[0].Kind)
	assert.Contains(t, m.View(), "Mar 2 Dana - Paid Off")
}

func TestPaidOffDeclined(t *testing.T) {
	mach, clk := newMachine(t, "Dana")
	var m tea.Model = tui.New(mach, clk.Now, 1)
	m = update(t, m, key(" "))
	m = update(t, m, key("p"))
	m = update(t, m, key("n"))
	assert.Len(t, mach.Records(), 1)
	assert.Contains(t, m.View(), "Paid Off not added")
}

func TestMissingNameNotice(t *testing.T) {
	mach, clk := newMachine(t, "")
	var m tea.Model = tui.New(mach, clk.Now, 1)
	m = update(t, m, key(" "))
	assert.Equal(t, model.StatusOut, mach.View().Status)
	assert.Contains(t, m.View(), "Please enter your name first")
}

func TestQuit(t *testing.T) {
	mach, clk := newMachine(t, "Dana")
	_, cmd := tui.New(mach, clk.Now, 1).Update(key("q"))
	require.NotNil(t, cmd)
	assert.Equal(t, tea.Quit(), cmd())
}

func TestBadge(t *testing.T) {
	tests := map[int]string{0: "", 1: "1", 9: "9", 10: "9+", 42: "9+"}
	for n, want := range tests {
		assert.Equal(t, want, tui.Badge(n), "Badge(%d)", n)
	}
}

func TestProgramKeysDriveMachine(t *testing.T) {
	bridge := tui.NewBridge()
	mach, clk := newHookedMachine(t, "Dana", tui.Hooks(bridge))

	in, keys := io.Pipe()
	p := tea.NewProgram(tui.New(mach, clk.Now, 1),
		tea.WithInput(in),
		tea.WithOutput(io.Discard),
		tea.WithoutRenderer(),
		tea.WithoutSignalHandler(),
	)
	bridge.Attach(p)

	done := make(chan error, 1)
	go func() {
		_, err := p.Run()
		done <- err
	}()
	t.Cleanup(func() {
		p.Kill()
		_ = keys.Close()
		bridge.Close()
	})

	press := func(k string, want model.Status) {
		t.Helper()
		_, err := keys.Write([]byte(k))
		require.NoError(t, err)
		require.Eventually(t, func() bool { return mach.View().Status == want },
			2*time.Second, 10*time.Millisecond, "after %q", k)
	}

	press(" ", model.StatusIn)
	// Past the toggle debounce; the elapsed ticks go through the bridge.
	clk.Advance(time.Minute)
	press(" ", model.StatusPendingOut)
	press("c", model.StatusIn)

	_, err := keys.Write([]byte("q"))
	require.NoError(t, err)
	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(3 * time.Second):
		t.Fatalf("program still running after q; status=%s", mach.View().Status)
	}
}

func TestBridgeSendDoesNotBlock(t *testing.T) {
	bridge := tui.NewBridge()
	bridge.Send(tui.NoticeMsg("before attach"))

	p := tea.NewProgram(nil)
	bridge.Attach(p)
	sent := make(chan struct{})
	go func() {
		for i := 0; i < 100; i++ {
			bridge.Send(tui.NoticeMsg("queued"))
		}
		close(sent)
	}()
	select {
	case <-sent:
	case <-time.After(2 * time.Second):
		t.Fatal("Send blocked with no program reading")
	}
	p.Kill()
	bridge.Close()
}
