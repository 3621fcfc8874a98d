package cmd

import (
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"

	"github.com/Tiliavir/shift-clock/internal/tui"
)

var tuiCmd = &cobra.Command{
	Use:   "tui",
	Short: "Open the interactive shift clock",
	Args:  cobra.NoArgs,
	RunE:  runTUI,
}

func runTUI(cmd *cobra.Command, args []string) error {
	e := loadEnv()

	bridge := tui.NewBridge()
	e.syncNotice = func(text string) { bridge.Send(tui.NoticeMsg(text)) }
	m := e.machine(tui.Hooks(bridge))

	p := tea.NewProgram(tui.New(m, time.Now, time.Now().UnixNano()),
		tea.WithAltScreen(),
		tea.WithContext(cmd.Context()),
		tea.WithInput(cmd.InOrStdin()),
		tea.WithOutput(cmd.OutOrStdout()),
	)
	bridge.Attach(p)
	_, err := p.Run()
	bridge.Close()

	e.finish(m)
	return err
}
