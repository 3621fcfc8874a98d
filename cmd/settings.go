package cmd

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"
)

var userCmd = &cobra.Command{
	Use:   "user [NAME]",
	Short: "Show or set the name attached to every record",
	Args:  cobra.MaximumNArgs(1),
	RunE:  runUser,
}

var autoshareCmd = &cobra.Command{
	Use:       "autoshare [on|off]",
	Short:     "Show or toggle sharing clock summaries after each clock action",
	Args:      cobra.MaximumNArgs(1),
	ValidArgs: []string{"on", "off"},
	RunE:      runAutoshare,
}

func runUser(cmd *cobra.Command, args []string) error {
	w := cmd.OutOrStdout()
	e := loadEnv()
	if len(args) == 0 {
		if name := e.snapshot().State.UserName; name != "" {
			fmt.Fprintln(w, name)
		} else {
			fmt.Fprintln(w, "No user name set.")
		}
		e.finish(nil)
		return nil
	}
	m := e.machine(shiftOptions(w))
	if err := m.SetUserName(args[0]); err != nil {
		e.fail(m, err)
	}
	fmt.Fprintf(w, "User name set to %q.\n", m.View().UserName)
	e.finish(m)
	return nil
}

// parseOnOff accepts on/off and the usual boolean spellings.
func parseOnOff(s string) (bool, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "on", "true", "yes", "1":
		return true, nil
	case "off", "false", "no", "0":
		return false, nil
	}
	return false, fmt.Errorf("expected on or off, got %q", s)
}

func onOff(b bool) string {
	if b {
		return "on"
	}
	return "off"
}

func runAutoshare(cmd *cobra.Command, args []string) error {
	w := cmd.OutOrStdout()
	e := loadEnv()
	if len(args) == 0 {
		fmt.Fprintf(w, "Auto-share is %s.\n", onOff(e.snapshot().State.AutoShare))
		e.finish(nil)
		return nil
	}
	enabled, err := parseOnOff(args[0])
	if err != nil {
		e.refuse(nil, err.Error())
	}
	m := e.machine(shiftOptions(w))
	if err := m.SetAutoShare(enabled); err != nil {
		e.fail(m, err)
	}
	fmt.Fprintf(w, "Auto-share is %s.\n", onOff(enabled))
	if enabled && (e.cfg.Share.TelegramToken == "" || e.cfg.Share.TelegramChatID == 0) {
		fmt.Fprintln(w, "No share target is configured; set share.telegram_token and share.telegram_chat_id in config.yaml.")
	}
	e.finish(m)
	return nil
}
