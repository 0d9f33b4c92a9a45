package main

import (
	"context"
	"errors"
	"time"

	"github.com/spf13/cobra"

	"instaapi/pkg/session"
	"instaapi/pkg/ui"
)

// logoutCmd represents the logout command
var logoutCmd = &cobra.Command{
	Use:   "logout",
	Short: "End the session and clear local state",
	Long: `End the current session on the server and clear local state.

The server call is best effort: cookies and the saved session file are
removed even when the remote logout fails.`,
	Run: runLogout,
}

func init() {
	rootCmd.AddCommand(logoutCmd)
}

func runLogout(cmd *cobra.Command, args []string) {
	cfg, err := loadConfig()
	if err != nil {
		fatal("Failed to load configuration", err)
	}

	e, err := newEngine(cfg, "")
	if err != nil {
		fatal("Failed to initialize login engine", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if _, err := e.controller.LoadSession(); err != nil {
		if errors.Is(err, session.ErrNoSession) {
			ui.PrintInfo("Not logged in", "nothing to do")
			return
		}
		// A corrupt session file still gets cleared below
		ui.PrintWarning("Saved session could not be restored", err.Error())
	}

	if err := e.controller.Logout(ctx); err != nil {
		fatal("Logout failed", err)
	}
	ui.PrintSuccess("Logged out, local session cleared")
}
