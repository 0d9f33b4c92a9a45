package main

import (
	"context"
	"errors"
	"time"

	"github.com/spf13/cobra"

	"instaapi/pkg/session"
	"instaapi/pkg/ui"
)

var statusCheck bool

// statusCmd represents the status command
var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show the saved session",
	Long: `Show the saved session and optionally probe whether it still
authenticates against the server.`,
	Example: `  # Show the saved session
  instaapi status

  # Probe the server with the saved cookies
  instaapi status --check`,
	Run: runStatus,
}

func init() {
	rootCmd.AddCommand(statusCmd)
	statusCmd.Flags().BoolVar(&statusCheck, "check", false, "probe the server to validate the session")
}

func runStatus(cmd *cobra.Command, args []string) {
	cfg, err := loadConfig()
	if err != nil {
		fatal("Failed to load configuration", err)
	}

	e, err := newEngine(cfg, "")
	if err != nil {
		fatal("Failed to initialize login engine", err)
	}

	s, err := e.controller.LoadSession()
	if err != nil {
		if errors.Is(err, session.ErrNoSession) {
			ui.PrintInfo("Not logged in", "run 'instaapi login' to authenticate")
			return
		}
		fatal("Failed to load session", err)
	}

	ui.PrintInfo("Session file", e.store.Path())
	ui.PrintInfo("Account ID", s.AccountID)
	if s.SavedAt != "" {
		if savedAt, err := time.Parse(time.RFC3339, s.SavedAt); err == nil {
			ui.PrintInfo("Saved at", savedAt.Format("2006-01-02 15:04:05"))
		} else {
			ui.PrintInfo("Saved at", s.SavedAt)
		}
	}
	if s.UserAgent != "" {
		ui.PrintInfo("User agent", s.UserAgent)
	}

	if !statusCheck {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if e.controller.ValidateSession(ctx) {
		ui.PrintSuccess("Session is valid")
	} else {
		ui.PrintWarning("Session is no longer valid, log in again")
	}
}
