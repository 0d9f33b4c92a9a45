package main

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"instaapi/pkg/auth"
	"instaapi/pkg/challenge"
	"instaapi/pkg/credentials"
	errs "instaapi/pkg/errors"
	"instaapi/pkg/session"
	"instaapi/pkg/ui"
)

var (
	loginCode  string
	loginSave  bool
	loginForce bool
)

// loginCmd represents the login command
var loginCmd = &cobra.Command{
	Use:   "login [username]",
	Short: "Log in and persist the session",
	Long: `Log in to Instagram through the web flow and persist the session.

The password is taken from the INSTAAPI_PASSWORD environment variable,
from stored credentials, or from a hidden terminal prompt, in that order.
Passwords are sealed with the server's published encryption keys before
submission.

Two-factor codes and challenge verification codes are prompted for on
the terminal when the server asks for them.`,
	Example: `  # Interactive login
  instaapi login myusername

  # Login with a pre-obtained two-factor code
  instaapi login myusername --code 123456

  # Login and store the credentials for later
  instaapi login myusername --save`,
	Args: cobra.MaximumNArgs(1),
	Run:  runLogin,
}

func init() {
	rootCmd.AddCommand(loginCmd)
	loginCmd.Flags().StringVar(&loginCode, "code", "", "two-factor verification code")
	loginCmd.Flags().BoolVar(&loginSave, "save", false, "store the credentials after a successful login")
	loginCmd.Flags().BoolVar(&loginForce, "force", false, "log in even if a valid session already exists")
}

func runLogin(cmd *cobra.Command, args []string) {
	cfg, err := loadConfig()
	if err != nil {
		fatal("Failed to load configuration", err)
	}

	username := cfg.Account.Username
	if len(args) > 0 {
		username = args[0]
	}

	manager, err := credentials.NewManager()
	if err != nil {
		fatal("Failed to initialize credential manager", err)
	}

	password := cfg.Account.Password
	seed := cfg.Device.Seed

	// Fill the gaps from stored credentials
	if username == "" || password == "" {
		var stored *credentials.Account
		if username != "" {
			stored, _ = manager.Retrieve(username)
		} else {
			stored, _ = manager.RetrieveDefault()
		}
		if stored != nil {
			if username == "" {
				username = stored.Username
			}
			if password == "" && stored.Username == username {
				password = stored.Password
			}
			if seed == "" && stored.Username == username {
				seed = stored.DeviceSeed
			}
		}
	}

	if username == "" {
		fatal("Username is required", nil)
	}
	if password == "" {
		fmt.Printf("Password for %s: ", username)
		password, err = readPassword()
		if err != nil {
			fatal("Failed to read password", err)
		}
	}
	if password == "" {
		fatal("Password is required", nil)
	}
	if seed == "" {
		seed = username
	}

	e, err := newEngine(cfg, seed)
	if err != nil {
		fatal("Failed to initialize login engine", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()

	// Reuse a still-valid session instead of burning a login attempt
	if !loginForce {
		if s, err := e.controller.LoadSession(); err == nil {
			if e.controller.ValidateSession(ctx) {
				ui.PrintSuccess("Already logged in, session is still valid")
				ui.PrintInfo("Account ID", s.AccountID)
				return
			}
			ui.PrintWarning("Saved session has expired, logging in again")
		}
	}

	code := loginCode
	if code == "" {
		code = cfg.Account.VerificationCode
	}

	s, err := e.login(ctx, username, password, code)
	if err != nil {
		fatal("Login failed", err)
	}

	ui.PrintSuccess("Logged in as " + username)
	ui.PrintInfo("Account ID", s.AccountID)
	ui.PrintInfo("Session file", e.store.Path())
	if e.identity != nil {
		ui.PrintInfo("Device", e.identity.DeviceName)
	}

	if loginSave {
		account := &credentials.Account{
			Username:   username,
			Password:   password,
			DeviceSeed: seed,
		}
		if err := manager.Store(account); err != nil {
			ui.PrintWarning("Failed to store credentials", err.Error())
		} else {
			ui.PrintSuccess("Credentials stored securely")
		}
	}
}

// login runs the flow, resolving a checkpoint and retrying once when the
// server raises one
func (e *engine) login(ctx context.Context, username, password, code string) (*session.Session, error) {
	opts := auth.LoginOptions{VerificationCode: code}
	s, err := e.controller.Login(ctx, username, password, opts)
	if err == nil {
		return s, nil
	}

	var checkpoint *errs.CheckpointRequiredError
	if !errors.As(err, &checkpoint) {
		return nil, err
	}

	ui.PrintWarning("The server raised a security checkpoint")
	resolver := challenge.NewResolver(e.client, stdinCodeProvider())
	result, resolveErr := resolver.Resolve(ctx, checkpoint.URL)
	if resolveErr != nil {
		return nil, fmt.Errorf("checkpoint resolution failed: %w", resolveErr)
	}
	if !result.Resolved {
		ui.PrintError("Checkpoint could not be resolved automatically", result.Message)
		ui.PrintInfo("Complete it in a browser", checkpoint.URL)
		return nil, err
	}

	ui.PrintSuccess("Checkpoint resolved, retrying login")
	return e.controller.Login(ctx, username, password, opts)
}
