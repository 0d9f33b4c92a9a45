package main

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"strings"
	"syscall"
	"time"

	"golang.org/x/term"

	"instaapi/pkg/auth"
	"instaapi/pkg/challenge"
	"instaapi/pkg/config"
	"instaapi/pkg/device"
	"instaapi/pkg/logger"
	"instaapi/pkg/ratelimit"
	"instaapi/pkg/sealing"
	"instaapi/pkg/session"
	"instaapi/pkg/transport"
	"instaapi/pkg/ui"
)

// engine bundles the collaborators every command needs
type engine struct {
	cfg        *config.Config
	client     *transport.Client
	controller *auth.Controller
	store      *session.Store
	identity   *device.Identity
}

// loadConfig builds the effective configuration and initializes logging
func loadConfig() (*config.Config, error) {
	cfg, err := config.Load(configFile)
	if err != nil {
		return nil, err
	}
	if logLevel != "" {
		cfg.Logging.Level = logLevel
	}
	if err := logger.Initialize(&cfg.Logging); err != nil {
		return nil, fmt.Errorf("failed to initialize logger: %w", err)
	}
	return cfg, nil
}

// newEngine wires the transport, sealer, device identity, and controller
// from configuration. seed keys the device fingerprint; it defaults to the
// configured device seed or username.
func newEngine(cfg *config.Config, seed string) (*engine, error) {
	client, err := transport.NewClient(transport.Options{
		Timeout:    cfg.HTTP.Timeout,
		MaxRetries: cfg.HTTP.MaxRetries,
		Proxy:      cfg.HTTP.Proxy,
		Limiter:    ratelimit.PerMinute(cfg.RateLimit.RequestsPerMinute),
	})
	if err != nil {
		return nil, err
	}

	sealer := sealing.NewSealer(sealing.NewFetcher(client), 10*time.Minute)
	sealer.AllowPlaintextFallback = cfg.Sealing.AllowPlaintextFallback

	if seed == "" {
		seed = cfg.Device.Seed
	}

	var identity *device.Identity
	if seed != "" {
		identity, err = device.LoadOrGenerate(cfg.Device.File, seed, device.Options{
			DeviceIndex: cfg.Device.Index,
			Locale:      cfg.Device.Locale,
		})
		if err != nil {
			return nil, fmt.Errorf("failed to prepare device identity: %w", err)
		}
	}

	store := session.NewStore(cfg.Session.File)

	controller, err := auth.NewController(auth.Config{
		Client:       client,
		Sealer:       sealer,
		Store:        store,
		Device:       identity,
		CodeProvider: stdinCodeProvider(),
	})
	if err != nil {
		return nil, err
	}

	return &engine{
		cfg:        cfg,
		client:     client,
		controller: controller,
		store:      store,
		identity:   identity,
	}, nil
}

// stdinCodeProvider prompts on the terminal for verification codes
func stdinCodeProvider() challenge.CodeProvider {
	return challenge.CodeFunc(func(ctx context.Context, info *challenge.Info) (string, error) {
		if contact := info.ContactPoint(); contact != "" {
			fmt.Printf("A verification code was sent to %s.\n", contact)
		}
		fmt.Print("Verification code: ")
		reader := bufio.NewReader(os.Stdin)
		input, err := reader.ReadString('\n')
		if err != nil {
			return "", fmt.Errorf("failed to read verification code: %w", err)
		}
		return strings.TrimSpace(input), nil
	})
}

// readPassword reads a password from stdin without echoing
func readPassword() (string, error) {
	if term.IsTerminal(int(syscall.Stdin)) {
		password, err := term.ReadPassword(int(syscall.Stdin))
		fmt.Println()
		if err == nil {
			return string(password), nil
		}
	}

	// Fallback to regular input
	reader := bufio.NewReader(os.Stdin)
	input, err := reader.ReadString('\n')
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(input), nil
}

// confirm asks a yes/no question, defaulting to no
func confirm(prompt string) bool {
	fmt.Printf("%s (y/N): ", prompt)
	reader := bufio.NewReader(os.Stdin)
	input, _ := reader.ReadString('\n')
	return strings.HasPrefix(strings.ToLower(strings.TrimSpace(input)), "y")
}

func fatal(msg string, err error) {
	if err != nil {
		ui.PrintError(msg, err.Error())
	} else {
		ui.PrintError(msg)
	}
	os.Exit(1)
}
