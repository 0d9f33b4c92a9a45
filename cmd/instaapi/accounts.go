package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"instaapi/pkg/credentials"
	"instaapi/pkg/ui"
)

var accountsRemoveAll bool

// accountsCmd represents the accounts command
var accountsCmd = &cobra.Command{
	Use:   "accounts",
	Short: "Manage stored credentials",
	Long: `Manage stored Instagram credentials.

Credentials are stored using:
  - System keychain (when available)
  - Encrypted file with PBKDF2 key derivation
  - Environment variables (read-only fallback)

Never share your credentials or config files!`,
}

// accountsAddCmd represents the accounts add command
var accountsAddCmd = &cobra.Command{
	Use:   "add <username>",
	Short: "Store credentials for an account",
	Long: `Store credentials for an account. The password is read from a
hidden terminal prompt, never from the command line.`,
	Args: cobra.ExactArgs(1),
	Run:  runAccountsAdd,
}

// accountsListCmd represents the accounts list command
var accountsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List stored accounts",
	Run:   runAccountsList,
}

// accountsRemoveCmd represents the accounts remove command
var accountsRemoveCmd = &cobra.Command{
	Use:   "remove [username]",
	Short: "Remove stored credentials",
	Args:  cobra.MaximumNArgs(1),
	Run:   runAccountsRemove,
}

func init() {
	rootCmd.AddCommand(accountsCmd)
	accountsCmd.AddCommand(accountsAddCmd)
	accountsCmd.AddCommand(accountsListCmd)
	accountsCmd.AddCommand(accountsRemoveCmd)

	accountsRemoveCmd.Flags().BoolVar(&accountsRemoveAll, "all", false, "remove every stored account")
}

func runAccountsAdd(cmd *cobra.Command, args []string) {
	manager, err := credentials.NewManager()
	if err != nil {
		fatal("Failed to initialize credential manager", err)
	}

	username := args[0]
	if existing, _ := manager.Retrieve(username); existing != nil {
		if !confirm(fmt.Sprintf("Account '%s' already exists. Update credentials?", username)) {
			return
		}
	}

	fmt.Printf("Password for %s: ", username)
	password, err := readPassword()
	if err != nil {
		fatal("Failed to read password", err)
	}
	if password == "" {
		fatal("Password is required", nil)
	}

	account := &credentials.Account{
		Username:   username,
		Password:   password,
		DeviceSeed: username,
	}
	if err := manager.Store(account); err != nil {
		fatal("Failed to store credentials", err)
	}
	ui.PrintSuccess("Credentials stored for " + username)
}

func runAccountsList(cmd *cobra.Command, args []string) {
	manager, err := credentials.NewManager()
	if err != nil {
		fatal("Failed to initialize credential manager", err)
	}

	accounts, err := manager.List()
	if err != nil {
		fatal("Failed to list accounts", err)
	}
	if len(accounts) == 0 {
		ui.PrintInfo("No stored accounts", "use 'instaapi accounts add' to store one")
		return
	}

	for i, account := range accounts {
		sanitized := credentials.SanitizeAccount(account)
		fmt.Printf("%d. Username: %s\n", i+1, sanitized.Username)
		fmt.Printf("   Password: %s\n", sanitized.Password)
		if sanitized.DeviceSeed != "" {
			fmt.Printf("   Device Seed: %s\n", sanitized.DeviceSeed)
		}
		fmt.Printf("   Last Modified: %s\n", sanitized.LastModified.Format("2006-01-02 15:04:05"))
		fmt.Println()
	}
}

func runAccountsRemove(cmd *cobra.Command, args []string) {
	manager, err := credentials.NewManager()
	if err != nil {
		fatal("Failed to initialize credential manager", err)
	}

	if accountsRemoveAll {
		if !confirm("Remove ALL stored accounts? This cannot be undone!") {
			return
		}
		if err := manager.DeleteAll(); err != nil {
			fatal("Failed to remove accounts", err)
		}
		ui.PrintSuccess("All accounts removed")
		return
	}

	if len(args) == 0 {
		fatal("Provide a username or pass --all", nil)
	}

	username := args[0]
	if err := manager.Delete(username); err != nil {
		fatal("Failed to remove account", err)
	}
	ui.PrintSuccess("Account removed: " + username)
}
