package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"

	"github.com/spf13/cobra"

	"instaapi/pkg/device"
	"instaapi/pkg/ui"
)

var (
	deviceSeed   string
	deviceIndex  int
	deviceLocale string
	deviceJSON   bool
)

// deviceCmd represents the device command
var deviceCmd = &cobra.Command{
	Use:   "device",
	Short: "Manage the generated device identity",
	Long: `Manage the deterministic device identity used for API requests.

The identity is a pure function of a seed, typically the account
username: the same seed always produces the same device, so an account
never appears to hop between phones.`,
}

// deviceShowCmd represents the device show command
var deviceShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show the persisted device identity",
	Run:   runDeviceShow,
}

// deviceGenerateCmd represents the device generate command
var deviceGenerateCmd = &cobra.Command{
	Use:   "generate",
	Short: "Generate and persist a device identity",
	Long: `Generate a device identity from a seed and persist it.

An existing identity file is only overwritten after confirmation, since
replacing the device an account has been presenting looks suspicious to
the server.`,
	Example: `  # Derive a device from the account username
  instaapi device generate --seed myusername

  # Pin a specific catalog entry
  instaapi device generate --seed myusername --index 3 --locale de_DE`,
	Run: runDeviceGenerate,
}

// deviceListCmd represents the device list command
var deviceListCmd = &cobra.Command{
	Use:   "list",
	Short: "List the hardware profile catalog",
	Run:   runDeviceList,
}

func init() {
	rootCmd.AddCommand(deviceCmd)
	deviceCmd.AddCommand(deviceShowCmd)
	deviceCmd.AddCommand(deviceGenerateCmd)
	deviceCmd.AddCommand(deviceListCmd)

	deviceGenerateCmd.Flags().StringVar(&deviceSeed, "seed", "", "seed for deterministic generation (defaults to the configured username)")
	deviceGenerateCmd.Flags().IntVar(&deviceIndex, "index", -1, "pin a catalog entry instead of letting the seed choose")
	deviceGenerateCmd.Flags().StringVar(&deviceLocale, "locale", "", "override the seed-chosen locale, e.g. en_US")
	deviceShowCmd.Flags().BoolVar(&deviceJSON, "json", false, "print the raw identity JSON")
}

func runDeviceShow(cmd *cobra.Command, args []string) {
	cfg, err := loadConfig()
	if err != nil {
		fatal("Failed to load configuration", err)
	}

	identity, err := device.Load(cfg.Device.File)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			ui.PrintInfo("No device identity", "run 'instaapi device generate' to create one")
			return
		}
		fatal("Failed to load device identity", err)
	}

	if !identity.IsCoherent() {
		ui.PrintWarning("Device identity fields do not match its hardware profile")
	}

	if deviceJSON {
		out, err := json.MarshalIndent(identity, "", "  ")
		if err != nil {
			fatal("Failed to encode device identity", err)
		}
		fmt.Println(string(out))
		return
	}

	printIdentity(identity)
}

func runDeviceGenerate(cmd *cobra.Command, args []string) {
	cfg, err := loadConfig()
	if err != nil {
		fatal("Failed to load configuration", err)
	}

	seed := deviceSeed
	if seed == "" {
		seed = cfg.Device.Seed
	}
	if seed == "" {
		fatal("A seed is required, pass --seed or configure a username", nil)
	}

	if _, err := os.Stat(cfg.Device.File); err == nil {
		if !confirm(fmt.Sprintf("Overwrite existing device identity at %s?", cfg.Device.File)) {
			return
		}
	}

	identity, err := device.GenerateWithOptions(seed, device.Options{
		DeviceIndex: deviceIndex,
		Locale:      deviceLocale,
	})
	if err != nil {
		fatal("Failed to generate device identity", err)
	}

	if err := identity.Save(cfg.Device.File); err != nil {
		fatal("Failed to save device identity", err)
	}

	ui.PrintSuccess("Device identity saved to " + cfg.Device.File)
	printIdentity(identity)
}

func runDeviceList(cmd *cobra.Command, args []string) {
	for _, entry := range device.ListDevices() {
		fmt.Printf("%2d. %-22s %-14s %s (Android %s)\n",
			entry.Index, entry.Name, entry.Model, entry.Manufacturer, entry.Android)
	}
}

func printIdentity(d *device.Identity) {
	ui.PrintInfo("Device", fmt.Sprintf("%s %s (%s)", d.Manufacturer, d.DeviceName, d.Model))
	ui.PrintInfo("Android", fmt.Sprintf("%s (API %d)", d.AndroidRelease, d.AndroidVersion))
	ui.PrintInfo("Display", fmt.Sprintf("%s @ %s", d.Resolution, d.DPI))
	ui.PrintInfo("App version", fmt.Sprintf("%s (%d)", d.AppVersion, d.AppVersionCode))
	ui.PrintInfo("Locale", d.Locale)
	ui.PrintInfo("Device ID", d.DeviceID)
	ui.PrintInfo("Phone ID", d.PhoneID)
	ui.PrintInfo("Client UUID", d.ClientUUID)
	ui.PrintInfo("User agent", d.UserAgent())
}
