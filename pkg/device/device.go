package device

import (
	"crypto/md5"
	crand "crypto/rand"
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"math/rand"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Identity is a complete device fingerprint: hardware profile, app build,
// and every identifier the mobile API expects to see together. All fields
// except the bandwidth decoys are a pure function of the seed, so the same
// account always presents the same device.
type Identity struct {
	Manufacturer   string `json:"manufacturer"`
	Model          string `json:"model"`
	DeviceName     string `json:"device_name"`
	AndroidVersion int    `json:"android_version"`
	AndroidRelease string `json:"android_release"`
	DPI            string `json:"dpi"`
	Resolution     string `json:"resolution"`
	CPU            string `json:"cpu"`
	Chipset        string `json:"chipset"`

	DeviceID       string `json:"device_id"`
	PhoneID        string `json:"phone_id"`
	ClientUUID     string `json:"client_uuid"`
	AdvertisingID  string `json:"advertising_id"`
	WaterfallID    string `json:"waterfall_id"`
	FamilyDeviceID string `json:"family_device_id"`

	AppVersion     string `json:"ig_app_version"`
	AppVersionCode int    `json:"ig_app_version_code"`
	Locale         string `json:"locale"`
	Carrier        string `json:"carrier"`
	ConnectionType string `json:"connection_type"`
	TimezoneOffset int    `json:"timezone_offset"`

	Seed      string `json:"seed"`
	CreatedAt string `json:"created_at"`
}

// Options tweaks deterministic generation. The zero value is not useful;
// use DefaultOptions.
type Options struct {
	// DeviceIndex pins a catalog entry. -1 lets the seed choose.
	DeviceIndex int
	// Locale overrides the seed-chosen locale when non-empty.
	Locale string
}

// DefaultOptions returns generation options with the seed choosing everything
func DefaultOptions() Options {
	return Options{DeviceIndex: -1}
}

// Generate derives a device identity from a seed, typically the account
// username. Equal seeds produce equal identities. An empty seed is replaced
// with a random one, producing a single-use fingerprint that cannot be
// reproduced later; callers wanting stability must supply a seed.
func Generate(seed string) (*Identity, error) {
	return GenerateWithOptions(seed, DefaultOptions())
}

// GenerateWithOptions derives a device identity from a seed with overrides.
// A non-negative DeviceIndex wraps around the catalog.
func GenerateWithOptions(seed string, opts Options) (*Identity, error) {
	if seed == "" {
		seed = randomSeed()
	}

	rng := seededRand(seed)

	idx := opts.DeviceIndex
	if idx < 0 {
		idx = rng.Intn(len(catalog))
	} else {
		idx = idx % len(catalog)
	}
	profile := catalog[idx]

	appVersion := appVersions[rng.Intn(len(appVersions))]
	appCode := 520000000 + rng.Intn(60000001)

	locale := locales[rng.Intn(len(locales))]
	if opts.Locale != "" {
		locale = opts.Locale
	}
	carrier := carriers[rng.Intn(len(carriers))]
	tzOffset := timezoneOffsets[rng.Intn(len(timezoneOffsets))]

	id := &Identity{
		Manufacturer:   profile.Manufacturer,
		Model:          profile.Model,
		DeviceName:     profile.DeviceName,
		AndroidVersion: profile.AndroidVersion,
		AndroidRelease: profile.AndroidRelease,
		DPI:            profile.DPI,
		Resolution:     profile.Resolution,
		CPU:            profile.CPU,
		Chipset:        profile.Chipset,

		DeviceID:       androidID(seed),
		PhoneID:        seededUUID(seed, "phone"),
		ClientUUID:     seededUUID(seed, "uuid"),
		AdvertisingID:  seededUUID(seed, "adid"),
		WaterfallID:    seededUUID(seed, "waterfall"),
		FamilyDeviceID: seededUUID(seed, "family"),

		AppVersion:     appVersion,
		AppVersionCode: appCode,
		Locale:         locale,
		Carrier:        carrier,
		ConnectionType: "WIFI",
		TimezoneOffset: tzOffset,

		Seed:      seed,
		CreatedAt: time.Now().UTC().Format(time.RFC3339),
	}

	return id, nil
}

// randomSeed backs the empty-seed escape hatch
func randomSeed() string {
	buf := make([]byte, 16)
	if _, err := crand.Read(buf); err != nil {
		// math/rand fallback still yields a usable one-off seed
		binary.BigEndian.PutUint64(buf, rand.Uint64())
		binary.BigEndian.PutUint64(buf[8:], rand.Uint64())
	}
	return hex.EncodeToString(buf)
}

// seededRand builds a deterministic RNG from an arbitrary seed string
func seededRand(seed string) *rand.Rand {
	sum := sha256.Sum256([]byte(seed))
	return rand.New(rand.NewSource(int64(binary.BigEndian.Uint64(sum[:8]))))
}

// androidID derives the 16-hex android device id
func androidID(seed string) string {
	sum := md5.Sum([]byte(seed + ":device"))
	return "android-" + hex.EncodeToString(sum[:])[:16]
}

// seededUUID derives a stable UUID for one identifier slot
func seededUUID(seed, label string) string {
	return uuid.NewSHA1(uuid.NameSpaceURL, []byte(seed+":"+label)).String()
}

// UserAgent renders the mobile client user agent string for this identity
func (d *Identity) UserAgent() string {
	deviceSlug := strings.ToLower(strings.ReplaceAll(d.Model, "-", ""))
	return fmt.Sprintf(
		"Instagram %s Android (%d/%s; %s; %s; %s; %s; %s; %s; %s; %d)",
		d.AppVersion,
		d.AndroidVersion,
		d.AndroidRelease,
		d.DPI,
		d.Resolution,
		d.Manufacturer,
		d.Model,
		deviceSlug,
		d.CPU,
		d.Locale,
		d.AppVersionCode,
	)
}

// Headers returns the device-bound header set for mobile API requests.
// Bandwidth figures are decoys randomized on every call; a frozen value
// there is itself a fingerprint.
func (d *Identity) Headers() map[string]string {
	return map[string]string{
		"User-Agent":                  d.UserAgent(),
		"X-IG-App-ID":                 "567067343352427",
		"X-IG-Capabilities":           "3brTv10=",
		"X-IG-Device-ID":              d.ClientUUID,
		"X-IG-Android-ID":             d.DeviceID,
		"X-IG-Family-Device-ID":       d.FamilyDeviceID,
		"X-IG-App-Locale":             d.Locale,
		"X-IG-Device-Locale":          d.Locale,
		"X-IG-Mapped-Locale":          d.Locale,
		"X-IG-Connection-Type":        d.ConnectionType,
		"X-IG-Timezone-Offset":        fmt.Sprintf("%d", d.TimezoneOffset),
		"X-Pigeon-Session-Id":         fmt.Sprintf("UFS-%s-0", d.ClientUUID),
		"X-Pigeon-Rawclienttime":      fmt.Sprintf("%.3f", float64(time.Now().UnixMilli())/1000.0),
		"X-IG-Bandwidth-Speed-KBPS":   fmt.Sprintf("%d.000", 1000+rand.Intn(4001)),
		"X-IG-Bandwidth-TotalBytes-B": fmt.Sprintf("%d", 500000+rand.Intn(4500001)),
		"X-IG-Bandwidth-TotalTime-MS": fmt.Sprintf("%d", 100+rand.Intn(901)),
	}
}

// VisitorID derives the stable 32-hex visitor id tied to this identity
func (d *Identity) VisitorID() string {
	material := fmt.Sprintf("%s|%s|%s|%s|%d|%s|%s|%s",
		d.DeviceID,
		d.PhoneID,
		d.Model,
		d.Manufacturer,
		d.AndroidVersion,
		d.Resolution,
		d.DPI,
		d.CPU,
	)
	sum := sha256.Sum256([]byte(material))
	return hex.EncodeToString(sum[:])[:32]
}

// IsCoherent reports whether the hardware fields still match the catalog
// entry for this model. Identities loaded from disk may carry models the
// current catalog no longer knows; those are accepted as-is.
func (d *Identity) IsCoherent() bool {
	profile, ok := findProfile(d.Model)
	if !ok {
		return true
	}
	return profile.Manufacturer == d.Manufacturer &&
		profile.DeviceName == d.DeviceName &&
		profile.AndroidVersion == d.AndroidVersion &&
		profile.AndroidRelease == d.AndroidRelease &&
		profile.DPI == d.DPI &&
		profile.Resolution == d.Resolution &&
		profile.CPU == d.CPU &&
		profile.Chipset == d.Chipset
}

// Save writes the identity to path atomically
func (d *Identity) Save(path string) error {
	data, err := json.MarshalIndent(d, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal device identity: %w", err)
	}

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0700); err != nil {
		return fmt.Errorf("failed to create device directory: %w", err)
	}

	tmp, err := os.CreateTemp(dir, ".device-*.json")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("failed to write device identity: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("failed to close temp file: %w", err)
	}
	if err := os.Chmod(tmpName, 0600); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("failed to set device file permissions: %w", err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("failed to save device identity: %w", err)
	}
	return nil
}

// Load reads an identity from path. A missing file is reported as a
// wrapped fs.ErrNotExist; a corrupt file is an error too, never a silent
// regeneration.
func Load(path string) (*Identity, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read device file: %w", err)
	}

	var id Identity
	if err := json.Unmarshal(data, &id); err != nil {
		return nil, fmt.Errorf("failed to parse device file %s: %w", path, err)
	}
	if id.DeviceID == "" || id.Model == "" {
		return nil, fmt.Errorf("device file %s is incomplete", path)
	}
	return &id, nil
}

// LoadOrGenerate loads a saved identity, or deterministically generates and
// persists a new one when no file exists. An unreadable or corrupt file is
// an error: regenerating over it would silently rotate the account's device.
func LoadOrGenerate(path, seed string, opts Options) (*Identity, error) {
	id, err := Load(path)
	if err == nil {
		return id, nil
	}
	if !errors.Is(err, fs.ErrNotExist) {
		return nil, err
	}

	id, err = GenerateWithOptions(seed, opts)
	if err != nil {
		return nil, err
	}
	if err := id.Save(path); err != nil {
		return nil, err
	}
	return id, nil
}
