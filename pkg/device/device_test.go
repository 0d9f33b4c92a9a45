package device

import (
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGenerateDeterministic(t *testing.T) {
	a, err := Generate("alice")
	require.NoError(t, err)
	b, err := Generate("alice")
	require.NoError(t, err)

	// CreatedAt is wall-clock, everything else must match
	b.CreatedAt = a.CreatedAt
	assert.Equal(t, a, b)
}

func TestGenerateDistinctSeeds(t *testing.T) {
	a, err := Generate("alice")
	require.NoError(t, err)
	b, err := Generate("bob")
	require.NoError(t, err)

	assert.NotEqual(t, a.DeviceID, b.DeviceID)
	assert.NotEqual(t, a.PhoneID, b.PhoneID)
	assert.NotEqual(t, a.ClientUUID, b.ClientUUID)
}

func TestGenerateIdentifierShapes(t *testing.T) {
	id, err := Generate("alice")
	require.NoError(t, err)

	assert.Regexp(t, regexp.MustCompile(`^android-[0-9a-f]{16}$`), id.DeviceID)

	uuidRe := regexp.MustCompile(`^[0-9a-f]{8}-[0-9a-f]{4}-5[0-9a-f]{3}-[89ab][0-9a-f]{3}-[0-9a-f]{12}$`)
	for _, v := range []string{id.PhoneID, id.ClientUUID, id.AdvertisingID, id.WaterfallID, id.FamilyDeviceID} {
		assert.Regexp(t, uuidRe, v)
	}

	// five identifier slots must all differ
	seen := map[string]bool{}
	for _, v := range []string{id.PhoneID, id.ClientUUID, id.AdvertisingID, id.WaterfallID, id.FamilyDeviceID} {
		assert.False(t, seen[v], "duplicate identifier %s", v)
		seen[v] = true
	}
}

func TestGenerateWithOptions(t *testing.T) {
	id, err := GenerateWithOptions("alice", Options{DeviceIndex: 3, Locale: "de_DE"})
	require.NoError(t, err)

	assert.Equal(t, catalog[3].Model, id.Model)
	assert.Equal(t, "de_DE", id.Locale)

	// explicit index wraps around the catalog
	wrapped, err := GenerateWithOptions("alice", Options{DeviceIndex: len(catalog) + 3})
	require.NoError(t, err)
	assert.Equal(t, catalog[3].Model, wrapped.Model)
}

func TestGenerateEmptySeedIsSingleUse(t *testing.T) {
	a, err := Generate("")
	require.NoError(t, err)
	b, err := Generate("")
	require.NoError(t, err)

	assert.NotEmpty(t, a.Seed)
	assert.NotEqual(t, a.Seed, b.Seed)
	assert.NotEqual(t, a.DeviceID, b.DeviceID)
}

func TestUserAgent(t *testing.T) {
	id, err := Generate("alice")
	require.NoError(t, err)

	ua := id.UserAgent()
	assert.True(t, strings.HasPrefix(ua, "Instagram "+id.AppVersion+" Android ("))
	assert.Contains(t, ua, id.Manufacturer)
	assert.Contains(t, ua, id.Model)
	assert.Contains(t, ua, id.Resolution)
	assert.Contains(t, ua, id.Locale)
	assert.NotContains(t, ua, "  ")
}

func TestUserAgentModelSlug(t *testing.T) {
	id, err := GenerateWithOptions("alice", Options{DeviceIndex: 0})
	require.NoError(t, err)

	// model slug drops dashes and lowercases
	assert.Contains(t, id.UserAgent(), "; sms928b;")
}

func TestHeaders(t *testing.T) {
	id, err := Generate("alice")
	require.NoError(t, err)

	h := id.Headers()
	assert.Equal(t, "567067343352427", h["X-IG-App-ID"])
	assert.Equal(t, "3brTv10=", h["X-IG-Capabilities"])
	assert.Equal(t, id.DeviceID, h["X-IG-Android-ID"])
	assert.Equal(t, id.ClientUUID, h["X-IG-Device-ID"])
	assert.Equal(t, "UFS-"+id.ClientUUID+"-0", h["X-Pigeon-Session-Id"])
	assert.Equal(t, id.UserAgent(), h["User-Agent"])
	assert.NotEmpty(t, h["X-IG-Bandwidth-Speed-KBPS"])
}

func TestVisitorID(t *testing.T) {
	id, err := Generate("alice")
	require.NoError(t, err)

	v := id.VisitorID()
	assert.Regexp(t, regexp.MustCompile(`^[0-9a-f]{32}$`), v)
	assert.Equal(t, v, id.VisitorID())

	other, err := Generate("bob")
	require.NoError(t, err)
	assert.NotEqual(t, v, other.VisitorID())
}

func TestIsCoherent(t *testing.T) {
	id, err := Generate("alice")
	require.NoError(t, err)
	assert.True(t, id.IsCoherent())

	tampered := *id
	tampered.DPI = "1dpi"
	assert.False(t, tampered.IsCoherent())

	unknown := *id
	unknown.Model = "XX-UNKNOWN"
	assert.True(t, unknown.IsCoherent())
}

func TestSaveLoadRoundtrip(t *testing.T) {
	id, err := Generate("alice")
	require.NoError(t, err)

	path := filepath.Join(t.TempDir(), "device.json")
	require.NoError(t, id.Save(path))

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0600), info.Mode().Perm())

	loaded, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, id, loaded)
}

func TestLoadMissing(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "absent.json"))
	assert.Error(t, err)
}

func TestLoadCorrupt(t *testing.T) {
	path := filepath.Join(t.TempDir(), "device.json")
	require.NoError(t, os.WriteFile(path, []byte("{not json"), 0600))

	_, err := Load(path)
	assert.Error(t, err)
}

func TestLoadOrGenerate(t *testing.T) {
	path := filepath.Join(t.TempDir(), "device.json")

	first, err := LoadOrGenerate(path, "alice", DefaultOptions())
	require.NoError(t, err)

	// second call must load the saved identity, not regenerate
	second, err := LoadOrGenerate(path, "completely-different-seed", DefaultOptions())
	require.NoError(t, err)
	assert.Equal(t, first, second)
}

func TestLoadOrGenerateCorruptFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "device.json")
	require.NoError(t, os.WriteFile(path, []byte("garbage"), 0600))

	_, err := LoadOrGenerate(path, "alice", DefaultOptions())
	assert.Error(t, err)
}

func TestListDevices(t *testing.T) {
	entries := ListDevices()
	assert.Len(t, entries, CatalogSize())
	assert.Equal(t, 0, entries[0].Index)
	for _, e := range entries {
		assert.NotEmpty(t, e.Model)
		assert.NotEmpty(t, e.Manufacturer)
	}
}
