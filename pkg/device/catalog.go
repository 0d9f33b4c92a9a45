package device

// Profile describes one real Android handset. Specs come from public
// hardware databases and captured client traffic; the whole catalog is
// frozen so a seed always maps to the same entry.
type Profile struct {
	Manufacturer   string `json:"manufacturer"`
	Model          string `json:"model"`
	DeviceName     string `json:"device_name"`
	AndroidVersion int    `json:"android_version"`
	AndroidRelease string `json:"android_release"`
	DPI            string `json:"dpi"`
	Resolution     string `json:"resolution"`
	CPU            string `json:"cpu"`
	Chipset        string `json:"chipset"`
}

var catalog = []Profile{
	// Samsung Galaxy (2024-2025)
	{
		Manufacturer:   "Samsung",
		Model:          "SM-S928B",
		DeviceName:     "Galaxy S25 Ultra",
		AndroidVersion: 35,
		AndroidRelease: "15",
		DPI:            "640dpi",
		Resolution:     "1440x3120",
		CPU:            "exynos2400",
		Chipset:        "Exynos 2400",
	},
	{
		Manufacturer:   "Samsung",
		Model:          "SM-S926B",
		DeviceName:     "Galaxy S25+",
		AndroidVersion: 35,
		AndroidRelease: "15",
		DPI:            "480dpi",
		Resolution:     "1440x3120",
		CPU:            "exynos2400",
		Chipset:        "Exynos 2400",
	},
	{
		Manufacturer:   "Samsung",
		Model:          "SM-S921B",
		DeviceName:     "Galaxy S25",
		AndroidVersion: 35,
		AndroidRelease: "15",
		DPI:            "480dpi",
		Resolution:     "1080x2340",
		CPU:            "exynos2400",
		Chipset:        "Exynos 2400",
	},
	{
		Manufacturer:   "Samsung",
		Model:          "SM-S918B",
		DeviceName:     "Galaxy S24 Ultra",
		AndroidVersion: 34,
		AndroidRelease: "14",
		DPI:            "640dpi",
		Resolution:     "1440x3120",
		CPU:            "s5e9945",
		Chipset:        "Exynos 2400",
	},
	{
		Manufacturer:   "Samsung",
		Model:          "SM-F946B",
		DeviceName:     "Galaxy Z Fold5",
		AndroidVersion: 34,
		AndroidRelease: "14",
		DPI:            "420dpi",
		Resolution:     "1812x2176",
		CPU:            "kalama",
		Chipset:        "Snapdragon 8 Gen 2",
	},
	// Google Pixel
	{
		Manufacturer:   "Google",
		Model:          "Pixel 9 Pro",
		DeviceName:     "Pixel 9 Pro",
		AndroidVersion: 35,
		AndroidRelease: "15",
		DPI:            "560dpi",
		Resolution:     "1280x2856",
		CPU:            "Tensor G4",
		Chipset:        "Tensor G4",
	},
	{
		Manufacturer:   "Google",
		Model:          "Pixel 8 Pro",
		DeviceName:     "Pixel 8 Pro",
		AndroidVersion: 34,
		AndroidRelease: "14",
		DPI:            "560dpi",
		Resolution:     "1344x2992",
		CPU:            "Tensor G3",
		Chipset:        "Tensor G3",
	},
	{
		Manufacturer:   "Google",
		Model:          "Pixel 8",
		DeviceName:     "Pixel 8",
		AndroidVersion: 34,
		AndroidRelease: "14",
		DPI:            "420dpi",
		Resolution:     "1080x2400",
		CPU:            "Tensor G3",
		Chipset:        "Tensor G3",
	},
	// Xiaomi
	{
		Manufacturer:   "Xiaomi",
		Model:          "24129PN74G",
		DeviceName:     "Xiaomi 15 Pro",
		AndroidVersion: 35,
		AndroidRelease: "15",
		DPI:            "560dpi",
		Resolution:     "1440x3200",
		CPU:            "sm8750",
		Chipset:        "Snapdragon 8 Elite",
	},
	{
		Manufacturer:   "Xiaomi",
		Model:          "2311DRK48C",
		DeviceName:     "Xiaomi 14",
		AndroidVersion: 34,
		AndroidRelease: "14",
		DPI:            "480dpi",
		Resolution:     "1200x2670",
		CPU:            "sm8650",
		Chipset:        "Snapdragon 8 Gen 3",
	},
	// OnePlus
	{
		Manufacturer:   "OnePlus",
		Model:          "CPH2583",
		DeviceName:     "OnePlus 12",
		AndroidVersion: 34,
		AndroidRelease: "14",
		DPI:            "480dpi",
		Resolution:     "1440x3168",
		CPU:            "sm8650",
		Chipset:        "Snapdragon 8 Gen 3",
	},
	{
		Manufacturer:   "OnePlus",
		Model:          "CPH2449",
		DeviceName:     "OnePlus 11",
		AndroidVersion: 34,
		AndroidRelease: "14",
		DPI:            "480dpi",
		Resolution:     "1440x3216",
		CPU:            "kalama",
		Chipset:        "Snapdragon 8 Gen 2",
	},
	// OPPO
	{
		Manufacturer:   "OPPO",
		Model:          "CPH2551",
		DeviceName:     "OPPO Find X7 Ultra",
		AndroidVersion: 34,
		AndroidRelease: "14",
		DPI:            "480dpi",
		Resolution:     "1440x3168",
		CPU:            "sm8650",
		Chipset:        "Snapdragon 8 Gen 3",
	},
	// Sony
	{
		Manufacturer:   "Sony",
		Model:          "XQ-DQ72",
		DeviceName:     "Xperia 1 VI",
		AndroidVersion: 34,
		AndroidRelease: "14",
		DPI:            "480dpi",
		Resolution:     "1080x2340",
		CPU:            "sm8650",
		Chipset:        "Snapdragon 8 Gen 3",
	},
	// Nothing
	{
		Manufacturer:   "Nothing",
		Model:          "A065",
		DeviceName:     "Nothing Phone (2)",
		AndroidVersion: 34,
		AndroidRelease: "14",
		DPI:            "420dpi",
		Resolution:     "1080x2412",
		CPU:            "sm8475",
		Chipset:        "Snapdragon 8+ Gen 1",
	},
}

// Recent client app versions
var appVersions = []string{
	"332.0.0.0.64",
	"331.0.0.0.93",
	"330.0.0.0.89",
	"329.0.0.0.45",
	"328.0.0.0.67",
	"327.0.0.0.50",
	"326.0.0.0.78",
}

var locales = []string{
	"en_US", "en_GB", "uz_UZ", "ru_RU", "tr_TR",
	"de_DE", "fr_FR", "es_ES", "pt_BR", "it_IT",
	"ja_JP", "ko_KR", "ar_SA", "hi_IN", "id_ID",
}

var carriers = []string{
	"wifi", "Beeline", "UMS", "Ucell", "MTS",
	"Megafon", "T-Mobile", "Verizon", "AT&T", "Vodafone",
	"O2", "Orange", "SFR", "Movistar", "TIM",
}

var timezoneOffsets = []int{
	-18000, -14400, -10800, 0, 3600, 7200, 10800, 14400, 18000, 19800, 32400,
}

// CatalogSize returns the number of hardware profiles available
func CatalogSize() int {
	return len(catalog)
}

// CatalogEntry describes one catalog row for listing purposes
type CatalogEntry struct {
	Index        int    `json:"index"`
	Name         string `json:"name"`
	Model        string `json:"model"`
	Android      string `json:"android"`
	Manufacturer string `json:"manufacturer"`
}

// ListDevices lists all hardware profiles in the catalog
func ListDevices() []CatalogEntry {
	entries := make([]CatalogEntry, 0, len(catalog))
	for i, p := range catalog {
		entries = append(entries, CatalogEntry{
			Index:        i,
			Name:         p.DeviceName,
			Model:        p.Model,
			Android:      p.AndroidRelease,
			Manufacturer: p.Manufacturer,
		})
	}
	return entries
}

// findProfile looks up a catalog entry by model
func findProfile(model string) (Profile, bool) {
	for _, p := range catalog {
		if p.Model == model {
			return p, true
		}
	}
	return Profile{}, false
}
