package models

import (
	"encoding/json"
	"os"
	"path/filepath"
	"runtime"
	"sync"
)

// Settings contains all application settings
type Settings struct {
	mu sync.RWMutex `json:"-"`

	// Connection settings
	NightscoutURL string `json:"nightscoutUrl"`
	APISecret     string `json:"apiSecret"` // Plain API secret (will be hashed)
	APIToken      string `json:"apiToken"`  // Token-based auth
	UseToken      bool   `json:"useToken"`  // Use token instead of secret

	// Scraping settings
	ADBPath              string `json:"adbPath"`              // adb binary, default "adb"
	DeviceSerial         string `json:"deviceSerial"`         // adb -s target, empty = default device
	TesseractPath        string `json:"tesseractPath"`        // tesseract binary, default "tesseract"
	OCRLanguage          string `json:"ocrLanguage"`          // tesseract language code
	DeviceName           string `json:"deviceName"`           // reported to Nightscout as device/enteredBy
	PollIntervalSeconds  int    `json:"pollIntervalSeconds"`  // main cycle cadence (60-900)
	AgeCheckIntervalMin  int    `json:"ageCheckIntervalMin"`  // sensor/reservoir age cadence
	GraphScanIntervalMin int    `json:"graphScanIntervalMin"` // OCR graph cadence, 0 disables
	SettleDelayMs        int    `json:"settleDelayMs"`        // wait after each simulated click

	// Display / reconciliation settings
	Unit              string  `json:"unit"` // "mg/dL" or "mmol/L"
	AgeToleranceHours float64 `json:"ageToleranceHours"`
	TargetLowMgdl     int     `json:"targetLowMgdl"`  // time-in-range lower bound
	TargetHighMgdl    int     `json:"targetHighMgdl"` // time-in-range upper bound

	// Alert settings
	EnableSafetyAlerts bool `json:"enableSafetyAlerts"`
	EnableStaleAlerts  bool `json:"enableStaleAlerts"`
	RepeatAlertMinutes int  `json:"repeatAlertMinutes"` // 0 = no repeat
	StaleMinutes       int  `json:"staleMinutes"`

	// Diagnostics
	DebugOverlayDir string `json:"debugOverlayDir"` // write OCR overlay PNGs here, empty disables

	// System settings
	AutoStart bool `json:"autoStart"`
}

// DefaultSettings returns settings with default values
func DefaultSettings() *Settings {
	return &Settings{
		NightscoutURL: "",
		APISecret:     "",
		APIToken:      "",
		UseToken:      false,

		ADBPath:              "adb",
		DeviceSerial:         "",
		TesseractPath:        "tesseract",
		OCRLanguage:          "eng",
		DeviceName:           "nightscout-bridge",
		PollIntervalSeconds:  300, // 5 minutes
		AgeCheckIntervalMin:  360, // 6 hours
		GraphScanIntervalMin: 60,
		SettleDelayMs:        1500,

		Unit:              "mg/dL",
		AgeToleranceHours: 1.5,
		TargetLowMgdl:     70,
		TargetHighMgdl:    180,

		EnableSafetyAlerts: true,
		EnableStaleAlerts:  true,
		RepeatAlertMinutes: 15,
		StaleMinutes:       15,

		DebugOverlayDir: "",

		AutoStart: false,
	}
}

// GetConfigDir returns the configuration directory path
func GetConfigDir() (string, error) {
	var configDir string

	switch runtime.GOOS {
	case "windows":
		configDir = os.Getenv("APPDATA")
		if configDir == "" {
			configDir = filepath.Join(os.Getenv("USERPROFILE"), "AppData", "Roaming")
		}
	case "darwin":
		home, err := os.UserHomeDir()
		if err != nil {
			return "", err
		}
		configDir = filepath.Join(home, "Library", "Application Support")
	default: // Linux and others
		configDir = os.Getenv("XDG_CONFIG_HOME")
		if configDir == "" {
			home, err := os.UserHomeDir()
			if err != nil {
				return "", err
			}
			configDir = filepath.Join(home, ".config")
		}
	}

	appDir := filepath.Join(configDir, "nightscout-bridge")
	if err := os.MkdirAll(appDir, 0750); err != nil {
		return "", err
	}

	return appDir, nil
}

// GetConfigPath returns the full path to the config file
func GetConfigPath() (string, error) {
	dir, err := GetConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "settings.json"), nil
}

// Load loads settings from disk
func (s *Settings) Load() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	path, err := GetConfigPath()
	if err != nil {
		return err
	}

	data, err := os.ReadFile(path) //nolint:gosec // Config path is controlled by the app, not user input
	if err != nil {
		if os.IsNotExist(err) {
			// Use defaults if file doesn't exist
			s.copySettingsFields(DefaultSettings())
			return nil
		}
		return err
	}

	if err := json.Unmarshal(data, s); err != nil {
		return err
	}

	return nil
}

// Save saves settings to disk
func (s *Settings) Save() error {
	s.mu.RLock()
	defer s.mu.RUnlock()

	path, err := GetConfigPath()
	if err != nil {
		return err
	}

	data, err := json.MarshalIndent(s, "", "  ")
	if err != nil {
		return err
	}

	return os.WriteFile(path, data, 0600)
}

// Clone creates a copy of the settings
func (s *Settings) Clone() *Settings {
	s.mu.RLock()
	defer s.mu.RUnlock()

	// Create a new Settings struct with copied values (not the mutex)
	clone := &Settings{}
	clone.copySettingsFields(s)
	return clone
}

// Update updates settings from another Settings object
func (s *Settings) Update(other *Settings) {
	s.mu.Lock()
	defer s.mu.Unlock()
	other.mu.RLock()
	defer other.mu.RUnlock()

	s.copySettingsFields(other)
}

// copySettingsFields copies all fields from other to s, excluding the mutex
// The caller must hold the necessary locks on s and other (if other is shared)
func (s *Settings) copySettingsFields(other *Settings) {
	s.NightscoutURL = other.NightscoutURL
	s.APISecret = other.APISecret
	s.APIToken = other.APIToken
	s.UseToken = other.UseToken
	s.ADBPath = other.ADBPath
	s.DeviceSerial = other.DeviceSerial
	s.TesseractPath = other.TesseractPath
	s.OCRLanguage = other.OCRLanguage
	s.DeviceName = other.DeviceName
	s.PollIntervalSeconds = other.PollIntervalSeconds
	s.AgeCheckIntervalMin = other.AgeCheckIntervalMin
	s.GraphScanIntervalMin = other.GraphScanIntervalMin
	s.SettleDelayMs = other.SettleDelayMs
	s.Unit = other.Unit
	s.AgeToleranceHours = other.AgeToleranceHours
	s.TargetLowMgdl = other.TargetLowMgdl
	s.TargetHighMgdl = other.TargetHighMgdl
	s.EnableSafetyAlerts = other.EnableSafetyAlerts
	s.EnableStaleAlerts = other.EnableStaleAlerts
	s.RepeatAlertMinutes = other.RepeatAlertMinutes
	s.StaleMinutes = other.StaleMinutes
	s.DebugOverlayDir = other.DebugOverlayDir
	s.AutoStart = other.AutoStart
}

// IsConfigured returns true if minimum required settings are set
func (s *Settings) IsConfigured() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.NightscoutURL != ""
}
