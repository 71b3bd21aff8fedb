package models

import (
	"testing"
)

func TestDefaultSettings(t *testing.T) {
	settings := DefaultSettings()

	if settings.Unit != "mg/dL" {
		t.Errorf("Default unit = %s, want mg/dL", settings.Unit)
	}
	if settings.PollIntervalSeconds != 300 {
		t.Errorf("Default poll interval = %d, want 300", settings.PollIntervalSeconds)
	}
	if settings.AgeCheckIntervalMin != 360 {
		t.Errorf("Default age check interval = %d, want 360", settings.AgeCheckIntervalMin)
	}
	if settings.AgeToleranceHours != 1.5 {
		t.Errorf("Default age tolerance = %f, want 1.5", settings.AgeToleranceHours)
	}
	if settings.ADBPath != "adb" {
		t.Errorf("Default adb path = %s, want adb", settings.ADBPath)
	}
	if settings.SettleDelayMs != 1500 {
		t.Errorf("Default settle delay = %d, want 1500", settings.SettleDelayMs)
	}
}

func TestSettings_Clone(t *testing.T) {
	original := DefaultSettings()
	original.NightscoutURL = "https://test.example.com"

	clone := original.Clone()

	if clone.NightscoutURL != original.NightscoutURL {
		t.Error("Clone did not copy NightscoutURL")
	}

	clone.NightscoutURL = "https://modified.example.com"
	if original.NightscoutURL == clone.NightscoutURL {
		t.Error("Modifying clone affected original")
	}
}

func TestSettings_Update(t *testing.T) {
	settings := DefaultSettings()
	other := DefaultSettings()
	other.DeviceSerial = "emulator-5554"
	other.GraphScanIntervalMin = 0

	settings.Update(other)

	if settings.DeviceSerial != "emulator-5554" {
		t.Errorf("DeviceSerial = %s, want emulator-5554", settings.DeviceSerial)
	}
	if settings.GraphScanIntervalMin != 0 {
		t.Errorf("GraphScanIntervalMin = %d, want 0", settings.GraphScanIntervalMin)
	}
}

func TestSettings_IsConfigured(t *testing.T) {
	settings := DefaultSettings()

	if settings.IsConfigured() {
		t.Error("Empty settings should not be configured")
	}

	settings.NightscoutURL = "https://test.example.com"
	if !settings.IsConfigured() {
		t.Error("Settings with URL should be configured")
	}
}
