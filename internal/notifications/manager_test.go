package notifications

import (
	"strings"
	"testing"
	"time"

	"github.com/mrcode/nightscout-bridge/internal/models"
)

// captureManager returns a manager whose notifications are recorded instead
// of shown.
func captureManager(settings *models.Settings) (*Manager, *[]string) {
	m := NewManager(settings)
	var sent []string
	m.notify = func(title, message string) error {
		sent = append(sent, title+": "+message)
		return nil
	}
	return m, &sent
}

func TestManager_SafetyRejection(t *testing.T) {
	m, sent := captureManager(models.DefaultSettings())

	if err := m.SafetyRejection(3); err != nil {
		t.Fatalf("SafetyRejection() error = %v", err)
	}
	if len(*sent) != 1 {
		t.Fatalf("Got %d notifications, want 1", len(*sent))
	}
	if !strings.Contains((*sent)[0], "3 consecutive") {
		t.Errorf("Notification should mention the streak, got: %s", (*sent)[0])
	}
}

func TestManager_SafetyRejection_Disabled(t *testing.T) {
	settings := models.DefaultSettings()
	settings.EnableSafetyAlerts = false
	m, sent := captureManager(settings)

	if err := m.SafetyRejection(5); err != nil {
		t.Fatalf("SafetyRejection() error = %v", err)
	}
	if len(*sent) != 0 {
		t.Errorf("Disabled alert should not notify, got %d", len(*sent))
	}
}

func TestManager_SafetyRejection_RepeatGuard(t *testing.T) {
	m, sent := captureManager(models.DefaultSettings())

	_ = m.SafetyRejection(3)
	_ = m.SafetyRejection(4)
	if len(*sent) != 1 {
		t.Errorf("Repeat within the guard window should be suppressed, got %d", len(*sent))
	}

	// Simulate the guard window elapsing.
	m.lastAlertTime[alertSafetyRejection] = time.Now().Add(-time.Duration(m.settings.RepeatAlertMinutes+1) * time.Minute)
	_ = m.SafetyRejection(5)
	if len(*sent) != 2 {
		t.Errorf("Alert should repeat after the window, got %d", len(*sent))
	}
}

func TestManager_SafetyRejection_NoRepeatWhenDisabled(t *testing.T) {
	settings := models.DefaultSettings()
	settings.RepeatAlertMinutes = 0
	m, sent := captureManager(settings)

	_ = m.SafetyRejection(3)
	m.lastAlertTime[alertSafetyRejection] = time.Now().Add(-24 * time.Hour)
	_ = m.SafetyRejection(4)
	if len(*sent) != 1 {
		t.Errorf("RepeatAlertMinutes=0 should alert once until cleared, got %d", len(*sent))
	}

	m.ClearSafetyState()
	_ = m.SafetyRejection(5)
	if len(*sent) != 2 {
		t.Errorf("Cleared state should allow a new alert, got %d", len(*sent))
	}
}

func TestManager_StaleData(t *testing.T) {
	settings := models.DefaultSettings()
	m, sent := captureManager(settings)

	fresh := time.Duration(settings.StaleMinutes-1) * time.Minute
	if err := m.StaleData(fresh); err != nil {
		t.Fatalf("StaleData() error = %v", err)
	}
	if len(*sent) != 0 {
		t.Errorf("Fresh data should not alert, got %d", len(*sent))
	}

	stale := time.Duration(settings.StaleMinutes+5) * time.Minute
	if err := m.StaleData(stale); err != nil {
		t.Fatalf("StaleData() error = %v", err)
	}
	if len(*sent) != 1 {
		t.Fatalf("Stale data should alert, got %d", len(*sent))
	}
	if !strings.Contains((*sent)[0], "minutes old") {
		t.Errorf("Notification should mention the age, got: %s", (*sent)[0])
	}
}

func TestManager_StaleData_Disabled(t *testing.T) {
	settings := models.DefaultSettings()
	settings.EnableStaleAlerts = false
	m, sent := captureManager(settings)

	_ = m.StaleData(2 * time.Hour)
	if len(*sent) != 0 {
		t.Errorf("Disabled alert should not notify, got %d", len(*sent))
	}
}

func TestManager_ClearAlertState(t *testing.T) {
	m, _ := captureManager(models.DefaultSettings())

	m.lastAlertTime[alertSafetyRejection] = time.Now()
	m.lastAlertTime[alertStaleData] = time.Now()

	m.ClearAlertState(alertSafetyRejection)
	if _, ok := m.lastAlertTime[alertSafetyRejection]; ok {
		t.Error("safety alert should be cleared")
	}
	if _, ok := m.lastAlertTime[alertStaleData]; !ok {
		t.Error("stale alert should still exist")
	}

	m.lastAlertTime[alertSafetyRejection] = time.Now()
	m.ClearAlertState("")
	if len(m.lastAlertTime) != 0 {
		t.Error("All alerts should be cleared")
	}
}

func TestManager_UpdateSettings(t *testing.T) {
	m, _ := captureManager(models.DefaultSettings())

	newSettings := models.DefaultSettings()
	newSettings.StaleMinutes = 45

	m.UpdateSettings(newSettings)

	if m.settings.StaleMinutes != 45 {
		t.Error("Settings were not updated")
	}
}
