// Package notifications handles system notifications and alerts
package notifications

import (
	"fmt"
	"sync"
	"time"

	"github.com/gen2brain/beeep"

	"github.com/mrcode/nightscout-bridge/internal/models"
)

// Alert type constants
const (
	alertSafetyRejection = "safety_rejection"
	alertStaleData       = "stale_data"
)

// Manager raises operator alerts: repeated safety rejections mean the scraper
// is misreading the screen, stale data means no reading has made it through
// for too long.
type Manager struct {
	settings      *models.Settings
	lastAlertTime map[string]time.Time
	notify        func(title, message string) error
	mu            sync.Mutex
}

// NewManager creates a new notification manager
func NewManager(settings *models.Settings) *Manager {
	return &Manager{
		settings:      settings,
		lastAlertTime: make(map[string]time.Time),
		notify: func(title, message string) error {
			return beeep.Notify(title, message, "")
		},
	}
}

// UpdateSettings updates the settings reference
func (m *Manager) UpdateSettings(settings *models.Settings) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.settings = settings
}

// SafetyRejection alerts after consecutive out-of-range rejections. A single
// rejection is a working safety gate; a streak means something on the screen
// is being systematically misread.
func (m *Manager) SafetyRejection(consecutive int) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if !m.settings.EnableSafetyAlerts {
		return nil
	}
	if !m.shouldRepeat(alertSafetyRejection) {
		return nil
	}

	title := "⚠️ Glucose readings rejected"
	message := fmt.Sprintf("%d consecutive readings failed the safety range check. Check the device screen.", consecutive)
	if err := m.notify(title, message); err != nil {
		return err
	}
	m.lastAlertTime[alertSafetyRejection] = time.Now()
	return nil
}

// StaleData alerts when the newest accepted reading is older than the
// configured staleness limit.
func (m *Manager) StaleData(age time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if !m.settings.EnableStaleAlerts {
		return nil
	}
	if age < time.Duration(m.settings.StaleMinutes)*time.Minute {
		return nil
	}
	if !m.shouldRepeat(alertStaleData) {
		return nil
	}

	title := "⏱️ No recent glucose data"
	message := fmt.Sprintf("Last accepted reading is %d minutes old.", int(age.Minutes()))
	if err := m.notify(title, message); err != nil {
		return err
	}
	m.lastAlertTime[alertStaleData] = time.Now()
	return nil
}

// shouldRepeat applies the repeat guard. Caller holds m.mu.
func (m *Manager) shouldRepeat(alertType string) bool {
	lastTime, ok := m.lastAlertTime[alertType]
	if !ok {
		return true
	}
	if m.settings.RepeatAlertMinutes <= 0 {
		// No repeat, only alert once until cleared.
		return false
	}
	return time.Since(lastTime) >= time.Duration(m.settings.RepeatAlertMinutes)*time.Minute
}

// ClearAlertState clears the alert state for a specific type or all types
func (m *Manager) ClearAlertState(alertType string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if alertType == "" {
		m.lastAlertTime = make(map[string]time.Time)
	} else {
		delete(m.lastAlertTime, alertType)
	}
}

// ClearSafetyState resets the safety-rejection alert, called when a reading
// passes the gate again.
func (m *Manager) ClearSafetyState() {
	m.ClearAlertState(alertSafetyRejection)
}

// ClearStaleState resets the stale-data alert, called when fresh data
// arrives.
func (m *Manager) ClearStaleState() {
	m.ClearAlertState(alertStaleData)
}

// SendTestNotification sends a test notification
func (m *Manager) SendTestNotification() error {
	return m.notify("Nightscout Bridge", "Test notification - alerts are working!")
}
