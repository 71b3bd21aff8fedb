package dedup

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestAgeReconciler(t *testing.T) {
	local := time.Date(2024, 6, 8, 14, 0, 0, 0, time.UTC)

	tests := []struct {
		name   string
		remote *time.Time
		want   Action
		upload bool
	}{
		{"No remote record", nil, ActionUploaded, true},
		{"Within tolerance", timePtr(local.Add(45 * time.Minute)), ActionInSync, false},
		{"Exactly at tolerance", timePtr(local.Add(90 * time.Minute)), ActionInSync, false},
		{"Beyond tolerance", timePtr(local.Add(-3 * time.Hour)), ActionUpdated, true},
		{"Zero remote time", &time.Time{}, ActionUploaded, true},
	}

	r := NewAgeReconciler(0)
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := r.Reconcile(local, tt.remote)
			assert.Equal(t, tt.want, d.Action)
			assert.Equal(t, tt.upload, d.NeedsUpload())
		})
	}
}

func TestAgeReconciler_DiffHours(t *testing.T) {
	r := NewAgeReconciler(0)
	local := time.Date(2024, 6, 8, 14, 0, 0, 0, time.UTC)
	remote := local.Add(-3 * time.Hour)

	d := r.Reconcile(local, &remote)
	assert.Equal(t, ActionUpdated, d.Action)
	assert.InDelta(t, 3.0, d.DiffHours, 0.001)
}

func TestAgeReconciler_CustomTolerance(t *testing.T) {
	r := NewAgeReconciler(10 * time.Minute)
	local := time.Date(2024, 6, 8, 14, 0, 0, 0, time.UTC)
	remote := local.Add(15 * time.Minute)

	assert.Equal(t, ActionUpdated, r.Reconcile(local, &remote).Action)
}

func timePtr(t time.Time) *time.Time { return &t }
