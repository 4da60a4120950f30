package timeutil

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIsZoneValid(t *testing.T) {
	tests := []struct {
		name string
		want bool
	}{
		{"UTC", true},
		{"America/Los_Angeles", true},
		{"Asia/Kolkata", true},
		{"", false},
		{"Mars/Olympus_Mons", false},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, IsZoneValid(tt.name), tt.name)
	}
}

func TestSetLocalZone(t *testing.T) {
	orig := time.Local
	t.Cleanup(func() { time.Local = orig })

	require.NoError(t, SetLocalZone(""))
	assert.Equal(t, orig, time.Local, "empty name keeps the host zone")

	require.NoError(t, SetLocalZone("Asia/Kolkata"))
	ts := time.Date(2024, 1, 1, 10, 0, 0, 0, time.UTC).In(time.Local)
	assert.Equal(t, "15:30", ts.Format("15:04"))

	assert.Error(t, SetLocalZone("Mars/Olympus_Mons"))
	assert.Equal(t, "Asia/Kolkata", time.Local.String())
}
