package risk

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestDecayScoreHalvesAtHalfLife(t *testing.T) {
	now := time.Now()
	lastSeen := now.Add(-10 * time.Minute)

	got := decayScore(100, lastSeen, now)
	assert.InDelta(t, 50, got, 0.01)
}

func TestDecayScoreNoElapsedTimeIsUnchanged(t *testing.T) {
	now := time.Now()
	assert.Equal(t, 80.0, decayScore(80, now, now))
}

func TestDecayScoreZeroScoreStaysZero(t *testing.T) {
	now := time.Now()
	assert.Equal(t, 0.0, decayScore(0, now.Add(-time.Hour), now))
}

func TestDecayScoreUnsetLastSeenIsUnchanged(t *testing.T) {
	now := time.Now()
	assert.Equal(t, 42.0, decayScore(42, time.Time{}, now))
}

func TestClassifyBands(t *testing.T) {
	s := &Service{thresholds: Thresholds{Low: 40, High: 75}}

	level, action, _ := s.classify(10)
	assert.Equal(t, LevelLow, level)
	assert.Equal(t, ActionPass, action)

	level, action, _ = s.classify(50)
	assert.Equal(t, LevelMedium, level)
	assert.Equal(t, ActionCaptcha, action)

	level, action, _ = s.classify(90)
	assert.Equal(t, LevelHigh, level)
	assert.Equal(t, ActionBlock, action)
}

func TestClassifyBandBoundariesAreExclusiveOnTheHighSide(t *testing.T) {
	s := &Service{thresholds: Thresholds{Low: 40, High: 75}}

	_, action, _ := s.classify(40)
	assert.Equal(t, ActionCaptcha, action, "score equal to Low threshold should already be MEDIUM")

	_, action, _ = s.classify(75)
	assert.Equal(t, ActionBlock, action, "score equal to High threshold should already be HIGH")
}

func TestUpdateDenyListReplacesPriorEntries(t *testing.T) {
	s := New(nil, DefaultThresholds)
	s.UpdateDenyList([]string{"device-a"}, []string{"1.2.3.4"})

	s.mu.RLock()
	_, badA := s.badDevices["device-a"]
	_, deniedIP := s.deniedIPs["1.2.3.4"]
	s.mu.RUnlock()
	assert.True(t, badA)
	assert.True(t, deniedIP)

	s.UpdateDenyList([]string{"device-b"}, nil)

	s.mu.RLock()
	_, staleA := s.badDevices["device-a"]
	_, freshB := s.badDevices["device-b"]
	s.mu.RUnlock()
	assert.False(t, staleA, "prior deny-list entries must not survive a refresh")
	assert.True(t, freshB)
}
