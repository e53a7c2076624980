// ABOUTME: Tests for the consecutive invalid-token failure tracker
// ABOUTME: Threshold, window reset and success reset behavior

package validate

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestSuspectTracker_Threshold(t *testing.T) {
	tracker := newSuspectTracker()
	now := time.Now()

	assert.False(t, tracker.RecordFailure("1.2.3.4", now))
	assert.False(t, tracker.RecordFailure("1.2.3.4", now))
	assert.True(t, tracker.RecordFailure("1.2.3.4", now), "third failure hits the threshold")
	assert.True(t, tracker.RecordFailure("1.2.3.4", now), "stays flagged while failing")
}

func TestSuspectTracker_SourcesIndependent(t *testing.T) {
	tracker := newSuspectTracker()
	now := time.Now()

	tracker.RecordFailure("1.2.3.4", now)
	tracker.RecordFailure("1.2.3.4", now)

	assert.False(t, tracker.RecordFailure("5.6.7.8", now), "other sources start fresh")
}

func TestSuspectTracker_WindowReset(t *testing.T) {
	tracker := newSuspectTracker()
	now := time.Now()

	tracker.RecordFailure("1.2.3.4", now)
	tracker.RecordFailure("1.2.3.4", now)

	// After the window elapses the streak starts over
	later := now.Add(suspectWindow + time.Second)
	assert.False(t, tracker.RecordFailure("1.2.3.4", later))
}

func TestSuspectTracker_SuccessReset(t *testing.T) {
	tracker := newSuspectTracker()
	now := time.Now()

	tracker.RecordFailure("1.2.3.4", now)
	tracker.RecordFailure("1.2.3.4", now)
	tracker.RecordSuccess("1.2.3.4")

	assert.False(t, tracker.RecordFailure("1.2.3.4", now))
}
