package session

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTabCoalescesRegenerationsInFlight(t *testing.T) {
	var tab Tab

	require.True(t, tab.BeginRegenerate())
	// A regeneration requested while one is already running must not
	// start a second one — it marks pending instead.
	assert.False(t, tab.BeginRegenerate())
	assert.False(t, tab.BeginRegenerate())

	tab.SetNext(Snapshot{Entries: map[uint32]Entry{1: {Key: 1, Name: "A"}}})
	rerun := tab.Finish()
	assert.True(t, rerun, "a pending regeneration must run once more after Finish")
	assert.Equal(t, 1, len(tab.Current.Entries))

	// The queued rerun consumes the pending flag; a second Finish with
	// no further BeginRegenerate calls reports no further rerun.
	require.True(t, tab.BeginRegenerate())
	tab.SetNext(Snapshot{Entries: map[uint32]Entry{}})
	assert.False(t, tab.Finish())
}

func TestTabFinishWithoutPendingDoesNotRerun(t *testing.T) {
	var tab Tab
	require.True(t, tab.BeginRegenerate())
	tab.SetNext(Snapshot{Entries: map[uint32]Entry{2: {Key: 2}}})
	assert.False(t, tab.Finish())
	assert.Equal(t, uint32(2), tab.Current.Entries[2].Key)
}
