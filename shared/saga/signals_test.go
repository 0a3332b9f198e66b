package saga

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSignalChannel_FirstCancelWins(t *testing.T) {
	channel := NewSignalChannel()

	assert.True(t, channel.Raise(SignalCancelOrder, "changed my mind"))
	assert.False(t, channel.Raise(SignalCancelOrder, "second thoughts"))

	sig, ok := channel.Poll()
	require.True(t, ok)
	assert.Equal(t, SignalCancelOrder, sig.Name)
	assert.Equal(t, "changed my mind", sig.Value)

	_, ok = channel.Poll()
	assert.False(t, ok)
}

func TestSignalChannel_PollNeverBlocks(t *testing.T) {
	channel := NewSignalChannel()

	// An empty channel reports no signal instead of waiting for one.
	_, ok := channel.Poll()
	assert.False(t, ok)
}

func TestSignalChannel_DeliveryOrder(t *testing.T) {
	channel := NewSignalChannel()

	assert.True(t, channel.Raise(SignalUpdateStatus, "expedited"))
	assert.True(t, channel.Raise(SignalCancelOrder, "late"))

	first, ok := channel.Poll()
	require.True(t, ok)
	assert.Equal(t, SignalUpdateStatus, first.Name)

	second, ok := channel.Poll()
	require.True(t, ok)
	assert.Equal(t, SignalCancelOrder, second.Name)
}

func TestSignalChannel_SuspendDeliveredOnce(t *testing.T) {
	channel := NewSignalChannel()

	assert.True(t, channel.Raise(SignalSuspendUser, "abuse report"))
	assert.False(t, channel.Raise(SignalSuspendUser, "another report"))

	drained := channel.Drain()
	require.Len(t, drained, 1)
	assert.Equal(t, "abuse report", drained[0].Value)
}

func TestSignalChannel_StatusUpdatesNotDeduplicated(t *testing.T) {
	channel := NewSignalChannel()

	assert.True(t, channel.Raise(SignalUpdateStatus, "packing"))
	assert.True(t, channel.Raise(SignalUpdateStatus, "ready"))

	drained := channel.Drain()
	assert.Len(t, drained, 2)
}
