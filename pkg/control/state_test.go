package control

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNewState_InitialConditions(t *testing.T) {
	s := NewState()
	assert.True(t, s.Running())
	assert.Equal(t, 70, s.BusyPct())
	assert.InDelta(t, 0.70, s.DutyRatio(), 1e-12)
}

func TestState_SetBusyPct_DerivesDutyRatio(t *testing.T) {
	s := NewState()
	s.SetBusyPct(42)
	assert.Equal(t, 42, s.BusyPct())
	assert.InDelta(t, 0.42, s.DutyRatio(), 1e-12)
}

func TestState_Stop(t *testing.T) {
	s := NewState()
	require := assert.New(t)
	require.True(s.Running())
	s.Stop()
	require.False(s.Running())
}

func TestState_FilteredFields(t *testing.T) {
	s := NewState()
	s.SetFilteredCPUPct(33.5)
	s.SetFilteredMemPct(61.2)
	s.SetCurrentCPULoad(40.0)
	assert.InDelta(t, 33.5, s.FilteredCPUPct(), 1e-12)
	assert.InDelta(t, 61.2, s.FilteredMemPct(), 1e-12)
	assert.InDelta(t, 40.0, s.CurrentCPULoad(), 1e-12)
}
