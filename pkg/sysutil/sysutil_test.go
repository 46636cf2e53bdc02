package sysutil

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEMA_FirstSampleSetsState(t *testing.T) {
	e := NewEMA(0.5)
	out := e.Next(10)
	assert.Equal(t, 10.0, out, "first output should equal first input")
	out2 := e.Next(20)
	assert.InDelta(t, 15.0, out2, 1e-9, "EMA(0.5) of 10 then 20 should be 15")
}

func TestEMA_SequenceAlphaPointFive(t *testing.T) {
	e := NewEMA(0.5)
	got := make([]float64, 0, 4)
	got = append(got, e.Next(10))
	got = append(got, e.Next(20))
	got = append(got, e.Next(20))
	got = append(got, e.Next(40))

	want := []float64{10, 15, 17.5, 28.75}
	require.Len(t, got, len(want))
	for i := range want {
		assert.InDelta(t, want[i], got[i], 1e-9, "i=%d", i)
	}
}

func TestEMA_AlphaOne_NoSmoothing(t *testing.T) {
	e := NewEMA(1.0)
	assert.Equal(t, 10.0, e.Next(10))
	assert.Equal(t, 20.0, e.Next(20))
	assert.Equal(t, 5.0, e.Next(5))
}

func TestEMA_AlphaZero_HoldsInitialValue(t *testing.T) {
	e := NewEMA(0.0)
	assert.Equal(t, 10.0, e.Next(10))
	assert.Equal(t, 10.0, e.Next(20))
	assert.Equal(t, 10.0, e.Next(-5))
}

func TestDeltaU64_Wraps(t *testing.T) {
	assert.Equal(t, uint64(5), DeltaU64(10, 5))
	assert.Equal(t, uint64(0), DeltaU64(5, 10), "counter decreased -> treated as wrap, delta 0")
	assert.Equal(t, uint64(0), DeltaU64(5, 5))
}

func TestSafeDiv(t *testing.T) {
	assert.InDelta(t, 2.0, SafeDiv(10, 5), 1e-12)
	assert.Equal(t, 0.0, SafeDiv(10, 0))
	assert.Equal(t, 0.0, SafeDiv(10, 1e-13))
}

func TestClampPct(t *testing.T) {
	assert.Equal(t, 0.0, ClampPct(-5))
	assert.Equal(t, 100.0, ClampPct(150))
	assert.Equal(t, 50.0, ClampPct(50))
	assert.Equal(t, 0.0, ClampPct(nanFloat()))
}

func TestClamp01(t *testing.T) {
	assert.Equal(t, 0.0, Clamp01(-0.1))
	assert.Equal(t, 1.0, Clamp01(1.1))
	assert.Equal(t, 0.7, Clamp01(0.7))
}

func TestClampInt(t *testing.T) {
	assert.Equal(t, 0, ClampInt(-1, 0, 100))
	assert.Equal(t, 100, ClampInt(101, 0, 100))
	assert.Equal(t, 42, ClampInt(42, 0, 100))
}

func TestRoundHalfUp(t *testing.T) {
	cases := []struct {
		in   float64
		want int
	}{
		{0.4, 0},
		{0.5, 1},
		{0.6, 1},
		{-0.4, 0},
		{-0.5, -1},
		{-0.6, -1},
		{2.5, 3},
		{-2.5, -3},
	}
	for _, c := range cases {
		assert.Equal(t, c.want, RoundHalfUp(c.in), "RoundHalfUp(%v)", c.in)
	}
}

func TestRoundHalfUp64(t *testing.T) {
	assert.Equal(t, uint64(0), RoundHalfUp64(-5))
	assert.Equal(t, uint64(3), RoundHalfUp64(2.5))
	assert.Equal(t, uint64(2), RoundHalfUp64(2.4))
}

func TestPow(t *testing.T) {
	assert.InDelta(t, 8.0, Pow(2, 3), 1e-9)
	assert.Equal(t, 0.0, Pow(0, 3))
	assert.Equal(t, 0.0, Pow(-1, 3))
}

func nanFloat() float64 {
	var z float64
	return z / z
}
