package units

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestMiB_Bytes(t *testing.T) {
	assert.Equal(t, uint64(1<<20), MiB(1).Bytes())
	assert.Equal(t, uint64(10*(1<<20)), MiB(10).Bytes())
}

func TestMiB_Humanized(t *testing.T) {
	cases := []struct {
		in   MiB
		want string
	}{
		{0, "0 MB"},
		{1, "1 MB"},
		{1023, "1023 MB"},
		{1024, "1.00 GB"},
		{1536, "1.50 GB"},
		{1024 * 1024, "1.00 TB"},
	}
	for _, c := range cases {
		assert.Equal(t, c.want, c.in.Humanized(), "MiB(%d)", c.in)
	}
}

func TestMiB_GB(t *testing.T) {
	assert.InDelta(t, 1.0, MiB(1024).GB(), 1e-12)
	assert.InDelta(t, 0.5, MiB(512).GB(), 1e-12)
}

func TestFromBytes(t *testing.T) {
	assert.Equal(t, MiB(1), FromBytes(1<<20))
	assert.Equal(t, MiB(1), FromBytes(1<<20+100))
	assert.Equal(t, MiB(0), FromBytes(100))
}
