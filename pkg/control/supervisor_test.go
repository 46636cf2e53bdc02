package control

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingRenderer struct {
	mu    sync.Mutex
	calls int
}

func (r *recordingRenderer) Render(Status) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls++
}

func (r *recordingRenderer) Calls() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.calls
}

func TestSupervisor_RunAndShutdown(t *testing.T) {
	p := &fakeProbe{hostCPU: 50, hostMem: 50, totalMemMB: 256, ncores: 2}
	state := NewState()
	workers := NewWorkerPool(state, p.LogicalCores(), false)
	cpuReg := NewCPURegulator(p, state, 50)
	memReg := NewMemoryRegulator(p, state, 50, p.TotalMemMB(), 0.5, nil)
	renderer := &recordingRenderer{}

	sup := NewSupervisor(p, state, workers, cpuReg, memReg, renderer, 50, 50)
	sup.UpdateInterval = 10 * time.Millisecond
	sup.PrimeDelay = 1 * time.Millisecond

	done := make(chan struct{})
	go func() {
		sup.Run()
		close(done)
	}()

	time.Sleep(60 * time.Millisecond)
	sup.Shutdown()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("supervisor did not shut down in time")
	}

	assert.Greater(t, renderer.Calls(), 0)
	require.False(t, state.Running())
	assert.Equal(t, 0, memReg.BlockCount(), "memory pool should be freed on shutdown")
}
