package cpu

import (
	"sync/atomic"
	"testing"
)

func TestGroupPoolRunAll(t *testing.T) {
	p := newGroupPool(3)
	defer p.close()

	var n atomic.Int64
	work := make([]func(), 100)
	for i := range work {
		work[i] = func() { n.Add(1) }
	}
	p.runAll(work)
	if got := n.Load(); got != 100 {
		t.Errorf("ran %d tasks, want 100", got)
	}
}

func TestGroupPoolRunAfterClose(t *testing.T) {
	p := newGroupPool(2)
	p.close()
	p.close()

	ran := false
	p.runAll([]func(){func() { ran = true }})
	if !ran {
		t.Error("work not run after close")
	}
}
