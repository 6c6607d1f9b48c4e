package gpu

import (
	"errors"
	"fmt"
	"sync"
)

// ErrMemoryBudgetExceeded is returned when an allocation would exceed the
// device memory budget.
var ErrMemoryBudgetExceeded = errors.New("gpu: memory budget exceeded")

// memoryBudget tracks buffer bytes against a limit. A zero limit means
// unlimited. It is safe for concurrent use.
type memoryBudget struct {
	mu    sync.Mutex
	limit uint64
	used  uint64
	peak  uint64
}

func newMemoryBudget(limitMB int) *memoryBudget {
	return &memoryBudget{limit: uint64(max(limitMB, 0)) * 1024 * 1024}
}

// reserve accounts for size bytes or fails without changing the totals.
func (m *memoryBudget) reserve(size uint64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.limit != 0 && m.used+size > m.limit {
		return fmt.Errorf("%w: %d bytes requested, %d of %d in use", ErrMemoryBudgetExceeded, size, m.used, m.limit)
	}
	m.used += size
	m.peak = max(m.peak, m.used)
	return nil
}

func (m *memoryBudget) release(size uint64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.used -= min(size, m.used)
}

// MemoryStats reports buffer memory accounting.
type MemoryStats struct {
	LimitBytes uint64
	UsedBytes  uint64
	PeakBytes  uint64
}

func (m *memoryBudget) stats() MemoryStats {
	m.mu.Lock()
	defer m.mu.Unlock()
	return MemoryStats{LimitBytes: m.limit, UsedBytes: m.used, PeakBytes: m.peak}
}
