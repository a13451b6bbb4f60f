package vkdraw

import "sync/atomic"

// VRAMCounter tracks device memory bytes attributed to dedicated texture
// allocations. Borrowed physical-image-group memory is accounted by its
// owning pool, never by the borrowing texture.
type VRAMCounter struct {
	allocated atomic.Int64
	freed     atomic.Int64
}

func (c *VRAMCounter) RecordAllocate(bytes uint64) {
	c.allocated.Add(int64(bytes))
}

func (c *VRAMCounter) RecordFree(bytes uint64) {
	c.freed.Add(int64(bytes))
}

// InUse returns the current number of live bytes.
func (c *VRAMCounter) InUse() int64 {
	return c.allocated.Load() - c.freed.Load()
}

// TotalAllocated returns the cumulative number of bytes ever allocated.
func (c *VRAMCounter) TotalAllocated() int64 {
	return c.allocated.Load()
}
