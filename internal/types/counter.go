package types

import "sync/atomic"

// Counter is a monotone byte counter, backing replication_offset on a
// primary and bytes_processed on a secondary.
type Counter struct {
	v atomic.Uint64
}

func (c *Counter) Add(n uint64) uint64 {
	return c.v.Add(n)
}

func (c *Counter) Load() uint64 {
	return c.v.Load()
}
