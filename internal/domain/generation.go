package domain

import "sync/atomic"

// Generation hands out monotonically increasing request numbers for one query
// type. A response is applied only while its number is still the latest.
type Generation struct {
	n atomic.Uint64
}

// Next issues a new request number, superseding all earlier ones.
func (g *Generation) Next() uint64 { return g.n.Add(1) }

// IsCurrent reports whether id is the latest issued request number.
func (g *Generation) IsCurrent(id uint64) bool { return g.n.Load() == id }
