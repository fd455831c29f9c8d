// Package pool provides a fixed-pool byte allocator: a single slab carved
// into size classes of preallocated slots, with no growth, splitting, or
// coalescing. Allocations are addressed by compressed 32-bit references
// instead of native pointers, so a reference costs the same on 32- and
// 64-bit platforms.
package pool

import (
	"errors"
	"fmt"
	"sort"
	"sync"
)

// SizeClass describes one pool: Count slots of Size bytes each.
type SizeClass struct {
	Size  int
	Count int
}

// Config is the full pool layout. Classes must have positive sizes and
// counts; New sorts them by size and rejects duplicates.
type Config []SizeClass

// Ref is a compressed reference into the pool. The zero value is NilRef.
type Ref uint32

// NilRef is the null reference. Free(NilRef) is a no-op and Bytes(NilRef)
// returns nil.
const NilRef Ref = 0

const (
	refClassShift = 24
	refSlotMask   = 1<<refClassShift - 1
	maxSlots      = refSlotMask
	maxClasses    = 254
)

var (
	// ErrExhausted is returned when no class large enough has a free slot.
	ErrExhausted = errors.New("pool: exhausted")
	// ErrTooLarge is returned for requests above the largest class size.
	ErrTooLarge = errors.New("pool: request exceeds largest size class")
)

// Stats is a point-in-time snapshot of pool usage.
type Stats struct {
	SlabBytes int
	Classes   []ClassStats
}

// ClassStats reports usage for a single size class.
type ClassStats struct {
	Size      int
	Count     int
	InUse     int
	HighWater int
}

type class struct {
	size      int
	count     int
	base      int
	free      []uint32
	lens      []int32
	inUse     int
	highWater int
}

// Pool is a fixed-pool allocator. All methods are safe for concurrent use.
type Pool struct {
	mu      sync.Mutex
	slab    []byte
	classes []class
}

// New allocates the whole slab up front and carves it into the configured
// classes. The pool never grows.
func New(cfg Config) (*Pool, error) {
	if len(cfg) == 0 {
		return nil, fmt.Errorf("pool: empty config")
	}
	if len(cfg) > maxClasses {
		return nil, fmt.Errorf("pool: too many size classes (%d, max %d)", len(cfg), maxClasses)
	}
	sorted := append(Config{}, cfg...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Size < sorted[j].Size })

	total := 0
	for i, sc := range sorted {
		if sc.Size <= 0 {
			return nil, fmt.Errorf("pool: class %d has non-positive size %d", i, sc.Size)
		}
		if sc.Count <= 0 {
			return nil, fmt.Errorf("pool: class %d has non-positive count %d", i, sc.Count)
		}
		if sc.Count > maxSlots {
			return nil, fmt.Errorf("pool: class %d count %d exceeds %d", i, sc.Count, maxSlots)
		}
		if i > 0 && sc.Size == sorted[i-1].Size {
			return nil, fmt.Errorf("pool: duplicate size class %d", sc.Size)
		}
		total += sc.Size * sc.Count
	}

	p := &Pool{
		slab:    make([]byte, total),
		classes: make([]class, 0, len(sorted)),
	}
	offset := 0
	for _, sc := range sorted {
		c := class{
			size:  sc.Size,
			count: sc.Count,
			base:  offset,
			free:  make([]uint32, 0, sc.Count),
			lens:  make([]int32, sc.Count),
		}
		// LIFO free list: lowest slot on top.
		for slot := sc.Count - 1; slot >= 0; slot-- {
			c.free = append(c.free, uint32(slot))
			c.lens[slot] = -1
		}
		p.classes = append(p.classes, c)
		offset += sc.Size * sc.Count
	}
	return p, nil
}

// Alloc reserves a slot for n bytes from the smallest class that fits,
// falling back to larger classes when the preferred one is full.
func (p *Pool) Alloc(n int) (Ref, error) {
	if n < 0 {
		return NilRef, fmt.Errorf("pool: negative allocation %d", n)
	}
	p.mu.Lock()
	defer p.mu.Unlock()

	if n > p.classes[len(p.classes)-1].size {
		return NilRef, fmt.Errorf("%w: %d bytes", ErrTooLarge, n)
	}
	for ci := range p.classes {
		c := &p.classes[ci]
		if c.size < n {
			continue
		}
		if len(c.free) == 0 {
			continue
		}
		slot := c.free[len(c.free)-1]
		c.free = c.free[:len(c.free)-1]
		c.lens[slot] = int32(n)
		c.inUse++
		if c.inUse > c.highWater {
			c.highWater = c.inUse
		}
		return packRef(ci, slot), nil
	}
	return NilRef, fmt.Errorf("%w: %d bytes", ErrExhausted, n)
}

// Store allocates a slot and copies b into it.
func (p *Pool) Store(b []byte) (Ref, error) {
	ref, err := p.Alloc(len(b))
	if err != nil {
		return NilRef, err
	}
	copy(p.Bytes(ref), b)
	return ref, nil
}

// Bytes returns the allocation's byte window, sized to the requested length.
// The window stays valid until Free or Reset. Bytes(NilRef) returns nil.
func (p *Pool) Bytes(ref Ref) []byte {
	if ref == NilRef {
		return nil
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	c, slot := p.locate(ref)
	start := c.base + int(slot)*c.size
	return p.slab[start : start+int(c.lens[slot])]
}

// Free releases the slot back to its class. Free(NilRef) is a no-op.
// Freeing an invalid or already-freed reference is a programming error and
// panics.
func (p *Pool) Free(ref Ref) {
	if ref == NilRef {
		return
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	c, slot := p.locate(ref)
	c.lens[slot] = -1
	c.free = append(c.free, slot)
	c.inUse--
}

// Reset releases every allocation at once. Outstanding Refs and byte windows
// become invalid.
func (p *Pool) Reset() {
	p.mu.Lock()
	defer p.mu.Unlock()
	for ci := range p.classes {
		c := &p.classes[ci]
		c.free = c.free[:0]
		for slot := c.count - 1; slot >= 0; slot-- {
			c.free = append(c.free, uint32(slot))
			c.lens[slot] = -1
		}
		c.inUse = 0
	}
}

// Stats snapshots per-class usage. High-water marks are monotonic for the
// lifetime of the pool, surviving both Free and Reset.
func (p *Pool) Stats() Stats {
	p.mu.Lock()
	defer p.mu.Unlock()
	s := Stats{SlabBytes: len(p.slab), Classes: make([]ClassStats, 0, len(p.classes))}
	for _, c := range p.classes {
		s.Classes = append(s.Classes, ClassStats{
			Size:      c.size,
			Count:     c.count,
			InUse:     c.inUse,
			HighWater: c.highWater,
		})
	}
	return s
}

func packRef(classIndex int, slot uint32) Ref {
	return Ref(uint32(classIndex+1)<<refClassShift | slot)
}

func (p *Pool) locate(ref Ref) (*class, uint32) {
	ci := int(ref>>refClassShift) - 1
	slot := uint32(ref) & refSlotMask
	if ci < 0 || ci >= len(p.classes) {
		panic(fmt.Sprintf("pool: invalid ref class %d", ci))
	}
	c := &p.classes[ci]
	if slot >= uint32(c.count) {
		panic(fmt.Sprintf("pool: invalid ref slot %d in class %d", slot, ci))
	}
	if c.lens[slot] < 0 {
		panic(fmt.Sprintf("pool: use of freed ref (class %d slot %d)", ci, slot))
	}
	return c, slot
}
