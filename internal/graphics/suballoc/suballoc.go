// Package suballoc manages ranges inside one growable buffer.
//
// Units are chosen by the caller (the mesh cache uses vertices and indices).
// Free ranges are kept sorted by offset and coalesced on Free, so churn of
// equally sized allocations does not fragment the buffer. Growth appends
// capacity at the end; offsets of live allocations never move.
package suballoc

import (
	"fmt"
	"sort"
)

// Allocation is a range handed out by an Allocator.
type Allocation struct {
	Offset int
	Size   int
}

// End returns the first unit past the allocation.
func (a Allocation) End() int { return a.Offset + a.Size }

// Allocator is a first-fit range allocator. It is not safe for concurrent use.
type Allocator struct {
	capacity int
	used     int
	live     int
	free     []Allocation // sorted by Offset, never adjacent
}

// New returns an allocator managing [0, capacity).
func New(capacity int) *Allocator {
	a := &Allocator{}
	a.grow(capacity)
	return a
}

// Capacity is the managed size.
func (a *Allocator) Capacity() int { return a.capacity }

// Used is the sum of live allocation sizes.
func (a *Allocator) Used() int { return a.used }

// Live is the number of live allocations.
func (a *Allocator) Live() int { return a.live }

// FreeRanges returns a copy of the free list.
func (a *Allocator) FreeRanges() []Allocation {
	return append([]Allocation(nil), a.free...)
}

// LargestFree returns the size of the biggest free range.
func (a *Allocator) LargestFree() int {
	n := 0
	for _, f := range a.free {
		n = max(n, f.Size)
	}
	return n
}

// Allocate returns a range of exactly size units. It grows the managed space
// when no free range is large enough and reports so through grew; the caller
// must then resize the backing buffer to Capacity before writing.
func (a *Allocator) Allocate(size int) (al Allocation, grew bool) {
	if size < 0 {
		panic(fmt.Sprintf("suballoc: negative size %d", size))
	}
	if size == 0 {
		return Allocation{}, false
	}
	i := a.firstFit(size)
	if i < 0 {
		need := size
		// A free tail is extended rather than left behind
		if n := len(a.free); n > 0 && a.free[n-1].End() == a.capacity {
			need -= a.free[n-1].Size
		}
		a.grow(max(a.capacity*2, a.capacity+need))
		grew = true
		i = a.firstFit(size)
	}
	f := a.free[i]
	al = Allocation{Offset: f.Offset, Size: size}
	if f.Size == size {
		a.free = append(a.free[:i], a.free[i+1:]...)
	} else {
		a.free[i] = Allocation{Offset: f.Offset + size, Size: f.Size - size}
	}
	a.used += size
	a.live++
	return al, grew
}

// Free returns al to the free list, merging it with adjacent free ranges.
func (a *Allocator) Free(al Allocation) {
	if al.Size == 0 {
		return
	}
	if al.Offset < 0 || al.End() > a.capacity {
		panic(fmt.Sprintf("suballoc: free of [%d,%d) outside capacity %d", al.Offset, al.End(), a.capacity))
	}
	i := sort.Search(len(a.free), func(i int) bool { return a.free[i].Offset >= al.Offset })
	if (i < len(a.free) && a.free[i].Offset < al.End()) || (i > 0 && a.free[i-1].End() > al.Offset) {
		panic(fmt.Sprintf("suballoc: double free of [%d,%d)", al.Offset, al.End()))
	}

	mergePrev := i > 0 && a.free[i-1].End() == al.Offset
	mergeNext := i < len(a.free) && al.End() == a.free[i].Offset
	switch {
	case mergePrev && mergeNext:
		a.free[i-1].Size += al.Size + a.free[i].Size
		a.free = append(a.free[:i], a.free[i+1:]...)
	case mergePrev:
		a.free[i-1].Size += al.Size
	case mergeNext:
		a.free[i] = Allocation{Offset: al.Offset, Size: al.Size + a.free[i].Size}
	default:
		a.free = append(a.free, Allocation{})
		copy(a.free[i+1:], a.free[i:])
		a.free[i] = al
	}
	a.used -= al.Size
	a.live--
}

// Reset frees every allocation while keeping the capacity.
func (a *Allocator) Reset() {
	a.used = 0
	a.live = 0
	a.free = a.free[:0]
	if a.capacity > 0 {
		a.free = append(a.free, Allocation{Offset: 0, Size: a.capacity})
	}
}

func (a *Allocator) firstFit(size int) int {
	for i, f := range a.free {
		if f.Size >= size {
			return i
		}
	}
	return -1
}

// grow extends the managed space to capacity, merging with a free tail.
func (a *Allocator) grow(capacity int) {
	if capacity <= a.capacity {
		return
	}
	added := Allocation{Offset: a.capacity, Size: capacity - a.capacity}
	if n := len(a.free); n > 0 && a.free[n-1].End() == a.capacity {
		a.free[n-1].Size += added.Size
	} else {
		a.free = append(a.free, added)
	}
	a.capacity = capacity
}
