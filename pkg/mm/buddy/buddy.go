// Package buddy implements the physical frame allocator: one free-list
// array per zone, indexed by power-of-two order, following spec.md §4.2.
//
// Grounded on the teacher's pkg/performance/ringbuffer package for the
// "plain data-structure package with its own small test suite" shape,
// generalized to the buddy system's splitting/coalescing algorithm.
package buddy

import (
	"fmt"
	"sort"

	"github.com/eduos/kernel/pkg/errors"
	"github.com/eduos/kernel/pkg/klock"
)

// MaxOrder bounds block size at 2^MaxOrder frames (4 MiB at 4 KiB frames).
const MaxOrder = 10

// FrameSize is the size in bytes of one physical frame (4 KiB).
const FrameSize = 4096

// Zone identifies one of the allocation zones of spec.md §3.
type Zone int

const (
	ZoneDMA Zone = iota
	ZoneNormal
	ZoneHigh
	zoneCount
)

func (z Zone) String() string {
	switch z {
	case ZoneDMA:
		return "DMA"
	case ZoneNormal:
		return "NORMAL"
	case ZoneHigh:
		return "HIGHMEM"
	default:
		return "UNKNOWN"
	}
}

// Flags selects zone hint, allocation direction, and sleep tolerance for
// Allocator.Alloc, per spec.md §4.2.
type Flags struct {
	Zone     Zone
	User     bool // false = kernel allocation
	CanSleep bool
}

// frameState is the exactly-one-of-three state of spec.md §3: free in a
// buddy list of some order, allocated and refcounted, or reserved at boot.
type frameState int

const (
	stateReserved frameState = iota
	stateFree
	stateAllocated
)

type frame struct {
	state    frameState
	order    int // valid only while free
	refcount int32
	slabOwned bool
}

// zoneState holds one zone's frame range and its per-order free-lists.
// freeList[k] holds the starting PFNs of all free blocks of order k,
// kept sorted ascending so the lowest-PFN block is always picked first
// (spec.md §4.2 tie-break: keep high memory available for big requests).
type zoneState struct {
	zone     Zone
	startPFN int
	frames   int // number of frames owned by this zone
	freeList [MaxOrder + 1][]int
}

// Allocator is the buddy page frame allocator over one or more zones.
type Allocator struct {
	mu     klock.Spinlock
	frames []frame // indexed by global PFN
	zones  []zoneState
	mem    []byte // backing bytes for every frame, FrameSize each, indexed by PFN
}

// ZoneSpec describes one zone's contiguous PFN range at construction time.
type ZoneSpec struct {
	Zone      Zone
	StartPFN  int
	NumFrames int
}

// New builds an allocator over totalFrames physical frames partitioned
// into the given zones. Zones must be disjoint, sorted by StartPFN, and
// together must not exceed totalFrames. Every frame starts free and is
// pushed to the free-list of the largest order that divides evenly into
// its zone, splitting at construction the same way Free splits/merges at
// runtime.
func New(totalFrames int, specs []ZoneSpec) (*Allocator, error) {
	if totalFrames <= 0 {
		return nil, errors.EINVAL
	}
	sorted := append([]ZoneSpec(nil), specs...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].StartPFN < sorted[j].StartPFN })

	a := &Allocator{
		frames: make([]frame, totalFrames),
		zones:  make([]zoneState, 0, len(sorted)),
		mem:    make([]byte, totalFrames*FrameSize),
	}
	prevEnd := 0
	for _, s := range sorted {
		if s.NumFrames <= 0 {
			return nil, errors.EINVAL
		}
		if s.StartPFN < prevEnd || s.StartPFN+s.NumFrames > totalFrames {
			return nil, fmt.Errorf("buddy: zone %s [%d,%d) out of range or overlapping: %w",
				s.Zone, s.StartPFN, s.StartPFN+s.NumFrames, errors.Errno(errors.EINVAL))
		}
		prevEnd = s.StartPFN + s.NumFrames
		a.zones = append(a.zones, zoneState{zone: s.Zone, startPFN: s.StartPFN, frames: s.NumFrames})
	}

	for zi := range a.zones {
		z := &a.zones[zi]
		pfn := z.startPFN
		remaining := z.frames
		for remaining > 0 {
			order := MaxOrder
			for order > 0 && (1<<order > remaining || pfn%(1<<order) != 0) {
				order--
			}
			blockLen := 1 << order
			for i := 0; i < blockLen; i++ {
				a.frames[pfn+i].state = stateFree
			}
			a.frames[pfn].order = order
			z.freeList[order] = append(z.freeList[order], pfn)
			pfn += blockLen
			remaining -= blockLen
		}
	}
	return a, nil
}

// Block identifies an allocated run of 2^Order frames starting at PFN.
type Block struct {
	PFN   int
	Order int
}

func (b Block) Frames() int { return 1 << b.Order }

func (z *zoneState) popLowest(order int) (int, bool) {
	list := z.freeList[order]
	if len(list) == 0 {
		return 0, false
	}
	pfn := list[0]
	z.freeList[order] = list[1:]
	return pfn, true
}

func (z *zoneState) push(order, pfn int) {
	list := z.freeList[order]
	i := sort.SearchInts(list, pfn)
	list = append(list, 0)
	copy(list[i+1:], list[i:])
	list[i] = pfn
	z.freeList[order] = list
}

// Alloc returns a Block of 2^order frames from the zone named by
// flags.Zone, or ENOMEM if no zone holds a suitable block. Allocation
// scans from the requested order upward within the zone; a larger block
// found is split, pushing each half to its own order's free-list, until
// exactly the requested order remains to hand back.
func (a *Allocator) Alloc(order int, flags Flags) (Block, error) {
	if order < 0 || order > MaxOrder {
		return Block{}, errors.EINVAL
	}
	a.mu.Lock()
	defer a.mu.Unlock()

	zi := a.findZone(flags.Zone)
	if zi < 0 {
		return Block{}, errors.ENOMEM
	}
	z := &a.zones[zi]

	found := -1
	for o := order; o <= MaxOrder; o++ {
		if len(z.freeList[o]) > 0 {
			found = o
			break
		}
	}
	if found < 0 {
		return Block{}, errors.ENOMEM
	}

	pfn, _ := z.popLowest(found)
	// Split from `found` down to `order`, pushing the buddy half we don't
	// need at each level.
	for o := found; o > order; o-- {
		half := 1 << (o - 1)
		buddyPFN := pfn + half
		a.frames[buddyPFN].order = o - 1
		z.push(o-1, buddyPFN)
	}
	for i := 0; i < (1 << order); i++ {
		a.frames[pfn+i].state = stateAllocated
	}
	a.frames[pfn].refcount = 1
	return Block{PFN: pfn, Order: order}, nil
}

func (a *Allocator) findZone(hint Zone) int {
	for i := range a.zones {
		if a.zones[i].zone == hint {
			return i
		}
	}
	return -1
}

// Free returns a previously allocated Block to its zone, coalescing with
// its buddy (found by xor-ing the order bit of the PFN) repeatedly while
// the buddy is itself free of the same order. Freeing a block that is not
// aligned to an existing allocation's order, or double-freeing, is a
// developer error and panics.
func (a *Allocator) Free(b Block) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if b.Order < 0 || b.Order > MaxOrder || b.PFN%(1<<b.Order) != 0 || b.PFN+b.Frames() > len(a.frames) {
		panic("buddy: free of misaligned or out-of-range block")
	}
	if a.frames[b.PFN].state != stateAllocated {
		panic("buddy: double free")
	}

	zi := a.zoneOf(b.PFN)
	if zi < 0 {
		panic("buddy: free of block outside any zone")
	}
	z := &a.zones[zi]

	pfn, order := b.PFN, b.Order
	for i := 0; i < (1 << order); i++ {
		a.frames[pfn+i].state = stateFree
	}
	a.frames[pfn].refcount = 0

	for order < MaxOrder {
		buddyPFN := pfn ^ (1 << order)
		if buddyPFN < z.startPFN || buddyPFN >= z.startPFN+z.frames {
			break
		}
		if a.frames[buddyPFN].state != stateFree || a.frames[buddyPFN].order != order {
			break
		}
		// Remove the buddy from its free-list and merge.
		list := z.freeList[order]
		idx := sort.SearchInts(list, buddyPFN)
		if idx >= len(list) || list[idx] != buddyPFN {
			break
		}
		z.freeList[order] = append(list[:idx], list[idx+1:]...)
		if buddyPFN < pfn {
			pfn = buddyPFN
		}
		order++
	}
	a.frames[pfn].order = order
	z.push(order, pfn)
}

func (a *Allocator) zoneOf(pfn int) int {
	for i := range a.zones {
		if pfn >= a.zones[i].startPFN && pfn < a.zones[i].startPFN+a.zones[i].frames {
			return i
		}
	}
	return -1
}

// ZoneStats reports the free bytes of one order-indexed free-list, used
// by the conservation invariant of spec.md §8.
type ZoneStats struct {
	Zone       Zone
	FreeFrames int
	FreeBytes  int64
}

// Stats returns the current free-frame accounting for every zone.
func (a *Allocator) Stats() []ZoneStats {
	a.mu.Lock()
	defer a.mu.Unlock()

	out := make([]ZoneStats, len(a.zones))
	for i, z := range a.zones {
		var frames int
		for order, list := range z.freeList {
			frames += len(list) * (1 << order)
		}
		out[i] = ZoneStats{Zone: z.zone, FreeFrames: frames, FreeBytes: int64(frames) * FrameSize}
	}
	return out
}
