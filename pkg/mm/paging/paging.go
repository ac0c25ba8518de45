// Package paging models the 32-bit two-level x86 page tables and the
// per-task address space (mm_struct) of spec.md §4.4: a directory of
// 1024 entries, each pointing at a page table of 1024 PTEs mapping one
// 4 KiB page. Data pages are backed by real frames from pkg/mm/buddy so
// the frame-conservation invariant of spec.md §8 holds across mm's;
// the directory/page-table bookkeeping itself is plain Go state, since a
// user-space simulation gains nothing from also carving hardware-table
// storage out of the frame allocator (see DESIGN.md).
package paging

import (
	"sort"
	"sync/atomic"

	"github.com/eduos/kernel/pkg/errors"
	"github.com/eduos/kernel/pkg/mm/buddy"
)

const (
	EntriesPerTable = 1024
	PageSize        = buddy.FrameSize

	// KernelDirEntries is the upper quarter of the directory (spec.md
	// §4.4's "kernel half") that is identical across every mm and is
	// never touched by Map/Clone/Destroy on a per-task basis.
	KernelDirEntries = EntriesPerTable / 4
	kernelDirStart   = EntriesPerTable - KernelDirEntries
)

// Perm is the VMA permission/ownership/sharing bit set of spec.md §3.
type Perm struct {
	Read, Write, Exec bool
	User              bool // false = kernel-only
	Shared            bool // false = private (copy-on-write on fork)
}

// Backing names what a VMA's pages come from.
type Backing int

const (
	BackingAnonymous Backing = iota
	BackingFile
	BackingSharedMemory
)

// pte is one page-table entry.
type pte struct {
	present  bool
	writable bool
	user     bool
	pfn      int
}

// VMA is one [Start,End) virtual memory area.
type VMA struct {
	Start, End uintptr
	Perm       Perm
	Backing    Backing
	// refcount tracks attachments to shared backing (shared VMAs, or a
	// shm segment's attach list) so Destroy only frees pages once the
	// last mapping referencing them goes away.
	refcount *int32
}

func (v VMA) Len() uintptr { return v.End - v.Start }

type pageTable [EntriesPerTable]pte

// MM is one task's address space: a set of disjoint, sorted VMAs plus a
// root page directory.
type MM struct {
	buddy     *buddy.Allocator
	zone      buddy.Zone
	dir       [EntriesPerTable]*pageTable
	vmas      []VMA
	kernelDir [KernelDirEntries]*pageTable // shared template, set once
}

// kernelTemplate is the process-wide kernel half shared by every mm,
// analogous to spec.md §4.4's "identical across all address spaces".
var kernelTemplate [KernelDirEntries]*pageTable

// MapKernel installs a kernel-half mapping visible to every address
// space created afterward: dirIndex selects one of the KernelDirEntries
// slots of spec.md §4.4's shared upper quarter, and pa is the starting
// physical frame number identity-mapped across that slot's 1024 pages
// (pa, pa+1, ..., pa+EntriesPerTable-1). Used once during boot to map
// the kernel image, before any per-task mm is created by New. These
// frames are not drawn from pkg/mm/buddy: the kernel image occupies
// fixed physical memory the allocator's zones never claim, so mapping
// it here does not interact with frame-conservation accounting.
func MapKernel(dirIndex int, pa int) error {
	if dirIndex < 0 || dirIndex >= KernelDirEntries {
		return errors.EINVAL
	}
	if pa < 0 {
		return errors.EINVAL
	}
	pt := &pageTable{}
	for i := 0; i < EntriesPerTable; i++ {
		pt[i] = pte{present: true, writable: true, user: false, pfn: pa + i}
	}
	kernelTemplate[dirIndex] = pt
	return nil
}

// New creates an empty address space: a fresh directory with the kernel
// half copied in, and no VMAs.
func New(a *buddy.Allocator, zone buddy.Zone) *MM {
	mm := &MM{buddy: a, zone: zone}
	copy(mm.kernelDir[:], kernelTemplate[:])
	for i := 0; i < KernelDirEntries; i++ {
		mm.dir[kernelDirStart+i] = mm.kernelDir[i]
	}
	return mm
}

func (mm *MM) overlaps(start, end uintptr) bool {
	i := sort.Search(len(mm.vmas), func(i int) bool { return mm.vmas[i].End > start })
	return i < len(mm.vmas) && mm.vmas[i].Start < end
}

func (mm *MM) insertSorted(v VMA) {
	i := sort.Search(len(mm.vmas), func(i int) bool { return mm.vmas[i].Start >= v.Start })
	mm.vmas = append(mm.vmas, VMA{})
	copy(mm.vmas[i+1:], mm.vmas[i:])
	mm.vmas[i] = v
}

// Map inserts a VMA covering [va, va+size) with the given permissions
// and backing, allocating real frames from buddy and lazily creating
// whatever page tables are needed to write the PTEs. It is an error to
// map over an existing VMA.
func (mm *MM) Map(va uintptr, size uintptr, perm Perm, backing Backing) (*VMA, error) {
	if size == 0 || va%PageSize != 0 || size%PageSize != 0 {
		return nil, errors.EINVAL
	}
	end := va + size
	if mm.overlaps(va, end) {
		return nil, errors.EINVAL
	}

	refcount := int32(1)
	v := VMA{Start: va, End: end, Perm: perm, Backing: backing, refcount: &refcount}

	numPages := int(size / PageSize)
	for i := 0; i < numPages; i++ {
		pageVA := va + uintptr(i)*PageSize
		block, err := mm.buddy.Alloc(0, buddy.Flags{Zone: mm.zone, User: perm.User})
		if err != nil {
			mm.unmapRange(va, pageVA)
			return nil, err
		}
		mm.setPTE(pageVA, pte{present: true, writable: perm.Write, user: perm.User, pfn: block.PFN})
	}
	mm.insertSorted(v)
	return &mm.vmas[len(mm.vmas)-1], nil
}

func dirPTIndex(va uintptr) (int, int) {
	page := va / PageSize
	return int(page / EntriesPerTable), int(page % EntriesPerTable)
}

func (mm *MM) setPTE(va uintptr, e pte) {
	di, ti := dirPTIndex(va)
	if mm.dir[di] == nil {
		mm.dir[di] = &pageTable{}
	}
	mm.dir[di][ti] = e
}

func (mm *MM) getPTE(va uintptr) (pte, bool) {
	di, ti := dirPTIndex(va)
	if mm.dir[di] == nil {
		return pte{}, false
	}
	e := mm.dir[di][ti]
	return e, e.present
}

func (mm *MM) unmapRange(start, end uintptr) {
	for va := start; va < end; va += PageSize {
		if e, ok := mm.getPTE(va); ok {
			mm.buddy.Free(buddy.Block{PFN: e.pfn, Order: 0})
			mm.setPTE(va, pte{})
		}
	}
}

// Translate resolves va to its backing physical frame number, returning
// EFAULT if va is not covered by any VMA or the page table walk misses
// (simulating a page fault on an unmapped address).
func (mm *MM) Translate(va uintptr) (pfn int, writable bool, err error) {
	e, ok := mm.getPTE(va - va%PageSize)
	if !ok {
		return 0, false, errors.EFAULT
	}
	return e.pfn, e.writable, nil
}

// VMAFor returns the VMA covering va, or ok=false.
func (mm *MM) VMAFor(va uintptr) (VMA, bool) {
	i := sort.Search(len(mm.vmas), func(i int) bool { return mm.vmas[i].End > va })
	if i < len(mm.vmas) && mm.vmas[i].Start <= va {
		return mm.vmas[i], true
	}
	return VMA{}, false
}

// CheckUserRange validates that [va, va+n) lies entirely within one VMA
// of the calling task that is readable (or writable, for write access),
// per spec.md §4.10/§6. Returns EFAULT on any violation, including
// va+n overflowing.
func (mm *MM) CheckUserRange(va uintptr, n uintptr, forWrite bool) error {
	end := va + n
	if end < va { // overflow
		return errors.EFAULT
	}
	v, ok := mm.VMAFor(va)
	if !ok || !v.Perm.User || end > v.End {
		return errors.EFAULT
	}
	if forWrite && !v.Perm.Write {
		return errors.EFAULT
	}
	if !forWrite && !v.Perm.Read {
		return errors.EFAULT
	}
	return nil
}

// VMAs returns a snapshot of the VMA list, sorted by Start.
func (mm *MM) VMAs() []VMA {
	out := make([]VMA, len(mm.vmas))
	copy(out, mm.vmas)
	return out
}

// Destroy walks every VMA, decrements backing refcounts, and frees any
// page whose refcount reaches zero plus the page-table bookkeeping.
func (mm *MM) Destroy() {
	for _, v := range mm.vmas {
		for va := v.Start; va < v.End; va += PageSize {
			e, ok := mm.getPTE(va)
			if !ok {
				continue
			}
			if v.refcount != nil {
				if n := atomic.AddInt32(v.refcount, -1); n > 0 {
					continue
				}
			}
			mm.buddy.Free(buddy.Block{PFN: e.pfn, Order: 0})
		}
	}
	mm.vmas = nil
}
