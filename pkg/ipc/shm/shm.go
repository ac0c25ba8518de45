// Package shm implements System V shared memory (spec.md §4.9):
// shmget allocates backing frames from buddy, shmat/shmdt map and
// unmap them into a task's mm sharing one attach-count refcount, and
// shmctl(IPC_RMID) defers the actual frame free until the last
// attacher detaches.
package shm

import (
	"sync/atomic"

	"github.com/eduos/kernel/pkg/errors"
	"github.com/eduos/kernel/pkg/ipc/ftok"
	"github.com/eduos/kernel/pkg/klock"
	"github.com/eduos/kernel/pkg/mm/buddy"
	"github.com/eduos/kernel/pkg/mm/paging"
)

// Segment is one shared-memory segment.
type Segment struct {
	ID   int
	Key  ftok.Key
	PFNs []int // one entry per page, in order

	attaches int32 // shared refcount, passed directly to paging.MM.MapShared/Unmap
	removed  bool  // shmctl(IPC_RMID) called; free on last detach
}

func (s *Segment) NumPages() int { return len(s.PFNs) }

// Table is the kernel-wide shared-memory segment registry.
type Table struct {
	mu     klock.Spinlock
	alloc  *buddy.Allocator
	zone   buddy.Zone
	byKey  map[ftok.Key]*Segment
	byID   map[int]*Segment
	nextID int
}

func NewTable(alloc *buddy.Allocator, zone buddy.Zone) *Table {
	return &Table{
		alloc: alloc,
		zone:  zone,
		byKey: make(map[ftok.Key]*Segment),
		byID:  make(map[int]*Segment),
	}
}

// Get implements shmget(key, size, flags): allocates ceil(size/PageSize)
// individual order-0 frames (so a partially-attached/destroyed segment
// never has to free a multi-frame block it doesn't fully own).
func (tbl *Table) Get(key ftok.Key, size uintptr, flags ftok.GetFlags) (*Segment, error) {
	if size == 0 {
		return nil, errors.EINVAL
	}

	tbl.mu.Lock()
	defer tbl.mu.Unlock()

	if key != ftok.IPCPrivate {
		if existing, ok := tbl.byKey[key]; ok {
			if flags&ftok.IPCCreat != 0 && flags&ftok.IPCExcl != 0 {
				return nil, errors.EEXIST
			}
			return existing, nil
		}
		if flags&ftok.IPCCreat == 0 {
			return nil, errors.ENOENT
		}
	}

	numPages := int((size + paging.PageSize - 1) / paging.PageSize)
	pfns := make([]int, 0, numPages)
	for i := 0; i < numPages; i++ {
		block, err := tbl.alloc.Alloc(0, buddy.Flags{Zone: tbl.zone, User: true})
		if err != nil {
			for _, pfn := range pfns {
				tbl.alloc.Free(buddy.Block{PFN: pfn, Order: 0})
			}
			return nil, err
		}
		pfns = append(pfns, block.PFN)
	}

	id := tbl.nextID
	tbl.nextID++
	seg := &Segment{ID: id, Key: key, PFNs: pfns}
	tbl.byID[id] = seg
	if key != ftok.IPCPrivate {
		tbl.byKey[key] = seg
	}
	return seg, nil
}

// Attach implements shmat: inserts a VMA at va in mm pointing at the
// segment's frames and bumps the attach count.
func (tbl *Table) Attach(seg *Segment, mm *paging.MM, va uintptr, writable bool) (*paging.VMA, error) {
	atomic.AddInt32(&seg.attaches, 1)
	v, err := mm.MapShared(va, seg.PFNs, paging.Perm{Read: true, Write: writable, User: true, Shared: true}, &seg.attaches)
	if err != nil {
		atomic.AddInt32(&seg.attaches, -1)
		return nil, err
	}
	return v, nil
}

// Detach implements shmdt: removes the VMA at va from mm, decrementing
// the attach count (and freeing the frames, via paging.MM.Unmap, once
// it reaches zero). If the segment was already shmctl(IPC_RMID)'d and
// this was the last attacher, the table's own bookkeeping for it is
// dropped too.
func (tbl *Table) Detach(seg *Segment, mm *paging.MM, va uintptr) error {
	if err := mm.Unmap(va); err != nil {
		return err
	}
	if seg.removed && atomic.LoadInt32(&seg.attaches) <= 0 {
		tbl.mu.Lock()
		delete(tbl.byID, seg.ID)
		tbl.mu.Unlock()
	}
	return nil
}

// Remove implements shmctl(IPC_RMID): removes the segment from the key
// map immediately (no new shmget(key,...) can find it) but the
// id -> Segment entry, and the frames themselves, persist until the
// attach count reaches zero, per spec.md §4.9.
func (tbl *Table) Remove(id int) error {
	tbl.mu.Lock()
	defer tbl.mu.Unlock()
	seg, ok := tbl.byID[id]
	if !ok {
		return errors.EINVAL
	}
	seg.removed = true
	if seg.Key != ftok.IPCPrivate {
		delete(tbl.byKey, seg.Key)
	}
	if atomic.LoadInt32(&seg.attaches) == 0 {
		// Never attached (or already fully detached): Detach's Unmap path
		// never runs for this segment, so its backing frames must be
		// freed here or they leak from the buddy allocator permanently.
		for _, pfn := range seg.PFNs {
			tbl.alloc.Free(buddy.Block{PFN: pfn, Order: 0})
		}
		delete(tbl.byID, id)
	}
	return nil
}

// Count reports the number of live segments, for debug/introspection.
func (tbl *Table) Count() int {
	tbl.mu.Lock()
	defer tbl.mu.Unlock()
	return len(tbl.byID)
}

func (tbl *Table) Lookup(id int) (*Segment, error) {
	tbl.mu.Lock()
	defer tbl.mu.Unlock()
	seg, ok := tbl.byID[id]
	if !ok {
		return nil, errors.EINVAL
	}
	return seg, nil
}
