package paging

import (
	"sync/atomic"

	"github.com/eduos/kernel/pkg/errors"
	"github.com/eduos/kernel/pkg/mm/buddy"
)

// MapShared inserts a VMA at va backed by the given, already-allocated
// frames (rather than allocating fresh ones, as Map does), sharing
// refcount with every other mapping of the same frames. This is the
// primitive shmat uses to attach a System V shared-memory segment
// (spec.md §4.9): refcount is the segment's attach count, incremented
// by the caller before mapping so Unmap/Destroy only free the frames
// once the last attacher detaches.
func (mm *MM) MapShared(va uintptr, pfns []int, perm Perm, refcount *int32) (*VMA, error) {
	if len(pfns) == 0 || va%PageSize != 0 {
		return nil, errors.EINVAL
	}
	end := va + uintptr(len(pfns))*PageSize
	if mm.overlaps(va, end) {
		return nil, errors.EINVAL
	}

	v := VMA{Start: va, End: end, Perm: perm, Backing: BackingSharedMemory, refcount: refcount}
	for i, pfn := range pfns {
		mm.setPTE(va+uintptr(i)*PageSize, pte{present: true, writable: perm.Write, user: perm.User, pfn: pfn})
	}
	mm.insertSorted(v)
	return &mm.vmas[len(mm.vmas)-1], nil
}

// Unmap removes the VMA starting exactly at va, decrementing its
// refcount and freeing the underlying frames only once it reaches
// zero. Used by shmdt; munmap of a private VMA would use the same
// path once one exists.
func (mm *MM) Unmap(va uintptr) error {
	i := -1
	for idx, v := range mm.vmas {
		if v.Start == va {
			i = idx
			break
		}
	}
	if i < 0 {
		return errors.EINVAL
	}
	v := mm.vmas[i]

	last := true
	if v.refcount != nil {
		last = atomic.AddInt32(v.refcount, -1) <= 0
	}
	for pageVA := v.Start; pageVA < v.End; pageVA += PageSize {
		e, ok := mm.getPTE(pageVA)
		if !ok {
			continue
		}
		if last {
			mm.buddy.Free(buddy.Block{PFN: e.pfn, Order: 0})
		}
		mm.setPTE(pageVA, pte{})
	}
	mm.vmas = append(mm.vmas[:i], mm.vmas[i+1:]...)
	return nil
}
