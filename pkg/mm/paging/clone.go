package paging

import (
	"sync/atomic"

	"github.com/eduos/kernel/pkg/errors"
	"github.com/eduos/kernel/pkg/mm/buddy"
)

// Clone produces a child address space from mm per spec.md §4.4: every
// VMA is duplicated; private write-capable VMAs are marked read-only on
// both sides so the first write after fork faults and copies (copy-on-
// write), while shared VMAs stay writable on both sides and share one
// refcount on the backing frames.
func (mm *MM) Clone() *MM {
	child := New(mm.buddy, mm.zone)

	for _, v := range mm.vmas {
		cow := !v.Shared() && v.Perm.Write
		childVMA := v
		if cow {
			childVMA.refcount = v.refcount // share the same refcount
			atomic.AddInt32(v.refcount, 1)
		} else if v.Shared() {
			atomic.AddInt32(v.refcount, 1)
			childVMA.refcount = v.refcount
		} else {
			rc := int32(1)
			childVMA.refcount = &rc
		}
		child.insertSorted(childVMA)

		for va := v.Start; va < v.End; va += PageSize {
			e, ok := mm.getPTE(va)
			if !ok {
				continue
			}
			if cow {
				// Both parent and child lose write access until the next
				// write fault resolves the copy.
				e.writable = false
				mm.setPTE(va, e)
			}
			child.setPTE(va, e)
		}
	}
	return child
}

// Shared reports whether the VMA's backing is writable by more than one
// mm concurrently (as opposed to copy-on-write private).
func (v VMA) Shared() bool { return v.Perm.Shared }

// ResolveCOWFault is called on a write fault to a read-only, refcounted
// page: if the page is still shared (refcount > 1), a fresh frame is
// allocated and the contents copied in via the virtual scratch window
// (pkg/mm/vmem); if the caller already holds the only reference, the
// page is simply made writable in place.
func (mm *MM) ResolveCOWFault(va uintptr, copyFn func(dstPFN, srcPFN int)) error {
	page := va - va%PageSize
	e, ok := mm.getPTE(page)
	if !ok {
		return errors.EFAULT
	}
	v, ok := mm.VMAFor(page)
	if !ok || v.refcount == nil {
		return errors.EFAULT
	}

	if atomic.LoadInt32(v.refcount) <= 1 {
		e.writable = true
		mm.setPTE(page, e)
		return nil
	}

	block, err := mm.buddy.Alloc(0, buddy.Flags{Zone: mm.zone, User: v.Perm.User})
	if err != nil {
		return err
	}
	copyFn(block.PFN, e.pfn)

	atomic.AddInt32(v.refcount, -1)
	newRC := int32(1)
	mm.setPTE(page, pte{present: true, writable: true, user: v.Perm.User, pfn: block.PFN})
	for i := range mm.vmas {
		if mm.vmas[i].Start == v.Start {
			mm.vmas[i].refcount = &newRC
		}
	}
	return nil
}
