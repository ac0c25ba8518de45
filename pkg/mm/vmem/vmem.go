// Package vmem implements the kernel-side virtual scratch window of
// spec.md §4.4: a small fixed range of kernel VA (with its own tiny
// buddy of slots) used to temporarily map pages from another address
// space so the kernel can copy between two user contexts without
// switching page directories.
package vmem

import (
	"github.com/eduos/kernel/pkg/errors"
	"github.com/eduos/kernel/pkg/klock"
)

// Window is one scratch slot: a fixed-size byte buffer standing in for a
// page-sized kernel VA range temporarily mapped to some frame's
// contents.
type Window struct {
	slot int
	data []byte
}

// Data returns the mapped contents of the window.
func (w *Window) Data() []byte { return w.data }

// Scratch is the fixed-size pool of scratch windows.
type Scratch struct {
	mu       klock.Spinlock
	pageSize int
	free     []int
	slots    [][]byte
}

// New creates a scratch pool of n windows, each pageSize bytes.
func New(n, pageSize int) (*Scratch, error) {
	if n <= 0 || pageSize <= 0 {
		return nil, errors.EINVAL
	}
	s := &Scratch{pageSize: pageSize}
	s.slots = make([][]byte, n)
	s.free = make([]int, n)
	for i := 0; i < n; i++ {
		s.slots[i] = make([]byte, pageSize)
		s.free[i] = n - 1 - i
	}
	return s, nil
}

// Map binds a scratch window to src, copying src's contents into it
// (standing in for the hardware mapping of a foreign physical frame into
// this kernel VA range). Unmap must be called to release the slot.
func (s *Scratch) Map(src []byte) (*Window, error) {
	if len(src) > s.pageSize {
		return nil, errors.EINVAL
	}
	s.mu.Lock()
	if len(s.free) == 0 {
		s.mu.Unlock()
		return nil, errors.EAGAIN
	}
	slot := s.free[len(s.free)-1]
	s.free = s.free[:len(s.free)-1]
	s.mu.Unlock()

	buf := s.slots[slot]
	copy(buf, src)
	for i := len(src); i < len(buf); i++ {
		buf[i] = 0
	}
	return &Window{slot: slot, data: buf[:len(src)]}, nil
}

// Unmap writes the (possibly modified) window contents back to dst and
// releases the slot.
func (s *Scratch) Unmap(w *Window, dst []byte) {
	copy(dst, w.data)
	s.mu.Lock()
	s.free = append(s.free, w.slot)
	s.mu.Unlock()
}

// CopyUserToUser copies n bytes from src (in srcMM) to dst (in dstMM)
// using the scratch window, so neither address space's page directory
// ever needs to be switched in to perform the copy. Callers pass
// resolved byte slices (already validated against VMAs by the caller);
// this function models only the "bounce through a kernel scratch
// mapping" step, not VMA validation.
func (s *Scratch) CopyUserToUser(dst, src []byte) error {
	if len(src) > s.pageSize {
		return errors.EINVAL
	}
	w, err := s.Map(src)
	if err != nil {
		return err
	}
	s.Unmap(w, dst[:len(src)])
	return nil
}
