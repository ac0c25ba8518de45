package paging

import "github.com/eduos/kernel/pkg/errors"

// ReadUser copies n bytes starting at user address va into buf,
// validating the range with CheckUserRange first, per spec.md §4.10's
// EFAULT contract. The copy walks page by page since [va, va+n) can
// span multiple, non-physically-contiguous frames.
func (mm *MM) ReadUser(va uintptr, buf []byte) error {
	n := uintptr(len(buf))
	if n == 0 {
		return nil
	}
	if err := mm.CheckUserRange(va, n, false); err != nil {
		return err
	}
	return mm.walkPages(va, buf, false)
}

// WriteUser copies data into user memory starting at va, validating
// the range for write access first.
func (mm *MM) WriteUser(va uintptr, data []byte) error {
	n := uintptr(len(data))
	if n == 0 {
		return nil
	}
	if err := mm.CheckUserRange(va, n, true); err != nil {
		return err
	}
	return mm.walkPages(va, data, true)
}

// walkPages copies buf to/from user memory one page-fragment at a
// time, translating va to a (pfn, page-offset) pair for each fragment.
func (mm *MM) walkPages(va uintptr, buf []byte, write bool) error {
	done := 0
	for done < len(buf) {
		pfn, writable, err := mm.Translate(va)
		if err != nil {
			return err
		}
		if write && !writable {
			return errors.EFAULT
		}
		pageOff := int(va % PageSize)
		take := PageSize - pageOff
		if remaining := len(buf) - done; take > remaining {
			take = remaining
		}
		if write {
			err = mm.buddy.WriteFrame(pfn, pageOff, buf[done:done+take])
		} else {
			err = mm.buddy.ReadFrame(pfn, pageOff, buf[done:done+take])
		}
		if err != nil {
			return err
		}
		done += take
		va += uintptr(take)
	}
	return nil
}
