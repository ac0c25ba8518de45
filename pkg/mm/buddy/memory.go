package buddy

import "github.com/eduos/kernel/pkg/errors"

// ReadFrame copies len(buf) bytes starting at offset within pfn's frame
// into buf. This gives frames real byte content (rather than only
// page-table bookkeeping) so syscalls that move data between user
// buffers and the kernel (read/write, IPC payloads) have somewhere
// real to copy to and from.
func (a *Allocator) ReadFrame(pfn, offset int, buf []byte) error {
	if offset < 0 || offset+len(buf) > FrameSize {
		return errors.EFAULT
	}
	base := pfn * FrameSize
	copy(buf, a.mem[base+offset:base+offset+len(buf)])
	return nil
}

// WriteFrame copies data into pfn's frame starting at offset.
func (a *Allocator) WriteFrame(pfn, offset int, data []byte) error {
	if offset < 0 || offset+len(data) > FrameSize {
		return errors.EFAULT
	}
	base := pfn * FrameSize
	copy(a.mem[base+offset:base+offset+len(data)], data)
	return nil
}
