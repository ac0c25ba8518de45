package slab

import (
	"github.com/eduos/kernel/pkg/errors"
	"github.com/eduos/kernel/pkg/klock"
	"github.com/eduos/kernel/pkg/mm/buddy"
)

// kmallocMagic marks a live kmalloc header; Kfree checks it and treats a
// mismatch as a fatal developer error (corruption or a non-kmalloc
// pointer), per spec.md §4.3.
const kmallocMagic uint32 = 0x4b4d4147 // "KMAG"

const headerSize = 4 /* magic */ + 4 /* exact size */

// Ptr is the handle kmalloc hands back: Data is the usable region, with a
// magic+size header living just before it in the same underlying slab
// object so Kfree can validate the pointer the way the C original does.
type Ptr struct {
	Data   []byte
	full   []byte
	cache  *Cache
	handle Handle
}

func putU32(b []byte, v uint32) {
	b[0] = byte(v)
	b[1] = byte(v >> 8)
	b[2] = byte(v >> 16)
	b[3] = byte(v >> 24)
}

func getU32(b []byte) uint32 {
	return uint32(b[0]) | uint32(b[1])<<8 | uint32(b[2])<<16 | uint32(b[3])<<24
}

// KmallocAllocator routes small allocations to the smallest power-of-two
// size-class cache that fits size+header, following spec.md §4.3.
type KmallocAllocator struct {
	mu      klock.Spinlock
	buddy   *buddy.Allocator
	zone    buddy.Zone
	classes []*Cache // ascending object size
}

const minClassLog = 4 // smallest class is 16 bytes

// NewKmallocAllocator builds the size-class caches up to and including a
// class large enough to hold one full page, so Kmalloc(n) never exceeds
// buddy.FrameSize - headerSize.
func NewKmallocAllocator(a *buddy.Allocator, zone buddy.Zone) (*KmallocAllocator, error) {
	k := &KmallocAllocator{buddy: a, zone: zone}
	for log := minClassLog; (1 << log) <= buddy.FrameSize; log++ {
		classSize := 1 << log
		c, err := NewCache(classCacheName(classSize), classSize, a, zone, nil)
		if err != nil {
			return nil, err
		}
		k.classes = append(k.classes, c)
	}
	return k, nil
}

func classCacheName(size int) string {
	digits := "0123456789"
	if size == 0 {
		return "kmalloc-0"
	}
	var buf []byte
	for size > 0 {
		buf = append([]byte{digits[size%10]}, buf...)
		size /= 10
	}
	return "kmalloc-" + string(buf)
}

func (k *KmallocAllocator) classFor(total int) *Cache {
	for _, c := range k.classes {
		if c.objSize >= total {
			return c
		}
	}
	return nil
}

// Kmalloc returns size zeroed bytes routed to the smallest class that
// fits, prefixed internally with a magic+size header.
func (k *KmallocAllocator) Kmalloc(size int) (*Ptr, error) {
	if size <= 0 {
		return nil, errors.EINVAL
	}
	cache := k.classFor(size + headerSize)
	if cache == nil {
		return nil, errors.ENOMEM
	}
	obj, h, err := cache.Alloc()
	if err != nil {
		return nil, err
	}
	putU32(obj[0:4], kmallocMagic)
	putU32(obj[4:8], uint32(size))
	data := obj[headerSize : headerSize+size]
	for i := range data {
		data[i] = 0
	}
	return &Ptr{Data: data, full: obj, cache: cache, handle: h}, nil
}

// Kfree validates the magic word and returns the object to its owning
// cache. A missing/mismatched magic is a developer-error panic: it means
// double-free, a corrupted header, or a pointer that did not come from
// Kmalloc.
func (k *KmallocAllocator) Kfree(p *Ptr) {
	if p == nil || len(p.full) < headerSize {
		panic("kmalloc: kfree of invalid pointer")
	}
	if getU32(p.full[0:4]) != kmallocMagic {
		panic("kmalloc: kfree of pointer with bad magic")
	}
	// Poison the header so a second Kfree of the same Ptr is caught.
	putU32(p.full[0:4], 0)
	p.cache.Free(p.handle)
}
