// Package slab implements fixed-object caches carved from whole buddy
// pages, and the generic kmalloc/kfree facade built on top of them, per
// spec.md §4.3.
package slab

import (
	"fmt"

	"github.com/eduos/kernel/pkg/errors"
	"github.com/eduos/kernel/pkg/klock"
	"github.com/eduos/kernel/pkg/mm/buddy"
)

// PageOrder is the buddy order of the pages a Cache carves objects from.
const PageOrder = 0

// Constructor initializes a freshly-carved object in place, mirroring the
// per-cache constructor of spec.md §3.
type Constructor func(obj []byte)

type slabPage struct {
	block    buddy.Block
	data     []byte
	bitmap   []bool // true = allocated
	numFree  int
	capacity int
}

// Cache is a named pool of equal-sized objects. It tracks full, partial,
// and empty slabs as spec.md §3 describes; this implementation keeps them
// in one slice and classifies on demand rather than three separate lists,
// since the cache sizes in a teaching kernel are small enough that a
// linear scan is cheap and the invariant (alloc+free == capacity) is
// trivially checkable either way.
type Cache struct {
	mu          klock.Spinlock
	name        string
	objSize     int
	objsPerPage int
	ctor        Constructor
	buddy       *buddy.Allocator
	zone        buddy.Zone
	pages       []*slabPage
	emptyQuota  int // max empty slabs kept around before returning pages to buddy
}

// NewCache creates a cache of objects of objSize bytes, backed by a. ctor
// may be nil.
func NewCache(name string, objSize int, a *buddy.Allocator, zone buddy.Zone, ctor Constructor) (*Cache, error) {
	if objSize <= 0 {
		return nil, errors.EINVAL
	}
	perPage := buddy.FrameSize / objSize
	if perPage == 0 {
		return nil, fmt.Errorf("slab: object size %d exceeds page size: %w", objSize, errors.Errno(errors.EINVAL))
	}
	return &Cache{
		name:        name,
		objSize:     objSize,
		objsPerPage: perPage,
		ctor:        ctor,
		buddy:       a,
		zone:        zone,
		emptyQuota:  1,
	}, nil
}

func (c *Cache) Name() string { return c.name }

func (c *Cache) newPage() (*slabPage, error) {
	b, err := c.buddy.Alloc(PageOrder, buddy.Flags{Zone: c.zone})
	if err != nil {
		return nil, err
	}
	data := make([]byte, buddy.FrameSize)
	for i := 0; i < c.objsPerPage; i++ {
		if c.ctor != nil {
			c.ctor(data[i*c.objSize : (i+1)*c.objSize])
		}
	}
	return &slabPage{
		block:    b,
		data:     data,
		bitmap:   make([]bool, c.objsPerPage),
		numFree:  c.objsPerPage,
		capacity: c.objsPerPage,
	}, nil
}

// Handle identifies a live object: which page it lives on and its index
// within that page's bitmap.
type Handle struct {
	page *slabPage
	idx  int
}

// Alloc takes a free object from a partial slab, promotes an empty slab
// to partial, or carves a new slab from buddy, in that order.
func (c *Cache) Alloc() ([]byte, Handle, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	for _, p := range c.pages {
		if p.numFree > 0 {
			return c.takeFrom(p)
		}
	}
	p, err := c.newPage()
	if err != nil {
		return nil, Handle{}, err
	}
	c.pages = append(c.pages, p)
	return c.takeFrom(p)
}

func (c *Cache) takeFrom(p *slabPage) ([]byte, Handle, error) {
	for i, used := range p.bitmap {
		if !used {
			p.bitmap[i] = true
			p.numFree--
			return p.data[i*c.objSize : (i+1)*c.objSize], Handle{page: p, idx: i}, nil
		}
	}
	panic("slab: page reported free objects it does not have")
}

// Free clears the object's bit. If the owning slab becomes entirely free
// and the cache already holds emptyQuota idle empty slabs, its pages are
// released back to the buddy allocator.
func (c *Cache) Free(h Handle) {
	c.mu.Lock()
	defer c.mu.Unlock()

	p := h.page
	if !p.bitmap[h.idx] {
		panic("slab: double free of slab object")
	}
	p.bitmap[h.idx] = false
	p.numFree++

	if p.numFree == p.capacity {
		emptyCount := 0
		for _, other := range c.pages {
			if other.numFree == other.capacity {
				emptyCount++
			}
		}
		if emptyCount > c.emptyQuota {
			c.releasePage(p)
		}
	}
}

func (c *Cache) releasePage(p *slabPage) {
	for i, other := range c.pages {
		if other == p {
			c.pages = append(c.pages[:i], c.pages[i+1:]...)
			break
		}
	}
	c.buddy.Free(p.block)
}

// Stats reports the allocated/free object counts across all slabs of the
// cache, for the conservation invariant of spec.md §3.
type Stats struct {
	Pages     int
	Capacity  int
	Allocated int
	Free      int
}

func (c *Cache) Stats() Stats {
	c.mu.Lock()
	defer c.mu.Unlock()

	var s Stats
	s.Pages = len(c.pages)
	for _, p := range c.pages {
		s.Capacity += p.capacity
		s.Free += p.numFree
	}
	s.Allocated = s.Capacity - s.Free
	return s
}
