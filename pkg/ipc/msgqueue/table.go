package msgqueue

import (
	"github.com/eduos/kernel/pkg/errors"
	"github.com/eduos/kernel/pkg/ipc/ftok"
	"github.com/eduos/kernel/pkg/klock"
)

// DefaultMaxBytes bounds a queue's total payload bytes absent an
// explicit size (mirrors the classic MSGMNB default order of
// magnitude, scaled down for a teaching kernel).
const DefaultMaxBytes = 16 * 1024

// Table is the kernel-wide message-queue registry.
type Table struct {
	mu     klock.Spinlock
	byKey  map[ftok.Key]*Queue
	byID   map[int]*Queue
	nextID int
}

func NewTable() *Table {
	return &Table{byKey: make(map[ftok.Key]*Queue), byID: make(map[int]*Queue)}
}

// Get implements msgget(key, flags).
func (tbl *Table) Get(key ftok.Key, flags ftok.GetFlags) (*Queue, error) {
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

	id := tbl.nextID
	tbl.nextID++
	q := newQueue(id, key, DefaultMaxBytes)
	tbl.byID[id] = q
	if key != ftok.IPCPrivate {
		tbl.byKey[key] = q
	}
	return q, nil
}

// Remove implements msgctl(IPC_RMID): destroys the queue immediately.
func (tbl *Table) Remove(id int) error {
	tbl.mu.Lock()
	defer tbl.mu.Unlock()
	q, ok := tbl.byID[id]
	if !ok {
		return errors.EINVAL
	}
	delete(tbl.byID, id)
	if q.Key != ftok.IPCPrivate {
		delete(tbl.byKey, q.Key)
	}
	return nil
}

// Count reports the number of live queues, for debug/introspection.
func (tbl *Table) Count() int {
	tbl.mu.Lock()
	defer tbl.mu.Unlock()
	return len(tbl.byID)
}

func (tbl *Table) Lookup(id int) (*Queue, error) {
	tbl.mu.Lock()
	defer tbl.mu.Unlock()
	q, ok := tbl.byID[id]
	if !ok {
		return nil, errors.EINVAL
	}
	return q, nil
}
