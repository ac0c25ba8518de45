package sem

import (
	"github.com/eduos/kernel/pkg/errors"
	"github.com/eduos/kernel/pkg/ipc/ftok"
	"github.com/eduos/kernel/pkg/klock"
)

// Table is the kernel-wide semaphore-set registry, keyed by System V
// key and by allocated id (spec.md §4.9).
type Table struct {
	mu     klock.Spinlock
	byKey  map[ftok.Key]*Set
	byID   map[int]*Set
	nextID int
}

func NewTable() *Table {
	return &Table{byKey: make(map[ftok.Key]*Set), byID: make(map[int]*Set)}
}

// Get implements semget(key, nsems, flags): IPC_PRIVATE always
// allocates a new set; otherwise an existing key is reused unless
// IPC_EXCL is also set.
func (tbl *Table) Get(key ftok.Key, nsems int, flags ftok.GetFlags) (*Set, error) {
	if nsems <= 0 {
		return nil, errors.EINVAL
	}
	tbl.mu.Lock()
	defer tbl.mu.Unlock()

	if key != ftok.IPCPrivate {
		if existing, ok := tbl.byKey[key]; ok {
			if flags&ftok.IPCCreat != 0 && flags&ftok.IPCExcl != 0 {
				return nil, errors.EEXIST
			}
			if existing.Len() != nsems {
				return nil, errors.EINVAL
			}
			return existing, nil
		}
		if flags&ftok.IPCCreat == 0 {
			return nil, errors.ENOENT
		}
	}

	id := tbl.nextID
	tbl.nextID++
	s := newSet(id, key, nsems)
	tbl.byID[id] = s
	if key != ftok.IPCPrivate {
		tbl.byKey[key] = s
	}
	return s, nil
}

// Remove implements semctl(IPC_RMID): semaphore sets have no attach
// count to wait out (unlike shm), so removal is immediate.
func (tbl *Table) Remove(id int) error {
	tbl.mu.Lock()
	defer tbl.mu.Unlock()
	s, ok := tbl.byID[id]
	if !ok {
		return errors.EINVAL
	}
	delete(tbl.byID, id)
	if s.Key != ftok.IPCPrivate {
		delete(tbl.byKey, s.Key)
	}
	return nil
}

// Count reports the number of live semaphore sets, for debug/introspection.
func (tbl *Table) Count() int {
	tbl.mu.Lock()
	defer tbl.mu.Unlock()
	return len(tbl.byID)
}

func (tbl *Table) Lookup(id int) (*Set, error) {
	tbl.mu.Lock()
	defer tbl.mu.Unlock()
	s, ok := tbl.byID[id]
	if !ok {
		return nil, errors.EINVAL
	}
	return s, nil
}
