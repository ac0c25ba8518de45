// Package ftok implements the System V key composition shared by all
// three IPC families (spec.md §4.9).
package ftok

// Key is a System V IPC key.
type Key int32

// IPCPrivate bypasses the key map: IPC_PRIVATE always allocates a new,
// unkeyed object rather than looking one up.
const IPCPrivate Key = 0

// Token composes a key from a path's (inode, device) pair and a
// project id, per spec.md §4.9:
// (inode & 0xffff) | ((device & 0xff) << 16) | ((id & 0xff) << 24).
func Token(inode uint64, device uint32, id byte) Key {
	return Key((inode & 0xffff) | (uint64(device&0xff) << 16) | (uint64(id) << 24))
}

// GetFlags are the *get(2)-family flags shared by semget/msgget/shmget.
type GetFlags int

const (
	IPCCreat GetFlags = 1 << iota // create if the key doesn't already map to an object
	IPCExcl                       // with IPCCreat, fail EEXIST-style if the key already exists
)

// OpFlags are the per-operation flags shared by semop/msgsnd/msgrcv.
type OpFlags int

const (
	IPCNoWait OpFlags = 1 << iota // return EAGAIN/ENOMSG instead of blocking
)

