package task

import "github.com/eduos/kernel/pkg/errors"

// Setsid implements setsid(): only a task that is not already a group
// leader may call it; on success sid == pgid == pid (spec.md §4.5).
func (t *Task) Setsid() (int, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.GroupLeader {
		return 0, errors.EPERM
	}
	t.SID = t.PID
	t.PGID = t.PID
	t.GroupLeader = true
	return t.PID, nil
}

// Setpgid implements setpgid(pid, pgid). targetPID == 0 means the
// caller itself; newPGID == 0 means "use targetPID as the new group".
// A session leader's group cannot be changed (spec.md §4.5).
func (tbl *Table) Setpgid(caller *Task, targetPID, newPGID int) error {
	target := caller
	if targetPID != 0 && targetPID != caller.PID {
		t, ok := tbl.Lookup(targetPID)
		if !ok {
			return errors.ESRCH
		}
		target = t
	}

	target.mu.Lock()
	defer target.mu.Unlock()
	if target.GroupLeader && target.SID == target.PID {
		return errors.EPERM
	}
	if newPGID == 0 {
		newPGID = target.PID
	}
	target.PGID = newPGID
	return nil
}

// Getsid implements getsid(pid). pid == 0 means the caller; for any
// other pid, the caller and target must share a session or the call is
// EPERM (spec.md §4.5).
func (tbl *Table) Getsid(caller *Task, pid int) (int, error) {
	if pid == 0 {
		return caller.SID, nil
	}
	target, ok := tbl.Lookup(pid)
	if !ok {
		return 0, errors.ESRCH
	}
	if target.SID != caller.SID {
		return 0, errors.EPERM
	}
	return target.SID, nil
}
