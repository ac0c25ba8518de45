package kernel

// RunqueueSnapshot implements debugapi.Source: the scheduler's current
// tick, running task's PID (0 if none), and the size of the runnable
// and admitted-periodic sets.
func (k *Kernel) RunqueueSnapshot() map[string]any {
	pid := 0
	if cur := k.Sched.Current(); cur != nil {
		pid = cur.PID
	}
	return map[string]any{
		"tick":           float64(k.Sched.CurrentTick()),
		"current_pid":    float64(pid),
		"active_tasks":   float64(k.Sched.NumActive()),
		"periodic_tasks": float64(k.Sched.NumPeriodic()),
	}
}

// ZoneSnapshot implements debugapi.Source: free-frame accounting for
// every buddy zone, keyed by zone name.
func (k *Kernel) ZoneSnapshot() map[string]any {
	out := make(map[string]any)
	for _, z := range k.Buddy.Stats() {
		out[z.Zone.String()] = map[string]any{
			"free_frames": float64(z.FreeFrames),
			"free_bytes":  float64(z.FreeBytes),
		}
	}
	return out
}

// IPCSnapshot implements debugapi.Source: the live object count of each
// System V IPC table.
func (k *Kernel) IPCSnapshot() map[string]any {
	return map[string]any{
		"semaphore_sets": float64(k.Sem.Count()),
		"message_queues": float64(k.Msg.Count()),
		"shm_segments":   float64(k.Shm.Count()),
	}
}
