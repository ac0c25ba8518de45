// Package kernel assembles the subsystem packages (pkg/mm, pkg/task,
// pkg/sched, pkg/ipc, pkg/trap, pkg/blockio) into one bootable kernel
// instance, the way cmd/main.go wires the teacher's collectors,
// intake worker, and Kubernetes controller together. It is shared by
// both cmd/kernel (the boot harness) and cmd/kshell (canned scenario
// runner) so neither duplicates the wiring.
package kernel

import (
	"fmt"

	"github.com/go-logr/logr"

	"github.com/eduos/kernel/internal/authdb"
	"github.com/eduos/kernel/pkg/blockio"
	"github.com/eduos/kernel/pkg/ipc/alarm"
	"github.com/eduos/kernel/pkg/ipc/msgqueue"
	"github.com/eduos/kernel/pkg/ipc/sem"
	"github.com/eduos/kernel/pkg/ipc/shm"
	"github.com/eduos/kernel/pkg/mm/buddy"
	"github.com/eduos/kernel/pkg/mm/paging"
	"github.com/eduos/kernel/pkg/mm/slab"
	"github.com/eduos/kernel/pkg/sched"
	"github.com/eduos/kernel/pkg/task"
	"github.com/eduos/kernel/pkg/trap"
)

// TaskZone is the zone every task mm and IPC shared-memory segment is
// carved from; DMA and high memory exist (spec.md §3's three zones)
// but this simulation only ever allocates user pages from NORMAL.
const TaskZone = buddy.ZoneNormal

// Kernel bundles one instance of every subsystem.
type Kernel struct {
	cfg Config
	log logr.Logger

	Buddy   *buddy.Allocator
	Kmalloc *slab.KmallocAllocator
	Tasks   *task.Table
	Sched   *sched.RunQueue
	Sem     *sem.Table
	Msg     *msgqueue.Table
	Shm     *shm.Table
	Disk    *blockio.Device
	Clock   *alarm.Clock
	Auth    *authdb.DB
	Trap    *trap.Table
}

func policyFor(name string) (sched.Policy, error) {
	switch name {
	case "", "round-robin":
		return sched.RoundRobin{}, nil
	case "rate-monotonic":
		return sched.RateMonotonic{}, nil
	case "edf":
		return sched.EDF{}, nil
	default:
		return nil, fmt.Errorf("kernel: unknown scheduler policy %q", name)
	}
}

// New boots a Kernel from cfg: carves the buddy allocator's zones,
// builds the kmalloc slab layer on top, creates the process table
// (with init installed), the chosen scheduler policy, the three IPC
// tables, and opens the simulated disk. The boot sequence mirrors
// spec.md §4's dependency order: physical memory first, then paging's
// consumers (tasks, IPC shm), then the scheduler and syscall surface.
func New(cfg Config, log logr.Logger) (*Kernel, error) {
	policy, err := policyFor(cfg.Policy)
	if err != nil {
		return nil, err
	}

	total := cfg.DMAFrames + cfg.NormalFrames + cfg.HighFrames
	alloc, err := buddy.New(total, []buddy.ZoneSpec{
		{Zone: buddy.ZoneDMA, StartPFN: 0, NumFrames: cfg.DMAFrames},
		{Zone: buddy.ZoneNormal, StartPFN: cfg.DMAFrames, NumFrames: cfg.NormalFrames},
		{Zone: buddy.ZoneHigh, StartPFN: cfg.DMAFrames + cfg.NormalFrames, NumFrames: cfg.HighFrames},
	})
	if err != nil {
		return nil, fmt.Errorf("kernel: buddy allocator: %w", err)
	}

	// Identity-map the kernel image into the shared kernel half (spec.md
	// §4.4) before any per-task mm is created, so every mm.New picks up
	// the mapping via its kernelTemplate copy.
	if err := paging.MapKernel(0, cfg.KernelImageBasePFN); err != nil {
		return nil, fmt.Errorf("kernel: mapping kernel image: %w", err)
	}

	kmalloc, err := slab.NewKmallocAllocator(alloc, buddy.ZoneNormal)
	if err != nil {
		return nil, fmt.Errorf("kernel: kmalloc: %w", err)
	}

	disk, err := blockio.Open(cfg.DiskPath)
	if err != nil {
		return nil, fmt.Errorf("kernel: block device: %w", err)
	}

	auth, err := authdb.Load(cfg.PasswdData, cfg.GroupData, cfg.ShadowData)
	if err != nil {
		return nil, fmt.Errorf("kernel: account database: %w", err)
	}

	k := &Kernel{
		cfg:     cfg,
		log:     log,
		Buddy:   alloc,
		Kmalloc: kmalloc,
		Tasks:   task.NewTable(cfg.MaxProcesses),
		Sched:   sched.New(policy),
		Sem:     sem.NewTable(),
		Msg:     msgqueue.NewTable(),
		Shm:     shm.NewTable(alloc, TaskZone),
		Disk:    disk,
		Clock:   alarm.NewClock(),
		Auth:    auth,
	}
	k.Sched.Enqueue(k.Tasks.Init())
	k.Trap = registerSyscalls(k)
	return k, nil
}

// Close releases resources the kernel opened (the disk's badger store
// and the alarm clock's drain goroutine).
func (k *Kernel) Close() error {
	k.Clock.Stop()
	return k.Disk.Close()
}

// NewMM allocates a fresh address space in the kernel's task zone, for
// fork/exec paths that need one (e.g. the first task a scenario spawns,
// since init itself starts with MM == nil, a kernel task).
func (k *Kernel) NewMM() *paging.MM {
	return paging.New(k.Buddy, TaskZone)
}
