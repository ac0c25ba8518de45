package kernel

import "time"

// Config bundles every boot-time parameter of spec.md's kernel core,
// following the teacher's flat flag-struct style (cmd/main.go's CLI
// options block) rather than introducing a config file format.
type Config struct {
	DMAFrames    int // frames reserved for ZoneDMA
	NormalFrames int // frames in ZoneNormal, where task mm's are carved from
	HighFrames   int // frames in ZoneHigh

	MaxProcesses int    // process table size
	Policy       string // "round-robin", "rate-monotonic", or "edf"

	DiskPath string // directory backing the simulated ATA device (badger)

	// PasswdData/GroupData/ShadowData are the raw contents of an
	// /etc/passwd, /etc/group, and /etc/shadow-style account database
	// (spec.md §6's persistent-state note); empty means no accounts are
	// registered and every login syscall fails with ESRCH.
	PasswdData string
	GroupData  string
	ShadowData string

	TickInterval time.Duration // timer IRQ period

	DebugListenAddr string // empty disables the debugapi gRPC server

	// KernelImageBasePFN is the physical frame number the kernel image
	// is identity-mapped at in the shared kernel half (spec.md §4.4);
	// these frames lie outside the zones above and are never touched by
	// the buddy allocator.
	KernelImageBasePFN int
}

// DefaultConfig returns the parameter set cmd/kernel's flags default
// to, sized for a teaching kernel rather than a production one.
func DefaultConfig() Config {
	return Config{
		DMAFrames:    64,
		NormalFrames: 4096,
		HighFrames:   1024,
		MaxProcesses: 256,
		Policy:       "round-robin",
		DiskPath:     "",
		TickInterval: 10 * time.Millisecond,
	}
}
